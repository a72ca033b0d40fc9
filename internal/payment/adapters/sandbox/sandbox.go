package sandbox

import (
	"context"
	"crypto/hmac"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/medisub/internal/payment/adapters/razorpay"
	paymentdomain "github.com/smallbiznis/medisub/internal/payment/domain"
)

const (
	providerName  = "sandbox"
	defaultKeyID  = "sandbox_key"
	defaultSecret = "sandbox_secret"
)

// Factory builds an in-process gateway that never leaves the host. Orders
// are accepted as-is and callbacks are signed the razorpay way.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}
	secret := strings.TrimSpace(cfg.KeySecret)
	if secret == "" {
		secret = defaultSecret
	}
	return &Adapter{keyID: keyID, secret: secret}, nil
}

type Adapter struct {
	keyID  string
	secret string
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) PublicKey() string { return a.keyID }

func (a *Adapter) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.AmountMinor <= 0 || strings.TrimSpace(req.Receipt) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return &paymentdomain.Order{
		ID:          "order_sandbox_" + strings.ToLower(ulid.Make().String()),
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Receipt:     req.Receipt,
		Status:      "created",
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (a *Adapter) VerifyPayment(ctx context.Context, cb paymentdomain.PaymentCallback) error {
	if strings.TrimSpace(cb.GatewayOrderID) == "" || strings.TrimSpace(cb.PaymentID) == "" {
		return paymentdomain.ErrInvalidPayload
	}
	expected := razorpay.Sign(a.secret, cb.GatewayOrderID, cb.PaymentID)
	if !hmac.Equal([]byte(strings.TrimSpace(cb.Signature)), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// SignCallback produces the signature a sandbox checkout widget would send.
func (a *Adapter) SignCallback(orderID, paymentID string) string {
	return razorpay.Sign(a.secret, orderID, paymentID)
}
