package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/medisub/internal/payment/domain"
)

const (
	providerName   = "razorpay"
	defaultBaseURL = "https://api.razorpay.com"
	defaultTimeout = 10 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Adapter{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    client,
	}, nil
}

type Adapter struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func (a *Adapter) Provider() string { return providerName }

func (a *Adapter) PublicKey() string { return a.keyID }

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (a *Adapter) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	if req.AmountMinor <= 0 || strings.TrimSpace(req.Receipt) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	body, err := json.Marshal(orderRequest{
		Amount:   req.AmountMinor,
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(a.keyID, a.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", paymentdomain.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		var apiErr errorResponse
		_ = json.Unmarshal(payload, &apiErr)
		return nil, fmt.Errorf("%w: %s %s", paymentdomain.ErrOrderRejected, apiErr.Error.Code, apiErr.Error.Description)
	}

	var order orderResponse
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	createdAt := time.Now().UTC()
	if order.CreatedAt > 0 {
		createdAt = time.Unix(order.CreatedAt, 0).UTC()
	}
	return &paymentdomain.Order{
		ID:          order.ID,
		AmountMinor: order.Amount,
		Currency:    strings.ToUpper(order.Currency),
		Receipt:     order.Receipt,
		Status:      order.Status,
		CreatedAt:   createdAt,
	}, nil
}

// VerifyPayment checks the checkout signature: hex HMAC-SHA256 over
// "<order_id>|<payment_id>" keyed with the API secret.
func (a *Adapter) VerifyPayment(ctx context.Context, cb paymentdomain.PaymentCallback) error {
	if strings.TrimSpace(cb.GatewayOrderID) == "" || strings.TrimSpace(cb.PaymentID) == "" {
		return paymentdomain.ErrInvalidPayload
	}
	signature := strings.TrimSpace(cb.Signature)
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	expected := Sign(a.keySecret, cb.GatewayOrderID, cb.PaymentID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// Sign computes the checkout signature for an order and payment pair.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ paymentdomain.Gateway = (*Adapter)(nil)
