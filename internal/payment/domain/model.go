package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Gateway is a hosted payment gateway: it creates orders the payer's
// checkout widget pays against, and vouches for the widget's callback.
type Gateway interface {
	Provider() string
	// PublicKey is safe to hand to the browser widget.
	PublicKey() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyPayment(ctx context.Context, cb PaymentCallback) error
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Gateway, error)
}

type AdapterConfig struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OrderRequest asks the gateway for an order of AmountMinor (paise).
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Order struct {
	ID          string    `json:"id"`
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Receipt     string    `json:"receipt"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentCallback is what the widget reports after a successful payment.
type PaymentCallback struct {
	GatewayOrderID string `json:"order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

var (
	ErrProviderNotFound   = errors.New("payment_provider_not_found")
	ErrInvalidConfig      = errors.New("invalid_payment_config")
	ErrInvalidSignature   = errors.New("invalid_payment_signature")
	ErrInvalidPayload     = errors.New("invalid_payment_payload")
	ErrOrderRejected      = errors.New("payment_order_rejected")
	ErrGatewayUnavailable = errors.New("payment_gateway_unavailable")
)
