package domain

import (
	"context"
	"errors"
	"time"

	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
)

type Service interface {
	StartCheckout(ctx context.Context, req StartCheckoutRequest) (StartCheckoutResponse, error)
	ConfirmPayment(ctx context.Context, orderID string, req ConfirmPaymentRequest) (CheckoutOrder, error)
	FailPayment(ctx context.Context, orderID string, reason string) (CheckoutOrder, error)
	DismissPayment(ctx context.Context, orderID string) (CheckoutOrder, error)
	GetOrder(ctx context.Context, orderID string) (CheckoutOrder, error)
	ListOrders(ctx context.Context, hospitalID string) ([]CheckoutOrder, error)
	// ExpireAbandoned dismisses up to limit orders still awaiting payment
	// untouched since before the cutoff and reports how many it moved.
	ExpireAbandoned(ctx context.Context, before time.Time, limit int) (int, error)
	// ReleaseStalledVerifications fails up to limit orders stuck in
	// VERIFYING since before the cutoff so a retried callback can complete
	// them.
	ReleaseStalledVerifications(ctx context.Context, before time.Time, limit int) (int, error)
}

var (
	ErrInvalidHospital           = errors.New("invalid_hospital")
	ErrInvalidOrderID            = errors.New("invalid_order_id")
	ErrInvalidUnitCount          = errors.New("invalid_unit_count")
	ErrOrderNotFound             = errors.New("order_not_found")
	ErrInvalidTransition         = errors.New("invalid_state_transition")
	ErrConcurrentUpdate          = errors.New("order_concurrently_updated")
	ErrCheckoutInProgress        = errors.New("checkout_in_progress")
	ErrRateLimited               = errors.New("checkout_rate_limited")
	ErrGatewayUnavailable        = errors.New("payment_gateway_unavailable")
	ErrPaymentVerificationFailed = errors.New("payment_verification_failed")
	ErrInvalidPaymentCallback    = errors.New("invalid_payment_callback")
)

// UnitCountError carries the user-facing validation result. It matches
// ErrInvalidUnitCount under errors.Is.
type UnitCountError struct {
	Validation pricingdomain.Validation
}

func (e *UnitCountError) Error() string {
	return e.Validation.Message
}

func (e *UnitCountError) Is(target error) bool {
	return target == ErrInvalidUnitCount
}
