package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/medisub/internal/subscription/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationSentinels maps domain errors to the request field they blame.
var validationSentinels = []struct {
	err     error
	field   string
	message string
}{
	{ErrInvalidRequest, "request", "invalid request"},
	{pricingdomain.ErrInvalidBillingCycle, "billing_cycle", "Billing cycle must be MONTHLY or YEARLY"},
	{pricingdomain.ErrInvalidUnitCount, "unit_count", "Please enter a valid number of doctors"},
	{checkoutdomain.ErrInvalidHospital, "hospital_id", "invalid hospital"},
	{checkoutdomain.ErrInvalidOrderID, "id", "invalid order id"},
	{checkoutdomain.ErrInvalidPaymentCallback, "payment", "payment id, signature and gateway order must match the checkout"},
	{subscriptiondomain.ErrInvalidHospital, "hospital_id", "invalid hospital"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		if status == http.StatusTooManyRequests {
			c.Header("Retry-After", "60")
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var unitErr *checkoutdomain.UnitCountError
	if errors.As(err, &unitErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   "unit_count",
				Code:    unitErr.Validation.Code,
				Message: unitErr.Validation.Message,
			}},
		}
	}

	for _, v := range validationSentinels {
		if errors.Is(err, v.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []ValidationError{{
					Field:   v.field,
					Code:    v.err.Error(),
					Message: v.message,
				}},
			}
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, checkoutdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_state_transition",
			Message: "the checkout cannot take this step from its current state",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, checkoutdomain.ErrConcurrentUpdate),
		errors.Is(err, checkoutdomain.ErrCheckoutInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, checkoutdomain.ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_verification_failed",
			Message: "Payment verification failed",
		}
	case errors.Is(err, checkoutdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many checkout attempts, try again shortly",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, checkoutdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "payment gateway unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, checkoutdomain.ErrOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
