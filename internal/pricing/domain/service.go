package domain

import "errors"

// Service computes quotes against the process-wide pricing configuration.
type Service interface {
	Config() PricingConfig
	Quote(unitCount int64, cycle BillingCycle) (PriceQuote, error)
	Validate(value any) Validation
}

var (
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrInvalidUnitCount    = errors.New("invalid_unit_count")
	ErrInvalidBasePrice    = errors.New("invalid_base_price")
	ErrInvalidPercentage   = errors.New("invalid_discount_percentage")
	ErrInvalidTier         = errors.New("invalid_volume_tier")
	ErrDuplicateTier       = errors.New("duplicate_volume_tier")
)

// Validation codes, in the order they are checked.
const (
	CodeUnitCountMissing  = "missing"
	CodeUnitCountTooLow   = "below_minimum"
	CodeUnitCountTooHigh  = "above_maximum"
	CodeUnitCountFraction = "not_whole_number"
)

const (
	DefaultMinUnits = 1
	DefaultMaxUnits = 1000
)
