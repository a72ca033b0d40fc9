package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BillingCycle is the recurrence period a hospital commits to.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
)

// MonthsPerYear is the multiplier applied to monthly amounts on yearly plans.
const MonthsPerYear = 12

// ParseBillingCycle accepts the canonical values case-insensitively.
// Anything else is ErrInvalidBillingCycle, never a silent monthly fallback.
func ParseBillingCycle(raw string) (BillingCycle, error) {
	switch BillingCycle(strings.ToUpper(strings.TrimSpace(raw))) {
	case BillingCycleMonthly:
		return BillingCycleMonthly, nil
	case BillingCycleYearly:
		return BillingCycleYearly, nil
	default:
		return "", ErrInvalidBillingCycle
	}
}

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Months is the number of monthly periods one commitment covers.
func (c BillingCycle) Months() int64 {
	if c == BillingCycleYearly {
		return MonthsPerYear
	}
	return 1
}

func (c BillingCycle) String() string { return string(c) }

// VolumeTier grants DiscountPercentage once the unit count reaches MinUnits.
type VolumeTier struct {
	MinUnits           int64           `json:"min_units" mapstructure:"min_units"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" mapstructure:"discount_percentage"`
	Label              string          `json:"label" mapstructure:"label"`
}

// PricingConfig is loaded once at startup and never mutated.
type PricingConfig struct {
	BasePricePerUnit         decimal.Decimal `json:"base_price_per_unit"`
	YearlyDiscountPercentage decimal.Decimal `json:"yearly_discount_percentage"`
	VolumeDiscountTiers      []VolumeTier    `json:"volume_discount_tiers"`
	Currency                 string          `json:"currency"`
	MaxUnits                 int64           `json:"max_units"`
}

const (
	DiscountKindVolume = "volume"
	DiscountKindYearly = "yearly"
)

// DiscountDetail describes one discount that actually applied to a quote.
type DiscountDetail struct {
	Kind       string          `json:"kind"`
	Label      string          `json:"label"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// PriceQuote is the full breakdown for one unit count and billing cycle.
// Monetary fields are rounded to two decimals.
type PriceQuote struct {
	UnitCount            int64            `json:"unit_count"`
	BillingCycle         BillingCycle     `json:"billing_cycle,omitempty"`
	BasePrice            decimal.Decimal  `json:"base_price"`
	Subtotal             decimal.Decimal  `json:"subtotal"`
	VolumeDiscountInfo   VolumeTier       `json:"volume_discount_info"`
	VolumeDiscountAmount decimal.Decimal  `json:"volume_discount_amount"`
	YearlyDiscountAmount decimal.Decimal  `json:"yearly_discount_amount"`
	TotalDiscountAmount  decimal.Decimal  `json:"total_discount_amount"`
	FinalPrice           decimal.Decimal  `json:"final_price"`
	PricePerUnit         decimal.Decimal  `json:"price_per_unit"`
	Savings              decimal.Decimal  `json:"savings"`
	DiscountDetails      []DiscountDetail `json:"discount_details"`
}

// ZeroQuote is the "no quote yet" value returned for unit counts below one.
func ZeroQuote() PriceQuote {
	return PriceQuote{
		BasePrice:            decimal.Zero,
		Subtotal:             decimal.Zero,
		VolumeDiscountInfo:   VolumeTier{DiscountPercentage: decimal.Zero},
		VolumeDiscountAmount: decimal.Zero,
		YearlyDiscountAmount: decimal.Zero,
		TotalDiscountAmount:  decimal.Zero,
		FinalPrice:           decimal.Zero,
		PricePerUnit:         decimal.Zero,
		Savings:              decimal.Zero,
		DiscountDetails:      []DiscountDetail{},
	}
}

// IsZero reports whether q is the "no quote yet" value.
func (q PriceQuote) IsZero() bool {
	return q.UnitCount == 0 && q.FinalPrice.IsZero() && len(q.DiscountDetails) == 0
}

// Validation is the result of a unit count check.
type Validation struct {
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Value   int64  `json:"value,omitempty"`
}
