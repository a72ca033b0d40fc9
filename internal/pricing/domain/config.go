package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const CurrencyINR = "INR"

var hundred = decimal.NewFromInt(100)

// DefaultPricingConfig is the table used when no pricing file is present.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		BasePricePerUnit:         decimal.RequireFromString("4999.99"),
		YearlyDiscountPercentage: decimal.NewFromInt(12),
		VolumeDiscountTiers: []VolumeTier{
			{MinUnits: 10, DiscountPercentage: decimal.NewFromInt(10), Label: "10+ doctors"},
			{MinUnits: 20, DiscountPercentage: decimal.NewFromInt(15), Label: "20+ doctors"},
			{MinUnits: 50, DiscountPercentage: decimal.NewFromInt(20), Label: "50+ doctors"},
		},
		Currency: CurrencyINR,
		MaxUnits: DefaultMaxUnits,
	}
}

// Normalize fills defaults and orders tiers by threshold. The receiver is
// copied, the caller's tier slice is left untouched.
func (c PricingConfig) Normalize() PricingConfig {
	out := c
	out.Currency = strings.ToUpper(strings.TrimSpace(out.Currency))
	if out.Currency == "" {
		out.Currency = CurrencyINR
	}
	if out.MaxUnits <= 0 {
		out.MaxUnits = DefaultMaxUnits
	}
	out.VolumeDiscountTiers = append([]VolumeTier(nil), c.VolumeDiscountTiers...)
	for i := range out.VolumeDiscountTiers {
		out.VolumeDiscountTiers[i].Label = strings.TrimSpace(out.VolumeDiscountTiers[i].Label)
	}
	sort.SliceStable(out.VolumeDiscountTiers, func(i, j int) bool {
		return out.VolumeDiscountTiers[i].MinUnits < out.VolumeDiscountTiers[j].MinUnits
	})
	return out
}

// Validate rejects tables the calculator cannot price deterministically.
// Two tiers with the same discount could tie for the maximum, so duplicate
// discounts are refused here instead of being resolved per quote.
func (c PricingConfig) Validate() error {
	if !c.BasePricePerUnit.IsPositive() {
		return ErrInvalidBasePrice
	}
	if !validPercentage(c.YearlyDiscountPercentage) {
		return fmt.Errorf("yearly discount %s: %w", c.YearlyDiscountPercentage, ErrInvalidPercentage)
	}

	seenUnits := make(map[int64]struct{}, len(c.VolumeDiscountTiers))
	seenDiscounts := make(map[string]struct{}, len(c.VolumeDiscountTiers))
	for _, tier := range c.VolumeDiscountTiers {
		if tier.MinUnits < DefaultMinUnits {
			return fmt.Errorf("tier %q min units %d: %w", tier.Label, tier.MinUnits, ErrInvalidTier)
		}
		if !validPercentage(tier.DiscountPercentage) {
			return fmt.Errorf("tier %q discount %s: %w", tier.Label, tier.DiscountPercentage, ErrInvalidPercentage)
		}
		if strings.TrimSpace(tier.Label) == "" {
			return fmt.Errorf("tier at %d units has no label: %w", tier.MinUnits, ErrInvalidTier)
		}
		if _, ok := seenUnits[tier.MinUnits]; ok {
			return fmt.Errorf("min units %d: %w", tier.MinUnits, ErrDuplicateTier)
		}
		seenUnits[tier.MinUnits] = struct{}{}

		key := tier.DiscountPercentage.String()
		if _, ok := seenDiscounts[key]; ok {
			return fmt.Errorf("discount %s%%: %w", key, ErrDuplicateTier)
		}
		seenDiscounts[key] = struct{}{}
	}
	return nil
}

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThan(hundred)
}
