package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ComputeQuote prices unitCount units on the given cycle.
//
// This function is PURE:
// - No side effects
// - No mutation of cfg
// - Fully deterministic
//
// Unit counts below one yield the zero quote. Rounding happens only on the
// returned fields; every intermediate value keeps full precision.
func ComputeQuote(unitCount int64, cycle pricingdomain.BillingCycle, cfg pricingdomain.PricingConfig) (pricingdomain.PriceQuote, error) {
	if !cycle.Valid() {
		return pricingdomain.PriceQuote{}, fmt.Errorf("billing cycle %q: %w", cycle, pricingdomain.ErrInvalidBillingCycle)
	}
	if unitCount < pricingdomain.DefaultMinUnits {
		return pricingdomain.ZeroQuote(), nil
	}

	units := decimal.NewFromInt(unitCount)
	months := decimal.NewFromInt(cycle.Months())

	basePrice := cfg.BasePricePerUnit
	subtotal := basePrice.Mul(units)

	tier := SelectVolumeTier(cfg.VolumeDiscountTiers, unitCount)
	volumeDiscount := percentOf(subtotal, tier.DiscountPercentage)
	afterVolume := subtotal.Sub(volumeDiscount)

	finalPrice := afterVolume
	yearlyDiscount := decimal.Zero
	if cycle == pricingdomain.BillingCycleYearly {
		monthlyYearlyDiscount := percentOf(afterVolume, cfg.YearlyDiscountPercentage)
		finalPrice = afterVolume.Sub(monthlyYearlyDiscount).Mul(months)
		// reported as the saving over the whole year
		yearlyDiscount = monthlyYearlyDiscount.Mul(months)
	}
	if finalPrice.IsNegative() {
		finalPrice = decimal.Zero
	}

	pricePerUnit := finalPrice.Div(units)
	savings := subtotal.Mul(months).Sub(finalPrice)

	details := make([]pricingdomain.DiscountDetail, 0, 2)
	if tier.DiscountPercentage.IsPositive() && volumeDiscount.IsPositive() {
		details = append(details, pricingdomain.DiscountDetail{
			Kind:       pricingdomain.DiscountKindVolume,
			Label:      fmt.Sprintf("Volume discount (%s)", tier.Label),
			Percentage: tier.DiscountPercentage,
			Amount:     round(volumeDiscount),
		})
	}
	if yearlyDiscount.IsPositive() {
		details = append(details, pricingdomain.DiscountDetail{
			Kind:       pricingdomain.DiscountKindYearly,
			Label:      "Annual billing discount",
			Percentage: cfg.YearlyDiscountPercentage,
			Amount:     round(yearlyDiscount),
		})
	}

	return pricingdomain.PriceQuote{
		UnitCount:            unitCount,
		BillingCycle:         cycle,
		BasePrice:            round(basePrice),
		Subtotal:             round(subtotal),
		VolumeDiscountInfo:   tier,
		VolumeDiscountAmount: round(volumeDiscount),
		YearlyDiscountAmount: round(yearlyDiscount),
		TotalDiscountAmount:  round(volumeDiscount.Add(yearlyDiscount)),
		FinalPrice:           round(finalPrice),
		PricePerUnit:         round(pricePerUnit),
		Savings:              round(savings),
		DiscountDetails:      details,
	}, nil
}

// SelectVolumeTier returns the tier with the highest discount among those
// whose threshold unitCount meets, or the zero-discount sentinel.
func SelectVolumeTier(tiers []pricingdomain.VolumeTier, unitCount int64) pricingdomain.VolumeTier {
	best := pricingdomain.VolumeTier{DiscountPercentage: decimal.Zero}
	found := false
	for _, tier := range tiers {
		if unitCount < tier.MinUnits {
			continue
		}
		if !found || tier.DiscountPercentage.GreaterThan(best.DiscountPercentage) {
			best = tier
			found = true
		}
	}
	return best
}

func percentOf(amount, percentage decimal.Decimal) decimal.Decimal {
	return amount.Mul(percentage).Div(hundred)
}

func round(v decimal.Decimal) decimal.Decimal {
	return v.Round(moneyPlaces)
}
