package service

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/medisub/internal/subscription/domain"
)

const day = 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// BuildOverview derives the subscription picture from a hospital's orders,
// newest first, as of now.
func BuildOverview(hospitalID string, orders []checkoutdomain.CheckoutOrder, now time.Time) subscriptiondomain.Overview {
	paid := make([]checkoutdomain.CheckoutOrder, 0, len(orders))
	for _, o := range orders {
		if o.Paid() {
			paid = append(paid, o)
		}
	}

	overview := subscriptiondomain.Overview{
		HospitalID: hospitalID,
		History:    buildHistory(orders),
	}

	overview.CurrentStatus = currentStatus(orders, paid, now)
	if len(paid) > 0 {
		overview.Usage = buildUsage(paid[0], now)
		overview.DoctorTrends = buildTrends(paid)
		overview.BillingPerformance = buildPerformance(paid, overview.History.Failed)
	}

	status := overview.CurrentStatus
	overview.NeedsRenewal = status == nil ||
		status.Status == subscriptiondomain.StatusExpired ||
		status.Status == subscriptiondomain.StatusPending

	return overview
}

func currentStatus(orders, paid []checkoutdomain.CheckoutOrder, now time.Time) *subscriptiondomain.CurrentStatus {
	if len(paid) > 0 {
		o := paid[0]
		status := subscriptiondomain.StatusActive
		if !now.Before(*o.PeriodEnd) {
			status = subscriptiondomain.StatusExpired
		}
		return &subscriptiondomain.CurrentStatus{
			OrderID:       o.ID,
			Status:        status,
			PaymentStatus: o.PaymentStatus,
			TotalPrice:    o.Amount,
			DoctorCount:   o.UnitCount,
			BillingCycle:  o.BillingCycle,
			StartDate:     o.PeriodStart,
			EndDate:       o.PeriodEnd,
		}
	}

	for _, o := range orders {
		if o.State != checkoutdomain.StateAwaitingPayment && o.State != checkoutdomain.StateVerifying {
			continue
		}
		return &subscriptiondomain.CurrentStatus{
			OrderID:       o.ID,
			Status:        subscriptiondomain.StatusPending,
			PaymentStatus: o.PaymentStatus,
			TotalPrice:    o.Amount,
			DoctorCount:   o.UnitCount,
			BillingCycle:  o.BillingCycle,
		}
	}
	return nil
}

func buildUsage(o checkoutdomain.CheckoutOrder, now time.Time) *subscriptiondomain.Usage {
	start, end := *o.PeriodStart, *o.PeriodEnd
	totalDays := int64(math.Round(end.Sub(start).Hours() / 24))
	if totalDays <= 0 {
		return &subscriptiondomain.Usage{
			PercentageUsed:      decimal.Zero,
			PercentageRemaining: decimal.Zero,
			DailyRate:           decimal.Zero,
			DailyRatePerDoctor:  decimal.Zero,
			RemainingAmount:     decimal.Zero,
			UsedAmount:          o.Amount.Round(2),
		}
	}

	daysUsed := int64(0)
	if elapsed := now.Sub(start); elapsed > 0 {
		daysUsed = int64(math.Ceil(float64(elapsed) / float64(day)))
	}
	daysUsed = min(daysUsed, totalDays)
	remainingDays := totalDays - daysUsed

	total := decimal.NewFromInt(totalDays)
	used := decimal.NewFromInt(daysUsed)
	remaining := decimal.NewFromInt(remainingDays)

	dailyRate := o.Amount.Div(total)
	dailyPerDoctor := decimal.Zero
	if o.UnitCount > 0 {
		dailyPerDoctor = dailyRate.Div(decimal.NewFromInt(o.UnitCount))
	}
	remainingAmount := o.Amount.Mul(remaining).Div(total)

	return &subscriptiondomain.Usage{
		TotalDays:           totalDays,
		DaysUsed:            daysUsed,
		RemainingDays:       remainingDays,
		PercentageUsed:      used.Mul(hundred).Div(total).Round(1),
		PercentageRemaining: remaining.Mul(hundred).Div(total).Round(1),
		DailyRate:           dailyRate.Round(2),
		DailyRatePerDoctor:  dailyPerDoctor.Round(2),
		RemainingAmount:     remainingAmount.Round(2),
		UsedAmount:          o.Amount.Sub(remainingAmount).Round(2),
	}
}

func buildHistory(orders []checkoutdomain.CheckoutOrder) subscriptiondomain.HistorySummary {
	summary := subscriptiondomain.HistorySummary{
		Total:   len(orders),
		Records: make([]subscriptiondomain.HistoryRecord, 0, len(orders)),
	}
	for _, o := range orders {
		switch o.PaymentStatus {
		case checkoutdomain.PaymentStatusSuccess:
			summary.Successful++
		case checkoutdomain.PaymentStatusFailed:
			summary.Failed++
		case checkoutdomain.PaymentStatusPending:
			summary.Pending++
		}
		summary.Records = append(summary.Records, subscriptiondomain.HistoryRecord{
			OrderID:       o.ID,
			Receipt:       o.Receipt,
			DoctorCount:   o.UnitCount,
			BillingCycle:  o.BillingCycle,
			Amount:        o.Amount,
			PaymentStatus: o.PaymentStatus,
			FailureReason: o.FailureReason,
			PeriodStart:   o.PeriodStart,
			PeriodEnd:     o.PeriodEnd,
			CreatedAt:     o.CreatedAt,
		})
	}
	return summary
}

// buildTrends compares the two most recent paid orders. A single paid
// order is its own predecessor.
func buildTrends(paid []checkoutdomain.CheckoutOrder) *subscriptiondomain.DoctorTrends {
	current := paid[0].UnitCount
	previous := current
	if len(paid) > 1 {
		previous = paid[1].UnitCount
	}

	trend := subscriptiondomain.TrendStable
	switch {
	case current > previous:
		trend = subscriptiondomain.TrendGrowing
	case current < previous:
		trend = subscriptiondomain.TrendDeclining
	}

	growth := decimal.Zero
	if previous > 0 {
		growth = decimal.NewFromInt(current - previous).Mul(hundred).Div(decimal.NewFromInt(previous)).Round(1)
	}

	return &subscriptiondomain.DoctorTrends{
		CurrentCount:  current,
		PreviousCount: previous,
		Trend:         trend,
		Growth:        growth,
	}
}

func buildPerformance(paid []checkoutdomain.CheckoutOrder, failed int) *subscriptiondomain.BillingPerformance {
	var monthly, yearly int
	var totalDays float64
	for _, o := range paid {
		if o.BillingCycle == pricingdomain.BillingCycleYearly {
			yearly++
		} else {
			monthly++
		}
		totalDays += o.PeriodEnd.Sub(*o.PeriodStart).Hours() / 24
	}

	preference := pricingdomain.BillingCycleYearly
	if monthly > yearly {
		preference = pricingdomain.BillingCycleMonthly
	}

	renewals := len(paid) - 1
	rate := decimal.Zero
	if attempts := renewals + failed; attempts > 0 {
		rate = decimal.NewFromInt(int64(renewals)).Mul(hundred).Div(decimal.NewFromInt(int64(attempts))).Round(1)
	}

	return &subscriptiondomain.BillingPerformance{
		CyclePreference:      preference,
		RenewalRate:          rate,
		AverageCycleDuration: int64(math.Round(totalDays / float64(len(paid)))),
	}
}
