package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	"github.com/smallbiznis/medisub/internal/clock"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/medisub/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func paidOrder(id int64, units int64, cycle pricingdomain.BillingCycle, amount string, start time.Time) checkoutdomain.CheckoutOrder {
	end := start.AddDate(0, int(cycle.Months()), 0)
	return checkoutdomain.CheckoutOrder{
		ID:            snowflake.ID(id),
		HospitalID:    "h-1",
		Receipt:       "rcpt_" + snowflake.ID(id).String(),
		UnitCount:     units,
		BillingCycle:  cycle,
		Amount:        decimal.RequireFromString(amount),
		State:         checkoutdomain.StateCompleted,
		PaymentStatus: checkoutdomain.PaymentStatusSuccess,
		PeriodStart:   &start,
		PeriodEnd:     &end,
		CreatedAt:     start,
	}
}

func failedOrder(id int64, createdAt time.Time) checkoutdomain.CheckoutOrder {
	return checkoutdomain.CheckoutOrder{
		ID:            snowflake.ID(id),
		HospitalID:    "h-1",
		UnitCount:     9,
		BillingCycle:  pricingdomain.BillingCycleMonthly,
		Amount:        decimal.RequireFromString("40499.92"),
		State:         checkoutdomain.StateConfiguring,
		PaymentStatus: checkoutdomain.PaymentStatusFailed,
		FailureReason: "card declined",
		CreatedAt:     createdAt,
	}
}

func pendingOrder(id int64, state checkoutdomain.State, createdAt time.Time) checkoutdomain.CheckoutOrder {
	return checkoutdomain.CheckoutOrder{
		ID:            snowflake.ID(id),
		HospitalID:    "h-1",
		UnitCount:     3,
		BillingCycle:  pricingdomain.BillingCycleMonthly,
		Amount:        decimal.RequireFromString("14999.97"),
		State:         state,
		PaymentStatus: checkoutdomain.PaymentStatusPending,
		CreatedAt:     createdAt,
	}
}

func sampleHistory() []checkoutdomain.CheckoutOrder {
	return []checkoutdomain.CheckoutOrder{
		paidOrder(3, 10, pricingdomain.BillingCycleYearly, "475199.05", date(2025, 1, 1)),
		failedOrder(2, date(2024, 12, 20)),
		paidOrder(1, 8, pricingdomain.BillingCycleMonthly, "39999.92", date(2024, 12, 1)),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestBuildOverview_Active(t *testing.T) {
	overview := BuildOverview("h-1", sampleHistory(), date(2025, 6, 1))

	require.NotNil(t, overview.CurrentStatus)
	status := overview.CurrentStatus
	assert.Equal(t, subscriptiondomain.StatusActive, status.Status)
	assert.Equal(t, snowflake.ID(3), status.OrderID)
	assert.Equal(t, int64(10), status.DoctorCount)
	assert.Equal(t, pricingdomain.BillingCycleYearly, status.BillingCycle)
	assert.False(t, status.AutoRenew)
	assert.False(t, overview.NeedsRenewal)

	require.NotNil(t, overview.Usage)
	usage := overview.Usage
	assert.Equal(t, int64(365), usage.TotalDays)
	assert.Equal(t, int64(151), usage.DaysUsed)
	assert.Equal(t, int64(214), usage.RemainingDays)
	assertDecimal(t, "41.4", usage.PercentageUsed)
	assertDecimal(t, "58.6", usage.PercentageRemaining)
	assertDecimal(t, "1301.92", usage.DailyRate)
	assertDecimal(t, "130.19", usage.DailyRatePerDoctor)
	assertDecimal(t, "278609.85", usage.RemainingAmount)
	assertDecimal(t, "196589.20", usage.UsedAmount)

	history := overview.History
	assert.Equal(t, 3, history.Total)
	assert.Equal(t, 2, history.Successful)
	assert.Equal(t, 1, history.Failed)
	assert.Equal(t, 0, history.Pending)
	require.Len(t, history.Records, 3)
	assert.Equal(t, snowflake.ID(3), history.Records[0].OrderID)
	assert.Equal(t, "card declined", history.Records[1].FailureReason)

	require.NotNil(t, overview.DoctorTrends)
	assert.Equal(t, int64(10), overview.DoctorTrends.CurrentCount)
	assert.Equal(t, int64(8), overview.DoctorTrends.PreviousCount)
	assert.Equal(t, subscriptiondomain.TrendGrowing, overview.DoctorTrends.Trend)
	assertDecimal(t, "25", overview.DoctorTrends.Growth)

	require.NotNil(t, overview.BillingPerformance)
	perf := overview.BillingPerformance
	assert.Equal(t, pricingdomain.BillingCycleYearly, perf.CyclePreference)
	assertDecimal(t, "50", perf.RenewalRate)
	assert.Equal(t, int64(198), perf.AverageCycleDuration)
}

func TestBuildOverview_Expired(t *testing.T) {
	overview := BuildOverview("h-1", sampleHistory(), date(2026, 2, 1))

	require.NotNil(t, overview.CurrentStatus)
	assert.Equal(t, subscriptiondomain.StatusExpired, overview.CurrentStatus.Status)
	assert.True(t, overview.NeedsRenewal)

	usage := overview.Usage
	require.NotNil(t, usage)
	assert.Equal(t, int64(365), usage.DaysUsed)
	assert.Equal(t, int64(0), usage.RemainingDays)
	assertDecimal(t, "100", usage.PercentageUsed)
	assertDecimal(t, "0", usage.RemainingAmount)
	assertDecimal(t, "475199.05", usage.UsedAmount)
}

func TestBuildOverview_ExpiresAtPeriodEnd(t *testing.T) {
	orders := []checkoutdomain.CheckoutOrder{
		paidOrder(1, 2, pricingdomain.BillingCycleMonthly, "9999.98", date(2025, 1, 1)),
	}

	before := BuildOverview("h-1", orders, date(2025, 2, 1).Add(-time.Second))
	assert.Equal(t, subscriptiondomain.StatusActive, before.CurrentStatus.Status)
	assert.Equal(t, int64(31), before.Usage.DaysUsed)

	at := BuildOverview("h-1", orders, date(2025, 2, 1))
	assert.Equal(t, subscriptiondomain.StatusExpired, at.CurrentStatus.Status)
}

func TestBuildOverview_BeforeStartUsesNoDays(t *testing.T) {
	orders := []checkoutdomain.CheckoutOrder{
		paidOrder(1, 2, pricingdomain.BillingCycleMonthly, "9999.98", date(2025, 1, 1)),
	}
	overview := BuildOverview("h-1", orders, date(2024, 12, 31))
	assert.Equal(t, int64(0), overview.Usage.DaysUsed)
	assert.Equal(t, int64(31), overview.Usage.RemainingDays)
	assertDecimal(t, "9999.98", overview.Usage.RemainingAmount)
}

func TestBuildOverview_PendingOnly(t *testing.T) {
	orders := []checkoutdomain.CheckoutOrder{
		pendingOrder(2, checkoutdomain.StateAwaitingPayment, date(2025, 1, 2)),
		pendingOrder(1, checkoutdomain.StateConfiguring, date(2025, 1, 1)),
	}
	overview := BuildOverview("h-1", orders, date(2025, 1, 3))

	require.NotNil(t, overview.CurrentStatus)
	assert.Equal(t, subscriptiondomain.StatusPending, overview.CurrentStatus.Status)
	assert.Equal(t, snowflake.ID(2), overview.CurrentStatus.OrderID)
	assert.Nil(t, overview.CurrentStatus.StartDate)
	assert.Nil(t, overview.Usage)
	assert.Nil(t, overview.DoctorTrends)
	assert.Nil(t, overview.BillingPerformance)
	assert.True(t, overview.NeedsRenewal)
	assert.Equal(t, 2, overview.History.Pending)
}

func TestBuildOverview_DismissedOnlyHasNoStatus(t *testing.T) {
	orders := []checkoutdomain.CheckoutOrder{
		pendingOrder(1, checkoutdomain.StateConfiguring, date(2025, 1, 1)),
	}
	overview := BuildOverview("h-1", orders, date(2025, 1, 3))
	assert.Nil(t, overview.CurrentStatus)
	assert.True(t, overview.NeedsRenewal)
}

func TestBuildOverview_NoOrders(t *testing.T) {
	overview := BuildOverview("h-1", nil, date(2025, 1, 1))

	assert.Equal(t, "h-1", overview.HospitalID)
	assert.Nil(t, overview.CurrentStatus)
	assert.Nil(t, overview.Usage)
	assert.True(t, overview.NeedsRenewal)
	assert.Equal(t, 0, overview.History.Total)
	assert.NotNil(t, overview.History.Records)
	assert.Empty(t, overview.History.Records)
}

func TestBuildTrends(t *testing.T) {
	start := date(2025, 1, 1)
	tests := []struct {
		name    string
		counts  []int64
		trend   subscriptiondomain.Trend
		growth  string
		prevHas int64
	}{
		{name: "single order", counts: []int64{5}, trend: subscriptiondomain.TrendStable, growth: "0", prevHas: 5},
		{name: "declining", counts: []int64{6, 8}, trend: subscriptiondomain.TrendDeclining, growth: "-25", prevHas: 8},
		{name: "stable", counts: []int64{7, 7}, trend: subscriptiondomain.TrendStable, growth: "0", prevHas: 7},
		{name: "thirds", counts: []int64{4, 3}, trend: subscriptiondomain.TrendGrowing, growth: "33.3", prevHas: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paid := make([]checkoutdomain.CheckoutOrder, 0, len(tt.counts))
			for i, n := range tt.counts {
				paid = append(paid, paidOrder(int64(i+1), n, pricingdomain.BillingCycleMonthly, "100", start))
			}
			trends := buildTrends(paid)
			assert.Equal(t, tt.trend, trends.Trend)
			assert.Equal(t, tt.prevHas, trends.PreviousCount)
			assertDecimal(t, tt.growth, trends.Growth)
		})
	}
}

func TestBuildPerformance(t *testing.T) {
	start := date(2025, 1, 1)

	monthlyHeavy := []checkoutdomain.CheckoutOrder{
		paidOrder(3, 1, pricingdomain.BillingCycleMonthly, "100", start.AddDate(0, 2, 0)),
		paidOrder(2, 1, pricingdomain.BillingCycleMonthly, "100", start.AddDate(0, 1, 0)),
		paidOrder(1, 1, pricingdomain.BillingCycleYearly, "100", start),
	}
	perf := buildPerformance(monthlyHeavy, 0)
	assert.Equal(t, pricingdomain.BillingCycleMonthly, perf.CyclePreference)
	assertDecimal(t, "100", perf.RenewalRate)

	first := buildPerformance(monthlyHeavy[2:], 0)
	assert.Equal(t, pricingdomain.BillingCycleYearly, first.CyclePreference)
	assertDecimal(t, "0", first.RenewalRate)
	assert.Equal(t, int64(365), first.AverageCycleDuration)

	withFailures := buildPerformance(monthlyHeavy, 1)
	assertDecimal(t, "66.7", withFailures.RenewalRate)
}

type stubCheckout struct {
	checkoutdomain.Service
	orders []checkoutdomain.CheckoutOrder
	asked  string
}

func (s *stubCheckout) ListOrders(ctx context.Context, hospitalID string) ([]checkoutdomain.CheckoutOrder, error) {
	s.asked = hospitalID
	return s.orders, nil
}

func TestService_Overview(t *testing.T) {
	stub := &stubCheckout{orders: sampleHistory()}
	svc := New(Params{
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(date(2025, 6, 1)),
		Checkout: stub,
	})

	overview, err := svc.Overview(context.Background(), " h-1 ")
	require.NoError(t, err)
	assert.Equal(t, "h-1", stub.asked)
	assert.Equal(t, subscriptiondomain.StatusActive, overview.CurrentStatus.Status)

	_, err = svc.Overview(context.Background(), "")
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidHospital)
}
