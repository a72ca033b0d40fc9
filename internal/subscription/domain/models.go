package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusPending Status = "PENDING"
)

type Trend string

const (
	TrendGrowing   Trend = "GROWING"
	TrendDeclining Trend = "DECLINING"
	TrendStable    Trend = "STABLE"
)

// CurrentStatus describes the order the hospital is currently subscribed
// through. Renewals are manual, so AutoRenew is always false.
type CurrentStatus struct {
	OrderID       snowflake.ID                 `json:"order_id"`
	Status        Status                       `json:"status"`
	PaymentStatus checkoutdomain.PaymentStatus `json:"payment_status"`
	TotalPrice    decimal.Decimal              `json:"total_price"`
	DoctorCount   int64                        `json:"doctor_count"`
	BillingCycle  pricingdomain.BillingCycle   `json:"billing_cycle"`
	StartDate     *time.Time                   `json:"start_date,omitempty"`
	EndDate       *time.Time                   `json:"end_date,omitempty"`
	AutoRenew     bool                         `json:"auto_renew"`
}

type Usage struct {
	TotalDays           int64           `json:"total_days"`
	DaysUsed            int64           `json:"days_used"`
	RemainingDays       int64           `json:"remaining_days"`
	PercentageUsed      decimal.Decimal `json:"percentage_used"`
	PercentageRemaining decimal.Decimal `json:"percentage_remaining"`
	DailyRate           decimal.Decimal `json:"daily_rate"`
	DailyRatePerDoctor  decimal.Decimal `json:"daily_rate_per_doctor"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
	UsedAmount          decimal.Decimal `json:"used_amount"`
}

type HistoryRecord struct {
	OrderID       snowflake.ID                 `json:"order_id"`
	Receipt       string                       `json:"receipt"`
	DoctorCount   int64                        `json:"doctor_count"`
	BillingCycle  pricingdomain.BillingCycle   `json:"billing_cycle"`
	Amount        decimal.Decimal              `json:"amount"`
	PaymentStatus checkoutdomain.PaymentStatus `json:"payment_status"`
	FailureReason string                       `json:"failure_reason,omitempty"`
	PeriodStart   *time.Time                   `json:"period_start,omitempty"`
	PeriodEnd     *time.Time                   `json:"period_end,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
}

type HistorySummary struct {
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Pending    int             `json:"pending"`
	Records    []HistoryRecord `json:"records"`
}

type DoctorTrends struct {
	CurrentCount  int64           `json:"current_count"`
	PreviousCount int64           `json:"previous_count"`
	Trend         Trend           `json:"trend"`
	Growth        decimal.Decimal `json:"growth"`
}

type BillingPerformance struct {
	CyclePreference      pricingdomain.BillingCycle `json:"cycle_preference"`
	RenewalRate          decimal.Decimal            `json:"renewal_rate"`
	AverageCycleDuration int64                      `json:"average_cycle_duration"`
}

type Overview struct {
	HospitalID         string              `json:"hospital_id"`
	CurrentStatus      *CurrentStatus      `json:"current_status"`
	Usage              *Usage              `json:"usage"`
	History            HistorySummary      `json:"history"`
	DoctorTrends       *DoctorTrends       `json:"doctor_trends"`
	BillingPerformance *BillingPerformance `json:"billing_performance"`
	NeedsRenewal       bool                `json:"needs_renewal"`
}
