package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// CheckoutOrder is one gateway payment order and, once paid, the billing
// record for the period it bought.
type CheckoutOrder struct {
	ID                  snowflake.ID               `gorm:"primaryKey" json:"id"`
	HospitalID          string                     `gorm:"type:varchar(64);not null;index" json:"hospital_id"`
	Receipt             string                     `gorm:"type:varchar(64);not null;uniqueIndex" json:"receipt"`
	Gateway             string                     `gorm:"type:varchar(32);not null" json:"gateway"`
	GatewayOrderID      string                     `gorm:"type:varchar(64);index" json:"gateway_order_id"`
	UnitCount           int64                      `gorm:"not null" json:"unit_count"`
	BillingCycle        pricingdomain.BillingCycle `gorm:"type:varchar(16);not null" json:"billing_cycle"`
	Amount              decimal.Decimal            `gorm:"type:varchar(32);not null" json:"amount"`
	AmountMinor         int64                      `gorm:"not null" json:"amount_minor"`
	Currency            string                     `gorm:"type:varchar(3);not null" json:"currency"`
	State               State                      `gorm:"type:varchar(32);not null;index:idx_checkout_orders_state_updated,priority:1" json:"state"`
	PaymentStatus       PaymentStatus              `gorm:"type:varchar(16);not null" json:"payment_status"`
	GatewayPaymentID    string                     `gorm:"type:varchar(64)" json:"gateway_payment_id,omitempty"`
	FailureReason       string                     `gorm:"type:text" json:"failure_reason,omitempty"`
	VerificationPayload datatypes.JSON             `json:"verification_payload,omitempty"`
	PeriodStart         *time.Time                 `json:"period_start,omitempty"`
	PeriodEnd           *time.Time                 `json:"period_end,omitempty"`
	CreatedAt           time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time                  `gorm:"not null;index:idx_checkout_orders_state_updated,priority:2" json:"updated_at"`
}

func (CheckoutOrder) TableName() string {
	return "checkout_orders"
}

func (o CheckoutOrder) Paid() bool {
	return o.PaymentStatus == PaymentStatusSuccess && o.PeriodStart != nil && o.PeriodEnd != nil
}

// GatewayCheckout is what the browser widget needs to open the payment.
type GatewayCheckout struct {
	Provider       string `json:"provider"`
	KeyID          string `json:"key_id"`
	GatewayOrderID string `json:"order_id"`
	AmountMinor    int64  `json:"amount"`
	DisplayAmount  string `json:"display_amount"`
	Currency       string `json:"currency"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Description    string `json:"description"`
}

type StartCheckoutRequest struct {
	HospitalID   string
	HospitalName string
	ContactEmail string
	UnitCount    any
	BillingCycle string
}

type StartCheckoutResponse struct {
	Order    CheckoutOrder            `json:"order"`
	Quote    pricingdomain.PriceQuote `json:"quote"`
	Checkout GatewayCheckout          `json:"checkout"`
}

type ConfirmPaymentRequest struct {
	GatewayOrderID string `json:"order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}
