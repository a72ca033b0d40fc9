package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() checkoutdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *checkoutdomain.CheckoutOrder) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*checkoutdomain.CheckoutOrder, error) {
	var order checkoutdomain.CheckoutOrder
	err := db.WithContext(ctx).Where("id = ?", id).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) ListByHospital(ctx context.Context, db *gorm.DB, hospitalID string) ([]checkoutdomain.CheckoutOrder, error) {
	var orders []checkoutdomain.CheckoutOrder
	err := db.WithContext(ctx).
		Where("hospital_id = ?", hospitalID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListInStateBefore(ctx context.Context, db *gorm.DB, state checkoutdomain.State, before time.Time, limit int) ([]checkoutdomain.CheckoutOrder, error) {
	var orders []checkoutdomain.CheckoutOrder
	err := db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", state, before).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) CompareAndSwapState(ctx context.Context, db *gorm.DB, order *checkoutdomain.CheckoutOrder, from checkoutdomain.State) (bool, error) {
	result := db.WithContext(ctx).
		Model(&checkoutdomain.CheckoutOrder{}).
		Where("id = ? AND state = ?", order.ID, from).
		Updates(map[string]any{
			"state":                order.State,
			"payment_status":       order.PaymentStatus,
			"gateway_payment_id":   order.GatewayPaymentID,
			"failure_reason":       order.FailureReason,
			"verification_payload": order.VerificationPayload,
			"period_start":         order.PeriodStart,
			"period_end":           order.PeriodEnd,
			"updated_at":           order.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
