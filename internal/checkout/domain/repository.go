package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *CheckoutOrder) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CheckoutOrder, error)
	ListByHospital(ctx context.Context, db *gorm.DB, hospitalID string) ([]CheckoutOrder, error)
	// ListInStateBefore returns up to limit orders that have sat in state
	// since before the cutoff, least recently updated first.
	ListInStateBefore(ctx context.Context, db *gorm.DB, state State, before time.Time, limit int) ([]CheckoutOrder, error)
	// CompareAndSwapState persists order only if its stored state is still
	// from. It reports false when another writer got there first.
	CompareAndSwapState(ctx context.Context, db *gorm.DB, order *CheckoutOrder, from State) (bool, error)
}
