package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/medisub/internal/config"
)

const (
	keyCheckoutHospital = "ratelimit:checkout:%s"
	leaseCheckout       = "checkout:%s"

	defaultCheckoutLockTTL = 30 * time.Second
)

// CheckoutLimiter throttles order creation per hospital and serialises
// concurrent checkouts for the same hospital. A nil or disabled limiter
// allows everything.
type CheckoutLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	limit   Limit
	lockTTL time.Duration
}

func NewCheckoutLimiter(cfg config.Config, client *redis.Client) (*CheckoutLimiter, error) {
	if client == nil {
		return &CheckoutLimiter{}, nil
	}

	limit := Limit{Rate: cfg.RateLimit.CheckoutRate, Burst: cfg.RateLimit.CheckoutBurst}
	if err := limit.validate(); err != nil {
		return nil, fmt.Errorf("checkout rate limit: %w", err)
	}

	return &CheckoutLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		limit:   limit,
		lockTTL: defaultCheckoutLockTTL,
	}, nil
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CheckoutLimiter) AllowCheckout(ctx context.Context, hospitalID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyCheckoutHospital, strings.TrimSpace(hospitalID)), l.limit)
}

// LockHospital returns a release token, or ok=false when another checkout
// for the hospital holds the lock.
func (l *CheckoutLimiter) LockHospital(ctx context.Context, hospitalID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	lease, err := l.locker.Acquire(ctx, fmt.Sprintf(leaseCheckout, strings.TrimSpace(hospitalID)), l.lockTTL)
	if err != nil || lease == nil {
		return "", false, err
	}
	return lease.Token, true, nil
}

func (l *CheckoutLimiter) UnlockHospital(ctx context.Context, hospitalID, token string) error {
	if !l.Enabled() || token == "" {
		return nil
	}
	return l.locker.Release(ctx, &Lease{
		Key:   leaseKeyPrefix + fmt.Sprintf(leaseCheckout, strings.TrimSpace(hospitalID)),
		Token: token,
	})
}
