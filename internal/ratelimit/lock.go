package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrInvalidLease      = errors.New("invalid_lock_lease")
)

// compare-and-delete so a lease that expired and was re-acquired elsewhere
// is never released by its previous holder
const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const leaseKeyPrefix = "lock:"

// Lease is an exclusive, expiring claim on a name.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Locker hands out leases backed by redis SET NX.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// NewLocker returns nil when client is nil.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(releaseLeaseScript),
	}
}

// Acquire claims name for ttl. It returns a nil lease and no error when
// someone else holds it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockNotConfigured
	}
	name = strings.TrimSpace(name)
	if name == "" || ttl <= 0 {
		return nil, ErrInvalidLease
	}

	lease := &Lease{
		Key:       leaseKeyPrefix + name,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl),
	}
	ok, err := l.client.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

// Release gives the lease back. Releasing a nil or already expired lease
// is a no-op.
func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if l == nil || l.client == nil || lease == nil {
		return nil
	}
	if lease.Key == "" || lease.Token == "" {
		return ErrInvalidLease
	}
	return l.release.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}
