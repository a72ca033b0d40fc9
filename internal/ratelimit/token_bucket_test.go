package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_ValidatesArguments(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Take(context.Background(), "k", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)

	_, client := newMiniredisClient(t)
	bucket := NewTokenBucket(client)

	_, err = bucket.Take(context.Background(), "", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = bucket.Take(context.Background(), "k", Limit{Rate: 0, Burst: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = bucket.Take(context.Background(), "k", Limit{Rate: 1, Burst: 0})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestTokenBucket_ReportsRemaining(t *testing.T) {
	_, client := newMiniredisClient(t)
	bucket := NewTokenBucket(client)

	d, err := bucket.Take(context.Background(), "bucket:a", Limit{Rate: 0.001, Burst: 5})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, 4, d.Remaining)
	assert.Zero(t, d.RetryAfter)
}

func TestTokenBucket_RetryAfterWhenEmpty(t *testing.T) {
	_, client := newMiniredisClient(t)
	bucket := NewTokenBucket(client)
	limit := Limit{Rate: 0.5, Burst: 1}

	_, err := bucket.Take(context.Background(), "bucket:b", limit)
	require.NoError(t, err)

	d, err := bucket.Take(context.Background(), "bucket:b", limit)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 2*time.Second)
}

func TestLimitIdleTTL(t *testing.T) {
	assert.Equal(t, time.Second, Limit{}.idleTTL())
	assert.Equal(t, 10*time.Second, Limit{Rate: 1, Burst: 5}.idleTTL())
	assert.Equal(t, time.Second, Limit{Rate: 100, Burst: 1}.idleTTL())
}

func TestDecideRejectsMalformedReply(t *testing.T) {
	_, err := decide([]any{int64(1)}, Limit{Rate: 1, Burst: 1})
	assert.Error(t, err)

	_, err = decide([]any{"1", "0", int64(0)}, Limit{Rate: 1, Burst: 1})
	assert.Error(t, err)

	_, err = decide([]any{int64(1), "x", int64(0)}, Limit{Rate: 1, Burst: 1})
	assert.Error(t, err)
}
