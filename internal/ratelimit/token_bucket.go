package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLimiterNotConfigured = errors.New("rate_limiter_not_configured")
	ErrInvalidLimit         = errors.New("invalid_rate_limit")
)

// Refill runs server side against redis TIME so replicas with skewed clocks
// share one bucket. Tokens travel back as a string because lua numbers are
// truncated to integers in replies.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
  tokens = burst
else
  local elapsed = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`

// Limit is a refill rate in tokens per second and a bucket capacity.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) validate() error {
	if l.Rate <= 0 || math.IsNaN(l.Rate) || math.IsInf(l.Rate, 0) {
		return fmt.Errorf("rate %v: %w", l.Rate, ErrInvalidLimit)
	}
	if l.Burst <= 0 {
		return fmt.Errorf("burst %d: %w", l.Burst, ErrInvalidLimit)
	}
	return nil
}

// idleTTL keeps a bucket around for twice the time it takes to refill.
func (l Limit) idleTTL() time.Duration {
	if l.Rate <= 0 || l.Burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(l.Burst)/l.Rate*2))
	return time.Duration(seconds) * time.Second
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Take removes one token from the bucket at key.
func (t *TokenBucket) Take(ctx context.Context, key string, limit Limit) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, ErrLimiterNotConfigured
	}
	if strings.TrimSpace(key) == "" {
		return Decision{}, fmt.Errorf("empty key: %w", ErrInvalidLimit)
	}
	if err := limit.validate(); err != nil {
		return Decision{}, err
	}

	reply, err := t.script.Run(ctx, t.client, []string{key},
		limit.Rate,
		limit.Burst,
		limit.idleTTL().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	return decide(reply, limit)
}

func decide(reply []any, limit Limit) (Decision, error) {
	if len(reply) < 3 {
		return Decision{}, fmt.Errorf("token bucket reply has %d fields", len(reply))
	}
	allowed, ok := reply[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("token bucket reply: allowed is %T", reply[0])
	}
	raw, _ := reply[1].(string)
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket reply: tokens %q: %w", raw, err)
	}
	nowMillis, _ := reply[2].(int64)

	d := Decision{
		Allowed:   allowed == 1,
		Limit:     limit.Burst,
		Remaining: int(tokens),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration((1 - tokens) / limit.Rate * float64(time.Second))
	}
	d.ResetTime = time.UnixMilli(nowMillis).Add(d.RetryAfter)
	return d, nil
}
