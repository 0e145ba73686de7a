package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "notify:ratelimit"
	backoffStep        = 10 * time.Millisecond
	backoffMax         = 50 * time.Millisecond
	windowSeconds      = 1
)

// Fixed one-second window: the first INCR in a window sets its expiry.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*ChannelRateLimiter)(nil)

// ChannelRateLimiter caps provider calls per channel across every instance
// sharing the Redis server.
type ChannelRateLimiter struct {
	client *goredis.Client
	limits ratelimit.Limits
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewChannelRateLimiter(client *goredis.Client, limits ratelimit.Limits) (*ChannelRateLimiter, error) {
	return newChannelRateLimiter(client, limits, time.Now, sleepWithContext)
}

func newChannelRateLimiter(
	client *goredis.Client,
	limits ratelimit.Limits,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*ChannelRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &ChannelRateLimiter{
		client: client,
		limits: limits,
		now:    nowFn,
		sleep:  sleepFn,
	}, nil
}

func (r *ChannelRateLimiter) Allow(ctx context.Context, channel domain.Channel) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	if !channel.IsValid() {
		return false, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}

	key := fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, channel, r.now().UTC().Unix())
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limits.For(channel), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until the channel has budget in the current window or ctx ends.
func (r *ChannelRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
