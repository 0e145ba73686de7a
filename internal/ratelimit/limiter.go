package ratelimit

import (
	"context"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

// RateLimiter throttles provider calls per delivery channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.Channel) (bool, error)
	Wait(ctx context.Context, channel domain.Channel) error
}

// Limits holds requests-per-second budgets. Default applies to any channel
// without an override; non-positive values fall back to DefaultLimit.
type Limits struct {
	Default    int
	PerChannel map[domain.Channel]int
}

const DefaultLimit = 100

func (l Limits) For(channel domain.Channel) int {
	if limit, ok := l.PerChannel[channel]; ok && limit > 0 {
		return limit
	}
	if l.Default > 0 {
		return l.Default
	}
	return DefaultLimit
}
