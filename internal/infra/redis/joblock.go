package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	jobLockKeyPrefix  = "notify:joblock"
	defaultJobLockTTL = 10 * time.Minute
)

// Deletes the key only while it still holds the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockHeld is returned when another holder owns the lease.
var ErrLockHeld = errors.New("job lock held by another instance")

// JobLock hands out short-lived leases so a batch job runs on at most one
// instance at a time.
type JobLock struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewJobLock(client *goredis.Client, ttl time.Duration) (*JobLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultJobLockTTL
	}
	return &JobLock{client: client, ttl: ttl}, nil
}

// Lease is a held job lock.
type Lease struct {
	client *goredis.Client
	key    string
	token  string
}

// Acquire takes the lease for job or returns ErrLockHeld.
func (l *JobLock) Acquire(ctx context.Context, job string) (*Lease, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return nil, fmt.Errorf("job name is required")
	}

	key := fmt.Sprintf("%s:%s", jobLockKeyPrefix, job)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lease{client: l.client, key: key, token: token}, nil
}

// Release drops the lease if it has not expired and been taken over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release job lock: %w", err)
	}
	return nil
}

// TryLock acquires the lease for job and returns its release func. held is
// true when another instance owns the lease.
func (l *JobLock) TryLock(ctx context.Context, job string) (release func(context.Context) error, held bool, err error) {
	lease, err := l.Acquire(ctx, job)
	if errors.Is(err, ErrLockHeld) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lease.Release, false, nil
}
