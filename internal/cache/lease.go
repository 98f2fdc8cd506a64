// internal/cache/lease.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"business-empire/internal/common/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	leaseKeyPrefix  = "settle:lease:"
	markerKeyPrefix = "settle:done:"

	// markerTTL keeps completion markers around long enough for late
	// duplicate triggers, then lets them expire.
	markerTTL = 48 * time.Hour

	pollInterval = 500 * time.Millisecond
)

// releaseScript deletes the lease only if the caller still owns it, so a
// process whose lease expired cannot delete a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// DateLock serializes settlement runs across processes with a leased key
// per date in Redis.
type DateLock struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewDateLock(client *redis.Client, ttl time.Duration, log logger.Logger) *DateLock {
	return &DateLock{client: client, ttl: ttl, logger: log}
}

// Acquire tries to take the lease for a date. On success it returns the
// owner token needed to release it. ok is false when another process holds
// the lease.
func (d *DateLock) Acquire(ctx context.Context, date string) (token string, ok bool, err error) {
	token = uuid.NewString()

	ok, err = d.client.SetNX(ctx, leaseKeyPrefix+date, token, d.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("lease acquire failed: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	d.logger.Debug("acquired settlement lease", map[string]interface{}{
		"date":  date,
		"token": token,
		"ttl":   d.ttl.String(),
	})
	return token, true, nil
}

// Release gives the lease back if this process still owns it.
func (d *DateLock) Release(ctx context.Context, date, token string) error {
	deleted, err := releaseScript.Run(ctx, d.client, []string{leaseKeyPrefix + date}, token).Int()
	if err != nil {
		return fmt.Errorf("lease release failed: %w", err)
	}
	if deleted == 0 {
		d.logger.Warn("lease already expired or taken over at release", map[string]interface{}{
			"date": date,
		})
	}
	return nil
}

// MarkComplete writes the terminal completion marker for a date. The marker
// value is the persisted report identifier.
func (d *DateLock) MarkComplete(ctx context.Context, date, reportID string) error {
	if err := d.client.Set(ctx, markerKeyPrefix+date, reportID, markerTTL).Err(); err != nil {
		return fmt.Errorf("completion marker write failed: %w", err)
	}
	return nil
}

// Completion returns the report identifier for a finished date, or ok=false
// when the date has not completed.
func (d *DateLock) Completion(ctx context.Context, date string) (reportID string, ok bool, err error) {
	val, err := d.client.Get(ctx, markerKeyPrefix+date).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("completion marker read failed: %w", err)
	}
	return val, true, nil
}

// WaitForCompletion polls for the completion marker up to the given bound.
// It returns the report identifier once the marker appears, or ok=false if
// the bound elapses first.
func (d *DateLock) WaitForCompletion(ctx context.Context, date string, bound time.Duration) (reportID string, ok bool, err error) {
	deadline := time.Now().Add(bound)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		reportID, ok, err = d.Completion(ctx, date)
		if err != nil || ok {
			return reportID, ok, err
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-ticker.C:
		}
	}
}
