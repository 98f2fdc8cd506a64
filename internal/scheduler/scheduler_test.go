// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-empire/internal/common/logger"
	"business-empire/internal/models"
)

func TestNextFire(t *testing.T) {
	s := New(3, 30, nil, logger.NewNoOpLogger())

	tests := []struct {
		name string
		now  string
		want string
	}{
		{"before boundary", "2026-08-29T01:00:00Z", "2026-08-29T03:30:00Z"},
		{"after boundary", "2026-08-29T10:00:00Z", "2026-08-30T03:30:00Z"},
		{"exactly at boundary", "2026-08-29T03:30:00Z", "2026-08-30T03:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, err := time.Parse(time.RFC3339, tt.now)
			require.NoError(t, err)
			want, err := time.Parse(time.RFC3339, tt.want)
			require.NoError(t, err)

			assert.Equal(t, want, s.NextFire(now))
		})
	}
}

func TestRun_FiresForPreviousDay(t *testing.T) {
	var fired atomic.Int32
	var gotDate models.Date

	run := func(ctx context.Context, date models.Date) (*models.DailyReport, error) {
		gotDate = date
		fired.Add(1)
		return &models.DailyReport{ID: "run-1", Date: date}, nil
	}

	s := New(0, 0, run, logger.NewTestLogger(t))
	// Freeze time just before the boundary so the first fire is immediate.
	base, _ := time.Parse(time.RFC3339, "2026-08-29T23:59:59.990Z")
	start := time.Now()
	s.now = func() time.Time { return base.Add(time.Since(start)) }

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, fired.Load(), int32(1))
	// The trigger at 2026-08-30T00:00Z settles the day that just closed.
	assert.Equal(t, models.Date("2026-08-29"), gotDate)
}

func TestRun_SurvivesSettlementFailure(t *testing.T) {
	var fired atomic.Int32
	run := func(ctx context.Context, date models.Date) (*models.DailyReport, error) {
		fired.Add(1)
		return nil, errors.New("store down")
	}

	s := New(0, 0, run, logger.NewTestLogger(t))
	base, _ := time.Parse(time.RFC3339, "2026-08-29T23:59:59.990Z")
	start := time.Now()
	s.now = func() time.Time { return base.Add(time.Since(start)) }

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, fired.Load(), int32(1), "failure must not kill the loop")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(23, 59, func(ctx context.Context, date models.Date) (*models.DailyReport, error) {
		t.Error("must not fire")
		return nil, nil
	}, logger.NewTestLogger(t))
	frozen, _ := time.Parse(time.RFC3339, "2026-08-29T00:00:00Z")
	s.now = func() time.Time { return frozen }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
