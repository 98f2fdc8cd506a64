// internal/scheduler/scheduler.go

// Package scheduler fires the daily settlement at a fixed UTC wall-clock
// time. Delivery is at-least-once: the engine's date lease and idempotency
// records make duplicate or restarted triggers harmless.
package scheduler

import (
	"context"
	"time"

	"business-empire/internal/common/logger"
	"business-empire/internal/models"
)

// RunFunc is the settlement entry point the scheduler drives.
type RunFunc func(ctx context.Context, date models.Date) (*models.DailyReport, error)

// Scheduler triggers one settlement per day at hour:minute UTC.
type Scheduler struct {
	hour   int
	minute int
	run    RunFunc
	logger logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(hour, minute int, run RunFunc, log logger.Logger) *Scheduler {
	return &Scheduler{
		hour:   hour,
		minute: minute,
		run:    run,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NextFire returns the next hour:minute UTC boundary strictly after now.
func (s *Scheduler) NextFire(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks, firing settlement at each daily boundary until ctx ends. Each
// trigger settles the day that just closed, not the day that is starting.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.NextFire(s.now())
		s.logger.Info("Next settlement scheduled", map[string]interface{}{
			"at": next.Format(time.RFC3339),
		})

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		date := models.NewDate(next.AddDate(0, 0, -1))
		s.fire(ctx, date)
	}
}

// fire runs one settlement and absorbs its outcome: trigger failures are
// logged, never fatal to the scheduling loop.
func (s *Scheduler) fire(ctx context.Context, date models.Date) {
	s.logger.Info("Settlement trigger fired", map[string]interface{}{
		"date": date.String(),
	})

	report, err := s.run(ctx, date)
	if err != nil {
		s.logger.Error("Scheduled settlement failed", map[string]interface{}{
			"date":  date.String(),
			"error": err.Error(),
		})
		return
	}
	s.logger.Info("Scheduled settlement finished", map[string]interface{}{
		"date":      date.String(),
		"report_id": report.ID,
		"settled":   report.Totals.Settled,
		"failed":    report.Totals.Failed,
	})
}
