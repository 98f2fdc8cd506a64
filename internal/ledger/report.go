// internal/ledger/report.go
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"business-empire/internal/models"
)

// SaveReport appends the immutable daily report.
func (s *Store) SaveReport(ctx context.Context, report *models.DailyReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("report marshal failed: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_reports (id, date, payload, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)`,
		report.ID, string(report.Date), payload, report.StartedAt, report.FinishedAt)
	if err != nil {
		return fmt.Errorf("report insert failed: %w", err)
	}
	return nil
}

// ReportByDate returns the persisted report for a date, or nil when the date
// has not settled.
func (s *Store) ReportByDate(ctx context.Context, date models.Date) (*models.DailyReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_reports WHERE date = $1`, string(date))

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("report lookup failed: %w", err)
	}

	var report models.DailyReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("corrupt report payload for %s: %w", date, err)
	}
	return &report, nil
}
