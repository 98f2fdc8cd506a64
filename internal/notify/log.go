// internal/notify/log.go
package notify

import (
	"context"

	"business-empire/internal/common/logger"
	"business-empire/internal/models"
)

// LogNotifier writes the report summary to the service log. Always wired,
// so every run leaves a readable trace even with no external sinks enabled.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, report *models.DailyReport) error {
	n.logger.Info("Daily settlement report", map[string]interface{}{
		"date":      report.Date.String(),
		"report_id": report.ID,
		"settled":   report.Totals.Settled,
		"failed":    report.Totals.Failed,
		"summary":   FormatReport(report),
	})
	return nil
}
