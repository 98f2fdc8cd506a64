// internal/notify/notify_test.go
package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-empire/internal/common/logger"
	"business-empire/internal/models"
)

func sampleReport() *models.DailyReport {
	return &models.DailyReport{
		ID:   "run-1",
		Date: models.Date("2026-08-29"),
		Companies: []models.CompanyResult{
			{
				CompanyID:   1,
				CompanyName: "Acme",
				Record: &models.SettlementRecord{
					CompanyID: 1, GrossRevenue: 350, Payroll: 30, Tax: 35, NetProfit: 285,
					Events: []models.Event{{Kind: "market_boom", Category: "market"}},
				},
			},
			{CompanyID: 2, Error: "StandardError[INVARIANT_VIOLATION]: Balance sheet invariant violated"},
		},
		Totals: models.ReportTotals{
			Companies: 2, Settled: 1, Failed: 1,
			GrossRevenue: 350, Payroll: 30, Tax: 35, NetProfit: 285, Dividends: 285,
		},
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
}

// ==========================
// Formatting Tests
// ==========================

func TestFormatReport(t *testing.T) {
	out := FormatReport(sampleReport())

	assert.Contains(t, out, "Date: 2026-08-29")
	assert.Contains(t, out, "Companies settled: 1/2")
	assert.Contains(t, out, "Net profit: 285")
	assert.Contains(t, out, "Acme: gross 350, net 285")
	assert.Contains(t, out, "market_boom")
	assert.Contains(t, out, "❌ company 2")
	assert.Contains(t, out, "1 company(ies) failed")
}

func TestFormatReport_Shortfall(t *testing.T) {
	report := sampleReport()
	report.Companies = report.Companies[:1]
	report.Companies[0].Record.Shortfall = 120
	report.Totals.Failed = 0

	out := FormatReport(report)

	assert.Contains(t, out, "(shortfall 120)")
	assert.NotContains(t, out, "failed")
}

func TestSubject(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, "Settlement 2026-08-29: 1/2 settled, 1 FAILED", Subject(report))

	report.Totals.Failed = 0
	assert.Equal(t, "Settlement 2026-08-29: 1 companies settled", Subject(report))
}

// ==========================
// Sink Tests
// ==========================

type fakePublisher struct {
	topicARN string
	subject  string
	message  string
	err      error
}

func (f *fakePublisher) PublishToTopic(ctx context.Context, topicARN, subject, message string) error {
	if f.err != nil {
		return f.err
	}
	f.topicARN = topicARN
	f.subject = subject
	f.message = message
	return nil
}

func TestSNSNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewSNSNotifier(pub, "arn:aws:sns:us-east-1:123:settlement")

	require.NoError(t, n.Notify(context.Background(), sampleReport()))

	assert.Equal(t, "sns", n.Name())
	assert.Equal(t, "arn:aws:sns:us-east-1:123:settlement", pub.topicARN)
	assert.Contains(t, pub.subject, "1 FAILED")
	assert.Contains(t, pub.message, "Acme: gross 350")
}

func TestSNSNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("throttled")}
	n := NewSNSNotifier(pub, "arn:aws:sns:us-east-1:123:settlement")

	err := n.Notify(context.Background(), sampleReport())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sns publish failed")
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logger.NewTestLogger(t))

	assert.Equal(t, "log", n.Name())
	assert.NoError(t, n.Notify(context.Background(), sampleReport()))
}
