// internal/ledger/report_test.go
package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-empire/internal/models"
)

func TestSaveReport(t *testing.T) {
	store, mock := newTestStore(t)

	report := &models.DailyReport{
		ID:   "run-123",
		Date: testDate,
		Totals: models.ReportTotals{
			Companies: 2,
			Settled:   2,
			NetProfit: 570,
		},
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO daily_reports`).
		WithArgs("run-123", string(testDate), sqlmock.AnyArg(), report.StartedAt, report.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.SaveReport(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportByDate(t *testing.T) {
	store, mock := newTestStore(t)

	stored := &models.DailyReport{
		ID:   "run-456",
		Date: testDate,
		Companies: []models.CompanyResult{
			{CompanyID: 1, CompanyName: "TestCo", Record: &models.SettlementRecord{NetProfit: 285}},
		},
		Totals: models.ReportTotals{Companies: 1, Settled: 1, NetProfit: 285},
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM daily_reports WHERE date = \$1`).
		WithArgs(string(testDate)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	report, err := store.ReportByDate(context.Background(), testDate)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "run-456", report.ID)
	assert.Equal(t, int64(285), report.Totals.NetProfit)
	require.Len(t, report.Companies, 1)
	assert.Equal(t, int64(285), report.Companies[0].Record.NetProfit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportByDate_ReturnsNilWhenUnsettled(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT payload FROM daily_reports WHERE date = \$1`).
		WithArgs(string(testDate)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	report, err := store.ReportByDate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.NoError(t, mock.ExpectationsWereMet())
}
