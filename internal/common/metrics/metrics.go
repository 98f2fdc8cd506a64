// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementCompaniesSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_companies_settled_total",
			Help: "Total number of companies settled",
		},
		[]string{"company_type"},
	)

	SettlementCompaniesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_companies_failed_total",
			Help: "Total number of companies that failed to settle",
		},
		[]string{"error_code"},
	)

	SettlementCompaniesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_companies_skipped_total",
			Help: "Companies skipped because a record for the date already existed",
		},
	)

	SettlementRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_run_duration_seconds",
			Help:    "Duration of a full daily settlement run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	SettlementCompanyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "settlement_company_duration_seconds",
			Help: "Duration of a single company settlement in seconds",
		},
	)

	SettlementRunsBusy = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_runs_busy_total",
			Help: "Runs rejected because the date lease was already held",
		},
	)

	SettlementEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_applied_total",
			Help: "Random events applied during settlement",
		},
		[]string{"category"},
	)

	SettlementDividendsPaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_dividends_paid_total",
			Help: "Total dividend amount paid out, in minor units",
		},
	)

	ReportDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_report_deliveries_total",
			Help: "Daily report deliveries by sink and status",
		},
		[]string{"sink", "status"},
	)
)
