// internal/models/settlement.go
package models

import "time"

// Date is a settlement day in YYYY-MM-DD form (UTC). Settlement is keyed by
// Date everywhere: the run lease, the idempotency witness, and the report.
type Date string

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	return Date(t.UTC().Format(time.DateOnly))
}

// Time returns midnight UTC of the settlement day.
func (d Date) Time() (time.Time, error) {
	return time.Parse(time.DateOnly, string(d))
}

func (d Date) String() string { return string(d) }

// Dividend is one shareholder's payout from a company's daily net profit.
type Dividend struct {
	HolderID int64 `json:"holderId"`
	Amount   int64 `json:"amount"`
}

// Event is a random occurrence applied during settlement, recorded with the
// exact state mutation it caused.
type Event struct {
	Kind          string `json:"kind"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	CashDelta     int64  `json:"cashDelta"`
	EmployeeDelta int    `json:"employeeDelta"`
	QualityDelta  int    `json:"qualityDelta"`
}

// SettlementRecord is the idempotency witness for one (company, date):
// written exactly once, never mutated. A retried settlement that finds an
// existing record returns it instead of recomputing.
//
// Shortfall is the portion of a loss that could not be absorbed because the
// company's funds floored at zero; it is surfaced for operators rather than
// driving the balance negative.
type SettlementRecord struct {
	CompanyID    int64      `json:"companyId"`
	Date         Date       `json:"date"`
	GrossRevenue int64      `json:"grossRevenue"`
	Payroll      int64      `json:"payroll"`
	Tax          int64      `json:"tax"`
	NetProfit    int64      `json:"netProfit"`
	Shortfall    int64      `json:"shortfall"`
	Dividends    []Dividend `json:"dividends"`
	Events       []Event    `json:"events"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// CompanyResult is one report entry: either a committed record or the error
// that isolated this company from the rest of the run.
type CompanyResult struct {
	CompanyID   int64             `json:"companyId"`
	CompanyName string            `json:"companyName"`
	Record      *SettlementRecord `json:"record,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ReportTotals are the summary figures over all settled companies.
type ReportTotals struct {
	Companies    int   `json:"companies"`
	Settled      int   `json:"settled"`
	Failed       int   `json:"failed"`
	GrossRevenue int64 `json:"grossRevenue"`
	Payroll      int64 `json:"payroll"`
	Tax          int64 `json:"tax"`
	NetProfit    int64 `json:"netProfit"`
	Dividends    int64 `json:"dividends"`
}

// DailyReport aggregates every company outcome for one date. It is
// append-only: persisted once when the run finishes and never rewritten.
type DailyReport struct {
	ID         string          `json:"id"`
	Date       Date            `json:"date"`
	Companies  []CompanyResult `json:"companies"`
	Totals     ReportTotals    `json:"totals"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}
