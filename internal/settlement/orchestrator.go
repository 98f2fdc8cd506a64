// internal/settlement/orchestrator.go
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	stderrors "business-empire/internal/common/errors"
	"business-empire/internal/common/logger"
	"business-empire/internal/common/metrics"
	"business-empire/internal/common/observability"
	"business-empire/internal/models"
	"business-empire/pkg/catalog"
)

// ==========================
// Orchestrator Dependencies
// ==========================

// Ledger is the durable store boundary the orchestrator drives. Settle runs
// compute inside one per-company transaction and reports the idempotent
// short-circuit through skipped.
type Ledger interface {
	CompanyIDs(ctx context.Context) ([]int64, error)
	Settle(ctx context.Context, companyID int64, date models.Date, timeout time.Duration, compute func(*models.CompanySnapshot) (*models.SettlementRecord, error)) (record *models.SettlementRecord, skipped bool, err error)
	SaveReport(ctx context.Context, report *models.DailyReport) error
	ReportByDate(ctx context.Context, date models.Date) (*models.DailyReport, error)
}

// DateLock serializes runs for one date across processes.
type DateLock interface {
	Acquire(ctx context.Context, date string) (token string, ok bool, err error)
	Release(ctx context.Context, date, token string) error
	MarkComplete(ctx context.Context, date, reportID string) error
	WaitForCompletion(ctx context.Context, date string, bound time.Duration) (reportID string, ok bool, err error)
}

// AdLookup reads a company's active advertising buff from the hot-state
// cache. A missing buff is (nil, nil).
type AdLookup interface {
	Active(ctx context.Context, companyID int64) (*models.AdBuff, error)
}

// Notifier delivers the finished report to one sink. Delivery is
// fire-and-forget: failures are logged and never affect the run outcome.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, report *models.DailyReport) error
}

// Params are the economy and timing knobs for a run, fixed at startup.
type Params struct {
	BusyWait           time.Duration
	TxTimeout          time.Duration
	TaxPolicy          TaxPolicy
	TaxRateBps         int64
	EventSeed          int64
	EventChanceBps     int64
	StakeFloorBps      int64
	SocialInsuranceBps int64
	CoopCapBps         int64
	WageFallback       int64 // wage for a company type missing from the catalog
}

// ==========================
// Settlement Engine
// ==========================

// Engine is the daily settlement orchestrator. RunSettlement is safe to
// invoke concurrently and repeatedly for the same date from any number of
// processes; exactly one logical execution does the work.
type Engine struct {
	ledger    Ledger
	lock      DateLock
	ads       AdLookup
	notifiers []Notifier
	types     *catalog.Catalog
	params    Params
	logger    logger.Logger
	errs      *stderrors.ErrorHandler
	obs       *observability.Observability
}

func NewEngine(ledger Ledger, lock DateLock, ads AdLookup, types *catalog.Catalog, params Params, log logger.Logger, notifiers ...Notifier) *Engine {
	return &Engine{
		ledger:    ledger,
		lock:      lock,
		ads:       ads,
		notifiers: notifiers,
		types:     types,
		params:    params,
		logger:    log,
		errs:      stderrors.NewErrorHandler(log),
	}
}

// WithObservability attaches the OTel meter hooks. Optional; the promauto
// metrics are always recorded.
func (e *Engine) WithObservability(obs *observability.Observability) *Engine {
	e.obs = obs
	return e
}

// RunSettlement settles every company for one date and returns the daily
// report. A second invocation for an already settled date returns the
// persisted report; a concurrent invocation either waits for the winner's
// report within the busy bound or fails with SETTLEMENT_BUSY.
func (e *Engine) RunSettlement(ctx context.Context, date models.Date) (*models.DailyReport, error) {
	started := time.Now().UTC()

	// A settled date never reruns, with or without the lease.
	if report, err := e.ledger.ReportByDate(ctx, date); err == nil && report != nil {
		e.logger.Info("Settlement already complete, returning persisted report", map[string]interface{}{
			"date":      date.String(),
			"report_id": report.ID,
		})
		return report, nil
	}

	token, acquired, err := e.lock.Acquire(ctx, date.String())
	if err != nil {
		return nil, stderrors.NewSettlementAbortedError(date.String(), stderrors.NewLeaseAcquireFailedError(err))
	}
	if !acquired {
		return e.awaitWinner(ctx, date)
	}
	defer func() {
		if relErr := e.lock.Release(context.WithoutCancel(ctx), date.String(), token); relErr != nil {
			e.logger.Warn("Lease release failed", map[string]interface{}{
				"date":  date.String(),
				"error": relErr.Error(),
			})
		}
	}()

	// Lost the race to a run that finished between our check and the
	// acquire: hand back its report instead of rebuilding one from skips.
	if report, err := e.ledger.ReportByDate(ctx, date); err == nil && report != nil {
		return report, nil
	}

	ids, err := e.ledger.CompanyIDs(ctx)
	if err != nil {
		// Nothing has been written, the caller can safely retry.
		return nil, stderrors.NewSettlementAbortedError(date.String(), err)
	}

	e.logger.Info("Settlement run started", map[string]interface{}{
		"date":      date.String(),
		"companies": len(ids),
	})

	report := &models.DailyReport{
		ID:        uuid.NewString(),
		Date:      date,
		StartedAt: started,
	}

	for _, id := range ids {
		// Cancellation is checked between companies only, never
		// mid-transaction.
		select {
		case <-ctx.Done():
			return nil, stderrors.NewSettlementAbortedError(date.String(), ctx.Err())
		default:
		}
		report.Companies = append(report.Companies, e.settleCompany(ctx, id, date))
	}

	report.FinishedAt = time.Now().UTC()
	report.Totals = tallyTotals(report.Companies)

	e.finishRun(ctx, report)

	metrics.SettlementRunDuration.Observe(time.Since(started).Seconds())
	if e.obs != nil {
		e.obs.RecordRunDuration(ctx, time.Since(started), "success")
	}
	e.logger.Info("Settlement run finished", map[string]interface{}{
		"date":     date.String(),
		"settled":  report.Totals.Settled,
		"failed":   report.Totals.Failed,
		"duration": time.Since(started).String(),
	})
	return report, nil
}

// awaitWinner handles the lease-not-acquired path: poll for the winner's
// completion marker within the configured bound, then fetch its report.
func (e *Engine) awaitWinner(ctx context.Context, date models.Date) (*models.DailyReport, error) {
	e.logger.Info("Another process holds the settlement lease, waiting", map[string]interface{}{
		"date":  date.String(),
		"bound": e.params.BusyWait.String(),
	})

	_, done, err := e.lock.WaitForCompletion(ctx, date.String(), e.params.BusyWait)
	if err != nil {
		return nil, stderrors.NewSettlementAbortedError(date.String(), err)
	}
	if !done {
		metrics.SettlementRunsBusy.Inc()
		return nil, stderrors.NewSettlementBusyError(date.String())
	}

	report, err := e.ledger.ReportByDate(ctx, date)
	if err != nil {
		return nil, stderrors.NewSettlementAbortedError(date.String(), err)
	}
	if report == nil {
		return nil, stderrors.NewSettlementAbortedError(date.String(),
			fmt.Errorf("completion marker set but no report persisted for %s", date))
	}
	return report, nil
}

// settleCompany runs one company inside its own transaction boundary. Any
// failure is downgraded to a report entry so it never aborts the run.
func (e *Engine) settleCompany(ctx context.Context, companyID int64, date models.Date) models.CompanyResult {
	companyStart := time.Now()
	result := models.CompanyResult{CompanyID: companyID}

	// Buff lookup failures degrade to "no buff" rather than failing the
	// company: the buff is ephemeral by design.
	buff, err := e.ads.Active(ctx, companyID)
	if err != nil {
		e.logger.Warn("Ad buff lookup failed, settling without boost", map[string]interface{}{
			"company_id": companyID,
			"error":      err.Error(),
		})
		buff = nil
	}

	var companyType string
	record, skipped, err := e.ledger.Settle(ctx, companyID, date, e.params.TxTimeout,
		func(snap *models.CompanySnapshot) (*models.SettlementRecord, error) {
			snap.AdBuff = buff
			result.CompanyName = snap.Company.Name
			companyType = snap.Company.Type
			return e.computeRecord(snap, date)
		})
	if err != nil {
		stdErr := e.errs.HandleCompanyError(companyID, date.String(), err)
		metrics.SettlementCompaniesFailed.WithLabelValues(string(stdErr.Code)).Inc()
		if e.obs != nil {
			e.obs.RecordCompanyProcessed(ctx, "failed")
		}
		result.Error = stdErr.Error()
		return result
	}

	result.Record = record
	if skipped {
		metrics.SettlementCompaniesSkipped.Inc()
		if e.obs != nil {
			e.obs.RecordCompanyProcessed(ctx, "skipped")
		}
		return result
	}

	metrics.SettlementCompaniesSettled.WithLabelValues(companyType).Inc()
	metrics.SettlementCompanyDuration.Observe(time.Since(companyStart).Seconds())
	if e.obs != nil {
		e.obs.RecordCompanyProcessed(ctx, "settled")
		e.obs.RecordCompanyDuration(ctx, time.Since(companyStart), "settled")
	}
	for _, ev := range record.Events {
		metrics.SettlementEventsApplied.WithLabelValues(ev.Category).Inc()
	}
	for _, d := range record.Dividends {
		metrics.SettlementDividendsPaid.Add(float64(d.Amount))
	}
	return result
}

// computeRecord is the per-company settlement math, invoked by the ledger
// inside the company's transaction against a consistent snapshot.
func (e *Engine) computeRecord(snap *models.CompanySnapshot, date models.Date) (*models.SettlementRecord, error) {
	if err := CheckStakeInvariants(snap, e.params.StakeFloorBps); err != nil {
		return nil, err
	}

	gross := ComputeGrossRevenue(snap, RevenueParams{
		TypeBonusBps: e.types.IncomeBonusBps(snap.Company.Type),
		CoopCapBps:   e.params.CoopCapBps,
	})

	payroll, tax := ComputeCosts(snap.Company.EmployeeCount, gross, CostParams{
		WageRate:           e.types.WageRate(snap.Company.Type, e.params.WageFallback),
		SocialInsuranceBps: e.params.SocialInsuranceBps,
		TaxRateBps:         e.params.TaxRateBps,
		TaxPolicy:          e.params.TaxPolicy,
	})
	net := gross - payroll - tax

	return &models.SettlementRecord{
		CompanyID:    snap.Company.ID,
		Date:         date,
		GrossRevenue: gross,
		Payroll:      payroll,
		Tax:          tax,
		NetProfit:    net,
		Dividends:    AllocateDividends(net, snap),
		Events:       RollEvents(snap, date, e.params.EventSeed, e.params.EventChanceBps),
	}, nil
}

// finishRun persists the report, writes the completion marker, and fans the
// report out to the sinks. All of this is after the last commit; failures
// here are logged, never rolled back.
func (e *Engine) finishRun(ctx context.Context, report *models.DailyReport) {
	if err := e.ledger.SaveReport(ctx, report); err != nil {
		// Without the persisted report the completion marker would point
		// at nothing, so skip it and let a rerun rebuild from records.
		e.errs.HandleRunError(report.Date.String(), err)
	} else if err := e.lock.MarkComplete(ctx, report.Date.String(), report.ID); err != nil {
		e.logger.Warn("Completion marker write failed", map[string]interface{}{
			"date":  report.Date.String(),
			"error": err.Error(),
		})
	}

	for _, n := range e.notifiers {
		if err := n.Notify(ctx, report); err != nil {
			sendErr := stderrors.NewNotificationSendFailedError(n.Name(), err)
			metrics.ReportDeliveries.WithLabelValues(n.Name(), "error").Inc()
			e.logger.Error("Report delivery failed", map[string]interface{}{
				"sink":  n.Name(),
				"date":  report.Date.String(),
				"error": sendErr.Error(),
			})
			continue
		}
		metrics.ReportDeliveries.WithLabelValues(n.Name(), "ok").Inc()
	}
}

func tallyTotals(results []models.CompanyResult) models.ReportTotals {
	totals := models.ReportTotals{Companies: len(results)}
	for _, r := range results {
		if r.Record == nil {
			totals.Failed++
			continue
		}
		totals.Settled++
		totals.GrossRevenue += r.Record.GrossRevenue
		totals.Payroll += r.Record.Payroll
		totals.Tax += r.Record.Tax
		totals.NetProfit += r.Record.NetProfit
		for _, d := range r.Record.Dividends {
			totals.Dividends += d.Amount
		}
	}
	return totals
}
