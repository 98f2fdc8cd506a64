// internal/settlement/orchestrator_test.go
package settlement

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-empire/internal/cache"
	stderrors "business-empire/internal/common/errors"
	"business-empire/internal/common/logger"
	"business-empire/internal/models"
	"business-empire/pkg/catalog"
)

// ==========================
// Fakes
// ==========================

// memLedger is an in-memory Ledger with the same idempotency semantics as
// the Postgres store: one record per (company, date), short-circuit on
// existing records, compute failures leave nothing behind.
type memLedger struct {
	mu       sync.Mutex
	snaps    map[int64]*models.CompanySnapshot
	records  map[string]*models.SettlementRecord
	reports  map[models.Date]*models.DailyReport
	idsErr   error
	computes int
}

func newMemLedger(snaps ...*models.CompanySnapshot) *memLedger {
	l := &memLedger{
		snaps:   make(map[int64]*models.CompanySnapshot),
		records: make(map[string]*models.SettlementRecord),
		reports: make(map[models.Date]*models.DailyReport),
	}
	for _, s := range snaps {
		l.snaps[s.Company.ID] = s
	}
	return l
}

func recordKey(companyID int64, date models.Date) string {
	return fmt.Sprintf("%d|%s", companyID, date)
}

func (l *memLedger) CompanyIDs(ctx context.Context) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idsErr != nil {
		return nil, l.idsErr
	}
	ids := make([]int64, 0, len(l.snaps))
	for id := range l.snaps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (l *memLedger) Settle(ctx context.Context, companyID int64, date models.Date, timeout time.Duration, compute func(*models.CompanySnapshot) (*models.SettlementRecord, error)) (*models.SettlementRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, ok := l.records[recordKey(companyID, date)]; ok {
		return rec, true, nil
	}
	snap, ok := l.snaps[companyID]
	if !ok {
		return nil, false, fmt.Errorf("company %d not found", companyID)
	}

	rec, err := compute(snap)
	if err != nil {
		return nil, false, err
	}
	l.computes++
	rec.CreatedAt = time.Now().UTC()
	l.records[recordKey(companyID, date)] = rec
	return rec, false, nil
}

func (l *memLedger) SaveReport(ctx context.Context, report *models.DailyReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports[report.Date] = report
	return nil
}

func (l *memLedger) ReportByDate(ctx context.Context, date models.Date) (*models.DailyReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reports[date], nil
}

func (l *memLedger) computeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.computes
}

type fakeAds struct {
	buffs map[int64]*models.AdBuff
	err   error
}

func (f *fakeAds) Active(ctx context.Context, companyID int64) (*models.AdBuff, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.buffs[companyID], nil
}

type memoNotifier struct {
	mu      sync.Mutex
	reports []*models.DailyReport
	err     error
}

func (m *memoNotifier) Name() string { return "memo" }

func (m *memoNotifier) Notify(ctx context.Context, report *models.DailyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, report)
	return nil
}

// ==========================
// Engine Fixture
// ==========================

const runDate = models.Date("2026-08-29")

func testCatalog(t *testing.T) *catalog.Catalog {
	types, err := catalog.Load(filepath.Join("..", "..", "configs", "company_types.json"))
	require.NoError(t, err)
	return types
}

func testParams() Params {
	return Params{
		BusyWait:       2 * time.Second,
		TxTimeout:      time.Second,
		TaxPolicy:      TaxOnGross,
		TaxRateBps:     1000,
		EventSeed:      42,
		EventChanceBps: 0, // keep runs arithmetic-only unless a test opts in
		StakeFloorBps:  3000,
		CoopCapBps:     5000,
		WageFallback:   30,
	}
}

func newTestLock(t *testing.T) (*cache.DateLock, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewDateLock(client, time.Minute, logger.NewTestLogger(t)), mr
}

// newLossSnapshot is a sole-owner company whose payroll dwarfs revenue.
func newLossSnapshot(id int64) *models.CompanySnapshot {
	return &models.CompanySnapshot{
		Company: models.Company{
			ID: id, Name: "Sinking Ship", Type: "workshop", OwnerID: 99,
			Funds: 10000, EmployeeCount: 50, Version: 1,
		},
		Products: []models.Product{
			{ID: 1, CompanyID: id, BaseIncome: 100, MultiplierBps: 10000, Active: true},
		},
		Shareholders: []models.Shareholder{
			{CompanyID: id, HolderID: 99, StakeBps: 10000},
		},
	}
}

func newEngine(t *testing.T, ledgerStore *memLedger, lock *cache.DateLock, notifiers ...Notifier) *Engine {
	return NewEngine(ledgerStore, lock, &fakeAds{}, testCatalog(t), testParams(),
		logger.NewTestLogger(t), notifiers...)
}

// ==========================
// Run Tests
// ==========================

func TestRunSettlement_FullRun(t *testing.T) {
	scenario := newScenarioSnapshot()
	loss := newLossSnapshot(2)
	store := newMemLedger(scenario, loss)
	lock, _ := newTestLock(t)
	sink := &memoNotifier{}
	engine := newEngine(t, store, lock, sink)

	report, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 2, report.Totals.Companies)
	assert.Equal(t, 2, report.Totals.Settled)
	assert.Equal(t, 0, report.Totals.Failed)

	// Scenario company: gross 350, payroll 30, tax 35, net 285, 60/40 split.
	rec := report.Companies[0].Record
	require.NotNil(t, rec)
	assert.Equal(t, int64(350), rec.GrossRevenue)
	assert.Equal(t, int64(30), rec.Payroll)
	assert.Equal(t, int64(35), rec.Tax)
	assert.Equal(t, int64(285), rec.NetProfit)
	require.Len(t, rec.Dividends, 2)
	assert.Equal(t, models.Dividend{HolderID: 10, Amount: 171}, rec.Dividends[0])
	assert.Equal(t, models.Dividend{HolderID: 20, Amount: 114}, rec.Dividends[1])

	// Conservation holds for every settled company; losses pay nothing.
	for _, cr := range report.Companies {
		require.NotNil(t, cr.Record)
		r := cr.Record
		assert.Equal(t, r.NetProfit, r.GrossRevenue-r.Payroll-r.Tax)
		var paid int64
		for _, d := range r.Dividends {
			paid += d.Amount
		}
		if r.NetProfit > 0 {
			assert.Equal(t, r.NetProfit, paid)
		} else {
			assert.Zero(t, paid)
		}
	}

	// Report persisted, completion marker set, sink notified.
	persisted, err := store.ReportByDate(context.Background(), runDate)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, report.ID, persisted.ID)

	reportID, done, err := lock.Completion(context.Background(), runDate.String())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, report.ID, reportID)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, report.ID, sink.reports[0].ID)
}

func TestRunSettlement_SecondCallReturnsSameReport(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)
	engine := newEngine(t, store, lock)

	first, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)

	second, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.computeCount(), "second call must not recompute")
}

func TestRunSettlement_ResumesAfterPartialCrash(t *testing.T) {
	companyA := newScenarioSnapshot()
	companyB := newLossSnapshot(2)
	store := newMemLedger(companyA, companyB)

	// Simulate a crash after committing company A: its record exists but no
	// report or completion marker was written.
	preexisting := &models.SettlementRecord{
		CompanyID: 1, Date: runDate, GrossRevenue: 350, Payroll: 30, Tax: 35, NetProfit: 285,
		Dividends: []models.Dividend{{HolderID: 10, Amount: 171}, {HolderID: 20, Amount: 114}},
		CreatedAt: time.Now().UTC(),
	}
	store.records[recordKey(1, runDate)] = preexisting

	lock, _ := newTestLock(t)
	engine := newEngine(t, store, lock)

	report, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Totals.Settled)
	assert.Equal(t, 1, store.computeCount(), "company A must not be recomputed")
	assert.Same(t, preexisting, store.records[recordKey(1, runDate)])
	require.NotNil(t, report.Companies[1].Record)
	assert.Equal(t, int64(2), report.Companies[1].CompanyID)
}

func TestRunSettlement_IsolatesCompanyFailure(t *testing.T) {
	healthy := newScenarioSnapshot()
	broken := newLossSnapshot(2)
	broken.Shareholders[0].StakeBps = 9999 // stake sum invariant violated

	store := newMemLedger(healthy, broken)
	lock, _ := newTestLock(t)
	engine := newEngine(t, store, lock)

	report, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err, "one bad company must not abort the run")

	assert.Equal(t, 1, report.Totals.Settled)
	assert.Equal(t, 1, report.Totals.Failed)

	assert.NotNil(t, report.Companies[0].Record)
	assert.Nil(t, report.Companies[1].Record)
	assert.Contains(t, report.Companies[1].Error, "INVARIANT_VIOLATION")

	_, committed := store.records[recordKey(2, runDate)]
	assert.False(t, committed, "violating state must never be committed")
}

func TestRunSettlement_AbortsBeforeAnyCommitOnStoreOutage(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	store.idsErr = errors.New("connection refused")
	lock, _ := newTestLock(t)
	engine := newEngine(t, store, lock)

	report, err := engine.RunSettlement(context.Background(), runDate)

	require.Error(t, err)
	assert.Nil(t, report)
	var stdErr *stderrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeSettlementAborted, stdErr.Code)
	assert.Empty(t, store.records, "nothing may be written on an aborted run")

	// The lease must not leak: a retry can acquire it immediately.
	token, acquired, err := lock.Acquire(context.Background(), runDate.String())
	require.NoError(t, err)
	assert.True(t, acquired)
	_ = lock.Release(context.Background(), runDate.String(), token)
}

func TestRunSettlement_BusyWhenLeaseHeldAndNoCompletion(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)

	// Another process holds the lease and never finishes.
	_, acquired, err := lock.Acquire(context.Background(), runDate.String())
	require.NoError(t, err)
	require.True(t, acquired)

	engine := newEngine(t, store, lock)
	engine.params.BusyWait = 50 * time.Millisecond

	report, err := engine.RunSettlement(context.Background(), runDate)

	require.Error(t, err)
	assert.Nil(t, report)
	var stdErr *stderrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeSettlementBusy, stdErr.Code)
	assert.Equal(t, 0, store.computeCount())
}

func TestRunSettlement_WaiterReceivesWinnersReport(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)

	winner := newEngine(t, store, lock)
	waiter := newEngine(t, store, lock)
	waiter.params.BusyWait = 3 * time.Second

	// The waiter finds the lease held, then picks up the completion marker
	// once the winner finishes.
	token, held, err := lock.Acquire(context.Background(), runDate.String())
	require.NoError(t, err)
	require.True(t, held)

	done := make(chan struct{})
	var waiterReport *models.DailyReport
	var waiterErr error
	go func() {
		defer close(done)
		waiterReport, waiterErr = waiter.RunSettlement(context.Background(), runDate)
	}()

	// Hand the lease back and let a real run complete while the waiter polls.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, lock.Release(context.Background(), runDate.String(), token))
	winnerReport, err := winner.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)

	<-done
	require.NoError(t, waiterErr)
	require.NotNil(t, waiterReport)
	assert.Equal(t, winnerReport.ID, waiterReport.ID)
	assert.Equal(t, 1, store.computeCount())
}

func TestRunSettlement_ConcurrentCallersProduceOneExecution(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot(), newLossSnapshot(2), newLossSnapshot(3))
	lock, _ := newTestLock(t)

	const callers = 4
	engines := make([]*Engine, callers)
	for i := range engines {
		engines[i] = newEngine(t, store, lock)
		engines[i].params.BusyWait = 5 * time.Second
	}

	var wg sync.WaitGroup
	reports := make([]*models.DailyReport, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = engines[i].RunSettlement(context.Background(), runDate)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		require.NotNil(t, reports[i], "caller %d", i)
		assert.Equal(t, reports[0].ID, reports[i].ID, "caller %d", i)
	}
	assert.Equal(t, 3, store.computeCount(), "each company settles exactly once")
}

func TestRunSettlement_NotifierFailureDoesNotFailRun(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)
	sink := &memoNotifier{err: errors.New("sns unreachable")}
	engine := newEngine(t, store, lock, sink)

	report, err := engine.RunSettlement(context.Background(), runDate)

	require.NoError(t, err)
	require.NotNil(t, report)
	persisted, _ := store.ReportByDate(context.Background(), runDate)
	assert.NotNil(t, persisted)
}

func TestRunSettlement_AdBuffBoostsRevenue(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)
	ads := &fakeAds{buffs: map[int64]*models.AdBuff{
		1: {Tier: "standard", BoostBps: 1000, ExpiresAt: time.Now().Add(time.Hour)},
	}}
	engine := NewEngine(store, lock, ads, testCatalog(t), testParams(), logger.NewTestLogger(t))

	report, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)

	rec := report.Companies[0].Record
	require.NotNil(t, rec)
	assert.Equal(t, int64(385), rec.GrossRevenue) // 350 +10%
}

func TestRunSettlement_AdLookupFailureSettlesWithoutBoost(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)
	ads := &fakeAds{err: errors.New("redis timeout")}
	engine := NewEngine(store, lock, ads, testCatalog(t), testParams(), logger.NewTestLogger(t))

	report, err := engine.RunSettlement(context.Background(), runDate)
	require.NoError(t, err)

	rec := report.Companies[0].Record
	require.NotNil(t, rec)
	assert.Equal(t, int64(350), rec.GrossRevenue)
}

func TestRunSettlement_CancelledBetweenCompanies(t *testing.T) {
	store := newMemLedger(newScenarioSnapshot())
	lock, _ := newTestLock(t)
	engine := newEngine(t, store, lock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := engine.RunSettlement(ctx, runDate)

	require.Error(t, err)
	assert.Nil(t, report)
	var stdErr *stderrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeSettlementAborted, stdErr.Code)
}
