// internal/ledger/store.go
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"business-empire/internal/common/logger"
	"business-empire/internal/models"
)

// ComputeFunc produces a settlement record from a consistent snapshot of one
// company. It must not mutate stored state; the store applies the resulting
// deltas and persists the record in the same transaction.
type ComputeFunc func(snap *models.CompanySnapshot) (*models.SettlementRecord, error)

// Store is the durable ledger over Postgres. Every settlement commit is a
// single transaction per company.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// CompanyIDs returns all company identifiers in stable ascending order.
func (s *Store) CompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("company id scan failed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Settle runs one company's settlement inside a transaction: it short-circuits
// on an existing record for (company, date), otherwise loads the snapshot,
// invokes compute, applies the deltas, and appends the record atomically.
// skipped reports the idempotent short-circuit case.
func (s *Store) Settle(ctx context.Context, companyID int64, date models.Date, timeout time.Duration, compute ComputeFunc) (record *models.SettlementRecord, skipped bool, err error) {
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.recordInTx(txCtx, tx, companyID, date)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		_ = tx.Rollback()
		return existing, true, nil
	}

	snap, err := s.snapshotInTx(txCtx, tx, companyID, date)
	if err != nil {
		return nil, false, err
	}

	record, err = compute(snap)
	if err != nil {
		return nil, false, err
	}

	if err = s.applyInTx(txCtx, tx, snap, record); err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit settlement tx: %w", err)
	}
	return record, false, nil
}

// Record returns the persisted settlement record for (company, date), or nil.
func (s *Store) Record(ctx context.Context, companyID int64, date models.Date) (*models.SettlementRecord, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return s.recordInTx(ctx, tx, companyID, date)
}

func (s *Store) recordInTx(ctx context.Context, tx *sql.Tx, companyID int64, date models.Date) (*models.SettlementRecord, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT gross_revenue, payroll, tax, net_profit, shortfall, dividends, events, created_at
		FROM settlement_records
		WHERE company_id = $1 AND date = $2`,
		companyID, string(date))

	rec := models.SettlementRecord{CompanyID: companyID, Date: date}
	var dividendsRaw, eventsRaw []byte
	err := row.Scan(&rec.GrossRevenue, &rec.Payroll, &rec.Tax, &rec.NetProfit,
		&rec.Shortfall, &dividendsRaw, &eventsRaw, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settlement record lookup failed: %w", err)
	}

	if err := json.Unmarshal(dividendsRaw, &rec.Dividends); err != nil {
		return nil, fmt.Errorf("corrupt dividends payload for company %d: %w", companyID, err)
	}
	if err := json.Unmarshal(eventsRaw, &rec.Events); err != nil {
		return nil, fmt.Errorf("corrupt events payload for company %d: %w", companyID, err)
	}
	return &rec, nil
}

// snapshotInTx loads the company and everything settlement reads, locking the
// company row so the market subsystem cannot race the commit.
func (s *Store) snapshotInTx(ctx context.Context, tx *sql.Tx, companyID int64, date models.Date) (*models.CompanySnapshot, error) {
	snap := &models.CompanySnapshot{}

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, type, owner_id, funds, employee_count, level, version, created_at
		FROM companies
		WHERE id = $1
		FOR UPDATE`,
		companyID)
	c := &snap.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.OwnerID, &c.Funds,
		&c.EmployeeCount, &c.Level, &c.Version, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %d not found", companyID)
		}
		return nil, fmt.Errorf("company load failed: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, company_id, name, level, base_income, multiplier_bps, active
		FROM products
		WHERE company_id = $1 AND active
		ORDER BY id`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("product load failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Level,
			&p.BaseIncome, &p.MultiplierBps, &p.Active); err != nil {
			return nil, err
		}
		snap.Products = append(snap.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	estRows, err := tx.QueryContext(ctx, `
		SELECT id, company_id, building_type, daily_income
		FROM real_estates
		WHERE company_id = $1
		ORDER BY id`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("real estate load failed: %w", err)
	}
	defer estRows.Close()
	for estRows.Next() {
		var e models.RealEstate
		if err := estRows.Scan(&e.ID, &e.CompanyID, &e.BuildingType, &e.DailyIncome); err != nil {
			return nil, err
		}
		snap.RealEstates = append(snap.RealEstates, e)
	}
	if err := estRows.Err(); err != nil {
		return nil, err
	}

	shRows, err := tx.QueryContext(ctx, `
		SELECT company_id, holder_id, stake_bps, invested_amount
		FROM shareholders
		WHERE company_id = $1
		ORDER BY holder_id`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("shareholder load failed: %w", err)
	}
	defer shRows.Close()
	for shRows.Next() {
		var sh models.Shareholder
		if err := shRows.Scan(&sh.CompanyID, &sh.HolderID, &sh.StakeBps, &sh.InvestedAmount); err != nil {
			return nil, err
		}
		snap.Shareholders = append(snap.Shareholders, sh)
	}
	if err := shRows.Err(); err != nil {
		return nil, err
	}

	day, err := date.Time()
	if err != nil {
		return nil, fmt.Errorf("bad settlement date %q: %w", date, err)
	}

	// Only agreements still alive as of the settlement date count.
	coopRows, err := tx.QueryContext(ctx, `
		SELECT id, company_a_id, company_b_id, bonus_bps, expires_at
		FROM cooperations
		WHERE (company_a_id = $1 OR company_b_id = $1) AND expires_at > $2
		ORDER BY id`,
		companyID, day)
	if err != nil {
		return nil, fmt.Errorf("cooperation load failed: %w", err)
	}
	defer coopRows.Close()
	for coopRows.Next() {
		var co models.Cooperation
		if err := coopRows.Scan(&co.ID, &co.CompanyAID, &co.CompanyBID, &co.BonusBps, &co.ExpiresAt); err != nil {
			return nil, err
		}
		snap.Cooperations = append(snap.Cooperations, co)
	}
	if err := coopRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// applyInTx writes the company deltas and appends the settlement record.
// Funds floor at zero; the uncovered part of a loss is recorded as shortfall.
func (s *Store) applyInTx(ctx context.Context, tx *sql.Tx, snap *models.CompanySnapshot, rec *models.SettlementRecord) error {
	var dividendsTotal int64
	for _, d := range rec.Dividends {
		dividendsTotal += d.Amount
	}

	var eventCash int64
	var employeeDelta int
	for _, ev := range rec.Events {
		eventCash += ev.CashDelta
		employeeDelta += ev.EmployeeDelta
	}

	fundsDelta := rec.NetProfit - dividendsTotal + eventCash
	newFunds := snap.Company.Funds + fundsDelta
	if newFunds < 0 {
		rec.Shortfall = -newFunds
		newFunds = 0
	}

	newEmployees := snap.Company.EmployeeCount + employeeDelta
	if newEmployees < 0 {
		newEmployees = 0
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE companies
		SET funds = $1, employee_count = $2, version = version + 1
		WHERE id = $3 AND version = $4`,
		newFunds, newEmployees, snap.Company.ID, snap.Company.Version)
	if err != nil {
		return fmt.Errorf("company update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("company %d version conflict", snap.Company.ID)
	}

	dividendsRaw, err := json.Marshal(rec.Dividends)
	if err != nil {
		return err
	}
	eventsRaw, err := json.Marshal(rec.Events)
	if err != nil {
		return err
	}

	rec.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlement_records
			(company_id, date, gross_revenue, payroll, tax, net_profit, shortfall, dividends, events, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.CompanyID, string(rec.Date), rec.GrossRevenue, rec.Payroll, rec.Tax,
		rec.NetProfit, rec.Shortfall, dividendsRaw, eventsRaw, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("settlement record insert failed: %w", err)
	}
	return nil
}
