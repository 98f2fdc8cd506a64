// internal/ledger/backup.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// backupTables is the dump order for ledger backups.
var backupTables = []string{
	"companies",
	"shareholders",
	"products",
	"real_estates",
	"cooperations",
	"settlement_records",
	"daily_reports",
}

// BackupPayload is the serialized form written by the ledger-backup tool.
type BackupPayload struct {
	Project   string                              `json:"project"`
	CreatedAt time.Time                           `json:"createdAtUtc"`
	Tables    map[string][]map[string]interface{} `json:"tables"`
}

// RowCounts returns the number of rows dumped per table.
func (p *BackupPayload) RowCounts() map[string]int {
	counts := make(map[string]int, len(p.Tables))
	for name, rows := range p.Tables {
		counts[name] = len(rows)
	}
	return counts
}

// Dump reads every ledger table into a backup payload.
func (s *Store) Dump(ctx context.Context) (*BackupPayload, error) {
	payload := &BackupPayload{
		Project:   "business-empire",
		CreatedAt: time.Now().UTC(),
		Tables:    make(map[string][]map[string]interface{}, len(backupTables)),
	}

	for _, table := range backupTables {
		rows, err := s.dumpTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("dump of table %s failed: %w", table, err)
		}
		payload.Tables[table] = rows
	}
	return payload, nil
}

func (s *Store) dumpTable(ctx context.Context, table string) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			record[col] = jsonSafe(values[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// jsonSafe converts driver values into JSON-encodable types.
func jsonSafe(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case sql.RawBytes:
		return string(val)
	default:
		return v
	}
}
