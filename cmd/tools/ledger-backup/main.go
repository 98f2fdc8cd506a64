// cmd/tools/ledger-backup/main.go

// ledger-backup dumps every ledger table to a gzip-compressed JSON file and
// rotates old dumps, keeping the newest N. Run from cron or by hand before
// risky migrations.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"business-empire/internal/common/config"
	"business-empire/internal/common/database"
	stderrors "business-empire/internal/common/errors"
	"business-empire/internal/common/logger"
	"business-empire/internal/ledger"
)

const backupPrefix = "business_empire_backup_"

func main() {
	dir := flag.String("dir", "", "backup directory (overrides config)")
	keep := flag.Int("keep", 0, "number of backup files to keep (overrides config)")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	if *dir == "" {
		*dir = cfg.Backup.Dir
	}
	if *keep == 0 {
		*keep = cfg.Backup.KeepFiles
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := ledger.NewStore(pg.GetDB(), logger.NewZapAdapter(zapLog))
	payload, err := store.Dump(ctx)
	if err != nil {
		zapLog.Fatal("ledger dump failed", zap.Error(err))
	}

	path, err := writeBackup(*dir, payload)
	if err != nil {
		zapLog.Fatal("backup write failed", zap.Error(err))
	}
	zapLog.Info("Backup written",
		zap.String("path", path),
		zap.Any("rows", payload.RowCounts()))

	removed, err := rotateBackups(*dir, *keep)
	if err != nil {
		zapLog.Fatal("backup rotation failed", zap.Error(err))
	}
	if removed > 0 {
		zapLog.Info("Old backups rotated out", zap.Int("removed", removed), zap.Int("kept", *keep))
	}
}

func writeBackup(dir string, payload *ledger.BackupPayload) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", stderrors.NewBackupWriteFailedError(dir, err)
	}

	name := fmt.Sprintf("%s%s.json.gz", backupPrefix, payload.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", stderrors.NewBackupWriteFailedError(path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(payload); err != nil {
		gz.Close()
		return "", stderrors.NewBackupWriteFailedError(path, err)
	}
	if err := gz.Close(); err != nil {
		return "", stderrors.NewBackupWriteFailedError(path, err)
	}
	return path, nil
}

// rotateBackups deletes the oldest dumps beyond keep. Names embed the
// timestamp, so lexical order is chronological order.
func rotateBackups(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, backupPrefix+"*.json.gz"))
	if err != nil {
		return 0, err
	}
	if len(matches) <= keep {
		return 0, nil
	}

	sort.Strings(matches)
	stale := matches[:len(matches)-keep]
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return 0, stderrors.NewBackupWriteFailedError(path, err)
		}
	}
	return len(stale), nil
}
