// cmd/settlementd/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"business-empire/internal/cache"
	"business-empire/internal/common/aws"
	"business-empire/internal/common/config"
	"business-empire/internal/common/database"
	"business-empire/internal/common/logger"
	"business-empire/internal/common/observability"
	"business-empire/internal/ledger"
	"business-empire/internal/models"
	"business-empire/internal/notify"
	"business-empire/internal/scheduler"
	"business-empire/internal/settlement"
	"business-empire/pkg/catalog"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	once := flag.String("once", "", "settle a single date (YYYY-MM-DD) and exit instead of scheduling")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting settlement daemon...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level/format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Company-type catalog ---
	types, err := catalog.Load(cfg.Settlement.CatalogPath)
	if err != nil {
		zapLog.Fatal("company type catalog invalid", zap.Error(err))
	}
	zapLog.Info("Company type catalog loaded", zap.Int("types", types.Len()))

	// --- Report sinks ---
	notifiers := []settlement.Notifier{notify.NewLogNotifier(log)}

	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		notifiers = append(notifiers, notify.NewReportIndexer(esClient, cfg.Database.Elasticsearch.ReportIndex))
		zapLog.Info("Elasticsearch report indexing enabled",
			zap.String("index", cfg.Database.Elasticsearch.ReportIndex))
	}

	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifiers = append(notifiers, notify.NewSNSNotifier(snsClient, cfg.Notifications.SNS.TopicARN))
		zapLog.Info("SNS report delivery enabled",
			zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}

	// --- Settlement engine ---
	store := ledger.NewStore(pg.GetDB(), log)
	lock := cache.NewDateLock(rdb.GetClient(), config.GetDuration(cfg.Settlement.LeaseTTL), log)
	ads := cache.NewAdStore(rdb.GetClient())

	engine := settlement.NewEngine(store, lock, ads, types, settlement.Params{
		BusyWait:           config.GetDuration(cfg.Settlement.BusyWait),
		TxTimeout:          config.GetDuration(cfg.Settlement.TxTimeout),
		TaxPolicy:          settlement.TaxPolicy(cfg.Settlement.TaxPolicy),
		TaxRateBps:         cfg.Settlement.TaxRateBps,
		EventSeed:          cfg.Settlement.EventSeed,
		EventChanceBps:     cfg.Game.EventChanceBps,
		StakeFloorBps:      cfg.Game.StakeFloorBps,
		SocialInsuranceBps: cfg.Game.SocialInsuranceBps,
		CoopCapBps:         cfg.Game.CoopCapBps,
		WageFallback:       50,
	}, log, notifiers...).WithObservability(obs)

	// --- One-shot mode ---
	if *once != "" {
		report, err := engine.RunSettlement(ctx, models.Date(*once))
		if err != nil {
			zapLog.Fatal("settlement failed", zap.String("date", *once), zap.Error(err))
		}
		fmt.Println(notify.FormatReport(report))
		return
	}

	// --- Scheduler ---
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Settlement.Hour, cfg.Settlement.Minute, engine.RunSettlement, log)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(runCtx); err != nil && runCtx.Err() == nil {
			zapLog.Error("Scheduler stopped unexpectedly", zap.Error(err))
		}
	}()
	zapLog.Info("Daily settlement scheduled",
		zap.Int("hour", cfg.Settlement.Hour),
		zap.Int("minute", cfg.Settlement.Minute))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping scheduler...")
	cancel()

	select {
	case <-schedDone:
	case <-time.After(30 * time.Second):
		zapLog.Warn("Scheduler did not stop within the shutdown window")
	}

	zapLog.Info("Settlement daemon stopped gracefully")
}
