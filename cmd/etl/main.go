package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/river-wqi-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/river-wqi-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-wqi-etl/internal/adapter/memory"
	"github.com/couchcryptid/river-wqi-etl/internal/adapter/postgres"
	"github.com/couchcryptid/river-wqi-etl/internal/adapter/predictor"
	"github.com/couchcryptid/river-wqi-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/river-wqi-etl/internal/config"
	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
	"github.com/couchcryptid/river-wqi-etl/internal/pipeline"
	"github.com/couchcryptid/river-wqi-etl/internal/retention"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// alertStore is what every backend offers.
type alertStore interface {
	domain.AlertStore
	domain.AlertHistory
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeReady, closeStore, err := openAlertStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open alert store", "backend", cfg.AlertStore, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// River status prediction (feature-flagged via PREDICTOR_ENABLED / PREDICTOR_URL).
	var classifier domain.Predictor
	if cfg.PredictorEnabled {
		client := predictor.NewClient(cfg.PredictorURL, cfg.PredictorTimeout, metrics, logger)
		classifier = predictor.NewCachedPredictor(client, cfg.PredictorCacheSize, metrics)
		metrics.PredictorEnabled.Set(1)
		logger.Info("river status prediction enabled", "url", cfg.PredictorURL, "cache_size", cfg.PredictorCacheSize, "timeout", cfg.PredictorTimeout)
	} else {
		logger.Info("river status prediction disabled")
	}

	sessions := domain.NewSessions()
	evaluator := domain.NewEvaluator(store, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(sessions, evaluator, classifier, pipeline.TransformerOptions{
		ValidateRanges:  cfg.ValidateRanges,
		AutoAcknowledge: cfg.AlertAutoAck,
	}, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	api := httpadapter.NewAPI(sessions, evaluator, store, httpadapter.APIOptions{
		ValidateRanges: cfg.ValidateRanges,
	}, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(p, storeReady), api, logger)

	var purge *retention.Scheduler
	if cfg.AlertRetention > 0 {
		purge, err = retention.NewScheduler(store, cfg.AlertRetention, cfg.AlertPurgeSchedule, nil, metrics, logger)
		if err != nil {
			logger.Error("invalid alert retention settings", "error", err)
			os.Exit(1)
		}
		purge.Start()
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if purge != nil {
		purge.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openAlertStore builds the configured backend together with its readiness
// check and a close function.
func openAlertStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (alertStore, sharedobs.ReadinessChecker, func(), error) {
	alwaysReady := httpadapter.ReadinessFunc(func(context.Context) error { return nil })

	switch cfg.AlertStore {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("alert store opened", "backend", "sqlite", "path", cfg.SQLitePath)
		closeFn := func() {
			if err := s.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		}
		return s, httpadapter.ReadinessFunc(s.Ping), closeFn, nil

	case config.StorePostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		s := postgres.NewStore(pool)
		logger.Info("alert store opened", "backend", "postgres")
		return s, httpadapter.ReadinessFunc(s.Ping), pool.Close, nil

	case config.StoreMemory:
		logger.Warn("alert store is in-memory; history is lost on restart")
		return memory.NewStore(), alwaysReady, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown alert store %q", cfg.AlertStore)
	}
}
