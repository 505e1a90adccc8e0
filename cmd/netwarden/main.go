package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/triage-ai/netwarden/internal/classify"
	"github.com/triage-ai/netwarden/internal/config"
	"github.com/triage-ai/netwarden/internal/credstore"
	"github.com/triage-ai/netwarden/internal/enrich"
	"github.com/triage-ai/netwarden/internal/events"
	"github.com/triage-ai/netwarden/internal/extract"
	"github.com/triage-ai/netwarden/internal/pipeline"
	"github.com/triage-ai/netwarden/internal/procinfo"
	"github.com/triage-ai/netwarden/internal/storage"
	"github.com/triage-ai/netwarden/internal/uitree"
	"github.com/triage-ai/netwarden/internal/watcher"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting netwarden",
		zap.String("app", cfg.AppName),
		zap.String("bundle_id", cfg.BundleID),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	// Operator rules file — extraction labels and prompt lists
	var extractRules extract.Rules
	var promptCfg classify.PromptConfig
	if cfg.RulesPath != "" {
		rules, err := config.LoadRules(cfg.RulesPath)
		if err != nil {
			logger.Fatal("failed to load rules file", zap.String("path", cfg.RulesPath), zap.Error(err))
		}
		extractRules.Labels = rules.Extraction.Labels
		extractRules.NameExclusions = rules.Extraction.NameExclusions
		promptCfg.KnownSafe = rules.Prompt.KnownSafe
		promptCfg.Suspicion = rules.Prompt.Suspicion
		logger.Info("rules file loaded", zap.String("path", cfg.RulesPath))
	}

	// Watcher — accessibility bridge, extractor, poll loop
	provider := uitree.NewBridgeProvider(cfg.HelperPath, logger)
	extractor := extract.NewWithRules(extractRules, logger)
	w := watcher.New(provider, extractor, watcher.Config{
		App:          uitree.AppMatch{BundleID: cfg.BundleID, DisplayName: cfg.AppName},
		TitleMarker:  cfg.TitleMarker,
		PollInterval: cfg.PollInterval,
	}, logger)

	// Enrichment — Redis cache when configured, in-process LRU otherwise
	var cache enrich.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := enrich.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-process cache", zap.Error(err))
		} else {
			cache = redisCache
			logger.Info("redis enrichment cache connected", zap.String("addr", cfg.RedisAddr))
		}
	}
	if cache == nil {
		lru, err := enrich.NewLRUCache()
		if err != nil {
			logger.Fatal("failed to build enrichment cache", zap.Error(err))
		}
		cache = lru
	}

	runner := enrich.ExecRunner{}
	enricher := enrich.New(
		enrich.NewCommandWhois(runner, cfg.WhoisCommand),
		enrich.NewHTTPGeo(cfg.GeoBaseURL),
		enrich.NewCommandRDNS(runner, cfg.DigCommand),
		cache,
		logger,
	)

	// Credential store — optional Postgres-persisted slots
	var secretStore classify.SecretStore
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}

		masterKey, err := cfg.MasterKey()
		if err != nil {
			logger.Fatal("invalid master key", zap.Error(err))
		}
		cs, err := credstore.New(db, masterKey, logger)
		if err != nil {
			logger.Fatal("failed to build credential store", zap.Error(err))
		}
		secretStore = cs
		logger.Info("postgres credential store connected")
	} else {
		logger.Info("no POSTGRES_DSN set, using environment credential only")
	}

	pool := classify.NewPool(cfg.APIKey, secretStore, logger)
	classifier := classify.New(classify.Config{
		Endpoint:  cfg.LLMEndpoint,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Prompt:    promptCfg,
	}, pool, logger)

	// Presentation sinks — NATS when configured, always the log sink
	sinks := []events.Sink{events.NewLogSink(logger)}
	if cfg.NATSURL != "" {
		natsSink, err := events.NewNATSSink(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats unavailable, log sink only", zap.Error(err))
		} else {
			defer natsSink.Close()
			sinks = append(sinks, natsSink)
			logger.Info("nats sink connected", zap.String("url", cfg.NATSURL))
		}
	}
	sink := events.Multi(sinks...)

	// Audit trail — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	coordinator := pipeline.New(
		w.Alerts(),
		procinfo.New(logger),
		enricher,
		classifier,
		sink,
		writer,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("watcher stopped", zap.Error(err))
		}
	}()
	coordinatorDone := make(chan struct{})
	go func() {
		defer close(coordinatorDone)
		if err := coordinator.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("coordinator stopped", zap.Error(err))
		}
	}()

	// Admin endpoint — health and metrics
	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
			rw.WriteHeader(http.StatusOK)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		adminServer = &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("admin server listening", zap.String("addr", adminServer.Addr))
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("admin server failed", zap.Error(err))
			}
		}()
	}

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	cancel()

	// In-flight alerts finish their pipeline before the sinks and the
	// audit writer are closed by the deferred calls.
	<-coordinatorDone

	if adminServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown error", zap.Error(err))
		}
	}

	logger.Info("netwarden stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
