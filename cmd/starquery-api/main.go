package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/starquery/starquery/internal/api"
	"github.com/starquery/starquery/internal/audit"
	auditpostgres "github.com/starquery/starquery/internal/audit/postgres"
	"github.com/starquery/starquery/internal/auth"
	"github.com/starquery/starquery/internal/cache"
	"github.com/starquery/starquery/internal/config"
	"github.com/starquery/starquery/internal/nl2sql"
	"github.com/starquery/starquery/internal/observability"
	"github.com/starquery/starquery/internal/query"
	duckdbengine "github.com/starquery/starquery/internal/query/duckdb"
	"github.com/starquery/starquery/internal/schema"
	"github.com/starquery/starquery/internal/sqlguard"
	"github.com/starquery/starquery/internal/storage"
	s3store "github.com/starquery/starquery/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("starquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	catalog := schema.Default()
	if cfg.Schema.CatalogFile != "" {
		catalog, err = schema.LoadFile(cfg.Schema.CatalogFile)
		if err != nil {
			logger.Error("failed to load schema catalog", slog.Any("error", err))
			os.Exit(1)
		}
	}

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:        cfg.Warehouse.Endpoint,
		Region:          cfg.Warehouse.Region,
		Bucket:          cfg.Warehouse.Bucket,
		AccessKeyID:     cfg.Warehouse.AccessKeyID,
		SecretAccessKey: cfg.Warehouse.SecretAccessKey,
		UseSSL:          cfg.Warehouse.UseSSL,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	goldTables, err := storage.DiscoverGoldTables(ctx, objectStore, cfg.Warehouse.GoldPrefix)
	if err != nil {
		logger.Error("failed to discover gold tables", slog.Any("error", err))
		os.Exit(1)
	}
	views := make(map[string]string, len(goldTables))
	for tableName, key := range goldTables {
		views[tableName] = objectStore.ObjectURL(key)
	}
	for _, tableName := range catalog.TableNames() {
		if _, ok := views[tableName]; !ok {
			logger.Warn("catalog table has no gold object", slog.String("table", tableName))
		}
	}

	engine, err := duckdbengine.Open(ctx, duckdbengine.Options{
		Path:  cfg.Warehouse.DatabasePath,
		Views: views,
		S3: &duckdbengine.S3Options{
			Endpoint:        cfg.Warehouse.Endpoint,
			Region:          cfg.Warehouse.Region,
			AccessKeyID:     cfg.Warehouse.AccessKeyID,
			SecretAccessKey: cfg.Warehouse.SecretAccessKey,
			UseSSL:          cfg.Warehouse.UseSSL,
		},
		MaxConcurrency: cfg.Warehouse.MaxConcurrency,
		AcquireTimeout: cfg.Warehouse.AcquireTimeout,
	})
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	validator, err := sqlguard.NewValidator(catalog, sqlguard.Limits{
		DefaultRowLimit: cfg.Warehouse.DefaultRowLimit,
		MaxRowLimit:     cfg.Warehouse.MaxRowLimit,
	})
	if err != nil {
		logger.Error("failed to build statement validator", slog.Any("error", err))
		os.Exit(1)
	}

	var recorder audit.Recorder
	readiness := []api.ReadinessCheck{api.CheckWarehouseConfig(cfg)}
	if cfg.Audit.Enabled {
		auditDB, err := auditpostgres.Open(ctx, auditpostgres.DBConfig{
			DSN:             cfg.Audit.DSN,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()

		auditStore := auditpostgres.NewStore(auditDB)
		if err := auditStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		recorder = auditStore
		readiness = append(readiness, auditStore.HealthCheck)
	}

	var resultCache query.ResultCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.New(ctx, cache.Config{
			Addr:     cfg.Cache.Address,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to result cache", slog.Any("error", err))
			os.Exit(1)
		}
		resultCache = redisCache
	}

	queries, err := query.NewService(validator, engine, resultCache, recorder, logger, query.TimeoutPolicy{
		Default: cfg.Warehouse.DefaultTimeout,
		Max:     cfg.Warehouse.MaxTimeout,
	})
	if err != nil {
		logger.Error("failed to build query service", slog.Any("error", err))
		os.Exit(1)
	}

	var translator nl2sql.Translator
	if cfg.AI.GenerateEnabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}, catalog)
		if err != nil {
			logger.Error("failed to initialize SQL generator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	deps := api.Dependencies{
		Logger:            logger,
		Catalog:           catalog,
		Queries:           queries,
		Translator:        translator,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		keyValidator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, keyValidator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.Int("tables", len(views)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
