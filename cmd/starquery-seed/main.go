package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/starquery/starquery/internal/config"
	"github.com/starquery/starquery/internal/observability"
	"github.com/starquery/starquery/internal/seed"
	s3store "github.com/starquery/starquery/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("starquery-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.Warehouse.Endpoint,
		Region:           cfg.Warehouse.Region,
		Bucket:           cfg.Warehouse.Bucket,
		AccessKeyID:      cfg.Warehouse.AccessKeyID,
		SecretAccessKey:  cfg.Warehouse.SecretAccessKey,
		UseSSL:           cfg.Warehouse.UseSSL,
		AutoCreateBucket: true,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	seeder, err := seed.NewSeeder(seedCfg, objectStore, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding gold layer",
		slog.String("bucket", cfg.Warehouse.Bucket),
		slog.String("prefix", seedCfg.GoldPrefix),
		slog.Int("transactions", seedCfg.Transactions),
	)
	if err := seeder.Run(ctx); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seeding complete")
}
