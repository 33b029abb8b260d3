package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/querygate/querygate/internal/audit/archive"
	auditpostgres "github.com/querygate/querygate/internal/audit/postgres"
	"github.com/querygate/querygate/internal/config"
	metadatapostgres "github.com/querygate/querygate/internal/metadata/postgres"
	"github.com/querygate/querygate/internal/observability"
	s3store "github.com/querygate/querygate/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("querygate-archiver")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := metadatapostgres.Open(context.Background(), metadatapostgres.DBConfig{
		DSN:             cfg.Metadata.DSN,
		MaxOpenConns:    cfg.Metadata.MaxOpenConns,
		MaxIdleConns:    cfg.Metadata.MaxIdleConns,
		ConnMaxIdleTime: cfg.Metadata.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Metadata.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open metadata db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	svc := &archive.Service{
		Audit: auditpostgres.NewStore(db),
		Store: store,
		Config: archive.Config{
			Interval:   cfg.Archive.Interval,
			MaxAge:     cfg.Archive.MaxAge,
			BatchLimit: cfg.Archive.BatchLimit,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("audit archiver started")
	if err := svc.Run(ctx); err != nil {
		logger.Error("audit archiver failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("audit archiver stopped")
}
