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

	"github.com/querygate/querygate/internal/api"
	"github.com/querygate/querygate/internal/audit"
	auditpostgres "github.com/querygate/querygate/internal/audit/postgres"
	"github.com/querygate/querygate/internal/auth"
	"github.com/querygate/querygate/internal/config"
	connectionspostgres "github.com/querygate/querygate/internal/connections/postgres"
	"github.com/querygate/querygate/internal/executor"
	metadatapostgres "github.com/querygate/querygate/internal/metadata/postgres"
	"github.com/querygate/querygate/internal/observability"
	rlspostgres "github.com/querygate/querygate/internal/rls/postgres"
	"github.com/querygate/querygate/internal/service"
)

func main() {
	cfg, err := config.LoadFromEnv("querygate-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	metadataDB, err := metadatapostgres.Open(context.Background(), metadatapostgres.DBConfig{
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
	defer func() { _ = metadataDB.Close() }()

	connectionStore := connectionspostgres.NewStore(metadataDB)
	policyStore := rlspostgres.NewStore(metadataDB)
	auditStore := auditpostgres.NewStore(metadataDB)

	queryService := &service.Service{
		Policies: policyStore,
		Executor: &executor.Executor{
			Connections: connectionStore,
			Logger:      logger,
		},
		Audit: &audit.Recorder{
			Store:  auditStore,
			Logger: logger,
		},
		Logger: logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Query:             queryService,
		Policies:          policyStore,
		Connections:       connectionStore,
		AuditLog:          auditStore,
		Readiness:         api.CheckMetadataDSN(cfg),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
