package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-push-dispatch/internal/application/access"
	"github.com/go-push-dispatch/internal/application/dispatch"
	"github.com/go-push-dispatch/internal/config"
	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/infrastructure/dynamo"
	"github.com/go-push-dispatch/internal/infrastructure/expo"
	jwtinfra "github.com/go-push-dispatch/internal/infrastructure/jwt"
	"github.com/go-push-dispatch/internal/infrastructure/redis"
	s3infra "github.com/go-push-dispatch/internal/infrastructure/s3"
	"github.com/go-push-dispatch/internal/infrastructure/sns"
	transporthttp "github.com/go-push-dispatch/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()
	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("load aws config", "err", err)
		os.Exit(1)
	}

	dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	if cfg.BootstrapTables {
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	}
	queueRepo := dynamo.NewQueueRepo(dynamoClient, cfg.DynamoTables.Queue, logger)
	tokenRepo := dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.Tokens, logger)

	// Broadcasts are refused without a verification key; batch mode still runs.
	var verifier access.TokenVerifier
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		verifier = p
	} else {
		logger.Warn("jwt provider not available, admin broadcasts disabled", "err", err)
	}
	guard := access.NewGuard(verifier, dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users), logger)

	var sinks []dispatch.ReportSink
	if cfg.Reports.MetricsEnabled {
		sinks = append(sinks, dynamo.NewMetricsRepo(dynamoClient, cfg.DynamoTables.Metrics, cfg.Reports.MetricsTTL))
	}
	if cfg.Reports.Bucket != "" {
		sinks = append(sinks, s3infra.NewReportArchive(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.Reports.Bucket, cfg.Reports.Prefix))
	}
	if cfg.Reports.AlertTopicARN != "" {
		sinks = append(sinks, sns.NewAlerter(sns.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.Reports.AlertTopicARN))
	}

	deps := dispatch.Deps{
		Queue:   queueRepo,
		Audit:   queueRepo,
		Tokens:  tokenRepo,
		Records: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Gateway: expo.New(cfg.Push.GatewayURL, cfg.Push.AccessToken, cfg.Push.Timeout),
		Sinks:   sinks,
		Logger:  logger,
	}
	if cfg.Redis.URL != "" {
		lease, err := redis.NewLease(ctx, cfg.Redis.URL, cfg.Redis.LeaseKey, cfg.Redis.LeaseTTL)
		if err != nil {
			logger.Warn("batch lease not available, relying on conditional claims only", "err", err)
		} else {
			deps.Lock = lease
		}
	}

	svc := dispatch.NewService(deps, dispatch.Options{
		TokenPageSize:    cfg.Dispatch.TokenPageSize,
		ChunkSize:        cfg.Push.ChunkSize,
		ChunkDelay:       cfg.Push.ChunkDelay,
		ClaimLimit:       cfg.Dispatch.ClaimLimit,
		PersistBatchSize: cfg.Dispatch.PersistBatchSize,
		Filter:           domain.TokenFilter{RequireActive: true, RequireSignedIn: cfg.Dispatch.RequireSignedIn},
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{Dispatch: svc, Guard: guard, Logger: logger})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
