package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tallybot/tally-platform/internal/digest"
	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
	"github.com/tallybot/tally-platform/pkg/config"
	"github.com/tallybot/tally-platform/pkg/health"
	"github.com/tallybot/tally-platform/pkg/mqtt"
	"github.com/tallybot/tally-platform/pkg/postgres"
	"github.com/tallybot/tally-platform/pkg/redis"
)

func main() {
	// Standard bootstrap (consistent with other agents)
	cfg := config.NewConfig()
	cfg.ServiceName = "digest-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Digest Agent",
		"mqtt", cfg.MQTTAddress(),
		"redis", cfg.RedisAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize clients
	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	db := pgClient.DB()

	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT", "error", err)
		os.Exit(1)
	}

	users := repo.NewUsers(db)
	todos := repo.NewTodos(db)
	summaries := repo.NewSummaryBuilder(db)
	sessions := session.NewRedisManager(redisClient, summaries, cfg.ConfirmationTTL(), logger)

	quiet := digest.NewQuietHours(cfg.Latitude, cfg.Longitude,
		time.Duration(cfg.QuietGraceMin)*time.Minute)

	scheduler := digest.NewScheduler(users, todos, sessions, mqttClient, quiet, cfg, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start digest scheduler", "error", err)
		os.Exit(1)
	}

	// Health endpoints: fast liveness plus a dependency-checking variant
	checker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", checker.HandlerFunc())
		mux.HandleFunc("/health/details", checker.DetailedHandlerFunc())
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Health endpoint failed", "error", err)
		}
	}()

	logger.Info("Digest agent started",
		"morning", cfg.MorningDigestCron,
		"evening", cfg.EveningDigestCron)

	// Wait for shutdown
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()
	scheduler.Stop()
	mqttClient.Disconnect()
	pgClient.Disconnect()
	logger.Info("Digest agent stopped")
}
