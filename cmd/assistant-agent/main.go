package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tallybot/tally-platform/internal/assistant"
	"github.com/tallybot/tally-platform/internal/learning"
	"github.com/tallybot/tally-platform/internal/nlp"
	"github.com/tallybot/tally-platform/internal/pattern"
	"github.com/tallybot/tally-platform/internal/policy"
	"github.com/tallybot/tally-platform/internal/processor"
	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
	"github.com/tallybot/tally-platform/pkg/config"
	"github.com/tallybot/tally-platform/pkg/health"
	"github.com/tallybot/tally-platform/pkg/llm"
	"github.com/tallybot/tally-platform/pkg/mqtt"
	"github.com/tallybot/tally-platform/pkg/postgres"
	"github.com/tallybot/tally-platform/pkg/redis"
)

func main() {
	// Standard bootstrap (consistent with other agents)
	cfg := config.NewConfig()
	cfg.ServiceName = "assistant-agent"
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

	logger.Info("Starting Assistant Agent",
		"mqtt", cfg.MQTTAddress(),
		"redis", cfg.RedisAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	pol := policy.Default()
	if cfg.PolicyPath != "" {
		loaded, err := policy.Load(cfg.PolicyPath)
		if err != nil {
			logger.Error("Failed to load interpretation policy", "path", cfg.PolicyPath, "error", err)
			os.Exit(1)
		}
		pol = loaded
	}

	// Initialize clients
	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)
	llmClient := llm.NewOllamaClient(cfg.LLMEndpoint, cfg.LLMTimeout(), logger)

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	db := pgClient.DB()

	// Repositories and stores
	users := repo.NewUsers(db)
	logs := repo.NewLogs(db)
	todos := repo.NewTodos(db)
	notes := repo.NewNotes(db)
	summaries := repo.NewSummaryBuilder(db)
	patterns := pattern.NewPostgresStore(db)

	sessions := session.NewRedisManager(redisClient, summaries, cfg.ConfirmationTTL(), logger)

	var embedder pattern.Embedder
	if cfg.LLMEmbedModel != "" {
		embedder = nlp.NewEmbedder(llmClient, cfg.LLMEmbedModel)
	}
	matcher := pattern.NewMatcher(patterns, pol, embedder,
		pattern.MatcherConfig{FuzzyMaxDistance: cfg.FuzzyMatchMaxDist}, logger)

	classifier := nlp.NewLLMClassifier(llmClient, cfg.LLMModel, logger)

	learner := learning.NewOrchestrator(patterns, sessions, embedder, pol, learning.Config{
		Step:         cfg.ConfidenceStep,
		Floor:        cfg.ConfidenceFloor,
		KnownIntents: nlp.KnownIntents,
	}, logger)

	registry := processor.NewRegistry()
	handlers := processor.NewHandlers(logs, todos, notes, patterns, sessions, logger)
	if err := handlers.RegisterAll(registry); err != nil {
		logger.Error("Failed to register intent handlers", "error", err)
		os.Exit(1)
	}

	proc := processor.NewProcessor(users, matcher, classifier, sessions, learner, registry,
		processor.Config{ConfidenceThreshold: cfg.ConfidenceThreshold}, logger)

	agent := assistant.NewAgent(mqttClient, redisClient, proc, cfg, logger)

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

	// Start agent
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			agentErr <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	cancel()
	agent.Stop()
	pgClient.Disconnect()
	logger.Info("Assistant agent stopped")
}
