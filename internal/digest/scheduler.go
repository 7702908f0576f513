package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
	"github.com/tallybot/tally-platform/pkg/config"
	"github.com/tallybot/tally-platform/pkg/mqtt"
)

// UserLister enumerates the users to fan a digest out to
type UserLister interface {
	List(ctx context.Context) ([]repo.User, error)
}

// TodoLister fetches the open todos for the morning digest
type TodoLister interface {
	ListOpen(ctx context.Context, userID uuid.UUID) ([]repo.Todo, error)
}

// SummaryReader fetches the daily summary for the evening digest
type SummaryReader interface {
	DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*session.Summary, error)
}

// Scheduler runs the morning and evening digest jobs on cron schedules and
// publishes each user's digest to their outbound topic. A job that fires
// inside quiet hours is skipped, not deferred.
type Scheduler struct {
	cron      *cron.Cron
	users     UserLister
	todos     TodoLister
	summaries SummaryReader
	mqtt      mqtt.Client
	quiet     *QuietHours
	cfg       *config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a digest scheduler
func NewScheduler(users UserLister, todos TodoLister, summaries SummaryReader,
	mqttClient mqtt.Client, quiet *QuietHours, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		users:     users,
		todos:     todos,
		summaries: summaries,
		mqtt:      mqttClient,
		quiet:     quiet,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the digest jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.MorningDigestCron, func() { s.Run(KindMorning) }); err != nil {
		return fmt.Errorf("failed to register morning digest: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.EveningDigestCron, func() { s.Run(KindEvening) }); err != nil {
		return fmt.Errorf("failed to register evening digest: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Digest scheduler started",
		"morning", s.cfg.MorningDigestCron,
		"evening", s.cfg.EveningDigestCron)
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Digest scheduler stopped")
}

// Run executes one digest fan-out. Per-user failures are logged and the
// fan-out continues; one broken user never blocks the rest.
func (s *Scheduler) Run(kind Kind) {
	now := s.now()
	if s.quiet.IsQuiet(now) {
		s.logger.Info("Digest skipped for quiet hours", "kind", kind)
		return
	}

	ctx := context.Background()
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list users for digest", "kind", kind, "error", err)
		return
	}

	sent := 0
	for i := range users {
		user := &users[i]
		text, err := s.build(ctx, user, kind, now)
		if err != nil {
			s.logger.Error("Failed to build digest",
				"kind", kind,
				"user_id", user.ID,
				"error", err)
			continue
		}

		if err := s.publish(user, text); err != nil {
			s.logger.Error("Failed to publish digest",
				"kind", kind,
				"user_id", user.ID,
				"error", err)
			continue
		}
		sent++
	}

	s.logger.Info("Digest fan-out complete", "kind", kind, "users", len(users), "sent", sent)
}

func (s *Scheduler) build(ctx context.Context, user *repo.User, kind Kind, day time.Time) (string, error) {
	switch kind {
	case KindMorning:
		todos, err := s.todos.ListOpen(ctx, user.ID)
		if err != nil {
			return "", err
		}
		return FormatMorning(user, todos), nil
	case KindEvening:
		summary, err := s.summaries.DailySummary(ctx, user.ID, day)
		if err != nil {
			return "", err
		}
		return FormatEvening(user, summary), nil
	default:
		return "", fmt.Errorf("unknown digest kind %q", kind)
	}
}

func (s *Scheduler) publish(user *repo.User, text string) error {
	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	topic := mqtt.OutboundTopic(user.Channel, user.Handle)
	if err := s.mqtt.Publish(topic, 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish digest: %w", err)
	}
	return nil
}
