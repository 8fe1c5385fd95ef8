package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/silicalab/internal/config"
	"github.com/mamadbah2/silicalab/internal/domain/models"
	"github.com/mamadbah2/silicalab/internal/service/reporting"
	"github.com/mamadbah2/silicalab/pkg/clients/notify"
)

const (
	digestWindow  = 24 * time.Hour
	digestTimeout = 2 * time.Minute
)

// Summarizer aggregates recently created reports.
type Summarizer interface {
	Summarize(ctx context.Context, since time.Time) (models.Digest, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	summary  Summarizer
	notifier notify.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. The cron schedule is
// evaluated in cfg.Timezone.
func NewScheduler(cfg config.DigestConfig, summary Summarizer, notifier notify.Client, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	// robfig/cron/v3 default parser is standard cron (5 fields: min, hour, dom, month, dow).
	if _, err := cron.ParseStandard(cfg.CronSchedule); err != nil {
		return nil, fmt.Errorf("parse digest schedule %q: %w", cfg.CronSchedule, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: cfg.CronSchedule,
		summary:  summary,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.sendDailyDigest); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	if err := s.RunDigest(ctx); err != nil {
		s.logger.Error("failed to send daily digest", zap.Error(err))
		return
	}
	s.logger.Info("daily digest sent successfully")
}

// RunDigest summarizes the last 24 hours and posts the result.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	digest, err := s.summary.Summarize(ctx, s.now().Add(-digestWindow))
	if err != nil {
		return fmt.Errorf("summarize reports: %w", err)
	}

	msg := notify.Message{
		Event: "digest.daily",
		Text:  reporting.FormatDigest(digest),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}
