package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/silicalab/internal/config"
	"github.com/mamadbah2/silicalab/internal/domain/models"
	"github.com/mamadbah2/silicalab/pkg/clients/notify"
)

type fakeSummarizer struct {
	since  time.Time
	digest models.Digest
	err    error
}

func (f *fakeSummarizer) Summarize(_ context.Context, since time.Time) (models.Digest, error) {
	f.since = since
	f.digest.Since = since
	return f.digest, f.err
}

type fakeNotifier struct {
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func digestConfig() config.DigestConfig {
	return config.DigestConfig{CronSchedule: "0 18 * * *", Timezone: "UTC"}
}

func TestNewSchedulerRejectsBadConfig(t *testing.T) {
	cfg := digestConfig()
	cfg.CronSchedule = "every evening"
	if _, err := NewScheduler(cfg, &fakeSummarizer{}, &fakeNotifier{}, nil); err == nil {
		t.Error("expected schedule error")
	}

	cfg = digestConfig()
	cfg.Timezone = "Mars/Olympus"
	if _, err := NewScheduler(cfg, &fakeSummarizer{}, &fakeNotifier{}, nil); err == nil {
		t.Error("expected timezone error")
	}
}

func TestRunDigest(t *testing.T) {
	summary := &fakeSummarizer{digest: models.Digest{Reports: 3, TotalQuantity: 75, MeanAFS: 2.8}}
	notifier := &fakeNotifier{}

	s, err := NewScheduler(digestConfig(), summary, notifier, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Date(2024, 1, 16, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.RunDigest(context.Background()); err != nil {
		t.Fatalf("RunDigest: %v", err)
	}

	if want := now.Add(-24 * time.Hour); !summary.since.Equal(want) {
		t.Errorf("since = %v, want %v", summary.since, want)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(notifier.sent))
	}
	if msg := notifier.sent[0]; msg.Event != "digest.daily" || !strings.Contains(msg.Text, "3 reports") {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestRunDigestErrors(t *testing.T) {
	notifier := &fakeNotifier{}
	s, err := NewScheduler(digestConfig(), &fakeSummarizer{err: errors.New("db down")}, notifier, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RunDigest(context.Background()); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("err = %v, want summarize failure", err)
	}
	if len(notifier.sent) != 0 {
		t.Error("nothing should be sent when summarizing fails")
	}

	s, err = NewScheduler(digestConfig(), &fakeSummarizer{}, &fakeNotifier{err: errors.New("webhook down")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RunDigest(context.Background()); err == nil || !strings.Contains(err.Error(), "webhook down") {
		t.Errorf("err = %v, want send failure", err)
	}
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(digestConfig(), &fakeSummarizer{}, &fakeNotifier{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if entries := s.cron.Entries(); len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
	s.Stop()
}
