package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TickRunner performs one reminder delivery pass.
type TickRunner interface {
	RunTick(ctx context.Context) error
}

// ReminderScheduler drives the reminder service on a fixed interval. Start
// is idempotent: a second call replaces the running timer instead of
// stacking another one. Tick errors are logged and never escape.
type ReminderScheduler struct {
	runner   TickRunner
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReminderScheduler creates a scheduler that ticks every interval.
// Intervals below one minute are raised to one minute.
func NewReminderScheduler(runner TickRunner, interval time.Duration, logger *slog.Logger) *ReminderScheduler {
	if interval < time.Minute {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic ticking and fires one catch-up tick immediately so a
// reminder that became due while the process was down is not delayed by a
// full interval. Any previously started timer is stopped first.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder tick: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("reminder scheduler started", "interval", s.interval.String())

	// Catch-up pass; cron fires its first entry only after one interval.
	go s.tick(ctx)
	return nil
}

// Stop halts the timer. Ticks already running are left to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.logger.Info("reminder scheduler stopped")
}

func (s *ReminderScheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminder tick panicked", "panic", r)
		}
	}()

	if err := s.runner.RunTick(ctx); err != nil {
		s.logger.Error("reminder tick failed", "error", err)
	}
}
