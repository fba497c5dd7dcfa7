package application

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func newCountingRunner() *countingRunner {
	return &countingRunner{done: make(chan struct{}, 16)}
}

func (r *countingRunner) RunTick(context.Context) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func waitForTick(t *testing.T, runner *countingRunner) {
	t.Helper()
	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func TestSchedulerStartFiresCatchUpTick(t *testing.T) {
	t.Parallel()

	runner := newCountingRunner()
	scheduler := NewReminderScheduler(runner, time.Hour, nil)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer scheduler.Stop()

	waitForTick(t, runner)
	if runner.count() < 1 {
		t.Fatal("expected an immediate catch-up tick")
	}
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := newCountingRunner()
	scheduler := NewReminderScheduler(runner, time.Hour, nil)

	for i := 0; i < 3; i++ {
		if err := scheduler.Start(context.Background()); err != nil {
			t.Fatalf("unexpected error on start %d: %v", i, err)
		}
	}
	defer scheduler.Stop()

	// Each Start replaces the prior timer, so only one cron instance
	// survives; the catch-up ticks themselves are expected.
	for i := 0; i < 3; i++ {
		waitForTick(t, runner)
	}

	scheduler.mu.Lock()
	running := scheduler.cron
	scheduler.mu.Unlock()
	if running == nil {
		t.Fatal("expected a running timer after Start")
	}
}

func TestSchedulerStopIsSafeWithoutStart(t *testing.T) {
	t.Parallel()

	scheduler := NewReminderScheduler(newCountingRunner(), time.Hour, nil)
	scheduler.Stop()
	scheduler.Stop()
}

func TestSchedulerMinimumInterval(t *testing.T) {
	t.Parallel()

	scheduler := NewReminderScheduler(newCountingRunner(), time.Second, nil)
	if scheduler.interval != time.Minute {
		t.Fatalf("expected interval raised to one minute, got %v", scheduler.interval)
	}
}
