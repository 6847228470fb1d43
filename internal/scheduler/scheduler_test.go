package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mohammad-safakhou/hermes/internal/telemetry"
)

var t0 = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

type call struct {
	args []any
}

func recorder() (Action, <-chan call) {
	ch := make(chan call, 16)
	return func(_ context.Context, args []any) error {
		ch <- call{args: args}
		return nil
	}, ch
}

func expectCall(t *testing.T, ch <-chan call) call {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not run")
	}
	return call{}
}

func expectNoCall(t *testing.T, ch <-chan call) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected run with args %v", c.args)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJobFiresOnceAtTriggerTime(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock))
	defer s.Shutdown(context.Background())

	action, calls := recorder()
	at := t0.Add(10 * time.Minute)
	info, err := s.Register(Job{Name: "mail", Trigger: At(at), Args: []any{"a@b.c", "hi"}, Action: action})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !info.RunAt.Equal(at) || info.ID == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	clock.Set(at.Add(-time.Second))
	if n := s.RunDue(); n != 0 {
		t.Fatalf("ran %d jobs before trigger time", n)
	}

	clock.Set(at)
	if n := s.RunDue(); n != 1 {
		t.Fatalf("ran %d jobs at trigger time, want 1", n)
	}
	c := expectCall(t, calls)
	if len(c.args) != 2 || c.args[0] != "a@b.c" || c.args[1] != "hi" {
		t.Fatalf("args = %v", c.args)
	}

	clock.Advance(time.Minute)
	if n := s.RunDue(); n != 0 {
		t.Fatalf("job ran twice")
	}
	if got := len(s.Jobs()); got != 0 {
		t.Fatalf("job still pending after run: %d", got)
	}
}

func TestLateJobBeyondGraceIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	clock := NewManualClock(t0)
	s := New(WithClock(clock), WithLogger(zap.New(core)), WithMetrics(metrics))
	defer s.Shutdown(context.Background())

	action, calls := recorder()
	if _, err := s.Register(Job{Name: "stale", Trigger: At(t0.Add(-65 * time.Second)), Action: action}); err != nil {
		t.Fatalf("register of past job should succeed: %v", err)
	}
	if n := s.RunDue(); n != 0 {
		t.Fatalf("misfired job ran")
	}
	expectNoCall(t, calls)

	if logs.FilterMessage("job misfired, dropping run").Len() != 1 {
		t.Fatalf("expected one misfire warning, got %v", logs.All())
	}
	if len(s.Jobs()) != 0 {
		t.Fatalf("misfired job should be removed")
	}
	if n, err := testutil.GatherAndCount(reg, "hermes_scheduler_jobs_total"); err != nil || n != 1 {
		t.Fatalf("scheduler metric series = %d (%v)", n, err)
	}
}

func TestLateJobWithinGraceRuns(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock))
	defer s.Shutdown(context.Background())

	action, calls := recorder()
	if _, err := s.Register(Job{Name: "late", Trigger: At(t0.Add(-30 * time.Second)), Action: action}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if n := s.RunDue(); n != 1 {
		t.Fatalf("job within grace did not run")
	}
	expectCall(t, calls)
}

func TestGraceBoundaryIsSixtySeconds(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock))
	defer s.Shutdown(context.Background())

	action, calls := recorder()
	s.Register(Job{Name: "edge", Trigger: At(t0.Add(-MisfireGrace)), Action: action})
	s.Register(Job{Name: "past", Trigger: At(t0.Add(-MisfireGrace - time.Second)), Action: action})
	if n := s.RunDue(); n != 1 {
		t.Fatalf("expected only the job at the grace edge to run, got %d", n)
	}
	expectCall(t, calls)
	expectNoCall(t, calls)
}

func TestCronReschedules(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock))
	defer s.Shutdown(context.Background())

	trig, err := Cron("*/5 * * * *")
	if err != nil {
		t.Fatalf("cron: %v", err)
	}
	action, calls := recorder()
	info, err := s.Register(Job{Name: "digest", Trigger: trig, Action: action})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if want := t0.Add(5 * time.Minute); !info.RunAt.Equal(want) {
		t.Fatalf("first run = %v, want %v", info.RunAt, want)
	}

	clock.Set(t0.Add(5 * time.Minute))
	s.RunDue()
	expectCall(t, calls)

	jobs := s.Jobs()
	if len(jobs) != 1 || !jobs[0].RunAt.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("cron job not rescheduled: %+v", jobs)
	}
}

func TestInvalidTriggers(t *testing.T) {
	if _, err := Cron("not a cron"); !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("expected ErrInvalidTrigger, got %v", err)
	}
	s := New()
	defer s.Shutdown(context.Background())
	action, _ := recorder()
	if _, err := s.Register(Job{Name: "zero", Trigger: At(time.Time{}), Action: action}); !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("expected ErrInvalidTrigger for zero time, got %v", err)
	}
	if _, err := s.Register(Job{Name: "none", Action: action}); !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("expected ErrInvalidTrigger for missing trigger, got %v", err)
	}
	if _, err := s.Register(Job{Name: "noop", Trigger: At(t0)}); err == nil {
		t.Fatalf("expected error for missing action")
	}
}

func TestCancel(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock))
	defer s.Shutdown(context.Background())

	action, calls := recorder()
	info, _ := s.Register(Job{Name: "x", Trigger: At(t0.Add(time.Minute)), Action: action})
	if err := s.Cancel(info.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.Cancel(info.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("second cancel: %v", err)
	}
	clock.Advance(time.Minute)
	s.RunDue()
	expectNoCall(t, calls)
}

func TestShutdownIsIdempotent(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock), WithTick(10*time.Millisecond))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	action, calls := recorder()
	s.Register(Job{Name: "pending", Trigger: At(t0.Add(time.Hour)), Action: action})

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	clock.Advance(time.Hour)
	if n := s.RunDue(); n != 0 {
		t.Fatalf("job ran after shutdown")
	}
	expectNoCall(t, calls)
	if _, err := s.Register(Job{Name: "late", Trigger: At(t0), Action: action}); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("register after shutdown: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("start after shutdown: %v", err)
	}
}

func TestBackgroundLoopFiresJobs(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock), WithTick(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	var failures atomic.Int32
	done := make(chan struct{})
	s.Register(Job{Name: "boom", Trigger: At(t0), Action: func(context.Context, []any) error {
		failures.Add(1)
		close(done)
		return errors.New("smtp down")
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not dispatch job")
	}
	if failures.Load() != 1 {
		t.Fatalf("job ran %d times", failures.Load())
	}
}

func TestStartContextCancelStopsScheduler(t *testing.T) {
	clock := NewManualClock(t0)
	s := New(WithClock(clock), WithTick(5*time.Millisecond))
	defer s.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	action, calls := recorder()
	s.Register(Job{Name: "pending", Trigger: At(t0.Add(time.Minute)), Action: action})
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := s.Register(Job{Name: "after", Trigger: At(t0.Add(time.Hour)), Action: action})
		if errors.Is(err, ErrSchedulerStopped) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("register still accepted after the start context was cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(s.Jobs()); got != 0 {
		t.Fatalf("pending jobs after stop: %d", got)
	}
	clock.Advance(time.Hour)
	if n := s.RunDue(); n != 0 {
		t.Fatalf("job ran after stop")
	}
	expectNoCall(t, calls)
	if err := s.Start(context.Background()); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("start after stop: %v", err)
	}
}
