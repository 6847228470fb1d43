package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/telemetry"
)

// MisfireGrace is how late a job may still start. Later runs are dropped.
const MisfireGrace = 60 * time.Second

const defaultTick = time.Second

var (
	ErrSchedulerStopped = errors.New("scheduler stopped")
	ErrJobNotFound      = errors.New("job not found")
)

// Action is the work performed when a job fires.
type Action func(ctx context.Context, args []any) error

// Job describes work to register.
type Job struct {
	Name    string
	Trigger Trigger
	Args    []any
	Action  Action
}

// JobInfo is a snapshot of a pending job.
type JobInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	RunAt   time.Time `json:"run_at"`
	Args    []any     `json:"args,omitempty"`
}

type entry struct {
	id    string
	job   Job
	runAt time.Time
}

func (e *entry) info() JobInfo {
	return JobInfo{
		ID:      e.id,
		Name:    e.job.Name,
		Trigger: e.job.Trigger.String(),
		RunAt:   e.runAt,
		Args:    append([]any(nil), e.job.Args...),
	}
}

// Scheduler runs jobs at trigger times. Jobs later than the misfire grace
// are dropped with a warning instead of running.
type Scheduler struct {
	clock   Clock
	tick    time.Duration
	logger  *zap.Logger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	jobs    map[string]*entry
	started bool
	stopped bool

	runCtx    context.Context
	cancelRun context.CancelFunc
	loopDone  chan struct{}
	stopOnce  sync.Once
	running   sync.WaitGroup
}

type Option func(*Scheduler)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTick sets the polling interval of the background loop.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  RealClock(),
		tick:   defaultTick,
		logger: zap.NewNop(),
		jobs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	return s
}

// Start launches the background loop. Calling it again is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	s.loopDone = make(chan struct{})
	go s.loop(ctx)
	s.logger.Info("scheduler started", zap.Duration("tick", s.tick), zap.Duration("misfire_grace", MisfireGrace))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n := s.halt()
			s.logger.Info("scheduler context done, stopping", zap.Int("discarded", n))
			return
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			s.RunDue()
		}
	}
}

// Register adds a job. A trigger time already in the past is accepted; the
// misfire policy applies when the job comes due.
func (s *Scheduler) Register(job Job) (JobInfo, error) {
	if job.Action == nil {
		return JobInfo{}, fmt.Errorf("job %q has no action", job.Name)
	}
	if job.Trigger == nil {
		return JobInfo{}, fmt.Errorf("%w: job %q has no trigger", ErrInvalidTrigger, job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return JobInfo{}, ErrSchedulerStopped
	}
	runAt, err := job.Trigger.First(s.clock.Now())
	if err != nil {
		return JobInfo{}, err
	}
	e := &entry{id: uuid.NewString(), job: job, runAt: runAt}
	s.jobs[e.id] = e
	s.logger.Info("job registered", zap.String("id", e.id), zap.String("name", job.Name), zap.Time("run_at", runAt))
	return e.info(), nil
}

// Jobs lists pending jobs ordered by fire time.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RunAt.Equal(out[j].RunAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RunAt.Before(out[j].RunAt)
	})
	return out
}

// Cancel removes a pending job.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	delete(s.jobs, id)
	s.metrics.SchedulerJob("cancelled")
	return nil
}

// RunDue dispatches every job whose fire time has passed and returns how many
// were started. The background loop calls it on every tick.
func (s *Scheduler) RunDue() int {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0
	}
	now := s.clock.Now()
	var due []*entry
	for id, e := range s.jobs {
		if e.runAt.After(now) {
			continue
		}
		fireAt := e.runAt
		late := now.Sub(fireAt)
		misfired := late > MisfireGrace

		next, again := e.job.Trigger.Next(fireAt)
		if misfired {
			next, again = e.job.Trigger.Next(now)
		}
		if again {
			e.runAt = next
		} else {
			delete(s.jobs, id)
		}

		if misfired {
			s.logger.Warn("job misfired, dropping run",
				zap.String("id", id),
				zap.String("name", e.job.Name),
				zap.Time("run_at", fireAt),
				zap.Duration("late", late))
			s.metrics.SchedulerJob("misfired")
			continue
		}
		due = append(due, &entry{id: id, job: e.job, runAt: fireAt})
	}
	s.running.Add(len(due))
	s.mu.Unlock()

	for _, e := range due {
		go s.execute(e)
	}
	return len(due)
}

func (s *Scheduler) execute(e *entry) {
	defer s.running.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("id", e.id), zap.Any("panic", r))
			s.metrics.SchedulerJob("failed")
		}
	}()

	if err := e.job.Action(s.runCtx, e.job.Args); err != nil {
		s.logger.Error("job failed", zap.String("id", e.id), zap.String("name", e.job.Name), zap.Error(err))
		s.metrics.SchedulerJob("failed")
		return
	}
	s.logger.Info("job executed", zap.String("id", e.id), zap.String("name", e.job.Name), zap.Time("run_at", e.runAt))
	s.metrics.SchedulerJob("executed")
}

// Shutdown stops the loop and waits for running jobs until ctx is done.
// Pending jobs are discarded. It is safe to call more than once.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		pending := s.halt()
		s.mu.Lock()
		loopDone := s.loopDone
		s.mu.Unlock()
		if loopDone != nil {
			<-loopDone
		}

		waited := make(chan struct{})
		go func() {
			s.running.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			err = fmt.Errorf("waiting for running jobs: %w", ctx.Err())
		}
		s.logger.Info("scheduler stopped", zap.Int("discarded", pending))
	})
	return err
}

// halt marks the scheduler stopped, discards pending jobs and cancels the
// context of running ones. It returns how many jobs were discarded.
func (s *Scheduler) halt() int {
	s.mu.Lock()
	s.stopped = true
	pending := len(s.jobs)
	s.jobs = make(map[string]*entry)
	s.mu.Unlock()
	s.cancelRun()
	return pending
}
