// Package schedule runs training automation on per-training timers. Jobs
// live in an explicit registry keyed by training id with add/remove/run-now
// operations and a start/stop lifecycle.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strata-systems/strata/pkg/types"
)

// Automation is the slice of the service the scheduler drives.
type Automation interface {
	ListAutomatedTrainings(ctx context.Context) ([]types.Training, error)
	RunAutomationForTraining(ctx context.Context, trainingID string) (*types.TrainingExecution, error)
}

// TriggerParser turns a non-numeric schedule string into a firing
// interval. A digit-only schedule is always treated as whole seconds and
// never reaches the parser.
type TriggerParser func(schedule string) (time.Duration, error)

type job struct {
	trainingID string
	interval   time.Duration
	cancel     context.CancelFunc
}

// Scheduler owns the automation timers. Each job ticks independently; no
// ordering holds between trainings.
type Scheduler struct {
	svc    Automation
	parser TriggerParser
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(svc Automation, parser TriggerParser, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		svc:    svc,
		parser: parser,
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Start loads every automated training and schedules it. Warm boot fans
// out; one bad schedule string fails Start rather than silently dropping
// the job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()

	trainings, err := s.svc.ListAutomatedTrainings(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tr := range trainings {
		tr := tr
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return s.Add(tr.ID, tr.AutomationSchedule)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("scheduler started", "jobs", len(trainings))
	return nil
}

// Stop cancels every job and waits for in-flight runs to finish.
func (s *Scheduler) Stop(_ context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.jobs = make(map[string]*job)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Add registers (or replaces) the timer for a training.
func (s *Scheduler) Add(trainingID, schedule string) error {
	interval, err := s.parseSchedule(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return types.NewError(types.KindInvalidState, "scheduler is not running")
	}
	if old, ok := s.jobs[trainingID]; ok {
		old.cancel()
	}
	jctx, jcancel := context.WithCancel(s.ctx)
	j := &job{trainingID: trainingID, interval: interval, cancel: jcancel}
	s.jobs[trainingID] = j

	s.wg.Add(1)
	go s.loop(jctx, j)
	s.logger.Info("automation scheduled", "training_id", trainingID, "interval", interval)
	return nil
}

// Remove cancels the timer for a training. Removing an unknown id is a
// no-op.
func (s *Scheduler) Remove(trainingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[trainingID]; ok {
		j.cancel()
		delete(s.jobs, trainingID)
		s.logger.Info("automation unscheduled", "training_id", trainingID)
	}
}

// RunNow fires one automation cycle immediately, outside the timer.
func (s *Scheduler) RunNow(ctx context.Context, trainingID string) (*types.TrainingExecution, error) {
	return s.svc.RunAutomationForTraining(ctx, trainingID)
}

// Jobs returns the ids of the currently scheduled trainings.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.svc.RunAutomationForTraining(ctx, j.trainingID); err != nil {
				// Run outcomes are recorded on the execution; only
				// pre-run failures surface here.
				s.logger.Error("automation cycle failed",
					"training_id", j.trainingID, "error", err)
			}
		}
	}
}

func (s *Scheduler) parseSchedule(schedule string) (time.Duration, error) {
	if schedule == "" {
		return 0, types.NewError(types.KindInvalidInput, "empty schedule")
	}
	if allDigits(schedule) {
		var secs int64
		for _, c := range schedule {
			secs = secs*10 + int64(c-'0')
		}
		if secs <= 0 {
			return 0, types.NewError(types.KindInvalidInput, "schedule %q is zero seconds", schedule)
		}
		return time.Duration(secs) * time.Second, nil
	}
	if s.parser == nil {
		return 0, types.NewError(types.KindInvalidInput, "schedule %q is not numeric and no trigger parser is configured", schedule)
	}
	interval, err := s.parser(schedule)
	if err != nil {
		return 0, types.WrapError(types.KindInvalidInput, err, "parsing schedule %q", schedule)
	}
	return interval, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
