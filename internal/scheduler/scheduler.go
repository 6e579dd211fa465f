// Package scheduler owns the periodic tick that advances queued jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/metrics"
	"github.com/bossmind/videomaker/internal/publisher"
	"github.com/bossmind/videomaker/internal/video"
)

// DefaultTopic is the publish topic for job notifications.
const DefaultTopic = "jobs"

// Config controls Scheduler behavior.
type Config struct {
	Interval      time.Duration
	Step          int
	ResultMessage string
	Topic         string
}

// State is a snapshot of the scheduler's bookkeeping.
type State struct {
	StartedAt  time.Time
	LastTickAt *time.Time
	TickCount  int64
	LastError  *string
}

// Scheduler advances at most one running job per tick.
type Scheduler struct {
	store     video.JobStore
	clock     video.Clock
	publisher video.Publisher
	cfg       Config
	logger    *zap.Logger

	tickMu sync.Mutex

	mu    sync.RWMutex
	state State
}

// New constructs a Scheduler.
func New(
	store video.JobStore,
	clock video.Clock,
	pub video.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Second
	}
	if cfg.Step <= 0 {
		cfg.Step = 5
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:     store,
		clock:     clock,
		publisher: pub,
		cfg:       cfg,
		logger:    logger,
		state:     State{StartedAt: clock.Now()},
	}
}

// Run ticks every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.Info("scheduler running", zap.Duration("interval", s.cfg.Interval), zap.Int("step", s.cfg.Step))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

// State returns a copy of the current bookkeeping.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.LastTickAt != nil {
		t := *st.LastTickAt
		st.LastTickAt = &t
	}
	if st.LastError != nil {
		e := *st.LastError
		st.LastError = &e
	}
	return st
}

// Tick performs one pass over the job list. Errors and panics are recorded
// as the last error and returned; the scheduler keeps running either way.
// Completion notices are published after the pass so a slow publisher does
// not hold up the next tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	done, err := s.pass(ctx)
	if done != nil {
		if err := publisher.Notify(ctx, s.publisher, s.cfg.Topic, video.EventJobDone, *done, done.UpdatedAt); err != nil {
			s.logger.Warn("notify job done failed", zap.String("job_id", done.ID), zap.Error(err))
		}
	}
	return err
}

func (s *Scheduler) pass(ctx context.Context) (done *video.Job, err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.clock.Now()
	count := s.beginTick(now)
	metrics.ObserveTick()

	defer func() {
		if r := recover(); r != nil {
			done, err = nil, fmt.Errorf("tick panic: %v", r)
		}
		if err != nil {
			s.recordError(err)
			s.logger.Error("tick error", zap.Int64("tick", count), zap.Error(err))
		}
	}()

	done, err = s.advance(ctx, now)
	if err != nil {
		return nil, err
	}

	switch {
	case count == 1:
		s.logger.Info("automation started")
	case count%10 == 0:
		s.logger.Info("tick ok", zap.Int64("tick", count))
	default:
		s.logger.Debug("tick ok", zap.Int64("tick", count))
	}
	return done, nil
}

func (s *Scheduler) beginTick(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TickCount++
	t := now
	s.state.LastTickAt = &t
	return s.state.TickCount
}

func (s *Scheduler) recordError(err error) {
	msg := err.Error()
	s.mu.Lock()
	s.state.LastError = &msg
	s.mu.Unlock()
}

// advance moves the running job forward and returns it when it finished.
func (s *Scheduler) advance(ctx context.Context, now time.Time) (*video.Job, error) {
	jobs, err := s.store.ListJobs(ctx, video.ListOptions{Order: video.OldestFirst})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	running, err := s.current(ctx, jobs, now)
	if err != nil {
		return nil, err
	}
	if running == "" {
		metrics.SetRunningJobs(0)
		return nil, nil
	}

	var finished bool
	job, err := s.store.UpdateJob(ctx, running, func(j *video.Job) error {
		var advErr error
		finished, advErr = j.Advance(s.cfg.Step, s.cfg.ResultMessage, now)
		return advErr
	})
	if errors.Is(err, video.ErrInvalidTransition) {
		// Canceled between listing and advancing.
		s.logger.Debug("job left running state before advance", zap.String("job_id", running))
		metrics.SetRunningJobs(0)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("advance job %s: %w", running, err)
	}

	if !finished {
		metrics.SetRunningJobs(1)
		return nil, nil
	}
	metrics.SetRunningJobs(0)
	metrics.ObserveJob(string(video.JobStatusDone))
	s.logger.Info("job done", zap.String("job_id", job.ID), zap.Int("progress", job.Progress))
	return &job, nil
}

// current returns the running job's ID, promoting the oldest queued job when
// nothing is running. An empty ID means there is nothing to do.
func (s *Scheduler) current(ctx context.Context, jobs []video.Job, now time.Time) (string, error) {
	for _, j := range jobs {
		if j.Status == video.JobStatusRunning {
			return j.ID, nil
		}
	}
	for _, j := range jobs {
		if j.Status != video.JobStatusQueued {
			continue
		}
		_, err := s.store.UpdateJob(ctx, j.ID, func(job *video.Job) error {
			return job.Start(now)
		})
		if errors.Is(err, video.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("start job %s: %w", j.ID, err)
		}
		metrics.ObserveJob(string(video.JobStatusRunning))
		s.logger.Info("job started", zap.String("job_id", j.ID))
		return j.ID, nil
	}
	return "", nil
}
