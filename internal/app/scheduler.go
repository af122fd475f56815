package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/api"
	"github.com/JakeFAU/funding-crawler/internal/pipeline"
)

// RunFunc executes one crawl over sources.
type RunFunc func(ctx context.Context, sources []pipeline.Source) (pipeline.Report, error)

// Scheduler serializes crawl runs, whether started by cron or by an operator,
// and remembers the last report.
type Scheduler struct {
	run     RunFunc
	sources []pipeline.Source
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	last    *pipeline.Report
	baseCtx context.Context
	cron    *cron.Cron
	wg      sync.WaitGroup
}

// NewScheduler returns a Scheduler whose background runs use ctx.
func NewScheduler(ctx context.Context, run RunFunc, sources []pipeline.Source, logger *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("app: run function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{run: run, sources: sources, logger: logger, baseCtx: ctx}, nil
}

// RunOnce performs a run in the caller's goroutine. It returns
// api.ErrRunInProgress when another run is active and api.ErrStopped after Stop.
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.Report, error) {
	if err := s.acquire(); err != nil {
		return pipeline.Report{}, err
	}
	return s.execute(ctx)
}

// Trigger starts a run in the background.
func (s *Scheduler) Trigger() error {
	if err := s.acquire(); err != nil {
		return err
	}
	go func() {
		_, _ = s.execute(s.baseCtx)
	}()
	return nil
}

// Last returns the most recent report.
func (s *Scheduler) Last() (pipeline.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return pipeline.Report{}, false
	}
	return *s.last, true
}

// Start runs the crawl on the standard five-field cron spec.
func (s *Scheduler) Start(spec string) error {
	logger := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))
	if _, err := c.AddFunc(spec, func() {
		if err := s.Trigger(); err != nil {
			s.logger.Warn("scheduled run skipped", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()
	s.logger.Info("crawl schedule started", zap.String("cron", spec))
	return nil
}

// Stop halts the schedule and waits for an active run to finish. Later
// triggers fail with api.ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

// acquire claims the run slot. The WaitGroup is bumped under the same lock
// that Stop takes, so no run can start once Stop is waiting.
func (s *Scheduler) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return api.ErrStopped
	}
	if s.running {
		return api.ErrRunInProgress
	}
	s.running = true
	s.wg.Add(1)
	return nil
}

func (s *Scheduler) execute(ctx context.Context) (report pipeline.Report, err error) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl run panicked: %v", r)
			s.logger.Error("crawl run panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		s.mu.Lock()
		s.running = false
		if report.RunID != "" {
			last := report
			s.last = &last
		}
		s.mu.Unlock()
	}()

	report, err = s.run(ctx, s.sources)
	if err != nil {
		s.logger.Error("crawl run failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
	return report, err
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
