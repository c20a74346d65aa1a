package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs training periodically.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	opts   TrainOptions
	log    *slog.Logger
}

// NewScheduler creates a Scheduler that retrains every interval.
func NewScheduler(
	eng *Engine,
	interval time.Duration,
	opts TrainOptions,
	log *slog.Logger,
) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("retrain interval must be positive (got %s)", interval)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	s := &Scheduler{
		cron:   c,
		engine: eng,
		opts:   opts,
		log:    log,
	}

	if _, err := c.AddFunc("@every "+interval.String(), s.runTraining); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runTraining() {
	ctx := context.Background()
	s.log.Info("scheduled training starting")
	res, err := s.engine.RunTraining(ctx, s.opts)
	switch {
	case errors.Is(err, ErrTrainingInProgress):
		s.log.Info("scheduled training skipped, a run is already in progress")
	case err != nil:
		s.log.Error("scheduled training failed", "error", err)
	case res.AllFailed():
		s.log.Warn("scheduled training produced no models", "training_id", res.TrainingID)
	}
}
