package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/tally/internal/common"
)

// Scheduler runs jobs on cron specs that include a seconds field.
type Scheduler struct {
	cron    *cron.Cron
	logger  *common.Logger
	baseCtx context.Context
}

// NewScheduler creates a stopped scheduler. Jobs receive baseCtx.
func NewScheduler(baseCtx context.Context, logger *common.Logger) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec, e.g. "0 */15 * * * *"
func (s *Scheduler) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		if s.baseCtx.Err() != nil {
			return
		}
		job(s.baseCtx)
	})
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return id, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
	s.cron.Start()
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
