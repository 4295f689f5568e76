package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// EvictionSpec is how often idle pipelines are swept
const EvictionSpec = "@every 5m"

// Evictor drops pipelines that have not been used for longer than maxIdle
type Evictor interface {
	EvictIdle(maxIdle time.Duration) int
	Len() int
}

// Scheduler handles periodic background jobs for the creator pipelines
type Scheduler struct {
	cron    *cron.Cron
	evictor Evictor
	maxIdle time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(evictor Evictor, maxIdle time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		evictor: evictor,
		maxIdle: maxIdle,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(EvictionSpec, s.evictIdlePipelines); err != nil {
		zap.S().Errorw("failed to register pipeline eviction job", "error", err)
		return err
	}

	s.cron.Start()
	zap.S().Infow("creator pipeline scheduler started", "maxIdle", s.maxIdle)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("creator pipeline scheduler stopped")
}

// Entries is the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) evictIdlePipelines() {
	evicted := s.evictor.EvictIdle(s.maxIdle)
	zap.S().Debugw("idle pipeline sweep finished",
		"evicted", evicted,
		"live", s.evictor.Len(),
	)
}
