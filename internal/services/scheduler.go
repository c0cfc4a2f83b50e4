package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/models"
)

// DefaultSchedule is how often the scheduler sweeps draw statuses
const DefaultSchedule = "@every 1m"

// SchedulerRepository defines the repository methods needed by Scheduler
type SchedulerRepository interface {
	ListDrawsByStatus(ctx context.Context, statuses ...models.DrawStatus) ([]models.Draw, error)
}

// Scheduler moves draws along their lifecycle as their configured times pass:
// scheduled draws open once sales start, active draws close once the
// earliest prize draw time is reached.
type Scheduler struct {
	log     logger.Logger
	repo    SchedulerRepository
	catalog CatalogServicer
	clock   clock.Clock
	spec    string
	cron    *cron.Cron
}

// NewScheduler creates a new Scheduler. spec is a cron expression or descriptor.
func NewScheduler(log logger.Logger, repo SchedulerRepository, catalog CatalogServicer, clk clock.Clock, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	return &Scheduler{
		log:     log,
		repo:    repo,
		catalog: catalog,
		clock:   clk,
		spec:    spec,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the sweep and starts the cron runner
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.Error("Draw status sweep failed", "error", err)
		}
	}); err != nil {
		return errors.Wrap(err, errors.ErrValidation, "invalid schedule")
	}
	s.cron.Start()
	s.log.Info("Draw scheduler started", "schedule", s.spec)
	return nil
}

// Stop stops the cron runner and returns a context that is done once
// a running sweep has finished
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep applies every due status transition once and returns how many draws changed
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	draws, err := s.repo.ListDrawsByStatus(ctx, models.DrawScheduled, models.DrawActive)
	if err != nil {
		return 0, storeError(ctx, err, "draws")
	}

	now := s.clock.Now()
	changed := 0
	for _, d := range draws {
		to, due := dueTransition(d, now)
		if !due {
			continue
		}
		if _, err := s.catalog.AdvanceStatus(ctx, models.SystemActor, d.ID, to); err != nil {
			s.log.Warn("Scheduled status change failed", "draw", d.ID, "to", to, "error", err)
			continue
		}
		metrics.RecordSchedulerTransition(string(to))
		changed++
	}
	if changed > 0 {
		s.log.Info("Draw status sweep applied changes", "changed", changed)
	}
	return changed, nil
}

func dueTransition(d models.Draw, now time.Time) (models.DrawStatus, bool) {
	switch d.Status {
	case models.DrawScheduled:
		if d.SalesStartAt != nil && !now.Before(*d.SalesStartAt) {
			return models.DrawActive, true
		}
	case models.DrawActive:
		if t := d.EarliestDrawTime(); t != nil && !now.Before(*t) {
			return models.DrawPendingDraw, true
		}
	}
	return "", false
}
