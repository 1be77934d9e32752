// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
	"github.com/FACorreiaa/spending-coach/internal/pipeline"
	"github.com/FACorreiaa/spending-coach/internal/store"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron         *cron.Cron
	store        store.Store
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(st store.Store, orchestrator *pipeline.Orchestrator, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, no seconds.
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:         c,
		store:        st,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Nightly re-analysis: completed sessions get fresh derived entities at 3:00 AM.
	_, err := s.cron.AddFunc("0 3 * * *", s.reanalyzeCompletedSessions)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the re-analysis job (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.reanalyzeCompletedSessions()
}

// reanalyzeCompletedSessions re-runs the pipeline for every completed session
// so rule-table updates propagate without user action. Sessions with a run
// already in flight are skipped, not queued.
func (s *Scheduler) reanalyzeCompletedSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	s.logger.Info("starting nightly re-analysis")

	list, err := s.store.ListSessions(ctx)
	if err != nil {
		s.logger.Error("failed to list sessions", slog.Any("error", err))
		return
	}

	reanalyzed, skipped := 0, 0
	for _, session := range list {
		if session.Status != sessions.StatusCompleted {
			continue
		}
		if _, err := s.orchestrator.Run(ctx, session.ID); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				skipped++
				continue
			}
			s.logger.Error("re-analysis failed",
				slog.String("session_id", session.ID.String()),
				slog.Any("error", err))
			continue
		}
		reanalyzed++
	}

	s.logger.Info("nightly re-analysis finished",
		slog.Int("reanalyzed", reanalyzed),
		slog.Int("skipped", skipped),
	)
}
