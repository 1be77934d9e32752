// Package pipeline orchestrates the analysis stages for one session:
// categorize, detect anomalies, detect recurring charges, compute deltas,
// generate insights, persist. Stages run strictly in that order because each
// consumes the previous stage's output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/FACorreiaa/spending-coach/internal/domain/anomaly"
	"github.com/FACorreiaa/spending-coach/internal/domain/categorization"
	"github.com/FACorreiaa/spending-coach/internal/domain/deltas"
	"github.com/FACorreiaa/spending-coach/internal/domain/goals"
	"github.com/FACorreiaa/spending-coach/internal/domain/insights"
	"github.com/FACorreiaa/spending-coach/internal/domain/recurring"
	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/internal/store"
)

// ErrNoTransactions aborts a run: there is nothing to analyze and nothing is
// persisted.
var ErrNoTransactions = errors.New("pipeline: session has no transactions")

// Orchestrator runs the stage chain and owns the per-session run locks.
type Orchestrator struct {
	store       store.Store
	taxonomy    *taxonomy.Taxonomy
	categorizer *categorization.Service
	anomalies   *anomaly.Detector
	recurring   *recurring.Detector
	insights    *insights.Service
	forecaster  *goals.Forecaster
	tracer      trace.Tracer
	metrics     *Metrics
	locks       *runLocks
	logger      *slog.Logger
}

// New wires the orchestrator. tracer may be nil; a no-op tracer is used.
func New(
	st store.Store,
	tax *taxonomy.Taxonomy,
	categorizer *categorization.Service,
	anomalies *anomaly.Detector,
	recurringDet *recurring.Detector,
	insightSvc *insights.Service,
	forecaster *goals.Forecaster,
	tracer trace.Tracer,
	metrics *Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pipeline")
	}
	return &Orchestrator{
		store:       st,
		taxonomy:    tax,
		categorizer: categorizer,
		anomalies:   anomalies,
		recurring:   recurringDet,
		insights:    insightSvc,
		forecaster:  forecaster,
		tracer:      tracer,
		metrics:     metrics,
		locks:       newRunLocks(),
		logger:      logger,
	}
}

// Run executes one full analysis for the session. At most one run per session
// may be in flight; a second concurrent call gets ErrRunInProgress. On any
// stage failure the session is marked failed and nothing derived is persisted.
func (o *Orchestrator) Run(ctx context.Context, sessionID uuid.UUID) (store.Derived, error) {
	if err := o.locks.acquire(sessionID); err != nil {
		return store.Derived{}, err
	}
	defer o.locks.release(sessionID)

	ctx, span := o.tracer.Start(ctx, "analysis.run")
	defer span.End()

	derived, err := o.run(ctx, sessionID)
	if err != nil {
		o.metrics.countRun("failed")
		if !errors.Is(err, store.ErrSessionNotFound) {
			if stErr := o.store.UpdateSessionStatus(ctx, sessionID, sessions.StatusFailed, err.Error(), nil); stErr != nil {
				o.logger.Error("marking session failed", slog.Any("error", stErr))
			}
		}
		return store.Derived{}, err
	}

	o.metrics.countRun("completed")
	return derived, nil
}

func (o *Orchestrator) run(ctx context.Context, sessionID uuid.UUID) (store.Derived, error) {
	if _, err := o.store.GetSession(ctx, sessionID); err != nil {
		return store.Derived{}, err
	}
	if o.taxonomy == nil || len(o.taxonomy.Categories()) == 0 {
		return store.Derived{}, taxonomy.ErrEmpty
	}
	if err := o.store.UpdateSessionStatus(ctx, sessionID, sessions.StatusProcessing, "", nil); err != nil {
		return store.Derived{}, err
	}

	txns, err := o.store.ListTransactions(ctx, sessionID)
	if err != nil {
		return store.Derived{}, err
	}
	if len(txns) == 0 {
		return store.Derived{}, ErrNoTransactions
	}

	logger := o.logger.With(slog.String("session_id", sessionID.String()))
	logger.Info("analysis started", slog.Int("transactions", len(txns)))

	// Stage 1: categorization.
	var summary categorization.Summary
	err = o.stage(ctx, "categorize", func(ctx context.Context) error {
		txns, summary, err = o.categorizer.Categorize(ctx, txns, o.taxonomy)
		if err != nil {
			return err
		}
		return o.store.UpdateCategorizations(ctx, txns)
	})
	if err != nil {
		return store.Derived{}, fmt.Errorf("categorization stage: %w", err)
	}
	logger.Info("categorization done",
		slog.Int("rule", summary.Rule), slog.Int("ai", summary.AI),
		slog.Int("user", summary.User), slog.Int("fallback", summary.Fallback))

	var derived store.Derived

	// Stage 2: anomalies.
	err = o.stage(ctx, "anomalies", func(ctx context.Context) error {
		derived.Anomalies = o.anomalies.Detect(txns, o.taxonomy)
		return ctx.Err()
	})
	if err != nil {
		return store.Derived{}, fmt.Errorf("anomaly stage: %w", err)
	}

	// Stage 3: recurring charges.
	err = o.stage(ctx, "recurring", func(ctx context.Context) error {
		derived.Recurring = o.recurring.Detect(txns, o.taxonomy)
		return ctx.Err()
	})
	if err != nil {
		return store.Derived{}, fmt.Errorf("recurring stage: %w", err)
	}

	// Stage 4: month-over-month deltas.
	err = o.stage(ctx, "deltas", func(ctx context.Context) error {
		derived.Deltas = deltas.Calculate(txns, o.taxonomy)
		return ctx.Err()
	})
	if err != nil {
		return store.Derived{}, fmt.Errorf("delta stage: %w", err)
	}

	// Stage 5: insights.
	err = o.stage(ctx, "insights", func(ctx context.Context) error {
		derived.Insights = o.insights.Generate(ctx, insights.Input{
			SessionID:    sessionID,
			Taxonomy:     o.taxonomy,
			Transactions: txns,
			Anomalies:    derived.Anomalies,
			Recurring:    derived.Recurring,
			Deltas:       derived.Deltas,
		})
		return ctx.Err()
	})
	if err != nil {
		return store.Derived{}, fmt.Errorf("insight stage: %w", err)
	}

	// Persist: all derived entities replaced in one shot.
	err = o.stage(ctx, "persist", func(ctx context.Context) error {
		return o.store.ReplaceDerived(ctx, sessionID, derived)
	})
	if err != nil {
		return store.Derived{}, fmt.Errorf("persisting derived entities: %w", err)
	}

	now := time.Now().UTC()
	if err := o.store.UpdateSessionStatus(ctx, sessionID, sessions.StatusCompleted, "", &now); err != nil {
		return store.Derived{}, err
	}

	o.metrics.countEntities("anomalies", len(derived.Anomalies))
	o.metrics.countEntities("recurring_charges", len(derived.Recurring))
	o.metrics.countEntities("deltas", len(derived.Deltas))
	o.metrics.countEntities("insights", len(derived.Insights))
	logger.Info("analysis completed",
		slog.Int("anomalies", len(derived.Anomalies)),
		slog.Int("recurring", len(derived.Recurring)),
		slog.Int("insights", len(derived.Insights)))

	return derived, nil
}

// stage wraps one pipeline stage with a span and a duration metric.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "analysis."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.observeStage(name, time.Since(start).Seconds())
	return err
}

// Forecast runs the goal forecaster on demand against a session's current
// transactions. It does not take the run lock; forecasting only reads.
func (o *Orchestrator) Forecast(ctx context.Context, sessionID uuid.UUID, target decimal.Decimal) (goals.Forecast, error) {
	txns, err := o.store.ListTransactions(ctx, sessionID)
	if err != nil {
		return goals.Forecast{}, err
	}
	return o.forecaster.Forecast(ctx, txns, o.taxonomy, target), nil
}

// DashboardSummary holds the session's money totals.
type DashboardSummary struct {
	TotalIncome   decimal.Decimal            `json:"total_income"`
	TotalSpending decimal.Decimal            `json:"total_spending"`
	Net           decimal.Decimal            `json:"net"`
	ByCategory    map[string]decimal.Decimal `json:"by_category"`
}

// Dashboard is the read model for one analyzed session: totals under summary,
// the derived entity lists as siblings.
type Dashboard struct {
	Session          sessions.Session            `json:"session"`
	Summary          DashboardSummary            `json:"summary"`
	Insights         []insights.Insight          `json:"insights"`
	Anomalies        []anomaly.Anomaly           `json:"anomalies"`
	RecurringCharges []recurring.RecurringCharge `json:"recurring_charges"`
	Deltas           []deltas.Delta              `json:"deltas"`
	Categorized      categorization.Summary      `json:"categorization_sources"`
}

// Dashboard assembles the session's totals and derived entities.
func (o *Orchestrator) Dashboard(ctx context.Context, sessionID uuid.UUID) (Dashboard, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return Dashboard{}, err
	}
	txns, err := o.store.ListTransactions(ctx, sessionID)
	if err != nil {
		return Dashboard{}, err
	}
	derived, err := o.store.GetDerived(ctx, sessionID)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		Session:          session,
		Summary:          DashboardSummary{ByCategory: make(map[string]decimal.Decimal)},
		Insights:         derived.Insights,
		Anomalies:        derived.Anomalies,
		RecurringCharges: derived.Recurring,
		Deltas:           derived.Deltas,
	}
	for _, t := range txns {
		if t.IsSpending() {
			d.Summary.TotalSpending = d.Summary.TotalSpending.Add(t.Magnitude())
			if t.CategoryID != nil {
				if c, ok := o.taxonomy.ByID(*t.CategoryID); ok {
					d.Summary.ByCategory[c.Name] = d.Summary.ByCategory[c.Name].Add(t.Magnitude())
				}
			}
		} else {
			d.Summary.TotalIncome = d.Summary.TotalIncome.Add(t.Amount)
		}
		switch t.Source {
		case transactions.SourceRule:
			d.Categorized.Rule++
		case transactions.SourceAI:
			d.Categorized.AI++
		case transactions.SourceUser:
			d.Categorized.User++
		case transactions.SourceFallback:
			d.Categorized.Fallback++
		}
	}
	d.Summary.Net = d.Summary.TotalIncome.Sub(d.Summary.TotalSpending)
	return d, nil
}
