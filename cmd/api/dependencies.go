package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/spending-coach/internal/ai"
	"github.com/FACorreiaa/spending-coach/internal/domain/anomaly"
	"github.com/FACorreiaa/spending-coach/internal/domain/categorization"
	"github.com/FACorreiaa/spending-coach/internal/domain/goals"
	"github.com/FACorreiaa/spending-coach/internal/domain/insights"
	"github.com/FACorreiaa/spending-coach/internal/domain/recurring"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/handler"
	"github.com/FACorreiaa/spending-coach/internal/pipeline"
	"github.com/FACorreiaa/spending-coach/internal/store"
	"github.com/FACorreiaa/spending-coach/internal/synthetic"
	"github.com/FACorreiaa/spending-coach/pkg/config"
	"github.com/FACorreiaa/spending-coach/pkg/cron"
	"github.com/FACorreiaa/spending-coach/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Store    store.Store
	Taxonomy *taxonomy.Taxonomy

	// AI backends; Summarizer and Categorizer are usually the same client.
	Categorizer ai.Categorizer
	Summarizer  ai.Summarizer

	// Services
	CategorizationService *categorization.Service
	AnomalyDetector       *anomaly.Detector
	RecurringDetector     *recurring.Detector
	InsightsService       *insights.Service
	GoalForecaster        *goals.Forecaster
	Orchestrator          *pipeline.Orchestrator
	Scheduler             *cron.Scheduler

	Metrics        *pipeline.Metrics
	MetricsHandler http.Handler

	// Handlers
	APIHandler *handler.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Taxonomy: taxonomy.Default(),
	}

	if err := deps.initStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	deps.initAI(ctx)
	deps.initMetrics()

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initStore connects Postgres when enabled, otherwise falls back to the
// in-memory store for demo mode.
func (d *Dependencies) initStore(ctx context.Context) error {
	if !d.Config.Database.Enabled {
		d.Store = store.NewMemory()
		d.Logger.Info("using in-memory store (POSTGRES_ENABLED=false)")
		return nil
	}

	dsn := d.Config.Database.DSN()
	if err := db.Migrate(dsn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	d.Store = store.NewPostgres(pool, d.Logger)

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initAI selects the Gemini client when an API key is configured and the
// deterministic stub otherwise. Analysis never hard-depends on the model.
func (d *Dependencies) initAI(ctx context.Context) {
	gemini, err := ai.NewGemini(ctx, d.Config.Gemini, d.Logger)
	if err != nil {
		if !errors.Is(err, ai.ErrUnavailable) {
			d.Logger.Error("gemini client init failed, using stub", slog.Any("error", err))
		} else {
			d.Logger.Warn("no GEMINI_API_KEY set, using stub categorizer")
		}
		stub := &ai.Stub{}
		d.Categorizer = stub
		d.Summarizer = stub
		return
	}

	d.Categorizer = gemini
	d.Summarizer = gemini
	d.Logger.Info("gemini client initialized", slog.String("model", d.Config.Gemini.Model))
}

func (d *Dependencies) initMetrics() {
	if !d.Config.Observability.MetricsEnabled {
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = pipeline.NewMetrics(reg)
	d.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	rules := categorization.DefaultRules()
	engine := categorization.NewEngine(rules)
	fuzzy := categorization.NewFuzzyMatcher(rules)

	cfg := d.Config.Analysis

	d.CategorizationService = categorization.NewService(engine, fuzzy, d.Categorizer, cfg.AIBatchSize, d.Logger)
	d.AnomalyDetector = anomaly.NewDetector(cfg, d.Logger)
	d.RecurringDetector = recurring.NewDetector(cfg, d.Logger)
	d.InsightsService = insights.NewService(d.Summarizer, cfg, d.Logger)
	d.GoalForecaster = goals.NewForecaster(d.Summarizer, cfg, d.Logger)

	d.Orchestrator = pipeline.New(
		d.Store,
		d.Taxonomy,
		d.CategorizationService,
		d.AnomalyDetector,
		d.RecurringDetector,
		d.InsightsService,
		d.GoalForecaster,
		nil, // tracer: noop until an exporter is wired
		d.Metrics,
		d.Logger,
	)

	d.Scheduler = cron.NewScheduler(d.Store, d.Orchestrator, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	generator := synthetic.NewGenerator(synthetic.DefaultSeed)
	d.APIHandler = handler.New(d.Orchestrator, d.Store, d.Taxonomy, generator, d.Logger)

	d.Logger.Info("handlers initialized")
}
