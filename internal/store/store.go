// Package store persists sessions, transactions, and the entities each
// analysis run derives. Two implementations: Postgres for the service, an
// in-memory store for demos and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/spending-coach/internal/domain/anomaly"
	"github.com/FACorreiaa/spending-coach/internal/domain/deltas"
	"github.com/FACorreiaa/spending-coach/internal/domain/insights"
	"github.com/FACorreiaa/spending-coach/internal/domain/recurring"
	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

var (
	ErrSessionNotFound = errors.New("store: session not found")
	ErrNoTransactions  = errors.New("store: session has no transactions")
)

// Derived bundles everything one pipeline run produces. Replacing it is
// atomic: readers never see half of an old run and half of a new one.
type Derived struct {
	Anomalies []anomaly.Anomaly          `json:"anomalies"`
	Recurring []recurring.RecurringCharge `json:"recurring_charges"`
	Deltas    []deltas.Delta             `json:"deltas"`
	Insights  []insights.Insight         `json:"insights"`
}

// Store is the persistence boundary of the pipeline.
type Store interface {
	CreateSession(ctx context.Context, s sessions.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (sessions.Session, error)
	ListSessions(ctx context.Context) ([]sessions.Session, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status sessions.Status, failureNote string, analyzedAt *time.Time) error

	InsertTransactions(ctx context.Context, txns []transactions.Transaction) error
	ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]transactions.Transaction, error)
	// UpdateCategorizations persists category, confidence, and source for the
	// given transactions without touching anything else.
	UpdateCategorizations(ctx context.Context, txns []transactions.Transaction) error

	// ReplaceDerived atomically supersedes all derived entities for a session.
	ReplaceDerived(ctx context.Context, sessionID uuid.UUID, d Derived) error
	GetDerived(ctx context.Context, sessionID uuid.UUID) (Derived, error)
}
