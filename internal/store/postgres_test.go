package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/spending-coach/internal/domain/anomaly"
	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
)

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock, slog.New(slog.DiscardHandler)), mock
}

func TestPostgresCreateSession(t *testing.T) {
	store, mock := newMockStore(t)
	s := sessions.New("upload")

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(s.ID, s.Name, s.Status, s.FailureNote, s.CreatedAt, s.AnalyzedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateSession(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSessionNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, name, status").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSession(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	created := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "name", "status", "failure_note", "created_at", "analyzed_at"}).
		AddRow(id, "upload", sessions.StatusCompleted, "", created, (*time.Time)(nil))
	mock.ExpectQuery("SELECT id, name, status").WithArgs(id).WillReturnRows(rows)

	got, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sessions.StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDerivedRanksSeverity(t *testing.T) {
	store, mock := newMockStore(t)
	sessionID := uuid.New()

	// Severity is a text column; a plain ORDER BY would put 'medium' before
	// 'high'. The query must rank severities explicitly.
	anomalyRows := pgxmock.NewRows([]string{
		"id", "session_id", "transaction_id", "category_id", "category_name",
		"type", "severity", "expected_value", "actual_value", "z_score", "confidence", "explanation",
	}).
		AddRow(uuid.New(), sessionID, (*uuid.UUID)(nil), (*uuid.UUID)(nil), "Dining",
			anomaly.TypeAmount, anomaly.SeverityHigh, "20.00", "95.00", 10.0, 1.0, "way over baseline").
		AddRow(uuid.New(), sessionID, (*uuid.UUID)(nil), (*uuid.UUID)(nil), "Dining",
			anomaly.TypeMerchant, anomaly.SeverityMedium, "50.00", "120.00", 2.4, 0.6, "new merchant")
	mock.ExpectQuery(`FROM anomalies WHERE session_id = \$1\s+ORDER BY CASE severity WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC`).
		WithArgs(sessionID).
		WillReturnRows(anomalyRows)

	mock.ExpectQuery("FROM recurring_charges").WithArgs(sessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "session_id", "description_pattern", "category_id", "category_name", "average_amount",
			"frequency", "frequency_days", "occurrence_count", "first_seen", "last_seen", "is_gray_charge", "confidence",
		}))
	mock.ExpectQuery("FROM category_deltas").WithArgs(sessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"category_id", "category_name", "current_month", "previous_month",
			"current_amount", "previous_amount", "change_amount", "change_percent",
		}))
	mock.ExpectQuery("FROM insights").WithArgs(sessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "session_id", "type", "priority", "title", "description", "action", "reasoning", "confidence",
		}))

	derived, err := store.GetDerived(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, derived.Anomalies, 2)
	assert.Equal(t, anomaly.SeverityHigh, derived.Anomalies[0].Severity)
	assert.Equal(t, anomaly.SeverityMedium, derived.Anomalies[1].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateSessionStatusMissing(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE sessions").
		WithArgs(id, sessions.StatusFailed, "boom", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateSessionStatus(context.Background(), id, sessions.StatusFailed, "boom", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
