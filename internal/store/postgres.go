package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/domain/anomaly"
	"github.com/FACorreiaa/spending-coach/internal/domain/deltas"
	"github.com/FACorreiaa/spending-coach/internal/domain/insights"
	"github.com/FACorreiaa/spending-coach/internal/domain/recurring"
	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

// PgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the production Store.
type Postgres struct {
	pool   PgxPool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool PgxPool, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

func (p *Postgres) CreateSession(ctx context.Context, s sessions.Session) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, name, status, failure_note, created_at, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Status, s.FailureNote, s.CreatedAt, s.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (sessions.Session, error) {
	var s sessions.Session
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, status, failure_note, created_at, analyzed_at
		FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Status, &s.FailureNote, &s.CreatedAt, &s.AnalyzedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sessions.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("fetching session: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListSessions(ctx context.Context) ([]sessions.Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, status, failure_note, created_at, analyzed_at
		FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []sessions.Session
	for rows.Next() {
		var s sessions.Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.FailureNote, &s.CreatedAt, &s.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status sessions.Status, failureNote string, analyzedAt *time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE sessions
		SET status = $2, failure_note = $3, analyzed_at = COALESCE($4, analyzed_at)
		WHERE id = $1`,
		id, status, failureNote, analyzedAt)
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *Postgres) InsertTransactions(ctx context.Context, txns []transactions.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(`
			INSERT INTO transactions
				(id, session_id, date, description, raw_description, amount, category_id, confidence, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.SessionID, t.Date, t.Description, t.RawDescription,
			t.Amount.String(), t.CategoryID, t.Confidence, nullableSource(t.Source))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting transactions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transactions: %w", err)
	}
	return nil
}

func (p *Postgres) ListTransactions(ctx context.Context, sessionID uuid.UUID) ([]transactions.Transaction, error) {
	if _, err := p.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, date, description, raw_description, amount::text, category_id, confidence, source
		FROM transactions
		WHERE session_id = $1
		ORDER BY date, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []transactions.Transaction
	for rows.Next() {
		var t transactions.Transaction
		var amount string
		var source *string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Date, &t.Description, &t.RawDescription,
			&amount, &t.CategoryID, &t.Confidence, &source); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		if source != nil {
			t.Source = transactions.Source(*source)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateCategorizations(ctx context.Context, txns []transactions.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(`
			UPDATE transactions
			SET category_id = $2, confidence = $3, source = $4
			WHERE id = $1`,
			t.ID, t.CategoryID, t.Confidence, nullableSource(t.Source))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("updating categorizations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing categorizations: %w", err)
	}
	return nil
}

// ReplaceDerived deletes and reinserts all derived entities in one database
// transaction, so a re-run can never leave mixed results behind.
func (p *Postgres) ReplaceDerived(ctx context.Context, sessionID uuid.UUID, d Derived) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"anomalies", "recurring_charges", "category_deltas", "insights"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE session_id = $1", sessionID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, a := range d.Anomalies {
		if _, err := tx.Exec(ctx, `
			INSERT INTO anomalies
				(id, session_id, transaction_id, category_id, category_name, type, severity,
				 expected_value, actual_value, z_score, confidence, explanation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			a.ID, sessionID, a.TransactionID, a.CategoryID, a.CategoryName, a.Type, a.Severity,
			a.ExpectedValue.String(), a.ActualValue.String(), a.ZScore, a.Confidence, a.Explanation); err != nil {
			return fmt.Errorf("inserting anomaly: %w", err)
		}
	}

	for _, r := range d.Recurring {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recurring_charges
				(id, session_id, description_pattern, category_id, category_name, average_amount,
				 frequency, frequency_days, occurrence_count, first_seen, last_seen, is_gray_charge, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			r.ID, sessionID, r.DescriptionPattern, r.CategoryID, r.CategoryName, r.AverageAmount.String(),
			r.Frequency, r.FrequencyDays, r.OccurrenceCount, r.FirstSeen, r.LastSeen, r.IsGrayCharge, r.Confidence); err != nil {
			return fmt.Errorf("inserting recurring charge: %w", err)
		}
	}

	for _, dl := range d.Deltas {
		if _, err := tx.Exec(ctx, `
			INSERT INTO category_deltas
				(session_id, category_id, category_name, current_month, previous_month,
				 current_amount, previous_amount, change_amount, change_percent)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			sessionID, dl.CategoryID, dl.CategoryName, dl.CurrentMonth, dl.PreviousMonth,
			dl.CurrentAmount.String(), dl.PreviousAmount.String(), dl.ChangeAmount.String(), dl.ChangePercent); err != nil {
			return fmt.Errorf("inserting delta: %w", err)
		}
	}

	for _, ins := range d.Insights {
		if _, err := tx.Exec(ctx, `
			INSERT INTO insights
				(id, session_id, type, priority, title, description, action, reasoning, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ins.ID, sessionID, ins.Type, ins.Priority, ins.Title, ins.Description,
			ins.Action, ins.Reasoning, ins.Confidence); err != nil {
			return fmt.Errorf("inserting insight: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing derived entities: %w", err)
	}
	return nil
}

func (p *Postgres) GetDerived(ctx context.Context, sessionID uuid.UUID) (Derived, error) {
	var d Derived

	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, transaction_id, category_id, category_name, type, severity,
		       expected_value::text, actual_value::text, z_score, confidence, explanation
		FROM anomalies WHERE session_id = $1
		ORDER BY CASE severity WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
		         z_score DESC, explanation`, sessionID)
	if err != nil {
		return d, fmt.Errorf("listing anomalies: %w", err)
	}
	for rows.Next() {
		var a anomaly.Anomaly
		var expected, actual string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.TransactionID, &a.CategoryID, &a.CategoryName,
			&a.Type, &a.Severity, &expected, &actual, &a.ZScore, &a.Confidence, &a.Explanation); err != nil {
			rows.Close()
			return d, fmt.Errorf("scanning anomaly: %w", err)
		}
		a.ExpectedValue, _ = decimal.NewFromString(expected)
		a.ActualValue, _ = decimal.NewFromString(actual)
		d.Anomalies = append(d.Anomalies, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return d, err
	}

	rows, err = p.pool.Query(ctx, `
		SELECT id, session_id, description_pattern, category_id, category_name, average_amount::text,
		       frequency, frequency_days, occurrence_count, first_seen, last_seen, is_gray_charge, confidence
		FROM recurring_charges WHERE session_id = $1
		ORDER BY average_amount DESC, description_pattern`, sessionID)
	if err != nil {
		return d, fmt.Errorf("listing recurring charges: %w", err)
	}
	for rows.Next() {
		var r recurring.RecurringCharge
		var amount string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.DescriptionPattern, &r.CategoryID, &r.CategoryName,
			&amount, &r.Frequency, &r.FrequencyDays, &r.OccurrenceCount, &r.FirstSeen, &r.LastSeen,
			&r.IsGrayCharge, &r.Confidence); err != nil {
			rows.Close()
			return d, fmt.Errorf("scanning recurring charge: %w", err)
		}
		r.AverageAmount, _ = decimal.NewFromString(amount)
		d.Recurring = append(d.Recurring, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return d, err
	}

	rows, err = p.pool.Query(ctx, `
		SELECT category_id, category_name, current_month, previous_month,
		       current_amount::text, previous_amount::text, change_amount::text, change_percent
		FROM category_deltas WHERE session_id = $1
		ORDER BY abs(change_amount) DESC, category_name`, sessionID)
	if err != nil {
		return d, fmt.Errorf("listing deltas: %w", err)
	}
	for rows.Next() {
		var dl deltas.Delta
		var current, previous, change string
		if err := rows.Scan(&dl.CategoryID, &dl.CategoryName, &dl.CurrentMonth, &dl.PreviousMonth,
			&current, &previous, &change, &dl.ChangePercent); err != nil {
			rows.Close()
			return d, fmt.Errorf("scanning delta: %w", err)
		}
		dl.CurrentAmount, _ = decimal.NewFromString(current)
		dl.PreviousAmount, _ = decimal.NewFromString(previous)
		dl.ChangeAmount, _ = decimal.NewFromString(change)
		d.Deltas = append(d.Deltas, dl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return d, err
	}

	rows, err = p.pool.Query(ctx, `
		SELECT id, session_id, type, priority, title, description, action, reasoning, confidence
		FROM insights WHERE session_id = $1
		ORDER BY priority, confidence DESC`, sessionID)
	if err != nil {
		return d, fmt.Errorf("listing insights: %w", err)
	}
	for rows.Next() {
		var ins insights.Insight
		if err := rows.Scan(&ins.ID, &ins.SessionID, &ins.Type, &ins.Priority, &ins.Title,
			&ins.Description, &ins.Action, &ins.Reasoning, &ins.Confidence); err != nil {
			rows.Close()
			return d, fmt.Errorf("scanning insight: %w", err)
		}
		d.Insights = append(d.Insights, ins)
	}
	rows.Close()
	return d, rows.Err()
}

func nullableSource(s transactions.Source) *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}
