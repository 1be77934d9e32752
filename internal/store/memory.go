package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
)

// Memory is a thread-safe in-memory Store. It backs demo mode and tests;
// semantics mirror the Postgres store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]sessions.Session
	txns     map[uuid.UUID][]transactions.Transaction
	derived  map[uuid.UUID]Derived
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]sessions.Session),
		txns:     make(map[uuid.UUID][]transactions.Transaction),
		derived:  make(map[uuid.UUID]Derived),
	}
}

func (m *Memory) CreateSession(_ context.Context, s sessions.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (sessions.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return sessions.Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *Memory) ListSessions(_ context.Context) ([]sessions.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]sessions.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateSessionStatus(_ context.Context, id uuid.UUID, status sessions.Status, failureNote string, analyzedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Status = status
	s.FailureNote = failureNote
	if analyzedAt != nil {
		s.AnalyzedAt = analyzedAt
	}
	m.sessions[id] = s
	return nil
}

func (m *Memory) InsertTransactions(_ context.Context, txns []transactions.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txns {
		if _, ok := m.sessions[t.SessionID]; !ok {
			return ErrSessionNotFound
		}
		m.txns[t.SessionID] = append(m.txns[t.SessionID], t)
	}
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, sessionID uuid.UUID) ([]transactions.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}

	out := make([]transactions.Transaction, len(m.txns[sessionID]))
	copy(out, m.txns[sessionID])
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) UpdateCategorizations(_ context.Context, txns []transactions.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[uuid.UUID]transactions.Transaction, len(txns))
	for _, t := range txns {
		byID[t.ID] = t
	}
	for sessionID, list := range m.txns {
		for i, existing := range list {
			if updated, ok := byID[existing.ID]; ok {
				existing.CategoryID = updated.CategoryID
				existing.Confidence = updated.Confidence
				existing.Source = updated.Source
				list[i] = existing
			}
		}
		m.txns[sessionID] = list
	}
	return nil
}

func (m *Memory) ReplaceDerived(_ context.Context, sessionID uuid.UUID, d Derived) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	m.derived[sessionID] = d
	return nil
}

func (m *Memory) GetDerived(_ context.Context, sessionID uuid.UUID) (Derived, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return Derived{}, ErrSessionNotFound
	}
	return m.derived[sessionID], nil
}
