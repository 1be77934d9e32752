// Package sessions models an analysis session: the unit that owns a batch of
// transactions and the derived results of one pipeline run.
package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of the most recent analysis run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Session groups transactions uploaded together. Re-running analysis on the
// same session supersedes all previously derived entities.
type Session struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	FailureNote string    `json:"failure_note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	AnalyzedAt  *time.Time `json:"analyzed_at,omitempty"`
}

// New creates a pending session.
func New(name string) Session {
	return Session{
		ID:        uuid.New(),
		Name:      name,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
