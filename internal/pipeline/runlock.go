package pipeline

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a session already has an analysis running.
// Callers surface it as a conflict rather than queueing a duplicate run.
var ErrRunInProgress = errors.New("pipeline: analysis already running for session")

// runLocks guards at-most-one in-flight run per session.
type runLocks struct {
	mu     sync.Mutex
	active map[uuid.UUID]bool
}

func newRunLocks() *runLocks {
	return &runLocks{active: make(map[uuid.UUID]bool)}
}

// acquire reserves the session or reports ErrRunInProgress.
func (r *runLocks) acquire(sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[sessionID] {
		return ErrRunInProgress
	}
	r.active[sessionID] = true
	return nil
}

func (r *runLocks) release(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
}
