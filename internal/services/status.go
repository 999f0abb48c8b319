package services

import (
	"sync"

	"github.com/isdelr/ender-local/internal/models"
)

// StatusTracker holds the runtime lifecycle label of every instance. It is
// never persisted, so a fresh tracker reports every instance as stopped.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]models.ServerStatus
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]models.ServerStatus)}
}

// Get returns the label for id, StatusStopped if none was reported.
func (t *StatusTracker) Get(id string) models.ServerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.statuses[id]; ok {
		return s
	}
	return models.StatusStopped
}

// Set records the label reported for id and returns the previous one.
func (t *StatusTracker) Set(id string, status models.ServerStatus) models.ServerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.statuses[id]
	if !ok {
		prev = models.StatusStopped
	}
	t.statuses[id] = status
	return prev
}

// Remove forgets id.
func (t *StatusTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, id)
}
