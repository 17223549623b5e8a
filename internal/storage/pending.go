package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// PendingStorage keeps checked but unconfirmed guarded actions in memory.
// Nothing here is authoritative state: losing an entry only means the user
// has to check the action again.
type PendingStorage struct {
	mu      sync.RWMutex
	actions map[uuid.UUID]*entities.PendingAction
}

// NewPendingStorage creates a new PendingStorage.
func NewPendingStorage() *PendingStorage {
	return &PendingStorage{
		actions: make(map[uuid.UUID]*entities.PendingAction),
	}
}

// Store saves a pending action under its id.
func (s *PendingStorage) Store(p *entities.PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[p.ID] = p
}

// Take removes and returns the pending action. Only one caller can take a
// given id, which is what makes a double confirmation apply once.
func (s *PendingStorage) Take(id uuid.UUID) (*entities.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.actions[id]
	if ok {
		delete(s.actions, id)
	}
	return p, ok
}

// Purge drops expired actions and returns how many were removed.
func (s *PendingStorage) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, p := range s.actions {
		if p.Expired(now) {
			delete(s.actions, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored actions.
func (s *PendingStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}
