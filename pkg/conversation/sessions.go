package conversation

import (
	"sync"

	"github.com/raykavin/tonpairs/pkg/registry"
)

// Sessions keeps the pending input of every user in memory. Lock serializes
// the transitions of one user; users never block each other.
type Sessions struct {
	locks   *registry.Locker
	mu      sync.RWMutex
	pending map[int64]Pending
}

// NewSessions creates an empty session store
func NewSessions() *Sessions {
	return &Sessions{
		locks:   registry.NewLocker(),
		pending: make(map[int64]Pending),
	}
}

// Lock acquires the user's session and returns its release function
func (s *Sessions) Lock(userID int64) func() {
	return s.locks.Lock(userID)
}

// Pending returns the pending input of the user, nil when idle
func (s *Sessions) Pending(userID int64) Pending {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[userID]
}

// Set replaces the pending input of the user. A nil value makes the user
// idle.
func (s *Sessions) Set(userID int64, pending Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pending == nil {
		delete(s.pending, userID)
		return
	}
	s.pending[userID] = pending
}
