package auth

import (
	"sync"
	"time"
)

// PendingAuth represents one in-flight login attempt, keyed by its state token.
type PendingAuth struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}

// PendingStore holds in-flight login attempts between Begin and Complete.
//
// Take must be atomic with respect to concurrent callers: for a given state it
// returns true for at most one caller, which is the single-use guarantee behind
// CSRF and replay protection. Implementations must not grow unboundedly.
type PendingStore interface {
	Put(pending PendingAuth)
	Take(state string) (PendingAuth, bool)
	Len() int
}

// MemoryPendingStore is an in-memory [PendingStore] with TTL expiry and a hard
// entry cap. Safe for concurrent use. Entries do not survive process restart;
// a distributed key-value store can be swapped in behind the interface.
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]PendingAuth
	ttl     time.Duration
	max     int
	now     func() time.Time
}

const (
	defaultPendingTTL = 10 * time.Minute
	defaultPendingCap = 1000
)

// NewMemoryPendingStore creates a [MemoryPendingStore]. Zero values select the
// defaults (10 minute TTL, 1000 entry cap).
func NewMemoryPendingStore(ttl time.Duration, max int) *MemoryPendingStore {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	if max <= 0 {
		max = defaultPendingCap
	}
	return &MemoryPendingStore{
		entries: make(map[string]PendingAuth),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// Put stores a pending attempt, sweeping expired entries and evicting the
// oldest live entry if the cap is reached.
func (s *MemoryPendingStore) Put(pending PendingAuth) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for state, entry := range s.entries {
		if now.Sub(entry.CreatedAt) > s.ttl {
			delete(s.entries, state)
		}
	}

	for len(s.entries) >= s.max {
		oldestState := ""
		var oldest time.Time
		for state, entry := range s.entries {
			if oldestState == "" || entry.CreatedAt.Before(oldest) {
				oldestState = state
				oldest = entry.CreatedAt
			}
		}
		delete(s.entries, oldestState)
	}

	s.entries[pending.State] = pending
}

// Take removes and returns the attempt for state. The check-and-delete happens
// under one lock, so two concurrent callbacks for the same state cannot both
// succeed. Expired entries are treated as absent.
func (s *MemoryPendingStore) Take(state string) (PendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return PendingAuth{}, false
	}
	delete(s.entries, state)

	if s.now().Sub(entry.CreatedAt) > s.ttl {
		return PendingAuth{}, false
	}
	return entry, true
}

// Len reports the number of stored attempts, expired entries included until the
// next sweep.
func (s *MemoryPendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
