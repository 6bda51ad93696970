package orchestrator

import (
	"sync"
)

// userLocks serializes orchestrator operations per user. A session turn
// is a multi-step read/LLM/LLM/write sequence; without this scope two
// concurrent requests for the same user could double-advance the
// activity index or duplicate transcript entries.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// acquire blocks until the caller holds the lock for userID and returns
// the release function. Entries are refcounted and removed when idle so
// the registry does not grow with the historical user population.
func (l *userLocks) acquire(userID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
