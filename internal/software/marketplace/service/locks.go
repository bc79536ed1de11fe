package service

import "sync"

// keyedLocks serializes work per request id. Operations on different
// requests never contend; the database row lock gives the same guarantee
// across processes, this keeps a single process from queueing on Postgres.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]*lockEntry)}
}

// lock blocks until the per-key mutex is held and returns the release func.
// Entries are dropped once the last waiter releases, so the map stays
// proportional to in-flight operations.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.held[key]
	if !ok {
		e = &lockEntry{}
		k.held[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}
