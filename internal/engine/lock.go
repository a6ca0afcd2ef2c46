package engine

import "sync"

// lockTable hands out one mutex per workflow ID so concurrent actions on the
// same workflow serialize while unrelated workflows proceed in parallel.
// Entries are reference counted and removed once the last holder releases,
// keeping the table proportional to in-flight requests rather than total
// workflows.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the caller holds the lock for key and returns the
// release function.
func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	entry, ok := t.locks[key]
	if !ok {
		entry = &lockEntry{}
		t.locks[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}
