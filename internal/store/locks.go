package store

import "sync"

// Locks serializes read-modify-write cycles on one profile's records.
// The store itself has no locking; callers that update a collection take
// the profile lock around Get+Set.
type Locks struct {
	mu sync.Mutex
	m  map[string]*profileLock
}

type profileLock struct {
	sync.Mutex
	refs int // holders plus waiters
}

// Lock blocks until the profile lock is held and returns its release func.
// The entry is dropped once nobody holds or waits for it.
func (l *Locks) Lock(profileID string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*profileLock)
	}
	pl, ok := l.m[profileID]
	if !ok {
		pl = &profileLock{}
		l.m[profileID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.m, profileID)
		}
		l.mu.Unlock()
	}
}

