package usecases

import "sync"

// vehicleLocks serialises work per vehicle id. Entries are dropped once no
// goroutine holds or waits for them.
type vehicleLocks struct {
	mu    sync.Mutex
	locks map[string]*vehicleLock
}

type vehicleLock struct {
	mu   sync.Mutex
	refs int
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{locks: make(map[string]*vehicleLock)}
}

// Lock acquires the lock for id and returns its release function.
func (l *vehicleLocks) Lock(id string) func() {
	l.mu.Lock()
	vl, ok := l.locks[id]
	if !ok {
		vl = &vehicleLock{}
		l.locks[id] = vl
	}
	vl.refs++
	l.mu.Unlock()

	vl.mu.Lock()
	return func() {
		vl.mu.Unlock()

		l.mu.Lock()
		vl.refs--
		if vl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
