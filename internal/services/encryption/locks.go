package encryption

import (
	"sync"

	"mxbridge/internal/domain"
)

// deviceLocks hands out one mutex per remote identity key so that every
// read-or-create-through-persist sequence for a given device's session is
// a critical section, while distinct devices proceed fully in parallel.
// Entries are reference counted and dropped once the last holder
// releases, keeping the map proportional to in-flight work rather than
// to every device ever encrypted for.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[domain.Curve25519]*deviceLock
}

type deviceLock struct {
	sync.Mutex
	refs int
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[domain.Curve25519]*deviceLock)}
}

// Lock acquires the mutex for key and returns its release function.
func (d *deviceLocks) Lock(key domain.Curve25519) func() {
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = new(deviceLock)
		d.locks[key] = l
	}
	l.refs++
	d.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, key)
		}
		d.mu.Unlock()
	}
}
