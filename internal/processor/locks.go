package processor

import "sync"

// userLocks serializes turns per user: one in-flight turn per user at a
// time, distinct users proceed concurrently. This is the only locking the
// core does; conflicting repository writes are left to the database.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the per-user mutex and returns its release function
func (u *userLocks) acquire(key string) func() {
	u.mu.Lock()
	lock, ok := u.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		u.locks[key] = lock
	}
	u.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
