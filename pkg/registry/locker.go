package registry

import "sync"

// Locker hands out one mutex per user id. Entries are dropped once no
// goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

// NewLocker creates an empty keyed lock
func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*userLock)}
}

// Lock blocks until the user's lock is held and returns its release func
func (l *Locker) Lock(userID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{}
		l.locks[userID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
