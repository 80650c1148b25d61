package session

import (
	"sync"
	"time"
)

const lockCleanupInterval = 5 * time.Minute

type keyedLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

// lockRegistry hands out one mutex per key. Entries nobody holds or waits on
// are dropped once they have been idle for longer than idleTTL.
type lockRegistry struct {
	mu      sync.Mutex
	locks   map[string]*keyedLock
	idleTTL time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

func newLockRegistry(idleTTL time.Duration, now func() time.Time) *lockRegistry {
	r := &lockRegistry{
		locks:   make(map[string]*keyedLock),
		idleTTL: idleTTL,
		now:     now,
		done:    make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

func (r *lockRegistry) cleanupLoop() {
	ticker := time.NewTicker(lockCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanupIdle()
		case <-r.done:
			return
		}
	}
}

func (r *lockRegistry) cleanupIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)

	for key, l := range r.locks {
		if l.refs == 0 && l.lastUsed.Before(cutoff) {
			delete(r.locks, key)
		}
	}
}

// lock blocks until key is free and returns the matching unlock.
func (r *lockRegistry) lock(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyedLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		l.lastUsed = r.now()
		r.mu.Unlock()
	}
}

func (r *lockRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func (r *lockRegistry) stop() {
	r.once.Do(func() { close(r.done) })
}
