// Package lock provides per-key mutual exclusion for session reconciliation.
//
// Two reconciliations of the same (user, service provider) key read the
// current record and then write; without a lock held across both steps they
// can both observe "absent" and insert twice. Local serializes callers in one
// process, Redis serializes callers across processes.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("lock: failed to acquire lock")

// UnlockFunc releases a held lock. Calling it more than once is safe.
type UnlockFunc func(ctx context.Context) error

// Locker acquires exclusive access to a key.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// Local is an in-process keyed mutex. Entries are reference counted and
// removed once no caller holds or waits for the key.
type Local struct {
	mu   sync.Mutex
	keys map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an in-process keyed locker.
func NewLocal() *Local {
	return &Local{
		keys: make(map[string]*localEntry),
	}
}

// Lock acquires key, waiting for the current holder if any.
func (l *Local) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
		return nil
	}, nil
}

// Held returns the number of keys currently locked or waited on.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *Local) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
