package sale

import (
	"context"
	"sync"
	"time"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// localLocker serialises work per key inside one process. An entry lives only
// while some caller holds or waits for it.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func (l *localLocker) acquire(key string) *lockEntry {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*lockEntry)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return e
}

func (l *localLocker) release(key string, e *lockEntry) {
	e.mu.Unlock()
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func (l *localLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	e := l.acquire(key)
	defer l.release(key, e)
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (l *localLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
