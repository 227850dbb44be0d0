// Package lock provides named, expiring mutual exclusion for batch jobs.
package lock

import (
	"context"
	"sync"
	"time"
)

// Lease is a held lock. Release is a no-op once the lease has expired or
// been taken over.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker grants at most one live lease per name
type Locker interface {
	// TryAcquire returns ok=false without error when another holder has the name
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error)
}

// LocalLocker serializes holders inside one process
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	seq   uint64
	clock func() time.Time
}

type localEntry struct {
	token   uint64
	expires time.Time
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localEntry{}, clock: time.Now}
}

func (l *LocalLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[name]; ok && now.Before(e.expires) {
		return nil, false, nil
	}
	l.seq++
	l.held[name] = localEntry{token: l.seq, expires: now.Add(ttl)}
	return &localLease{locker: l, name: name, token: l.seq}, true, nil
}

type localLease struct {
	locker *LocalLocker
	name   string
	token  uint64
}

func (l *localLease) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if e, ok := l.locker.held[l.name]; ok && e.token == l.token {
		delete(l.locker.held, l.name)
	}
	return nil
}
