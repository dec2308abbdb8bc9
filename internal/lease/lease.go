// Package lease serializes work per key: one in-flight operation per table or
// per order being settled.
package lease

import (
	"context"
	"sort"
	"sync"
)

// Release frees a held lease. Calling it more than once is a no-op.
type Release func()

// Locker hands out exclusive leases keyed by string.
type Locker interface {
	// Acquire blocks until the lease is held or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
	// TryAcquire returns ok=false immediately when the lease is held elsewhere.
	TryAcquire(ctx context.Context, key string) (Release, bool, error)
}

func TableKey(tableID string) string  { return "table:" + tableID }
func SettleKey(orderID string) string { return "settle:" + orderID }

// AcquireAll takes several leases in sorted key order so that two callers
// locking the same pair cannot deadlock.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (Release, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var held []Release
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		r, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, r)
	}
	return once(releaseAll), nil
}

func once(fn func()) Release {
	var o sync.Once
	return func() { o.Do(fn) }
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return once(func() { <-ch }), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) TryAcquire(ctx context.Context, key string) (Release, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return once(func() { <-ch }), true, nil
	default:
		return nil, false, nil
	}
}
