package common

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PortfolioLocks serialises mutating work per portfolio id.
//
// Lock is re-entrant per context: a context returned by Lock already holds the
// key, so nested calls made with it (a suggestion conversion calling into the
// ledger) do not deadlock. Waiting honours the context deadline.
type PortfolioLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

type heldKeys map[string]struct{}

// NewPortfolioLocks creates an empty lock table.
func NewPortfolioLocks() *PortfolioLocks {
	return &PortfolioLocks{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for key. The returned context must be passed to any
// nested call that needs the same key; the returned func releases the lock and
// is safe to call more than once.
func (p *PortfolioLocks) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	held, _ := ctx.Value(lockHolderKey).(heldKeys)
	if _, ok := held[key]; ok {
		return ctx, func() {}, nil
	}

	p.mu.Lock()
	kl, ok := p.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		p.locks[key] = kl
	}
	kl.refs++
	p.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		p.release(key, kl)
		return ctx, nil, fmt.Errorf("waiting for portfolio lock %s: %w", key, ctx.Err())
	}

	next := make(heldKeys, len(held)+1)
	for k := range held {
		next[k] = struct{}{}
	}
	next[key] = struct{}{}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			<-kl.ch
			p.release(key, kl)
		})
	}
	return context.WithValue(ctx, lockHolderKey, next), unlock, nil
}

// LockWithin is Lock with ctx first bounded by timeout, so the wait and
// the work done under the lock share one deadline. The returned func
// releases the lock and the deadline.
func (p *PortfolioLocks) LockWithin(ctx context.Context, key string, timeout time.Duration) (context.Context, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	lctx, unlock, err := p.Lock(ctx, key)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return lctx, func() {
		unlock()
		cancel()
	}, nil
}

// Holds reports whether ctx was returned by Lock for key.
func (p *PortfolioLocks) Holds(ctx context.Context, key string) bool {
	held, _ := ctx.Value(lockHolderKey).(heldKeys)
	_, ok := held[key]
	return ok
}

func (p *PortfolioLocks) release(key string, kl *keyLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(p.locks, key)
	}
}
