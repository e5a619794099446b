package queue

import (
	"context"
	"sync"
	"time"
)

// lockRegistry hands out one critical section per shop. Two mutations for
// the same shop never run concurrently; mutations for different shops do.
// A shop's lock is never held while touching another shop, so there is no
// lock ordering to get wrong.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]chan struct{})}
}

func (r *lockRegistry) lock(shopID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[shopID]
	if !ok {
		l = make(chan struct{}, 1)
		r.locks[shopID] = l
	}
	return l
}

// acquire blocks until the shop's section is free, the timeout elapses, or
// ctx is done. On timeout it returns ErrBusy so callers can retry with
// backoff instead of queueing indefinitely.
func (r *lockRegistry) acquire(ctx context.Context, shopID string, timeout time.Duration) (func(), error) {
	l := r.lock(shopID)

	if timeout <= 0 {
		select {
		case l <- struct{}{}:
			return func() { <-l }, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
