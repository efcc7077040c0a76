package core

// wait_limiter.go bounds how many clients may block on a refresh at once.
//
// POST /api/refresh?wait=true holds its connection until the cycle finishes,
// which can take as long as the fetch timeout times the retry budget. The
// limiter uses a semaphore so a burst of waiting clients cannot pile up
// connections; once all slots are taken further waiters are rejected with
// ErrTooManyWaiters, which the API reports as RATE001.
//
// WaitForDrain lets shutdown wait for blocked clients to receive their answer.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyWaiters is returned when all wait slots are occupied and the
// wait timeout expires. Clients should retry after a short delay or poll
// /api/sync-status instead.
var ErrTooManyWaiters = errors.New("rate limit: too many clients waiting for a refresh")

// DefaultMaxWaiters is the default limit for clients blocked on a refresh.
const DefaultMaxWaiters = 8

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 2 * time.Second

// WaitLimiter controls how many callers wait on a refresh at the same time.
type WaitLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewWaitLimiter creates a limiter that admits at most maxWaiters waiting callers.
// Callers that cannot get a slot within maxWait receive ErrTooManyWaiters.
func NewWaitLimiter(maxWaiters int, maxWait time.Duration) *WaitLimiter {
	if maxWaiters <= 0 {
		maxWaiters = DefaultMaxWaiters
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &WaitLimiter{
		semaphore: make(chan struct{}, maxWaiters),
		maxWait:   maxWait,
	}
}

// Acquire takes a wait slot.
// The caller MUST call Release() once the refresh answer is sent (use defer).
func (l *WaitLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Caller cancellation wins over our own timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyWaiters
	}
}

// Release returns a slot taken by Acquire.
// Must be called exactly once for each successful Acquire.
func (l *WaitLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of callers currently waiting.
func (l *WaitLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxWaiters returns the slot count.
func (l *WaitLimiter) MaxWaiters() int {
	return cap(l.semaphore)
}

// WaitForDrain blocks until every waiting caller has been answered or ctx is done.
func (l *WaitLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
