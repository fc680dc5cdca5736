// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wait

import (
	"context"
	"sync"
	"time"
)

// TryDirective is a response that a Waiter's TryFunc can return to instruct
// the queue to continue trying or to quit.
type TryDirective bool

const (
	// TryAgain, when returned from the Waiter's TryFunc, instructs the ticker
	// queue to try again after the configured delay.
	TryAgain TryDirective = false
	// DontTryAgain, when returned from the Waiter's TryFunc, instructs the
	// ticker queue to quit trying and quit tracking the Waiter.
	DontTryAgain TryDirective = true
)

// Waiter is a function to run every recheckInterval until completion or
// expiration. A zero Expiration never expires, which is how best-effort
// background refreshes retry indefinitely.
type Waiter struct {
	// Expiration time is checked after the function returns TryAgain. If the
	// current time > Expiration, ExpireFunc will be run and the waiter will be
	// un-queued.
	Expiration time.Time
	// TryFunc is the function to run periodically until DontTryAgain is
	// returned or Waiter expires.
	TryFunc func() TryDirective
	// ExpireFunc is a function to run in the case that the Waiter expires or
	// the queue shuts down first. Optional.
	ExpireFunc func()
}

func (w *Waiter) expired(now time.Time) bool {
	return !w.Expiration.IsZero() && now.After(w.Expiration)
}

func (w *Waiter) expire() {
	if w.ExpireFunc != nil {
		w.ExpireFunc()
	}
}

// TickerQueue is a Waiter manager that checks a function periodically until
// DontTryAgain is indicated.
type TickerQueue struct {
	waiterMtx       sync.Mutex
	waiters         []*Waiter
	recheckInterval time.Duration
}

// NewTickerQueue is the constructor for a new TickerQueue.
func NewTickerQueue(recheckInterval time.Duration) *TickerQueue {
	return &TickerQueue{
		recheckInterval: recheckInterval,
		waiters:         make([]*Waiter, 0, 16),
	}
}

// Wait runs the TryFunc right away. If that fails, the Waiter is queued and
// retried every recheckInterval until either TryFunc returns DontTryAgain or
// the Expiration passes, in which case the ExpireFunc is run.
func (q *TickerQueue) Wait(w *Waiter) {
	if w.expired(time.Now()) {
		log.Error("wait.TickerQueue: Waiter given expiration before present")
		return
	}
	if w.TryFunc() == DontTryAgain {
		return
	}
	q.waiterMtx.Lock()
	q.waiters = append(q.waiters, w)
	q.waiterMtx.Unlock()
}

// Len is the number of waiters queued for a retry.
func (q *TickerQueue) Len() int {
	q.waiterMtx.Lock()
	defer q.waiterMtx.Unlock()
	return len(q.waiters)
}

// Run runs the primary wait loop until the context is canceled.
func (q *TickerQueue) Run(ctx context.Context) {
	defer func() {
		q.waiterMtx.Lock()
		for _, w := range q.waiters {
			w.expire()
		}
		q.waiters = q.waiters[:0]
		q.waiterMtx.Unlock()
	}()

	ticker := time.NewTicker(q.recheckInterval)
	defer ticker.Stop()

	runWaiters := func() {
		// Take the current batch so that a TryFunc can queue new waiters.
		q.waiterMtx.Lock()
		batch := q.waiters
		q.waiters = make([]*Waiter, 0, len(batch))
		q.waiterMtx.Unlock()

		agains := make([]*Waiter, 0, len(batch))
		for i, w := range batch {
			if ctx.Err() != nil {
				agains = append(agains, batch[i:]...)
				break
			}
			if w.TryFunc() == DontTryAgain {
				continue
			}
			if w.expired(time.Now()) {
				w.expire()
				continue
			}
			agains = append(agains, w)
		}

		q.waiterMtx.Lock()
		q.waiters = append(agains, q.waiters...)
		q.waiterMtx.Unlock()
	}

	for {
		select {
		case <-ticker.C:
			runWaiters()
		case <-ctx.Done():
			return
		}
	}
}
