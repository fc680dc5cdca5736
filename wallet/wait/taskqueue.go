// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wait

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// TaskQueue runs tasks with bounded concurrency. A TaskQueue with a single
// slot is an async mutex: tasks run one at a time.
type TaskQueue struct {
	sem *semaphore.Weighted
}

// NewTaskQueue creates a TaskQueue that runs at most n tasks at once.
func NewTaskQueue(n int64) *TaskQueue {
	if n < 1 {
		n = 1
	}
	return &TaskQueue{sem: semaphore.NewWeighted(n)}
}

// Run waits for a free slot and runs the task, returning its error. If the
// context is canceled before a slot frees up, the task is not run and the
// context error is returned.
func (q *TaskQueue) Run(ctx context.Context, task func() error) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer q.sem.Release(1)
	return task()
}

// RunValue is Run for a task that produces a value.
func RunValue[T any](ctx context.Context, q *TaskQueue, task func() (T, error)) (T, error) {
	var v T
	err := q.Run(ctx, func() (err error) {
		v, err = task()
		return err
	})
	return v, err
}
