// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskQueue_FIFO verifies tasks execute in submission order.
func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue(16, nil)
	defer q.close()

	var mu sync.Mutex
	var order []int

	tasks := make([]*task, 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		tk := newTask("test", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, q.enqueue(context.Background(), tk))
		tasks = append(tasks, tk)
	}
	for _, tk := range tasks {
		require.NoError(t, tk.wait(context.Background()))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

// TestTaskQueue_FailureIsolated verifies a failing task fails only its
// own waiters.
func TestTaskQueue_FailureIsolated(t *testing.T) {
	q := newTaskQueue(16, nil)
	defer q.close()

	boom := errors.New("boom")
	err := q.submit(context.Background(), "failing", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Queue keeps draining after a failure.
	err = q.submit(context.Background(), "ok", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

// TestTaskQueue_WaitCancellation verifies an abandoned wait does not
// cancel the queued work.
func TestTaskQueue_WaitCancellation(t *testing.T) {
	q := newTaskQueue(16, nil)
	defer q.close()

	ran := make(chan struct{})
	tk := newTask("slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		close(ran)
		return nil
	})
	require.NoError(t, q.enqueue(context.Background(), tk))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tk.wait(ctx), context.Canceled)

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run after waiter gave up")
	}
}

// TestTaskQueue_SharedOutcome verifies multiple waiters observe the same
// result.
func TestTaskQueue_SharedOutcome(t *testing.T) {
	q := newTaskQueue(16, nil)
	defer q.close()

	boom := errors.New("boom")
	tk := newTask("shared", func(ctx context.Context) error { return boom })
	require.NoError(t, q.enqueue(context.Background(), tk))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.ErrorIs(t, tk.wait(context.Background()), boom)
		}()
	}
	wg.Wait()
}

// TestTaskQueue_Close verifies close drains queued work and rejects new
// submissions.
func TestTaskQueue_Close(t *testing.T) {
	q := newTaskQueue(16, nil)

	done := 0
	tk := newTask("pending", func(ctx context.Context) error {
		done++
		return nil
	})
	require.NoError(t, q.enqueue(context.Background(), tk))

	q.close()
	assert.Equal(t, 1, done)

	err := q.enqueue(context.Background(), newTask("late", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	q.close()
}

// TestTaskQueue_FullBlocksUntilDrained verifies a full buffer applies
// backpressure instead of refusing work: the enqueue waits for the
// consumer, and only context cancellation abandons it.
func TestTaskQueue_FullBlocksUntilDrained(t *testing.T) {
	q := newTaskQueue(1, nil)

	release := make(chan struct{})
	blocker := newTask("blocker", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, q.enqueue(context.Background(), blocker))

	// Occupy the single buffer slot behind the running task.
	filler := newTask("filler", func(ctx context.Context) error { return nil })
	require.NoError(t, q.enqueue(context.Background(), filler))

	// With the buffer full, a bounded context gives up without losing
	// anything already queued.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.enqueue(ctx, newTask("bounded", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// An unbounded enqueue blocks until the consumer frees a slot.
	ran := false
	waited := newTask("waited", func(ctx context.Context) error {
		ran = true
		return nil
	})
	enqueued := make(chan error, 1)
	go func() { enqueued <- q.enqueue(context.Background(), waited) }()

	select {
	case err := <-enqueued:
		t.Fatalf("enqueue returned before space freed: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-enqueued)
	require.NoError(t, waited.wait(context.Background()))
	q.close()
	assert.True(t, ran)
}
