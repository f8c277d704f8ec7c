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
	"log/slog"
	"sync"
	"time"
)

// task is one unit of queued mutation work.
//
// The result is latched into err before done is closed, so any number of
// waiters observe the same outcome.
type task struct {
	name string
	run  func(ctx context.Context) error

	err  error
	done chan struct{}
}

func newTask(name string, run func(ctx context.Context) error) *task {
	return &task{name: name, run: run, done: make(chan struct{})}
}

// wait blocks until the task finishes or ctx is cancelled. Cancellation
// abandons the wait only; the queued work still runs to completion.
func (t *task) wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// taskQueue serializes all provider mutations through a single consumer
// goroutine, giving strict FIFO ordering across installs, removals, and
// reconciliation steps.
//
// Description:
//
//	A task that fails only fails its own waiters; the consumer keeps
//	draining. Tasks run under the queue's base context, detached from
//	the submitting caller, so an abandoned request cannot cancel work
//	that later submitters are ordered behind.
//
// Thread Safety: Safe for concurrent use.
type taskQueue struct {
	mu     sync.Mutex
	closed bool

	tasks   chan *task
	drained chan struct{}
	logger  *slog.Logger
}

func newTaskQueue(size int, logger *slog.Logger) *taskQueue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &taskQueue{
		tasks:   make(chan *task, size),
		drained: make(chan struct{}),
		logger:  logger.With(slog.String("component", "icon_task_queue")),
	}
	go q.consume()
	return q
}

// enqueue submits a task for FIFO execution. A full buffer applies
// backpressure: the call blocks until the consumer frees a slot or ctx
// is cancelled, so bursts slow callers down instead of failing them.
func (q *taskQueue) enqueue(ctx context.Context, t *task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		queueDepth.Set(float64(len(q.tasks)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit enqueues run and waits for its completion.
func (q *taskQueue) submit(ctx context.Context, name string, run func(ctx context.Context) error) error {
	t := newTask(name, run)
	if err := q.enqueue(ctx, t); err != nil {
		return err
	}
	return t.wait(ctx)
}

// close stops intake, waits for queued tasks to drain, then returns.
func (q *taskQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.drained
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.drained
}

func (q *taskQueue) consume() {
	defer close(q.drained)
	for t := range q.tasks {
		queueDepth.Set(float64(len(q.tasks)))
		start := time.Now()
		t.err = t.run(context.Background())
		elapsed := time.Since(start)

		status := "success"
		if t.err != nil {
			status = "error"
			q.logger.Warn("icon task failed",
				slog.String("task", t.name),
				slog.Duration("elapsed", elapsed),
				slog.String("error", t.err.Error()),
			)
		}
		tasksTotal.WithLabelValues(t.name, status).Inc()
		taskDuration.WithLabelValues(t.name).Observe(elapsed.Seconds())
		close(t.done)
	}
}
