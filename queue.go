// Copyright (c) 2026 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package evsource

import (
	"sync"

	"github.com/panjf2000/evsource/internal/queue"
	"github.com/panjf2000/evsource/pkg/errors"
	"github.com/panjf2000/evsource/pkg/logging"
	goPool "github.com/panjf2000/evsource/pkg/pool/goroutine"
)

// Queue is an execution context that runs submitted work items.
//
// Submit must not run the item on the calling goroutine and must run every
// accepted item exactly once. Sources serialize their own handlers, so a
// queue is free to run items of different sources concurrently.
type Queue interface {
	Submit(item *WorkItem) error
}

// SerialQueue runs its items one at a time on a dedicated goroutine.
// Items whose effective class is QoSUserInitiated or above go on an urgent
// lane that is drained before the normal one, items are FIFO within a lane.
type SerialQueue struct {
	label  string
	qos    QoS
	mu     sync.RWMutex
	closed bool
	urgent queue.AsyncTaskQueue
	normal queue.AsyncTaskQueue
	wakeup chan struct{}
	done   chan struct{}
	exited chan struct{}
}

// NewSerialQueue starts a serial queue of class qos.
func NewSerialQueue(label string, qos QoS) *SerialQueue {
	q := &SerialQueue{
		label:  label,
		qos:    qos,
		urgent: queue.NewLockFreeQueue(),
		normal: queue.NewLockFreeQueue(),
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go q.run()
	return q
}

// Label returns the name the queue was created with.
func (q *SerialQueue) Label() string { return q.label }

// Submit enqueues item, it never blocks.
func (q *SerialQueue) Submit(item *WorkItem) error {
	if item == nil {
		return errors.ErrNilWorkItem
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errors.ErrQueueClosed
	}
	task := queue.GetTask()
	task.Run, task.Arg = performTask, item
	if item.effectiveQoS(q.qos).urgent() {
		q.urgent.Enqueue(task)
	} else {
		q.normal.Enqueue(task)
	}
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting items, the ones already submitted still run.
// It returns once the queue goroutine has exited, so it must not be called
// from an item running on q.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.exited
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
	<-q.exited
}

func (q *SerialQueue) run() {
	defer close(q.exited)
	for {
		q.drain()
		select {
		case <-q.wakeup:
		case <-q.done:
			q.drain()
			return
		}
	}
}

func (q *SerialQueue) drain() {
	for {
		task := q.urgent.Dequeue()
		if task == nil {
			if task = q.normal.Dequeue(); task == nil {
				return
			}
		}
		_ = task.Run(task.Arg)
		queue.PutTask(task)
	}
}

func performTask(arg interface{}) error {
	arg.(*WorkItem).Perform()
	return nil
}

// ConcurrentQueue runs its items on an ants worker pool, honoring barriers.
//
// A barrier starts once every item submitted before it has finished, and
// items submitted after it are held back until it has run. Held items wait
// in a backlog, never on a worker.
type ConcurrentQueue struct {
	qos  QoS
	pool *goPool.Pool

	mu sync.Mutex
	// running counts the admitted items that have not finished yet.
	running int
	// barrier is set from the admission of a barrier until it has run.
	barrier bool
	// waiting is the admitted barrier that waits for running to drop to zero.
	waiting *WorkItem
	// backlog holds the items submitted behind a barrier, in order.
	backlog []*WorkItem
}

// NewConcurrentQueue creates a concurrent queue backed by a pool of size
// workers, size <= 0 means unbounded.
func NewConcurrentQueue(size int, qos QoS) *ConcurrentQueue {
	return newConcurrentQueue(goPool.New(size), qos)
}

func newConcurrentQueue(pool *goPool.Pool, qos QoS) *ConcurrentQueue {
	return &ConcurrentQueue{qos: qos, pool: pool}
}

// Submit hands item to the pool, it blocks only while the pool is saturated.
// Items behind a pending barrier are queued without blocking.
func (q *ConcurrentQueue) Submit(item *WorkItem) error {
	if item == nil {
		return errors.ErrNilWorkItem
	}
	if q.pool.IsClosed() {
		return errors.ErrQueueClosed
	}

	q.mu.Lock()
	if q.barrier {
		q.backlog = append(q.backlog, item)
		q.mu.Unlock()
		return nil
	}
	start := q.admitLocked(item)
	q.mu.Unlock()

	if start == nil {
		return nil
	}
	if err := q.launch(start); err != nil {
		return errors.ErrQueueClosed
	}
	return nil
}

// admitLocked lets item in and returns the item to hand to the pool now,
// nil when item is a barrier that has to wait for the running items.
func (q *ConcurrentQueue) admitLocked(item *WorkItem) *WorkItem {
	if !item.isBarrier() {
		q.running++
		return item
	}
	q.barrier = true
	if q.running > 0 {
		q.waiting = item
		return nil
	}
	return item
}

func (q *ConcurrentQueue) launch(item *WorkItem) error {
	err := q.pool.Submit(func() {
		defer q.done(item)
		item.Perform()
	})
	if err != nil {
		q.done(item)
	}
	return err
}

// done accounts for a finished item and starts whatever it unblocked.
// It runs on a worker, the follow-up items are handed to the pool from
// another goroutine.
func (q *ConcurrentQueue) done(item *WorkItem) {
	var next []*WorkItem

	q.mu.Lock()
	if item.isBarrier() {
		q.barrier = false
		for len(q.backlog) > 0 && !q.barrier {
			it := q.backlog[0]
			q.backlog[0] = nil
			q.backlog = q.backlog[1:]
			if start := q.admitLocked(it); start != nil {
				next = append(next, start)
			}
		}
	} else {
		q.running--
		if q.running == 0 && q.waiting != nil {
			next = append(next, q.waiting)
			q.waiting = nil
		}
	}
	q.mu.Unlock()

	if len(next) > 0 {
		go func() {
			for _, it := range next {
				if err := q.launch(it); err != nil {
					logging.Warnf("failed to run a work item on a released queue: %v", err)
				}
			}
		}()
	}
}

// Running returns the number of workers currently busy.
func (q *ConcurrentQueue) Running() int {
	return q.pool.Running()
}

// Release closes the underlying pool, later submissions fail with errors.ErrQueueClosed.
func (q *ConcurrentQueue) Release() {
	q.pool.Release()
}
