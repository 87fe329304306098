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

// Package timer implements the coalescing timer queue behind timer sources.
//
// Entries are kept in two min-heaps, one per clock, ordered by the latest
// instant each entry may fire at (deadline + leeway). The queue sleeps until
// the earliest of those instants and then fires every entry whose deadline
// has passed, so timers with overlapping windows are served by one wakeup.
// No entry ever fires before its deadline.
package timer

import (
	"container/heap"
	"math"
	"sync"
	"time"
)

// Clock selects the time base of a deadline.
type Clock uint8

const (
	// Monotonic deadlines are immune to wall clock adjustments.
	Monotonic Clock = iota
	// Wall deadlines follow adjustments of the wall clock.
	Wall
)

// NoRepeat is the interval of a oneshot entry.
const NoRepeat = time.Duration(math.MaxInt64)

// WallRecheck bounds how long the queue sleeps on a wall-clock deadline,
// so that the wall clock being set forward is noticed.
const WallRecheck = time.Second

// Entry is a timer that can be armed in a Queue.
type Entry struct {
	fire     func(n uint64)
	clock    Clock
	deadline time.Time
	interval time.Duration
	leeway   time.Duration
	index    int
	gen      uint64 // bumped by Schedule and Remove
}

// NewEntry returns an unarmed entry, fire is called with the number of
// expirations since the previous call. fire runs on the queue goroutine
// without the queue lock held, so it may block or call back into the queue.
func NewEntry(fire func(n uint64)) *Entry {
	return &Entry{fire: fire, index: -1}
}

func (e *Entry) latest() time.Time {
	if e.leeway <= 0 {
		return e.deadline
	}
	return e.deadline.Add(e.leeway)
}

type entryHeap []*Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].latest().Before(h[j].latest()) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x interface{}) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

type expiry struct {
	e   *Entry
	n   uint64
	gen uint64
}

// Queue is a set of armed entries served by one goroutine.
type Queue struct {
	mu     sync.Mutex
	heaps  [2]entryHeap
	wakeup chan struct{}
	done   chan struct{}
	closed bool
	fired  []expiry
}

// NewQueue starts a queue, it runs until Close is called.
func NewQueue() *Queue {
	q := &Queue{
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Schedule arms e, replacing any parameters it was armed with before.
// interval is NoRepeat for a oneshot entry.
func (q *Queue) Schedule(e *Entry, clock Clock, deadline time.Time, interval, leeway time.Duration) {
	if interval <= 0 {
		interval = NoRepeat
	}
	if leeway < 0 {
		leeway = 0
	}
	if clock == Wall {
		deadline = deadline.Round(0)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if e.index >= 0 {
		heap.Remove(&q.heaps[e.clock], e.index)
	}
	e.gen++
	e.clock, e.deadline, e.interval, e.leeway = clock, deadline, interval, leeway
	heap.Push(&q.heaps[clock], e)
	q.mu.Unlock()

	q.notify()
}

// Remove disarms e and reports whether it was armed. Expirations collected
// before Remove but not yet handed to fire are dropped, a fire call already
// in progress is not waited for.
func (q *Queue) Remove(e *Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e.gen++
	if e.index < 0 {
		return false
	}
	heap.Remove(&q.heaps[e.clock], e.index)
	return true
}

// Len returns the number of armed entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heaps[Monotonic]) + len(q.heaps[Wall])
}

// Close stops the queue goroutine, armed entries never fire afterwards.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.heaps[Monotonic], q.heaps[Wall] = nil, nil
	q.mu.Unlock()
	close(q.done)
}

func (q *Queue) notify() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	for {
		wait, ok := q.tick(time.Now())
		if !ok {
			return
		}
		if wait < 0 {
			select {
			case <-q.wakeup:
			case <-q.done:
				return
			}
			continue
		}
		t.Reset(wait)
		select {
		case <-t.C:
		case <-q.wakeup:
			if !t.Stop() {
				<-t.C
			}
		case <-q.done:
			t.Stop()
			return
		}
	}
}

// tick fires every due entry and returns how long to sleep, -1 meaning
// until the next Schedule. The due entries are collected under q.mu and
// fired after it is released.
func (q *Queue) tick(now time.Time) (time.Duration, bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, false
	}
	q.fired = q.fired[:0]
	for c := range q.heaps {
		q.collect(Clock(c), now)
	}
	q.mu.Unlock()

	if len(q.fired) > 0 {
		for i, x := range q.fired {
			if q.current(x) {
				x.e.fire(x.n)
			}
			q.fired[i] = expiry{}
		}
		now = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, false
	}
	wait := time.Duration(-1)
	for c := range q.heaps {
		h := q.heaps[c]
		if len(h) == 0 {
			continue
		}
		d := h[0].latest().Sub(clockNow(Clock(c), now))
		if Clock(c) == Wall && d > WallRecheck {
			d = WallRecheck
		}
		if d < 0 {
			d = 0
		}
		if wait < 0 || d < wait {
			wait = d
		}
	}
	return wait, true
}

// collect moves the due entries of one heap to q.fired, re-arming the repeating ones.
func (q *Queue) collect(c Clock, now time.Time) {
	h := &q.heaps[c]
	if !anyDue(*h, c, now) {
		return
	}
	nowC := clockNow(c, now)
	kept := (*h)[:0]
	var due []*Entry
	for _, e := range *h {
		if e.deadline.After(nowC) {
			e.index = len(kept)
			kept = append(kept, e)
			continue
		}
		e.index = -1
		due = append(due, e)
	}
	for i := len(kept); i < len(*h); i++ {
		(*h)[i] = nil
	}
	*h = kept
	heap.Init(h)

	for _, e := range due {
		n := uint64(1)
		if e.interval != NoRepeat {
			n += uint64(nowC.Sub(e.deadline) / e.interval)
			e.deadline = e.deadline.Add(time.Duration(n) * e.interval)
			heap.Push(h, e)
		}
		q.fired = append(q.fired, expiry{e, n, e.gen})
	}
}

// current reports whether x was collected under the parameters e still has.
func (q *Queue) current(x expiry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed && x.e.gen == x.gen
}

// anyDue reports whether some entry of h has reached its deadline.
func anyDue(h entryHeap, c Clock, now time.Time) bool {
	nowC := clockNow(c, now)
	for _, e := range h {
		if !e.deadline.After(nowC) {
			return true
		}
	}
	return false
}

func clockNow(c Clock, now time.Time) time.Time {
	if c == Wall {
		return now.Round(0)
	}
	return now
}
