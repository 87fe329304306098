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
	"context"
	"sync"
	"sync/atomic"
)

// QoS is the priority class of a work item, higher classes are served first
// by queues that distinguish them.
type QoS uint8

const (
	// QoSUnspecified leaves the choice to the queue.
	QoSUnspecified QoS = iota
	// QoSBackground is for work the user is not aware of.
	QoSBackground
	// QoSUtility is for long running work the user is aware of.
	QoSUtility
	// QoSDefault is the class of work with no particular urgency.
	QoSDefault
	// QoSUserInitiated is for work the user is waiting for.
	QoSUserInitiated
	// QoSUserInteractive is for work that must complete immediately.
	QoSUserInteractive
)

var qosNames = [...]string{"unspecified", "background", "utility", "default", "user-initiated", "user-interactive"}

// String returns the name of the class.
func (q QoS) String() string {
	if int(q) < len(qosNames) {
		return qosNames[q]
	}
	return "unknown"
}

// urgent tells whether q belongs on the urgent lane of a serial queue.
func (q QoS) urgent() bool {
	return q >= QoSUserInitiated
}

// WorkItemFlags alter how a work item is scheduled.
type WorkItemFlags uint8

const (
	// WorkItemBarrier makes the item run alone on a concurrent queue: it waits
	// for the items submitted before it and delays the ones submitted after it.
	WorkItemBarrier WorkItemFlags = 1 << iota
	// WorkItemNoQoS drops any class, the item runs as QoSUnspecified.
	WorkItemNoQoS
	// WorkItemInheritQoS prefers the class of the queue when the item has none.
	WorkItemInheritQoS
	// WorkItemEnforceQoS prefers the class of the item over the one of the queue.
	WorkItemEnforceQoS
)

// WorkItem is a callback together with its scheduling hints, it is the unit
// that queues accept and the form in which sources hold their handlers.
type WorkItem struct {
	fn        func()
	qos       QoS
	flags     WorkItemFlags
	cancelled atomic.Bool
	doneOnce  sync.Once
	done      chan struct{}
}

// NewWorkItem wraps fn with no scheduling hints.
func NewWorkItem(fn func()) *WorkItem {
	return NewWorkItemWith(QoSUnspecified, 0, fn)
}

// NewWorkItemWith wraps fn with a class and flags.
func NewWorkItemWith(qos QoS, flags WorkItemFlags, fn func()) *WorkItem {
	return &WorkItem{fn: fn, qos: qos, flags: flags, done: make(chan struct{})}
}

// QoS returns the class the item was created with.
func (w *WorkItem) QoS() QoS { return w.qos }

// Flags returns the flags the item was created with.
func (w *WorkItem) Flags() WorkItemFlags { return w.flags }

// Perform runs the callback on the calling goroutine unless the item is cancelled.
// An item may be performed many times, the way event handlers are.
func (w *WorkItem) Perform() {
	if w == nil || w.fn == nil || w.cancelled.Load() {
		return
	}
	w.fn()
	w.doneOnce.Do(func() { close(w.done) })
}

// Cancel prevents future performs, a perform already running is not interrupted.
func (w *WorkItem) Cancel() {
	w.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called.
func (w *WorkItem) IsCancelled() bool {
	return w.cancelled.Load()
}

// Wait blocks until the item has been performed once or ctx is done.
func (w *WorkItem) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// effectiveQoS resolves the class the item runs at on a queue of class target.
func (w *WorkItem) effectiveQoS(target QoS) QoS {
	switch {
	case w.flags&WorkItemNoQoS != 0:
		return QoSUnspecified
	case w.flags&WorkItemEnforceQoS != 0:
		return w.qos
	case w.qos == QoSUnspecified, w.flags&WorkItemInheritQoS != 0 && target > w.qos:
		return target
	default:
		return w.qos
	}
}

func (w *WorkItem) isBarrier() bool {
	return w.flags&WorkItemBarrier != 0
}
