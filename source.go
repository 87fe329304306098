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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/evsource/internal/timer"
	"github.com/panjf2000/evsource/pkg/logging"
)

type sourceState int32

const (
	stateCreated sourceState = iota
	stateActivated
	stateCancelling
	stateCancelled
)

func (s sourceState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateActivated:
		return "activated"
	case stateCancelling:
		return "cancelling"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Source is an event source: it watches one producer of events of its Kind
// and runs its event handler on its queue whenever data is pending.
//
// Lifecycle:
//
//	created --Activate--> activated --Cancel--> cancelling --ack+drained--> cancelled
//	created --Cancel--> cancelling --> cancelled
//
// A source delivers nothing until it is activated. Suspend and Resume gate
// the delivery without touching the registration, data keeps accumulating
// while the source is suspended. Cancel is asynchronous: the cancel handler
// runs once the monitor has acknowledged the unregistration, no event handler
// is running and the source is not suspended. No event handler starts after
// that point.
type Source struct {
	kind    Kind
	handle  uint
	mask    uint
	label   string
	queue   Queue
	monitor Monitor
	logger  logging.Logger

	pending   atomic.Uint64
	delivered atomic.Uint64
	state     atomic.Int32

	mu               sync.Mutex
	suspended        int
	scheduled        bool // a drain or the registration handler is submitted or running
	registering      bool
	acked            bool
	regFailed        bool
	cancelDispatched bool
	event            *WorkItem
	cancel           *WorkItem
	registration     *WorkItem
	reg              *Registration

	timers  *timer.Queue
	timerMu sync.Mutex // serializes arming of the timer against cancellation
	timer   *timerState
}

func (s *Source) loadState() sourceState {
	return sourceState(s.state.Load())
}

func (s *Source) setState(state sourceState) {
	s.state.Store(int32(state))
}

// Kind returns the kind of the source.
func (s *Source) Kind() Kind { return s.kind }

// Handle returns the raw handle the source watches, its meaning depends on the kind.
func (s *Source) Handle() uint { return s.handle }

// Mask returns the raw mask the source was created with.
func (s *Source) Mask() uint { return s.mask }

// Data returns the data of the current handler invocation, or of the most
// recent one when called outside of the event handler.
func (s *Source) Data() uint { return uint(s.delivered.Load()) }

// Label returns the label given through WithLabel.
func (s *Source) Label() string { return s.label }

// IsCancelled reports whether cancellation has been requested, it turns true
// as soon as Cancel is called so that running handlers can stop early.
func (s *Source) IsCancelled() bool {
	return s.loadState() >= stateCancelling
}

// String implements fmt.Stringer.
func (s *Source) String() string {
	if s.label != "" {
		return fmt.Sprintf("%s source %q (handle %d, %s)", s.kind, s.label, s.handle, s.loadState())
	}
	return fmt.Sprintf("%s source (handle %d, %s)", s.kind, s.handle, s.loadState())
}

func handlerItem(fn func()) *WorkItem {
	if fn == nil {
		return nil
	}
	return NewWorkItem(fn)
}

// SetEventHandler replaces the event handler, nil removes it. It may be called
// in any state and applies to the deliveries that start after it returns.
func (s *Source) SetEventHandler(fn func()) {
	s.SetEventWorkItem(handlerItem(fn))
}

// SetEventWorkItem is like SetEventHandler, the class and flags of item
// are used when the handler is submitted to the queue.
func (s *Source) SetEventWorkItem(item *WorkItem) {
	s.mu.Lock()
	s.event = item
	s.mu.Unlock()
}

// SetCancelHandler replaces the cancel handler, nil removes it. It has no
// effect once the cancel handler has been dispatched.
func (s *Source) SetCancelHandler(fn func()) {
	s.SetCancelWorkItem(handlerItem(fn))
}

// SetCancelWorkItem is like SetCancelHandler with an explicit work item.
func (s *Source) SetCancelWorkItem(item *WorkItem) {
	s.mu.Lock()
	if !s.cancelDispatched {
		s.cancel = item
	}
	s.mu.Unlock()
}

// SetRegistrationHandler sets the handler that runs once the source is
// registered, ahead of any event handler. It has no effect after Activate.
func (s *Source) SetRegistrationHandler(fn func()) {
	s.SetRegistrationWorkItem(handlerItem(fn))
}

// SetRegistrationWorkItem is like SetRegistrationHandler with an explicit work item.
func (s *Source) SetRegistrationWorkItem(item *WorkItem) {
	s.mu.Lock()
	if s.loadState() == stateCreated {
		s.registration = item
	}
	s.mu.Unlock()
}

// Activate registers the source and starts the delivery of events, only the
// first call has an effect. When the registration fails the source goes
// straight to cancellation and only the cancel handler runs.
func (s *Source) Activate() {
	s.mu.Lock()
	if s.loadState() != stateCreated {
		s.mu.Unlock()
		return
	}
	s.setState(stateActivated)
	s.registering = true
	s.mu.Unlock()

	err := s.register()

	s.mu.Lock()
	s.registering = false
	if err != nil {
		s.logger.Warnf("failed to register %v: %v", s, err)
		s.regFailed = true
		s.acked = true
		s.setState(stateCancelling)
		item := s.finishCancelLocked()
		s.mu.Unlock()
		s.dispatchCancel(item)
		return
	}
	if s.loadState() != stateActivated {
		// Cancel came in while registering and left the teardown to us.
		s.mu.Unlock()
		s.unregister()
		return
	}
	var regItem *WorkItem
	if s.registration != nil {
		regItem = s.registration
		s.registration = nil
		s.scheduled = true
	}
	s.mu.Unlock()

	s.armTimer()
	if regItem != nil {
		s.submit(NewWorkItemWith(regItem.qos, regItem.flags, func() {
			regItem.Perform()
			s.finishDrain()
		}))
		return
	}
	s.poke()
}

func (s *Source) register() error {
	switch s.kind {
	case KindTimer, KindUserDataAdd, KindUserDataOr:
		return nil
	}
	s.reg = &Registration{Kind: s.kind, Handle: s.handle, Mask: s.mask, Notify: s.notify}
	return s.monitor.Register(s.reg)
}

// Cancel requests the asynchronous cancellation of the source. It may be
// called any number of times from any goroutine, only the first call counts.
func (s *Source) Cancel() {
	s.mu.Lock()
	switch s.loadState() {
	case stateCreated:
		s.setState(stateCancelling)
		s.acked = true
		item := s.finishCancelLocked()
		s.mu.Unlock()
		s.dispatchCancel(item)
	case stateActivated:
		s.setState(stateCancelling)
		registering := s.registering
		s.mu.Unlock()
		if !registering {
			s.unregister()
		}
	default:
		s.mu.Unlock()
	}
}

func (s *Source) unregister() {
	s.disarmTimer()
	if s.reg != nil {
		s.monitor.Unregister(s.reg, s.ack)
		return
	}
	s.ack()
}

func (s *Source) ack() {
	s.mu.Lock()
	s.acked = true
	item := s.finishCancelLocked()
	s.mu.Unlock()
	s.dispatchCancel(item)
}

// finishCancelLocked moves a cancelling source to cancelled once nothing
// holds it back, returning the cancel handler to dispatch.
func (s *Source) finishCancelLocked() *WorkItem {
	if s.loadState() != stateCancelling || !s.acked || s.scheduled || s.cancelDispatched {
		return nil
	}
	if s.suspended > 0 && !s.regFailed {
		return nil
	}
	s.setState(stateCancelled)
	s.cancelDispatched = true
	item := s.cancel
	s.cancel, s.event, s.registration = nil, nil, nil
	s.pending.Store(0)
	return item
}

func (s *Source) dispatchCancel(item *WorkItem) {
	if item != nil {
		s.submit(item)
	}
}

// Suspend increments the suspension count, no event handler is submitted
// while the count is positive.
func (s *Source) Suspend() {
	s.mu.Lock()
	s.suspended++
	s.mu.Unlock()
}

// Resume decrements the suspension count, a resume without a matching
// suspend is logged and ignored.
func (s *Source) Resume() {
	s.mu.Lock()
	if s.suspended == 0 {
		s.mu.Unlock()
		s.logger.Warnf("unbalanced resume of %v is ignored", s)
		return
	}
	s.suspended--
	if s.suspended > 0 {
		s.mu.Unlock()
		return
	}
	item := s.finishCancelLocked()
	s.mu.Unlock()
	s.dispatchCancel(item)
	s.poke()
}

// notify merges raw into the pending data and schedules a delivery, it is
// the sink of monitors, timers and MergeData.
func (s *Source) notify(raw uint64) {
	v := s.kind.accept(raw, s.mask)
	if v == 0 || s.loadState() >= stateCancelling {
		return
	}
	for {
		old := s.pending.Load()
		if s.pending.CompareAndSwap(old, s.kind.merge(old, v)) {
			break
		}
	}
	s.poke()
}

// poke submits a drain unless one is already on its way or delivery is gated.
func (s *Source) poke() {
	s.mu.Lock()
	if s.loadState() != stateActivated || s.registering || s.suspended > 0 || s.scheduled || s.pending.Load() == 0 {
		s.mu.Unlock()
		return
	}
	s.scheduled = true
	handler := s.event
	s.mu.Unlock()
	s.submitDrain(handler)
}

func (s *Source) submitDrain(handler *WorkItem) {
	var item *WorkItem
	if handler != nil {
		item = NewWorkItemWith(handler.qos, handler.flags, s.drain)
	} else {
		item = NewWorkItem(s.drain)
	}
	s.submit(item)
}

// drain runs on the queue: it takes the pending data and hands it to the
// event handler. Data merged meanwhile waits for the next drain.
func (s *Source) drain() {
	s.mu.Lock()
	if s.loadState() != stateActivated || s.suspended > 0 {
		s.scheduled = false
		item := s.finishCancelLocked()
		s.mu.Unlock()
		s.dispatchCancel(item)
		return
	}
	data := s.pending.Swap(0)
	handler := s.event
	s.mu.Unlock()

	if data != 0 {
		s.delivered.Store(data)
		handler.Perform()
		if s.reg != nil && s.reg.Rearm != nil && !s.IsCancelled() {
			s.reg.Rearm()
		}
	}
	s.finishDrain()
}

// finishDrain releases the delivery slot and either completes a pending
// cancellation or schedules the next drain.
func (s *Source) finishDrain() {
	s.mu.Lock()
	s.scheduled = false
	item := s.finishCancelLocked()
	var (
		again   bool
		handler *WorkItem
	)
	if item == nil && s.loadState() == stateActivated && s.suspended == 0 && s.pending.Load() != 0 {
		again = true
		s.scheduled = true
		handler = s.event
	}
	s.mu.Unlock()

	s.dispatchCancel(item)
	if again {
		s.submitDrain(handler)
	}
}

func (s *Source) submit(item *WorkItem) {
	if err := s.queue.Submit(item); err != nil {
		s.logger.Errorf("failed to submit work of %v: %v", s, err)
	}
}
