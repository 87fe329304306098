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
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/panjf2000/evsource/pkg/errors"
)

// signalBacklog is the number of deliveries os/signal may buffer per signal
// before dropping, deliveries beyond it are coalesced like the kernel does.
const signalBacklog = 32

// signalWatcher fans the deliveries of each signal out to the registrations
// counting it. The Go runtime owns signal handlers, so os/signal is the only
// way in.
type signalWatcher struct {
	mu     sync.Mutex
	closed bool
	subs   map[syscall.Signal]*signalSub
}

type signalSub struct {
	ch   chan os.Signal
	regs []*Registration
	busy bool     // a delivery round is notifying a snapshot of regs
	acks []func() // unregistrations waiting for the round to end
}

func newSignalWatcher() *signalWatcher {
	return &signalWatcher{subs: make(map[syscall.Signal]*signalSub)}
}

func (w *signalWatcher) register(r *Registration) error {
	sig := syscall.Signal(r.Handle)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.ErrMonitorClosed
	}
	sub := w.subs[sig]
	if sub == nil {
		sub = &signalSub{ch: make(chan os.Signal, signalBacklog)}
		w.subs[sig] = sub
		signal.Notify(sub.ch, sig)
		go w.deliver(sub)
	}
	sub.regs = append(sub.regs, r)
	return nil
}

// unregister detaches r and calls ack once r can no longer be notified,
// which is after the delivery round in progress, if any.
func (w *signalWatcher) unregister(r *Registration, ack func()) {
	sig := syscall.Signal(r.Handle)

	w.mu.Lock()
	sub := w.subs[sig]
	if sub == nil {
		w.mu.Unlock()
		ack()
		return
	}
	for i, x := range sub.regs {
		if x == r {
			sub.regs = append(sub.regs[:i:i], sub.regs[i+1:]...)
			break
		}
	}
	if len(sub.regs) == 0 {
		w.stop(sig, sub)
	}
	if sub.busy {
		sub.acks = append(sub.acks, ack)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	ack()
}

// stop detaches sub from os/signal, w.mu is held.
func (w *signalWatcher) stop(sig syscall.Signal, sub *signalSub) {
	signal.Stop(sub.ch)
	close(sub.ch)
	delete(w.subs, sig)
}

// deliver notifies outside of w.mu, Notify may block on a saturated queue.
func (w *signalWatcher) deliver(sub *signalSub) {
	for range sub.ch {
		w.mu.Lock()
		regs := sub.regs
		sub.busy = true
		w.mu.Unlock()

		for _, r := range regs {
			r.Notify(1)
		}

		w.mu.Lock()
		sub.busy = false
		acks := sub.acks
		sub.acks = nil
		w.mu.Unlock()
		for _, ack := range acks {
			ack()
		}
	}
}

func (w *signalWatcher) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for sig, sub := range w.subs {
		sub.regs = nil
		w.stop(sig, sub)
	}
	return nil
}
