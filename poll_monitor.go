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

//go:build linux || freebsd || dragonfly || darwin
// +build linux freebsd dragonfly darwin

package evsource

import (
	"os"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/panjf2000/evsource/internal/netpoll"
	"github.com/panjf2000/evsource/pkg/errors"
	"github.com/panjf2000/evsource/pkg/logging"
)

// PollMonitor is the default Monitor, it watches descriptors, processes and
// files with the poller of the platform and signals with os/signal.
//
// Events are read by one goroutine, which is also where registrations are
// removed: once the ack of Unregister has been called, no event of the
// registration is delivered anymore.
type PollMonitor struct {
	poller  *netpoll.Poller
	signals *signalWatcher
	done    chan struct{}

	mu     sync.Mutex
	closed bool
	pollState
}

// pollEntry is what a PollMonitor keeps for one registration.
type pollEntry struct {
	reg     *Registration
	removed bool
	entryState
}

// NewPollMonitor opens a poller and starts watching.
func NewPollMonitor() (*PollMonitor, error) {
	p, err := netpoll.OpenPoller()
	if err != nil {
		return nil, err
	}
	m := &PollMonitor{poller: p, signals: newSignalWatcher(), done: make(chan struct{})}
	m.initState()
	go m.run()
	return m, nil
}

func (m *PollMonitor) run() {
	defer close(m.done)
	if err := m.poller.Polling(m.dispatch); err != nil && err != errors.ErrMonitorClosed {
		logging.Errorf("poll monitor stopped: %v", err)
	}
}

// Register implements Monitor.
func (m *PollMonitor) Register(r *Registration) error {
	switch r.Kind {
	case KindSignal:
		return m.signals.register(r)
	case KindMachSend, KindMachReceive, KindTimer, KindUserDataAdd, KindUserDataOr:
		return errors.ErrUnsupportedKind
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrMonitorClosed
	}
	e := &pollEntry{reg: r}
	e.initEntry()
	if r.Kind == KindRead || r.Kind == KindWrite {
		r.Rearm = func() { m.rearm(e) }
	}
	if err := m.add(e); err != nil {
		r.Rearm = nil
		return err
	}
	r.Token = e
	return nil
}

// Unregister implements Monitor.
func (m *PollMonitor) Unregister(r *Registration, ack func()) {
	if r.Kind == KindSignal {
		m.signals.unregister(r, ack)
		return
	}
	e, _ := r.Token.(*pollEntry)
	if e == nil {
		ack()
		return
	}

	m.mu.Lock()
	if !m.closed {
		err := m.poller.UrgentTrigger(func(interface{}) error {
			m.mu.Lock()
			m.release(e)
			m.mu.Unlock()
			ack()
			return nil
		}, nil)
		m.mu.Unlock()
		if err == nil {
			return
		}
		logging.Warnf("failed to wake up the poll monitor: %v", err)
	} else {
		m.mu.Unlock()
	}

	<-m.done
	m.mu.Lock()
	m.release(e)
	m.mu.Unlock()
	ack()
}

// rearm re-enables a oneshot registration from the poll goroutine.
func (m *PollMonitor) rearm(e *pollEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	_ = m.poller.Trigger(func(interface{}) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e.removed {
			return nil
		}
		return m.rearmEntry(e)
	}, nil)
}

// Close stops the monitor and releases every registration still in place,
// their sources receive no event afterwards.
func (m *PollMonitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	err := m.poller.UrgentTrigger(func(interface{}) error { return errors.ErrMonitorClosed }, nil)
	m.mu.Unlock()
	if err == nil {
		<-m.done
	}

	m.mu.Lock()
	err = multierr.Combine(err, m.closeState())
	m.mu.Unlock()
	return multierr.Combine(err, m.signals.close(), m.poller.Close())
}

// dupFd gives the monitor its own descriptor for fd, so that the caller
// closing fd does not disturb the poller and two sources on one fd stay apart.
func dupFd(fd int) (int, error) {
	nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, os.NewSyscallError("fcntl dupfd", err)
	}
	return nfd, nil
}
