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

//go:build freebsd || dragonfly || darwin
// +build freebsd dragonfly darwin

package evsource

import (
	"golang.org/x/sys/unix"

	"github.com/panjf2000/evsource/internal/netpoll"
	"github.com/panjf2000/evsource/pkg/errors"
)

// knote identifies a kevent filter on an ident.
type knote struct {
	ident  int
	filter int16
}

type pollState struct {
	notes map[knote]*pollEntry
}

type entryState struct {
	note knote
	// fd is the descriptor owned by the monitor, -1 when the ident is a pid.
	fd int
}

func (m *PollMonitor) initState() {
	m.notes = make(map[knote]*pollEntry)
}

func (e *pollEntry) initEntry() {
	e.fd = -1
}

// add registers e with the kernel, m.mu is held. The bits of process and
// vnode masks have the values of the NOTE_* flags, they are passed as is
// once knoteMaskSupported has ruled out those the platform lacks.
func (m *PollMonitor) add(e *pollEntry) (err error) {
	r := e.reg
	if err = knoteMaskSupported(r.Kind, r.Mask); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			m.release(e)
		}
	}()

	switch r.Kind {
	case KindRead, KindWrite, KindFileSystemObject:
		if e.fd, err = dupFd(int(r.Handle)); err != nil {
			return err
		}
		switch r.Kind {
		case KindRead:
			m.track(e, knote{e.fd, unix.EVFILT_READ})
			return m.poller.AddRead(e.fd, true)
		case KindWrite:
			m.track(e, knote{e.fd, unix.EVFILT_WRITE})
			return m.poller.AddWrite(e.fd, true)
		default:
			m.track(e, knote{e.fd, unix.EVFILT_VNODE})
			return m.poller.AddVnode(e.fd, uint32(r.Mask))
		}
	case KindProcess:
		note := knote{int(r.Handle), unix.EVFILT_PROC}
		if _, ok := m.notes[note]; ok {
			return errors.ErrAlreadyRegistered
		}
		m.track(e, note)
		return m.poller.AddProcess(note.ident, uint32(r.Mask))
	default:
		return errors.ErrUnsupportedKind
	}
}

func knoteMaskSupported(kind Kind, mask uint) error {
	switch {
	case kind == KindProcess && mask&unsupportedProcessBits != 0,
		kind == KindFileSystemObject && mask&unsupportedFileSysBits != 0:
		return errors.ErrUnsupportedEvent
	}
	return nil
}

func (m *PollMonitor) track(e *pollEntry, note knote) {
	e.note = note
	m.notes[note] = e
}

// release removes e from the kernel and closes its descriptor, m.mu is held.
func (m *PollMonitor) release(e *pollEntry) {
	if e.removed {
		return
	}
	e.removed = true
	if x, ok := m.notes[e.note]; ok && x == e {
		delete(m.notes, e.note)
		_ = m.poller.Delete(e.note.ident, e.note.filter)
	}
	if e.fd >= 0 {
		_ = unix.Close(e.fd)
		e.fd = -1
	}
}

func (m *PollMonitor) rearmEntry(e *pollEntry) error {
	if e.reg.Kind == KindRead {
		return m.poller.RearmRead(e.fd)
	}
	return m.poller.RearmWrite(e.fd)
}

func (m *PollMonitor) closeState() error {
	entries := make([]*pollEntry, 0, len(m.notes))
	for _, e := range m.notes {
		entries = append(entries, e)
	}
	for _, e := range entries {
		m.release(e)
	}
	return nil
}

// dispatch runs on the poll goroutine for every event reported by kqueue.
func (m *PollMonitor) dispatch(ev netpoll.Event) error {
	m.mu.Lock()
	e := m.notes[knote{ev.Ident, ev.Filter}]
	m.mu.Unlock()
	if e == nil {
		return nil
	}

	r := e.reg
	switch ev.Filter {
	case unix.EVFILT_READ, unix.EVFILT_WRITE:
		n := ev.Data
		if n < 1 {
			n = 1
		}
		r.Notify(uint64(n))
	case unix.EVFILT_PROC, unix.EVFILT_VNODE:
		r.Notify(uint64(ev.Fflags))
	}
	return nil
}
