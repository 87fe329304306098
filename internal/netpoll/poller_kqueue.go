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

package netpoll

import (
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/evsource/internal/queue"
	"github.com/panjf2000/evsource/pkg/errors"
	"github.com/panjf2000/evsource/pkg/logging"
)

// Event is one kevent reported by the kernel.
type Event struct {
	Ident  int
	Filter int16
	Flags  uint16
	Fflags uint32
	Data   int64
}

// IsEOF reports whether the kernel flagged the end of file or an error on the ident.
func (ev Event) IsEOF() bool {
	return ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0
}

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd                   int
	wakeupCall           int32
	asyncTaskQueue       queue.AsyncTaskQueue // queue with low priority
	urgentAsyncTaskQueue queue.AsyncTaskQueue // queue with high priority
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.Kqueue(); err != nil {
		poller = nil
		err = os.NewSyscallError("kqueue", err)
		return
	}
	if _, err = unix.Kevent(poller.fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("kevent add|clear", err)
		return
	}
	poller.asyncTaskQueue = queue.NewLockFreeQueue()
	poller.urgentAsyncTaskQueue = queue.NewLockFreeQueue()
	return
}

// Close closes the poller, it must not be called while Polling is running.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

var note = []unix.Kevent_t{{
	Ident:  0,
	Filter: unix.EVFILT_USER,
	Fflags: unix.NOTE_TRIGGER,
}}

// UrgentTrigger puts task into urgentAsyncTaskQueue and wakes up the poller which is waiting for events,
// then the poller will get tasks from urgentAsyncTaskQueue and run them.
//
// Note that urgentAsyncTaskQueue is a queue with high-priority and its size is expected to be small,
// so only those urgent tasks should be put into this queue.
func (p *Poller) UrgentTrigger(fn queue.TaskFunc, arg interface{}) (err error) {
	task := queue.GetTask()
	task.Run, task.Arg = fn, arg
	p.urgentAsyncTaskQueue.Enqueue(task)
	return p.wakeup()
}

// Trigger is like UrgentTrigger but it puts task into asyncTaskQueue,
// call this method when the task is not so urgent.
//
// Note that asyncTaskQueue is a queue with low-priority whose size may grow large and tasks in it may backlog.
func (p *Poller) Trigger(fn queue.TaskFunc, arg interface{}) (err error) {
	task := queue.GetTask()
	task.Run, task.Arg = fn, arg
	p.asyncTaskQueue.Enqueue(task)
	return p.wakeup()
}

func (p *Poller) wakeup() (err error) {
	if atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		if _, err = unix.Kevent(p.fd, note, nil, nil); err == unix.EAGAIN {
			err = nil
		}
	}
	return os.NewSyscallError("kevent trigger", err)
}

// Polling blocks the current goroutine, waiting for events and running the triggered tasks.
// It returns when a callback or a task returns errors.ErrMonitorClosed.
func (p *Poller) Polling(callback func(ev Event) error) error {
	el := newEventList(InitPollEventsCap)

	var (
		ts       unix.Timespec
		tsp      *unix.Timespec
		doChores bool
	)
	for {
		n, err := unix.Kevent(p.fd, nil, el.events, tsp)
		if n == 0 || (n < 0 && err == unix.EINTR) {
			tsp = nil
			runtime.Gosched()
			continue
		} else if err != nil {
			logging.Errorf("error occurs in kqueue: %v", os.NewSyscallError("kevent wait", err))
			return err
		}
		tsp = &ts

		for i := 0; i < n; i++ {
			ev := &el.events[i]
			if ev.Filter == unix.EVFILT_USER {
				// poller is awakened to run tasks in queues.
				doChores = true
				continue
			}
			switch err = callback(Event{
				Ident:  int(ev.Ident),
				Filter: ev.Filter,
				Flags:  ev.Flags,
				Fflags: ev.Fflags,
				Data:   int64(ev.Data),
			}); err {
			case nil:
			case errors.ErrMonitorClosed:
				return err
			default:
				logging.Warnf("error occurs in event-loop: %v", err)
			}
		}

		if doChores {
			doChores = false
			if err = p.runTasks(); err != nil {
				return err
			}
		}

		if n == el.size && el.size<<1 <= MaxPollEventsCap {
			el.expand()
		} else if n < el.size>>1 && el.size>>1 >= MinPollEventsCap {
			el.shrink()
		}
	}
}

func (p *Poller) runTasks() (err error) {
	task := p.urgentAsyncTaskQueue.Dequeue()
	for ; task != nil; task = p.urgentAsyncTaskQueue.Dequeue() {
		switch err = task.Run(task.Arg); err {
		case nil:
		case errors.ErrMonitorClosed:
			return err
		default:
			logging.Warnf("error occurs in user-defined function, %v", err)
		}
		queue.PutTask(task)
	}
	for i := 0; i < MaxAsyncTasksAtOneTime; i++ {
		if task = p.asyncTaskQueue.Dequeue(); task == nil {
			break
		}
		switch err = task.Run(task.Arg); err {
		case nil:
		case errors.ErrMonitorClosed:
			return err
		default:
			logging.Warnf("error occurs in user-defined function, %v", err)
		}
		queue.PutTask(task)
	}
	atomic.StoreInt32(&p.wakeupCall, 0)
	if (!p.asyncTaskQueue.IsEmpty() || !p.urgentAsyncTaskQueue.IsEmpty()) && atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		if _, err = unix.Kevent(p.fd, note, nil, nil); err != nil && err != unix.EAGAIN {
			logging.Warnf("failed to wake up the poller: %v", os.NewSyscallError("kevent trigger", err))
		}
	}
	return nil
}

func (p *Poller) change(ident int, filter int16, flags uint16, fflags uint32) error {
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{
		{Ident: uint64(ident), Filter: filter, Flags: flags, Fflags: fflags},
	}, nil, nil)
	return err
}

// AddRead registers the given file-descriptor with readable event to the poller.
// A oneshot registration stays silent after one report until RearmRead is called.
func (p *Poller) AddRead(fd int, oneshot bool) error {
	flags := uint16(unix.EV_ADD)
	if oneshot {
		flags |= unix.EV_DISPATCH
	}
	return os.NewSyscallError("kevent add", p.change(fd, unix.EVFILT_READ, flags, 0))
}

// AddWrite registers the given file-descriptor with writable event to the poller.
func (p *Poller) AddWrite(fd int, oneshot bool) error {
	flags := uint16(unix.EV_ADD)
	if oneshot {
		flags |= unix.EV_DISPATCH
	}
	return os.NewSyscallError("kevent add", p.change(fd, unix.EVFILT_WRITE, flags, 0))
}

// AddProcess watches the process identified by pid for the given NOTE_* flags.
func (p *Poller) AddProcess(pid int, fflags uint32) error {
	return os.NewSyscallError("kevent add", p.change(pid, unix.EVFILT_PROC, unix.EV_ADD|unix.EV_CLEAR, fflags))
}

// AddVnode watches the file behind fd for the given NOTE_* flags.
func (p *Poller) AddVnode(fd int, fflags uint32) error {
	return os.NewSyscallError("kevent add", p.change(fd, unix.EVFILT_VNODE, unix.EV_ADD|unix.EV_CLEAR, fflags))
}

// RearmRead re-enables a oneshot readable registration.
func (p *Poller) RearmRead(fd int) error {
	return os.NewSyscallError("kevent enable", p.change(fd, unix.EVFILT_READ, unix.EV_ENABLE|unix.EV_DISPATCH, 0))
}

// RearmWrite re-enables a oneshot writable registration.
func (p *Poller) RearmWrite(fd int) error {
	return os.NewSyscallError("kevent enable", p.change(fd, unix.EVFILT_WRITE, unix.EV_ENABLE|unix.EV_DISPATCH, 0))
}

// Delete removes the given ident and filter from the poller.
func (p *Poller) Delete(ident int, filter int16) error {
	return os.NewSyscallError("kevent delete", p.change(ident, filter, unix.EV_DELETE, 0))
}

type eventList struct {
	size   int
	events []unix.Kevent_t
}

func newEventList(size int) *eventList {
	return &eventList{size, make([]unix.Kevent_t, size)}
}

func (el *eventList) expand() {
	el.size <<= 1
	el.events = make([]unix.Kevent_t, el.size)
}

func (el *eventList) shrink() {
	el.size >>= 1
	el.events = make([]unix.Kevent_t, el.size)
}
