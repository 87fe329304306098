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

//go:build linux
// +build linux

package netpoll

import (
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/panjf2000/evsource/internal/queue"
	"github.com/panjf2000/evsource/pkg/errors"
	"github.com/panjf2000/evsource/pkg/logging"
)

// Event is a readiness report for one file descriptor.
type Event struct {
	Fd     int
	Events uint32
}

const (
	// ErrEvents represents exceptional events that are not read/write, like the peer being closed.
	ErrEvents = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
	// InEvents combines EPOLLIN/EPOLLPRI events and some exceptional events.
	InEvents = ErrEvents | unix.EPOLLIN | unix.EPOLLPRI
	// OutEvents combines EPOLLOUT event and some exceptional events.
	OutEvents = ErrEvents | unix.EPOLLOUT
)

// IsReadable reports whether ev carries a readable condition, hang-ups included.
func (ev Event) IsReadable() bool { return ev.Events&InEvents != 0 }

// IsWritable reports whether ev carries a writable condition, errors included.
func (ev Event) IsWritable() bool { return ev.Events&OutEvents != 0 }

// IsPriority reports whether ev carries an urgent condition, which is how PSI triggers fire.
func (ev Event) IsPriority() bool { return ev.Events&unix.EPOLLPRI != 0 }

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd                   int    // epoll fd
	efd                  int    // eventfd
	efdBuf               []byte // efd buffer to read an 8-byte integer
	wakeupCall           int32
	asyncTaskQueue       queue.AsyncTaskQueue // queue with low priority
	urgentAsyncTaskQueue queue.AsyncTaskQueue // queue with high priority
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.efd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		err = os.NewSyscallError("eventfd", err)
		return
	}
	poller.efdBuf = make([]byte, 8)
	if err = poller.ctl(unix.EPOLL_CTL_ADD, poller.efd, unix.EPOLLIN); err != nil {
		_ = poller.Close()
		poller = nil
		return
	}
	poller.asyncTaskQueue = queue.NewLockFreeQueue()
	poller.urgentAsyncTaskQueue = queue.NewLockFreeQueue()
	return
}

// Close closes the poller, it must not be called while Polling is running.
func (p *Poller) Close() error {
	return multierr.Combine(
		os.NewSyscallError("close", unix.Close(p.fd)),
		os.NewSyscallError("close", unix.Close(p.efd)))
}

// Make the endianness of bytes compatible with more linux OSs under different processor-architectures,
// according to http://man7.org/linux/man-pages/man2/eventfd.2.html.
var (
	u uint64 = 1
	b        = (*(*[8]byte)(unsafe.Pointer(&u)))[:]
)

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
		for _, err = unix.Write(p.efd, b); err == unix.EINTR || err == unix.EAGAIN; _, err = unix.Write(p.efd, b) {
		}
	}
	return os.NewSyscallError("write", err)
}

// Polling blocks the current goroutine, waiting for events and running the triggered tasks.
// It returns when a callback or a task returns errors.ErrMonitorClosed.
func (p *Poller) Polling(callback func(ev Event) error) error {
	el := newEventList(InitPollEventsCap)
	var doChores bool

	msec := -1
	for {
		n, err := unix.EpollWait(p.fd, el.events, msec)
		if n == 0 || (n < 0 && err == unix.EINTR) {
			msec = -1
			runtime.Gosched()
			continue
		} else if err != nil {
			logging.Errorf("error occurs in epoll: %v", os.NewSyscallError("epoll_wait", err))
			return err
		}
		msec = 0

		for i := 0; i < n; i++ {
			ev := &el.events[i]
			if fd := int(ev.Fd); fd != p.efd {
				switch err = callback(Event{Fd: fd, Events: ev.Events}); err {
				case nil:
				case errors.ErrMonitorClosed:
					return err
				default:
					logging.Warnf("error occurs in event-loop: %v", err)
				}
			} else { // poller is awakened to run tasks in queues.
				doChores = true
				_, _ = unix.Read(p.efd, p.efdBuf)
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
		for _, err = unix.Write(p.efd, b); err == unix.EINTR || err == unix.EAGAIN; _, err = unix.Write(p.efd, b) {
		}
	}
	return nil
}

func (p *Poller) ctl(op, fd int, events uint32) error {
	name := "epoll_ctl add"
	if op == unix.EPOLL_CTL_MOD {
		name = "epoll_ctl mod"
	}
	return os.NewSyscallError(name, unix.EpollCtl(p.fd, op, fd, &unix.EpollEvent{Fd: int32(fd), Events: events}))
}

// AddRead registers the given file-descriptor with readable event to the poller.
// A oneshot registration stays silent after one report until RearmRead is called.
func (p *Poller) AddRead(fd int, oneshot bool) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, readEvents(oneshot))
}

// AddWrite registers the given file-descriptor with writable event to the poller.
func (p *Poller) AddWrite(fd int, oneshot bool) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, writeEvents(oneshot))
}

// AddPriority registers the given file-descriptor with urgent events, edge-triggered.
func (p *Poller) AddPriority(fd int) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLPRI|unix.EPOLLERR|unix.EPOLLET)
}

// RearmRead re-enables a oneshot readable registration.
func (p *Poller) RearmRead(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, readEvents(true))
}

// RearmWrite re-enables a oneshot writable registration.
func (p *Poller) RearmWrite(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, writeEvents(true))
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}

func readEvents(oneshot bool) uint32 {
	ev := uint32(unix.EPOLLIN | unix.EPOLLRDHUP)
	if oneshot {
		ev |= unix.EPOLLONESHOT
	}
	return ev
}

func writeEvents(oneshot bool) uint32 {
	ev := uint32(unix.EPOLLOUT)
	if oneshot {
		ev |= unix.EPOLLONESHOT
	}
	return ev
}

type eventList struct {
	size   int
	events []unix.EpollEvent
}

func newEventList(size int) *eventList {
	return &eventList{size, make([]unix.EpollEvent, size)}
}

func (el *eventList) expand() {
	el.size <<= 1
	el.events = make([]unix.EpollEvent, el.size)
}

func (el *eventList) shrink() {
	el.size >>= 1
	el.events = make([]unix.EpollEvent, el.size)
}
