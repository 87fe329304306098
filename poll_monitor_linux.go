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
	"strconv"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/panjf2000/evsource/internal/netpoll"
	"github.com/panjf2000/evsource/pkg/errors"
	"github.com/panjf2000/evsource/pkg/pool/bytebuffer"
)

const (
	psiMemoryPath = "/proc/pressure/memory"

	inotifyMask = unix.IN_MODIFY | unix.IN_ATTRIB | unix.IN_MOVE_SELF | unix.IN_DELETE_SELF | unix.IN_MASK_ADD

	// inotifyBufferSize holds a few hundred events, watches are on files so names are empty.
	inotifyBufferSize = 4096
)

// psiTriggers map memory pressure levels to PSI trigger thresholds:
// the stall time in microseconds within a window in microseconds.
var psiTriggers = []struct {
	level MemoryPressureEvent
	spec  string
}{
	{MemoryPressureWarning, "some 150000 1000000"},
	{MemoryPressureCritical, "full 100000 1000000"},
}

type polledFd struct {
	e   *pollEntry
	raw uint64
}

type pollState struct {
	fds     map[int]*polledFd
	watches map[int][]*pollEntry
	inotify int
}

type entryState struct {
	fds []int
	// inotify watch of a file system object, -1 for other kinds.
	wd    int
	size  int64
	nlink uint64
}

func (m *PollMonitor) initState() {
	m.fds = make(map[int]*polledFd)
	m.watches = make(map[int][]*pollEntry)
	m.inotify = -1
}

func (e *pollEntry) initEntry() {
	e.wd = -1
}

// add registers e with the kernel, m.mu is held.
func (m *PollMonitor) add(e *pollEntry) (err error) {
	r := e.reg
	defer func() {
		if err != nil {
			m.release(e)
		}
	}()

	switch r.Kind {
	case KindRead, KindWrite:
		fd, err := dupFd(int(r.Handle))
		if err != nil {
			return err
		}
		m.track(e, fd, 0)
		if r.Kind == KindRead {
			return m.poller.AddRead(fd, true)
		}
		return m.poller.AddWrite(fd, true)
	case KindProcess:
		if ProcessEvent(r.Mask)&^ProcessExit != 0 {
			return errors.ErrUnsupportedEvent
		}
		fd, err := unix.PidfdOpen(int(r.Handle), 0)
		if err != nil {
			return os.NewSyscallError("pidfd_open", err)
		}
		m.track(e, fd, 0)
		return m.poller.AddRead(fd, true)
	case KindMemoryPressure:
		mask := MemoryPressureEvent(r.Mask)
		if mask&(MemoryPressureWarning|MemoryPressureCritical) == 0 {
			return errors.ErrUnsupportedEvent
		}
		for _, t := range psiTriggers {
			if !mask.Contains(t.level) {
				continue
			}
			fd, err := openPSITrigger(t.spec)
			if err != nil {
				return err
			}
			m.track(e, fd, uint64(t.level))
			if err = m.poller.AddPriority(fd); err != nil {
				return err
			}
		}
		return nil
	case KindFileSystemObject:
		return m.addWatch(e)
	default:
		return errors.ErrUnsupportedKind
	}
}

func (m *PollMonitor) track(e *pollEntry, fd int, raw uint64) {
	e.fds = append(e.fds, fd)
	m.fds[fd] = &polledFd{e: e, raw: raw}
}

func openPSITrigger(spec string) (int, error) {
	fd, err := unix.Open(psiMemoryPath, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, os.NewSyscallError("open", err)
	}
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)
	_, _ = buf.WriteString(spec)
	_ = buf.WriteByte(0)
	if _, err = unix.Write(fd, buf.B); err != nil {
		_ = unix.Close(fd)
		return -1, os.NewSyscallError("write", err)
	}
	return fd, nil
}

// addWatch watches the file behind the descriptor through its /proc/self/fd link.
// Watches of one inode share a descriptor, so entries are kept per descriptor.
func (m *PollMonitor) addWatch(e *pollEntry) error {
	if m.inotify < 0 {
		ifd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
		if err != nil {
			return os.NewSyscallError("inotify_init1", err)
		}
		if err = m.poller.AddRead(ifd, false); err != nil {
			_ = unix.Close(ifd)
			return err
		}
		m.inotify = ifd
	}

	fd, err := dupFd(int(e.reg.Handle))
	if err != nil {
		return err
	}
	e.fds = append(e.fds, fd)
	var st unix.Stat_t
	if err = unix.Fstat(fd, &st); err != nil {
		return os.NewSyscallError("fstat", err)
	}
	e.size, e.nlink = st.Size, uint64(st.Nlink)

	wd, err := unix.InotifyAddWatch(m.inotify, "/proc/self/fd/"+strconv.Itoa(fd), inotifyMask)
	if err != nil {
		return os.NewSyscallError("inotify_add_watch", err)
	}
	e.wd = wd
	m.watches[wd] = append(m.watches[wd], e)
	return nil
}

// release removes e from the kernel and closes its descriptors, m.mu is held.
func (m *PollMonitor) release(e *pollEntry) {
	if e.removed {
		return
	}
	e.removed = true
	for _, fd := range e.fds {
		if _, ok := m.fds[fd]; ok {
			delete(m.fds, fd)
			_ = m.poller.Delete(fd)
		}
		_ = unix.Close(fd)
	}
	e.fds = nil
	if e.wd < 0 {
		return
	}
	entries := m.watches[e.wd]
	for i, x := range entries {
		if x == e {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) > 0 {
		m.watches[e.wd] = entries
	} else {
		delete(m.watches, e.wd)
		_, _ = unix.InotifyRmWatch(m.inotify, uint32(e.wd))
	}
	e.wd = -1
}

func (m *PollMonitor) rearmEntry(e *pollEntry) error {
	if e.reg.Kind == KindRead {
		return m.poller.RearmRead(e.fds[0])
	}
	return m.poller.RearmWrite(e.fds[0])
}

func (m *PollMonitor) closeState() error {
	var (
		err     error
		entries []*pollEntry
	)
	for _, p := range m.fds {
		entries = append(entries, p.e)
	}
	for _, watched := range m.watches {
		entries = append(entries, watched...)
	}
	for _, e := range entries {
		m.release(e)
	}
	if m.inotify >= 0 {
		err = multierr.Append(err, os.NewSyscallError("close", unix.Close(m.inotify)))
		m.inotify = -1
	}
	return err
}

type notice struct {
	reg *Registration
	raw uint64
}

// dispatch runs on the poll goroutine for every event reported by epoll.
func (m *PollMonitor) dispatch(ev netpoll.Event) error {
	m.mu.Lock()
	if ev.Fd == m.inotify {
		notices, err := m.readInotify()
		m.mu.Unlock()
		for _, n := range notices {
			n.reg.Notify(n.raw)
		}
		return err
	}
	p := m.fds[ev.Fd]
	m.mu.Unlock()
	if p == nil {
		return nil
	}

	r := p.e.reg
	switch r.Kind {
	case KindRead:
		n, err := unix.IoctlGetInt(ev.Fd, unix.TIOCINQ)
		if err != nil || n < 1 {
			n = 1
		}
		r.Notify(uint64(n))
	case KindWrite:
		r.Notify(1)
	case KindProcess:
		r.Notify(uint64(ProcessExit))
	case KindMemoryPressure:
		if ev.IsPriority() {
			r.Notify(p.raw)
		}
	}
	return nil
}

// readInotify drains the inotify descriptor, m.mu is held.
func (m *PollMonitor) readInotify() ([]notice, error) {
	buf := bytebuffer.GetLen(inotifyBufferSize)
	defer bytebuffer.Put(buf)

	n, err := unix.Read(m.inotify, buf.B)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return nil, nil
		}
		return nil, os.NewSyscallError("read", err)
	}

	var notices []notice
	for off := 0; off+unix.SizeofInotifyEvent <= n; {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf.B[off]))
		wd := int(raw.Wd)
		for _, e := range m.watches[wd] {
			if v := e.translate(raw.Mask); v != 0 {
				notices = append(notices, notice{e.reg, uint64(v)})
			}
		}
		if raw.Mask&unix.IN_IGNORED != 0 {
			for _, e := range m.watches[wd] {
				e.wd = -1
			}
			delete(m.watches, wd)
		}
		off += unix.SizeofInotifyEvent + int(raw.Len)
	}
	return notices, nil
}

// translate turns inotify flags into file system events, completing them
// with what changed in the file status since the previous event.
func (e *pollEntry) translate(mask uint32) FileSystemEvent {
	var ev FileSystemEvent
	if mask&unix.IN_MODIFY != 0 {
		ev |= FileSystemWrite
	}
	if mask&unix.IN_ATTRIB != 0 {
		ev |= FileSystemAttrib
	}
	if mask&unix.IN_MOVE_SELF != 0 {
		ev |= FileSystemRename
	}
	if mask&unix.IN_DELETE_SELF != 0 {
		ev |= FileSystemDelete
	}
	if mask&unix.IN_UNMOUNT != 0 {
		ev |= FileSystemRevoke
	}
	if len(e.fds) == 0 {
		return ev
	}
	var st unix.Stat_t
	if unix.Fstat(e.fds[0], &st) == nil {
		if st.Size > e.size {
			ev |= FileSystemExtend
		}
		if nlink := uint64(st.Nlink); nlink != e.nlink {
			ev |= FileSystemLink
			if nlink == 0 {
				ev |= FileSystemDelete
			}
		}
		e.size, e.nlink = st.Size, uint64(st.Nlink)
	}
	return ev
}
