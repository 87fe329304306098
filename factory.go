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
	"github.com/panjf2000/evsource/internal/timer"
	"github.com/panjf2000/evsource/pkg/errors"
	"github.com/panjf2000/evsource/pkg/logging"
)

// maxSignal is the highest signal number a signal source accepts.
const maxSignal = 64

func newSource(kind Kind, handle, mask uint, options []Option) (*Source, error) {
	if err := kind.ValidateMask(mask); err != nil {
		return nil, err
	}
	opts := loadOptions(options...)

	s := &Source{
		kind:    kind,
		handle:  handle,
		mask:    mask,
		label:   opts.Label,
		queue:   opts.Queue,
		monitor: opts.Monitor,
		logger:  opts.Logger,
	}
	if s.queue == nil {
		s.queue = DefaultQueue()
	}
	if s.logger == nil {
		s.logger = logging.GetDefaultLogger()
	}
	switch kind {
	case KindTimer:
		s.timers = defaultTimerQueue()
		s.timer = &timerState{entry: timer.NewEntry(func(n uint64) { s.notify(n) })}
	case KindUserDataAdd, KindUserDataOr:
	default:
		if s.monitor == nil {
			s.monitor = DefaultMonitor()
		}
	}
	return s, nil
}

// NewTimer creates a timer source, flags may only carry TimerStrict.
// The timer does not fire until it is scheduled and activated.
func NewTimer(flags TimerFlags, options ...Option) (*TimerSource, error) {
	s, err := newSource(KindTimer, 0, uint(flags), options)
	if err != nil {
		return nil, err
	}
	return &TimerSource{s}, nil
}

// SignalSource counts the deliveries of a signal to the process.
type SignalSource struct {
	*Source
}

// NewSignal creates a source counting the deliveries of signo, which must be in [1, 64].
func NewSignal(signo int, options ...Option) (*SignalSource, error) {
	if signo < 1 || signo > maxSignal {
		return nil, errors.ErrInvalidSignal
	}
	s, err := newSource(KindSignal, uint(signo), 0, options)
	if err != nil {
		return nil, err
	}
	return &SignalSource{s}, nil
}

// Signal returns the signal number the source counts.
func (s *SignalSource) Signal() int { return int(s.handle) }

// ReadSource reports that a descriptor is readable, its data estimates the
// number of bytes available.
type ReadSource struct {
	*Source
}

// NewRead creates a source watching fd for readability.
func NewRead(fd int, options ...Option) (*ReadSource, error) {
	s, err := newSource(KindRead, uint(fd), 0, options)
	if err != nil {
		return nil, err
	}
	return &ReadSource{s}, nil
}

// Fd returns the watched descriptor.
func (s *ReadSource) Fd() int { return int(s.handle) }

// WriteSource reports that a descriptor is writable, its data estimates the
// room available in the buffer when the platform tells it.
type WriteSource struct {
	*Source
}

// NewWrite creates a source watching fd for writability.
func NewWrite(fd int, options ...Option) (*WriteSource, error) {
	s, err := newSource(KindWrite, uint(fd), 0, options)
	if err != nil {
		return nil, err
	}
	return &WriteSource{s}, nil
}

// Fd returns the watched descriptor.
func (s *WriteSource) Fd() int { return int(s.handle) }

// ProcessSource reports lifecycle events of a process.
type ProcessSource struct {
	*Source
}

// NewProcess creates a source watching the process pid for the events in mask.
func NewProcess(pid int, mask ProcessEvent, options ...Option) (*ProcessSource, error) {
	s, err := newSource(KindProcess, uint(pid), uint(mask), options)
	if err != nil {
		return nil, err
	}
	return &ProcessSource{s}, nil
}

// Pid returns the watched process.
func (s *ProcessSource) Pid() int { return int(s.handle) }

// Mask returns the subscribed events.
func (s *ProcessSource) Mask() ProcessEvent { return ProcessEvent(s.mask) }

// Data returns the events seen by the current handler invocation.
func (s *ProcessSource) Data() ProcessEvent { return ProcessEvent(s.Source.Data()) }

// MachSendSource reports that the receiver of a send right went away.
type MachSendSource struct {
	*Source
}

// NewMachSend creates a source watching the send right port.
func NewMachSend(port uint32, mask MachSendEvent, options ...Option) (*MachSendSource, error) {
	s, err := newSource(KindMachSend, uint(port), uint(mask), options)
	if err != nil {
		return nil, err
	}
	return &MachSendSource{s}, nil
}

// Port returns the watched port.
func (s *MachSendSource) Port() uint32 { return uint32(s.handle) }

// Mask returns the subscribed events.
func (s *MachSendSource) Mask() MachSendEvent { return MachSendEvent(s.mask) }

// Data returns the events seen by the current handler invocation.
func (s *MachSendSource) Data() MachSendEvent { return MachSendEvent(s.Source.Data()) }

// MachReceiveSource reports messages pending on a receive right.
type MachReceiveSource struct {
	*Source
}

// NewMachReceive creates a source watching the receive right port.
func NewMachReceive(port uint32, options ...Option) (*MachReceiveSource, error) {
	s, err := newSource(KindMachReceive, uint(port), 0, options)
	if err != nil {
		return nil, err
	}
	return &MachReceiveSource{s}, nil
}

// Port returns the watched port.
func (s *MachReceiveSource) Port() uint32 { return uint32(s.handle) }

// MemoryPressureSource reports changes of the system memory pressure.
type MemoryPressureSource struct {
	*Source
}

// NewMemoryPressure creates a source for the pressure levels in mask.
func NewMemoryPressure(mask MemoryPressureEvent, options ...Option) (*MemoryPressureSource, error) {
	s, err := newSource(KindMemoryPressure, 0, uint(mask), options)
	if err != nil {
		return nil, err
	}
	return &MemoryPressureSource{s}, nil
}

// Mask returns the subscribed levels.
func (s *MemoryPressureSource) Mask() MemoryPressureEvent { return MemoryPressureEvent(s.mask) }

// Data returns the levels seen by the current handler invocation.
func (s *MemoryPressureSource) Data() MemoryPressureEvent {
	return MemoryPressureEvent(s.Source.Data())
}

// FileSystemSource reports mutations of the file behind a descriptor.
type FileSystemSource struct {
	*Source
}

// NewFileSystemObject creates a source watching the file open as fd for the events in mask.
func NewFileSystemObject(fd int, mask FileSystemEvent, options ...Option) (*FileSystemSource, error) {
	s, err := newSource(KindFileSystemObject, uint(fd), uint(mask), options)
	if err != nil {
		return nil, err
	}
	return &FileSystemSource{s}, nil
}

// Fd returns the watched descriptor.
func (s *FileSystemSource) Fd() int { return int(s.handle) }

// Mask returns the subscribed events.
func (s *FileSystemSource) Mask() FileSystemEvent { return FileSystemEvent(s.mask) }

// Data returns the events seen by the current handler invocation.
func (s *FileSystemSource) Data() FileSystemEvent { return FileSystemEvent(s.Source.Data()) }

// UserDataSource coalesces values merged by the application, by addition
// or by bitwise or depending on how it was created.
type UserDataSource struct {
	*Source
}

// NewUserDataAdd creates a source that sums the merged values.
func NewUserDataAdd(options ...Option) (*UserDataSource, error) {
	s, err := newSource(KindUserDataAdd, 0, 0, options)
	if err != nil {
		return nil, err
	}
	return &UserDataSource{s}, nil
}

// NewUserDataOr creates a source that ors the merged values.
func NewUserDataOr(options ...Option) (*UserDataSource, error) {
	s, err := newSource(KindUserDataOr, 0, 0, options)
	if err != nil {
		return nil, err
	}
	return &UserDataSource{s}, nil
}

// MergeData folds v into the pending data and schedules the event handler.
// Zero has no effect, values merged after Cancel are dropped.
func (s *UserDataSource) MergeData(v uint) {
	s.notify(uint64(v))
}
