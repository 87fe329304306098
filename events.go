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
	"strconv"
	"strings"
)

// ProcessEvent is the set of process lifecycle transitions.
type ProcessEvent uint

const (
	// ProcessExit is reported when the process exits.
	ProcessExit ProcessEvent = 0x80000000
	// ProcessFork is reported when the process forks.
	ProcessFork ProcessEvent = 0x40000000
	// ProcessExec is reported when the process executes a new image.
	ProcessExec ProcessEvent = 0x20000000
	// ProcessSignal is reported when the process receives a signal.
	ProcessSignal ProcessEvent = 0x08000000
	// ProcessAll subscribes to every process transition.
	ProcessAll = ProcessExit | ProcessFork | ProcessExec | ProcessSignal
)

// FileSystemEvent is the set of mutations of a file system object.
type FileSystemEvent uint

const (
	// FileSystemDelete is reported when the object is unlinked.
	FileSystemDelete FileSystemEvent = 0x1
	// FileSystemWrite is reported when the object is written to.
	FileSystemWrite FileSystemEvent = 0x2
	// FileSystemExtend is reported when the object grows.
	FileSystemExtend FileSystemEvent = 0x4
	// FileSystemAttrib is reported when the metadata of the object changes.
	FileSystemAttrib FileSystemEvent = 0x8
	// FileSystemLink is reported when the link count of the object changes.
	FileSystemLink FileSystemEvent = 0x10
	// FileSystemRename is reported when the object is renamed.
	FileSystemRename FileSystemEvent = 0x20
	// FileSystemRevoke is reported when access to the object is revoked or its file system is unmounted.
	FileSystemRevoke FileSystemEvent = 0x40
	// FileSystemFunlock is reported when the object is unlocked.
	FileSystemFunlock FileSystemEvent = 0x100
	// FileSystemAll subscribes to every mutation but unlocking.
	FileSystemAll = FileSystemDelete | FileSystemWrite | FileSystemExtend | FileSystemAttrib |
		FileSystemLink | FileSystemRename | FileSystemRevoke
)

// MemoryPressureEvent is the set of system memory pressure levels.
type MemoryPressureEvent uint

const (
	// MemoryPressureNormal is reported when pressure returns to normal.
	MemoryPressureNormal MemoryPressureEvent = 0x1
	// MemoryPressureWarning is reported when the system is under moderate pressure.
	MemoryPressureWarning MemoryPressureEvent = 0x2
	// MemoryPressureCritical is reported when the system is under critical pressure.
	MemoryPressureCritical MemoryPressureEvent = 0x4
	// MemoryPressureAll subscribes to every level.
	MemoryPressureAll = MemoryPressureNormal | MemoryPressureWarning | MemoryPressureCritical
)

// MachSendEvent is the set of events on a kernel send right.
type MachSendEvent uint

// MachSendDead is reported when the receive right of the port is destroyed.
const MachSendDead MachSendEvent = 0x1

// TimerFlags tune the behavior of a timer source.
type TimerFlags uint

// TimerStrict makes the timer observe the leeway it is scheduled with.
// Repeating timers without it may have their leeway widened to coalesce
// with other timers.
const TimerStrict TimerFlags = 0x1

var (
	processNames = []namedBit{
		{uint(ProcessExit), "exit"},
		{uint(ProcessFork), "fork"},
		{uint(ProcessExec), "exec"},
		{uint(ProcessSignal), "signal"},
	}
	fileSystemNames = []namedBit{
		{uint(FileSystemDelete), "delete"},
		{uint(FileSystemWrite), "write"},
		{uint(FileSystemExtend), "extend"},
		{uint(FileSystemAttrib), "attrib"},
		{uint(FileSystemLink), "link"},
		{uint(FileSystemRename), "rename"},
		{uint(FileSystemRevoke), "revoke"},
		{uint(FileSystemFunlock), "funlock"},
	}
	memoryPressureNames = []namedBit{
		{uint(MemoryPressureNormal), "normal"},
		{uint(MemoryPressureWarning), "warning"},
		{uint(MemoryPressureCritical), "critical"},
	}
	machSendNames  = []namedBit{{uint(MachSendDead), "dead"}}
	timerFlagNames = []namedBit{{uint(TimerStrict), "strict"}}
)

// Contains reports whether every event of other is in e.
func (e ProcessEvent) Contains(other ProcessEvent) bool { return e&other == other }

// String returns the names of the events, joined by "|".
func (e ProcessEvent) String() string { return formatBits(uint(e), processNames) }

// Contains reports whether every event of other is in e.
func (e FileSystemEvent) Contains(other FileSystemEvent) bool { return e&other == other }

// String returns the names of the events, joined by "|".
func (e FileSystemEvent) String() string { return formatBits(uint(e), fileSystemNames) }

// Contains reports whether every level of other is in e.
func (e MemoryPressureEvent) Contains(other MemoryPressureEvent) bool { return e&other == other }

// String returns the names of the levels, joined by "|".
func (e MemoryPressureEvent) String() string { return formatBits(uint(e), memoryPressureNames) }

// Contains reports whether every event of other is in e.
func (e MachSendEvent) Contains(other MachSendEvent) bool { return e&other == other }

// String returns the names of the events, joined by "|".
func (e MachSendEvent) String() string { return formatBits(uint(e), machSendNames) }

// Contains reports whether every flag of other is in f.
func (f TimerFlags) Contains(other TimerFlags) bool { return f&other == other }

// String returns the names of the flags, joined by "|".
func (f TimerFlags) String() string { return formatBits(uint(f), timerFlagNames) }

func formatBits(v uint, names []namedBit) string {
	if v == 0 {
		return "none"
	}
	var sb strings.Builder
	for _, nb := range names {
		if v&nb.bit == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(nb.name)
		v &^= nb.bit
	}
	if v != 0 {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(uint64(v), 16))
	}
	return sb.String()
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
