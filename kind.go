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
	"math"

	"github.com/panjf2000/evsource/pkg/errors"
)

// Kind is the type tag of an event source, it decides what the handle means,
// which mask bits are defined and how pending data is merged.
type Kind uint8

const (
	// KindTimer fires on deadlines configured through TimerSource.
	KindTimer Kind = iota
	// KindSignal counts deliveries of a signal to the process.
	KindSignal
	// KindRead reports that a file descriptor has data to read.
	KindRead
	// KindWrite reports that a file descriptor has room to write.
	KindWrite
	// KindProcess reports lifecycle transitions of a process.
	KindProcess
	// KindMachSend reports that a kernel send right lost its receiver.
	KindMachSend
	// KindMachReceive reports messages pending on a kernel port.
	KindMachReceive
	// KindMemoryPressure reports changes of the system memory pressure.
	KindMemoryPressure
	// KindFileSystemObject reports mutations of a file system object.
	KindFileSystemObject
	// KindUserDataAdd coalesces application data by addition.
	KindUserDataAdd
	// KindUserDataOr coalesces application data by bitwise or.
	KindUserDataOr

	numKinds
)

type mergeRule uint8

const (
	mergeOr mergeRule = iota
	mergeAdd
	mergeMax
)

type namedBit struct {
	bit  uint
	name string
}

// codec is the per-kind interpretation of mask and data.
type codec struct {
	name string
	// bits are the mask bits the kind defines, zero when the mask is unused.
	bits uint
	// maskRequired rejects an empty mask at construction.
	maskRequired bool
	// filter restricts incoming data to the subscribed mask.
	filter bool
	merge  mergeRule
	names  []namedBit
}

var codecs = [numKinds]codec{
	KindTimer:            {name: "timer", bits: uint(TimerStrict), merge: mergeAdd, names: timerFlagNames},
	KindSignal:           {name: "signal", merge: mergeAdd},
	KindRead:             {name: "read", merge: mergeMax},
	KindWrite:            {name: "write", merge: mergeMax},
	KindProcess:          {name: "process", bits: uint(ProcessAll), maskRequired: true, filter: true, merge: mergeOr, names: processNames},
	KindMachSend:         {name: "mach-send", bits: uint(MachSendDead), maskRequired: true, filter: true, merge: mergeOr, names: machSendNames},
	KindMachReceive:      {name: "mach-receive", merge: mergeAdd},
	KindMemoryPressure:   {name: "memory-pressure", bits: uint(MemoryPressureAll), maskRequired: true, filter: true, merge: mergeOr, names: memoryPressureNames},
	KindFileSystemObject: {name: "filesystem-object", bits: uint(FileSystemAll | FileSystemFunlock), maskRequired: true, filter: true, merge: mergeOr, names: fileSystemNames},
	KindUserDataAdd:      {name: "data-add", merge: mergeAdd},
	KindUserDataOr:       {name: "data-or", merge: mergeOr},
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k >= numKinds {
		return "unknown"
	}
	return codecs[k].name
}

// DefinedBits returns the mask bits that are meaningful for the kind.
func (k Kind) DefinedBits() uint {
	if k >= numKinds {
		return 0
	}
	return codecs[k].bits
}

// ValidateMask checks a mask supplied at construction against the kind.
func (k Kind) ValidateMask(mask uint) error {
	if k >= numKinds {
		return errors.ErrInvalidMask
	}
	c := codecs[k]
	if c.bits == 0 {
		return nil
	}
	if mask&^c.bits != 0 {
		return errors.ErrInvalidMask
	}
	if c.maskRequired && mask == 0 {
		return errors.ErrEmptyMask
	}
	return nil
}

// Describe names the bits of raw as interpreted for the kind, kinds
// without named bits print the number itself.
func (k Kind) Describe(raw uint) string {
	if k >= numKinds || len(codecs[k].names) == 0 {
		return formatUint(raw)
	}
	return formatBits(raw, codecs[k].names)
}

// accept restricts raw to mask for kinds that filter their data, zero
// means the notification carries nothing the source subscribed to.
func (k Kind) accept(raw uint64, mask uint) uint64 {
	if codecs[k].filter {
		return raw & uint64(mask)
	}
	return raw
}

// merge folds raw into old, all rules are commutative and associative.
func (k Kind) merge(old, raw uint64) uint64 {
	switch codecs[k].merge {
	case mergeAdd:
		if sum := old + raw; sum >= old {
			return sum
		}
		return math.MaxUint64
	case mergeMax:
		if raw > old {
			return raw
		}
		return old
	default:
		return old | raw
	}
}
