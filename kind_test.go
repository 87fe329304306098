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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/panjf2000/evsource/pkg/errors"
)

func TestKindNames(t *testing.T) {
	assert.Equal(t, "timer", KindTimer.String())
	assert.Equal(t, "filesystem-object", KindFileSystemObject.String())
	assert.Equal(t, "data-or", KindUserDataOr.String())
	assert.Equal(t, "unknown", numKinds.String())
}

func TestValidateMask(t *testing.T) {
	assert.NoError(t, KindSignal.ValidateMask(0))
	assert.NoError(t, KindRead.ValidateMask(0xff), "kinds without a mask ignore it")
	assert.NoError(t, KindTimer.ValidateMask(0))
	assert.NoError(t, KindTimer.ValidateMask(uint(TimerStrict)))
	assert.ErrorIs(t, KindTimer.ValidateMask(0x2), errors.ErrInvalidMask)
	assert.ErrorIs(t, KindProcess.ValidateMask(0), errors.ErrEmptyMask)
	assert.ErrorIs(t, KindProcess.ValidateMask(uint(ProcessExit)|0x1), errors.ErrInvalidMask)
	assert.NoError(t, KindFileSystemObject.ValidateMask(uint(FileSystemAll|FileSystemFunlock)))
	assert.ErrorIs(t, KindFileSystemObject.ValidateMask(0x80), errors.ErrInvalidMask)
	assert.ErrorIs(t, KindMemoryPressure.ValidateMask(0x8), errors.ErrInvalidMask)
	assert.ErrorIs(t, KindMachSend.ValidateMask(0x2), errors.ErrInvalidMask)
	assert.ErrorIs(t, numKinds.ValidateMask(0), errors.ErrInvalidMask)
	assert.ErrorIs(t, Kind(200).ValidateMask(0x1), errors.ErrInvalidMask)
}

func TestMergeRules(t *testing.T) {
	assert.EqualValues(t, 6, KindUserDataAdd.merge(KindUserDataAdd.merge(1, 2), 3))
	assert.EqualValues(t, uint64(math.MaxUint64), KindUserDataAdd.merge(math.MaxUint64-1, 5), "addition saturates")
	assert.EqualValues(t, 0x5, KindUserDataOr.merge(0x1, 0x4))
	assert.EqualValues(t, 0x22, KindFileSystemObject.merge(0x2, 0x20))
	assert.EqualValues(t, 10, KindRead.merge(10, 4))
	assert.EqualValues(t, 10, KindWrite.merge(4, 10))
	assert.EqualValues(t, 5, KindTimer.merge(2, 3))
	assert.EqualValues(t, 2, KindSignal.merge(1, 1))

	for _, k := range []Kind{KindUserDataAdd, KindUserDataOr, KindRead, KindProcess} {
		a, b, c := uint64(3), uint64(12), uint64(7)
		assert.Equal(t, k.merge(k.merge(a, b), c), k.merge(a, k.merge(b, c)), "%v merge is associative", k)
		assert.Equal(t, k.merge(a, b), k.merge(b, a), "%v merge is commutative", k)
	}
}

func TestAcceptFiltersByMask(t *testing.T) {
	mask := uint(FileSystemWrite | FileSystemRename)
	assert.EqualValues(t, FileSystemWrite, KindFileSystemObject.accept(uint64(FileSystemWrite|FileSystemDelete), mask))
	assert.Zero(t, KindFileSystemObject.accept(uint64(FileSystemDelete), mask))
	assert.EqualValues(t, 9, KindUserDataAdd.accept(9, 0), "data kinds are not filtered")
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "write|rename", (FileSystemWrite | FileSystemRename).String())
	assert.Equal(t, "none", FileSystemEvent(0).String())
	assert.Equal(t, "exit|0x1", (ProcessExit | 0x1).String())
	assert.Equal(t, "warning|critical", (MemoryPressureWarning | MemoryPressureCritical).String())
	assert.Equal(t, "dead", MachSendDead.String())
	assert.Equal(t, "strict", TimerStrict.String())
	assert.Equal(t, "exit|fork", KindProcess.Describe(uint(ProcessExit|ProcessFork)))
	assert.Equal(t, "42", KindRead.Describe(42))
}

func TestEventSets(t *testing.T) {
	assert.False(t, FileSystemAll.Contains(FileSystemFunlock))
	assert.True(t, FileSystemAll.Contains(FileSystemDelete|FileSystemRevoke))
	assert.EqualValues(t, 0x7f, FileSystemAll)
	assert.EqualValues(t, 0xe8000000, ProcessAll)
	assert.EqualValues(t, 0x7, MemoryPressureAll)
	assert.True(t, ProcessAll.Contains(ProcessSignal))
	assert.Equal(t, uint(ProcessAll), KindProcess.DefinedBits())
}
