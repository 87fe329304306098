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
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panjf2000/evsource/pkg/errors"
)

func TestKnoteMaskSupported(t *testing.T) {
	assert.NoError(t, knoteMaskSupported(KindProcess, uint(ProcessExit|ProcessFork|ProcessExec)))
	assert.NoError(t, knoteMaskSupported(KindFileSystemObject, uint(FileSystemAll)))
	assert.NoError(t, knoteMaskSupported(KindRead, 0))

	if runtime.GOOS == "darwin" {
		assert.NoError(t, knoteMaskSupported(KindProcess, uint(ProcessSignal)))
		assert.NoError(t, knoteMaskSupported(KindFileSystemObject, uint(FileSystemFunlock)))
		return
	}
	assert.ErrorIs(t, knoteMaskSupported(KindProcess, uint(ProcessExit|ProcessSignal)), errors.ErrUnsupportedEvent)
	assert.ErrorIs(t, knoteMaskSupported(KindFileSystemObject, uint(FileSystemWrite|FileSystemFunlock)), errors.ErrUnsupportedEvent)
}

func TestPollMonitorRejectsMissingNotes(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("every note exists on darwin")
	}
	m, err := NewPollMonitor()
	require.NoError(t, err)
	defer func() { assert.NoError(t, m.Close()) }()

	r := &Registration{Kind: KindProcess, Handle: uint(os.Getpid()), Mask: uint(ProcessSignal), Notify: func(uint64) {}}
	assert.ErrorIs(t, m.Register(r), errors.ErrUnsupportedEvent)
	assert.Nil(t, r.Token)
}
