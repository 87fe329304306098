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
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panjf2000/evsource/pkg/errors"
)

func newTestMonitor(t *testing.T) *PollMonitor {
	m, err := NewPollMonitor()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, m.Close()) })
	return m
}

func TestPollMonitorPipeRead(t *testing.T) {
	m := newTestMonitor(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	src, err := NewRead(int(r.Fd()), WithQueue(newTestQueue(t)), WithMonitor(m))
	require.NoError(t, err)
	got := make(chan uint, 4)
	buf := make([]byte, 64)
	src.SetEventHandler(func() {
		got <- src.Data()
		_, _ = r.Read(buf[:src.Data()])
	})
	done := make(chan struct{})
	src.SetCancelHandler(func() { close(done) })
	src.Activate()

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	select {
	case n := <-got:
		assert.EqualValues(t, 5, n, "data is the number of bytes available")
	case <-time.After(waitTimeout):
		t.Fatal("pipe never became readable")
	}

	_, err = w.Write([]byte("again"))
	require.NoError(t, err)
	select {
	case n := <-got:
		assert.EqualValues(t, 5, n, "the descriptor is re-armed after each handler")
	case <-time.After(waitTimeout):
		t.Fatal("pipe was not re-armed")
	}

	src.Cancel()
	waitFor(t, done, "cancel handler")
}

func TestPollMonitorPipeWrite(t *testing.T) {
	m := newTestMonitor(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	src, err := NewWrite(int(w.Fd()), WithQueue(newTestQueue(t)), WithMonitor(m))
	require.NoError(t, err)
	hit := make(chan struct{}, 1)
	src.SetEventHandler(func() {
		select {
		case hit <- struct{}{}:
		default:
		}
		src.Cancel()
	})
	done := make(chan struct{})
	src.SetCancelHandler(func() { close(done) })
	src.Activate()
	waitFor(t, hit, "writable pipe")
	waitFor(t, done, "cancel handler")
}

func TestPollMonitorFileWrite(t *testing.T) {
	m := newTestMonitor(t)
	path := filepath.Join(t.TempDir(), "watched")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	src, err := NewFileSystemObject(int(f.Fd()), FileSystemWrite|FileSystemExtend|FileSystemDelete,
		WithQueue(newTestQueue(t)), WithMonitor(m))
	require.NoError(t, err)
	got := make(chan FileSystemEvent, 8)
	src.SetEventHandler(func() { got <- src.Data() })
	registered := make(chan struct{})
	src.SetRegistrationHandler(func() { close(registered) })
	src.Activate()
	waitFor(t, registered, "registration handler")

	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0o644))
	var seen FileSystemEvent
	deadline := time.After(waitTimeout)
	for !seen.Contains(FileSystemWrite | FileSystemExtend) {
		select {
		case ev := <-got:
			seen |= ev
		case <-deadline:
			t.Fatalf("got %v, want write|extend", seen)
		}
	}
	assert.False(t, seen.Contains(FileSystemDelete))

	require.NoError(t, os.Remove(path))
	for !seen.Contains(FileSystemDelete) {
		select {
		case ev := <-got:
			seen |= ev
		case <-deadline:
			t.Fatalf("got %v, want delete", seen)
		}
	}
}

func TestPollMonitorSignal(t *testing.T) {
	m := newTestMonitor(t)
	src, err := NewSignal(int(syscall.SIGUSR1), WithQueue(newTestQueue(t)), WithMonitor(m))
	require.NoError(t, err)
	got := make(chan uint, 4)
	src.SetEventHandler(func() { got <- src.Data() })
	registered := make(chan struct{})
	src.SetRegistrationHandler(func() { close(registered) })
	src.Activate()
	waitFor(t, registered, "registration handler")

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	select {
	case n := <-got:
		assert.GreaterOrEqual(t, n, uint(1))
	case <-time.After(waitTimeout):
		t.Fatal("signal was not delivered")
	}

	done := make(chan struct{})
	src.SetCancelHandler(func() { close(done) })
	src.Cancel()
	waitFor(t, done, "cancel handler")
}

func TestPollMonitorSignalCancelFromHandlerOnSaturatedQueue(t *testing.T) {
	m := newTestMonitor(t)
	q := NewConcurrentQueue(1, QoSDefault)
	defer q.Release()

	first, err := NewSignal(int(syscall.SIGUSR2), WithQueue(q), WithMonitor(m))
	require.NoError(t, err)
	second, err := NewSignal(int(syscall.SIGUSR2), WithQueue(q), WithMonitor(m))
	require.NoError(t, err)

	cancelled := make(chan struct{})
	first.SetCancelHandler(func() { close(cancelled) })
	first.SetEventHandler(func() {
		// second is waiting for this worker by now.
		time.Sleep(50 * time.Millisecond)
		first.Cancel()
	})
	delivered := make(chan struct{})
	second.SetEventHandler(signalOnce(delivered))

	firstReady, secondReady := make(chan struct{}), make(chan struct{})
	first.SetRegistrationHandler(func() { close(firstReady) })
	second.SetRegistrationHandler(func() { close(secondReady) })
	first.Activate()
	waitFor(t, firstReady, "first registration handler")
	second.Activate()
	waitFor(t, secondReady, "second registration handler")

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR2))
	waitFor(t, delivered, "signal on the second source")
	waitFor(t, cancelled, "cancel handler of the first source")

	done := make(chan struct{})
	second.SetCancelHandler(func() { close(done) })
	second.Cancel()
	waitFor(t, done, "cancel handler of the second source")
}

func TestPollMonitorProcessExit(t *testing.T) {
	m := newTestMonitor(t)
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	require.NoError(t, cmd.Start())

	src, err := NewProcess(cmd.Process.Pid, ProcessExit, WithQueue(newTestQueue(t)), WithMonitor(m))
	require.NoError(t, err)
	got := make(chan ProcessEvent, 1)
	src.SetEventHandler(func() { got <- src.Data() })
	src.Activate()

	select {
	case ev := <-got:
		assert.Equal(t, ProcessExit, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("process exit was not reported")
	}
	_ = cmd.Wait()
}

func TestPollMonitorRejections(t *testing.T) {
	m := newTestMonitor(t)

	fork, err := NewProcess(os.Getpid(), ProcessFork, WithQueue(newTestQueue(t)), WithMonitor(m))
	require.NoError(t, err)
	done := make(chan struct{})
	fork.SetCancelHandler(func() { close(done) })
	fork.Activate()
	waitFor(t, done, "cancel handler of an unsupported process event")

	assert.ErrorIs(t, m.Register(&Registration{Kind: KindMachReceive, Notify: func(uint64) {}}), errors.ErrUnsupportedKind)
	assert.ErrorIs(t, m.Register(&Registration{Kind: KindMemoryPressure, Mask: uint(MemoryPressureNormal), Notify: func(uint64) {}}),
		errors.ErrUnsupportedEvent)
	assert.Error(t, m.Register(&Registration{Kind: KindRead, Handle: uint(1 << 30), Notify: func(uint64) {}}), "bad descriptor")
}

func TestPollMonitorClose(t *testing.T) {
	m, err := NewPollMonitor()
	require.NoError(t, err)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	reg := &Registration{Kind: KindRead, Handle: uint(r.Fd()), Notify: func(uint64) {}}
	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Register(&Registration{Kind: KindRead, Handle: uint(r.Fd()), Notify: func(uint64) {}}), errors.ErrMonitorClosed)

	acked := make(chan struct{})
	m.Unregister(reg, func() { close(acked) })
	waitFor(t, acked, "ack after close")
}
