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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panjf2000/evsource/internal/timer"
)

func TestTimerOneshot(t *testing.T) {
	src, err := NewTimer(0, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	fired := make(chan time.Time, 4)
	var data atomic.Uint64
	src.SetEventHandler(func() {
		data.Store(uint64(src.Data()))
		fired <- time.Now()
	})

	start := time.Now()
	src.ScheduleOneshot(Now().Add(100*time.Millisecond), 0)
	src.Activate()

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 100*time.Millisecond, "fired before its deadline")
		assert.EqualValues(t, 1, data.Load())
	case <-time.After(waitTimeout):
		t.Fatal("timer did not fire")
	}
	select {
	case <-fired:
		t.Fatal("oneshot timer fired twice")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTimerRepeatingUntilCancel(t *testing.T) {
	src, err := NewTimer(TimerStrict, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	var expirations atomic.Uint64
	src.SetEventHandler(func() { expirations.Add(uint64(src.Data())) })
	done := make(chan struct{})
	src.SetCancelHandler(func() { close(done) })

	src.ScheduleRepeating(Now(), 50*time.Millisecond, 0)
	src.Activate()
	time.Sleep(170 * time.Millisecond)
	assert.GreaterOrEqual(t, expirations.Load(), uint64(3))

	src.Cancel()
	waitFor(t, done, "cancel handler")
	seen := expirations.Load()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, seen, expirations.Load(), "timer fired after cancellation")
}

func TestTimerScheduledBeforeActivation(t *testing.T) {
	src, err := NewTimer(0, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	fired := make(chan struct{}, 4)
	src.SetEventHandler(func() { fired <- struct{}{} })

	src.ScheduleOneshot(Now().Add(10*time.Millisecond), 0)
	select {
	case <-fired:
		t.Fatal("timer fired before activation")
	case <-time.After(60 * time.Millisecond):
	}
	src.Activate()
	waitFor(t, fired, "overdue timer")
}

func TestTimerReschedule(t *testing.T) {
	src, err := NewTimer(0, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	fired := make(chan struct{}, 4)
	src.SetEventHandler(func() { fired <- struct{}{} })

	src.ScheduleOneshot(Now().Add(time.Hour), time.Minute)
	src.Activate()
	src.ScheduleOneshot(Now().Add(20*time.Millisecond), 5*time.Millisecond)
	waitFor(t, fired, "rescheduled timer")
}

func TestTimerRescheduleFromHandlerOnSaturatedQueue(t *testing.T) {
	q := NewConcurrentQueue(1, QoSDefault)
	defer q.Release()

	a, err := NewTimer(0, WithQueue(q))
	require.NoError(t, err)
	b, err := NewTimer(0, WithQueue(q))
	require.NoError(t, err)

	var aFired atomic.Int32
	aDone := make(chan struct{})
	a.SetEventHandler(func() {
		if aFired.Add(1) == 1 {
			time.Sleep(100 * time.Millisecond)
			a.ScheduleOneshot(Now().Add(20*time.Millisecond), 0)
			return
		}
		close(aDone)
	})
	bDone := make(chan struct{})
	b.SetEventHandler(func() { close(bDone) })

	a.ScheduleOneshot(Now(), 0)
	b.ScheduleOneshot(Now().Add(30*time.Millisecond), 0)
	a.Activate()
	b.Activate()

	waitFor(t, bDone, "timer due while the only worker was busy")
	waitFor(t, aDone, "timer rescheduled from its own handler")
}

func TestTimerWallClock(t *testing.T) {
	src, err := NewTimer(0, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	fired := make(chan time.Time, 4)
	src.SetEventHandler(func() { fired <- time.Now() })

	deadline := WallNow().Add(30 * time.Millisecond)
	src.ScheduleOneshotWall(deadline, 0)
	src.Activate()
	select {
	case at := <-fired:
		assert.False(t, at.Round(0).Before(deadline.Time()), "fired before its wall deadline")
	case <-time.After(waitTimeout):
		t.Fatal("wall timer did not fire")
	}
}

func TestTimerStrictKeepsLeeway(t *testing.T) {
	strict, err := NewTimer(TimerStrict, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	assert.Equal(t, TimerStrict, strict.Flags())
	strict.ScheduleRepeating(Now().Add(time.Hour), time.Second, 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, strict.timer.leeway)
	strict.ScheduleRepeating(Now().Add(time.Hour), time.Second, 0)
	assert.Zero(t, strict.timer.leeway, "a strict timer gets no slack")
	strict.ScheduleOneshot(Now().Add(time.Hour), -time.Second)
	assert.Zero(t, strict.timer.leeway)

	loose, err := NewTimer(0, WithQueue(newTestQueue(t)))
	require.NoError(t, err)
	loose.ScheduleOneshot(Now().Add(time.Hour), 500*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, loose.timer.leeway)
	loose.ScheduleOneshot(Now().Add(time.Hour), 0)
	assert.Zero(t, loose.timer.leeway, "a oneshot timer gets no slack")
	loose.ScheduleRepeating(Now().Add(time.Hour), 200*time.Millisecond, 0)
	assert.Equal(t, 20*time.Millisecond, loose.timer.leeway)
	loose.ScheduleRepeating(Now().Add(time.Hour), time.Minute, time.Millisecond)
	assert.Equal(t, maxTimerSlack, loose.timer.leeway)
	loose.ScheduleRepeating(Now().Add(time.Hour), time.Second, 300*time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, loose.timer.leeway)
	loose.ScheduleRepeating(Now().Add(time.Hour), 0, 0)
	assert.Equal(t, timer.NoRepeat, loose.timer.interval, "a non-positive interval schedules once")
}

func TestIntervalSeconds(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, IntervalSeconds(1.5))
	assert.Equal(t, time.Duration(0), IntervalSeconds(1e-10))
	assert.Equal(t, 2*time.Second, IntervalSeconds(2))
}

func TestTime(t *testing.T) {
	now := Now()
	later := now.Add(time.Second)
	assert.True(t, now.Before(later))
	assert.Equal(t, time.Second, later.Sub(now))

	wall := WallTimeOf(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC), wall.Add(time.Second).Time())
}
