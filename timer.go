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
	"time"

	"github.com/panjf2000/evsource/internal/timer"
)

// Time is an instant on the monotonic clock, deadlines expressed with it
// are not affected by changes of the wall clock.
type Time struct {
	t time.Time
}

// Now returns the current monotonic instant.
func Now() Time { return Time{time.Now()} }

// Add returns t+d.
func (t Time) Add(d time.Duration) Time { return Time{t.t.Add(d)} }

// Sub returns t-u.
func (t Time) Sub(u Time) time.Duration { return t.t.Sub(u.t) }

// Before reports whether t is before u.
func (t Time) Before(u Time) bool { return t.t.Before(u.t) }

// WallTime is an instant on the wall clock, deadlines expressed with it
// follow adjustments of the system time.
type WallTime struct {
	t time.Time
}

// WallNow returns the current wall clock instant.
func WallNow() WallTime { return WallTime{time.Now().Round(0)} }

// WallTimeOf converts t to a wall clock instant.
func WallTimeOf(t time.Time) WallTime { return WallTime{t.Round(0)} }

// Add returns w+d.
func (w WallTime) Add(d time.Duration) WallTime { return WallTime{w.t.Add(d)} }

// Time returns w as a time.Time without monotonic reading.
func (w WallTime) Time() time.Time { return w.t }

// IntervalSeconds converts a number of seconds to a duration, truncating
// below the nanosecond.
func IntervalSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// maxTimerSlack bounds the leeway added to timers that are not strict.
const maxTimerSlack = 100 * time.Millisecond

// withSlack widens the leeway of a repeating timer to a tenth of its
// interval, capped at maxTimerSlack, so that it coalesces with other timers.
func withSlack(interval, leeway time.Duration) time.Duration {
	if interval == timer.NoRepeat {
		return leeway
	}
	slack := interval / 10
	if slack > maxTimerSlack {
		slack = maxTimerSlack
	}
	if leeway < slack {
		return slack
	}
	return leeway
}

type timerState struct {
	entry    *timer.Entry
	set      bool
	clock    timer.Clock
	deadline time.Time
	interval time.Duration
	leeway   time.Duration
}

// TimerSource fires once or periodically, its data is the number of
// expirations since the last handler invocation.
type TimerSource struct {
	*Source
}

// Flags returns the flags the timer was created with.
func (s *TimerSource) Flags() TimerFlags { return TimerFlags(s.mask) }

// Mask is Flags.
func (s *TimerSource) Mask() TimerFlags { return s.Flags() }

// ScheduleOneshot fires the timer once at deadline, up to leeway later.
func (s *TimerSource) ScheduleOneshot(deadline Time, leeway time.Duration) {
	s.setTimer(timer.Monotonic, deadline.t, timer.NoRepeat, leeway)
}

// ScheduleOneshotWall is ScheduleOneshot with a wall clock deadline.
func (s *TimerSource) ScheduleOneshotWall(deadline WallTime, leeway time.Duration) {
	s.setTimer(timer.Wall, deadline.t, timer.NoRepeat, leeway)
}

// ScheduleRepeating fires the timer at deadline and every interval after it,
// each expiration up to leeway late. An interval that is not positive
// schedules a single expiration.
func (s *TimerSource) ScheduleRepeating(deadline Time, interval, leeway time.Duration) {
	s.setTimer(timer.Monotonic, deadline.t, interval, leeway)
}

// ScheduleRepeatingWall is ScheduleRepeating with a wall clock deadline.
func (s *TimerSource) ScheduleRepeatingWall(deadline WallTime, interval, leeway time.Duration) {
	s.setTimer(timer.Wall, deadline.t, interval, leeway)
}

// setTimer replaces the timer parameters, an activated timer is re-armed
// right away and a created one is armed by Activate.
func (s *Source) setTimer(clock timer.Clock, deadline time.Time, interval, leeway time.Duration) {
	if interval <= 0 {
		interval = timer.NoRepeat
	}
	if leeway < 0 {
		leeway = 0
	}
	if !TimerFlags(s.mask).Contains(TimerStrict) {
		leeway = withSlack(interval, leeway)
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	s.mu.Lock()
	t := s.timer
	t.set = true
	t.clock, t.deadline, t.interval, t.leeway = clock, deadline, interval, leeway
	arm := s.loadState() == stateActivated && !s.registering
	s.mu.Unlock()

	if arm {
		s.timers.Schedule(t.entry, clock, deadline, interval, leeway)
	}
}

// armTimer arms the parameters set before activation.
func (s *Source) armTimer() {
	if s.timer == nil {
		return
	}
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	s.mu.Lock()
	t := *s.timer
	arm := t.set && s.loadState() == stateActivated
	s.mu.Unlock()

	if arm {
		s.timers.Schedule(t.entry, t.clock, t.deadline, t.interval, t.leeway)
	}
}

func (s *Source) disarmTimer() {
	if s.timer == nil {
		return
	}
	s.timerMu.Lock()
	s.timers.Remove(s.timer.entry)
	s.timerMu.Unlock()
}
