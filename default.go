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
	"sync"

	"github.com/panjf2000/evsource/internal/timer"
	"github.com/panjf2000/evsource/pkg/logging"
)

// Process-wide collaborators, created on first use and released by Shutdown.
var (
	defaultMu      sync.Mutex
	defaultQueue   *ConcurrentQueue
	defaultMonitor Monitor
	defaultTimers  *timer.Queue
)

// DefaultQueue returns the process-wide concurrent queue.
func DefaultQueue() Queue {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultQueue == nil {
		defaultQueue = NewConcurrentQueue(0, QoSDefault)
	}
	return defaultQueue
}

// DefaultMonitor returns the process-wide poll monitor. When the platform
// offers no poller, the returned monitor fails every registration.
func DefaultMonitor() Monitor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMonitor == nil {
		m, err := NewPollMonitor()
		if err != nil {
			logging.Errorf("failed to open the default monitor: %v", err)
			defaultMonitor = unsupportedMonitor{err}
		} else {
			defaultMonitor = m
		}
	}
	return defaultMonitor
}

func defaultTimerQueue() *timer.Queue {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultTimers == nil {
		defaultTimers = timer.NewQueue()
	}
	return defaultTimers
}

// Shutdown releases the process-wide queue, monitor and timers. Sources
// created before stop receiving events, later calls create new defaults.
func Shutdown() {
	defaultMu.Lock()
	q, m, t := defaultQueue, defaultMonitor, defaultTimers
	defaultQueue, defaultMonitor, defaultTimers = nil, nil, nil
	defaultMu.Unlock()

	if t != nil {
		t.Close()
	}
	if pm, ok := m.(*PollMonitor); ok {
		if err := pm.Close(); err != nil {
			logging.Errorf("failed to close the default monitor: %v", err)
		}
	}
	if q != nil {
		q.Release()
	}
}
