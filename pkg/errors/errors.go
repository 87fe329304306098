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

// Package errors defines common errors for evsource.
package errors

import "errors"

var (
	// ErrEmptyMask occurs when a source kind that requires an event mask is created with an empty one.
	ErrEmptyMask = errors.New("evsource: event mask must not be empty for this kind of source")
	// ErrInvalidMask occurs when an event mask carries bits that the source kind does not define.
	ErrInvalidMask = errors.New("evsource: event mask contains bits undefined for this kind of source")
	// ErrInvalidSignal occurs when a signal source is created with a signal number out of range.
	ErrInvalidSignal = errors.New("evsource: signal number is out of range")
	// ErrUnsupportedKind occurs when the monitor has no way to watch the given kind of source.
	ErrUnsupportedKind = errors.New("evsource: kind of source is not supported by the monitor")
	// ErrUnsupportedEvent occurs when the monitor can watch the kind of source but not the requested events.
	ErrUnsupportedEvent = errors.New("evsource: requested events are not supported on this platform")
	// ErrUnsupportedPlatform occurs when there is no kernel event facility for the current platform.
	ErrUnsupportedPlatform = errors.New("evsource: kernel event notification is not supported on this platform")
	// ErrMonitorClosed occurs when trying to register with a monitor that has been closed.
	ErrMonitorClosed = errors.New("evsource: monitor is closed")
	// ErrAlreadyRegistered occurs when the same handle and kind are registered twice with a monitor.
	ErrAlreadyRegistered = errors.New("evsource: handle is already registered with the monitor")
	// ErrQueueClosed occurs when submitting work to a queue that has been closed.
	ErrQueueClosed = errors.New("evsource: queue is closed")
	// ErrNilWorkItem occurs when trying to submit a nil work item.
	ErrNilWorkItem = errors.New("evsource: nil work item is not allowed")
)
