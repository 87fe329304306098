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

//go:build !linux && !freebsd && !dragonfly && !darwin
// +build !linux,!freebsd,!dragonfly,!darwin

package evsource

import "github.com/panjf2000/evsource/pkg/errors"

// PollMonitor is unavailable on this platform.
type PollMonitor struct{}

// NewPollMonitor always fails with errors.ErrUnsupportedPlatform.
func NewPollMonitor() (*PollMonitor, error) {
	return nil, errors.ErrUnsupportedPlatform
}

// Register implements Monitor.
func (m *PollMonitor) Register(*Registration) error {
	return errors.ErrUnsupportedPlatform
}

// Unregister implements Monitor.
func (m *PollMonitor) Unregister(_ *Registration, ack func()) {
	ack()
}

// Close implements io.Closer.
func (m *PollMonitor) Close() error {
	return nil
}
