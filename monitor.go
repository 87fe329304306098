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

// Registration is the subscription of one source with a Monitor.
//
// Kind, Handle, Mask and Notify are filled in by the source before Register.
// The monitor calls Notify with the raw value of each event the kernel
// reports, from any goroutine, until the registration is unregistered.
type Registration struct {
	Kind   Kind
	Handle uint
	Mask   uint
	Notify func(raw uint64)

	// Rearm is optionally set by the monitor during Register. The source
	// calls it after every handler invocation that drained data, monitors
	// use it to re-enable registrations that report once per arming.
	Rearm func()

	// Token is owned by the monitor.
	Token interface{}
}

// Monitor is the kernel notification collaborator of event sources.
type Monitor interface {
	// Register starts watching r, an error means nothing was registered.
	Register(r *Registration) error
	// Unregister stops watching r and calls ack exactly once, after which
	// r.Notify is never called again. ack may be called on any goroutine,
	// including the calling one.
	Unregister(r *Registration, ack func())
}

// unsupportedMonitor rejects every registration with err.
type unsupportedMonitor struct {
	err error
}

func (m unsupportedMonitor) Register(*Registration) error { return m.err }

func (m unsupportedMonitor) Unregister(_ *Registration, ack func()) { ack() }
