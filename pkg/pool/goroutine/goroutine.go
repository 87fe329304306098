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

// Package goroutine provides the ants worker pool that backs concurrent queues.
package goroutine

import (
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/panjf2000/evsource/pkg/logging"
)

const (
	// DefaultAntsPoolSize sets up the capacity of worker pool, 256 * 1024.
	DefaultAntsPoolSize = 1 << 18

	// ExpiryDuration is the interval time to clean up those expired workers.
	ExpiryDuration = 10 * time.Second

	// Nonblocking decides what to do when submitting a new task to a full worker pool: waiting for a available worker
	// or returning an error directly. Queues must not drop work, so they wait.
	Nonblocking = false
)

func init() {
	// It releases the default pool from ants.
	ants.Release()
}

// Pool is the alias of ants.Pool.
type Pool = ants.Pool

type antsLogger struct{}

func (antsLogger) Printf(format string, args ...interface{}) {
	logging.Warnf(format, args...)
}

// Default instantiates a blocking *Pool with the capacity of DefaultAntsPoolSize.
func Default() *Pool {
	return New(DefaultAntsPoolSize)
}

// New instantiates a blocking *Pool with the given capacity, size <= 0 means unlimited.
// Panics escaping from tasks are logged by the pool rather than crashing the process.
func New(size int) *Pool {
	options := ants.Options{
		ExpiryDuration: ExpiryDuration,
		Nonblocking:    Nonblocking,
		Logger:         antsLogger{},
		PanicHandler: func(p interface{}) {
			logging.Errorf("panic occurs in a task submitted to the worker pool: %v", p)
		},
	}
	pool, _ := ants.NewPool(size, ants.WithOptions(options))
	return pool
}
