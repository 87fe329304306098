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

import "github.com/panjf2000/evsource/pkg/logging"

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options are set when a source is created.
type Options struct {
	// Queue is where the handlers of the source run, DefaultQueue() when nil.
	Queue Queue

	// Monitor watches the kernel object behind the source, DefaultMonitor() when nil.
	// Timer and user data sources never use it.
	Monitor Monitor

	// Logger is the customized logger for the source, the default logger of
	// pkg/logging is used when nil.
	Logger logging.Logger

	// Label names the source in log messages.
	Label string
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithQueue sets up the queue the handlers are submitted to.
func WithQueue(q Queue) Option {
	return func(opts *Options) {
		opts.Queue = q
	}
}

// WithMonitor sets up the monitor the source registers with.
func WithMonitor(m Monitor) Option {
	return func(opts *Options) {
		opts.Monitor = m
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithLabel sets up the label of the source.
func WithLabel(label string) Option {
	return func(opts *Options) {
		opts.Label = label
	}
}
