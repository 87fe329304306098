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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	q := DefaultQueue()
	require.NotNil(t, q)
	assert.Same(t, q, DefaultQueue())
	m := DefaultMonitor()
	require.NotNil(t, m)
	assert.Equal(t, m, DefaultMonitor())
	timers := defaultTimerQueue()
	assert.Same(t, timers, defaultTimerQueue())

	src, err := NewUserDataAdd()
	require.NoError(t, err)
	assert.Equal(t, q, src.queue)
	assert.Nil(t, src.monitor, "user data sources need no monitor")

	Shutdown()
	assert.NotSame(t, timers, defaultTimerQueue(), "defaults are created anew after Shutdown")
	assert.NotSame(t, q, DefaultQueue())
}
