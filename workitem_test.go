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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkItemPerform(t *testing.T) {
	var n int
	item := NewWorkItem(func() { n++ })
	item.Perform()
	item.Perform()
	assert.Equal(t, 2, n, "work items can be performed repeatedly")
	assert.NoError(t, item.Wait(context.Background()))

	item.Cancel()
	assert.True(t, item.IsCancelled())
	item.Perform()
	assert.Equal(t, 2, n, "cancelled items do not run")

	var nilItem *WorkItem
	nilItem.Perform()
}

func TestWorkItemWaitTimeout(t *testing.T) {
	item := NewWorkItem(func() {})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, item.Wait(ctx), context.DeadlineExceeded)
}

func TestEffectiveQoS(t *testing.T) {
	cases := []struct {
		qos    QoS
		flags  WorkItemFlags
		target QoS
		want   QoS
	}{
		{QoSUtility, 0, QoSDefault, QoSUtility},
		{QoSUnspecified, 0, QoSUserInitiated, QoSUserInitiated},
		{QoSUserInteractive, WorkItemNoQoS, QoSDefault, QoSUnspecified},
		{QoSBackground, WorkItemEnforceQoS, QoSUserInteractive, QoSBackground},
		{QoSBackground, WorkItemInheritQoS, QoSUserInitiated, QoSUserInitiated},
		{QoSUserInitiated, WorkItemInheritQoS, QoSUtility, QoSUserInitiated},
	}
	for _, c := range cases {
		item := NewWorkItemWith(c.qos, c.flags, func() {})
		assert.Equal(t, c.want, item.effectiveQoS(c.target), "%v with flags %d on %v", c.qos, c.flags, c.target)
	}
	assert.Equal(t, "user-initiated", QoSUserInitiated.String())
	assert.True(t, NewWorkItemWith(QoSDefault, WorkItemBarrier, nil).isBarrier())
}
