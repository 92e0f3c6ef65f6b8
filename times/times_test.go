// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package times

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	tm := New(0, 0)
	assert.Equal(t, DefaultMonitorInterval, tm.MonitorInterval())
	assert.Equal(t, DefaultPollInterval, tm.PollInterval())

	tm = New(time.Second, time.Nanosecond)
	assert.Equal(t, time.Second, tm.MonitorInterval())
	assert.Equal(t, MinPollInterval, tm.PollInterval())
}

func TestKTimeMonotonic(t *testing.T) {
	a := GetKTime()
	b := GetKTime()
	assert.LessOrEqual(t, a, b)
}

func TestRealtimeSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRealtimeSync(ctx, 0)

	wall := GetKTime().Time()
	assert.WithinDuration(t, time.Now(), wall, time.Second)
}
