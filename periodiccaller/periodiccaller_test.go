// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package periodiccaller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStart(t *testing.T) {
	var calls atomic.Int32
	stop := Start(context.Background(), time.Millisecond, func() {
		calls.Add(1)
	})

	assert.Eventually(t, func() bool { return calls.Load() >= 3 },
		time.Second, time.Millisecond)

	stop()
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestStartCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	stop := Start(ctx, time.Millisecond, func() {
		calls.Add(1)
	})
	cancel()
	stop()

	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
