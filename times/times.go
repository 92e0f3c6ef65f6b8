// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package times holds the clock helpers and the intervals used by the
// consumer side.
package times // import "github.com/facebookarchive/profilo-sub011/times"

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"
)

const (
	// Number of timing samples to use when retrieving system boot time.
	sampleSize = 5

	// DefaultMonitorInterval is the default metric collection interval.
	DefaultMonitorInterval = 5 * time.Second
	// DefaultPollInterval is the default upper bound of the back-off used
	// while waiting for producers to publish new packets.
	DefaultPollInterval = 10 * time.Millisecond
	// MinPollInterval is the first back-off step after an empty read.
	MinPollInterval = 50 * time.Microsecond
)

// Compile time check for interface adherence
var _ IntervalsAndTimers = (*Times)(nil)

var (
	// Monotonic-to-unixtime delta that can be added to a monotonic (CLOCK_MONOTONIC)
	// timestamp to convert it to time-since-epoch.
	bootTimeUnixNano atomic.Int64
)

// Times holds the intervals used while draining trace buffers.
type Times struct {
	monitorInterval time.Duration
	pollInterval    time.Duration
}

// IntervalsAndTimers is a meta-interface that exists purely to document its functionality.
type IntervalsAndTimers interface {
	// MonitorInterval defines the interval for metric collection.
	MonitorInterval() time.Duration
	// PollInterval defines the longest wait between two reads of an empty
	// trace buffer.
	PollInterval() time.Duration
}

func (t *Times) MonitorInterval() time.Duration { return t.monitorInterval }

func (t *Times) PollInterval() time.Duration { return t.pollInterval }

// New returns a new Times instance. Zero durations select the defaults.
func New(monitorInterval, pollInterval time.Duration) *Times {
	if monitorInterval <= 0 {
		monitorInterval = DefaultMonitorInterval
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if pollInterval < MinPollInterval {
		pollInterval = MinPollInterval
	}
	return &Times{
		monitorInterval: monitorInterval,
		pollInterval:    pollInterval,
	}
}

// StartRealtimeSync calculates a delta between the monotonic clock
// (CLOCK_MONOTONIC, rebased to unixtime) and the realtime clock. If syncInterval is
// greater than zero, it also starts a goroutine to perform that calculation periodically.
func StartRealtimeSync(ctx context.Context, syncInterval time.Duration) {
	bootTimeUnixNano.Store(getBootTimeUnixNano())

	if syncInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bootTimeUnixNano.Store(getBootTimeUnixNano())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// getBootTimeUnixNano returns system boot time in nanoseconds since the
// epoch, temporarily locking the calling goroutine to its OS thread.
func getBootTimeUnixNano() int64 {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	samples := make([]struct {
		t1    time.Time
		ktime int64
		t2    time.Time
	}, sampleSize)

	for i := range samples {
		// To avoid noise from scheduling / other delays, we perform a
		// series of measurements and pick the one with the lowest delta.
		samples[i].t1 = time.Now()
		samples[i].ktime = int64(GetKTime())
		samples[i].t2 = time.Now()
	}

	sort.Slice(samples, func(i, j int) bool {
		di := samples[i].t2.UnixNano() - samples[i].t1.UnixNano()
		dj := samples[j].t2.UnixNano() - samples[j].t1.UnixNano()
		if di < 0 {
			di = -di
		}
		if dj < 0 {
			dj = -dj
		}
		return di < dj
	})

	// This should never be negative, as t1.UnixNano() >> ktime
	return samples[0].t1.UnixNano() - samples[0].ktime
}
