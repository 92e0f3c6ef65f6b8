// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentmetrics reports resource usage of the trace consumer process.
package agentmetrics // import "github.com/facebookarchive/profilo-sub011/metrics/agentmetrics"

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebookarchive/profilo-sub011/metrics"
	"github.com/facebookarchive/profilo-sub011/periodiccaller"
)

// sampler remembers the CPU times of the previous sample.
type sampler struct {
	utime unix.Timeval
	stime unix.Timeval
}

// timeDelta returns now-prev in milliseconds.
func timeDelta(now, prev unix.Timeval) int64 {
	return (now.Sec-prev.Sec)*1000 + (now.Usec-prev.Usec)/1000
}

func getrusage() (unix.Rusage, error) {
	var rusage unix.Rusage
	err := unix.Getrusage(unix.RUSAGE_SELF, &rusage)
	return rusage, err
}

func (s *sampler) sample() {
	rusage, err := getrusage()
	if err != nil {
		log.Errorf("Failed to fetch rusage: %v", err)
		return
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	utime := timeDelta(rusage.Utime, s.utime)
	stime := timeDelta(rusage.Stime, s.stime)
	s.utime, s.stime = rusage.Utime, rusage.Stime

	metrics.AddSlice([]metrics.Metric{
		{ID: metrics.IDAgentGoRoutines, Value: metrics.MetricValue(runtime.NumGoroutine())},
		{ID: metrics.IDAgentHeapAlloc, Value: metrics.MetricValue(mem.HeapAlloc)},
		{ID: metrics.IDAgentUTime, Value: metrics.MetricValue(utime)},
		{ID: metrics.IDAgentSTime, Value: metrics.MetricValue(stime)},
	})
}

// Start samples the resource usage of the process every interval until the
// returned function is called or ctx is canceled.
func Start(ctx context.Context, interval time.Duration) (func(), error) {
	rusage, err := getrusage()
	if err != nil {
		return func() {}, err
	}
	s := &sampler{utime: rusage.Utime, stime: rusage.Stime}

	ctx, cancel := context.WithCancel(ctx)
	stop := periodiccaller.Start(ctx, interval, s.sample)
	return func() {
		cancel()
		stop()
	}, nil
}
