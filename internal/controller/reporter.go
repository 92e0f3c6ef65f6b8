// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/facebookarchive/profilo-sub011/internal/controller"

import (
	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/metrics"
	"github.com/facebookarchive/profilo-sub011/writer"
)

// LogReporter logs trace outcomes and metric batches.
type LogReporter struct{}

var (
	_ writer.TraceCallbacks = LogReporter{}
	_ metrics.Reporter      = LogReporter{}
)

func (LogReporter) OnTraceStart(traceID int64, flags int32, path string) {
	log.Debugf("Trace %d started (flags %#x): %s", traceID, flags, path)
}

func (LogReporter) OnTraceEnd(traceID int64, crc uint32) {
	log.Infof("Trace %d written (crc32 %08x)", traceID, crc)
}

func (LogReporter) OnTraceAbort(traceID int64, reason writer.AbortReason) {
	log.Warnf("Trace %d aborted: %v", traceID, reason)
}

func (LogReporter) ReportMetrics(timestamp uint32, ids []uint32, values []int64) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	for i, id := range ids {
		log.Debugf("Metric %d@%d: %d", id, timestamp, values[i])
	}
}
