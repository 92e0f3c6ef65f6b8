// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import "github.com/facebookarchive/profilo-sub011/metrics"

func (w *TraceWriter) collectMetrics() {
	reasmStats := w.reasm.Stats()

	metrics.AddSlice([]metrics.Metric{
		{
			ID:    metrics.IDTracesStarted,
			Value: metrics.MetricValue(w.counters.tracesStarted),
		},
		{
			ID:    metrics.IDTracesEnded,
			Value: metrics.MetricValue(w.counters.tracesEnded),
		},
		{
			ID:    metrics.IDTracesAborted,
			Value: metrics.MetricValue(w.counters.tracesAborted),
		},
		{
			ID:    metrics.IDMissedEvents,
			Value: metrics.MetricValue(w.counters.missedEvents),
		},
		{
			ID:    metrics.IDPacketsRead,
			Value: metrics.MetricValue(w.counters.packetsRead),
		},
		{
			ID:    metrics.IDEntriesDropped,
			Value: metrics.MetricValue(w.counters.entriesDropped),
		},
		{
			ID:    metrics.IDPacketsDropped,
			Value: metrics.MetricValue(reasmStats.Dropped),
		},
		{
			ID:    metrics.IDStreamPoolMisses,
			Value: metrics.MetricValue(reasmStats.PoolMisses),
		},
		{
			ID:    metrics.IDTraceBytesWritten,
			Value: metrics.MetricValue(w.multi.BytesWritten()),
		},
	})

	w.counters = counters{}
}
