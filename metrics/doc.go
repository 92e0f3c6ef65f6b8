// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics collects the counters of the trace consumer and reports them
through OpenTelemetry metrics.

Metric providers call Add or AddSlice with the values gathered since their
previous call. Values are buffered per second and reported once the second
changes, so each metric ID is reported at most once per second. Counters with
a zero value are not reported.

The metric definitions live in metrics.json. ids.go is generated from it:

	metrics
	├── agentmetrics/   // process metrics of the consumer itself
	├── genids/         // ids.go generator
	├── ids.go          // generated metric ids
	├── metrics.go      // Add(), AddSlice() and the OTel instruments
	├── metrics.json    // metric definitions, append only
	└── types.go        // Metric, MetricID, MetricValue and definitions
*/
package metrics // import "github.com/facebookarchive/profilo-sub011/metrics"
