// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "github.com/facebookarchive/profilo-sub011/metrics"

// Create ids.go from metrics.json
//go:generate go run genids/main.go metrics.json ids.go

// MetricID is the type for metric IDs.
type MetricID uint16

// MetricValue is the type for metric values.
type MetricValue int64

// Metric is the type for a metric id/value pair.
type Metric struct {
	ID    MetricID
	Value MetricValue
}

// MetricType tells how values of a metric are aggregated.
type MetricType string

const (
	// MetricTypeCounter values are deltas since the previous report.
	MetricTypeCounter MetricType = "counter"
	// MetricTypeGauge values are absolute.
	MetricTypeGauge MetricType = "gauge"
)

// MetricDefinition describes one metric in metrics.json.
type MetricDefinition struct {
	Description string     `json:"description"`
	Type        MetricType `json:"type"`
	Name        string     `json:"name"`
	Field       string     `json:"field"`
	Unit        string     `json:"unit"`
	ID          MetricID   `json:"id"`
	Obsolete    bool       `json:"obsolete"`
}

// Reporter receives every batch of buffered metrics.
type Reporter interface {
	ReportMetrics(timestamp uint32, ids []uint32, values []int64)
}
