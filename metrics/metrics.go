// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "github.com/facebookarchive/profilo-sub011/metrics"

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/facebookarchive/profilo-sub011/vc"
)

//go:embed metrics.json
var definitionsJSON []byte

// instrument records one value of a metric.
type instrument func(ctx context.Context, value int64)

// batch holds the metrics added during one wall clock second.
type batch struct {
	second  uint32
	metrics []Metric
	seen    [IDMax]bool
}

func (b *batch) reset() {
	b.metrics = b.metrics[:0]
	clear(b.seen[:])
}

var (
	mu       sync.Mutex
	pending  batch
	reporter Reporter

	kinds       map[MetricID]MetricType
	instruments map[MetricID]instrument

	meter = otel.Meter("github.com/facebookarchive/profilo-sub011",
		metric.WithInstrumentationVersion(vc.Version()))
)

func init() {
	defs := GetDefinitions()
	kinds = make(map[MetricID]MetricType, len(defs))
	instruments = make(map[MetricID]instrument, len(defs))
	for _, d := range defs {
		if d.Obsolete {
			continue
		}
		kinds[d.ID] = d.Type
		record, err := newInstrument(d)
		if err != nil {
			log.Errorf("No instrument for metric %s: %v", d.Field, err)
			continue
		}
		instruments[d.ID] = record
	}
}

func newInstrument(d MetricDefinition) (instrument, error) {
	desc := metric.WithDescription(d.Description)
	unit := metric.WithUnit(d.Unit)
	switch d.Type {
	case MetricTypeCounter:
		c, err := meter.Int64Counter(d.Field, desc, unit)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v int64) { c.Add(ctx, v) }, nil
	case MetricTypeGauge:
		g, err := meter.Int64Gauge(d.Field, desc, unit)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v int64) { g.Record(ctx, v) }, nil
	}
	return nil, fmt.Errorf("unknown metric type %q", d.Type)
}

// SetReporter installs an additional receiver of every reported batch.
func SetReporter(r Reporter) {
	mu.Lock()
	defer mu.Unlock()
	reporter = r
}

// report hands a batch to the reporter and to the OTel instruments.
// Replaced in tests.
var report = func(b *batch) {
	if reporter != nil {
		ids := make([]uint32, len(b.metrics))
		values := make([]int64, len(b.metrics))
		for i, m := range b.metrics {
			ids[i] = uint32(m.ID)
			values[i] = int64(m.Value)
		}
		reporter.ReportMetrics(b.second, ids, values)
	}
	ctx := context.Background()
	for _, m := range b.metrics {
		if record, ok := instruments[m.ID]; ok {
			record(ctx, int64(m.Value))
		}
	}
}

func flushLocked() {
	if len(pending.metrics) == 0 {
		return
	}
	report(&pending)
	pending.reset()
}

// AddSlice buffers metrics and returns immediately. The batch of a second is
// reported once a metric arrives in a later second or on Flush. Zero valued
// counters are skipped, and an id added twice within one second keeps its
// first value.
func AddSlice(ms []Metric) {
	now := uint32(time.Now().Unix())

	mu.Lock()
	defer mu.Unlock()
	if pending.second != now {
		flushLocked()
		pending.second = now
	}

	for _, m := range ms {
		if m.ID <= IDInvalid || m.ID >= IDMax {
			log.Errorf("Metric id %d outside of [%d,%d]", m.ID, IDInvalid+1, IDMax-1)
			continue
		}
		typ, ok := kinds[m.ID]
		if !ok {
			log.Warnf("Ignoring obsolete metric id %d", m.ID)
			continue
		}
		if typ == MetricTypeCounter && m.Value == 0 {
			continue
		}
		if pending.seen[m.ID] {
			log.Debugf("Metric id %d already reported this second", m.ID)
			continue
		}
		pending.seen[m.ID] = true
		pending.metrics = append(pending.metrics, m)
	}
}

// Add buffers a single metric.
func Add(id MetricID, value MetricValue) {
	AddSlice([]Metric{{ID: id, Value: value}})
}

// Flush reports the buffered metrics without waiting for the second to end.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	flushLocked()
}

// GetDefinitions decodes the embedded metrics.json.
func GetDefinitions() []MetricDefinition {
	var defs []MetricDefinition
	dec := json.NewDecoder(bytes.NewReader(definitionsJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		panic(fmt.Sprintf("invalid metrics.json: %v", err))
	}
	return defs
}
