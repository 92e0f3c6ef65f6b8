// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the construction time configuration of the tracing
// engine. A Config is validated once and treated as immutable afterwards.
package config // import "github.com/facebookarchive/profilo-sub011/config"

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Compression selects how trace files are compressed.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

const (
	// DefaultBufferSlots is the default ring buffer capacity in packets.
	DefaultBufferSlots = 1000
	// DefaultTimestampPrecision keeps microseconds.
	DefaultTimestampPrecision = 6
	// MaxTimestampPrecision keeps nanoseconds, the native unit.
	MaxTimestampPrecision = 9
	// DefaultMaxStackDepth is the deepest stack written to a trace.
	DefaultMaxStackDepth = 1024
	// DefaultStreamPoolSize is the number of pooled reassembly buffers.
	DefaultStreamPoolSize = 8
	// DefaultConsumedTraceCacheSize bounds the set of remembered finished
	// trace ids.
	DefaultConsumedTraceCacheSize = 1024
	// DefaultTracePrefix is used for trace file names.
	DefaultTracePrefix = "trace"
)

// Config is the configuration of the tracing engine.
type Config struct {
	BufferSlots            int           `mapstructure:"buffer_slots"`
	TimestampPrecision     int           `mapstructure:"timestamp_precision"`
	MaxStackDepth          int           `mapstructure:"max_stack_depth"`
	StreamPoolSize         int           `mapstructure:"stream_pool_size"`
	ConsumedTraceCacheSize int           `mapstructure:"consumed_trace_cache_size"`
	TraceFolder            string        `mapstructure:"trace_folder"`
	TracePrefix            string        `mapstructure:"trace_prefix"`
	Compression            Compression   `mapstructure:"compression"`
	MonitorInterval        time.Duration `mapstructure:"monitor_interval"`
	PollInterval           time.Duration `mapstructure:"poll_interval"`
}

// Default returns a Config with all defaults applied. TraceFolder is left
// empty and must be set by the caller.
func Default() Config {
	return Config{
		BufferSlots:            DefaultBufferSlots,
		TimestampPrecision:     DefaultTimestampPrecision,
		MaxStackDepth:          DefaultMaxStackDepth,
		StreamPoolSize:         DefaultStreamPoolSize,
		ConsumedTraceCacheSize: DefaultConsumedTraceCacheSize,
		TracePrefix:            DefaultTracePrefix,
		Compression:            CompressionGzip,
		MonitorInterval:        5 * time.Second,
		PollInterval:           10 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.BufferSlots < 1 {
		return fmt.Errorf("buffer slots must be > 0, got %d", cfg.BufferSlots)
	}

	if cfg.TimestampPrecision < 0 || cfg.TimestampPrecision > MaxTimestampPrecision {
		return fmt.Errorf("timestamp precision must be within [0..%d], got %d",
			MaxTimestampPrecision, cfg.TimestampPrecision)
	}

	if cfg.MaxStackDepth < 1 || cfg.MaxStackDepth > math.MaxUint16 {
		return fmt.Errorf("max stack depth must be within [1..%d], got %d",
			math.MaxUint16, cfg.MaxStackDepth)
	}

	if cfg.StreamPoolSize < 0 {
		return fmt.Errorf("stream pool size must be >= 0, got %d", cfg.StreamPoolSize)
	}

	if cfg.ConsumedTraceCacheSize < 1 {
		return fmt.Errorf("consumed trace cache size must be > 0, got %d",
			cfg.ConsumedTraceCacheSize)
	}

	if cfg.TraceFolder == "" {
		return errors.New("trace folder must be set")
	}

	switch cfg.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return fmt.Errorf("unknown compression %q", cfg.Compression)
	}

	if cfg.MonitorInterval < 0 || cfg.PollInterval < 0 {
		return errors.New("intervals must not be negative")
	}

	return nil
}
