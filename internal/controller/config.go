// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/facebookarchive/profilo-sub011/internal/controller"

import (
	"errors"
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/config"
)

// DefaultDumpPattern matches the buffer files left behind by traced
// processes.
const DefaultDumpPattern = "*.buf"

type Config struct {
	config.Config
	DumpDir     string
	DumpPattern string
	DumpType    string
	// RemoveDumps deletes a dump file once its trace was recovered or when
	// it held no active trace.
	RemoveDumps bool
	// Concurrency bounds the number of dumps recovered at once. Zero uses
	// the number of online CPUs.
	Concurrency int
	TraceFlags  int

	UploadBucket      string
	UploadPrefix      string
	UploadRegion      string
	UploadEndpoint    string
	RemoveAfterUpload bool

	VerboseMode bool
	Version     bool

	Fs *flag.FlagSet
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	if cfg.Fs == nil {
		return
	}
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debugf("%s: %v", f.Name, f.Value)
	})
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if cfg.DumpDir == "" {
		return errors.New("dump directory must be set")
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", cfg.Concurrency)
	}
	if cfg.UploadBucket == "" && (cfg.UploadPrefix != "" || cfg.RemoveAfterUpload) {
		return errors.New("upload options require an upload bucket")
	}
	return cfg.Config.Validate()
}
