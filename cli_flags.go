// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3"

	"github.com/facebookarchive/profilo-sub011/config"
	"github.com/facebookarchive/profilo-sub011/internal/controller"
)

const (
	envVarPrefix = "PROFILO"

	defaultDumpType = "crash"
)

// Help strings for command line arguments
var (
	configFileHelp  = "Path to a plain text configuration file (one 'flag value' per line)."
	dumpDirHelp     = "Directory holding the buffer files left behind by traced processes."
	dumpPatternHelp = "Glob selecting buffer files inside the dump directory."
	dumpTypeHelp    = "Value of the 'type' annotation written to every recovered trace."
	removeDumpsHelp = "Delete buffer files once they were processed."
	concurrencyHelp = "Number of buffer files recovered at once. 0 uses the number of online CPUs."
	traceFlagsHelp  = "Flags reported for every recovered trace."
	traceFolderHelp = "Directory receiving the trace files."
	tracePrefixHelp = "Prefix of trace file names."
	compressionHelp = "Trace file compression: none, gzip or zstd."
	precisionHelp   = fmt.Sprintf("Decimal digits kept from nanosecond timestamps [0..%d].",
		config.MaxTimestampPrecision)
	maxStackDepthHelp   = "Deepest stack written to a trace."
	streamPoolHelp      = "Number of pooled buffers used to reassemble split entries."
	monitorIntervalHelp = "Interval of the process resource metrics."
	uploadBucketHelp    = "Upload finished traces to this S3 bucket."
	uploadPrefixHelp    = "Key prefix of uploaded traces."
	uploadRegionHelp    = "Region of the upload bucket."
	uploadEndpointHelp  = "Endpoint of an S3 compatible object store."
	removeUploadedHelp  = "Delete local trace files once they were uploaded."
	verboseModeHelp     = "Enable verbose logging and debugging capabilities."
	versionHelp         = "Show version."
)

func parseArgs(arguments []string) (*controller.Config, error) {
	args := controller.Config{Config: config.Default()}
	var compression string

	fs := flag.NewFlagSet("profilo-recover", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&compression, "compression", string(args.Compression), compressionHelp)
	fs.IntVar(&args.Concurrency, "concurrency", 0, concurrencyHelp)
	fs.String("config", "", configFileHelp)

	fs.StringVar(&args.DumpDir, "dump-dir", "", dumpDirHelp)
	fs.StringVar(&args.DumpPattern, "dump-pattern", controller.DefaultDumpPattern,
		dumpPatternHelp)
	fs.StringVar(&args.DumpType, "dump-type", defaultDumpType, dumpTypeHelp)

	fs.IntVar(&args.MaxStackDepth, "max-stack-depth", args.MaxStackDepth, maxStackDepthHelp)
	fs.DurationVar(&args.MonitorInterval, "monitor-interval", args.MonitorInterval,
		monitorIntervalHelp)

	fs.BoolVar(&args.RemoveDumps, "remove-dumps", false, removeDumpsHelp)
	fs.BoolVar(&args.RemoveAfterUpload, "remove-uploaded", false, removeUploadedHelp)

	fs.IntVar(&args.StreamPoolSize, "stream-pool-size", args.StreamPoolSize, streamPoolHelp)

	fs.IntVar(&args.TimestampPrecision, "timestamp-precision", args.TimestampPrecision,
		precisionHelp)
	fs.IntVar(&args.TraceFlags, "trace-flags", 0, traceFlagsHelp)
	fs.StringVar(&args.TraceFolder, "trace-folder", "", traceFolderHelp)
	fs.StringVar(&args.TracePrefix, "trace-prefix", args.TracePrefix, tracePrefixHelp)

	fs.StringVar(&args.UploadBucket, "upload-bucket", "", uploadBucketHelp)
	fs.StringVar(&args.UploadEndpoint, "upload-endpoint", "", uploadEndpointHelp)
	fs.StringVar(&args.UploadPrefix, "upload-prefix", "", uploadPrefixHelp)
	fs.StringVar(&args.UploadRegion, "upload-region", "", uploadRegionHelp)

	fs.BoolVar(&args.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.Version, "version", false, versionHelp)

	fs.Usage = func() {
		fs.PrintDefaults()
	}

	args.Fs = fs

	err := ff.Parse(fs, arguments,
		ff.WithEnvVarPrefix(envVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// Configuration file options of newer versions are ignored.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
	args.Compression = config.Compression(compression)
	return &args, err
}
