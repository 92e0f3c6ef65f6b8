// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// profilo-recover turns the trace buffer files left behind by crashed
// processes into trace files and optionally uploads them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebookarchive/profilo-sub011/internal/controller"
	"github.com/facebookarchive/profilo-sub011/metrics"
	"github.com/facebookarchive/profilo-sub011/metrics/agentmetrics"
	"github.com/facebookarchive/profilo-sub011/vc"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return controller.ExitSuccess
	}
	if err != nil {
		log.Errorf("Failure to parse arguments: %v", err)
		return controller.ExitParseError
	}

	if cfg.Version {
		fmt.Printf("%s\n", vc.Version())
		return controller.ExitSuccess
	}

	if cfg.VerboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if err = cfg.Validate(); err != nil {
		log.Error(err)
		return controller.ExitParseError
	}

	// Context to drive main goroutine and the recovery workers.
	ctx, cancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer cancel()

	if err = run(ctx, cfg); err != nil {
		log.Error(err)
		var coded controller.ErrorWithExitCode
		if errors.As(err, &coded) {
			return coded.Code()
		}
		return controller.ExitFailure
	}
	return controller.ExitSuccess
}

func run(ctx context.Context, cfg *controller.Config) error {
	log.Infof("Starting profilo-recover %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	metrics.SetReporter(controller.LogReporter{})

	if cfg.MonitorInterval > 0 {
		stopMetrics, err := agentmetrics.Start(ctx, cfg.MonitorInterval)
		if err != nil {
			return fmt.Errorf("error starting the agent specific metric collection: %w", err)
		}
		defer stopMetrics()
	}

	result, err := controller.New(cfg).Run(ctx)
	log.Infof("Recovered %d traces, skipped %d dumps, %d failed",
		result.Recovered, result.Skipped, result.Failed)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return controller.NewErrorWithExitCode(
			fmt.Errorf("failed to recover %d dump files", result.Failed),
			controller.ExitPartial)
	}
	return nil
}
