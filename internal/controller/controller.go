// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller recovers trace buffer files left behind by dead
// processes and turns them into trace files.
package controller // import "github.com/facebookarchive/profilo-sub011/internal/controller"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebookarchive/profilo-sub011/hostmetadata"
	"github.com/facebookarchive/profilo-sub011/metrics"
	"github.com/facebookarchive/profilo-sub011/mmapbuf"
	"github.com/facebookarchive/profilo-sub011/upload"
	"github.com/facebookarchive/profilo-sub011/writer"
)

// Result summarizes one recovery run.
type Result struct {
	Recovered int
	Skipped   int
	Failed    int
}

// Controller is an instance that runs, manages and stops the recovery.
type Controller struct {
	config       *Config
	callbacks    writer.CallbacksList
	uploadClient upload.PutObjectAPI
	metadata     *hostmetadata.Collector
}

// New creates a new controller.
func New(cfg *Config, opts ...Option) *Controller {
	c := &Controller{
		config:    cfg,
		callbacks: writer.CallbacksList{LogReporter{}},
		metadata:  hostmetadata.NewCollector(),
	}
	for _, opt := range opts {
		c = opt.applyOption(c)
	}
	return c
}

// Run recovers every dump file found in the dump directory and waits for
// pending uploads. Individual dump failures are logged and counted, only
// setup errors and context cancellation are returned.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if c.config == nil {
		return Result{}, errors.New("missing configuration")
	}
	if err := c.config.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid configuration: %w", err)
	}

	dumps, err := c.findDumps()
	if err != nil {
		return Result{}, err
	}
	if len(dumps) == 0 {
		log.Infof("No dump files in %s", c.config.DumpDir)
		return Result{}, nil
	}
	log.Infof("Recovering %d dump files from %s", len(dumps), c.config.DumpDir)

	if err = os.MkdirAll(c.config.TraceFolder, 0o750); err != nil {
		return Result{}, fmt.Errorf("failed to create trace folder: %w", err)
	}

	callbacks := writer.TraceCallbacks(c.callbacks)
	var uploader *upload.Uploader
	if c.config.UploadBucket != "" {
		uploader, err = c.newUploader(ctx, callbacks)
		if err != nil {
			return Result{}, err
		}
		callbacks = uploader
	}

	c.metadata.AddCustomData("collection_tool", "profilo-recover")
	dw, err := mmapbuf.NewDumpWriter(&c.config.Config, callbacks,
		c.metadata.TraceHeaders(), int32(c.config.TraceFlags))
	if err != nil {
		return Result{}, err
	}

	var uploads errgroup.Group
	if uploader != nil {
		uploads.Go(func() error {
			return uploader.Run(ctx)
		})
	}

	result, err := c.recoverAll(ctx, dw, dumps)

	if uploader != nil {
		uploader.Close()
		if uerr := uploads.Wait(); uerr != nil && err == nil {
			err = fmt.Errorf("uploads interrupted: %w", uerr)
		}
		stats := uploader.Stats()
		log.Infof("Uploaded %d traces, %d failed, %d dropped",
			stats.Succeeded, stats.Failed, stats.Dropped)
	}
	metrics.Flush()
	return result, err
}

func (c *Controller) newUploader(ctx context.Context,
	next writer.TraceCallbacks) (*upload.Uploader, error) {
	client := c.uploadClient
	if client == nil {
		s3client, err := upload.NewS3Client(ctx, c.config.UploadRegion,
			c.config.UploadEndpoint)
		if err != nil {
			return nil, err
		}
		client = s3client
	}
	return upload.New(client, upload.Options{
		Bucket:            c.config.UploadBucket,
		KeyPrefix:         c.config.UploadPrefix,
		RemoveAfterUpload: c.config.RemoveAfterUpload,
	}, next)
}

func (c *Controller) findDumps() ([]string, error) {
	pattern := c.config.DumpPattern
	if pattern == "" {
		pattern = DefaultDumpPattern
	}
	dumps, err := filepath.Glob(filepath.Join(c.config.DumpDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid dump pattern %q: %w", pattern, err)
	}
	slices.Sort(dumps)
	return dumps, nil
}

func (c *Controller) recoverAll(ctx context.Context, dw *mmapbuf.DumpWriter,
	dumps []string) (Result, error) {
	var recovered, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recoveryConcurrency(c.config.Concurrency, len(dumps)))
	for _, dump := range dumps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			traceID, err := dw.WriteTrace(gctx, dump, c.config.DumpType)
			switch {
			case err == nil:
				log.Infof("Recovered trace %d from %s", traceID, dump)
				recovered.Add(1)
				metrics.Add(metrics.IDDumpsRecovered, 1)
			case errors.Is(err, mmapbuf.ErrNoActiveTrace):
				log.Debugf("Skipping %s: %v", dump, err)
				skipped.Add(1)
			case errors.Is(err, mmapbuf.ErrEmptyDump):
				// Kept so it can be inspected by hand.
				log.Warnf("Skipping %s: %v", dump, err)
				skipped.Add(1)
				return nil
			case errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				log.Errorf("Failed to recover %s: %v", dump, err)
				failed.Add(1)
				return nil
			}
			if c.config.RemoveDumps {
				if err := os.Remove(dump); err != nil {
					log.Warnf("Failed to remove dump %s: %v", dump, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	return Result{
		Recovered: int(recovered.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}, err
}
