// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package upload ships finished trace files to an S3 compatible object store.
package upload // import "github.com/facebookarchive/profilo-sub011/upload"

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sha256 "github.com/minio/sha256-simd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebookarchive/profilo-sub011/metrics"
	"github.com/facebookarchive/profilo-sub011/writer"
)

const (
	// DefaultWorkers is the number of concurrent uploads.
	DefaultWorkers = 2
	// DefaultQueueSize is the number of finished traces waiting for upload.
	DefaultQueueSize = 64

	metaTraceID = "trace-id"
	metaCRC32   = "crc32"
	metaSHA256  = "sha256"
)

var (
	// ErrNoBucket is returned when no destination bucket is configured.
	ErrNoBucket = errors.New("no upload bucket")
	// ErrClosed is returned by Run when the Uploader was already closed and
	// drained.
	ErrClosed = errors.New("uploader closed")
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput,
		optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ PutObjectAPI = (*s3.Client)(nil)

// Options configures an Uploader.
type Options struct {
	Bucket    string
	KeyPrefix string
	Workers   int
	QueueSize int
	// RemoveAfterUpload deletes the local file once it was stored.
	RemoveAfterUpload bool
}

// Stats counts upload outcomes since the Uploader was created.
type Stats struct {
	Succeeded uint64
	Failed    uint64
	Dropped   uint64
}

type job struct {
	traceID int64
	path    string
	crc     uint32
}

// Uploader is a writer.TraceCallbacks that uploads every ended trace file.
// Callbacks are forwarded to next, which may be nil.
type Uploader struct {
	client PutObjectAPI
	opts   Options
	next   writer.TraceCallbacks

	mu     sync.Mutex
	paths  map[int64]string
	closed bool
	queue  chan job
	ran    atomic.Bool

	succeeded atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

var _ writer.TraceCallbacks = (*Uploader)(nil)

// New returns an Uploader storing trace files in opts.Bucket.
func New(client PutObjectAPI, opts Options, next writer.TraceCallbacks) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, ErrNoBucket
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Uploader{
		client: client,
		opts:   opts,
		next:   next,
		paths:  make(map[int64]string),
		queue:  make(chan job, opts.QueueSize),
	}, nil
}

// NewS3Client returns an S3 client using the default credential chain. A
// non-empty endpoint selects an S3 compatible store with path style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (u *Uploader) OnTraceStart(traceID int64, flags int32, path string) {
	u.mu.Lock()
	u.paths[traceID] = path
	u.mu.Unlock()

	if u.next != nil {
		u.next.OnTraceStart(traceID, flags, path)
	}
}

func (u *Uploader) OnTraceEnd(traceID int64, crc uint32) {
	u.mu.Lock()
	path, ok := u.paths[traceID]
	delete(u.paths, traceID)
	if ok && !u.closed {
		select {
		case u.queue <- job{traceID: traceID, path: path, crc: crc}:
		default:
			log.Warnf("Upload queue full, dropping trace %d (%s)", traceID, path)
			u.dropped.Add(1)
			metrics.Add(metrics.IDUploadsFailed, 1)
		}
	}
	u.mu.Unlock()

	if !ok {
		log.Debugf("No file known for ended trace %d", traceID)
	}
	if u.next != nil {
		u.next.OnTraceEnd(traceID, crc)
	}
}

func (u *Uploader) OnTraceAbort(traceID int64, reason writer.AbortReason) {
	u.mu.Lock()
	delete(u.paths, traceID)
	u.mu.Unlock()

	if u.next != nil {
		u.next.OnTraceAbort(traceID, reason)
	}
}

// Close stops accepting traces. Run returns once the queued traces are
// uploaded.
func (u *Uploader) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.closed = true
	close(u.queue)
}

// Run uploads queued traces until Close is called and the queue is drained,
// or ctx is done. It may only be called once.
func (u *Uploader) Run(ctx context.Context) error {
	if !u.ran.CompareAndSwap(false, true) {
		return ErrClosed
	}

	g, ctx := errgroup.WithContext(ctx)
	for range u.opts.Workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case j, ok := <-u.queue:
					if !ok {
						return nil
					}
					u.handle(ctx, j)
				}
			}
		})
	}
	return g.Wait()
}

// Stats returns the upload counters.
func (u *Uploader) Stats() Stats {
	return Stats{
		Succeeded: u.succeeded.Load(),
		Failed:    u.failed.Load(),
		Dropped:   u.dropped.Load(),
	}
}

func (u *Uploader) handle(ctx context.Context, j job) {
	if err := u.upload(ctx, j); err != nil {
		log.Errorf("Failed to upload trace %d: %v", j.traceID, err)
		u.failed.Add(1)
		metrics.Add(metrics.IDUploadsFailed, 1)
		return
	}
	u.succeeded.Add(1)
	metrics.Add(metrics.IDUploadsSucceeded, 1)

	if u.opts.RemoveAfterUpload {
		if err := os.Remove(j.path); err != nil {
			log.Warnf("Failed to remove uploaded trace %s: %v", j.path, err)
		}
	}
}

func (u *Uploader) upload(ctx context.Context, j job) error {
	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", j.path, err)
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	key, err := u.Key(j.traceID, j.path)
	if err != nil {
		return err
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.opts.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			metaTraceID: strconv.FormatInt(j.traceID, 10),
			metaCRC32:   strconv.FormatUint(uint64(j.crc), 10),
			metaSHA256:  hex.EncodeToString(h.Sum(nil)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	log.Debugf("Uploaded trace %d to %s/%s", j.traceID, u.opts.Bucket, key)
	return nil
}

// Key returns the object key for a trace file: the sanitized trace id
// followed by the file name, below the configured prefix.
func (u *Uploader) Key(traceID int64, file string) (string, error) {
	encoded, err := writer.FormatTraceID(traceID)
	if err != nil {
		return "", err
	}
	return path.Join(u.opts.KeyPrefix, writer.Sanitize(encoded), filepath.Base(file)), nil
}
