// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package upload_test

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sha256 "github.com/minio/sha256-simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebookarchive/profilo-sub011/upload"
	"github.com/facebookarchive/profilo-sub011/writer"
)

type object struct {
	bucket   string
	key      string
	body     []byte
	metadata map[string]string
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	objects []object
}

func (f *fakeStore) PutObject(_ context.Context, in *s3.PutObjectInput,
	_ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) != aws.ToInt64(in.ContentLength) {
		return nil, errors.New("content length mismatch")
	}
	f.objects = append(f.objects, object{
		bucket:   aws.ToString(in.Bucket),
		key:      aws.ToString(in.Key),
		body:     body,
		metadata: in.Metadata,
	})
	return &s3.PutObjectOutput{}, nil
}

type forwarded struct {
	starts, ends, aborts int
}

func (f *forwarded) OnTraceStart(int64, int32, string)      { f.starts++ }
func (f *forwarded) OnTraceEnd(int64, uint32)               { f.ends++ }
func (f *forwarded) OnTraceAbort(int64, writer.AbortReason) { f.aborts++ }

func traceFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "trace-1-abc.tmp")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func drain(t *testing.T, u *upload.Uploader) {
	t.Helper()
	u.Close()
	require.NoError(t, u.Run(context.Background()))
}

func TestUploadEndedTrace(t *testing.T) {
	store := &fakeStore{}
	next := &forwarded{}
	u, err := upload.New(store, upload.Options{Bucket: "traces", KeyPrefix: "dev"}, next)
	require.NoError(t, err)

	const content = "dt\nver|3\n"
	p := traceFile(t, content)
	u.OnTraceStart(101, 0, p)
	u.OnTraceEnd(101, 42)
	drain(t, u)

	require.Len(t, store.objects, 1)
	obj := store.objects[0]
	assert.Equal(t, "traces", obj.bucket)
	assert.Equal(t, "dev/AAAAAAAAABl/trace-1-abc.tmp", obj.key)
	assert.Equal(t, content, string(obj.body))

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, map[string]string{
		"trace-id": "101",
		"crc32":    "42",
		"sha256":   hex.EncodeToString(sum[:]),
	}, obj.metadata)

	assert.Equal(t, upload.Stats{Succeeded: 1}, u.Stats())
	assert.Equal(t, forwarded{starts: 1, ends: 1}, *next)
	assert.FileExists(t, p)
}

func TestUploadSkipped(t *testing.T) {
	tests := map[string]func(u *upload.Uploader, path string){
		"aborted": func(u *upload.Uploader, path string) {
			u.OnTraceStart(7, 0, path)
			u.OnTraceAbort(7, writer.AbortReasonTimeout)
		},
		"unknown trace": func(u *upload.Uploader, path string) {
			u.OnTraceStart(7, 0, path)
			u.OnTraceEnd(8, 0)
		},
		"ended after close": func(u *upload.Uploader, path string) {
			u.OnTraceStart(7, 0, path)
			u.Close()
			u.OnTraceEnd(7, 0)
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			u, err := upload.New(store, upload.Options{Bucket: "b"}, nil)
			require.NoError(t, err)

			tc(u, traceFile(t, "x"))
			drain(t, u)
			assert.Empty(t, store.objects)
			assert.Equal(t, upload.Stats{}, u.Stats())
		})
	}
}

func TestUploadFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("access denied")}
	u, err := upload.New(store, upload.Options{Bucket: "b", RemoveAfterUpload: true}, nil)
	require.NoError(t, err)

	p := traceFile(t, "x")
	u.OnTraceStart(1, 0, p)
	u.OnTraceEnd(1, 0)
	u.OnTraceStart(2, 0, filepath.Join(t.TempDir(), "missing"))
	u.OnTraceEnd(2, 0)
	drain(t, u)

	assert.Equal(t, upload.Stats{Failed: 2}, u.Stats())
	assert.FileExists(t, p)
}

func TestRemoveAfterUpload(t *testing.T) {
	store := &fakeStore{}
	u, err := upload.New(store, upload.Options{Bucket: "b", RemoveAfterUpload: true}, nil)
	require.NoError(t, err)

	p := traceFile(t, "x")
	u.OnTraceStart(1, 0, p)
	u.OnTraceEnd(1, 0)
	drain(t, u)

	require.Len(t, store.objects, 1)
	assert.NoFileExists(t, p)
}

func TestQueueFull(t *testing.T) {
	store := &fakeStore{}
	u, err := upload.New(store, upload.Options{Bucket: "b", QueueSize: 1}, nil)
	require.NoError(t, err)

	p := traceFile(t, "x")
	for id := int64(1); id <= 3; id++ {
		u.OnTraceStart(id, 0, p)
		u.OnTraceEnd(id, 0)
	}
	drain(t, u)

	assert.Len(t, store.objects, 1)
	assert.Equal(t, upload.Stats{Succeeded: 1, Dropped: 2}, u.Stats())
}

func TestRunTwice(t *testing.T) {
	u, err := upload.New(&fakeStore{}, upload.Options{Bucket: "b"}, nil)
	require.NoError(t, err)
	drain(t, u)
	require.ErrorIs(t, u.Run(context.Background()), upload.ErrClosed)
}

func TestRunCanceled(t *testing.T) {
	u, err := upload.New(&fakeStore{}, upload.Options{Bucket: "b"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, u.Run(ctx), context.Canceled)
}

func TestNewWithoutBucket(t *testing.T) {
	_, err := upload.New(&fakeStore{}, upload.Options{}, nil)
	require.ErrorIs(t, err, upload.ErrNoBucket)
}

func TestKey(t *testing.T) {
	u, err := upload.New(&fakeStore{}, upload.Options{Bucket: "b"}, nil)
	require.NoError(t, err)

	key, err := u.Key(64*64-1, "/data/traces/x/file.tmp")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAA__/file.tmp", key)

	_, err = u.Key(-1, "file")
	require.ErrorIs(t, err, writer.ErrNegativeTraceID)
}
