// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller allows periodic calls of functions.
package periodiccaller // import "github.com/facebookarchive/profilo-sub011/periodiccaller"

import (
	"context"
	"time"
)

// Start calls callback every interval until ctx is canceled or the returned
// function is called. The returned function waits for a running callback to
// return.
func Start(ctx context.Context, interval time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
