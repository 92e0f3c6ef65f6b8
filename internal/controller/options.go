// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/facebookarchive/profilo-sub011/internal/controller"

import (
	"github.com/facebookarchive/profilo-sub011/upload"
	"github.com/facebookarchive/profilo-sub011/writer"
)

type Option interface {
	applyOption(*Controller) *Controller
}
type controllerOptionFunc func(*Controller) *Controller

func (f controllerOptionFunc) applyOption(c *Controller) *Controller {
	return f(c)
}

// WithCallbacks adds a receiver of trace outcomes next to the logging
// reporter.
func WithCallbacks(cb writer.TraceCallbacks) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.callbacks = append(c.callbacks, cb)
		return c
	})
}

// WithUploadClient sets the object store client used for uploads instead of
// an S3 client built from the default AWS configuration.
func WithUploadClient(client upload.PutObjectAPI) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.uploadClient = client
		return c
	})
}
