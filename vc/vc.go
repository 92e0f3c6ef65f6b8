// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "github.com/facebookarchive/profilo-sub011/vc"

import "fmt"

// Set at link time with -ldflags "-X github.com/facebookarchive/profilo-sub011/vc.version=...".
var (
	revision       = ""
	buildTimestamp = ""
	version        = "dev"
)

// Revision returns the source revision of the build.
func Revision() string {
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return buildTimestamp
}

// Version returns the release version.
func Version() string {
	return version
}

// String summarizes the build information in one line.
func String() string {
	return fmt.Sprintf("%s (revision %s, build timestamp %s)",
		version, revision, buildTimestamp)
}
