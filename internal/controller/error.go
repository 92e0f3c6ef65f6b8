// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/facebookarchive/profilo-sub011/internal/controller"

const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitParseError = 2
	// ExitPartial is returned when some dumps could not be recovered.
	ExitPartial = 3
)

// ErrorWithExitCode provides an error with an exit code
// Used to be able to return errors with the exit code the CLI is expected to
// return when exiting.
type ErrorWithExitCode struct {
	error
	code int
}

// NewErrorWithExitCode wraps err with the given exit code.
func NewErrorWithExitCode(err error, code int) ErrorWithExitCode {
	return ErrorWithExitCode{error: err, code: code}
}

func (e ErrorWithExitCode) Code() int {
	return e.code
}

func (e ErrorWithExitCode) Unwrap() error {
	return e.error
}
