// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/facebookarchive/profilo-sub011/internal/controller"

import (
	log "github.com/sirupsen/logrus"
	"github.com/tklauser/numcpus"
)

// recoveryConcurrency returns the number of dumps recovered at once. It is
// never larger than dumps and never smaller than one.
func recoveryConcurrency(configured, dumps int) int {
	n := configured
	if n == 0 {
		online, err := numcpus.GetOnline()
		if err != nil {
			log.Warnf("Failed to read online CPUs: %v", err)
			online = 1
		}
		n = online
	}
	return max(1, min(n, dumps))
}
