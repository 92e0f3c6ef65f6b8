// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package logger // import "github.com/facebookarchive/profilo-sub011/logger"

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MaxProviders is the number of distinct providers a registry can assign.
const MaxProviders = 32

// ErrTooManyProviders is returned when a registry has no free bit left.
var ErrTooManyProviders = errors.New("too many providers")

// Providers is the set of currently enabled event providers, one bit each.
type Providers struct {
	enabled atomic.Uint32
}

// Enable adds the providers in mask to the enabled set.
func (p *Providers) Enable(mask uint32) {
	p.enabled.Or(mask)
}

// Disable removes the providers in mask from the enabled set.
func (p *Providers) Disable(mask uint32) {
	p.enabled.And(^mask)
}

// Set replaces the enabled set.
func (p *Providers) Set(mask uint32) {
	p.enabled.Store(mask)
}

// Enabled reports whether any provider in mask is enabled.
func (p *Providers) Enabled(mask uint32) bool {
	return p.enabled.Load()&mask != 0
}

// Mask returns the enabled set.
func (p *Providers) Mask() uint32 {
	return p.enabled.Load()
}

// ProvidersRegistry assigns provider bits to names.
type ProvidersRegistry struct {
	mu    sync.Mutex
	names map[string]uint32
}

// NewProvidersRegistry returns a registry with the given names registered in
// order.
func NewProvidersRegistry(names ...string) (*ProvidersRegistry, error) {
	r := &ProvidersRegistry{names: make(map[string]uint32)}
	for _, name := range names {
		if _, err := r.Register(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register returns the bit of name, assigning the next free one on first use.
func (r *ProvidersRegistry) Register(name string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bit, ok := r.names[name]; ok {
		return bit, nil
	}
	if len(r.names) >= MaxProviders {
		return 0, fmt.Errorf("%w: cannot register %q", ErrTooManyProviders, name)
	}
	bit := uint32(1) << len(r.names)
	r.names[name] = bit
	return bit, nil
}

// MaskFor returns the combined bits of the given names. Unknown names are
// ignored.
func (r *ProvidersRegistry) MaskFor(names ...string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mask uint32
	for _, name := range names {
		mask |= r.names[name]
	}
	return mask
}

// ParseMask returns the bits for a comma separated list of names.
func (r *ProvidersRegistry) ParseMask(list string) uint32 {
	var names []string
	for name := range strings.SplitSeq(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return r.MaskFor(names...)
}

// Names returns the sorted names whose bits are set in mask.
func (r *ProvidersRegistry) Names(mask uint32) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for name, bit := range r.names {
		if mask&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
