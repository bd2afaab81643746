// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package airdma lifts affine copy loops between external memory and L2
// into AIR block transfers.
//
// Inside the entry function, a loop such as
//
//	affine.for %i = 0 to 32 {
//	  %v = affine.load %a[%i] : memref<32xf32>
//	  affine.store %v, %b[%i] : memref<32xf32, 1>
//	}
//
// becomes one air.shim_dma_memcpy(%a, %b, srcIdx, 0, dstIdx, 0, 32), and
// calls to the generic acap_L2_dma_copy helpers are rewritten to their
// per-argument-position specializations.
package airdma

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/atenlower"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// PassName is the registered name of the DMA synthesis pass.
const PassName = "affine-to-air"

// DefaultEntry is the function the pass rewrites.
const DefaultEntry = "graph"

// ErrMissingEntry is returned when the module has no entry function.
var ErrMissingEntry = errors.New("entry function not found")

// Stats summarizes one run of the pass.
type Stats struct {
	Iterations int

	// Transfers counts the copy loops replaced by a DMA operation.
	Transfers int

	// Specialized counts the helper calls rewritten.
	Specialized int

	// Declared lists the specialized helpers declared, in order.
	Declared []string
}

type options struct {
	log   *zap.Logger
	entry string
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithEntry sets the name of the function to rewrite.
func WithEntry(name string) Option {
	return func(o *options) { o.entry = name }
}

// Run rewrites the entry function of m in place. Loops that do not match
// the copy idiom and calls to other functions are left untouched.
func Run(m *ir.Module, opts ...Option) (Stats, error) {
	o := options{log: zap.NewNop(), entry: DefaultEntry}
	for _, opt := range opts {
		opt(&o)
	}
	if f := m.Lookup(o.entry); f == nil || f.IsDeclaration() {
		return Stats{}, errors.Wrapf(ErrMissingEntry, "%s: no function @%s", PassName, o.entry)
	}

	reg := atenlower.NewRegistry(m, o.log)
	d := &rewrite.Driver{
		Target: rewrite.NewTarget(),
		Patterns: []rewrite.Pattern{
			copyLoopPattern(o.entry, o.log),
			specializePattern(o.entry, reg),
		},
		Logger: o.log,
	}
	rs, err := d.Run(m)
	stats := Stats{
		Iterations:  rs.Iterations,
		Transfers:   rs.Applied["copy-loop-to-dma"],
		Specialized: rs.Applied["specialize-dma-helper"],
		Declared:    reg.Created(),
	}
	if err != nil {
		return stats, errors.Wrap(err, PassName)
	}
	o.log.Info("lifted copies to AIR",
		zap.String("entry", o.entry),
		zap.Int("transfers", stats.Transfers),
		zap.Int("specialized", stats.Specialized))
	return stats, nil
}
