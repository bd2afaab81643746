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

// Package atenlower lowers ATen operators to calls of external functions
// operating on buffers.
//
// Every tensor value becomes a memref in the default memory space, and
// every operator in the ATen catalog becomes a std.call to a declaration
// whose name encodes the operator and its signature:
//
//	%r = "aten.add"(%x, %y, %alpha) : (tensor<4x4xf32>, tensor<4x4xf32>, i64) -> tensor<4x4xf32>
//
// becomes
//
//	%r = "std.call"(%x, %y, %c1) {callee = @add_AtenAcapOp_M4x4xF32_M4x4xF32_M4x4xF32_I32} : ...
//
// The pass runs the operator rules together with type legalization and
// structural cleanup under one fixpoint driver, then sweeps dead constants
// and casts.
package atenlower

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// PassName is the registered name of the lowering pass.
const PassName = "aten-to-std"

// Stats summarizes one run of the pass.
type Stats struct {
	rewrite.Stats

	// Declared lists the external functions created, in order.
	Declared []string

	// Swept counts the constants and casts erased after the fixpoint.
	Swept int
}

type options struct {
	log           *zap.Logger
	extra         []rewrite.Pattern
	maxIterations int
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithExtraPatterns adds patterns that run next to the built-in rules.
func WithExtraPatterns(patterns ...rewrite.Pattern) Option {
	return func(o *options) { o.extra = append(o.extra, patterns...) }
}

// WithMaxIterations bounds the number of fixpoint sweeps.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// NewTarget returns the legality oracle of the lowering: std, affine and
// air operations are legal except affine.parallel, ATen operators are
// illegal, allocations must be in the default memory space, returns must
// hand back legal types and signatures must be fixed points of Convert.
func NewTarget() *rewrite.Target {
	target := rewrite.NewTarget()
	target.AddLegalDialect("std", "affine", "air")
	target.AddIllegalOp(ir.OpAffineParallel)
	target.AddIllegalWhen(ir.OpKind.IsATenOperator)
	target.AddUnknownOp(ir.OpATenConstant, ir.OpTypeCast)
	target.AddDynamicallyLegalOp(ir.OpAlloc, func(m *ir.Module, op *ir.Operation) bool {
		mt, ok := m.Type(op.Result(0)).(ir.MemRefType)
		return ok && mt.MemorySpace == ir.MemorySpaceExternal
	})
	target.AddDynamicallyLegalOp(ir.OpReturn, func(m *ir.Module, op *ir.Operation) bool {
		return lo.EveryBy(m.Types(op.Operands()), IsLegalType)
	})
	target.FuncLegal = func(f *ir.Func) bool { return IsSignatureLegal(f.Type()) }
	return target
}

// Patterns returns the built-in patterns, with operator rules declaring
// their callees through reg.
func Patterns(reg *Registry) []rewrite.Pattern {
	return append(operatorPatterns(reg),
		foldTypeCastPattern,
		fixReturnPattern,
		normalizeAllocPattern,
		lowerParallelPattern,
	)
}

// Run lowers m in place.
//
// On error m may hold a partially lowered module: every applied rewrite is
// complete, and declarations created before the failure remain.
func Run(m *ir.Module, opts ...Option) (Stats, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	reg := NewRegistry(m, o.log)
	d := &rewrite.Driver{
		Target:        NewTarget(),
		Patterns:      append(Patterns(reg), o.extra...),
		FuncPatterns:  []rewrite.FuncPattern{signaturePattern},
		Materialize:   Materialize,
		MaxIterations: o.maxIterations,
		Logger:        o.log,
	}
	rs, err := d.Run(m)
	stats := Stats{Stats: rs, Declared: reg.Created()}
	if err != nil {
		return stats, errors.Wrap(err, PassName)
	}
	stats.Swept = sweep(m)
	o.log.Info("lowered aten operators",
		zap.Int("iterations", stats.Iterations),
		zap.Int("applied", stats.Total()),
		zap.Int("declared", len(stats.Declared)),
		zap.Int("swept", stats.Swept))
	return stats, nil
}
