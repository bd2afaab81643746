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

package airdma

import (
	"maps"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// ErrReverseTransfer is returned for a copy loop moving data from L2 back to
// external memory, which has no block-transfer form.
var ErrReverseTransfer = errors.New("L2 to external copy loops are not supported")

// CopyLoop is a matched copy idiom:
//
//	affine.for %i = lb to ub {
//	  %v = affine.load %src[...]      // external memory
//	  affine.store %v, %dst[...]      // L2 memory
//	}
type CopyLoop struct {
	Loop  ir.ForOp
	Load  ir.LoadOp
	Store ir.StoreOp

	// Extent is the number of elements copied, ub - lb. The bounds may be
	// symbolic but must share their symbolic part.
	Extent int64
}

// MatchCopyLoop reports whether op is a copy loop from external memory to
// L2. The body must be exactly one load, one store of the loaded value and
// the terminator; the step must be 1 and ub - lb a positive constant. A
// loop of that shape copying in the other direction is an error; any other
// loop simply does not match.
func MatchCopyLoop(m *ir.Module, op *ir.Operation) (CopyLoop, bool, error) {
	loop, ok := ir.AsFor(m, op)
	if !ok || loop.Step() != 1 {
		return CopyLoop{}, false, nil
	}
	body := loop.Body().Ops()
	if len(body) != 3 || !body[2].Kind().IsTerminator() {
		return CopyLoop{}, false, nil
	}
	load, ok := ir.AsLoad(body[0])
	if !ok {
		return CopyLoop{}, false, nil
	}
	store, ok := ir.AsStore(body[1])
	if !ok || store.Value() != load.Result() {
		return CopyLoop{}, false, nil
	}

	src, srcOK := m.Type(load.Memref()).(ir.MemRefType)
	dst, dstOK := m.Type(store.Memref()).(ir.MemRefType)
	if !srcOK || !dstOK {
		return CopyLoop{}, false, nil
	}
	switch {
	case src.MemorySpace == ir.MemorySpaceExternal && dst.MemorySpace == ir.MemorySpaceL2:
	case src.MemorySpace == ir.MemorySpaceL2 && dst.MemorySpace == ir.MemorySpaceExternal:
		return CopyLoop{}, false, errors.Wrapf(ErrReverseTransfer, "%s copies %s to %s", op, src, dst)
	default:
		return CopyLoop{}, false, nil
	}

	lb, ub := loop.LowerBound(), loop.UpperBound()
	if !maps.Equal(terms(lb, loop.LowerBoundOperands()), terms(ub, loop.UpperBoundOperands())) {
		return CopyLoop{}, false, nil
	}
	extent := ub.ConstantFold() - lb.ConstantFold()
	if extent <= 0 {
		return CopyLoop{}, false, nil
	}
	return CopyLoop{Loop: loop, Load: load, Store: store, Extent: extent}, true, nil
}

// terms returns the symbolic part of a bound map as coefficient per value.
func terms(am ir.AffineMap, operands []ir.ValueID) map[ir.ValueID]int64 {
	out := make(map[ir.ValueID]int64)
	for i, c := range am.Coeffs {
		out[operands[i]] += c
		if out[operands[i]] == 0 {
			delete(out, operands[i])
		}
	}
	return out
}

// outerIndex returns the first index of a copy that is neither defined in
// the loop nor a constant.
func outerIndex(m *ir.Module, loop *ir.Operation, indices []ir.ValueID) (ir.ValueID, bool) {
	for _, v := range indices {
		if m.DefinedInside(v, loop) {
			continue
		}
		if _, isConst := ir.ConstantValue(m, v); isConst {
			continue
		}
		return v, true
	}
	return ir.NoValue, false
}

func copyLoopPattern(entry string, log *zap.Logger) rewrite.Pattern {
	return rewrite.Pattern{
		Name: "copy-loop-to-dma",
		Root: ir.OpAffineFor,
		Rewrite: func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
			m := rw.Module()
			if f := m.ParentFunc(op); f == nil || f.Name() != entry {
				return false, nil
			}
			cp, ok, err := MatchCopyLoop(m, op)
			if !ok || err != nil {
				return false, err
			}

			rw.SetInsertionPointBefore(op)
			consts := make(map[int64]ir.ValueID)
			constant := func(v int64) ir.ValueID {
				if c, ok := consts[v]; ok {
					return c
				}
				consts[v] = rw.ConstantIndex(v)
				return consts[v]
			}
			index := func(indices []ir.ValueID) ir.ValueID {
				if v, ok := outerIndex(m, op, indices); ok {
					return v
				}
				return constant(0)
			}
			srcIdx := index(cp.Load.Indices())
			dstIdx := index(cp.Store.Indices())
			lb := lowerBound(rw, cp.Loop, constant)
			rw.ShimDmaMemcpy(cp.Load.Memref(), cp.Store.Memref(), srcIdx, lb, dstIdx, constant(0), constant(cp.Extent))
			rw.EraseOp(op)

			log.Debug("synthesized DMA transfer",
				zap.String("func", entry),
				zap.Stringer("src", m.Type(cp.Load.Memref())),
				zap.Stringer("dst", m.Type(cp.Store.Memref())),
				zap.Stringer("lower_bound", cp.Loop.LowerBound()),
				zap.Int64("extent", cp.Extent))
			return true, nil
		},
	}
}

// lowerBound materializes the loop's lower bound: a constant for a constant
// map, the operand itself for ()[s0] -> (s0), an affine.apply otherwise.
func lowerBound(rw *rewrite.Rewriter, loop ir.ForOp, constant func(int64) ir.ValueID) ir.ValueID {
	am, operands := loop.LowerBound(), loop.LowerBoundOperands()
	switch {
	case am.IsConstant():
		return constant(am.ConstantFold())
	case am.Equal(ir.SymbolMap(0)):
		return operands[0]
	}
	return rw.Apply(am, operands...)
}
