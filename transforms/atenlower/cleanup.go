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

package atenlower

import (
	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// Structural patterns run alongside the operator rules. Cast folding has
// the highest benefit so chains collapse before anything else looks at them.
var (
	foldTypeCastPattern = rewrite.Pattern{
		Name:    "fold-type-cast",
		Root:    ir.OpTypeCast,
		Benefit: 10,
		Rewrite: foldTypeCast,
	}
	fixReturnPattern = rewrite.Pattern{
		Name:    "fix-return",
		Root:    ir.OpReturn,
		Benefit: 1,
		Rewrite: fixReturn,
	}
	normalizeAllocPattern = rewrite.Pattern{
		Name:    "normalize-alloc",
		Root:    ir.OpAlloc,
		Benefit: 1,
		Rewrite: normalizeAlloc,
	}
	lowerParallelPattern = rewrite.Pattern{
		Name:    "lower-affine-parallel",
		Root:    ir.OpAffineParallel,
		Benefit: 1,
		Rewrite: lowerParallel,
	}
	signaturePattern = rewrite.FuncPattern{
		Name:    "convert-signature",
		Rewrite: convertSignature,
	}
)

// foldTypeCast erases a dead cast, forwards an identity cast, and collapses
// a cast of a cast into its source or into a single cast.
func foldTypeCast(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	m := rw.Module()
	result := op.Result(0)
	if !m.HasUses(result) {
		rw.EraseOp(op)
		return true, nil
	}
	in := op.Operand(0)
	want := m.Type(result)
	if ir.Equal(m.Type(in), want) {
		rw.ReplaceOp(op, in)
		return true, nil
	}
	inner := m.DefiningOp(in)
	if inner == nil || inner.Kind() != ir.OpTypeCast {
		return false, nil
	}
	src := inner.Operand(0)
	if ir.Equal(m.Type(src), want) {
		rw.ReplaceOp(op, src)
		return true, nil
	}
	rw.SetInsertionPointBefore(op)
	rw.ReplaceOp(op, rw.TypeCast(src, want))
	return true, nil
}

// fixReturn makes a return hand back the buffers its function declares: an
// operand produced by a cast from exactly the declared result type is
// replaced by the cast's input. No new cast is ever introduced.
func fixReturn(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	m := rw.Module()
	f := m.ParentFunc(op)
	if f == nil {
		return false, nil
	}
	results := f.Type().Results
	if len(results) != op.NumOperands() {
		return false, nil
	}
	operands := append([]ir.ValueID(nil), op.Operands()...)
	changed := false
	for i, v := range operands {
		def := m.DefiningOp(v)
		if def == nil || def.Kind() != ir.OpTypeCast {
			continue
		}
		if src := def.Operand(0); ir.Equal(m.Type(src), results[i]) {
			operands[i] = src
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	rw.SetOperands(op, operands...)
	return true, nil
}

// normalizeAlloc replaces an allocation outside the default memory space
// with one in it.
func normalizeAlloc(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	mt, ok := rw.Module().Type(op.Result(0)).(ir.MemRefType)
	if !ok || mt.MemorySpace == ir.MemorySpaceExternal {
		return false, nil
	}
	rw.SetInsertionPointBefore(op)
	rw.ReplaceOp(op, rw.Alloc(mt.InSpace(ir.MemorySpaceExternal)))
	return true, nil
}

// lowerParallel turns a one-dimensional affine.parallel into one affine.for
// and a two-dimensional one into a loop nest. Other ranks are declined.
func lowerParallel(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	p, _ := ir.AsParallel(op)
	lbs, ubs, steps := p.LowerBounds(), p.UpperBounds(), p.Steps()
	rank := p.Rank()
	if rank < 1 || rank > 2 || len(lbs) != rank || len(ubs) != rank {
		return false, nil
	}

	rw.SetInsertionPointBefore(op)
	ivs := make([]ir.ValueID, rank)
	var body *ir.Block
	for d := range rank {
		loop := rw.ForConst(lbs[d], ubs[d], steps[d])
		ivs[d] = loop.InductionVar()
		body = loop.Body()
		rw.SetInsertionPointBefore(body.Terminator())
	}

	src := p.Body()
	for d, iv := range src.Args() {
		rw.ReplaceAllUsesWith(iv, ivs[d])
	}
	yield := body.Terminator()
	for _, inner := range src.Ops() {
		if inner.Kind() == ir.OpAffineYield {
			continue
		}
		rw.MoveBefore(inner, body, yield)
	}
	rw.EraseOp(op)
	return true, nil
}

// convertSignature retypes a function to its legal signature. Every tensor
// argument becomes a buffer, and a cast back to the tensor type is inserted
// at the top of the body for its existing users.
func convertSignature(rw *rewrite.Rewriter, f *ir.Func) (bool, error) {
	typ := f.Type()
	if IsSignatureLegal(typ) {
		return false, nil
	}
	converted := ConvertSignature(typ)
	m := rw.Module()
	if body := f.Body(); body != nil {
		rw.SetInsertionPointToStart(body)
		for i, arg := range body.Args() {
			old, want := m.Type(arg), converted.Inputs[i]
			if ir.Equal(old, want) {
				continue
			}
			if ir.IsTensor(old) {
				cast := rw.TypeCast(arg, old)
				rw.ReplaceAllUsesExcept(arg, cast, m.DefiningOp(cast))
			}
			rw.UpdateInPlace(func() { m.SetType(arg, want) })
		}
	}
	rw.UpdateInPlace(func() { f.SetType(converted) })
	return true, nil
}

// Materialize bridges a buffer replacement to users still expecting a
// tensor with an aten.type_cast. Other mismatches are left alone.
func Materialize(b *ir.Builder, v ir.ValueID, want ir.Type) ir.ValueID {
	if !ir.IsTensor(want) || ir.Equal(b.Module().Type(v), want) {
		return v
	}
	return b.TypeCast(v, want)
}

// sweep forwards identity casts and erases constants and casts left without
// users. It returns the number of operations erased.
func sweep(m *ir.Module) int {
	erased := 0
	for {
		changed := false
		m.WalkAll(func(op *ir.Operation) bool {
			switch op.Kind() {
			case ir.OpTypeCast:
				if in := op.Operand(0); ir.Equal(m.Type(in), m.Type(op.Result(0))) {
					m.ReplaceAllUsesWith(op.Result(0), in)
				}
			case ir.OpATenConstant:
			default:
				return true
			}
			if m.ResultsUnused(op) {
				m.Erase(op)
				erased++
				changed = true
			}
			return true
		})
		if !changed {
			return erased
		}
	}
}
