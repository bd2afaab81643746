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

package rewrite

import (
	"github.com/pkg/errors"

	"github.com/ajroetker/go-atenair/ir"
)

// Materializer bridges a type mismatch when a value of one type replaces a
// value of another. It builds at the builder's insertion point and returns
// the value to use in place of v, or v itself when no bridge is needed.
type Materializer func(b *ir.Builder, v ir.ValueID, want ir.Type) ir.ValueID

// Rewriter is handed to patterns. New operations are created immediately
// through the embedded Builder; every change to pre-existing IR (replace,
// erase, move, retype) is recorded and only applied when the pattern
// succeeds. On decline or error the created operations are erased again,
// so a pattern either fully applies or leaves no trace.
//
// Patterns must not mutate pre-existing operations through the Module
// directly.
type Rewriter struct {
	*ir.Builder

	m           *ir.Module
	materialize Materializer
	created     []*ir.Operation
	pending     []func()
	err         error
}

func newRewriter(m *ir.Module, materialize Materializer) *Rewriter {
	rw := &Rewriter{m: m, materialize: materialize}
	rw.Builder = ir.NewBuilder(m)
	rw.Builder.OnCreate = func(op *ir.Operation) {
		rw.created = append(rw.created, op)
	}
	return rw
}

// Module returns the module being rewritten.
func (rw *Rewriter) Module() *ir.Module { return rw.m }

// ReplaceOp replaces every result of op with the corresponding value and
// erases op. Where a replacement's type differs from the result type, the
// driver's materializer may insert a bridging operation.
func (rw *Rewriter) ReplaceOp(op *ir.Operation, values ...ir.ValueID) {
	if len(values) != op.NumResults() {
		rw.fail(errors.Errorf("replacing %s: %d values for %d results", op, len(values), op.NumResults()))
		return
	}
	rw.pending = append(rw.pending, func() {
		b := ir.NewBuilder(rw.m)
		b.SetInsertionPointBefore(op)
		for i, r := range op.Results() {
			v := values[i]
			if rw.materialize != nil && !ir.Equal(rw.m.Type(v), rw.m.Type(r)) {
				v = rw.materialize(b, v, rw.m.Type(r))
			}
			rw.m.ReplaceAllUsesWith(r, v)
		}
		rw.m.Erase(op)
	})
}

// EraseOp erases op, which must have no remaining uses by then.
func (rw *Rewriter) EraseOp(op *ir.Operation) {
	rw.pending = append(rw.pending, func() {
		if rw.m.Op(op.ID()) != nil {
			rw.m.Erase(op)
		}
	})
}

// ReplaceAllUsesWith redirects every use of from to to.
func (rw *Rewriter) ReplaceAllUsesWith(from, to ir.ValueID) {
	rw.pending = append(rw.pending, func() {
		rw.m.ReplaceAllUsesWith(from, to)
	})
}

// ReplaceAllUsesExcept redirects every use of from, except those by
// except, to to.
func (rw *Rewriter) ReplaceAllUsesExcept(from, to ir.ValueID, except *ir.Operation) {
	rw.pending = append(rw.pending, func() {
		rw.m.ReplaceAllUsesExcept(from, to, except.ID())
	})
}

// SetOperands replaces the operand list of op.
func (rw *Rewriter) SetOperands(op *ir.Operation, values ...ir.ValueID) {
	rw.pending = append(rw.pending, func() {
		rw.m.SetOperands(op, values)
	})
}

// MoveBefore moves op into dst before the operation before (nil = end).
func (rw *Rewriter) MoveBefore(op *ir.Operation, dst *ir.Block, before *ir.Operation) {
	rw.pending = append(rw.pending, func() {
		rw.m.MoveBefore(op, dst, before)
	})
}

// UpdateInPlace records an arbitrary in-place update of existing IR, such
// as retyping a value or a function signature.
func (rw *Rewriter) UpdateInPlace(fn func()) {
	rw.pending = append(rw.pending, fn)
}

// Created returns the operations created so far in this transaction.
func (rw *Rewriter) Created() []*ir.Operation { return rw.created }

func (rw *Rewriter) fail(err error) {
	if rw.err == nil {
		rw.err = err
	}
}

func (rw *Rewriter) commit() {
	rw.Builder.OnCreate = nil
	for _, fn := range rw.pending {
		fn()
	}
	rw.reset()
}

func (rw *Rewriter) rollback() {
	for i := len(rw.created) - 1; i >= 0; i-- {
		op := rw.created[i]
		if rw.m.Op(op.ID()) == nil {
			continue
		}
		// Users were created later and are already gone; ops nested in a
		// created region went with their parent.
		rw.m.Erase(op)
	}
	rw.reset()
}

func (rw *Rewriter) reset() {
	rw.created = rw.created[:0]
	rw.pending = rw.pending[:0]
	rw.err = nil
	rw.Builder.OnCreate = func(op *ir.Operation) {
		rw.created = append(rw.created, op)
	}
}
