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

package ir

import (
	"slices"
)

// Builder creates operations at an insertion point. The zero insertion
// point appends to the end of a block; SetInsertionPointBefore inserts in
// front of an existing operation.
type Builder struct {
	m      *Module
	block  *Block
	before OpID

	// OnCreate, when set, is called for every operation the builder creates.
	// The rewriter uses it to track ops created by a pattern.
	OnCreate func(*Operation)
}

// NewBuilder returns a builder for m with no insertion point.
func NewBuilder(m *Module) *Builder {
	return &Builder{m: m, before: NoOp}
}

// Module returns the module the builder creates operations in.
func (b *Builder) Module() *Module { return b.m }

// Block returns the current insertion block.
func (b *Builder) Block() *Block { return b.block }

// SetInsertionPointBefore makes new operations go right before op.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	b.block = op.parent
	b.before = op.id
}

// SetInsertionPointAfter makes new operations go right after op.
func (b *Builder) SetInsertionPointAfter(op *Operation) {
	b.block = op.parent
	i := op.parent.indexOf(op.id)
	if i+1 < len(op.parent.ops) {
		b.before = op.parent.ops[i+1]
	} else {
		b.before = NoOp
	}
}

// SetInsertionPointToEnd appends new operations to blk.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.block = blk
	b.before = NoOp
}

// SetInsertionPointToStart makes new operations go at the front of blk.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	b.block = blk
	if len(blk.ops) > 0 {
		b.before = blk.ops[0]
	} else {
		b.before = NoOp
	}
}

// Create inserts a new operation at the insertion point.
func (b *Builder) Create(kind OpKind, operands []ValueID, resultTypes []Type, attrs Attrs) *Operation {
	return b.CreateWithRegions(kind, operands, resultTypes, attrs, nil)
}

// CreateWithRegions is Create for operations owning regions: one empty
// block is created per entry of regionArgs, with those argument types.
func (b *Builder) CreateWithRegions(kind OpKind, operands []ValueID, resultTypes []Type, attrs Attrs, regionArgs [][]Type) *Operation {
	m := b.m
	op := &Operation{
		id:       OpID(len(m.ops)),
		kind:     kind,
		operands: slices.Clone(operands),
		attrs:    attrs.Clone(),
		parent:   b.block,
	}
	m.ops = append(m.ops, op)
	for i, t := range resultTypes {
		op.results = append(op.results, m.newValue(t, op.id, i, nil))
	}
	for i, v := range op.operands {
		m.values[v].uses = append(m.values[v].uses, Use{Op: op.id, Index: i})
	}
	var fn *Func
	if b.block != nil {
		fn = b.block.fn
	}
	for _, args := range regionArgs {
		op.regions = append(op.regions, m.newBlock(fn, op.id, args))
	}
	if b.block != nil {
		if i := b.block.indexOf(b.before); b.before != NoOp && i >= 0 {
			b.block.ops = slices.Insert(b.block.ops, i, op.id)
		} else {
			b.block.ops = append(b.block.ops, op.id)
		}
	}
	if b.OnCreate != nil {
		b.OnCreate(op)
	}
	return op
}

// ConstantInt creates a std.constant holding an integer of type t.
func (b *Builder) ConstantInt(v int64, t Type) ValueID {
	return b.Create(OpConstant, nil, []Type{t}, Attrs{AttrValue: IntegerAttr{Value: v, Type: t}}).Result(0)
}

// ConstantIndex creates a std.constant of index type.
func (b *Builder) ConstantIndex(v int64) ValueID {
	return b.ConstantInt(v, Index)
}

// ConstantFloat creates a std.constant holding a float of type t.
func (b *Builder) ConstantFloat(v float64, t Type) ValueID {
	return b.Create(OpConstant, nil, []Type{t}, Attrs{AttrValue: FloatAttr{Value: v, Type: t}}).Result(0)
}

// ATenConstant creates an aten.constant with payload attr and result type t.
func (b *Builder) ATenConstant(attr Attribute, t Type) ValueID {
	return b.Create(OpATenConstant, nil, []Type{t}, Attrs{AttrValue: attr}).Result(0)
}

// TypeCast creates an aten.type_cast of v to t.
func (b *Builder) TypeCast(v ValueID, t Type) ValueID {
	return b.Create(OpTypeCast, []ValueID{v}, []Type{t}, nil).Result(0)
}

// Call creates a std.call to callee, with result types taken from its
// signature.
func (b *Builder) Call(callee *Func, args ...ValueID) *Operation {
	return b.Create(OpCall, args, callee.typ.Results, Attrs{AttrCallee: SymbolRefAttr{Name: callee.name}})
}

// Return creates a std.return terminator.
func (b *Builder) Return(vs ...ValueID) *Operation {
	return b.Create(OpReturn, vs, nil, nil)
}

// Alloc creates a std.alloc of a buffer of type t.
func (b *Builder) Alloc(t MemRefType) ValueID {
	return b.Create(OpAlloc, nil, []Type{t}, nil).Result(0)
}

// For creates an affine.for loop. The body block has the induction variable
// as its only argument and already ends in an affine.yield; build the body
// with SetInsertionPointBefore(loop.Body().Terminator()).
func (b *Builder) For(lb, ub AffineMap, lbOperands, ubOperands []ValueID, step int64) ForOp {
	operands := append(slices.Clone(lbOperands), ubOperands...)
	op := b.CreateWithRegions(OpAffineFor, operands, nil, Attrs{
		AttrLowerBound: AffineMapAttr{Map: lb},
		AttrUpperBound: AffineMapAttr{Map: ub},
		AttrStep:       IntegerAttr{Value: step, Type: Index},
	}, [][]Type{{Index}})
	b.yieldInto(op.regions[0])
	return ForOp{m: b.m, Op: op}
}

// ForConst creates an affine.for with constant bounds lb..ub.
func (b *Builder) ForConst(lb, ub, step int64) ForOp {
	return b.For(ConstantMap(lb), ConstantMap(ub), nil, nil, step)
}

// Parallel creates an affine.parallel with constant bounds and unit steps.
// The body block has one index argument per dimension and ends in an
// affine.yield.
func (b *Builder) Parallel(lbs, ubs []int64) *Operation {
	args := make([]Type, len(ubs))
	steps := make([]int64, len(ubs))
	for i := range args {
		args[i] = Index
		steps[i] = 1
	}
	op := b.CreateWithRegions(OpAffineParallel, nil, nil, Attrs{
		AttrLowerBounds: DenseIntAttr{Values: slices.Clone(lbs)},
		AttrUpperBounds: DenseIntAttr{Values: slices.Clone(ubs)},
		AttrSteps:       DenseIntAttr{Values: steps},
	}, [][]Type{args})
	b.yieldInto(op.regions[0])
	return op
}

func (b *Builder) yieldInto(blk *Block) {
	saved := *b
	b.SetInsertionPointToEnd(blk)
	b.Yield()
	b.block, b.before = saved.block, saved.before
}

// Load creates an affine.load of memref at the given indices.
func (b *Builder) Load(memref ValueID, indices ...ValueID) ValueID {
	elem := ElementType(b.m.Type(memref))
	operands := append([]ValueID{memref}, indices...)
	return b.Create(OpAffineLoad, operands, []Type{elem}, nil).Result(0)
}

// Store creates an affine.store of value into memref at the given indices.
func (b *Builder) Store(value, memref ValueID, indices ...ValueID) *Operation {
	operands := append([]ValueID{value, memref}, indices...)
	return b.Create(OpAffineStore, operands, nil, nil)
}

// Apply creates an affine.apply evaluating m over the symbol operands.
func (b *Builder) Apply(m AffineMap, operands ...ValueID) ValueID {
	return b.Create(OpAffineApply, operands, []Type{Index}, Attrs{AttrMap: AffineMapAttr{Map: m}}).Result(0)
}

// Yield creates an affine.yield terminator.
func (b *Builder) Yield() *Operation {
	return b.Create(OpAffineYield, nil, nil, nil)
}

// ShimDmaMemcpy creates an air.shim_dma_memcpy with the given operands.
func (b *Builder) ShimDmaMemcpy(operands ...ValueID) *Operation {
	return b.Create(OpShimDmaMemcpy, operands, nil, nil)
}
