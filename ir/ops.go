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

// Typed views over generic operations. Each view is a thin wrapper that
// decodes the operand layout of one operation kind.

// ForOp views an affine.for. Its operands are the lower bound operands
// followed by the upper bound operands.
type ForOp struct {
	m  *Module
	Op *Operation
}

// AsFor returns a ForOp view if op is an affine.for.
func AsFor(m *Module, op *Operation) (ForOp, bool) {
	if op == nil || op.kind != OpAffineFor {
		return ForOp{}, false
	}
	return ForOp{m: m, Op: op}, true
}

// LowerBound returns the lower bound map.
func (f ForOp) LowerBound() AffineMap { return mapAttr(f.Op, AttrLowerBound) }

// UpperBound returns the upper bound map.
func (f ForOp) UpperBound() AffineMap { return mapAttr(f.Op, AttrUpperBound) }

// LowerBoundOperands returns the symbol operands of the lower bound map.
func (f ForOp) LowerBoundOperands() []ValueID {
	return f.Op.operands[:f.LowerBound().NumOperands()]
}

// UpperBoundOperands returns the symbol operands of the upper bound map.
func (f ForOp) UpperBoundOperands() []ValueID {
	return f.Op.operands[f.LowerBound().NumOperands():]
}

// Step returns the loop step.
func (f ForOp) Step() int64 {
	if a, ok := f.Op.attrs[AttrStep].(IntegerAttr); ok {
		return a.Value
	}
	return 1
}

// Body returns the loop body block.
func (f ForOp) Body() *Block { return f.Op.regions[0] }

// InductionVar returns the loop induction variable.
func (f ForOp) InductionVar() ValueID { return f.Op.regions[0].args[0] }

func mapAttr(op *Operation, name string) AffineMap {
	if a, ok := op.attrs[name].(AffineMapAttr); ok {
		return a.Map
	}
	return AffineMap{}
}

// LoadOp views an affine.load: operands are [memref, indices...].
type LoadOp struct{ Op *Operation }

// AsLoad returns a LoadOp view if op is an affine.load.
func AsLoad(op *Operation) (LoadOp, bool) {
	if op == nil || op.kind != OpAffineLoad {
		return LoadOp{}, false
	}
	return LoadOp{Op: op}, true
}

func (l LoadOp) Memref() ValueID    { return l.Op.operands[0] }
func (l LoadOp) Indices() []ValueID { return l.Op.operands[1:] }
func (l LoadOp) Result() ValueID    { return l.Op.results[0] }

// StoreOp views an affine.store: operands are [value, memref, indices...].
type StoreOp struct{ Op *Operation }

// AsStore returns a StoreOp view if op is an affine.store.
func AsStore(op *Operation) (StoreOp, bool) {
	if op == nil || op.kind != OpAffineStore {
		return StoreOp{}, false
	}
	return StoreOp{Op: op}, true
}

func (s StoreOp) Value() ValueID     { return s.Op.operands[0] }
func (s StoreOp) Memref() ValueID    { return s.Op.operands[1] }
func (s StoreOp) Indices() []ValueID { return s.Op.operands[2:] }

// CallOp views a std.call.
type CallOp struct{ Op *Operation }

// AsCall returns a CallOp view if op is a std.call.
func AsCall(op *Operation) (CallOp, bool) {
	if op == nil || op.kind != OpCall {
		return CallOp{}, false
	}
	return CallOp{Op: op}, true
}

// Callee returns the called symbol name.
func (c CallOp) Callee() string {
	if a, ok := c.Op.attrs[AttrCallee].(SymbolRefAttr); ok {
		return a.Name
	}
	return ""
}

// Args returns the call arguments.
func (c CallOp) Args() []ValueID { return c.Op.operands }

// ParallelOp views an affine.parallel with constant bounds.
type ParallelOp struct{ Op *Operation }

// AsParallel returns a ParallelOp view if op is an affine.parallel.
func AsParallel(op *Operation) (ParallelOp, bool) {
	if op == nil || op.kind != OpAffineParallel {
		return ParallelOp{}, false
	}
	return ParallelOp{Op: op}, true
}

func (p ParallelOp) LowerBounds() []int64 { return denseInts(p.Op, AttrLowerBounds) }
func (p ParallelOp) UpperBounds() []int64 { return denseInts(p.Op, AttrUpperBounds) }
func (p ParallelOp) Body() *Block         { return p.Op.regions[0] }

// Steps returns the step of every dimension, defaulting to 1.
func (p ParallelOp) Steps() []int64 {
	steps := denseInts(p.Op, AttrSteps)
	if len(steps) == p.Rank() {
		return steps
	}
	out := make([]int64, p.Rank())
	for i := range out {
		out[i] = 1
	}
	return out
}

// Rank returns the number of parallel dimensions.
func (p ParallelOp) Rank() int { return len(p.Op.regions[0].args) }

func denseInts(op *Operation, name string) []int64 {
	if a, ok := op.attrs[name].(DenseIntAttr); ok {
		return a.Values
	}
	return nil
}

// ConstantValue returns the integer payload of a std.constant defining v.
func ConstantValue(m *Module, v ValueID) (int64, bool) {
	def := m.DefiningOp(v)
	if def == nil || def.kind != OpConstant {
		return 0, false
	}
	a, ok := def.attrs[AttrValue].(IntegerAttr)
	return a.Value, ok
}
