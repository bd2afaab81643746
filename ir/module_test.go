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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFunc(t *testing.T, inputs, results []Type) (*Module, *Func, *Builder) {
	t.Helper()
	m := NewModule()
	f, err := m.AddFunc("graph", FunctionType{Inputs: inputs, Results: results})
	require.NoError(t, err)
	b := NewBuilder(m)
	b.SetInsertionPointToEnd(f.Body())
	return m, f, b
}

func TestSymbolTable(t *testing.T) {
	m := NewModule()
	_, err := m.AddFunc("graph", FunctionType{})
	require.NoError(t, err)
	decl, err := m.DeclareFunc("ext", FunctionType{Inputs: []Type{I32}})
	require.NoError(t, err)
	assert.True(t, decl.IsDeclaration())
	assert.Same(t, decl, m.Lookup("ext"))
	assert.Nil(t, m.Lookup("missing"))

	_, err = m.DeclareFunc("ext", FunctionType{})
	assert.True(t, errors.Is(err, ErrSymbolExists))
	_, err = m.AddFunc("graph", FunctionType{})
	assert.True(t, errors.Is(err, ErrSymbolExists))
	assert.Len(t, m.Funcs(), 2)
}

func TestUseLists(t *testing.T) {
	tensor := NewTensor(F32, 4)
	m, f, b := newTestFunc(t, []Type{tensor, tensor}, []Type{tensor})
	x, y := f.Body().Arg(0), f.Body().Arg(1)
	relu := b.Create(OpReLU, []ValueID{x}, []Type{tensor}, nil)
	ret := b.Return(relu.Result(0))

	assert.Equal(t, []Use{{Op: relu.ID(), Index: 0}}, m.Uses(x))
	assert.True(t, m.IsBlockArg(x))
	assert.Same(t, relu, m.DefiningOp(relu.Result(0)))
	assert.Same(t, ret, f.Body().Terminator())

	m.ReplaceAllUsesWith(x, y)
	assert.False(t, m.HasUses(x))
	assert.Equal(t, y, relu.Operand(0))
	assert.Equal(t, 1, m.NumUses(y))

	m.SetOperand(ret, 0, y)
	assert.False(t, m.HasUses(relu.Result(0)))
	assert.Equal(t, 2, m.NumUses(y))

	m.Erase(relu)
	assert.Nil(t, m.Op(relu.ID()))
	assert.Equal(t, 1, m.NumUses(y))
	assert.Equal(t, 1, f.Body().Len())
}

func TestReplaceAllUsesExcept(t *testing.T) {
	tensor := NewTensor(F32, 4)
	m, f, b := newTestFunc(t, []Type{tensor}, []Type{tensor})
	x := f.Body().Arg(0)
	cast := b.TypeCast(x, NewMemRef(F32, 4))
	back := b.Create(OpTypeCast, []ValueID{cast}, []Type{tensor}, nil)
	ret := b.Return(x)

	m.ReplaceAllUsesExcept(x, back.Result(0), m.DefiningOp(cast).ID())
	assert.Equal(t, x, m.DefiningOp(cast).Operand(0))
	assert.Equal(t, back.Result(0), ret.Operand(0))
}

func TestErasePanicsOnLiveResult(t *testing.T) {
	tensor := NewTensor(F32, 4)
	m, f, b := newTestFunc(t, []Type{tensor}, []Type{tensor})
	relu := b.Create(OpReLU, []ValueID{f.Body().Arg(0)}, []Type{tensor}, nil)
	b.Return(relu.Result(0))
	assert.Panics(t, func() { m.Erase(relu) })
}

func TestEraseNested(t *testing.T) {
	mem := NewMemRef(F32, 32)
	m, f, b := newTestFunc(t, []Type{mem, mem.InSpace(MemorySpaceL2)}, nil)
	loop := b.ForConst(0, 32, 1)
	b.SetInsertionPointBefore(loop.Body().Terminator())
	v := b.Load(f.Body().Arg(0), loop.InductionVar())
	b.Store(v, f.Body().Arg(1), loop.InductionVar())
	b.SetInsertionPointToEnd(f.Body())
	b.Return()

	require.Equal(t, 5, m.NumOps())
	m.Erase(loop.Op)
	assert.Equal(t, 1, m.NumOps())
	assert.False(t, m.HasUses(f.Body().Arg(0)))
	assert.False(t, m.HasUses(f.Body().Arg(1)))
}

func TestInsertionPoints(t *testing.T) {
	m, f, b := newTestFunc(t, nil, nil)
	ret := b.Return()
	b.SetInsertionPointBefore(ret)
	c1 := b.ConstantIndex(1)
	b.SetInsertionPointToStart(f.Body())
	c0 := b.ConstantIndex(0)
	b.SetInsertionPointAfter(m.DefiningOp(c1))
	c2 := b.ConstantIndex(2)

	var got []int64
	for _, op := range f.Body().Ops() {
		if op.Kind() == OpConstant {
			v, ok := ConstantValue(m, op.Result(0))
			require.True(t, ok)
			got = append(got, v)
		}
	}
	assert.Equal(t, []int64{0, 1, 2}, got)
	assert.Same(t, ret, f.Body().Terminator())
	assert.Equal(t, c0, f.Body().Front().Result(0))
	assert.Equal(t, c2, f.Body().Ops()[2].Result(0))
}

func TestMoveBefore(t *testing.T) {
	m, f, b := newTestFunc(t, nil, nil)
	loop := b.ForConst(0, 4, 1)
	b.SetInsertionPointToEnd(f.Body())
	c := b.ConstantIndex(7)
	b.Return()

	m.MoveBefore(m.DefiningOp(c), loop.Body(), loop.Body().Terminator())
	assert.Equal(t, 2, f.Body().Len())
	assert.Equal(t, OpConstant, loop.Body().Front().Kind())
	assert.Same(t, f, m.ParentFunc(m.DefiningOp(c)))
	assert.True(t, m.IsProperAncestor(loop.Op, m.DefiningOp(c)))
	assert.True(t, m.DefinedInside(c, loop.Op))
	assert.True(t, m.DefinedInside(loop.InductionVar(), loop.Op))
}

func TestWalkSkipsErased(t *testing.T) {
	tensor := NewTensor(F32, 4)
	m, f, b := newTestFunc(t, []Type{tensor}, nil)
	b.ATenConstant(IntegerAttr{Value: 1, Type: I32}, I32)
	b.ConstantIndex(0)
	b.Return()

	var visited []OpKind
	m.WalkFunc(f, func(op *Operation) bool {
		visited = append(visited, op.Kind())
		if op.Kind() == OpATenConstant {
			m.Erase(m.Op(op.ID()))
			b.SetInsertionPointToStart(f.Body())
			b.ConstantIndex(9)
		}
		return true
	})
	assert.Equal(t, []OpKind{OpATenConstant, OpConstant, OpReturn}, visited)
}
