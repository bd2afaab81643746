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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// foldOnly runs cast folding alone, with every signature considered legal.
func foldOnly(t *testing.T, m *ir.Module) {
	t.Helper()
	target := rewrite.NewTarget()
	target.AddLegalDialect("std")
	d := &rewrite.Driver{Target: target, Patterns: []rewrite.Pattern{foldTypeCastPattern}}
	_, err := d.Run(m)
	require.NoError(t, err)
}

func TestFoldCastRoundTrip(t *testing.T) {
	buf := ir.NewMemRef(ir.F32, 4)
	m, f, b := newGraph(t, []ir.Type{buf}, []ir.Type{buf})
	toTensor := b.TypeCast(f.Body().Arg(0), ir.NewTensor(ir.F32, 4))
	back := b.TypeCast(toTensor, buf)
	b.Return(back)

	foldOnly(t, m)
	want := `module {
  func @graph(%arg0: memref<4xf32>) -> memref<4xf32> {
    "std.return"(%arg0) : (memref<4xf32>) -> ()
  }
}
`
	if diff := cmp.Diff(want, m.String()); diff != "" {
		t.Errorf("fold mismatch (-want +got):\n%s", diff)
	}
}

func TestFoldCastChainFuses(t *testing.T) {
	tensor := ir.NewTensor(ir.F32, 4)
	square := ir.NewMemRef(ir.F32, 2, 2)
	m, f, b := newGraph(t, []ir.Type{tensor}, []ir.Type{square})
	flat := b.TypeCast(f.Body().Arg(0), ir.NewMemRef(ir.F32, 4))
	reshaped := b.TypeCast(flat, square)
	b.Return(reshaped)

	foldOnly(t, m)
	want := `module {
  func @graph(%arg0: tensor<4xf32>) -> memref<2x2xf32> {
    %0 = "aten.type_cast"(%arg0) : (tensor<4xf32>) -> memref<2x2xf32>
    "std.return"(%0) : (memref<2x2xf32>) -> ()
  }
}
`
	if diff := cmp.Diff(want, m.String()); diff != "" {
		t.Errorf("fold mismatch (-want +got):\n%s", diff)
	}
}

func TestFoldIdentityAndDeadCasts(t *testing.T) {
	buf := ir.NewMemRef(ir.F32, 4)
	m, f, b := newGraph(t, []ir.Type{buf}, []ir.Type{buf})
	arg := f.Body().Arg(0)
	b.TypeCast(arg, ir.NewTensor(ir.F32, 4))
	same := b.TypeCast(arg, buf)
	b.Return(same)

	foldOnly(t, m)
	body := f.Body()
	require.Equal(t, 1, body.Len())
	assert.Equal(t, arg, body.Terminator().Operand(0))
}

func TestFixReturnNeverAddsCasts(t *testing.T) {
	tensor := ir.NewTensor(ir.F32, 4)
	buf := ir.NewMemRef(ir.F32, 4)
	m, f, b := newGraph(t, []ir.Type{buf}, []ir.Type{buf})
	b.Return(b.TypeCast(f.Body().Arg(0), tensor))

	d := &rewrite.Driver{
		Target:   NewTarget(),
		Patterns: []rewrite.Pattern{fixReturnPattern},
	}
	_, err := d.Run(m)
	require.NoError(t, err)
	assert.Equal(t, f.Body().Arg(0), f.Body().Terminator().Operand(0))

	// A mismatching cast is left alone and the return stays illegal.
	m, f, b = newGraph(t, []ir.Type{ir.NewMemRef(ir.F32, 8)}, []ir.Type{buf})
	b.Return(b.TypeCast(f.Body().Arg(0), tensor))
	before := f.Body().Len()
	_, err = d.Run(m)
	assert.ErrorIs(t, err, rewrite.ErrLegalizationFailed)
	assert.Equal(t, before, f.Body().Len())
}

func TestNormalizeAlloc(t *testing.T) {
	m, f, b := newGraph(t, nil, nil)
	l2 := ir.NewMemRef(ir.F32, 32).InSpace(ir.MemorySpaceL2)
	v := b.Alloc(l2)
	b.Store(b.ConstantFloat(0, ir.F32), v, b.ConstantIndex(0))
	b.Return()

	stats, err := Run(m)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Applied["normalize-alloc"])

	var allocs []ir.Type
	m.WalkFunc(f, func(op *ir.Operation) bool {
		if op.Kind() == ir.OpAlloc {
			allocs = append(allocs, m.Type(op.Result(0)))
		}
		return true
	})
	require.Len(t, allocs, 1)
	assert.Equal(t, "memref<32xf32>", allocs[0].String())
}

func TestLowerParallel2D(t *testing.T) {
	buf := ir.NewMemRef(ir.F32, 4, 8)
	m, f, b := newGraph(t, []ir.Type{buf, buf}, nil)
	par := b.Parallel([]int64{0, 0}, []int64{4, 8})
	body := par.Region(0)
	b.SetInsertionPointBefore(body.Terminator())
	v := b.Load(f.Body().Arg(0), body.Arg(0), body.Arg(1))
	b.Store(v, f.Body().Arg(1), body.Arg(0), body.Arg(1))
	b.SetInsertionPointToEnd(f.Body())
	b.Return()

	stats, err := Run(m)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Applied["lower-affine-parallel"])

	want := `module {
  func @graph(%arg0: memref<4x8xf32>, %arg1: memref<4x8xf32>) {
    "affine.for"() ({
    ^bb0(%arg2: index):
      "affine.for"() ({
      ^bb0(%arg3: index):
        %0 = "affine.load"(%arg0, %arg2, %arg3) : (memref<4x8xf32>, index, index) -> f32
        "affine.store"(%0, %arg1, %arg2, %arg3) : (f32, memref<4x8xf32>, index, index) -> ()
        "affine.yield"() : () -> ()
      }) {lower_bound = () -> (0), step = 1 : index, upper_bound = () -> (8)} : () -> ()
      "affine.yield"() : () -> ()
    }) {lower_bound = () -> (0), step = 1 : index, upper_bound = () -> (4)} : () -> ()
    "std.return"() : () -> ()
  }
}
`
	if diff := cmp.Diff(want, m.String()); diff != "" {
		t.Errorf("parallel lowering mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerParallel1D(t *testing.T) {
	buf := ir.NewMemRef(ir.F32, 16)
	m, f, b := newGraph(t, []ir.Type{buf, buf}, nil)
	par := b.Parallel([]int64{2}, []int64{16})
	body := par.Region(0)
	b.SetInsertionPointBefore(body.Terminator())
	b.Store(b.Load(f.Body().Arg(0), body.Arg(0)), f.Body().Arg(1), body.Arg(0))
	b.SetInsertionPointToEnd(f.Body())
	b.Return()

	_, err := Run(m)
	require.NoError(t, err)
	loop, ok := ir.AsFor(m, f.Body().Front())
	require.True(t, ok)
	assert.Equal(t, int64(2), loop.LowerBound().ConstantFold())
	assert.Equal(t, int64(16), loop.UpperBound().ConstantFold())
	ops := loop.Body().Ops()
	require.Len(t, ops, 3)
	load, ok := ir.AsLoad(ops[0])
	require.True(t, ok)
	assert.Equal(t, []ir.ValueID{loop.InductionVar()}, load.Indices())
}

func TestLowerParallel3DFails(t *testing.T) {
	m, _, b := newGraph(t, nil, nil)
	b.Parallel([]int64{0, 0, 0}, []int64{2, 2, 2})
	b.Return()

	_, err := Run(m)
	assert.ErrorIs(t, err, rewrite.ErrLegalizationFailed)
	assert.Contains(t, err.Error(), "affine.parallel")
}

func TestSweep(t *testing.T) {
	buf := ir.NewMemRef(ir.F32, 4)
	m, f, b := newGraph(t, []ir.Type{buf}, []ir.Type{buf})
	arg := f.Body().Arg(0)
	b.ATenConstant(ir.IntegerAttr{Value: 3, Type: ir.I32}, ir.I32)
	dead := b.TypeCast(arg, ir.NewTensor(ir.F32, 4))
	b.TypeCast(dead, ir.NewTensor(ir.F32, 2, 2))
	b.Return(b.TypeCast(arg, buf))

	assert.Equal(t, 4, sweep(m))
	require.Equal(t, 1, f.Body().Len())
	assert.Equal(t, arg, f.Body().Terminator().Operand(0))
}
