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
	"testing"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajroetker/go-atenair/ir"
)

var (
	ext32 = ir.NewMemRef(ir.F32, 32)
	l2x32 = ext32.InSpace(ir.MemorySpaceL2)
)

func newFunc(t *testing.T, m *ir.Module, name string, inputs ...ir.Type) (*ir.Func, *ir.Builder) {
	t.Helper()
	f, err := m.AddFunc(name, ir.FunctionType{Inputs: inputs})
	require.NoError(t, err)
	b := ir.NewBuilder(m)
	b.SetInsertionPointToEnd(f.Body())
	return f, b
}

// copyLoop appends "for %i = lb to ub { store(load(src[%i]), dst[%i]) }".
func copyLoop(b *ir.Builder, src, dst ir.ValueID, lb, ub int64) ir.ForOp {
	loop := b.ForConst(lb, ub, 1)
	saved := *b
	b.SetInsertionPointBefore(loop.Body().Terminator())
	v := b.Load(src, loop.InductionVar())
	b.Store(v, dst, loop.InductionVar())
	*b = saved
	return loop
}

func dmaOps(m *ir.Module) []*ir.Operation {
	var out []*ir.Operation
	m.WalkAll(func(op *ir.Operation) bool {
		if op.Kind() == ir.OpShimDmaMemcpy {
			out = append(out, op)
		}
		return true
	})
	return out
}

func TestCopyLoopToDMA(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ext32, l2x32)
	copyLoop(b, f.Body().Arg(0), f.Body().Arg(1), 0, 32)
	b.Return()

	stats, err := Run(m, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Transfers)
	assert.Equal(t, 0, stats.Specialized)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "copy32", []byte(m.String()))
}

func TestCopyLoopBounds(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ir.NewMemRef(ir.F32, 64), l2x32)
	copyLoop(b, f.Body().Arg(0), f.Body().Arg(1), 8, 40)
	b.Return()

	_, err := Run(m)
	require.NoError(t, err)
	dma := dmaOps(m)
	require.Len(t, dma, 1)
	lb, ok := ir.ConstantValue(m, dma[0].Operand(3))
	require.True(t, ok)
	assert.Equal(t, int64(8), lb)
	extent, ok := ir.ConstantValue(m, dma[0].Operand(6))
	require.True(t, ok)
	assert.Equal(t, int64(32), extent)
}

// symbolicCopy appends "for %i = lb[lbArg] to ub[ubArg] step step { store(load(src[%i]), dst[%i]) }".
func symbolicCopy(b *ir.Builder, src, dst ir.ValueID, lb ir.AffineMap, lbArg ir.ValueID, ub ir.AffineMap, ubArg ir.ValueID, step int64) {
	loop := b.For(lb, ub, []ir.ValueID{lbArg}, []ir.ValueID{ubArg}, step)
	saved := *b
	b.SetInsertionPointBefore(loop.Body().Terminator())
	v := b.Load(src, loop.InductionVar())
	b.Store(v, dst, loop.InductionVar())
	*b = saved
}

func TestCopyLoopSymbolicLowerBound(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ir.NewMemRef(ir.F32, 8, 64), l2x32, ir.Index, ir.Index)
	src, dst, row, base := f.Body().Arg(0), f.Body().Arg(1), f.Body().Arg(2), f.Body().Arg(3)
	loop := b.For(ir.SymbolMap(0), ir.SymbolMap(32), []ir.ValueID{base}, []ir.ValueID{base}, 1)
	b.SetInsertionPointBefore(loop.Body().Terminator())
	v := b.Load(src, row, loop.InductionVar())
	b.Store(v, dst, loop.InductionVar())
	b.SetInsertionPointToEnd(f.Body())
	b.Return()

	stats, err := Run(m)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Transfers)
	dma := dmaOps(m)
	require.Len(t, dma, 1)
	assert.Equal(t, row, dma[0].Operand(2))
	assert.Equal(t, base, dma[0].Operand(3))
	extent, ok := ir.ConstantValue(m, dma[0].Operand(6))
	require.True(t, ok)
	assert.Equal(t, int64(32), extent)
	// The destination index and offset share one zero constant.
	assert.Equal(t, dma[0].Operand(4), dma[0].Operand(5))
	zero, ok := ir.ConstantValue(m, dma[0].Operand(5))
	require.True(t, ok)
	assert.Equal(t, int64(0), zero)
}

func TestCopyLoopOffsetLowerBound(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ir.NewMemRef(ir.F32, 64), l2x32, ir.Index)
	base := f.Body().Arg(2)
	symbolicCopy(b, f.Body().Arg(0), f.Body().Arg(1), ir.SymbolMap(4), base, ir.SymbolMap(36), base, 1)
	b.Return()

	_, err := Run(m)
	require.NoError(t, err)
	dma := dmaOps(m)
	require.Len(t, dma, 1)
	apply := m.DefiningOp(dma[0].Operand(3))
	require.NotNil(t, apply)
	assert.Equal(t, ir.OpAffineApply, apply.Kind())
	assert.Equal(t, []ir.ValueID{base}, apply.Operands())
	assert.Equal(t, ir.AffineMapAttr{Map: ir.SymbolMap(4)}, apply.Attr(ir.AttrMap))
	extent, ok := ir.ConstantValue(m, dma[0].Operand(6))
	require.True(t, ok)
	assert.Equal(t, int64(32), extent)
}

func TestCopyLoopBoundsMustAgree(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ir.Builder, src, dst, x, y ir.ValueID)
	}{
		{
			name: "step 2",
			build: func(b *ir.Builder, src, dst, _, _ ir.ValueID) {
				loop := b.ForConst(0, 32, 2)
				saved := *b
				b.SetInsertionPointBefore(loop.Body().Terminator())
				v := b.Load(src, loop.InductionVar())
				b.Store(v, dst, loop.InductionVar())
				*b = saved
			},
		},
		{
			name: "different symbols",
			build: func(b *ir.Builder, src, dst, x, y ir.ValueID) {
				symbolicCopy(b, src, dst, ir.SymbolMap(0), x, ir.SymbolMap(32), y, 1)
			},
		},
		{
			name: "empty range",
			build: func(b *ir.Builder, src, dst, x, _ ir.ValueID) {
				symbolicCopy(b, src, dst, ir.SymbolMap(8), x, ir.SymbolMap(8), x, 1)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule()
			f, b := newFunc(t, m, "graph", ext32, l2x32, ir.Index, ir.Index)
			args := f.Body().Args()
			tt.build(b, args[0], args[1], args[2], args[3])
			b.Return()
			before := m.String()

			stats, err := Run(m)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Transfers)
			assert.Equal(t, before, m.String())
		})
	}
}

func TestCopyLoopUsesOuterIndex(t *testing.T) {
	m := ir.NewModule()
	src := ir.NewMemRef(ir.F32, 8, 32)
	f, b := newFunc(t, m, "graph", src, l2x32, ir.Index)
	row := f.Body().Arg(2)
	loop := b.ForConst(0, 32, 1)
	b.SetInsertionPointBefore(loop.Body().Terminator())
	v := b.Load(f.Body().Arg(0), row, loop.InductionVar())
	b.Store(v, f.Body().Arg(1), loop.InductionVar())
	b.SetInsertionPointToEnd(f.Body())
	b.Return()

	_, err := Run(m)
	require.NoError(t, err)
	dma := dmaOps(m)
	require.Len(t, dma, 1)
	assert.Equal(t, row, dma[0].Operand(2))
	dstIdx, ok := ir.ConstantValue(m, dma[0].Operand(4))
	require.True(t, ok)
	assert.Equal(t, int64(0), dstIdx)
}

func TestCopyLoopStrictness(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ir.Builder, a, l2, l1 ir.ValueID)
	}{
		{
			name: "extra op in body",
			build: func(b *ir.Builder, a, l2, _ ir.ValueID) {
				loop := b.ForConst(0, 32, 1)
				b.SetInsertionPointBefore(loop.Body().Terminator())
				v := b.Load(a, loop.InductionVar())
				b.ConstantIndex(1)
				b.Store(v, l2, loop.InductionVar())
			},
		},
		{
			name: "stored value is not the load",
			build: func(b *ir.Builder, a, l2, _ ir.ValueID) {
				zero := b.ConstantFloat(0, ir.F32)
				loop := b.ForConst(0, 32, 1)
				b.SetInsertionPointBefore(loop.Body().Terminator())
				b.Load(a, loop.InductionVar())
				b.Store(zero, l2, loop.InductionVar())
			},
		},
		{
			name: "store only",
			build: func(b *ir.Builder, _, l2, _ ir.ValueID) {
				zero := b.ConstantFloat(0, ir.F32)
				loop := b.ForConst(0, 32, 1)
				b.SetInsertionPointBefore(loop.Body().Terminator())
				b.Store(zero, l2, loop.InductionVar())
			},
		},
		{
			name: "external to L1",
			build: func(b *ir.Builder, a, _, l1 ir.ValueID) {
				copyLoop(b, a, l1, 0, 32)
			},
		},
		{
			name: "external to external",
			build: func(b *ir.Builder, a, _, _ ir.ValueID) {
				copyLoop(b, a, a, 0, 32)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule()
			f, b := newFunc(t, m, "graph", ext32, l2x32, ext32.InSpace(ir.MemorySpaceL1))
			body := f.Body()
			tt.build(b, body.Arg(0), body.Arg(1), body.Arg(2))
			b.SetInsertionPointToEnd(body)
			b.Return()
			before := m.String()

			stats, err := Run(m)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Transfers)
			assert.Equal(t, before, m.String())
		})
	}
}

func TestReverseTransferFails(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", l2x32, ext32)
	copyLoop(b, f.Body().Arg(0), f.Body().Arg(1), 0, 32)
	b.Return()
	before := m.String()

	_, err := Run(m)
	assert.True(t, errors.Is(err, ErrReverseTransfer), "%v", err)
	assert.Equal(t, before, m.String())
}

func TestMissingEntry(t *testing.T) {
	m := ir.NewModule()
	_, b := newFunc(t, m, "main", ext32, l2x32)
	b.Return()

	_, err := Run(m)
	assert.True(t, errors.Is(err, ErrMissingEntry), "%v", err)

	stats, err := Run(m, WithEntry("main"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Transfers)
}

func TestOnlyEntryIsRewritten(t *testing.T) {
	m := ir.NewModule()
	graph, b := newFunc(t, m, "graph", ext32, l2x32)
	b.Return()
	other, ob := newFunc(t, m, "other", ext32, l2x32)
	copyLoop(ob, other.Body().Arg(0), other.Body().Arg(1), 0, 32)
	ob.Return()

	stats, err := Run(m)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Transfers)
	assert.Equal(t, 1, graph.Body().Len())
	assert.Equal(t, ir.OpAffineFor, other.Body().Front().Kind())
}

func TestSpecializeHelpers(t *testing.T) {
	ext := ir.NewMemRef(ir.F32, 64)
	l2 := ext.InSpace(ir.MemorySpaceL2)
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ir.Index, ext, l2, ir.Index)
	copy0, err := m.DeclareFunc("acap_L2_dma_copy", ir.FunctionType{Inputs: []ir.Type{ir.Index, ext, l2, ir.Index}})
	require.NoError(t, err)
	copy1, err := m.DeclareFunc("acap_L2_dma_copy_1", ir.FunctionType{Inputs: []ir.Type{ir.Index, ext, ir.Index, l2}})
	require.NoError(t, err)
	l1, err := m.DeclareFunc("acap_L1_dma_copy", ir.FunctionType{Inputs: []ir.Type{ir.Index, ext, l2, ir.Index}})
	require.NoError(t, err)

	args := f.Body().Args()
	dim1, input, output, dim0 := args[0], args[1], args[2], args[3]
	b.Call(copy0, dim1, input, output, dim0)
	b.Call(copy1, dim1, input, dim0, output)
	b.Call(l1, dim1, input, output, dim0)
	b.Return()

	stats, err := Run(m)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Specialized)
	assert.Equal(t, []string{"acap_L2_dma_copy_arg0", "acap_L2_dma_copy_arg1"}, stats.Declared)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "specialize", []byte(m.String()))
}

func TestSpecializeDeclaresOnce(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ir.Index, ext32, l2x32, ir.Index)
	helper, err := m.DeclareFunc("acap_L2_dma_copy", ir.FunctionType{Inputs: []ir.Type{ir.Index, ext32, l2x32, ir.Index}})
	require.NoError(t, err)
	b.Call(helper, f.Body().Args()...)
	b.Call(helper, f.Body().Args()...)
	b.Return()

	stats, err := Run(m)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Specialized)
	assert.Len(t, stats.Declared, 1)
	assert.Len(t, m.Funcs(), 3)
}

func TestSpecializeRejectsBadArity(t *testing.T) {
	m := ir.NewModule()
	f, b := newFunc(t, m, "graph", ir.Index, ext32, l2x32)
	helper, err := m.DeclareFunc("acap_L2_dma_copy", ir.FunctionType{Inputs: []ir.Type{ir.Index, ext32, l2x32}})
	require.NoError(t, err)
	b.Call(helper, f.Body().Args()...)
	b.Return()

	_, err = Run(m)
	assert.True(t, errors.Is(err, ErrHelperCall), "%v", err)
}

func TestSpecializedName(t *testing.T) {
	name, ok := SpecializedName("acap_L2_dma_copy_1")
	assert.True(t, ok)
	assert.Equal(t, "acap_L2_dma_copy_arg1", name)
	_, ok = SpecializedName("acap_L1_dma_copy")
	assert.False(t, ok)
}
