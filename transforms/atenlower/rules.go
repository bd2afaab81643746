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
	"github.com/pkg/errors"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/ir/aten"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// ErrOperandCount is returned for operator instances whose operand or
// result count does not match the catalog.
var ErrOperandCount = errors.New("unexpected operand count")

// paddedRank is the length integer lists are padded to with -1.
const paddedRank = 4

// argKind says how one call argument is derived from the operator.
type argKind int

const (
	argBuffer   argKind = iota // operand cast to a buffer
	argI32                     // integer literal as i32
	argI1                      // integer literal as i1
	argF32                     // float literal as f32
	argFirstI32                // first element of an integer list as i32
	argPadded                  // integer list as paddedRank i32 values, padded with -1
	argOptI32                  // optional trailing integer literal as i32, default 0
)

type arg struct {
	kind    argKind
	operand int
}

func buf(i int) arg    { return arg{argBuffer, i} }
func i32(i int) arg    { return arg{argI32, i} }
func i1(i int) arg     { return arg{argI1, i} }
func f32(i int) arg    { return arg{argF32, i} }
func first(i int) arg  { return arg{argFirstI32, i} }
func padded(i int) arg { return arg{argPadded, i} }
func optI32(i int) arg { return arg{argOptI32, i} }

func args(a ...arg) []arg { return a }

// rule lowers one operator kind to a call of prefix with args in order.
type rule struct {
	prefix string
	args   []arg

	// shapeFrom, when non-zero, names the integer-list operand that gives
	// the shape of the (single) result instead of the result's own type.
	shapeFrom int
}

// rules is the lowering table, keyed by operator kind.
var rules = map[ir.OpKind]rule{
	ir.OpAdd:             {prefix: "add", args: args(buf(0), buf(1), i32(2))},
	ir.OpAddmm:           {prefix: "addmm", args: args(buf(0), buf(1), buf(2), i32(3), i32(4))},
	ir.OpAsStrided:       {prefix: "as_strided", args: args(buf(0), padded(1), padded(2), optI32(3)), shapeFrom: 1},
	ir.OpBatchNorm:       {prefix: "batch_norm", args: args(buf(0), buf(1), buf(2), buf(3), buf(4), i1(5), f32(6), f32(7), i1(8))},
	ir.OpNativeBatchNorm: {prefix: "native_batch_norm", args: args(buf(0), buf(1), buf(2), buf(3), buf(4), i1(5), f32(6), f32(7))},
	ir.OpConvolution:     {prefix: "conv2d", args: args(buf(0), buf(1), buf(2), first(3), first(4), first(5))},
	ir.OpConvolutionBackward: {
		prefix: "conv2d_backward", args: args(buf(0), buf(1), buf(2), first(3), first(4), first(5)),
	},
	ir.OpDiv:        {prefix: "div", args: args(buf(0), buf(1))},
	ir.OpLogSoftmax: {prefix: "log_softmax", args: args(buf(0), i32(1), i1(2))},
	ir.OpLogSoftmaxBackward: {
		prefix: "log_softmax_backward_data", args: args(buf(0), buf(1), i32(2), buf(3)),
	},
	ir.OpMaxPool2d: {prefix: "max_pool2d", args: args(buf(0), first(1), first(2), first(3))},
	ir.OpMaxPool2dWithIndices: {
		prefix: "max_pool2d_with_indices", args: args(buf(0), first(1), first(2), first(3), first(4), i1(5)),
	},
	ir.OpMaxPool2dWithIndicesBackward: {
		prefix: "max_pool2d_with_indices_backward",
		args:   args(buf(0), buf(1), first(2), first(3), first(4), first(5), i1(6), buf(7)),
	},
	ir.OpMM:  {prefix: "mm", args: args(buf(0), buf(1))},
	ir.OpMul: {prefix: "mul", args: args(buf(0), buf(1))},
	ir.OpNllLossForward: {
		prefix: "nll_loss_forward", args: args(buf(0), buf(1), buf(2), i32(3), i32(4)),
	},
	ir.OpNllLossBackward: {
		prefix: "nll_loss_backward", args: args(buf(0), buf(1), buf(2), buf(3), i32(4), i32(5), buf(6)),
	},
	ir.OpNllLoss2dForward: {
		prefix: "nll_loss2d_forward", args: args(buf(0), buf(1), buf(2), i32(3), i32(4)),
	},
	ir.OpNllLoss2dBackward: {
		prefix: "nll_loss2d_backward", args: args(buf(0), buf(1), buf(2), buf(3), i32(4), i32(5), buf(6)),
	},
	ir.OpReLU:              {prefix: "relu", args: args(buf(0))},
	ir.OpThresholdBackward: {prefix: "threshold_backward", args: args(buf(0), buf(1), i32(2))},
	ir.OpTranspose:         {prefix: "t", args: args(buf(0))},
	ir.OpView:              {prefix: "view", args: args(buf(0), padded(1))},
}

// Prefix returns the callee prefix an operator kind lowers to.
func Prefix(kind ir.OpKind) (string, bool) {
	r, ok := rules[kind]
	return r.prefix, ok
}

// callArg is one resolved call argument: either an existing value to pass
// as a buffer, or a literal to materialize as a std.constant.
type callArg struct {
	value   ir.ValueID
	literal bool
	typ     ir.Type
	i       int64
	f       float64
}

func literalInt(v int64, t ir.Type) callArg {
	switch {
	case ir.Equal(t, ir.I1):
		if v != 0 {
			v = 1
		}
	case ir.Equal(t, ir.I32):
		v = int64(int32(v))
	}
	return callArg{literal: true, typ: t, i: v}
}

// plan resolves every call argument of op without touching the IR, so that
// any structural error is reported before the rewrite starts.
func (r rule) plan(m *ir.Module, op *ir.Operation) ([]callArg, []ir.Type, error) {
	schema, _ := aten.Lookup(op.Kind())
	if !schema.AcceptsOperands(op.NumOperands()) {
		return nil, nil, errors.Wrapf(ErrOperandCount, "%s has %d operands, want %d..%d",
			op.Name(), op.NumOperands(), schema.MinOperands(), schema.MaxOperands())
	}
	if op.NumResults() != schema.Results {
		return nil, nil, errors.Wrapf(ErrOperandCount, "%s has %d results, want %d",
			op.Name(), op.NumResults(), schema.Results)
	}

	var out []callArg
	for _, a := range r.args {
		switch a.kind {
		case argBuffer:
			out = append(out, callArg{value: op.Operand(a.operand)})
		case argI32, argI1:
			v, err := intOperand(m, op, a.operand)
			if err != nil {
				return nil, nil, err
			}
			t := ir.Type(ir.I32)
			if a.kind == argI1 {
				t = ir.I1
			}
			out = append(out, literalInt(v, t))
		case argF32:
			v, err := floatOperand(m, op, a.operand)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, callArg{literal: true, typ: ir.F32, f: float64(float32(v))})
		case argFirstI32:
			vs, err := intsOperand(m, op, a.operand)
			if err != nil {
				return nil, nil, err
			}
			if len(vs) == 0 {
				return nil, nil, errors.Wrapf(ErrNotConstant, "%s operand %d: empty integer list", op.Name(), a.operand)
			}
			out = append(out, literalInt(vs[0], ir.I32))
		case argPadded:
			vs, err := intsOperand(m, op, a.operand)
			if err != nil {
				return nil, nil, err
			}
			if len(vs) > paddedRank {
				return nil, nil, errors.Wrapf(ErrOperandCount, "%s operand %d: %d values, at most %d",
					op.Name(), a.operand, len(vs), paddedRank)
			}
			for i := range paddedRank {
				v := int64(-1)
				if i < len(vs) {
					v = vs[i]
				}
				out = append(out, literalInt(v, ir.I32))
			}
		case argOptI32:
			v := int64(0)
			if a.operand < op.NumOperands() {
				var err error
				if v, err = intOperand(m, op, a.operand); err != nil {
					return nil, nil, err
				}
			}
			out = append(out, literalInt(v, ir.I32))
		}
	}

	results := make([]ir.Type, op.NumResults())
	for i, res := range op.Results() {
		results[i] = toBufferType(m.Type(res))
	}
	if r.shapeFrom > 0 {
		shape, err := intsOperand(m, op, r.shapeFrom)
		if err != nil {
			return nil, nil, err
		}
		results[0] = ir.NewMemRef(ir.ElementType(m.Type(op.Result(0))), shape...)
	}
	return out, results, nil
}

// pattern returns the rewrite pattern implementing the rule for kind.
func (r rule) pattern(kind ir.OpKind, reg *Registry) rewrite.Pattern {
	return rewrite.Pattern{
		Name:    kind.String() + "-to-call",
		Root:    kind,
		Benefit: 1,
		Rewrite: func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
			m := rw.Module()
			plan, results, err := r.plan(m, op)
			if err != nil {
				return false, err
			}
			rw.SetInsertionPointBefore(op)
			operands := make([]ir.ValueID, len(plan))
			for i, a := range plan {
				if !a.literal {
					operands[i] = memRefCast(rw, a.value)
					continue
				}
				if _, isFloat := a.typ.(ir.FloatType); isFloat {
					operands[i] = rw.ConstantFloat(a.f, a.typ)
				} else {
					operands[i] = rw.ConstantInt(a.i, a.typ)
				}
			}
			callee, err := reg.Resolve(r.prefix, m.Types(operands), results)
			if err != nil {
				return false, err
			}
			call := rw.Call(callee, operands...)
			rw.ReplaceOp(op, call.Results()...)
			return true, nil
		},
	}
}

// memRefCast casts a tensor value to its default-space buffer type. Other
// values are passed through unchanged.
func memRefCast(b *rewrite.Rewriter, v ir.ValueID) ir.ValueID {
	t := b.Module().Type(v)
	want := toBufferType(t)
	if ir.Equal(want, t) {
		return v
	}
	return b.TypeCast(v, want)
}

// operatorPatterns returns one pattern per supported operator.
func operatorPatterns(reg *Registry) []rewrite.Pattern {
	var out []rewrite.Pattern
	for _, kind := range ir.ATenOperators() {
		if r, ok := rules[kind]; ok {
			out = append(out, r.pattern(kind, reg))
		}
	}
	return out
}
