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

package aten

import (
	"github.com/pkg/errors"

	"github.com/ajroetker/go-atenair/ir"
)

// ErrBadOperator is returned when an operator instance does not fit its
// catalog schema.
var ErrBadOperator = errors.New("operator does not match catalog schema")

// Constant creates an aten.constant of the given operand kind. v must be an
// int64 for Int and Bool, a float64 for Float, and a []int64 for IntList.
func Constant(b *ir.Builder, kind OperandKind, v any) (ir.ValueID, error) {
	switch kind {
	case Int:
		if x, ok := v.(int64); ok {
			return IntConstant(b, x), nil
		}
	case Bool:
		if x, ok := v.(int64); ok {
			return BoolConstant(b, x != 0), nil
		}
	case Float:
		if x, ok := v.(float64); ok {
			return FloatConstant(b, x), nil
		}
	case IntList:
		if x, ok := v.([]int64); ok {
			return ListConstant(b, x...), nil
		}
	}
	return ir.NoValue, errors.Wrapf(ErrBadOperator, "%T is not a valid %s constant", v, kind)
}

// IntConstant creates an i32 aten.constant.
func IntConstant(b *ir.Builder, v int64) ir.ValueID {
	return b.ATenConstant(ir.IntegerAttr{Value: v, Type: ir.I32}, ir.I32)
}

// BoolConstant creates an i1 aten.constant.
func BoolConstant(b *ir.Builder, v bool) ir.ValueID {
	var x int64
	if v {
		x = 1
	}
	return b.ATenConstant(ir.IntegerAttr{Value: x, Type: ir.I1}, ir.I1)
}

// FloatConstant creates an f32 aten.constant.
func FloatConstant(b *ir.Builder, v float64) ir.ValueID {
	return b.ATenConstant(ir.FloatAttr{Value: v, Type: ir.F32}, ir.F32)
}

// ListConstant creates an aten.constant holding a dense integer list.
func ListConstant(b *ir.Builder, vs ...int64) ir.ValueID {
	return b.ATenConstant(ir.DenseIntAttr{Values: append([]int64(nil), vs...)}, ir.ListType{Elem: ir.I32})
}

// Create builds an operator of kind k after checking its operand count
// and result arity against the catalog.
func Create(b *ir.Builder, k ir.OpKind, operands []ir.ValueID, results []ir.Type) (*ir.Operation, error) {
	s, ok := Lookup(k)
	if !ok {
		return nil, errors.Wrapf(ErrBadOperator, "%s is not an ATen operator", k)
	}
	if !s.AcceptsOperands(len(operands)) {
		return nil, errors.Wrapf(ErrBadOperator, "%s takes %d..%d operands, got %d",
			k, s.MinOperands(), s.MaxOperands(), len(operands))
	}
	if len(results) != s.Results {
		return nil, errors.Wrapf(ErrBadOperator, "%s has %d results, got %d", k, s.Results, len(results))
	}
	return b.Create(k, operands, results, nil), nil
}
