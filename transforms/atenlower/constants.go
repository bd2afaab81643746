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
)

// ErrNotConstant is returned when an operand that must be a compile-time
// literal is not defined by a matching aten.constant.
var ErrNotConstant = errors.New("operand is not a constant")

// Literal is the payload of an aten.constant, or nothing for an operand
// that is not defined by one. Callers must check Ok before using it.
type Literal struct {
	Attr ir.Attribute
	Ok   bool
}

// ResolveConstant traces v to its defining aten.constant.
func ResolveConstant(m *ir.Module, v ir.ValueID) Literal {
	def := m.DefiningOp(v)
	if def == nil || def.Kind() != ir.OpATenConstant {
		return Literal{}
	}
	attr := def.Attr(ir.AttrValue)
	if attr == nil {
		return Literal{}
	}
	return Literal{Attr: attr, Ok: true}
}

// Int returns the literal as a scalar integer.
func (l Literal) Int() (int64, bool) {
	if a, ok := l.Attr.(ir.IntegerAttr); ok && l.Ok {
		return a.Value, true
	}
	return 0, false
}

// Float returns the literal as a scalar float.
func (l Literal) Float() (float64, bool) {
	if a, ok := l.Attr.(ir.FloatAttr); ok && l.Ok {
		return a.Value, true
	}
	return 0, false
}

// Ints returns the literal as a dense integer array.
func (l Literal) Ints() ([]int64, bool) {
	if a, ok := l.Attr.(ir.DenseIntAttr); ok && l.Ok {
		return a.Values, true
	}
	return nil, false
}

func intOperand(m *ir.Module, op *ir.Operation, i int) (int64, error) {
	v, ok := ResolveConstant(m, op.Operand(i)).Int()
	if !ok {
		return 0, errors.Wrapf(ErrNotConstant, "%s operand %d: want integer literal", op.Name(), i)
	}
	return v, nil
}

func floatOperand(m *ir.Module, op *ir.Operation, i int) (float64, error) {
	v, ok := ResolveConstant(m, op.Operand(i)).Float()
	if !ok {
		return 0, errors.Wrapf(ErrNotConstant, "%s operand %d: want float literal", op.Name(), i)
	}
	return v, nil
}

func intsOperand(m *ir.Module, op *ir.Operation, i int) ([]int64, error) {
	v, ok := ResolveConstant(m, op.Operand(i)).Ints()
	if !ok {
		return nil, errors.Wrapf(ErrNotConstant, "%s operand %d: want integer list literal", op.Name(), i)
	}
	return v, nil
}
