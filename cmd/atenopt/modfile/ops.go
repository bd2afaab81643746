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

package modfile

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/ir/aten"
)

func (op Op) build(b *ir.Builder, sc *scope) error {
	kind, ok := ir.KindByName(op.Op)
	if !ok {
		return errors.Wrapf(ErrInvalid, "unknown operation %q", op.Op)
	}
	if kind.IsATenOperator() {
		return op.buildATen(b, sc, kind)
	}

	var results []ir.ValueID
	switch kind {
	case ir.OpConstant:
		t, err := op.singleResult()
		if err != nil {
			return err
		}
		v, err := op.constant(b, t)
		if err != nil {
			return err
		}
		results = []ir.ValueID{v}

	case ir.OpCall:
		callee := b.Module().Lookup(op.Callee)
		if callee == nil {
			return errors.Wrapf(ErrInvalid, "call to unknown function @%s", op.Callee)
		}
		args, err := sc.refs(op.Operands)
		if err != nil {
			return err
		}
		if len(args) != len(callee.Type().Inputs) {
			return errors.Wrapf(ErrInvalid, "@%s takes %d arguments, got %d",
				op.Callee, len(callee.Type().Inputs), len(args))
		}
		results = b.Call(callee, args...).Results()

	case ir.OpReturn:
		vs, err := sc.refs(op.Operands)
		if err != nil {
			return err
		}
		b.Return(vs...)

	case ir.OpAlloc:
		t, err := op.singleResult()
		if err != nil {
			return err
		}
		mt, ok := t.(ir.MemRefType)
		if !ok {
			return errors.Wrapf(ErrInvalid, "std.alloc of non-memref %s", t)
		}
		results = []ir.ValueID{b.Alloc(mt)}

	case ir.OpAffineLoad:
		vs, err := sc.refs(op.Operands)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			return errors.Wrap(ErrInvalid, "affine.load needs a memref")
		}
		if err := requireMemRef(b.Module(), vs[0]); err != nil {
			return err
		}
		results = []ir.ValueID{b.Load(vs[0], vs[1:]...)}

	case ir.OpAffineStore:
		vs, err := sc.refs(op.Operands)
		if err != nil {
			return err
		}
		if len(vs) < 2 {
			return errors.Wrap(ErrInvalid, "affine.store needs a value and a memref")
		}
		if err := requireMemRef(b.Module(), vs[1]); err != nil {
			return err
		}
		b.Store(vs[0], vs[1], vs[2:]...)

	case ir.OpAffineFor:
		if len(op.IVs) != 1 {
			return errors.Wrap(ErrInvalid, "affine.for binds exactly one induction variable")
		}
		step := op.Step
		if step == 0 {
			step = 1
		}
		loop := b.ForConst(op.Lower, op.Upper, step)
		if err := op.buildRegion(b, sc, loop.Op); err != nil {
			return err
		}

	case ir.OpAffineParallel:
		if len(op.Ranges) == 0 || len(op.IVs) != len(op.Ranges) {
			return errors.Wrapf(ErrInvalid, "affine.parallel has %d ranges and %d induction variables",
				len(op.Ranges), len(op.IVs))
		}
		if _, bad := lo.Find(op.Ranges, func(r []int64) bool { return len(r) != 2 }); bad {
			return errors.Wrap(ErrInvalid, "affine.parallel ranges are [lower, upper] pairs")
		}
		lbs := lo.Map(op.Ranges, func(r []int64, _ int) int64 { return r[0] })
		ubs := lo.Map(op.Ranges, func(r []int64, _ int) int64 { return r[1] })
		if err := op.buildRegion(b, sc, b.Parallel(lbs, ubs)); err != nil {
			return err
		}

	default:
		return errors.Wrapf(ErrInvalid, "%s cannot be written in a module file", op.Op)
	}
	return op.bindResults(sc, results)
}

// buildRegion builds op.Body into the single region of loop, before its
// yield, binding the induction variables in a nested scope.
func (op Op) buildRegion(b *ir.Builder, sc *scope, loop *ir.Operation) error {
	body := loop.Region(0)
	inner := sc.child()
	for i, iv := range body.Args() {
		if err := inner.bind(op.IVs[i], iv); err != nil {
			return err
		}
	}
	saved := *b
	defer func() { *b = saved }()
	b.SetInsertionPointBefore(body.Terminator())
	return buildOps(b, inner, op.Body)
}

func (op Op) buildATen(b *ir.Builder, sc *scope, kind ir.OpKind) error {
	schema, _ := aten.Lookup(kind)
	if !schema.AcceptsOperands(len(op.Operands)) {
		return errors.Wrapf(ErrInvalid, "%s takes %d..%d operands, got %d",
			kind, schema.MinOperands(), schema.MaxOperands(), len(op.Operands))
	}
	results, err := parseTypes(op.Results)
	if err != nil {
		return err
	}
	operands := make([]ir.ValueID, len(op.Operands))
	for i, raw := range op.Operands {
		if name, ok := raw.(string); ok && strings.HasPrefix(name, "%") {
			v, err := sc.value(name)
			if err != nil {
				return err
			}
			operands[i] = v
			continue
		}
		operandKind := schema.Operands[i].Kind
		lit, err := literal(operandKind, raw)
		if err != nil {
			return errors.WithMessagef(err, "operand %d (%s)", i, schema.Operands[i].Name)
		}
		if operands[i], err = aten.Constant(b, operandKind, lit); err != nil {
			return err
		}
	}
	created, err := aten.Create(b, kind, operands, results)
	if err != nil {
		return err
	}
	return op.bindResults(sc, created.Results())
}

func (op Op) singleResult() (ir.Type, error) {
	if len(op.Results) != 1 {
		return nil, errors.Wrapf(ErrInvalid, "%s has exactly one result type, got %d", op.Op, len(op.Results))
	}
	return ir.ParseType(op.Results[0])
}

func (op Op) constant(b *ir.Builder, t ir.Type) (ir.ValueID, error) {
	switch t.(type) {
	case ir.FloatType:
		x, err := toFloat(op.Value)
		if err != nil {
			return ir.NoValue, err
		}
		return b.ConstantFloat(x, t), nil
	case ir.IntegerType, ir.IndexType:
		x, err := toInt(op.Value)
		if err != nil {
			return ir.NoValue, err
		}
		return b.ConstantInt(x, t), nil
	}
	return ir.NoValue, errors.Wrapf(ErrInvalid, "std.constant of type %s", t)
}

func (op Op) bindResults(sc *scope, results []ir.ValueID) error {
	if len(op.Names) > len(results) {
		return errors.Wrapf(ErrInvalid, "%d names for %d results", len(op.Names), len(results))
	}
	for i, name := range op.Names {
		if err := sc.bind(name, results[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) value(name string) (ir.ValueID, error) {
	v, ok := s.lookup(strings.TrimPrefix(name, "%"))
	if !ok {
		return ir.NoValue, errors.Wrapf(ErrInvalid, "undefined value %s", name)
	}
	return v, nil
}

// refs resolves operands that must all be value references.
func (s *scope) refs(raw []any) ([]ir.ValueID, error) {
	vs := make([]ir.ValueID, len(raw))
	for i, r := range raw {
		name, ok := r.(string)
		if !ok || !strings.HasPrefix(name, "%") {
			return nil, errors.Wrapf(ErrInvalid, "operand %d: expected a %%value, got %v", i, r)
		}
		v, err := s.value(name)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func requireMemRef(m *ir.Module, v ir.ValueID) error {
	if _, ok := m.Type(v).(ir.MemRefType); !ok {
		return errors.Wrapf(ErrInvalid, "%s is not a memref", m.Type(v))
	}
	return nil
}

// literal converts a decoded literal to the Go value aten.Constant expects
// for kind.
func literal(kind aten.OperandKind, raw any) (any, error) {
	switch kind {
	case aten.Int:
		return toInt(raw)
	case aten.Float:
		return toFloat(raw)
	case aten.Bool:
		if x, ok := raw.(bool); ok {
			return lo.Ternary[int64](x, 1, 0), nil
		}
		return toInt(raw)
	case aten.IntList:
		seq, ok := raw.([]any)
		if !ok {
			return nil, errors.Wrapf(ErrInvalid, "expected a list of integers, got %v", raw)
		}
		out := make([]int64, len(seq))
		for i, x := range seq {
			v, err := toInt(x)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrInvalid, "a %s operand must be a %%value", kind)
}

// number is the JSON decoder's representation of numbers.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

func toInt(raw any) (int64, error) {
	switch x := raw.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), nil
		}
	case float64:
		if x == math.Trunc(x) {
			return int64(x), nil
		}
	case number:
		if v, err := x.Int64(); err == nil {
			return v, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalid, "expected an integer, got %v", raw)
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case number:
		if v, err := x.Float64(); err == nil {
			return v, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalid, "expected a number, got %v", raw)
}
