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

// Package aten describes the ATen operator catalog: for every operator
// kind, the layout of its operands (which are tensors and which are
// compile-time constants) and its result arity.
package aten

import (
	"github.com/ajroetker/go-atenair/ir"
)

// OperandKind classifies an operand of an ATen operator.
type OperandKind int

const (
	// Tensor operands carry data and are lowered to buffers.
	Tensor OperandKind = iota

	// Int operands are scalar integers defined by an aten.constant.
	Int

	// Float operands are scalar floats defined by an aten.constant.
	Float

	// Bool operands are i1 integers defined by an aten.constant.
	Bool

	// IntList operands are dense integer arrays defined by an aten.constant.
	IntList
)

// String returns a human-readable name for the OperandKind.
func (k OperandKind) String() string {
	switch k {
	case Tensor:
		return "tensor"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case IntList:
		return "int[]"
	default:
		return "unknown"
	}
}

// IsAttribute reports whether operands of this kind must be constants.
func (k OperandKind) IsAttribute() bool {
	return k != Tensor
}

// Operand describes one operand position.
type Operand struct {
	Name     string
	Kind     OperandKind
	Optional bool // may be omitted; only trailing operands are optional
}

// Schema is the catalog entry of one operator kind.
type Schema struct {
	Kind     ir.OpKind
	Operands []Operand
	Results  int
}

// MinOperands returns the number of required operands.
func (s Schema) MinOperands() int {
	n := 0
	for _, o := range s.Operands {
		if !o.Optional {
			n++
		}
	}
	return n
}

// MaxOperands returns the number of operands including optional ones.
func (s Schema) MaxOperands() int {
	return len(s.Operands)
}

// AcceptsOperands reports whether n operands fit the schema.
func (s Schema) AcceptsOperands(n int) bool {
	return n >= s.MinOperands() && n <= s.MaxOperands()
}

func tensorOp(name string) Operand { return Operand{Name: name, Kind: Tensor} }
func intOp(name string) Operand    { return Operand{Name: name, Kind: Int} }
func floatOp(name string) Operand  { return Operand{Name: name, Kind: Float} }
func boolOp(name string) Operand   { return Operand{Name: name, Kind: Bool} }
func listOp(name string) Operand   { return Operand{Name: name, Kind: IntList} }

func optional(o Operand) Operand {
	o.Optional = true
	return o
}

func ops(operands ...Operand) []Operand { return operands }

var schemas = map[ir.OpKind]Schema{
	ir.OpAdd:   {Operands: ops(tensorOp("self"), tensorOp("other"), intOp("alpha")), Results: 1},
	ir.OpAddmm: {Operands: ops(tensorOp("self"), tensorOp("mat1"), tensorOp("mat2"), intOp("beta"), intOp("alpha")), Results: 1},
	ir.OpAsStrided: {
		Operands: ops(tensorOp("self"), listOp("size"), listOp("stride"), optional(intOp("storage_offset"))),
		Results:  1,
	},
	ir.OpBatchNorm: {
		Operands: ops(tensorOp("input"), tensorOp("weight"), tensorOp("bias"), tensorOp("running_mean"), tensorOp("running_var"),
			boolOp("training"), floatOp("momentum"), floatOp("eps"), boolOp("cudnn_enabled")),
		Results: 3,
	},
	ir.OpNativeBatchNorm: {
		Operands: ops(tensorOp("input"), tensorOp("weight"), tensorOp("bias"), tensorOp("running_mean"), tensorOp("running_var"),
			boolOp("training"), floatOp("momentum"), floatOp("eps")),
		Results: 3,
	},
	ir.OpConvolution: {
		Operands: ops(tensorOp("input"), tensorOp("weight"), tensorOp("bias"), listOp("padding"), listOp("kernel"), listOp("stride")),
		Results:  1,
	},
	ir.OpConvolutionBackward: {
		Operands: ops(tensorOp("grad_output"), tensorOp("input"), tensorOp("weight"), listOp("padding"), listOp("kernel"), listOp("stride")),
		Results:  3,
	},
	ir.OpDiv:        {Operands: ops(tensorOp("self"), tensorOp("other")), Results: 1},
	ir.OpLogSoftmax: {Operands: ops(tensorOp("self"), intOp("dim"), boolOp("half_to_float")), Results: 1},
	ir.OpLogSoftmaxBackward: {
		Operands: ops(tensorOp("grad_output"), tensorOp("output"), intOp("dim"), tensorOp("self")),
		Results:  1,
	},
	ir.OpMaxPool2d: {
		Operands: ops(tensorOp("self"), listOp("kernel_size"), listOp("stride"), listOp("padding")),
		Results:  1,
	},
	ir.OpMaxPool2dWithIndices: {
		Operands: ops(tensorOp("self"), listOp("kernel_size"), listOp("stride"), listOp("padding"), listOp("dilation"), boolOp("ceil_mode")),
		Results:  2,
	},
	ir.OpMaxPool2dWithIndicesBackward: {
		Operands: ops(tensorOp("grad_output"), tensorOp("self"), listOp("kernel_size"), listOp("stride"), listOp("padding"),
			listOp("dilation"), boolOp("ceil_mode"), tensorOp("indices")),
		Results: 1,
	},
	ir.OpMM:  {Operands: ops(tensorOp("self"), tensorOp("mat2")), Results: 1},
	ir.OpMul: {Operands: ops(tensorOp("self"), tensorOp("other")), Results: 1},
	ir.OpNllLossForward: {
		Operands: ops(tensorOp("self"), tensorOp("target"), tensorOp("weight"), intOp("reduction"), intOp("ignore_index")),
		Results:  2,
	},
	ir.OpNllLossBackward: {
		Operands: ops(tensorOp("grad_output"), tensorOp("self"), tensorOp("target"), tensorOp("weight"), intOp("reduction"),
			intOp("ignore_index"), tensorOp("total_weight")),
		Results: 1,
	},
	ir.OpNllLoss2dForward: {
		Operands: ops(tensorOp("self"), tensorOp("target"), tensorOp("weight"), intOp("reduction"), intOp("ignore_index")),
		Results:  2,
	},
	ir.OpNllLoss2dBackward: {
		Operands: ops(tensorOp("grad_output"), tensorOp("self"), tensorOp("target"), tensorOp("weight"), intOp("reduction"),
			intOp("ignore_index"), tensorOp("total_weight")),
		Results: 1,
	},
	ir.OpReLU:              {Operands: ops(tensorOp("self")), Results: 1},
	ir.OpThresholdBackward: {Operands: ops(tensorOp("grad_output"), tensorOp("self"), intOp("threshold")), Results: 1},
	ir.OpTranspose:         {Operands: ops(tensorOp("self")), Results: 1},
	ir.OpView:              {Operands: ops(tensorOp("self"), listOp("size")), Results: 1},
}

func init() {
	for k, s := range schemas {
		s.Kind = k
		schemas[k] = s
	}
}

// Lookup returns the schema of an ATen operator kind.
func Lookup(k ir.OpKind) (Schema, bool) {
	s, ok := schemas[k]
	return s, ok
}

// Catalog returns every schema, ordered by operator kind.
func Catalog() []Schema {
	out := make([]Schema, 0, len(schemas))
	for _, k := range ir.ATenOperators() {
		if s, ok := schemas[k]; ok {
			out = append(out, s)
		}
	}
	return out
}
