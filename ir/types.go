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

// Package ir provides the operation graph that the lowering passes rewrite:
// a module of functions whose bodies are blocks of typed operations in SSA
// form. Operations and values live in a per-module arena and are addressed
// by stable integer handles, so replacing a value or erasing an operation
// is a use-list update rather than a pointer rewrite.
package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Type is an IR type. Types are immutable values; compare them with Equal,
// never with ==, since tensor and memref types carry shape slices.
type Type interface {
	String() string
	isType()
}

// IntegerType is a signless integer of the given bit width (i1, i32, i64).
type IntegerType struct {
	Width int
}

// FloatType is an IEEE float of the given bit width (f16, f32, f64).
type FloatType struct {
	Width int
}

// IndexType is the target-sized integer used for loop induction variables
// and memory indices.
type IndexType struct{}

// TensorType is a symbolic array: element type and shape, no layout.
// A dimension of -1 is dynamic.
type TensorType struct {
	Shape []int64
	Elem  Type
}

// MemorySpace tags which level of the memory hierarchy a buffer lives in.
type MemorySpace int

const (
	// MemorySpaceExternal is the default, large and slow memory (L3/DDR).
	MemorySpaceExternal MemorySpace = 0

	// MemorySpaceL2 is the small, fast memory next to the compute array.
	MemorySpaceL2 MemorySpace = 1

	// MemorySpaceL1 is the tile-local memory.
	MemorySpaceL1 MemorySpace = 2
)

// String returns a human-readable name for the MemorySpace.
func (s MemorySpace) String() string {
	switch s {
	case MemorySpaceExternal:
		return "external"
	case MemorySpaceL2:
		return "L2"
	case MemorySpaceL1:
		return "L1"
	default:
		return fmt.Sprintf("MemorySpace(%d)", int(s))
	}
}

// MemRefType is a concretely allocated buffer: shape, element type and the
// memory space it lives in.
type MemRefType struct {
	Shape       []int64
	Elem        Type
	MemorySpace MemorySpace
}

// ListType is the ATen list type carried by constant list operands
// (kernel sizes, strides, view shapes).
type ListType struct {
	Elem Type
}

// FunctionType is an ordered list of input types and result types.
type FunctionType struct {
	Inputs  []Type
	Results []Type
}

func (IntegerType) isType()  {}
func (FloatType) isType()    {}
func (IndexType) isType()    {}
func (TensorType) isType()   {}
func (MemRefType) isType()   {}
func (ListType) isType()     {}
func (FunctionType) isType() {}

// Common scalar types.
var (
	I1    = IntegerType{Width: 1}
	I32   = IntegerType{Width: 32}
	I64   = IntegerType{Width: 64}
	F32   = FloatType{Width: 32}
	F64   = FloatType{Width: 64}
	Index = IndexType{}
)

func (t IntegerType) String() string { return "i" + strconv.Itoa(t.Width) }

func (t FloatType) String() string { return "f" + strconv.Itoa(t.Width) }

func (IndexType) String() string { return "index" }

func (t TensorType) String() string {
	return "tensor<" + shapePrefix(t.Shape) + typeString(t.Elem) + ">"
}

func (t MemRefType) String() string {
	s := "memref<" + shapePrefix(t.Shape) + typeString(t.Elem)
	if t.MemorySpace != MemorySpaceExternal {
		s += ", " + strconv.Itoa(int(t.MemorySpace))
	}
	return s + ">"
}

func (t ListType) String() string { return "!aten.list<" + typeString(t.Elem) + ">" }

// String prints the function type in the form "(a, b) -> c".
func (t FunctionType) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	writeTypeList(&sb, t.Inputs)
	sb.WriteString(") -> ")
	if len(t.Results) == 1 {
		if _, isFn := t.Results[0].(FunctionType); !isFn {
			sb.WriteString(typeString(t.Results[0]))
			return sb.String()
		}
	}
	sb.WriteString("(")
	writeTypeList(&sb, t.Results)
	sb.WriteString(")")
	return sb.String()
}

func writeTypeList(sb *strings.Builder, types []Type) {
	for i, t := range types {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(typeString(t))
	}
}

func typeString(t Type) string {
	if t == nil {
		return "<<nil>>"
	}
	return t.String()
}

func shapePrefix(shape []int64) string {
	var sb strings.Builder
	for _, d := range shape {
		if d < 0 {
			sb.WriteString("?")
		} else {
			sb.WriteString(strconv.FormatInt(d, 10))
		}
		sb.WriteString("x")
	}
	return sb.String()
}

// Equal reports whether two types are structurally identical.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case IntegerType:
		o, ok := b.(IntegerType)
		return ok && a.Width == o.Width
	case FloatType:
		o, ok := b.(FloatType)
		return ok && a.Width == o.Width
	case IndexType:
		_, ok := b.(IndexType)
		return ok
	case TensorType:
		o, ok := b.(TensorType)
		return ok && slices.Equal(a.Shape, o.Shape) && Equal(a.Elem, o.Elem)
	case MemRefType:
		o, ok := b.(MemRefType)
		return ok && a.MemorySpace == o.MemorySpace &&
			slices.Equal(a.Shape, o.Shape) && Equal(a.Elem, o.Elem)
	case ListType:
		o, ok := b.(ListType)
		return ok && Equal(a.Elem, o.Elem)
	case FunctionType:
		o, ok := b.(FunctionType)
		return ok && TypesEqual(a.Inputs, o.Inputs) && TypesEqual(a.Results, o.Results)
	}
	return false
}

// TypesEqual reports whether two type lists are pairwise Equal.
func TypesEqual(a, b []Type) bool {
	return slices.EqualFunc(a, b, Equal)
}

// IsTensor reports whether t is a TensorType.
func IsTensor(t Type) bool {
	_, ok := t.(TensorType)
	return ok
}

// IsMemRef reports whether t is a MemRefType.
func IsMemRef(t Type) bool {
	_, ok := t.(MemRefType)
	return ok
}

// ElementType returns the element type of a tensor, memref or list type,
// or t itself for scalars.
func ElementType(t Type) Type {
	switch t := t.(type) {
	case TensorType:
		return t.Elem
	case MemRefType:
		return t.Elem
	case ListType:
		return t.Elem
	default:
		return t
	}
}

// NewTensor returns a tensor type of the given element type and shape.
func NewTensor(elem Type, shape ...int64) TensorType {
	return TensorType{Shape: slices.Clone(shape), Elem: elem}
}

// NewMemRef returns a memref type in the default memory space.
func NewMemRef(elem Type, shape ...int64) MemRefType {
	return MemRefType{Shape: slices.Clone(shape), Elem: elem}
}

// InSpace returns a copy of t placed in the given memory space.
func (t MemRefType) InSpace(space MemorySpace) MemRefType {
	return MemRefType{Shape: slices.Clone(t.Shape), Elem: t.Elem, MemorySpace: space}
}
