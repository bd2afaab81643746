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
	"github.com/samber/lo"

	"github.com/ajroetker/go-atenair/ir"
)

// Convert is the type legalizer: tensors become default-space buffers of
// the same shape and element type, buffers in another memory space move to
// the default space, and every other type is returned unchanged.
func Convert(t ir.Type) ir.Type {
	switch t := t.(type) {
	case ir.TensorType:
		return ir.NewMemRef(t.Elem, t.Shape...)
	case ir.MemRefType:
		if t.MemorySpace != ir.MemorySpaceExternal {
			return t.InSpace(ir.MemorySpaceExternal)
		}
	}
	return t
}

// ConvertTypes applies Convert to every type.
func ConvertTypes(types []ir.Type) []ir.Type {
	return lo.Map(types, func(t ir.Type, _ int) ir.Type { return Convert(t) })
}

// IsLegalType reports whether t is a fixed point of Convert.
func IsLegalType(t ir.Type) bool {
	return ir.Equal(Convert(t), t)
}

// IsSignatureLegal reports whether every input and result type of typ is a
// fixed point of Convert.
func IsSignatureLegal(typ ir.FunctionType) bool {
	return lo.EveryBy(typ.Inputs, IsLegalType) && lo.EveryBy(typ.Results, IsLegalType)
}

// ConvertSignature applies Convert to every input and result type.
func ConvertSignature(typ ir.FunctionType) ir.FunctionType {
	return ir.FunctionType{Inputs: ConvertTypes(typ.Inputs), Results: ConvertTypes(typ.Results)}
}

// toBufferType returns the default-space buffer type for a tensor value,
// or the value's own type for anything that is not a tensor.
func toBufferType(t ir.Type) ir.Type {
	if tt, ok := t.(ir.TensorType); ok {
		return ir.NewMemRef(tt.Elem, tt.Shape...)
	}
	return t
}
