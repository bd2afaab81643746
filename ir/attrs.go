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
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Well-known attribute names.
const (
	AttrValue       = "value"
	AttrCallee      = "callee"
	AttrLowerBound  = "lower_bound"
	AttrUpperBound  = "upper_bound"
	AttrStep        = "step"
	AttrLowerBounds = "lower_bounds"
	AttrUpperBounds = "upper_bounds"
	AttrSteps       = "steps"
	AttrMap         = "map"
)

// Attribute is a compile-time constant payload attached to an operation.
type Attribute interface {
	String() string
	isAttribute()
}

// IntegerAttr is a scalar integer of the given type.
type IntegerAttr struct {
	Value int64
	Type  Type
}

// FloatAttr is a scalar float of the given type.
type FloatAttr struct {
	Value float64
	Type  Type
}

// DenseIntAttr is a dense array of integers.
type DenseIntAttr struct {
	Values []int64
}

// DenseFloatAttr is a dense array of floats.
type DenseFloatAttr struct {
	Values []float64
}

// SymbolRefAttr names a function in the module symbol table.
type SymbolRefAttr struct {
	Name string
}

// AffineMapAttr wraps an AffineMap, used for loop bounds.
type AffineMapAttr struct {
	Map AffineMap
}

func (IntegerAttr) isAttribute()    {}
func (FloatAttr) isAttribute()      {}
func (DenseIntAttr) isAttribute()   {}
func (DenseFloatAttr) isAttribute() {}
func (SymbolRefAttr) isAttribute()  {}
func (AffineMapAttr) isAttribute()  {}

func (a IntegerAttr) String() string {
	return strconv.FormatInt(a.Value, 10) + " : " + typeString(a.Type)
}

func (a FloatAttr) String() string {
	return formatFloat(a.Value) + " : " + typeString(a.Type)
}

func (a DenseIntAttr) String() string {
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "dense<[" + strings.Join(parts, ", ") + "]>"
}

func (a DenseFloatAttr) String() string {
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = formatFloat(v)
	}
	return "dense<[" + strings.Join(parts, ", ") + "]>"
}

func (a SymbolRefAttr) String() string { return "@" + a.Name }

func (a AffineMapAttr) String() string { return a.Map.String() }

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Attrs is the named attribute dictionary of an operation.
type Attrs map[string]Attribute

// Names returns the attribute names in sorted order.
func (a Attrs) Names() []string {
	return slices.Sorted(maps.Keys(a))
}

// Clone returns a shallow copy of the dictionary.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// String prints the dictionary as "{a = 1 : i32, b = @f}" with sorted keys,
// or "" when empty.
func (a Attrs) String() string {
	if len(a) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("{")
	for i, name := range a.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteString(" = ")
		sb.WriteString(a[name].String())
	}
	sb.WriteString("}")
	return sb.String()
}
