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
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AffineMap is a single-result affine map over symbol operands:
//
//	()[s0, s1, ...] -> (Coeffs[0]*s0 + Coeffs[1]*s1 + ... + Constant)
//
// Loop bounds carry one AffineMap each; its symbols are bound to the
// loop's bound operands in order.
type AffineMap struct {
	Constant int64
	Coeffs   []int64
}

// ConstantMap returns the map () -> (c).
func ConstantMap(c int64) AffineMap {
	return AffineMap{Constant: c}
}

// SymbolMap returns the map ()[s0] -> (s0 + offset).
func SymbolMap(offset int64) AffineMap {
	return AffineMap{Constant: offset, Coeffs: []int64{1}}
}

// NumOperands returns the number of symbol operands the map consumes.
func (m AffineMap) NumOperands() int {
	return len(m.Coeffs)
}

// IsConstant reports whether the map has no operand dependence.
func (m AffineMap) IsConstant() bool {
	for _, c := range m.Coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// Eval evaluates the map with the given symbol values.
func (m AffineMap) Eval(symbols []int64) (int64, error) {
	if len(symbols) != len(m.Coeffs) {
		return 0, errors.Errorf("affine map %s: got %d symbols, want %d", m, len(symbols), len(m.Coeffs))
	}
	v := m.Constant
	for i, c := range m.Coeffs {
		v += c * symbols[i]
	}
	return v, nil
}

// ConstantFold evaluates the map with every symbol bound to zero, which
// yields the map's offset relative to its symbolic base.
func (m AffineMap) ConstantFold() int64 {
	return m.Constant
}

// Equal reports whether two maps are identical.
func (m AffineMap) Equal(o AffineMap) bool {
	return m.Constant == o.Constant && slices.Equal(m.Coeffs, o.Coeffs)
}

// String prints the map as "()[s0] -> (s0 + 32)".
func (m AffineMap) String() string {
	var sb strings.Builder
	sb.WriteString("()")
	if len(m.Coeffs) > 0 {
		sb.WriteString("[")
		for i := range m.Coeffs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("s" + strconv.Itoa(i))
		}
		sb.WriteString("]")
	}
	sb.WriteString(" -> (")
	first := true
	for i, c := range m.Coeffs {
		if c == 0 {
			continue
		}
		sym := "s" + strconv.Itoa(i)
		switch {
		case first && c == 1:
			sb.WriteString(sym)
		case first && c == -1:
			sb.WriteString("-" + sym)
		case first:
			sb.WriteString(sym + " * " + strconv.FormatInt(c, 10))
		case c == 1:
			sb.WriteString(" + " + sym)
		case c == -1:
			sb.WriteString(" - " + sym)
		case c < 0:
			sb.WriteString(" - " + sym + " * " + strconv.FormatInt(-c, 10))
		default:
			sb.WriteString(" + " + sym + " * " + strconv.FormatInt(c, 10))
		}
		first = false
	}
	switch {
	case first:
		sb.WriteString(strconv.FormatInt(m.Constant, 10))
	case m.Constant > 0:
		sb.WriteString(" + " + strconv.FormatInt(m.Constant, 10))
	case m.Constant < 0:
		sb.WriteString(" - " + strconv.FormatInt(-m.Constant, 10))
	}
	sb.WriteString(")")
	return sb.String()
}
