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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrTypeSyntax is returned by ParseType for malformed type strings.
var ErrTypeSyntax = errors.New("invalid type syntax")

// ParseType parses the textual form produced by Type.String:
//
//	i32, f32, index
//	tensor<4x4xf32>, tensor<?x8xf32>, tensor<f32>
//	memref<32x32xf32>, memref<32x32xf32, 1>
//	!aten.list<i32>
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "index":
		return Index, nil
	case strings.HasPrefix(s, "tensor<") && strings.HasSuffix(s, ">"):
		shape, elem, err := parseShaped(s[len("tensor<") : len(s)-1])
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", s)
		}
		return TensorType{Shape: shape, Elem: elem}, nil
	case strings.HasPrefix(s, "memref<") && strings.HasSuffix(s, ">"):
		body := s[len("memref<") : len(s)-1]
		space := MemorySpaceExternal
		if i := strings.LastIndex(body, ","); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(body[i+1:]))
			if err != nil {
				return nil, errors.Wrapf(ErrTypeSyntax, "memory space in %q", s)
			}
			space = MemorySpace(n)
			body = body[:i]
		}
		shape, elem, err := parseShaped(body)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", s)
		}
		return MemRefType{Shape: shape, Elem: elem, MemorySpace: space}, nil
	case strings.HasPrefix(s, "!aten.list<") && strings.HasSuffix(s, ">"):
		elem, err := ParseType(s[len("!aten.list<") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return ListType{Elem: elem}, nil
	case len(s) > 1 && (s[0] == 'i' || s[0] == 'f'):
		width, err := strconv.Atoi(s[1:])
		if err != nil || width <= 0 {
			return nil, errors.Wrapf(ErrTypeSyntax, "%q", s)
		}
		if s[0] == 'i' {
			return IntegerType{Width: width}, nil
		}
		return FloatType{Width: width}, nil
	}
	return nil, errors.Wrapf(ErrTypeSyntax, "%q", s)
}

// MustParseType is like ParseType but panics on error. Intended for tests
// and static tables.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// parseShaped parses "4x4xf32" into its dimensions and element type.
func parseShaped(body string) ([]int64, Type, error) {
	var shape []int64
	for {
		if body == "" {
			return nil, nil, errors.Wrap(ErrTypeSyntax, "missing element type")
		}
		c := body[0]
		if c != '?' && (c < '0' || c > '9') {
			break
		}
		x := strings.IndexByte(body, 'x')
		if x < 0 {
			return nil, nil, errors.Wrapf(ErrTypeSyntax, "dimension %q", body)
		}
		dim := body[:x]
		if dim == "?" {
			shape = append(shape, -1)
		} else {
			n, err := strconv.ParseInt(dim, 10, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(ErrTypeSyntax, "dimension %q", dim)
			}
			shape = append(shape, n)
		}
		body = body[x+1:]
	}
	elem, err := ParseType(body)
	if err != nil {
		return nil, nil, err
	}
	return shape, elem, nil
}
