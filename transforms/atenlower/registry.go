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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/ir"
)

// mangleSuffix is appended to every operator prefix before the type tokens.
const mangleSuffix = "_AtenAcapOp"

var (
	// ErrUnsupportedType is returned when a type cannot be mangled.
	ErrUnsupportedType = errors.New("unsupported type in mangled signature")

	// ErrSymbolConflict is returned when a mangled name is already declared
	// with a different signature.
	ErrSymbolConflict = errors.New("mangled symbol declared with conflicting signature")
)

// MangleType returns the token of one type in a mangled name:
//
//	memref<4x4xf32> -> M4x4xF32
//	f32             -> F32
//	i32             -> I32
func MangleType(t ir.Type) (string, error) {
	switch t := t.(type) {
	case ir.MemRefType:
		var sb strings.Builder
		sb.WriteString("M")
		for _, d := range t.Shape {
			sb.WriteString(strconv.FormatInt(d, 10))
			sb.WriteString("x")
		}
		elem, err := MangleType(t.Elem)
		if err != nil {
			return "", err
		}
		sb.WriteString(elem)
		return sb.String(), nil
	case ir.FloatType:
		return "F" + strconv.Itoa(t.Width), nil
	case ir.IntegerType:
		return "I" + strconv.Itoa(t.Width), nil
	}
	return "", errors.Wrapf(ErrUnsupportedType, "%s", t)
}

// MangleName returns the external function name for an operator prefix
// and signature: prefix + "_AtenAcapOp", then "_" and the token of every
// result type followed by every argument type.
func MangleName(prefix string, args, results []ir.Type) (string, error) {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(mangleSuffix)
	for _, t := range append(append([]ir.Type(nil), results...), args...) {
		tok, err := MangleType(t)
		if err != nil {
			return "", errors.Wrapf(err, "mangling %s", prefix)
		}
		sb.WriteString("_")
		sb.WriteString(tok)
	}
	return sb.String(), nil
}

// Registry interns the external function declarations that lowered
// operators call. Declarations are created lazily, in first-use order, and
// a mangled name always maps to exactly one signature.
type Registry struct {
	m        *ir.Module
	order    []string
	declared map[string]*ir.Func
	log      *zap.Logger
}

// NewRegistry returns a registry declaring functions into m.
func NewRegistry(m *ir.Module, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{m: m, declared: make(map[string]*ir.Func), log: log}
}

// Resolve returns the declaration for prefix with the given signature,
// declaring it on first use. A declaration already present in the module
// under the same name is reused if its signature matches.
func (r *Registry) Resolve(prefix string, args, results []ir.Type) (*ir.Func, error) {
	name, err := MangleName(prefix, args, results)
	if err != nil {
		return nil, err
	}
	return r.Declare(name, ir.FunctionType{Inputs: args, Results: results})
}

// Declare returns the function named name, declaring it with typ when
// absent. An existing function with a different signature is an error.
func (r *Registry) Declare(name string, typ ir.FunctionType) (*ir.Func, error) {
	if f := r.m.Lookup(name); f != nil {
		if !ir.Equal(f.Type(), typ) {
			return nil, errors.Wrapf(ErrSymbolConflict, "@%s: have %s, want %s", name, f.Type(), typ)
		}
		if _, ok := r.declared[name]; !ok {
			r.declared[name] = f
		}
		return f, nil
	}
	f, err := r.m.DeclareFunc(name, typ)
	if err != nil {
		return nil, err
	}
	r.declared[name] = f
	r.order = append(r.order, name)
	r.log.Debug("declared external function", zap.String("func", name), zap.Stringer("type", typ))
	return f, nil
}

// Created returns the names this registry declared, in declaration order.
func (r *Registry) Created() []string {
	return append([]string(nil), r.order...)
}
