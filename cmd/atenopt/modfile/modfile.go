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

// Package modfile reads module descriptions for atenopt and writes its
// JSON reports.
//
// A module file is YAML (or JSON) listing functions and their bodies:
//
//	name: add
//	functions:
//	  - name: graph
//	    inputs: [tensor<4xf32>, tensor<4xf32>]
//	    results: [tensor<4xf32>]
//	    body:
//	      - {op: aten.add, operands: ["%arg0", "%arg1", 1], results: [tensor<4xf32>], names: [sum]}
//	      - {op: std.return, operands: ["%sum"]}
//
// Operands starting with "%" name values: function inputs are %arg0,
// %arg1, ... unless renamed with args, and op results are bound by names.
// Any other operand of an ATen operator is a literal, turned into an
// aten.constant of the kind the operator's catalog schema expects there.
package modfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ajroetker/go-atenair/ir"
)

// ErrInvalid is returned for a module description that cannot be built.
var ErrInvalid = errors.New("invalid module description")

// File is the decoded form of a module file.
type File struct {
	// Name labels the module in logs and reports.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	Functions []Function `yaml:"functions" json:"functions"`
}

// Function describes a function definition or, with Declare set, an
// external declaration.
type Function struct {
	Name    string   `yaml:"name" json:"name"`
	Inputs  []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Results []string `yaml:"results,omitempty" json:"results,omitempty"`

	// Args renames the inputs; the default names are arg0, arg1, ...
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	Declare bool `yaml:"declare,omitempty" json:"declare,omitempty"`
	Body    []Op `yaml:"body,omitempty" json:"body,omitempty"`
}

// Op describes one operation. Which fields apply depends on the kind:
//
//	aten.*          operands, results
//	std.constant    value, results (one integer, index or float type)
//	std.call        callee, operands
//	std.alloc       results (one memref type)
//	std.return      operands
//	affine.load     operands (memref, indices...)
//	affine.store    operands (value, memref, indices...)
//	affine.for      lower, upper, step, ivs (one name), body
//	affine.parallel ranges ([lower, upper] pairs), ivs, body
type Op struct {
	Op       string   `yaml:"op" json:"op"`
	Operands []any    `yaml:"operands,omitempty" json:"operands,omitempty"`
	Results  []string `yaml:"results,omitempty" json:"results,omitempty"`
	Names    []string `yaml:"names,omitempty" json:"names,omitempty"`

	Callee string `yaml:"callee,omitempty" json:"callee,omitempty"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`

	Lower  int64     `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper  int64     `yaml:"upper,omitempty" json:"upper,omitempty"`
	Step   int64     `yaml:"step,omitempty" json:"step,omitempty"`
	Ranges [][]int64 `yaml:"ranges,omitempty" json:"ranges,omitempty"`
	IVs    []string  `yaml:"ivs,omitempty" json:"ivs,omitempty"`
	Body   []Op      `yaml:"body,omitempty" json:"body,omitempty"`
}

// Load reads and builds the module file at path. Files ending in .json
// are decoded as JSON, everything else as YAML. Unknown fields are
// rejected in both.
func Load(path string) (*ir.Module, *File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read module file")
	}
	var f *File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err = DecodeJSON(data)
	} else {
		f, err = DecodeYAML(data)
	}
	if err != nil {
		return nil, nil, errors.WithMessage(err, path)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m, err := f.Build()
	if err != nil {
		return nil, nil, errors.WithMessage(err, path)
	}
	return m, f, nil
}

// DecodeYAML parses a YAML module file.
func DecodeYAML(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	return &f, nil
}

// DecodeJSON parses a JSON module file.
func DecodeJSON(data []byte) (*File, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}
	return &f, nil
}

// Build creates the module the file describes. Every function is added
// before any body is built, so calls may refer to functions declared later
// in the file.
func (f *File) Build() (*ir.Module, error) {
	m := ir.NewModule()
	funcs := make([]*ir.Func, len(f.Functions))
	for i, fn := range f.Functions {
		typ, err := fn.signature()
		if err != nil {
			return nil, err
		}
		if fn.Declare {
			if len(fn.Body) > 0 {
				return nil, errors.Wrapf(ErrInvalid, "declaration @%s has a body", fn.Name)
			}
			funcs[i], err = m.DeclareFunc(fn.Name, typ)
		} else {
			funcs[i], err = m.AddFunc(fn.Name, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	for i, fn := range f.Functions {
		if fn.Declare {
			continue
		}
		if err := fn.build(m, funcs[i]); err != nil {
			return nil, errors.WithMessagef(err, "function @%s", fn.Name)
		}
	}
	return m, nil
}

func (fn Function) signature() (ir.FunctionType, error) {
	inputs, err := parseTypes(fn.Inputs)
	if err != nil {
		return ir.FunctionType{}, errors.WithMessagef(err, "inputs of @%s", fn.Name)
	}
	results, err := parseTypes(fn.Results)
	if err != nil {
		return ir.FunctionType{}, errors.WithMessagef(err, "results of @%s", fn.Name)
	}
	return ir.FunctionType{Inputs: inputs, Results: results}, nil
}

func parseTypes(ss []string) ([]ir.Type, error) {
	types := make([]ir.Type, len(ss))
	for i, s := range ss {
		t, err := ir.ParseType(s)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

// scope maps value names to values. Names bound inside a loop body go out
// of scope when the body ends.
type scope struct {
	parent *scope
	values map[string]ir.ValueID
}

func (s *scope) bind(name string, v ir.ValueID) error {
	name = strings.TrimPrefix(name, "%")
	if name == "" {
		return errors.Wrap(ErrInvalid, "empty value name")
	}
	if _, ok := s.values[name]; ok {
		return errors.Wrapf(ErrInvalid, "%%%s bound twice", name)
	}
	s.values[name] = v
	return nil
}

func (s *scope) lookup(name string) (ir.ValueID, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := s.values[name]; ok {
			return v, true
		}
	}
	return ir.NoValue, false
}

func newScope() *scope {
	return &scope{values: make(map[string]ir.ValueID)}
}

func (s *scope) child() *scope {
	inner := newScope()
	inner.parent = s
	return inner
}

func (fn Function) build(m *ir.Module, f *ir.Func) error {
	sc := newScope()
	body := f.Body()
	if len(fn.Args) > 0 && len(fn.Args) != body.NumArgs() {
		return errors.Wrapf(ErrInvalid, "%d arg names for %d inputs", len(fn.Args), body.NumArgs())
	}
	for i, v := range body.Args() {
		name := "arg" + strconv.Itoa(i)
		if len(fn.Args) > 0 {
			name = fn.Args[i]
		}
		if err := sc.bind(name, v); err != nil {
			return err
		}
	}
	b := ir.NewBuilder(m)
	b.SetInsertionPointToEnd(body)
	if err := buildOps(b, sc, fn.Body); err != nil {
		return err
	}
	if t := body.Terminator(); t == nil || t.Kind() != ir.OpReturn {
		return errors.Wrap(ErrInvalid, "body does not end in std.return")
	}
	return nil
}

func buildOps(b *ir.Builder, sc *scope, ops []Op) error {
	for i, op := range ops {
		if err := op.build(b, sc); err != nil {
			return errors.WithMessagef(err, "op %d (%s)", i, op.Op)
		}
	}
	return nil
}
