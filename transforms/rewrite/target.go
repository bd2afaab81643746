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

package rewrite

import (
	"github.com/ajroetker/go-atenair/ir"
)

// Legality is the verdict of a Target for one operation.
type Legality int

const (
	// Unknown operations may stay in the output; patterns are still tried.
	Unknown Legality = iota

	// Legal operations are left alone.
	Legal

	// Illegal operations must be rewritten or the run fails.
	Illegal
)

func (l Legality) String() string {
	switch l {
	case Legal:
		return "legal"
	case Illegal:
		return "illegal"
	default:
		return "unknown"
	}
}

// Target describes which operations and function signatures are
// acceptable in the output of a conversion.
type Target struct {
	dialects map[string]bool
	ops      map[ir.OpKind]Legality
	dynamic  map[ir.OpKind]func(*ir.Module, *ir.Operation) bool
	illegal  []func(ir.OpKind) bool

	// FuncLegal decides whether a function signature is legal. Nil means
	// every signature is legal.
	FuncLegal func(*ir.Func) bool
}

// NewTarget returns a target where nothing is legal yet.
func NewTarget() *Target {
	return &Target{
		dialects: make(map[string]bool),
		ops:      make(map[ir.OpKind]Legality),
		dynamic:  make(map[ir.OpKind]func(*ir.Module, *ir.Operation) bool),
	}
}

// AddLegalDialect marks every operation of the named dialects legal.
func (t *Target) AddLegalDialect(names ...string) {
	for _, n := range names {
		t.dialects[n] = true
	}
}

// AddLegalOp marks operation kinds legal.
func (t *Target) AddLegalOp(kinds ...ir.OpKind) {
	for _, k := range kinds {
		t.ops[k] = Legal
	}
}

// AddIllegalOp marks operation kinds illegal.
func (t *Target) AddIllegalOp(kinds ...ir.OpKind) {
	for _, k := range kinds {
		t.ops[k] = Illegal
	}
}

// AddUnknownOp overrides a dialect-wide verdict for kinds, making them
// neither legal nor illegal.
func (t *Target) AddUnknownOp(kinds ...ir.OpKind) {
	for _, k := range kinds {
		t.ops[k] = Unknown
	}
}

// AddIllegalWhen marks every kind for which pred returns true illegal.
func (t *Target) AddIllegalWhen(pred func(ir.OpKind) bool) {
	t.illegal = append(t.illegal, pred)
}

// AddDynamicallyLegalOp makes the legality of kind depend on the
// operation instance.
func (t *Target) AddDynamicallyLegalOp(kind ir.OpKind, legal func(*ir.Module, *ir.Operation) bool) {
	t.dynamic[kind] = legal
}

// Legality classifies op. Dynamic rules win over explicit per-kind entries,
// which win over predicates and dialect-wide entries.
func (t *Target) Legality(m *ir.Module, op *ir.Operation) Legality {
	kind := op.Kind()
	if fn, ok := t.dynamic[kind]; ok {
		if fn(m, op) {
			return Legal
		}
		return Illegal
	}
	if l, ok := t.ops[kind]; ok {
		return l
	}
	for _, pred := range t.illegal {
		if pred(kind) {
			return Illegal
		}
	}
	if t.dialects[kind.Dialect()] {
		return Legal
	}
	return Unknown
}

// IsFuncLegal reports whether f's signature is legal.
func (t *Target) IsFuncLegal(f *ir.Func) bool {
	return t.FuncLegal == nil || t.FuncLegal(f)
}
