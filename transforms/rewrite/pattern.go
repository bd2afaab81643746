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

// Package rewrite is a small pattern-rewriting engine over ir modules: a
// set of patterns is applied to every operation that is not yet legal for
// a conversion target, repeatedly, until nothing changes. Each pattern
// application is a transaction: it either commits completely or leaves the
// module untouched.
package rewrite

import (
	"cmp"
	"slices"

	"github.com/ajroetker/go-atenair/ir"
)

// Pattern rewrites one operation.
type Pattern struct {
	// Name identifies this pattern in logs and statistics.
	Name string

	// Root restricts the pattern to one operation kind. OpInvalid matches
	// every kind.
	Root ir.OpKind

	// Benefit determines application order (higher = tried first).
	Benefit int

	// Rewrite attempts the rewrite. It returns false to decline, in which
	// case everything it did through rw is discarded. A non-nil error aborts
	// the whole driver run.
	Rewrite func(rw *Rewriter, op *ir.Operation) (bool, error)
}

// FuncPattern rewrites a function symbol, typically its signature.
type FuncPattern struct {
	Name    string
	Rewrite func(rw *Rewriter, f *ir.Func) (bool, error)
}

// patternSet indexes patterns by root kind, each list sorted by benefit.
type patternSet struct {
	byKind map[ir.OpKind][]Pattern
	any    []Pattern
}

func newPatternSet(patterns []Pattern) *patternSet {
	s := &patternSet{byKind: make(map[ir.OpKind][]Pattern)}
	sorted := slices.Clone(patterns)
	slices.SortStableFunc(sorted, func(a, b Pattern) int {
		return cmp.Compare(b.Benefit, a.Benefit)
	})
	for _, p := range sorted {
		if p.Root == ir.OpInvalid {
			s.any = append(s.any, p)
		} else {
			s.byKind[p.Root] = append(s.byKind[p.Root], p)
		}
	}
	return s
}

// lookup returns the patterns applicable to kind in benefit order.
func (s *patternSet) lookup(kind ir.OpKind) []Pattern {
	specific := s.byKind[kind]
	if len(s.any) == 0 {
		return specific
	}
	out := append(slices.Clone(specific), s.any...)
	slices.SortStableFunc(out, func(a, b Pattern) int {
		return cmp.Compare(b.Benefit, a.Benefit)
	})
	return out
}
