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
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/ir"
)

var (
	// ErrLegalizationFailed is returned when an illegal operation or
	// function signature survives the fixpoint.
	ErrLegalizationFailed = errors.New("legalization failed")

	// ErrNoConvergence is returned when patterns keep applying after the
	// maximum number of sweeps.
	ErrNoConvergence = errors.New("rewriting did not converge")
)

// DefaultMaxIterations bounds the number of sweeps over the module.
const DefaultMaxIterations = 64

// Driver applies patterns to a module until a fixpoint is reached.
type Driver struct {
	Target       *Target
	Patterns     []Pattern
	FuncPatterns []FuncPattern

	// Materialize bridges type mismatches in Rewriter.ReplaceOp.
	Materialize Materializer

	// MaxIterations bounds the number of sweeps; 0 means DefaultMaxIterations.
	MaxIterations int

	Logger *zap.Logger
}

// Stats summarizes one driver run.
type Stats struct {
	Iterations int
	Applied    map[string]int
}

// Total returns the number of successful pattern applications.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Applied {
		n += c
	}
	return n
}

// Run rewrites m in place. Each sweep visits every function whose
// signature is illegal, then every operation that is not Legal, in
// pre-order; the first pattern (by benefit) that succeeds on an operation
// ends its turn. Sweeps repeat until one makes no change. Afterwards every
// remaining Illegal operation or illegal signature is reported.
func (d *Driver) Run(m *ir.Module) (Stats, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	target := d.Target
	if target == nil {
		target = NewTarget()
	}
	maxIter := d.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	patterns := newPatternSet(d.Patterns)
	rw := newRewriter(m, d.Materialize)
	stats := Stats{Applied: make(map[string]int)}

	for {
		if stats.Iterations == maxIter {
			return stats, errors.Wrapf(ErrNoConvergence, "after %d sweeps", maxIter)
		}
		stats.Iterations++
		changed := false

		for _, f := range m.Funcs() {
			if target.IsFuncLegal(f) {
				continue
			}
			for _, p := range d.FuncPatterns {
				ok, err := d.try(rw, func() (bool, error) { return p.Rewrite(rw, f) })
				if err != nil {
					return stats, errors.Wrapf(err, "pattern %s on @%s", p.Name, f.Name())
				}
				if ok {
					log.Debug("applied function pattern", zap.String("pattern", p.Name), zap.String("func", f.Name()))
					stats.Applied[p.Name]++
					changed = true
					break
				}
			}
		}

		var runErr error
		m.WalkAll(func(op *ir.Operation) bool {
			if target.Legality(m, op) == Legal {
				return true
			}
			for _, p := range patterns.lookup(op.Kind()) {
				name := op.String()
				fn := m.ParentFunc(op)
				ok, err := d.try(rw, func() (bool, error) { return p.Rewrite(rw, op) })
				if err != nil {
					runErr = errors.Wrapf(err, "pattern %s on %s", p.Name, name)
					return false
				}
				if ok {
					log.Debug("applied pattern",
						zap.String("pattern", p.Name),
						zap.String("op", name),
						zap.String("func", funcName(fn)))
					stats.Applied[p.Name]++
					changed = true
					break
				}
			}
			return true
		})
		if runErr != nil {
			return stats, runErr
		}
		if !changed {
			break
		}
	}

	return stats, d.verify(m, target)
}

// try runs one pattern application as a transaction.
func (d *Driver) try(rw *Rewriter, apply func() (bool, error)) (bool, error) {
	ok, err := apply()
	if err == nil {
		err = rw.err
	}
	if err != nil || !ok {
		rw.rollback()
		return false, err
	}
	rw.commit()
	return true, nil
}

func (d *Driver) verify(m *ir.Module, target *Target) error {
	for _, f := range m.Funcs() {
		if !target.IsFuncLegal(f) {
			return errors.Wrapf(ErrLegalizationFailed, "function @%s has illegal signature %s", f.Name(), f.Type())
		}
	}
	var err error
	m.WalkAll(func(op *ir.Operation) bool {
		if target.Legality(m, op) == Illegal {
			err = errors.Wrapf(ErrLegalizationFailed, "failed to legalize %s in @%s", op.Name(), funcName(m.ParentFunc(op)))
			return false
		}
		return true
	})
	return err
}

func funcName(f *ir.Func) string {
	if f == nil {
		return "?"
	}
	return f.Name()
}
