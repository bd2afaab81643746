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

// Package pipeline runs registered passes over a module in order.
package pipeline

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/airdma"
	"github.com/ajroetker/go-atenair/transforms/atenlower"
)

var (
	// ErrUnknownPass is returned for a pass name that is not registered.
	ErrUnknownPass = errors.New("unknown pass")

	// ErrDuplicatePass is returned when registering a name twice.
	ErrDuplicatePass = errors.New("pass already registered")

	// ErrEmptyPipeline is returned for a pipeline with no passes.
	ErrEmptyPipeline = errors.New("empty pipeline")
)

// Config holds the settings shared by every pass of a pipeline.
type Config struct {
	Logger *zap.Logger

	// Entry is the function DMA synthesis rewrites; empty means "graph".
	Entry string

	// MaxIterations bounds fixpoint sweeps of the lowering; 0 means the
	// driver default.
	MaxIterations int
}

// Result is what one pass did to one module.
type Result struct {
	Pass        string         `json:"pass"`
	Iterations  int            `json:"iterations"`
	Applied     map[string]int `json:"applied,omitempty"`
	Declared    []string       `json:"declared,omitempty"`
	Swept       int            `json:"swept,omitempty"`
	Transfers   int            `json:"transfers,omitempty"`
	Specialized int            `json:"specialized,omitempty"`
	Duration    time.Duration  `json:"duration_ns"`
}

// Pass is a named module transformation.
type Pass interface {
	Name() string
	Description() string
	Run(m *ir.Module, cfg Config) (Result, error)
}

type passFunc struct {
	name, description string
	run               func(m *ir.Module, cfg Config) (Result, error)
}

func (p passFunc) Name() string        { return p.name }
func (p passFunc) Description() string { return p.description }

func (p passFunc) Run(m *ir.Module, cfg Config) (Result, error) {
	return p.run(m, cfg)
}

var (
	mu     sync.RWMutex
	passes = make(map[string]Pass)
)

// Register makes a pass available by name.
func Register(p Pass) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := passes[p.Name()]; ok {
		return errors.Wrapf(ErrDuplicatePass, "%q", p.Name())
	}
	passes[p.Name()] = p
	return nil
}

// Lookup returns the pass registered under name.
func Lookup(name string) (Pass, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := passes[name]
	return p, ok
}

// Registered returns every registered pass, sorted by name.
func Registered() []Pass {
	mu.RLock()
	defer mu.RUnlock()
	out := lo.Values(passes)
	slices.SortFunc(out, func(a, b Pass) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// ParseNames splits a comma-separated pass list, dropping blanks.
func ParseNames(list string) []string {
	names := lo.Map(strings.Split(list, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Compact(names)
}

// Manager runs a fixed sequence of passes.
type Manager struct {
	passes []Pass
	cfg    Config
}

// New returns a manager running the named passes in order.
func New(cfg Config, names ...string) (*Manager, error) {
	if len(names) == 0 {
		return nil, ErrEmptyPipeline
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	pm := &Manager{cfg: cfg}
	for _, name := range names {
		p, ok := Lookup(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownPass, "%q", name)
		}
		pm.passes = append(pm.passes, p)
	}
	return pm, nil
}

// Names returns the pass names in run order.
func (pm *Manager) Names() []string {
	return lo.Map(pm.passes, func(p Pass, _ int) string { return p.Name() })
}

// Run applies every pass to m in order and stops at the first failure.
// The results of the passes that ran are returned either way.
func (pm *Manager) Run(m *ir.Module) ([]Result, error) {
	results := make([]Result, 0, len(pm.passes))
	for _, p := range pm.passes {
		start := time.Now()
		res, err := p.Run(m, pm.cfg)
		res.Pass = p.Name()
		res.Duration = time.Since(start)
		results = append(results, res)
		if err != nil {
			return results, err
		}
		pm.cfg.Logger.Debug("pass finished",
			zap.String("pass", p.Name()),
			zap.Duration("duration", res.Duration),
			zap.Int("iterations", res.Iterations))
	}
	return results, nil
}

func init() {
	lo.Must0(Register(passFunc{
		name:        atenlower.PassName,
		description: "Lower ATen operators on tensors to calls on buffers",
		run: func(m *ir.Module, cfg Config) (Result, error) {
			stats, err := atenlower.Run(m,
				atenlower.WithLogger(cfg.Logger),
				atenlower.WithMaxIterations(cfg.MaxIterations))
			return Result{
				Iterations: stats.Iterations,
				Applied:    stats.Applied,
				Declared:   stats.Declared,
				Swept:      stats.Swept,
			}, err
		},
	}))
	lo.Must0(Register(passFunc{
		name:        airdma.PassName,
		description: "Lift affine copy loops to AIR DMA transfers",
		run: func(m *ir.Module, cfg Config) (Result, error) {
			opts := []airdma.Option{airdma.WithLogger(cfg.Logger)}
			if cfg.Entry != "" {
				opts = append(opts, airdma.WithEntry(cfg.Entry))
			}
			stats, err := airdma.Run(m, opts...)
			return Result{
				Iterations:  stats.Iterations,
				Declared:    stats.Declared,
				Transfers:   stats.Transfers,
				Specialized: stats.Specialized,
			}, err
		},
	}))
}
