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

// Package workerpool provides a persistent worker pool for running many
// independent jobs, such as lowering a batch of modules. A Pool is created
// once and reused across batches.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	err := pool.ForEach(ctx, len(modules), func(ctx context.Context, i int) error {
//	    return lower(ctx, modules[i])
//	})
//
// Each index is handed to exactly one worker, so a job may mutate the data
// it owns without locking.
package workerpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

// Pool is a persistent worker pool. Workers are spawned once at creation
// and reused.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers workers. If numWorkers <= 0, uses
// GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the pool. Pending work completes. Calling Close more
// than once is safe; ForEach on a closed pool runs sequentially.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// ForEach calls fn for each index in [0, n), handing indices out to
// workers with atomic work stealing. It blocks until every started job has
// returned.
//
// Once a job fails or ctx is done, no new indices are started. The
// returned error combines the failures in index order, followed by
// ctx.Err() if the context ended the batch early.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	errs := make([]error, n)
	var failed atomic.Bool
	var stopped atomic.Bool
	run := func(i int) bool {
		if failed.Load() {
			return false
		}
		if ctx.Err() != nil {
			stopped.Store(true)
			return false
		}
		if err := fn(ctx, i); err != nil {
			errs[i] = err
			failed.Store(true)
			return false
		}
		return true
	}

	workers := min(p.numWorkers, n)
	if workers == 1 || p.closed.Load() {
		for i := range n {
			if !run(i) {
				break
			}
		}
		return combine(ctx, errs, stopped.Load())
	}

	var nextIdx atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		p.workC <- workItem{
			fn: func() {
				for {
					idx := int(nextIdx.Add(1)) - 1
					if idx >= n || !run(idx) {
						return
					}
				}
			},
			barrier: &wg,
		}
	}
	wg.Wait()
	return combine(ctx, errs, stopped.Load())
}

func combine(ctx context.Context, errs []error, stopped bool) error {
	if stopped {
		errs = append(errs, ctx.Err())
	}
	return multierr.Combine(errs...)
}
