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

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-atenair/cmd/atenopt/modfile"
	"github.com/ajroetker/go-atenair/contrib/workerpool"
	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/pipeline"
)

// errNoInputs is returned when a command is given no module files.
var errNoInputs = errors.New("no input modules (use -i or pass files as arguments)")

// job is one input module moving through the batch. Only the worker that
// owns a job touches its module.
type job struct {
	input  string
	name   string
	module *ir.Module
	report modfile.ModuleReport
}

// runBatch loads every input, runs the passes over each module on the
// worker pool, prints the transformed modules in input order and writes
// the report.
func runBatch(cmd *cobra.Command, opts *RootOptions, passes []string, args []string) error {
	inputs := append(append([]string(nil), opts.Inputs...), args...)
	if len(inputs) == 0 {
		return errNoInputs
	}
	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	defer func() { _ = log.Sync() }()

	pm, err := pipeline.New(pipeline.Config{
		Logger:        log,
		Entry:         opts.Entry,
		MaxIterations: opts.MaxIterations,
	}, passes...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	jobs, err := loadAll(ctx, inputs, opts.Workers)
	if err != nil {
		return err
	}

	pool := workerpool.New(opts.Workers)
	defer pool.Close()
	runErr := pool.ForEach(ctx, len(jobs), func(_ context.Context, i int) error {
		j := jobs[i]
		jlog := log.With(zap.String("module", j.name))
		results, err := pm.Run(j.module)
		j.report.Passes = results
		if err != nil {
			j.report.Error = err.Error()
			jlog.Error("transform failed", zap.Error(err))
			if !opts.KeepGoing {
				return errors.WithMessage(err, j.input)
			}
			return nil
		}
		jlog.Debug("transformed", zap.Int("passes", len(results)))
		return nil
	})

	report := modfile.Report{Passes: pm.Names()}
	for _, j := range jobs {
		report.Modules = append(report.Modules, j.report)
	}
	if opts.Report != "" {
		if err := report.WriteFile(opts.Report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if err := printModules(cmd.OutOrStdout(), jobs); err != nil {
		return err
	}
	if report.Failed() {
		failed := 0
		for _, m := range report.Modules {
			if m.Error != "" {
				failed++
			}
		}
		return errors.Errorf("%d of %d modules failed", failed, len(jobs))
	}
	return nil
}

// loadAll reads and builds the inputs concurrently. The first failure
// cancels the remaining loads.
func loadAll(ctx context.Context, inputs []string, workers int) ([]*job, error) {
	jobs := make([]*job, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, f, err := modfile.Load(input)
			if err != nil {
				return err
			}
			jobs[i] = &job{
				input:  input,
				name:   f.Name,
				module: m,
				report: modfile.ModuleReport{Input: input, Name: f.Name},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// printModules writes each successfully transformed module, separated by
// a marker line when there is more than one.
func printModules(w io.Writer, jobs []*job) error {
	for _, j := range jobs {
		if j.report.Error != "" {
			continue
		}
		if len(jobs) > 1 {
			if _, err := fmt.Fprintf(w, "// ----- %s\n", j.input); err != nil {
				return err
			}
		}
		if err := ir.Print(w, j.module); err != nil {
			return err
		}
	}
	return nil
}
