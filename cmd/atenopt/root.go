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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajroetker/go-atenair/transforms/airdma"
	"github.com/ajroetker/go-atenair/transforms/atenlower"
	"github.com/ajroetker/go-atenair/transforms/pipeline"
)

// debugEnv switches on development logging, like --verbose.
const debugEnv = "ATENOPT_DEBUG"

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	Inputs        []string
	Entry         string
	MaxIterations int
	Workers       int
	Report        string
	KeepGoing     bool
	Verbose       bool
}

// NewRootCommand creates the atenopt command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "atenopt",
		Short: "Lower ATen graphs for AIR",
		Long: `atenopt runs the ATen lowering passes over module descriptions.

aten-to-std rewrites ATen operators on tensors into calls to mangled
external functions on buffers. affine-to-air lifts affine copy loops from
external memory to L2 into AIR DMA transfers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVarP(&opts.Inputs, "input", "i", nil, "module file to transform (repeatable)")
	flags.StringVar(&opts.Entry, "entry", airdma.DefaultEntry, "function rewritten by affine-to-air")
	flags.IntVar(&opts.MaxIterations, "max-iterations", 0, "bound on rewrite sweeps per pass (0 = default)")
	flags.IntVarP(&opts.Workers, "workers", "j", 0, "modules transformed concurrently (0 = GOMAXPROCS)")
	flags.StringVar(&opts.Report, "report", "", `write a JSON report to this file ("-" for stdout)`)
	flags.BoolVarP(&opts.KeepGoing, "keep-going", "k", false, "transform the remaining modules after a failure")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "development logging at debug level")

	cmd.AddCommand(newPassCommand(opts, "lower", atenlower.PassName, "Lower ATen operators to calls on buffers"))
	cmd.AddCommand(newPassCommand(opts, "air", airdma.PassName, "Lift copy loops to AIR DMA transfers"))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPassesCommand())

	return cmd
}

// newPassCommand creates a command running a single pass.
func newPassCommand(opts *RootOptions, use, pass, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [module-file...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, []string{pass}, args)
		},
	}
}

// NewRunCommand creates the run command, which runs a pipeline of passes.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var passes string
	cmd := &cobra.Command{
		Use:   "run [module-file...]",
		Short: "Run a pipeline of passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, pipeline.ParseNames(passes), args)
		},
	}
	cmd.Flags().StringVarP(&passes, "passes", "p", atenlower.PassName+","+airdma.PassName,
		"comma-separated passes, run in order")
	return cmd
}

// NewPassesCommand creates the passes command, which lists the registered
// passes.
func NewPassesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "List the registered passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, p := range pipeline.Registered() {
				if _, err := fmt.Fprintf(w, "%-16s %s\n", p.Name(), p.Description()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// newLogger returns a JSON logger at info level writing to w, or a
// development console logger at debug level when verbose is set or the
// debug environment variable is non-empty.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	if v := os.Getenv(debugEnv); v != "" && v != "0" && !strings.EqualFold(v, "false") {
		verbose = true
	}
	if verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zap.DebugLevel), zap.Development())
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zap.InfoLevel))
}
