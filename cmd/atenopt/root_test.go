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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajroetker/go-atenair/cmd/atenopt/modfile"
	"github.com/ajroetker/go-atenair/transforms/pipeline"
)

const (
	addFile  = "modfile/testdata/add.yaml"
	copyFile = "modfile/testdata/copy.yaml"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"lower", "air", "run", "passes"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	input := flags.Lookup("input")
	require.NotNil(t, input)
	assert.Equal(t, "i", input.Shorthand)

	entry := flags.Lookup("entry")
	require.NotNil(t, entry)
	assert.Equal(t, "graph", entry.DefValue)

	workers := flags.Lookup("workers")
	require.NotNil(t, workers)
	assert.Equal(t, "j", workers.Shorthand)

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	passes := run.Flags().Lookup("passes")
	require.NotNil(t, passes)
	assert.Equal(t, "aten-to-std,affine-to-air", passes.DefValue)
}

func TestPasses(t *testing.T) {
	out, err := execute(t, "passes")
	require.NoError(t, err)
	for _, p := range pipeline.Registered() {
		assert.Contains(t, out, p.Name())
		assert.Contains(t, out, p.Description())
	}
}

func TestLower(t *testing.T) {
	out, err := execute(t, "lower", "-i", addFile)
	require.NoError(t, err)
	assert.Contains(t, out, "func private @add_AtenAcapOp_M4xF32_M4xF32_M4xF32_I32(")
	assert.NotContains(t, out, "aten.add")
	assert.NotContains(t, out, "// -----")
}

func TestAirAcceptsPositionalInputs(t *testing.T) {
	out, err := execute(t, "air", copyFile)
	require.NoError(t, err)
	assert.Contains(t, out, "air.shim_dma_memcpy")
	assert.Contains(t, out, "@acap_L2_dma_copy_arg0")
}

func TestRunWritesReport(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "report.json")
	out, err := execute(t, "run", "-i", addFile, "-i", copyFile, "--report", reportPath, "-j", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "// ----- "+addFile+"\n")
	assert.Contains(t, out, "// ----- "+copyFile+"\n")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report modfile.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, []string{"aten-to-std", "affine-to-air"}, report.Passes)
	require.Len(t, report.Modules, 2)

	add := report.Modules[0]
	assert.Equal(t, addFile, add.Input)
	assert.Equal(t, "add", add.Name)
	require.Len(t, add.Passes, 2)
	assert.Equal(t, []string{"add_AtenAcapOp_M4xF32_M4xF32_M4xF32_I32"}, add.Passes[0].Declared)

	cp := report.Modules[1]
	assert.Equal(t, "copy", cp.Name)
	require.Len(t, cp.Passes, 2)
	assert.Equal(t, 1, cp.Passes[1].Transfers)
	assert.Equal(t, 1, cp.Passes[1].Specialized)
}

func writeNoEntry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "noentry.yaml")
	src := "functions:\n  - name: main\n    body:\n      - {op: std.return}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRunStopsOnFailure(t *testing.T) {
	bad := writeNoEntry(t)
	out, err := execute(t, "run", "-i", bad, "-j", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
	assert.Contains(t, err.Error(), "entry function not found")
	assert.Empty(t, out)
}

func TestRunKeepGoing(t *testing.T) {
	bad := writeNoEntry(t)
	reportPath := filepath.Join(t.TempDir(), "report.json")
	out, err := execute(t, "run", "-k", "-i", addFile, "-i", bad, "--report", reportPath)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 modules failed", err.Error())
	assert.Contains(t, out, "@add_AtenAcapOp_M4xF32_M4xF32_M4xF32_I32")
	assert.NotContains(t, out, bad)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report modfile.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.True(t, report.Failed())
	assert.Empty(t, report.Modules[0].Error)
	assert.Contains(t, report.Modules[1].Error, "@graph")
}

func TestRunErrors(t *testing.T) {
	_, err := execute(t, "run")
	assert.True(t, errors.Is(err, errNoInputs))

	_, err = execute(t, "run", "--passes", "fuse-everything", "-i", addFile)
	assert.True(t, errors.Is(err, pipeline.ErrUnknownPass), "%v", err)

	_, err = execute(t, "lower", "-i", "modfile/testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read module file")
}

func TestDebugEnv(t *testing.T) {
	t.Setenv(debugEnv, "")
	assert.False(t, newLogger(io.Discard, false).Core().Enabled(zap.DebugLevel))
	assert.True(t, newLogger(io.Discard, true).Core().Enabled(zap.DebugLevel))

	t.Setenv(debugEnv, "1")
	assert.True(t, newLogger(io.Discard, false).Core().Enabled(zap.DebugLevel))
	t.Setenv(debugEnv, "false")
	assert.False(t, newLogger(io.Discard, false).Core().Enabled(zap.DebugLevel))
}
