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

package pipeline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/ir/aten"
)

func TestParseNames(t *testing.T) {
	assert.Equal(t, []string{"aten-to-std", "affine-to-air"}, ParseNames(" aten-to-std, ,affine-to-air,"))
	assert.Empty(t, ParseNames(""))
}

func TestRegistered(t *testing.T) {
	var names []string
	for _, p := range Registered() {
		names = append(names, p.Name())
		assert.NotEmpty(t, p.Description())
	}
	assert.Equal(t, []string{"affine-to-air", "aten-to-std"}, names)

	err := Register(passFunc{name: "aten-to-std"})
	assert.True(t, errors.Is(err, ErrDuplicatePass))
}

func TestNewRejectsUnknownPass(t *testing.T) {
	_, err := New(Config{}, "aten-to-std", "fuse-everything")
	assert.True(t, errors.Is(err, ErrUnknownPass))
	assert.Contains(t, err.Error(), "fuse-everything")

	_, err = New(Config{})
	assert.True(t, errors.Is(err, ErrEmptyPipeline))
}

// graph builds graph(%x: tensor<32xf32>) { return relu(%x) }.
func graph(t *testing.T) *ir.Module {
	t.Helper()
	tensor := ir.NewTensor(ir.F32, 32)
	m := ir.NewModule()
	f, err := m.AddFunc("graph", ir.FunctionType{Inputs: []ir.Type{tensor}, Results: []ir.Type{tensor}})
	require.NoError(t, err)
	b := ir.NewBuilder(m)
	b.SetInsertionPointToEnd(f.Body())
	relu, err := aten.Create(b, ir.OpReLU, []ir.ValueID{f.Body().Arg(0)}, []ir.Type{tensor})
	require.NoError(t, err)
	b.Return(relu.Result(0))
	return m
}

func TestManagerRunsInOrder(t *testing.T) {
	m := graph(t)
	pm, err := New(Config{}, ParseNames("aten-to-std,affine-to-air")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"aten-to-std", "affine-to-air"}, pm.Names())

	results, err := pm.Run(m)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "aten-to-std", results[0].Pass)
	assert.Equal(t, []string{"relu_AtenAcapOp_M32xF32_M32xF32"}, results[0].Declared)
	assert.Equal(t, 1, results[0].Applied["aten.relu-to-call"])
	assert.Equal(t, "affine-to-air", results[1].Pass)
	assert.Equal(t, 0, results[1].Transfers)
}

func TestManagerStopsAtFirstFailure(t *testing.T) {
	m := graph(t)
	pm, err := New(Config{Entry: "main"}, "aten-to-std", "affine-to-air")
	require.NoError(t, err)
	results, err := pm.Run(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@main")
	require.Len(t, results, 2)
	assert.Len(t, results[0].Declared, 1)
}
