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

package airdma

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ajroetker/go-atenair/ir"
	"github.com/ajroetker/go-atenair/transforms/atenlower"
	"github.com/ajroetker/go-atenair/transforms/rewrite"
)

// ErrHelperCall is returned for a call to a known DMA helper that cannot
// be specialized.
var ErrHelperCall = errors.New("malformed DMA helper call")

// Helper prefixes whose calls go through the specializer.
const (
	l2HelperPrefix = "acap_L2_dma_copy"
	l1HelperPrefix = "acap_L1_dma_copy"
)

// helper describes how a generic DMA helper call maps to its specialized
// form. The specialized call always takes (input, output, dim1, dim0);
// the fields give the position of each in the generic call.
type helper struct {
	specialized string

	input, output, dim1, dim0 int
}

// helpers maps the known helpers to their specialized forms:
//
//	acap_L2_dma_copy(dim1, input, output, dim0)   -> acap_L2_dma_copy_arg0(input, output, dim1, dim0)
//	acap_L2_dma_copy_1(dim1, input, dim0, output) -> acap_L2_dma_copy_arg1(input, output, dim1, dim0)
var helpers = map[string]helper{
	"acap_L2_dma_copy":   {specialized: "acap_L2_dma_copy_arg0", dim1: 0, input: 1, output: 2, dim0: 3},
	"acap_L2_dma_copy_1": {specialized: "acap_L2_dma_copy_arg1", dim1: 0, input: 1, dim0: 2, output: 3},
}

// SpecializedName returns the function a helper call is rewritten to.
func SpecializedName(callee string) (string, bool) {
	h, ok := helpers[callee]
	return h.specialized, ok
}

func specializePattern(entry string, reg *atenlower.Registry) rewrite.Pattern {
	return rewrite.Pattern{
		Name: "specialize-dma-helper",
		Root: ir.OpCall,
		Rewrite: func(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
			m := rw.Module()
			if f := m.ParentFunc(op); f == nil || f.Name() != entry {
				return false, nil
			}
			call, _ := ir.AsCall(op)
			callee := call.Callee()
			if !strings.HasPrefix(callee, l2HelperPrefix) && !strings.HasPrefix(callee, l1HelperPrefix) {
				return false, nil
			}
			h, ok := helpers[callee]
			if !ok {
				return false, nil
			}

			args := call.Args()
			if len(args) != 4 {
				return false, errors.Wrapf(ErrHelperCall, "@%s takes 4 arguments, got %d", callee, len(args))
			}
			if !m.ResultsUnused(op) {
				return false, errors.Wrapf(ErrHelperCall, "result of @%s is used", callee)
			}
			operands := []ir.ValueID{args[h.input], args[h.output], args[h.dim1], args[h.dim0]}
			fn, err := reg.Declare(h.specialized, ir.FunctionType{Inputs: m.Types(operands)})
			if err != nil {
				return false, err
			}
			rw.SetInsertionPointBefore(op)
			rw.Call(fn, operands...)
			rw.EraseOp(op)
			return true, nil
		},
	}
}
