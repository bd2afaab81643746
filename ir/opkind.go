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

package ir

import (
	"fmt"
	"strings"
)

// OpKind identifies an operation. The set is closed: adding an operation
// means adding a constant here and a row in opInfos.
type OpKind int

const (
	OpInvalid OpKind = iota

	// Standard dialect.
	OpConstant
	OpCall
	OpReturn
	OpAlloc

	// Affine dialect.
	OpAffineFor
	OpAffineParallel
	OpAffineLoad
	OpAffineStore
	OpAffineYield
	OpAffineApply

	// AIR dialect.
	OpShimDmaMemcpy

	// ATen structural operations.
	OpATenConstant
	OpTypeCast

	// ATen operators. Keep OpAdd first and OpView last; IsATenOperator
	// relies on the range.
	OpAdd
	OpAddmm
	OpAsStrided
	OpBatchNorm
	OpNativeBatchNorm
	OpConvolution
	OpConvolutionBackward
	OpDiv
	OpLogSoftmax
	OpLogSoftmaxBackward
	OpMaxPool2d
	OpMaxPool2dWithIndices
	OpMaxPool2dWithIndicesBackward
	OpMM
	OpMul
	OpNllLossForward
	OpNllLossBackward
	OpNllLoss2dForward
	OpNllLoss2dBackward
	OpReLU
	OpThresholdBackward
	OpTranspose
	OpView

	numOpKinds
)

type opInfo struct {
	name       string
	terminator bool
}

var opInfos = [numOpKinds]opInfo{
	OpInvalid:        {name: "<invalid>"},
	OpConstant:       {name: "std.constant"},
	OpCall:           {name: "std.call"},
	OpReturn:         {name: "std.return", terminator: true},
	OpAlloc:          {name: "std.alloc"},
	OpAffineFor:      {name: "affine.for"},
	OpAffineParallel: {name: "affine.parallel"},
	OpAffineLoad:     {name: "affine.load"},
	OpAffineStore:    {name: "affine.store"},
	OpAffineYield:    {name: "affine.yield", terminator: true},
	OpAffineApply:    {name: "affine.apply"},
	OpShimDmaMemcpy:  {name: "air.shim_dma_memcpy"},
	OpATenConstant:   {name: "aten.constant"},
	OpTypeCast:       {name: "aten.type_cast"},

	OpAdd:                          {name: "aten.add"},
	OpAddmm:                        {name: "aten.addmm"},
	OpAsStrided:                    {name: "aten.as_strided"},
	OpBatchNorm:                    {name: "aten.batch_norm"},
	OpNativeBatchNorm:              {name: "aten.native_batch_norm"},
	OpConvolution:                  {name: "aten.convolution"},
	OpConvolutionBackward:          {name: "aten.convolution_backward"},
	OpDiv:                          {name: "aten.div"},
	OpLogSoftmax:                   {name: "aten.log_softmax"},
	OpLogSoftmaxBackward:           {name: "aten._log_softmax_backward_data"},
	OpMaxPool2d:                    {name: "aten.max_pool2d"},
	OpMaxPool2dWithIndices:         {name: "aten.max_pool2d_with_indices"},
	OpMaxPool2dWithIndicesBackward: {name: "aten.max_pool2d_with_indices_backward"},
	OpMM:                           {name: "aten.mm"},
	OpMul:                          {name: "aten.mul"},
	OpNllLossForward:               {name: "aten.nll_loss_forward"},
	OpNllLossBackward:              {name: "aten.nll_loss_backward"},
	OpNllLoss2dForward:             {name: "aten.nll_loss2d_forward"},
	OpNllLoss2dBackward:            {name: "aten.nll_loss2d_backward"},
	OpReLU:                         {name: "aten.relu"},
	OpThresholdBackward:            {name: "aten.threshold_backward"},
	OpTranspose:                    {name: "aten.t"},
	OpView:                         {name: "aten.view"},
}

var kindsByName = func() map[string]OpKind {
	m := make(map[string]OpKind, numOpKinds)
	for k := OpKind(1); k < numOpKinds; k++ {
		m[opInfos[k].name] = k
	}
	return m
}()

// String returns the fully qualified operation name, e.g. "aten.add".
func (k OpKind) String() string {
	if k < 0 || k >= numOpKinds {
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
	return opInfos[k].name
}

// Dialect returns the dialect prefix of the operation name.
func (k OpKind) Dialect() string {
	name := k.String()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// IsTerminator reports whether the operation ends a block.
func (k OpKind) IsTerminator() bool {
	return k > OpInvalid && k < numOpKinds && opInfos[k].terminator
}

// IsATenOperator reports whether k is one of the high-level ATen operators
// (as opposed to aten.constant and aten.type_cast).
func (k OpKind) IsATenOperator() bool {
	return k >= OpAdd && k <= OpView
}

// KindByName looks up an operation kind by its qualified name.
func KindByName(name string) (OpKind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// ATenOperators returns every ATen operator kind in declaration order.
func ATenOperators() []OpKind {
	kinds := make([]OpKind, 0, OpView-OpAdd+1)
	for k := OpAdd; k <= OpView; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
