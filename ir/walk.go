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

// Walk visits every operation nested in blk in pre-order. The set of
// operations is captured before the first visit: operations created by fn
// are not visited, and operations erased by fn are skipped. Returning false
// from fn stops the walk.
func (m *Module) Walk(blk *Block, fn func(*Operation) bool) {
	for _, id := range m.collect(blk, nil) {
		op := m.ops[id]
		if op == nil {
			continue
		}
		if !fn(op) {
			return
		}
	}
}

// WalkFunc walks the body of f. Declarations have nothing to walk.
func (m *Module) WalkFunc(f *Func, fn func(*Operation) bool) {
	if f.body == nil {
		return
	}
	m.Walk(f.body, fn)
}

// WalkAll walks every function body in definition order.
func (m *Module) WalkAll(fn func(*Operation) bool) {
	stop := false
	for _, f := range m.funcs {
		if stop {
			return
		}
		m.WalkFunc(f, func(op *Operation) bool {
			if !fn(op) {
				stop = true
				return false
			}
			return true
		})
	}
}

func (m *Module) collect(blk *Block, ids []OpID) []OpID {
	for _, id := range blk.ops {
		ids = append(ids, id)
		for _, region := range m.ops[id].regions {
			ids = m.collect(region, ids)
		}
	}
	return ids
}
