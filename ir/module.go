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
	"slices"

	"github.com/pkg/errors"
)

// ErrSymbolExists is returned when adding a function whose name is taken.
var ErrSymbolExists = errors.New("symbol already defined")

// OpID is the stable handle of an operation inside its Module.
type OpID int32

// ValueID is the stable handle of an SSA value inside its Module.
type ValueID int32

const (
	// NoOp is the OpID of "no operation", e.g. the defining op of a block argument.
	NoOp OpID = -1

	// NoValue is the ValueID of "no value".
	NoValue ValueID = -1
)

// Use records that operand Index of operation Op reads a value.
type Use struct {
	Op    OpID
	Index int
}

type valueInfo struct {
	typ   Type
	def   OpID   // defining operation, NoOp for block arguments
	index int    // result index or argument index
	block *Block // owning block for arguments
	uses  []Use
}

// Operation is a node of the graph. Operands and results are value handles;
// mutate them through the Module so use lists stay consistent.
type Operation struct {
	id       OpID
	kind     OpKind
	operands []ValueID
	results  []ValueID
	attrs    Attrs
	regions  []*Block
	parent   *Block
}

// ID returns the operation handle.
func (op *Operation) ID() OpID { return op.id }

// Kind returns the operation kind.
func (op *Operation) Kind() OpKind { return op.kind }

// Name returns the qualified operation name.
func (op *Operation) Name() string { return op.kind.String() }

// Operands returns the operand handles. The slice must not be modified.
func (op *Operation) Operands() []ValueID { return op.operands }

// Operand returns operand i.
func (op *Operation) Operand(i int) ValueID { return op.operands[i] }

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int { return len(op.operands) }

// Results returns the result handles. The slice must not be modified.
func (op *Operation) Results() []ValueID { return op.results }

// Result returns result i.
func (op *Operation) Result(i int) ValueID { return op.results[i] }

// NumResults returns the number of results.
func (op *Operation) NumResults() int { return len(op.results) }

// Attr returns the named attribute, or nil.
func (op *Operation) Attr(name string) Attribute { return op.attrs[name] }

// Attrs returns the attribute dictionary.
func (op *Operation) Attrs() Attrs { return op.attrs }

// SetAttr sets the named attribute.
func (op *Operation) SetAttr(name string, a Attribute) {
	if op.attrs == nil {
		op.attrs = make(Attrs)
	}
	op.attrs[name] = a
}

// Regions returns the nested blocks owned by the operation (one per region).
func (op *Operation) Regions() []*Block { return op.regions }

// Region returns region i.
func (op *Operation) Region(i int) *Block { return op.regions[i] }

// Block returns the block containing the operation.
func (op *Operation) Block() *Block { return op.parent }

// String returns a short debug form, e.g. "aten.add#12".
func (op *Operation) String() string {
	return fmt.Sprintf("%s#%d", op.kind, op.id)
}

// Block is an ordered list of operations with typed arguments. Function
// bodies and operation regions are each a single Block.
type Block struct {
	m      *Module
	fn     *Func
	parent OpID
	args   []ValueID
	ops    []OpID
}

// Args returns the block argument handles.
func (b *Block) Args() []ValueID { return b.args }

// Arg returns argument i.
func (b *Block) Arg(i int) ValueID { return b.args[i] }

// NumArgs returns the number of block arguments.
func (b *Block) NumArgs() int { return len(b.args) }

// Len returns the number of operations in the block.
func (b *Block) Len() int { return len(b.ops) }

// Ops returns a snapshot of the operations in the block, in order. The
// snapshot stays valid while the block is mutated.
func (b *Block) Ops() []*Operation {
	ops := make([]*Operation, 0, len(b.ops))
	for _, id := range b.ops {
		ops = append(ops, b.m.ops[id])
	}
	return ops
}

// Front returns the first operation, or nil for an empty block.
func (b *Block) Front() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.m.ops[b.ops[0]]
}

// Terminator returns the last operation if it is a terminator, else nil.
func (b *Block) Terminator() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	last := b.m.ops[b.ops[len(b.ops)-1]]
	if !last.kind.IsTerminator() {
		return nil
	}
	return last
}

// ParentOp returns the operation owning this block, or nil for a function body.
func (b *Block) ParentOp() *Operation {
	if b.parent == NoOp {
		return nil
	}
	return b.m.ops[b.parent]
}

// Func returns the function this block belongs to.
func (b *Block) Func() *Func { return b.fn }

func (b *Block) indexOf(id OpID) int {
	return slices.Index(b.ops, id)
}

// Func is a function symbol: a unique name, a signature and an optional
// body. A Func without a body is an external declaration.
type Func struct {
	name string
	typ  FunctionType
	body *Block
}

// Name returns the symbol name.
func (f *Func) Name() string { return f.name }

// Type returns the function signature.
func (f *Func) Type() FunctionType { return f.typ }

// SetType replaces the function signature. Entry block argument types are
// not touched; callers converting a signature update them separately.
func (f *Func) SetType(t FunctionType) { f.typ = t }

// Body returns the entry block, or nil for declarations.
func (f *Func) Body() *Block { return f.body }

// IsDeclaration reports whether the function is an external declaration.
func (f *Func) IsDeclaration() bool { return f.body == nil }

// Module is a symbol table of functions together with the arena holding
// every operation and value of those functions. Erased operations leave a
// nil slot; handles are never reused.
type Module struct {
	ops    []*Operation
	values []valueInfo
	funcs  []*Func
	table  map[string]*Func
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{table: make(map[string]*Func)}
}

// AddFunc adds a function with an entry block whose arguments match the
// signature inputs.
func (m *Module) AddFunc(name string, typ FunctionType) (*Func, error) {
	f, err := m.addSymbol(name, typ)
	if err != nil {
		return nil, err
	}
	f.body = m.newBlock(f, NoOp, typ.Inputs)
	return f, nil
}

// DeclareFunc adds an external, body-less function declaration.
func (m *Module) DeclareFunc(name string, typ FunctionType) (*Func, error) {
	return m.addSymbol(name, typ)
}

func (m *Module) addSymbol(name string, typ FunctionType) (*Func, error) {
	if _, ok := m.table[name]; ok {
		return nil, errors.Wrapf(ErrSymbolExists, "@%s", name)
	}
	f := &Func{name: name, typ: FunctionType{
		Inputs:  slices.Clone(typ.Inputs),
		Results: slices.Clone(typ.Results),
	}}
	m.funcs = append(m.funcs, f)
	m.table[name] = f
	return f, nil
}

// Lookup returns the function with the given name, or nil.
func (m *Module) Lookup(name string) *Func {
	return m.table[name]
}

// Funcs returns the functions in definition order.
func (m *Module) Funcs() []*Func {
	return slices.Clone(m.funcs)
}

// Op returns the operation for a handle, or nil if it was erased.
func (m *Module) Op(id OpID) *Operation {
	if id < 0 || int(id) >= len(m.ops) {
		return nil
	}
	return m.ops[id]
}

// NumOps returns the number of live operations.
func (m *Module) NumOps() int {
	n := 0
	for _, op := range m.ops {
		if op != nil {
			n++
		}
	}
	return n
}

// Type returns the type of a value.
func (m *Module) Type(v ValueID) Type {
	return m.values[v].typ
}

// Types returns the types of several values.
func (m *Module) Types(vs []ValueID) []Type {
	types := make([]Type, len(vs))
	for i, v := range vs {
		types[i] = m.values[v].typ
	}
	return types
}

// SetType changes the type of a value in place.
func (m *Module) SetType(v ValueID, t Type) {
	m.values[v].typ = t
}

// DefiningOp returns the operation producing v, or nil for block arguments.
func (m *Module) DefiningOp(v ValueID) *Operation {
	def := m.values[v].def
	if def == NoOp {
		return nil
	}
	return m.ops[def]
}

// ResultIndex returns the result (or argument) position of v.
func (m *Module) ResultIndex(v ValueID) int {
	return m.values[v].index
}

// IsBlockArg reports whether v is a block argument.
func (m *Module) IsBlockArg(v ValueID) bool {
	return m.values[v].def == NoOp
}

// ArgOwner returns the block owning argument v, or nil if v is a result.
func (m *Module) ArgOwner(v ValueID) *Block {
	return m.values[v].block
}

// Uses returns a snapshot of the uses of v.
func (m *Module) Uses(v ValueID) []Use {
	return slices.Clone(m.values[v].uses)
}

// NumUses returns the number of uses of v.
func (m *Module) NumUses(v ValueID) int {
	return len(m.values[v].uses)
}

// HasUses reports whether v has any use.
func (m *Module) HasUses(v ValueID) bool {
	return len(m.values[v].uses) > 0
}

// ResultsUnused reports whether no result of op is used.
func (m *Module) ResultsUnused(op *Operation) bool {
	for _, r := range op.results {
		if m.HasUses(r) {
			return false
		}
	}
	return true
}

// SetOperand rewires operand i of op to v.
func (m *Module) SetOperand(op *Operation, i int, v ValueID) {
	old := op.operands[i]
	if old == v {
		return
	}
	m.dropUse(old, Use{Op: op.id, Index: i})
	op.operands[i] = v
	m.values[v].uses = append(m.values[v].uses, Use{Op: op.id, Index: i})
}

// SetOperands replaces the whole operand list of op.
func (m *Module) SetOperands(op *Operation, vs []ValueID) {
	for i, old := range op.operands {
		m.dropUse(old, Use{Op: op.id, Index: i})
	}
	op.operands = slices.Clone(vs)
	for i, v := range op.operands {
		m.values[v].uses = append(m.values[v].uses, Use{Op: op.id, Index: i})
	}
}

// ReplaceAllUsesWith rewires every use of from to read to instead.
func (m *Module) ReplaceAllUsesWith(from, to ValueID) {
	m.ReplaceAllUsesExcept(from, to, NoOp)
}

// ReplaceAllUsesExcept is ReplaceAllUsesWith but leaves uses by the
// operation except untouched.
func (m *Module) ReplaceAllUsesExcept(from, to ValueID, except OpID) {
	if from == to {
		return
	}
	var kept []Use
	for _, u := range m.values[from].uses {
		if u.Op == except {
			kept = append(kept, u)
			continue
		}
		m.ops[u.Op].operands[u.Index] = to
		m.values[to].uses = append(m.values[to].uses, u)
	}
	m.values[from].uses = kept
}

func (m *Module) dropUse(v ValueID, u Use) {
	uses := m.values[v].uses
	if i := slices.Index(uses, u); i >= 0 {
		m.values[v].uses = slices.Delete(uses, i, i+1)
	}
}

// Erase removes op, its nested regions and its operand uses from the
// module. It is a programming error to erase an operation whose results
// are still used outside of it.
func (m *Module) Erase(op *Operation) {
	for _, region := range op.regions {
		ops := region.ops
		for i := len(ops) - 1; i >= 0; i-- {
			if inner := m.ops[ops[i]]; inner != nil {
				m.Erase(inner)
			}
		}
	}
	for _, r := range op.results {
		if len(m.values[r].uses) > 0 {
			panic(fmt.Sprintf("ir: erasing %s whose result is still used", op))
		}
	}
	for i, v := range op.operands {
		m.dropUse(v, Use{Op: op.id, Index: i})
	}
	if op.parent != nil {
		if i := op.parent.indexOf(op.id); i >= 0 {
			op.parent.ops = slices.Delete(op.parent.ops, i, i+1)
		}
	}
	m.ops[op.id] = nil
	op.parent = nil
}

// MoveBefore detaches op from its block and inserts it into dst before the
// operation before, or at the end of dst when before is nil.
func (m *Module) MoveBefore(op *Operation, dst *Block, before *Operation) {
	if op.parent != nil {
		if i := op.parent.indexOf(op.id); i >= 0 {
			op.parent.ops = slices.Delete(op.parent.ops, i, i+1)
		}
	}
	op.parent = dst
	m.setFunc(op, dst.fn)
	if before == nil {
		dst.ops = append(dst.ops, op.id)
		return
	}
	i := dst.indexOf(before.id)
	if i < 0 {
		dst.ops = append(dst.ops, op.id)
		return
	}
	dst.ops = slices.Insert(dst.ops, i, op.id)
}

func (m *Module) setFunc(op *Operation, fn *Func) {
	for _, region := range op.regions {
		region.fn = fn
		for _, id := range region.ops {
			m.setFunc(m.ops[id], fn)
		}
	}
}

func (m *Module) newValue(t Type, def OpID, index int, block *Block) ValueID {
	m.values = append(m.values, valueInfo{typ: t, def: def, index: index, block: block})
	return ValueID(len(m.values) - 1)
}

func (m *Module) newBlock(fn *Func, parent OpID, argTypes []Type) *Block {
	b := &Block{m: m, fn: fn, parent: parent}
	for i, t := range argTypes {
		b.args = append(b.args, m.newValue(t, NoOp, i, b))
	}
	return b
}

// AddBlockArg appends an argument of type t to b.
func (m *Module) AddBlockArg(b *Block, t Type) ValueID {
	v := m.newValue(t, NoOp, len(b.args), b)
	b.args = append(b.args, v)
	return v
}

// ParentFunc returns the function enclosing op.
func (m *Module) ParentFunc(op *Operation) *Func {
	if op.parent == nil {
		return nil
	}
	return op.parent.fn
}

// IsProperAncestor reports whether anc (transitively) contains op in one of
// its regions.
func (m *Module) IsProperAncestor(anc, op *Operation) bool {
	for b := op.parent; b != nil; {
		p := b.ParentOp()
		if p == nil {
			return false
		}
		if p.id == anc.id {
			return true
		}
		b = p.parent
	}
	return false
}

// DefinedInside reports whether v is produced by an operation nested in
// op's regions or is an argument of one of those regions' blocks.
func (m *Module) DefinedInside(v ValueID, op *Operation) bool {
	var b *Block
	if def := m.DefiningOp(v); def != nil {
		if def.id == op.id {
			return false
		}
		b = def.parent
	} else {
		b = m.values[v].block
	}
	for b != nil {
		p := b.ParentOp()
		if p == nil {
			return false
		}
		if p.id == op.id {
			return true
		}
		b = p.parent
	}
	return false
}
