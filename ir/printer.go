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
	"io"
	"strings"
)

// Print writes the module in generic MLIR-like form:
//
//	module {
//	  func @graph(%arg0: tensor<4x4xf32>) -> tensor<4x4xf32> {
//	    %0 = "aten.relu"(%arg0) : (tensor<4x4xf32>) -> tensor<4x4xf32>
//	    "std.return"(%0) : (tensor<4x4xf32>) -> ()
//	  }
//	  func private @relu_AtenAcapOp_M4x4xF32_M4x4xF32(memref<4x4xf32>) -> memref<4x4xf32>
//	}
//
// Results are numbered per function in print order; block arguments are
// numbered %argN in the same way.
func Print(w io.Writer, m *Module) error {
	p := &printer{m: m}
	p.line(0, "module {")
	for _, f := range m.funcs {
		p.fn(f)
	}
	p.line(0, "}")
	_, err := io.WriteString(w, p.sb.String())
	return err
}

// String returns the printed form of the module.
func (m *Module) String() string {
	var sb strings.Builder
	_ = Print(&sb, m)
	return sb.String()
}

type printer struct {
	m     *Module
	sb    strings.Builder
	names map[ValueID]string
	nRes  int
	nArg  int
}

func (p *printer) line(indent int, s string) {
	p.sb.WriteString(strings.Repeat("  ", indent))
	p.sb.WriteString(s)
	p.sb.WriteString("\n")
}

func (p *printer) fn(f *Func) {
	p.names = make(map[ValueID]string)
	p.nRes, p.nArg = 0, 0
	results := resultList(f.typ.Results)
	if f.body == nil {
		p.line(1, fmt.Sprintf("func private @%s(%s)%s", f.name, typeList(f.typ.Inputs), results))
		return
	}
	args := make([]string, len(f.body.args))
	for i, a := range f.body.args {
		args[i] = p.argName(a) + ": " + typeString(p.m.Type(a))
	}
	p.line(1, fmt.Sprintf("func @%s(%s)%s {", f.name, strings.Join(args, ", "), results))
	p.block(f.body, 2)
	p.line(1, "}")
}

func (p *printer) block(blk *Block, indent int) {
	for _, id := range blk.ops {
		p.op(p.m.ops[id], indent)
	}
}

func (p *printer) op(op *Operation, indent int) {
	var sb strings.Builder
	if len(op.results) > 0 {
		res := make([]string, len(op.results))
		for i, r := range op.results {
			name := fmt.Sprintf("%%%d", p.nRes)
			p.nRes++
			p.names[r] = name
			res[i] = name
		}
		sb.WriteString(strings.Join(res, ", "))
		sb.WriteString(" = ")
	}
	operands := make([]string, len(op.operands))
	for i, v := range op.operands {
		operands[i] = p.valueName(v)
	}
	fmt.Fprintf(&sb, "%q(%s)", op.kind.String(), strings.Join(operands, ", "))
	if len(op.regions) > 0 {
		sb.WriteString(" ({")
		p.line(indent, sb.String())
		for _, region := range op.regions {
			args := make([]string, len(region.args))
			for i, a := range region.args {
				args[i] = p.argName(a) + ": " + typeString(p.m.Type(a))
			}
			p.line(indent, "^bb0("+strings.Join(args, ", ")+"):")
			p.block(region, indent+1)
		}
		sb.Reset()
		sb.WriteString("})")
	}
	if attrs := op.attrs.String(); attrs != "" {
		sb.WriteString(" ")
		sb.WriteString(attrs)
	}
	fmt.Fprintf(&sb, " : (%s) -> %s", typeList(p.m.Types(op.operands)), opResults(p.m.Types(op.results)))
	p.line(indent, sb.String())
}

func (p *printer) argName(v ValueID) string {
	name := fmt.Sprintf("%%arg%d", p.nArg)
	p.nArg++
	p.names[v] = name
	return name
}

func (p *printer) valueName(v ValueID) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	return fmt.Sprintf("%%<v%d>", v)
}

func typeList(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = typeString(t)
	}
	return strings.Join(parts, ", ")
}

func resultList(types []Type) string {
	switch len(types) {
	case 0:
		return ""
	case 1:
		return " -> " + typeString(types[0])
	default:
		return " -> (" + typeList(types) + ")"
	}
}

func opResults(types []Type) string {
	if len(types) == 1 {
		return typeString(types[0])
	}
	return "(" + typeList(types) + ")"
}
