// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package write implements the canonical pretty-printer from ast back to
// concrete Dyon syntax (spec §2 "Writer"). It is grounded on
// expr/quote.go's string-quoting idiom and expr/string_test.go's
// render-and-compare test style in the teacher repo, generalized from
// quoting a single SQL string literal to rendering every ast.Node kind.
package write

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dyonlang/dyon/ast"
)

// Fn renders a loaded function definition back to source.
func Fn(fn *ast.Fn) string {
	var b strings.Builder
	writeFn(&b, fn)
	return b.String()
}

// Block renders a `{ ... }` block at the given indent depth (0 = top
// level), one statement per line.
func Block(blk *ast.Block, depth int) string {
	var b strings.Builder
	writeBlock(&b, blk, depth)
	return b.String()
}

// Expr renders a single expression node.
func Expr(n ast.Node) string {
	var b strings.Builder
	writeExpr(&b, n)
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}

func writeFn(b *strings.Builder, fn *ast.Fn) {
	b.WriteString("fn ")
	b.WriteString(fn.Name)
	b.WriteByte('(')
	writeArgs(b, fn.Args)
	b.WriteByte(')')
	for i, cur := range fn.Currents {
		if i == 0 {
			b.WriteString(" ~ ")
		} else {
			b.WriteString(", ~ ")
		}
		b.WriteString(cur)
	}
	if fn.Returns {
		b.WriteString(" -> _")
	}
	b.WriteString(" ")
	writeBlock(b, fn.Body, 0)
}

func writeArgs(b *strings.Builder, args []ast.Arg) {
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		if a.Current {
			b.WriteByte('~')
		}
		if a.Mut {
			b.WriteString("mut ")
		}
		b.WriteString(a.Name)
		if a.Lifetime != "" {
			b.WriteString(": '")
			b.WriteString(a.Lifetime)
		}
	}
}

func writeBlock(b *strings.Builder, blk *ast.Block, depth int) {
	b.WriteString("{\n")
	for _, s := range blk.Stmts {
		indent(b, depth+1)
		writeStmt(b, s, depth+1)
		b.WriteByte('\n')
	}
	indent(b, depth)
	b.WriteByte('}')
}

// writeStmt renders one statement-position node. depth is the depth of
// the statement itself (its own indent was already written by the
// caller); nested blocks are written one level deeper.
func writeStmt(b *strings.Builder, n ast.Node, depth int) {
	switch s := n.(type) {
	case *ast.Assign:
		writeExpr(b, s.Left)
		b.WriteByte(' ')
		b.WriteString(assignOpString(s))
		b.WriteByte(' ')
		writeExpr(b, s.Right)
	case *ast.Return:
		b.WriteString("return")
		if s.Value != nil {
			b.WriteByte(' ')
			writeExpr(b, s.Value)
		}
	case *ast.Break:
		b.WriteString("break")
		if s.HasLabel {
			b.WriteString(" '")
			b.WriteString(s.Label)
		}
	case *ast.Continue:
		b.WriteString("continue")
		if s.HasLabel {
			b.WriteString(" '")
			b.WriteString(s.Label)
		}
	case *ast.If:
		writeIf(b, s, depth)
	case *ast.For:
		writeLabel(b, s.Label, s.HasLabel)
		b.WriteString("for ")
		if s.Init != nil {
			writeStmt(b, s.Init, depth)
		}
		b.WriteString("; ")
		if s.Cond != nil {
			writeExpr(b, s.Cond)
		}
		b.WriteString("; ")
		if s.Step != nil {
			writeStmt(b, s.Step, depth)
		}
		b.WriteString(" ")
		writeBlock(b, s.Body, depth)
	case *ast.ForN:
		writeLabel(b, s.Label, s.HasLabel)
		fmt.Fprintf(b, "for %s [", s.Name)
		writeExpr(b, s.Start)
		b.WriteString(", ")
		writeExpr(b, s.End)
		b.WriteString(") ")
		writeBlock(b, s.Body, depth)
	case *ast.ForIn:
		writeLabel(b, s.Label, s.HasLabel)
		fmt.Fprintf(b, "for %s in ", s.Name)
		writeExpr(b, s.Iter)
		b.WriteString(" ")
		writeBlock(b, s.Body, depth)
	case *ast.Loop:
		writeLabel(b, s.Label, s.HasLabel)
		b.WriteString("loop ")
		writeBlock(b, s.Body, depth)
	case *ast.Reduce:
		fmt.Fprintf(b, "%s %s [", s.Kind, s.Name)
		writeExpr(b, s.Start)
		b.WriteString(", ")
		writeExpr(b, s.End)
		b.WriteString(") ")
		writeBlock(b, s.Body, depth)
	case *ast.Try:
		b.WriteString("try ")
		writeExpr(b, s.Body)
	case *ast.Go:
		b.WriteString("go ")
		writeExpr(b, s.Call)
	case *ast.In:
		fmt.Fprintf(b, "in %s", s.FnName)
	case *ast.Block:
		writeBlock(b, s, depth)
	default:
		writeExpr(b, n)
	}
}

func writeLabel(b *strings.Builder, label string, has bool) {
	if has {
		b.WriteByte('\'')
		b.WriteString(label)
		b.WriteString(": ")
	}
}

func writeIf(b *strings.Builder, s *ast.If, depth int) {
	for i, cond := range s.Conds {
		if i == 0 {
			b.WriteString("if ")
		} else {
			b.WriteString(" else if ")
		}
		writeExpr(b, cond)
		b.WriteString(" ")
		writeBlock(b, s.Blocks[i], depth)
	}
	if s.Else != nil {
		b.WriteString(" else ")
		writeBlock(b, s.Else, depth)
	}
}

func assignOpString(a *ast.Assign) string {
	switch a.Op {
	case ast.AssignDecl:
		return ":="
	case ast.AssignSet:
		return "="
	case ast.AssignCompound:
		return arithOpString(a.Compound) + "="
	default:
		return "?="
	}
}

func arithOpString(op ast.ArithOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpRem:
		return "%"
	case ast.OpPow:
		return "^"
	case ast.OpDotMul:
		return ".*"
	default:
		return "?"
	}
}

func compareOpString(op ast.CompareOp) string {
	switch op {
	case ast.CmpEq:
		return "=="
	case ast.CmpNe:
		return "!="
	case ast.CmpLt:
		return "<"
	case ast.CmpLe:
		return "<="
	case ast.CmpGt:
		return ">"
	case ast.CmpGe:
		return ">="
	default:
		return "?"
	}
}

// writeExpr renders an expression-position node. Compound statement
// forms (If, For, Loop, ...) may also appear here when nested inside an
// expression (e.g. a `try` wrapping an `if`); writeStmt is reused via
// writeStmt's default branch in the opposite direction, so both
// entrypoints converge on the same per-kind switch below for anything
// that is a genuine expression.
func writeExpr(b *strings.Builder, n ast.Node) {
	switch e := n.(type) {
	case *ast.BoolLit:
		fmt.Fprintf(b, "%t", e.Value)
	case *ast.F64Lit:
		b.WriteString(formatF64(e.Value))
	case *ast.TextLit:
		b.WriteString(Quote(e.Value))
	case *ast.Vec4Lit:
		b.WriteByte('(')
		writeExpr(b, e.X)
		b.WriteString(", ")
		writeExpr(b, e.Y)
		b.WriteString(", ")
		writeExpr(b, e.Z)
		b.WriteString(", ")
		writeExpr(b, e.W)
		b.WriteByte(')')
	case *ast.Mat4Lit:
		b.WriteString("mat4(")
		for i, c := range e.Cols {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, c)
		}
		b.WriteByte(')')
	case *ast.Norm:
		b.WriteString("norm(")
		writeExpr(b, e.Expr)
		b.WriteByte(')')
	case *ast.Swizzle:
		b.WriteString(e.Components)
		b.WriteByte(' ')
		writeExpr(b, e.Expr)
	case *ast.Item:
		writeItem(b, e)
	case *ast.ObjectLit:
		b.WriteByte('{')
		for i, kv := range e.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(kv.Key)
			b.WriteString(": ")
			writeExpr(b, kv.Value)
		}
		b.WriteByte('}')
	case *ast.ArrayLit:
		b.WriteByte('[')
		for i, it := range e.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, it)
		}
		b.WriteByte(']')
	case *ast.ArrayFill:
		b.WriteByte('[')
		writeExpr(b, e.Value)
		b.WriteString("; ")
		writeExpr(b, e.Count)
		b.WriteByte(']')
	case *ast.LinkLit:
		b.WriteString("link {")
		for i, it := range e.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeExpr(b, it)
		}
		b.WriteByte('}')
	case *ast.Call:
		writeCall(b, e)
	case *ast.ClosureCall:
		writeExpr(b, e.Closure)
		b.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, a)
		}
		b.WriteByte(')')
	case *ast.Closure:
		b.WriteString("\\(")
		writeArgs(b, e.Args)
		b.WriteString(") ")
		writeBlock(b, e.Body, 0)
	case *ast.Arith:
		writeExpr(b, e.Left)
		b.WriteByte(' ')
		b.WriteString(arithOpString(e.Op))
		b.WriteByte(' ')
		writeExpr(b, e.Right)
	case *ast.Compare:
		writeExpr(b, e.Left)
		b.WriteByte(' ')
		b.WriteString(compareOpString(e.Op))
		b.WriteByte(' ')
		writeExpr(b, e.Right)
	case *ast.Logical:
		writeExpr(b, e.Left)
		if e.Op == ast.LogAnd {
			b.WriteString(" && ")
		} else {
			b.WriteString(" || ")
		}
		writeExpr(b, e.Right)
	case *ast.Not:
		b.WriteByte('!')
		writeExpr(b, e.Expr)
	case *ast.Neg:
		b.WriteByte('-')
		writeExpr(b, e.Expr)
	case *ast.Grab:
		b.WriteString(strings.Repeat("~", e.Level+1))
		writeExpr(b, e.Expr)
	case *ast.Const:
		fmt.Fprintf(b, "%v", e.Val)
	case *ast.Assign, *ast.Return, *ast.Break, *ast.Continue,
		*ast.If, *ast.For, *ast.ForN, *ast.ForIn, *ast.Loop,
		*ast.Reduce, *ast.Try, *ast.Go, *ast.In, *ast.Block:
		writeStmt(b, n, 0)
	default:
		fmt.Fprintf(b, "<?%T>", n)
	}
}

func writeItem(b *strings.Builder, it *ast.Item) {
	b.WriteString(it.Name)
	for _, s := range it.Steps {
		switch {
		case s.Ident != "":
			b.WriteByte('.')
			b.WriteString(s.Ident)
		case s.Index != nil:
			b.WriteByte('[')
			writeExpr(b, s.Index)
			b.WriteByte(']')
		}
		if s.Try {
			b.WriteByte('?')
		}
	}
}

func writeCall(b *strings.Builder, c *ast.Call) {
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		if a.Name != "" {
			b.WriteString(a.Name)
			b.WriteString(": ")
		}
		if a.Mut {
			b.WriteString("mut ")
		}
		writeExpr(b, a.Value)
	}
	b.WriteByte(')')
}

// formatF64 renders a float the way Dyon source would: integral values
// print without a trailing ".0" removed improperly, matching
// strconv.FormatFloat's 'g' behavior used throughout the teacher's own
// numeric formatting (e.g. vm/interpvalue.go's float-to-text paths).
func formatF64(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Quote renders s as a Dyon string literal with JSON-style escapes (spec
// §6 "Data literal syntax"), mirroring expr.Quote's escaping strategy
// but with double quotes instead of single, since Dyon string literals
// are double-quoted.
func Quote(s string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}
