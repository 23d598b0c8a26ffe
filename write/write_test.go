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

package write

import (
	"testing"

	"github.com/dyonlang/dyon/ast"
)

func item(name string) *ast.Item { return &ast.Item{Name: name} }

func TestExpr(t *testing.T) {
	cases := []struct {
		in   ast.Node
		want string
	}{
		{
			&ast.Arith{Op: ast.OpAdd, Left: item("x"), Right: item("y")},
			"x + y",
		},
		{
			&ast.Arith{
				Op:   ast.OpMul,
				Left: item("a"),
				Right: &ast.Arith{Op: ast.OpAdd, Left: item("b"), Right: item("c")},
			},
			"a * b + c",
		},
		{
			&ast.Compare{Op: ast.CmpLe, Left: item("i"), Right: &ast.F64Lit{Value: 10}},
			"i <= 10",
		},
		{
			&ast.Logical{Op: ast.LogAnd, Left: &ast.BoolLit{Value: true}, Right: &ast.Not{Expr: &ast.BoolLit{Value: false}}},
			"true && !false",
		},
		{
			&ast.TextLit{Value: "hi\n\"there\""},
			`"hi\n\"there\""`,
		},
		{
			&ast.Vec4Lit{X: &ast.F64Lit{Value: 1}, Y: &ast.F64Lit{Value: 2}, Z: &ast.F64Lit{Value: 0}, W: &ast.F64Lit{Value: 0}},
			"(1, 2, 0, 0)",
		},
		{
			&ast.ArrayLit{Items: []ast.Node{&ast.F64Lit{Value: 1}, &ast.F64Lit{Value: 2}, &ast.F64Lit{Value: 3}}},
			"[1, 2, 3]",
		},
		{
			&ast.ObjectLit{Entries: []ast.KeyValue{
				{Key: "x", Value: &ast.F64Lit{Value: 1}},
				{Key: "y", Value: &ast.F64Lit{Value: 2}},
			}},
			"{x: 1, y: 2}",
		},
		{
			&ast.Call{Name: "foo", Args: []ast.CallArg{
				{Value: item("a")},
				{Name: "b", Mut: true, Value: item("b")},
			}},
			"foo(a, b: mut b)",
		},
		{
			&ast.Item{Name: "obj", Steps: []ast.ItemStep{
				{Ident: "field"},
				{Index: &ast.F64Lit{Value: 0}},
				{Ident: "g", Try: true},
			}},
			"obj.field[0].g?",
		},
		{
			&ast.Grab{Level: 0, Expr: item("x")},
			"~x",
		},
	}
	for _, c := range cases {
		got := Expr(c.in)
		if got != c.want {
			t.Errorf("Expr(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBlockAndFn(t *testing.T) {
	fn := &ast.Fn{
		Name: "add",
		Args: []ast.Arg{
			{Name: "a"},
			{Name: "b"},
		},
		Returns: true,
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Arith{Op: ast.OpAdd, Left: item("a"), Right: item("b")}},
		}},
	}
	want := "fn add(a, b) -> _ {\n    return a + b\n}"
	if got := Fn(fn); got != want {
		t.Errorf("Fn() = %q, want %q", got, want)
	}
}

func TestIfElse(t *testing.T) {
	n := &ast.If{
		Conds: []ast.Node{&ast.Compare{Op: ast.CmpGt, Left: item("x"), Right: &ast.F64Lit{Value: 0}}},
		Blocks: []*ast.Block{
			{Stmts: []ast.Node{&ast.Return{Value: &ast.F64Lit{Value: 1}}}},
		},
		Else: &ast.Block{Stmts: []ast.Node{&ast.Return{Value: &ast.F64Lit{Value: -1}}}},
	}
	want := "if x > 0 {\n    return 1\n} else {\n    return -1\n}"
	if got := Expr(n); got != want {
		t.Errorf("Expr(If) = %q, want %q", got, want)
	}
}

func TestForN(t *testing.T) {
	n := &ast.ForN{
		Name:  "i",
		Start: &ast.F64Lit{Value: 0},
		End:   &ast.F64Lit{Value: 10},
		Body:  &ast.Block{Stmts: []ast.Node{&ast.Call{Name: "println", Args: []ast.CallArg{{Value: item("i")}}}}},
	}
	want := "for i [0, 10) {\n    println(i)\n}"
	if got := Expr(n); got != want {
		t.Errorf("Expr(ForN) = %q, want %q", got, want)
	}
}

func TestQuote(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello", `"hello"`},
		{"a\"b", `"a\"b"`},
		{"a\\b", `"a\\b"`},
		{"a\nb", `"a\nb"`},
	}
	for _, c := range cases {
		if got := Quote(c.in); got != c.want {
			t.Errorf("Quote(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
