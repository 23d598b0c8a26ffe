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

package lifetime

import (
	"testing"

	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/module"
)

func freshModule(fns ...*ast.Fn) *module.Module {
	mod := module.New()
	module.LoadPrelude(mod)
	for _, fn := range fns {
		mod.AddFn(fn)
	}
	return mod
}

func TestCheckAcceptsSoundFunction(t *testing.T) {
	// fn main() { a := 1; print(a) }
	fn := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{Op: ast.AssignDecl, Left: &ast.Item{Name: "a"}, Right: &ast.F64Lit{Value: 1}},
			&ast.Call{Name: "print", Args: []ast.CallArg{{Value: &ast.Item{Name: "a"}}}},
		}},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
}

func TestCheckRejectsUnknownFunction(t *testing.T) {
	fn := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "definitelyNotRegistered"},
		}},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err == nil {
		t.Fatal("Check() = nil, want an error for an unresolved call")
	}
}

func TestCheckRejectsDuplicateFunctionDefinition(t *testing.T) {
	a := &ast.Fn{Name: "f", Body: &ast.Block{}}
	b := &ast.Fn{Name: "f", Body: &ast.Block{}}
	mod := freshModule(a, b)
	if err := Check([]*ast.Fn{a, b}, mod); err == nil {
		t.Fatal("Check() = nil, want an error for a duplicate function definition")
	}
}

func TestCheckRejectsDuplicateArgumentName(t *testing.T) {
	fn := &ast.Fn{
		Name: "f",
		Args: []ast.Arg{{Name: "x"}, {Name: "x"}},
		Body: &ast.Block{},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err == nil {
		t.Fatal("Check() = nil, want an error for a duplicate argument name")
	}
}

func TestCheckRejectsAssignToUndeclared(t *testing.T) {
	// fn main() { undeclared = 2 }
	fn := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{Op: ast.AssignSet, Left: &ast.Item{Name: "undeclared"}, Right: &ast.F64Lit{Value: 2}},
		}},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err == nil {
		t.Fatal("Check() = nil, want an error assigning to an undeclared name")
	}
}

func TestCheckRejectsBreakOutsideLoop(t *testing.T) {
	fn := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{&ast.Break{}}},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err == nil {
		t.Fatal("Check() = nil, want an error for break outside a loop")
	}
}

func TestCheckAcceptsBreakInsideLoop(t *testing.T) {
	fn := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Loop{Body: &ast.Block{Stmts: []ast.Node{&ast.Break{}}}},
		}},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
}

func TestCheckRejectsWrongArity(t *testing.T) {
	fn := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "print", Args: []ast.CallArg{
				{Value: &ast.F64Lit{Value: 1}},
				{Value: &ast.F64Lit{Value: 2}},
			}},
		}},
	}
	mod := freshModule(fn)
	if err := Check([]*ast.Fn{fn}, mod); err == nil {
		t.Fatal("Check() = nil, want an error calling print/1 with two arguments")
	}
}
