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

package eval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/module"
)

// buildMain wires a `main` function whose body is the given statements
// into a fresh module with the prelude loaded.
func buildMain(stmts ...ast.Node) *module.Module {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: stmts},
	})
	return mod
}

func TestRunMainSumReduction(t *testing.T) {
	// fn main() { s := sum i [0, 10) { i }; print(s) }
	mod := buildMain(
		&ast.Assign{
			Op:   ast.AssignDecl,
			Left: &ast.Item{Name: "s"},
			Right: &ast.Reduce{
				Kind:  ast.ReduceSum,
				Name:  "i",
				Start: &ast.F64Lit{Value: 0},
				End:   &ast.F64Lit{Value: 10},
				Body:  &ast.Block{Stmts: []ast.Node{&ast.Item{Name: "i"}}},
			},
		},
		&ast.Call{Name: "print", Args: []ast.CallArg{{Value: &ast.Item{Name: "s"}}}},
	)

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out

	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "45" {
		t.Errorf("stdout = %q, want %q", got, "45")
	}
}

func TestRunMainMissingFunction(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	rt := New(mod)
	if err := rt.RunMain(); err == nil {
		t.Fatal("RunMain on a module with no main: expected an error")
	}
}

func TestRunMainArrayPushLen(t *testing.T) {
	// fn main() { a := [1, 2, 3]; push(mut a, 4); print(len(a)) }
	mod := buildMain(
		&ast.Assign{
			Op:   ast.AssignDecl,
			Left: &ast.Item{Name: "a"},
			Right: &ast.ArrayLit{Items: []ast.Node{
				&ast.F64Lit{Value: 1}, &ast.F64Lit{Value: 2}, &ast.F64Lit{Value: 3},
			}},
		},
		&ast.Call{Name: "push", Args: []ast.CallArg{
			{Mut: true, Value: &ast.Item{Name: "a"}},
			{Value: &ast.F64Lit{Value: 4}},
		}},
		&ast.Call{Name: "print", Args: []ast.CallArg{
			{Value: &ast.Call{Name: "len", Args: []ast.CallArg{{Value: &ast.Item{Name: "a"}}}}},
		}},
	)

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "4" {
		t.Errorf("stdout = %q, want %q", got, "4")
	}
}
