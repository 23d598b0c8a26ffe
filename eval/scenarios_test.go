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

// runMain builds a module from the given functions (whichever one is
// named "main" is the entry point) and returns its stdout.
func runMain(t *testing.T, fns ...*ast.Fn) string {
	t.Helper()
	mod := module.New()
	module.LoadPrelude(mod)
	for _, fn := range fns {
		mod.AddFn(fn)
	}
	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	return strings.TrimSpace(out.String())
}

// scenario 2: a `'return`-annotated argument is passed straight through
// a call and the caller still sees its full length (spec §8, scenario
// 2 -- the lifetime annotation is a static-checker concern only, so at
// the eval layer this just confirms a value-returning function
// actually hands the argument back unchanged).
func TestScenarioReturnLifetimeThroughCall(t *testing.T) {
	f := &ast.Fn{
		Name:    "f",
		Args:    []ast.Arg{{Name: "x", Lifetime: ast.ReturnLifetime}},
		Returns: true,
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Item{Name: "x"}},
		}},
	}
	main := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{Op: ast.AssignDecl, Left: &ast.Item{Name: "a"},
				Right: &ast.ArrayLit{Items: []ast.Node{&ast.F64Lit{Value: 1}}}},
			&ast.Assign{Op: ast.AssignDecl, Left: &ast.Item{Name: "b"},
				Right: &ast.Call{Name: "f", Args: []ast.CallArg{{Value: &ast.Item{Name: "a"}}}}},
			&ast.Call{Name: "print", Args: []ast.CallArg{
				{Value: &ast.Call{Name: "len", Args: []ast.CallArg{{Value: &ast.Item{Name: "b"}}}}},
			}},
		}},
	}
	if got := runMain(t, f, main); got != "1" {
		t.Errorf("stdout = %q, want %q", got, "1")
	}
}

// scenario 3: try always wraps in Ok, so 1/0 (which is +Inf under
// plain float division, not an error) is never err, while try'ing an
// unwrap() of none() propagates the unwrap error into an Err (spec §8,
// scenario 3).
func TestScenarioTryDivisionNotAnError(t *testing.T) {
	main := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{Op: ast.AssignDecl, Left: &ast.Item{Name: "r"},
				Right: &ast.Try{Body: &ast.Arith{Op: ast.OpDiv, Left: &ast.F64Lit{Value: 1}, Right: &ast.F64Lit{Value: 0}}}},
			&ast.Call{Name: "print", Args: []ast.CallArg{
				{Value: &ast.Call{Name: "is_err", Args: []ast.CallArg{{Value: &ast.Item{Name: "r"}}}}},
			}},
		}},
	}
	if got := runMain(t, main); got != "false" {
		t.Errorf("stdout = %q, want %q", got, "false")
	}
}

func TestScenarioTryUnwrapNonePropagatesErr(t *testing.T) {
	main := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{Op: ast.AssignDecl, Left: &ast.Item{Name: "s"},
				Right: &ast.Try{Body: &ast.Call{Name: "unwrap", Args: []ast.CallArg{
					{Value: &ast.Call{Name: "none"}},
				}}}},
			&ast.Call{Name: "print", Args: []ast.CallArg{
				{Value: &ast.Call{Name: "is_err", Args: []ast.CallArg{{Value: &ast.Item{Name: "s"}}}}},
			}},
		}},
	}
	if got := runMain(t, main); got != "true" {
		t.Errorf("stdout = %q, want %q", got, "true")
	}
}

// scenario 5: an `any` reduction inside a bool-returning function folds
// its loop body through the return slot rather than a bare top-level
// expression (spec §8, scenario 5).
func TestScenarioAnyReductionThroughFunctionReturn(t *testing.T) {
	f := &ast.Fn{
		Name:    "f",
		Returns: true,
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Reduce{
				Kind:  ast.ReduceAny,
				Name:  "i",
				Start: &ast.F64Lit{Value: 0},
				End:   &ast.F64Lit{Value: 5},
				Body: &ast.Block{Stmts: []ast.Node{
					&ast.Compare{Op: ast.CmpEq, Left: &ast.Item{Name: "i"}, Right: &ast.F64Lit{Value: 3}},
				}},
			}},
		}},
	}
	main := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "print", Args: []ast.CallArg{
				{Value: &ast.Call{Name: "f"}},
			}},
		}},
	}
	if got := runMain(t, f, main); got != "true" {
		t.Errorf("stdout = %q, want %q", got, "true")
	}
}

// scenario 6: go spawns a loaded function on its own goroutine and
// join/unwrap retrieves its return value back on the spawning thread
// (spec §8, scenario 6).
func TestScenarioGoJoinReturnsSpawnedResult(t *testing.T) {
	work := &ast.Fn{
		Name:    "work",
		Args:    []ast.Arg{{Name: "n"}},
		Returns: true,
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Arith{Op: ast.OpMul, Left: &ast.Item{Name: "n"}, Right: &ast.F64Lit{Value: 2}}},
		}},
	}
	main := &ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{Op: ast.AssignDecl, Left: &ast.Item{Name: "t"},
				Right: &ast.Go{Call: &ast.Call{Name: "work", Args: []ast.CallArg{{Value: &ast.F64Lit{Value: 21}}}}}},
			&ast.Call{Name: "print", Args: []ast.CallArg{
				{Value: &ast.Call{Name: "unwrap", Args: []ast.CallArg{
					{Value: &ast.Call{Name: "join", Args: []ast.CallArg{{Value: &ast.Item{Name: "t"}}}}},
				}}},
			}},
		}},
	}
	if got := runMain(t, work, main); got != "42" {
		t.Errorf("stdout = %q, want %q", got, "42")
	}
}
