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

// TestCurrentObjectBinding checks that a function declaring a
// current-object dependency resolves it against the caller's
// current-stack and mutates the caller's slot through the binding.
func TestCurrentObjectBinding(t *testing.T) {
	// fn bump() ~ counter { counter += 1 }
	// fn main() { ~counter := 0; bump(); bump(); print(counter) }
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name:     "bump",
		Currents: []string{"counter"},
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:       ast.AssignCompound,
				Compound: ast.OpAdd,
				Left:     &ast.Item{Name: "counter"},
				Right:    &ast.F64Lit{Value: 1},
			},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:      ast.AssignDecl,
				Current: true,
				Left:    &ast.Item{Name: "counter"},
				Right:   &ast.F64Lit{Value: 0},
			},
			&ast.Call{Name: "bump"},
			&ast.Call{Name: "bump"},
			&ast.Call{Name: "print", Args: []ast.CallArg{{Value: &ast.Item{Name: "counter"}}}},
		}},
	})

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "2" {
		t.Errorf("stdout = %q, want %q", got, "2")
	}
}

// TestCurrentObjectBindingNested checks the binding survives a second
// call level: the intermediate frame re-exports the current it was
// handed, and the innermost mutation still lands on the declaring
// frame's slot.
func TestCurrentObjectBindingNested(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name:     "inner",
		Currents: []string{"counter"},
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:       ast.AssignCompound,
				Compound: ast.OpAdd,
				Left:     &ast.Item{Name: "counter"},
				Right:    &ast.F64Lit{Value: 5},
			},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name:     "outer",
		Currents: []string{"counter"},
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "inner"},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:      ast.AssignDecl,
				Current: true,
				Left:    &ast.Item{Name: "counter"},
				Right:   &ast.F64Lit{Value: 1},
			},
			&ast.Call{Name: "outer"},
			&ast.Call{Name: "print", Args: []ast.CallArg{{Value: &ast.Item{Name: "counter"}}}},
		}},
	})

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "6" {
		t.Errorf("stdout = %q, want %q", got, "6")
	}
}

// TestCurrentObjectMissing checks that calling a function whose
// declared current has no binding on the caller's current-stack is a
// runtime error, not a silent undefined name later.
func TestCurrentObjectMissing(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name:     "lone",
		Currents: []string{"nothing"},
		Body:     &ast.Block{},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "lone"},
		}},
	})
	rt := New(mod)
	err := rt.RunMain()
	if err == nil {
		t.Fatal("expected an error for an unbound current object")
	}
	if !strings.Contains(err.Error(), "current object") {
		t.Errorf("error = %q, want it to name the missing current object", err)
	}
}

// TestGoSpawnPanicBecomesJoinErr checks that a panic inside a spawned
// thread resolves the handle as an error at join() instead of crashing
// the process.
func TestGoSpawnPanicBecomesJoinErr(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddExternal(&module.ExternalFn{
		Name: "boom",
		Kind: module.ExtVoid,
		Call: func(module.HostRuntime) error { panic("boom") },
	})
	mod.AddFn(&ast.Fn{
		Name: "work",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "boom"},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:    ast.AssignDecl,
				Left:  &ast.Item{Name: "t"},
				Right: &ast.Go{Call: &ast.Call{Name: "work"}},
			},
			&ast.Call{Name: "print", Args: []ast.CallArg{{
				Value: &ast.Call{Name: "is_err", Args: []ast.CallArg{{
					Value: &ast.Call{Name: "join", Args: []ast.CallArg{{Value: &ast.Item{Name: "t"}}}},
				}}},
			}}},
		}},
	})

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "true" {
		t.Errorf("stdout = %q, want %q", got, "true")
	}
}

// TestGoSpawnClonesCurrents checks a spawned thread sees a deep clone
// of the caller's current object rather than sharing its slot.
func TestGoSpawnClonesCurrents(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name:     "snapshot",
		Returns:  true,
		Currents: []string{"state"},
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Item{Name: "state"}},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Assign{
				Op:      ast.AssignDecl,
				Current: true,
				Left:    &ast.Item{Name: "state"},
				Right:   &ast.F64Lit{Value: 7},
			},
			&ast.Assign{
				Op:    ast.AssignDecl,
				Left:  &ast.Item{Name: "t"},
				Right: &ast.Go{Call: &ast.Call{Name: "snapshot"}},
			},
			&ast.Call{Name: "print", Args: []ast.CallArg{{
				Value: &ast.Call{Name: "unwrap", Args: []ast.CallArg{{
					Value: &ast.Call{Name: "join", Args: []ast.CallArg{{Value: &ast.Item{Name: "t"}}}},
				}}},
			}}},
		}},
	})

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "7" {
		t.Errorf("stdout = %q, want %q", got, "7")
	}
}
