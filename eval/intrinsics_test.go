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

// TestCallRetIntrinsic exercises the `call_ret` prelude entry: the host
// function re-enters the evaluator to run a loaded function by name.
func TestCallRetIntrinsic(t *testing.T) {
	// fn double(n) -> f64 { return n * 2 }
	// fn main() { print(call_ret("double", [21])) }
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name:    "double",
		Args:    []ast.Arg{{Name: "n"}},
		Returns: true,
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Arith{
				Op:    ast.OpMul,
				Left:  &ast.Item{Name: "n"},
				Right: &ast.F64Lit{Value: 2},
			}},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "print", Args: []ast.CallArg{{
				Value: &ast.Call{Name: "call_ret", Args: []ast.CallArg{
					{Value: &ast.TextLit{Value: "double"}},
					{Value: &ast.ArrayLit{Items: []ast.Node{&ast.F64Lit{Value: 21}}}},
				}},
			}}},
		}},
	})

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "42" {
		t.Errorf("stdout = %q, want %q", got, "42")
	}
}

// TestCallIntrinsicVoid checks that `call` runs a void function for its
// side effects and rejects arity mismatches.
func TestCallIntrinsicVoid(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name: "greet",
		Args: []ast.Arg{{Name: "who"}},
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "print", Args: []ast.CallArg{{Value: &ast.Item{Name: "who"}}}},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "call", Args: []ast.CallArg{
				{Value: &ast.TextLit{Value: "greet"}},
				{Value: &ast.ArrayLit{Items: []ast.Node{&ast.TextLit{Value: "hi"}}}},
			}},
		}},
	})

	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := out.String(); got != "hi" {
		t.Errorf("stdout = %q, want %q", got, "hi")
	}

	if _, err := rt.CallNamed("greet", nil, false); err == nil {
		t.Error("CallNamed with wrong arity: expected an error")
	}
	if _, err := rt.CallNamed("greet", nil, true); err == nil {
		t.Error("call_ret on a void function: expected an error")
	}
	if _, err := rt.CallNamed("no_such_fn", nil, false); err == nil {
		t.Error("CallNamed on a missing function: expected an error")
	}
}

func TestStrIntrinsic(t *testing.T) {
	mod := buildMain(
		&ast.Call{Name: "print", Args: []ast.CallArg{{
			Value: &ast.Call{Name: "str", Args: []ast.CallArg{{Value: &ast.F64Lit{Value: 1.5}}}},
		}}},
	)
	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "1.5" {
		t.Errorf("stdout = %q, want %q", got, "1.5")
	}
}

// TestFunctionsIntrinsic checks that `functions()` lists both loaded
// and external definitions.
func TestFunctionsIntrinsic(t *testing.T) {
	mod := buildMain(
		&ast.Assign{
			Op:    ast.AssignDecl,
			Left:  &ast.Item{Name: "fs"},
			Right: &ast.Call{Name: "functions"},
		},
		&ast.Call{Name: "print", Args: []ast.CallArg{{
			Value: &ast.Call{Name: "len", Args: []ast.CallArg{{Value: &ast.Item{Name: "fs"}}}},
		}}},
	)
	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	// at least main itself plus the prelude externals
	got := strings.TrimSpace(out.String())
	if got == "" || got == "0" || got == "1" {
		t.Errorf("functions() count = %q, want the full registry", got)
	}
}

// TestMetaDataJSONIntrinsics round-trips a meta-data stream through
// meta_data_from_json and json_from_meta_data.
func TestMetaDataJSONIntrinsics(t *testing.T) {
	src := `[
  {"start":"fn"},
    {"str":{"name":"main"}},
  {"end":"fn"}
]`
	mod := buildMain(
		&ast.Assign{
			Op:   ast.AssignDecl,
			Left: &ast.Item{Name: "md"},
			Right: &ast.Call{Name: "unwrap", Args: []ast.CallArg{{
				Value: &ast.Call{Name: "meta_data_from_json", Args: []ast.CallArg{
					{Value: &ast.TextLit{Value: src}},
				}},
			}}},
		},
		&ast.Call{Name: "print", Args: []ast.CallArg{{
			Value: &ast.Call{Name: "json_from_meta_data", Args: []ast.CallArg{
				{Value: &ast.Item{Name: "md"}},
			}},
		}}},
	)
	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	got := strings.TrimSpace(out.String())
	if !strings.Contains(got, `{"start":"fn"}`) || !strings.Contains(got, `{"str":{"name":"main"}}`) {
		t.Errorf("round-tripped meta-data JSON missing records:\n%s", got)
	}
}

// TestBacktraceIntrinsic checks the backtrace reports the enclosing
// call frames.
func TestBacktraceIntrinsic(t *testing.T) {
	mod := module.New()
	module.LoadPrelude(mod)
	mod.AddFn(&ast.Fn{
		Name:    "inner",
		Returns: true,
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Return{Value: &ast.Call{Name: "len", Args: []ast.CallArg{{
				Value: &ast.Call{Name: "backtrace"},
			}}}},
		}},
	})
	mod.AddFn(&ast.Fn{
		Name: "main",
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.Call{Name: "print", Args: []ast.CallArg{{
				Value: &ast.Call{Name: "inner"},
			}}},
		}},
	})
	var out bytes.Buffer
	rt := New(mod)
	rt.Out = &out
	if err := rt.RunMain(); err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	// main and inner are both on the stack when backtrace runs
	if got := strings.TrimSpace(out.String()); got != "2" {
		t.Errorf("stdout = %q, want %q", got, "2")
	}
}
