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

package module

import (
	"testing"

	"github.com/dyonlang/dyon/ast"
)

func fn(name string, mut ...bool) *ast.Fn {
	args := make([]ast.Arg, len(mut))
	for i, m := range mut {
		args[i] = ast.Arg{Name: "a", Mut: m}
	}
	return &ast.Fn{Name: name, Args: args, Body: &ast.Block{}}
}

func TestAddFnAndFindFunction(t *testing.T) {
	m := New()
	idx := m.AddFn(fn("greet", false))
	ref := m.FindFunction("greet", []bool{false})
	if ref.Kind != FnLoaded || ref.Index != idx {
		t.Fatalf("FindFunction = %+v, want loaded index %d", ref, idx)
	}
	if ref2 := m.FindFunction("greet", []bool{true}); ref2.Kind != FnNone {
		t.Fatalf("FindFunction with wrong mutability pattern should miss, got %+v", ref2)
	}
}

func TestLaterRegistrationShadowsEarlier(t *testing.T) {
	m := New()
	m.AddFn(fn("f", false))
	second := m.AddFn(fn("f", false))
	ref := m.FindFunction("f", []bool{false})
	if ref.Index != second {
		t.Fatalf("FindFunction = %d, want most recent registration %d", ref.Index, second)
	}
}

func TestLoadedShadowsExternalOfSameMangledName(t *testing.T) {
	m := New()
	m.AddExternal(&ExternalFn{Name: "f", Kind: ExtVoid, MutPattern: []bool{false}})
	loadedIdx := m.AddFn(fn("f", false))
	ref := m.FindFunction("f", []bool{false})
	if ref.Kind != FnLoaded || ref.Index != loadedIdx {
		t.Fatalf("FindFunction = %+v, want loaded function to win", ref)
	}
}

func TestRelativeOffsetRoundTrip(t *testing.T) {
	m := New()
	m.AddFn(fn("a"))
	callerIdx := m.AddFn(fn("b"))
	m.AddFn(fn("c"))

	rel := RelativeOffset(callerIdx, 0)
	resolved, idx, err := m.ResolveRelative(callerIdx, rel)
	if err != nil {
		t.Fatalf("ResolveRelative: %v", err)
	}
	if idx != 0 || resolved.Name != "a" {
		t.Fatalf("ResolveRelative = (%q, %d), want (\"a\", 0)", resolved.Name, idx)
	}
}

func TestResolveRelativeOutOfRange(t *testing.T) {
	m := New()
	m.AddFn(fn("a"))
	if _, _, err := m.ResolveRelative(0, 100); err == nil {
		t.Error("ResolveRelative with an out-of-range offset should error")
	}
}

func TestFindAnyLoadedIgnoresMutability(t *testing.T) {
	m := New()
	idx := m.AddFn(fn("handler", true))
	got, ok := m.FindAnyLoaded("handler")
	if !ok || got != idx {
		t.Fatalf("FindAnyLoaded = (%d, %v), want (%d, true)", got, ok, idx)
	}
	if _, ok := m.FindAnyLoaded("nope"); ok {
		t.Error("FindAnyLoaded should miss an unregistered name")
	}
}

func TestArgCountLoadedAndExternal(t *testing.T) {
	m := New()
	loadedIdx := m.AddFn(fn("f", true, false))
	externIdx := m.AddExternal(&ExternalFn{Name: "g", Kind: ExtReturn, MutPattern: []bool{false, false, false}})

	if n := m.ArgCount(FnRef{Kind: FnLoaded, Index: loadedIdx}); n != 2 {
		t.Errorf("ArgCount(loaded) = %d, want 2", n)
	}
	if n := m.ArgCount(FnRef{Kind: FnExternalReturn, Index: externIdx}); n != 3 {
		t.Errorf("ArgCount(external) = %d, want 3", n)
	}
}

func TestMangledNamesIncludesBothTables(t *testing.T) {
	m := New()
	m.AddFn(fn("f", false))
	m.AddExternal(&ExternalFn{Name: "g", Kind: ExtVoid, MutPattern: []bool{true}})
	names := m.MangledNames()
	if len(names) != 2 {
		t.Fatalf("MangledNames() = %v, want 2 entries", names)
	}
}

func TestSendersParallelToFns(t *testing.T) {
	m := New()
	idx := m.AddFn(fn("worker"))
	if s := m.Senders(idx); s == nil {
		t.Error("Senders(idx) should never be nil for a registered function")
	}
}
