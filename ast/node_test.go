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

package ast

import "testing"

func TestInspectVisitsEveryNode(t *testing.T) {
	tree := &Arith{
		Op:   OpAdd,
		Left: &Item{Name: "a"},
		Right: &Arith{
			Op:    OpMul,
			Left:  &Item{Name: "b"},
			Right: &Item{Name: "c"},
		},
	}

	var names []string
	Inspect(tree, func(n Node) bool {
		if it, ok := n.(*Item); ok {
			names = append(names, it.Name)
		}
		return true
	})

	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("visited items = %v, want [a b c] in depth-first order", names)
	}
}

// renameRewriter renames every Item named "from" to "to".
type renameRewriter struct{ from, to string }

func (r *renameRewriter) Walk(n Node) Rewriter { return r }
func (r *renameRewriter) Rewrite(n Node) Node {
	if it, ok := n.(*Item); ok && it.Name == r.from {
		cp := *it
		cp.Name = r.to
		return &cp
	}
	return n
}

func TestRewriteReplacesMatchingNodes(t *testing.T) {
	tree := &Arith{
		Op:    OpAdd,
		Left:  &Item{Name: "x"},
		Right: &Item{Name: "y"},
	}
	out := Rewrite(&renameRewriter{from: "x", to: "z"}, tree).(*Arith)
	if out.Left.(*Item).Name != "z" {
		t.Fatalf("Left.Name = %q, want %q", out.Left.(*Item).Name, "z")
	}
	if out.Right.(*Item).Name != "y" {
		t.Fatalf("Right.Name = %q, want unchanged %q", out.Right.(*Item).Name, "y")
	}
	// The original tree must be untouched; ast nodes are immutable.
	if tree.Left.(*Item).Name != "x" {
		t.Fatal("Rewrite must not mutate the input tree in place")
	}
}

func TestMangleRoundTrip(t *testing.T) {
	got := Mangle("push", []bool{true, false})
	want := "push(mut,_)"
	if got != want {
		t.Fatalf("Mangle() = %q, want %q", got, want)
	}
	if name := Unmangle(got); name != "push" {
		t.Fatalf("Unmangle(%q) = %q, want %q", got, name, "push")
	}
}

func TestFnMangledUsesArgMutability(t *testing.T) {
	fn := &Fn{Name: "swap", Args: []Arg{{Name: "a", Mut: true}, {Name: "b", Mut: true}}}
	if got, want := fn.Mangled(), "swap(mut,mut)"; got != want {
		t.Fatalf("Mangled() = %q, want %q", got, want)
	}
}
