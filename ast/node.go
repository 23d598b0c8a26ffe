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

// Package ast defines the immutable syntax tree nodes consumed by the
// lifetime checker and the evaluator. Parsing from source text is out of
// scope (spec §1); trees are built directly via the constructors in this
// package, the same way the teacher's query planner builds expr.Node
// trees programmatically in tests instead of always going through a
// parser.
//
// The Visitor/Rewriter/Walk/Rewrite quartet mirrors expr/node.go in the
// teacher repo exactly: a Node's unexported walk/rewrite methods let the
// package drive generic tree traversal without every caller re-deriving
// it per node kind.
package ast

// Range is the source range of a node, used for diagnostics by both the
// lifetime checker and the evaluator's error reporting.
type Range struct {
	Start, End int
}

// Node is any AST node.
type Node interface {
	Range() Range
	walk(Visitor)
	rewrite(Rewriter) Node
}

// Visitor is invoked for each node encountered by Walk. If the returned
// visitor w is not nil, Walk visits each child of node with w, followed
// by a call to w.Visit(nil).
type Visitor interface {
	Visit(Node) Visitor
}

// Rewriter rewrites nodes in depth-first order.
type Rewriter interface {
	// Rewrite is applied to nodes in depth-first order; the node is
	// replaced by the returned value.
	Rewrite(Node) Node
	// Walk is called during traversal; the returned Rewriter is used
	// for all children of Node. A nil result stops descent into Node.
	Walk(Node) Rewriter
}

// Walk traverses the tree rooted at n in depth-first order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

// Rewrite recursively applies r to the tree rooted at n.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	rc := r.Walk(n)
	if rc != nil {
		n = n.rewrite(rc)
	}
	return r.Rewrite(n)
}

// inspector adapts a func(Node) bool into a Visitor, mirroring the
// standard library's ast.Inspect helper.
type inspector func(Node) bool

func (f inspector) Visit(n Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

// Inspect traverses n in depth-first order, calling f for each node
// encountered (including nil, signaling the end of a subtree), exactly
// like go/ast.Inspect.
func Inspect(n Node, f func(Node) bool) {
	Walk(inspector(f), n)
}
