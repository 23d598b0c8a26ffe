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

// identityRewriter rebuilds every node it visits via each node's own
// rewrite method, which is enough to produce a structurally-fresh copy
// since rewrite() always allocates new containers for its children.
type identityRewriter struct{}

func (identityRewriter) Rewrite(n Node) Node    { return n }
func (identityRewriter) Walk(n Node) Rewriter   { return identityRewriter{} }

// Copy returns a deep copy of n. The teacher's expr.Copy (expr/copy.go)
// round-trips through its ion encoder; since ast nodes here are not
// wire-encoded, Copy instead drives the same Rewrite machinery used for
// grab-splicing with a no-op Rewriter, which still forces every
// non-leaf node to reallocate its children.
func Copy(n Node) Node {
	return Rewrite(identityRewriter{}, n)
}
