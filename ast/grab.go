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

// GrabEvaluator evaluates a grab's sub-expression in the scope that is
// defining the enclosing closure, returning the spliced constant to
// replace it with. This is supplied by the eval package, keeping ast
// free of a dependency on runtime values (see Const's doc comment).
type GrabEvaluator func(expr Node) (any, error)

// grabRewriter walks a Closure body, replacing every Grab node whose
// Level matches the current nesting depth with its evaluated constant.
// This mirrors original_source/src/grab.rs: grab level counting walks
// nested Closure boundaries and increments the depth per Closure node
// crossed, so a grab whose Level equals the depth at which it sits is
// resolved here. A grab whose Level is below that depth belongs to an
// inner closure and is left unchanged for that closure's own resolution
// pass; a grab whose Level is above it has its Level decremented by one.
type grabRewriter struct {
	depth int
	eval  GrabEvaluator
	err   error
	child []*grabRewriter
}

// firstErr returns the first error recorded by g or any rewriter it
// spawned for a nested closure, depth-first.
func (g *grabRewriter) firstErr() error {
	if g.err != nil {
		return g.err
	}
	for _, c := range g.child {
		if err := c.firstErr(); err != nil {
			return err
		}
	}
	return nil
}

func (g *grabRewriter) Walk(n Node) Rewriter {
	if _, ok := n.(*Closure); ok {
		child := &grabRewriter{depth: g.depth + 1, eval: g.eval}
		g.child = append(g.child, child)
		return child
	}
	return g
}

func (g *grabRewriter) Rewrite(n Node) Node {
	grab, ok := n.(*Grab)
	if !ok {
		return n
	}
	if grab.Level != g.depth {
		if grab.Level > g.depth {
			return &Grab{Rng: grab.Rng, Level: grab.Level - 1, Expr: grab.Expr}
		}
		return n
	}
	val, err := g.eval(grab.Expr)
	if err != nil && g.err == nil {
		g.err = err
	}
	return &Const{Rng: grab.Rng, Val: val}
}

// ResolveGrabs rewrites every grab at nesting level 0 relative to
// closure into its evaluated constant, using eval to run each grabbed
// sub-expression in the defining scope. Nested closures' own grabs are
// left for ResolveGrabs to be called again when that inner closure is
// itself constructed.
//
// The rewrite walks closure.Body rather than closure itself: Walk's
// Closure-depth bump must trigger only for closures nested *inside*
// the one under construction, not for the root closure being resolved.
func ResolveGrabs(closure *Closure, eval GrabEvaluator) (*Closure, error) {
	gr := &grabRewriter{depth: 0, eval: eval}
	newBody := Rewrite(gr, closure.Body).(*Block)
	if err := gr.firstErr(); err != nil {
		return nil, err
	}
	out := *closure
	out.Body = newBody
	return &out, nil
}
