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
	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/module"
)

// binding is a scope entry: either a function/closure argument or a
// `:=`-declared local.
type binding struct {
	lt  Lifetime
	mut bool
}

// scope is one block's set of declarations, chained to its parent.
type scope struct {
	parent *scope
	vars   map[string]*binding
	loop   *loopInfo // nearest enclosing loop, nil outside one
}

type loopInfo struct {
	parent *loopInfo
	label  string
	has    bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: map[string]*binding{}}
}

func (s *scope) lookup(name string) (*binding, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.vars[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (s *scope) declare(name string, b *binding) { s.vars[name] = b }

func (s *scope) enclosingLoop() *loopInfo {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.loop != nil {
			return sc.loop
		}
	}
	return nil
}

// checker accumulates errors while checking one module's functions, in
// the style of expr/check.go's checkwalk.
type checker struct {
	mod     *module.Module
	errs    Errors
	fnIndex map[string]*ast.Fn // mangled name -> definition, for sibling lookups
	declCnt int
}

func (c *checker) errorf(at ast.Node, format string, args ...any) {
	c.errs = append(c.errs, errAt(at, format, args...))
}

// Check runs the full pipeline of spec §4.1 passes 3-9 against every
// loaded function in mod (passes 1-2, tree construction and name
// mangling, are already reflected in how fns/mod were built). It
// returns every diagnostic found, or nil if the module is sound.
func Check(fns []*ast.Fn, mod *module.Module) error {
	c := &checker{mod: mod, fnIndex: map[string]*ast.Fn{}}

	seen := map[string]bool{}
	for _, fn := range fns {
		key := fn.Mangled()
		if seen[key] {
			c.errorf(fn, "duplicate function definition %q", key)
		}
		seen[key] = true
		c.fnIndex[key] = fn
	}

	for _, fn := range fns {
		c.checkFn(fn)
	}

	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

func (c *checker) checkFn(fn *ast.Fn) {
	seenArg := map[string]bool{}
	for _, a := range fn.Args {
		if seenArg[a.Name] {
			c.errorf(fn, "duplicate argument name %q in %s", a.Name, fn.Name)
		}
		seenArg[a.Name] = true
	}
	if err := checkLifetimeCycle(fn.Args); err != nil {
		c.errorf(fn, "%s", err)
	}

	root := newScope(nil)
	for i, a := range fn.Args {
		root.declare(a.Name, &binding{lt: Argument(i), mut: a.Mut})
	}
	for _, name := range fn.Currents {
		if _, ok := root.vars[name]; !ok {
			root.declare(name, &binding{lt: ReturnEmpty(), mut: false})
		}
	}
	c.checkBlock(fn, root, fn.Body)
}

func (c *checker) checkBlock(fn *ast.Fn, parent *scope, b *ast.Block) {
	sc := newScope(parent)
	for _, s := range b.Stmts {
		c.checkStmt(fn, sc, s)
	}
}

func (c *checker) checkLoopBlock(fn *ast.Fn, parent *scope, b *ast.Block, label string, hasLabel bool) {
	sc := newScope(parent)
	sc.loop = &loopInfo{parent: parent.enclosingLoop(), label: label, has: hasLabel}
	for _, s := range b.Stmts {
		c.checkStmt(fn, sc, s)
	}
}

func (c *checker) checkStmt(fn *ast.Fn, sc *scope, n ast.Node) {
	switch s := n.(type) {
	case *ast.Assign:
		c.checkAssign(fn, sc, s)
	case *ast.Return:
		if s.Value != nil {
			lt, owned := c.exprLifetime(sc, s.Value)
			if !owned {
				if ok, cmp := Outlives(lt, ReturnEmpty()); !cmp || !ok {
					c.errorf(s, "returned value does not outlive the function's return slot; requires 'return")
				}
			}
		}
	case *ast.Break:
		if s.HasLabel {
			c.checkLabel(s, sc, s.Label)
		} else if sc.enclosingLoop() == nil {
			c.errorf(s, "break outside of a loop")
		}
	case *ast.Continue:
		if s.HasLabel {
			c.checkLabel(s, sc, s.Label)
		} else if sc.enclosingLoop() == nil {
			c.errorf(s, "continue outside of a loop")
		}
	case *ast.If:
		for i, cond := range s.Conds {
			c.exprLifetimeVoid(sc, cond)
			c.checkBlock(fn, sc, s.Blocks[i])
		}
		if s.Else != nil {
			c.checkBlock(fn, sc, s.Else)
		}
	case *ast.For:
		inner := newScope(sc)
		inner.loop = &loopInfo{parent: sc.enclosingLoop(), label: s.Label, has: s.HasLabel}
		if s.Init != nil {
			c.checkStmt(fn, inner, s.Init)
		}
		if s.Cond != nil {
			c.exprLifetimeVoid(inner, s.Cond)
		}
		if s.Step != nil {
			c.checkStmt(fn, inner, s.Step)
		}
		c.checkLoopBlock(fn, inner, s.Body, s.Label, s.HasLabel)
	case *ast.ForN:
		c.exprLifetimeVoid(sc, s.Start)
		c.exprLifetimeVoid(sc, s.End)
		inner := newScope(sc)
		inner.declare(s.Name, &binding{lt: Lifetime{Kind: KindReturn}})
		c.checkLoopBlock(fn, inner, s.Body, s.Label, s.HasLabel)
	case *ast.ForIn:
		c.exprLifetimeVoid(sc, s.Iter)
		inner := newScope(sc)
		inner.declare(s.Name, &binding{lt: Lifetime{Kind: KindReturn}})
		c.checkLoopBlock(fn, inner, s.Body, s.Label, s.HasLabel)
	case *ast.Loop:
		c.checkLoopBlock(fn, sc, s.Body, s.Label, s.HasLabel)
	case *ast.Reduce:
		c.exprLifetimeVoid(sc, s.Start)
		c.exprLifetimeVoid(sc, s.End)
		inner := newScope(sc)
		inner.declare(s.Name, &binding{lt: Lifetime{Kind: KindReturn}})
		c.checkBlock(fn, inner, s.Body)
	case *ast.Try:
		c.exprLifetimeVoid(sc, s.Body)
	case *ast.Go:
		c.checkCall(fn, sc, s.Call)
	case *ast.Block:
		c.checkBlock(fn, sc, s)
	default:
		c.exprLifetimeVoid(sc, n)
	}
}

func (c *checker) checkLabel(at ast.Node, sc *scope, label string) {
	for l := sc.enclosingLoop(); l != nil; l = l.parent {
		if l.has && l.label == label {
			return
		}
	}
	c.errorf(at, "no enclosing loop labeled '%s", label)
}

func (c *checker) checkAssign(fn *ast.Fn, sc *scope, a *ast.Assign) {
	rhsLt, owned := c.exprLifetime(sc, a.Right)

	if a.Op == ast.AssignDecl {
		item, ok := a.Left.(*ast.Item)
		if !ok || len(item.Steps) > 0 {
			c.exprLifetimeVoid(sc, a.Left)
			return
		}
		lt := rhsLt
		if owned {
			c.declCnt++
			lt = Local(c.declCnt)
		}
		sc.declare(item.Name, &binding{lt: lt, mut: true})
		return
	}

	// `=` or compound assignment: the left side must already be
	// declared, mutably.
	item, ok := a.Left.(*ast.Item)
	if !ok {
		c.exprLifetimeVoid(sc, a.Left)
		return
	}
	b, ok := sc.lookup(item.Name)
	if !ok {
		c.errorf(a, "could not find declaration of %s", item.Name)
		return
	}
	if !b.mut {
		c.errorf(a, "cannot assign to immutable %s", item.Name)
		return
	}
	if !owned {
		if ok2, cmp := Outlives(b.lt, rhsLt); !cmp || !ok2 {
			c.errorf(a, "assigned value does not live long enough for %s", item.Name)
		}
	}
	for _, step := range item.Steps {
		if step.Index != nil {
			c.exprLifetimeVoid(sc, step.Index)
		}
	}
}

// exprLifetimeVoid evaluates an expression purely for its nested
// checks (calls, items, labels), discarding the resulting lifetime.
func (c *checker) exprLifetimeVoid(sc *scope, n ast.Node) {
	c.exprLifetime(sc, n)
}

// exprLifetime returns the lifetime of the value an expression
// produces, and whether that value is "owned" (freshly constructed,
// borrowing nothing, hence assignable/returnable regardless of the
// target's lifetime).
func (c *checker) exprLifetime(sc *scope, n ast.Node) (Lifetime, bool) {
	switch e := n.(type) {
	case nil:
		return Lifetime{}, true
	case *ast.Item:
		b, ok := sc.lookup(e.Name)
		if !ok {
			c.errorf(e, "could not find declaration of %s", e.Name)
			return Lifetime{}, true
		}
		for _, step := range e.Steps {
			if step.Index != nil {
				c.exprLifetimeVoid(sc, step.Index)
			}
		}
		if len(e.Steps) > 0 {
			// Indexing into a container borrows from the same binding
			// as the bare name, so it carries that binding's lifetime
			// and is not owned.
			return b.lt, false
		}
		return b.lt, false
	case *ast.Call:
		return c.checkCall(nil, sc, e)
	case *ast.ClosureCall:
		c.exprLifetimeVoid(sc, e.Closure)
		for _, a := range e.Args {
			c.exprLifetimeVoid(sc, a)
		}
		return Lifetime{}, true
	case *ast.Arith:
		c.exprLifetimeVoid(sc, e.Left)
		c.exprLifetimeVoid(sc, e.Right)
		return Lifetime{}, true
	case *ast.Compare:
		c.exprLifetimeVoid(sc, e.Left)
		c.exprLifetimeVoid(sc, e.Right)
		return Lifetime{}, true
	case *ast.Logical:
		c.exprLifetimeVoid(sc, e.Left)
		c.exprLifetimeVoid(sc, e.Right)
		return Lifetime{}, true
	case *ast.Not:
		c.exprLifetimeVoid(sc, e.Expr)
		return Lifetime{}, true
	case *ast.Neg:
		c.exprLifetimeVoid(sc, e.Expr)
		return Lifetime{}, true
	case *ast.Norm:
		c.exprLifetimeVoid(sc, e.Expr)
		return Lifetime{}, true
	case *ast.Swizzle:
		c.exprLifetimeVoid(sc, e.Expr)
		return Lifetime{}, true
	case *ast.Vec4Lit:
		c.exprLifetimeVoid(sc, e.X)
		c.exprLifetimeVoid(sc, e.Y)
		c.exprLifetimeVoid(sc, e.Z)
		c.exprLifetimeVoid(sc, e.W)
		return Lifetime{}, true
	case *ast.Mat4Lit:
		for _, col := range e.Cols {
			c.exprLifetimeVoid(sc, col)
		}
		return Lifetime{}, true
	case *ast.ObjectLit:
		for _, kv := range e.Entries {
			c.exprLifetimeVoid(sc, kv.Value)
		}
		return Lifetime{}, true
	case *ast.ArrayLit:
		for _, it := range e.Items {
			c.exprLifetimeVoid(sc, it)
		}
		return Lifetime{}, true
	case *ast.ArrayFill:
		c.exprLifetimeVoid(sc, e.Value)
		c.exprLifetimeVoid(sc, e.Count)
		return Lifetime{}, true
	case *ast.LinkLit:
		for _, it := range e.Items {
			c.exprLifetimeVoid(sc, it)
		}
		return Lifetime{}, true
	case *ast.Closure:
		return Lifetime{}, true
	case *ast.Grab:
		c.exprLifetimeVoid(sc, e.Expr)
		return Lifetime{}, true
	default:
		// Literals, Const splices, In, and anything else with no
		// nested expressions to check.
		return Lifetime{}, true
	}
}

// checkCall verifies arity and the declared per-argument lifetime
// constraints of a call, per spec §4.1 steps 6 and 9. caller is nil
// when checking a call nested inside another expression rather than a
// bare statement; the distinction does not affect the checks
// performed here.
func (c *checker) checkCall(_ *ast.Fn, sc *scope, call *ast.Call) (Lifetime, bool) {
	pattern := make([]bool, len(call.Args))
	argExprLt := make([]Lifetime, len(call.Args))
	argOwned := make([]bool, len(call.Args))
	for i, a := range call.Args {
		pattern[i] = a.Mut
		argExprLt[i], argOwned[i] = c.exprLifetime(sc, a.Value)
	}

	ref := c.mod.FindFunction(call.Name, pattern)
	if ref.Kind == module.FnNone {
		suggestions := fuzzySuggest(call.Name, c.mod.MangledNames())
		if len(suggestions) > 0 {
			c.errorf(call, "could not find function %s; did you mean %v?", call.Mangled(), suggestions)
		} else {
			c.errorf(call, "could not find function %s", call.Mangled())
		}
		return Lifetime{}, true
	}

	if n := c.mod.ArgCount(ref); n != len(call.Args) {
		c.errorf(call, "%s expects %d argument(s), got %d", call.Name, n, len(call.Args))
		return Lifetime{}, true
	}

	if ref.Kind != module.FnLoaded {
		return Lifetime{}, true
	}

	callee := c.mod.Fn(ref.Index)
	cons, err := buildConstraints(callee.Args)
	if err != nil {
		c.errorf(call, "%s", err)
		return Lifetime{}, true
	}

	returnArgIndex := -1
	for i, con := range cons {
		switch con.kind {
		case conToArg:
			if !argOwned[i] && !argOwned[con.target] {
				if ok, cmp := Outlives(argExprLt[i], argExprLt[con.target]); !cmp || !ok {
					c.errorf(call.Args[i].Value, "argument %d does not outlive argument %d as required by %s", i, con.target, call.Name)
				}
			}
		case conToReturn:
			returnArgIndex = i
		}
	}

	if returnArgIndex < 0 {
		return Lifetime{}, true
	}
	if argOwned[returnArgIndex] {
		return Lifetime{}, true
	}
	return argExprLt[returnArgIndex], false
}
