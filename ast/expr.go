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

// --- literals -----------------------------------------------------------

type BoolLit struct {
	Rng   Range
	Value bool
}

func (n *BoolLit) Range() Range        { return n.Rng }
func (n *BoolLit) walk(Visitor)        {}
func (n *BoolLit) rewrite(Rewriter) Node { return n }

type F64Lit struct {
	Rng   Range
	Value float64
}

func (n *F64Lit) Range() Range          { return n.Rng }
func (n *F64Lit) walk(Visitor)          {}
func (n *F64Lit) rewrite(Rewriter) Node { return n }

type TextLit struct {
	Rng   Range
	Value string
}

func (n *TextLit) Range() Range          { return n.Rng }
func (n *TextLit) walk(Visitor)          {}
func (n *TextLit) rewrite(Rewriter) Node { return n }

// Vec4Lit constructs a 4-vector from four component expressions,
// e.g. `(p.x, p.y, 0, 0)`.
type Vec4Lit struct {
	Rng        Range
	X, Y, Z, W Node
}

func (n *Vec4Lit) Range() Range { return n.Rng }
func (n *Vec4Lit) walk(v Visitor) {
	Walk(v, n.X)
	Walk(v, n.Y)
	Walk(v, n.Z)
	Walk(v, n.W)
}
func (n *Vec4Lit) rewrite(r Rewriter) Node {
	return &Vec4Lit{n.Rng, Rewrite(r, n.X), Rewrite(r, n.Y), Rewrite(r, n.Z), Rewrite(r, n.W)}
}

// Mat4Lit constructs a 4x4 matrix, column-major, from four vec4
// expressions.
type Mat4Lit struct {
	Rng  Range
	Cols [4]Node
}

func (n *Mat4Lit) Range() Range { return n.Rng }
func (n *Mat4Lit) walk(v Visitor) {
	for _, c := range n.Cols {
		Walk(v, c)
	}
}
func (n *Mat4Lit) rewrite(r Rewriter) Node {
	out := &Mat4Lit{Rng: n.Rng}
	for i, c := range n.Cols {
		out.Cols[i] = Rewrite(r, c)
	}
	return out
}

// Norm computes the length of a vec4.
type Norm struct {
	Rng  Range
	Expr Node
}

func (n *Norm) Range() Range          { return n.Rng }
func (n *Norm) walk(v Visitor)        { Walk(v, n.Expr) }
func (n *Norm) rewrite(r Rewriter) Node { return &Norm{n.Rng, Rewrite(r, n.Expr)} }

// Swizzle reads named components of a vec4 expression, e.g. `xy p`. A
// single component evaluates to an f64; two to four components evaluate
// to one vec4 holding them in its leading slots, with the remaining
// slots zero. The components are not pushed as separate values.
type Swizzle struct {
	Rng        Range
	Expr       Node
	Components string
}

func (n *Swizzle) Range() Range { return n.Rng }
func (n *Swizzle) walk(v Visitor) { Walk(v, n.Expr) }
func (n *Swizzle) rewrite(r Rewriter) Node {
	return &Swizzle{n.Rng, Rewrite(r, n.Expr), n.Components}
}

// --- items (a.b[c].d?.e) -------------------------------------------------

// ItemStep is one step of an item's indexing chain.
type ItemStep struct {
	// Exactly one of Ident or Index is set.
	Ident string
	Index Node
	Try   bool
}

// Item names a variable and optionally indexes into it.
type Item struct {
	Rng   Range
	Name  string
	Steps []ItemStep

	// resolvedOffset caches the stack offset of Name the first time
	// this node is resolved, avoiding a linear re-scan of the local
	// stack on repeat visits (spec §9 "stack of values vs heap of
	// nodes").
	resolvedOffset int
	resolved       bool
}

func (n *Item) Range() Range { return n.Rng }
func (n *Item) walk(v Visitor) {
	for _, s := range n.Steps {
		if s.Index != nil {
			Walk(v, s.Index)
		}
	}
}
func (n *Item) rewrite(r Rewriter) Node {
	out := &Item{Rng: n.Rng, Name: n.Name, Steps: make([]ItemStep, len(n.Steps))}
	for i, s := range n.Steps {
		out.Steps[i] = s
		if s.Index != nil {
			out.Steps[i].Index = Rewrite(r, s.Index)
		}
	}
	return out
}

// CachedOffset returns the cached stack offset and whether it has been
// resolved yet.
func (n *Item) CachedOffset() (int, bool) { return n.resolvedOffset, n.resolved }

// SetCachedOffset records the resolved stack offset for subsequent
// visits.
func (n *Item) SetCachedOffset(off int) {
	n.resolvedOffset = off
	n.resolved = true
}

// --- literals of compound values -----------------------------------------

type KeyValue struct {
	Key   string
	Value Node
}

type ObjectLit struct {
	Rng     Range
	Entries []KeyValue
}

func (n *ObjectLit) Range() Range { return n.Rng }
func (n *ObjectLit) walk(v Visitor) {
	for _, e := range n.Entries {
		Walk(v, e.Value)
	}
}
func (n *ObjectLit) rewrite(r Rewriter) Node {
	out := &ObjectLit{Rng: n.Rng, Entries: make([]KeyValue, len(n.Entries))}
	for i, e := range n.Entries {
		out.Entries[i] = KeyValue{Key: e.Key, Value: Rewrite(r, e.Value)}
	}
	return out
}

type ArrayLit struct {
	Rng   Range
	Items []Node
}

func (n *ArrayLit) Range() Range { return n.Rng }
func (n *ArrayLit) walk(v Visitor) {
	for _, it := range n.Items {
		Walk(v, it)
	}
}
func (n *ArrayLit) rewrite(r Rewriter) Node {
	out := &ArrayLit{Rng: n.Rng, Items: make([]Node, len(n.Items))}
	for i, it := range n.Items {
		out.Items[i] = Rewrite(r, it)
	}
	return out
}

// ArrayFill is `[value; count]`.
type ArrayFill struct {
	Rng   Range
	Value Node
	Count Node
}

func (n *ArrayFill) Range() Range { return n.Rng }
func (n *ArrayFill) walk(v Visitor) {
	Walk(v, n.Value)
	Walk(v, n.Count)
}
func (n *ArrayFill) rewrite(r Rewriter) Node {
	return &ArrayFill{n.Rng, Rewrite(r, n.Value), Rewrite(r, n.Count)}
}

type LinkLit struct {
	Rng   Range
	Items []Node
}

func (n *LinkLit) Range() Range { return n.Rng }
func (n *LinkLit) walk(v Visitor) {
	for _, it := range n.Items {
		Walk(v, it)
	}
}
func (n *LinkLit) rewrite(r Rewriter) Node {
	out := &LinkLit{Rng: n.Rng, Items: make([]Node, len(n.Items))}
	for i, it := range n.Items {
		out.Items[i] = Rewrite(r, it)
	}
	return out
}

// --- calls ---------------------------------------------------------------

// CallArg is one argument at a call site; Name is set for named
// arguments, Mut records whether the `mut` prefix was used (feeds
// lifetime-checker name mangling).
type CallArg struct {
	Name  string
	Value Node
	Mut   bool
}

// Call is a function call, positional or named.
type Call struct {
	Rng  Range
	Name string
	Args []CallArg

	// resolvedFn caches the module-relative function index the first
	// time this call site is resolved, per spec §4.2 call semantics.
	resolvedFn    int
	resolvedKnown bool
}

func (n *Call) Range() Range { return n.Rng }
func (n *Call) walk(v Visitor) {
	for _, a := range n.Args {
		Walk(v, a.Value)
	}
}
func (n *Call) rewrite(r Rewriter) Node {
	out := &Call{Rng: n.Rng, Name: n.Name, Args: make([]CallArg, len(n.Args))}
	for i, a := range n.Args {
		out.Args[i] = CallArg{Name: a.Name, Mut: a.Mut, Value: Rewrite(r, a.Value)}
	}
	return out
}

func (n *Call) CachedFnIndex() (int, bool) { return n.resolvedFn, n.resolvedKnown }
func (n *Call) SetCachedFnIndex(i int) {
	n.resolvedFn = i
	n.resolvedKnown = true
}

// Mangled returns the arg-mutability-qualified name used for overload
// resolution, e.g. `f(mut,_,mut)`, per spec §4.1 "Name mangling".
func (n *Call) Mangled() string { return Mangle(n.Name, callMutPattern(n)) }

func callMutPattern(n *Call) []bool {
	out := make([]bool, len(n.Args))
	for i, a := range n.Args {
		out[i] = a.Mut
	}
	return out
}

// ClosureCall invokes a closure value (the result of an expression, not
// necessarily a named function) with a list of arguments.
type ClosureCall struct {
	Rng     Range
	Closure Node
	Args    []Node
}

func (n *ClosureCall) Range() Range { return n.Rng }
func (n *ClosureCall) walk(v Visitor) {
	Walk(v, n.Closure)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *ClosureCall) rewrite(r Rewriter) Node {
	out := &ClosureCall{Rng: n.Rng, Closure: Rewrite(r, n.Closure), Args: make([]Node, len(n.Args))}
	for i, a := range n.Args {
		out.Args[i] = Rewrite(r, a)
	}
	return out
}

// --- arithmetic, comparison, logical --------------------------------------

type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpPow
	OpDotMul // vec4 dot-like elementwise
)

type Arith struct {
	Rng         Range
	Op          ArithOp
	Left, Right Node
}

func (n *Arith) Range() Range { return n.Rng }
func (n *Arith) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *Arith) rewrite(r Rewriter) Node {
	return &Arith{n.Rng, n.Op, Rewrite(r, n.Left), Rewrite(r, n.Right)}
}

type CompareOp uint8

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

type Compare struct {
	Rng         Range
	Op          CompareOp
	Left, Right Node
}

func (n *Compare) Range() Range { return n.Rng }
func (n *Compare) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *Compare) rewrite(r Rewriter) Node {
	return &Compare{n.Rng, n.Op, Rewrite(r, n.Left), Rewrite(r, n.Right)}
}

type LogicalOp uint8

const (
	LogAnd LogicalOp = iota
	LogOr
)

type Logical struct {
	Rng         Range
	Op          LogicalOp
	Left, Right Node
}

func (n *Logical) Range() Range { return n.Rng }
func (n *Logical) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *Logical) rewrite(r Rewriter) Node {
	return &Logical{n.Rng, n.Op, Rewrite(r, n.Left), Rewrite(r, n.Right)}
}

type Not struct {
	Rng  Range
	Expr Node
}

func (n *Not) Range() Range          { return n.Rng }
func (n *Not) walk(v Visitor)        { Walk(v, n.Expr) }
func (n *Not) rewrite(r Rewriter) Node { return &Not{n.Rng, Rewrite(r, n.Expr)} }

type Neg struct {
	Rng  Range
	Expr Node
}

func (n *Neg) Range() Range          { return n.Rng }
func (n *Neg) walk(v Visitor)        { Walk(v, n.Expr) }
func (n *Neg) rewrite(r Rewriter) Node { return &Neg{n.Rng, Rewrite(r, n.Expr)} }

// --- assignment ------------------------------------------------------------

type AssignOp uint8

const (
	// AssignDecl is `:=`, declaring a fresh local.
	AssignDecl AssignOp = iota
	// AssignSet is a plain `=`, mutating an existing local.
	AssignSet
	// AssignCompound is `+=`, `-=`, ... ; Compound names the operator.
	AssignCompound
)

type Assign struct {
	Rng      Range
	Op       AssignOp
	Compound ArithOp // meaningful only when Op == AssignCompound
	// Current marks a `:=` that also enters the current-object stack
	// (the `~name` sigil).
	Current     bool
	Left, Right Node
}

func (n *Assign) Range() Range { return n.Rng }
func (n *Assign) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *Assign) rewrite(r Rewriter) Node {
	return &Assign{n.Rng, n.Op, n.Compound, n.Current, Rewrite(r, n.Left), Rewrite(r, n.Right)}
}
