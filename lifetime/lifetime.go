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

// Package lifetime implements the pre-execution static analysis that
// proves every reference the evaluator will ever form respects nesting
// of lifetimes, replacing the need for a runtime borrow checker on the
// hot path (spec §4.1). It is grounded on expr/check.go's Visit-driven
// checker shape (TypeError/SyntaxError, a checkwalk accumulating
// errors) generalized from SQL type-checking to Dyon's lifetime
// lattice.
package lifetime

// Kind tags a Lifetime's shape.
type Kind uint8

const (
	// KindLocal is a local variable's lifetime, tagged with its
	// declaration order within the enclosing function (earlier
	// declarations outlive later ones).
	KindLocal Kind = iota
	// KindArgument is a chain of argument indices, outermost last,
	// describing "this value's lifetime is whatever argument chain it
	// was borrowed through".
	KindArgument
	// KindReturn is the lifetime of the function's own return slot,
	// optionally chained through argument indices (an empty chain is
	// the weakest possible Return lifetime).
	KindReturn
)

// Lifetime is the abstract relation the checker compares pairwise, per
// spec §4.1 step 8.
type Lifetime struct {
	Kind Kind
	// Decl is meaningful only for KindLocal: the local's declaration
	// index within its function (lower = declared earlier = outlives
	// later declarations).
	Decl int
	// Chain is meaningful for KindArgument/KindReturn: a sequence of
	// argument indices, outermost last.
	Chain []int
}

// Local builds the lifetime of the decl-th local declared in a
// function.
func Local(decl int) Lifetime { return Lifetime{Kind: KindLocal, Decl: decl} }

// Argument builds the lifetime of a bare function argument.
func Argument(index int) Lifetime { return Lifetime{Kind: KindArgument, Chain: []int{index}} }

// ReturnEmpty is the lifetime of a value with no outliving obligation
// beyond "lives at least as long as the function's return slot".
func ReturnEmpty() Lifetime { return Lifetime{Kind: KindReturn} }

// ReturnChain builds a Return lifetime chained through the given
// argument indices (outermost last), used when an argument is itself
// annotated `'return`.
func ReturnChain(chain []int) Lifetime { return Lifetime{Kind: KindReturn, Chain: chain} }

func sharedPrefix(a, b []int) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return a[len(a)-1] == b[len(b)-1]
}

// Compare implements spec §4.1 step 8's partial order. It returns
// (cmp, true) where cmp > 0 means a outlives b, cmp < 0 means b
// outlives a, cmp == 0 means equal; it returns (0, false) when a and b
// are incomparable.
func Compare(a, b Lifetime) (int, bool) {
	switch {
	case a.Kind == KindLocal && b.Kind == KindLocal:
		switch {
		case a.Decl < b.Decl:
			return 1, true
		case a.Decl > b.Decl:
			return -1, true
		default:
			return 0, true
		}
	case a.Kind == KindLocal && b.Kind != KindLocal:
		return -1, true
	case a.Kind != KindLocal && b.Kind == KindLocal:
		return 1, true
	case a.Kind == KindReturn && b.Kind == KindReturn:
		switch {
		case len(a.Chain) == 0 && len(b.Chain) == 0:
			return 0, true
		case len(a.Chain) == 0:
			return -1, true
		case len(b.Chain) == 0:
			return 1, true
		case sharedPrefix(a.Chain, b.Chain):
			return len(a.Chain) - len(b.Chain), true
		default:
			return 0, false
		}
	case a.Kind == KindArgument && b.Kind == KindArgument:
		if !sharedPrefix(a.Chain, b.Chain) {
			return 0, false
		}
		return len(a.Chain) - len(b.Chain), true
	default:
		// Return vs Argument: incomparable except when the Return side
		// is empty, which is weaker than any Argument lifetime.
		if a.Kind == KindReturn && len(a.Chain) == 0 {
			return -1, true
		}
		if b.Kind == KindReturn && len(b.Chain) == 0 {
			return 1, true
		}
		return 0, false
	}
}

// Outlives reports whether a's lifetime is at least as long as b's,
// i.e. assigning/passing a value of lifetime a where b is required is
// sound.
func Outlives(a, b Lifetime) (bool, bool) {
	cmp, ok := Compare(a, b)
	if !ok {
		return false, false
	}
	return cmp >= 0, true
}
