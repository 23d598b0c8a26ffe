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

package value

import "golang.org/x/exp/slices"

// Secret is the witness list attached to a Bool or F64 result. Witnesses
// are appended in evaluation order and returned to script code in
// reverse (last-added first), per spec §3.1 and property 4 in §8.
type Secret struct {
	witnesses []Value
}

// NewSecret starts a fresh witness chain seeded with a single witness
// (the value that made this Bool/F64 "secret" in the first place).
func NewSecret(witness Value) *Secret {
	return &Secret{witnesses: []Value{witness}}
}

// Explain appends a witness to an existing secret, returning a new
// Secret (the operation never mutates shared chains in place).
func (s *Secret) Explain(witness Value) *Secret {
	if s == nil {
		return NewSecret(witness)
	}
	next := make([]Value, len(s.witnesses), len(s.witnesses)+1)
	copy(next, s.witnesses)
	next = append(next, witness)
	return &Secret{witnesses: next}
}

// Why returns the witnesses in reverse insertion order (last-added
// first), or nil if there are none.
func (s *Secret) Why() []Value {
	if s == nil || len(s.witnesses) == 0 {
		return nil
	}
	out := slices.Clone(s.witnesses)
	slices.Reverse(out)
	return out
}

// MergeSecrets combines the secret chains of two operands into the
// chain that should be attached to the result of a boolean combinator
// or comparison. Evaluation order is preserved: the left operand's
// witnesses precede the right operand's.
func MergeSecrets(left, right *Secret) *Secret {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	merged := make([]Value, 0, len(left.witnesses)+len(right.witnesses))
	merged = append(merged, left.witnesses...)
	merged = append(merged, right.witnesses...)
	return &Secret{witnesses: merged}
}

// Why implements the `why(b)` primitive: defined only on
// Bool(true, Some(witnesses)).
func Why(b Value) (Value, bool) {
	bv, ok := b.AsBool()
	if !ok || !bv || b.secret == nil {
		return Value{}, false
	}
	return Array(b.secret.Why()), true
}

// Where implements the `where(n)` primitive: defined only on
// F64(non-nan, Some(witnesses)).
func Where(n Value) (Value, bool) {
	nv, ok := n.AsF64()
	if !ok || nv != nv || n.secret == nil {
		return Value{}, false
	}
	return Array(n.secret.Why()), true
}

// ExplainWhy implements `explain_why(b, w)`: attaches a new witness to a
// secret boolean, creating the secret chain if b was not already secret.
func ExplainWhy(b Value, witness Value) Value {
	return b.WithSecret(b.secret.Explain(witness))
}

// ExplainWhere implements `explain_where(n, w)`, the F64 analogue of
// ExplainWhy.
func ExplainWhere(n Value, witness Value) Value {
	return n.WithSecret(n.secret.Explain(witness))
}
