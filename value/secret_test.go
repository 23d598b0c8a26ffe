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

import (
	"math"
	"testing"
)

func TestSecretWhyReturnsReverseOrder(t *testing.T) {
	s := NewSecret(F64(1))
	s = s.Explain(F64(2))
	s = s.Explain(F64(3))
	why := s.Why()
	if len(why) != 3 {
		t.Fatalf("Why() = %v entries, want 3", len(why))
	}
	if n, _ := why[0].AsF64(); n != 3 {
		t.Fatalf("Why()[0] = %v, want 3 (last-added first)", n)
	}
	if n, _ := why[2].AsF64(); n != 1 {
		t.Fatalf("Why()[2] = %v, want 1", n)
	}
}

func TestNilSecretWhyIsEmpty(t *testing.T) {
	var s *Secret
	if why := s.Why(); why != nil {
		t.Fatalf("Why() on a nil Secret = %v, want nil", why)
	}
}

func TestMergeSecretsPreservesOrder(t *testing.T) {
	left := NewSecret(F64(1))
	right := NewSecret(F64(2))
	merged := MergeSecrets(left, right)
	why := merged.Why()
	if len(why) != 2 {
		t.Fatalf("MergeSecrets Why() = %d entries, want 2", len(why))
	}
	// Left's witness was added first, so it is the *last* one returned
	// (Why reverses insertion order).
	if n, _ := why[1].AsF64(); n != 1 {
		t.Fatalf("Why()[1] = %v, want 1 (left operand's witness)", n)
	}
}

func TestMergeSecretsNilOperand(t *testing.T) {
	s := NewSecret(F64(1))
	if MergeSecrets(nil, s) != s {
		t.Error("MergeSecrets(nil, s) should return s unchanged")
	}
	if MergeSecrets(s, nil) != s {
		t.Error("MergeSecrets(s, nil) should return s unchanged")
	}
}

func TestWhyOnlyDefinedForTrueSecretBool(t *testing.T) {
	if _, ok := Why(Bool(false)); ok {
		t.Error("why() on Bool(false) should be undefined")
	}
	if _, ok := Why(Bool(true)); ok {
		t.Error("why() on a non-secret true should be undefined")
	}
	secretTrue := Bool(true).WithSecret(NewSecret(F64(1)))
	arr, ok := Why(secretTrue)
	if !ok {
		t.Fatal("why() on a secret true should be defined")
	}
	sa, _ := arr.Array()
	if sa.Len() != 1 {
		t.Fatalf("why() array has %d entries, want 1", sa.Len())
	}
}

func TestWhereUndefinedForNaN(t *testing.T) {
	nan := F64Secret(math.NaN(), NewSecret(F64(1)))
	if _, ok := Where(nan); ok {
		t.Error("where() on NaN should be undefined")
	}
}
