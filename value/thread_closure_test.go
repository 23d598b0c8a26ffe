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

import "testing"

func TestThreadJoinDeliversResult(t *testing.T) {
	th := NewThread()
	go th.Resolve(F64(42), nil)
	v, err := th.Join()
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if n, _ := v.AsF64(); n != 42 {
		t.Fatalf("Join() = %v, want 42", n)
	}
}

func TestThreadJoinTwiceErrors(t *testing.T) {
	th := NewThread()
	th.Resolve(F64(1), nil)
	if _, err := th.Join(); err != nil {
		t.Fatalf("first Join(): %v", err)
	}
	if _, err := th.Join(); err == nil {
		t.Fatal("second Join() on the same thread should error")
	}
}

func TestThreadJoinPropagatesError(t *testing.T) {
	th := NewThread()
	th.Resolve(Value{}, &Error{Msg: "it broke"})
	if _, err := th.Join(); err == nil || err.Error() != "it broke" {
		t.Fatalf("Join() error = %v, want %q", err, "it broke")
	}
}

func TestThreadIDsAreUnique(t *testing.T) {
	a := NewThread()
	b := NewThread()
	if a.ID == b.ID {
		t.Fatal("two distinct threads should not share a UUID")
	}
}

func TestInNextNonBlocking(t *testing.T) {
	in := NewIn()
	if v, present, ok := in.Next().Option(); !ok || present {
		t.Fatalf("Next() on empty In = present=%v ok=%v", present, ok)
		_ = v
	}
	in.Deliver(F64(9))
	v, present, ok := in.Next().Option()
	if !ok || !present {
		t.Fatalf("Next() after Deliver = present=%v ok=%v", present, ok)
	}
	if n, _ := v.AsF64(); n != 9 {
		t.Fatalf("Next() = %v, want 9", n)
	}
}

func TestInWaitNextBlocksUntilDelivered(t *testing.T) {
	in := NewIn()
	got := make(chan Value, 1)
	go func() { got <- in.WaitNext() }()
	in.Deliver(F64(5))
	v, present, ok := (<-got).Option()
	if !ok || !present {
		t.Fatalf("WaitNext() = present=%v ok=%v, want Some", present, ok)
	}
	if n, _ := v.AsF64(); n != 5 {
		t.Fatalf("WaitNext() = %v, want 5", n)
	}
}
