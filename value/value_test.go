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

func TestScalarAccessors(t *testing.T) {
	if b, ok := Bool(true).AsBool(); !ok || !b {
		t.Fatalf("Bool(true).AsBool() = (%v, %v)", b, ok)
	}
	if n, ok := F64(3.5).AsF64(); !ok || n != 3.5 {
		t.Fatalf("F64(3.5).AsF64() = (%v, %v)", n, ok)
	}
	if _, ok := F64(1).AsBool(); ok {
		t.Fatal("AsBool() on an F64 should report ok=false")
	}
}

func TestTextIsIndependentOfMutationElsewhere(t *testing.T) {
	v := Text("hello")
	if s, ok := v.AsText(); !ok || s != "hello" {
		t.Fatalf("AsText() = (%q, %v)", s, ok)
	}
}

func TestOptionNoneAndSome(t *testing.T) {
	none := None()
	if _, present, ok := none.Option(); !ok || present {
		t.Fatalf("None().Option() = present=%v ok=%v, want present=false ok=true", present, ok)
	}
	some := Some(F64(7))
	v, present, ok := some.Option()
	if !ok || !present {
		t.Fatalf("Some(7).Option() = present=%v ok=%v", present, ok)
	}
	if n, _ := v.AsF64(); n != 7 {
		t.Fatalf("Some(7) unwrapped = %v, want 7", n)
	}
}

func TestResultOkAndErr(t *testing.T) {
	ok := Ok(F64(1))
	res, isResult := ok.Result()
	if !isResult || res.Ok == nil || res.Err != nil {
		t.Fatalf("Ok(1).Result() = %+v", res)
	}
	errVal := Err("boom")
	res2, _ := errVal.Result()
	if res2.Err == nil || res2.Err.Msg != "boom" {
		t.Fatalf("Err(\"boom\").Result() = %+v", res2)
	}
}

func TestWithSecretNoOpOnNonScalar(t *testing.T) {
	s := NewSecret(Bool(true))
	v := Text("x").WithSecret(s)
	if v.Secret() != nil {
		t.Fatal("WithSecret on a Text value should be a no-op")
	}
}

func TestWithSecretAttachesToScalar(t *testing.T) {
	s := NewSecret(F64(1))
	v := F64(2).WithSecret(s)
	if v.Secret() != s {
		t.Fatal("WithSecret on an F64 value should attach the given secret")
	}
}

func TestStringFormatting(t *testing.T) {
	if got := Bool(true).String(); got != "true" {
		t.Errorf("Bool(true).String() = %q, want %q", got, "true")
	}
	if got := F64(2.5).String(); got != "2.5" {
		t.Errorf("F64(2.5).String() = %q, want %q", got, "2.5")
	}
	if got := Text("abc").String(); got != "abc" {
		t.Errorf("Text(\"abc\").String() = %q, want %q", got, "abc")
	}
}
