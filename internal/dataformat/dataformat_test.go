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

package dataformat

import (
	"testing"

	"github.com/dyonlang/dyon/value"
)

func TestJSONRoundTrip(t *testing.T) {
	in := value.Object(map[string]value.Value{
		"name": value.Text("alice"),
		"age":  value.F64(30),
		"tags": value.Array([]value.Value{value.Text("a"), value.Text("b")}),
	})

	text, err := ToJSON(in)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	back, err := ParseJSON([]byte(text))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	obj, ok := back.Object()
	if !ok {
		t.Fatalf("round-tripped value is not an object: %v", back.Kind())
	}
	name, ok := obj.Get("name")
	if !ok {
		t.Fatalf("missing name key")
	}
	if s, _ := name.AsText(); s != "alice" {
		t.Errorf("name = %q, want alice", s)
	}
	age, ok := obj.Get("age")
	if !ok {
		t.Fatalf("missing age key")
	}
	if n, _ := age.AsF64(); n != 30 {
		t.Errorf("age = %v, want 30", n)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	in := value.Array([]value.Value{value.F64(1), value.F64(2), value.F64(3)})
	text, err := ToYAML(in)
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	back, err := ParseYAML([]byte(text))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	arr, ok := back.Array()
	if !ok || arr.Len() != 3 {
		t.Fatalf("round-tripped value = %#v", back)
	}
	if n, _ := arr.At(0).AsF64(); n != 1 {
		t.Errorf("arr[0] = %v, want 1", n)
	}
}

func TestToPlainNone(t *testing.T) {
	if got := ToPlain(value.None()); got != nil {
		t.Errorf("ToPlain(None()) = %#v, want nil", got)
	}
}
