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

package module

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func sampleMeta() []MetaEvent {
	return []MetaEvent{
		{Kind: MetaStart, Tag: "fn"},
		{Kind: MetaString, Tag: "name", Str: "main"},
		{Kind: MetaF64, Tag: "args", Num: 0},
		{Kind: MetaStart, Tag: "block"},
		{Kind: MetaBool, Tag: "empty", Bool: true},
		{Kind: MetaEnd, Tag: "block"},
		{Kind: MetaEnd, Tag: "fn"},
	}
}

func TestMetaToJSONBalancedIndent(t *testing.T) {
	out, err := MetaToJSON(sampleMeta())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out, "\n")
	// first record at one level of indent, nested block contents at
	// two, the matching ends dedented back
	wantPrefix := []string{
		"[",
		`  {"start":"fn"}`,
		`    {"str":{"name":"main"}}`,
		`    {"f64":{"args":0}}`,
		`    {"start":"block"}`,
		`      {"bool":{"empty":true}}`,
		`    {"end":"block"}`,
		`  {"end":"fn"}`,
		"]",
	}
	if len(lines) != len(wantPrefix) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(wantPrefix), out)
	}
	for i, want := range wantPrefix {
		got := strings.TrimSuffix(lines[i], ",")
		if got != want {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want)
		}
	}
}

func TestMetaToJSONUnbalanced(t *testing.T) {
	_, err := MetaToJSON([]MetaEvent{{Kind: MetaEnd, Tag: "fn"}})
	if err == nil {
		t.Error("expected error for unbalanced end")
	}
	_, err = MetaToJSON([]MetaEvent{{Kind: MetaStart, Tag: "fn"}})
	if err == nil {
		t.Error("expected error for unclosed start")
	}
}

func TestMetaJSONRoundTrip(t *testing.T) {
	events := sampleMeta()
	out, err := MetaToJSON(events)
	if err != nil {
		t.Fatal(err)
	}
	back, err := MetaFromJSON([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(events, back) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", back, events)
	}
}

func TestMetaValueRoundTrip(t *testing.T) {
	events := sampleMeta()
	back, err := MetaFromValue(MetaValue(events))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(events, back) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", back, events)
	}
}

func TestMetaSaveLoad(t *testing.T) {
	events := sampleMeta()
	var buf bytes.Buffer
	if err := SaveMeta(&buf, events); err != nil {
		t.Fatal(err)
	}
	back, err := LoadMeta(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(events, back) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", back, events)
	}
}
