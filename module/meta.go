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
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dyonlang/dyon/value"
)

// MetaKind tags one record of the flat meta-data stream a parser
// produces (spec §4.1 "Inputs": StartNode, EndNode, Bool, String, F64
// events).
type MetaKind uint8

const (
	MetaStart MetaKind = iota
	MetaEnd
	MetaBool
	MetaString
	MetaF64
)

func (k MetaKind) String() string {
	switch k {
	case MetaStart:
		return "start"
	case MetaEnd:
		return "end"
	case MetaBool:
		return "bool"
	case MetaString:
		return "str"
	case MetaF64:
		return "f64"
	}
	return "unknown"
}

// MetaEvent is one record of the meta-data stream. Tag is the node or
// field name; exactly one of Bool/Str/Num is meaningful for the leaf
// kinds.
type MetaEvent struct {
	Kind MetaKind
	Tag  string
	Bool bool
	Str  string
	Num  float64
}

// MetaToJSON renders a meta-data stream as indented JSON: one record
// per line inside a JSON array, indented by the running
// start-minus-end tag count so nesting reads off the page (spec §6
// "JSON bridge"). An End record dedents before printing, so start/end
// pairs align.
func MetaToJSON(events []MetaEvent) (string, error) {
	depth := 0
	var sb strings.Builder
	sb.WriteString("[\n")
	for i, ev := range events {
		if ev.Kind == MetaEnd {
			if depth == 0 {
				return "", fmt.Errorf("module: meta-data stream has unbalanced end %q at record %d", ev.Tag, i)
			}
			depth--
		}
		sb.WriteString(strings.Repeat("  ", depth+1))
		rec, err := json.Marshal(metaRecord(ev))
		if err != nil {
			return "", err
		}
		sb.Write(rec)
		if i+1 < len(events) {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
		if ev.Kind == MetaStart {
			depth++
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("module: meta-data stream has %d unclosed start tags", depth)
	}
	sb.WriteString("]")
	return sb.String(), nil
}

// metaRecord is the JSON shape of one event: start/end records map the
// kind to the tag, leaf records map the kind to a {tag: value} object.
func metaRecord(ev MetaEvent) map[string]any {
	switch ev.Kind {
	case MetaStart, MetaEnd:
		return map[string]any{ev.Kind.String(): ev.Tag}
	case MetaBool:
		return map[string]any{"bool": map[string]any{ev.Tag: ev.Bool}}
	case MetaString:
		return map[string]any{"str": map[string]any{ev.Tag: ev.Str}}
	default:
		return map[string]any{"f64": map[string]any{ev.Tag: ev.Num}}
	}
}

// MetaFromJSON parses the array-of-records form MetaToJSON produces
// back into a meta-data stream.
func MetaFromJSON(data []byte) ([]MetaEvent, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("module: meta-data JSON: %w", err)
	}
	events := make([]MetaEvent, 0, len(raw))
	for i, rec := range raw {
		ev, err := decodeMetaRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("module: meta-data record %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeMetaRecord(rec map[string]json.RawMessage) (MetaEvent, error) {
	if len(rec) != 1 {
		return MetaEvent{}, fmt.Errorf("expected exactly one key, got %d", len(rec))
	}
	for kind, body := range rec {
		switch kind {
		case "start", "end":
			var tag string
			if err := json.Unmarshal(body, &tag); err != nil {
				return MetaEvent{}, err
			}
			k := MetaStart
			if kind == "end" {
				k = MetaEnd
			}
			return MetaEvent{Kind: k, Tag: tag}, nil
		case "bool", "str", "f64":
			var leaf map[string]json.RawMessage
			if err := json.Unmarshal(body, &leaf); err != nil {
				return MetaEvent{}, err
			}
			if len(leaf) != 1 {
				return MetaEvent{}, fmt.Errorf("%s record must hold exactly one field", kind)
			}
			for tag, raw := range leaf {
				ev := MetaEvent{Tag: tag}
				switch kind {
				case "bool":
					ev.Kind = MetaBool
					if err := json.Unmarshal(raw, &ev.Bool); err != nil {
						return MetaEvent{}, err
					}
				case "str":
					ev.Kind = MetaString
					if err := json.Unmarshal(raw, &ev.Str); err != nil {
						return MetaEvent{}, err
					}
				default:
					ev.Kind = MetaF64
					if err := json.Unmarshal(raw, &ev.Num); err != nil {
						return MetaEvent{}, err
					}
				}
				return ev, nil
			}
		}
		return MetaEvent{}, fmt.Errorf("unknown record kind %q", kind)
	}
	return MetaEvent{}, fmt.Errorf("empty record")
}

// MetaValue lifts a meta-data stream into a script-visible value: an
// array of [kind, tag] or [kind, tag, value] arrays, the shape
// `meta_data_from_json` hands back to scripts.
func MetaValue(events []MetaEvent) value.Value {
	items := make([]value.Value, len(events))
	for i, ev := range events {
		rec := []value.Value{value.Text(ev.Kind.String()), value.Text(ev.Tag)}
		switch ev.Kind {
		case MetaBool:
			rec = append(rec, value.Bool(ev.Bool))
		case MetaString:
			rec = append(rec, value.Text(ev.Str))
		case MetaF64:
			rec = append(rec, value.F64(ev.Num))
		}
		items[i] = value.Array(rec)
	}
	return value.Array(items)
}

// MetaFromValue lowers the array-of-records value shape back into a
// meta-data stream, validating each record's kind and payload type.
func MetaFromValue(v value.Value) ([]MetaEvent, error) {
	arr, ok := v.Array()
	if !ok {
		return nil, fmt.Errorf("module: meta-data must be an array, got %s", v.Kind())
	}
	events := make([]MetaEvent, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		rec, ok := arr.At(i).Array()
		if !ok || rec.Len() < 2 {
			return nil, fmt.Errorf("module: meta-data record %d must be a [kind, tag, ...] array", i)
		}
		kind, ok := rec.At(0).AsText()
		if !ok {
			return nil, fmt.Errorf("module: meta-data record %d: kind must be str", i)
		}
		tag, ok := rec.At(1).AsText()
		if !ok {
			return nil, fmt.Errorf("module: meta-data record %d: tag must be str", i)
		}
		ev := MetaEvent{Tag: tag}
		switch kind {
		case "start", "end":
			ev.Kind = MetaStart
			if kind == "end" {
				ev.Kind = MetaEnd
			}
		case "bool":
			b, ok := rec.At(2).AsBool()
			if !ok {
				return nil, fmt.Errorf("module: meta-data record %d: expected bool payload", i)
			}
			ev.Kind, ev.Bool = MetaBool, b
		case "str":
			s, ok := rec.At(2).AsText()
			if !ok {
				return nil, fmt.Errorf("module: meta-data record %d: expected str payload", i)
			}
			ev.Kind, ev.Str = MetaString, s
		case "f64":
			n, ok := rec.At(2).AsF64()
			if !ok {
				return nil, fmt.Errorf("module: meta-data record %d: expected f64 payload", i)
			}
			ev.Kind, ev.Num = MetaF64, n
		default:
			return nil, fmt.Errorf("module: meta-data record %d: unknown kind %q", i, kind)
		}
		events[i] = ev
	}
	return events, nil
}

// SaveMeta writes a meta-data stream as zstd-compressed JSON lines,
// one record per line, the on-disk form LoadMeta reads back.
func SaveMeta(w io.Writer, events []MetaEvent) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	for _, ev := range events {
		line, err := json.Marshal(metaRecord(ev))
		if err != nil {
			zw.Close()
			return err
		}
		line = append(line, '\n')
		if _, err := zw.Write(line); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// LoadMeta reads a zstd-compressed JSON-lines meta-data stream
// produced by SaveMeta.
func LoadMeta(r io.Reader) ([]MetaEvent, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var events []MetaEvent
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("module: meta-data line %d: %w", len(events), err)
		}
		ev, err := decodeMetaRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("module: meta-data line %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
