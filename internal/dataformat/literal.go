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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dyonlang/dyon/link"
	"github.com/dyonlang/dyon/value"
)

// ParseLiteral parses a data-literal document (spec §6 "Data literal
// syntax"): objects `{ key: v, … }` with unquoted or quoted keys,
// arrays `[v, …]`, 4-vectors `(x, y[, z[, w]])`, hex colors #RRGGBB
// or #RRGGBBAA, options none()/some(v), links `link { v v … }`,
// underscore-separated numbers, and JSON-escaped strings. Line (`//`)
// and nested block (`/* */`) comments are skipped anywhere whitespace
// is allowed.
func ParseLiteral(data []byte) (value.Value, error) {
	p := &litParser{src: string(data)}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return value.Value{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return value.Value{}, p.errorf("trailing input after document")
	}
	return v, nil
}

type litParser struct {
	src string
	pos int
}

func (p *litParser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for _, r := range p.src[:p.pos] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return fmt.Errorf("dataformat: %d:%d: %s", line, col, fmt.Sprintf(format, args...))
}

func (p *litParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			depth := 1
			p.pos += 2
			for p.pos < len(p.src) && depth > 0 {
				if strings.HasPrefix(p.src[p.pos:], "/*") {
					depth++
					p.pos += 2
				} else if strings.HasPrefix(p.src[p.pos:], "*/") {
					depth--
					p.pos += 2
				} else {
					p.pos++
				}
			}
		default:
			return
		}
	}
}

func (p *litParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *litParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *litParser) value() (value.Value, error) {
	switch c := p.peek(); {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '(':
		return p.vec4()
	case c == '#':
		return p.hexColor()
	case c == '"':
		s, err := p.stringLit()
		if err != nil {
			return value.Value{}, err
		}
		return value.Text(s), nil
	case c == '-' || (c >= '0' && c <= '9'):
		n, err := p.number()
		if err != nil {
			return value.Value{}, err
		}
		return value.F64(n), nil
	case isIdentStart(rune(c)):
		return p.word()
	default:
		return value.Value{}, p.errorf("unexpected character %q", string(c))
	}
}

func (p *litParser) object() (value.Value, error) {
	if err := p.expect('{'); err != nil {
		return value.Value{}, err
	}
	m := map[string]value.Value{}
	p.skipSpace()
	for p.peek() != '}' {
		key, err := p.objectKey()
		if err != nil {
			return value.Value{}, err
		}
		p.skipSpace()
		if err := p.expect(':'); err != nil {
			return value.Value{}, err
		}
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return value.Value{}, err
		}
		m[key] = v
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++
	return value.Object(m), nil
}

func (p *litParser) objectKey() (string, error) {
	if p.peek() == '"' {
		return p.stringLit()
	}
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if p.pos == start && !isIdentStart(r) {
			break
		}
		if p.pos > start && !isIdentPart(r) {
			break
		}
		p.pos += size
	}
	if p.pos == start {
		return "", p.errorf("expected object key")
	}
	return p.src[start:p.pos], nil
}

func (p *litParser) array() (value.Value, error) {
	if err := p.expect('['); err != nil {
		return value.Value{}, err
	}
	var items []value.Value
	p.skipSpace()
	for p.peek() != ']' {
		v, err := p.value()
		if err != nil {
			return value.Value{}, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++
	return value.Array(items), nil
}

// vec4 parses `(x, y[, z[, w]])`; missing components default to zero.
func (p *litParser) vec4() (value.Value, error) {
	if err := p.expect('('); err != nil {
		return value.Value{}, err
	}
	var comps [4]float32
	n := 0
	p.skipSpace()
	for p.peek() != ')' {
		if n == 4 {
			return value.Value{}, p.errorf("4-vector has more than four components")
		}
		f, err := p.number()
		if err != nil {
			return value.Value{}, err
		}
		comps[n] = float32(f)
		n++
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++
	if n < 2 {
		return value.Value{}, p.errorf("4-vector needs at least two components")
	}
	return value.Vec4(comps), nil
}

// hexColor parses #RRGGBB or #RRGGBBAA into a Vec4 with components in
// [0,1]; a missing alpha byte means fully opaque.
func (p *litParser) hexColor() (value.Value, error) {
	p.pos++ // '#'
	start := p.pos
	for p.pos < len(p.src) && isHexDigit(p.src[p.pos]) {
		p.pos++
	}
	digits := p.src[start:p.pos]
	if len(digits) != 6 && len(digits) != 8 {
		return value.Value{}, p.errorf("hex color needs 6 or 8 digits, got %d", len(digits))
	}
	var comps [4]float32
	comps[3] = 1
	for i := 0; i*2 < len(digits); i++ {
		b, err := strconv.ParseUint(digits[i*2:i*2+2], 16, 8)
		if err != nil {
			return value.Value{}, p.errorf("hex color: %v", err)
		}
		comps[i] = float32(b) / 255
	}
	return value.Vec4(comps), nil
}

func (p *litParser) number() (float64, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '_' ||
			c == 'e' || c == 'E' ||
			((c == '+' || c == '-') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, p.errorf("bad number %q", p.src[start:p.pos])
	}
	return n, nil
}

// stringLit parses a double-quoted string with JSON-style escapes.
func (p *litParser) stringLit() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return sb.String(), nil
		}
		if c != '\\' {
			sb.WriteByte(c)
			p.pos++
			continue
		}
		p.pos++
		if p.pos >= len(p.src) {
			return "", p.errorf("unterminated escape")
		}
		switch e := p.src[p.pos]; e {
		case '"', '\\', '/':
			sb.WriteByte(e)
			p.pos++
		case 'b':
			sb.WriteByte('\b')
			p.pos++
		case 'f':
			sb.WriteByte('\f')
			p.pos++
		case 'n':
			sb.WriteByte('\n')
			p.pos++
		case 'r':
			sb.WriteByte('\r')
			p.pos++
		case 't':
			sb.WriteByte('\t')
			p.pos++
		case 'u':
			r, err := p.unicodeEscape()
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		default:
			return "", p.errorf("unknown escape \\%s", string(e))
		}
	}
}

func (p *litParser) unicodeEscape() (rune, error) {
	hex4 := func() (rune, error) {
		if p.pos+5 > len(p.src) {
			return 0, p.errorf("truncated \\u escape")
		}
		n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+5], 16, 32)
		if err != nil {
			return 0, p.errorf("bad \\u escape: %v", err)
		}
		p.pos += 5
		return rune(n), nil
	}
	r, err := hex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(r) && strings.HasPrefix(p.src[p.pos:], `\u`) {
		p.pos++ // backslash
		r2, err := hex4()
		if err != nil {
			return 0, err
		}
		return utf16.DecodeRune(r, r2), nil
	}
	return r, nil
}

// word parses the keyword-introduced forms: true, false, none(),
// some(v), and link { v v … }.
func (p *litParser) word() (value.Value, error) {
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !isIdentPart(r) {
			break
		}
		p.pos += size
	}
	switch word := p.src[start:p.pos]; word {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "none":
		p.skipSpace()
		if err := p.expect('('); err != nil {
			return value.Value{}, err
		}
		p.skipSpace()
		if err := p.expect(')'); err != nil {
			return value.Value{}, err
		}
		return value.None(), nil
	case "some":
		p.skipSpace()
		if err := p.expect('('); err != nil {
			return value.Value{}, err
		}
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return value.Value{}, err
		}
		p.skipSpace()
		if err := p.expect(')'); err != nil {
			return value.Value{}, err
		}
		return value.Some(v), nil
	case "link":
		return p.linkBody()
	default:
		return value.Value{}, p.errorf("unknown word %q", word)
	}
}

// linkBody parses `{ v v … }` after the `link` keyword: a
// whitespace-separated run of scalar literals, no commas.
func (p *litParser) linkBody() (value.Value, error) {
	p.skipSpace()
	if err := p.expect('{'); err != nil {
		return value.Value{}, err
	}
	l := link.New()
	p.skipSpace()
	for p.peek() != '}' {
		v, err := p.value()
		if err != nil {
			return value.Value{}, err
		}
		sc, err := scalarOf(v)
		if err != nil {
			return value.Value{}, p.errorf("%v", err)
		}
		l.Push(sc)
		p.skipSpace()
	}
	p.pos++
	return value.Link(l), nil
}

func scalarOf(v value.Value) (link.Scalar, error) {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return link.Scalar{Tag: link.KindBool, B: b}, nil
	case value.KindF64:
		n, _ := v.AsF64()
		return link.Scalar{Tag: link.KindF64, N: n}, nil
	case value.KindText:
		s, _ := v.AsText()
		return link.Scalar{Tag: link.KindText, Text: s}, nil
	default:
		return link.Scalar{}, fmt.Errorf("link may only hold bool, f64, or str, got %s", v.Kind())
	}
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// WriteLiteral renders v back in data-literal syntax, the
// serialization half of spec §6's "used by load_data and as a
// serialization format". Object keys print sorted and unquoted when
// identifier-shaped; kinds with no literal form (Ref, Closure, Thread,
// In, RustObject) report an error rather than emitting something
// ParseLiteral would reject.
func WriteLiteral(v value.Value) (string, error) {
	var sb strings.Builder
	if err := writeLit(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeLit(sb *strings.Builder, v value.Value) error {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		sb.WriteString(strconv.FormatBool(b))
	case value.KindF64:
		n, _ := v.AsF64()
		sb.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
	case value.KindText:
		s, _ := v.AsText()
		sb.WriteString(quoteJSONString(s))
	case value.KindVec4:
		vec, _ := v.Vec4()
		sb.WriteByte('(')
		for i, c := range vec {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatFloat(float64(c), 'g', -1, 32))
		}
		sb.WriteByte(')')
	case value.KindArray:
		arr, _ := v.Array()
		sb.WriteByte('[')
		for i := 0; i < arr.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := writeLit(sb, arr.At(i)); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case value.KindObject:
		obj, _ := v.Object()
		keys := obj.Keys()
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			if isIdentName(k) {
				sb.WriteString(k)
			} else {
				sb.WriteString(quoteJSONString(k))
			}
			sb.WriteString(": ")
			val, _ := obj.Get(k)
			if err := writeLit(sb, val); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	case value.KindOption:
		inner, some, _ := v.Option()
		if !some {
			sb.WriteString("none()")
			break
		}
		sb.WriteString("some(")
		if err := writeLit(sb, inner); err != nil {
			return err
		}
		sb.WriteByte(')')
	case value.KindLink:
		l, _ := v.Link()
		sb.WriteString("link {")
		for _, sc := range l.ToSlice() {
			sb.WriteByte(' ')
			switch sc.Tag {
			case link.KindBool:
				sb.WriteString(strconv.FormatBool(sc.B))
			case link.KindF64:
				sb.WriteString(strconv.FormatFloat(sc.N, 'g', -1, 64))
			case link.KindText:
				sb.WriteString(quoteJSONString(sc.Text))
			}
		}
		sb.WriteString(" }")
	default:
		return fmt.Errorf("dataformat: %s has no data-literal form", v.Kind())
	}
	return nil
}

func isIdentName(s string) bool {
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if i > 0 && !isIdentPart(r) {
			return false
		}
	}
	return s != ""
}

func quoteJSONString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
