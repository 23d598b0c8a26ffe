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

package lifetime

import (
	"fmt"
	"strings"

	"github.com/dyonlang/dyon/ast"
)

// Error is a single lifetime-checker diagnostic, mirroring the
// teacher's TypeError/SyntaxError shape (expr/check.go): an offending
// node plus a message, formatted lazily by Error().
type Error struct {
	At  ast.Node
	Msg string
}

func (e *Error) Error() string {
	if e.At == nil {
		return e.Msg
	}
	r := e.At.Range()
	return fmt.Sprintf("[%d:%d] %s", r.Start, r.End, e.Msg)
}

func errAt(at ast.Node, format string, args ...any) *Error {
	return &Error{At: at, Msg: fmt.Sprintf(format, args...)}
}

// Errors collects every diagnostic from a single Check call.
type Errors []*Error

func (e Errors) Error() string {
	lines := make([]string, len(e))
	for i, err := range e {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

// fuzzySuggest lists registered names whose unmangled prefix matches
// name, for the "did you mean" hint on an unresolved call (spec §4.1
// "Failure").
func fuzzySuggest(name string, all []string) []string {
	var out []string
	for _, n := range all {
		if strings.HasPrefix(ast.Unmangle(n), name) {
			out = append(out, n)
		}
	}
	return out
}
