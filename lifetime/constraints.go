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

	"github.com/dyonlang/dyon/ast"
)

type conKind uint8

const (
	conNone conKind = iota
	conToArg
	conToReturn
)

// constraint is one argument's declared lifetime obligation, resolved
// from its `'name` / `'return` annotation to a positional index.
type constraint struct {
	kind   conKind
	target int // argument index, meaningful when kind == conToArg
}

// buildConstraints resolves every argument's Lifetime annotation to a
// positional constraint vector, per spec §4.1 "Link calls to callees".
func buildConstraints(args []ast.Arg) ([]constraint, error) {
	byName := make(map[string]int, len(args))
	for i, a := range args {
		byName[a.Name] = i
	}
	out := make([]constraint, len(args))
	for i, a := range args {
		switch {
		case a.Lifetime == "":
			out[i] = constraint{kind: conNone}
		case a.Lifetime == ast.ReturnLifetime:
			out[i] = constraint{kind: conToReturn}
		default:
			j, ok := byName[a.Lifetime]
			if !ok {
				return nil, fmt.Errorf("argument %q has an unknown lifetime annotation 'return or argument name %q", a.Name, a.Lifetime)
			}
			out[i] = constraint{kind: conToArg, target: j}
		}
	}
	return out, nil
}

// checkLifetimeCycle walks each argument's lifetime chain looking for
// a cycle before reaching a terminator (no annotation, or `'return`),
// per spec §4.1 step 7.
func checkLifetimeCycle(args []ast.Arg) error {
	byName := make(map[string]int, len(args))
	for i, a := range args {
		byName[a.Name] = i
	}
	for start := range args {
		visited := map[int]bool{}
		cur := start
		for {
			if visited[cur] {
				return fmt.Errorf("cyclic lifetime annotation starting at argument %q", args[start].Name)
			}
			visited[cur] = true
			lt := args[cur].Lifetime
			if lt == "" || lt == ast.ReturnLifetime {
				break
			}
			next, ok := byName[lt]
			if !ok {
				break // reported separately by buildConstraints
			}
			cur = next
		}
	}
	return nil
}
