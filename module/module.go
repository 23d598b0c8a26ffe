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

// Package module implements the registry of loaded functions, external
// (host-provided) functions, and the prelude, plus relative-index
// function lookup. It is grounded on expr/builtin.go and
// expr/builtin_names.go (the teacher's own function-name/arity registry)
// generalized from a closed SQL builtin set to Dyon's open,
// user-extensible function table.
package module

import (
	"fmt"

	"github.com/dyonlang/dyon/ast"
)

// FnKind tags the result of a function lookup.
type FnKind uint8

const (
	FnNone FnKind = iota
	FnLoaded
	FnExternalVoid
	FnExternalReturn
	FnExternalBinOp
	FnExternalUnOp
	FnExternalLazy
)

// FnRef identifies a callee, resolved either to a loaded function's
// absolute index or to an external function's registry index.
type FnRef struct {
	Kind  FnKind
	Index int
	Lazy  []LazyInvariant
}

// Module is a registry of loaded function definitions and external
// function definitions, stamped with namespace paths, plus the senders
// registered on each loaded function for `in`-channels.
//
// Loaded functions are searched in reverse-registration order (later
// definitions shadow earlier), matching expr's own name -> builtin
// resolution order and spec §4.3.
type Module struct {
	fns      []*ast.Fn
	fnByName map[string][]int // mangled name -> indices, in registration order

	externs      []*ExternalFn
	externByName map[string][]int

	senders []*SenderSet // parallel to fns
}

// New returns an empty module.
func New() *Module {
	return &Module{
		fnByName:     map[string][]int{},
		externByName: map[string][]int{},
	}
}

// AddFn registers a loaded function, returning its absolute index.
func (m *Module) AddFn(fn *ast.Fn) int {
	idx := len(m.fns)
	m.fns = append(m.fns, fn)
	m.senders = append(m.senders, NewSenderSet())
	key := fn.Mangled()
	m.fnByName[key] = append(m.fnByName[key], idx)
	return idx
}

// Fn returns the loaded function at absolute index idx.
func (m *Module) Fn(idx int) *ast.Fn { return m.fns[idx] }

// NumFns returns the number of loaded functions.
func (m *Module) NumFns() int { return len(m.fns) }

// AddExternal registers a host-provided function, returning its
// registry index.
func (m *Module) AddExternal(e *ExternalFn) int {
	idx := len(m.externs)
	m.externs = append(m.externs, e)
	key := e.Mangled()
	m.externByName[key] = append(m.externByName[key], idx)
	return idx
}

// External returns the external function at registry index idx.
func (m *Module) External(idx int) *ExternalFn { return m.externs[idx] }

// FindFunction resolves name+mutability-pattern to a callee. Loaded
// functions are preferred over externals when both match, and within
// each table the most-recently-registered definition wins (spec §4.3).
func (m *Module) FindFunction(name string, mut []bool) FnRef {
	mangled := ast.Mangle(name, mut)
	if idxs, ok := m.fnByName[mangled]; ok && len(idxs) > 0 {
		return FnRef{Kind: FnLoaded, Index: idxs[len(idxs)-1]}
	}
	if idxs, ok := m.externByName[mangled]; ok && len(idxs) > 0 {
		e := m.externs[idxs[len(idxs)-1]]
		return FnRef{Kind: externKindToFnKind(e.Kind), Index: idxs[len(idxs)-1], Lazy: e.Lazy}
	}
	return FnRef{Kind: FnNone}
}

func externKindToFnKind(k ExternalKind) FnKind {
	switch k {
	case ExtVoid:
		return FnExternalVoid
	case ExtReturn:
		return FnExternalReturn
	case ExtBinOp:
		return FnExternalBinOp
	case ExtUnOp:
		return FnExternalUnOp
	case ExtLazy:
		return FnExternalLazy
	default:
		return FnNone
	}
}

// RelativeOffset returns the signed offset from callerIndex to
// targetIndex, used so that closures remain portable when captured in a
// module whose function set changes around them (spec §3.5, Glossary
// "Relative function index").
func RelativeOffset(callerIndex, targetIndex int) int { return targetIndex - callerIndex }

// ResolveRelative turns a caller-relative offset back into an absolute
// loaded-function index.
func (m *Module) ResolveRelative(callerIndex, rel int) (*ast.Fn, int, error) {
	idx := callerIndex + rel
	if idx < 0 || idx >= len(m.fns) {
		return nil, 0, fmt.Errorf("module: relative function index %d from caller %d is out of range", rel, callerIndex)
	}
	return m.fns[idx], idx, nil
}

// Senders returns the sender registry for loaded function idx, used by
// `in f` and by the call path's broadcast step.
func (m *Module) Senders(idx int) *SenderSet { return m.senders[idx] }

// MangledNames returns every registered loaded and external function
// name, mangled form, for the lifetime checker's fuzzy "did you mean"
// suggestion search (spec §4.1).
func (m *Module) MangledNames() []string {
	out := make([]string, 0, len(m.fnByName)+len(m.externByName))
	for k := range m.fnByName {
		out = append(out, k)
	}
	for k := range m.externByName {
		out = append(out, k)
	}
	return out
}

// FindAnyLoaded resolves a bare (unmangled) function name to a loaded
// function index regardless of its mutability pattern, used by `in
// name` (spec §4.2 "Channels"), which names a receiver function
// without an argument-mutability pattern to match against.
func (m *Module) FindAnyLoaded(name string) (int, bool) {
	for key, idxs := range m.fnByName {
		if ast.Unmangle(key) == name && len(idxs) > 0 {
			return idxs[len(idxs)-1], true
		}
	}
	return 0, false
}

// ArgCount reports the number of arguments a loaded or external callee
// of kind ref expects, used by the lifetime checker's arity check.
func (m *Module) ArgCount(ref FnRef) int {
	switch ref.Kind {
	case FnLoaded:
		return len(m.fns[ref.Index].Args)
	default:
		return len(m.externs[ref.Index].MutPattern)
	}
}
