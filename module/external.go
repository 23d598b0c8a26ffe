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
	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/value"
)

// ExternalKind tags the calling convention of a host function, per spec
// §3.5.
type ExternalKind uint8

const (
	// ExtVoid functions produce no value.
	ExtVoid ExternalKind = iota
	// ExtReturn functions push exactly one result.
	ExtReturn
	// ExtBinOp functions implement an infix operator.
	ExtBinOp
	// ExtUnOp functions implement a prefix operator.
	ExtUnOp
	// ExtLazy functions may short-circuit: some arguments need not be
	// evaluated depending on earlier ones (e.g. `&&`, `||`).
	ExtLazy
)

// LazyInvariant describes one short-circuiting rule of a Lazy external
// function: if argument ArgIndex evaluates to Bool(On), the call
// returns Bool(Result) without evaluating later arguments. This encodes
// `&&`'s "returns false when the first argument is false without
// evaluating the second" rule from spec §3.5.
type LazyInvariant struct {
	ArgIndex int
	On       bool
	Result   bool
}

// HostRuntime is the minimal surface a host function needs: pop its
// arguments (host functions pop in reverse order, per spec §6), push a
// single result for ExtReturn/ExtBinOp/ExtUnOp kinds, and mark which
// argument an error is attributable to for precise diagnostics.
// eval.Runtime implements this interface; module never imports eval,
// keeping the dependency one-directional.
//
// A `mut` parameter (per MutPattern) is popped as a value.UnsafeRef
// pointing at the caller's slot; the external function dereferences it
// with UnsafeTarget and writes the updated value back through the
// pointer. See prelude.go's push/pop/insert/remove for the convention.
type HostRuntime interface {
	PopArg() value.Value
	PushResult(value.Value)
	SetArgError(index int)
}

// HostFunc implements an external function's behavior against a
// HostRuntime.
type HostFunc func(rt HostRuntime) error

// ExternalFn is a host-provided function definition.
type ExternalFn struct {
	Name      string
	Namespace string
	Kind      ExternalKind
	// MutPattern records which positional arguments are `mut`, for
	// name mangling/overload resolution exactly like loaded Fns.
	MutPattern []bool
	Lazy       []LazyInvariant
	Call       HostFunc
}

// Mangled returns the arg-mutability-qualified registry key.
func (e *ExternalFn) Mangled() string { return ast.Mangle(e.Name, e.MutPattern) }
