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

// Package value implements the Dyon runtime value model: a tagged union
// of scalars, reference-counted shared containers, and the secrets
// mechanism that threads provenance witnesses through booleans and
// numbers.
package value

import (
	"fmt"
	"sync"

	"github.com/dyonlang/dyon/link"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindRef Kind = iota
	KindReturn
	KindBool
	KindF64
	KindVec4
	KindMat4
	KindText
	KindArray
	KindObject
	KindLink
	KindUnsafeRef
	KindRustObject
	KindOption
	KindResult
	KindThread
	KindClosure
	KindIn
)

func (k Kind) String() string {
	switch k {
	case KindRef:
		return "ref"
	case KindReturn:
		return "return"
	case KindBool:
		return "bool"
	case KindF64:
		return "f64"
	case KindVec4:
		return "vec4"
	case KindMat4:
		return "mat4"
	case KindText:
		return "str"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindLink:
		return "link"
	case KindUnsafeRef:
		return "unsafe_ref"
	case KindRustObject:
		return "rust_object"
	case KindOption:
		return "option"
	case KindResult:
		return "result"
	case KindThread:
		return "thread"
	case KindClosure:
		return "closure"
	case KindIn:
		return "in"
	default:
		return "unknown"
	}
}

// Value is a single Dyon runtime value. Only one of the fields below is
// meaningful for a given Kind; this mirrors the teacher's ion.Datum
// tagged-union layout (see ion/datum.go) rather than a Go interface, so
// that scalar values (Bool, F64) never escape to the heap on their own.
type Value struct {
	kind Kind

	// scalars
	b      bool
	n      float64
	vec4   [4]float32
	mat4   [4][4]float32
	secret *Secret // witnesses for Bool/F64, nil when not a secret

	// shared, reference-counted containers (copy-on-write)
	text *sharedText
	arr  *SharedArray
	obj  *SharedObject
	lnk  *link.Link

	// pointer-shaped variants
	ref       int
	unsafeRef *Value

	rustObj *RustObject
	opt     *Value // nil means None, else Some(*opt)
	res     *Result

	thread  *Thread
	closure *Closure
	in      *In
}

// Error is the runtime error payload carried by Result.Err.
type Error struct {
	Msg   string
	Trace []string
}

func (e *Error) Error() string { return e.Msg }

// Result is the boxed Ok/Err payload of a Result value.
type Result struct {
	Ok  *Value
	Err *Error
}

// RustObject is an opaque host value guarded by a mutex, matching the
// "shared mutex of opaque host data" variant from the spec.
type RustObject struct {
	mu   sync.Mutex
	Data any
}

func (r *RustObject) Lock()   { r.mu.Lock() }
func (r *RustObject) Unlock() { r.mu.Unlock() }

// --- constructors -----------------------------------------------------

func Ref(i int) Value { return Value{kind: KindRef, ref: i} }

func ReturnSlot() Value { return Value{kind: KindReturn} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func BoolSecret(b bool, s *Secret) Value { return Value{kind: KindBool, b: b, secret: s} }

func F64(n float64) Value { return Value{kind: KindF64, n: n} }

func F64Secret(n float64, s *Secret) Value { return Value{kind: KindF64, n: n, secret: s} }

func Vec4(v [4]float32) Value { return Value{kind: KindVec4, vec4: v} }

func Mat4(m [4][4]float32) Value { return Value{kind: KindMat4, mat4: m} }

func Text(s string) Value { return Value{kind: KindText, text: newSharedText(s)} }

func Array(items []Value) Value { return Value{kind: KindArray, arr: NewSharedArray(items)} }

func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: NewSharedObject(m)} }

func Link(l *link.Link) Value { return Value{kind: KindLink, lnk: l} }

func UnsafeRef(v *Value) Value { return Value{kind: KindUnsafeRef, unsafeRef: v} }

func Rust(data any) Value { return Value{kind: KindRustObject, rustObj: &RustObject{Data: data}} }

func None() Value { return Value{kind: KindOption, opt: nil} }

func Some(v Value) Value { return Value{kind: KindOption, opt: &v} }

func Ok(v Value) Value { return Value{kind: KindResult, res: &Result{Ok: &v}} }

func Err(msg string) Value { return Value{kind: KindResult, res: &Result{Err: &Error{Msg: msg}}} }

func ErrValue(e *Error) Value { return Value{kind: KindResult, res: &Result{Err: e}} }

func ThreadValue(t *Thread) Value { return Value{kind: KindThread, thread: t} }

func ClosureValue(c *Closure) Value { return Value{kind: KindClosure, closure: c} }

func InValue(in *In) Value { return Value{kind: KindIn, in: in} }

// --- accessors ----------------------------------------------------------

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsRef() bool { return v.kind == KindRef }
func (v Value) RefIndex() int {
	if v.kind != KindRef {
		panic("value: RefIndex on non-ref")
	}
	return v.ref
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsF64() (float64, bool) {
	if v.kind != KindF64 {
		return 0, false
	}
	return v.n, true
}

func (v Value) Vec4() ([4]float32, bool) {
	if v.kind != KindVec4 {
		return [4]float32{}, false
	}
	return v.vec4, true
}

func (v Value) Mat4() ([4][4]float32, bool) {
	if v.kind != KindMat4 {
		return [4][4]float32{}, false
	}
	return v.mat4, true
}

func (v Value) AsText() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text.load(), true
}

func (v Value) Array() (*SharedArray, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) Object() (*SharedObject, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

func (v Value) Link() (*link.Link, bool) {
	if v.kind != KindLink {
		return nil, false
	}
	return v.lnk, true
}

func (v Value) UnsafeTarget() (*Value, bool) {
	if v.kind != KindUnsafeRef {
		return nil, false
	}
	return v.unsafeRef, true
}

func (v Value) Rust() (*RustObject, bool) {
	if v.kind != KindRustObject {
		return nil, false
	}
	return v.rustObj, true
}

func (v Value) Option() (Value, bool, bool) {
	if v.kind != KindOption {
		return Value{}, false, false
	}
	if v.opt == nil {
		return Value{}, false, true
	}
	return *v.opt, true, true
}

func (v Value) Result() (*Result, bool) {
	if v.kind != KindResult {
		return nil, false
	}
	return v.res, true
}

func (v Value) Thread() (*Thread, bool) {
	if v.kind != KindThread {
		return nil, false
	}
	return v.thread, true
}

func (v Value) Closure() (*Closure, bool) {
	if v.kind != KindClosure {
		return nil, false
	}
	return v.closure, true
}

func (v Value) In() (*In, bool) {
	if v.kind != KindIn {
		return nil, false
	}
	return v.in, true
}

// Secret returns the witness list attached to a Bool or F64, if any.
func (v Value) Secret() *Secret {
	return v.secret
}

// WithSecret returns a copy of v with its secret witnesses replaced.
// Only meaningful for Bool/F64; it is a no-op for other kinds.
func (v Value) WithSecret(s *Secret) Value {
	if v.kind != KindBool && v.kind != KindF64 {
		return v
	}
	v.secret = s
	return v
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindF64:
		return fmt.Sprintf("%v", v.n)
	case KindText:
		return v.text.load()
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}
