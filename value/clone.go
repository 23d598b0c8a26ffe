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

// ShallowClone bumps the refcount of any shared buffer instead of
// copying it; this is what normal value-copy-on-the-stack semantics use
// for ref/unsafe-ref access, per spec §3.1.
func (v Value) ShallowClone() Value {
	switch v.kind {
	case KindText:
		v.text = v.text.retain()
	case KindArray:
		v.arr = v.arr.Retain()
	case KindObject:
		v.obj = v.obj.Retain()
	case KindLink:
		if v.lnk != nil {
			c := v.lnk.Clone()
			v.lnk = &c
		}
	}
	return v
}

// DeepClone produces a value with no shared mutable structure with its
// source: no Ref, no UnsafeRef survive, and every shared container is
// materialized into a fresh, uniquely-owned copy. This is used when
// spawning a `go` thread (cloning the argument window) and when sending
// a broadcast snapshot to `in`-channel observers. See spec §4.2 and
// property 3 in §8.
func (v Value) DeepClone() Value {
	switch v.kind {
	case KindRef:
		panic("value: DeepClone of a bare Ref; caller must deref first")
	case KindUnsafeRef:
		panic("value: DeepClone of an UnsafeRef; it must never be stored")
	case KindText:
		return Text(v.text.load())
	case KindArray:
		items := make([]Value, v.arr.Len())
		for i, it := range v.arr.Slice() {
			items[i] = it.DeepClone()
			_ = i
		}
		return Array(items)
	case KindObject:
		m := make(map[string]Value, v.obj.Len())
		for _, k := range v.obj.Keys() {
			vv, _ := v.obj.Get(k)
			m[k] = vv.DeepClone()
		}
		return Object(m)
	case KindLink:
		c := v.lnk.Clone()
		return Link(&c)
	case KindOption:
		if v.opt == nil {
			return v
		}
		cl := v.opt.DeepClone()
		return Some(cl)
	case KindResult:
		if v.res.Err != nil {
			return ErrValue(&Error{Msg: v.res.Err.Msg, Trace: append([]string(nil), v.res.Err.Trace...)})
		}
		cl := v.res.Ok.DeepClone()
		return Ok(cl)
	default:
		// scalars (Bool, F64, Vec4, Mat4), RustObject (shared by
		// design), Thread, Closure, In are copied by value/handle.
		return v
	}
}

// DeepCloneArgs deep-clones an argument window for a spawned thread or
// an `in`-channel broadcast, per spec §4.2 ("go" spawn) and §3.5 (senders
// per function).
func DeepCloneArgs(args []Value) []Value {
	out := make([]Value, len(args))
	for i, a := range args {
		out[i] = a.DeepClone()
	}
	return out
}
