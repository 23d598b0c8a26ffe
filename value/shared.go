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

import (
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// sharedText, SharedArray and SharedObject are reference-counted
// copy-on-write buffers. The refcount idiom (atomic int32, unique()
// check before in-place mutation) follows ion/blockfmt/multiwriter.go's
// writer refcounting rather than Go's native GC-backed sharing, because
// the spec requires an explicit "make unique before mutate" step that
// is observable through UnsafeRef aliasing rules.
type sharedText struct {
	refcount int32
	s        string
}

func newSharedText(s string) *sharedText {
	return &sharedText{refcount: 1, s: s}
}

func (t *sharedText) load() string { return t.s }

func (t *sharedText) retain() *sharedText {
	atomic.AddInt32(&t.refcount, 1)
	return t
}

func (t *sharedText) unique() bool { return atomic.LoadInt32(&t.refcount) == 1 }

// makeUnique returns a *sharedText safe to mutate in place, cloning the
// underlying string holder if it is shared.
func (t *sharedText) makeUnique() *sharedText {
	if t.unique() {
		return t
	}
	atomic.AddInt32(&t.refcount, -1)
	return newSharedText(t.s)
}

// SharedArray is a reference-counted, copy-on-write vector of Values.
type SharedArray struct {
	refcount int32
	items    []Value
}

func NewSharedArray(items []Value) *SharedArray {
	return &SharedArray{refcount: 1, items: items}
}

// ArrayFrom wraps an already-built SharedArray (e.g. the result of
// Push/Unique) without another copy, for callers that mutate an array
// through an UnsafeRef and need to write the updated handle back.
func ArrayFrom(a *SharedArray) Value { return Value{kind: KindArray, arr: a} }

func (a *SharedArray) Len() int { return len(a.items) }

func (a *SharedArray) At(i int) Value { return a.items[i] }

func (a *SharedArray) Slice() []Value { return a.items }

func (a *SharedArray) Retain() *SharedArray {
	atomic.AddInt32(&a.refcount, 1)
	return a
}

func (a *SharedArray) unique() bool { return atomic.LoadInt32(&a.refcount) == 1 }

// Unique returns an array safe to mutate in place, copying the backing
// slice if other Values still reference this SharedArray.
func (a *SharedArray) Unique() *SharedArray {
	if a.unique() {
		return a
	}
	atomic.AddInt32(&a.refcount, -1)
	return NewSharedArray(slices.Clone(a.items))
}

func (a *SharedArray) Push(v Value) *SharedArray {
	u := a.Unique()
	u.items = append(u.items, v)
	return u
}

func (a *SharedArray) Pop() (Value, *SharedArray, bool) {
	if len(a.items) == 0 {
		return Value{}, a, false
	}
	u := a.Unique()
	last := u.items[len(u.items)-1]
	u.items = u.items[:len(u.items)-1]
	return last, u, true
}

// SharedObject is a reference-counted, copy-on-write string-keyed map.
// Insertion order is explicitly not preserved (spec §3.1).
type SharedObject struct {
	refcount int32
	m        map[string]Value
}

func NewSharedObject(m map[string]Value) *SharedObject {
	if m == nil {
		m = map[string]Value{}
	}
	return &SharedObject{refcount: 1, m: m}
}

// ObjectFrom wraps an already-built SharedObject (e.g. the result of
// Set/Delete) without another copy, for callers that mutate an object
// through an UnsafeRef and need to write the updated handle back.
func ObjectFrom(o *SharedObject) Value { return Value{kind: KindObject, obj: o} }

func (o *SharedObject) Len() int { return len(o.m) }

func (o *SharedObject) Get(key string) (Value, bool) {
	v, ok := o.m[key]
	return v, ok
}

func (o *SharedObject) Keys() []string {
	ks := make([]string, 0, len(o.m))
	for k := range o.m {
		ks = append(ks, k)
	}
	return ks
}

func (o *SharedObject) Retain() *SharedObject {
	atomic.AddInt32(&o.refcount, 1)
	return o
}

func (o *SharedObject) unique() bool { return atomic.LoadInt32(&o.refcount) == 1 }

func (o *SharedObject) Unique() *SharedObject {
	if o.unique() {
		return o
	}
	atomic.AddInt32(&o.refcount, -1)
	cp := make(map[string]Value, len(o.m))
	for k, v := range o.m {
		cp[k] = v
	}
	return NewSharedObject(cp)
}

func (o *SharedObject) Set(key string, v Value) *SharedObject {
	u := o.Unique()
	u.m[key] = v
	return u
}

func (o *SharedObject) Delete(key string) *SharedObject {
	u := o.Unique()
	delete(u.m, key)
	return u
}
