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

package eval

import (
	"fmt"
	"math"

	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/link"
	"github.com/dyonlang/dyon/value"
)

// lookupItemBase resolves an Item's root name to a stack index, caching
// the result on first resolution so repeat visits of the same AST node
// (e.g. inside a loop body) skip the name-stack scan (spec §9 "stack of
// values vs heap of nodes").
func (rt *Runtime) lookupItemBase(it *ast.Item) (int, error) {
	if off, ok := it.CachedOffset(); ok && off < len(rt.stack) {
		return off, nil
	}
	idx, ok := rt.lookupLocal(it.Name)
	if !ok {
		idx, ok = rt.lookupCurrent(it.Name)
	}
	if !ok {
		return 0, fmt.Errorf("eval: undefined name %q", it.Name)
	}
	// A current-object binding occupies its frame slot as a Ref to the
	// declaring frame's slot; follow it to the referent so reads and
	// writes land there (references are never chained, spec §3.1).
	if rt.stack[idx].IsRef() {
		idx = rt.stack[idx].RefIndex()
	}
	it.SetCachedOffset(idx)
	return idx, nil
}

// tryUnwrap implements the `?` traversal step: Ok/Some values continue
// the chain with their inner value; Err, None, NaN numbers, and false
// booleans short-circuit the whole enclosing function (spec §4.2 item
// lookup step 3). isPropagate reports the latter case, with propagate
// holding the Result/Option to hand back as the function's own return
// value.
func tryUnwrap(v value.Value) (inner value.Value, propagate value.Value, isPropagate bool) {
	switch v.Kind() {
	case value.KindResult:
		res, _ := v.Result()
		if res.Err != nil {
			return value.Value{}, value.ErrValue(res.Err), true
		}
		return *res.Ok, value.Value{}, false
	case value.KindOption:
		inner, has, _ := v.Option()
		if !has {
			return value.Value{}, value.None(), true
		}
		return inner, value.Value{}, false
	case value.KindF64:
		if n, _ := v.AsF64(); math.IsNaN(n) {
			return value.Value{}, value.Err("number is NaN"), true
		}
		return v, value.Value{}, false
	case value.KindBool:
		if b, _ := v.AsBool(); !b {
			return value.Value{}, value.Err("condition is false"), true
		}
		return v, value.Value{}, false
	default:
		return v, value.Value{}, false
	}
}

// augmentTrace appends the current frame to a `?`-propagated error's
// trace (spec §7: "augmented with a trace entry for each ?-traversed
// call frame"). Non-error propagations (None) pass through untouched.
func (rt *Runtime) augmentTrace(propagate value.Value) value.Value {
	res, ok := propagate.Result()
	if !ok || res.Err == nil {
		return propagate
	}
	e := *res.Err
	e.Trace = append(append([]string{}, e.Trace...), fmt.Sprintf("in %s", rt.currentFrame().fnName))
	return value.ErrValue(&e)
}

func scalarToValue(s link.Scalar) value.Value {
	switch s.Tag {
	case link.KindBool:
		return value.Bool(s.B)
	case link.KindF64:
		return value.F64(s.N)
	default:
		return value.Text(s.Text)
	}
}

func valueToScalar(v value.Value) (link.Scalar, error) {
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
		return link.Scalar{}, fmt.Errorf("eval: %s cannot be stored in a link", v.Kind())
	}
}

// indexInto implements `container[index]` for array, object and link
// containers (spec §3.1 "Indexing").
func indexInto(container, idx value.Value) (value.Value, error) {
	switch container.Kind() {
	case value.KindArray:
		arr, _ := container.Array()
		n, ok := idx.AsF64()
		if !ok {
			return value.Value{}, fmt.Errorf("eval: array index must be a number")
		}
		i := int(n)
		if i < 0 || i >= arr.Len() {
			return value.Value{}, fmt.Errorf("eval: array index %d out of range (len %d)", i, arr.Len())
		}
		return arr.At(i), nil
	case value.KindObject:
		obj, _ := container.Object()
		key, ok := idx.AsText()
		if !ok {
			return value.Value{}, fmt.Errorf("eval: object key must be a string")
		}
		v, ok := obj.Get(key)
		if !ok {
			return value.Value{}, fmt.Errorf("eval: object has no field %q", key)
		}
		return v, nil
	case value.KindLink:
		lnk, _ := container.Link()
		n, ok := idx.AsF64()
		if !ok {
			return value.Value{}, fmt.Errorf("eval: link index must be a number")
		}
		i := int(n)
		if i < 0 || i >= lnk.Len() {
			return value.Value{}, fmt.Errorf("eval: link index %d out of range (len %d)", i, lnk.Len())
		}
		return scalarToValue(lnk.At(i)), nil
	default:
		return value.Value{}, fmt.Errorf("eval: cannot index into %s", container.Kind())
	}
}

// fieldOrIndex resolves one ItemStep against cur, returning the next
// value in the traversal.
func (rt *Runtime) fieldOrIndex(cur value.Value, step ast.ItemStep) (value.Value, Flow, error) {
	if step.Ident != "" {
		obj, ok := cur.Object()
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: field %q on non-object %s", step.Ident, cur.Kind())
		}
		v, ok := obj.Get(step.Ident)
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: object has no field %q", step.Ident)
		}
		return v, normalFlow, nil
	}
	idxv, flow, err := rt.evalExpr(step.Index)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	v, err := indexInto(cur, idxv)
	return v, normalFlow, err
}

// evalItemRead resolves an Item to its current value, following every
// step including `?` try-unwraps (spec §3.1 "a.b[c].d?.e").
func (rt *Runtime) evalItemRead(it *ast.Item) (value.Value, Flow, error) {
	idx, err := rt.lookupItemBase(it)
	if err != nil {
		return value.Value{}, normalFlow, err
	}
	cur := rt.stack[idx]
	for _, step := range it.Steps {
		next, flow, err := rt.fieldOrIndex(cur, step)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		cur = next
		if step.Try {
			inner, propagate, isProp := tryUnwrap(cur)
			if isProp {
				rt.pendingReturn = rt.augmentTrace(propagate)
				rt.pendingReturnHasValue = true
				return value.Value{}, returnFlow(), nil
			}
			cur = inner
		}
	}
	return cur, normalFlow, nil
}

// itemRef is a settable view into an Item's final traversal step, used
// by assignment (spec §3.1 "UnsafeRef").
type itemRef struct {
	get func() value.Value
	set func(value.Value)
}

// resolveItemRef walks it's steps building nested get/set closures that
// write back through every intermediate container, since Go map values
// (unlike slice elements) are not addressable: each level's set call
// replaces the whole child container in its parent (spec §9
// "UnsafeRef ... replace with a tagged (stack-index, path) pair").
func (rt *Runtime) resolveItemRef(it *ast.Item) (itemRef, Flow, error) {
	idx, err := rt.lookupItemBase(it)
	if err != nil {
		return itemRef{}, normalFlow, err
	}
	getCur := func() value.Value { return rt.stack[idx] }
	setCur := func(v value.Value) { rt.stack[idx] = v }

	for _, step := range it.Steps {
		curGet, curSet := getCur, setCur
		switch {
		case step.Ident != "":
			key := step.Ident
			getCur = func() value.Value {
				obj, ok := curGet().Object()
				if !ok {
					return value.Value{}
				}
				v, _ := obj.Get(key)
				return v
			}
			setCur = func(v value.Value) {
				obj, ok := curGet().Object()
				if !ok {
					obj = value.NewSharedObject(nil)
				}
				curSet(value.ObjectFrom(obj.Set(key, v)))
			}
		case step.Index != nil:
			idxv, flow, ierr := rt.evalExpr(step.Index)
			if ierr != nil || !flow.isNormal() {
				return itemRef{}, flow, ierr
			}
			getCur = func() value.Value {
				v, _ := indexInto(curGet(), idxv)
				return v
			}
			setCur = func(v value.Value) {
				container := curGet()
				switch container.Kind() {
				case value.KindArray:
					arr, _ := container.Array()
					n, _ := idxv.AsF64()
					u := arr.Unique()
					u.Slice()[int(n)] = v
					curSet(value.ArrayFrom(u))
				case value.KindObject:
					obj, _ := container.Object()
					key, _ := idxv.AsText()
					curSet(value.ObjectFrom(obj.Set(key, v)))
				}
			}
		}

		// `?` suffixes the step just traversed: unwrap what that step
		// resolved to, not its container.
		if step.Try {
			inner, propagate, isProp := tryUnwrap(getCur())
			if isProp {
				rt.pendingReturn = rt.augmentTrace(propagate)
				rt.pendingReturnHasValue = true
				return itemRef{}, returnFlow(), nil
			}
			prevGet, prevSet := getCur, setCur
			getCur = func() value.Value { return inner }
			setCur = func(v value.Value) {
				if prevGet().Kind() == value.KindResult {
					prevSet(value.Ok(v))
				} else {
					prevSet(value.Some(v))
				}
			}
		}
	}
	return itemRef{get: getCur, set: setCur}, normalFlow, nil
}
