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
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dyonlang/dyon/link"
	"github.com/dyonlang/dyon/value"
)

// Stdout is implemented by runtimes that want `print`/`println` to write
// somewhere observable; HostRuntime implementations that embed an
// io.Writer satisfy it automatically.
type Stdout interface {
	Stdout() io.Writer
}

// Randomizer is implemented by runtimes that back the `random()`
// primitive with their own entropy-seeded generator (spec §4.2 "RNG").
type Randomizer interface {
	RandFloat64() float64
}

// Backtracer is implemented by runtimes that can report their current
// call stack, backing the `backtrace` prelude entry.
type Backtracer interface {
	Backtrace() []string
}

// Caller is implemented by runtimes that can invoke a loaded function
// by bare name with pre-evaluated argument values, backing `call` and
// `call_ret` (spec §4.3: error formatting names a custom source when a
// call was injected by call_ret).
type Caller interface {
	CallNamed(name string, args []value.Value, wantReturn bool) (value.Value, error)
}

// LoadPrelude registers the subset of original_source/src/dyon_std/mod.rs
// that is pure-core (no file/HTTP I/O): arithmetic, array/object/link
// mutation, Option/Result helpers, secrets, and the thread/channel
// primitives that only need value.Thread/value.In's own synchronization
// (spec SPEC_FULL.md §3). I/O-flavored entries (load, load_data,
// save_data, read_line) are registered as stubs that return
// Result(Err("unsupported: <name> requires host I/O")), since actual
// file/HTTP access is out of spec scope (§1).
func LoadPrelude(m *Module) {
	reg := func(name string, mut []bool, kind ExternalKind, fn HostFunc) {
		m.AddExternal(&ExternalFn{Name: name, Namespace: "", Kind: kind, MutPattern: mut, Call: fn})
	}
	ret := func(n int) []bool { return make([]bool, n) }
	mutFirst := func(n int) []bool {
		p := make([]bool, n)
		if n > 0 {
			p[0] = true
		}
		return p
	}

	reg("sqrt", ret(1), ExtReturn, unary(math.Sqrt))
	reg("sin", ret(1), ExtReturn, unary(math.Sin))
	reg("cos", ret(1), ExtReturn, unary(math.Cos))
	reg("tan", ret(1), ExtReturn, unary(math.Tan))
	reg("ln", ret(1), ExtReturn, unary(math.Log))
	reg("log2", ret(1), ExtReturn, unary(math.Log2))
	reg("log10", ret(1), ExtReturn, unary(math.Log10))
	reg("round", ret(1), ExtReturn, unary(math.Round))
	reg("abs", ret(1), ExtReturn, unary(math.Abs))
	reg("min", ret(2), ExtReturn, binaryF64(math.Min))
	reg("max", ret(2), ExtReturn, binaryF64(math.Max))

	reg("len", ret(1), ExtReturn, fnLen)
	reg("push", mutFirst(2), ExtVoid, fnPush)
	reg("pop", mutFirst(1), ExtReturn, fnPop)
	reg("insert", mutFirst(3), ExtVoid, fnInsert)
	reg("remove", mutFirst(2), ExtReturn, fnRemove)
	reg("trim", ret(1), ExtReturn, fnTrim)
	reg("clone", ret(1), ExtReturn, fnClone)
	reg("typeof", ret(1), ExtReturn, fnTypeof)

	reg("some", ret(1), ExtReturn, fnSome)
	reg("none", ret(0), ExtReturn, fnNone)
	reg("ok", ret(1), ExtReturn, fnOk)
	reg("err", ret(1), ExtReturn, fnErr)
	reg("unwrap", ret(1), ExtReturn, fnUnwrap)
	reg("unwrap_err", ret(1), ExtReturn, fnUnwrapErr)
	reg("is_err", ret(1), ExtReturn, fnIsErr)
	reg("is_ok", ret(1), ExtReturn, fnIsOk)
	reg("is_some", ret(1), ExtReturn, fnIsSome)
	reg("is_none", ret(1), ExtReturn, fnIsNone)

	reg("why", ret(1), ExtReturn, fnWhy)
	reg("where", ret(1), ExtReturn, fnWhere)
	reg("explain_why", ret(2), ExtReturn, fnExplainWhy)
	reg("explain_where", ret(2), ExtReturn, fnExplainWhere)

	reg("random", ret(0), ExtReturn, fnRandom)
	reg("join", ret(1), ExtReturn, fnJoin)
	reg("sleep", ret(1), ExtVoid, fnSleep)
	reg("next", ret(1), ExtReturn, fnNext)
	reg("wait_next", ret(1), ExtReturn, fnWaitNext)

	reg("print", ret(1), ExtVoid, fnPrint)
	reg("println", ret(1), ExtVoid, fnPrintln)
	reg("debug", ret(1), ExtVoid, fnPrintln)
	reg("str", ret(1), ExtReturn, fnStr)
	reg("backtrace", ret(0), ExtReturn, fnBacktrace)
	reg("call", ret(2), ExtVoid, fnCall)
	reg("call_ret", ret(2), ExtReturn, fnCallRet)
	reg("json_from_meta_data", ret(1), ExtReturn, fnJSONFromMeta)
	reg("meta_data_from_json", ret(1), ExtReturn, fnMetaFromJSON)
	reg("functions", ret(0), ExtReturn, func(rt HostRuntime) error {
		rt.PushResult(m.functionsValue())
		return nil
	})

	m.AddExternal(&ExternalFn{Name: "&&", Kind: ExtLazy, MutPattern: ret(2), Call: fnAnd,
		Lazy: []LazyInvariant{{ArgIndex: 0, On: false, Result: false}}})
	m.AddExternal(&ExternalFn{Name: "||", Kind: ExtLazy, MutPattern: ret(2), Call: fnOr,
		Lazy: []LazyInvariant{{ArgIndex: 0, On: true, Result: true}}})

	ioStub := func(name string, argc int) {
		reg(name, ret(argc), ExtReturn, func(rt HostRuntime) error {
			for i := 0; i < argc; i++ {
				rt.PopArg()
			}
			rt.PushResult(value.Err(fmt.Sprintf("unsupported: %s requires host I/O", name)))
			return nil
		})
	}
	ioStub("read_line", 0)
	ioStub("load", 1)
	ioStub("load_data", 1)
	ioStub("save_data", 2)
}

func unary(f func(float64) float64) HostFunc {
	return func(rt HostRuntime) error {
		x, ok := rt.PopArg().AsF64()
		if !ok {
			rt.SetArgError(0)
			return fmt.Errorf("expected f64 argument")
		}
		rt.PushResult(value.F64(f(x)))
		return nil
	}
}

func binaryF64(f func(a, b float64) float64) HostFunc {
	return func(rt HostRuntime) error {
		b, ok1 := rt.PopArg().AsF64()
		a, ok2 := rt.PopArg().AsF64()
		if !ok1 || !ok2 {
			rt.SetArgError(0)
			return fmt.Errorf("expected f64 arguments")
		}
		rt.PushResult(value.F64(f(a, b)))
		return nil
	}
}

func fnLen(rt HostRuntime) error {
	v := rt.PopArg()
	switch v.Kind() {
	case value.KindArray:
		arr, _ := v.Array()
		rt.PushResult(value.F64(float64(arr.Len())))
	case value.KindText:
		s, _ := v.AsText()
		rt.PushResult(value.F64(float64(len(s))))
	case value.KindLink:
		l, _ := v.Link()
		rt.PushResult(value.F64(float64(l.Len())))
	case value.KindObject:
		o, _ := v.Object()
		rt.PushResult(value.F64(float64(o.Len())))
	default:
		rt.SetArgError(0)
		return fmt.Errorf("len: unsupported argument kind %s", v.Kind())
	}
	return nil
}

// mutTarget dereferences a `mut` parameter, which the evaluator passes as
// an UnsafeRef pointing at the caller's slot (spec §4.1's mutability
// tracking is what makes this aliasing sound). Writing through ptr is
// how push/pop/insert/remove feed their result back into the caller.
func mutTarget(rt HostRuntime) (*value.Value, error) {
	arg := rt.PopArg()
	ptr, ok := arg.UnsafeTarget()
	if !ok {
		return nil, fmt.Errorf("expected a mut argument")
	}
	return ptr, nil
}

func fnPush(rt HostRuntime) error {
	item := rt.PopArg()
	ptr, err := mutTarget(rt)
	if err != nil {
		rt.SetArgError(0)
		return err
	}
	switch ptr.Kind() {
	case value.KindArray:
		arr, _ := ptr.Array()
		*ptr = value.ArrayFrom(arr.Push(item))
	case value.KindLink:
		l, _ := ptr.Link()
		sc, err := toScalar(item)
		if err != nil {
			rt.SetArgError(1)
			return err
		}
		cl := l.Clone()
		cl.Push(sc)
		*ptr = value.Link(&cl)
	case value.KindText:
		s, _ := ptr.AsText()
		a, ok := item.AsText()
		if !ok {
			rt.SetArgError(1)
			return fmt.Errorf("push: expected str")
		}
		*ptr = value.Text(s + a)
	default:
		rt.SetArgError(0)
		return fmt.Errorf("push: unsupported target kind %s", ptr.Kind())
	}
	return nil
}

func fnPop(rt HostRuntime) error {
	ptr, err := mutTarget(rt)
	if err != nil {
		rt.SetArgError(0)
		return err
	}
	arr, ok := ptr.Array()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("pop: expected array")
	}
	v, rest, ok := arr.Pop()
	if !ok {
		rt.PushResult(value.None())
		return nil
	}
	*ptr = value.ArrayFrom(rest)
	rt.PushResult(value.Some(v))
	return nil
}

func fnInsert(rt HostRuntime) error {
	val := rt.PopArg()
	key := rt.PopArg()
	ptr, err := mutTarget(rt)
	if err != nil {
		rt.SetArgError(0)
		return err
	}
	obj, ok := ptr.Object()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("insert: expected object")
	}
	k, ok := key.AsText()
	if !ok {
		rt.SetArgError(1)
		return fmt.Errorf("insert: expected str key")
	}
	*ptr = value.ObjectFrom(obj.Set(k, val))
	return nil
}

func fnRemove(rt HostRuntime) error {
	key := rt.PopArg()
	ptr, err := mutTarget(rt)
	if err != nil {
		rt.SetArgError(0)
		return err
	}
	obj, ok := ptr.Object()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("remove: expected object")
	}
	k, ok := key.AsText()
	if !ok {
		rt.SetArgError(1)
		return fmt.Errorf("remove: expected str key")
	}
	v, had := obj.Get(k)
	*ptr = value.ObjectFrom(obj.Delete(k))
	if !had {
		rt.PushResult(value.None())
		return nil
	}
	rt.PushResult(value.Some(v))
	return nil
}

func fnTrim(rt HostRuntime) error {
	s, ok := rt.PopArg().AsText()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("trim: expected str")
	}
	rt.PushResult(value.Text(strings.TrimSpace(s)))
	return nil
}

func fnClone(rt HostRuntime) error {
	rt.PushResult(rt.PopArg().DeepClone())
	return nil
}

func fnTypeof(rt HostRuntime) error {
	rt.PushResult(value.Text(rt.PopArg().Kind().String()))
	return nil
}

func fnSome(rt HostRuntime) error {
	rt.PushResult(value.Some(rt.PopArg()))
	return nil
}

func fnNone(rt HostRuntime) error {
	rt.PushResult(value.None())
	return nil
}

func fnOk(rt HostRuntime) error {
	rt.PushResult(value.Ok(rt.PopArg()))
	return nil
}

func fnErr(rt HostRuntime) error {
	msg, ok := rt.PopArg().AsText()
	if !ok {
		msg = "error"
	}
	rt.PushResult(value.Err(msg))
	return nil
}

func fnUnwrap(rt HostRuntime) error {
	v := rt.PopArg()
	switch v.Kind() {
	case value.KindOption:
		inner, some, _ := v.Option()
		if !some {
			rt.SetArgError(0)
			return fmt.Errorf("unwrap: called on none()")
		}
		rt.PushResult(inner)
	case value.KindResult:
		res, _ := v.Result()
		if res.Err != nil {
			rt.SetArgError(0)
			return fmt.Errorf("unwrap: called on err(%s)", res.Err.Msg)
		}
		rt.PushResult(*res.Ok)
	default:
		rt.SetArgError(0)
		return fmt.Errorf("unwrap: expected option or result")
	}
	return nil
}

func fnUnwrapErr(rt HostRuntime) error {
	v := rt.PopArg()
	res, ok := v.Result()
	if !ok || res.Err == nil {
		rt.SetArgError(0)
		return fmt.Errorf("unwrap_err: called on a non-error result")
	}
	rt.PushResult(value.Text(res.Err.Msg))
	return nil
}

func fnIsErr(rt HostRuntime) error {
	res, ok := rt.PopArg().Result()
	rt.PushResult(value.Bool(ok && res.Err != nil))
	return nil
}

func fnIsOk(rt HostRuntime) error {
	res, ok := rt.PopArg().Result()
	rt.PushResult(value.Bool(ok && res.Err == nil))
	return nil
}

func fnIsSome(rt HostRuntime) error {
	_, some, ok := rt.PopArg().Option()
	rt.PushResult(value.Bool(ok && some))
	return nil
}

func fnIsNone(rt HostRuntime) error {
	_, some, ok := rt.PopArg().Option()
	rt.PushResult(value.Bool(ok && !some))
	return nil
}

func fnWhy(rt HostRuntime) error {
	v, ok := value.Why(rt.PopArg())
	if !ok {
		rt.PushResult(value.None())
		return nil
	}
	rt.PushResult(value.Some(v))
	return nil
}

func fnWhere(rt HostRuntime) error {
	v, ok := value.Where(rt.PopArg())
	if !ok {
		rt.PushResult(value.None())
		return nil
	}
	rt.PushResult(value.Some(v))
	return nil
}

func fnExplainWhy(rt HostRuntime) error {
	witness := rt.PopArg()
	b := rt.PopArg()
	rt.PushResult(value.ExplainWhy(b, witness))
	return nil
}

func fnExplainWhere(rt HostRuntime) error {
	witness := rt.PopArg()
	n := rt.PopArg()
	rt.PushResult(value.ExplainWhere(n, witness))
	return nil
}

func fnRandom(rt HostRuntime) error {
	r, ok := rt.(Randomizer)
	if !ok {
		rt.PushResult(value.F64(0))
		return nil
	}
	rt.PushResult(value.F64(r.RandFloat64()))
	return nil
}

func fnJoin(rt HostRuntime) error {
	v := rt.PopArg()
	th, ok := v.Thread()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("join: expected thread")
	}
	res, err := th.Join()
	if err != nil {
		rt.PushResult(value.Err(fmt.Sprintf("Thread %s did not exit successfully", th.ID)))
		return nil
	}
	rt.PushResult(value.Ok(res))
	return nil
}

func fnSleep(rt HostRuntime) error {
	secs, ok := rt.PopArg().AsF64()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("sleep: expected f64 seconds")
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	return nil
}

func fnNext(rt HostRuntime) error {
	v := rt.PopArg()
	in, ok := v.In()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("next: expected in")
	}
	rt.PushResult(in.Next())
	return nil
}

func fnWaitNext(rt HostRuntime) error {
	v := rt.PopArg()
	in, ok := v.In()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("wait_next: expected in")
	}
	rt.PushResult(in.WaitNext())
	return nil
}

func fnPrint(rt HostRuntime) error {
	return writeOut(rt, rt.PopArg(), false)
}

func fnPrintln(rt HostRuntime) error {
	return writeOut(rt, rt.PopArg(), true)
}

func writeOut(rt HostRuntime, v value.Value, newline bool) error {
	w, ok := rt.(Stdout)
	if !ok {
		return nil
	}
	s := v.String()
	if newline {
		s += "\n"
	}
	_, err := io.WriteString(w.Stdout(), s)
	return err
}

func fnStr(rt HostRuntime) error {
	v := rt.PopArg()
	if s, ok := v.AsText(); ok {
		rt.PushResult(value.Text(s))
		return nil
	}
	rt.PushResult(value.Text(v.String()))
	return nil
}

func fnBacktrace(rt HostRuntime) error {
	b, ok := rt.(Backtracer)
	if !ok {
		rt.PushResult(value.Array(nil))
		return nil
	}
	frames := b.Backtrace()
	items := make([]value.Value, len(frames))
	for i, f := range frames {
		items[i] = value.Text(f)
	}
	rt.PushResult(value.Array(items))
	return nil
}

// popCallTarget pops and validates the (name, argument-array) pair
// `call` and `call_ret` share.
func popCallTarget(rt HostRuntime) (string, []value.Value, error) {
	argsv := rt.PopArg()
	namev := rt.PopArg()
	name, ok := namev.AsText()
	if !ok {
		rt.SetArgError(0)
		return "", nil, fmt.Errorf("call: expected function name as str")
	}
	arr, ok := argsv.Array()
	if !ok {
		rt.SetArgError(1)
		return "", nil, fmt.Errorf("call: expected argument array")
	}
	args := make([]value.Value, arr.Len())
	for i := range args {
		args[i] = arr.At(i)
	}
	return name, args, nil
}

func fnCall(rt HostRuntime) error {
	name, args, err := popCallTarget(rt)
	if err != nil {
		return err
	}
	c, ok := rt.(Caller)
	if !ok {
		return fmt.Errorf("call: runtime cannot invoke loaded functions")
	}
	_, err = c.CallNamed(name, args, false)
	return err
}

func fnCallRet(rt HostRuntime) error {
	name, args, err := popCallTarget(rt)
	if err != nil {
		return err
	}
	c, ok := rt.(Caller)
	if !ok {
		return fmt.Errorf("call_ret: runtime cannot invoke loaded functions")
	}
	res, err := c.CallNamed(name, args, true)
	if err != nil {
		return err
	}
	rt.PushResult(res)
	return nil
}

func fnJSONFromMeta(rt HostRuntime) error {
	events, err := MetaFromValue(rt.PopArg())
	if err != nil {
		rt.SetArgError(0)
		return err
	}
	out, err := MetaToJSON(events)
	if err != nil {
		rt.SetArgError(0)
		return err
	}
	rt.PushResult(value.Text(out))
	return nil
}

func fnMetaFromJSON(rt HostRuntime) error {
	s, ok := rt.PopArg().AsText()
	if !ok {
		rt.SetArgError(0)
		return fmt.Errorf("meta_data_from_json: expected str")
	}
	events, err := MetaFromJSON([]byte(s))
	if err != nil {
		rt.PushResult(value.Err(err.Error()))
		return nil
	}
	rt.PushResult(value.Ok(MetaValue(events)))
	return nil
}

// functionsValue renders the registry for the `functions` prelude
// entry: one object per function, loaded definitions first, each with
// its name, argument descriptions, and whether it returns a value.
func (m *Module) functionsValue() value.Value {
	lifetimeOf := func(lt string) value.Value {
		if lt == "" {
			return value.None()
		}
		return value.Some(value.Text(lt))
	}
	items := make([]value.Value, 0, len(m.fns)+len(m.externs))
	for _, fn := range m.fns {
		args := make([]value.Value, len(fn.Args))
		for i, a := range fn.Args {
			args[i] = value.Object(map[string]value.Value{
				"name":     value.Text(a.Name),
				"mut":      value.Bool(a.Mut),
				"lifetime": lifetimeOf(a.Lifetime),
			})
		}
		items = append(items, value.Object(map[string]value.Value{
			"name":      value.Text(fn.Name),
			"kind":      value.Text("loaded"),
			"arguments": value.Array(args),
			"returns":   value.Bool(fn.Returns),
		}))
	}
	for _, ext := range m.externs {
		args := make([]value.Value, len(ext.MutPattern))
		for i, mut := range ext.MutPattern {
			args[i] = value.Object(map[string]value.Value{
				"name":     value.Text(fmt.Sprintf("arg%d", i)),
				"mut":      value.Bool(mut),
				"lifetime": value.None(),
			})
		}
		items = append(items, value.Object(map[string]value.Value{
			"name":      value.Text(ext.Name),
			"kind":      value.Text("external"),
			"arguments": value.Array(args),
			"returns":   value.Bool(ext.Kind != ExtVoid),
		}))
	}
	return value.Array(items)
}

func fnAnd(rt HostRuntime) error {
	bv := rt.PopArg()
	av := rt.PopArg()
	b, _ := bv.AsBool()
	a, _ := av.AsBool()
	rt.PushResult(value.Bool(a && b).WithSecret(value.MergeSecrets(av.Secret(), bv.Secret())))
	return nil
}

func fnOr(rt HostRuntime) error {
	bv := rt.PopArg()
	av := rt.PopArg()
	b, _ := bv.AsBool()
	a, _ := av.AsBool()
	rt.PushResult(value.Bool(a || b).WithSecret(value.MergeSecrets(av.Secret(), bv.Secret())))
	return nil
}

func toScalar(v value.Value) (link.Scalar, error) {
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
		return link.Scalar{}, fmt.Errorf("link: unsupported value kind %s", v.Kind())
	}
}
