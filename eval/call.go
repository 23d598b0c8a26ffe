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

	"github.com/dyonlang/dyon/ast"
	"github.com/dyonlang/dyon/module"
	"github.com/dyonlang/dyon/value"
)

// evalCall resolves a Call site against the module's function tables
// and dispatches to the matching calling convention (spec §4.3
// "Function resolution"). A loaded-function resolution is cached on
// the call site as a module-relative offset from the caller (spec
// §4.2 step 1), so repeat visits of the same AST node (a call inside a
// loop or a recursive function) skip the name-mangling map lookup in
// FindFunction, the same way lookupItemBase caches a local's stack
// slot.
func (rt *Runtime) evalCall(call *ast.Call) (value.Value, Flow, error) {
	callerIdx := rt.currentFrame().fnIndex
	if rel, ok := call.CachedFnIndex(); ok {
		if fn, idx, err := rt.Mod.ResolveRelative(callerIdx, rel); err == nil {
			return rt.callLoaded(fn, idx, call)
		}
		// Stale cache (e.g. a closure invoked with a different
		// caller baseline): fall through to a fresh resolution.
	}

	mut := make([]bool, len(call.Args))
	for i, a := range call.Args {
		mut[i] = a.Mut
	}
	ref := rt.Mod.FindFunction(call.Name, mut)
	switch ref.Kind {
	case module.FnLoaded:
		fn := rt.Mod.Fn(ref.Index)
		call.SetCachedFnIndex(module.RelativeOffset(callerIdx, ref.Index))
		return rt.callLoaded(fn, ref.Index, call)
	case module.FnExternalLazy:
		return rt.evalExternalLazy(ref, call)
	case module.FnExternalVoid, module.FnExternalReturn, module.FnExternalBinOp, module.FnExternalUnOp:
		ext := rt.Mod.External(ref.Index)
		return rt.evalExternalCall(ext, call)
	default:
		return value.Value{}, normalFlow, fmt.Errorf("eval: unresolved function %q", call.Name)
	}
}

// argPlan is one call argument fully evaluated and ready to bind: a
// plain value, a direct alias into an existing stack slot (a bare-name
// mut argument), or a snapshot of a path that will need writing back
// after the call (a mut argument like `mut a.b`, where Go's map values
// are not addressable so true slot-level aliasing isn't expressible;
// see resolveItemRef's doc comment).
type argPlan struct {
	isAliasIdx bool
	aliasIdx   int
	isPath     bool
	ref        itemRef
	val        value.Value
}

// planCallArgs evaluates every call argument exactly once, left to
// right, before any frame is pushed or any host function runs. This
// ordering matters: taking the address of a stack slot for a mut
// argument is only safe once no further evaluation can grow (and
// thereby reallocate) the value stack.
func (rt *Runtime) planCallArgs(args []ast.CallArg) ([]argPlan, Flow, error) {
	plans := make([]argPlan, len(args))
	for i, a := range args {
		if a.Mut {
			it, ok := a.Value.(*ast.Item)
			if !ok {
				return nil, normalFlow, fmt.Errorf("eval: mut argument must be a name or path")
			}
			if len(it.Steps) == 0 {
				idx, err := rt.lookupItemBase(it)
				if err != nil {
					return nil, normalFlow, err
				}
				plans[i] = argPlan{isAliasIdx: true, aliasIdx: idx}
				continue
			}
			ref, flow, err := rt.resolveItemRef(it)
			if err != nil || !flow.isNormal() {
				return nil, flow, err
			}
			plans[i] = argPlan{isPath: true, ref: ref, val: ref.get()}
			continue
		}
		v, flow, err := rt.evalExpr(a.Value)
		if err != nil || !flow.isNormal() {
			return nil, flow, err
		}
		plans[i] = argPlan{val: v}
	}
	return plans, normalFlow, nil
}

func (p argPlan) snapshot(rt *Runtime) value.Value {
	if p.isAliasIdx {
		return rt.stack[p.aliasIdx]
	}
	return p.val
}

// resolveCurrents looks up the callee's declared current-object
// dependencies on the caller's current-stack, top down, returning the
// referent slot index for each (spec §4.2 call semantics step 3).
// Resolution happens before the callee's frame is pushed, so every
// index points below the new frame's base; a slot that is itself a
// current-object Ref binding is followed to its referent so Refs are
// never chained (spec §3.1).
func (rt *Runtime) resolveCurrents(fnName string, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	idxs := make([]int, len(names))
	for i, name := range names {
		idx, ok := rt.lookupCurrent(name)
		if !ok {
			return nil, fmt.Errorf("eval: %s: could not find current object %q", fnName, name)
		}
		if rt.stack[idx].IsRef() {
			idx = rt.stack[idx].RefIndex()
		}
		idxs[i] = idx
	}
	return idxs, nil
}

// bindCurrents pushes a Ref to each resolved current slot onto the new
// frame, naming it both as a local (for the callee's body) and as a
// current (for the callee's own nested calls).
func (rt *Runtime) bindCurrents(names []string, idxs []int) {
	for i, name := range names {
		slot := rt.push(value.Ref(idxs[i]))
		rt.declareLocal(name, slot)
		rt.declareCurrent(name, slot)
	}
}

// callLoaded invokes a script-defined function, broadcasting to any
// `in`-registered receivers first (spec §4.2 "Senders").
func (rt *Runtime) callLoaded(fn *ast.Fn, fnIndex int, call *ast.Call) (value.Value, Flow, error) {
	plans, flow, err := rt.planCallArgs(call.Args)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	currents, err := rt.resolveCurrents(fn.Name, fn.Currents)
	if err != nil {
		return value.Value{}, normalFlow, err
	}

	senders := rt.Mod.Senders(fnIndex)
	if senders.HasReceivers() {
		snapshot := make([]value.Value, len(plans))
		for i, p := range plans {
			snapshot[i] = p.snapshot(rt)
		}
		senders.Broadcast(value.Array(value.DeepCloneArgs(snapshot)))
	}

	popFrame := rt.pushFrame(fn.Name, fnIndex)
	argIdx := make([]int, len(fn.Args))
	for i := range fn.Args {
		a := fn.Args[i]
		p := plans[i]
		idx := p.aliasIdx
		if !p.isAliasIdx {
			idx = rt.push(p.val)
		}
		argIdx[i] = idx
		rt.declareLocal(a.Name, idx)
		if a.Current {
			rt.declareCurrent(a.Name, idx)
		}
	}
	rt.bindCurrents(fn.Currents, currents)

	_, _, bodyFlow, bodyErr := rt.evalBlock(fn.Body)

	for i := range fn.Args {
		if plans[i].isPath {
			plans[i].ref.set(rt.stack[argIdx[i]])
		}
	}
	var slotErr error
	if bodyErr == nil {
		slotErr = rt.checkReturnSlot(fn.Name, fn.Returns, bodyFlow)
	}
	popFrame()

	if bodyErr != nil {
		return value.Value{}, bodyFlow, bodyErr
	}
	if slotErr != nil {
		return value.Value{}, normalFlow, slotErr
	}
	switch bodyFlow.Kind {
	case flowReturn:
		return rt.pendingReturn, normalFlow, nil
	case flowNormal:
		return value.Value{}, normalFlow, nil
	default:
		return value.Value{}, normalFlow, fmt.Errorf("eval: break/continue escaped function %q", fn.Name)
	}
}

// evalExternalCall builds the pending-argument buffer for a host
// function and invokes it through the HostRuntime contract (spec §6).
func (rt *Runtime) evalExternalCall(ext *module.ExternalFn, call *ast.Call) (value.Value, Flow, error) {
	plans, flow, err := rt.planCallArgs(call.Args)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}

	rt.pendingArgs = rt.pendingArgs[:0]
	var writebacks []func()
	for _, p := range plans {
		switch {
		case p.isAliasIdx:
			rt.pendingArgs = append(rt.pendingArgs, value.UnsafeRef(&rt.stack[p.aliasIdx]))
		case p.isPath:
			slot := p.val
			rt.pendingArgs = append(rt.pendingArgs, value.UnsafeRef(&slot))
			ref := p.ref
			writebacks = append(writebacks, func() { ref.set(slot) })
		default:
			rt.pendingArgs = append(rt.pendingArgs, p.val)
		}
	}

	rt.hasResult = false
	rt.hasArgErr = false
	callErr := ext.Call(rt)
	for _, wb := range writebacks {
		wb()
	}
	if callErr != nil {
		if rt.hasArgErr {
			return value.Value{}, normalFlow, fmt.Errorf("eval: %s: argument %d: %w", ext.Name, rt.argErr, callErr)
		}
		return value.Value{}, normalFlow, fmt.Errorf("eval: %s: %w", ext.Name, callErr)
	}
	if rt.hasResult {
		return rt.result, normalFlow, nil
	}
	return value.Value{}, normalFlow, nil
}

// evalExternalLazy evaluates a Lazy external function's arguments one
// at a time, short-circuiting as soon as one matches a LazyInvariant
// (spec §3.5 "&&"/"||").
func (rt *Runtime) evalExternalLazy(ref module.FnRef, call *ast.Call) (value.Value, Flow, error) {
	ext := rt.Mod.External(ref.Index)
	vals := make([]value.Value, len(call.Args))
	for i, a := range call.Args {
		v, flow, err := rt.evalExpr(a.Value)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		vals[i] = v
		for _, lz := range ref.Lazy {
			if lz.ArgIndex != i {
				continue
			}
			if b, ok := v.AsBool(); ok && b == lz.On {
				return value.Bool(lz.Result), normalFlow, nil
			}
		}
	}
	rt.pendingArgs = append(rt.pendingArgs[:0], vals...)
	rt.hasResult = false
	rt.hasArgErr = false
	if err := ext.Call(rt); err != nil {
		return value.Value{}, normalFlow, fmt.Errorf("eval: %s: %w", ext.Name, err)
	}
	if rt.hasResult {
		return rt.result, normalFlow, nil
	}
	return value.Value{}, normalFlow, nil
}

// Backtrace implements module.Backtracer for the `backtrace` prelude
// entry.
func (rt *Runtime) Backtrace() []string { return rt.trace() }

// CallNamed implements module.Caller: it invokes a loaded function by
// bare name with pre-evaluated argument values, backing the `call` and
// `call_ret` prelude entries. It runs re-entrantly from inside a host
// function, so the external-call scratch state (pending arguments,
// result cell, pending return) is saved and restored around the nested
// body.
func (rt *Runtime) CallNamed(name string, args []value.Value, wantReturn bool) (value.Value, error) {
	idx, ok := rt.Mod.FindAnyLoaded(name)
	if !ok {
		return value.Value{}, fmt.Errorf("eval: call: unknown function %q", name)
	}
	fn := rt.Mod.Fn(idx)
	if len(args) != len(fn.Args) {
		return value.Value{}, fmt.Errorf("eval: call: %s takes %d arguments, got %d", name, len(fn.Args), len(args))
	}
	if wantReturn && !fn.Returns {
		return value.Value{}, fmt.Errorf("eval: call_ret: %s does not return a value", name)
	}
	currents, err := rt.resolveCurrents(fn.Name, fn.Currents)
	if err != nil {
		return value.Value{}, err
	}

	savedArgs := rt.pendingArgs
	savedResult, savedHasResult := rt.result, rt.hasResult
	savedReturn, savedHasReturn := rt.pendingReturn, rt.pendingReturnHasValue
	rt.pendingArgs = nil
	defer func() {
		rt.pendingArgs = savedArgs
		rt.result, rt.hasResult = savedResult, savedHasResult
		rt.pendingReturn, rt.pendingReturnHasValue = savedReturn, savedHasReturn
	}()

	senders := rt.Mod.Senders(idx)
	if senders.HasReceivers() {
		senders.Broadcast(value.Array(value.DeepCloneArgs(args)))
	}

	popFrame := rt.pushFrame(fn.Name, idx)
	for i, a := range fn.Args {
		slot := rt.push(args[i])
		rt.declareLocal(a.Name, slot)
		if a.Current {
			rt.declareCurrent(a.Name, slot)
		}
	}
	rt.bindCurrents(fn.Currents, currents)
	_, _, flow, err := rt.evalBlock(fn.Body)
	var slotErr error
	if err == nil {
		slotErr = rt.checkReturnSlot(fn.Name, fn.Returns, flow)
	}
	ret := rt.pendingReturn
	popFrame()
	if err != nil {
		return value.Value{}, err
	}
	if slotErr != nil {
		return value.Value{}, slotErr
	}
	if flow.Kind == flowReturn && fn.Returns {
		return ret, nil
	}
	if !flow.isNormal() {
		return value.Value{}, fmt.Errorf("eval: break/continue escaped function %q", fn.Name)
	}
	return value.Value{}, nil
}

// evalClosureCall invokes a closure value with freshly evaluated
// argument expressions (spec §3.1 "Closure").
func (rt *Runtime) evalClosureCall(n *ast.ClosureCall) (value.Value, Flow, error) {
	cv, flow, err := rt.evalExpr(n.Closure)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	cl, ok := cv.Closure()
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: expected a closure, got %s", cv.Kind())
	}
	argVals := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, flow, err := rt.evalExpr(a)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		argVals[i] = v
	}
	return rt.callClosure(cl, argVals)
}

// callClosure binds a closure's captured current-objects and its
// positional parameters, then runs its body in the module it was
// defined against (which may differ from rt.Mod if the closure was
// captured by a thread spawned against a different snapshot, spec
// §4.2/§9).
func (rt *Runtime) callClosure(cl *value.Closure, argVals []value.Value) (value.Value, Flow, error) {
	astClosure, ok := cl.AST.(*ast.Closure)
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: closure has no body")
	}
	savedMod := rt.Mod
	if mod, ok := cl.Module.(*module.Module); ok {
		rt.Mod = mod
	}
	defer func() { rt.Mod = savedMod }()

	popFrame := rt.pushFrame("<closure>", cl.RelIndex)
	for name, v := range cl.Captured {
		idx := rt.push(v)
		rt.declareCurrent(name, idx)
	}
	for i, a := range astClosure.Args {
		var v value.Value
		if i < len(argVals) {
			v = argVals[i]
		}
		idx := rt.push(v)
		rt.declareLocal(a.Name, idx)
		if a.Current {
			rt.declareCurrent(a.Name, idx)
		}
	}

	_, _, flow, err := rt.evalBlock(astClosure.Body)
	var slotErr error
	if err == nil {
		slotErr = rt.checkReturnSlot("<closure>", astClosure.Returns, flow)
	}
	popFrame()
	if err != nil {
		return value.Value{}, flow, err
	}
	if slotErr != nil {
		return value.Value{}, normalFlow, slotErr
	}
	if flow.Kind == flowReturn {
		return rt.pendingReturn, normalFlow, nil
	}
	return value.Value{}, normalFlow, nil
}

// buildClosure constructs a closure value from a literal: it snapshots
// every declared `~name` current-object dependency now (so the closure
// remains callable even after its defining scope has exited, e.g. once
// returned or sent to a spawned thread) and resolves any grab splices
// against the current scope (spec §4.2 "Grab").
func (rt *Runtime) buildClosure(n *ast.Closure) (value.Value, Flow, error) {
	captured := make(map[string]value.Value, len(n.Currents))
	for _, name := range n.Currents {
		idx, ok := rt.lookupCurrent(name)
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: closure captures undefined current object %q", name)
		}
		v := rt.stack[idx]
		if v.IsRef() {
			v = rt.stack[v.RefIndex()]
		}
		captured[name] = v
	}

	resolved, err := ast.ResolveGrabs(n, func(expr ast.Node) (any, error) {
		v, flow, err := rt.evalExpr(expr)
		if err != nil {
			return nil, err
		}
		if !flow.isNormal() {
			return nil, fmt.Errorf("eval: grab expression produced a non-local jump")
		}
		return v, nil
	})
	if err != nil {
		return value.Value{}, normalFlow, err
	}

	// RelIndex snapshots the defining function's own index, so any Call
	// sites inside the closure body that have already cached a
	// relative offset (spec Glossary "Relative function index") resolve
	// against the same baseline whether the closure runs inline or is
	// invoked later from a spawned thread's Runtime.
	cl := &value.Closure{Module: rt.Mod, AST: resolved, Captured: captured, RelIndex: rt.currentFrame().fnIndex}
	return value.ClosureValue(cl), normalFlow, nil
}
