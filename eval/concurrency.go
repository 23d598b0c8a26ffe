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

// evalGo spawns a loaded function call on its own goroutine against a
// fresh Runtime, with a deep-cloned argument window so the spawned
// thread shares no mutable structure with the caller (spec §4.2 "go",
// property 3 in §8). The expression evaluates immediately to a
// Thread handle; the goroutine resolves it on completion.
func (rt *Runtime) evalGo(n *ast.Go) (value.Value, Flow, error) {
	mut := make([]bool, len(n.Call.Args))
	for i, a := range n.Call.Args {
		mut[i] = a.Mut
	}
	ref := rt.Mod.FindFunction(n.Call.Name, mut)
	if ref.Kind != module.FnLoaded {
		return value.Value{}, normalFlow, fmt.Errorf("eval: go expects a loaded function, got %q", n.Call.Name)
	}
	fn := rt.Mod.Fn(ref.Index)

	plans, flow, err := rt.planCallArgs(n.Call.Args)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	argVals := make([]value.Value, len(plans))
	for i, p := range plans {
		argVals[i] = p.snapshot(rt).DeepClone()
	}

	// A spawned thread cannot hold a Ref into the spawning Runtime's
	// stack, so the callee's declared current-object dependencies are
	// resolved here and deep-cloned into the child alongside the
	// argument window.
	curVals := make([]value.Value, len(fn.Currents))
	for i, name := range fn.Currents {
		idx, ok := rt.lookupCurrent(name)
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: %s: could not find current object %q", fn.Name, name)
		}
		v := rt.stack[idx]
		if v.IsRef() {
			v = rt.stack[v.RefIndex()]
		}
		curVals[i] = v.DeepClone()
	}

	thread := value.NewThread()
	child := rt.forThread()
	go func() {
		// A panic anywhere in the spawned body resolves the handle
		// instead of crashing the process; join() then reports the
		// failure (spec §7 "Thread errors").
		defer func() {
			if r := recover(); r != nil {
				thread.Resolve(value.Value{}, &value.Error{Msg: "Thread did not exit successfully"})
			}
		}()
		popFrame := child.pushFrame(fn.Name, ref.Index)
		for i, a := range fn.Args {
			idx := child.push(argVals[i])
			child.declareLocal(a.Name, idx)
			if a.Current {
				child.declareCurrent(a.Name, idx)
			}
		}
		for i, name := range fn.Currents {
			idx := child.push(curVals[i])
			child.declareLocal(name, idx)
			child.declareCurrent(name, idx)
		}
		_, _, bodyFlow, bodyErr := child.evalBlock(fn.Body)
		var slotErr error
		if bodyErr == nil {
			slotErr = child.checkReturnSlot(fn.Name, fn.Returns, bodyFlow)
		}
		popFrame()
		switch {
		case bodyErr != nil:
			thread.Resolve(value.Value{}, &value.Error{Msg: bodyErr.Error(), Trace: child.trace()})
		case slotErr != nil:
			thread.Resolve(value.Value{}, &value.Error{Msg: slotErr.Error()})
		case bodyFlow.Kind == flowReturn:
			thread.Resolve(child.pendingReturn, nil)
		default:
			thread.Resolve(value.Value{}, nil)
		}
	}()
	return value.ThreadValue(thread), normalFlow, nil
}

// evalIn opens a receiver on the named loaded function, registering it
// with that function's SenderSet so every future call broadcasts a
// deep-cloned argument snapshot to it (spec §4.2 "Channels").
func (rt *Runtime) evalIn(n *ast.In) (value.Value, Flow, error) {
	idx, ok := rt.Mod.FindAnyLoaded(n.FnName)
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: in: unknown function %q", n.FnName)
	}
	recv := value.NewIn()
	rt.Mod.Senders(idx).Register(recv)
	return value.InValue(recv), normalFlow, nil
}
