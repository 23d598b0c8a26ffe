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

// Package eval implements the tree-walking evaluator: a stack machine
// that executes ast.Fn bodies against a value stack, a local-name
// stack, a current-object stack, and a call stack (spec §4.2). It is
// grounded on vm/interp.go's Runtime-holds-all-the-stacks shape in the
// teacher repo, generalized from sneller's single bytecode-program
// interpreter loop to Dyon's recursive tree-walking evaluation of
// ast.Fn bodies, and on vm/bytecode.go's separation of "the thing that
// executes" from "the thing that was compiled".
package eval

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/dyonlang/dyon/module"
	"github.com/dyonlang/dyon/value"
)

// nameSlot is one (name, stack-index) entry on the local-name or
// current-object stacks.
type nameSlot struct {
	name string
	idx  int
}

// frame is one call's bookkeeping: the pre-call lengths of every stack,
// so that returning truncates each back in one step (spec §5 "stack
// discipline").
type frame struct {
	fnName      string
	fnIndex     int // absolute index into module; a closure call records its defining function's index
	stackBase   int
	localBase   int
	currentBase int
}

// Runtime is one goroutine's execution context: its own value stack,
// name stacks, call stack, and RNG. A `go` spawn constructs a fresh
// Runtime sharing only the (immutable after load) Module and an Out
// writer (spec §5 "Shared mutable": only senders and RustObject are
// shared across threads).
type Runtime struct {
	Mod *module.Module
	Out io.Writer
	RNG *rand.Rand

	rngSrc *chachaSource
	tracer *Tracer

	stack   []value.Value
	locals  []nameSlot
	current []nameSlot
	calls   []frame

	// currentIndex maps a siphash of a `~name` to the indices in
	// current that declared it, in push order, so lookupCurrent can
	// skip straight to the candidates instead of scanning the whole
	// current-object stack (spec §9 "Senders per function" describes
	// the same cheap-fast-path idiom for sender lookups; we apply it
	// here to current-object resolution, per SPEC_FULL.md §2).
	currentIndex map[uint64][]int

	// argErr records which popped argument index a host function
	// wants blamed for a type-mismatch error (spec §6 "Host function
	// contract").
	argErr    int
	hasArgErr bool

	// pendingArgs buffers the values an in-progress external-function
	// call is popping; PopArg pops off the back of this buffer rather
	// than the main value stack directly, so the caller controls
	// exactly how many slots get pushed before invoking Call.
	pendingArgs []value.Value
	result      value.Value
	hasResult   bool

	// pendingReturn carries the value a Return statement or a `?`
	// propagation is handing back to the enclosing function call; valid
	// only alongside a Flow whose Kind is flowReturn.
	pendingReturn value.Value

	// pendingReturnHasValue reports whether pendingReturn was actually
	// filled by a `return expr` statement or a `?` propagation, as
	// opposed to a bare `return;` with no value. callLoaded/evalGo/
	// callClosure consult this (spec §4.2 call semantics step 3:
	// "Validate that ... a function declared to return actually filled
	// its return slot ... and that a void function did not produce a
	// value") to reject a value-returning function whose body fell
	// through or returned nothing.
	pendingReturnHasValue bool
}

// New returns a Runtime ready to execute mod's `main` or any other
// entry point, seeded from system entropy (spec §4.2 "RNG").
func New(mod *module.Module) *Runtime {
	src := newEntropySeededSource()
	return &Runtime{
		Mod:    mod,
		Out:    os.Stdout,
		RNG:    rand.New(src),
		rngSrc: src,
	}
}

// forThread builds a fresh Runtime for a `go` spawn: same module and
// output, an independently seeded RNG copy, and an empty call stack
// (spec §4.2 "Scheduling"). No frame for the spawning caller is
// recorded; evalGo pushes only the spawned function's own frame.
func (rt *Runtime) forThread() *Runtime {
	src := rt.rngSrc.fork()
	return &Runtime{
		Mod:    rt.Mod,
		Out:    rt.Out,
		RNG:    rand.New(src),
		rngSrc: src,
	}
}

// RandFloat64 implements module.Randomizer, backing the `random()`
// prelude primitive.
func (rt *Runtime) RandFloat64() float64 { return rt.RNG.Float64() }

// --- module.HostRuntime ---------------------------------------------------

// PopArg implements module.HostRuntime: external functions pop their
// arguments in reverse order (spec §6).
func (rt *Runtime) PopArg() value.Value {
	if len(rt.pendingArgs) == 0 {
		panic("eval: external function popped more arguments than were pushed")
	}
	v := rt.pendingArgs[len(rt.pendingArgs)-1]
	rt.pendingArgs = rt.pendingArgs[:len(rt.pendingArgs)-1]
	return v
}

// PushResult implements module.HostRuntime.
func (rt *Runtime) PushResult(v value.Value) {
	rt.result = v
	rt.hasResult = true
}

// SetArgError implements module.HostRuntime.
func (rt *Runtime) SetArgError(index int) {
	rt.argErr = index
	rt.hasArgErr = true
}

// Stdout implements module.Stdout, so `print`/`println` write
// somewhere observable.
func (rt *Runtime) Stdout() io.Writer { return rt.Out }

// --- stack plumbing --------------------------------------------------------

func (rt *Runtime) push(v value.Value) int {
	rt.stack = append(rt.stack, v)
	return len(rt.stack) - 1
}

func (rt *Runtime) declareLocal(name string, idx int) {
	rt.locals = append(rt.locals, nameSlot{name: name, idx: idx})
}

func (rt *Runtime) declareCurrent(name string, idx int) {
	slot := len(rt.current)
	rt.current = append(rt.current, nameSlot{name: name, idx: idx})
	if rt.currentIndex == nil {
		rt.currentIndex = map[uint64][]int{}
	}
	h := currentHash(name)
	rt.currentIndex[h] = append(rt.currentIndex[h], slot)
}

// lookupLocal searches the local-name stack from the top (most
// recently declared wins, and block exit will already have truncated
// shadowed entries out of range).
func (rt *Runtime) lookupLocal(name string) (int, bool) {
	for i := len(rt.locals) - 1; i >= 0; i-- {
		if rt.locals[i].name == name {
			return rt.locals[i].idx, true
		}
	}
	return 0, false
}

// lookupCurrent resolves a `~name` current-object capture by walking
// only the slots whose name hashes to the same bucket, from the most
// recently declared backward, verifying the name on each candidate to
// guard against hash collisions. Slots truncated off the end of
// rt.current (block/frame exit) are simply out of range and skipped.
func (rt *Runtime) lookupCurrent(name string) (int, bool) {
	cands := rt.currentIndex[currentHash(name)]
	for i := len(cands) - 1; i >= 0; i-- {
		slot := cands[i]
		if slot >= len(rt.current) {
			continue
		}
		if rt.current[slot].name == name {
			return rt.current[slot].idx, true
		}
	}
	return 0, false
}

// enterBlock returns a closure that truncates the local-name stack
// back to its current length, used on block exit so names declared
// inside the block go out of scope (spec §5 "Stack discipline").
func (rt *Runtime) enterBlock() func() {
	n := len(rt.locals)
	return func() { rt.locals = rt.locals[:n] }
}

func (rt *Runtime) pushFrame(fnName string, fnIndex int) func() {
	if rt.tracer != nil {
		rt.tracer.enter(fnName)
	}
	rt.calls = append(rt.calls, frame{
		fnName:      fnName,
		fnIndex:     fnIndex,
		stackBase:   len(rt.stack),
		localBase:   len(rt.locals),
		currentBase: len(rt.current),
	})
	n := len(rt.calls)
	return func() {
		f := rt.calls[n-1]
		rt.stack = rt.stack[:f.stackBase]
		rt.locals = rt.locals[:f.localBase]
		rt.current = rt.current[:f.currentBase]
		rt.calls = rt.calls[:n-1]
		if rt.tracer != nil {
			rt.tracer.exit(f.fnName)
		}
	}
}

func (rt *Runtime) currentFrame() frame {
	if len(rt.calls) == 0 {
		return frame{fnIndex: -1}
	}
	return rt.calls[len(rt.calls)-1]
}

// trace formats the current call stack for an error message (spec §7
// "Propagated errors ... augmented with a trace entry for each
// ?-traversed call frame").
func (rt *Runtime) trace() []string {
	out := make([]string, len(rt.calls))
	for i, f := range rt.calls {
		out[i] = fmt.Sprintf("in %s", f.fnName)
	}
	return out
}

func runtimeError(format string, args ...any) *value.Error {
	return &value.Error{Msg: fmt.Sprintf(format, args...)}
}

// checkReturnSlot enforces spec §4.2 call semantics step 3's
// post-body validation: a function declared to return a value must
// actually have filled its return slot (a `return expr` or `?`
// propagation, not a bare `return;` or falling off the end of the
// body), and a function not declared to return must not have
// produced one. break/continue outcomes are validated separately by
// the caller, since they are a distinct failure (escaping the
// function boundary) rather than a return-slot mismatch.
func (rt *Runtime) checkReturnSlot(name string, returns bool, flow Flow) error {
	switch flow.Kind {
	case flowReturn:
		if returns && !rt.pendingReturnHasValue {
			return runtimeError("%s: declared to return a value but `return` did not provide one", name)
		}
		if !returns && rt.pendingReturnHasValue {
			return runtimeError("%s: void function must not return a value", name)
		}
	case flowNormal:
		if returns {
			return runtimeError("%s: declared to return a value but fell through without returning one", name)
		}
	}
	return nil
}
