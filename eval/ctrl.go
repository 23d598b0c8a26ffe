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
	"github.com/dyonlang/dyon/link"
	"github.com/dyonlang/dyon/value"
)

// evalBlock executes b's statements in a fresh name scope, returning
// the last statement's value for use when a Block appears in
// expression position (an If branch, a Fn body, ...).
func (rt *Runtime) evalBlock(b *ast.Block) (value.Value, bool, Flow, error) {
	exit := rt.enterBlock()
	defer exit()
	var last value.Value
	var hasLast bool
	for _, stmt := range b.Stmts {
		v, hv, flow, err := rt.evalStmtOrExpr(stmt)
		if err != nil || !flow.isNormal() {
			return value.Value{}, false, flow, err
		}
		last, hasLast = v, hv
	}
	return last, hasLast, normalFlow, nil
}

// evalStmtOrExpr dispatches a single Block statement: pure-statement
// nodes are handled directly, everything else falls through to
// evalExpr and reports whether it produced a value.
func (rt *Runtime) evalStmtOrExpr(n ast.Node) (value.Value, bool, Flow, error) {
	switch t := n.(type) {
	case *ast.Assign:
		flow, err := rt.evalAssign(t)
		return value.Value{}, false, flow, err
	case *ast.Return:
		flow, err := rt.evalReturn(t)
		return value.Value{}, false, flow, err
	case *ast.Break:
		return value.Value{}, false, breakFlow(t.Label, t.HasLabel), nil
	case *ast.Continue:
		return value.Value{}, false, continueFlow(t.Label, t.HasLabel), nil
	case *ast.If:
		return rt.evalIf(t)
	case *ast.For:
		flow, err := rt.evalFor(t)
		return value.Value{}, false, flow, err
	case *ast.ForN:
		flow, err := rt.evalForN(t)
		return value.Value{}, false, flow, err
	case *ast.ForIn:
		flow, err := rt.evalForIn(t)
		return value.Value{}, false, flow, err
	case *ast.Loop:
		flow, err := rt.evalLoop(t)
		return value.Value{}, false, flow, err
	default:
		v, flow, err := rt.evalExpr(n)
		return v, true, flow, err
	}
}

func itemName(n ast.Node) (string, bool) {
	it, ok := n.(*ast.Item)
	if !ok {
		return "", false
	}
	return it.Name, true
}

func (rt *Runtime) resolveRef(n ast.Node) (itemRef, Flow, error) {
	it, ok := n.(*ast.Item)
	if !ok {
		return itemRef{}, normalFlow, fmt.Errorf("eval: assignment target must be a name or path")
	}
	return rt.resolveItemRef(it)
}

func (rt *Runtime) evalAssign(a *ast.Assign) (Flow, error) {
	switch a.Op {
	case ast.AssignDecl:
		val, flow, err := rt.evalExpr(a.Right)
		if err != nil || !flow.isNormal() {
			return flow, err
		}
		name, ok := itemName(a.Left)
		if !ok {
			return normalFlow, fmt.Errorf("eval: := requires a bare name on the left")
		}
		idx := rt.push(val)
		if a.Current {
			rt.declareCurrent(name, idx)
		} else {
			rt.declareLocal(name, idx)
		}
		return normalFlow, nil

	case ast.AssignSet:
		ref, flow, err := rt.resolveRef(a.Left)
		if err != nil || !flow.isNormal() {
			return flow, err
		}
		val, flow, err := rt.evalExpr(a.Right)
		if err != nil || !flow.isNormal() {
			return flow, err
		}
		ref.set(val)
		return normalFlow, nil

	case ast.AssignCompound:
		ref, flow, err := rt.resolveRef(a.Left)
		if err != nil || !flow.isNormal() {
			return flow, err
		}
		rhs, flow, err := rt.evalExpr(a.Right)
		if err != nil || !flow.isNormal() {
			return flow, err
		}
		newVal, err := arith(a.Compound, ref.get(), rhs)
		if err != nil {
			return normalFlow, err
		}
		ref.set(newVal)
		return normalFlow, nil

	default:
		return normalFlow, fmt.Errorf("eval: unknown assignment form")
	}
}

func (rt *Runtime) evalReturn(r *ast.Return) (Flow, error) {
	if r.Value == nil {
		rt.pendingReturn = value.Value{}
		rt.pendingReturnHasValue = false
		return returnFlow(), nil
	}
	v, flow, err := rt.evalExpr(r.Value)
	if err != nil || !flow.isNormal() {
		return flow, err
	}
	rt.pendingReturn = v
	rt.pendingReturnHasValue = true
	return returnFlow(), nil
}

func (rt *Runtime) evalIf(n *ast.If) (value.Value, bool, Flow, error) {
	for i, cond := range n.Conds {
		cv, flow, err := rt.evalExpr(cond)
		if err != nil || !flow.isNormal() {
			return value.Value{}, false, flow, err
		}
		b, ok := cv.AsBool()
		if !ok {
			return value.Value{}, false, normalFlow, fmt.Errorf("eval: if condition must be a bool")
		}
		if b {
			return rt.evalBlock(n.Blocks[i])
		}
	}
	if n.Else != nil {
		return rt.evalBlock(n.Else)
	}
	return value.Value{}, false, normalFlow, nil
}

// loopOutcome interprets a loop body's flow against the loop's own
// label: it reports whether the enclosing for{} should stop (done),
// and if the jump must keep bubbling up past this loop, the flow to
// propagate.
func loopOutcome(flow Flow, label string, hasLabel bool) (done bool, cont bool, propagate Flow) {
	switch flow.Kind {
	case flowReturn:
		return true, false, flow
	case flowBreak:
		if flow.matchesLoop(label, hasLabel) {
			return true, false, normalFlow
		}
		return true, false, flow
	case flowContinue:
		if flow.matchesLoop(label, hasLabel) {
			return false, true, normalFlow
		}
		return true, false, flow
	default:
		return false, false, normalFlow
	}
}

func (rt *Runtime) evalFor(n *ast.For) (Flow, error) {
	exit := rt.enterBlock()
	defer exit()
	if n.Init != nil {
		_, _, flow, err := rt.evalStmtOrExpr(n.Init)
		if err != nil || !flow.isNormal() {
			return flow, err
		}
	}
	for {
		if n.Cond != nil {
			cv, flow, err := rt.evalExpr(n.Cond)
			if err != nil || !flow.isNormal() {
				return flow, err
			}
			b, ok := cv.AsBool()
			if !ok {
				return normalFlow, fmt.Errorf("eval: for condition must be a bool")
			}
			if !b {
				return normalFlow, nil
			}
		}
		_, _, flow, err := rt.evalBlock(n.Body)
		if err != nil {
			return flow, err
		}
		done, cont, propagate := loopOutcome(flow, n.Label, n.HasLabel)
		if done {
			return propagate, nil
		}
		_ = cont
		if n.Step != nil {
			_, _, flow, err := rt.evalStmtOrExpr(n.Step)
			if err != nil || !flow.isNormal() {
				return flow, err
			}
		}
	}
}

func (rt *Runtime) evalForN(n *ast.ForN) (Flow, error) {
	startV, flow, err := rt.evalExpr(n.Start)
	if err != nil || !flow.isNormal() {
		return flow, err
	}
	endV, flow, err := rt.evalExpr(n.End)
	if err != nil || !flow.isNormal() {
		return flow, err
	}
	start, ok1 := startV.AsF64()
	end, ok2 := endV.AsF64()
	if !ok1 || !ok2 {
		return normalFlow, fmt.Errorf("eval: for-n bounds must be numbers")
	}

	exit := rt.enterBlock()
	defer exit()
	idx := rt.push(value.F64(start))
	rt.declareLocal(n.Name, idx)

	for i := start; i < end; i++ {
		rt.stack[idx] = value.F64(i)
		_, _, flow, err := rt.evalBlock(n.Body)
		if err != nil {
			return flow, err
		}
		done, _, propagate := loopOutcome(flow, n.Label, n.HasLabel)
		if done {
			return propagate, nil
		}
	}
	return normalFlow, nil
}

// iterElements returns the element sequence of an array, link, or
// option value for `for x in iter`, per spec §4.2 "ForIn".
func iterElements(v value.Value) ([]value.Value, error) {
	switch v.Kind() {
	case value.KindArray:
		arr, _ := v.Array()
		return arr.Slice(), nil
	case value.KindLink:
		lnk, _ := v.Link()
		scalars := lnk.ToSlice()
		out := make([]value.Value, len(scalars))
		for i, s := range scalars {
			out[i] = scalarToValue(s)
		}
		return out, nil
	case value.KindOption:
		inner, has, _ := v.Option()
		if !has {
			return nil, nil
		}
		return []value.Value{inner}, nil
	default:
		return nil, fmt.Errorf("eval: for-in expects an array, link, or option, got %s", v.Kind())
	}
}

func (rt *Runtime) evalForIn(n *ast.ForIn) (Flow, error) {
	iterV, flow, err := rt.evalExpr(n.Iter)
	if err != nil || !flow.isNormal() {
		return flow, err
	}
	elems, err := iterElements(iterV)
	if err != nil {
		return normalFlow, err
	}

	exit := rt.enterBlock()
	defer exit()
	idx := rt.push(value.Value{})
	rt.declareLocal(n.Name, idx)

	for _, e := range elems {
		rt.stack[idx] = e
		_, _, flow, err := rt.evalBlock(n.Body)
		if err != nil {
			return flow, err
		}
		done, _, propagate := loopOutcome(flow, n.Label, n.HasLabel)
		if done {
			return propagate, nil
		}
	}
	return normalFlow, nil
}

func (rt *Runtime) evalLoop(n *ast.Loop) (Flow, error) {
	for {
		_, _, flow, err := rt.evalBlock(n.Body)
		if err != nil {
			return flow, err
		}
		done, _, propagate := loopOutcome(flow, n.Label, n.HasLabel)
		if done {
			return propagate, nil
		}
	}
}

// reduceAccumulator holds the six scalar reductions' running state plus
// the two collection-building forms (spec §4.2 "Reduce").
type reduceAccumulator struct {
	kind     ast.ReduceKind
	numAcc   float64
	boolAcc  bool
	items    []value.Value
	lnk      *link.Link
	argAcc   float64
	extremal bool // true once min/max has seen at least one element
}

func newReduceAccumulator(kind ast.ReduceKind) *reduceAccumulator {
	ra := &reduceAccumulator{kind: kind}
	switch kind {
	case ast.ReduceSum:
		ra.numAcc = 0
	case ast.ReduceProd:
		ra.numAcc = 1
	case ast.ReduceAll:
		ra.boolAcc = true
	case ast.ReduceLink:
		ra.lnk = link.New()
	}
	return ra
}

// add folds one iteration's produced value into the accumulator,
// reporting whether the reduction can stop early (any/all
// short-circuit, per spec §3.1 "Reduce"). arg is the loop variable's
// value at this iteration, used by min/max to report which argument
// produced the extremal value (spec §4.2: "min/max return
// Option<[arg, value]> because empty ranges are undefined").
func (ra *reduceAccumulator) add(arg float64, v value.Value) (done bool, err error) {
	switch ra.kind {
	case ast.ReduceSum, ast.ReduceProd, ast.ReduceMin, ast.ReduceMax:
		n, ok := v.AsF64()
		if !ok {
			return false, fmt.Errorf("eval: %s reduction expects a number", ra.kind)
		}
		switch ra.kind {
		case ast.ReduceSum:
			ra.numAcc += n
		case ast.ReduceProd:
			ra.numAcc *= n
		case ast.ReduceMin:
			if !ra.extremal || n < ra.numAcc {
				ra.numAcc, ra.argAcc, ra.extremal = n, arg, true
			}
		case ast.ReduceMax:
			if !ra.extremal || n > ra.numAcc {
				ra.numAcc, ra.argAcc, ra.extremal = n, arg, true
			}
		}
		return false, nil
	case ast.ReduceAny:
		b, ok := v.AsBool()
		if !ok {
			return false, fmt.Errorf("eval: any reduction expects a bool")
		}
		if b {
			ra.boolAcc = true
			return true, nil
		}
		return false, nil
	case ast.ReduceAll:
		b, ok := v.AsBool()
		if !ok {
			return false, fmt.Errorf("eval: all reduction expects a bool")
		}
		if !b {
			ra.boolAcc = false
			return true, nil
		}
		return false, nil
	case ast.ReduceSift:
		ra.items = append(ra.items, v)
		return false, nil
	case ast.ReduceLink:
		sc, err := valueToScalar(v)
		if err != nil {
			return false, err
		}
		ra.lnk.Push(sc)
		return false, nil
	default:
		return false, fmt.Errorf("eval: unknown reduction kind")
	}
}

func (ra *reduceAccumulator) result() value.Value {
	switch ra.kind {
	case ast.ReduceSift:
		return value.Array(ra.items)
	case ast.ReduceLink:
		return value.Link(ra.lnk)
	case ast.ReduceAny, ast.ReduceAll:
		return value.Bool(ra.boolAcc)
	case ast.ReduceMin, ast.ReduceMax:
		if !ra.extremal {
			return value.None()
		}
		return value.Some(value.Array([]value.Value{value.F64(ra.argAcc), value.F64(ra.numAcc)}))
	default:
		return value.F64(ra.numAcc)
	}
}

func (rt *Runtime) evalReduce(n *ast.Reduce) (value.Value, Flow, error) {
	startV, flow, err := rt.evalExpr(n.Start)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	endV, flow, err := rt.evalExpr(n.End)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	start, ok1 := startV.AsF64()
	end, ok2 := endV.AsF64()
	if !ok1 || !ok2 {
		return value.Value{}, normalFlow, fmt.Errorf("eval: reduce bounds must be numbers")
	}

	ra := newReduceAccumulator(n.Kind)

	exit := rt.enterBlock()
	defer exit()
	idx := rt.push(value.F64(start))
	rt.declareLocal(n.Name, idx)

	for i := start; i < end; i++ {
		rt.stack[idx] = value.F64(i)
		v, hasVal, flow, err := rt.evalBlock(n.Body)
		if err != nil {
			return value.Value{}, flow, err
		}
		if flow.Kind == flowReturn {
			return value.Value{}, flow, nil
		}
		if flow.Kind == flowBreak {
			if flow.matchesLoop(n.Label, n.HasLabel) {
				break
			}
			return value.Value{}, flow, nil
		}
		if flow.Kind == flowContinue {
			if !flow.matchesLoop(n.Label, n.HasLabel) {
				return value.Value{}, flow, nil
			}
			continue
		}
		if !hasVal {
			continue
		}
		stop, err := ra.add(i, v)
		if err != nil {
			return value.Value{}, normalFlow, err
		}
		if stop {
			break
		}
	}
	return ra.result(), normalFlow, nil
}

// evalTry always wraps its body's value in Ok(...), even when the body
// itself already produced a Result or Option, matching
// original_source/src/runtime/mod.rs's unconditional
// `Variable::Result(Ok(Box::new(x)))` rather than passing a
// Result/Option straight through unwrapped.
func (rt *Runtime) evalTry(n *ast.Try) (value.Value, Flow, error) {
	v, flow, err := rt.evalExpr(n.Body)
	if err != nil {
		return value.Err(err.Error()), normalFlow, nil
	}
	if !flow.isNormal() {
		return value.Value{}, flow, nil
	}
	return value.Ok(v), normalFlow, nil
}
