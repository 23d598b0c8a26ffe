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

// evalExpr evaluates n for its value, following the contract of spec
// §4.2: eval(expr, side) -> (Option<Value>, Flow), specialized here to
// the read ("right") side; resolveItemRef implements the write side.
func (rt *Runtime) evalExpr(n ast.Node) (value.Value, Flow, error) {
	switch t := n.(type) {
	case *ast.BoolLit:
		return value.Bool(t.Value), normalFlow, nil
	case *ast.F64Lit:
		return value.F64(t.Value), normalFlow, nil
	case *ast.TextLit:
		return value.Text(t.Value), normalFlow, nil
	case *ast.Const:
		return constToValue(t.Val), normalFlow, nil
	case *ast.Item:
		return rt.evalItemRead(t)
	case *ast.Vec4Lit:
		return rt.evalVec4Lit(t)
	case *ast.Mat4Lit:
		return rt.evalMat4Lit(t)
	case *ast.Norm:
		return rt.evalNorm(t)
	case *ast.Swizzle:
		return rt.evalSwizzle(t)
	case *ast.ObjectLit:
		return rt.evalObjectLit(t)
	case *ast.ArrayLit:
		return rt.evalArrayLit(t)
	case *ast.ArrayFill:
		return rt.evalArrayFill(t)
	case *ast.LinkLit:
		return rt.evalLinkLit(t)
	case *ast.Arith:
		return rt.evalArith(t)
	case *ast.Compare:
		return rt.evalCompare(t)
	case *ast.Logical:
		return rt.evalLogical(t)
	case *ast.Not:
		return rt.evalNot(t)
	case *ast.Neg:
		return rt.evalNeg(t)
	case *ast.Call:
		return rt.evalCall(t)
	case *ast.ClosureCall:
		return rt.evalClosureCall(t)
	case *ast.Closure:
		return rt.buildClosure(t)
	case *ast.Reduce:
		return rt.evalReduce(t)
	case *ast.Try:
		return rt.evalTry(t)
	case *ast.Go:
		return rt.evalGo(t)
	case *ast.In:
		return rt.evalIn(t)
	case *ast.Block:
		v, _, flow, err := rt.evalBlock(t)
		return v, flow, err
	default:
		return value.Value{}, normalFlow, fmt.Errorf("eval: %T is not a value-producing expression", n)
	}
}

// constToValue lifts a grab-spliced constant (see ast.Const's doc
// comment) back into a runtime Value.
func constToValue(v any) value.Value {
	switch t := v.(type) {
	case bool:
		return value.Bool(t)
	case float64:
		return value.F64(t)
	case string:
		return value.Text(t)
	case value.Value:
		return t
	default:
		return value.Value{}
	}
}

func (rt *Runtime) evalVec4Lit(n *ast.Vec4Lit) (value.Value, Flow, error) {
	exprs := [4]ast.Node{n.X, n.Y, n.Z, n.W}
	var out [4]float32
	for i, e := range exprs {
		v, flow, err := rt.evalExpr(e)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		f, ok := v.AsF64()
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: vec4 component must be a number")
		}
		out[i] = float32(f)
	}
	return value.Vec4(out), normalFlow, nil
}

func (rt *Runtime) evalMat4Lit(n *ast.Mat4Lit) (value.Value, Flow, error) {
	var out [4][4]float32
	for i, c := range n.Cols {
		v, flow, err := rt.evalExpr(c)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		col, ok := v.Vec4()
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: mat4 column must be a vec4")
		}
		out[i] = col
	}
	return value.Mat4(out), normalFlow, nil
}

func (rt *Runtime) evalNorm(n *ast.Norm) (value.Value, Flow, error) {
	v, flow, err := rt.evalExpr(n.Expr)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	vec, ok := v.Vec4()
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: norm expects a vec4")
	}
	var sum float64
	for _, c := range vec {
		sum += float64(c) * float64(c)
	}
	return value.F64(math.Sqrt(sum)), normalFlow, nil
}

// componentIndex maps a swizzle letter (x/y/z/w or r/g/b/a) to its
// vec4 slot, per spec §3.1 "Swizzling".
func componentIndex(c byte) (int, bool) {
	switch c {
	case 'x', 'r':
		return 0, true
	case 'y', 'g':
		return 1, true
	case 'z', 'b':
		return 2, true
	case 'w', 'a':
		return 3, true
	default:
		return 0, false
	}
}

func (rt *Runtime) evalSwizzle(n *ast.Swizzle) (value.Value, Flow, error) {
	v, flow, err := rt.evalExpr(n.Expr)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	vec, ok := v.Vec4()
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: swizzle expects a vec4")
	}
	if len(n.Components) == 1 {
		i, ok := componentIndex(n.Components[0])
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: unknown swizzle component %q", n.Components)
		}
		return value.F64(float64(vec[i])), normalFlow, nil
	}
	var out [4]float32
	for i := 0; i < len(n.Components) && i < 4; i++ {
		ci, ok := componentIndex(n.Components[i])
		if !ok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: unknown swizzle component %q", n.Components[i])
		}
		out[i] = vec[ci]
	}
	return value.Vec4(out), normalFlow, nil
}

func (rt *Runtime) evalObjectLit(n *ast.ObjectLit) (value.Value, Flow, error) {
	m := make(map[string]value.Value, len(n.Entries))
	for _, e := range n.Entries {
		v, flow, err := rt.evalExpr(e.Value)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		m[e.Key] = v
	}
	return value.Object(m), normalFlow, nil
}

func (rt *Runtime) evalArrayLit(n *ast.ArrayLit) (value.Value, Flow, error) {
	items := make([]value.Value, len(n.Items))
	for i, it := range n.Items {
		v, flow, err := rt.evalExpr(it)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		items[i] = v
	}
	return value.Array(items), normalFlow, nil
}

func (rt *Runtime) evalArrayFill(n *ast.ArrayFill) (value.Value, Flow, error) {
	v, flow, err := rt.evalExpr(n.Value)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	cv, flow, err := rt.evalExpr(n.Count)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	count, ok := cv.AsF64()
	if !ok || count < 0 {
		return value.Value{}, normalFlow, fmt.Errorf("eval: array fill count must be a non-negative number")
	}
	items := make([]value.Value, int(count))
	for i := range items {
		items[i] = v.DeepClone()
	}
	return value.Array(items), normalFlow, nil
}

func (rt *Runtime) evalLinkLit(n *ast.LinkLit) (value.Value, Flow, error) {
	lnk := link.New()
	for _, it := range n.Items {
		v, flow, err := rt.evalExpr(it)
		if err != nil || !flow.isNormal() {
			return value.Value{}, flow, err
		}
		sc, err := valueToScalar(v)
		if err != nil {
			return value.Value{}, normalFlow, err
		}
		lnk.Push(sc)
	}
	return value.Link(lnk), normalFlow, nil
}

func (rt *Runtime) evalNot(n *ast.Not) (value.Value, Flow, error) {
	v, flow, err := rt.evalExpr(n.Expr)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	b, ok := v.AsBool()
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: ! expects a bool")
	}
	return value.Bool(!b).WithSecret(v.Secret()), normalFlow, nil
}

func (rt *Runtime) evalNeg(n *ast.Neg) (value.Value, Flow, error) {
	v, flow, err := rt.evalExpr(n.Expr)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	switch v.Kind() {
	case value.KindF64:
		f, _ := v.AsF64()
		return value.F64Secret(-f, v.Secret()), normalFlow, nil
	case value.KindVec4:
		vec, _ := v.Vec4()
		for i := range vec {
			vec[i] = -vec[i]
		}
		return value.Vec4(vec), normalFlow, nil
	default:
		return value.Value{}, normalFlow, fmt.Errorf("eval: unary - expects a number or vec4, got %s", v.Kind())
	}
}

func (rt *Runtime) evalLogical(n *ast.Logical) (value.Value, Flow, error) {
	lv, flow, err := rt.evalExpr(n.Left)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	lb, ok := lv.AsBool()
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: logical operand must be a bool")
	}
	if n.Op == ast.LogAnd && !lb {
		return value.Bool(false).WithSecret(lv.Secret()), normalFlow, nil
	}
	if n.Op == ast.LogOr && lb {
		return value.Bool(true).WithSecret(lv.Secret()), normalFlow, nil
	}
	rv, flow, err := rt.evalExpr(n.Right)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	rb, ok := rv.AsBool()
	if !ok {
		return value.Value{}, normalFlow, fmt.Errorf("eval: logical operand must be a bool")
	}
	var res bool
	if n.Op == ast.LogAnd {
		res = lb && rb
	} else {
		res = lb || rb
	}
	return value.Bool(res).WithSecret(value.MergeSecrets(lv.Secret(), rv.Secret())), normalFlow, nil
}

func (rt *Runtime) evalCompare(n *ast.Compare) (value.Value, Flow, error) {
	lv, flow, err := rt.evalExpr(n.Left)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	rv, flow, err := rt.evalExpr(n.Right)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	var res bool
	switch n.Op {
	case ast.CmpEq:
		res = valuesEqual(lv, rv)
	case ast.CmpNe:
		res = !valuesEqual(lv, rv)
	default:
		lf, lok := lv.AsF64()
		rf, rok := rv.AsF64()
		if !lok || !rok {
			return value.Value{}, normalFlow, fmt.Errorf("eval: ordered comparison requires numbers")
		}
		switch n.Op {
		case ast.CmpLt:
			res = lf < rf
		case ast.CmpLe:
			res = lf <= rf
		case ast.CmpGt:
			res = lf > rf
		case ast.CmpGe:
			res = lf >= rf
		}
	}
	return value.Bool(res).WithSecret(value.MergeSecrets(lv.Secret(), rv.Secret())), normalFlow, nil
}

// valuesEqual implements structural equality (spec §9 "Open Question:
// object/array equality"): scalars compare by value, with F64 using
// plain IEEE-754 `==` (so NaN != NaN, even against itself), matching
// the spec's resolution of the float-equality open question and
// original_source/src/runtime/mod.rs's `a == b` comparison on raw
// f64s. Containers compare element-wise.
func valuesEqual(a, b value.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case value.KindBool:
		av, _ := a.AsBool()
		bv, _ := b.AsBool()
		return av == bv
	case value.KindF64:
		av, _ := a.AsF64()
		bv, _ := b.AsF64()
		return av == bv
	case value.KindText:
		av, _ := a.AsText()
		bv, _ := b.AsText()
		return av == bv
	case value.KindArray:
		aa, _ := a.Array()
		ba, _ := b.Array()
		if aa.Len() != ba.Len() {
			return false
		}
		for i := 0; i < aa.Len(); i++ {
			if !valuesEqual(aa.At(i), ba.At(i)) {
				return false
			}
		}
		return true
	case value.KindObject:
		ao, _ := a.Object()
		bo, _ := b.Object()
		if ao.Len() != bo.Len() {
			return false
		}
		for _, k := range ao.Keys() {
			av, _ := ao.Get(k)
			bv, ok := bo.Get(k)
			if !ok || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	case value.KindOption:
		av, aok, _ := a.Option()
		bv, bok, _ := b.Option()
		if aok != bok {
			return false
		}
		return !aok || valuesEqual(av, bv)
	default:
		return false
	}
}

func (rt *Runtime) evalArith(n *ast.Arith) (value.Value, Flow, error) {
	lv, flow, err := rt.evalExpr(n.Left)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	rv, flow, err := rt.evalExpr(n.Right)
	if err != nil || !flow.isNormal() {
		return value.Value{}, flow, err
	}
	v, err := arith(n.Op, lv, rv)
	return v, normalFlow, err
}

// arith implements the shared arithmetic dispatch used by both Arith
// expression nodes and compound assignment (spec §3.1 "Arithmetic").
func arith(op ast.ArithOp, l, r value.Value) (value.Value, error) {
	if op == ast.OpAdd && l.Kind() == value.KindText {
		ls, _ := l.AsText()
		rs, ok := r.AsText()
		if !ok {
			return value.Value{}, fmt.Errorf("eval: cannot add %s to a string", r.Kind())
		}
		return value.Text(ls + rs), nil
	}
	if op == ast.OpAdd && l.Kind() == value.KindLink && r.Kind() == value.KindLink {
		ll, _ := l.Link()
		rl, _ := r.Link()
		return value.Link(link.Concat(ll, rl)), nil
	}
	if l.Kind() == value.KindVec4 || r.Kind() == value.KindVec4 {
		return arithVec4(op, l, r)
	}
	if l.Kind() == value.KindMat4 || r.Kind() == value.KindMat4 {
		return arithMat4(op, l, r)
	}
	lf, lok := l.AsF64()
	rf, rok := r.AsF64()
	if !lok || !rok {
		return value.Value{}, fmt.Errorf("eval: arithmetic requires numbers, got %s and %s", l.Kind(), r.Kind())
	}
	secret := value.MergeSecrets(l.Secret(), r.Secret())
	var res float64
	switch op {
	case ast.OpAdd:
		res = lf + rf
	case ast.OpSub:
		res = lf - rf
	case ast.OpMul:
		res = lf * rf
	case ast.OpDiv:
		res = lf / rf
	case ast.OpRem:
		res = math.Mod(lf, rf)
	case ast.OpPow:
		res = math.Pow(lf, rf)
	case ast.OpDotMul:
		res = lf * rf
	default:
		return value.Value{}, fmt.Errorf("eval: unknown arithmetic operator")
	}
	return value.F64Secret(res, secret), nil
}

func arithVec4(op ast.ArithOp, l, r value.Value) (value.Value, error) {
	lv, lok := l.Vec4()
	if !lok {
		if lf, ok := l.AsF64(); ok {
			lv = [4]float32{float32(lf), float32(lf), float32(lf), float32(lf)}
		} else {
			return value.Value{}, fmt.Errorf("eval: vec4 arithmetic requires a vec4 or number")
		}
	}
	rv, rok := r.Vec4()
	if !rok {
		if rf, ok := r.AsF64(); ok {
			rv = [4]float32{float32(rf), float32(rf), float32(rf), float32(rf)}
		} else {
			return value.Value{}, fmt.Errorf("eval: vec4 arithmetic requires a vec4 or number")
		}
	}
	var out [4]float32
	for i := range out {
		switch op {
		case ast.OpAdd:
			out[i] = lv[i] + rv[i]
		case ast.OpSub:
			out[i] = lv[i] - rv[i]
		case ast.OpMul, ast.OpDotMul:
			out[i] = lv[i] * rv[i]
		case ast.OpDiv:
			out[i] = lv[i] / rv[i]
		default:
			return value.Value{}, fmt.Errorf("eval: unsupported vec4 operator")
		}
	}
	return value.Vec4(out), nil
}

func arithMat4(op ast.ArithOp, l, r value.Value) (value.Value, error) {
	lm, lok := l.Mat4()
	rm, rok := r.Mat4()
	switch {
	case op == ast.OpMul && lok && rok:
		var out [4][4]float32
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				var sum float32
				for k := 0; k < 4; k++ {
					sum += lm[k][row] * rm[col][k]
				}
				out[col][row] = sum
			}
		}
		return value.Mat4(out), nil
	case op == ast.OpMul && lok:
		rv, ok := r.Vec4()
		if !ok {
			return value.Value{}, fmt.Errorf("eval: mat4 * expects a mat4 or vec4")
		}
		var out [4]float32
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += lm[k][row] * rv[k]
			}
			out[row] = sum
		}
		return value.Vec4(out), nil
	default:
		return value.Value{}, fmt.Errorf("eval: unsupported mat4 operator")
	}
}
