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

// Package types implements the Dyon structural type lattice used for
// optional type annotations and the limited arithmetic-result inference
// performed during lifetime analysis. It is grounded on the TypeSet
// bitmask idiom from expr/check.go in the teacher repo, adapted from a
// flat bitmask (sneller's types are a closed, small set) to a small
// recursive struct, since Dyon types nest (Array(Option(F64)), etc).
package types

import "fmt"

// Tag identifies the shape of a Type.
type Tag uint8

const (
	// TAny is the lattice top: matches anything.
	TAny Tag = iota
	// TVoid is the lattice bottom: matches nothing except TVoid.
	TVoid
	// TUnreachable matches anything (code after a `return`/`break`).
	TUnreachable

	TBool
	TF64
	TVec4
	TMat4
	TStr
	TLink
	TObject

	TArray
	TOption
	TResult
	TThread
	TIn
	TSecret
	TAdHoc
	TClosure
)

// Signature describes the argument/return shape of a Closure type.
type Signature struct {
	Args []Type
	Ret  Type
}

// Type is a structural type descriptor. Elem is used by the unary
// constructors (Array, Option, Result, Thread, In, Secret); Name is used
// by AdHoc; Sig is used by Closure.
type Type struct {
	Tag  Tag
	Elem *Type
	Name string
	Sig  *Signature
}

func Any() Type         { return Type{Tag: TAny} }
func Void() Type        { return Type{Tag: TVoid} }
func Unreachable() Type { return Type{Tag: TUnreachable} }
func Bool() Type        { return Type{Tag: TBool} }
func F64() Type         { return Type{Tag: TF64} }
func Vec4() Type        { return Type{Tag: TVec4} }
func Mat4() Type        { return Type{Tag: TMat4} }
func Str() Type         { return Type{Tag: TStr} }
func Link() Type        { return Type{Tag: TLink} }
func Object() Type      { return Type{Tag: TObject} }

func ArrayOf(elem Type) Type  { return Type{Tag: TArray, Elem: &elem} }
func OptionOf(elem Type) Type { return Type{Tag: TOption, Elem: &elem} }
func ResultOf(elem Type) Type { return Type{Tag: TResult, Elem: &elem} }
func ThreadOf(elem Type) Type { return Type{Tag: TThread, Elem: &elem} }
func InOf(elem Type) Type     { return Type{Tag: TIn, Elem: &elem} }

// SecretOf constructs Secret(T); only Secret(Bool) and Secret(F64) are
// valid, per spec §3.3.
func SecretOf(elem Type) (Type, error) {
	if elem.Tag != TBool && elem.Tag != TF64 {
		return Type{}, fmt.Errorf("types: Secret(%s) is not a valid type; only Secret(bool) and Secret(f64) are allowed", elem)
	}
	return Type{Tag: TSecret, Elem: &elem}, nil
}

func AdHoc(name string, elem Type) Type {
	return Type{Tag: TAdHoc, Name: name, Elem: &elem}
}

func ClosureOf(sig Signature) Type {
	return Type{Tag: TClosure, Sig: &sig}
}

func (t Type) String() string {
	switch t.Tag {
	case TAny:
		return "any"
	case TVoid:
		return "void"
	case TUnreachable:
		return "unreachable"
	case TBool:
		return "bool"
	case TF64:
		return "f64"
	case TVec4:
		return "vec4"
	case TMat4:
		return "mat4"
	case TStr:
		return "str"
	case TLink:
		return "link"
	case TObject:
		return "object"
	case TArray:
		return fmt.Sprintf("[%s]", t.Elem)
	case TOption:
		return fmt.Sprintf("option<%s>", t.Elem)
	case TResult:
		return fmt.Sprintf("result<%s>", t.Elem)
	case TThread:
		return fmt.Sprintf("thread<%s>", t.Elem)
	case TIn:
		return fmt.Sprintf("in<%s>", t.Elem)
	case TSecret:
		return fmt.Sprintf("sec<%s>", t.Elem)
	case TAdHoc:
		return fmt.Sprintf("%s(%s)", t.Name, t.Elem)
	case TClosure:
		return "closure"
	default:
		return "?"
	}
}

// Matches reports whether a value of type t may be used where a value of
// type want is expected. Void fails to match anything except Void;
// Unreachable matches anything; Any matches anything; Secret(X) flows
// into X (dropping the witness) but not vice versa.
func Matches(t, want Type) bool {
	if want.Tag == TAny || t.Tag == TUnreachable {
		return true
	}
	if want.Tag == TVoid {
		return t.Tag == TVoid
	}
	if t.Tag == TVoid {
		return false
	}
	// Secret(X) flows into X.
	if t.Tag == TSecret && want.Tag != TSecret {
		return Matches(*t.Elem, want)
	}
	if t.Tag != want.Tag {
		return false
	}
	switch t.Tag {
	case TArray, TOption, TResult, TThread, TIn, TSecret:
		return Matches(*t.Elem, *want.Elem)
	case TAdHoc:
		return t.Name == want.Name && Matches(*t.Elem, *want.Elem)
	case TClosure:
		return true // closures are structurally compatible at this level of analysis
	default:
		return true
	}
}

// Add returns the result type of `a + b`, respecting secret propagation
// and vec4/mat4 broadcasting (spec §3.3).
func Add(a, b Type) (Type, error) {
	return arith("+", a, b)
}

// Mul returns the result type of `a * b`.
func Mul(a, b Type) (Type, error) {
	return arith("*", a, b)
}

// Pow returns the result type of `a ^ b`.
func Pow(a, b Type) (Type, error) {
	if a.Tag == TSecret {
		r, err := Pow(*a.Elem, b)
		if err != nil {
			return Type{}, err
		}
		return secretify(r, b)
	}
	if b.Tag == TSecret {
		r, err := Pow(a, *b.Elem)
		if err != nil {
			return Type{}, err
		}
		return secretify(r, a)
	}
	if a.Tag == TF64 && b.Tag == TF64 {
		return F64(), nil
	}
	return Type{}, fmt.Errorf("types: cannot raise %s to the power of %s", a, b)
}

func arith(op string, a, b Type) (Type, error) {
	if a.Tag == TSecret {
		r, err := arith(op, *a.Elem, b)
		if err != nil {
			return Type{}, err
		}
		return secretify(r, b)
	}
	if b.Tag == TSecret {
		r, err := arith(op, a, *b.Elem)
		if err != nil {
			return Type{}, err
		}
		return secretify(r, a)
	}
	switch {
	case a.Tag == TF64 && b.Tag == TF64:
		return F64(), nil
	case a.Tag == TVec4 && b.Tag == TVec4:
		return Vec4(), nil
	case a.Tag == TVec4 && b.Tag == TF64, a.Tag == TF64 && b.Tag == TVec4:
		return Vec4(), nil
	case op == "*" && a.Tag == TMat4 && b.Tag == TMat4:
		return Mat4(), nil
	case op == "*" && a.Tag == TMat4 && b.Tag == TVec4:
		return Vec4(), nil
	case op == "+" && a.Tag == TStr && b.Tag == TStr:
		return Str(), nil
	case op == "+" && a.Tag == TLink && b.Tag == TLink:
		return Link(), nil
	default:
		return Type{}, fmt.Errorf("types: operator %q is not defined for %s and %s", op, a, b)
	}
}

// secretify wraps result r in Secret() if either arithmetic operand was
// itself secret, propagating provenance through arithmetic chains.
func secretify(r Type, other Type) (Type, error) {
	if r.Tag != TBool && r.Tag != TF64 {
		return r, nil
	}
	return SecretOf(r)
}
