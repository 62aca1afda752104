package semantic

import (
	"context"
	"strings"

	"github.com/jward/typewire/internal/runtime"
	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

// specialForms are the typing names the model provides itself instead of
// reading them from the typing stub.
var specialForms = map[string]bool{
	"Any":           true,
	"Union":         true,
	"Optional":      true,
	"Literal":       true,
	"Callable":      true,
	"Generic":       true,
	"Protocol":      true,
	"ClassVar":      true,
	"Final":         true,
	"Annotated":     true,
	"TypeAlias":     true,
	"TypeGuard":     true,
	"TypeIs":        true,
	"Never":         true,
	"NoReturn":      true,
	"LiteralString": true,
	"Self":          true,
	"Required":      true,
	"NotRequired":   true,
	"ReadOnly":      true,
	"Tuple":         true,
	"List":          true,
	"Dict":          true,
	"Set":           true,
	"FrozenSet":     true,
	"Type":          true,
	"TypedDict":     true,
	"NewType":       true,
	"Concatenate":   true,
	"Unpack":        true,
}

// aliasClasses maps the deprecated typing aliases to their builtins.
var aliasClasses = map[string]string{
	"List":      "list",
	"Dict":      "dict",
	"Set":       "set",
	"FrozenSet": "frozenset",
	"Tuple":     "tuple",
	"Type":      "type",
}

func formName(t types.Type) string {
	sf, ok := t.(*types.SpecialForm)
	if !ok {
		return ""
	}
	return strings.TrimPrefix(sf.Name, "typing.")
}

// isBareQualifier reports whether an annotation is a qualifier used
// without a type, as in "x: Final = 3".
func isBareQualifier(t types.Type) bool {
	switch formName(t) {
	case "Final", "ClassVar", "TypeAlias":
		return true
	}
	return false
}

// annotation is the declared type an annotation expression denotes.
func (m *Model) annotation(e syntax.Expr) types.Type {
	sc := m.b.annots[e]
	t := m.scopeIn(m.typeExpr(e, sc), sc)
	if fd, ok := m.b.annotFuncs[e]; ok {
		t = m.in.Apply(t, m.funcLegacy(fd))
	}
	return t
}

// typeExpr evaluates e as a type expression in scope sc.
func (m *Model) typeExpr(e syntax.Expr, sc *scope) types.Type {
	if e == nil {
		return m.in.Unknown()
	}
	return m.annots.get(e, m.in.Unknown(), func() types.Type {
		t := m.computeTypeExpr(e, sc)
		if t == nil {
			return m.in.Unknown()
		}
		return t
	})
}

func (m *Model) computeTypeExpr(e syntax.Expr, sc *scope) types.Type {
	switch e := e.(type) {
	case *syntax.NoneLiteral:
		return m.none()
	case *syntax.StringLiteral:
		parsed, err := runtime.ParseExpression(context.Background(), e.Value)
		if err != nil {
			return m.in.Unknown()
		}
		return m.typeExpr(parsed, sc)
	case *syntax.BinOp:
		if e.Op == "|" {
			return m.in.Union(m.typeExpr(e.Left, sc), m.typeExpr(e.Right, sc))
		}
	case *syntax.Name, *syntax.Attribute:
		return m.typeFromValue(m.valueIn(e, sc), sc)
	case *syntax.Subscript:
		return m.subscriptType(e, sc)
	}
	return m.in.Unknown()
}

// valueIn evaluates e as a value. Names the binder never saw, such as
// those inside string annotations, are looked up in sc.
func (m *Model) valueIn(e syntax.Expr, sc *scope) types.Type {
	if n, ok := e.(*syntax.Name); ok {
		if _, bound := m.b.names[n]; !bound {
			t, ok := m.lookup(n.ID, sc, ^uint32(0))
			if !ok {
				return m.in.Unknown()
			}
			return t
		}
	}
	if a, ok := e.(*syntax.Attribute); ok {
		if t, ok := m.member(m.valueIn(a.Value, sc), a.Attr.ID); ok {
			return t
		}
		return m.in.Unknown()
	}
	return m.expr(e)
}

// typeFromValue converts the runtime value of a type expression into the
// type it denotes.
func (m *Model) typeFromValue(v types.Type, sc *scope) types.Type {
	switch v := v.(type) {
	case *types.ClassLiteral:
		return m.instance(v.Class)
	case *types.GenericAlias:
		return m.instance(v.Class, v.Args...)
	case *types.SpecialForm:
		return m.bareForm(formName(v), sc)
	case *types.TypeVar, *types.NewType, *types.Dynamic:
		return v
	case *types.TypeAlias:
		return v.Value()
	case *types.Other:
		if t, ok := m.p.typeForms[v]; ok {
			return t
		}
	case *types.Instance:
		if v.Class.Is("builtins", "NoneType") {
			return v
		}
	}
	return m.in.Unknown()
}

// bareForm is a special form used without subscript.
func (m *Model) bareForm(name string, sc *scope) types.Type {
	switch name {
	case "Any":
		return m.in.Any()
	case "Never", "NoReturn":
		return m.in.Never()
	case "LiteralString":
		return m.in.LiteralString()
	case "Self":
		if c := m.enclosingClass(sc); c != nil {
			return m.selfInstance(c)
		}
	case "Callable":
		return m.in.Callable(m.in.GradualSignature())
	}
	if builtin, ok := aliasClasses[name]; ok {
		return m.instanceOf(builtin)
	}
	return m.in.Unknown()
}

func (m *Model) subscriptType(e *syntax.Subscript, sc *scope) types.Type {
	args := sliceElems(e.Slice)
	typed := func() []types.Type {
		out := make([]types.Type, len(args))
		for i, a := range args {
			out[i] = m.typeExpr(a, sc)
		}
		return out
	}
	first := func() types.Type {
		if len(args) == 0 {
			return m.in.Unknown()
		}
		return m.typeExpr(args[0], sc)
	}

	switch v := m.valueIn(e.Value, sc).(type) {
	case *types.SpecialForm:
		name := formName(v)
		switch name {
		case "Optional":
			return m.in.Union(first(), m.none())
		case "Union":
			return m.in.Union(typed()...)
		case "Literal":
			return m.literalTypes(args, sc)
		case "Callable":
			return m.callableType(args, sc)
		case "Annotated", "ClassVar", "Final", "Required", "NotRequired", "ReadOnly", "Unpack":
			return first()
		case "Type":
			return m.subclassOf(first())
		case "TypeGuard":
			return m.in.TypeGuard(first())
		case "TypeIs":
			return m.in.TypeIs(first())
		case "Tuple":
			return m.tupleType(args, sc)
		}
		if builtin, ok := aliasClasses[name]; ok {
			return m.instanceOf(builtin, typed()...)
		}
	case *types.ClassLiteral:
		switch {
		case m.isTuple(v.Class):
			return m.tupleType(args, sc)
		case v.Class.Is("builtins", "type"):
			return m.subclassOf(first())
		}
		return m.instance(v.Class, typed()...)
	case *types.TypeAlias:
		return m.in.Apply(v.Value(), types.NewSpecialization(m.p.aliases[v], typed()))
	case *types.GenericAlias:
		base := m.instance(v.Class, v.Args...)
		return m.in.Apply(base, types.NewSpecialization(types.CollectTypeVars(nil, base), typed()))
	case *types.Other:
		if base, ok := m.p.typeForms[v]; ok {
			return m.in.Apply(base, types.NewSpecialization(types.CollectTypeVars(nil, base), typed()))
		}
	case *types.Dynamic:
		return v
	}
	return m.in.Unknown()
}

// subclassOf is type[t], distributed over unions.
func (m *Model) subclassOf(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.Instance, *types.TypeVar, *types.Dynamic:
		return m.in.SubclassOf(t)
	case *types.Union:
		out := make([]types.Type, len(t.Members))
		for i, u := range t.Members {
			out[i] = m.subclassOf(u)
		}
		return m.in.Union(out...)
	}
	return m.in.Unknown()
}

func (m *Model) literalTypes(args []syntax.Expr, sc *scope) types.Type {
	out := make([]types.Type, 0, len(args))
	for _, a := range args {
		switch a := a.(type) {
		case *syntax.StringLiteral:
			out = append(out, m.in.StringLiteral(a.Value))
		case *syntax.BytesLiteral:
			out = append(out, m.in.BytesLiteral(a.Value))
		case *syntax.BooleanLiteral:
			out = append(out, m.in.BoolLiteral(a.Value))
		case *syntax.NoneLiteral:
			out = append(out, m.none())
		case *syntax.NumberLiteral:
			if a.IntOK {
				out = append(out, m.in.IntLiteral(a.Int))
			} else {
				out = append(out, m.in.Unknown())
			}
		case *syntax.UnaryOp:
			if n, ok := a.Operand.(*syntax.NumberLiteral); ok && a.Op == "-" && n.IntOK {
				out = append(out, m.in.IntLiteral(-n.Int))
			} else {
				out = append(out, m.in.Unknown())
			}
		case *syntax.Attribute:
			if lit, ok := m.valueIn(a, sc).(*types.EnumLiteral); ok {
				out = append(out, lit)
			} else {
				out = append(out, m.in.Unknown())
			}
		case *syntax.Subscript:
			out = append(out, m.typeExpr(a, sc))
		default:
			out = append(out, m.in.Unknown())
		}
	}
	return m.in.Union(out...)
}

func (m *Model) callableType(args []syntax.Expr, sc *scope) types.Type {
	if len(args) != 2 {
		return m.in.Callable(m.in.GradualSignature())
	}
	sig := &types.Signature{Return: m.typeExpr(args[1], sc)}
	switch ps := args[0].(type) {
	case *syntax.List:
		for _, p := range ps.Elts {
			sig.Params = append(sig.Params, types.Parameter{Kind: types.PositionalOnly, Annotated: m.typeExpr(p, sc)})
		}
	default:
		sig.Params = m.in.GradualSignature().Params
	}
	return m.in.Callable(sig)
}

func (m *Model) tupleType(args []syntax.Expr, sc *scope) types.Type {
	c := m.p.class("builtins", "tuple")
	if c == nil {
		return m.in.Unknown()
	}
	if len(args) == 2 {
		if _, ok := args[1].(*syntax.EllipsisLiteral); ok {
			return m.in.VariadicTuple(c, m.typeExpr(args[0], sc))
		}
	}
	ts := make([]types.Type, len(args))
	for i, a := range args {
		ts[i] = m.typeExpr(a, sc)
	}
	return m.in.Instance(c, ts...)
}

// sliceElems splits a subscript's slice into its arguments. "x[()]" has
// none.
func sliceElems(e syntax.Expr) []syntax.Expr {
	if t, ok := e.(*syntax.Tuple); ok {
		return t.Elts
	}
	return []syntax.Expr{e}
}

// isTypeForm reports whether a runtime value can take part in "X | Y".
func (m *Model) isTypeForm(t types.Type) bool {
	switch t := t.(type) {
	case *types.ClassLiteral, *types.GenericAlias, *types.SpecialForm, *types.TypeAlias, *types.TypeVar:
		return true
	case *types.Other:
		_, ok := m.p.typeForms[t]
		return ok
	case *types.Instance:
		return t.Class.Is("builtins", "NoneType")
	}
	return false
}

// typeForm wraps a type denoted at runtime by a typing construct that has
// no class of its own, remembering what it denotes.
func (m *Model) typeForm(t types.Type) types.Type {
	label := "<special form '" + types.Display(t) + "'>"
	if _, ok := t.(*types.Union); ok {
		label = "<types.UnionType special form '" + types.Display(t) + "'>"
	}
	o := m.in.Other(label)
	m.p.typeForms[o] = t
	return o
}

// scopeIn replaces raw legacy type variables with the variables of the
// generic function or class that binds them, innermost first.
func (m *Model) scopeIn(t types.Type, sc *scope) types.Type {
	if t == nil || !hasRawVars(t) {
		return t
	}
	for s := sc; s != nil; s = s.parent {
		switch n := s.node.(type) {
		case *syntax.FunctionDef:
			if s.kind == functionScope {
				t = m.in.Apply(t, m.funcLegacy(n))
			}
		case *syntax.ClassDef:
			if s.kind == classScope {
				t = m.in.Apply(t, m.classLegacy(n))
			}
		}
		if !hasRawVars(t) {
			break
		}
	}
	return t
}

func isRaw(tv *types.TypeVar) bool { return tv.Legacy && tv.Scope == "" }

func hasRawVars(t types.Type) bool {
	for _, tv := range types.CollectTypeVars(nil, t) {
		if isRaw(tv) {
			return true
		}
	}
	return false
}

// collectRaw appends the raw legacy variables of t that acc lacks.
func collectRaw(acc []*types.TypeVar, t types.Type) []*types.TypeVar {
	for _, tv := range types.CollectTypeVars(nil, t) {
		if !isRaw(tv) {
			continue
		}
		seen := false
		for _, have := range acc {
			if have == tv {
				seen = true
				break
			}
		}
		if !seen {
			acc = append(acc, tv)
		}
	}
	return acc
}

// enclosingClass is the class whose body sc is, or is nested in.
func (m *Model) enclosingClass(sc *scope) *types.Class {
	for s := sc; s != nil; s = s.parent {
		if s.kind == classScope {
			return m.classOf(s.node.(*syntax.ClassDef))
		}
	}
	return nil
}
