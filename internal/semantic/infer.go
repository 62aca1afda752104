package semantic

import (
	"math"

	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

var binaryDunders = map[string]string{
	"+":  "add",
	"-":  "sub",
	"*":  "mul",
	"/":  "truediv",
	"//": "floordiv",
	"%":  "mod",
	"**": "pow",
	"@":  "matmul",
	"&":  "and",
	"|":  "or",
	"^":  "xor",
	"<<": "lshift",
	">>": "rshift",
}

var unaryDunders = map[string]string{
	"-": "__neg__",
	"+": "__pos__",
	"~": "__invert__",
}

// expr infers the value type of an expression.
func (m *Model) expr(e syntax.Expr) types.Type {
	if e == nil {
		return m.in.Unknown()
	}
	return m.exprs.get(e, m.in.Unknown(), func() types.Type {
		t := m.inferExpr(e)
		if t == nil {
			return m.in.Unknown()
		}
		return t
	})
}

func (m *Model) inferExpr(e syntax.Expr) types.Type {
	switch e := e.(type) {
	case *syntax.Name:
		return m.name(e)
	case *syntax.NumberLiteral:
		switch {
		case e.Complex:
			return m.instanceOf("complex")
		case e.Float:
			return m.instanceOf("float")
		case e.IntOK:
			return m.in.IntLiteral(e.Int)
		}
		return m.instanceOf("int")
	case *syntax.StringLiteral:
		return m.in.StringLiteral(e.Value)
	case *syntax.BytesLiteral:
		return m.in.BytesLiteral(e.Value)
	case *syntax.FString:
		return m.instanceOf("str")
	case *syntax.BooleanLiteral:
		return m.in.BoolLiteral(e.Value)
	case *syntax.NoneLiteral:
		return m.none()
	case *syntax.EllipsisLiteral:
		return m.instanceOf("ellipsis")
	case *syntax.List:
		return m.instanceOf("list", m.promote(m.elements(e.Elts)))
	case *syntax.Set:
		return m.instanceOf("set", m.promote(m.elements(e.Elts)))
	case *syntax.Tuple:
		return m.tuple(e.Elts)
	case *syntax.Dict:
		return m.dict(e)
	case *syntax.ListComp:
		return m.instanceOf("list", m.promote(m.expr(e.Elt)))
	case *syntax.SetComp:
		return m.instanceOf("set", m.promote(m.expr(e.Elt)))
	case *syntax.DictComp:
		return m.instanceOf("dict", m.promote(m.expr(e.Key)), m.promote(m.expr(e.Value)))
	case *syntax.Generator:
		none := m.none()
		return m.typingInstance("Generator", m.promote(m.expr(e.Elt)), none, none)
	case *syntax.Lambda:
		return m.lambda(e)
	case *syntax.Await:
		return m.await(m.expr(e.Value))
	case *syntax.Compare:
		return m.instanceOf("bool")
	case *syntax.BoolOp:
		ts := make([]types.Type, len(e.Values))
		for i, v := range e.Values {
			ts[i] = m.expr(v)
		}
		return m.in.Union(ts...)
	case *syntax.IfExp:
		return m.in.Union(m.expr(e.Body), m.expr(e.Orelse))
	case *syntax.Named:
		return m.expr(e.Value)
	case *syntax.UnaryOp:
		return m.unary(e.Op, m.expr(e.Operand))
	case *syntax.BinOp:
		return m.binary(m.expr(e.Left), e.Op, m.expr(e.Right), false)
	case *syntax.Attribute:
		if t, ok := m.member(m.expr(e.Value), e.Attr.ID); ok {
			return t
		}
	case *syntax.Subscript:
		return m.subscript(e)
	case *syntax.Call:
		return m.call(e)
	case *syntax.Slice:
		return m.instanceOf("slice")
	}
	return m.in.Unknown()
}

func (m *Model) name(e *syntax.Name) types.Type {
	if e.ID == "" {
		return m.in.Unknown()
	}
	if e.Ctx == syntax.Store {
		if d := m.b.defs[e]; d != nil {
			if d.sym.decl != nil {
				return m.defType(d.sym.decl)
			}
			return m.defType(d)
		}
	}
	sc := m.b.names[e]
	t, ok := m.lookup(e.ID, sc, e.Start)
	if !ok {
		return m.in.Unknown()
	}
	return m.scopeIn(t, sc)
}

func (m *Model) elements(elts []syntax.Expr) types.Type {
	if len(elts) == 0 {
		return m.in.Unknown()
	}
	ts := make([]types.Type, 0, len(elts))
	for _, e := range elts {
		if s, ok := e.(*syntax.Starred); ok {
			ts = append(ts, m.iterate(m.expr(s.Value)))
			continue
		}
		ts = append(ts, m.expr(e))
	}
	return m.in.Union(ts...)
}

func (m *Model) tuple(elts []syntax.Expr) types.Type {
	c := m.p.class("builtins", "tuple")
	if c == nil {
		return m.in.Unknown()
	}
	for _, e := range elts {
		if _, ok := e.(*syntax.Starred); ok {
			return m.in.VariadicTuple(c, m.elements(elts))
		}
	}
	ts := make([]types.Type, len(elts))
	for i, e := range elts {
		ts[i] = m.expr(e)
	}
	return m.in.Instance(c, ts...)
}

func (m *Model) dict(e *syntax.Dict) types.Type {
	if len(e.Items) == 0 {
		return m.instanceOf("dict")
	}
	var keys, values []types.Type
	for _, item := range e.Items {
		if item.Key == nil {
			inst, ok := m.expr(item.Value).(*types.Instance)
			if ok && inst.Class.Is("builtins", "dict") && len(inst.Args) == 2 {
				keys = append(keys, inst.Args[0])
				values = append(values, inst.Args[1])
			} else {
				keys = append(keys, m.in.Unknown())
				values = append(values, m.in.Unknown())
			}
			continue
		}
		keys = append(keys, m.expr(item.Key))
		values = append(values, m.expr(item.Value))
	}
	return m.instanceOf("dict", m.promote(m.in.Union(keys...)), m.promote(m.in.Union(values...)))
}

func (m *Model) lambda(e *syntax.Lambda) types.Type {
	params := m.buildParams(e.Params, func(*syntax.Parameter, int, types.ParamKind) types.Type {
		return m.in.Unknown()
	})
	return m.in.Callable(&types.Signature{Params: params, Return: m.expr(e.Body)})
}

// await is the result of awaiting a value of type t.
func (m *Model) await(t types.Type) types.Type {
	if types.IsDynamic(t) {
		return t
	}
	inst, ok := m.asInstance(t)
	if !ok {
		return m.in.Unknown()
	}
	if c := m.p.class("typing", "Awaitable"); c != nil {
		if args, ok := m.upcast(inst, c); ok && len(args) == 1 {
			return args[0]
		}
	}
	return m.in.Unknown()
}

// enter is the value a with statement binds for a context manager.
func (m *Model) enter(t types.Type) types.Type {
	if types.IsDynamic(t) {
		return t
	}
	if r, ok := m.callMethod(t, "__enter__", nil); ok {
		return r
	}
	if r, ok := m.callMethod(t, "__aenter__", nil); ok {
		return m.await(r)
	}
	return m.in.Unknown()
}

// iterate is the element type produced by iterating a value of type t.
func (m *Model) iterate(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.Dynamic:
		return t
	case *types.Union:
		out := make([]types.Type, len(t.Members))
		for i, u := range t.Members {
			out[i] = m.iterate(u)
		}
		return m.in.Union(out...)
	case *types.StringLiteral, *types.LiteralString:
		return m.instanceOf("str")
	case *types.ClassLiteral:
		if t.Class.HasFlag(types.ClassEnum) {
			return m.instance(t.Class)
		}
		return m.in.Unknown()
	case *types.TypedDict:
		return m.instanceOf("str")
	case *types.Instance:
		if m.isTuple(t.Class) {
			if t.Variadic {
				return t.Args[0]
			}
			if len(t.Args) == 0 {
				return m.in.Never()
			}
			return m.in.Union(t.Args...)
		}
	}
	if it, ok := m.callMethod(t, "__iter__", nil); ok {
		if next, ok := m.callMethod(it, "__next__", nil); ok {
			return next
		}
	}
	return m.in.Unknown()
}

func (m *Model) unary(op string, v types.Type) types.Type {
	if types.IsDynamic(v) {
		if op == "not" {
			return m.instanceOf("bool")
		}
		return v
	}
	switch op {
	case "not":
		if b, ok := v.(*types.BoolLiteral); ok {
			return m.in.BoolLiteral(!b.Value)
		}
		return m.instanceOf("bool")
	case "-":
		switch x := v.(type) {
		case *types.IntLiteral:
			if x.Value != math.MinInt64 {
				return m.in.IntLiteral(-x.Value)
			}
		case *types.BoolLiteral:
			return m.in.IntLiteral(-boolInt(x.Value))
		}
	case "+":
		switch x := v.(type) {
		case *types.IntLiteral:
			return x
		case *types.BoolLiteral:
			return m.in.IntLiteral(boolInt(x.Value))
		}
	case "~":
		switch x := v.(type) {
		case *types.IntLiteral:
			return m.in.IntLiteral(^x.Value)
		case *types.BoolLiteral:
			return m.in.IntLiteral(^boolInt(x.Value))
		}
	}
	if u, ok := v.(*types.Union); ok {
		out := make([]types.Type, len(u.Members))
		for i, member := range u.Members {
			out[i] = m.unary(op, member)
		}
		return m.in.Union(out...)
	}
	if r, ok := m.callMethod(v, unaryDunders[op], nil); ok {
		return r
	}
	return m.in.Unknown()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// binary is the result of "l op r". inplace selects the augmented form,
// which tries the in-place dunder first.
func (m *Model) binary(l types.Type, op string, r types.Type, inplace bool) types.Type {
	if t := m.fold(l, op, r); t != nil {
		return t
	}
	if op == "|" && m.isTypeForm(l) && m.isTypeForm(r) {
		return m.typeForm(m.in.Union(m.typeFromValue(l, nil), m.typeFromValue(r, nil)))
	}
	if types.IsDynamic(l) {
		return l
	}
	if types.IsDynamic(r) {
		return r
	}
	if u, ok := l.(*types.Union); ok {
		out := make([]types.Type, len(u.Members))
		for i, member := range u.Members {
			out[i] = m.binary(member, op, r, inplace)
		}
		return m.in.Union(out...)
	}
	name, ok := binaryDunders[op]
	if !ok {
		return m.in.Unknown()
	}
	arg := []types.Argument{{Kind: types.ArgPositional, Type: r}}
	if inplace {
		if t, ok := m.callMethod(l, "__i"+name+"__", arg); ok {
			return t
		}
	}
	if t, ok := m.callMethod(l, "__"+name+"__", arg); ok {
		return t
	}
	if t, ok := m.callMethod(r, "__r"+name+"__", []types.Argument{{Kind: types.ArgPositional, Type: l}}); ok {
		return t
	}
	return m.in.Unknown()
}

// fold evaluates integer and string literal arithmetic. It returns nil when
// the operation does not fold.
func (m *Model) fold(l types.Type, op string, r types.Type) types.Type {
	if a, ok := l.(*types.IntLiteral); ok {
		if b, ok := r.(*types.IntLiteral); ok {
			x, y := a.Value, b.Value
			switch op {
			case "+":
				if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
					return nil
				}
				return m.in.IntLiteral(x + y)
			case "-":
				if (y < 0 && x > math.MaxInt64+y) || (y > 0 && x < math.MinInt64+y) {
					return nil
				}
				return m.in.IntLiteral(x - y)
			case "*":
				if x == 0 || y == 0 {
					return m.in.IntLiteral(0)
				}
				p := x * y
				if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
					return nil
				}
				return m.in.IntLiteral(p)
			}
		}
	}
	if a, ok := l.(*types.StringLiteral); ok && op == "+" {
		if b, ok := r.(*types.StringLiteral); ok {
			return m.in.StringLiteral(a.Value + b.Value)
		}
	}
	return nil
}

// callMethod looks up a method on recv and calls it with args, returning
// the result of the first matching overload.
func (m *Model) callMethod(recv types.Type, name string, args []types.Argument) (types.Type, bool) {
	attr, ok := m.member(recv, name)
	if !ok || types.IsDynamic(attr) {
		return nil, false
	}
	for _, b := range m.bindCallee(attr, args) {
		if b.Matched {
			return b.Return, true
		}
	}
	return nil, false
}

func (m *Model) subscript(e *syntax.Subscript) types.Type {
	v := m.expr(e.Value)
	switch v := v.(type) {
	case *types.Dynamic:
		return v
	case *types.ClassLiteral, *types.SpecialForm, *types.TypeAlias, *types.GenericAlias, *types.Other:
		return m.subscriptForm(v, e)
	case *types.TypedDict:
		if key, ok := m.expr(e.Slice).(*types.StringLiteral); ok {
			for _, f := range v.Class.Fields() {
				if f.Name == key.Value {
					return f.Type
				}
			}
		}
		return m.in.Unknown()
	case *types.Instance:
		if m.isTuple(v.Class) {
			return m.tupleIndex(v, m.expr(e.Slice))
		}
	}
	if t, ok := m.callMethod(v, "__getitem__", []types.Argument{{Kind: types.ArgPositional, Type: m.expr(e.Slice)}}); ok {
		return t
	}
	return m.in.Unknown()
}

// subscriptForm is a subscript whose value is a class or typing construct,
// which produces a generic alias or another type form.
func (m *Model) subscriptForm(v types.Type, e *syntax.Subscript) types.Type {
	sc := m.scopeOf(e)
	if lit, ok := v.(*types.ClassLiteral); ok && !m.isTuple(lit.Class) && !lit.Class.Is("builtins", "type") {
		if lit.Class.HasFlag(types.ClassEnum) {
			return m.instance(lit.Class)
		}
		elts := sliceElems(e.Slice)
		args := make([]types.Type, len(elts))
		for i, el := range elts {
			args[i] = m.scopeIn(m.typeExpr(el, sc), sc)
		}
		return m.in.GenericAlias(lit.Class, m.pad(lit.Class, args)...)
	}
	t := m.scopeIn(m.typeExpr(e, sc), sc)
	if inst, ok := t.(*types.Instance); ok && !inst.Variadic && !m.isTuple(inst.Class) {
		return m.in.GenericAlias(inst.Class, inst.Args...)
	}
	if types.IsDynamic(t) {
		return t
	}
	return m.typeForm(t)
}

func (m *Model) tupleIndex(t *types.Instance, index types.Type) types.Type {
	if t.Variadic {
		if _, ok := index.(*types.Instance); ok && index.(*types.Instance).Class.Is("builtins", "slice") {
			return t
		}
		return t.Args[0]
	}
	if i, ok := index.(*types.IntLiteral); ok {
		idx := i.Value
		if idx < 0 {
			idx += int64(len(t.Args))
		}
		if idx >= 0 && idx < int64(len(t.Args)) {
			return t.Args[idx]
		}
		return m.in.Unknown()
	}
	if inst, ok := index.(*types.Instance); ok && inst.Class.Is("builtins", "slice") {
		return m.in.VariadicTuple(t.Class, m.in.Union(t.Args...))
	}
	if len(t.Args) == 0 {
		return m.in.Unknown()
	}
	return m.in.Union(t.Args...)
}

func (m *Model) call(e *syntax.Call) types.Type {
	callee := m.expr(e.Func)
	switch c := callee.(type) {
	case *types.ClassLiteral:
		switch {
		case c.Class.Is("typing", "TypeVar"), c.Class.Is("typing", "ParamSpec"), c.Class.Is("typing", "TypeVarTuple"):
			return m.legacyTypeVar(e)
		case c.Class.Is("builtins", "type") && e.Arguments != nil && len(e.Arguments.Args) == 1 && len(e.Arguments.Keywords) == 0:
			return m.classOfValue(m.expr(e.Arguments.Args[0]))
		}
	case *types.SpecialForm:
		if c.Name == "typing.NewType" {
			return m.newType(e)
		}
	}
	bs, ok := m.Bindings(e)
	if !ok || len(bs) == 0 {
		return m.in.Unknown()
	}
	for _, b := range bs {
		if b.Matched {
			return b.Return
		}
	}
	return bs[0].Return
}

// classOfValue is type(x) for a value of type t.
func (m *Model) classOfValue(t types.Type) types.Type {
	if inst, ok := m.asInstance(t); ok {
		if len(inst.Args) == 0 || inst.Variadic {
			return m.in.ClassLiteral(inst.Class)
		}
		return m.in.SubclassOf(inst)
	}
	if types.IsDynamic(t) {
		return m.in.SubclassOf(t)
	}
	if tc := m.p.class("builtins", "type"); tc != nil {
		return m.in.ClassLiteral(tc)
	}
	return m.in.Unknown()
}

func (m *Model) legacyTypeVar(e *syntax.Call) types.Type {
	spec := types.TypeVarSpec{Key: m.offsetKey("tv", e.Start), Legacy: true}
	args := e.Arguments
	if args == nil || len(args.Args) == 0 {
		return m.in.Unknown()
	}
	name, ok := args.Args[0].(*syntax.StringLiteral)
	if !ok {
		return m.in.Unknown()
	}
	spec.Name = name.Value
	sc := m.scopeOf(e.Func)
	for _, c := range args.Args[1:] {
		spec.Constraints = append(spec.Constraints, m.typeExpr(c, sc))
	}
	for _, kw := range args.Keywords {
		if kw.Arg == nil {
			continue
		}
		switch kw.Arg.ID {
		case "bound":
			if _, isNone := kw.Value.(*syntax.NoneLiteral); !isNone {
				spec.Bound = m.typeExpr(kw.Value, sc)
			}
		case "covariant":
			if isTrue(kw.Value) {
				spec.Variance = types.Covariant
			}
		case "contravariant":
			if isTrue(kw.Value) {
				spec.Variance = types.Contravariant
			}
		case "infer_variance":
			if isTrue(kw.Value) {
				spec.Variance = types.InferredVariance
			}
		}
	}
	return m.in.TypeVar(spec)
}

func isTrue(e syntax.Expr) bool {
	b, ok := e.(*syntax.BooleanLiteral)
	return ok && b.Value
}

func (m *Model) newType(e *syntax.Call) types.Type {
	args := e.Arguments
	if args == nil || len(args.Args) != 2 {
		return m.in.Unknown()
	}
	name, ok := args.Args[0].(*syntax.StringLiteral)
	if !ok {
		return m.in.Unknown()
	}
	base := m.typeExpr(args.Args[1], m.scopeOf(e.Func))
	return m.in.NewType(m.offsetKey("newtype", e.Start), name.Value, base)
}

// arguments types the actual arguments of a call in source order.
func (m *Model) arguments(a *syntax.Arguments) []types.Argument {
	if a == nil {
		return nil
	}
	var out []types.Argument
	for _, n := range a.InSourceOrder() {
		switch n := n.(type) {
		case *syntax.Starred:
			out = append(out, types.Argument{Kind: types.ArgStarred, Type: m.iterate(m.expr(n.Value))})
		case *syntax.Keyword:
			if n.Arg == nil {
				out = append(out, types.Argument{Kind: types.ArgDoubleStarred, Type: m.expr(n.Value)})
				continue
			}
			out = append(out, types.Argument{Kind: types.ArgKeyword, Name: n.Arg.ID, Type: m.expr(n.Value)})
		case syntax.Expr:
			out = append(out, types.Argument{Kind: types.ArgPositional, Type: m.expr(n)})
		}
	}
	return out
}

// promote widens literal types to the class they are instances of.
func (m *Model) promote(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.IntLiteral:
		return m.instanceOf("int")
	case *types.BoolLiteral:
		return m.instanceOf("bool")
	case *types.StringLiteral, *types.LiteralString:
		return m.instanceOf("str")
	case *types.BytesLiteral:
		return m.instanceOf("bytes")
	case *types.EnumLiteral:
		return m.instance(t.Class)
	case *types.Union:
		out := make([]types.Type, len(t.Members))
		for i, u := range t.Members {
			out[i] = m.promote(u)
		}
		return m.in.Union(out...)
	case *types.Instance:
		// Tuple displays keep their shape; their elements widen.
		if !m.isTuple(t.Class) || len(t.Args) == 0 {
			return t
		}
		if t.Variadic {
			return m.in.VariadicTuple(t.Class, m.promote(t.Args[0]))
		}
		out := make([]types.Type, len(t.Args))
		for i, a := range t.Args {
			out[i] = m.promote(a)
		}
		return m.in.Instance(t.Class, out...)
	}
	return t
}

// asInstance views t as a nominal instance when it has one.
func (m *Model) asInstance(t types.Type) (*types.Instance, bool) {
	switch t := t.(type) {
	case *types.Instance:
		return t, true
	case *types.IntLiteral, *types.BoolLiteral, *types.StringLiteral, *types.LiteralString, *types.BytesLiteral, *types.EnumLiteral:
		inst, ok := m.promote(t).(*types.Instance)
		return inst, ok
	case *types.TypedDict:
		str, object := m.instanceOf("str"), m.instanceOf("object")
		inst, ok := m.instanceOf("dict", str, object).(*types.Instance)
		return inst, ok
	case *types.NewType:
		return m.asInstance(t.Base)
	}
	return nil, false
}

// instance is the type of a value of class c. Missing type arguments are
// Unknown; a bare tuple is tuple[Unknown, ...].
func (m *Model) instance(c *types.Class, args ...types.Type) types.Type {
	if m.isTuple(c) {
		if len(args) == 0 {
			return m.in.VariadicTuple(c, m.in.Unknown())
		}
		return m.in.Instance(c, args...)
	}
	if c.HasFlag(types.ClassTypedDict) {
		return m.in.TypedDict(c)
	}
	return m.in.Instance(c, m.pad(c, args)...)
}

// pad fits args to the number of type parameters of c.
func (m *Model) pad(c *types.Class, args []types.Type) []types.Type {
	n := len(c.TypeParams())
	if n == 0 {
		return nil
	}
	out := make([]types.Type, n)
	for i := range out {
		if i < len(args) {
			out[i] = args[i]
		} else {
			out[i] = m.in.Unknown()
		}
	}
	return out
}

// selfInstance is the instance type of c inside its own body, specialized
// by its own type parameters.
func (m *Model) selfInstance(c *types.Class) types.Type {
	params := c.TypeParams()
	args := make([]types.Type, len(params))
	for i, tv := range params {
		args[i] = tv
	}
	if m.isTuple(c) && len(args) == 1 {
		return m.in.VariadicTuple(c, args[0])
	}
	return m.in.Instance(c, args...)
}

func (m *Model) instanceOf(name string, args ...types.Type) types.Type {
	c := m.p.class("builtins", name)
	if c == nil {
		return m.in.Unknown()
	}
	return m.instance(c, args...)
}

func (m *Model) typingInstance(name string, args ...types.Type) types.Type {
	c := m.p.class("typing", name)
	if c == nil {
		return m.in.Unknown()
	}
	return m.instance(c, args...)
}

func (m *Model) none() types.Type { return m.instanceOf("NoneType") }

func (m *Model) isTuple(c *types.Class) bool { return c.Is("builtins", "tuple") }

// scopeOf finds the scope an expression is evaluated in through the first
// name inside it.
func (m *Model) scopeOf(e syntax.Expr) *scope {
	var found *scope
	syntax.Inspect([]syntax.Stmt{&syntax.ExprStmt{Value: e}}, func(n syntax.Node) bool {
		if found != nil {
			return false
		}
		if name, ok := n.(*syntax.Name); ok {
			found = m.b.names[name]
		}
		return found == nil
	})
	return found
}
