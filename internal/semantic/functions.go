package semantic

import (
	"strings"

	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

// funcValue is the value a def statement binds: the function itself, a
// property, or whatever its other decorators turn it into.
func (m *Model) funcValue(fd *syntax.FunctionDef) types.Type {
	return m.funcs.get(fd, m.in.Unknown(), func() types.Type {
		info := m.b.funcs[fd]
		var flags types.FunctionFlags
		if fd.IsAsync {
			flags |= types.FuncAsync
		}
		var owner *types.Class
		if info.owner != nil {
			owner = m.classOf(info.owner.def)
		}

		var accessor *syntax.Attribute
		var rest []*syntax.Decorator
		for _, d := range fd.Decorators {
			switch decoratorName(d) {
			case "staticmethod":
				flags |= types.FuncStaticMethod
			case "classmethod":
				flags |= types.FuncClassMethod
			case "property", "cached_property":
				flags |= types.FuncProperty
			case "overload":
				flags |= types.FuncOverload
			case "abstractmethod", "final", "override", "unique":
			case "setter", "getter", "deleter":
				if attr, ok := d.Expression.(*syntax.Attribute); ok {
					accessor = attr
					continue
				}
				rest = append(rest, d)
			default:
				rest = append(rest, d)
			}
		}

		f := m.in.Function(types.FunctionSpec{
			Key:    m.offsetKey("fn", fd.Start),
			Name:   fd.Name.ID,
			Module: m.src.Module,
			Owner:  owner,
			Flags:  flags,
			Source: m,
		})
		m.funcNodes[f] = fd

		var t types.Type = f
		switch {
		case accessor != nil:
			prop, ok := m.expr(accessor.Value).(*types.Property)
			if !ok {
				return m.in.Unknown()
			}
			t = prop
		case flags&types.FuncProperty != 0:
			t = m.in.Property(f)
		}
		for i := len(rest) - 1; i >= 0; i-- {
			t = m.decorate(t, rest[i])
		}
		return t
	})
}

// decorate applies one decorator. A decorator the model cannot see
// through makes the result Unknown.
func (m *Model) decorate(t types.Type, d *syntax.Decorator) types.Type {
	dec := m.expr(d.Expression)
	if types.IsDynamic(dec) {
		return m.in.Unknown()
	}
	for _, b := range m.bindCallee(dec, []types.Argument{{Kind: types.ArgPositional, Type: t}}) {
		if b.Matched {
			return b.Return
		}
	}
	return m.in.Unknown()
}

// ResolveSignatures returns the @overload signatures that precede the
// function's implementation, or the function's own signature.
func (m *Model) ResolveSignatures(f *types.Function) []*types.Signature {
	fd, ok := m.funcNodes[f]
	if !ok {
		return nil
	}
	chain := m.overloadChain(fd)
	out := make([]*types.Signature, len(chain))
	for i, c := range chain {
		out[i] = m.signature(c)
	}
	return out
}

func (m *Model) overloadChain(fd *syntax.FunctionDef) []*syntax.FunctionDef {
	var chain []*syntax.FunctionDef
	for p := m.b.funcs[fd].prev; p != nil; p = m.b.funcs[p].prev {
		if !hasDecorator(p, "overload") {
			break
		}
		chain = append([]*syntax.FunctionDef{p}, chain...)
	}
	if len(chain) == 0 || hasDecorator(fd, "overload") {
		chain = append(chain, fd)
	}
	return chain
}

func (m *Model) signature(fd *syntax.FunctionDef) *types.Signature {
	return m.sigs.get(fd, m.in.GradualSignature(), func() *types.Signature {
		info := m.b.funcs[fd]
		sig := &types.Signature{Params: m.paramList(fd)}
		if fd.TypeParams != nil {
			for _, tp := range fd.TypeParams.Params {
				sig.TypeParams = append(sig.TypeParams, m.typeParamVar(tp))
			}
		}
		sig.TypeParams = append(sig.TypeParams, scopedVars(m.funcLegacy(fd))...)
		sig.Return = m.returnType(fd, info)
		return sig
	})
}

// paramList types the formal parameters of fd. An unannotated first
// parameter of a method is the instance, or the class for a classmethod.
func (m *Model) paramList(fd *syntax.FunctionDef) []types.Parameter {
	return m.params.get(fd, nil, func() []types.Parameter {
		info := m.b.funcs[fd]
		implicit := info.owner != nil && !hasDecorator(fd, "staticmethod")
		return m.buildParams(fd.Params, func(p *syntax.Parameter, i int, kind types.ParamKind) types.Type {
			if p.Annotation != nil {
				return m.annotation(p.Annotation)
			}
			if i == 0 && implicit && (kind == types.PositionalOnly || kind == types.PositionalOrKeyword) {
				self := m.selfInstance(m.classOf(info.owner.def))
				if hasDecorator(fd, "classmethod") {
					return m.in.SubclassOf(self)
				}
				return self
			}
			return m.in.Unknown()
		})
	})
}

func (m *Model) buildParams(ps *syntax.Parameters, typeOf func(p *syntax.Parameter, i int, kind types.ParamKind) types.Type) []types.Parameter {
	if ps == nil {
		return nil
	}
	out := make([]types.Parameter, 0, ps.Len())
	add := func(p *syntax.Parameter, def syntax.Expr, kind types.ParamKind) {
		param := types.Parameter{Name: p.Name.ID, Kind: kind, Annotated: typeOf(p, len(out), kind)}
		if def != nil {
			param.Default = m.expr(def)
		}
		out = append(out, param)
	}
	for _, pd := range ps.PosOnly {
		add(pd.Parameter, pd.Default, types.PositionalOnly)
	}
	for _, pd := range ps.Args {
		add(pd.Parameter, pd.Default, types.PositionalOrKeyword)
	}
	if ps.Vararg != nil {
		add(ps.Vararg, nil, types.Variadic)
	}
	for _, pd := range ps.KwOnly {
		add(pd.Parameter, pd.Default, types.KeywordOnly)
	}
	if ps.Kwarg != nil {
		add(ps.Kwarg, nil, types.KeywordVariadic)
	}
	return out
}

// returnType is the declared return type, or else the union of the
// returned values. Stub functions without an annotation return Unknown.
func (m *Model) returnType(fd *syntax.FunctionDef, info *funcInfo) types.Type {
	var r types.Type
	switch {
	case fd.Returns != nil:
		r = m.annotation(fd.Returns)
	case strings.HasSuffix(m.src.Path, ".pyi"):
		r = m.in.Unknown()
	case info.yields:
		u := m.in.Unknown()
		r = m.typingInstance("Generator", u, u, u)
	default:
		var ts []types.Type
		for _, ret := range info.returns {
			if ret.Value == nil {
				ts = append(ts, m.none())
				continue
			}
			ts = append(ts, m.expr(ret.Value))
		}
		if fallsThrough(fd.Body) {
			ts = append(ts, m.none())
		}
		r = m.in.Union(ts...)
	}
	if fd.IsAsync && !info.yields {
		a := m.in.Any()
		return m.typingInstance("Coroutine", a, a, r)
	}
	return r
}

// fallsThrough reports whether control can reach the end of body.
func fallsThrough(body []syntax.Stmt) bool {
	if len(body) == 0 {
		return true
	}
	switch s := body[len(body)-1].(type) {
	case *syntax.Return, *syntax.Raise:
		return false
	case *syntax.If:
		if fallsThrough(s.Body) {
			return true
		}
		hasElse := false
		for _, c := range s.Clauses {
			if c.Test == nil {
				hasElse = true
			}
			if fallsThrough(c.Body) {
				return true
			}
		}
		return !hasElse
	case *syntax.While:
		b, ok := s.Test.(*syntax.BooleanLiteral)
		return !ok || !b.Value
	case *syntax.With:
		return fallsThrough(s.Body)
	case *syntax.Try:
		if len(s.Finalbody) > 0 && !fallsThrough(s.Finalbody) {
			return false
		}
		if fallsThrough(s.Body) && fallsThrough(s.Orelse) {
			return true
		}
		for _, h := range s.Handlers {
			if fallsThrough(h.Body) {
				return true
			}
		}
		return false
	}
	return true
}

// paramType is the type a parameter has inside its function body.
func (m *Model) paramType(p *syntax.Parameter) types.Type {
	fd, ok := m.b.params[p].(*syntax.FunctionDef)
	if !ok {
		return m.in.Unknown()
	}
	idx := flatIndex(fd.Params, p)
	params := m.paramList(fd)
	if idx < 0 || idx >= len(params) {
		return m.in.Unknown()
	}
	param := params[idx]
	switch param.Kind {
	case types.Variadic:
		if c := m.p.class("builtins", "tuple"); c != nil {
			return m.in.VariadicTuple(c, param.Annotated)
		}
		return m.in.Unknown()
	case types.KeywordVariadic:
		return m.instanceOf("dict", m.instanceOf("str"), param.Annotated)
	}
	return param.Annotated
}

func flatIndex(ps *syntax.Parameters, p *syntax.Parameter) int {
	i := 0
	for _, pd := range ps.PosOnly {
		if pd.Parameter == p {
			return i
		}
		i++
	}
	for _, pd := range ps.Args {
		if pd.Parameter == p {
			return i
		}
		i++
	}
	if ps.Vararg != nil {
		if ps.Vararg == p {
			return i
		}
		i++
	}
	for _, pd := range ps.KwOnly {
		if pd.Parameter == p {
			return i
		}
		i++
	}
	if ps.Kwarg == p {
		return i
	}
	return -1
}

// funcLegacy maps the raw legacy variables in a function's annotations to
// variables scoped to the function. Variables an enclosing class or
// function already binds are left to it.
func (m *Model) funcLegacy(fd *syntax.FunctionDef) *types.Specialization {
	return m.funcVars.get(fd, nil, func() *types.Specialization {
		var raws []*types.TypeVar
		visit := func(e syntax.Expr) {
			if e == nil {
				return
			}
			sc := m.b.annots[e]
			raws = collectRaw(raws, m.scopeIn(m.typeExpr(e, sc), sc))
		}
		if ps := fd.Params; ps != nil {
			for _, pd := range ps.PosOnly {
				visit(pd.Parameter.Annotation)
			}
			for _, pd := range ps.Args {
				visit(pd.Parameter.Annotation)
			}
			if ps.Vararg != nil {
				visit(ps.Vararg.Annotation)
			}
			for _, pd := range ps.KwOnly {
				visit(pd.Parameter.Annotation)
			}
			if ps.Kwarg != nil {
				visit(ps.Kwarg.Annotation)
			}
		}
		visit(fd.Returns)
		return m.scopeVars(raws, m.offsetKey("fn", fd.Start), fd.Name.ID)
	})
}
