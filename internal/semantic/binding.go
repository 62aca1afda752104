package semantic

import (
	"slices"

	"github.com/jward/typewire/internal/types"
)

// bindOptions adjust how a signature is matched. receiver is unified with
// the first parameter, which is then dropped. promote lists variables
// whose solutions are widened from literals, as constructors do.
type bindOptions struct {
	receiver types.Type
	promote  []*types.TypeVar
}

// bindCallee matches args against every overload of callee. It returns nil
// when callee is not callable.
func (m *Model) bindCallee(callee types.Type, args []types.Argument) []types.Binding {
	switch c := callee.(type) {
	case *types.Dynamic:
		return m.gradual(c)
	case *types.Never:
		return m.gradual(c)
	case *types.Function:
		out := make([]types.Binding, 0, 1)
		for _, sig := range c.Overloads() {
			out = append(out, m.bindSignature(sig, args, bindOptions{}))
		}
		return out
	case *types.BoundMethod:
		return m.bindMethod(c, args)
	case *types.Callable:
		return []types.Binding{m.bindSignature(c.Signature, args, bindOptions{})}
	case *types.Union:
		var out []types.Binding
		for _, u := range c.Members {
			out = append(out, m.bindCallee(u, args)...)
		}
		return out
	case *types.ClassLiteral:
		return m.construct(c.Class, nil, args)
	case *types.GenericAlias:
		return m.construct(c.Class, c.Args, args)
	case *types.SubclassOf:
		switch base := c.Base.(type) {
		case *types.Instance:
			return m.construct(base.Class, base.Args, args)
		case *types.TypeVar:
			if base.Bound != nil {
				return m.bindCallee(m.subclassOf(base.Bound), args)
			}
		}
		return m.gradual(m.in.Unknown())
	case *types.Instance:
		if call, ok := m.instanceMember(c, "__call__"); ok {
			return m.bindCallee(call, args)
		}
	case *types.TypeVar:
		if c.Bound != nil {
			return m.bindCallee(c.Bound, args)
		}
	case *types.NewType:
		sig := &types.Signature{
			Params: []types.Parameter{{Name: "item", Kind: types.PositionalOnly, Annotated: c.Base}},
			Return: c,
		}
		return []types.Binding{m.bindSignature(sig, args, bindOptions{})}
	}
	return nil
}

// gradual is the binding of a callee that accepts anything and returns ret.
func (m *Model) gradual(ret types.Type) []types.Binding {
	sig := *m.in.GradualSignature()
	sig.Return = ret
	return []types.Binding{{Signature: &sig, Matched: true, Return: ret}}
}

// bindMethod views each overload through the receiver: the receiver's
// specialization of the owning class is applied, and an unspecialized
// owner contributes its own type parameters to the solve.
func (m *Model) bindMethod(bm *types.BoundMethod, args []types.Argument) []types.Binding {
	f := bm.Func
	var spec *types.Specialization
	var extra []*types.TypeVar
	if f.Owner != nil {
		if inst, ok := m.receiverInstance(bm.Self); ok && inMRO(inst.Class, f.Owner) {
			spec = m.specFor(inst, f.Owner)
		}
		if spec == nil {
			extra = f.Owner.TypeParams()
		}
	}
	opts := bindOptions{}
	if !f.HasFlag(types.FuncStaticMethod) {
		opts.receiver = bm.Self
	}
	out := make([]types.Binding, 0, 1)
	for _, sig := range f.Overloads() {
		view := m.in.ApplySignature(sig, spec)
		if len(extra) > 0 {
			v := *view
			v.TypeParams = append(slices.Clone(extra), view.TypeParams...)
			view = &v
		}
		out = append(out, m.bindSignature(view, args, opts))
	}
	return out
}

func (m *Model) receiverInstance(t types.Type) (*types.Instance, bool) {
	switch t := t.(type) {
	case *types.GenericAlias:
		return m.in.Instance(t.Class, t.Args...), true
	case *types.SubclassOf:
		inst, ok := t.Base.(*types.Instance)
		return inst, ok
	case *types.ClassLiteral:
		return nil, false
	}
	return m.asInstance(t)
}

// construct binds a call of class c. Without explicit type arguments the
// class's parameters are solved from the arguments of __init__.
func (m *Model) construct(c *types.Class, explicit []types.Type, args []types.Argument) []types.Binding {
	if c.HasDynamicBase() || c.HasFlag(types.ClassTypedDict) {
		return m.gradual(m.instance(c, explicit...))
	}
	if c.HasFlag(types.ClassEnum) {
		return m.gradual(m.instance(c))
	}
	params := c.TypeParams()
	var self types.Type
	var promote []*types.TypeVar
	if explicit != nil {
		self = m.instance(c, explicit...)
	} else {
		self = m.selfInstance(c)
		promote = params
	}
	inst, _ := self.(*types.Instance)

	for _, k := range c.MRO() {
		raw, ok := k.Member("__init__")
		if !ok {
			continue
		}
		if k.Is("builtins", "object") {
			break
		}
		f, ok := raw.(*types.Function)
		if !ok {
			return m.gradual(self)
		}
		var spec *types.Specialization
		if inst != nil && (explicit != nil || k != c) {
			spec = m.specFor(inst, k)
		}
		out := make([]types.Binding, 0, 1)
		for _, sig := range f.Overloads() {
			view := *m.in.ApplySignature(sig, spec).DropFirst()
			view.Return = self
			if explicit == nil {
				view.TypeParams = append(slices.Clone(view.TypeParams), params...)
			}
			out = append(out, m.bindSignature(&view, args, bindOptions{promote: promote}))
		}
		return out
	}
	sig := &types.Signature{Return: self}
	if explicit == nil {
		sig.TypeParams = params
	}
	return []types.Binding{m.bindSignature(sig, args, bindOptions{promote: promote})}
}

// solver collects candidate solutions for the variables of one binding.
type solver struct {
	vars  []*types.TypeVar
	cands map[*types.TypeVar][]types.Type
}

func newSolver(vars []*types.TypeVar) *solver {
	return &solver{vars: vars, cands: make(map[*types.TypeVar][]types.Type)}
}

func (s *solver) add(tv *types.TypeVar, t types.Type) {
	if slices.Contains(s.vars, tv) {
		s.cands[tv] = append(s.cands[tv], t)
	}
}

type pairing struct {
	param int
	arg   types.Type
}

func positional(k types.ParamKind) bool {
	return k == types.PositionalOnly || k == types.PositionalOrKeyword
}

// bindSignature matches args against sig, solves its type variables and
// checks that every argument is assignable to its parameter.
func (m *Model) bindSignature(sig *types.Signature, args []types.Argument, opts bindOptions) types.Binding {
	b := types.Binding{Signature: sig, Matched: true}
	sol := newSolver(sig.TypeParams)
	params := sig.Params
	if opts.receiver != nil && len(params) > 0 && positional(params[0].Kind) {
		m.unify(params[0].Annotated, opts.receiver, sol)
		b.Signature = sig.DropFirst()
		params = b.Signature.Params
	}

	variadic, kwVariadic := -1, -1
	for i, p := range params {
		switch p.Kind {
		case types.Variadic:
			variadic = i
		case types.KeywordVariadic:
			kwVariadic = i
		}
	}

	var pairs []pairing
	bound := make([]bool, len(params))
	lenient := false
	pos := 0
	for _, a := range args {
		switch a.Kind {
		case types.ArgPositional:
			if pos < len(params) && positional(params[pos].Kind) {
				bound[pos] = true
				pairs = append(pairs, pairing{pos, a.Type})
				pos++
				continue
			}
			if variadic >= 0 {
				pairs = append(pairs, pairing{variadic, a.Type})
				continue
			}
			b.Matched = false
		case types.ArgKeyword:
			idx := -1
			for i, p := range params {
				if p.Name == a.Name && (p.Kind == types.PositionalOrKeyword || p.Kind == types.KeywordOnly) {
					idx = i
					break
				}
			}
			switch {
			case idx >= 0:
				if bound[idx] && !lenient {
					b.Matched = false
				}
				bound[idx] = true
				pairs = append(pairs, pairing{idx, a.Type})
			case kwVariadic >= 0:
				pairs = append(pairs, pairing{kwVariadic, a.Type})
			default:
				b.Matched = false
			}
		case types.ArgStarred:
			lenient = true
			for ; pos < len(params) && positional(params[pos].Kind); pos++ {
				if !bound[pos] {
					bound[pos] = true
					pairs = append(pairs, pairing{pos, a.Type})
				}
			}
			if variadic >= 0 {
				pairs = append(pairs, pairing{variadic, a.Type})
			}
		case types.ArgDoubleStarred:
			lenient = true
			value := m.mappingValue(a.Type)
			for i, p := range params {
				if !bound[i] && (p.Kind == types.PositionalOrKeyword || p.Kind == types.KeywordOnly) {
					bound[i] = true
					pairs = append(pairs, pairing{i, value})
				}
			}
			if kwVariadic >= 0 {
				pairs = append(pairs, pairing{kwVariadic, value})
			}
		}
	}
	if !lenient {
		for i, p := range params {
			if !bound[i] && !p.HasDefault() && p.Kind != types.Variadic && p.Kind != types.KeywordVariadic {
				b.Matched = false
			}
		}
	}

	for _, pr := range pairs {
		m.unify(params[pr.param].Annotated, pr.arg, sol)
	}
	spec, ok := m.solve(sol, opts.promote)
	if !ok {
		b.Matched = false
	}
	for _, pr := range pairs {
		if !m.assignable(pr.arg, m.in.Apply(params[pr.param].Annotated, spec)) {
			b.Matched = false
		}
	}
	b.Specialization = spec
	b.Return = m.in.Apply(sig.Return, spec)
	if b.Return == nil {
		b.Return = m.in.Unknown()
	}
	return b
}

// mappingValue is the value type of a mapping passed as **kwargs.
func (m *Model) mappingValue(t types.Type) types.Type {
	inst, ok := m.asInstance(t)
	if !ok {
		return m.in.Unknown()
	}
	if mapping := m.p.class("typing", "Mapping"); mapping != nil {
		if args, ok := m.upcast(inst, mapping); ok && len(args) == 2 {
			return args[1]
		}
	}
	return m.in.Unknown()
}

// unify records what arg implies for the variables free in param.
func (m *Model) unify(param, arg types.Type, sol *solver) {
	if param == nil || arg == nil || !types.Contains(param, sol.vars) {
		return
	}
	switch p := param.(type) {
	case *types.TypeVar:
		sol.add(p, arg)
	case *types.Union:
		for _, u := range p.Members {
			if !types.Contains(u, sol.vars) && m.assignable(arg, u) {
				return
			}
		}
		if au, ok := arg.(*types.Union); ok {
			for _, a := range au.Members {
				m.unify(p, a, sol)
			}
			return
		}
		for _, u := range p.Members {
			if types.Contains(u, sol.vars) {
				m.unify(u, arg, sol)
			}
		}
	case *types.Instance:
		if au, ok := arg.(*types.Union); ok {
			for _, a := range au.Members {
				m.unify(p, a, sol)
			}
			return
		}
		ai, ok := m.asInstance(arg)
		if !ok {
			return
		}
		if m.isTuple(p.Class) && m.isTuple(ai.Class) {
			switch {
			case p.Variadic:
				m.unify(p.Args[0], m.tupleElem(ai), sol)
			case ai.Variadic:
				for _, pa := range p.Args {
					m.unify(pa, ai.Args[0], sol)
				}
			case len(p.Args) == len(ai.Args):
				for i := range p.Args {
					m.unify(p.Args[i], ai.Args[i], sol)
				}
			}
			return
		}
		args, ok := m.upcast(ai, p.Class)
		if !ok {
			return
		}
		for i := range p.Args {
			if i < len(args) {
				m.unify(p.Args[i], args[i], sol)
			}
		}
	case *types.SubclassOf:
		switch a := arg.(type) {
		case *types.ClassLiteral:
			m.unify(p.Base, m.instance(a.Class), sol)
		case *types.GenericAlias:
			m.unify(p.Base, m.instance(a.Class, a.Args...), sol)
		case *types.SubclassOf:
			m.unify(p.Base, a.Base, sol)
		}
	case *types.Callable:
		asig := m.callableSignature(arg)
		if asig == nil {
			return
		}
		for i, pp := range p.Signature.Params {
			if i < len(asig.Params) {
				m.unify(pp.Annotated, asig.Params[i].Annotated, sol)
			}
		}
		m.unify(p.Signature.Return, asig.Return, sol)
	case *types.TypeIs:
		if a, ok := arg.(*types.TypeIs); ok {
			m.unify(p.Narrowed, a.Narrowed, sol)
		}
	case *types.TypeGuard:
		if a, ok := arg.(*types.TypeGuard); ok {
			m.unify(p.Guarded, a.Guarded, sol)
		}
	}
}

// callableSignature is the signature a callable value presents when
// passed where a Callable is expected.
func (m *Model) callableSignature(t types.Type) *types.Signature {
	switch t := t.(type) {
	case *types.Function:
		return t.Signature()
	case *types.BoundMethod:
		if t.Func.HasFlag(types.FuncStaticMethod) {
			return t.Func.Signature()
		}
		return t.Func.Signature().DropFirst()
	case *types.Callable:
		return t.Signature
	case *types.ClassLiteral:
		sig := *m.in.GradualSignature()
		sig.Return = m.instance(t.Class)
		return &sig
	}
	return nil
}

// solve picks one type per variable: the union of its candidates, widened
// where asked, then checked against its bound or narrowed to the first
// constraint that accepts it. Unsolved variables become Unknown.
func (m *Model) solve(sol *solver, promote []*types.TypeVar) (*types.Specialization, bool) {
	if len(sol.vars) == 0 {
		return nil, true
	}
	ok := true
	ts := make([]types.Type, len(sol.vars))
	for i, tv := range sol.vars {
		cands := sol.cands[tv]
		if len(cands) == 0 {
			ts[i] = m.in.Unknown()
			continue
		}
		t := m.in.Union(cands...)
		if slices.Contains(promote, tv) {
			t = m.promote(t)
		}
		switch {
		case len(tv.Constraints) > 0:
			var pick types.Type
			for _, c := range tv.Constraints {
				if m.assignable(t, c) {
					pick = c
					break
				}
			}
			if pick == nil {
				ok = false
				pick = m.in.Unknown()
			}
			t = pick
		case tv.Bound != nil:
			if !m.assignable(t, tv.Bound) {
				ok = false
			}
		}
		ts[i] = t
	}
	return types.NewSpecialization(sol.vars, ts), ok
}

// assignable reports whether a value of type from may be passed where to
// is expected. Gradual types are assignable both ways.
func (m *Model) assignable(from, to types.Type) bool {
	return m.assignableDepth(from, to, 0)
}

func (m *Model) assignableDepth(from, to types.Type, depth int) bool {
	if from == to || depth > 16 {
		return true
	}
	if types.IsDynamic(from) || types.IsDynamic(to) || types.IsNever(from) {
		return true
	}
	switch f := from.(type) {
	case *types.Union:
		for _, u := range f.Members {
			if !m.assignableDepth(u, to, depth+1) {
				return false
			}
		}
		return true
	case *types.TypeVar:
		if _, ok := to.(*types.TypeVar); ok {
			return false
		}
		switch {
		case f.Bound != nil:
			return m.assignableDepth(f.Bound, to, depth+1)
		case len(f.Constraints) > 0:
			for _, c := range f.Constraints {
				if !m.assignableDepth(c, to, depth+1) {
					return false
				}
			}
			return true
		}
		return m.assignableDepth(m.instanceOf("object"), to, depth+1)
	case *types.NewType:
		if _, ok := to.(*types.NewType); ok {
			return false
		}
		return m.assignableDepth(f.Base, to, depth+1)
	}

	switch t := to.(type) {
	case *types.Union:
		for _, u := range t.Members {
			if m.assignableDepth(from, u, depth+1) {
				return true
			}
		}
		return false
	case *types.TypeVar:
		if t.Bound != nil {
			return m.assignableDepth(from, t.Bound, depth+1)
		}
		return true
	case *types.Instance:
		if t.Class.Is("builtins", "object") {
			return true
		}
		return m.instanceAssignable(from, t, depth)
	case *types.TypedDict:
		switch f := from.(type) {
		case *types.TypedDict:
			return inMRO(f.Class, t.Class)
		case *types.Instance:
			return f.Class.Is("builtins", "dict")
		}
		return false
	case *types.SubclassOf:
		switch f := from.(type) {
		case *types.ClassLiteral:
			return m.assignableDepth(m.instance(f.Class), t.Base, depth+1)
		case *types.GenericAlias:
			return m.assignableDepth(m.instance(f.Class, f.Args...), t.Base, depth+1)
		case *types.SubclassOf:
			return m.assignableDepth(f.Base, t.Base, depth+1)
		}
		return false
	case *types.Callable:
		switch f := from.(type) {
		case *types.Function, *types.BoundMethod, *types.Callable, *types.ClassLiteral, *types.GenericAlias:
			return true
		case *types.Instance:
			_, ok := m.instanceMember(f, "__call__")
			return ok
		}
		return false
	case *types.LiteralString:
		switch from.(type) {
		case *types.StringLiteral, *types.LiteralString:
			return true
		}
		return false
	case *types.IntLiteral, *types.BoolLiteral, *types.StringLiteral, *types.BytesLiteral, *types.EnumLiteral:
		return false
	case *types.TypeIs:
		f, ok := from.(*types.TypeIs)
		return ok && m.assignableDepth(f.Narrowed, t.Narrowed, depth+1)
	case *types.TypeGuard:
		f, ok := from.(*types.TypeGuard)
		return ok && m.assignableDepth(f.Guarded, t.Guarded, depth+1)
	}
	return true
}

func (m *Model) instanceAssignable(from types.Type, to *types.Instance, depth int) bool {
	switch from.(type) {
	case *types.ClassLiteral, *types.GenericAlias, *types.SubclassOf:
		tc := m.p.class("builtins", "type")
		return tc != nil && inMRO(tc, to.Class)
	case *types.Function, *types.BoundMethod, *types.Callable:
		return to.Class.Is("builtins", "function") || to.Class.HasFlag(types.ClassProtocol)
	}
	fi, ok := m.asInstance(from)
	if !ok {
		return false
	}
	if fi.Class.HasDynamicBase() {
		return true
	}
	switch {
	case to.Class.Is("builtins", "float") && fi.Class.InheritsFrom("builtins", "int"):
		return true
	case to.Class.Is("builtins", "complex") && (fi.Class.InheritsFrom("builtins", "int") || fi.Class.InheritsFrom("builtins", "float")):
		return true
	}
	if m.isTuple(to.Class) && m.isTuple(fi.Class) {
		switch {
		case to.Variadic:
			return m.assignableDepth(m.tupleElem(fi), to.Args[0], depth+1)
		case fi.Variadic || len(fi.Args) != len(to.Args):
			return false
		}
		for i := range to.Args {
			if !m.assignableDepth(fi.Args[i], to.Args[i], depth+1) {
				return false
			}
		}
		return true
	}
	if inMRO(fi.Class, to.Class) {
		args, ok := m.upcast(fi, to.Class)
		if !ok {
			return true
		}
		for i, ta := range to.Args {
			if i < len(args) && !m.assignableDepth(args[i], ta, depth+1) {
				return false
			}
		}
		return true
	}
	if to.Class.HasFlag(types.ClassProtocol) {
		return m.satisfies(fi, to.Class)
	}
	return false
}

// protocolExempt are names every class has, which a protocol does not
// require of its implementations.
var protocolExempt = map[string]bool{
	"__init__":           true,
	"__new__":            true,
	"__slots__":          true,
	"__doc__":            true,
	"__module__":         true,
	"__annotations__":    true,
	"__class_getitem__":  true,
	"__init_subclass__":  true,
	"__subclasshook__":   true,
	"__protocol_attrs__": true,
}

// satisfies checks structurally that inst has every member proto and its
// protocol ancestors declare.
func (m *Model) satisfies(inst *types.Instance, proto *types.Class) bool {
	for _, k := range proto.MRO() {
		if !k.HasFlag(types.ClassProtocol) {
			continue
		}
		for _, member := range k.Members() {
			if protocolExempt[member.Name] {
				continue
			}
			if _, ok := m.instanceMember(inst, member.Name); !ok {
				return false
			}
		}
	}
	return true
}
