package semantic

import (
	"strconv"
	"strings"

	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

// classOf returns the class entity of a class statement.
func (m *Model) classOf(cd *syntax.ClassDef) *types.Class {
	if c, ok := m.classes[cd]; ok {
		return c
	}
	c := m.in.Class(m.offsetKey("cls", cd.Start), cd.Name.ID, m.src.Module, m)
	m.classes[cd] = c
	m.classNodes[c] = cd
	m.p.owners[c] = m
	return c
}

// ResolveBases evaluates the class's base list. Generic and Protocol are
// not bases; Protocol and TypedDict only flag the class.
func (m *Model) ResolveBases(c *types.Class) []types.Type {
	cd := m.classNodes[c]
	info := m.b.classes[cd]
	var bases []types.Type
	if cd.Arguments != nil {
		for _, a := range cd.Arguments.Args {
			form := ""
			if sub, ok := a.(*syntax.Subscript); ok {
				form = formName(m.expr(sub.Value))
			} else {
				form = formName(m.expr(a))
			}
			switch form {
			case "Protocol":
				c.SetFlag(types.ClassProtocol)
				continue
			case "Generic":
				continue
			case "TypedDict":
				c.SetFlag(types.ClassTypedDict)
				continue
			}

			bt := m.scopeIn(m.typeExpr(a, info.annot), info.annot)
			bt = m.in.Apply(bt, m.classLegacy(cd))
			switch bt := bt.(type) {
			case *types.Instance:
				if bt.Class == c {
					bases = append(bases, m.in.Unknown())
					continue
				}
				bases = append(bases, bt)
				if bt.Class.Is("enum", "Enum") || bt.Class.HasFlag(types.ClassEnum) {
					c.SetFlag(types.ClassEnum)
				}
			case *types.TypedDict:
				bases = append(bases, m.in.Instance(bt.Class))
				c.SetFlag(types.ClassTypedDict)
			case *types.Dynamic:
				bases = append(bases, bt)
			default:
				bases = append(bases, m.in.Unknown())
			}
		}
		for _, kw := range cd.Arguments.Keywords {
			if kw.Arg == nil {
				continue
			}
			switch kw.Arg.ID {
			case "total":
				if b, ok := kw.Value.(*syntax.BooleanLiteral); ok && !b.Value {
					c.SetFlag(types.ClassNonTotal)
				}
			case "metaclass":
				if meta, ok := m.expr(kw.Value).(*types.ClassLiteral); ok && meta.Class.InheritsFrom("enum", "EnumMeta") {
					c.SetFlag(types.ClassEnum)
				}
			}
		}
	}
	for _, d := range cd.Decorators {
		if decoratorName(d) == "final" {
			c.SetFlag(types.ClassFinal)
		}
	}
	if len(bases) == 0 && !c.Is("builtins", "object") {
		if obj := m.p.class("builtins", "object"); obj != nil {
			bases = append(bases, m.in.Instance(obj))
		}
	}
	return bases
}

// ResolveTypeParams returns PEP 695 parameters when the class declares
// them, and otherwise the legacy variables its bases mention.
func (m *Model) ResolveTypeParams(c *types.Class) []*types.TypeVar {
	cd := m.classNodes[c]
	if cd.TypeParams != nil && len(cd.TypeParams.Params) > 0 {
		out := make([]*types.TypeVar, len(cd.TypeParams.Params))
		for i, tp := range cd.TypeParams.Params {
			out[i] = m.typeParamVar(tp)
		}
		return out
	}
	return scopedVars(m.classLegacy(cd))
}

// classLegacy maps the raw legacy variables of a class header to variables
// scoped to the class. An explicit Generic[...] or Protocol[...] fixes the
// order; otherwise variables are taken in order of first appearance.
func (m *Model) classLegacy(cd *syntax.ClassDef) *types.Specialization {
	return m.classVars.get(cd, nil, func() *types.Specialization {
		if cd.Arguments == nil {
			return nil
		}
		info := m.b.classes[cd]
		var raws []*types.TypeVar
		explicit := false
		for _, a := range cd.Arguments.Args {
			sub, ok := a.(*syntax.Subscript)
			if !ok {
				continue
			}
			switch formName(m.expr(sub.Value)) {
			case "Generic", "Protocol":
				explicit = true
				for _, el := range sliceElems(sub.Slice) {
					raws = collectRaw(raws, m.scopeIn(m.typeExpr(el, info.annot), info.annot))
				}
			}
		}
		if !explicit {
			for _, a := range cd.Arguments.Args {
				raws = collectRaw(raws, m.scopeIn(m.typeExpr(a, info.annot), info.annot))
			}
		}
		return m.scopeVars(raws, m.offsetKey("cls", cd.Start), cd.Name.ID)
	})
}

// scopeVars binds raw legacy variables to the generic owner identified by
// ownerKey.
func (m *Model) scopeVars(raws []*types.TypeVar, ownerKey, ownerName string) *types.Specialization {
	if len(raws) == 0 {
		return nil
	}
	scoped := make([]types.Type, len(raws))
	for i, raw := range raws {
		scoped[i] = m.in.TypeVar(types.TypeVarSpec{
			Key:         strconv.Itoa(types.Serial(raw)) + "@" + ownerKey,
			Name:        raw.Name,
			Scope:       ownerName,
			Variance:    raw.Variance,
			Bound:       raw.Bound,
			Constraints: raw.Constraints,
			Legacy:      true,
		})
	}
	return &types.Specialization{Params: raws, Types: scoped}
}

func scopedVars(s *types.Specialization) []*types.TypeVar {
	if s == nil {
		return nil
	}
	out := make([]*types.TypeVar, len(s.Types))
	for i, t := range s.Types {
		out[i] = t.(*types.TypeVar)
	}
	return out
}

// ResolveMembers lists the names bound in the class body. Plain
// assignments in an enum body are its members.
func (m *Model) ResolveMembers(c *types.Class) []types.Member {
	cd := m.classNodes[c]
	info := m.b.classes[cd]
	enum := c.HasFlag(types.ClassEnum)
	syms := orderedSymbols(info.body)
	out := make([]types.Member, 0, len(syms))
	for _, sym := range syms {
		if enum && isEnumMember(sym) {
			out = append(out, types.Member{Name: sym.name, Type: m.in.EnumLiteral(c, sym.name)})
			continue
		}
		out = append(out, types.Member{Name: sym.name, Type: m.symbolType(sym, false, 0)})
	}
	return out
}

func isEnumMember(sym *symbol) bool {
	if sym.decl != nil || strings.HasPrefix(sym.name, "_") {
		return false
	}
	return sym.defs[len(sym.defs)-1].kind == defAssign
}

// ResolveFields collects TypedDict keys from the class and its TypedDict
// ancestors, base classes first.
func (m *Model) ResolveFields(c *types.Class) []types.TypedDictField {
	var out []types.TypedDictField
	index := make(map[string]int)
	mro := c.MRO()
	for i := len(mro) - 1; i >= 0; i-- {
		k := mro[i]
		if !k.HasFlag(types.ClassTypedDict) {
			continue
		}
		owner := m.p.owners[k]
		if owner == nil {
			continue
		}
		cd := owner.classNodes[k]
		total := !k.HasFlag(types.ClassNonTotal)
		for _, s := range cd.Body {
			ann, ok := s.(*syntax.AnnAssign)
			if !ok {
				continue
			}
			name, ok := ann.Target.(*syntax.Name)
			if !ok {
				continue
			}
			f := types.TypedDictField{Name: name.ID, Type: owner.annotation(ann.Annotation), Required: total}
			owner.fieldQualifiers(ann.Annotation, owner.b.annots[ann.Annotation], &f)
			if at, ok := index[f.Name]; ok {
				out[at] = f
				continue
			}
			index[f.Name] = len(out)
			out = append(out, f)
		}
	}
	return out
}

func (m *Model) fieldQualifiers(e syntax.Expr, sc *scope, f *types.TypedDictField) {
	sub, ok := e.(*syntax.Subscript)
	if !ok {
		return
	}
	args := sliceElems(sub.Slice)
	if len(args) == 0 {
		return
	}
	switch formName(m.valueIn(sub.Value, sc)) {
	case "Required":
		f.Required = true
	case "NotRequired":
		f.Required = false
	case "ReadOnly":
		f.ReadOnly = true
	case "Annotated":
	default:
		return
	}
	m.fieldQualifiers(args[0], sc, f)
}

// typeParamVar is the variable a PEP 695 type parameter declares.
func (m *Model) typeParamVar(tp *syntax.TypeParam) *types.TypeVar {
	if tv, ok := m.typeParams[tp]; ok {
		return tv
	}
	d := m.b.defs[tp]
	spec := types.TypeVarSpec{Key: m.offsetKey("tp", tp.Start), Name: tp.Name.ID, Variance: types.InferredVariance}
	switch o := d.owner.(type) {
	case *syntax.FunctionDef:
		spec.Scope = o.Name.ID
		spec.Variance = types.Invariant
	case *syntax.ClassDef:
		spec.Scope = o.Name.ID
	case *syntax.TypeAlias:
		if n, ok := o.Name.(*syntax.Name); ok {
			spec.Scope = n.ID
		}
	}
	sc := d.sym.scope
	if tp.Bound != nil {
		if tup, ok := tp.Bound.(*syntax.Tuple); ok {
			for _, el := range tup.Elts {
				spec.Constraints = append(spec.Constraints, m.typeExpr(el, sc))
			}
		} else {
			spec.Bound = m.typeExpr(tp.Bound, sc)
		}
	}
	tv := m.in.TypeVar(spec)
	m.typeParams[tp] = tv
	return tv
}

// typeAlias is the alias a "type X = ..." statement declares.
func (m *Model) typeAlias(s *syntax.TypeAlias) types.Type {
	name, ok := s.Name.(*syntax.Name)
	if !ok {
		return m.in.Unknown()
	}
	sc := m.b.typeAlias[s]
	var params []*types.TypeVar
	if s.TypeParams != nil {
		for _, tp := range s.TypeParams.Params {
			params = append(params, m.typeParamVar(tp))
		}
	}
	ta := m.in.TypeAlias(m.offsetKey("alias", s.Start), name.ID, func() types.Type {
		return m.typeExpr(s.Value, sc)
	})
	m.p.aliases[ta] = params
	return ta
}
