package semantic

import (
	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

// member is the type of attribute name on a value of type t.
func (m *Model) member(t types.Type, name string) (types.Type, bool) {
	switch t := t.(type) {
	case *types.Dynamic:
		return t, true
	case *types.Never:
		return t, true
	case *types.Union:
		out := make([]types.Type, len(t.Members))
		found := false
		for i, u := range t.Members {
			mt, ok := m.member(u, name)
			if !ok {
				mt = m.in.Unknown()
			}
			found = found || ok
			out[i] = mt
		}
		return m.in.Union(out...), found
	case *types.EnumLiteral:
		switch name {
		case "name", "_name_":
			return m.in.StringLiteral(t.Member), true
		case "value", "_value_":
			return m.enumValue(t), true
		}
		if inst, ok := m.instance(t.Class).(*types.Instance); ok {
			return m.instanceMember(inst, name)
		}
		return nil, false
	case *types.Instance:
		return m.instanceMember(t, name)
	case *types.ClassLiteral:
		return m.classMember(t.Class, nil, t, name)
	case *types.GenericAlias:
		return m.classMember(t.Class, t.Args, t, name)
	case *types.SubclassOf:
		switch base := t.Base.(type) {
		case *types.Instance:
			return m.classMember(base.Class, base.Args, t, name)
		case *types.Dynamic:
			return base, true
		}
		return m.in.Unknown(), true
	case *types.Module:
		mod, ok := m.p.importModule(t.Name)
		if !ok {
			return nil, false
		}
		return mod.exported(name)
	case *types.TypeVar:
		switch {
		case t.Bound != nil:
			return m.member(t.Bound, name)
		case len(t.Constraints) > 0:
			return m.member(m.in.Union(t.Constraints...), name)
		}
		return m.member(m.instanceOf("object"), name)
	case *types.NewType:
		return m.member(t.Base, name)
	case *types.Function, *types.BoundMethod, *types.Callable:
		return m.member(m.instanceOf("function"), name)
	case *types.Property:
		return m.member(m.instanceOf("property"), name)
	}
	if inst, ok := m.asInstance(t); ok {
		return m.instanceMember(inst, name)
	}
	if obj, ok := m.instanceOf("object").(*types.Instance); ok {
		return m.instanceMember(obj, name)
	}
	return nil, false
}

// instanceMember looks name up along the MRO of inst's class. In each
// class the body comes first, then attributes its methods assign on self.
func (m *Model) instanceMember(inst *types.Instance, name string) (types.Type, bool) {
	for _, k := range inst.Class.MRO() {
		if raw, ok := k.Member(name); ok {
			return m.bindAttribute(raw, inst, m.specFor(inst, k)), true
		}
		if t, ok := m.selfAttribute(k, name); ok {
			return m.in.Apply(t, m.specFor(inst, k)), true
		}
	}
	return nil, false
}

// bindAttribute turns a class-level member into what an instance sees.
func (m *Model) bindAttribute(raw types.Type, recv *types.Instance, spec *types.Specialization) types.Type {
	switch r := raw.(type) {
	case *types.Function:
		switch {
		case r.HasFlag(types.FuncStaticMethod):
			return r
		case r.HasFlag(types.FuncClassMethod):
			return m.in.BoundMethod(r, m.in.ClassLiteral(recv.Class))
		}
		return m.in.BoundMethod(r, recv)
	case *types.Property:
		if r.Getter == nil {
			return m.in.Unknown()
		}
		bs := m.bindCallee(m.in.BoundMethod(r.Getter, recv), nil)
		for _, b := range bs {
			if b.Matched {
				return b.Return
			}
		}
		if len(bs) > 0 {
			return bs[0].Return
		}
		return m.in.Unknown()
	}
	return m.in.Apply(raw, spec)
}

// classMember looks name up on a class object. Classmethods bind to the
// class; other functions stay unbound.
func (m *Model) classMember(c *types.Class, args []types.Type, recv types.Type, name string) (types.Type, bool) {
	var inst *types.Instance
	if len(args) > 0 {
		inst = m.in.Instance(c, args...)
	}
	for _, k := range c.MRO() {
		raw, ok := k.Member(name)
		if !ok {
			continue
		}
		switch r := raw.(type) {
		case *types.Function:
			if r.HasFlag(types.FuncClassMethod) {
				return m.in.BoundMethod(r, recv), true
			}
			return r, true
		case *types.EnumLiteral, *types.Property:
			return r, true
		}
		if inst != nil {
			return m.in.Apply(raw, m.specFor(inst, k)), true
		}
		return raw, true
	}
	if tc := m.p.class("builtins", "type"); tc != nil && c != tc {
		return m.instanceMember(m.in.Instance(tc), name)
	}
	return nil, false
}

// specFor maps the type parameters of k, an ancestor of inst's class, to
// the arguments inst carries for them. Unknown fills what cannot be found.
func (m *Model) specFor(inst *types.Instance, k *types.Class) *types.Specialization {
	params := k.TypeParams()
	if len(params) == 0 {
		return nil
	}
	args, ok := m.upcast(inst, k)
	ts := make([]types.Type, len(params))
	for i := range params {
		if ok && i < len(args) && args[i] != nil {
			ts[i] = args[i]
		} else {
			ts[i] = m.in.Unknown()
		}
	}
	return types.NewSpecialization(params, ts)
}

// upcast returns the type arguments inst has when viewed as an instance of
// target, which must be in its MRO.
func (m *Model) upcast(inst *types.Instance, target *types.Class) ([]types.Type, bool) {
	return m.upcastDepth(inst, target, 0)
}

func (m *Model) upcastDepth(inst *types.Instance, target *types.Class, depth int) ([]types.Type, bool) {
	if depth > 32 {
		return nil, false
	}
	args := inst.Args
	if m.isTuple(inst.Class) {
		args = []types.Type{m.tupleElem(inst)}
	}
	if inst.Class == target {
		return args, true
	}
	params := inst.Class.TypeParams()
	ts := make([]types.Type, len(params))
	for i := range params {
		if i < len(args) {
			ts[i] = args[i]
		} else {
			ts[i] = m.in.Unknown()
		}
	}
	spec := types.NewSpecialization(params, ts)
	for _, b := range inst.Class.Bases() {
		bi, ok := b.(*types.Instance)
		if !ok || !inMRO(bi.Class, target) {
			continue
		}
		based, ok := m.in.Apply(bi, spec).(*types.Instance)
		if !ok {
			return nil, false
		}
		return m.upcastDepth(based, target, depth+1)
	}
	return nil, false
}

// tupleElem is the union of a tuple's element types.
func (m *Model) tupleElem(inst *types.Instance) types.Type {
	if inst.Variadic {
		return inst.Args[0]
	}
	return m.in.Union(inst.Args...)
}

func inMRO(c, target *types.Class) bool {
	for _, k := range c.MRO() {
		if k == target {
			return true
		}
	}
	return false
}

// selfAttribute is the type of an attribute that methods of c assign
// through their first parameter.
func (m *Model) selfAttribute(c *types.Class, name string) (types.Type, bool) {
	owner := m.p.owners[c]
	if owner == nil {
		return nil, false
	}
	info := owner.b.classes[owner.classNodes[c]]
	for _, sa := range info.selfAttrs {
		if sa.name == name {
			return owner.selfAttrType(c, info, name), true
		}
	}
	return nil, false
}

// selfAttrType prefers an annotated assignment; otherwise it is the union
// of every assigned value, widened.
func (m *Model) selfAttrType(c *types.Class, info *classInfo, name string) types.Type {
	return m.selfAttrs.get(c.Key()+"."+name, m.in.Unknown(), func() types.Type {
		for _, sa := range info.selfAttrs {
			if s, ok := sa.owner.(*syntax.AnnAssign); ok && sa.name == name {
				return m.annotation(s.Annotation)
			}
		}
		var ts []types.Type
		for _, sa := range info.selfAttrs {
			if sa.name != name {
				continue
			}
			switch s := sa.owner.(type) {
			case *syntax.Assign:
				value := m.expr(s.Value)
				for _, target := range s.Targets {
					if contains(target, sa.target) {
						ts = append(ts, m.promote(m.assigned(target, value, sa.target)))
						break
					}
				}
			case *syntax.For:
				ts = append(ts, m.promote(m.assigned(s.Target, m.iterate(m.expr(s.Iter)), sa.target)))
			}
		}
		if len(ts) == 0 {
			return m.in.Unknown()
		}
		return m.in.Union(ts...)
	})
}

// enumValue is the type of an enum member's value. auto() produces int.
func (m *Model) enumValue(t *types.EnumLiteral) types.Type {
	owner := m.p.owners[t.Class]
	if owner == nil {
		return m.in.Unknown()
	}
	info := owner.b.classes[owner.classNodes[t.Class]]
	sym, ok := info.body.symbols[t.Member]
	if !ok {
		return m.in.Unknown()
	}
	v := owner.symbolType(sym, false, 0)
	if types.IsDynamic(v) {
		return m.instanceOf("int")
	}
	return v
}
