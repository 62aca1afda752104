package registry

import (
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/types"
)

// encoder builds the descriptor for one type. Component types are
// registered through the owning Registry as they are met.
type encoder struct {
	r     *Registry
	label string
	out   protocol.Descriptor
}

var _ types.Visitor = (*encoder)(nil)

func (e *encoder) VisitDynamic(t *types.Dynamic) {
	e.out = &protocol.Dynamic{Display: e.label, DynamicKind: t.Kind.String()}
}

func (e *encoder) VisitNever(*types.Never) {
	e.out = &protocol.Never{Display: "Never"}
}

func (e *encoder) VisitIntLiteral(t *types.IntLiteral) {
	e.out = &protocol.IntLiteral{Display: e.label, Value: t.Value}
}

func (e *encoder) VisitBoolLiteral(t *types.BoolLiteral) {
	e.out = &protocol.BoolLiteral{Display: e.label, Value: t.Value}
}

func (e *encoder) VisitStringLiteral(t *types.StringLiteral) {
	e.out = &protocol.StringLiteral{Display: e.label, Value: t.Value}
}

func (e *encoder) VisitBytesLiteral(t *types.BytesLiteral) {
	e.out = &protocol.BytesLiteral{Display: e.label, Value: types.Display(t)}
}

func (e *encoder) VisitLiteralString(*types.LiteralString) {
	e.out = &protocol.LiteralString{Display: e.label}
}

func (e *encoder) VisitEnumLiteral(t *types.EnumLiteral) {
	e.out = &protocol.EnumLiteral{Display: e.label, ClassName: t.Class.Name, MemberName: t.Member}
}

func (e *encoder) VisitAlwaysTruthy(*types.AlwaysTruthy) {
	e.out = &protocol.Truthy{Display: "AlwaysTruthy"}
}

func (e *encoder) VisitAlwaysFalsy(*types.AlwaysFalsy) {
	e.out = &protocol.Falsy{Display: "AlwaysFalsy"}
}

func (e *encoder) VisitUnion(t *types.Union) {
	e.out = &protocol.Union{Display: e.label, Members: e.r.components(t.Members)}
}

func (e *encoder) VisitIntersection(t *types.Intersection) {
	e.out = &protocol.Intersection{
		Display:  e.label,
		Positive: e.r.components(t.Positive),
		Negative: e.r.components(t.Negative),
	}
}

func (e *encoder) VisitInstance(t *types.Instance) {
	c := t.Class
	d := &protocol.Instance{
		Display:    e.label,
		ClassName:  c.Name,
		ModuleName: c.Module,
	}
	d.Supertypes = e.supertypes(t)
	if len(t.Args) > 0 {
		d.TypeArgs = e.r.components(t.Args)
	}
	d.ClassID = protocol.Ref(e.r.component(e.r.in.ClassLiteral(c)))
	e.out = d
}

// supertypes returns the ids of the instance types of t's explicit bases,
// specialized by t's own type arguments.
func (e *encoder) supertypes(t *types.Instance) []protocol.TypeID {
	bases := t.Class.Bases()
	if len(bases) == 0 {
		return nil
	}
	args := t.Args
	if t.Class.Is("builtins", "tuple") && !t.Variadic {
		// A heterogeneous tuple is a sequence of the union of its elements.
		args = []types.Type{e.r.in.Union(t.Args...)}
	}
	spec := types.NewSpecialization(t.Class.TypeParams(), args)
	if spec != nil {
		for i, a := range spec.Types {
			if a == nil {
				spec.Types[i] = e.r.in.Unknown()
			}
		}
	}
	out := make([]protocol.TypeID, 0, len(bases))
	for _, b := range bases {
		out = append(out, e.r.component(e.r.in.Apply(b, spec)))
	}
	return out
}

func (e *encoder) VisitClassLiteral(t *types.ClassLiteral) {
	e.out = e.classLiteral(t.Class)
}

func (e *encoder) VisitGenericAlias(t *types.GenericAlias) {
	e.out = e.classLiteral(t.Class)
}

func (e *encoder) classLiteral(c *types.Class) *protocol.ClassLiteral {
	d := &protocol.ClassLiteral{
		Display:    e.label,
		ClassName:  c.Name,
		ModuleName: c.Module,
	}
	for _, tv := range c.TypeParams() {
		d.TypeParameters = append(d.TypeParameters, e.r.component(tv))
	}
	for _, b := range c.Bases() {
		d.Supertypes = append(d.Supertypes, e.r.component(e.classObject(b)))
	}
	for _, m := range c.Members() {
		d.Members = append(d.Members, protocol.ClassMember{Name: m.Name, TypeID: e.r.component(m.Type)})
	}
	return d
}

// classObject maps a base, which is stored as an instance type, to the
// class object it names.
func (e *encoder) classObject(base types.Type) types.Type {
	inst, ok := base.(*types.Instance)
	if !ok {
		return base
	}
	if len(inst.Args) == 0 {
		return e.r.in.ClassLiteral(inst.Class)
	}
	return e.r.in.GenericAlias(inst.Class, inst.Args...)
}

func (e *encoder) VisitSubclassOf(t *types.SubclassOf) {
	var base protocol.TypeID
	if inst, ok := t.Base.(*types.Instance); ok {
		base = e.r.component(e.r.in.ClassLiteral(inst.Class))
	} else {
		// Dynamic or type variable: the descriptor points at itself.
		base = e.r.component(t)
	}
	e.out = &protocol.SubclassOf{Display: e.label, Base: base}
}

func (e *encoder) VisitFunction(t *types.Function) {
	params, ret, tparams := e.signature(t)
	e.out = &protocol.Function{
		Display:        e.label,
		Name:           t.Name,
		ModuleName:     t.Module,
		TypeParameters: tparams,
		Parameters:     params,
		ReturnType:     ret,
	}
}

func (e *encoder) VisitBoundMethod(t *types.BoundMethod) {
	params, ret, tparams := e.signature(t.Func)
	e.out = &protocol.BoundMethod{
		Display:        e.label,
		Name:           t.Func.Name,
		ModuleName:     t.Func.Module,
		TypeParameters: tparams,
		Parameters:     params,
		ReturnType:     ret,
	}
}

// signature encodes the first overload of f. Other overloads are only
// visible through call signatures.
func (e *encoder) signature(f *types.Function) ([]protocol.Parameter, *protocol.TypeID, []protocol.TypeID) {
	sig := f.Signature()
	params := make([]protocol.Parameter, 0, len(sig.Params))
	for _, p := range sig.Params {
		params = append(params, EncodeParameter(e.r, p, false))
	}
	var ret *protocol.TypeID
	if sig.Return != nil && !types.IsDynamic(sig.Return) {
		ret = protocol.Ref(e.r.component(sig.Return))
	}
	var tparams []protocol.TypeID
	for _, tv := range sig.TypeParams {
		tparams = append(tparams, e.r.component(tv))
	}
	return params, ret, tparams
}

func (e *encoder) VisitCallable(*types.Callable) {
	e.out = &protocol.Callable{Display: e.label}
}

func (e *encoder) VisitModule(t *types.Module) {
	e.out = &protocol.Module{Display: e.label, ModuleName: t.Name}
}

func (e *encoder) VisitTypeVar(t *types.TypeVar) {
	d := &protocol.TypeVar{
		Display:  e.label,
		Name:     e.label,
		Variance: t.Variance.String(),
	}
	switch {
	case t.Bound != nil:
		d.UpperBound = protocol.Ref(e.r.component(t.Bound))
	case len(t.Constraints) > 0:
		d.Constraints = e.r.components(t.Constraints)
	}
	e.out = d
}

func (e *encoder) VisitTypeAlias(*types.TypeAlias) {
	e.out = &protocol.TypeAlias{Display: e.label, Name: e.label}
}

func (e *encoder) VisitTypedDict(t *types.TypedDict) {
	d := &protocol.TypedDict{Display: e.label, Name: t.Class.Name}
	for _, f := range t.Class.Fields() {
		d.Fields = append(d.Fields, protocol.TypedDictField{
			Name:     f.Name,
			TypeID:   e.r.component(f.Type),
			Required: f.Required,
			ReadOnly: f.ReadOnly,
		})
	}
	e.out = d
}

func (e *encoder) VisitTypeIs(t *types.TypeIs) {
	e.out = &protocol.TypeIs{Display: e.label, NarrowedType: e.r.component(t.Narrowed)}
}

func (e *encoder) VisitTypeGuard(t *types.TypeGuard) {
	e.out = &protocol.TypeGuard{Display: e.label, GuardedType: e.r.component(t.Guarded)}
}

func (e *encoder) VisitNewType(t *types.NewType) {
	e.out = &protocol.NewType{Display: e.label, Name: t.Name, BaseType: e.r.component(t.Base)}
}

func (e *encoder) VisitSpecialForm(t *types.SpecialForm) {
	e.out = &protocol.SpecialForm{Display: e.label, Name: t.Name}
}

func (e *encoder) VisitProperty(*types.Property) {
	e.out = &protocol.Property{Display: e.label}
}

func (e *encoder) VisitOther(*types.Other) {
	e.out = &protocol.Other{Display: e.label}
}
