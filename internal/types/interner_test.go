package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassSource struct {
	bases  map[*Class][]Type
	params map[*Class][]*TypeVar
}

func (f *fakeClassSource) ResolveBases(c *Class) []Type          { return f.bases[c] }
func (f *fakeClassSource) ResolveTypeParams(c *Class) []*TypeVar { return f.params[c] }
func (f *fakeClassSource) ResolveMembers(*Class) []Member        { return nil }
func (f *fakeClassSource) ResolveFields(*Class) []TypedDictField { return nil }

func TestInternerIdentity(t *testing.T) {
	t.Parallel()
	in := NewInterner()

	assert.Same(t, in.IntLiteral(42), in.IntLiteral(42))
	assert.NotSame(t, in.IntLiteral(42), in.IntLiteral(43))
	assert.Same(t, in.StringLiteral("x"), in.StringLiteral("x"))
	assert.NotEqual(t, Serial(in.StringLiteral("x")), Serial(in.BytesLiteral("x")))

	intCls := in.Class("builtins:int", "int", "builtins", nil)
	assert.Same(t, intCls, in.Class("builtins:int", "int", "builtins", nil))
	assert.Same(t, in.Instance(intCls), in.Instance(intCls))
	assert.Same(t, in.ClassLiteral(intCls), in.ClassLiteral(intCls))
}

func TestUnionCanonicalization(t *testing.T) {
	t.Parallel()
	in := NewInterner()
	intCls := in.Class("int", "int", "builtins", nil)
	strCls := in.Class("str", "str", "builtins", nil)
	i, s := in.Instance(intCls), in.Instance(strCls)

	assert.Same(t, in.Never(), in.Union())
	assert.Same(t, i, in.Union(i, in.Never(), i))

	u := in.Union(i, s)
	require.IsType(t, &Union{}, u)
	assert.Equal(t, []Type{i, s}, u.(*Union).Members)

	assert.Same(t, u, in.Union(i, in.Union(s, i)))
	assert.NotSame(t, u, in.Union(s, i), "member order is significant")
}

func TestApplySpecialization(t *testing.T) {
	t.Parallel()
	in := NewInterner()
	list := in.Class("list", "list", "builtins", nil)
	tv := in.TypeVar(TypeVarSpec{Key: "m:T", Name: "T", Scope: "identity"})
	lit := in.IntLiteral(42)

	spec := NewSpecialization([]*TypeVar{tv}, []Type{lit})
	assert.Same(t, lit, in.Apply(tv, spec))
	assert.Same(t, in.Instance(list, lit), in.Apply(in.Instance(list, tv), spec))
	assert.Same(t, tv, in.Apply(tv, nil))

	sig := &Signature{
		TypeParams: []*TypeVar{tv},
		Params:     []Parameter{{Name: "x", Kind: PositionalOrKeyword, Annotated: tv}},
		Return:     tv,
	}
	got := in.ApplySignature(sig, spec)
	assert.Empty(t, got.TypeParams)
	assert.Same(t, lit, got.Params[0].Annotated)
	assert.Same(t, lit, got.Return)
	assert.Same(t, tv, sig.Params[0].Annotated, "original signature untouched")

	assert.True(t, Contains(in.Instance(list, tv), []*TypeVar{tv}))
	assert.False(t, Contains(in.Instance(list, lit), []*TypeVar{tv}))
	assert.Equal(t, []*TypeVar{tv}, CollectTypeVars(nil, in.Union(tv, in.Instance(list, tv))))
}

func TestClassMRO(t *testing.T) {
	t.Parallel()
	in := NewInterner()
	src := &fakeClassSource{bases: map[*Class][]Type{}}
	object := in.Class("object", "object", "builtins", src)
	animal := in.Class("m:Animal", "Animal", "m", src)
	dog := in.Class("m:Dog", "Dog", "m", src)
	src.bases[animal] = []Type{in.Instance(object)}
	src.bases[dog] = []Type{in.Instance(animal)}

	assert.Equal(t, []*Class{dog, animal, object}, dog.MRO())
	assert.True(t, dog.InheritsFrom("m", "Animal"))
	assert.False(t, animal.InheritsFrom("m", "Dog"))
	assert.False(t, dog.HasDynamicBase())
}

type recursiveSource struct{ in *Interner }

func (r recursiveSource) ResolveSignatures(f *Function) []*Signature {
	// Asking for our own overloads while resolving yields the gradual
	// signature instead of recursing forever.
	inner := f.Overloads()
	return []*Signature{{Return: inner[0].Return}}
}

func TestFunctionCycleFallsBackToGradual(t *testing.T) {
	t.Parallel()
	in := NewInterner()
	f := in.Function(FunctionSpec{Key: "m:f", Name: "f", Module: "m", Source: recursiveSource{in}})
	assert.Same(t, in.Unknown(), f.Signature().Return)
	assert.Same(t, f, in.Function(FunctionSpec{Key: "m:f"}))
}
