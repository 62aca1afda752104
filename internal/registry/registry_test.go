package registry

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/types"
)

type classSource struct {
	bases   map[*types.Class][]types.Type
	params  map[*types.Class][]*types.TypeVar
	members map[*types.Class][]types.Member
}

func newClassSource() *classSource {
	return &classSource{
		bases:   map[*types.Class][]types.Type{},
		params:  map[*types.Class][]*types.TypeVar{},
		members: map[*types.Class][]types.Member{},
	}
}

func (s *classSource) ResolveBases(c *types.Class) []types.Type          { return s.bases[c] }
func (s *classSource) ResolveTypeParams(c *types.Class) []*types.TypeVar { return s.params[c] }
func (s *classSource) ResolveMembers(c *types.Class) []types.Member      { return s.members[c] }
func (s *classSource) ResolveFields(*types.Class) []types.TypedDictField { return nil }

type sigs []*types.Signature

func (s sigs) ResolveSignatures(*types.Function) []*types.Signature { return s }

func newTestRegistry(t *testing.T) (*Registry, *types.Interner, *classSource) {
	t.Helper()
	in := types.NewInterner()
	return New(in), in, newClassSource()
}

func TestRegisterDeduplicates(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	intT := in.Instance(in.Class("builtins:int", "int", "builtins", src))

	id1, isNew := r.Register(intT)
	assert.True(t, isNew)
	assert.Equal(t, protocol.TypeID(1), id1)

	id2, isNew := r.Register(in.Instance(in.Class("builtins:int", "int", "builtins", src)))
	assert.False(t, isNew)
	assert.Equal(t, id1, id2)

	_, ok := r.Descriptor(0)
	assert.False(t, ok, "id 0 is reserved")
}

func TestRegisterComponentsAreTracked(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	intT := in.Instance(in.Class("builtins:int", "int", "builtins", src))

	r.ResetNewTypes()
	id, _ := r.Register(intT)
	fresh := r.DrainNewTypes()
	require.Len(t, fresh, 2, "the instance and its class literal")

	inst, ok := fresh[id].(*protocol.Instance)
	require.True(t, ok)
	assert.Equal(t, "int", inst.ClassName)
	assert.Equal(t, "int", inst.Display)
	require.NotNil(t, inst.ClassID)
	assert.IsType(t, &protocol.ClassLiteral{}, fresh[*inst.ClassID])

	r.ResetNewTypes()
	r.Register(intT)
	assert.Empty(t, r.DrainNewTypes())
	assert.Len(t, r.All(), 2)
}

func TestRegisterSelfReferentialClass(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	node := in.Class("m:Node", "Node", "m", src)
	src.members[node] = []types.Member{{Name: "next", Type: in.Instance(node)}}

	id, _ := r.Register(in.Instance(node))
	d, ok := r.Descriptor(id)
	require.True(t, ok)
	cls, ok := r.Descriptor(*d.(*protocol.Instance).ClassID)
	require.True(t, ok)

	members := cls.(*protocol.ClassLiteral).Members
	require.Len(t, members, 1)
	assert.Equal(t, "next", members[0].Name)
	assert.Equal(t, id, members[0].TypeID)
}

func TestInstanceSupertypes(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	animal := in.Class("m:Animal", "Animal", "m", src)
	dog := in.Class("m:Dog", "Dog", "m", src)
	src.bases[dog] = []types.Type{in.Instance(animal)}

	id, _ := r.Register(in.Instance(dog))
	d, _ := r.Descriptor(id)
	inst := d.(*protocol.Instance)
	require.Len(t, inst.Supertypes, 1)

	super, ok := r.Descriptor(inst.Supertypes[0])
	require.True(t, ok)
	assert.Equal(t, "Animal", super.(*protocol.Instance).ClassName)

	cls, _ := r.Descriptor(*inst.ClassID)
	require.Len(t, cls.(*protocol.ClassLiteral).Supertypes, 1)
	base, _ := r.Descriptor(cls.(*protocol.ClassLiteral).Supertypes[0])
	assert.Equal(t, "<class 'Animal'>", base.Label())
}

func TestGenericSupertypesAreSpecialized(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	intT := in.Instance(in.Class("builtins:int", "int", "builtins", src))
	tv := in.TypeVar(types.TypeVarSpec{Key: "m:T", Name: "T", Scope: "Box"})
	base := in.Class("m:Base", "Base", "m", src)
	box := in.Class("m:Box", "Box", "m", src)
	src.params[base] = []*types.TypeVar{tv}
	src.params[box] = []*types.TypeVar{tv}
	src.bases[box] = []types.Type{in.Instance(base, tv)}

	id, _ := r.Register(in.Instance(box, intT))
	d, _ := r.Descriptor(id)
	super, _ := r.Descriptor(d.(*protocol.Instance).Supertypes[0])
	assert.Equal(t, "Base[int]", super.Label())
}

func TestTypeVarBoundsAndConstraints(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	intT := in.Instance(in.Class("builtins:int", "int", "builtins", src))
	strT := in.Instance(in.Class("builtins:str", "str", "builtins", src))
	intID, _ := r.Register(intT)
	strID, _ := r.Register(strT)

	bounded := in.TypeVar(types.TypeVarSpec{Key: "m:B", Name: "B", Bound: intT, Legacy: true})
	constrained := in.TypeVar(types.TypeVarSpec{Key: "m:C", Name: "C", Constraints: []types.Type{intT, strT}, Legacy: true})
	plain := in.TypeVar(types.TypeVarSpec{Key: "m:T", Name: "T", Legacy: true})

	get := func(tv types.Type) *protocol.TypeVar {
		id, _ := r.Register(tv)
		d, _ := r.Descriptor(id)
		return d.(*protocol.TypeVar)
	}

	b := get(bounded)
	require.NotNil(t, b.UpperBound)
	assert.Equal(t, intID, *b.UpperBound)
	assert.Empty(t, b.Constraints)

	c := get(constrained)
	assert.Nil(t, c.UpperBound)
	assert.Equal(t, []protocol.TypeID{intID, strID}, c.Constraints)

	p := get(plain)
	assert.Nil(t, p.UpperBound)
	assert.Empty(t, p.Constraints)
	assert.Equal(t, "T", p.Name)
	assert.Equal(t, "invariant", p.Variance)
}

func TestFunctionParametersOmitDynamic(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)
	strT := in.Instance(in.Class("builtins:str", "str", "builtins", src))
	f := in.Function(types.FunctionSpec{
		Key: "m:greet", Name: "greet", Module: "m",
		Source: sigs{{
			Params: []types.Parameter{
				{Name: "name", Kind: types.PositionalOrKeyword, Annotated: strT},
				{Name: "extra", Kind: types.KeywordOnly, Annotated: in.Unknown(), Default: in.IntLiteral(1)},
			},
			Return: in.Unknown(),
		}},
	})

	id, _ := r.Register(f)
	d, _ := r.Descriptor(id)
	fn := d.(*protocol.Function)
	assert.Equal(t, "greet", fn.Name)
	assert.Equal(t, "m", fn.ModuleName)
	assert.Nil(t, fn.ReturnType)
	require.Len(t, fn.Parameters, 2)
	assert.NotNil(t, fn.Parameters[0].TypeID)
	assert.Equal(t, "positionalOrKeyword", fn.Parameters[0].Kind)
	assert.Nil(t, fn.Parameters[1].TypeID)
	assert.True(t, fn.Parameters[1].HasDefault)
	assert.Nil(t, fn.Parameters[1].DefaultTypeID, "defaults are only typed on call signatures")
}

func TestSubclassOfDynamicPointsAtItself(t *testing.T) {
	t.Parallel()
	r, in, src := newTestRegistry(t)

	dyn := in.SubclassOf(in.Any())
	id, _ := r.Register(dyn)
	d, _ := r.Descriptor(id)
	assert.Equal(t, id, d.(*protocol.SubclassOf).Base)

	animal := in.Class("m:Animal", "Animal", "m", src)
	id, _ = r.Register(in.SubclassOf(in.Instance(animal)))
	d, _ = r.Descriptor(id)
	base, _ := r.Descriptor(d.(*protocol.SubclassOf).Base)
	assert.IsType(t, &protocol.ClassLiteral{}, base)
}

func TestBytesLiteralValuesStayDistinct(t *testing.T) {
	t.Parallel()
	r, in, _ := newTestRegistry(t)

	ff, _ := r.Register(in.BytesLiteral("\xff"))
	fe, _ := r.Register(in.BytesLiteral("\xfe"))
	require.NotEqual(t, ff, fe)

	d, _ := r.Descriptor(ff)
	b, err := protocol.MarshalDescriptor(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"bytesLiteral","display":"Literal[b\"\\xff\"]","value":"Literal[b\"\\xff\"]"}`, string(b))

	other, _ := r.Descriptor(fe)
	assert.NotEqual(t, d.(*protocol.BytesLiteral).Value, other.(*protocol.BytesLiteral).Value)
	assert.True(t, utf8.ValidString(d.(*protocol.BytesLiteral).Value))
}
