package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplay(t *testing.T) {
	t.Parallel()
	in := NewInterner()
	intCls := in.Class("int", "int", "builtins", nil)
	strCls := in.Class("str", "str", "builtins", nil)
	none := in.Class("NoneType", "NoneType", "types", nil)
	tuple := in.Class("tuple", "tuple", "builtins", nil)
	list := in.Class("list", "list", "builtins", nil)
	animal := in.Class("m:Animal", "Animal", "m", nil)
	intT, strT := in.Instance(intCls), in.Instance(strCls)
	tv := in.TypeVar(TypeVarSpec{Key: "m:T", Name: "T", Scope: "identity"})

	cases := []struct {
		name string
		typ  Type
		want string
	}{
		{"int literal", in.IntLiteral(42), "Literal[42]"},
		{"bool literal", in.BoolLiteral(true), "Literal[True]"},
		{"string literal", in.StringLiteral(`a"b`), `Literal["a\"b"]`},
		{"bytes literal", in.BytesLiteral("x"), `Literal[b"x"]`},
		{"bytes literal escapes", in.BytesLiteral("\xff\x00a\"\n"), `Literal[b"\xff\x00a\"\n"]`},
		{"union", in.Union(intT, strT), "int | str"},
		{"optional", in.Union(intT, in.Instance(none)), "int | None"},
		{"literal union", in.Union(in.IntLiteral(1), strT, in.IntLiteral(2)), "Literal[1, 2] | str"},
		{"generic instance", in.Instance(list, intT), "list[int]"},
		{"tuple", in.Instance(tuple, intT, strT), "tuple[int, str]"},
		{"empty tuple", in.Instance(tuple), "tuple[()]"},
		{"variadic tuple", in.VariadicTuple(tuple, intT), "tuple[int, ...]"},
		{"class literal", in.ClassLiteral(animal), "<class 'Animal'>"},
		{"generic alias", in.GenericAlias(list, intT), "<class 'list[int]'>"},
		{"subclass of", in.SubclassOf(in.Instance(animal)), "type[Animal]"},
		{"module", in.Module("a", "/p/a.py"), "<module 'a'>"},
		{"typevar", tv, "T@identity"},
		{"type is", in.TypeIs(intT), "TypeIs[int]"},
		{"special form", in.SpecialForm("typing.Union"), "<special form 'typing.Union'>"},
		{"dynamic", in.Unknown(), "Unknown"},
		{"never", in.Never(), "Never"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Display(tc.typ))
		})
	}
}

type staticSigs []*Signature

func (s staticSigs) ResolveSignatures(*Function) []*Signature { return s }

func TestDisplaySignatures(t *testing.T) {
	t.Parallel()
	in := NewInterner()
	strT := in.Instance(in.Class("str", "str", "builtins", nil))
	intT := in.Instance(in.Class("int", "int", "builtins", nil))
	noneT := in.Instance(in.Class("NoneType", "NoneType", "types", nil))

	greet := in.Function(FunctionSpec{
		Key: "m:greet", Name: "greet", Module: "m",
		Source: staticSigs{{
			Params: []Parameter{{Name: "name", Kind: PositionalOrKeyword, Annotated: strT}},
			Return: strT,
		}},
	})
	assert.Equal(t, "def greet(name: str) -> str", Display(greet))

	mixed := &Signature{
		Params: []Parameter{
			{Name: "a", Kind: PositionalOnly, Annotated: intT},
			{Name: "b", Kind: PositionalOrKeyword, Annotated: in.Unknown(), Default: intT},
			{Name: "c", Kind: KeywordOnly, Annotated: strT},
		},
		Return: noneT,
	}
	assert.Equal(t, "(a: int, /, b=..., *, c: str) -> None", DisplaySignature(mixed))

	dog := in.Class("m:Dog", "Dog", "m", nil)
	bark := in.Function(FunctionSpec{
		Key: "m:Dog.bark", Name: "bark", Module: "m", Owner: dog,
		Source: staticSigs{{
			Params: []Parameter{{Name: "self", Kind: PositionalOrKeyword, Annotated: in.Unknown()}},
			Return: noneT,
		}},
	})
	assert.Equal(t, "bound method Dog.bark() -> None", Display(in.BoundMethod(bark, in.Instance(dog))))
}
