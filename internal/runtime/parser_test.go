package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.Module {
	t.Helper()
	mod, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return mod
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.py", "python", true},
		{"typing.pyi", "python", true},
		{"Tool.PY", "python", true},
		{"main.go", "", false},
		{"README", "", false},
	}
	for _, tt := range tests {
		got, ok := LanguageForFile(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestParseAnnotatedAssignment(t *testing.T) {
	t.Parallel()
	src := "x: int = 42\n"
	mod := parse(t, src)
	require.Len(t, mod.Body, 1)

	s, ok := mod.Body[0].(*syntax.AnnAssign)
	require.True(t, ok, "got %T", mod.Body[0])
	target := s.Target.(*syntax.Name)
	assert.Equal(t, "x", target.ID)
	assert.Equal(t, syntax.Store, target.Ctx)
	assert.Equal(t, "int", s.Annotation.(*syntax.Name).ID)

	num := s.Value.(*syntax.NumberLiteral)
	assert.True(t, num.IntOK)
	assert.Equal(t, int64(42), num.Int)
	assert.Equal(t, "42", src[num.Start:num.End])
}

func TestParseTupleTargets(t *testing.T) {
	t.Parallel()
	mod := parse(t, "(a, b) = (1, \"x\")\nc = d = 3\n")
	require.Len(t, mod.Body, 2)

	s := mod.Body[0].(*syntax.Assign)
	require.Len(t, s.Targets, 1)
	tup := s.Targets[0].(*syntax.Tuple)
	require.Len(t, tup.Elts, 2)
	for _, e := range tup.Elts {
		assert.Equal(t, syntax.Store, e.(*syntax.Name).Ctx)
	}
	value := s.Value.(*syntax.Tuple)
	assert.Equal(t, "x", value.Elts[1].(*syntax.StringLiteral).Value)

	chained := mod.Body[1].(*syntax.Assign)
	require.Len(t, chained.Targets, 2)
	assert.Equal(t, "c", chained.Targets[0].(*syntax.Name).ID)
	assert.Equal(t, "d", chained.Targets[1].(*syntax.Name).ID)
	assert.IsType(t, &syntax.NumberLiteral{}, chained.Value)
}

func TestParseFunctionDef(t *testing.T) {
	t.Parallel()
	src := `@decorator
def first[T](xs: list[T], /, y=1, *args, z: int, **kw) -> T:
    return xs[0]
`
	mod := parse(t, src)
	require.Len(t, mod.Body, 1)
	fd := mod.Body[0].(*syntax.FunctionDef)
	assert.Equal(t, "first", fd.Name.ID)
	assert.Equal(t, uint32(0), fd.Start, "decorators are part of the definition")
	require.Len(t, fd.Decorators, 1)

	require.NotNil(t, fd.TypeParams)
	require.Len(t, fd.TypeParams.Params, 1)
	assert.Equal(t, "T", fd.TypeParams.Params[0].Name.ID)

	ps := fd.Params
	require.Len(t, ps.PosOnly, 1)
	assert.Equal(t, "xs", ps.PosOnly[0].Parameter.Name.ID)
	assert.IsType(t, &syntax.Subscript{}, ps.PosOnly[0].Parameter.Annotation)
	require.Len(t, ps.Args, 1)
	assert.NotNil(t, ps.Args[0].Default)
	require.NotNil(t, ps.Vararg)
	assert.Equal(t, "args", ps.Vararg.Name.ID)
	require.Len(t, ps.KwOnly, 1)
	assert.Equal(t, "z", ps.KwOnly[0].Parameter.Name.ID)
	require.NotNil(t, ps.Kwarg)
	assert.Equal(t, "kw", ps.Kwarg.Name.ID)
	assert.Equal(t, 5, ps.Len())

	assert.Equal(t, "T", fd.Returns.(*syntax.Name).ID)
	ret := fd.Body[0].(*syntax.Return)
	assert.IsType(t, &syntax.Subscript{}, ret.Value)
}

func TestParseClassAndCall(t *testing.T) {
	t.Parallel()
	src := `class Dog(Animal, metaclass=Meta):
    def bark(self) -> None: ...

Dog().bark(*xs, loud=True, **opts)
`
	mod := parse(t, src)
	require.Len(t, mod.Body, 2)
	cd := mod.Body[0].(*syntax.ClassDef)
	assert.Equal(t, "Dog", cd.Name.ID)
	require.Len(t, cd.Arguments.Args, 1)
	require.Len(t, cd.Arguments.Keywords, 1)
	assert.Equal(t, "metaclass", cd.Arguments.Keywords[0].Arg.ID)

	call := mod.Body[1].(*syntax.ExprStmt).Value.(*syntax.Call)
	attr := call.Func.(*syntax.Attribute)
	assert.Equal(t, "bark", attr.Attr.ID)
	assert.IsType(t, &syntax.Call{}, attr.Value)
	require.Len(t, call.Arguments.Args, 1)
	assert.IsType(t, &syntax.Starred{}, call.Arguments.Args[0])
	require.Len(t, call.Arguments.Keywords, 2)
	assert.Nil(t, call.Arguments.Keywords[1].Arg)
}

func TestParseControlFlow(t *testing.T) {
	t.Parallel()
	src := `for i, v in enumerate(xs):
    pass
else:
    pass
with open(p) as f, lock:
    pass
try:
    pass
except ValueError as e:
    pass
finally:
    pass
if a:
    pass
elif b:
    pass
else:
    pass
`
	mod := parse(t, src)
	require.Len(t, mod.Body, 4)

	loop := mod.Body[0].(*syntax.For)
	assert.Equal(t, syntax.Store, loop.Target.(*syntax.Tuple).Ctx)
	assert.Len(t, loop.Orelse, 1)

	with := mod.Body[1].(*syntax.With)
	require.Len(t, with.Items, 2)
	assert.Equal(t, "f", with.Items[0].OptionalVars.(*syntax.Name).ID)
	assert.Nil(t, with.Items[1].OptionalVars)

	try := mod.Body[2].(*syntax.Try)
	require.Len(t, try.Handlers, 1)
	assert.Equal(t, "ValueError", try.Handlers[0].Type.(*syntax.Name).ID)
	require.NotNil(t, try.Handlers[0].Name)
	assert.Equal(t, "e", try.Handlers[0].Name.ID)
	assert.Len(t, try.Finalbody, 1)

	branch := mod.Body[3].(*syntax.If)
	require.Len(t, branch.Clauses, 2)
	assert.NotNil(t, branch.Clauses[0].Test)
	assert.Nil(t, branch.Clauses[1].Test)
}

func TestParseImports(t *testing.T) {
	t.Parallel()
	mod := parse(t, "import os.path as p, sys\nfrom ..pkg import a, b as c\nfrom m import *\n")
	require.Len(t, mod.Body, 3)

	imp := mod.Body[0].(*syntax.Import)
	require.Len(t, imp.Names, 2)
	assert.Equal(t, "os.path", imp.Names[0].Name.ID)
	assert.Equal(t, "p", imp.Names[0].BoundName())
	assert.Equal(t, "sys", imp.Names[1].BoundName())

	from := mod.Body[1].(*syntax.ImportFrom)
	assert.Equal(t, "pkg", from.Module)
	assert.Equal(t, 2, from.Level)
	require.Len(t, from.Names, 2)
	assert.Equal(t, "c", from.Names[1].BoundName())

	star := mod.Body[2].(*syntax.ImportFrom)
	require.Len(t, star.Names, 1)
	assert.Equal(t, "*", star.Names[0].Name.ID)
}

func TestParseExpressions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want any
	}{
		{"a and b and c", &syntax.BoolOp{}},
		{"not a", &syntax.UnaryOp{}},
		{"a < b <= c", &syntax.Compare{}},
		{"x if c else y", &syntax.IfExp{}},
		{"lambda a, b=1: a", &syntax.Lambda{}},
		{"[x for x in xs if x]", &syntax.ListComp{}},
		{"{k: v for k, v in d.items()}", &syntax.DictComp{}},
		{"{1, 2}", &syntax.Set{}},
		{"{'a': 1, **rest}", &syntax.Dict{}},
		{"f'{x}!'", &syntax.FString{}},
		{"b'raw'", &syntax.BytesLiteral{}},
		{"xs[1:2]", &syntax.Subscript{}},
		{"(y := 3)", &syntax.Named{}},
		{"None", &syntax.NoneLiteral{}},
		{"...", &syntax.EllipsisLiteral{}},
		{"1.5", &syntax.NumberLiteral{}},
	}
	for _, tt := range tests {
		mod := parse(t, tt.src+"\n")
		require.Len(t, mod.Body, 1, tt.src)
		assert.IsType(t, tt.want, mod.Body[0].(*syntax.ExprStmt).Value, tt.src)
	}

	chain := parse(t, "a and b and c\n").Body[0].(*syntax.ExprStmt).Value.(*syntax.BoolOp)
	assert.Len(t, chain.Values, 3)

	cmp := parse(t, "a is not b\n").Body[0].(*syntax.ExprStmt).Value.(*syntax.Compare)
	assert.Equal(t, []string{"is not"}, cmp.Ops)
}

func TestParseStringLiterals(t *testing.T) {
	t.Parallel()
	value := func(src string) string {
		mod := parse(t, src+"\n")
		return mod.Body[0].(*syntax.ExprStmt).Value.(*syntax.StringLiteral).Value
	}
	assert.Equal(t, "hello", value(`"hello"`))
	assert.Equal(t, "a\nb", value(`"a\nb"`))
	assert.Equal(t, `a\nb`, value(`r"a\nb"`))
	assert.Equal(t, "ab", value(`"a" 'b'`))
	assert.Equal(t, "doc", value(`"""doc"""`))
	assert.Equal(t, "\u00ff", value(`"\xff"`))
	assert.Equal(t, "é", value(`"\u00e9"`))

	bytesValue := func(src string) string {
		mod := parse(t, src+"\n")
		return mod.Body[0].(*syntax.ExprStmt).Value.(*syntax.BytesLiteral).Value
	}
	assert.Equal(t, "\xff\xfe", bytesValue(`b"\xff\xfe"`))
	assert.Equal(t, `\u00e9`, bytesValue(`b"\u00e9"`))
}

func TestParseTypeAlias(t *testing.T) {
	t.Parallel()
	mod := parse(t, "type Pair[T] = tuple[T, T]\n")
	require.Len(t, mod.Body, 1)
	ta := mod.Body[0].(*syntax.TypeAlias)
	assert.Equal(t, "Pair", ta.Name.(*syntax.Name).ID)
	require.NotNil(t, ta.TypeParams)
	assert.Len(t, ta.TypeParams.Params, 1)
	sub := ta.Value.(*syntax.Subscript)
	assert.Len(t, sub.Slice.(*syntax.Tuple).Elts, 2)
}

func TestParseRecoversFromSyntaxErrors(t *testing.T) {
	t.Parallel()
	mod := parse(t, "x = 1\ndef (:\ny = 2\n")
	var names []string
	syntax.Inspect(mod.Body, func(n syntax.Node) bool {
		if name, ok := n.(*syntax.Name); ok && name.ID != "" {
			names = append(names, name.ID)
		}
		return true
	})
	assert.Contains(t, names, "x")
}

func TestParseExpression(t *testing.T) {
	t.Parallel()
	e, err := ParseExpression(context.Background(), " list[int] ")
	require.NoError(t, err)
	assert.IsType(t, &syntax.Subscript{}, e)

	_, err = ParseExpression(context.Background(), "x = 1")
	assert.Error(t, err)
}

func TestParseMatchPatternValues(t *testing.T) {
	t.Parallel()
	src := "match x:\n    case {'k': v, mod.KEY: _}:\n        pass\n    case Point(x=-1, y=None) if v:\n        pass\n    case [a, *rest]:\n        pass\n"
	m := parse(t, src).Body[0].(*syntax.Match)
	require.Len(t, m.Cases, 3)

	kinds := func(es []syntax.Expr) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.Kind())
		}
		return out
	}
	assert.Equal(t, []string{"ExprStringLiteral", "ExprAttribute"}, kinds(m.Cases[0].Values))
	assert.Equal(t, []string{"ExprName", "ExprUnaryOp"}, kinds(m.Cases[1].Values))
	assert.NotNil(t, m.Cases[1].Guard)
	assert.Empty(t, m.Cases[2].Values, "captures are not values")

	attr := m.Cases[0].Values[1].(*syntax.Attribute)
	assert.Equal(t, "mod.KEY", src[attr.Start:attr.End])
	neg := m.Cases[1].Values[1]
	assert.Equal(t, "-1", src[neg.Span().Start:neg.Span().End])
}
