package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func name(id string, start uint32) *Name {
	return &Name{Range: Range{Start: start, End: start + uint32(len(id))}, ID: id}
}

func TestArgumentsInSourceOrder(t *testing.T) {
	t.Parallel()

	a := name("a", 2)
	b := name("b", 10)
	kw := &Keyword{Range: Range{Start: 5, End: 8}, Arg: &Identifier{ID: "k"}, Value: name("v", 7)}
	args := &Arguments{Args: []Expr{a, b}, Keywords: []*Keyword{kw}}

	got := args.InSourceOrder()
	assert.Equal(t, []Node{a, kw, b}, got)

	var nilArgs *Arguments
	assert.Empty(t, nilArgs.InSourceOrder())
}

func TestInspectSourceOrder(t *testing.T) {
	t.Parallel()

	// x = f(y)
	call := &Call{
		Range:     Range{Start: 4, End: 8},
		Func:      name("f", 4),
		Arguments: &Arguments{Args: []Expr{name("y", 6)}},
	}
	assign := &Assign{
		Range:   Range{Start: 0, End: 8},
		Targets: []Expr{&Name{Range: Range{Start: 0, End: 1}, ID: "x", Ctx: Store}},
		Value:   call,
	}

	var kinds []string
	Inspect([]Stmt{assign}, func(n Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	assert.Equal(t, []string{"StmtAssign", "ExprName", "ExprCall", "ExprName", "ExprName"}, kinds)
}

func TestWalkParametersOrder(t *testing.T) {
	t.Parallel()

	mk := func(id string, start uint32) *ParameterWithDefault {
		p := &Parameter{Range: Range{Start: start, End: start + 1}, Name: Identifier{ID: id}}
		return &ParameterWithDefault{Range: p.Range, Parameter: p}
	}
	ps := &Parameters{
		PosOnly: []*ParameterWithDefault{mk("a", 0)},
		Args:    []*ParameterWithDefault{mk("b", 3)},
		Vararg:  &Parameter{Range: Range{Start: 6, End: 10}, Name: Identifier{ID: "args"}},
		KwOnly:  []*ParameterWithDefault{mk("c", 12)},
		Kwarg:   &Parameter{Range: Range{Start: 15, End: 21}, Name: Identifier{ID: "kw"}},
	}
	assert.Equal(t, 5, ps.Len())

	var names []string
	fd := &FunctionDef{Params: ps}
	Inspect([]Stmt{fd}, func(n Node) bool {
		if p, ok := n.(*Parameter); ok {
			names = append(names, p.Name.ID)
		}
		return true
	})
	assert.Equal(t, []string{"a", "b", "args", "c", "kw"}, names)
}
