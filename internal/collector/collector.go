// Package collector walks a syntax tree in source order and attributes a
// type id to every node the oracle can type. Statements are attributed only
// when they define something (functions, classes) or bind targets
// (assignments, for loops, with statements); compound targets are unwrapped
// so that tuples and lists on the left of an assignment carry no type of
// their own.
package collector

import (
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

// Oracle answers type questions about the nodes of one file.
type Oracle interface {
	// TypeOf reports the type of n, or false when n has none.
	TypeOf(n syntax.Node) (types.Type, bool)
	// Bindings matches a call against every overload of its callee. It
	// reports false when the callee is not callable.
	Bindings(call *syntax.Call) ([]types.Binding, bool)
	// Apply substitutes a specialization into t.
	Apply(t types.Type, s *types.Specialization) types.Type
}

// Registry interns types and tracks which ids are new to the caller.
type Registry interface {
	Register(t types.Type) (protocol.TypeID, bool)
	ResetNewTypes()
	DrainNewTypes() protocol.TypeMap
}

// Result is the outcome of one collection.
type Result struct {
	Nodes    []protocol.Attribution
	NewTypes protocol.TypeMap
}

// Collect attributes every node of tree and returns the attributions in
// source order together with the descriptors first interned during the
// walk.
func Collect(tree *syntax.Module, oracle Oracle, reg Registry) *Result {
	reg.ResetNewTypes()
	c := &collector{oracle: oracle, reg: reg}
	if tree != nil {
		syntax.WalkBody(c, tree.Body)
	}
	return &Result{Nodes: c.nodes, NewTypes: reg.DrainNewTypes()}
}

type collector struct {
	oracle Oracle
	reg    Registry
	nodes  []protocol.Attribution
}

var _ syntax.Visitor = (*collector)(nil)

func (c *collector) record(n syntax.Node, id *protocol.TypeID) *protocol.Attribution {
	r := n.Span()
	c.nodes = append(c.nodes, protocol.Attribution{
		Start:    r.Start,
		End:      r.End,
		NodeKind: n.Kind(),
		TypeID:   id,
	})
	return &c.nodes[len(c.nodes)-1]
}

// typeID interns the oracle's type for n, if it has one.
func (c *collector) typeID(n syntax.Node) *protocol.TypeID {
	t, ok := c.oracle.TypeOf(n)
	if !ok || t == nil {
		return nil
	}
	id, _ := c.reg.Register(t)
	return protocol.Ref(id)
}

func (c *collector) VisitStmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.FunctionDef, *syntax.ClassDef:
		c.record(s, c.typeID(s))
	case *syntax.Assign:
		c.record(s, nil)
		for _, t := range s.Targets {
			c.target(t)
		}
		c.VisitExpr(s.Value)
		return
	case *syntax.For:
		c.record(s, nil)
		c.target(s.Target)
		c.VisitExpr(s.Iter)
		syntax.WalkBody(c, s.Body)
		syntax.WalkBody(c, s.Orelse)
		return
	case *syntax.With:
		c.record(s, nil)
		for _, item := range s.Items {
			if item.OptionalVars != nil {
				c.target(item.OptionalVars)
			}
			c.VisitExpr(item.ContextExpr)
		}
		syntax.WalkBody(c, s.Body)
		return
	}
	syntax.WalkStmt(c, s)
}

// target visits an assignment target, descending through list and tuple
// displays without attributing the displays themselves.
func (c *collector) target(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.Tuple:
		for _, el := range e.Elts {
			c.target(el)
		}
	case *syntax.List:
		for _, el := range e.Elts {
			c.target(el)
		}
	default:
		c.VisitExpr(e)
	}
}

func (c *collector) VisitExpr(e syntax.Expr) {
	a := c.record(e, c.typeID(e))
	if call, ok := e.(*syntax.Call); ok {
		// a points into c.nodes; set it before the children grow the slice.
		a.CallSignature = ResolveCall(call, c.oracle, c.reg)
	}
	syntax.WalkExpr(c, e)
}

// VisitComprehension visits the iterator before the target it binds.
func (c *collector) VisitComprehension(comp *syntax.Comprehension) {
	c.VisitExpr(comp.Iter)
	c.target(comp.Target)
	for _, cond := range comp.Ifs {
		c.VisitExpr(cond)
	}
}

func (c *collector) VisitParameter(p *syntax.Parameter) {
	c.record(p, c.typeID(p))
	syntax.WalkParameter(c, p)
}

func (c *collector) VisitParameterWithDefault(p *syntax.ParameterWithDefault) {
	c.record(p, c.typeID(p))
	syntax.WalkParameterWithDefault(c, p)
}

func (c *collector) VisitAlias(a *syntax.Alias) {
	c.record(a, c.typeID(a))
}
