package syntax

// Visitor receives nodes during a source-order traversal. Implementations
// decide whether to descend by calling the matching Walk function.
type Visitor interface {
	VisitStmt(s Stmt)
	VisitExpr(e Expr)
	VisitComprehension(c *Comprehension)
	VisitParameter(p *Parameter)
	VisitParameterWithDefault(p *ParameterWithDefault)
	VisitAlias(a *Alias)
}

// WalkBody visits each statement of a block in order.
func WalkBody(v Visitor, body []Stmt) {
	for _, s := range body {
		v.VisitStmt(s)
	}
}

func visitOpt(v Visitor, e Expr) {
	if e != nil {
		v.VisitExpr(e)
	}
}

func visitAll(v Visitor, es []Expr) {
	for _, e := range es {
		v.VisitExpr(e)
	}
}

// WalkStmt visits the children of s in source order.
func WalkStmt(v Visitor, s Stmt) {
	switch s := s.(type) {
	case *FunctionDef:
		for _, d := range s.Decorators {
			v.VisitExpr(d.Expression)
		}
		WalkTypeParams(v, s.TypeParams)
		WalkParameters(v, s.Params)
		visitOpt(v, s.Returns)
		WalkBody(v, s.Body)
	case *ClassDef:
		for _, d := range s.Decorators {
			v.VisitExpr(d.Expression)
		}
		WalkTypeParams(v, s.TypeParams)
		WalkArguments(v, s.Arguments)
		WalkBody(v, s.Body)
	case *Return:
		visitOpt(v, s.Value)
	case *Delete:
		visitAll(v, s.Targets)
	case *Assign:
		visitAll(v, s.Targets)
		v.VisitExpr(s.Value)
	case *AugAssign:
		v.VisitExpr(s.Target)
		v.VisitExpr(s.Value)
	case *AnnAssign:
		v.VisitExpr(s.Target)
		v.VisitExpr(s.Annotation)
		visitOpt(v, s.Value)
	case *TypeAlias:
		v.VisitExpr(s.Name)
		WalkTypeParams(v, s.TypeParams)
		v.VisitExpr(s.Value)
	case *For:
		v.VisitExpr(s.Target)
		v.VisitExpr(s.Iter)
		WalkBody(v, s.Body)
		WalkBody(v, s.Orelse)
	case *While:
		v.VisitExpr(s.Test)
		WalkBody(v, s.Body)
		WalkBody(v, s.Orelse)
	case *If:
		v.VisitExpr(s.Test)
		WalkBody(v, s.Body)
		for _, c := range s.Clauses {
			visitOpt(v, c.Test)
			WalkBody(v, c.Body)
		}
	case *With:
		for _, item := range s.Items {
			v.VisitExpr(item.ContextExpr)
			visitOpt(v, item.OptionalVars)
		}
		WalkBody(v, s.Body)
	case *Match:
		v.VisitExpr(s.Subject)
		for _, c := range s.Cases {
			visitAll(v, c.Values)
			visitOpt(v, c.Guard)
			WalkBody(v, c.Body)
		}
	case *Raise:
		visitOpt(v, s.Exc)
		visitOpt(v, s.Cause)
	case *Try:
		WalkBody(v, s.Body)
		for _, h := range s.Handlers {
			visitOpt(v, h.Type)
			WalkBody(v, h.Body)
		}
		WalkBody(v, s.Orelse)
		WalkBody(v, s.Finalbody)
	case *Assert:
		v.VisitExpr(s.Test)
		visitOpt(v, s.Msg)
	case *Import:
		for _, a := range s.Names {
			v.VisitAlias(a)
		}
	case *ImportFrom:
		for _, a := range s.Names {
			v.VisitAlias(a)
		}
	case *ExprStmt:
		v.VisitExpr(s.Value)
	}
}

// WalkExpr visits the children of e in source order.
func WalkExpr(v Visitor, e Expr) {
	switch e := e.(type) {
	case *BoolOp:
		visitAll(v, e.Values)
	case *Named:
		v.VisitExpr(e.Target)
		v.VisitExpr(e.Value)
	case *BinOp:
		v.VisitExpr(e.Left)
		v.VisitExpr(e.Right)
	case *UnaryOp:
		v.VisitExpr(e.Operand)
	case *Lambda:
		WalkParameters(v, e.Params)
		v.VisitExpr(e.Body)
	case *IfExp:
		v.VisitExpr(e.Body)
		v.VisitExpr(e.Test)
		v.VisitExpr(e.Orelse)
	case *Dict:
		for _, item := range e.Items {
			visitOpt(v, item.Key)
			v.VisitExpr(item.Value)
		}
	case *Set:
		visitAll(v, e.Elts)
	case *ListComp:
		v.VisitExpr(e.Elt)
		walkGenerators(v, e.Generators)
	case *SetComp:
		v.VisitExpr(e.Elt)
		walkGenerators(v, e.Generators)
	case *Generator:
		v.VisitExpr(e.Elt)
		walkGenerators(v, e.Generators)
	case *DictComp:
		v.VisitExpr(e.Key)
		v.VisitExpr(e.Value)
		walkGenerators(v, e.Generators)
	case *Await:
		v.VisitExpr(e.Value)
	case *Yield:
		visitOpt(v, e.Value)
	case *YieldFrom:
		v.VisitExpr(e.Value)
	case *Compare:
		v.VisitExpr(e.Left)
		visitAll(v, e.Comparators)
	case *Call:
		v.VisitExpr(e.Func)
		WalkArguments(v, e.Arguments)
	case *FString:
		visitAll(v, e.Values)
	case *Attribute:
		v.VisitExpr(e.Value)
	case *Subscript:
		v.VisitExpr(e.Value)
		v.VisitExpr(e.Slice)
	case *Starred:
		v.VisitExpr(e.Value)
	case *List:
		visitAll(v, e.Elts)
	case *Tuple:
		visitAll(v, e.Elts)
	case *Slice:
		visitOpt(v, e.Lower)
		visitOpt(v, e.Upper)
		visitOpt(v, e.Step)
	}
}

func walkGenerators(v Visitor, gens []*Comprehension) {
	for _, g := range gens {
		v.VisitComprehension(g)
	}
}

// WalkComprehension visits target, iterator and filters in source order.
func WalkComprehension(v Visitor, c *Comprehension) {
	v.VisitExpr(c.Target)
	v.VisitExpr(c.Iter)
	visitAll(v, c.Ifs)
}

// WalkParameters visits every parameter of the list in source order.
func WalkParameters(v Visitor, ps *Parameters) {
	if ps == nil {
		return
	}
	for _, p := range ps.PosOnly {
		v.VisitParameterWithDefault(p)
	}
	for _, p := range ps.Args {
		v.VisitParameterWithDefault(p)
	}
	if ps.Vararg != nil {
		v.VisitParameter(ps.Vararg)
	}
	for _, p := range ps.KwOnly {
		v.VisitParameterWithDefault(p)
	}
	if ps.Kwarg != nil {
		v.VisitParameter(ps.Kwarg)
	}
}

// WalkParameter visits the annotation of p.
func WalkParameter(v Visitor, p *Parameter) {
	visitOpt(v, p.Annotation)
}

// WalkParameterWithDefault visits the wrapped parameter, then its default.
func WalkParameterWithDefault(v Visitor, p *ParameterWithDefault) {
	v.VisitParameter(p.Parameter)
	visitOpt(v, p.Default)
}

// WalkAlias is a no-op: aliases have no expression children.
func WalkAlias(Visitor, *Alias) {}

// WalkArguments visits positional arguments and keyword values in source
// order.
func WalkArguments(v Visitor, args *Arguments) {
	for _, n := range args.InSourceOrder() {
		switch n := n.(type) {
		case Expr:
			v.VisitExpr(n)
		case *Keyword:
			v.VisitExpr(n.Value)
		}
	}
}

// WalkTypeParams visits the bounds and defaults of a type parameter list.
func WalkTypeParams(v Visitor, tps *TypeParams) {
	if tps == nil {
		return
	}
	for _, tp := range tps.Params {
		visitOpt(v, tp.Bound)
		visitOpt(v, tp.Default)
	}
}

// Inspect calls fn for every statement and expression under body in source
// order, descending while fn returns true.
func Inspect(body []Stmt, fn func(Node) bool) {
	WalkBody(&inspector{fn: fn}, body)
}

type inspector struct {
	fn func(Node) bool
}

func (i *inspector) VisitStmt(s Stmt) {
	if i.fn(s) {
		WalkStmt(i, s)
	}
}

func (i *inspector) VisitExpr(e Expr) {
	if i.fn(e) {
		WalkExpr(i, e)
	}
}

func (i *inspector) VisitComprehension(c *Comprehension) {
	WalkComprehension(i, c)
}

func (i *inspector) VisitParameter(p *Parameter) {
	if i.fn(p) {
		WalkParameter(i, p)
	}
}

func (i *inspector) VisitParameterWithDefault(p *ParameterWithDefault) {
	if i.fn(p) {
		WalkParameterWithDefault(i, p)
	}
}

func (i *inspector) VisitAlias(a *Alias) {
	i.fn(a)
}
