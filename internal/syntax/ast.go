// Package syntax defines the Python syntax tree consumed by the semantic
// model and the attribution collector. Node kinds and ranges follow the
// conventions of the ruff AST: every node carries a half-open byte range into
// the source file, and Kind reports a stable tag such as "StmtAssign" or
// "ExprCall".
package syntax

// Range is a half-open byte range [Start, End) into a source file.
type Range struct {
	Start uint32
	End   uint32
}

// Span returns the range itself. Embedding Range gives every node its Span.
func (r Range) Span() Range { return r }

// Contains reports whether offset falls inside the range.
func (r Range) Contains(offset uint32) bool {
	return offset >= r.Start && offset < r.End
}

// Node is implemented by every syntax tree node.
type Node interface {
	Kind() string
	Span() Range
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// ExprContext records whether an expression is read, assigned or deleted.
type ExprContext uint8

const (
	Load ExprContext = iota
	Store
	Del
)

// Module is the root of a parsed file.
type Module struct {
	Range
	Body []Stmt
}

func (*Module) Kind() string { return "ModModule" }

// Identifier is a bare name that is not itself an expression, such as a
// function name or an attribute name.
type Identifier struct {
	Range
	ID string
}

func (*Identifier) Kind() string { return "Identifier" }

// Decorator wraps the expression following an '@'.
type Decorator struct {
	Range
	Expression Expr
}

func (*Decorator) Kind() string { return "Decorator" }

// TypeParamKind distinguishes PEP 695 type parameter flavors.
type TypeParamKind uint8

const (
	TypeParamTypeVar TypeParamKind = iota
	TypeParamTypeVarTuple
	TypeParamParamSpec
)

// TypeParam is one entry of a PEP 695 type parameter list.
type TypeParam struct {
	Range
	Name    Identifier
	Flavor  TypeParamKind
	Bound   Expr // nil, a single bound, or a Tuple of constraints
	Default Expr
}

func (p *TypeParam) Kind() string {
	switch p.Flavor {
	case TypeParamTypeVarTuple:
		return "TypeParamTypeVarTuple"
	case TypeParamParamSpec:
		return "TypeParamParamSpec"
	}
	return "TypeParamTypeVar"
}

// TypeParams is a bracketed PEP 695 type parameter list.
type TypeParams struct {
	Range
	Params []*TypeParam
}

func (*TypeParams) Kind() string { return "TypeParams" }

// Parameter is a single formal parameter without its default.
type Parameter struct {
	Range
	Name       Identifier
	Annotation Expr
}

func (*Parameter) Kind() string { return "Parameter" }

// ParameterWithDefault wraps a positional or keyword parameter together with
// its optional default value.
type ParameterWithDefault struct {
	Range
	Parameter *Parameter
	Default   Expr
}

func (*ParameterWithDefault) Kind() string { return "ParameterWithDefault" }

// Parameters is a full parameter list. Vararg and Kwarg are nil when absent.
type Parameters struct {
	Range
	PosOnly []*ParameterWithDefault
	Args    []*ParameterWithDefault
	Vararg  *Parameter
	KwOnly  []*ParameterWithDefault
	Kwarg   *Parameter
}

func (*Parameters) Kind() string { return "Parameters" }

// Len returns the number of formal parameters.
func (p *Parameters) Len() int {
	if p == nil {
		return 0
	}
	n := len(p.PosOnly) + len(p.Args) + len(p.KwOnly)
	if p.Vararg != nil {
		n++
	}
	if p.Kwarg != nil {
		n++
	}
	return n
}

// Alias is one imported name in an import statement.
type Alias struct {
	Range
	Name   Identifier // possibly dotted, e.g. "os.path"
	AsName *Identifier
}

func (*Alias) Kind() string { return "Alias" }

// BoundName returns the name the alias binds in the importing scope.
func (a *Alias) BoundName() string {
	if a.AsName != nil {
		return a.AsName.ID
	}
	return a.Name.ID
}

// Keyword is a keyword argument in a call or class header. Arg is nil for a
// "**mapping" splat.
type Keyword struct {
	Range
	Arg   *Identifier
	Value Expr
}

func (*Keyword) Kind() string { return "Keyword" }

// Arguments holds the argument list of a call or class definition.
type Arguments struct {
	Range
	Args     []Expr
	Keywords []*Keyword
}

func (*Arguments) Kind() string { return "Arguments" }

// InSourceOrder returns positional arguments and keywords interleaved by
// their position in the source.
func (a *Arguments) InSourceOrder() []Node {
	if a == nil {
		return nil
	}
	out := make([]Node, 0, len(a.Args)+len(a.Keywords))
	i, j := 0, 0
	for i < len(a.Args) || j < len(a.Keywords) {
		switch {
		case j >= len(a.Keywords):
			out = append(out, a.Args[i])
			i++
		case i >= len(a.Args):
			out = append(out, a.Keywords[j])
			j++
		case a.Args[i].Span().Start <= a.Keywords[j].Start:
			out = append(out, a.Args[i])
			i++
		default:
			out = append(out, a.Keywords[j])
			j++
		}
	}
	return out
}

// Comprehension is one "for target in iter if cond..." clause.
type Comprehension struct {
	Range
	Target  Expr
	Iter    Expr
	Ifs     []Expr
	IsAsync bool
}

func (*Comprehension) Kind() string { return "Comprehension" }

// WithItem is one context manager in a with statement.
type WithItem struct {
	Range
	ContextExpr  Expr
	OptionalVars Expr
}

func (*WithItem) Kind() string { return "WithItem" }

// ExceptHandler is an except clause of a try statement.
type ExceptHandler struct {
	Range
	Type Expr
	Name *Identifier
	Body []Stmt
}

func (*ExceptHandler) Kind() string { return "ExceptHandlerExceptHandler" }

// ElifElseClause is an elif (Test set) or else (Test nil) branch.
type ElifElseClause struct {
	Range
	Test Expr
	Body []Stmt
}

func (*ElifElseClause) Kind() string { return "ElifElseClause" }

// MatchCase is one case block of a match statement. Patterns are kept
// only as the expressions they evaluate, in source order: literal and
// dotted value patterns, mapping keys and class names. Capture and
// wildcard names are not expressions and do not appear.
type MatchCase struct {
	Range
	Values []Expr
	Guard  Expr
	Body   []Stmt
}

func (*MatchCase) Kind() string { return "MatchCase" }
