package syntax

// BoolOp is a flattened "a and b and c" or "a or b".
type BoolOp struct {
	Range
	Op     string // "and" or "or"
	Values []Expr
}

// Named is an assignment expression "target := value".
type Named struct {
	Range
	Target *Name
	Value  Expr
}

type BinOp struct {
	Range
	Left  Expr
	Op    string
	Right Expr
}

type UnaryOp struct {
	Range
	Op      string // "not", "-", "+", "~"
	Operand Expr
}

type Lambda struct {
	Range
	Params *Parameters
	Body   Expr
}

// IfExp is a conditional expression "body if test else orelse".
type IfExp struct {
	Range
	Test   Expr
	Body   Expr
	Orelse Expr
}

// DictItem is one entry of a dict display. Key is nil for "**mapping".
type DictItem struct {
	Key   Expr
	Value Expr
}

type Dict struct {
	Range
	Items []DictItem
}

type Set struct {
	Range
	Elts []Expr
}

type ListComp struct {
	Range
	Elt        Expr
	Generators []*Comprehension
}

type SetComp struct {
	Range
	Elt        Expr
	Generators []*Comprehension
}

type DictComp struct {
	Range
	Key        Expr
	Value      Expr
	Generators []*Comprehension
}

type Generator struct {
	Range
	Elt        Expr
	Generators []*Comprehension
}

type Await struct {
	Range
	Value Expr
}

type Yield struct {
	Range
	Value Expr
}

type YieldFrom struct {
	Range
	Value Expr
}

// Compare is a chained comparison "left op1 c1 op2 c2 ...".
type Compare struct {
	Range
	Left        Expr
	Ops         []string
	Comparators []Expr
}

type Call struct {
	Range
	Func      Expr
	Arguments *Arguments
}

// FString keeps only the interpolated expressions of an f-string.
type FString struct {
	Range
	Values []Expr
}

type StringLiteral struct {
	Range
	Value string
}

type BytesLiteral struct {
	Range
	Value string
}

// NumberLiteral is an int, float or complex literal. IntOK is set when the
// literal is an integer that fits in an int64.
type NumberLiteral struct {
	Range
	Text    string
	Int     int64
	IntOK   bool
	Float   bool
	Complex bool
}

type BooleanLiteral struct {
	Range
	Value bool
}

type NoneLiteral struct{ Range }

type EllipsisLiteral struct{ Range }

type Attribute struct {
	Range
	Value Expr
	Attr  Identifier
	Ctx   ExprContext
}

type Subscript struct {
	Range
	Value Expr
	Slice Expr
	Ctx   ExprContext
}

type Starred struct {
	Range
	Value Expr
	Ctx   ExprContext
}

type Name struct {
	Range
	ID  string
	Ctx ExprContext
}

type List struct {
	Range
	Elts []Expr
	Ctx  ExprContext
}

type Tuple struct {
	Range
	Elts          []Expr
	Ctx           ExprContext
	Parenthesized bool
}

type Slice struct {
	Range
	Lower Expr
	Upper Expr
	Step  Expr
}

func (*BoolOp) Kind() string          { return "ExprBoolOp" }
func (*Named) Kind() string           { return "ExprNamed" }
func (*BinOp) Kind() string           { return "ExprBinOp" }
func (*UnaryOp) Kind() string         { return "ExprUnaryOp" }
func (*Lambda) Kind() string          { return "ExprLambda" }
func (*IfExp) Kind() string           { return "ExprIf" }
func (*Dict) Kind() string            { return "ExprDict" }
func (*Set) Kind() string             { return "ExprSet" }
func (*ListComp) Kind() string        { return "ExprListComp" }
func (*SetComp) Kind() string         { return "ExprSetComp" }
func (*DictComp) Kind() string        { return "ExprDictComp" }
func (*Generator) Kind() string       { return "ExprGenerator" }
func (*Await) Kind() string           { return "ExprAwait" }
func (*Yield) Kind() string           { return "ExprYield" }
func (*YieldFrom) Kind() string       { return "ExprYieldFrom" }
func (*Compare) Kind() string         { return "ExprCompare" }
func (*Call) Kind() string            { return "ExprCall" }
func (*FString) Kind() string         { return "ExprFString" }
func (*StringLiteral) Kind() string   { return "ExprStringLiteral" }
func (*BytesLiteral) Kind() string    { return "ExprBytesLiteral" }
func (*NumberLiteral) Kind() string   { return "ExprNumberLiteral" }
func (*BooleanLiteral) Kind() string  { return "ExprBooleanLiteral" }
func (*NoneLiteral) Kind() string     { return "ExprNoneLiteral" }
func (*EllipsisLiteral) Kind() string { return "ExprEllipsisLiteral" }
func (*Attribute) Kind() string       { return "ExprAttribute" }
func (*Subscript) Kind() string       { return "ExprSubscript" }
func (*Starred) Kind() string         { return "ExprStarred" }
func (*Name) Kind() string            { return "ExprName" }
func (*List) Kind() string            { return "ExprList" }
func (*Tuple) Kind() string           { return "ExprTuple" }
func (*Slice) Kind() string           { return "ExprSlice" }

func (*BoolOp) exprNode()          {}
func (*Named) exprNode()           {}
func (*BinOp) exprNode()           {}
func (*UnaryOp) exprNode()         {}
func (*Lambda) exprNode()          {}
func (*IfExp) exprNode()           {}
func (*Dict) exprNode()            {}
func (*Set) exprNode()             {}
func (*ListComp) exprNode()        {}
func (*SetComp) exprNode()         {}
func (*DictComp) exprNode()        {}
func (*Generator) exprNode()       {}
func (*Await) exprNode()           {}
func (*Yield) exprNode()           {}
func (*YieldFrom) exprNode()       {}
func (*Compare) exprNode()         {}
func (*Call) exprNode()            {}
func (*FString) exprNode()         {}
func (*StringLiteral) exprNode()   {}
func (*BytesLiteral) exprNode()    {}
func (*NumberLiteral) exprNode()   {}
func (*BooleanLiteral) exprNode()  {}
func (*NoneLiteral) exprNode()     {}
func (*EllipsisLiteral) exprNode() {}
func (*Attribute) exprNode()       {}
func (*Subscript) exprNode()       {}
func (*Starred) exprNode()         {}
func (*Name) exprNode()            {}
func (*List) exprNode()            {}
func (*Tuple) exprNode()           {}
func (*Slice) exprNode()           {}
