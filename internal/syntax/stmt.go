package syntax

type FunctionDef struct {
	Range
	Name       Identifier
	Decorators []*Decorator
	TypeParams *TypeParams
	Params     *Parameters
	Returns    Expr
	Body       []Stmt
	IsAsync    bool
}

type ClassDef struct {
	Range
	Name       Identifier
	Decorators []*Decorator
	TypeParams *TypeParams
	Arguments  *Arguments
	Body       []Stmt
}

type Return struct {
	Range
	Value Expr
}

type Delete struct {
	Range
	Targets []Expr
}

// Assign is "t1 = t2 = value". Chained targets are listed left to right.
type Assign struct {
	Range
	Targets []Expr
	Value   Expr
}

type AugAssign struct {
	Range
	Target Expr
	Op     string // "+", "-", ... without the trailing "="
	Value  Expr
}

type AnnAssign struct {
	Range
	Target     Expr
	Annotation Expr
	Value      Expr
}

// TypeAlias is a PEP 695 "type X = ..." statement.
type TypeAlias struct {
	Range
	Name       Expr
	TypeParams *TypeParams
	Value      Expr
}

type For struct {
	Range
	Target  Expr
	Iter    Expr
	Body    []Stmt
	Orelse  []Stmt
	IsAsync bool
}

type While struct {
	Range
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

type If struct {
	Range
	Test    Expr
	Body    []Stmt
	Clauses []*ElifElseClause
}

type With struct {
	Range
	Items   []*WithItem
	Body    []Stmt
	IsAsync bool
}

type Match struct {
	Range
	Subject Expr
	Cases   []*MatchCase
}

type Raise struct {
	Range
	Exc   Expr
	Cause Expr
}

type Try struct {
	Range
	Body      []Stmt
	Handlers  []*ExceptHandler
	Orelse    []Stmt
	Finalbody []Stmt
	IsStar    bool
}

type Assert struct {
	Range
	Test Expr
	Msg  Expr
}

type Import struct {
	Range
	Names []*Alias
}

// ImportFrom is "from <dots><module> import names". Level counts the dots.
type ImportFrom struct {
	Range
	Module string
	Level  int
	Names  []*Alias
}

type Global struct {
	Range
	Names []Identifier
}

type Nonlocal struct {
	Range
	Names []Identifier
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Range
	Value Expr
}

type Pass struct{ Range }

type Break struct{ Range }

type Continue struct{ Range }

func (*FunctionDef) Kind() string { return "StmtFunctionDef" }
func (*ClassDef) Kind() string    { return "StmtClassDef" }
func (*Return) Kind() string      { return "StmtReturn" }
func (*Delete) Kind() string      { return "StmtDelete" }
func (*Assign) Kind() string      { return "StmtAssign" }
func (*AugAssign) Kind() string   { return "StmtAugAssign" }
func (*AnnAssign) Kind() string   { return "StmtAnnAssign" }
func (*TypeAlias) Kind() string   { return "StmtTypeAlias" }
func (*For) Kind() string         { return "StmtFor" }
func (*While) Kind() string       { return "StmtWhile" }
func (*If) Kind() string          { return "StmtIf" }
func (*With) Kind() string        { return "StmtWith" }
func (*Match) Kind() string       { return "StmtMatch" }
func (*Raise) Kind() string       { return "StmtRaise" }
func (*Try) Kind() string         { return "StmtTry" }
func (*Assert) Kind() string      { return "StmtAssert" }
func (*Import) Kind() string      { return "StmtImport" }
func (*ImportFrom) Kind() string  { return "StmtImportFrom" }
func (*Global) Kind() string      { return "StmtGlobal" }
func (*Nonlocal) Kind() string    { return "StmtNonlocal" }
func (*ExprStmt) Kind() string    { return "StmtExpr" }
func (*Pass) Kind() string        { return "StmtPass" }
func (*Break) Kind() string       { return "StmtBreak" }
func (*Continue) Kind() string    { return "StmtContinue" }

func (*FunctionDef) stmtNode() {}
func (*ClassDef) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Delete) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*AnnAssign) stmtNode()   {}
func (*TypeAlias) stmtNode()   {}
func (*For) stmtNode()         {}
func (*While) stmtNode()       {}
func (*If) stmtNode()          {}
func (*With) stmtNode()        {}
func (*Match) stmtNode()       {}
func (*Raise) stmtNode()       {}
func (*Try) stmtNode()         {}
func (*Assert) stmtNode()      {}
func (*Import) stmtNode()      {}
func (*ImportFrom) stmtNode()  {}
func (*Global) stmtNode()      {}
func (*Nonlocal) stmtNode()    {}
func (*ExprStmt) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
