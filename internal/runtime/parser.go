package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/typewire/internal/syntax"
)

// Parse parses Python source into a syntax tree. Syntax errors do not fail
// the parse: erroneous regions are dropped or lowered to empty names so
// that the rest of the file can still be analyzed.
func Parse(ctx context.Context, src []byte) (*syntax.Module, error) {
	lang, ok := ParserForLanguage("python")
	if !ok {
		return nil, fmt.Errorf("runtime: python grammar unavailable")
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("runtime: tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	l := &lowerer{src: src}
	return &syntax.Module{Range: rng(root), Body: l.stmts(root)}, nil
}

// ParseExpression parses a single expression, such as the contents of a
// string annotation.
func ParseExpression(ctx context.Context, text string) (syntax.Expr, error) {
	mod, err := Parse(ctx, []byte(strings.TrimSpace(text)))
	if err != nil {
		return nil, err
	}
	if len(mod.Body) != 1 {
		return nil, fmt.Errorf("runtime: %q is not a single expression", text)
	}
	es, ok := mod.Body[0].(*syntax.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("runtime: %q is not an expression", text)
	}
	return es.Value, nil
}

type lowerer struct {
	src []byte
}

func rng(n *sitter.Node) syntax.Range {
	return syntax.Range{Start: n.StartByte(), End: n.EndByte()}
}

func (l *lowerer) text(n *sitter.Node) string { return n.Content(l.src) }

func (l *lowerer) ident(n *sitter.Node) syntax.Identifier {
	if n == nil {
		return syntax.Identifier{}
	}
	return syntax.Identifier{Range: rng(n), ID: l.text(n)}
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// fieldChildren returns every child of n attached under field.
func fieldChildren(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// hasToken reports whether n has a direct anonymous child of type tok.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

func firstOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, c := range named(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

// placeholder stands in for a missing or unparseable expression.
func placeholder(r syntax.Range) syntax.Expr {
	return &syntax.Name{Range: r}
}

// exprOr lowers n, or returns a placeholder at the end of parent when n is
// absent.
func (l *lowerer) exprOr(n, parent *sitter.Node) syntax.Expr {
	if n == nil {
		end := parent.EndByte()
		return placeholder(syntax.Range{Start: end, End: end})
	}
	return l.expr(n)
}

func (l *lowerer) stmts(n *sitter.Node) []syntax.Stmt {
	var out []syntax.Stmt
	for _, c := range named(n) {
		if s := l.stmt(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l *lowerer) block(n *sitter.Node) []syntax.Stmt {
	if n == nil {
		return nil
	}
	return l.stmts(n)
}

func (l *lowerer) stmt(n *sitter.Node) syntax.Stmt {
	r := rng(n)
	switch n.Type() {
	case "expression_statement":
		kids := named(n)
		if len(kids) == 0 {
			return nil
		}
		if len(kids) > 1 {
			return &syntax.ExprStmt{Range: r, Value: l.tupleOf(kids, r, false)}
		}
		switch kids[0].Type() {
		case "assignment":
			return l.assignment(r, kids[0])
		case "augmented_assignment":
			return l.augAssign(r, kids[0])
		}
		return &syntax.ExprStmt{Range: r, Value: l.expr(kids[0])}
	case "return_statement":
		s := &syntax.Return{Range: r}
		if kids := named(n); len(kids) > 0 {
			s.Value = l.expr(kids[0])
		}
		return s
	case "delete_statement":
		s := &syntax.Delete{Range: r}
		for _, k := range named(n) {
			if k.Type() == "expression_list" {
				for _, e := range named(k) {
					s.Targets = append(s.Targets, withCtx(l.expr(e), syntax.Del))
				}
				continue
			}
			s.Targets = append(s.Targets, withCtx(l.expr(k), syntax.Del))
		}
		return s
	case "pass_statement":
		return &syntax.Pass{Range: r}
	case "break_statement":
		return &syntax.Break{Range: r}
	case "continue_statement":
		return &syntax.Continue{Range: r}
	case "raise_statement":
		s := &syntax.Raise{Range: r}
		cause := n.ChildByFieldName("cause")
		for _, k := range named(n) {
			if cause != nil && k.StartByte() == cause.StartByte() {
				continue
			}
			if s.Exc == nil {
				s.Exc = l.expr(k)
			}
		}
		if cause != nil {
			s.Cause = l.expr(cause)
		}
		return s
	case "global_statement", "nonlocal_statement":
		var names []syntax.Identifier
		for _, k := range named(n) {
			names = append(names, l.ident(k))
		}
		if n.Type() == "global_statement" {
			return &syntax.Global{Range: r, Names: names}
		}
		return &syntax.Nonlocal{Range: r, Names: names}
	case "assert_statement":
		kids := named(n)
		s := &syntax.Assert{Range: r, Test: l.exprOr(nil, n)}
		if len(kids) > 0 {
			s.Test = l.expr(kids[0])
		}
		if len(kids) > 1 {
			s.Msg = l.expr(kids[1])
		}
		return s
	case "import_statement":
		return &syntax.Import{Range: r, Names: l.aliases(fieldChildren(n, "name"))}
	case "import_from_statement", "future_import_statement":
		s := &syntax.ImportFrom{Range: r}
		if n.Type() == "future_import_statement" {
			s.Module = "__future__"
		} else if mod := n.ChildByFieldName("module_name"); mod != nil {
			s.Module, s.Level = l.moduleName(mod)
		}
		s.Names = l.aliases(fieldChildren(n, "name"))
		if w := firstOfType(n, "wildcard_import"); w != nil {
			s.Names = append(s.Names, &syntax.Alias{Range: rng(w), Name: syntax.Identifier{Range: rng(w), ID: "*"}})
		}
		return s
	case "if_statement":
		s := &syntax.If{
			Range: r,
			Test:  l.exprOr(n.ChildByFieldName("condition"), n),
			Body:  l.block(n.ChildByFieldName("consequence")),
		}
		for _, alt := range fieldChildren(n, "alternative") {
			c := &syntax.ElifElseClause{Range: rng(alt)}
			if alt.Type() == "elif_clause" {
				c.Test = l.exprOr(alt.ChildByFieldName("condition"), alt)
				c.Body = l.block(alt.ChildByFieldName("consequence"))
			} else {
				c.Body = l.block(alt.ChildByFieldName("body"))
			}
			s.Clauses = append(s.Clauses, c)
		}
		return s
	case "for_statement":
		return &syntax.For{
			Range:   r,
			Target:  withCtx(l.exprOr(n.ChildByFieldName("left"), n), syntax.Store),
			Iter:    l.exprOr(n.ChildByFieldName("right"), n),
			Body:    l.block(n.ChildByFieldName("body")),
			Orelse:  l.elseBody(n.ChildByFieldName("alternative")),
			IsAsync: hasToken(n, "async"),
		}
	case "while_statement":
		return &syntax.While{
			Range:  r,
			Test:   l.exprOr(n.ChildByFieldName("condition"), n),
			Body:   l.block(n.ChildByFieldName("body")),
			Orelse: l.elseBody(n.ChildByFieldName("alternative")),
		}
	case "try_statement":
		return l.try(r, n)
	case "with_statement":
		s := &syntax.With{Range: r, Body: l.block(n.ChildByFieldName("body")), IsAsync: hasToken(n, "async")}
		if clause := firstOfType(n, "with_clause"); clause != nil {
			for _, item := range named(clause) {
				if item.Type() == "with_item" {
					s.Items = append(s.Items, l.withItem(item))
				}
			}
		}
		return s
	case "function_definition":
		return l.function(r, n, nil)
	case "class_definition":
		return l.class(r, n, nil)
	case "decorated_definition":
		var decos []*syntax.Decorator
		for _, d := range named(n) {
			if d.Type() != "decorator" {
				continue
			}
			kids := named(d)
			deco := &syntax.Decorator{Range: rng(d), Expression: l.exprOr(nil, d)}
			if len(kids) > 0 {
				deco.Expression = l.expr(kids[0])
			}
			decos = append(decos, deco)
		}
		def := n.ChildByFieldName("definition")
		if def == nil {
			return nil
		}
		if def.Type() == "class_definition" {
			return l.class(r, def, decos)
		}
		return l.function(r, def, decos)
	case "match_statement":
		s := &syntax.Match{Range: r, Subject: l.exprOr(nil, n)}
		if subjects := fieldChildren(n, "subject"); len(subjects) == 1 {
			s.Subject = l.expr(subjects[0])
		} else if len(subjects) > 1 {
			s.Subject = l.tupleOf(subjects, spanOf(subjects), false)
		}
		body := n.ChildByFieldName("body")
		for _, c := range named(body) {
			if c.Type() != "case_clause" {
				continue
			}
			mc := &syntax.MatchCase{Range: rng(c), Body: l.block(c.ChildByFieldName("consequence"))}
			for _, p := range named(c) {
				if p.Type() == "case_pattern" {
					mc.Values = l.patternValues(p, mc.Values)
				}
			}
			if g := c.ChildByFieldName("guard"); g != nil {
				if kids := named(g); len(kids) > 0 {
					mc.Guard = l.expr(kids[0])
				}
			}
			s.Cases = append(s.Cases, mc)
		}
		return s
	case "type_alias_statement":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left == nil || right == nil {
			kids := named(n)
			if len(kids) < 2 {
				return nil
			}
			left, right = kids[0], kids[1]
		}
		s := &syntax.TypeAlias{Range: r, Value: l.expr(right)}
		inner := unwrapType(left)
		if inner.Type() == "generic_type" {
			kids := named(inner)
			s.Name = withCtx(l.expr(kids[0]), syntax.Store)
			if tp := firstOfType(inner, "type_parameter"); tp != nil {
				s.TypeParams = l.typeParams(tp)
			}
		} else {
			s.Name = withCtx(l.expr(inner), syntax.Store)
		}
		return s
	}
	return nil
}

func (l *lowerer) elseBody(n *sitter.Node) []syntax.Stmt {
	if n == nil {
		return nil
	}
	return l.block(n.ChildByFieldName("body"))
}

func (l *lowerer) assignment(r syntax.Range, a *sitter.Node) syntax.Stmt {
	left := a.ChildByFieldName("left")
	typ := a.ChildByFieldName("type")
	right := a.ChildByFieldName("right")
	if typ != nil {
		s := &syntax.AnnAssign{
			Range:      r,
			Target:     withCtx(l.exprOr(left, a), syntax.Store),
			Annotation: l.expr(typ),
		}
		if right != nil {
			s.Value = l.rhs(right)
		}
		return s
	}
	s := &syntax.Assign{Range: r, Targets: []syntax.Expr{withCtx(l.exprOr(left, a), syntax.Store)}}
	for right != nil && right.Type() == "assignment" && right.ChildByFieldName("type") == nil {
		s.Targets = append(s.Targets, withCtx(l.exprOr(right.ChildByFieldName("left"), right), syntax.Store))
		right = right.ChildByFieldName("right")
	}
	s.Value = l.exprOr(nil, a)
	if right != nil {
		s.Value = l.rhs(right)
	}
	return s
}

func (l *lowerer) augAssign(r syntax.Range, a *sitter.Node) syntax.Stmt {
	op := ""
	if o := a.ChildByFieldName("operator"); o != nil {
		op = strings.TrimSuffix(o.Type(), "=")
	}
	return &syntax.AugAssign{
		Range:  r,
		Target: withCtx(l.exprOr(a.ChildByFieldName("left"), a), syntax.Store),
		Op:     op,
		Value:  l.rhs(a.ChildByFieldName("right")),
	}
}

// rhs lowers the right-hand side of an assignment, where a bare comma
// list is a tuple.
func (l *lowerer) rhs(n *sitter.Node) syntax.Expr {
	if n == nil {
		return placeholder(syntax.Range{})
	}
	switch n.Type() {
	case "assignment":
		return l.rhs(n.ChildByFieldName("right"))
	case "augmented_assignment":
		return l.rhs(n.ChildByFieldName("right"))
	}
	return l.expr(n)
}

func (l *lowerer) try(r syntax.Range, n *sitter.Node) syntax.Stmt {
	s := &syntax.Try{Range: r, Body: l.block(n.ChildByFieldName("body"))}
	for _, c := range named(n) {
		switch c.Type() {
		case "except_clause", "except_group_clause":
			s.IsStar = s.IsStar || c.Type() == "except_group_clause"
			s.Handlers = append(s.Handlers, l.handler(c))
		case "else_clause":
			s.Orelse = l.block(c.ChildByFieldName("body"))
		case "finally_clause":
			if b := firstOfType(c, "block"); b != nil {
				s.Finalbody = l.block(b)
			}
		}
	}
	return s
}

func (l *lowerer) handler(c *sitter.Node) *syntax.ExceptHandler {
	h := &syntax.ExceptHandler{Range: rng(c)}
	value := c.ChildByFieldName("value")
	alias := c.ChildByFieldName("alias")
	var rest []*sitter.Node
	for _, k := range named(c) {
		if k.Type() == "block" {
			h.Body = l.block(k)
			continue
		}
		rest = append(rest, k)
	}
	if value == nil && len(rest) > 0 {
		value = rest[0]
		if as := value; as.Type() == "as_pattern" {
			alias = as.ChildByFieldName("alias")
			value = first(named(as))
		} else if len(rest) > 1 {
			alias = rest[1]
		}
	}
	if value != nil {
		h.Type = l.expr(value)
	}
	if alias != nil {
		id := l.ident(alias)
		if kids := named(alias); len(kids) == 1 {
			id = l.ident(kids[0])
		}
		h.Name = &id
	}
	return h
}

func (l *lowerer) withItem(item *sitter.Node) *syntax.WithItem {
	w := &syntax.WithItem{Range: rng(item)}
	value := item.ChildByFieldName("value")
	if value == nil {
		kids := named(item)
		if len(kids) == 0 {
			w.ContextExpr = l.exprOr(nil, item)
			return w
		}
		value = kids[0]
	}
	alias := item.ChildByFieldName("alias")
	if value.Type() == "as_pattern" {
		kids := named(value)
		alias = value.ChildByFieldName("alias")
		value = kids[0]
	}
	w.ContextExpr = l.expr(value)
	if alias != nil {
		target := alias
		if alias.Type() == "as_pattern_target" {
			if kids := named(alias); len(kids) > 0 {
				target = kids[0]
			}
		}
		w.OptionalVars = withCtx(l.expr(target), syntax.Store)
	}
	return w
}

func (l *lowerer) function(r syntax.Range, n *sitter.Node, decos []*syntax.Decorator) syntax.Stmt {
	fd := &syntax.FunctionDef{
		Range:      r,
		Name:       l.ident(n.ChildByFieldName("name")),
		Decorators: decos,
		Params:     l.params(n.ChildByFieldName("parameters")),
		Body:       l.block(n.ChildByFieldName("body")),
		IsAsync:    hasToken(n, "async"),
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		fd.TypeParams = l.typeParams(tp)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fd.Returns = l.expr(ret)
	}
	return fd
}

func (l *lowerer) class(r syntax.Range, n *sitter.Node, decos []*syntax.Decorator) syntax.Stmt {
	cd := &syntax.ClassDef{
		Range:      r,
		Name:       l.ident(n.ChildByFieldName("name")),
		Decorators: decos,
		Body:       l.block(n.ChildByFieldName("body")),
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		cd.TypeParams = l.typeParams(tp)
	}
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		cd.Arguments = l.arguments(sup)
	}
	return cd
}

// typeParams lowers a PEP 695 list. Each entry is a type node holding a
// name, a constrained_type "T: bound", or a splat_type "*Ts" / "**P".
func (l *lowerer) typeParams(n *sitter.Node) *syntax.TypeParams {
	tps := &syntax.TypeParams{Range: rng(n)}
	for _, k := range named(n) {
		inner := unwrapType(k)
		tp := &syntax.TypeParam{Range: rng(k)}
		switch inner.Type() {
		case "constrained_type":
			kids := named(inner)
			tp.Name = l.ident(unwrapType(kids[0]))
			if len(kids) > 1 {
				tp.Bound = l.expr(kids[1])
			}
		case "splat_type":
			tp.Flavor = syntax.TypeParamTypeVarTuple
			if strings.HasPrefix(l.text(inner), "**") {
				tp.Flavor = syntax.TypeParamParamSpec
			}
			if kids := named(inner); len(kids) > 0 {
				tp.Name = l.ident(kids[0])
			}
		default:
			tp.Name = l.ident(inner)
		}
		tps.Params = append(tps.Params, tp)
	}
	return tps
}

// unwrapType strips the grammar's "type" wrapper node.
func unwrapType(n *sitter.Node) *sitter.Node {
	for n.Type() == "type" {
		kids := named(n)
		if len(kids) != 1 {
			return n
		}
		n = kids[0]
	}
	return n
}

func (l *lowerer) params(n *sitter.Node) *syntax.Parameters {
	if n == nil {
		return nil
	}
	ps := &syntax.Parameters{Range: rng(n)}
	kwOnly := false
	add := func(p *syntax.ParameterWithDefault) {
		if kwOnly {
			ps.KwOnly = append(ps.KwOnly, p)
		} else {
			ps.Args = append(ps.Args, p)
		}
	}
	for _, k := range named(n) {
		switch k.Type() {
		case "identifier":
			p := &syntax.Parameter{Range: rng(k), Name: l.ident(k)}
			add(&syntax.ParameterWithDefault{Range: rng(k), Parameter: p})
		case "typed_parameter":
			typ := k.ChildByFieldName("type")
			inner := named(k)[0]
			p := &syntax.Parameter{Range: rng(k), Annotation: l.exprOr(typ, k)}
			switch inner.Type() {
			case "list_splat_pattern":
				p.Name = l.ident(named(inner)[0])
				ps.Vararg = p
				kwOnly = true
			case "dictionary_splat_pattern":
				p.Name = l.ident(named(inner)[0])
				ps.Kwarg = p
			default:
				p.Name = l.ident(inner)
				add(&syntax.ParameterWithDefault{Range: rng(k), Parameter: p})
			}
		case "default_parameter", "typed_default_parameter":
			name := k.ChildByFieldName("name")
			p := &syntax.Parameter{Name: l.ident(name), Range: rng(name)}
			if typ := k.ChildByFieldName("type"); typ != nil {
				p.Annotation = l.expr(typ)
				p.Range.End = typ.EndByte()
			}
			add(&syntax.ParameterWithDefault{
				Range:     rng(k),
				Parameter: p,
				Default:   l.exprOr(k.ChildByFieldName("value"), k),
			})
		case "list_splat_pattern":
			ps.Vararg = &syntax.Parameter{Range: rng(k), Name: l.ident(first(named(k)))}
			kwOnly = true
		case "dictionary_splat_pattern":
			ps.Kwarg = &syntax.Parameter{Range: rng(k), Name: l.ident(first(named(k)))}
		case "keyword_separator":
			kwOnly = true
		case "positional_separator":
			ps.PosOnly = append(ps.PosOnly, ps.Args...)
			ps.Args = nil
		}
	}
	return ps
}

func first(ns []*sitter.Node) *sitter.Node {
	if len(ns) == 0 {
		return nil
	}
	return ns[0]
}

func (l *lowerer) aliases(ns []*sitter.Node) []*syntax.Alias {
	var out []*syntax.Alias
	for _, n := range ns {
		a := &syntax.Alias{Range: rng(n)}
		if n.Type() == "aliased_import" {
			a.Name = l.ident(n.ChildByFieldName("name"))
			if as := n.ChildByFieldName("alias"); as != nil {
				id := l.ident(as)
				a.AsName = &id
			}
		} else {
			a.Name = l.ident(n)
		}
		out = append(out, a)
	}
	return out
}

func (l *lowerer) moduleName(n *sitter.Node) (string, int) {
	if n.Type() != "relative_import" {
		return l.text(n), 0
	}
	level := 0
	name := ""
	for _, k := range named(n) {
		switch k.Type() {
		case "import_prefix":
			level = strings.Count(l.text(k), ".")
		case "dotted_name":
			name = l.text(k)
		}
	}
	return name, level
}

func (l *lowerer) arguments(n *sitter.Node) *syntax.Arguments {
	args := &syntax.Arguments{Range: rng(n)}
	if n.Type() == "generator_expression" {
		args.Args = []syntax.Expr{l.expr(n)}
		return args
	}
	for _, k := range named(n) {
		switch k.Type() {
		case "keyword_argument":
			name := l.ident(k.ChildByFieldName("name"))
			args.Keywords = append(args.Keywords, &syntax.Keyword{
				Range: rng(k),
				Arg:   &name,
				Value: l.exprOr(k.ChildByFieldName("value"), k),
			})
		case "dictionary_splat":
			args.Keywords = append(args.Keywords, &syntax.Keyword{
				Range: rng(k),
				Value: l.exprOr(first(named(k)), k),
			})
		default:
			args.Args = append(args.Args, l.expr(k))
		}
	}
	return args
}

func spanOf(ns []*sitter.Node) syntax.Range {
	return syntax.Range{Start: ns[0].StartByte(), End: ns[len(ns)-1].EndByte()}
}

func (l *lowerer) tupleOf(ns []*sitter.Node, r syntax.Range, parenthesized bool) *syntax.Tuple {
	t := &syntax.Tuple{Range: r, Parenthesized: parenthesized}
	for _, n := range ns {
		t.Elts = append(t.Elts, l.expr(n))
	}
	return t
}

// withCtx marks e and, for tuples, lists and starred expressions, its
// elements with ctx.
func withCtx(e syntax.Expr, ctx syntax.ExprContext) syntax.Expr {
	switch e := e.(type) {
	case *syntax.Name:
		e.Ctx = ctx
	case *syntax.Attribute:
		e.Ctx = ctx
	case *syntax.Subscript:
		e.Ctx = ctx
	case *syntax.Starred:
		e.Ctx = ctx
		withCtx(e.Value, ctx)
	case *syntax.Tuple:
		e.Ctx = ctx
		for _, el := range e.Elts {
			withCtx(el, ctx)
		}
	case *syntax.List:
		e.Ctx = ctx
		for _, el := range e.Elts {
			withCtx(el, ctx)
		}
	}
	return e
}

func (l *lowerer) expr(n *sitter.Node) syntax.Expr {
	r := rng(n)
	switch n.Type() {
	case "identifier", "keyword_identifier":
		return &syntax.Name{Range: r, ID: l.text(n)}
	case "integer":
		return l.number(n, false)
	case "float":
		return l.number(n, true)
	case "true", "false":
		return &syntax.BooleanLiteral{Range: r, Value: n.Type() == "true"}
	case "none":
		return &syntax.NoneLiteral{Range: r}
	case "ellipsis":
		return &syntax.EllipsisLiteral{Range: r}
	case "string":
		return l.stringExpr(r, []*sitter.Node{n})
	case "concatenated_string":
		return l.stringExpr(r, named(n))
	case "attribute":
		return &syntax.Attribute{
			Range: r,
			Value: l.exprOr(n.ChildByFieldName("object"), n),
			Attr:  l.ident(n.ChildByFieldName("attribute")),
		}
	case "subscript":
		s := &syntax.Subscript{Range: r, Value: l.exprOr(n.ChildByFieldName("value"), n)}
		idx := fieldChildren(n, "subscript")
		switch len(idx) {
		case 0:
			s.Slice = l.exprOr(nil, n)
		case 1:
			s.Slice = l.expr(idx[0])
		default:
			s.Slice = l.tupleOf(idx, spanOf(idx), false)
		}
		return s
	case "slice":
		return l.slice(r, n)
	case "call":
		c := &syntax.Call{Range: r, Func: l.exprOr(n.ChildByFieldName("function"), n)}
		if a := n.ChildByFieldName("arguments"); a != nil {
			c.Arguments = l.arguments(a)
		} else {
			c.Arguments = &syntax.Arguments{Range: syntax.Range{Start: r.End, End: r.End}}
		}
		return c
	case "list", "list_pattern":
		list := &syntax.List{Range: r}
		for _, k := range named(n) {
			list.Elts = append(list.Elts, l.expr(k))
		}
		return list
	case "set":
		set := &syntax.Set{Range: r}
		for _, k := range named(n) {
			set.Elts = append(set.Elts, l.expr(k))
		}
		return set
	case "tuple", "tuple_pattern":
		return l.tupleOf(named(n), r, true)
	case "expression_list", "pattern_list":
		return l.tupleOf(named(n), r, false)
	case "dictionary":
		d := &syntax.Dict{Range: r}
		for _, k := range named(n) {
			switch k.Type() {
			case "pair":
				d.Items = append(d.Items, syntax.DictItem{
					Key:   l.exprOr(k.ChildByFieldName("key"), k),
					Value: l.exprOr(k.ChildByFieldName("value"), k),
				})
			case "dictionary_splat":
				d.Items = append(d.Items, syntax.DictItem{Value: l.exprOr(first(named(k)), k)})
			}
		}
		return d
	case "parenthesized_expression":
		kids := named(n)
		if len(kids) == 0 {
			return &syntax.Tuple{Range: r, Parenthesized: true}
		}
		return l.expr(kids[0])
	case "list_splat", "list_splat_pattern":
		return &syntax.Starred{Range: r, Value: l.exprOr(first(named(n)), n)}
	case "dictionary_splat":
		return l.exprOr(first(named(n)), n)
	case "list_comprehension":
		return &syntax.ListComp{Range: r, Elt: l.exprOr(n.ChildByFieldName("body"), n), Generators: l.generators(n)}
	case "set_comprehension":
		return &syntax.SetComp{Range: r, Elt: l.exprOr(n.ChildByFieldName("body"), n), Generators: l.generators(n)}
	case "generator_expression":
		return &syntax.Generator{Range: r, Elt: l.exprOr(n.ChildByFieldName("body"), n), Generators: l.generators(n)}
	case "dictionary_comprehension":
		dc := &syntax.DictComp{Range: r, Generators: l.generators(n)}
		body := n.ChildByFieldName("body")
		if body == nil {
			body = firstOfType(n, "pair")
		}
		if body != nil {
			dc.Key = l.exprOr(body.ChildByFieldName("key"), body)
			dc.Value = l.exprOr(body.ChildByFieldName("value"), body)
		} else {
			dc.Key, dc.Value = l.exprOr(nil, n), l.exprOr(nil, n)
		}
		return dc
	case "lambda":
		lam := &syntax.Lambda{Range: r, Body: l.exprOr(n.ChildByFieldName("body"), n)}
		if p := n.ChildByFieldName("parameters"); p != nil {
			lam.Params = l.params(p)
		}
		return lam
	case "conditional_expression":
		kids := named(n)
		if len(kids) < 3 {
			return placeholder(r)
		}
		return &syntax.IfExp{Range: r, Body: l.expr(kids[0]), Test: l.expr(kids[1]), Orelse: l.expr(kids[2])}
	case "boolean_operator":
		op := "and"
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		b := &syntax.BoolOp{Range: r, Op: op}
		left := l.exprOr(n.ChildByFieldName("left"), n)
		if inner, ok := left.(*syntax.BoolOp); ok && inner.Op == op {
			b.Values = append(b.Values, inner.Values...)
		} else {
			b.Values = append(b.Values, left)
		}
		b.Values = append(b.Values, l.exprOr(n.ChildByFieldName("right"), n))
		return b
	case "not_operator":
		return &syntax.UnaryOp{Range: r, Op: "not", Operand: l.exprOr(n.ChildByFieldName("argument"), n)}
	case "binary_operator":
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		return &syntax.BinOp{
			Range: r,
			Left:  l.exprOr(n.ChildByFieldName("left"), n),
			Op:    op,
			Right: l.exprOr(n.ChildByFieldName("right"), n),
		}
	case "unary_operator":
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		return &syntax.UnaryOp{Range: r, Op: op, Operand: l.exprOr(n.ChildByFieldName("argument"), n)}
	case "comparison_operator":
		return l.compare(r, n)
	case "named_expression":
		target := &syntax.Name{Range: syntax.Range{Start: r.Start, End: r.Start}, Ctx: syntax.Store}
		if name := n.ChildByFieldName("name"); name != nil {
			target.Range, target.ID = rng(name), l.text(name)
		}
		return &syntax.Named{Range: r, Target: target, Value: l.exprOr(n.ChildByFieldName("value"), n)}
	case "await":
		return &syntax.Await{Range: r, Value: l.exprOr(first(named(n)), n)}
	case "yield":
		var value syntax.Expr
		if v := first(named(n)); v != nil {
			value = l.expr(v)
		}
		if hasToken(n, "from") {
			if value == nil {
				value = l.exprOr(nil, n)
			}
			return &syntax.YieldFrom{Range: r, Value: value}
		}
		return &syntax.Yield{Range: r, Value: value}
	case "type":
		inner := unwrapType(n)
		if inner == n {
			return l.exprOr(first(named(n)), n)
		}
		return l.expr(inner)
	case "generic_type":
		kids := named(n)
		s := &syntax.Subscript{Range: r, Value: l.expr(kids[0])}
		if tp := firstOfType(n, "type_parameter"); tp != nil {
			args := named(tp)
			switch len(args) {
			case 0:
				s.Slice = &syntax.Tuple{Range: rng(tp)}
			case 1:
				s.Slice = l.expr(args[0])
			default:
				s.Slice = l.tupleOf(args, spanOf(args), false)
			}
		} else {
			s.Slice = l.exprOr(nil, n)
		}
		return s
	case "union_type":
		kids := named(n)
		if len(kids) != 2 {
			return placeholder(r)
		}
		return &syntax.BinOp{Range: r, Left: l.expr(kids[0]), Op: "|", Right: l.expr(kids[1])}
	case "member_type":
		kids := named(n)
		if len(kids) != 2 {
			return placeholder(r)
		}
		return &syntax.Attribute{Range: r, Value: l.expr(kids[0]), Attr: l.ident(kids[1])}
	case "splat_type":
		return &syntax.Starred{Range: r, Value: l.exprOr(first(named(n)), n)}
	case "as_pattern":
		return l.exprOr(first(named(n)), n)
	}
	return placeholder(r)
}

func (l *lowerer) number(n *sitter.Node, isFloat bool) syntax.Expr {
	text := l.text(n)
	lit := &syntax.NumberLiteral{Range: rng(n), Text: text}
	lower := strings.ToLower(text)
	switch {
	case strings.HasSuffix(lower, "j"):
		lit.Complex = true
	case isFloat:
		lit.Float = true
	default:
		digits := strings.TrimSuffix(lower, "l")
		if v, err := strconv.ParseInt(digits, 0, 64); err == nil {
			lit.Int, lit.IntOK = v, true
		}
	}
	return lit
}

func (l *lowerer) slice(r syntax.Range, n *sitter.Node) syntax.Expr {
	s := &syntax.Slice{Range: r}
	colons := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == ":" {
				colons++
			}
			continue
		}
		if c.Type() == "comment" {
			continue
		}
		e := l.expr(c)
		switch colons {
		case 0:
			s.Lower = e
		case 1:
			s.Upper = e
		default:
			s.Step = e
		}
	}
	return s
}

func (l *lowerer) compare(r syntax.Range, n *sitter.Node) syntax.Expr {
	c := &syntax.Compare{Range: r}
	for i := 0; i < int(n.ChildCount()); i++ {
		k := n.Child(i)
		if n.FieldNameForChild(i) == "operators" {
			c.Ops = append(c.Ops, k.Type())
			continue
		}
		if !k.IsNamed() || k.Type() == "comment" {
			continue
		}
		if c.Left == nil {
			c.Left = l.expr(k)
			continue
		}
		c.Comparators = append(c.Comparators, l.expr(k))
	}
	if c.Left == nil {
		c.Left = placeholder(r)
	}
	return c
}

func (l *lowerer) generators(n *sitter.Node) []*syntax.Comprehension {
	var gens []*syntax.Comprehension
	for _, k := range named(n) {
		switch k.Type() {
		case "for_in_clause":
			g := &syntax.Comprehension{
				Range:   rng(k),
				Target:  withCtx(l.exprOr(k.ChildByFieldName("left"), k), syntax.Store),
				IsAsync: hasToken(k, "async"),
			}
			rights := fieldChildren(k, "right")
			switch len(rights) {
			case 0:
				g.Iter = l.exprOr(nil, k)
			case 1:
				g.Iter = l.expr(rights[0])
			default:
				g.Iter = l.tupleOf(rights, spanOf(rights), false)
			}
			gens = append(gens, g)
		case "if_clause":
			if len(gens) == 0 {
				continue
			}
			last := gens[len(gens)-1]
			last.Ifs = append(last.Ifs, l.exprOr(first(named(k)), k))
			last.Range.End = k.EndByte()
		}
	}
	return gens
}

// patternValues appends the expressions evaluated by a case pattern.
// Singletons (True, False, None) compare by identity and, like captures,
// contribute no expression.
func (l *lowerer) patternValues(n *sitter.Node, out []syntax.Expr) []syntax.Expr {
	switch n.Type() {
	case "string", "concatenated_string", "integer", "float":
		return append(out, l.expr(n))
	case "true", "false", "none", "identifier", "comment":
		return out
	case "dotted_name":
		if n.NamedChildCount() > 1 {
			out = append(out, l.dotted(n))
		}
		return out
	case "class_pattern":
		kids := named(n)
		if len(kids) > 0 && kids[0].Type() == "dotted_name" {
			out = append(out, l.dotted(kids[0]))
			kids = kids[1:]
		}
		for _, k := range kids {
			out = l.patternValues(k, out)
		}
		return out
	case "complex_pattern":
		if e := l.complexPattern(n); e != nil {
			out = append(out, e)
		}
		return out
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.Type() == "-" && i+1 < count {
			if next := n.Child(i + 1); next != nil && (next.Type() == "integer" || next.Type() == "float") {
				out = append(out, &syntax.UnaryOp{
					Range:   syntax.Range{Start: c.StartByte(), End: next.EndByte()},
					Op:      "-",
					Operand: l.expr(next),
				})
				i++
			}
			continue
		}
		if c.IsNamed() {
			out = l.patternValues(c, out)
		}
	}
	return out
}

// complexPattern lowers "[-]real (+|-) imag" into the binary expression it
// denotes, or returns nil for a malformed pattern.
func (l *lowerer) complexPattern(n *sitter.Node) syntax.Expr {
	var (
		operands []syntax.Expr
		op       string
		negate   *sitter.Node
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c == nil:
		case c.IsNamed():
			var e syntax.Expr = l.expr(c)
			if negate != nil {
				e = &syntax.UnaryOp{Range: syntax.Range{Start: negate.StartByte(), End: c.EndByte()}, Op: "-", Operand: e}
				negate = nil
			}
			operands = append(operands, e)
		case c.Type() == "-" && len(operands) == 0:
			negate = c
		case c.Type() == "+" || c.Type() == "-":
			op = c.Type()
		}
	}
	if len(operands) != 2 || op == "" {
		return nil
	}
	return &syntax.BinOp{Range: rng(n), Left: operands[0], Op: op, Right: operands[1]}
}

// dotted lowers a dotted_name into a Name or a chain of attribute loads.
func (l *lowerer) dotted(n *sitter.Node) syntax.Expr {
	parts := named(n)
	var e syntax.Expr = &syntax.Name{Range: rng(parts[0]), ID: l.text(parts[0]), Ctx: syntax.Load}
	for _, p := range parts[1:] {
		e = &syntax.Attribute{
			Range: syntax.Range{Start: n.StartByte(), End: p.EndByte()},
			Value: e,
			Attr:  l.ident(p),
			Ctx:   syntax.Load,
		}
	}
	return e
}

// stringExpr lowers one or more adjacent string nodes. Any f-string part makes
// the whole expression an f-string; bytes parts make it bytes.
func (l *lowerer) stringExpr(r syntax.Range, parts []*sitter.Node) syntax.Expr {
	var (
		value   strings.Builder
		isBytes bool
		isF     bool
		interps []syntax.Expr
	)
	for _, p := range parts {
		if p.Type() != "string" {
			continue
		}
		prefix, body := splitString(l.text(p))
		raw := strings.ContainsAny(prefix, "rR")
		if strings.ContainsAny(prefix, "bB") {
			isBytes = true
		}
		if strings.ContainsAny(prefix, "fF") {
			isF = true
			for _, c := range named(p) {
				if c.Type() != "interpolation" {
					continue
				}
				e := c.ChildByFieldName("expression")
				if e == nil {
					e = first(named(c))
				}
				if e != nil {
					interps = append(interps, l.expr(e))
				}
			}
			continue
		}
		if raw {
			value.WriteString(body)
		} else {
			value.WriteString(unescape(body, isBytes))
		}
	}
	switch {
	case isF:
		return &syntax.FString{Range: r, Values: interps}
	case isBytes:
		return &syntax.BytesLiteral{Range: r, Value: value.String()}
	}
	return &syntax.StringLiteral{Range: r, Value: value.String()}
}

// splitString separates a string token into its prefix letters and the
// text between its quotes.
func splitString(tok string) (prefix, body string) {
	i := strings.IndexAny(tok, `"'`)
	if i < 0 {
		return "", tok
	}
	prefix, rest := tok[:i], tok[i:]
	q := rest[:1]
	if strings.HasPrefix(rest, q+q+q) && len(rest) >= 6 {
		q = q + q + q
	}
	body = strings.TrimPrefix(rest, q)
	body = strings.TrimSuffix(body, q)
	return prefix, body
}

// unescape decodes backslash escapes. In bytes \x names a byte and \u is
// not an escape; in text \x names a code point.
func unescape(s string, isBytes bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		case '\n':
			// line continuation
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					if isBytes {
						b.WriteByte(byte(v))
					} else {
						b.WriteRune(rune(v))
					}
					i += 2
					continue
				}
			}
			b.WriteString(`\x`)
		case 'u', 'U':
			if isBytes {
				b.WriteByte('\\')
				b.WriteByte(s[i])
				continue
			}
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+width < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += width
					continue
				}
			}
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
