package semantic

import (
	"github.com/jward/typewire/internal/syntax"
)

type scopeKind uint8

const (
	moduleScope scopeKind = iota
	typeParamScope
	classScope
	functionScope
	lambdaScope
	comprehensionScope
)

type scope struct {
	kind    scopeKind
	parent  *scope
	node    syntax.Node
	symbols map[string]*symbol
	stars   []*syntax.ImportFrom
}

func newScope(kind scopeKind, parent *scope, node syntax.Node) *scope {
	return &scope{kind: kind, parent: parent, node: node, symbols: make(map[string]*symbol)}
}

type symbol struct {
	name  string
	scope *scope
	decl  *definition
	defs  []*definition
}

type defKind uint8

const (
	defAssign defKind = iota
	defAnnAssign
	defAugAssign
	defFor
	defWith
	defComprehension
	defNamed
	defParam
	defFunction
	defClass
	defImport
	defImportFrom
	defTypeParam
	defTypeAlias
	defExcept
)

// definition is one binding of a symbol. Target is the node that carries
// the bound name: a Name, Parameter, Alias, FunctionDef, ClassDef,
// TypeParam or ExceptHandler. Owner is the construct whose evaluation
// produces the value (the statement, with item, comprehension or walrus).
type definition struct {
	kind   defKind
	sym    *symbol
	target syntax.Node
	owner  syntax.Node
	pos    uint32
}

// funcInfo is what the binder learns about one function body.
type funcInfo struct {
	def     *syntax.FunctionDef
	outer   *scope // evaluates decorators and defaults
	annot   *scope // evaluates annotations; holds PEP 695 type params
	body    *scope
	returns []*syntax.Return
	yields  bool
	owner   *classInfo
	// prev is the definition of the same name immediately before this one
	// in the same statement list, if any.
	prev *syntax.FunctionDef
}

// classInfo is what the binder learns about one class body.
type classInfo struct {
	def   *syntax.ClassDef
	outer *scope
	annot *scope
	body  *scope
	// selfAttrs are "self.x = ..." assignments in the class's methods, in
	// source order.
	selfAttrs []selfAttr
}

type selfAttr struct {
	name   string
	target *syntax.Attribute
	owner  syntax.Stmt
	method *funcInfo
}

// binder walks a module once, building scopes and recording where every
// name is bound and in which scope every name is read.
type binder struct {
	module    *scope
	cur       *scope
	fn        *funcInfo
	cls       *classInfo
	names     map[*syntax.Name]*scope
	defs      map[syntax.Node]*definition
	funcs     map[*syntax.FunctionDef]*funcInfo
	classes   map[*syntax.ClassDef]*classInfo
	lambdas   map[*syntax.Lambda]*scope
	comps     map[syntax.Expr]*scope
	annots    map[syntax.Expr]*scope
	typeAlias map[*syntax.TypeAlias]*scope
	// annotFuncs maps parameter and return annotations to their function.
	annotFuncs map[syntax.Expr]*syntax.FunctionDef
	// params maps each parameter to the FunctionDef or Lambda declaring it.
	params map[*syntax.Parameter]syntax.Node
	prev   syntax.Stmt
}

func bind(mod *syntax.Module) *binder {
	b := &binder{
		names:     make(map[*syntax.Name]*scope),
		defs:      make(map[syntax.Node]*definition),
		funcs:     make(map[*syntax.FunctionDef]*funcInfo),
		classes:   make(map[*syntax.ClassDef]*classInfo),
		lambdas:   make(map[*syntax.Lambda]*scope),
		comps:     make(map[syntax.Expr]*scope),
		annots:    make(map[syntax.Expr]*scope),
		typeAlias: make(map[*syntax.TypeAlias]*scope),

		annotFuncs: make(map[syntax.Expr]*syntax.FunctionDef),
		params:     make(map[*syntax.Parameter]syntax.Node),
	}
	b.module = newScope(moduleScope, nil, mod)
	b.cur = b.module
	syntax.WalkBody(b, mod.Body)
	return b
}

func (b *binder) define(sc *scope, name string, kind defKind, target, owner syntax.Node, pos uint32) *definition {
	sym := sc.symbols[name]
	if sym == nil {
		sym = &symbol{name: name, scope: sc}
		sc.symbols[name] = sym
	}
	d := &definition{kind: kind, sym: sym, target: target, owner: owner, pos: pos}
	sym.defs = append(sym.defs, d)
	if kind == defAnnAssign && sym.decl == nil {
		sym.decl = d
	}
	if kind == defParam && sym.decl == nil {
		if p, ok := target.(*syntax.Parameter); ok && p.Annotation != nil {
			sym.decl = d
		}
	}
	b.defs[target] = d
	return d
}

// bindTarget defines every name in an assignment target and visits the
// target's other sub-expressions.
func (b *binder) bindTarget(target syntax.Expr, kind defKind, owner syntax.Node, pos uint32) {
	switch t := target.(type) {
	case *syntax.Name:
		b.names[t] = b.cur
		if t.ID != "" {
			b.define(b.cur, t.ID, kind, t, owner, pos)
		}
	case *syntax.Tuple:
		for _, e := range t.Elts {
			b.bindTarget(e, kind, owner, pos)
		}
	case *syntax.List:
		for _, e := range t.Elts {
			b.bindTarget(e, kind, owner, pos)
		}
	case *syntax.Starred:
		b.bindTarget(t.Value, kind, owner, pos)
	case *syntax.Attribute:
		b.VisitExpr(t)
		if b.fn != nil && b.fn.owner != nil {
			if self, ok := t.Value.(*syntax.Name); ok && self.ID == firstParamName(b.fn.def) && !hasDecorator(b.fn.def, "staticmethod", "classmethod") {
				if stmt, ok := owner.(syntax.Stmt); ok {
					b.fn.owner.selfAttrs = append(b.fn.owner.selfAttrs, selfAttr{name: t.Attr.ID, target: t, owner: stmt, method: b.fn})
				}
			}
		}
	default:
		b.VisitExpr(target)
	}
}

func (b *binder) VisitStmt(s syntax.Stmt) {
	prev := b.prev
	b.prev = nil
	defer func() { b.prev = s }()

	switch s := s.(type) {
	case *syntax.FunctionDef:
		var sibling *syntax.FunctionDef
		if fd, ok := prev.(*syntax.FunctionDef); ok && fd.Name.ID == s.Name.ID {
			sibling = fd
		}
		b.functionDef(s, sibling)
	case *syntax.ClassDef:
		b.classDef(s)
	case *syntax.Assign:
		b.VisitExpr(s.Value)
		for _, t := range s.Targets {
			b.bindTarget(t, defAssign, s, s.End)
		}
	case *syntax.AnnAssign:
		b.annots[s.Annotation] = b.cur
		b.VisitExpr(s.Annotation)
		if s.Value != nil {
			b.VisitExpr(s.Value)
		}
		b.bindTarget(s.Target, defAnnAssign, s, s.End)
	case *syntax.AugAssign:
		b.VisitExpr(s.Value)
		if name, ok := s.Target.(*syntax.Name); ok {
			b.names[name] = b.cur
			b.define(b.cur, name.ID, defAugAssign, name, s, s.End)
		} else {
			b.VisitExpr(s.Target)
		}
	case *syntax.For:
		b.VisitExpr(s.Iter)
		b.bindTarget(s.Target, defFor, s, s.Iter.Span().End)
		syntax.WalkBody(b, s.Body)
		syntax.WalkBody(b, s.Orelse)
	case *syntax.With:
		for _, item := range s.Items {
			b.VisitExpr(item.ContextExpr)
			if item.OptionalVars != nil {
				b.bindTarget(item.OptionalVars, defWith, item, item.End)
			}
		}
		syntax.WalkBody(b, s.Body)
	case *syntax.Import:
		for _, a := range s.Names {
			name := a.BoundName()
			if a.AsName == nil {
				name = firstComponent(name)
			}
			b.define(b.cur, name, defImport, a, s, s.End)
		}
	case *syntax.ImportFrom:
		for _, a := range s.Names {
			if a.Name.ID == "*" {
				b.module.stars = append(b.module.stars, s)
				continue
			}
			b.define(b.cur, a.BoundName(), defImportFrom, a, s, s.End)
		}
	case *syntax.TypeAlias:
		annot := b.typeParams(s.TypeParams, s)
		b.typeAlias[s] = annot
		if name, ok := s.Name.(*syntax.Name); ok {
			b.names[name] = b.cur
			b.define(b.cur, name.ID, defTypeAlias, name, s, s.Start)
		}
		b.withScope(annot, func() { b.VisitExpr(s.Value) })
	case *syntax.Try:
		syntax.WalkBody(b, s.Body)
		for _, h := range s.Handlers {
			if h.Type != nil {
				b.VisitExpr(h.Type)
			}
			if h.Name != nil {
				b.define(b.cur, h.Name.ID, defExcept, h, h, h.Start)
			}
			syntax.WalkBody(b, h.Body)
		}
		syntax.WalkBody(b, s.Orelse)
		syntax.WalkBody(b, s.Finalbody)
	case *syntax.Return:
		if b.fn != nil {
			b.fn.returns = append(b.fn.returns, s)
		}
		syntax.WalkStmt(b, s)
	default:
		syntax.WalkStmt(b, s)
	}
}

// typeParams opens a type-parameter scope when tps is non-empty and
// defines its parameters there. It returns the scope annotations of the
// construct are evaluated in.
func (b *binder) typeParams(tps *syntax.TypeParams, owner syntax.Node) *scope {
	if tps == nil || len(tps.Params) == 0 {
		return b.cur
	}
	sc := newScope(typeParamScope, b.cur, owner)
	for _, tp := range tps.Params {
		b.define(sc, tp.Name.ID, defTypeParam, tp, owner, 0)
	}
	prev := b.cur
	b.cur = sc
	for _, tp := range tps.Params {
		if tp.Bound != nil {
			b.VisitExpr(tp.Bound)
		}
		if tp.Default != nil {
			b.VisitExpr(tp.Default)
		}
	}
	b.cur = prev
	return sc
}

func (b *binder) functionDef(fd, prev *syntax.FunctionDef) {
	for _, d := range fd.Decorators {
		b.VisitExpr(d.Expression)
	}
	info := &funcInfo{def: fd, outer: b.cur, prev: prev}
	if b.cur.kind == classScope {
		info.owner = b.cls
	}
	info.annot = b.typeParams(fd.TypeParams, fd)
	info.body = newScope(functionScope, info.annot, fd)
	b.funcs[fd] = info
	b.define(b.cur, fd.Name.ID, defFunction, fd, fd, fd.End)

	b.parameters(fd, fd.Params, info.annot, info.body)
	if fd.Returns != nil {
		b.annots[fd.Returns] = info.annot
		b.annotFuncs[fd.Returns] = fd
		b.withScope(info.annot, func() { b.VisitExpr(fd.Returns) })
	}

	prevFn, prevCls := b.fn, b.cls
	b.fn, b.cls = info, nil
	b.withScope(info.body, func() { syntax.WalkBody(b, fd.Body) })
	b.fn, b.cls = prevFn, prevCls
}

// parameters visits defaults in the current scope and annotations in annot,
// and defines each parameter in body. owner is a FunctionDef or a Lambda.
func (b *binder) parameters(owner syntax.Node, ps *syntax.Parameters, annot, body *scope) {
	if ps == nil {
		return
	}
	fd, _ := owner.(*syntax.FunctionDef)
	param := func(p *syntax.Parameter) {
		b.params[p] = owner
		if p.Annotation != nil {
			b.annots[p.Annotation] = annot
			if fd != nil {
				b.annotFuncs[p.Annotation] = fd
			}
			b.withScope(annot, func() { b.VisitExpr(p.Annotation) })
		}
		b.define(body, p.Name.ID, defParam, p, p, 0)
	}
	withDefault := func(pd *syntax.ParameterWithDefault) {
		if pd.Default != nil {
			b.VisitExpr(pd.Default)
		}
		param(pd.Parameter)
	}
	for _, pd := range ps.PosOnly {
		withDefault(pd)
	}
	for _, pd := range ps.Args {
		withDefault(pd)
	}
	if ps.Vararg != nil {
		param(ps.Vararg)
	}
	for _, pd := range ps.KwOnly {
		withDefault(pd)
	}
	if ps.Kwarg != nil {
		param(ps.Kwarg)
	}
}

func (b *binder) classDef(cd *syntax.ClassDef) {
	for _, d := range cd.Decorators {
		b.VisitExpr(d.Expression)
	}
	info := &classInfo{def: cd, outer: b.cur}
	info.annot = b.typeParams(cd.TypeParams, cd)
	info.body = newScope(classScope, info.annot, cd)
	b.classes[cd] = info
	b.define(b.cur, cd.Name.ID, defClass, cd, cd, cd.End)

	if cd.Arguments != nil {
		b.withScope(info.annot, func() {
			for _, a := range cd.Arguments.Args {
				b.VisitExpr(a)
			}
			for _, k := range cd.Arguments.Keywords {
				b.VisitExpr(k.Value)
			}
		})
	}

	prevFn, prevCls := b.fn, b.cls
	b.fn, b.cls = nil, info
	b.withScope(info.body, func() { syntax.WalkBody(b, cd.Body) })
	b.fn, b.cls = prevFn, prevCls
}

func (b *binder) withScope(sc *scope, fn func()) {
	prev := b.cur
	b.cur = sc
	fn()
	b.cur = prev
}

func (b *binder) VisitExpr(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.Name:
		b.names[e] = b.cur
	case *syntax.Named:
		b.VisitExpr(e.Value)
		// Assignment expressions bind in the nearest enclosing
		// non-comprehension scope.
		sc := b.cur
		for sc.kind == comprehensionScope && sc.parent != nil {
			sc = sc.parent
		}
		b.names[e.Target] = b.cur
		b.define(sc, e.Target.ID, defNamed, e.Target, e, e.End)
	case *syntax.Lambda:
		body := newScope(lambdaScope, b.cur, e)
		b.lambdas[e] = body
		b.parameters(e, e.Params, b.cur, body)
		b.withScope(body, func() { b.VisitExpr(e.Body) })
	case *syntax.ListComp:
		b.comprehension(e, e.Generators, func() { b.VisitExpr(e.Elt) })
	case *syntax.SetComp:
		b.comprehension(e, e.Generators, func() { b.VisitExpr(e.Elt) })
	case *syntax.Generator:
		b.comprehension(e, e.Generators, func() { b.VisitExpr(e.Elt) })
	case *syntax.DictComp:
		b.comprehension(e, e.Generators, func() {
			b.VisitExpr(e.Key)
			b.VisitExpr(e.Value)
		})
	case *syntax.Yield, *syntax.YieldFrom:
		if b.fn != nil {
			b.fn.yields = true
		}
		syntax.WalkExpr(b, e)
	default:
		syntax.WalkExpr(b, e)
	}
}

// comprehension evaluates the first iterable in the enclosing scope and
// everything else in a new comprehension scope.
func (b *binder) comprehension(e syntax.Expr, gens []*syntax.Comprehension, elt func()) {
	sc := newScope(comprehensionScope, b.cur, e)
	b.comps[e] = sc
	for i, g := range gens {
		if i == 0 {
			b.VisitExpr(g.Iter)
		} else {
			b.withScope(sc, func() { b.VisitExpr(g.Iter) })
		}
		b.withScope(sc, func() {
			b.bindTarget(g.Target, defComprehension, g, g.Iter.Span().End)
			for _, cond := range g.Ifs {
				b.VisitExpr(cond)
			}
		})
	}
	b.withScope(sc, elt)
}

func (b *binder) VisitComprehension(c *syntax.Comprehension) { syntax.WalkComprehension(b, c) }
func (b *binder) VisitParameter(p *syntax.Parameter)         { syntax.WalkParameter(b, p) }
func (b *binder) VisitAlias(*syntax.Alias)                   {}

func (b *binder) VisitParameterWithDefault(p *syntax.ParameterWithDefault) {
	syntax.WalkParameterWithDefault(b, p)
}

func firstComponent(dotted string) string {
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			return dotted[:i]
		}
	}
	return dotted
}

func firstParamName(fd *syntax.FunctionDef) string {
	if fd.Params == nil {
		return ""
	}
	if len(fd.Params.PosOnly) > 0 {
		return fd.Params.PosOnly[0].Parameter.Name.ID
	}
	if len(fd.Params.Args) > 0 {
		return fd.Params.Args[0].Parameter.Name.ID
	}
	return ""
}

// decoratorName returns the last component of a decorator expression such
// as "property", "functools.cache" or "x.setter".
func decoratorName(d *syntax.Decorator) string {
	e := d.Expression
	if call, ok := e.(*syntax.Call); ok {
		e = call.Func
	}
	switch e := e.(type) {
	case *syntax.Name:
		return e.ID
	case *syntax.Attribute:
		return e.Attr.ID
	}
	return ""
}

func hasDecorator(fd *syntax.FunctionDef, names ...string) bool {
	for _, d := range fd.Decorators {
		n := decoratorName(d)
		for _, want := range names {
			if n == want {
				return true
			}
		}
	}
	return false
}
