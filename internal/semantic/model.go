package semantic

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

// cache memoizes one kind of answer. A key requested again while its own
// answer is being computed gets the cycle value instead.
type cache[K comparable, V any] struct {
	done map[K]V
	busy map[K]bool
}

func newCache[K comparable, V any]() cache[K, V] {
	return cache[K, V]{done: make(map[K]V), busy: make(map[K]bool)}
}

func (c *cache[K, V]) get(k K, cycle V, compute func() V) V {
	if v, ok := c.done[k]; ok {
		return v
	}
	if c.busy[k] {
		return cycle
	}
	c.busy[k] = true
	v := compute()
	delete(c.busy, k)
	c.done[k] = v
	return v
}

// Model answers type questions about one parsed file.
type Model struct {
	p      *Project
	in     *types.Interner
	src    *Source
	b      *binder
	key    string
	module *types.Module

	exprs    cache[syntax.Expr, types.Type]
	annots   cache[syntax.Expr, types.Type]
	defTypes cache[*definition, types.Type]
	calls    map[*syntax.Call][]types.Binding

	classes    map[*syntax.ClassDef]*types.Class
	classNodes map[*types.Class]*syntax.ClassDef
	classVars  cache[*syntax.ClassDef, *types.Specialization]
	funcs      cache[*syntax.FunctionDef, types.Type]
	funcNodes  map[*types.Function]*syntax.FunctionDef
	funcVars   cache[*syntax.FunctionDef, *types.Specialization]
	sigs       cache[*syntax.FunctionDef, *types.Signature]
	params     cache[*syntax.FunctionDef, []types.Parameter]
	selfAttrs  cache[string, types.Type]
	typeParams map[*syntax.TypeParam]*types.TypeVar
}

func newModel(p *Project, src *Source) *Model {
	hash := src.Hash
	if len(hash) > 16 {
		hash = hash[:16]
	}
	m := &Model{
		p:          p,
		in:         p.in,
		src:        src,
		b:          bind(src.Tree),
		key:        src.Module + "@" + hash,
		exprs:      newCache[syntax.Expr, types.Type](),
		annots:     newCache[syntax.Expr, types.Type](),
		defTypes:   newCache[*definition, types.Type](),
		calls:      make(map[*syntax.Call][]types.Binding),
		classes:    make(map[*syntax.ClassDef]*types.Class),
		classNodes: make(map[*types.Class]*syntax.ClassDef),
		classVars:  newCache[*syntax.ClassDef, *types.Specialization](),
		funcs:      newCache[*syntax.FunctionDef, types.Type](),
		funcNodes:  make(map[*types.Function]*syntax.FunctionDef),
		funcVars:   newCache[*syntax.FunctionDef, *types.Specialization](),
		sigs:       newCache[*syntax.FunctionDef, *types.Signature](),
		params:     newCache[*syntax.FunctionDef, []types.Parameter](),
		selfAttrs:  newCache[string, types.Type](),
		typeParams: make(map[*syntax.TypeParam]*types.TypeVar),
	}
	m.module = p.in.Module(src.Module, src.Path)
	return m
}

// Tree returns the syntax tree the model was built from.
func (m *Model) Tree() *syntax.Module { return m.src.Tree }

// Path returns the file the model was built from.
func (m *Model) Path() string { return m.src.Path }

// Source returns the parsed file.
func (m *Model) Source() *Source { return m.src }

// Interner returns the interner the model's types belong to.
func (m *Model) Interner() *types.Interner { return m.in }

// TypeOf returns the type of an expression, a definition, a parameter or
// an import alias. It reports false for nodes that have no type of their
// own, such as statements other than definitions.
func (m *Model) TypeOf(n syntax.Node) (types.Type, bool) {
	switch n := n.(type) {
	case *syntax.FunctionDef:
		return m.funcValue(n), true
	case *syntax.ClassDef:
		return m.in.ClassLiteral(m.classOf(n)), true
	case *syntax.Parameter:
		d := m.b.defs[n]
		if d == nil {
			return nil, false
		}
		return m.defType(d), true
	case *syntax.ParameterWithDefault:
		return m.TypeOf(n.Parameter)
	case *syntax.Alias:
		d := m.b.defs[n]
		if d == nil {
			return nil, false
		}
		return m.defType(d), true
	case syntax.Expr:
		if _, ok := m.b.annots[n]; ok {
			return m.annotation(n), true
		}
		return m.expr(n), true
	}
	return nil, false
}

// Bindings matches a call's arguments against every overload of its
// callee. It reports false when the callee is not callable.
func (m *Model) Bindings(call *syntax.Call) ([]types.Binding, bool) {
	if bs, ok := m.calls[call]; ok {
		return bs, bs != nil
	}
	m.calls[call] = nil
	callee := m.expr(call.Func)
	bs := m.bindCallee(callee, m.arguments(call.Arguments))
	m.calls[call] = bs
	return bs, bs != nil
}

// Apply substitutes a binding's specialization into t.
func (m *Model) Apply(t types.Type, s *types.Specialization) types.Type {
	return m.in.Apply(t, s)
}

// Label returns the display label of t.
func (m *Model) Label(t types.Type) string { return types.Display(t) }

func (m *Model) offsetKey(kind string, at uint32) string {
	return m.key + ":" + kind + ":" + strconv.FormatUint(uint64(at), 10)
}

// lookup resolves name as seen from sc at byte offset at.
func (m *Model) lookup(name string, sc *scope, at uint32) (types.Type, bool) {
	if sc == nil {
		sc = m.b.module
	}
	for s := sc; s != nil; s = s.parent {
		if s.kind == classScope && s != sc {
			continue
		}
		if sym, ok := s.symbols[name]; ok {
			return m.symbolType(sym, s == sc, at), true
		}
	}
	return m.global(name)
}

// global resolves a name that no enclosing scope binds: star imports,
// typing's own special forms, then builtins.
func (m *Model) global(name string) (types.Type, bool) {
	for _, imp := range m.b.module.stars {
		if mod, ok := m.importedModule(imp); ok && mod != m {
			if t, ok := mod.exported(name); ok {
				return t, true
			}
		}
	}
	if isTypingModule(m.src.Module) && specialForms[name] {
		return m.in.SpecialForm("typing." + name), true
	}
	if bm := m.p.builtins(); bm != nil && bm != m {
		if sym, ok := bm.b.module.symbols[name]; ok {
			return bm.symbolType(sym, false, 0), true
		}
	}
	return nil, false
}

// exported returns the public type of a module-level name, falling back to
// submodules of a package.
func (m *Model) exported(name string) (types.Type, bool) {
	if isTypingModule(m.src.Module) && specialForms[name] {
		return m.in.SpecialForm("typing." + name), true
	}
	if sym, ok := m.b.module.symbols[name]; ok {
		return m.symbolType(sym, false, 0), true
	}
	for _, imp := range m.b.module.stars {
		if mod, ok := m.importedModule(imp); ok && mod != m {
			if t, ok := mod.exported(name); ok {
				return t, true
			}
		}
	}
	if sub, ok := m.p.importModule(m.src.Module + "." + name); ok {
		return sub.module, true
	}
	return nil, false
}

// symbolType is the declared type of sym when it has one. Otherwise it is
// the type of the nearest preceding binding when the use is in the
// symbol's own scope, else the type of the last binding.
func (m *Model) symbolType(sym *symbol, sameScope bool, at uint32) types.Type {
	if sym.decl != nil {
		return m.defType(sym.decl)
	}
	var d *definition
	if sameScope {
		for _, x := range sym.defs {
			if x.pos <= at {
				d = x
			}
		}
	}
	if d == nil {
		d = sym.defs[len(sym.defs)-1]
	}
	return m.defType(d)
}

func (m *Model) defType(d *definition) types.Type {
	return m.defTypes.get(d, m.in.Unknown(), func() types.Type {
		t := m.computeDefType(d)
		if t == nil {
			return m.in.Unknown()
		}
		return t
	})
}

func (m *Model) computeDefType(d *definition) types.Type {
	switch d.kind {
	case defAssign:
		s := d.owner.(*syntax.Assign)
		value := m.expr(s.Value)
		for _, target := range s.Targets {
			if contains(target, d.target) {
				return m.assigned(target, value, d.target)
			}
		}
	case defAnnAssign:
		// A bare qualifier such as Final declares nothing, so the assigned
		// value decides.
		s := d.owner.(*syntax.AnnAssign)
		if s.Value != nil && isBareQualifier(m.expr(s.Annotation)) {
			return m.assigned(s.Target, m.expr(s.Value), d.target)
		}
		return m.annotation(s.Annotation)
	case defAugAssign:
		s := d.owner.(*syntax.AugAssign)
		name := d.target.(*syntax.Name)
		prev, ok := m.lookup(name.ID, d.sym.scope, s.Start)
		if !ok {
			prev = m.in.Unknown()
		}
		return m.binary(prev, s.Op, m.expr(s.Value), true)
	case defFor:
		s := d.owner.(*syntax.For)
		elem := m.iterate(m.expr(s.Iter))
		if s.IsAsync {
			elem = m.await(elem)
		}
		return m.assigned(s.Target, elem, d.target)
	case defWith:
		item := d.owner.(*syntax.WithItem)
		return m.assigned(item.OptionalVars, m.enter(m.expr(item.ContextExpr)), d.target)
	case defComprehension:
		g := d.owner.(*syntax.Comprehension)
		return m.assigned(g.Target, m.iterate(m.expr(g.Iter)), d.target)
	case defNamed:
		return m.expr(d.owner.(*syntax.Named).Value)
	case defParam:
		return m.paramType(d.target.(*syntax.Parameter))
	case defFunction:
		return m.funcValue(d.target.(*syntax.FunctionDef))
	case defClass:
		return m.in.ClassLiteral(m.classOf(d.target.(*syntax.ClassDef)))
	case defImport:
		return m.importType(d.target.(*syntax.Alias))
	case defImportFrom:
		return m.importFromType(d.owner.(*syntax.ImportFrom), d.target.(*syntax.Alias))
	case defTypeParam:
		return m.typeParamVar(d.target.(*syntax.TypeParam))
	case defTypeAlias:
		return m.typeAlias(d.owner.(*syntax.TypeAlias))
	case defExcept:
		h := d.owner.(*syntax.ExceptHandler)
		if h.Type == nil {
			return m.instanceOf("BaseException")
		}
		return m.exceptionType(m.expr(h.Type))
	}
	return nil
}

func (m *Model) exceptionType(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.ClassLiteral:
		return m.instance(t.Class)
	case *types.Instance:
		if t.Class.Is("builtins", "tuple") {
			members := make([]types.Type, len(t.Args))
			for i, a := range t.Args {
				members[i] = m.exceptionType(a)
			}
			return m.in.Union(members...)
		}
	}
	return m.in.Unknown()
}

func (m *Model) importType(a *syntax.Alias) types.Type {
	name := a.Name.ID
	if a.AsName == nil {
		name = firstComponent(name)
	}
	mod, ok := m.p.importModule(name)
	if !ok {
		return m.in.Unknown()
	}
	// "import a.b" binds a, but must still load a.b so attribute access
	// on a can reach it.
	if a.AsName == nil && name != a.Name.ID {
		m.p.importModule(a.Name.ID)
	}
	return mod.module
}

func (m *Model) importFromType(s *syntax.ImportFrom, a *syntax.Alias) types.Type {
	base := m.resolveRelative(s.Module, s.Level)
	if isTypingModule(base) && specialForms[a.Name.ID] {
		return m.in.SpecialForm("typing." + a.Name.ID)
	}
	mod, ok := m.p.importModule(base)
	if !ok {
		return m.in.Unknown()
	}
	if mod == m {
		if sym, ok := m.b.module.symbols[a.Name.ID]; ok && sym.defs[0].kind != defImportFrom {
			return m.symbolType(sym, false, 0)
		}
		return m.in.Unknown()
	}
	if t, ok := mod.exported(a.Name.ID); ok {
		return t
	}
	return m.in.Unknown()
}

func (m *Model) importedModule(s *syntax.ImportFrom) (*Model, bool) {
	return m.p.importModule(m.resolveRelative(s.Module, s.Level))
}

// resolveRelative turns "from ..pkg import x" into an absolute module name.
func (m *Model) resolveRelative(module string, level int) string {
	if level == 0 {
		return module
	}
	parts := strings.Split(m.src.Module, ".")
	if !strings.HasSuffix(m.src.Path, "__init__.py") && !strings.HasSuffix(m.src.Path, "__init__.pyi") {
		parts = parts[:len(parts)-1]
	}
	for i := 1; i < level && len(parts) > 0; i++ {
		parts = parts[:len(parts)-1]
	}
	if module != "" {
		parts = append(parts, module)
	}
	return strings.Join(parts, ".")
}

// assigned unpacks value along the path from an assignment target root to
// the name being bound.
func (m *Model) assigned(root syntax.Expr, value types.Type, target syntax.Node) types.Type {
	if syntax.Node(root) == target {
		return value
	}
	var elts []syntax.Expr
	switch r := root.(type) {
	case *syntax.Tuple:
		elts = r.Elts
	case *syntax.List:
		elts = r.Elts
	case *syntax.Starred:
		// value is already the element type of the starred slice.
		return m.assigned(r.Value, m.instanceOf("list", m.promote(value)), target)
	default:
		return m.in.Unknown()
	}
	star := -1
	for i, e := range elts {
		if _, ok := e.(*syntax.Starred); ok {
			star = i
		}
	}
	for i, e := range elts {
		if !contains(e, target) {
			continue
		}
		if i == star {
			return m.assigned(e, m.starSlice(value, i, len(elts)), target)
		}
		return m.assigned(e, m.unpackAt(value, i, star, len(elts)), target)
	}
	return m.in.Unknown()
}

// unpackAt is the type of position i when value is unpacked into n targets,
// one of which (at star, or -1) is starred.
func (m *Model) unpackAt(value types.Type, i, star, n int) types.Type {
	if inst, ok := value.(*types.Instance); ok && m.isTuple(inst.Class) && !inst.Variadic {
		idx := i
		if star >= 0 && i > star {
			idx = len(inst.Args) - (n - i)
		}
		if idx >= 0 && idx < len(inst.Args) {
			return inst.Args[idx]
		}
		return m.in.Unknown()
	}
	return m.iterate(value)
}

// starSlice is the value a starred target receives: always a list.
func (m *Model) starSlice(value types.Type, i, n int) types.Type {
	if inst, ok := value.(*types.Instance); ok && m.isTuple(inst.Class) && !inst.Variadic {
		end := len(inst.Args) - (n - i - 1)
		if i < end && end <= len(inst.Args) {
			return m.in.Union(inst.Args[i:end]...)
		}
		return m.in.Unknown()
	}
	return m.iterate(value)
}

// contains reports whether target is root or nested inside it.
func contains(root syntax.Expr, target syntax.Node) bool {
	if syntax.Node(root) == target {
		return true
	}
	switch r := root.(type) {
	case *syntax.Tuple:
		for _, e := range r.Elts {
			if contains(e, target) {
				return true
			}
		}
	case *syntax.List:
		for _, e := range r.Elts {
			if contains(e, target) {
				return true
			}
		}
	case *syntax.Starred:
		return contains(r.Value, target)
	}
	return false
}

// orderedSymbols returns a scope's symbols in order of first binding.
func orderedSymbols(sc *scope) []*symbol {
	out := make([]*symbol, 0, len(sc.symbols))
	for _, sym := range sc.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].defs[0].target.Span().Start < out[j].defs[0].target.Span().Start
	})
	return out
}

func isTypingModule(name string) bool {
	return name == "typing" || name == "typing_extensions"
}
