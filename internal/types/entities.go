package types

// lazy memoizes a value computed on first use. A re-entrant request made
// while the value is being computed receives the cycle placeholder.
type lazy[T any] struct {
	state uint8 // 0 unresolved, 1 resolving, 2 resolved
	val   T
}

func (l *lazy[T]) get(resolve func() T, cycle T) T {
	switch l.state {
	case 2:
		return l.val
	case 1:
		return cycle
	}
	l.state = 1
	v := resolve()
	l.val = v
	l.state = 2
	return v
}

// ClassFlags describe properties discovered while resolving a class's bases.
type ClassFlags uint16

const (
	ClassProtocol ClassFlags = 1 << iota
	ClassTypedDict
	ClassEnum
	ClassNonTotal
	ClassFinal
)

// Member is a name declared directly in a class body.
type Member struct {
	Name string
	Type Type
}

// TypedDictField is one key of a TypedDict.
type TypedDictField struct {
	Name     string
	Type     Type
	Required bool
	ReadOnly bool
}

// ClassSource resolves the parts of a class that require inference. The
// semantic model implements it; Class memoizes every answer.
type ClassSource interface {
	ResolveBases(c *Class) []Type
	ResolveTypeParams(c *Class) []*TypeVar
	ResolveMembers(c *Class) []Member
	ResolveFields(c *Class) []TypedDictField
}

// Class is a class definition. It is an entity, not a type: the types that
// refer to it are ClassLiteral, GenericAlias, Instance and friends.
type Class struct {
	Name   string
	Module string
	key    string
	flags  ClassFlags
	src    ClassSource

	bases   lazy[[]Type]
	params  lazy[[]*TypeVar]
	members lazy[[]Member]
	fields  lazy[[]TypedDictField]
	mro     lazy[[]*Class]
	index   map[string]Type
}

// Key returns the identity key the class was interned under.
func (c *Class) Key() string { return c.key }

// QualifiedName returns module.Name, or Name for builtins.
func (c *Class) QualifiedName() string {
	if c.Module == "" || c.Module == "builtins" {
		return c.Name
	}
	return c.Module + "." + c.Name
}

// Is reports whether c is the class module.name.
func (c *Class) Is(module, name string) bool {
	return c.Name == name && c.Module == module
}

// SetFlag records a class property. Called by the ClassSource while it
// resolves bases.
func (c *Class) SetFlag(f ClassFlags) { c.flags |= f }

// HasFlag reports a class property, resolving bases first.
func (c *Class) HasFlag(f ClassFlags) bool {
	c.Bases()
	return c.flags&f != 0
}

// Bases returns the explicit bases as instance types (or Dynamic for an
// unresolvable base), in declaration order.
func (c *Class) Bases() []Type {
	if c.src == nil {
		return nil
	}
	return c.bases.get(func() []Type { return c.src.ResolveBases(c) }, nil)
}

// TypeParams returns the class's type parameters in order.
func (c *Class) TypeParams() []*TypeVar {
	if c.src == nil {
		return nil
	}
	return c.params.get(func() []*TypeVar { return c.src.ResolveTypeParams(c) }, nil)
}

// Members returns the names declared directly in the class body.
func (c *Class) Members() []Member {
	if c.src == nil {
		return nil
	}
	return c.members.get(func() []Member { return c.src.ResolveMembers(c) }, nil)
}

// Member looks up a name declared directly in the class body.
func (c *Class) Member(name string) (Type, bool) {
	if c.index == nil {
		ms := c.Members()
		if c.members.state != 2 {
			for _, m := range ms {
				if m.Name == name {
					return m.Type, true
				}
			}
			return nil, false
		}
		c.index = make(map[string]Type, len(ms))
		for _, m := range ms {
			c.index[m.Name] = m.Type
		}
	}
	t, ok := c.index[name]
	return t, ok
}

// Fields returns the TypedDict fields of c, including inherited ones.
func (c *Class) Fields() []TypedDictField {
	if c.src == nil {
		return nil
	}
	return c.fields.get(func() []TypedDictField { return c.src.ResolveFields(c) }, nil)
}

// MRO returns c followed by its ancestors in method resolution order.
// Dynamic bases are skipped.
func (c *Class) MRO() []*Class {
	return c.mro.get(func() []*Class { return linearize(c) }, []*Class{c})
}

// InheritsFrom reports whether module.name appears in c's MRO.
func (c *Class) InheritsFrom(module, name string) bool {
	for _, a := range c.MRO() {
		if a.Is(module, name) {
			return true
		}
	}
	return false
}

// HasDynamicBase reports whether any ancestor has an unresolvable base.
func (c *Class) HasDynamicBase() bool {
	for _, a := range c.MRO() {
		for _, b := range a.Bases() {
			if IsDynamic(b) {
				return true
			}
		}
	}
	return false
}

// linearize approximates C3 by a depth-first walk that keeps the last
// occurrence of each class. The two agree for consistent hierarchies that
// do not rely on C3's local precedence ordering.
func linearize(c *Class) []*Class {
	var order []*Class
	var visit func(k *Class, depth int)
	visit = func(k *Class, depth int) {
		if depth > 64 {
			return
		}
		order = append(order, k)
		for _, b := range k.Bases() {
			if inst, ok := b.(*Instance); ok {
				visit(inst.Class, depth+1)
			}
		}
	}
	visit(c, 0)

	last := make(map[*Class]int, len(order))
	for i, k := range order {
		last[k] = i
	}
	out := make([]*Class, 0, len(last))
	for i, k := range order {
		if last[k] == i {
			out = append(out, k)
		}
	}
	return out
}

// FunctionFlags describe how a function was decorated.
type FunctionFlags uint8

const (
	FuncStaticMethod FunctionFlags = 1 << iota
	FuncClassMethod
	FuncProperty
	FuncAsync
	FuncOverload
)

// SignatureSource resolves a function's overloads.
type SignatureSource interface {
	ResolveSignatures(f *Function) []*Signature
}

// Function is a function literal: a def statement, possibly overloaded.
type Function struct {
	header
	Name   string
	Module string
	Owner  *Class
	Flags  FunctionFlags
	key    string
	src    SignatureSource
	in     *Interner
	sigs   lazy[[]*Signature]
}

// Key returns the identity key the function was interned under.
func (f *Function) Key() string { return f.key }

// Overloads returns the function's signatures. A plain function has
// exactly one; an overloaded function lists its @overload signatures in
// declaration order.
func (f *Function) Overloads() []*Signature {
	cycle := []*Signature{f.in.GradualSignature()}
	if f.src == nil {
		return cycle
	}
	sigs := f.sigs.get(func() []*Signature {
		s := f.src.ResolveSignatures(f)
		if len(s) == 0 {
			return cycle
		}
		return s
	}, cycle)
	return sigs
}

// Signature returns the first overload.
func (f *Function) Signature() *Signature {
	return f.Overloads()[0]
}

// HasFlag reports whether f carries a decorator flag.
func (f *Function) HasFlag(flag FunctionFlags) bool { return f.Flags&flag != 0 }

// Variance of a type variable.
type Variance uint8

const (
	Invariant Variance = iota
	Covariant
	Contravariant
	Bivariant
	InferredVariance
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "covariant"
	case Contravariant:
		return "contravariant"
	case Bivariant:
		return "bivariant"
	case InferredVariance:
		return "inferred"
	}
	return "invariant"
}

// TypeVar is a type variable. Bound and Constraints are mutually exclusive.
// Scope names the generic function or class that binds it, when known.
type TypeVar struct {
	header
	Name        string
	Scope       string
	Variance    Variance
	Bound       Type
	Constraints []Type
	Legacy      bool
	key         string
}

// TypeVarSpec describes a type variable to intern.
type TypeVarSpec struct {
	Key         string
	Name        string
	Scope       string
	Variance    Variance
	Bound       Type
	Constraints []Type
	Legacy      bool
}

// TypeAlias is a PEP 695 type alias. Its value is resolved on demand.
type TypeAlias struct {
	header
	Name    string
	key     string
	resolve func() Type
	in      *Interner
	value   lazy[Type]
}

// Value returns the aliased type.
func (a *TypeAlias) Value() Type {
	unknown := a.in.Unknown()
	if a.resolve == nil {
		return unknown
	}
	return a.value.get(a.resolve, unknown)
}
