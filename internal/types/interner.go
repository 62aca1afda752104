package types

import (
	"strconv"
	"strings"
)

// Interner hands out canonical Types. Structural types are keyed by the
// serials of their components; entity types (classes, functions, type
// variables, aliases, NewTypes) are keyed by a caller-supplied identity key
// that should include the defining file's content hash.
//
// An Interner is not safe for concurrent use.
type Interner struct {
	serial  int
	byKey   map[string]Type
	classes map[string]*Class

	any, unknown, todo *Dynamic
	never              *Never
	literalString      *LiteralString
	truthy             *AlwaysTruthy
	falsy              *AlwaysFalsy
	gradual            *Signature
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	in := &Interner{
		byKey:   make(map[string]Type),
		classes: make(map[string]*Class),
	}
	in.any = intern(in, "dyn:any", func() *Dynamic { return &Dynamic{Kind: DynamicAny} })
	in.unknown = intern(in, "dyn:unknown", func() *Dynamic { return &Dynamic{Kind: DynamicUnknown} })
	in.todo = intern(in, "dyn:todo", func() *Dynamic { return &Dynamic{Kind: DynamicTodo} })
	in.never = intern(in, "never", func() *Never { return &Never{} })
	in.literalString = intern(in, "literalstring", func() *LiteralString { return &LiteralString{} })
	in.truthy = intern(in, "truthy", func() *AlwaysTruthy { return &AlwaysTruthy{} })
	in.falsy = intern(in, "falsy", func() *AlwaysFalsy { return &AlwaysFalsy{} })
	in.gradual = &Signature{
		Params: []Parameter{
			{Name: "args", Kind: Variadic, Annotated: in.unknown},
			{Name: "kwargs", Kind: KeywordVariadic, Annotated: in.unknown},
		},
		Return: in.unknown,
	}
	return in
}

func intern[T Type](in *Interner, key string, build func() T) T {
	if t, ok := in.byKey[key]; ok {
		return t.(T)
	}
	t := build()
	in.serial++
	t.node().serial = in.serial
	in.byKey[key] = t
	return t
}

// Len returns how many types have been interned.
func (in *Interner) Len() int { return len(in.byKey) }

func serials(ts []Type) string {
	var b strings.Builder
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(Serial(t)))
	}
	return b.String()
}

func (in *Interner) Any() *Dynamic                 { return in.any }
func (in *Interner) Unknown() *Dynamic             { return in.unknown }
func (in *Interner) Todo() *Dynamic                { return in.todo }
func (in *Interner) Never() *Never                 { return in.never }
func (in *Interner) LiteralString() *LiteralString { return in.literalString }
func (in *Interner) AlwaysTruthy() *AlwaysTruthy   { return in.truthy }
func (in *Interner) AlwaysFalsy() *AlwaysFalsy     { return in.falsy }

// GradualSignature is (*args, **kwargs) -> Unknown.
func (in *Interner) GradualSignature() *Signature { return in.gradual }

func (in *Interner) IntLiteral(v int64) *IntLiteral {
	return intern(in, "int:"+strconv.FormatInt(v, 10), func() *IntLiteral { return &IntLiteral{Value: v} })
}

func (in *Interner) BoolLiteral(v bool) *BoolLiteral {
	return intern(in, "bool:"+strconv.FormatBool(v), func() *BoolLiteral { return &BoolLiteral{Value: v} })
}

func (in *Interner) StringLiteral(v string) *StringLiteral {
	return intern(in, "str:"+v, func() *StringLiteral { return &StringLiteral{Value: v} })
}

func (in *Interner) BytesLiteral(v string) *BytesLiteral {
	return intern(in, "bytes:"+v, func() *BytesLiteral { return &BytesLiteral{Value: v} })
}

func (in *Interner) EnumLiteral(c *Class, member string) *EnumLiteral {
	return intern(in, "enum:"+c.key+":"+member, func() *EnumLiteral { return &EnumLiteral{Class: c, Member: member} })
}

// Union flattens nested unions, drops Never and duplicates, and collapses
// to the single member when only one remains.
func (in *Interner) Union(ts ...Type) Type {
	var members []Type
	seen := make(map[Type]bool)
	var add func(t Type)
	add = func(t Type) {
		switch t := t.(type) {
		case nil, *Never:
			return
		case *Union:
			for _, m := range t.Members {
				add(m)
			}
			return
		}
		if !seen[t] {
			seen[t] = true
			members = append(members, t)
		}
	}
	for _, t := range ts {
		add(t)
	}
	switch len(members) {
	case 0:
		return in.never
	case 1:
		return members[0]
	}
	return intern(in, "union:"+serials(members), func() *Union { return &Union{Members: members} })
}

func (in *Interner) Intersection(positive, negative []Type) Type {
	if len(negative) == 0 && len(positive) == 1 {
		return positive[0]
	}
	key := "inter:" + serials(positive) + "~" + serials(negative)
	return intern(in, key, func() *Intersection {
		return &Intersection{Positive: positive, Negative: negative}
	})
}

// Class returns the class interned under key, creating it on first use.
func (in *Interner) Class(key, name, module string, src ClassSource) *Class {
	if c, ok := in.classes[key]; ok {
		return c
	}
	c := &Class{Name: name, Module: module, key: key, src: src}
	in.classes[key] = c
	return c
}

func (in *Interner) Instance(c *Class, args ...Type) *Instance {
	key := "inst:" + c.key + "[" + serials(args) + "]"
	return intern(in, key, func() *Instance { return &Instance{Class: c, Args: args} })
}

// VariadicTuple is tuple[elem, ...] for the given tuple class.
func (in *Interner) VariadicTuple(tuple *Class, elem Type) *Instance {
	key := "inst:" + tuple.key + "[" + strconv.Itoa(Serial(elem)) + ",...]"
	return intern(in, key, func() *Instance {
		return &Instance{Class: tuple, Args: []Type{elem}, Variadic: true}
	})
}

func (in *Interner) ClassLiteral(c *Class) *ClassLiteral {
	return intern(in, "cls:"+c.key, func() *ClassLiteral { return &ClassLiteral{Class: c} })
}

func (in *Interner) GenericAlias(c *Class, args ...Type) *GenericAlias {
	key := "alias:" + c.key + "[" + serials(args) + "]"
	return intern(in, key, func() *GenericAlias { return &GenericAlias{Class: c, Args: args} })
}

func (in *Interner) SubclassOf(base Type) *SubclassOf {
	return intern(in, "subclass:"+strconv.Itoa(Serial(base)), func() *SubclassOf { return &SubclassOf{Base: base} })
}

// FunctionSpec describes a function to intern.
type FunctionSpec struct {
	Key    string
	Name   string
	Module string
	Owner  *Class
	Flags  FunctionFlags
	Source SignatureSource
}

func (in *Interner) Function(spec FunctionSpec) *Function {
	return intern(in, "fn:"+spec.Key, func() *Function {
		return &Function{
			Name:   spec.Name,
			Module: spec.Module,
			Owner:  spec.Owner,
			Flags:  spec.Flags,
			key:    spec.Key,
			src:    spec.Source,
			in:     in,
		}
	})
}

func (in *Interner) BoundMethod(f *Function, self Type) *BoundMethod {
	key := "bound:" + strconv.Itoa(Serial(f)) + ":" + strconv.Itoa(Serial(self))
	return intern(in, key, func() *BoundMethod { return &BoundMethod{Func: f, Self: self} })
}

func (in *Interner) Callable(sig *Signature) *Callable {
	return intern(in, "callable:"+signatureKey(sig), func() *Callable { return &Callable{Signature: sig} })
}

func signatureKey(sig *Signature) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, tv := range sig.TypeParams {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(Serial(tv)))
	}
	b.WriteString("](")
	for i, p := range sig.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(p.Kind)))
		b.WriteByte(':')
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(Serial(p.Annotated)))
		if p.Default != nil {
			b.WriteByte('=')
			b.WriteString(strconv.Itoa(Serial(p.Default)))
		}
	}
	b.WriteString(")->")
	b.WriteString(strconv.Itoa(Serial(sig.Return)))
	return b.String()
}

func (in *Interner) Module(name, path string) *Module {
	return intern(in, "mod:"+name, func() *Module { return &Module{Name: name, Path: path} })
}

func (in *Interner) TypeVar(spec TypeVarSpec) *TypeVar {
	return intern(in, "tv:"+spec.Key, func() *TypeVar {
		return &TypeVar{
			Name:        spec.Name,
			Scope:       spec.Scope,
			Variance:    spec.Variance,
			Bound:       spec.Bound,
			Constraints: spec.Constraints,
			Legacy:      spec.Legacy,
			key:         spec.Key,
		}
	})
}

func (in *Interner) TypeAlias(key, name string, resolve func() Type) *TypeAlias {
	return intern(in, "talias:"+key, func() *TypeAlias {
		return &TypeAlias{Name: name, key: key, resolve: resolve, in: in}
	})
}

func (in *Interner) TypedDict(c *Class) *TypedDict {
	return intern(in, "td:"+c.key, func() *TypedDict { return &TypedDict{Class: c} })
}

func (in *Interner) TypeIs(t Type) *TypeIs {
	return intern(in, "typeis:"+strconv.Itoa(Serial(t)), func() *TypeIs { return &TypeIs{Narrowed: t} })
}

func (in *Interner) TypeGuard(t Type) *TypeGuard {
	return intern(in, "typeguard:"+strconv.Itoa(Serial(t)), func() *TypeGuard { return &TypeGuard{Guarded: t} })
}

func (in *Interner) NewType(key, name string, base Type) *NewType {
	return intern(in, "newtype:"+key, func() *NewType { return &NewType{Name: name, Base: base} })
}

func (in *Interner) SpecialForm(name string) *SpecialForm {
	return intern(in, "sf:"+name, func() *SpecialForm { return &SpecialForm{Name: name} })
}

func (in *Interner) Property(getter *Function) *Property {
	key := "prop:"
	if getter != nil {
		key += strconv.Itoa(Serial(getter))
	}
	return intern(in, key, func() *Property { return &Property{Getter: getter} })
}

func (in *Interner) Other(label string) *Other {
	return intern(in, "other:"+label, func() *Other { return &Other{Label: label} })
}

// Apply substitutes the types solved in s for the type variables in t.
func (in *Interner) Apply(t Type, s *Specialization) Type {
	if s.Empty() || t == nil {
		return t
	}
	switch t := t.(type) {
	case *TypeVar:
		if r, ok := s.Lookup(t); ok && r != nil {
			return r
		}
		return t
	case *Union:
		return in.Union(in.applyAll(t.Members, s)...)
	case *Intersection:
		return in.Intersection(in.applyAll(t.Positive, s), in.applyAll(t.Negative, s))
	case *Instance:
		args := in.applyAll(t.Args, s)
		if t.Variadic {
			return in.VariadicTuple(t.Class, args[0])
		}
		return in.Instance(t.Class, args...)
	case *GenericAlias:
		return in.GenericAlias(t.Class, in.applyAll(t.Args, s)...)
	case *SubclassOf:
		base := in.Apply(t.Base, s)
		switch base.(type) {
		case *Instance, *TypeVar, *Dynamic:
			return in.SubclassOf(base)
		}
		return in.SubclassOf(in.unknown)
	case *Callable:
		return in.Callable(in.ApplySignature(t.Signature, s))
	case *BoundMethod:
		return in.BoundMethod(t.Func, in.Apply(t.Self, s))
	case *TypeIs:
		return in.TypeIs(in.Apply(t.Narrowed, s))
	case *TypeGuard:
		return in.TypeGuard(in.Apply(t.Guarded, s))
	}
	return t
}

func (in *Interner) applyAll(ts []Type, s *Specialization) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = in.Apply(t, s)
	}
	return out
}

// ApplySignature specializes every parameter and the return type of sig.
// Type parameters solved by s are removed from the result.
func (in *Interner) ApplySignature(sig *Signature, s *Specialization) *Signature {
	if s.Empty() {
		return sig
	}
	out := &Signature{Return: in.Apply(sig.Return, s)}
	for _, tv := range sig.TypeParams {
		if _, ok := s.Lookup(tv); !ok {
			out.TypeParams = append(out.TypeParams, tv)
		}
	}
	out.Params = make([]Parameter, len(sig.Params))
	for i, p := range sig.Params {
		p.Annotated = in.Apply(p.Annotated, s)
		out.Params[i] = p
	}
	return out
}

// Contains reports whether any of the given type variables occur in t.
func Contains(t Type, vars []*TypeVar) bool {
	if len(vars) == 0 || t == nil {
		return false
	}
	switch t := t.(type) {
	case *TypeVar:
		for _, v := range vars {
			if v == t {
				return true
			}
		}
	case *Union:
		return containsAny(t.Members, vars)
	case *Intersection:
		return containsAny(t.Positive, vars) || containsAny(t.Negative, vars)
	case *Instance:
		return containsAny(t.Args, vars)
	case *GenericAlias:
		return containsAny(t.Args, vars)
	case *SubclassOf:
		return Contains(t.Base, vars)
	case *Callable:
		for _, p := range t.Signature.Params {
			if Contains(p.Annotated, vars) {
				return true
			}
		}
		return Contains(t.Signature.Return, vars)
	case *TypeIs:
		return Contains(t.Narrowed, vars)
	case *TypeGuard:
		return Contains(t.Guarded, vars)
	}
	return false
}

func containsAny(ts []Type, vars []*TypeVar) bool {
	for _, t := range ts {
		if Contains(t, vars) {
			return true
		}
	}
	return false
}

// CollectTypeVars appends the type variables occurring in t, in order of
// first appearance, skipping any already present in acc.
func CollectTypeVars(acc []*TypeVar, t Type) []*TypeVar {
	add := func(tv *TypeVar) []*TypeVar {
		for _, have := range acc {
			if have == tv {
				return acc
			}
		}
		return append(acc, tv)
	}
	switch t := t.(type) {
	case *TypeVar:
		acc = add(t)
	case *Union:
		for _, m := range t.Members {
			acc = CollectTypeVars(acc, m)
		}
	case *Instance:
		for _, a := range t.Args {
			acc = CollectTypeVars(acc, a)
		}
	case *GenericAlias:
		for _, a := range t.Args {
			acc = CollectTypeVars(acc, a)
		}
	case *SubclassOf:
		acc = CollectTypeVars(acc, t.Base)
	case *Callable:
		for _, p := range t.Signature.Params {
			acc = CollectTypeVars(acc, p.Annotated)
		}
		acc = CollectTypeVars(acc, t.Signature.Return)
	case *TypeIs:
		acc = CollectTypeVars(acc, t.Narrowed)
	case *TypeGuard:
		acc = CollectTypeVars(acc, t.Guarded)
	}
	return acc
}
