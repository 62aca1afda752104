// Package types is the closed type representation produced by the semantic
// model. Every Type is interned by an Interner, so two Types denote the same
// type exactly when they are the same pointer; callers may use Types as map
// keys.
//
// The set of shapes is sealed. Consumers that must handle every shape
// implement Visitor, which makes adding a shape a compile error everywhere a
// shape could be forgotten.
package types

// Type is an interned type.
type Type interface {
	Accept(v Visitor)
	node() *header
}

type header struct {
	serial int
}

func (h *header) node() *header { return h }

// Serial returns the interning sequence number of t. Serials are unique per
// Interner and never reused.
func Serial(t Type) int { return t.node().serial }

// Visitor has one method per type shape.
type Visitor interface {
	VisitDynamic(t *Dynamic)
	VisitNever(t *Never)
	VisitIntLiteral(t *IntLiteral)
	VisitBoolLiteral(t *BoolLiteral)
	VisitStringLiteral(t *StringLiteral)
	VisitBytesLiteral(t *BytesLiteral)
	VisitLiteralString(t *LiteralString)
	VisitEnumLiteral(t *EnumLiteral)
	VisitAlwaysTruthy(t *AlwaysTruthy)
	VisitAlwaysFalsy(t *AlwaysFalsy)
	VisitUnion(t *Union)
	VisitIntersection(t *Intersection)
	VisitInstance(t *Instance)
	VisitClassLiteral(t *ClassLiteral)
	VisitGenericAlias(t *GenericAlias)
	VisitSubclassOf(t *SubclassOf)
	VisitFunction(t *Function)
	VisitBoundMethod(t *BoundMethod)
	VisitCallable(t *Callable)
	VisitModule(t *Module)
	VisitTypeVar(t *TypeVar)
	VisitTypeAlias(t *TypeAlias)
	VisitTypedDict(t *TypedDict)
	VisitTypeIs(t *TypeIs)
	VisitTypeGuard(t *TypeGuard)
	VisitNewType(t *NewType)
	VisitSpecialForm(t *SpecialForm)
	VisitProperty(t *Property)
	VisitOther(t *Other)
}

// DynamicKind explains why a type is dynamic.
type DynamicKind uint8

const (
	DynamicAny DynamicKind = iota
	DynamicUnknown
	DynamicTodo
)

func (k DynamicKind) String() string {
	switch k {
	case DynamicAny:
		return "Any"
	case DynamicTodo:
		return "@Todo"
	}
	return "Unknown"
}

// Dynamic is Any, or an Unknown produced when inference gave up.
type Dynamic struct {
	header
	Kind DynamicKind
}

type Never struct{ header }

type IntLiteral struct {
	header
	Value int64
}

type BoolLiteral struct {
	header
	Value bool
}

type StringLiteral struct {
	header
	Value string
}

type BytesLiteral struct {
	header
	Value string
}

type LiteralString struct{ header }

// EnumLiteral is a single member of an enum class.
type EnumLiteral struct {
	header
	Class  *Class
	Member string
}

type AlwaysTruthy struct{ header }

type AlwaysFalsy struct{ header }

// Union members are flattened, de-duplicated and kept in first-seen order.
type Union struct {
	header
	Members []Type
}

type Intersection struct {
	header
	Positive []Type
	Negative []Type
}

// Instance is a value of a nominal class, specialized by Args. For tuples
// with Variadic set, Args holds the single element type of tuple[T, ...];
// otherwise a tuple's Args are its element types.
type Instance struct {
	header
	Class    *Class
	Args     []Type
	Variadic bool
}

// ClassLiteral is the class object itself.
type ClassLiteral struct {
	header
	Class *Class
}

// GenericAlias is a subscripted generic class object such as list[int].
type GenericAlias struct {
	header
	Class *Class
	Args  []Type
}

// SubclassOf is type[C]. Base is an *Instance, a *TypeVar or a *Dynamic.
type SubclassOf struct {
	header
	Base Type
}

// BoundMethod is a function accessed through an instance or class.
type BoundMethod struct {
	header
	Func *Function
	Self Type
}

// Callable is a structural callable with no nominal identity.
type Callable struct {
	header
	Signature *Signature
}

// Module is a module object.
type Module struct {
	header
	Name string
	Path string
}

type TypedDict struct {
	header
	Class *Class
}

type TypeIs struct {
	header
	Narrowed Type
}

type TypeGuard struct {
	header
	Guarded Type
}

// NewType is a distinct nominal subtype created with typing.NewType.
type NewType struct {
	header
	Name string
	Base Type
}

// SpecialForm is a typing construct such as typing.Union used as a value.
type SpecialForm struct {
	header
	Name string
}

// Property is a property object; Getter may be nil.
type Property struct {
	header
	Getter *Function
}

// Other is any type that has no structural encoding beyond its label.
type Other struct {
	header
	Label string
}

func (t *Dynamic) Accept(v Visitor)       { v.VisitDynamic(t) }
func (t *Never) Accept(v Visitor)         { v.VisitNever(t) }
func (t *IntLiteral) Accept(v Visitor)    { v.VisitIntLiteral(t) }
func (t *BoolLiteral) Accept(v Visitor)   { v.VisitBoolLiteral(t) }
func (t *StringLiteral) Accept(v Visitor) { v.VisitStringLiteral(t) }
func (t *BytesLiteral) Accept(v Visitor)  { v.VisitBytesLiteral(t) }
func (t *LiteralString) Accept(v Visitor) { v.VisitLiteralString(t) }
func (t *EnumLiteral) Accept(v Visitor)   { v.VisitEnumLiteral(t) }
func (t *AlwaysTruthy) Accept(v Visitor)  { v.VisitAlwaysTruthy(t) }
func (t *AlwaysFalsy) Accept(v Visitor)   { v.VisitAlwaysFalsy(t) }
func (t *Union) Accept(v Visitor)         { v.VisitUnion(t) }
func (t *Intersection) Accept(v Visitor)  { v.VisitIntersection(t) }
func (t *Instance) Accept(v Visitor)      { v.VisitInstance(t) }
func (t *ClassLiteral) Accept(v Visitor)  { v.VisitClassLiteral(t) }
func (t *GenericAlias) Accept(v Visitor)  { v.VisitGenericAlias(t) }
func (t *SubclassOf) Accept(v Visitor)    { v.VisitSubclassOf(t) }
func (t *Function) Accept(v Visitor)      { v.VisitFunction(t) }
func (t *BoundMethod) Accept(v Visitor)   { v.VisitBoundMethod(t) }
func (t *Callable) Accept(v Visitor)      { v.VisitCallable(t) }
func (t *Module) Accept(v Visitor)        { v.VisitModule(t) }
func (t *TypeVar) Accept(v Visitor)       { v.VisitTypeVar(t) }
func (t *TypeAlias) Accept(v Visitor)     { v.VisitTypeAlias(t) }
func (t *TypedDict) Accept(v Visitor)     { v.VisitTypedDict(t) }
func (t *TypeIs) Accept(v Visitor)        { v.VisitTypeIs(t) }
func (t *TypeGuard) Accept(v Visitor)     { v.VisitTypeGuard(t) }
func (t *NewType) Accept(v Visitor)       { v.VisitNewType(t) }
func (t *SpecialForm) Accept(v Visitor)   { v.VisitSpecialForm(t) }
func (t *Property) Accept(v Visitor)      { v.VisitProperty(t) }
func (t *Other) Accept(v Visitor)         { v.VisitOther(t) }

// IsDynamic reports whether t is Any or Unknown.
func IsDynamic(t Type) bool {
	_, ok := t.(*Dynamic)
	return ok
}

// IsNever reports whether t is the bottom type.
func IsNever(t Type) bool {
	_, ok := t.(*Never)
	return ok
}
