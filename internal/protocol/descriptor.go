// Package protocol defines the records exchanged with clients: type
// descriptors, node attributions, call signatures and the JSON-RPC
// envelope carrying them.
package protocol

// TypeID identifies a type within one session. Ids start at 1; 0 is never
// assigned.
type TypeID uint32

// Kind is the "kind" tag of a serialized descriptor.
type Kind string

const (
	KindInstance      Kind = "instance"
	KindClassLiteral  Kind = "classLiteral"
	KindSubclassOf    Kind = "subclassOf"
	KindUnion         Kind = "union"
	KindIntersection  Kind = "intersection"
	KindFunction      Kind = "function"
	KindCallable      Kind = "callable"
	KindBoundMethod   Kind = "boundMethod"
	KindIntLiteral    Kind = "intLiteral"
	KindBoolLiteral   Kind = "boolLiteral"
	KindStringLiteral Kind = "stringLiteral"
	KindBytesLiteral  Kind = "bytesLiteral"
	KindEnumLiteral   Kind = "enumLiteral"
	KindLiteralString Kind = "literalString"
	KindDynamic       Kind = "dynamic"
	KindNever         Kind = "never"
	KindTruthy        Kind = "truthy"
	KindFalsy         Kind = "falsy"
	KindTypeVar       Kind = "typeVar"
	KindModule        Kind = "module"
	KindTypeAlias     Kind = "typeAlias"
	KindTypedDict     Kind = "typedDict"
	KindTypeIs        Kind = "typeIs"
	KindTypeGuard     Kind = "typeGuard"
	KindNewType       Kind = "newType"
	KindSpecialForm   Kind = "specialForm"
	KindProperty      Kind = "property"
	KindOther         Kind = "other"
)

// Descriptor is the structural encoding of one type. The implementations
// in this package are the complete set.
type Descriptor interface {
	Kind() Kind
	// Label returns the human-readable display string, if any.
	Label() string
	descriptor()
}

// ClassMember is a name declared directly in a class body.
type ClassMember struct {
	Name   string `json:"name"`
	TypeID TypeID `json:"typeId"`
}

// TypedDictField is one key of a TypedDict.
type TypedDictField struct {
	Name     string `json:"name"`
	TypeID   TypeID `json:"typeId"`
	Required bool   `json:"required"`
	ReadOnly bool   `json:"readOnly"`
}

// Instance is a value of a nominal or protocol class.
type Instance struct {
	Display    string   `json:"display,omitempty"`
	ClassName  string   `json:"className"`
	ModuleName string   `json:"moduleName,omitempty"`
	Supertypes []TypeID `json:"supertypes,omitempty"`
	TypeArgs   []TypeID `json:"typeArgs,omitempty"`
	ClassID    *TypeID  `json:"classId,omitempty"`
}

// ClassLiteral is a class object or a subscripted generic alias.
type ClassLiteral struct {
	Display        string        `json:"display,omitempty"`
	ClassName      string        `json:"className"`
	ModuleName     string        `json:"moduleName,omitempty"`
	TypeParameters []TypeID      `json:"typeParameters,omitempty"`
	Supertypes     []TypeID      `json:"supertypes,omitempty"`
	Members        []ClassMember `json:"members,omitempty"`
}

// SubclassOf is type[C]. Base is the class literal of C, or the
// subclass-of type itself when C is dynamic or a type variable.
type SubclassOf struct {
	Display string `json:"display,omitempty"`
	Base    TypeID `json:"base"`
}

type Union struct {
	Display string   `json:"display,omitempty"`
	Members []TypeID `json:"members"`
}

type Intersection struct {
	Display  string   `json:"display,omitempty"`
	Positive []TypeID `json:"positive"`
	Negative []TypeID `json:"negative"`
}

// Function is a function literal. Only the first overload is encoded.
type Function struct {
	Display        string      `json:"display,omitempty"`
	Name           string      `json:"name"`
	ModuleName     string      `json:"moduleName,omitempty"`
	TypeParameters []TypeID    `json:"typeParameters,omitempty"`
	Parameters     []Parameter `json:"parameters"`
	ReturnType     *TypeID     `json:"returnType,omitempty"`
}

type Callable struct {
	Display string `json:"display,omitempty"`
}

// BoundMethod encodes the underlying function's first overload, receiver
// included.
type BoundMethod struct {
	Display        string      `json:"display,omitempty"`
	Name           string      `json:"name,omitempty"`
	ModuleName     string      `json:"moduleName,omitempty"`
	TypeParameters []TypeID    `json:"typeParameters,omitempty"`
	Parameters     []Parameter `json:"parameters"`
	ReturnType     *TypeID     `json:"returnType,omitempty"`
}

type IntLiteral struct {
	Display string `json:"display,omitempty"`
	Value   int64  `json:"value"`
}

type BoolLiteral struct {
	Display string `json:"display,omitempty"`
	Value   bool   `json:"value"`
}

type StringLiteral struct {
	Display string `json:"display,omitempty"`
	Value   string `json:"value"`
}

// BytesLiteral carries the literal's display form as its value.
type BytesLiteral struct {
	Display string `json:"display,omitempty"`
	Value   string `json:"value"`
}

type EnumLiteral struct {
	Display    string `json:"display,omitempty"`
	ClassName  string `json:"className"`
	MemberName string `json:"memberName"`
}

type LiteralString struct {
	Display string `json:"display,omitempty"`
}

// Dynamic is Any or Unknown; DynamicKind says which.
type Dynamic struct {
	Display     string `json:"display,omitempty"`
	DynamicKind string `json:"dynamicKind"`
}

type Never struct {
	Display string `json:"display,omitempty"`
}

type Truthy struct {
	Display string `json:"display,omitempty"`
}

type Falsy struct {
	Display string `json:"display,omitempty"`
}

// TypeVar is a type variable. UpperBound and Constraints are never both
// set; neither is set for an unconstrained variable.
type TypeVar struct {
	Display     string   `json:"display,omitempty"`
	Name        string   `json:"name"`
	Variance    string   `json:"variance,omitempty"`
	UpperBound  *TypeID  `json:"upperBound,omitempty"`
	Constraints []TypeID `json:"constraints,omitempty"`
}

type Module struct {
	Display    string `json:"display,omitempty"`
	ModuleName string `json:"moduleName"`
}

type TypeAlias struct {
	Display string `json:"display,omitempty"`
	Name    string `json:"name"`
}

type TypedDict struct {
	Display string           `json:"display,omitempty"`
	Name    string           `json:"name"`
	Fields  []TypedDictField `json:"fields,omitempty"`
}

type TypeIs struct {
	Display      string `json:"display,omitempty"`
	NarrowedType TypeID `json:"narrowedType"`
}

type TypeGuard struct {
	Display     string `json:"display,omitempty"`
	GuardedType TypeID `json:"guardedType"`
}

type NewType struct {
	Display  string `json:"display,omitempty"`
	Name     string `json:"name"`
	BaseType TypeID `json:"baseType"`
}

type SpecialForm struct {
	Display string `json:"display,omitempty"`
	Name    string `json:"name"`
}

type Property struct {
	Display string `json:"display,omitempty"`
}

// Other is the catch-all for types with no structural encoding.
type Other struct {
	Display string `json:"display,omitempty"`
}

func (*Instance) Kind() Kind      { return KindInstance }
func (*ClassLiteral) Kind() Kind  { return KindClassLiteral }
func (*SubclassOf) Kind() Kind    { return KindSubclassOf }
func (*Union) Kind() Kind         { return KindUnion }
func (*Intersection) Kind() Kind  { return KindIntersection }
func (*Function) Kind() Kind      { return KindFunction }
func (*Callable) Kind() Kind      { return KindCallable }
func (*BoundMethod) Kind() Kind   { return KindBoundMethod }
func (*IntLiteral) Kind() Kind    { return KindIntLiteral }
func (*BoolLiteral) Kind() Kind   { return KindBoolLiteral }
func (*StringLiteral) Kind() Kind { return KindStringLiteral }
func (*BytesLiteral) Kind() Kind  { return KindBytesLiteral }
func (*EnumLiteral) Kind() Kind   { return KindEnumLiteral }
func (*LiteralString) Kind() Kind { return KindLiteralString }
func (*Dynamic) Kind() Kind       { return KindDynamic }
func (*Never) Kind() Kind         { return KindNever }
func (*Truthy) Kind() Kind        { return KindTruthy }
func (*Falsy) Kind() Kind         { return KindFalsy }
func (*TypeVar) Kind() Kind       { return KindTypeVar }
func (*Module) Kind() Kind        { return KindModule }
func (*TypeAlias) Kind() Kind     { return KindTypeAlias }
func (*TypedDict) Kind() Kind     { return KindTypedDict }
func (*TypeIs) Kind() Kind        { return KindTypeIs }
func (*TypeGuard) Kind() Kind     { return KindTypeGuard }
func (*NewType) Kind() Kind       { return KindNewType }
func (*SpecialForm) Kind() Kind   { return KindSpecialForm }
func (*Property) Kind() Kind      { return KindProperty }
func (*Other) Kind() Kind         { return KindOther }

func (d *Instance) Label() string      { return d.Display }
func (d *ClassLiteral) Label() string  { return d.Display }
func (d *SubclassOf) Label() string    { return d.Display }
func (d *Union) Label() string         { return d.Display }
func (d *Intersection) Label() string  { return d.Display }
func (d *Function) Label() string      { return d.Display }
func (d *Callable) Label() string      { return d.Display }
func (d *BoundMethod) Label() string   { return d.Display }
func (d *IntLiteral) Label() string    { return d.Display }
func (d *BoolLiteral) Label() string   { return d.Display }
func (d *StringLiteral) Label() string { return d.Display }
func (d *BytesLiteral) Label() string  { return d.Display }
func (d *EnumLiteral) Label() string   { return d.Display }
func (d *LiteralString) Label() string { return d.Display }
func (d *Dynamic) Label() string       { return d.Display }
func (d *Never) Label() string         { return d.Display }
func (d *Truthy) Label() string        { return d.Display }
func (d *Falsy) Label() string         { return d.Display }
func (d *TypeVar) Label() string       { return d.Display }
func (d *Module) Label() string        { return d.Display }
func (d *TypeAlias) Label() string     { return d.Display }
func (d *TypedDict) Label() string     { return d.Display }
func (d *TypeIs) Label() string        { return d.Display }
func (d *TypeGuard) Label() string     { return d.Display }
func (d *NewType) Label() string       { return d.Display }
func (d *SpecialForm) Label() string   { return d.Display }
func (d *Property) Label() string      { return d.Display }
func (d *Other) Label() string         { return d.Display }

func (*Instance) descriptor()      {}
func (*ClassLiteral) descriptor()  {}
func (*SubclassOf) descriptor()    {}
func (*Union) descriptor()         {}
func (*Intersection) descriptor()  {}
func (*Function) descriptor()      {}
func (*Callable) descriptor()      {}
func (*BoundMethod) descriptor()   {}
func (*IntLiteral) descriptor()    {}
func (*BoolLiteral) descriptor()   {}
func (*StringLiteral) descriptor() {}
func (*BytesLiteral) descriptor()  {}
func (*EnumLiteral) descriptor()   {}
func (*LiteralString) descriptor() {}
func (*Dynamic) descriptor()       {}
func (*Never) descriptor()         {}
func (*Truthy) descriptor()        {}
func (*Falsy) descriptor()         {}
func (*TypeVar) descriptor()       {}
func (*Module) descriptor()        {}
func (*TypeAlias) descriptor()     {}
func (*TypedDict) descriptor()     {}
func (*TypeIs) descriptor()        {}
func (*TypeGuard) descriptor()     {}
func (*NewType) descriptor()       {}
func (*SpecialForm) descriptor()   {}
func (*Property) descriptor()      {}
func (*Other) descriptor()         {}

// WithoutDisplay returns a copy of d with its display label cleared. d is
// not modified.
func WithoutDisplay(d Descriptor) Descriptor {
	switch d := d.(type) {
	case *Instance:
		c := *d
		c.Display = ""
		return &c
	case *ClassLiteral:
		c := *d
		c.Display = ""
		return &c
	case *SubclassOf:
		c := *d
		c.Display = ""
		return &c
	case *Union:
		c := *d
		c.Display = ""
		return &c
	case *Intersection:
		c := *d
		c.Display = ""
		return &c
	case *Function:
		c := *d
		c.Display = ""
		return &c
	case *Callable:
		return &Callable{}
	case *BoundMethod:
		c := *d
		c.Display = ""
		return &c
	case *IntLiteral:
		return &IntLiteral{Value: d.Value}
	case *BoolLiteral:
		return &BoolLiteral{Value: d.Value}
	case *StringLiteral:
		return &StringLiteral{Value: d.Value}
	case *BytesLiteral:
		return &BytesLiteral{Value: d.Value}
	case *EnumLiteral:
		return &EnumLiteral{ClassName: d.ClassName, MemberName: d.MemberName}
	case *LiteralString:
		return &LiteralString{}
	case *Dynamic:
		return &Dynamic{DynamicKind: d.DynamicKind}
	case *Never:
		return &Never{}
	case *Truthy:
		return &Truthy{}
	case *Falsy:
		return &Falsy{}
	case *TypeVar:
		c := *d
		c.Display = ""
		return &c
	case *Module:
		return &Module{ModuleName: d.ModuleName}
	case *TypeAlias:
		return &TypeAlias{Name: d.Name}
	case *TypedDict:
		c := *d
		c.Display = ""
		return &c
	case *TypeIs:
		return &TypeIs{NarrowedType: d.NarrowedType}
	case *TypeGuard:
		return &TypeGuard{GuardedType: d.GuardedType}
	case *NewType:
		return &NewType{Name: d.Name, BaseType: d.BaseType}
	case *SpecialForm:
		return &SpecialForm{Name: d.Name}
	case *Property:
		return &Property{}
	case *Other:
		return &Other{}
	}
	return d
}
