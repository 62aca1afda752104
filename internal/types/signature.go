package types

// ParamKind is the calling convention of a formal parameter.
type ParamKind uint8

const (
	PositionalOnly ParamKind = iota
	PositionalOrKeyword
	Variadic
	KeywordOnly
	KeywordVariadic
)

// String returns the wire name of the kind.
func (k ParamKind) String() string {
	switch k {
	case PositionalOnly:
		return "positionalOnly"
	case Variadic:
		return "variadic"
	case KeywordOnly:
		return "keywordOnly"
	case KeywordVariadic:
		return "keywordVariadic"
	}
	return "positionalOrKeyword"
}

// AcceptsDefault reports whether parameters of this kind can have defaults.
func (k ParamKind) AcceptsDefault() bool {
	return k != Variadic && k != KeywordVariadic
}

// Parameter is a formal parameter. Annotated is never nil: an unannotated
// parameter is Unknown. For variadic kinds Annotated is the element type.
// Default is nil when the parameter has no default.
type Parameter struct {
	Name      string
	Kind      ParamKind
	Annotated Type
	Default   Type
}

// HasDefault reports whether the parameter declares a default value.
func (p Parameter) HasDefault() bool {
	return p.Default != nil && p.Kind.AcceptsDefault()
}

// Signature is one overload of a callable.
type Signature struct {
	TypeParams []*TypeVar
	Params     []Parameter
	Return     Type
}

// IsGeneric reports whether the signature binds type variables.
func (s *Signature) IsGeneric() bool { return len(s.TypeParams) > 0 }

// DropFirst returns a copy of s without its first positional parameter,
// which is how a method looks once bound to a receiver.
func (s *Signature) DropFirst() *Signature {
	if len(s.Params) == 0 {
		return s
	}
	first := s.Params[0].Kind
	if first != PositionalOnly && first != PositionalOrKeyword {
		return s
	}
	out := *s
	out.Params = append([]Parameter(nil), s.Params[1:]...)
	return &out
}

// Specialization maps type variables to the types solved for them.
type Specialization struct {
	Params []*TypeVar
	Types  []Type
}

// Lookup returns the type solved for tv.
func (s *Specialization) Lookup(tv *TypeVar) (Type, bool) {
	if s == nil {
		return nil, false
	}
	for i, p := range s.Params {
		if p == tv {
			return s.Types[i], true
		}
	}
	return nil, false
}

// Empty reports whether s maps nothing.
func (s *Specialization) Empty() bool { return s == nil || len(s.Params) == 0 }

// NewSpecialization pairs params with types. Missing types are left nil and
// must be filled by the caller.
func NewSpecialization(params []*TypeVar, ts []Type) *Specialization {
	if len(params) == 0 {
		return nil
	}
	out := &Specialization{Params: params, Types: make([]Type, len(params))}
	copy(out.Types, ts)
	return out
}

// ArgumentKind is how an actual argument was passed.
type ArgumentKind uint8

const (
	ArgPositional ArgumentKind = iota
	ArgKeyword
	ArgStarred
	ArgDoubleStarred
)

// Argument is an actual argument of a call with its inferred type.
type Argument struct {
	Kind ArgumentKind
	Name string
	Type Type
}

// Binding is the result of matching a call's arguments against one
// overload. Signature is the callable view of the overload: a bound
// method's receiver is already removed and the receiver's specialization
// already applied. Return has the binding's specialization applied.
type Binding struct {
	Signature      *Signature
	Matched        bool
	Specialization *Specialization
	Return         Type
}
