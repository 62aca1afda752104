package types

import (
	"strconv"
	"strings"
)

// Display renders t the way Python tooling prints types: int, Literal[42],
// int | None, def f(x: int) -> str, <class 'C'>, type[C], <module 'm'>.
func Display(t Type) string {
	if t == nil {
		return "Unknown"
	}
	var d displayer
	t.Accept(&d)
	return d.String()
}

// DisplaySignature renders sig as a callable without a def prefix.
func DisplaySignature(sig *Signature) string {
	var d displayer
	d.signature(sig)
	return d.String()
}

type displayer struct {
	strings.Builder
}

func (d *displayer) write(t Type) {
	if t == nil {
		d.WriteString("Unknown")
		return
	}
	t.Accept(d)
}

func (d *displayer) list(ts []Type, sep string) {
	for i, t := range ts {
		if i > 0 {
			d.WriteString(sep)
		}
		d.write(t)
	}
}

func (d *displayer) VisitDynamic(t *Dynamic)           { d.WriteString(t.Kind.String()) }
func (d *displayer) VisitNever(*Never)                 { d.WriteString("Never") }
func (d *displayer) VisitLiteralString(*LiteralString) { d.WriteString("LiteralString") }
func (d *displayer) VisitAlwaysTruthy(*AlwaysTruthy)   { d.WriteString("AlwaysTruthy") }
func (d *displayer) VisitAlwaysFalsy(*AlwaysFalsy)     { d.WriteString("AlwaysFalsy") }

func (d *displayer) VisitIntLiteral(t *IntLiteral) {
	d.WriteString("Literal[")
	d.literal(t)
	d.WriteByte(']')
}

func (d *displayer) VisitBoolLiteral(t *BoolLiteral) {
	d.WriteString("Literal[")
	d.literal(t)
	d.WriteByte(']')
}

func (d *displayer) VisitStringLiteral(t *StringLiteral) {
	d.WriteString("Literal[")
	d.literal(t)
	d.WriteByte(']')
}

func (d *displayer) VisitBytesLiteral(t *BytesLiteral) {
	d.WriteString("Literal[")
	d.literal(t)
	d.WriteByte(']')
}

func (d *displayer) VisitEnumLiteral(t *EnumLiteral) {
	d.WriteString("Literal[")
	d.literal(t)
	d.WriteByte(']')
}

// literal writes the value of a literal type without the Literal[] wrapper.
func (d *displayer) literal(t Type) {
	switch t := t.(type) {
	case *IntLiteral:
		d.WriteString(strconv.FormatInt(t.Value, 10))
	case *BoolLiteral:
		if t.Value {
			d.WriteString("True")
		} else {
			d.WriteString("False")
		}
	case *StringLiteral:
		d.WriteString(quote(t.Value))
	case *BytesLiteral:
		d.WriteByte('b')
		d.WriteString(quoteBytes(t.Value))
	case *EnumLiteral:
		d.WriteString(t.Class.Name)
		d.WriteByte('.')
		d.WriteString(t.Member)
	}
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// quoteBytes escapes like Python's bytes repr: printable ASCII stays as is,
// every other byte becomes \xNN.
func quoteBytes(s string) string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			b.WriteString(`\x`)
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isLiteral(t Type) bool {
	switch t.(type) {
	case *IntLiteral, *BoolLiteral, *StringLiteral, *BytesLiteral, *EnumLiteral:
		return true
	}
	return false
}

// VisitUnion groups all literal members into one Literal[...] at the
// position of the first literal.
func (d *displayer) VisitUnion(t *Union) {
	var lits []Type
	for _, m := range t.Members {
		if isLiteral(m) {
			lits = append(lits, m)
		}
	}
	first := true
	sep := func() {
		if !first {
			d.WriteString(" | ")
		}
		first = false
	}
	wroteLits := false
	for _, m := range t.Members {
		if isLiteral(m) {
			if wroteLits {
				continue
			}
			wroteLits = true
			sep()
			d.WriteString("Literal[")
			for i, l := range lits {
				if i > 0 {
					d.WriteString(", ")
				}
				d.literal(l)
			}
			d.WriteByte(']')
			continue
		}
		sep()
		if _, ok := m.(*Callable); ok {
			d.WriteByte('(')
			d.write(m)
			d.WriteByte(')')
			continue
		}
		d.write(m)
	}
}

func (d *displayer) VisitIntersection(t *Intersection) {
	for i, p := range t.Positive {
		if i > 0 {
			d.WriteString(" & ")
		}
		d.write(p)
	}
	for i, n := range t.Negative {
		if i > 0 || len(t.Positive) > 0 {
			d.WriteString(" & ")
		}
		d.WriteByte('~')
		d.write(n)
	}
}

func (d *displayer) VisitInstance(t *Instance) {
	c := t.Class
	switch {
	case c.Is("types", "NoneType") || c.Is("builtins", "NoneType"):
		d.WriteString("None")
		return
	case c.Is("builtins", "tuple"):
		d.WriteString("tuple[")
		switch {
		case t.Variadic:
			d.write(t.Args[0])
			d.WriteString(", ...")
		case len(t.Args) == 0:
			d.WriteString("()")
		default:
			d.list(t.Args, ", ")
		}
		d.WriteByte(']')
		return
	}
	d.WriteString(c.Name)
	if len(t.Args) > 0 {
		d.WriteByte('[')
		d.list(t.Args, ", ")
		d.WriteByte(']')
	}
}

func (d *displayer) VisitClassLiteral(t *ClassLiteral) {
	d.WriteString("<class '")
	d.WriteString(t.Class.Name)
	d.WriteString("'>")
}

func (d *displayer) VisitGenericAlias(t *GenericAlias) {
	d.WriteString("<class '")
	d.WriteString(t.Class.Name)
	d.WriteByte('[')
	d.list(t.Args, ", ")
	d.WriteString("]'>")
}

func (d *displayer) VisitSubclassOf(t *SubclassOf) {
	d.WriteString("type[")
	d.write(t.Base)
	d.WriteByte(']')
}

func (d *displayer) VisitFunction(t *Function) {
	sigs := t.Overloads()
	if len(sigs) > 1 {
		d.WriteString("Overload[")
		for i, s := range sigs {
			if i > 0 {
				d.WriteString(", ")
			}
			d.def(t.Name, s)
		}
		d.WriteByte(']')
		return
	}
	d.def(t.Name, sigs[0])
}

func (d *displayer) def(name string, sig *Signature) {
	d.WriteString("def ")
	d.WriteString(name)
	d.signature(sig)
}

func (d *displayer) VisitBoundMethod(t *BoundMethod) {
	d.WriteString("bound method ")
	switch self := t.Self.(type) {
	case *Instance:
		d.WriteString(self.Class.Name)
	case *ClassLiteral:
		d.WriteString("<class '")
		d.WriteString(self.Class.Name)
		d.WriteString("'>")
	default:
		d.write(self)
	}
	d.WriteByte('.')
	d.WriteString(t.Func.Name)
	d.signature(t.Func.Signature().DropFirst())
}

func (d *displayer) VisitCallable(t *Callable) { d.signature(t.Signature) }

// signature writes (params) -> ret, inserting / after positional-only
// parameters and a bare * before keyword-only ones when no *args precedes
// them.
func (d *displayer) signature(sig *Signature) {
	d.WriteByte('(')
	wroteStar := false
	for i, p := range sig.Params {
		if i > 0 {
			d.WriteString(", ")
		}
		if p.Kind == KeywordOnly && !wroteStar {
			d.WriteString("*, ")
			wroteStar = true
		}
		switch p.Kind {
		case Variadic:
			d.WriteByte('*')
			wroteStar = true
		case KeywordVariadic:
			d.WriteString("**")
		}
		switch {
		case p.Name == "":
			d.write(p.Annotated)
		case IsDynamic(p.Annotated):
			d.WriteString(p.Name)
		default:
			d.WriteString(p.Name)
			d.WriteString(": ")
			d.write(p.Annotated)
		}
		if p.HasDefault() {
			if IsDynamic(p.Annotated) {
				d.WriteString("=...")
			} else {
				d.WriteString(" = ...")
			}
		}
		if p.Kind == PositionalOnly && (i+1 == len(sig.Params) || sig.Params[i+1].Kind != PositionalOnly) {
			d.WriteString(", /")
		}
	}
	d.WriteString(") -> ")
	d.write(sig.Return)
}

func (d *displayer) VisitModule(t *Module) {
	d.WriteString("<module '")
	d.WriteString(t.Name)
	d.WriteString("'>")
}

func (d *displayer) VisitTypeVar(t *TypeVar) {
	d.WriteString(t.Name)
	if t.Scope != "" {
		d.WriteByte('@')
		d.WriteString(t.Scope)
	}
}

func (d *displayer) VisitTypeAlias(t *TypeAlias) { d.WriteString(t.Name) }

func (d *displayer) VisitTypedDict(t *TypedDict) { d.WriteString(t.Class.Name) }

func (d *displayer) VisitTypeIs(t *TypeIs) {
	d.WriteString("TypeIs[")
	d.write(t.Narrowed)
	d.WriteByte(']')
}

func (d *displayer) VisitTypeGuard(t *TypeGuard) {
	d.WriteString("TypeGuard[")
	d.write(t.Guarded)
	d.WriteByte(']')
}

func (d *displayer) VisitNewType(t *NewType) { d.WriteString(t.Name) }

func (d *displayer) VisitSpecialForm(t *SpecialForm) {
	d.WriteString("<special form '")
	d.WriteString(t.Name)
	d.WriteString("'>")
}

func (d *displayer) VisitProperty(*Property) { d.WriteString("property") }

func (d *displayer) VisitOther(t *Other) { d.WriteString(t.Label) }
