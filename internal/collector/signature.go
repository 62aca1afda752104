package collector

import (
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/registry"
	"github.com/jward/typewire/internal/syntax"
)

// ResolveCall describes the overload a call binds to. The first overload
// that accepts the arguments wins; when none does, the first declared one
// is used and the record is marked as a fallback. It returns nil when the
// callee is not callable.
func ResolveCall(call *syntax.Call, oracle Oracle, reg Registry) *protocol.CallSignature {
	bs, ok := oracle.Bindings(call)
	if !ok || len(bs) == 0 {
		return nil
	}
	b, fallback := bs[0], true
	for _, cand := range bs {
		if cand.Matched {
			b, fallback = cand, false
			break
		}
	}
	if b.Signature == nil {
		return nil
	}

	out := &protocol.CallSignature{
		Parameters: make([]protocol.Parameter, 0, len(b.Signature.Params)),
		Fallback:   fallback,
	}
	for _, p := range b.Signature.Params {
		if p.Annotated != nil {
			p.Annotated = oracle.Apply(p.Annotated, b.Specialization)
		}
		out.Parameters = append(out.Parameters, registry.EncodeParameter(reg, p, true))
	}
	if b.Return != nil {
		id, _ := reg.Register(b.Return)
		out.ReturnTypeID = protocol.Ref(id)
	}
	if !b.Specialization.Empty() {
		out.TypeArguments = make([]protocol.TypeID, 0, len(b.Specialization.Types))
		for _, t := range b.Specialization.Types {
			id, _ := reg.Register(t)
			out.TypeArguments = append(out.TypeArguments, id)
		}
	}
	return out
}
