// Package registry interns types for a session. Each distinct type gets a
// stable id and a structural descriptor that refers to its component types
// by id. The registry also remembers which ids were assigned since the last
// reset so a session only discloses each descriptor once.
package registry

import (
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/types"
)

// Registrar assigns ids to types.
type Registrar interface {
	Register(t types.Type) (protocol.TypeID, bool)
}

// Registry is an append-only arena of descriptors indexed by id. It is not
// safe for concurrent use: Register must run to completion, including the
// recursive registration of component types, before another call starts.
type Registry struct {
	in       *types.Interner
	label    func(types.Type) string
	ids      map[types.Type]protocol.TypeID
	descs    []protocol.Descriptor // slot 0 is reserved
	newTypes []protocol.TypeID
}

// Option configures a Registry.
type Option func(*Registry)

// WithLabeler replaces the function that renders display labels.
func WithLabeler(fn func(types.Type) string) Option {
	return func(r *Registry) { r.label = fn }
}

// New returns an empty registry. in must be the interner that produced the
// types passed to Register; the encoder uses it to build class literals and
// specialized supertypes.
func New(in *types.Interner, opts ...Option) *Registry {
	r := &Registry{
		in:    in,
		label: types.Display,
		ids:   make(map[types.Type]protocol.TypeID),
		descs: make([]protocol.Descriptor, 1),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register returns the id of t, assigning one and building its descriptor
// on first sight. The id is published before the descriptor is built, so a
// type that refers to itself receives its own id instead of recursing.
func (r *Registry) Register(t types.Type) (protocol.TypeID, bool) {
	if id, ok := r.ids[t]; ok {
		return id, false
	}
	id := protocol.TypeID(len(r.descs))
	r.ids[t] = id
	r.descs = append(r.descs, nil)

	e := &encoder{r: r, label: r.label(t)}
	t.Accept(e)
	if e.out == nil {
		e.out = &protocol.Other{Display: e.label}
	}
	r.descs[id] = e.out
	r.newTypes = append(r.newTypes, id)
	return id, true
}

// component registers a type referenced from another descriptor.
func (r *Registry) component(t types.Type) protocol.TypeID {
	id, _ := r.Register(t)
	return id
}

func (r *Registry) components(ts []types.Type) []protocol.TypeID {
	out := make([]protocol.TypeID, 0, len(ts))
	for _, t := range ts {
		out = append(out, r.component(t))
	}
	return out
}

// Descriptor returns the descriptor for id.
func (r *Registry) Descriptor(id protocol.TypeID) (protocol.Descriptor, bool) {
	if id == 0 || int(id) >= len(r.descs) || r.descs[id] == nil {
		return nil, false
	}
	return r.descs[id], true
}

// All returns every descriptor interned so far.
func (r *Registry) All() protocol.TypeMap {
	out := make(protocol.TypeMap, len(r.descs)-1)
	for id := 1; id < len(r.descs); id++ {
		if d := r.descs[id]; d != nil {
			out[protocol.TypeID(id)] = d
		}
	}
	return out
}

// Len returns the number of ids assigned.
func (r *Registry) Len() int { return len(r.descs) - 1 }

// ResetNewTypes forgets which ids were assigned since the last reset.
func (r *Registry) ResetNewTypes() { r.newTypes = r.newTypes[:0] }

// DrainNewTypes returns the descriptors of every id assigned since the
// last reset, including ids assigned while building other descriptors, and
// resets the set.
func (r *Registry) DrainNewTypes() protocol.TypeMap {
	out := make(protocol.TypeMap, len(r.newTypes))
	for _, id := range r.newTypes {
		if d := r.descs[id]; d != nil {
			out[id] = d
		}
	}
	r.ResetNewTypes()
	return out
}

// EncodeParameter builds the wire record for p. The declared type is
// omitted when it is dynamic so that an unannotated parameter is
// distinguishable from one annotated with a real type. When withDefault is
// set and p has a default, the default's type is registered too.
func EncodeParameter(reg Registrar, p types.Parameter, withDefault bool) protocol.Parameter {
	out := protocol.Parameter{
		Name:       p.Name,
		Kind:       p.Kind.String(),
		HasDefault: p.HasDefault(),
	}
	if p.Annotated != nil && !types.IsDynamic(p.Annotated) {
		id, _ := reg.Register(p.Annotated)
		out.TypeID = protocol.Ref(id)
	}
	if withDefault && out.HasDefault {
		id, _ := reg.Register(p.Default)
		out.DefaultTypeID = protocol.Ref(id)
	}
	return out
}
