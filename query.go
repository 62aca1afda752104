package typewire

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/store"
)

// QueryBuilder answers questions about one persisted session.
type QueryBuilder struct {
	store   *store.Store
	session *store.Session
}

// NewQuery returns a QueryBuilder over sess.
func NewQuery(s *store.Store, sess *store.Session) *QueryBuilder {
	return &QueryBuilder{store: s, session: sess}
}

// Query returns a QueryBuilder over the Engine's own session, or nil when
// the Engine does not persist.
func (e *Engine) Query() *QueryBuilder {
	if e.store == nil {
		return nil
	}
	return NewQuery(e.store, e.session)
}

// Location is a byte range in a collected file.
type Location struct {
	File     string
	Start    uint32
	End      uint32
	NodeKind string
}

// TypedNode is a persisted attribution with its descriptor.
type TypedNode struct {
	Location
	TypeID     TypeID
	Descriptor Descriptor
}

// Files returns the paths collected in the session, in collection order.
func (q *QueryBuilder) Files() ([]string, error) {
	files, err := q.store.FilesBySession(q.session.ID)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths, nil
}

// TypeAt finds the innermost typed node of file covering offset. It
// returns nil when the file was not collected or no typed node covers the
// offset.
func (q *QueryBuilder) TypeAt(file string, offset uint32) (*TypedNode, error) {
	f, err := q.store.FileByPath(q.session.ID, file)
	if err != nil {
		return nil, fmt.Errorf("type at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	var (
		start, end uint32
		kind       string
		typeID     int64
	)
	// Innermost means shortest span; ties go to the later node, which
	// source order makes the more deeply nested one.
	err = q.store.DB().QueryRow(
		`SELECT start_offset, end_offset, node_kind, type_id FROM attributions
		 WHERE file_id = ? AND type_id IS NOT NULL AND start_offset <= ? AND end_offset > ?
		 ORDER BY end_offset - start_offset, ordinal DESC LIMIT 1`,
		f.ID, offset, offset,
	).Scan(&start, &end, &kind, &typeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("type at: %w", err)
	}

	d, err := q.Descriptor(TypeID(typeID))
	if err != nil {
		return nil, fmt.Errorf("type at: %w", err)
	}
	return &TypedNode{
		Location:   Location{File: f.Path, Start: start, End: end, NodeKind: kind},
		TypeID:     TypeID(typeID),
		Descriptor: d,
	}, nil
}

// Descriptor decodes the persisted descriptor of id, or returns nil when
// the session never disclosed it.
func (q *QueryBuilder) Descriptor(id TypeID) (Descriptor, error) {
	tr, err := q.store.TypeByID(q.session.ID, int64(id))
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, nil
	}
	d, err := protocol.UnmarshalDescriptor([]byte(tr.Descriptor))
	if err != nil {
		return nil, fmt.Errorf("descriptor %d: %w", id, err)
	}
	return d, nil
}

// Types returns every descriptor the session disclosed.
func (q *QueryBuilder) Types() (TypeMap, error) {
	recs, err := q.store.TypesBySession(q.session.ID)
	if err != nil {
		return nil, fmt.Errorf("types: %w", err)
	}
	out := make(TypeMap, len(recs))
	for _, tr := range recs {
		d, err := protocol.UnmarshalDescriptor([]byte(tr.Descriptor))
		if err != nil {
			return nil, fmt.Errorf("types: descriptor %d: %w", tr.TypeID, err)
		}
		out[TypeID(tr.TypeID)] = d
	}
	return out, nil
}

// UsagesOf returns every node of the session attributed with id.
func (q *QueryBuilder) UsagesOf(id TypeID) ([]Location, error) {
	us, err := q.store.UsagesOfType(q.session.ID, int64(id))
	if err != nil {
		return nil, fmt.Errorf("usages of: %w", err)
	}
	locs := make([]Location, 0, len(us))
	for _, u := range us {
		locs = append(locs, Location{File: u.Path, Start: u.Start, End: u.End, NodeKind: u.NodeKind})
	}
	return locs, nil
}

// Nodes returns the persisted attributions of file in collection order,
// with call signatures rebuilt from their rows.
func (q *QueryBuilder) Nodes(file string) ([]Attribution, error) {
	f, err := q.store.FileByPath(q.session.ID, file)
	if err != nil {
		return nil, fmt.Errorf("nodes: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	attrs, err := q.store.AttributionsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	out := make([]Attribution, 0, len(attrs))
	for _, a := range attrs {
		n := Attribution{Start: a.Start, End: a.End, NodeKind: a.NodeKind, TypeID: typeRef(a.TypeID)}
		if a.HasSignature {
			sig, err := q.signature(a)
			if err != nil {
				return nil, fmt.Errorf("nodes: %w", err)
			}
			n.CallSignature = sig
		}
		out = append(out, n)
	}
	return out, nil
}

func (q *QueryBuilder) signature(a *store.Attribution) (*CallSignature, error) {
	params, err := q.store.CallParams(a.ID)
	if err != nil {
		return nil, err
	}
	sig := &CallSignature{
		Parameters:   make([]Parameter, 0, len(params)),
		ReturnTypeID: typeRef(a.ReturnTypeID),
		Fallback:     a.Fallback,
	}
	for _, p := range params {
		sig.Parameters = append(sig.Parameters, Parameter{
			Name:          p.Name,
			Kind:          p.Kind,
			TypeID:        typeRef(p.TypeID),
			HasDefault:    p.HasDefault,
			DefaultTypeID: typeRef(p.DefaultTypeID),
		})
	}
	for _, id := range a.TypeArguments {
		sig.TypeArguments = append(sig.TypeArguments, TypeID(id))
	}
	return sig, nil
}

func typeRef(id *int64) *TypeID {
	if id == nil {
		return nil
	}
	return protocol.Ref(TypeID(*id))
}
