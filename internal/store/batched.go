package store

import (
	"sync"
	"time"

	"github.com/jward/typewire/internal/protocol"
)

// BatchedStore buffers the writes of one request in memory using fake
// (negative) IDs. It implements DataStore so callers can write to it
// without knowing whether they're hitting SQLite or an in-memory buffer.
// CommitBatch flushes it in a single transaction.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Files        []File
	Attributions []Attribution
	CallParams   []CallParam
	Types        []TypeRecord

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertFile(f *File) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	f.ID = fakeID
	b.Files = append(b.Files, *f)
	return fakeID, nil
}

func (b *BatchedStore) InsertAttribution(a *Attribution) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	a.ID = fakeID
	b.Attributions = append(b.Attributions, *a)
	return fakeID, nil
}

func (b *BatchedStore) InsertCallParam(p *CallParam) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	p.ID = fakeID
	b.CallParams = append(b.CallParams, *p)
	return fakeID, nil
}

func (b *BatchedStore) PutType(tr *TypeRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Types = append(b.Types, *tr)
	return nil
}

// FileByPath returns a buffered file for path, falling back to the
// database.
func (b *BatchedStore) FileByPath(sessionID int64, path string) (*File, error) {
	b.mu.Lock()
	for i := len(b.Files) - 1; i >= 0; i-- {
		if f := b.Files[i]; f.SessionID == sessionID && f.Path == path {
			b.mu.Unlock()
			return &f, nil
		}
	}
	b.mu.Unlock()
	return b.store.FileByPath(sessionID, path)
}

// Empty reports whether nothing has been buffered.
func (b *BatchedStore) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Files) == 0 && len(b.Types) == 0
}

// RecordFile buffers a collected file and its attributions, flattening
// call signatures into their rows.
func RecordFile(ds DataStore, sessionID int64, path, module, hash string, nodes []protocol.Attribution) error {
	f := &File{SessionID: sessionID, Path: path, Module: module, Hash: hash, CollectedAt: time.Now()}
	fileID, err := ds.InsertFile(f)
	if err != nil {
		return err
	}
	for i, n := range nodes {
		a := &Attribution{
			FileID:   fileID,
			Ordinal:  i,
			Start:    n.Start,
			End:      n.End,
			NodeKind: n.NodeKind,
			TypeID:   refID(n.TypeID),
		}
		sig := n.CallSignature
		if sig != nil {
			a.HasSignature = true
			a.ReturnTypeID = refID(sig.ReturnTypeID)
			a.Fallback = sig.Fallback
			for _, id := range sig.TypeArguments {
				a.TypeArguments = append(a.TypeArguments, int64(id))
			}
		}
		attrID, err := ds.InsertAttribution(a)
		if err != nil {
			return err
		}
		if sig == nil {
			continue
		}
		for j, p := range sig.Parameters {
			cp := &CallParam{
				AttributionID: attrID,
				Ordinal:       j,
				Name:          p.Name,
				Kind:          p.Kind,
				TypeID:        refID(p.TypeID),
				HasDefault:    p.HasDefault,
				DefaultTypeID: refID(p.DefaultTypeID),
			}
			if _, err := ds.InsertCallParam(cp); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTypes buffers disclosed descriptors in id order.
func RecordTypes(ds DataStore, sessionID int64, types protocol.TypeMap) error {
	for _, id := range types.IDs() {
		tr, err := NewTypeRecord(sessionID, id, types[id])
		if err != nil {
			return err
		}
		if err := ds.PutType(tr); err != nil {
			return err
		}
	}
	return nil
}

func refID(id *protocol.TypeID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}
