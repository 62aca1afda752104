package store

// DataStore is the interface for write-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for one request)
// implement this interface.
type DataStore interface {
	// Inserts return the assigned ID.
	InsertFile(f *File) (int64, error)
	InsertAttribution(a *Attribution) (int64, error)
	InsertCallParam(p *CallParam) (int64, error)
	PutType(tr *TypeRecord) error

	// FileByPath finds a file already recorded for the session.
	FileByPath(sessionID int64, path string) (*File, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
