package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrDescriptorChanged reports an attempt to store a different descriptor
// under an id the session already disclosed.
var ErrDescriptorChanged = errors.New("descriptor changed for disclosed type id")

type queryRower interface {
	execer
	QueryRow(query string, args ...any) *sql.Row
}

// PutType stores a disclosed descriptor. Storing the same structure again
// is a no-op, except that a label fills in one that was stored without.
func (s *Store) PutType(tr *TypeRecord) error {
	return putType(s.db, tr)
}

func putType(db queryRower, tr *TypeRecord) error {
	var hash, display string
	err := db.QueryRow(
		"SELECT hash, COALESCE(display, '') FROM types WHERE session_id = ? AND type_id = ?",
		tr.SessionID, tr.TypeID,
	).Scan(&hash, &display)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec(
			"INSERT INTO types (session_id, type_id, kind, display, descriptor, hash) VALUES (?, ?, ?, ?, ?, ?)",
			tr.SessionID, tr.TypeID, tr.Kind, tr.Display, tr.Descriptor, tr.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert type %d: %w", tr.TypeID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("lookup type %d: %w", tr.TypeID, err)
	case hash != tr.Hash:
		return fmt.Errorf("type %d: %w", tr.TypeID, ErrDescriptorChanged)
	case display == "" && tr.Display != "":
		_, err = db.Exec(
			"UPDATE types SET display = ?, descriptor = ? WHERE session_id = ? AND type_id = ?",
			tr.Display, tr.Descriptor, tr.SessionID, tr.TypeID,
		)
		if err != nil {
			return fmt.Errorf("label type %d: %w", tr.TypeID, err)
		}
	}
	return nil
}

const typeColumns = "session_id, type_id, kind, COALESCE(display, ''), descriptor, hash"

func (s *Store) queryTypes(query string, args ...any) ([]*TypeRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*TypeRecord
	for rows.Next() {
		tr := &TypeRecord{}
		if err := rows.Scan(&tr.SessionID, &tr.TypeID, &tr.Kind, &tr.Display, &tr.Descriptor, &tr.Hash); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// TypesBySession returns every descriptor a session disclosed, by id.
func (s *Store) TypesBySession(sessionID int64) ([]*TypeRecord, error) {
	out, err := s.queryTypes("SELECT "+typeColumns+" FROM types WHERE session_id = ? ORDER BY type_id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("types by session: %w", err)
	}
	return out, nil
}

// TypesByKind returns a session's descriptors of one kind.
func (s *Store) TypesByKind(sessionID int64, kind string) ([]*TypeRecord, error) {
	out, err := s.queryTypes("SELECT "+typeColumns+" FROM types WHERE session_id = ? AND kind = ? ORDER BY type_id", sessionID, kind)
	if err != nil {
		return nil, fmt.Errorf("types by kind: %w", err)
	}
	return out, nil
}

// TypeByID returns one descriptor, or nil when the session never
// disclosed id.
func (s *Store) TypeByID(sessionID, typeID int64) (*TypeRecord, error) {
	out, err := s.queryTypes("SELECT "+typeColumns+" FROM types WHERE session_id = ? AND type_id = ?", sessionID, typeID)
	if err != nil {
		return nil, fmt.Errorf("type by id: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// Usage is one attribution of a type, with the path of its file.
type Usage struct {
	Path string
	Attribution
}

// UsagesOfType finds every node of the session attributed with typeID.
func (s *Store) UsagesOfType(sessionID, typeID int64) ([]*Usage, error) {
	rows, err := s.db.Query(
		`SELECT f.path, a.id, a.file_id, a.ordinal, a.start_offset, a.end_offset, a.node_kind, a.type_id,
		        a.has_signature, a.return_type_id, a.type_arguments, a.fallback
		 FROM attributions a JOIN files f ON f.id = a.file_id
		 WHERE f.session_id = ? AND a.type_id = ?
		 ORDER BY f.id, a.ordinal`, sessionID, typeID,
	)
	if err != nil {
		return nil, fmt.Errorf("usages of type: %w", err)
	}
	defer rows.Close()
	var out []*Usage
	for rows.Next() {
		var path string
		a, err := scanAttribution(prefixScanner{rows: rows, prefix: []any{&path}})
		if err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		out = append(out, &Usage{Path: path, Attribution: *a})
	}
	return out, rows.Err()
}

// prefixScanner scans leading columns into prefix before the row's own.
type prefixScanner struct {
	rows   *sql.Rows
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append(p.prefix, dest...)...)
}
