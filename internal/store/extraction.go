package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// --- Sessions ---

func (s *Store) InsertSession(sess *Session) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO sessions (uuid, project_root, mode, started_at) VALUES (?, ?, ?, ?)",
		sess.UUID, sess.ProjectRoot, sess.Mode, sess.StartedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sess.ID = id
	return id, nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(sessionID int64, at time.Time) error {
	_, err := s.db.Exec("UPDATE sessions SET ended_at = ? WHERE id = ?", at, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

const sessionColumns = "id, uuid, project_root, mode, started_at, ended_at"

func scanSession(scanner interface{ Scan(...any) error }) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := scanner.Scan(&sess.ID, &sess.UUID, &sess.ProjectRoot, &sess.Mode, &sess.StartedAt, &ended); err != nil {
		return nil, err
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return sess, nil
}

// SessionByUUID returns the session with the given uuid, or nil.
func (s *Store) SessionByUUID(uuid string) (*Session, error) {
	row := s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE uuid = ?", uuid)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session by uuid: %w", err)
	}
	return sess, nil
}

// LatestSession returns the most recently started session, or nil.
func (s *Store) LatestSession() (*Session, error) {
	row := s.db.QueryRow("SELECT " + sessionColumns + " FROM sessions ORDER BY started_at DESC, id DESC LIMIT 1")
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return sess, nil
}

func (s *Store) Sessions() ([]*Session, error) {
	rows, err := s.db.Query("SELECT " + sessionColumns + " FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// --- Files ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (session_id, path, module, hash, collected_at) VALUES (?, ?, ?, ?, ?)",
		f.SessionID, f.Path, f.Module, f.Hash, f.CollectedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

const fileColumns = "id, session_id, path, module, hash, collected_at"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var module, hash sql.NullString
	var collected sql.NullTime
	if err := scanner.Scan(&f.ID, &f.SessionID, &f.Path, &module, &hash, &collected); err != nil {
		return nil, err
	}
	f.Module = module.String
	f.Hash = hash.String
	f.CollectedAt = collected.Time
	return f, nil
}

// FileByPath returns the file the session recorded for path, or nil.
func (s *Store) FileByPath(sessionID int64, path string) (*File, error) {
	row := s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE session_id = ? AND path = ?", sessionID, path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FilesBySession lists a session's files in collection order.
func (s *Store) FilesBySession(sessionID int64) ([]*File, error) {
	rows, err := s.db.Query("SELECT "+fileColumns+" FROM files WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("files by session: %w", err)
	}
	defer rows.Close()
	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Attributions ---

func (s *Store) InsertAttribution(a *Attribution) (int64, error) {
	return insertAttribution(s.db, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertAttribution(db execer, a *Attribution) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO attributions (file_id, ordinal, start_offset, end_offset, node_kind, type_id,
		 has_signature, return_type_id, type_arguments, fallback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.FileID, a.Ordinal, a.Start, a.End, a.NodeKind, nullID(a.TypeID),
		a.HasSignature, nullID(a.ReturnTypeID), marshalIDs(a.TypeArguments), a.Fallback,
	)
	if err != nil {
		return 0, fmt.Errorf("insert attribution: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

const attributionColumns = `id, file_id, ordinal, start_offset, end_offset, node_kind, type_id,
	has_signature, return_type_id, type_arguments, fallback`

func scanAttribution(scanner interface{ Scan(...any) error }) (*Attribution, error) {
	a := &Attribution{}
	var typeID, returnID sql.NullInt64
	var typeArgs sql.NullString
	if err := scanner.Scan(&a.ID, &a.FileID, &a.Ordinal, &a.Start, &a.End, &a.NodeKind, &typeID,
		&a.HasSignature, &returnID, &typeArgs, &a.Fallback); err != nil {
		return nil, err
	}
	a.TypeID = idPtr(typeID)
	a.ReturnTypeID = idPtr(returnID)
	a.TypeArguments = unmarshalIDs(typeArgs.String)
	return a, nil
}

func (s *Store) queryAttributions(query string, args ...any) ([]*Attribution, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Attribution
	for rows.Next() {
		a, err := scanAttribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttributionsByFile returns a file's attributions in source order.
func (s *Store) AttributionsByFile(fileID int64) ([]*Attribution, error) {
	out, err := s.queryAttributions("SELECT "+attributionColumns+" FROM attributions WHERE file_id = ? ORDER BY ordinal", fileID)
	if err != nil {
		return nil, fmt.Errorf("attributions by file: %w", err)
	}
	return out, nil
}

// --- Call parameters ---

func (s *Store) InsertCallParam(p *CallParam) (int64, error) {
	return insertCallParam(s.db, p)
}

func insertCallParam(db execer, p *CallParam) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO call_parameters (attribution_id, ordinal, name, kind, type_id, has_default, default_type_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.AttributionID, p.Ordinal, p.Name, p.Kind, nullID(p.TypeID), p.HasDefault, nullID(p.DefaultTypeID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert call parameter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// CallParams returns the parameters of a call attribution's signature.
func (s *Store) CallParams(attributionID int64) ([]*CallParam, error) {
	rows, err := s.db.Query(
		`SELECT id, attribution_id, ordinal, name, kind, type_id, has_default, default_type_id
		 FROM call_parameters WHERE attribution_id = ? ORDER BY ordinal`, attributionID,
	)
	if err != nil {
		return nil, fmt.Errorf("call parameters: %w", err)
	}
	defer rows.Close()
	var out []*CallParam
	for rows.Next() {
		p := &CallParam{}
		var name sql.NullString
		var typeID, defaultID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.AttributionID, &p.Ordinal, &name, &p.Kind, &typeID, &p.HasDefault, &defaultID); err != nil {
			return nil, fmt.Errorf("scan call parameter: %w", err)
		}
		p.Name = name.String
		p.TypeID = idPtr(typeID)
		p.DefaultTypeID = idPtr(defaultID)
		out = append(out, p)
	}
	return out, rows.Err()
}
