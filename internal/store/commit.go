package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, AUTOINCREMENT) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Files (a file the session already recorded is replaced)
//  2. Attributions (depend on file_id)
//  3. CallParams (depend on attribution_id)
//  4. Types (depend on session_id only)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Files
	for _, f := range batch.Files {
		var prev int64
		err := tx.QueryRow("SELECT id FROM files WHERE session_id = ? AND path = ?", f.SessionID, f.Path).Scan(&prev)
		switch {
		case err == nil:
			if err := deleteFilesTx(tx, []int64{prev}); err != nil {
				return fmt.Errorf("commit batch: replace %q: %w", f.Path, err)
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		res, err := tx.Exec(
			"INSERT INTO files (session_id, path, module, hash, collected_at) VALUES (?, ?, ?, ?, ?)",
			f.SessionID, f.Path, f.Module, f.Hash, f.CollectedAt,
		)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		realID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		fakeToReal[f.ID] = realID
	}

	// 2. Attributions
	for _, a := range batch.Attributions {
		if a.FileID < 0 {
			a.FileID = fakeToReal[a.FileID]
		}
		fakeID := a.ID
		realID, err := insertAttribution(tx, &a)
		if err != nil {
			return fmt.Errorf("commit batch: attribution %s: %w", a.NodeKind, err)
		}
		fakeToReal[fakeID] = realID
	}

	// 3. CallParams
	for _, p := range batch.CallParams {
		if p.AttributionID < 0 {
			p.AttributionID = fakeToReal[p.AttributionID]
		}
		if _, err := insertCallParam(tx, &p); err != nil {
			return fmt.Errorf("commit batch: call parameter %q: %w", p.Name, err)
		}
	}

	// 4. Types
	for _, tr := range batch.Types {
		if err := putType(tx, &tr); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
