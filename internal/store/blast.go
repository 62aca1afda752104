package store

import (
	"database/sql"
	"fmt"
)

// DeleteFileData removes a file and everything attributed to it. A file
// collected twice in one session keeps only its latest attributions.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete file data: begin: %w", err)
	}
	defer tx.Rollback()
	if err := deleteFilesTx(tx, []int64{fileID}); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFilesTx(tx *sql.Tx, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)
	for _, q := range []string{
		"DELETE FROM call_parameters WHERE attribution_id IN (SELECT id FROM attributions WHERE file_id IN (" + placeholders + "))",
		"DELETE FROM attributions WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM files WHERE id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return nil
}

// DeleteSession removes a session with its files, attributions and types.
func (s *Store) DeleteSession(sessionID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete session: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM files WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete session: files: %w", err)
	}
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("delete session: scan file: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	rows.Close()
	if err := deleteFilesTx(tx, fileIDs); err != nil {
		return err
	}
	for _, q := range []string{
		"DELETE FROM types WHERE session_id = ?",
		"DELETE FROM sessions WHERE id = ?",
	} {
		if _, err := tx.Exec(q, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	return tx.Commit()
}
