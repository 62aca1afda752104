package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestSession is a helper that inserts a session and returns it with ID set.
func insertTestSession(t *testing.T, s *Store, uuid string) *Session {
	t.Helper()
	sess := &Session{UUID: uuid, ProjectRoot: "/proj", Mode: ModeServe, StartedAt: time.Now().Truncate(time.Second)}
	id, err := s.InsertSession(sess)
	require.NoError(t, err)
	require.Positive(t, id)
	return sess
}

func insertTestFile(t *testing.T, s *Store, sessionID int64, path string) *File {
	t.Helper()
	f := &File{SessionID: sessionID, Path: path, Module: "main", Hash: "abc123", CollectedAt: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

func intLiteral(v int64) protocol.Descriptor {
	return &protocol.IntLiteral{Display: fmt.Sprintf("Literal[%d]", v), Value: v}
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"sessions", "files", "attributions", "call_parameters", "types"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Sessions & Files
// =============================================================================

func TestSession_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u-1")

	got, err := s.SessionByUUID("u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "/proj", got.ProjectRoot)
	assert.Equal(t, ModeServe, got.Mode)
	assert.Nil(t, got.EndedAt)

	end := time.Now().Truncate(time.Second)
	require.NoError(t, s.EndSession(sess.ID, end))
	got, err = s.SessionByUUID("u-1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, end.Equal(*got.EndedAt))
}

func TestSession_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.SessionByUUID("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	latest, err := s.LatestSession()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSession_Latest(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestSession(t, s, "first")
	second := insertTestSession(t, s, "second")

	latest, err := s.LatestSession()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	all, err := s.Sessions()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")
	f := insertTestFile(t, s, sess.ID, "/proj/main.py")

	got, err := s.FileByPath(sess.ID, "/proj/main.py")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, "main", got.Module)
	assert.Equal(t, "abc123", got.Hash)

	missing, err := s.FileByPath(sess.ID, "/proj/other.py")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFile_UniquePerSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestSession(t, s, "a")
	b := insertTestSession(t, s, "b")
	insertTestFile(t, s, a.ID, "/proj/main.py")
	insertTestFile(t, s, b.ID, "/proj/main.py")

	_, err := s.InsertFile(&File{SessionID: a.ID, Path: "/proj/main.py"})
	assert.Error(t, err)

	files, err := s.FilesBySession(a.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

// =============================================================================
// Attributions & Call Parameters
// =============================================================================

func TestAttribution_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")
	f := insertTestFile(t, s, sess.ID, "/proj/main.py")

	_, err := s.InsertAttribution(&Attribution{FileID: f.ID, Ordinal: 1, Start: 4, End: 6, NodeKind: "ExprNumberLiteral", TypeID: ptr(int64(2))})
	require.NoError(t, err)
	callID, err := s.InsertAttribution(&Attribution{
		FileID: f.ID, Ordinal: 0, Start: 0, End: 8, NodeKind: "ExprCall",
		HasSignature: true, ReturnTypeID: ptr(int64(3)), TypeArguments: []int64{2}, Fallback: true,
	})
	require.NoError(t, err)

	attrs, err := s.AttributionsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, "ExprCall", attrs[0].NodeKind, "ordered by ordinal")
	assert.Nil(t, attrs[0].TypeID)
	assert.True(t, attrs[0].HasSignature)
	assert.Equal(t, []int64{2}, attrs[0].TypeArguments)
	assert.True(t, attrs[0].Fallback)
	assert.Equal(t, int64(2), *attrs[1].TypeID)
	assert.Nil(t, attrs[1].TypeArguments)

	_, err = s.InsertCallParam(&CallParam{AttributionID: callID, Ordinal: 0, Name: "x", Kind: "positionalOrKeyword", TypeID: ptr(int64(2))})
	require.NoError(t, err)
	_, err = s.InsertCallParam(&CallParam{AttributionID: callID, Ordinal: 1, Name: "y", Kind: "keywordOnly", HasDefault: true, DefaultTypeID: ptr(int64(4))})
	require.NoError(t, err)

	params, err := s.CallParams(callID)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "x", params[0].Name)
	assert.Nil(t, params[0].DefaultTypeID)
	assert.True(t, params[1].HasDefault)
	assert.Equal(t, int64(4), *params[1].DefaultTypeID)
}

// =============================================================================
// Types
// =============================================================================

func TestType_PutAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")

	tr, err := NewTypeRecord(sess.ID, 1, &protocol.Instance{Display: "int", ClassName: "int", ModuleName: "builtins"})
	require.NoError(t, err)
	require.NoError(t, s.PutType(tr))

	got, err := s.TypeByID(sess.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "instance", got.Kind)
	assert.Equal(t, "int", got.Display)

	d, err := protocol.UnmarshalDescriptor([]byte(got.Descriptor))
	require.NoError(t, err)
	assert.Equal(t, "int", d.(*protocol.Instance).ClassName)

	byKind, err := s.TypesByKind(sess.ID, "instance")
	require.NoError(t, err)
	assert.Len(t, byKind, 1)

	none, err := s.TypeByID(sess.ID, 99)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestType_SameIDDifferentDescriptor(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")

	first, err := NewTypeRecord(sess.ID, 1, intLiteral(1))
	require.NoError(t, err)
	require.NoError(t, s.PutType(first))
	require.NoError(t, s.PutType(first), "storing the same descriptor twice is a no-op")

	changed, err := NewTypeRecord(sess.ID, 1, intLiteral(2))
	require.NoError(t, err)
	assert.ErrorIs(t, s.PutType(changed), ErrDescriptorChanged)
}

func TestType_LabelFillsIn(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")

	bare, err := NewTypeRecord(sess.ID, 1, &protocol.IntLiteral{Value: 7})
	require.NoError(t, err)
	labeled, err := NewTypeRecord(sess.ID, 1, &protocol.IntLiteral{Display: "Literal[7]", Value: 7})
	require.NoError(t, err)
	assert.Equal(t, bare.Hash, labeled.Hash, "labels do not affect the hash")

	require.NoError(t, s.PutType(bare))
	require.NoError(t, s.PutType(labeled))
	got, err := s.TypeByID(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Literal[7]", got.Display)
}

func TestUsagesOfType(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")
	a := insertTestFile(t, s, sess.ID, "/proj/a.py")
	b := insertTestFile(t, s, sess.ID, "/proj/b.py")
	for _, f := range []*File{a, b} {
		_, err := s.InsertAttribution(&Attribution{FileID: f.ID, NodeKind: "ExprName", End: 1, TypeID: ptr(int64(5))})
		require.NoError(t, err)
	}
	_, err := s.InsertAttribution(&Attribution{FileID: a.ID, Ordinal: 1, NodeKind: "ExprName", TypeID: ptr(int64(6))})
	require.NoError(t, err)

	usages, err := s.UsagesOfType(sess.ID, 5)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "/proj/a.py", usages[0].Path)
	assert.Equal(t, "/proj/b.py", usages[1].Path)
	assert.Equal(t, "ExprName", usages[1].NodeKind)
}

// =============================================================================
// Deletion
// =============================================================================

func TestDeleteFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	sess := insertTestSession(t, s, "u")
	f := insertTestFile(t, s, sess.ID, "/proj/main.py")
	attrID, err := s.InsertAttribution(&Attribution{FileID: f.ID, NodeKind: "ExprCall", HasSignature: true})
	require.NoError(t, err)
	_, err = s.InsertCallParam(&CallParam{AttributionID: attrID, Name: "x", Kind: "variadic"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFileData(f.ID))

	got, err := s.FileByPath(sess.ID, "/proj/main.py")
	require.NoError(t, err)
	assert.Nil(t, got)
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM call_parameters").Scan(&n))
	assert.Zero(t, n)
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	keep := insertTestSession(t, s, "keep")
	drop := insertTestSession(t, s, "drop")
	for _, sess := range []*Session{keep, drop} {
		insertTestFile(t, s, sess.ID, "/proj/main.py")
		tr, err := NewTypeRecord(sess.ID, 1, intLiteral(1))
		require.NoError(t, err)
		require.NoError(t, s.PutType(tr))
	}

	require.NoError(t, s.DeleteSession(drop.ID))

	all, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].UUID)
	types, err := s.TypesBySession(keep.ID)
	require.NoError(t, err)
	assert.Len(t, types, 1)
	types, err = s.TypesBySession(drop.ID)
	require.NoError(t, err)
	assert.Empty(t, types)
}
