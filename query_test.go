package typewire

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/store"
)

const querySource = `def add(a: int, b: int = 1) -> int:
    return a + b

total: int = add(40, 2)
bad = add("x")
`

// newQueryEngine collects querySource into a persisted session.
func newQueryEngine(t *testing.T) (*Engine, *FileResult) {
	t.Helper()
	root := writeProject(t, map[string]string{"main.py": querySource})
	e := newTestEngine(t, root, WithDatabase(filepath.Join(t.TempDir(), "query.db")))
	fr, err := e.CollectFile(context.Background(), "main.py")
	require.NoError(t, err)
	return e, fr
}

func offsetOf(t *testing.T, snippet string) uint32 {
	t.Helper()
	i := strings.Index(querySource, snippet)
	require.GreaterOrEqual(t, i, 0, "snippet %q", snippet)
	return uint32(i)
}

func TestQuery_Files(t *testing.T) {
	e, fr := newQueryEngine(t)
	files, err := e.Query().Files()
	require.NoError(t, err)
	assert.Equal(t, []string{fr.Path}, files)
}

func TestQuery_TypeAtInnermost(t *testing.T) {
	e, fr := newQueryEngine(t)
	q := e.Query()

	// Inside "40": the literal, not the enclosing call.
	n, err := q.TypeAt(fr.Path, offsetOf(t, "40"))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ExprNumberLiteral", n.NodeKind)
	lit, ok := n.Descriptor.(*protocol.IntLiteral)
	require.True(t, ok, "got %T", n.Descriptor)
	assert.Equal(t, int64(40), lit.Value)

	// On the callee name.
	n, err = q.TypeAt(fr.Path, offsetOf(t, "add(40"))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ExprName", n.NodeKind)
	fn, ok := n.Descriptor.(*protocol.Function)
	require.True(t, ok, "got %T", n.Descriptor)
	assert.Equal(t, "add", fn.Name)

	// On the parenthesis: only the call covers it.
	n, err = q.TypeAt(fr.Path, offsetOf(t, "(40"))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ExprCall", n.NodeKind)
}

func TestQuery_TypeAtMisses(t *testing.T) {
	e, fr := newQueryEngine(t)
	q := e.Query()

	n, err := q.TypeAt(fr.Path, uint32(len(querySource)+10))
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = q.TypeAt("/nowhere/else.py", 0)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestQuery_DescriptorAndTypes(t *testing.T) {
	e, fr := newQueryEngine(t)
	q := e.Query()

	types, err := q.Types()
	require.NoError(t, err)
	require.Len(t, types, len(fr.NewTypes))

	want, err := json.Marshal(fr.NewTypes)
	require.NoError(t, err)
	got, err := json.Marshal(types)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got), "descriptors round-trip through the store")

	d, err := q.Descriptor(TypeID(e.Registry().Len() + 100))
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestQuery_NodesRebuildsSignatures(t *testing.T) {
	e, fr := newQueryEngine(t)
	q := e.Query()

	nodes, err := q.Nodes(fr.Path)
	require.NoError(t, err)

	want, err := json.Marshal(fr.Nodes)
	require.NoError(t, err)
	got, err := json.Marshal(nodes)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	var fallbacks int
	for _, n := range nodes {
		if n.CallSignature != nil && n.CallSignature.Fallback {
			fallbacks++
			assert.Equal(t, `add("x")`, querySource[n.Start:n.End])
		}
	}
	assert.Equal(t, 1, fallbacks)

	missing, err := q.Nodes("/nowhere/else.py")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestQuery_UsagesOf(t *testing.T) {
	e, fr := newQueryEngine(t)
	q := e.Query()

	callee, err := q.TypeAt(fr.Path, offsetOf(t, "add(40"))
	require.NoError(t, err)
	require.NotNil(t, callee)

	locs, err := q.UsagesOf(callee.TypeID)
	require.NoError(t, err)
	var names []string
	for _, l := range locs {
		assert.Equal(t, fr.Path, l.File)
		names = append(names, querySource[l.Start:l.End])
	}
	// Both callee references at least.
	assert.GreaterOrEqual(t, len(locs), 2)
	assert.Contains(t, names, "add")
}

func TestQuery_OtherSession(t *testing.T) {
	e, _ := newQueryEngine(t)
	other := &store.Session{UUID: "other", ProjectRoot: e.Root(), Mode: store.ModeCollect, StartedAt: time.Now()}
	_, err := e.Store().InsertSession(other)
	require.NoError(t, err)

	files, err := NewQuery(e.Store(), other).Files()
	require.NoError(t, err)
	assert.Empty(t, files, "queries are scoped to their session")
}
