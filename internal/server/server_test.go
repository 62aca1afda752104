package server

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/store"
)

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *protocol.Error `json:"error"`
	ID      json.RawMessage `json:"id"`
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "method": method, "id": id}
	if params != nil {
		req["params"] = params
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

// serve runs a server over the given input lines and decodes every
// response line.
func serve(t *testing.T, srv *Server, lines ...string) []response {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resps []response
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var r response
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		assert.Equal(t, "2.0", r.JSONRPC)
		resps = append(resps, r)
	}
	return resps
}

func decodeTypes(t *testing.T, raw json.RawMessage) (protocol.GetTypesResult, map[string]map[string]any) {
	t.Helper()
	var res protocol.GetTypesResult
	require.NoError(t, json.Unmarshal(raw, &res))
	var loose struct {
		Types map[string]map[string]any `json:"types"`
	}
	require.NoError(t, json.Unmarshal(raw, &loose))
	return res, loose.Types
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x: int = 42\n"})
	srv := New()

	resps := serve(t, srv,
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "getTypes", map[string]any{"file": filepath.Join(root, "main.py")}),
		request(t, 3, "getTypes", map[string]any{"file": "main.py"}),
		request(t, 4, "getTypeRegistry", nil),
		request(t, 5, "shutdown", nil),
		request(t, 6, "getTypeRegistry", nil),
	)
	require.Len(t, resps, 5, "nothing is read after shutdown")
	assert.Equal(t, Terminated, srv.State())

	for i, r := range resps {
		require.Nil(t, r.Error, "response %d: %v", i, r.Error)
		assert.JSONEq(t, strconv.Itoa(i+1), string(r.ID))
	}
	assert.JSONEq(t, `{"ok":true}`, string(resps[0].Result))
	assert.JSONEq(t, `{"ok":true}`, string(resps[4].Result))

	first, firstTypes := decodeTypes(t, resps[1].Result)
	require.NotEmpty(t, first.Nodes)
	assert.Equal(t, "ExprName", first.Nodes[0].NodeKind)
	require.NotEmpty(t, firstTypes)

	// Same file, resolved relative to the root: same nodes, nothing new.
	second, secondTypes := decodeTypes(t, resps[2].Result)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Empty(t, secondTypes)

	var reg protocol.GetTypeRegistryResult
	require.NoError(t, json.Unmarshal(resps[3].Result, &reg))
	assert.Len(t, reg.Types, len(firstTypes))
}

func TestUninitializedRejectsRequests(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x = 1\n"})
	srv := New()

	resps := serve(t, srv,
		request(t, 1, "getTypes", map[string]any{"file": "main.py"}),
		request(t, 2, "bogus", nil),
		request(t, 3, "initialize", map[string]any{"projectRoot": root}),
	)
	require.Len(t, resps, 3)
	for _, r := range resps[:2] {
		require.NotNil(t, r.Error)
		assert.Equal(t, protocol.CodeServerError, r.Error.Code)
		assert.Contains(t, r.Error.Message, "not initialized")
	}
	assert.Nil(t, resps[2].Error)
}

func TestReinitializeRejected(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x = 1\n"})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "initialize", map[string]any{"projectRoot": root}),
		request(t, 3, "getTypeRegistry", nil),
	)
	require.Len(t, resps, 3)
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, protocol.CodeServerError, resps[1].Error.Code)
	assert.Contains(t, resps[1].Error.Message, "already initialized")
	assert.Nil(t, resps[2].Error, "the session survives the rejected initialize")
}

func TestParseErrorsAndBlankLines(t *testing.T) {
	t.Parallel()
	srv := New()

	resps := serve(t, srv,
		"",
		"{not json",
		"   ",
		request(t, 7, "shutdown", nil),
	)
	require.Len(t, resps, 2)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, protocol.CodeParseError, resps[0].Error.Code)
	assert.JSONEq(t, "null", string(resps[0].ID))
	assert.Nil(t, resps[1].Error)
	assert.Equal(t, Terminated, srv.State())
}

func TestInvalidParams(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x = 1\n"})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{}),
		request(t, 2, "initialize", map[string]any{"projectRoot": root}),
		request(t, 3, "getTypes", nil),
		request(t, 4, "getTypes", map[string]any{"file": 3}),
	)
	require.Len(t, resps, 4)
	for _, i := range []int{0, 2, 3} {
		require.NotNil(t, resps[i].Error, "response %d", i)
		assert.Equal(t, protocol.CodeInvalidParams, resps[i].Error.Code)
	}
	assert.Nil(t, resps[1].Error)
}

func TestUnknownMethodAfterInitialize(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x = 1\n"})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "hover", nil),
	)
	require.Len(t, resps, 2)
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resps[1].Error.Code)
	assert.Contains(t, resps[1].Error.Message, "hover")
}

func TestInitializeFailure(t *testing.T) {
	t.Parallel()
	srv := New()

	resps := serve(t, srv,
		request(t, 1, "initialize", map[string]any{"projectRoot": filepath.Join(t.TempDir(), "missing")}),
	)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, protocol.CodeServerError, resps[0].Error.Code)
	assert.Contains(t, resps[0].Error.Message, "Failed to initialize")
	assert.Equal(t, Uninitialized, srv.State())
}

func TestGetTypesBadPaths(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"main.py":   "x = 1\n",
		"notes.txt": "hello\n",
	})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "getTypes", map[string]any{"file": "missing.py"}),
		request(t, 3, "getTypes", map[string]any{"file": "notes.txt"}),
		request(t, 4, "getTypes", map[string]any{"file": "main.py"}),
	)
	require.Len(t, resps, 4)
	for _, r := range resps[1:3] {
		require.NotNil(t, r.Error)
		assert.Equal(t, protocol.CodeServerError, r.Error.Code)
		assert.Contains(t, r.Error.Message, "Failed to resolve file")
	}
	assert.Nil(t, resps[3].Error, "the session continues after a bad path")
}

func TestIncludeDisplay(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"a.py": "x: int = 42\n",
		"b.py": "y: str = 'hi'\n",
	})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "getTypes", map[string]any{"file": "a.py", "includeDisplay": false}),
		request(t, 3, "getTypes", map[string]any{"file": "b.py"}),
	)
	require.Len(t, resps, 3)

	_, hidden := decodeTypes(t, resps[1].Result)
	require.NotEmpty(t, hidden)
	for id, d := range hidden {
		assert.NotContains(t, d, "display", "type %s", id)
	}

	_, shown := decodeTypes(t, resps[2].Result)
	require.NotEmpty(t, shown)
	labelled := 0
	for _, d := range shown {
		if _, ok := d["display"]; ok {
			labelled++
		}
	}
	assert.Positive(t, labelled)
}

func TestIncludeDisplayDefaultFromConfig(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"typewire.yaml": "includeDisplay: false\n",
		"main.py":       "x: int = 42\n",
	})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "getTypes", map[string]any{"file": "main.py"}),
	)
	require.Len(t, resps, 2)
	_, types := decodeTypes(t, resps[1].Result)
	for _, d := range types {
		assert.NotContains(t, d, "display")
	}
}

func TestCrossFileDisclosure(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{
		"models.py": "class Animal:\n    pass\n\npet: Animal = Animal()\n",
		"main.py":   "from models import Animal\n\nother: Animal = Animal()\n",
	})

	resps := serve(t, New(),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "getTypes", map[string]any{"file": "models.py"}),
		request(t, 3, "getTypes", map[string]any{"file": "main.py"}),
		request(t, 4, "getTypeRegistry", nil),
	)
	require.Len(t, resps, 4)

	_, first := decodeTypes(t, resps[1].Result)
	second, secondTypes := decodeTypes(t, resps[2].Result)

	var animalKey string
	for key, d := range first {
		if d["kind"] == "instance" && d["className"] == "Animal" {
			animalKey = key
		}
	}
	require.NotEmpty(t, animalKey)
	assert.NotContains(t, secondTypes, animalKey, "Animal was already disclosed")
	animalID, err := strconv.ParseUint(animalKey, 10, 32)
	require.NoError(t, err)

	var annotated bool
	for _, n := range second.Nodes {
		if n.TypeID != nil && n.NodeKind == "ExprName" && uint64(*n.TypeID) == animalID {
			annotated = true
		}
	}
	assert.True(t, annotated, "main.py refers to the Animal instance by its existing id")

	var reg protocol.GetTypeRegistryResult
	require.NoError(t, json.Unmarshal(resps[3].Result, &reg))
	assert.Len(t, reg.Types, len(first)+len(secondTypes))
}

func TestPersistence(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x: int = 42\n"})
	dbPath := filepath.Join(t.TempDir(), "types.db")

	resps := serve(t, New(WithDatabase(dbPath)),
		request(t, 1, "initialize", map[string]any{"projectRoot": root}),
		request(t, 2, "getTypes", map[string]any{"file": "main.py"}),
		request(t, 3, "getTypes", map[string]any{"file": "main.py"}),
		request(t, 4, "shutdown", nil),
	)
	require.Len(t, resps, 4)
	first, firstTypes := decodeTypes(t, resps[1].Result)

	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	sess, err := s.LatestSession()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, store.ModeServe, sess.Mode)
	assert.NotEmpty(t, sess.UUID)
	assert.NotNil(t, sess.EndedAt, "shutdown ends the session")

	files, err := s.FilesBySession(sess.ID)
	require.NoError(t, err)
	require.Len(t, files, 1, "a re-collected file replaces its rows")
	attrs, err := s.AttributionsByFile(files[0].ID)
	require.NoError(t, err)
	assert.Len(t, attrs, len(first.Nodes))

	types, err := s.TypesBySession(sess.ID)
	require.NoError(t, err)
	assert.Len(t, types, len(firstTypes))
}

func TestEndOfInputClosesSession(t *testing.T) {
	t.Parallel()
	root := writeProject(t, map[string]string{"main.py": "x = 1\n"})
	dbPath := filepath.Join(t.TempDir(), "types.db")
	srv := New(WithDatabase(dbPath))

	resps := serve(t, srv, request(t, 1, "initialize", map[string]any{"projectRoot": root}))
	require.Len(t, resps, 1)
	assert.Equal(t, Initialized, srv.State())

	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	sess, err := s.LatestSession()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotNil(t, sess.EndedAt)
}

func TestShutdownBeforeInitialize(t *testing.T) {
	t.Parallel()
	srv := New()
	resps := serve(t, srv, request(t, 1, "shutdown", nil), request(t, 2, "initialize", map[string]any{"projectRoot": "/"}))
	require.Len(t, resps, 1)
	assert.Nil(t, resps[0].Error)
	assert.Equal(t, Terminated, srv.State())
}

func TestServeHonorsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := New().Serve(ctx, strings.NewReader(request(t, 1, "shutdown", nil)+"\n"), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initialized", Initialized.String())
	assert.Equal(t, "terminated", Terminated.String())
}
