package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire"
	"github.com/jward/typewire/internal/protocol"
)

const (
	libSource  = "value: int = 3\n\ndef helper(name: str) -> str:\n    return name\n"
	mainSource = "from lib import value, helper\n\nx = value\ny = helper(\"a\")\n"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib.py"), []byte(libSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte(mainSource), 0o644))
	return root
}

// run executes the CLI in-process and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCollect_PrintsFilesAndTypes(t *testing.T) {
	t.Parallel()
	root := writeProject(t)
	mainPath := filepath.Join(root, "main.py")
	libPath := filepath.Join(root, "lib.py")

	stdout, _, err := run(t, "", "collect", mainPath, libPath)
	require.NoError(t, err)

	var res protocol.CLIResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	require.Len(t, res.Files, 2)
	assert.NotEmpty(t, res.Files[mainPath])
	assert.NotEmpty(t, res.Files[libPath])
	assert.NotEmpty(t, res.Types)
	assert.True(t, strings.HasPrefix(stdout, "{\n  "), "output is indented")

	for _, nodes := range res.Files {
		for _, n := range nodes {
			if n.TypeID != nil {
				assert.Contains(t, res.Types, *n.TypeID)
			}
		}
	}
}

func TestCollect_RootOverride(t *testing.T) {
	t.Parallel()
	root := writeProject(t)
	sub := filepath.Join(root, "app")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	appPath := filepath.Join(sub, "run.py")
	require.NoError(t, os.WriteFile(appPath, []byte("from lib import value\nv = value\n"), 0o644))

	// Without --root, lib is not importable from app/.
	stdout, _, err := run(t, "", "collect", "--root", root, appPath)
	require.NoError(t, err)
	var res protocol.CLIResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	var sawInt bool
	for _, d := range res.Types {
		if inst, ok := d.(*protocol.Instance); ok && inst.ClassName == "int" {
			sawInt = true
		}
	}
	assert.True(t, sawInt, "value resolves through the overridden root")
}

func TestCollect_BadPathFails(t *testing.T) {
	t.Parallel()
	root := writeProject(t)

	stdout, _, err := run(t, "", "collect", filepath.Join(root, "main.py"), filepath.Join(root, "missing.py"))
	require.ErrorIs(t, err, typewire.ErrFileNotFound)
	assert.Empty(t, stdout, "nothing is printed on failure")

	_, _, err = run(t, "", "collect")
	require.Error(t, err)
}

func TestCollect_PersistThenShow(t *testing.T) {
	t.Parallel()
	root := writeProject(t)
	db := filepath.Join(t.TempDir(), "types.db")

	_, _, err := run(t, "", "collect", "--db", db, filepath.Join(root, "main.py"))
	require.NoError(t, err)

	stdout, _, err := run(t, "", "show", "--db", db)
	require.NoError(t, err)
	var show CLIShow
	require.NoError(t, json.Unmarshal([]byte(stdout), &show))
	assert.Equal(t, "collect", show.Session.Mode)
	assert.NotNil(t, show.Session.EndedAt)
	require.Len(t, show.Files, 1)
	assert.Equal(t, "main", show.Files[0].Module)
	assert.Positive(t, show.Files[0].Nodes)
	assert.NotEmpty(t, show.Types)

	stdout, _, err = run(t, "", "show", "--db", db, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session: "+show.Session.UUID)
	assert.Contains(t, stdout, "Files (1):")

	stdout, _, err = run(t, "", "show", "--db", db, "--sessions")
	require.NoError(t, err)
	var sessions []CLISession
	require.NoError(t, json.Unmarshal([]byte(stdout), &sessions))
	require.Len(t, sessions, 1)

	_, _, err = run(t, "", "show", "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session nope not found")
}

func TestShow_Errors(t *testing.T) {
	t.Parallel()
	_, _, err := run(t, "", "show", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")

	_, _, err = run(t, "", "show", "--db", "x.db", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	_, _, err = run(t, "", "show")
	require.Error(t, err)
}

func TestScript_BuiltinAndFile(t *testing.T) {
	t.Parallel()
	root := writeProject(t)
	db := filepath.Join(t.TempDir(), "types.db")
	_, _, err := run(t, "", "collect", "--db", db, filepath.Join(root, "main.py"), filepath.Join(root, "lib.py"))
	require.NoError(t, err)

	stdout, _, err := run(t, "", "script", "--db", db, "summary")
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.EqualValues(t, 2, summary["files"])

	script := filepath.Join(t.TempDir(), "count.risor")
	require.NoError(t, os.WriteFile(script, []byte("len(files())\n"), 0o644))
	stdout, _, err = run(t, "", "script", "--db", db, script)
	require.NoError(t, err)
	assert.Equal(t, "2\n", stdout)

	_, _, err = run(t, "", "script", "--db", db, "no-such-report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file or built-in report")

	_, _, err = run(t, "", "script", "summary")
	require.Error(t, err)
}

func TestScript_List(t *testing.T) {
	t.Parallel()
	stdout, _, err := run(t, "", "script", "--list")
	require.NoError(t, err)
	assert.Contains(t, strings.Fields(stdout), "summary")
}

func TestServe_Session(t *testing.T) {
	t.Parallel()
	root := writeProject(t)
	db := filepath.Join(t.TempDir(), "types.db")
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"projectRoot":` + quote(root) + `}}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"getTypes","params":{"file":"main.py","includeDisplay":false}}`,
		`{"jsonrpc":"2.0","id":3,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","id":4,"method":"getTypeRegistry"}`,
	}, "\n") + "\n"

	stdout, _, err := run(t, in, "serve", "--db", db, "--log-level", "debug")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3, "one line per request until shutdown")
	var got protocol.GetTypesResult
	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &resp))
	require.NoError(t, json.Unmarshal(resp.Result, &got))
	assert.NotEmpty(t, got.Nodes)
	assert.NotContains(t, string(resp.Result), `"display"`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"result":{"ok":true}}`, lines[2])

	stdout, _, err = run(t, "", "show", "--db", db)
	require.NoError(t, err)
	var show CLIShow
	require.NoError(t, json.Unmarshal([]byte(stdout), &show))
	assert.Equal(t, "serve", show.Session.Mode)
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, _, err := run(t, "", "script", "--list", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown level")
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestPrune_KeepsRecentSessions(t *testing.T) {
	t.Parallel()
	root := writeProject(t)
	db := filepath.Join(t.TempDir(), "types.db")
	for range 3 {
		_, _, err := run(t, "", "collect", "--db", db, filepath.Join(root, "main.py"))
		require.NoError(t, err)
	}

	stdout, _, err := run(t, "", "prune", "--db", db, "--keep", "1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 2 of 3 sessions\n", stdout)

	stdout, _, err = run(t, "", "show", "--db", db, "--sessions")
	require.NoError(t, err)
	var sessions []CLISession
	require.NoError(t, json.Unmarshal([]byte(stdout), &sessions))
	assert.Len(t, sessions, 1)

	_, _, err = run(t, "", "prune", "--db", db, "--keep", "-1")
	require.Error(t, err)
}
