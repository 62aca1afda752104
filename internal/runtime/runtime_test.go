package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/store"
)

const pyTestSource = `import os

def greet(name: str) -> str:
    return "Hello, " + name

def add(a: int, b: int) -> int:
    return a + b

class Server:
    host: str
    port: int

    def address(self) -> str:
        return self.host
`

// parsePySource parses Python source into a Runtime's source store.
func parsePySource(t *testing.T, src string) (*sitter.Node, *Runtime) {
	t.Helper()
	rt := NewRuntime(nil, "")
	root, err := rt.sources.parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return root, rt
}

func writePyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.py")
	require.NoError(t, os.WriteFile(path, []byte(pyTestSource), 0644))
	return path
}

// newReportStore seeds a store with one committed session holding a
// single file and three descriptors.
func newReportStore(t *testing.T) (*store.Store, *store.Session) {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	sess := &store.Session{UUID: "report-session", ProjectRoot: "/proj", Mode: store.ModeCollect, StartedAt: time.Now()}
	_, err = s.InsertSession(sess)
	require.NoError(t, err)

	batch := store.NewBatchedStore(s)
	require.NoError(t, store.RecordFile(batch, sess.ID, "/proj/main.py", "main", "h1", []protocol.Attribution{
		{Start: 0, End: 15, NodeKind: "StmtAnnAssign"},
		{Start: 0, End: 1, NodeKind: "ExprName", TypeID: protocol.Ref(1)},
		{Start: 3, End: 6, NodeKind: "ExprName", TypeID: protocol.Ref(2)},
		{
			Start: 20, End: 27, NodeKind: "ExprCall", TypeID: protocol.Ref(1),
			CallSignature: &protocol.CallSignature{
				Parameters: []protocol.Parameter{
					{Name: "x", Kind: "positionalOrKeyword", TypeID: protocol.Ref(1)},
					{Name: "y", Kind: "keywordOnly", HasDefault: true, DefaultTypeID: protocol.Ref(3)},
				},
				ReturnTypeID:  protocol.Ref(1),
				TypeArguments: []protocol.TypeID{1},
			},
		},
	}))
	classID := protocol.TypeID(2)
	require.NoError(t, store.RecordTypes(batch, sess.ID, protocol.TypeMap{
		1: &protocol.Instance{Display: "int", ClassName: "int", ModuleName: "builtins", ClassID: &classID},
		2: &protocol.ClassLiteral{Display: "<class 'int'>", ClassName: "int"},
		3: &protocol.IntLiteral{Display: "Literal[0]", Value: 0},
	}))
	require.NoError(t, s.CommitBatch(batch))
	return s, sess
}

// --- Tree-sitter host function tests ---

func TestParse_PythonRootNode(t *testing.T) {
	root, _ := parsePySource(t, pyTestSource)
	require.NotNil(t, root)
	assert.Equal(t, "module", root.Type())
	assert.False(t, root.HasError())
}

func TestParse_InvalidSourceStillReturnsTree(t *testing.T) {
	root, _ := parsePySource(t, "def broken(:\n    return }{")
	require.NotNil(t, root)
	assert.True(t, root.HasError())
}

func TestSourceStore_TextForNestedNode(t *testing.T) {
	root, rt := parsePySource(t, pyTestSource)

	var names []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "function_definition" {
			continue
		}
		name := child.ChildByFieldName("name")
		src, ok := rt.sources.textOf(name)
		require.True(t, ok)
		names = append(names, name.Content(src))
	}
	assert.Equal(t, []string{"greet", "add"}, names)
}

func TestNamedDescendant(t *testing.T) {
	root, _ := parsePySource(t, "x = add(1, 2)\n")

	n := namedDescendant(root, 8, 9)
	assert.Equal(t, "integer", n.Type())
	n = namedDescendant(root, 4, 13)
	assert.Equal(t, "call", n.Type())
	n = namedDescendant(root, 0, 14)
	assert.Equal(t, "module", n.Type())
}

// --- Risor integration tests (via RunSource) ---

func TestRunSource_ParseAndNodeText(t *testing.T) {
	rt := NewRuntime(nil, "")

	script := `
root := parse(test_file)
assert(root.Type() == "module", "expected module")

names := []
count := int(root.NamedChildCount())
for i := 0; i < count; i++ {
    child := root.NamedChild(i)
    if child.Type() == "function_definition" {
        names.append(node_text(node_child(child, "name")))
    }
}

assert(len(names) == 2, 'expected 2 functions, got {len(names)}')
assert(names[0] == "greet", 'expected greet, got {names[0]}')
assert(names[1] == "add", 'expected add, got {names[1]}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"test_file": writePyFile(t),
	})
	require.NoError(t, err)
}

func TestRunSource_QueryHostFunction(t *testing.T) {
	rt := NewRuntime(nil, "")

	script := `
matches := query("(class_definition name: (identifier) @name body: (block) @body)", parse_src(source))
assert(len(matches) == 1, 'expected 1 class, got {len(matches)}')
assert(node_text(matches[0]["name"]) == "Server", "expected Server")
span := node_span(matches[0]["name"])
assert(span["line"] == 9, 'expected line 9, got {span["line"]}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"source": pyTestSource})
	require.NoError(t, err)
}

func TestRunSource_QueryNoMatches(t *testing.T) {
	rt := NewRuntime(nil, "")

	got, err := rt.Eval(context.Background(), `len(query("(function_definition) @fn", parse_src("x = 1\n")))`, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	rt := NewRuntime(nil, "")

	err := rt.RunSource(context.Background(), `query("(not_a_real_node", parse_src("x = 1\n"))`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_NodeChildMissingFieldIsNil(t *testing.T) {
	rt := NewRuntime(nil, "")

	got, err := rt.Eval(context.Background(), `
fn := parse_src("def f(): pass\n").NamedChild(0)
node_child(fn, "return_type") == nil
`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

// --- Report functions ---

func TestReport_Files(t *testing.T) {
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "")

	got, err := rt.Eval(context.Background(), `files()`, nil)
	require.NoError(t, err)
	files, ok := got.([]any)
	require.True(t, ok, "got %T", got)
	require.Len(t, files, 1)
	f := files[0].(map[string]any)
	assert.Equal(t, "/proj/main.py", f["path"])
	assert.Equal(t, "main", f["module"])
	assert.Equal(t, "h1", f["hash"])
}

func TestReport_Nodes(t *testing.T) {
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "")

	got, err := rt.Eval(context.Background(), `nodes("/proj/main.py")`, nil)
	require.NoError(t, err)
	nodes := got.([]any)
	require.Len(t, nodes, 4)

	stmt := nodes[0].(map[string]any)
	assert.Equal(t, "StmtAnnAssign", stmt["kind"])
	assert.NotContains(t, stmt, "type_id")

	name := nodes[1].(map[string]any)
	assert.EqualValues(t, 1, name["type_id"])
	assert.EqualValues(t, 0, name["start"])
	assert.EqualValues(t, 1, name["end"])

	call := nodes[3].(map[string]any)
	sig := call["signature"].(map[string]any)
	assert.EqualValues(t, 1, sig["return_type_id"])
	assert.Equal(t, false, sig["fallback"])
	assert.Equal(t, []any{int64(1)}, sig["type_arguments"])
	params := sig["parameters"].([]any)
	require.Len(t, params, 2)
	y := params[1].(map[string]any)
	assert.Equal(t, "y", y["name"])
	assert.Equal(t, "keywordOnly", y["kind"])
	assert.Equal(t, true, y["has_default"])
	assert.EqualValues(t, 3, y["default_type_id"])
	assert.NotContains(t, y, "type_id")
}

func TestReport_NodesUnknownFile(t *testing.T) {
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "")

	err := rt.RunSource(context.Background(), `nodes("/proj/other.py")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not collected")
}

func TestReport_TypesAndDescriptor(t *testing.T) {
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "")
	ctx := context.Background()

	got, err := rt.Eval(ctx, `types()`, nil)
	require.NoError(t, err)
	all := got.([]any)
	require.Len(t, all, 3)
	first := all[0].(map[string]any)
	assert.EqualValues(t, 1, first["id"])
	assert.Equal(t, "instance", first["kind"])
	assert.Equal(t, "int", first["display"])

	got, err = rt.Eval(ctx, `types("intLiteral")`, nil)
	require.NoError(t, err)
	assert.Len(t, got.([]any), 1)

	got, err = rt.Eval(ctx, `descriptor(1)`, nil)
	require.NoError(t, err)
	d := got.(map[string]any)
	assert.Equal(t, "instance", d["kind"])
	assert.Equal(t, "builtins", d["moduleName"])
	assert.EqualValues(t, 2, d["classId"])

	got, err = rt.Eval(ctx, `descriptor(99)`, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

const collectedSource = "x = add(1, 2)\n"

// newSourceReport records one collected file that exists on disk.
func newSourceReport(t *testing.T) (*Runtime, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(path, []byte(collectedSource), 0644))

	s, err := store.NewStore(filepath.Join(t.TempDir(), "source.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	sess := &store.Session{UUID: "source-session", ProjectRoot: filepath.Dir(path), Mode: store.ModeCollect, StartedAt: time.Now()}
	_, err = s.InsertSession(sess)
	require.NoError(t, err)
	batch := store.NewBatchedStore(s)
	require.NoError(t, store.RecordFile(batch, sess.ID, path, "main", store.ComputeContentHash([]byte(collectedSource)), []protocol.Attribution{
		{Start: 4, End: 13, NodeKind: "ExprCall"},
		{Start: 8, End: 9, NodeKind: "ExprNumberLiteral"},
	}))
	require.NoError(t, s.CommitBatch(batch))
	return NewRuntime(s, "", WithSession(sess)), path
}

func TestReport_SourceAndNodeAt(t *testing.T) {
	rt, path := newSourceReport(t)

	got, err := rt.Eval(context.Background(), `
n := nodes(path)[0]
text := source(path, n["start"], n["end"])
kind := node_span(node_at(path, n["start"], n["end"]))["type"]
[text, kind, len(source(path)), len(query("(integer) @i", cst(path)))]
`, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, []any{"add(1, 2)", "call", int64(len(collectedSource)), int64(2)}, got)
}

func TestReport_SourceErrors(t *testing.T) {
	rt, path := newSourceReport(t)
	ctx := context.Background()
	globals := map[string]any{"path": path}

	_, err := rt.Eval(ctx, `source(path, 5, 100)`, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside")

	_, err = rt.Eval(ctx, `source("/elsewhere.py")`, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not collected")

	require.NoError(t, os.WriteFile(path, []byte("y = 2\n"), 0644))
	_, err = rt.Eval(ctx, `cst(path)`, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed since it was collected")
}

func TestReport_Usages(t *testing.T) {
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "")

	got, err := rt.Eval(context.Background(), `
kinds := []
for _, u := range usages(1) {
    kinds.append(u["kind"])
}
kinds
`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"ExprName", "ExprCall"}, got)
}

func TestReport_SessionGlobals(t *testing.T) {
	s, sess := newReportStore(t)
	rt := NewRuntime(s, "", WithSession(sess))
	ctx := context.Background()

	got, err := rt.Eval(ctx, `session["uuid"]`, nil)
	require.NoError(t, err)
	assert.Equal(t, "report-session", got)

	got, err = rt.Eval(ctx, `len(sessions())`, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)
}

func TestReport_DBQuery(t *testing.T) {
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "")
	ctx := context.Background()

	got, err := rt.Eval(ctx, `db_query("SELECT count(*) AS n FROM attributions WHERE node_kind = ?", "ExprName")[0]["n"]`, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got)

	err = rt.RunSource(ctx, `db_query("DELETE FROM types")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestReport_EmptyStore(t *testing.T) {
	s, err := store.NewStore(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	defer s.Close()

	rt := NewRuntime(s, "")
	err = rt.RunSource(context.Background(), `files()`, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

// --- Script loading ---

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())

	err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReportScriptPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("reports", "summary.risor"), ReportScriptPath("summary"))
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"reports/summary.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("reports/summary.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style paths resolve within the FS.
	got, err = rt.LoadScript("/reports/summary.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	// FSImporter resolves "lib_helpers" as the flat path "lib_helpers.risor".
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

msg := lib_helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0644))

	rt := NewRuntime(nil, dir)

	got, err := rt.Eval(context.Background(), `
import math_utils
math_utils.double(21)
`, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)
}

func TestImport_ReportGlobalsAvailableInImportedModules(t *testing.T) {
	// Imported modules compile only if the host globals are passed to the importer.
	mapFS := fstest.MapFS{
		"summary.risor": &fstest.MapFile{Data: []byte(`
func count_types() {
	log.Info("counting types")
	return len(types())
}
`)},
	}
	s, _ := newReportStore(t)
	rt := NewRuntime(s, "", WithRuntimeFS(mapFS))

	got, err := rt.Eval(context.Background(), `
import summary
summary.count_types()
`, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got)
}

func TestEvalScript_ReturnsLastValue(t *testing.T) {
	s, sess := newReportStore(t)
	mapFS := fstest.MapFS{
		"reports/count.risor": &fstest.MapFile{Data: []byte("len(types(\"instance\"))\n")},
	}
	rt := NewRuntime(s, "", WithRuntimeFS(mapFS), WithSession(sess))

	got, err := rt.EvalScript(context.Background(), ReportScriptPath("count"), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)

	_, err = rt.EvalScript(context.Background(), ReportScriptPath("missing"), nil)
	require.Error(t, err)
}
