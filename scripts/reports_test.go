package scripts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typewire"
	"github.com/jward/typewire/internal/runtime"
	"github.com/jward/typewire/internal/store"
	"github.com/jward/typewire/scripts"
)

const mainSource = `def add(a: int, b: int = 1) -> int:
    return a + b

x: int = 42
r = add(1)
bad = add("x")

def greet(name: str):
    return name
`

type reportEnv struct {
	rt   *runtime.Runtime
	path string
}

// newReportEnv collects main.py into a fresh store and returns a runtime
// reading the embedded reports against that session.
func newReportEnv(t *testing.T) *reportEnv {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "main.py")
	require.NoError(t, os.WriteFile(path, []byte(mainSource), 0o644))

	s, err := store.NewStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	e, err := typewire.New(root, typewire.WithStore(s))
	require.NoError(t, err)
	_, err = e.CollectFile(context.Background(), "main.py")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	rt := runtime.NewRuntime(s, "", runtime.WithRuntimeFS(scripts.FS), runtime.WithSession(e.Session()))
	return &reportEnv{rt: rt, path: path}
}

func (e *reportEnv) run(t *testing.T, name string) any {
	t.Helper()
	got, err := e.rt.EvalScript(context.Background(), runtime.ReportScriptPath(name), nil)
	require.NoError(t, err)
	return got
}

func TestReportsListed(t *testing.T) {
	assert.ElementsMatch(t, []string{"fallbacks", "summary", "top_types", "unannotated"}, scripts.Reports())
}

func TestSummaryReport(t *testing.T) {
	env := newReportEnv(t)
	got, ok := env.run(t, "summary").(map[string]any)
	require.True(t, ok)

	assert.EqualValues(t, 1, got["files"])
	assert.EqualValues(t, 2, got["call_sites"])
	nodes := got["nodes"].(int64)
	typed := got["typed_nodes"].(int64)
	assert.Greater(t, nodes, typed, "statements carry no type")
	assert.Positive(t, typed)

	kinds := got["kinds"].(map[string]any)
	var sum int64
	for _, n := range kinds {
		sum += n.(int64)
	}
	assert.Equal(t, got["types"], sum)
	assert.Contains(t, kinds, "function")
	assert.Contains(t, kinds, "intLiteral")
}

func TestFallbacksReport(t *testing.T) {
	env := newReportEnv(t)
	got, ok := env.run(t, "fallbacks").([]any)
	require.True(t, ok)
	require.Len(t, got, 1)

	site := got[0].(map[string]any)
	assert.Equal(t, env.path, site["file"])
	start := int(site["start"].(int64))
	end := int(site["end"].(int64))
	assert.Equal(t, `add("x")`, mainSource[start:end])
	assert.Equal(t, `add("x")`, site["text"])
	assert.EqualValues(t, 6, site["line"])
}

func TestUnannotatedReport(t *testing.T) {
	env := newReportEnv(t)
	got, ok := env.run(t, "unannotated").([]any)
	require.True(t, ok)
	require.Len(t, got, 1, "add is annotated")

	fn := got[0].(map[string]any)
	assert.Equal(t, "greet", fn["name"])
	assert.EqualValues(t, 8, fn["line"])
	sig, ok := fn["signature"].(string)
	require.True(t, ok, "the inferred signature comes from the session")
	assert.Contains(t, sig, "greet")
	assert.Contains(t, sig, "-> str")
}

func TestTopTypesReport(t *testing.T) {
	env := newReportEnv(t)
	got, ok := env.run(t, "top_types").([]any)
	require.True(t, ok)
	require.NotEmpty(t, got)

	prev := int64(1 << 62)
	for _, row := range got {
		r := row.(map[string]any)
		uses := r["uses"].(int64)
		assert.LessOrEqual(t, uses, prev, "ranked by use count")
		prev = uses
		assert.NotEmpty(t, r["kind"])
	}
}
