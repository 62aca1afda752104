package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/typewire/internal/store"
)

// ErrNoSession is returned when a report runs against a store that has
// never recorded a session.
var ErrNoSession = errors.New("runtime: store has no sessions")

// Runtime embeds a Risor VM and exposes a persisted collection session to
// report scripts, together with tree-sitter host functions for looking at
// the collected source behind each attribution.
type Runtime struct {
	store      *store.Store
	session    *store.Session
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
	sources    *sourceStore
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithSession selects the session the report functions read from. Without
// it the most recent session in the store is used.
func WithSession(sess *store.Session) RuntimeOption {
	return func(r *Runtime) {
		r.session = sess
	}
}

// WithLogger routes the scripts' log object to l.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime wired to the given Store and scripts directory.
// The store may be nil, in which case only the parsing functions are available.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
		sources:    newSourceStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// Eval runs source and returns the value of its last expression converted
// to a Go value, for callers that want a script's result rather than its
// output.
func (r *Runtime) Eval(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	obj, err := r.evalObject(ctx, source, "<inline>", extraGlobals)
	if err != nil {
		return nil, err
	}
	return obj.Interface(), nil
}

// EvalScript is Eval for a script loaded like RunScript.
func (r *Runtime) EvalScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	obj, err := r.evalObject(ctx, src, scriptPath, extraGlobals)
	if err != nil {
		return nil, err
	}
	return obj.Interface(), nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	_, err := r.evalObject(ctx, source, label, extraGlobals)
	return err
}

func (r *Runtime) evalObject(ctx context.Context, source, label string, extraGlobals map[string]any) (object.Object, error) {
	globals, err := r.buildGlobals(extraGlobals)
	if err != nil {
		return nil, err
	}

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Imported modules compile against the same names as the script,
	// Risor's default builtins and modules included.
	if imp := r.buildImporter(risor.NewConfig(opts...).GlobalNames()); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globalNames []string) importer.Importer {
	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// fs.FS paths are relative ("/reports/a.risor" -> "reports/a.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ReportScriptPath returns the conventional location of a named report.
func ReportScriptPath(name string) string {
	return filepath.Join("reports", name+".risor")
}

// currentSession resolves the session the report functions read from.
func (r *Runtime) currentSession() (*store.Session, error) {
	if r.session != nil {
		return r.session, nil
	}
	sess, err := r.store.LatestSession()
	if err != nil {
		return nil, fmt.Errorf("runtime: latest session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	r.session = sess
	return sess, nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) (map[string]any, error) {
	globals := map[string]any{
		"parse":      makeParseFn(r.sources),
		"parse_src":  makeParseSrcFn(r.sources),
		"node_text":  makeNodeTextFn(r.sources),
		"node_child": makeNodeChildFn(),
		"node_span":  makeNodeSpanFn(),
		"query":      makeQueryFn(r.sources),
		"log":        mustProxy(&logObject{logger: r.logger.With("component", "script")}),
	}

	if r.store != nil {
		sess, err := r.currentSession()
		if err != nil {
			return nil, err
		}
		rep := &reporter{store: r.store, session: sess, sources: r.sources}
		globals["session"] = rep.sessionObject()
		globals["sessions"] = makeSessionsFn(r.store)
		globals["files"] = rep.makeFilesFn()
		globals["nodes"] = rep.makeNodesFn()
		globals["types"] = rep.makeTypesFn()
		globals["descriptor"] = rep.makeDescriptorFn()
		globals["usages"] = rep.makeUsagesFn()
		globals["source"] = rep.makeSourceFn()
		globals["cst"] = rep.makeCSTFn()
		globals["node_at"] = rep.makeNodeAtFn()
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals, nil
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
