package typewire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jward/typewire/internal/collector"
	"github.com/jward/typewire/internal/config"
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/registry"
	"github.com/jward/typewire/internal/semantic"
	"github.com/jward/typewire/internal/store"
)

// Engine owns one project, the Registry of one session, and optionally the
// store that session is persisted to. It is not safe for concurrent use:
// requests are processed one at a time.
type Engine struct {
	project  *semantic.Project
	registry *registry.Registry
	logger   *slog.Logger

	store     *store.Store
	ownsStore bool
	dbPath    string
	session   *store.Session
	// undelivered holds descriptors drained by a collection whose result
	// was never returned; the next collection discloses them.
	undelivered protocol.TypeMap

	sessionID   string
	mode        string
	searchPaths []string
	exclude     []string
	cacheSize   int

	// useParallel enables parse warmup in CollectFiles.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig applies the search paths, exclusions, cache size and database
// of a loaded project configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.searchPaths = cfg.SearchPaths
		e.exclude = cfg.Exclude
		e.cacheSize = cfg.CacheSize
		if cfg.Database != "" && e.store == nil {
			e.dbPath = cfg.Database
		}
	}
}

// WithSearchPaths adds module roots searched by imports.
func WithSearchPaths(paths ...string) Option {
	return func(e *Engine) {
		e.searchPaths = append(e.searchPaths, paths...)
	}
}

// WithExclude rejects files matching any of the glob patterns.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// WithCacheSize bounds the number of parsed modules kept in memory.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStore persists the session to s. The caller keeps ownership of s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
		e.dbPath = ""
	}
}

// WithDatabase opens (and migrates) a SQLite database at path and persists
// the session to it. The Engine closes it.
func WithDatabase(path string) Option {
	return func(e *Engine) {
		e.dbPath = path
	}
}

// WithSessionID sets the id the session is recorded under. The default is
// a fresh random UUID.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithMode records how the session was started (store.ModeServe or
// store.ModeCollect).
func WithMode(mode string) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithParallel controls whether CollectFiles parses its inputs
// concurrently before collecting them. Collection itself is always serial.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// New opens the project rooted at projectRoot with an empty Registry.
func New(projectRoot string, opts ...Option) (*Engine, error) {
	e := &Engine{
		mode:        store.ModeCollect,
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.sessionID == "" {
		e.sessionID = uuid.NewString()
	}
	e.logger = e.logger.With("session_id", e.sessionID)

	p, err := semantic.NewProject(projectRoot, semantic.Options{
		SearchPaths: e.searchPaths,
		Exclude:     e.exclude,
		CacheSize:   e.cacheSize,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("typewire: %w", err)
	}
	e.project = p
	e.registry = registry.New(p.Interner())

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("typewire: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("typewire: migrate: %w", err)
		}
		e.store = s
		e.ownsStore = true
	}
	if e.store != nil {
		if err := e.beginSession(); err != nil {
			if e.ownsStore {
				e.store.Close()
			}
			return nil, err
		}
	}
	e.logger.Debug("engine ready", "root", p.Root(), "persist", e.store != nil)
	return e, nil
}

func (e *Engine) beginSession() error {
	sess := &store.Session{
		UUID:        e.sessionID,
		ProjectRoot: e.project.Root(),
		Mode:        e.mode,
		StartedAt:   time.Now(),
	}
	if _, err := e.store.InsertSession(sess); err != nil {
		return fmt.Errorf("typewire: record session: %w", err)
	}
	e.session = sess
	return nil
}

// Close ends the persisted session and releases the database, if the
// Engine opened it.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	var err error
	if e.session != nil {
		err = e.store.EndSession(e.session.ID, time.Now())
	}
	if e.ownsStore {
		if cerr := e.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Root returns the absolute project root.
func (e *Engine) Root() string { return e.project.Root() }

// SessionID returns the session's UUID.
func (e *Engine) SessionID() string { return e.sessionID }

// Registry returns the session Registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Store returns the store the session is persisted to, or nil.
func (e *Engine) Store() *store.Store { return e.store }

// Session returns the persisted session record, or nil.
func (e *Engine) Session() *store.Session { return e.session }

// ResolveFile maps an absolute or project-relative path to the absolute
// path of a collectable file.
func (e *Engine) ResolveFile(file string) (string, error) {
	return e.project.ResolveFile(file)
}

// FileResult is the outcome of collecting one file.
type FileResult struct {
	Path   string
	Module string
	Nodes  []protocol.Attribution
	// NewTypes holds the descriptors first disclosed by this collection.
	NewTypes protocol.TypeMap
}

// CollectFile resolves file, attributes its nodes, and drains the types
// the Registry had not disclosed before.
func (e *Engine) CollectFile(ctx context.Context, file string) (*FileResult, error) {
	e.project.BeginRequest()
	abs, err := e.project.ResolveFile(file)
	if err != nil {
		return nil, err
	}
	return e.collectResolved(ctx, abs)
}

func (e *Engine) collectResolved(ctx context.Context, abs string) (*FileResult, error) {
	start := time.Now()
	m, err := e.project.Model(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("typewire: %w", err)
	}
	res := collector.Collect(m.Tree(), m, e.registry)
	for id, d := range e.undelivered {
		if res.NewTypes == nil {
			res.NewTypes = make(protocol.TypeMap, len(e.undelivered))
		}
		res.NewTypes[id] = d
	}
	e.undelivered = nil
	nodes := res.Nodes
	if nodes == nil {
		nodes = []protocol.Attribution{}
	}
	src := m.Source()
	fr := &FileResult{Path: abs, Module: src.Module, Nodes: nodes, NewTypes: res.NewTypes}

	if e.store != nil {
		if err := e.persist(src, fr); err != nil {
			e.undelivered = fr.NewTypes
			return nil, err
		}
	}
	e.logger.Debug("collected file",
		"path", abs,
		"nodes", len(fr.Nodes),
		"new_types", len(fr.NewTypes),
		"duration", time.Since(start),
	)
	return fr, nil
}

// persist commits a file's attributions and its newly disclosed
// descriptors in one transaction.
func (e *Engine) persist(src *semantic.Source, fr *FileResult) error {
	batch := store.NewBatchedStore(e.store)
	if err := store.RecordFile(batch, e.session.ID, fr.Path, src.Module, src.Hash, fr.Nodes); err != nil {
		return fmt.Errorf("typewire: persist %s: %w", fr.Path, err)
	}
	if err := store.RecordTypes(batch, e.session.ID, fr.NewTypes); err != nil {
		return fmt.Errorf("typewire: persist %s: %w", fr.Path, err)
	}
	if err := e.store.CommitBatch(batch); err != nil {
		return fmt.Errorf("typewire: persist %s: %w", fr.Path, err)
	}
	return nil
}

// CollectFiles is the one-shot mode: every file is resolved first, so a
// bad path fails the whole run before any work, then the files are
// collected in argument order against the session Registry. The result
// maps each resolved path to its attributions and carries every
// descriptor interned so far.
func (e *Engine) CollectFiles(ctx context.Context, files []string) (*protocol.CLIResult, error) {
	e.project.BeginRequest()
	paths := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := e.project.ResolveFile(f)
		if err != nil {
			return nil, err
		}
		paths = append(paths, abs)
	}

	if e.useParallel && len(paths) > 1 {
		if err := e.warmup(ctx, paths); err != nil {
			return nil, err
		}
	}

	out := &protocol.CLIResult{Files: make(map[string][]protocol.Attribution, len(paths))}
	for _, abs := range paths {
		fr, err := e.collectResolved(ctx, abs)
		if err != nil {
			return nil, err
		}
		out.Files[abs] = fr.Nodes
	}
	out.Types = e.registry.All()
	return out, nil
}
