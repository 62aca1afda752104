// Package semantic is the bundled type oracle: it resolves files and
// modules for a project, binds names to definitions, and infers the type
// of every expression, parameter, alias and definition in a file.
//
// Inference is shallow. There is no flow narrowing: a name's type is its
// declared annotation, or else the nearest preceding binding in the same
// scope. Everything that cannot be inferred degrades to Unknown.
package semantic

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/typewire/internal/runtime"
	"github.com/jward/typewire/internal/store"
	"github.com/jward/typewire/internal/syntax"
	"github.com/jward/typewire/internal/types"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotPython    = errors.New("not a Python source file")
	ErrExcluded     = errors.New("file excluded by configuration")
)

//go:embed stubs/*.pyi
var stubFS embed.FS

const defaultCacheSize = 256

// Options configure a Project.
type Options struct {
	// SearchPaths are extra import roots, relative to the project root
	// unless absolute.
	SearchPaths []string
	// Exclude holds glob patterns, matched against the project-relative
	// slash path and against the base name, that file resolution rejects.
	Exclude []string
	// CacheSize bounds the number of parsed files kept in memory.
	CacheSize int
	Logger    *slog.Logger
}

// Source is one parsed file.
type Source struct {
	Path   string
	Module string
	Hash   string
	Text   []byte
	Tree   *syntax.Module
}

// Project resolves files and modules under a root directory and owns the
// Interner shared by every model it builds.
//
// Parse is safe for concurrent use. Every other method must be called from
// a single goroutine.
type Project struct {
	root  string
	roots []string
	opts  Options
	in    *types.Interner
	log   *slog.Logger

	parsed    *lru.Cache[string, *Source]
	models    map[string]*Model
	byModule  map[string]string // module name -> path, "" when unresolvable
	validated map[string]uint64
	gen       uint64

	owners    map[*types.Class]*Model
	aliases   map[*types.TypeAlias][]*types.TypeVar
	typeForms map[*types.Other]types.Type
	known     map[string]*types.Class
}

// NewProject opens the project rooted at root, which must be a directory.
func NewProject(root string, opts Options) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("semantic: resolving project root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("semantic: project root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("semantic: project root %s is not a directory", abs)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	cache, err := lru.New[string, *Source](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("semantic: creating module cache: %w", err)
	}

	p := &Project{
		root:      abs,
		roots:     []string{abs},
		opts:      opts,
		in:        types.NewInterner(),
		log:       opts.Logger,
		parsed:    cache,
		models:    make(map[string]*Model),
		byModule:  make(map[string]string),
		validated: make(map[string]uint64),
		gen:       1,
		owners:    make(map[*types.Class]*Model),
		aliases:   make(map[*types.TypeAlias][]*types.TypeVar),
		typeForms: make(map[*types.Other]types.Type),
		known:     make(map[string]*types.Class),
	}
	for _, sp := range opts.SearchPaths {
		if !filepath.IsAbs(sp) {
			sp = filepath.Join(abs, sp)
		}
		p.roots = append(p.roots, filepath.Clean(sp))
	}
	return p, nil
}

// Root returns the absolute project root.
func (p *Project) Root() string { return p.root }

// Interner returns the interner every model of the project shares.
func (p *Project) Interner() *types.Interner { return p.in }

// BeginRequest marks the start of a request. Files are re-read and
// re-hashed at most once per request; unchanged files keep their models.
func (p *Project) BeginRequest() {
	p.gen++
	clear(p.byModule)
}

// ResolveFile maps a path, absolute or relative to the project root, to the
// absolute path of a Python file.
func (p *Project) ResolveFile(file string) (string, error) {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.root, file)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, abs)
	}
	if lang, ok := runtime.LanguageForFile(abs); !ok || lang != "python" {
		return "", fmt.Errorf("%w: %s", ErrNotPython, abs)
	}
	if p.excluded(abs) {
		return "", fmt.Errorf("%w: %s", ErrExcluded, abs)
	}
	return abs, nil
}

func (p *Project) excluded(abs string) bool {
	rel, err := filepath.Rel(p.root, abs)
	if err != nil {
		rel = abs
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	for _, pattern := range p.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// Patterns without a separator also match the base name anywhere.
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, base); ok {
				return true
			}
		}
	}
	return false
}

// Parse reads and parses a file, reusing the cached tree when the file's
// content hash is unchanged.
func (p *Project) Parse(ctx context.Context, abs string) (*Source, error) {
	text, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("semantic: reading %s: %w", abs, err)
	}
	return p.parseText(ctx, abs, p.moduleName(abs), text)
}

func (p *Project) parseText(ctx context.Context, key, module string, text []byte) (*Source, error) {
	hash := store.ComputeContentHash(text)
	if cached, ok := p.parsed.Get(key); ok && cached.Hash == hash {
		return cached, nil
	}
	tree, err := runtime.Parse(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: parsing %s: %w", key, err)
	}
	src := &Source{Path: key, Module: module, Hash: hash, Text: text, Tree: tree}
	p.parsed.Add(key, src)
	p.log.Debug("parsed module", "path", key, "module", module, "bytes", len(text))
	return src, nil
}

// Model returns the semantic model of a resolved file.
func (p *Project) Model(ctx context.Context, abs string) (*Model, error) {
	if m, ok := p.models[abs]; ok && p.validated[abs] == p.gen {
		return m, nil
	}
	src, err := p.Parse(ctx, abs)
	if err != nil {
		return nil, err
	}
	return p.modelFor(src), nil
}

func (p *Project) modelFor(src *Source) *Model {
	p.validated[src.Path] = p.gen
	if m, ok := p.models[src.Path]; ok && m.src.Hash == src.Hash {
		return m
	}
	m := newModel(p, src)
	p.models[src.Path] = m
	return m
}

// moduleName derives the dotted module name of a file from the import root
// that contains it.
func (p *Project) moduleName(abs string) string {
	for _, root := range p.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return dotted(rel)
	}
	return dotted(filepath.Base(abs))
}

func dotted(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

// importModule loads a module by dotted name. Embedded stubs take
// precedence over project files.
func (p *Project) importModule(name string) (*Model, bool) {
	if name == "" {
		return nil, false
	}
	if key, ok := p.byModule[name]; ok {
		if key == "" {
			return nil, false
		}
		if m, ok := p.models[key]; ok {
			return m, true
		}
	}
	m, ok := p.loadModule(name)
	if !ok {
		p.byModule[name] = ""
		return nil, false
	}
	p.byModule[name] = m.src.Path
	return m, true
}

func (p *Project) loadModule(name string) (*Model, bool) {
	ctx := context.Background()
	stub := "stubs/" + name + ".pyi"
	if text, err := fs.ReadFile(stubFS, stub); err == nil {
		key := "<stub>/" + name + ".pyi"
		if m, ok := p.models[key]; ok {
			return m, true
		}
		src, err := p.parseText(ctx, key, name, text)
		if err != nil {
			p.log.Warn("parsing bundled stub failed", "module", name, "error", err)
			return nil, false
		}
		return p.modelFor(src), true
	}

	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, root := range p.roots {
		for _, candidate := range []string{
			filepath.Join(root, rel+".pyi"),
			filepath.Join(root, rel+".py"),
			filepath.Join(root, rel, "__init__.pyi"),
			filepath.Join(root, rel, "__init__.py"),
		} {
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			m, err := p.Model(ctx, candidate)
			if err != nil {
				p.log.Warn("loading module failed", "module", name, "path", candidate, "error", err)
				return nil, false
			}
			return m, true
		}
	}
	p.log.Debug("unresolved import", "module", name)
	return nil, false
}

// builtins returns the builtins stub model.
func (p *Project) builtins() *Model {
	m, _ := p.importModule("builtins")
	return m
}

// class returns a class declared at the top level of a module, or nil.
func (p *Project) class(module, name string) *types.Class {
	key := module + "." + name
	if c, ok := p.known[key]; ok {
		return c
	}
	m, ok := p.importModule(module)
	if !ok {
		return nil
	}
	sym, ok := m.b.module.symbols[name]
	if !ok {
		return nil
	}
	lit, ok := m.symbolType(sym, false, 0).(*types.ClassLiteral)
	if !ok {
		return nil
	}
	p.known[key] = lit.Class
	return lit.Class
}
