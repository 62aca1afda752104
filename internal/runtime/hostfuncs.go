package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/typewire/internal/store"
)

// sourceStore keeps the text behind every tree handed to a script so that
// node_text and query can recover it from a node. smacker/go-tree-sitter
// does not expose Node.Tree(), so texts are keyed by root node pointer and
// found again by walking Parent(). Collected files are cached by path
// together with the content hash they were parsed from.
type sourceStore struct {
	mu    sync.Mutex
	texts map[uintptr][]byte
	files map[string]*parsedFile
}

type parsedFile struct {
	hash string
	text []byte
	root *sitter.Node
}

func newSourceStore() *sourceStore {
	return &sourceStore{
		texts: make(map[uintptr][]byte),
		files: make(map[string]*parsedFile),
	}
}

func rootKey(root *sitter.Node) uintptr { return uintptr(unsafe.Pointer(root)) }

// rootOf walks a node up to its root via Parent().
func rootOf(node *sitter.Node) *sitter.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

// parse builds a Python CST for src and remembers src for its nodes.
func (s *sourceStore) parse(ctx context.Context, src []byte) (*sitter.Node, error) {
	lang, _ := ParserForLanguage("python")
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()
	s.mu.Lock()
	s.texts[rootKey(root)] = src
	s.mu.Unlock()
	return root, nil
}

func (s *sourceStore) textOf(node *sitter.Node) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.texts[rootKey(rootOf(node))]
	return src, ok
}

// collected returns the text and CST of a file recorded as f. The file on
// disk must still hash to what was collected, or the recorded offsets would
// point at the wrong text.
func (s *sourceStore) collected(ctx context.Context, f *store.File) (*parsedFile, error) {
	text, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	hash := store.ComputeContentHash(text)
	if hash != f.Hash {
		return nil, fmt.Errorf("%s changed since it was collected", f.Path)
	}
	s.mu.Lock()
	pf, ok := s.files[f.Path]
	s.mu.Unlock()
	if ok && pf.hash == hash {
		return pf, nil
	}

	root, err := s.parse(ctx, text)
	if err != nil {
		return nil, err
	}
	pf = &parsedFile{hash: hash, text: text, root: root}
	s.mu.Lock()
	s.files[f.Path] = pf
	s.mu.Unlock()
	return pf, nil
}

// namedDescendant returns the smallest named node covering [start, end).
func namedDescendant(root *sitter.Node, start, end uint32) *sitter.Node {
	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if c.StartByte() <= start && end <= c.EndByte() {
				next = c
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

func proxyNode(fn string, node *sitter.Node) object.Object {
	if node == nil {
		return object.Nil
	}
	p, err := object.NewProxy(node)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

func nodeArg(fn string, obj object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, obj.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

// parse(path) → root Node of the file's CST
func makeParseFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: %v", err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		root, err := ss.parse(ctx, src)
		if err != nil {
			return object.Errorf("parse: %v", err)
		}
		return proxyNode("parse", root)
	})
}

// parse_src(source) → root Node
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		root, err := ss.parse(ctx, []byte(src))
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		return proxyNode("parse_src", root)
	})
}

// node_text(node) → string
//
// Risor's proxies cannot pass a []byte to node.Content, so the text is
// looked up here.
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, found := ss.textOf(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(src))
	})
}

// node_span(node) → {type, start, end, line}, with byte offsets comparable
// to the start and end of nodes() and a 1-based line.
func makeNodeSpanFn() *object.Builtin {
	return object.NewBuiltin("node_span", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_span", 1, len(args))
		}
		node, errObj := nodeArg("node_span", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewMap(map[string]object.Object{
			"type":  object.NewString(node.Type()),
			"start": object.NewInt(int64(node.StartByte())),
			"end":   object.NewInt(int64(node.EndByte())),
			"line":  object.NewInt(int64(node.StartPoint().Row) + 1),
		})
	})
}

// query(pattern, node) → [{capture: Node}]
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		src, found := ss.textOf(node)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		lang, _ := ParserForLanguage("python")
		q, err := sitter.NewQuery([]byte(pattern), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)
			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				captures[q.CaptureNameForId(c.Index)] = proxyNode("query", c.Node)
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// node_child(node, field) → Node or nil. ChildByFieldName through a proxy
// would hand scripts a proxied nil pointer instead of nil.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		return proxyNode("node_child", node.ChildByFieldName(field))
	})
}

// file looks up a path collected in the reporter's session.
func (r *reporter) file(fn, path string) (*store.File, *object.Error) {
	f, err := r.store.FileByPath(r.session.ID, path)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	if f == nil {
		return nil, object.Errorf("%s: %s was not collected in this session", fn, path)
	}
	return f, nil
}

func (r *reporter) parsed(ctx context.Context, fn string, pathArg object.Object) (*parsedFile, *object.Error) {
	path, err := toString(pathArg)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	f, errObj := r.file(fn, path)
	if errObj != nil {
		return nil, errObj
	}
	pf, err := r.sources.collected(ctx, f)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	return pf, nil
}

// spanArgs reads optional start and end offsets, defaulting to the whole text.
func spanArgs(fn string, args []object.Object, size int) (uint32, uint32, *object.Error) {
	start, end := int64(0), int64(size)
	var err error
	if len(args) > 0 {
		if start, err = toInt64(args[0]); err != nil {
			return 0, 0, object.Errorf("%s: start: %v", fn, err)
		}
	}
	if len(args) > 1 {
		if end, err = toInt64(args[1]); err != nil {
			return 0, 0, object.Errorf("%s: end: %v", fn, err)
		}
	}
	if start < 0 || end < start || end > int64(size) {
		return 0, 0, object.Errorf("%s: span [%d, %d) outside 0..%d", fn, start, end, size)
	}
	return uint32(start), uint32(end), nil
}

// source(path, start=0, end=len) → the collected text, or the slice of it an
// attribution covers.
func (r *reporter) makeSourceFn() *object.Builtin {
	return object.NewBuiltin("source", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 3 {
			return object.Errorf("source: expected 1 to 3 arguments, got %d", len(args))
		}
		pf, errObj := r.parsed(ctx, "source", args[0])
		if errObj != nil {
			return errObj
		}
		start, end, errObj := spanArgs("source", args[1:], len(pf.text))
		if errObj != nil {
			return errObj
		}
		return object.NewString(string(pf.text[start:end]))
	})
}

// cst(path) → root Node of a collected file
func (r *reporter) makeCSTFn() *object.Builtin {
	return object.NewBuiltin("cst", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("cst", 1, len(args))
		}
		pf, errObj := r.parsed(ctx, "cst", args[0])
		if errObj != nil {
			return errObj
		}
		return proxyNode("cst", pf.root)
	})
}

// node_at(path, start, end) → the smallest named CST node covering an
// attribution's span.
func (r *reporter) makeNodeAtFn() *object.Builtin {
	return object.NewBuiltin("node_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("node_at", 3, len(args))
		}
		pf, errObj := r.parsed(ctx, "node_at", args[0])
		if errObj != nil {
			return errObj
		}
		start, end, errObj := spanArgs("node_at", args[1:], len(pf.text))
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_at", namedDescendant(pf.root, start, end))
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
