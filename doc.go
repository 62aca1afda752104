// Package typewire exports the inferred types of Python source files as a
// deduplicated, id-addressed type graph.
//
// # Pipeline
//
// For each requested file, typewire parses the source with tree-sitter,
// walks the syntax tree in source order, asks the semantic model for the
// type of every interesting node, and interns each type in a session
// Registry. The result is a list of node attributions that refer to types
// by id, plus the descriptors of the types the caller has not seen yet.
//
// # Usage
//
// Create an Engine rooted at a project directory and collect files:
//
//	e, err := typewire.New("path/to/project")
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.CollectFile(ctx, "pkg/models.py")
//	for _, n := range res.Nodes { ... }
//
// [Engine.CollectFiles] is the one-shot form: it collects several files in
// argument order against one Registry and returns every descriptor
// interned along the way.
//
// # Sessions
//
// A Registry lives as long as its Engine. Descriptors are disclosed at most
// once per Engine; [Engine.Registry] exposes the full set for callers that
// need to resynchronize. The JSON-RPC server in internal/server wraps one
// Engine per initialize/shutdown span.
//
// # Persistence
//
// With [WithStore] or [WithDatabase], every collected file and every newly
// disclosed descriptor is committed to SQLite in one transaction. The
// [QueryBuilder] answers questions about persisted sessions, and the
// internal/runtime package runs Risor report scripts over them.
package typewire
