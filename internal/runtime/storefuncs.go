package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/typewire/internal/store"
)

// reporter binds the report host functions to one persisted session.
// Risor scripts cannot walk Go structs, so every function returns plain
// lists and maps.
type reporter struct {
	store   *store.Store
	session *store.Session
	sources *sourceStore
}

func (r *reporter) sessionObject() object.Object {
	return sessionToMap(r.session)
}

// files() → [{id, path, module, hash, collected_at}]
func (r *reporter) makeFilesFn() *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := r.store.FilesBySession(r.session.ID)
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, fileToMap(f))
		}
		return object.NewList(results)
	})
}

// nodes(path) → [{kind, start, end, type_id?, signature?}] in collection order.
func (r *reporter) makeNodesFn() *object.Builtin {
	return object.NewBuiltin("nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("nodes", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("nodes: %v", err)
		}
		f, err := r.store.FileByPath(r.session.ID, path)
		if err != nil {
			return object.Errorf("nodes: %v", err)
		}
		if f == nil {
			return object.Errorf("nodes: %s was not collected in this session", path)
		}
		attrs, err := r.store.AttributionsByFile(f.ID)
		if err != nil {
			return object.Errorf("nodes: %v", err)
		}
		results := make([]object.Object, 0, len(attrs))
		for _, a := range attrs {
			m := attributionFields(a)
			if a.HasSignature {
				sig, err := r.signature(a)
				if err != nil {
					return object.Errorf("nodes: %v", err)
				}
				m["signature"] = sig
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

func (r *reporter) signature(a *store.Attribution) (object.Object, error) {
	params, err := r.store.CallParams(a.ID)
	if err != nil {
		return nil, err
	}
	ps := make([]object.Object, 0, len(params))
	for _, p := range params {
		m := map[string]object.Object{
			"name":        object.NewString(p.Name),
			"kind":        object.NewString(p.Kind),
			"has_default": object.NewBool(p.HasDefault),
		}
		setID(m, "type_id", p.TypeID)
		setID(m, "default_type_id", p.DefaultTypeID)
		ps = append(ps, object.NewMap(m))
	}
	targs := make([]object.Object, 0, len(a.TypeArguments))
	for _, id := range a.TypeArguments {
		targs = append(targs, object.NewInt(id))
	}
	m := map[string]object.Object{
		"parameters":     object.NewList(ps),
		"type_arguments": object.NewList(targs),
		"fallback":       object.NewBool(a.Fallback),
	}
	setID(m, "return_type_id", a.ReturnTypeID)
	return object.NewMap(m), nil
}

// types(kind="") → [{id, kind, display}] in id order.
func (r *reporter) makeTypesFn() *object.Builtin {
	return object.NewBuiltin("types", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("types: expected at most 1 argument, got %d", len(args))
		}
		var (
			recs []*store.TypeRecord
			err  error
		)
		if len(args) == 1 {
			kind, kerr := toString(args[0])
			if kerr != nil {
				return object.Errorf("types: %v", kerr)
			}
			recs, err = r.store.TypesByKind(r.session.ID, kind)
		} else {
			recs, err = r.store.TypesBySession(r.session.ID)
		}
		if err != nil {
			return object.Errorf("types: %v", err)
		}
		results := make([]object.Object, 0, len(recs))
		for _, tr := range recs {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":      object.NewInt(tr.TypeID),
				"kind":    object.NewString(tr.Kind),
				"display": object.NewString(tr.Display),
			}))
		}
		return object.NewList(results)
	})
}

// descriptor(id) → the full wire descriptor as a map, or nil.
func (r *reporter) makeDescriptorFn() *object.Builtin {
	return object.NewBuiltin("descriptor", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("descriptor", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("descriptor: %v", err)
		}
		tr, err := r.store.TypeByID(r.session.ID, id)
		if err != nil {
			return object.Errorf("descriptor: %v", err)
		}
		if tr == nil {
			return object.Nil
		}
		var v any
		if err := json.Unmarshal([]byte(tr.Descriptor), &v); err != nil {
			return object.Errorf("descriptor: decoding type %d: %v", id, err)
		}
		return jsonToObject(v)
	})
}

// usages(id) → [{path, kind, start, end}] for every node attributed with id.
func (r *reporter) makeUsagesFn() *object.Builtin {
	return object.NewBuiltin("usages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("usages", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("usages: %v", err)
		}
		us, err := r.store.UsagesOfType(r.session.ID, id)
		if err != nil {
			return object.Errorf("usages: %v", err)
		}
		results := make([]object.Object, 0, len(us))
		for _, u := range us {
			m := attributionFields(&u.Attribution)
			m["path"] = object.NewString(u.Path)
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// sessions() → every recorded session, oldest first.
func makeSessionsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("sessions", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("sessions", 0, len(args))
		}
		sessions, err := s.Sessions()
		if err != nil {
			return object.Errorf("sessions: %v", err)
		}
		results := make([]object.Object, 0, len(sessions))
		for _, sess := range sessions {
			results = append(results, sessionToMap(sess))
		}
		return object.NewList(results)
	})
}

// makeDBQueryFn creates a db_query bridge that executes arbitrary read-only SQL.
// Returns a list of maps (column name → value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// --- Conversion helpers ---

func sessionToMap(sess *store.Session) object.Object {
	m := map[string]object.Object{
		"id":           object.NewInt(sess.ID),
		"uuid":         object.NewString(sess.UUID),
		"project_root": object.NewString(sess.ProjectRoot),
		"mode":         object.NewString(sess.Mode),
		"started_at":   object.NewString(sess.StartedAt.Format(time.RFC3339)),
	}
	if sess.EndedAt != nil {
		m["ended_at"] = object.NewString(sess.EndedAt.Format(time.RFC3339))
	}
	return object.NewMap(m)
}

func fileToMap(f *store.File) object.Object {
	return object.NewMap(map[string]object.Object{
		"id":           object.NewInt(f.ID),
		"path":         object.NewString(f.Path),
		"module":       object.NewString(f.Module),
		"hash":         object.NewString(f.Hash),
		"collected_at": object.NewString(f.CollectedAt.Format(time.RFC3339)),
	})
}

func attributionFields(a *store.Attribution) map[string]object.Object {
	m := map[string]object.Object{
		"kind":  object.NewString(a.NodeKind),
		"start": object.NewInt(int64(a.Start)),
		"end":   object.NewInt(int64(a.End)),
	}
	setID(m, "type_id", a.TypeID)
	return m
}

// setID stores id under key, leaving the key absent when id is nil.
func setID(m map[string]object.Object, key string, id *int64) {
	if id != nil {
		m[key] = object.NewInt(*id)
	}
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// jsonToObject converts a decoded JSON value to a Risor object. Whole
// numbers become ints so that type ids compare equal to those from
// types() and nodes().
func jsonToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case bool:
		return object.NewBool(val)
	case float64:
		if val == float64(int64(val)) {
			return object.NewInt(int64(val))
		}
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case []any:
		items := make([]object.Object, 0, len(val))
		for _, item := range val {
			items = append(items, jsonToObject(item))
		}
		return object.NewList(items)
	case map[string]any:
		m := make(map[string]object.Object, len(val))
		for k, item := range val {
			m[k] = jsonToObject(item)
		}
		return object.NewMap(m)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	case time.Time:
		return object.NewString(val.Format(time.RFC3339))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}
