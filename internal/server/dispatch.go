package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jward/typewire"
	"github.com/jward/typewire/internal/config"
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/store"
)

type handler func(s *Server, ctx context.Context, req *protocol.Request) (any, *protocol.Error)

// transitions lists the methods each state accepts. Any other method is
// rejected: as "not initialized" before initialize, as unknown after.
var transitions = map[State]map[string]handler{
	Uninitialized: {
		"initialize": (*Server).initialize,
		"shutdown":   (*Server).shutdown,
	},
	Initialized: {
		"initialize":      (*Server).reinitialize,
		"getTypes":        (*Server).getTypes,
		"getTypeRegistry": (*Server).getTypeRegistry,
		"shutdown":        (*Server).shutdown,
	},
}

var validate = validator.New()

func (s *Server) dispatch(ctx context.Context, req *protocol.Request) (any, *protocol.Error) {
	h, ok := transitions[s.state][req.Method]
	if ok {
		return h(s, ctx, req)
	}
	if s.state == Uninitialized {
		return nil, domainError(ErrNotInitialized)
	}
	return nil, protocol.Errorf(protocol.CodeMethodNotFound, "Method not found: %s", req.Method)
}

// decodeParams decodes and validates params into v. Absent params decode
// as an empty object so that validation reports the missing fields.
func decodeParams(raw json.RawMessage, v any) *protocol.Error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return protocol.Errorf(protocol.CodeInvalidParams, "Invalid params: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		return protocol.Errorf(protocol.CodeInvalidParams, "Invalid params: %v", err)
	}
	return nil
}

func domainError(err error) *protocol.Error {
	return &protocol.Error{Code: protocol.CodeServerError, Message: err.Error()}
}

func (s *Server) initialize(ctx context.Context, req *protocol.Request) (any, *protocol.Error) {
	var p protocol.InitializeParams
	if perr := decodeParams(req.Params, &p); perr != nil {
		return nil, perr
	}

	cfg, err := config.Load(p.ProjectRoot)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeServerError, "Failed to initialize: %v", err)
	}
	id := uuid.NewString()
	opts := []typewire.Option{
		typewire.WithConfig(cfg),
		typewire.WithSessionID(id),
		typewire.WithMode(store.ModeServe),
		typewire.WithLogger(s.logger),
	}
	if s.dbPath != "" {
		opts = append(opts, typewire.WithDatabase(s.dbPath))
	}
	e, err := s.open(ctx, p.ProjectRoot, opts...)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeServerError, "Failed to initialize: %v", err)
	}

	s.engine = e
	s.cfg = cfg
	s.state = Initialized
	s.log = s.logger.With("session_id", id)
	s.log.Info("session initialized", "root", e.Root(), "config", cfg.Path, "persist", e.Store() != nil)
	return protocol.OKResult{OK: true}, nil
}

func (s *Server) reinitialize(context.Context, *protocol.Request) (any, *protocol.Error) {
	return nil, domainError(ErrAlreadyInitialized)
}

func (s *Server) getTypes(ctx context.Context, req *protocol.Request) (any, *protocol.Error) {
	var p protocol.GetTypesParams
	if perr := decodeParams(req.Params, &p); perr != nil {
		return nil, perr
	}
	includeDisplay := s.cfg.DisplayDefault()
	if p.IncludeDisplay != nil {
		includeDisplay = *p.IncludeDisplay
	}

	fr, err := s.engine.CollectFile(ctx, p.File)
	if err != nil {
		if isResolutionError(err) {
			return nil, protocol.Errorf(protocol.CodeServerError, "Failed to resolve file '%s': %v", p.File, err)
		}
		return nil, protocol.Errorf(protocol.CodeServerError, "Failed to collect file '%s': %v", p.File, err)
	}

	types := fr.NewTypes
	if !includeDisplay {
		types = types.WithoutDisplay()
	}
	s.log.Info("types collected", "file", fr.Path, "nodes", len(fr.Nodes), "new_types", len(types))
	return protocol.GetTypesResult{Nodes: fr.Nodes, Types: types}, nil
}

func isResolutionError(err error) bool {
	return errors.Is(err, typewire.ErrFileNotFound) ||
		errors.Is(err, typewire.ErrNotPython) ||
		errors.Is(err, typewire.ErrExcluded)
}

func (s *Server) getTypeRegistry(context.Context, *protocol.Request) (any, *protocol.Error) {
	return protocol.GetTypeRegistryResult{Types: s.engine.Registry().All()}, nil
}

func (s *Server) shutdown(context.Context, *protocol.Request) (any, *protocol.Error) {
	s.closeSession()
	s.state = Terminated
	return protocol.OKResult{OK: true}, nil
}

// closeSession releases the open session, if any.
func (s *Server) closeSession() {
	if s.engine == nil {
		return
	}
	if err := s.engine.Close(); err != nil {
		s.log.Warn("closing session", "error", err)
	}
	s.log.Info("session closed", "types", s.engine.Registry().Len())
	s.engine = nil
	s.log = s.logger
}
