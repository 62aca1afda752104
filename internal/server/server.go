// Package server implements the line-delimited JSON-RPC session protocol.
//
// A session is a three-state machine. Requests are read one per line from
// the input and answered one per line on the output, strictly in order.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jward/typewire"
	"github.com/jward/typewire/internal/config"
	"github.com/jward/typewire/internal/protocol"
)

// State is a session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initialized
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Domain errors reported with protocol.CodeServerError.
var (
	ErrNotInitialized     = errors.New("not initialized: call 'initialize' first")
	ErrAlreadyInitialized = errors.New("already initialized: send 'shutdown' first to reinitialize")
)

// Opener builds the Engine of a new session.
type Opener func(ctx context.Context, projectRoot string, opts ...typewire.Option) (*typewire.Engine, error)

func defaultOpener(_ context.Context, projectRoot string, opts ...typewire.Option) (*typewire.Engine, error) {
	return typewire.New(projectRoot, opts...)
}

// Server owns at most one session at a time.
type Server struct {
	logger *slog.Logger
	open   Opener
	dbPath string

	state  State
	engine *typewire.Engine
	cfg    *config.Config
	// log carries the session id while a session is open.
	log *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDatabase persists every session to the SQLite database at path,
// overriding the project configuration.
func WithDatabase(path string) Option {
	return func(s *Server) { s.dbPath = path }
}

// WithOpener replaces how sessions build their Engine.
func WithOpener(o Opener) Option {
	return func(s *Server) { s.open = o }
}

// New returns a Server in the Uninitialized state.
func New(opts ...Option) *Server {
	s := &Server{
		logger: slog.New(slog.DiscardHandler),
		open:   defaultOpener,
		state:  Uninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.logger
	return s
}

// State returns the current lifecycle state.
func (s *Server) State() State { return s.state }

// Serve reads requests from r and writes responses to w until shutdown,
// end of input, or cancellation of ctx. Reaching the end of input closes
// an open session as shutdown would.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	in := bufio.NewReader(r)
	out := bufio.NewWriter(w)
	defer s.closeSession()

	for s.state != Terminated {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := in.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			resp := s.Handle(ctx, line)
			if err := writeResponse(out, resp); err != nil {
				return fmt.Errorf("server: writing response: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			s.log.Debug("input closed")
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("server: reading request: %w", readErr)
		}
	}
	return nil
}

func writeResponse(out *bufio.Writer, resp *protocol.Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		// A result that cannot be encoded is reported in its place.
		b, err = json.Marshal(protocol.Failure(resp.ID, protocol.Errorf(protocol.CodeServerError, "encoding response: %v", err)))
		if err != nil {
			return err
		}
	}
	if _, err := out.Write(b); err != nil {
		return err
	}
	if err := out.WriteByte('\n'); err != nil {
		return err
	}
	return out.Flush()
}

// Handle answers one request line.
func (s *Server) Handle(ctx context.Context, line []byte) *protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn("malformed request", "error", err)
		return protocol.Failure(nil, protocol.Errorf(protocol.CodeParseError, "Parse error: %v", err))
	}

	start := time.Now()
	result, rpcErr := s.dispatch(ctx, &req)
	if rpcErr != nil {
		s.log.Warn("request failed", "method", req.Method, "code", rpcErr.Code, "error", rpcErr.Message)
		return protocol.Failure(req.ID, rpcErr)
	}
	s.log.Debug("request handled", "method", req.Method, "state", s.state, "duration", time.Since(start))
	return protocol.Success(req.ID, result)
}
