package protocol

import (
	"encoding/json"
	"fmt"
)

// Attribution links one syntax node to its inferred type. CallSignature is
// set only for call expressions whose callee could be bound.
type Attribution struct {
	Start         uint32         `json:"start"`
	End           uint32         `json:"end"`
	NodeKind      string         `json:"nodeKind"`
	TypeID        *TypeID        `json:"typeId,omitempty"`
	CallSignature *CallSignature `json:"callSignature,omitempty"`
}

// CallSignature is the overload chosen for one call site, specialized for
// the call's arguments. Fallback is set when no overload accepted the
// arguments and the first declared overload was used instead.
type CallSignature struct {
	Parameters    []Parameter `json:"parameters"`
	ReturnTypeID  *TypeID     `json:"returnTypeId"`
	TypeArguments []TypeID    `json:"typeArguments,omitempty"`
	Fallback      bool        `json:"fallback,omitempty"`
}

// Parameter is a formal parameter as encoded in function, bound method and
// call signature records. TypeID is omitted when the declared type is
// dynamic. DefaultTypeID is only set on call signatures.
type Parameter struct {
	Name          string  `json:"name"`
	TypeID        *TypeID `json:"typeId,omitempty"`
	Kind          string  `json:"kind"`
	HasDefault    bool    `json:"hasDefault"`
	DefaultTypeID *TypeID `json:"defaultTypeId,omitempty"`
}

// Ref returns a pointer to id, for optional id fields.
func Ref(id TypeID) *TypeID { return &id }

// Version is the only JSON-RPC version spoken.
const Version = "2.0"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

// Request is one inbound JSON-RPC message. A missing id decodes as nil and
// is echoed back as null.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error is a JSON-RPC error object. It doubles as a Go error so handlers
// can return it directly.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s (code %d)", e.Message, e.Code) }

// Errorf builds an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Success builds a result response.
func Success(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, Result: result, ID: id}
}

// Failure builds an error response.
func Failure(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, Error: err, ID: id}
}

// InitializeParams are the params of "initialize".
type InitializeParams struct {
	ProjectRoot string `json:"projectRoot" validate:"required"`
}

// GetTypesParams are the params of "getTypes". IncludeDisplay defaults to
// true when absent.
type GetTypesParams struct {
	File           string `json:"file" validate:"required"`
	IncludeDisplay *bool  `json:"includeDisplay,omitempty"`
}

// OKResult answers "initialize" and "shutdown".
type OKResult struct {
	OK bool `json:"ok"`
}

type GetTypesResult struct {
	Nodes []Attribution `json:"nodes"`
	Types TypeMap       `json:"types"`
}

type GetTypeRegistryResult struct {
	Types TypeMap `json:"types"`
}

// CLIResult is the one-shot output: attributions per resolved file path
// and every descriptor interned while processing them.
type CLIResult struct {
	Files map[string][]Attribution `json:"files"`
	Types TypeMap                  `json:"types"`
}
