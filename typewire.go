package typewire

import (
	"github.com/jward/typewire/internal/protocol"
	"github.com/jward/typewire/internal/semantic"
)

// Wire types, re-exported for library callers.
type (
	TypeID        = protocol.TypeID
	Descriptor    = protocol.Descriptor
	TypeMap       = protocol.TypeMap
	Attribution   = protocol.Attribution
	CallSignature = protocol.CallSignature
	Parameter     = protocol.Parameter
	CLIResult     = protocol.CLIResult
)

// File resolution errors, matched with errors.Is.
var (
	ErrFileNotFound = semantic.ErrFileNotFound
	ErrNotPython    = semantic.ErrNotPython
	ErrExcluded     = semantic.ErrExcluded
)
