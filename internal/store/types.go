package store

import "time"

// Session is one initialize..shutdown span of the server, or one one-shot
// collection run.
type Session struct {
	ID          int64
	UUID        string
	ProjectRoot string
	Mode        string
	StartedAt   time.Time
	EndedAt     *time.Time
}

// Session modes.
const (
	ModeServe   = "serve"
	ModeCollect = "collect"
)

type File struct {
	ID          int64
	SessionID   int64
	Path        string
	Module      string
	Hash        string
	CollectedAt time.Time
}

// Attribution is one persisted node attribution. The call signature, when
// present, is flattened into the row and its parameters live in
// call_parameters.
type Attribution struct {
	ID            int64
	FileID        int64
	Ordinal       int
	Start         uint32
	End           uint32
	NodeKind      string
	TypeID        *int64
	HasSignature  bool
	ReturnTypeID  *int64
	TypeArguments []int64
	Fallback      bool
}

type CallParam struct {
	ID            int64
	AttributionID int64
	Ordinal       int
	Name          string
	Kind          string
	TypeID        *int64
	HasDefault    bool
	DefaultTypeID *int64
}

// TypeRecord is a descriptor as disclosed by a session, kept in its wire
// JSON form.
type TypeRecord struct {
	SessionID  int64
	TypeID     int64
	Kind       string
	Display    string
	Descriptor string
	Hash       string
}
