package main

import "time"

// CLISession is a JSON-friendly session record.
type CLISession struct {
	UUID        string     `json:"uuid"`
	ProjectRoot string     `json:"project_root"`
	Mode        string     `json:"mode"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// CLIFile is a collected file with its node count.
type CLIFile struct {
	Path   string `json:"path"`
	Module string `json:"module"`
	Hash   string `json:"hash"`
	Nodes  int    `json:"nodes"`
}

// CLIType is a disclosed type without its descriptor body.
type CLIType struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Display string `json:"display,omitempty"`
}

// CLIShow is the output of the show command.
type CLIShow struct {
	Session CLISession `json:"session"`
	Files   []CLIFile  `json:"files"`
	Types   []CLIType  `json:"types"`
}
