package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/typewire/internal/store"
)

type showFlags struct {
	session  string
	format   string
	sessions bool
}

func newShowCmd(c *cli) *cobra.Command {
	f := &showFlags{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the files and types persisted by a session",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(f.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShow(cmd, f)
		},
	}
	cmd.Flags().StringVar(&c.db, "db", "", "SQLite database written by serve or collect (required)")
	cmd.Flags().StringVar(&f.session, "session", "", "session uuid (default: the latest session)")
	cmd.Flags().StringVar(&f.format, "format", "json", "output format: json|text")
	cmd.Flags().BoolVar(&f.sessions, "sessions", false, "list every session instead")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (c *cli) runShow(cmd *cobra.Command, f *showFlags) error {
	s, err := openStore(c.db)
	if err != nil {
		return err
	}
	defer s.Close()
	w := cmd.OutOrStdout()

	if f.sessions {
		all, err := s.Sessions()
		if err != nil {
			return err
		}
		out := make([]CLISession, 0, len(all))
		for _, sess := range all {
			out = append(out, sessionToCLI(sess))
		}
		if f.format == "text" {
			formatSessionsText(w, out)
			return nil
		}
		return writeJSON(w, out)
	}

	sess, err := lookupSession(s, f.session)
	if err != nil {
		return err
	}
	show, err := buildShow(s, sess)
	if err != nil {
		return err
	}
	if f.format == "text" {
		formatShowText(w, show)
		return nil
	}
	return writeJSON(w, show)
}

func buildShow(s *store.Store, sess *store.Session) (CLIShow, error) {
	show := CLIShow{Session: sessionToCLI(sess), Files: []CLIFile{}, Types: []CLIType{}}

	files, err := s.FilesBySession(sess.ID)
	if err != nil {
		return show, err
	}
	for _, f := range files {
		attrs, err := s.AttributionsByFile(f.ID)
		if err != nil {
			return show, err
		}
		show.Files = append(show.Files, CLIFile{Path: f.Path, Module: f.Module, Hash: f.Hash, Nodes: len(attrs)})
	}

	types, err := s.TypesBySession(sess.ID)
	if err != nil {
		return show, err
	}
	for _, t := range types {
		show.Types = append(show.Types, CLIType{ID: t.TypeID, Kind: t.Kind, Display: t.Display})
	}
	return show, nil
}

// openStore opens an existing database. It never creates one.
func openStore(dbPath string) (*store.Store, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("database not found: %s (run 'typewire collect --db' or 'typewire serve --db' first)", dbPath)
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// lookupSession returns the session with the given uuid, or the latest one
// when uuid is empty.
func lookupSession(s *store.Store, uuid string) (*store.Session, error) {
	var (
		sess *store.Session
		err  error
	)
	if uuid != "" {
		sess, err = s.SessionByUUID(uuid)
	} else {
		sess, err = s.LatestSession()
	}
	if err != nil {
		return nil, err
	}
	if sess == nil {
		if uuid != "" {
			return nil, fmt.Errorf("session %s not found", uuid)
		}
		return nil, errors.New("database has no sessions")
	}
	return sess, nil
}

func sessionToCLI(sess *store.Session) CLISession {
	return CLISession{
		UUID:        sess.UUID,
		ProjectRoot: sess.ProjectRoot,
		Mode:        sess.Mode,
		StartedAt:   sess.StartedAt,
		EndedAt:     sess.EndedAt,
	}
}
