package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type pruneFlags struct {
	keep int
}

func newPruneCmd(c *cli) *cobra.Command {
	f := &pruneFlags{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old sessions from a database",
		Long:  "Deletes every finished session except the most recent --keep ones. Sessions that have not ended are never deleted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrune(cmd, f)
		},
	}
	cmd.Flags().StringVar(&c.db, "db", "", "SQLite database written by serve or collect (required)")
	cmd.Flags().IntVar(&f.keep, "keep", 10, "number of recent sessions to keep")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func (c *cli) runPrune(cmd *cobra.Command, f *pruneFlags) error {
	if f.keep < 0 {
		return fmt.Errorf("invalid --keep %d: must be non-negative", f.keep)
	}
	s, err := openStore(c.db)
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := s.Sessions()
	if err != nil {
		return err
	}
	// Sessions come oldest first.
	var deleted int
	for _, sess := range all[:max(0, len(all)-f.keep)] {
		if sess.EndedAt == nil {
			continue
		}
		if err := s.DeleteSession(sess.ID); err != nil {
			return err
		}
		c.logger.Debug("deleted session", "session_id", sess.UUID)
		deleted++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d sessions\n", deleted, len(all))
	return nil
}
