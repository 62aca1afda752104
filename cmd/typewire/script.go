package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jward/typewire/internal/runtime"
	"github.com/jward/typewire/scripts"
)

type scriptFlags struct {
	session string
	list    bool
}

func newScriptCmd(c *cli) *cobra.Command {
	f := &scriptFlags{}
	cmd := &cobra.Command{
		Use:   "script <file.risor|report>",
		Short: "Run a Risor report over a persisted session",
		Long: "Runs a Risor script, or one of the built-in reports by name, against a session " +
			"in the database. Reports see files(), nodes(path), types(kind?), descriptor(id), " +
			"usages(id), sessions(), db_query(sql, args...) and log. A non-nil result of the " +
			"script's last expression is printed as JSON.",
		Args: func(cmd *cobra.Command, args []string) error {
			if f.list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.list {
				for _, name := range scripts.Reports() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			return c.runScript(cmd, f, args[0])
		},
	}
	cmd.Flags().StringVar(&c.db, "db", "", "SQLite database written by serve or collect")
	cmd.Flags().StringVar(&f.session, "session", "", "session uuid (default: the latest session)")
	cmd.Flags().BoolVar(&f.list, "list", false, "list the built-in reports")
	return cmd
}

func (c *cli) runScript(cmd *cobra.Command, f *scriptFlags, target string) error {
	if c.db == "" {
		return errors.New("--db is required")
	}
	s, err := openStore(c.db)
	if err != nil {
		return err
	}
	defer s.Close()

	sess, err := lookupSession(s, f.session)
	if err != nil {
		return err
	}

	// A file on disk wins over a built-in report of the same name.
	opts := []runtime.RuntimeOption{runtime.WithSession(sess), runtime.WithLogger(c.logger)}
	path := target
	if _, err := os.Stat(target); err != nil {
		if !slices.Contains(scripts.Reports(), target) {
			return fmt.Errorf("script %s: no such file or built-in report", target)
		}
		opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
		path = runtime.ReportScriptPath(target)
	} else if path, err = absPath(target); err != nil {
		return err
	}

	rt := runtime.NewRuntime(s, "", opts...)
	result, err := rt.EvalScript(cmd.Context(), path, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
