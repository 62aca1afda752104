package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/typewire/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a JSON-RPC session on stdin/stdout",
		Long: "Reads one JSON-RPC request per line from stdin and writes one response per line " +
			"to stdout. Methods: initialize, getTypes, getTypeRegistry, shutdown. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd)
		},
	}
	cmd.Flags().StringVar(&c.db, "db", "", "persist every session to this SQLite database")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{server.WithLogger(c.logger)}
	if c.db != "" {
		db, err := absPath(c.db)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithDatabase(db))
	}
	srv := server.New(opts...)

	c.logger.Debug("serving on stdio")
	err := srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		c.logger.Info("interrupted")
		return nil
	}
	return err
}
