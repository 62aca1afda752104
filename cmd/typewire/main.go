package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/typewire/internal/config"
	"github.com/jward/typewire/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// cli holds the flag values shared by every subcommand. Each root command
// gets its own so that tests can run commands side by side.
type cli struct {
	logLevel  string
	logFormat string
	db        string

	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "typewire",
		Short: "Export the inferred types of Python source files",
		Long: "Typewire attributes a type to every expression and declaration of Python files " +
			"and exports them as deduplicated, id-referenced descriptors, over a JSON-RPC " +
			"session on stdin/stdout or as a one-shot JSON document.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setupLogger(cmd, c.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug|info|warn|error (default: $"+config.EnvLogLevel+" or info)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format: text|json (default: text on a terminal, json otherwise)")

	root.AddCommand(newServeCmd(c))
	root.AddCommand(newCollectCmd(c))
	root.AddCommand(newShowCmd(c))
	root.AddCommand(newScriptCmd(c))
	root.AddCommand(newPruneCmd(c))
	return root
}

// setupLogger builds the stderr logger. An empty level falls back to the
// environment.
func (c *cli) setupLogger(cmd *cobra.Command, level string) error {
	if level == "" {
		level = os.Getenv(config.EnvLogLevel)
	}
	l, err := logging.New(logging.Config{
		Level:  level,
		Format: logging.Format(c.logFormat),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	c.logger = l
	return nil
}
