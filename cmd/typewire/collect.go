package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/typewire"
	"github.com/jward/typewire/internal/config"
	"github.com/jward/typewire/internal/store"
)

type collectFlags struct {
	root   string
	serial bool
}

func newCollectCmd(c *cli) *cobra.Command {
	f := &collectFlags{}
	cmd := &cobra.Command{
		Use:   "collect <file>...",
		Short: "Collect the types of files once and print them as JSON",
		Long: "Collects every file in argument order against one type registry and prints " +
			"{files: {path: nodes}, types: {id: descriptor}} to stdout. Any file that cannot " +
			"be resolved fails the whole run.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCollect(cmd, f, args)
		},
	}
	cmd.Flags().StringVar(&f.root, "root", "", "project root (default: the first file's directory)")
	cmd.Flags().StringVar(&c.db, "db", "", "also persist the run to this SQLite database")
	cmd.Flags().BoolVar(&f.serial, "serial", false, "parse files one at a time")
	return cmd
}

func (c *cli) runCollect(cmd *cobra.Command, f *collectFlags, args []string) error {
	start := time.Now()

	// Paths are taken relative to the working directory, not the root.
	files := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := absPath(a)
		if err != nil {
			return err
		}
		files = append(files, abs)
	}
	root := f.root
	if root == "" {
		root = filepath.Dir(files[0])
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		if err := c.setupLogger(cmd, cfg.LogLevel); err != nil {
			return err
		}
	}

	opts := []typewire.Option{
		typewire.WithConfig(cfg),
		typewire.WithMode(store.ModeCollect),
		typewire.WithLogger(c.logger),
		typewire.WithParallel(!f.serial),
	}
	if c.db != "" {
		db, err := absPath(c.db)
		if err != nil {
			return err
		}
		opts = append(opts, typewire.WithDatabase(db))
	}
	engine, err := typewire.New(root, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	result, err := engine.CollectFiles(cmd.Context(), files)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	c.logger.Info("collected",
		"files", len(result.Files),
		"types", len(result.Types),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// absPath resolves p against the working directory.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", p, err)
	}
	return abs, nil
}
