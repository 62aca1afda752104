package typewire

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// warmup parses paths concurrently so that the serial collection pass
// finds every tree in the module cache. Only parsing runs in parallel: the
// Registry and the semantic models are touched by one goroutine at a time.
func (e *Engine) warmup(ctx context.Context, paths []string) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(runtime.NumCPU(), len(paths))))
	for _, path := range paths {
		g.Go(func() error {
			if _, err := e.project.Parse(gCtx, path); err != nil {
				return fmt.Errorf("typewire: warmup: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
