package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Reload the catalog when schema files change",
		Long: `Watch schema files and schema scripts and reload their catalog entries
on every change.

Every batch of changes prints the reloaded files and the resulting table
count. Directories default to the project root. Stop with Ctrl+C.`,
		Example: `  dashql watch
  dashql watch schema/ scripts/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	roots := args
	if len(roots) == 0 {
		roots = watchRoots(cmdCtx.Cfg.ProjectRoot)
	}

	r := cmdCtx.Renderer
	r.Printf("Watching %v (%d tables loaded)\n", roots, len(cmdCtx.Catalog.CreateSnapshot().Tables()))

	w := watch.New(roots, watch.WithLogger(cmdCtx.Logger))
	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		paths, err := projectFiles(cmdCtx.Cfg)
		if err != nil {
			return err
		}
		if err := cmdCtx.Loader.Sync(ctx, paths); err != nil {
			r.Warning(err.Error())
			return err
		}
		for _, p := range changed {
			r.Muted(p)
		}
		snap := cmdCtx.Catalog.CreateSnapshot()
		r.Success(fmt.Sprintf("Reloaded %d files (catalog v%d, %d tables)",
			len(changed), snap.Version(), len(snap.Tables())))
		return nil
	})
}
