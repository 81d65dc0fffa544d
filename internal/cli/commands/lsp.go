package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/lsp"
	"github.com/leapstack-labs/dashql/internal/refresh"
	"github.com/leapstack-labs/dashql/internal/watch"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for IDE integration.

The server communicates over stdin/stdout using JSON-RPC. Open documents
are analyzed against the project catalog and provide diagnostics,
completion, hover, definitions and highlights.

Schema and script files of the project are watched and reloaded while the
server runs. Sources are refreshed every refresh.interval when set.`,
		Example: `  # Start LSP server (usually called by an IDE)
  dashql lsp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd, version, !noWatch)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload project files on change")
	return cmd
}

func runLSP(cmd *cobra.Command, version string, watchFiles bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	server := lsp.NewServer(os.Stdin, os.Stdout,
		lsp.WithLogger(logger),
		lsp.WithCatalog(cmdCtx.Catalog),
		lsp.WithVersion(version),
		lsp.WithCompletionLimit(cfg.Completion.Limit))

	if watchFiles {
		roots := watchRoots(cfg.ProjectRoot)
		w := watch.New(roots, watch.WithLogger(logger))
		go func() {
			if err := w.Run(ctx, func(ctx context.Context, _ []string) error {
				paths, err := projectFiles(cfg)
				if err != nil {
					return err
				}
				err = cmdCtx.Loader.Sync(ctx, paths)
				server.CatalogChanged()
				return err
			}); err != nil {
				logger.Warn("file watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Refresh.Interval > 0 && len(cfg.Sources) > 0 {
		opts := []refresh.Option{
			refresh.WithLogger(logger),
			refresh.WithConcurrency(cfg.Refresh.Concurrency),
		}
		if cmdCtx.Store != nil {
			opts = append(opts, refresh.WithStore(cmdCtx.Store))
		}
		sched := refresh.New(cmdCtx.Catalog, cfg.RefreshSources(), opts...)
		go func() {
			_ = sched.Run(ctx, cfg.Refresh.Interval, func(results []refresh.Result) {
				for _, r := range results {
					if r.Err != nil {
						logger.Warn("source refresh failed", "source", r.Source, "error", r.Err)
					}
				}
				server.CatalogChanged()
			})
		}()
	}

	return server.Run()
}

// watchRoots returns the directories watched for project files.
func watchRoots(projectRoot string) []string {
	if projectRoot == "" {
		return []string{"."}
	}
	return []string{projectRoot}
}
