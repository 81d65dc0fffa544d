package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/internal/state"
)

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Tables    int       `json:"tables"`
}

// NewStoreCommand creates the store command.
func NewStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the state database",
		Long: `Inspect and maintain the state database holding source snapshots.

The state database lives at state_path (default .dashql/state.db).`,
	}
	cmd.AddCommand(newStoreSnapshotsCommand(), newStorePruneCommand(), newStoreVersionCommand())
	return cmd
}

func newStoreSnapshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots [source]",
		Short: "List stored snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				names, err := storeSourceNames(cmd, store, args)
				if err != nil {
					return err
				}
				infos := make([]SnapshotInfo, 0)
				for _, name := range names {
					snaps, err := store.ListSnapshots(cmd.Context(), name)
					if err != nil {
						return err
					}
					for _, s := range snaps {
						infos = append(infos, SnapshotInfo{ID: s.ID, Source: s.Source, CreatedAt: s.CreatedAt, Tables: s.TableCount})
					}
				}

				r := cmdCtx.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(infos)
				}
				rows := make([][]any, 0, len(infos))
				for _, s := range infos {
					rows = append(rows, []any{s.Source, s.ID, s.CreatedAt.Format(time.RFC3339), s.Tables})
				}
				r.Table([]string{"Source", "ID", "Created", "Tables"}, rows)
				return nil
			})
		},
	}
}

func newStorePruneCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune [source]",
		Short: "Delete old snapshots",
		Long:  `Keep the newest --keep snapshots of every source (default refresh.keep) and delete the rest.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				if keep <= 0 {
					keep = cmdCtx.Cfg.Refresh.Keep
				}
				if keep <= 0 {
					return fmt.Errorf("--keep must be positive")
				}
				names, err := storeSourceNames(cmd, store, args)
				if err != nil {
					return err
				}
				var total int64
				for _, name := range names {
					n, err := store.PruneSnapshots(cmd.Context(), name, keep)
					if err != nil {
						return err
					}
					total += n
				}
				cmdCtx.Renderer.Success(fmt.Sprintf("Deleted %d snapshots", total))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Snapshots to keep per source (default: refresh.keep)")
	return cmd
}

func newStoreVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the schema migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				v, err := store.MigrationVersion()
				if err != nil {
					return err
				}
				r := cmdCtx.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(map[string]any{"path": store.Path(), "version": v})
				}
				r.KeyValue("Path", store.Path())
				r.KeyValue("Version", v)
				return nil
			})
		},
	}
}

// withStore runs fn with the opened state database.
func withStore(cmd *cobra.Command, fn func(*CommandContext, *state.SQLiteStore) error) error {
	cmdCtx := NewCommandContextWithoutCatalog(cmd)
	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cmdCtx, store)
}

// storeSourceNames returns the named source or every stored source.
func storeSourceNames(cmd *cobra.Command, store *state.SQLiteStore, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	sources, err := store.ListSources(cmd.Context())
	if err != nil {
		return nil, err
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	return names, nil
}
