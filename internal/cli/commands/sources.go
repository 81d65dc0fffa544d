package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/internal/refresh"
	"github.com/leapstack-labs/dashql/internal/state"
)

// SourceInfo describes a configured source.
type SourceInfo struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Rank       uint32     `json:"rank"`
	ExternalID uint32     `json:"external_id,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	Snapshots  int        `json:"snapshots"`
}

// RefreshOutput is the JSON output of sources refresh.
type RefreshOutput struct {
	Results []RefreshResult `json:"results"`
	Pruned  int64           `json:"pruned"`
}

// RefreshResult is the outcome of refreshing one source.
type RefreshResult struct {
	Source     string `json:"source"`
	ExternalID uint32 `json:"external_id"`
	Tables     int    `json:"tables"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewSourcesCommand creates the sources command.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List and refresh metadata sources",
		Long: `List the configured metadata sources with their persisted state.

Sources are databases whose information_schema is loaded into the catalog.
Use 'dashql sources refresh' to fetch their metadata.`,
		Example: `  dashql sources
  dashql sources refresh
  dashql sources refresh --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourcesList(cmd)
		},
	}
	cmd.AddCommand(newSourcesRefreshCommand())
	return cmd
}

func runSourcesList(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutCatalog(cmd)
	cfg := cmdCtx.Cfg

	stored := make(map[string]state.Source)
	snapshots := make(map[string]int)
	if store, err := openStore(cfg, cmdCtx.Logger, false); err == nil {
		defer func() { _ = store.Close() }()
		list, err := store.ListSources(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range list {
			stored[s.Name] = s
			snaps, err := store.ListSnapshots(cmd.Context(), s.Name)
			if err != nil {
				return err
			}
			snapshots[s.Name] = len(snaps)
		}
	}

	infos := make([]SourceInfo, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		info := SourceInfo{Name: src.Name, Type: src.Type, Rank: src.Rank, Snapshots: snapshots[src.Name]}
		if s, ok := stored[src.Name]; ok {
			info.ExternalID = s.ExternalID
			updated := s.UpdatedAt
			info.UpdatedAt = &updated
		}
		infos = append(infos, info)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}
	r.Header(1, fmt.Sprintf("Sources (%d)", len(infos)))
	rows := make([][]any, 0, len(infos))
	for _, s := range infos {
		updated := "never"
		if s.UpdatedAt != nil {
			updated = s.UpdatedAt.Format(time.RFC3339)
		}
		rows = append(rows, []any{s.Name, s.Type, s.Rank, updated, s.Snapshots})
	}
	r.Table([]string{"Name", "Type", "Rank", "Updated", "Snapshots"}, rows)
	return nil
}

func newSourcesRefreshCommand() *cobra.Command {
	var watchMode bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the metadata of every source",
		Long: `Connect to every configured source, load its information_schema and
store a snapshot in the state database.

Sources are fetched concurrently up to refresh.concurrency. A failing
source keeps its previous snapshot. Old snapshots beyond refresh.keep are
pruned. With --watch the refresh repeats every refresh.interval.`,
		Example: `  dashql sources refresh
  dashql sources refresh --concurrency 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourcesRefresh(cmd, watchMode)
		},
	}
	cmd.Flags().BoolVar(&watchMode, "watch", false, "Repeat every refresh.interval until interrupted")
	return cmd
}

func runSourcesRefresh(cmd *cobra.Command, watchMode bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if len(cfg.Sources) == 0 {
		r.Warning("no sources configured")
		return nil
	}

	store := cmdCtx.Store
	if store == nil {
		if store, err = openStore(cfg, cmdCtx.Logger, true); err != nil {
			return err
		}
		cmdCtx.Store = store
	}

	sched := refresh.New(cmdCtx.Catalog, cfg.RefreshSources(),
		refresh.WithStore(store),
		refresh.WithConcurrency(cfg.Refresh.Concurrency),
		refresh.WithLogger(cmdCtx.Logger))

	report := func(results []refresh.Result) {
		out := RefreshOutput{Results: make([]RefreshResult, 0, len(results))}
		for _, res := range results {
			rr := RefreshResult{
				Source:     res.Source,
				ExternalID: res.ExternalID,
				Tables:     res.Tables,
				DurationMS: res.Duration.Milliseconds(),
			}
			if res.Err != nil {
				rr.Error = res.Err.Error()
			} else if cfg.Refresh.Keep > 0 {
				n, err := store.PruneSnapshots(cmd.Context(), res.Source, cfg.Refresh.Keep)
				if err != nil {
					cmdCtx.Logger.Warn("failed to prune snapshots", "source", res.Source, "error", err)
				}
				out.Pruned += n
			}
			out.Results = append(out.Results, rr)
		}
		renderRefresh(r, out)
	}

	interval := time.Duration(0)
	if watchMode {
		interval = cfg.Refresh.Interval
		if interval <= 0 {
			return fmt.Errorf("--watch requires refresh.interval")
		}
	}
	return sched.Run(cmd.Context(), interval, report)
}

func renderRefresh(r *output.Renderer, out RefreshOutput) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(out)
		return
	}
	rows := make([][]any, 0, len(out.Results))
	failed := 0
	for _, res := range out.Results {
		status := "ok"
		if res.Error != "" {
			status = res.Error
			failed++
		}
		rows = append(rows, []any{res.Source, res.Tables, fmt.Sprintf("%dms", res.DurationMS), status})
	}
	r.Table([]string{"Source", "Tables", "Duration", "Status"}, rows)
	if failed > 0 {
		r.Warning(fmt.Sprintf("%d of %d sources failed", failed, len(out.Results)))
		return
	}
	r.Success(fmt.Sprintf("Refreshed %d sources (pruned %d snapshots)", len(out.Results), out.Pruned))
}
