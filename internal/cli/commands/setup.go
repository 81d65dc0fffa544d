package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/config"
	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/internal/state"
	"github.com/leapstack-labs/dashql/internal/watch"
	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/scanner"
	"github.com/leapstack-labs/dashql/pkg/schemafile"
	"github.com/leapstack-labs/dashql/pkg/script"
)

// ScriptID is the external id of the script a command operates on.
const ScriptID uint32 = 1

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Catalog  *catalog.Catalog
	Loader   *watch.Loader
	// Store is nil when no state database exists.
	Store *state.SQLiteStore
}

// NewCommandContext creates a CommandContext with a catalog populated from
// the configured schema files, script files and persisted source
// snapshots. Returns the context and a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutCatalog(cmd)
	cfg := cmdCtx.Cfg

	cmdCtx.Catalog = catalog.New(
		catalog.WithDefaults(cfg.Catalog.DefaultDatabase, cfg.Catalog.DefaultSchema),
		catalog.WithLogger(cmdCtx.Logger))
	cmdCtx.Loader = watch.NewLoader(cmdCtx.Catalog, config.DefaultFileRank, cmdCtx.Logger)

	cleanup := func() {
		if cmdCtx.Store != nil {
			_ = cmdCtx.Store.Close()
		}
	}

	if _, err := os.Stat(cfg.StatePath); err == nil {
		store, err := openStore(cfg, cmdCtx.Logger, false)
		if err != nil {
			return nil, nil, err
		}
		cmdCtx.Store = store
		if _, err := store.RestoreCatalog(cmd.Context(), cmdCtx.Catalog); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to restore catalog: %w", err)
		}
	}

	paths, err := projectFiles(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := cmdCtx.Loader.Sync(cmd.Context(), paths); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load project files: %w", err)
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutCatalog creates a CommandContext without a catalog.
// Useful for commands that don't resolve names.
func NewCommandContextWithoutCatalog(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		logger.Warn("falling back to auto output", "error", err)
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		StatePath: config.DefaultStateFile,
		Catalog: config.CatalogConfig{
			DefaultDatabase: config.DefaultDatabase,
			DefaultSchema:   config.DefaultSchema,
		},
		Completion:   config.CompletionConfig{Limit: config.DefaultCompletionLimit},
		Refresh:      config.RefreshConfig{Keep: config.DefaultSnapshotKeep},
		LogLevel:     config.DefaultLogLevel,
		OutputFormat: config.DefaultOutput,
	}
}

// projectFiles expands the schema and script file globs.
func projectFiles(cfg *config.Config) ([]string, error) {
	patterns := append(append([]string{}, cfg.SchemaFiles...), cfg.ScriptFiles...)
	paths, err := schemafile.Glob(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to expand project files: %w", err)
	}
	return paths, nil
}

// openStore opens the state database. With create unset the database must
// already exist.
func openStore(cfg *config.Config, logger *slog.Logger, create bool) (*state.SQLiteStore, error) {
	if create {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	} else if _, err := os.Stat(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("state database %s: %w", cfg.StatePath, err)
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

// errInputRequired is returned when a command gets neither a file nor --sql.
var errInputRequired = errors.New("a script file, '-' for stdin, or --sql is required")

// readScriptText returns the script text from --sql, a file or stdin.
func readScriptText(in io.Reader, args []string, sqlText string) (string, error) {
	switch {
	case sqlText != "":
		return sqlText, nil
	case len(args) == 0:
		return "", errInputRequired
	case args[0] == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read script: %w", err)
		}
		return string(data), nil
	}
}

// scriptStage is how far the pipeline runs for a command.
type scriptStage int

const (
	stageScan scriptStage = iota
	stageParse
	stageAnalyze
)

// pipeline is a script together with the stage results of one run.
type pipeline struct {
	Script   *script.Script
	Scanned  *scanner.ScannedScript
	Parsed   *parser.ParsedScript
	Analyzed *analyzer.AnalyzedScript
}

// Diagnostics returns the diagnostics of every stage that ran.
func (p *pipeline) Diagnostics() []core.Diagnostic {
	var out []core.Diagnostic
	if p.Scanned != nil {
		out = append(out, p.Scanned.Diagnostics()...)
	}
	if p.Parsed != nil {
		out = append(out, p.Parsed.Diagnostics()...)
	}
	if p.Analyzed != nil {
		out = append(out, p.Analyzed.Diagnostics()...)
	}
	return out
}

// runScript creates a script over the command catalog and runs the
// pipeline up to stage. The caller releases the script.
func (c *CommandContext) runScript(text string, stage scriptStage) (*pipeline, error) {
	s := script.New(c.Catalog, ScriptID, script.WithText(text), script.WithLogger(c.Logger))
	p := &pipeline{Script: s}
	fail := func(err error) (*pipeline, error) {
		s.Release()
		return nil, err
	}

	scanned, err := s.Scan()
	if err != nil {
		return fail(err)
	}
	if p.Scanned, err = scanned.Read(); err != nil {
		return fail(err)
	}
	if stage < stageParse {
		return p, nil
	}

	parsed, err := s.Parse()
	if err != nil {
		return fail(err)
	}
	if p.Parsed, err = parsed.Read(); err != nil {
		return fail(err)
	}
	if stage < stageAnalyze {
		return p, nil
	}

	analyzed, err := s.Analyze()
	if err != nil {
		return fail(err)
	}
	if p.Analyzed, err = analyzed.Read(); err != nil {
		return fail(err)
	}
	return p, nil
}

// scriptFlags holds the input flags shared by script commands.
type scriptFlags struct {
	SQL string
}

func (f *scriptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.SQL, "sql", "", "Script text instead of a file")
}
