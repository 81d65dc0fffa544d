// Package cli provides the command-line interface for DashQL.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/commands"
	"github.com/leapstack-labs/dashql/internal/cli/config"
	"github.com/leapstack-labs/dashql/internal/cli/output"

	// Register metadata adapters.
	_ "github.com/leapstack-labs/dashql/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/dashql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/dashql/pkg/adapters/sqlite"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dashql",
		Short: "DashQL - SQL analysis and completion engine",
		Long: `DashQL scans, parses and analyzes SQL scripts against a catalog of
tables and columns.

The catalog is assembled from schema files, scripts declaring tables and
the information_schema of configured databases. On top of it DashQL
resolves table and column references, describes cursor positions and
computes completion candidates, from the command line, an interactive
shell or a language server.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := config.ParseLogLevel(cfg.LogLevel)
			if cfg.Verbose && level > slog.LevelInfo {
				level = slog.LevelInfo
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
SQL analysis and completion engine
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./dashql.yaml)")
	flags.String("project-dir", "", "Project root directory")
	flags.String("state", "", "Path to state database")
	flags.String("default-database", "", "Database unqualified names resolve in")
	flags.String("default-schema", "", "Schema unqualified names resolve in")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		commands.NewVersionCommand(Version),
		commands.NewInitCommand(),
		commands.NewScanCommand(),
		commands.NewParseCommand(),
		commands.NewAnalyzeCommand(),
		commands.NewCursorCommand(),
		commands.NewCompleteCommand(),
		commands.NewHighlightCommand(),
		commands.NewCatalogCommand(),
		commands.NewSourcesCommand(),
		commands.NewStoreCommand(),
		commands.NewWatchCommand(),
		commands.NewREPLCommand(),
		commands.NewLSPCommand(Version),
		commands.NewDoctorCommand(),
		NewCompletionCommand(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for DashQL.

To load completions:

Bash:
  $ source <(dashql completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ dashql completion bash > /etc/bash_completion.d/dashql
  # macOS:
  $ dashql completion bash > $(brew --prefix)/etc/bash_completion.d/dashql

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ dashql completion zsh > "${fpath[1]}/_dashql"

Fish:
  $ dashql completion fish | source

  # To load completions for each session, execute once:
  $ dashql completion fish > ~/.config/fish/completions/dashql.fish

PowerShell:
  PS> dashql completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(w)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}
	return cmd
}
