package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new DashQL project",
		Long: `Initialize a new DashQL project with a configuration and example schema.

This creates:
  - dashql.yaml configuration file
  - schema/ with an example schema file
  - scripts/ with an example script declaring a table
  - .gitignore excluding the state directory`,
		Example: `  # Initialize in current directory
  dashql init

  # Initialize in a new directory
  dashql init my-project

  # Force overwrite existing files
  dashql init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContextWithoutCatalog(cmd).Renderer

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	configPath := filepath.Join(dir, config.FileNames[0])
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.FileNames[0])
	}

	files, err := copyTemplate(projectTemplate, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	for _, f := range files {
		r.Muted("created " + f)
	}

	r.Println()
	r.Success("DashQL project initialized!")
	r.Println()
	r.Println("Next steps:")
	r.Println("  dashql catalog                 List the tables of the project")
	r.Println("  dashql analyze --sql \"...\"     Resolve a query against the catalog")
	r.Println("  dashql repl                    Start an interactive shell")
	return nil
}
