package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/schemafile"
)

// CatalogOutput is the JSON output of the catalog command.
type CatalogOutput struct {
	Version uint64                     `json:"version"`
	Entries []catalog.EntryDescription `json:"entries"`
	Summary CatalogSummary             `json:"summary"`
}

// CatalogSummary counts catalog objects.
type CatalogSummary struct {
	Entries   int `json:"entries"`
	Databases int `json:"databases"`
	Schemas   int `json:"schemas"`
	Tables    int `json:"tables"`
	Columns   int `json:"columns"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand() *cobra.Command {
	var showColumns bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the catalog entries and their tables",
		Long: `List every catalog entry of the project with its rank and tables.

Entries are schema files, script files and source snapshots. A lower
rank wins when two entries declare the same table.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  dashql catalog
  dashql catalog --columns
  dashql catalog --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(cmd, showColumns)
		},
	}
	cmd.Flags().BoolVar(&showColumns, "columns", false, "List the columns of every table")
	cmd.AddCommand(newCatalogExportCommand())
	return cmd
}

func runCatalog(cmd *cobra.Command, showColumns bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	snap := cmdCtx.Catalog.CreateSnapshot()
	out := CatalogOutput{
		Version: snap.Version(),
		Entries: cmdCtx.Catalog.DescribeEntries(),
	}
	flat := snap.Flatten()
	out.Summary = CatalogSummary{
		Entries:   len(out.Entries),
		Databases: len(flat.Databases),
		Schemas:   len(flat.Schemas),
		Tables:    len(flat.Tables),
		Columns:   len(flat.Columns),
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	default:
		renderCatalog(r, out, cmdCtx.Loader.Paths(), showColumns)
		return nil
	}
}

func renderCatalog(r *output.Renderer, out CatalogOutput, files []string, showColumns bool) {
	r.Header(1, fmt.Sprintf("Catalog (%d entries, %d tables)", out.Summary.Entries, out.Summary.Tables))
	rows := make([][]any, 0, len(out.Entries))
	for _, e := range out.Entries {
		tables := 0
		for _, s := range e.Schemas {
			tables += len(s.Tables)
		}
		rows = append(rows, []any{e.ExternalID, e.Kind.String(), e.Rank, len(e.Schemas), tables})
	}
	r.Table([]string{"ID", "Kind", "Rank", "Schemas", "Tables"}, rows)

	for _, e := range out.Entries {
		for _, s := range e.Schemas {
			r.Header(2, fmt.Sprintf("%s.%s (entry %d)", s.DatabaseName, s.SchemaName, e.ExternalID))
			for _, t := range s.Tables {
				if !showColumns {
					r.KeyValue(t.TableName, fmt.Sprintf("%d columns", len(t.Columns)))
					continue
				}
				cols := make([]string, len(t.Columns))
				for i, c := range t.Columns {
					cols[i] = c.ColumnName
				}
				r.KeyValue(t.TableName, fmt.Sprintf("%v", cols))
			}
			r.Println()
		}
	}

	if len(files) > 0 {
		r.Header(2, "Files")
		for _, f := range files {
			r.Muted(f)
		}
	}
}

func newCatalogExportCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as a schema file",
		Long: `Write every schema of the catalog into a single YAML schema file.

The file can be listed in schema_files to pin the catalog without
connecting to the sources.`,
		Example: `  dashql catalog export > schema.yaml
  dashql catalog export -f schema/snapshot.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var schemas []catalog.SchemaDescriptor
			for _, e := range cmdCtx.Catalog.DescribeEntries() {
				schemas = append(schemas, e.Schemas...)
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			if err := schemafile.Encode(w, schemas); err != nil {
				return fmt.Errorf("failed to encode schemas: %w", err)
			}
			if outPath != "" {
				cmdCtx.Renderer.Success(fmt.Sprintf("Wrote %d schemas to %s", len(schemas), outPath))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "file", "f", "", "Output file (default: stdout)")
	return cmd
}
