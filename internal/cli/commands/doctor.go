package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/dashql/internal/cli/config"
	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/adapter"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/scanner"
	"github.com/leapstack-labs/dashql/pkg/schemafile"
)

// Health check states.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile   string        `json:"config_file,omitempty"`
	ProjectRoot  string        `json:"project_root"`
	HealthChecks []HealthCheck `json:"health_checks"`
	Score        int           `json:"score"`
	IssueCount   int           `json:"issue_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

func (c *HealthCheck) fail(status, format string, args ...any) {
	if status == checkError || c.Status == checkPass {
		c.Status = status
	}
	c.Details = append(c.Details, fmt.Sprintf(format, args...))
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	var connect bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a project health check",
		Long: `Check the DashQL project for configuration and loading problems.

The doctor command checks:
- Configuration (file found, defaults set)
- State database (readable, migrated)
- Schema files and scripts (parse without errors)
- Sources (adapter registered, optionally reachable with --connect)

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  dashql doctor
  dashql doctor --connect
  dashql doctor --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, connect, timeout)
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "Connect to every source and load its metadata")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout per source connection")
	return cmd
}

func runDoctor(cmd *cobra.Command, connect bool, timeout time.Duration) error {
	cmdCtx := NewCommandContextWithoutCatalog(cmd)
	cfg := cmdCtx.Cfg

	checks := []HealthCheck{
		checkConfig(cfg),
		checkState(cmdCtx),
		checkSchemaFiles(cfg),
		checkScriptFiles(cfg),
		checkSources(cmd.Context(), cmdCtx, connect, timeout),
	}
	out := &DoctorOutput{
		ConfigFile:   config.GetConfigFileUsed(),
		ProjectRoot:  cfg.ProjectRoot,
		HealthChecks: checks,
	}
	for _, c := range checks {
		out.IssueCount += len(c.Details)
	}
	out.Score = calculateHealthScore(checks)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	return nil
}

func checkConfig(cfg *config.Config) HealthCheck {
	c := HealthCheck{Name: "Configuration file", Group: "config", Status: checkPass}
	if config.GetConfigFileUsed() == "" {
		c.fail(checkWarn, "no %s found, using defaults", config.FileNames[0])
	}
	if len(cfg.SchemaFiles) == 0 && len(cfg.ScriptFiles) == 0 && len(cfg.Sources) == 0 {
		c.fail(checkWarn, "no schema_files, script_files or sources configured")
	}
	return c
}

func checkState(cmdCtx *CommandContext) HealthCheck {
	c := HealthCheck{Name: "State database", Group: "state", Status: checkPass}
	path := cmdCtx.Cfg.StatePath
	if _, err := os.Stat(path); err != nil {
		if len(cmdCtx.Cfg.Sources) > 0 {
			c.fail(checkWarn, "%s does not exist, run 'dashql sources refresh'", path)
		}
		return c
	}
	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger, false)
	if err != nil {
		c.fail(checkError, "%v", err)
		return c
	}
	defer func() { _ = store.Close() }()
	if _, err := store.MigrationVersion(); err != nil {
		c.fail(checkError, "migration version: %v", err)
	}
	return c
}

func checkSchemaFiles(cfg *config.Config) HealthCheck {
	c := HealthCheck{Name: "Schema files", Group: "files", Status: checkPass}
	paths, err := schemafile.Glob(cfg.SchemaFiles)
	if err != nil {
		c.fail(checkError, "%v", err)
		return c
	}
	for _, p := range paths {
		if _, err := schemafile.Load(p); err != nil {
			c.fail(checkError, "%s: %v", relPath(cfg.ProjectRoot, p), err)
		}
	}
	return c
}

func checkScriptFiles(cfg *config.Config) HealthCheck {
	c := HealthCheck{Name: "Script files", Group: "files", Status: checkPass}
	paths, err := schemafile.Glob(cfg.ScriptFiles)
	if err != nil {
		c.fail(checkError, "%v", err)
		return c
	}
	for _, p := range paths {
		text, err := os.ReadFile(p) //nolint:gosec // paths come from configuration
		if err != nil {
			c.fail(checkError, "%s: %v", relPath(cfg.ProjectRoot, p), err)
			continue
		}
		scanned, err := scanner.Scan(string(text), ScriptID)
		if err != nil {
			c.fail(checkError, "%s: %v", relPath(cfg.ProjectRoot, p), err)
			continue
		}
		parsed, err := parser.Parse(scanned)
		if err != nil {
			c.fail(checkError, "%s: %v", relPath(cfg.ProjectRoot, p), err)
			continue
		}
		diags := append(scanned.Diagnostics(), parsed.Diagnostics()...)
		if len(diags) > 0 {
			c.fail(checkWarn, "%s: %d syntax errors, first: %s", relPath(cfg.ProjectRoot, p), len(diags), diags[0].Message)
		}
	}
	return c
}

func checkSources(ctx context.Context, cmdCtx *CommandContext, connect bool, timeout time.Duration) HealthCheck {
	c := HealthCheck{Name: "Sources", Group: "sources", Status: checkPass}
	for _, src := range cmdCtx.Cfg.Sources {
		if !adapter.IsRegistered(src.Type) {
			c.fail(checkError, "%s: unknown adapter type %q", src.Name, src.Type)
			continue
		}
		if !connect {
			continue
		}
		tables, err := connectSource(ctx, cmdCtx, src.AdapterConfig(), timeout)
		if err != nil {
			c.fail(checkError, "%s: %v", src.Name, err)
			continue
		}
		if tables == 0 {
			c.fail(checkWarn, "%s: no tables found", src.Name)
		}
	}
	return c
}

func connectSource(ctx context.Context, cmdCtx *CommandContext, cfg adapter.Config, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	adp, err := adapter.NewAdapter(cfg, cmdCtx.Logger)
	if err != nil {
		return 0, err
	}
	if err := adp.Connect(ctx, cfg); err != nil {
		return 0, err
	}
	defer func() { _ = adp.Close() }()
	schemas, err := adp.LoadSchemas(ctx)
	if err != nil {
		return 0, err
	}
	tables := 0
	for _, s := range schemas {
		tables += len(s.Tables)
	}
	return tables, nil
}

func relPath(root, path string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}

// calculateHealthScore computes a health score from 0-100. Errors count
// double.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case checkError:
			score -= 10 * len(check.Details)
		case checkWarn:
			score -= 5 * len(check.Details)
		}
	}
	return max(score, 0)
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println()
	r.Println(styles.Header1.Render("DashQL Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println()
	r.Printf("   Project: %s\n", out.ProjectRoot)
	if out.ConfigFile != "" {
		r.Printf("   Config:  %s\n", out.ConfigFile)
	}
	r.Println()

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case checkWarn:
			icon = styles.Warning.Render("!")
		case checkError:
			icon = styles.Error.Render("✗")
		}
		r.Println("   " + icon + " " + check.Name)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println()

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# DashQL Project Health Report")
	r.Println()
	r.Printf("- **Project**: %s\n", out.ProjectRoot)
	if out.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.ConfigFile)
	}
	r.Println()

	r.Println("## Health Checks")
	r.Println()
	for _, check := range out.HealthChecks {
		r.Printf("- **[%s]** %s\n", strings.ToUpper(check.Status), check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println()

	r.Println("## Health Score")
	r.Println()
	r.Printf("**%d/100**\n", out.Score)
}
