package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/leapstack-labs/dashql/internal/cli/config"
)

// configKeyDocs describes the dashql.yaml keys. Keys without an entry are
// listed without a description.
var configKeyDocs = map[string]string{
	"state_path":               "SQLite database holding source snapshots",
	"schema_files":             "Glob patterns of YAML schema files loaded into the catalog",
	"script_files":             "Glob patterns of SQL scripts whose declared tables join the catalog",
	"catalog.default_database": "Database used to qualify unqualified table names",
	"catalog.default_schema":   "Schema used to qualify unqualified table names",
	"completion.limit":         "Maximum number of completion candidates",
	"refresh.concurrency":      "Number of sources refreshed in parallel",
	"refresh.interval":         "Period of the background refresh loop (0 disables it)",
	"refresh.keep":             "Snapshots kept per source after a refresh",
	"sources":                  "Databases whose information_schema is loaded into the catalog",
	"verbose":                  "Log at info level",
	"log_level":                "Log level: debug, info, warn or error",
	"output":                   "Output mode: auto, text, markdown or json",
}

// ConfigKey is one documented configuration key.
type ConfigKey struct {
	Key     string
	Type    string
	Default string
}

// generateConfigDocs writes the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	defaults, err := loadDefaults()
	if err != nil {
		return err
	}
	keys := configKeys(reflect.ValueOf(*defaults), "")

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "dashql.yaml reference")
	w.GeneratedMarker()
	w.Header(1, "Configuration")
	w.Paragraph("DashQL reads " + InlineCode("dashql.yaml") + " from the project root. " +
		"Values are layered: defaults, the config file, " + InlineCode("DASHQL_") + " environment variables, then flags.")

	var rows [][]string
	for _, key := range keys {
		def := key.Default
		if def != "" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode(key.Key), key.Type, def, configKeyDocs[key.Key]})
	}
	w.Table([]string{"Key", "Type", "Default", "Description"}, rows)

	w.Header(2, "Sources")
	w.Paragraph("Each entry of " + InlineCode("sources") + " names a database adapter. " +
		"Values of the form " + InlineCode("${VAR}") + " are expanded from the environment.")
	var srcRows [][]string
	for _, key := range configKeys(reflect.ValueOf(config.SourceConfig{}), "") {
		srcRows = append(srcRows, []string{InlineCode(key.Key), key.Type})
	}
	w.Table([]string{"Key", "Type"}, srcRows)

	return writePage(outDir, "configuration.md", w)
}

// loadDefaults loads the configuration of an empty project.
func loadDefaults() (*config.Config, error) {
	dir, err := os.MkdirTemp("", "dashql-gendocs")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, config.FileNames[0])
	if err := os.WriteFile(path, nil, 0600); err != nil {
		return nil, err
	}
	config.ResetConfig()
	cfg, err := config.LoadConfig(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	cfg.StatePath = config.DefaultStateFile
	return cfg, nil
}

// configKeys flattens the koanf-tagged fields of v into dotted keys.
func configKeys(v reflect.Value, prefix string) []ConfigKey {
	var out []ConfigKey
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		fv := v.Field(i)
		if f.Type.Kind() == reflect.Struct && f.Type.String() != "time.Duration" {
			out = append(out, configKeys(fv, key+".")...)
			continue
		}
		out = append(out, ConfigKey{Key: key, Type: typeName(f.Type), Default: defaultValue(fv)})
	}
	return out
}

func typeName(t reflect.Type) string {
	if t.String() == "time.Duration" {
		return "duration"
	}
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Struct {
			return "list of objects"
		}
		return "list of " + typeName(t.Elem())
	case reflect.Map:
		return "map"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint32, reflect.Uint64:
		return "integer"
	}
	return t.Kind().String()
}

func defaultValue(v reflect.Value) string {
	if v.IsZero() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return ""
	}
	return fmt.Sprint(v.Interface())
}
