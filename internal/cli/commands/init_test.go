package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/cli/config"
	"github.com/leapstack-labs/dashql/pkg/schemafile"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		force     bool
		wantErr   bool
		wantFiles []string
	}{
		{
			name: "init empty directory",
			wantFiles: []string{
				"dashql.yaml",
				"schema/shop.yaml",
				"scripts/reporting.sql",
				".gitignore",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "dashql.yaml"), []byte("existing"), 0600))
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "dashql.yaml"), []byte("existing"), 0600))
			},
			force:     true,
			wantFiles: []string{"dashql.yaml", "schema/shop.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			args := []string{dir}
			if tt.force {
				args = append(args, "--force")
			}
			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(dir, f))
				assert.NoError(t, err, "expected %q to exist", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestInitCreatesLoadableProject(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(config.ResetConfig)

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	cfg, err := config.LoadConfig(filepath.Join(dir, "dashql.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.Catalog.DefaultDatabase)
	assert.Equal(t, filepath.Join(dir, ".dashql", "state.db"), cfg.StatePath)

	paths, err := schemafile.Glob(cfg.SchemaFiles)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	f, err := schemafile.Load(paths[0])
	require.NoError(t, err)
	require.Len(t, f.Schemas, 1)
	assert.Len(t, f.Schemas[0].Tables, 3)
}
