package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "cha", cfg.Algorithm)
	assert.Equal(t, "program-entry", cfg.EntryPoints)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Zero(t, cfg.Output.MaxEdges)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(*testing.T, *Config)
	}{
		{
			name: "yaml",
			file: "cfg.yaml",
			content: `
algorithm: rta
entrypoints: public-concrete
namespaces:
  - App.Core
workers: 4
output:
  format: dot
  max_edges: 500
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rta", cfg.Algorithm)
				assert.Equal(t, "public-concrete", cfg.EntryPoints)
				assert.Equal(t, []string{"App.Core"}, cfg.Namespaces)
				assert.Equal(t, 4, cfg.Workers)
				assert.Equal(t, "dot", cfg.Output.Format)
				assert.Equal(t, 500, cfg.Output.MaxEdges)
			},
		},
		{
			name:    "toml",
			file:    "cfg.toml",
			content: "algorithm = \"rta\"\nworkers = 2\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rta", cfg.Algorithm)
				assert.Equal(t, 2, cfg.Workers)
			},
		},
		{
			name:    "json",
			file:    "cfg.json",
			content: `{"output": {"format": "json"}}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "json", cfg.Output.Format)
			},
		},
		{
			name:    "partial file keeps defaults",
			file:    "cfg.yaml",
			content: "workers: 8\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.Workers)
				assert.Equal(t, "cha", cfg.Algorithm)
				assert.Equal(t, "text", cfg.Output.Format)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			cfg, err := Load(path)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load("config.ini")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "gone.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("algorithm: [unclosed"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestDiscover(t *testing.T) {
	t.Run("nothing to find", func(t *testing.T) {
		assert.Empty(t, Discover(t.TempDir()))
	})

	t.Run("single file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".callgraph.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
		assert.Equal(t, path, Discover(dir))
	})

	t.Run("yaml wins over json", func(t *testing.T) {
		dir := t.TempDir()
		yamlPath := filepath.Join(dir, ".callgraph.yaml")
		require.NoError(t, os.WriteFile(yamlPath, []byte(""), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".callgraph.json"), []byte("{}"), 0o644))
		assert.Equal(t, yamlPath, Discover(dir))
	})

	t.Run("directories are skipped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".callgraph.yaml"), 0o755))
		assert.Empty(t, Discover(dir))
	})
}
