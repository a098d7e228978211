// Package config loads the analyzer's layered configuration: built-in
// defaults overlaid by an optional .callgraph.{yaml,toml,json} file, with
// command-line flags applied last by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	ktoml "github.com/knadh/koanf/parsers/toml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options consumed by the analyzer and the
// output layer.
type Config struct {
	// Algorithm selects dispatch resolution: "cha" or "rta".
	Algorithm string `koanf:"algorithm"`

	// EntryPoints selects worklist seeding: program-entry, public-concrete,
	// accessible-concrete, concrete, or all.
	EntryPoints string `koanf:"entrypoints"`

	// Namespaces filters entry-point types; empty matches everything.
	Namespaces []string `koanf:"namespaces"`

	// Workers sets scanning parallelism; 1 runs sequentially.
	Workers int `koanf:"workers"`

	Output OutputConfig `koanf:"output"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	// Format is one of text, json, dot.
	Format string `koanf:"format"`

	// MaxEdges caps DOT export size; 0 exports everything.
	MaxEdges int `koanf:"max_edges"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Algorithm:   "cha",
		EntryPoints: "program-entry",
		Workers:     1,
		Output: OutputConfig{
			Format:   "text",
			MaxEdges: 0,
		},
	}
}

// configNames are the file names probed by Discover, in priority order.
var configNames = []string{
	".callgraph.yaml",
	".callgraph.yml",
	".callgraph.toml",
	".callgraph.json",
}

// Discover returns the path of the first config file present in dir, or ""
// when none exists.
func Discover(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads a config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".toml":
		return ktoml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}
