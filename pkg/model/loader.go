package model

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoaderOptions configures program snapshot loading.
type LoaderOptions struct {
	// Dir is the directory holding one JSON module file per program module.
	Dir string

	// OnModule, when set, is invoked once per loaded module. The CLI uses
	// this hook to drive its progress display.
	OnModule func(name string)
}

// LoadProgram loads a program snapshot from a directory of module files.
// Setup failures here (missing directory, empty module set, malformed file)
// are fatal: the analysis never starts on a partial program set.
func LoadProgram(ctx context.Context, opts LoaderOptions) (*Program, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("no snapshot directory configured")
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot path %s is not a directory", opts.Dir)
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no module files found in %s", opts.Dir)
	}

	seen := make(map[string]string, len(files))
	modules := make([]*Module, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(opts.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading module file %s: %w", name, err)
		}

		var mod Module
		if err := json.Unmarshal(data, &mod); err != nil {
			return nil, fmt.Errorf("decoding module file %s: %w", name, err)
		}
		if mod.Name == "" {
			return nil, fmt.Errorf("module file %s declares no module name", name)
		}

		if prev, dup := seen[mod.Name]; dup {
			slog.Warn("skipping duplicate module", "module", mod.Name, "file", name, "first", prev)
			continue
		}
		seen[mod.Name] = name

		modules = append(modules, &mod)
		if opts.OnModule != nil {
			opts.OnModule(mod.Name)
		}
		slog.Debug("loaded module", "module", mod.Name, "types", len(mod.Types))
	}

	return NewProgram(modules), nil
}
