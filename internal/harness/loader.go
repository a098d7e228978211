package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/715d/callgraph/pkg/model"
)

// LoadTestCase loads a test case from a directory holding an expected.yaml
// next to the snapshot's module files.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "expected.yaml"))
	require.NoError(t, err)

	tc := &TestCase{}
	require.NoError(t, yaml.Unmarshal(data, tc))

	if root != "" {
		if rel, err := filepath.Rel(root, dir); err == nil {
			tc.Dir = rel
			return tc
		}
	}
	tc.Dir = filepath.Base(dir)
	return tc
}

// loadSnapshot loads the program snapshot for a test case directory.
func loadSnapshot(t *testing.T, root, dir string) *model.Program {
	t.Helper()

	program, err := model.LoadProgram(context.Background(), model.LoaderOptions{
		Dir: filepath.Join(root, dir),
	})
	require.NoError(t, err)
	return program
}
