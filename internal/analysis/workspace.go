package analysis

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WorkspacePrefix names every rasterization directory. The maintenance
// sweeper relies on it to find leftovers.
const WorkspacePrefix = "raster-"

// Workspace is a uniquely named scratch directory owned by one invocation.
type Workspace struct {
	Dir string
}

// NewWorkspace creates <root>/raster-<uuid>. An empty root uses os.TempDir.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, WorkspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, err
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
