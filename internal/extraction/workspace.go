package extraction

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the exclusively-owned temp directory for one extraction job.
// Jobs never share directories, so no cross-job locking is needed.
type Workspace struct {
	JobID string
	Dir   string
}

// AcquireWorkspace creates a uniquely named job directory under root.
func AcquireWorkspace(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work root: %w", err)
	}
	jobID := uuid.NewString()
	dir := filepath.Join(root, "job-"+jobID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("resolve job workspace: %w", err)
	}
	return &Workspace{JobID: jobID, Dir: abs}, nil
}

// Release reaps the workspace. Safe to call more than once; callers defer it
// on every exit path, including timeout and cancellation.
func (w *Workspace) Release() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	err := os.RemoveAll(w.Dir)
	w.Dir = ""
	return err
}
