// Package workspace owns the scratch directory that holds the files
// of the acquisition currently in flight. The directory carries at
// most one request's files at a time: it is cleared when a new
// acquisition begins and again once the caller has consumed the
// previous result. It is therefore not safe for concurrent
// overlapping acquisitions; callers must serialise.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

type Workspace struct {
	dir string
}

// New expands and creates the workspace directory if needed. An
// existing path that is not a directory is an error.
func New(dir string) (*Workspace, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace path '%s' could not be expanded: %w", dir, err)
	}

	if info, err := os.Stat(expanded); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("workspace path '%s' is not a directory", expanded)
		}
	} else if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("workspace path '%s' could not be created: %w", expanded, err)
	}

	return &Workspace{dir: expanded}, nil
}

func (workspace *Workspace) Dir() string {
	return workspace.dir
}

// Path joins a file name onto the workspace directory.
func (workspace *Workspace) Path(name string) string {
	return filepath.Join(workspace.dir, name)
}

// Clear removes everything inside the workspace directory. Removal is
// best effort per entry; the last failure, if any, is returned.
func (workspace *Workspace) Clear() error {
	entries, err := os.ReadDir(workspace.dir)
	if err != nil {
		return fmt.Errorf("failed to read workspace: %w", err)
	}

	var lastErr error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(workspace.dir, entry.Name())); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
