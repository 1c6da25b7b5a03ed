// Package workspace manages the per-run scratch directory that holds
// intermediate files such as the transformed atlas and the 4D tissue mask.
package workspace

import (
	"fmt"
	"os"
)

// Workspace is a scratch directory owned by one run.
type Workspace struct {
	Dir  string
	keep bool
}

// Acquire creates a fresh directory below root (the system temp dir when
// root is empty). With keep set, Release leaves it in place.
func Acquire(root, prefix string, keep bool) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create working root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, prefix+"_")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	return &Workspace{Dir: dir, keep: keep}, nil
}

// Kept reports whether Release leaves the directory behind.
func (w *Workspace) Kept() bool {
	return w.keep
}

// Release removes the directory unless it is kept. It is safe to call more
// than once.
func (w *Workspace) Release() error {
	if w == nil || w.keep || w.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("failed to remove working directory %s: %w", w.Dir, err)
	}
	return nil
}
