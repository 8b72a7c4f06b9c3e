package gitignore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// maxWalkDepth bounds recursion; scans are advisory, not exhaustive.
const maxWalkDepth = 3

type WalkFunc func(path string, d os.DirEntry, err error) error

// Walker performs a depth-bounded, ignore-aware directory walk.
type Walker struct {
	filter *Filter
}

func NewWalker(root string) *Walker {
	return &Walker{filter: NewFilter(root)}
}

// Walk visits entries under root, skipping ignored paths. Returning
// filepath.SkipDir from fn prunes a directory; any other error aborts
// the walk.
func (w *Walker) Walk(root string, fn WalkFunc) error {
	return w.walk(root, fn, 0)
}

func (w *Walker) walk(dir string, fn WalkFunc, depth int) error {
	if depth > maxWalkDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fn(dir, nil, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if w.filter.Ignored(path, entry.IsDir()) {
			continue
		}

		if err := fn(path, entry, nil); err != nil {
			if errors.Is(err, filepath.SkipDir) {
				continue
			}
			return err
		}

		if entry.IsDir() {
			if err := w.walk(path, fn, depth+1); err != nil && !errors.Is(err, filepath.SkipDir) {
				return err
			}
		}
	}

	return nil
}

// ShouldSkipDirectory reports whether a directory name is build output,
// VCS bookkeeping, or other tooling noise.
func ShouldSkipDirectory(name string) bool {
	switch name {
	case ".git", ".svn", ".hg", ".bzr",
		"node_modules", "vendor", "__pycache__",
		"target", "build", "dist", "out",
		".idea", ".vscode":
		return true
	}
	return strings.HasPrefix(name, ".") && name != "."
}
