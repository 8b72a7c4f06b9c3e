// Package project resolves project roots and detects languages from
// paths and directory contents.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"editor-gateway/src/internal/common"
	"editor-gateway/src/internal/constants"
	"editor-gateway/src/internal/registry"
)

// FindProjectRoot maps (language, path) to the project root directory.
// The walk starts at path (or its parent when path is a file) and climbs
// toward the filesystem root testing each level for the language's marker
// files. The search is bounded to constants.MaxRootSearchDepth upward
// steps; when no marker is found the starting directory is returned, so
// resolution always succeeds for an existing path.
func FindProjectRoot(language, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("path not found: %s", path)
	}

	startDir := path
	if !info.IsDir() {
		startDir = filepath.Dir(path)
	}
	if abs, err := filepath.Abs(startDir); err == nil {
		startDir = abs
	}

	markers := registry.GetProjectMarkers(language)

	dir := startDir
	for i := 0; i < constants.MaxRootSearchDepth; i++ {
		if hasAnyMarker(dir, markers) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root.
			break
		}
		dir = parent
	}

	return startDir, nil
}

// IsProjectRoot reports whether dir itself contains a marker file for the
// language. No upward walking is performed.
func IsProjectRoot(language, dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return false, fmt.Errorf("path not found: %s", dir)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("not a directory: %s", dir)
	}
	return hasAnyMarker(dir, registry.GetProjectMarkers(language)), nil
}

func hasAnyMarker(dir string, markers []string) bool {
	for _, marker := range markers {
		if common.FileExists(filepath.Join(dir, marker)) {
			return true
		}
	}
	return false
}
