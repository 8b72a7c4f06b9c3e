// Package utils holds small conversion helpers shared across the
// gateway.
package utils

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"go.lsp.dev/uri"
)

// URIToFilePath converts a file:// URI to a filesystem path. Strings
// that are not file URIs pass through unchanged, so callers can feed it
// either form.
func URIToFilePath(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}

	path := strings.TrimPrefix(s, "file://")
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	if runtime.GOOS == "windows" && len(path) > 2 {
		// file:///C:/dir arrives here as /C:/dir.
		if path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
		path = filepath.FromSlash(path)
	}

	return path
}

// FilePathToURI converts a filesystem path to a file:// URI.
func FilePathToURI(path string) string {
	if filepath.IsAbs(path) {
		return string(uri.File(path))
	}
	// Relative paths should not reach here; keep them addressable
	// rather than failing.
	return "file://" + filepath.ToSlash(filepath.Clean(path))
}
