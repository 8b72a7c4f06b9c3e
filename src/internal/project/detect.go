package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"editor-gateway/src/internal/constants"
	"editor-gateway/src/internal/gitignore"
	"editor-gateway/src/internal/registry"
)

// DetectLanguage resolves the language for a path when the caller's
// declared language is unknown or empty. The file extension is consulted
// first; for directories (or when the extension is unrecognized) the
// directory contents decide: ecosystem manifests in priority order, then
// a scan of file extensions.
func DetectLanguage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("path not found: %s", path)
	}

	if !info.IsDir() {
		// Recognized-only ecosystems are named here too; callers that
		// need a server reject them against the supported list.
		if lang := registry.RecognizedLanguageForExtension(strings.ToLower(filepath.Ext(path))); lang != "" {
			return lang, nil
		}
		// Fall through to the parent directory's contents.
		path = filepath.Dir(path)
	}

	if lang := detectFromMarkers(path); lang != "" {
		return lang, nil
	}
	if lang := detectFromExtensions(path); lang != "" {
		return lang, nil
	}

	return "", fmt.Errorf("unable to detect language for %s", path)
}

// detectFromMarkers checks the directory for ecosystem manifest files in
// the registry's priority order.
func detectFromMarkers(dir string) string {
	for _, entry := range registry.MarkerDetectionOrder() {
		if _, err := os.Stat(filepath.Join(dir, entry.Marker)); err == nil {
			return entry.Language
		}
	}
	return ""
}

// errDetected aborts the detection walk once a source file is found.
var errDetected = errors.New("language detected")

// detectFromExtensions scans the directory for source files and returns
// the language of the first recognized extension. The walk is gitignore
// aware so generated or vendored trees do not decide the language.
func detectFromExtensions(dir string) string {
	var detected string
	walker := gitignore.NewWalker(dir)
	err := walker.Walk(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			if constants.SkipDirectories[d.Name()] || gitignore.ShouldSkipDirectory(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if lang := registry.LanguageForExtension(strings.ToLower(filepath.Ext(d.Name()))); lang != "" {
			detected = lang
			return errDetected
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDetected) {
		return ""
	}
	return detected
}
