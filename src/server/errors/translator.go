// Package errors classifies language server stderr output. Servers
// write capability complaints and crash reports to the same stream;
// the translator keeps expected noise out of the error log.
package errors

import (
	"strings"

	"editor-gateway/src/internal/registry"
)

type Level int

const (
	LevelDebug Level = iota
	LevelWarn
	LevelError
)

// StderrTranslator assigns a log level to raw stderr lines and suggests
// alternatives when a server rejects a method it never implemented.
type StderrTranslator struct{}

func NewStderrTranslator() *StderrTranslator {
	return &StderrTranslator{}
}

var knownMethods = []string{
	"textDocument/completion",
	"textDocument/hover",
	"textDocument/definition",
	"textDocument/references",
	"textDocument/formatting",
	"textDocument/rename",
	"workspace/symbol",
	"workspace/configuration",
}

// Classify maps a stderr line to a log level. Capability complaints are
// warnings, crash indicators are errors, everything else is debug.
func (t *StderrTranslator) Classify(line string) Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "method not found") ||
		strings.Contains(lower, "methodnotfound") ||
		strings.Contains(lower, "not supported") ||
		strings.Contains(lower, "unsupported") {
		return LevelWarn
	}

	if strings.Contains(lower, "error") || strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "panic") || strings.Contains(lower, "exception") ||
		strings.Contains(lower, "traceback") {
		return LevelError
	}

	return LevelDebug
}

// Method extracts the LSP method a stderr complaint refers to, if any.
func (t *StderrTranslator) Method(line string) string {
	for _, method := range knownMethods {
		if strings.Contains(line, method) {
			return method
		}
	}
	return ""
}

// Suggestion names an alternative server when the complaining command is
// a fallback with known gaps. Returns "" when there is nothing useful to
// say.
func (t *StderrTranslator) Suggestion(command string) string {
	for _, lang := range registry.GetSupportedLanguages() {
		for _, fallback := range lang.FallbackChain {
			if fallback == command {
				return "consider installing " + lang.DefaultCommand + " for full " + lang.Name + " support"
			}
		}
	}
	return ""
}
