// Package security validates commands before they are handed to the
// process spawner.
package security

import (
	"fmt"
	"path/filepath"
	"strings"

	"editor-gateway/src/internal/registry"
)

// ValidateCommand checks the executable against the registry whitelist
// and rejects arguments carrying path traversal or shell metacharacters.
// Commands may be absolute paths; only the base name is matched.
func ValidateCommand(command string, args []string) error {
	allowed := make(map[string]bool)
	for _, cmd := range registry.GetAllowedCommands() {
		allowed[cmd] = true
	}

	baseName := filepath.Base(command)
	if !allowed[baseName] {
		return fmt.Errorf("command not in whitelist: %s", baseName)
	}

	for _, arg := range args {
		if strings.Contains(arg, "..") {
			return fmt.Errorf("path traversal detected in argument: %s", arg)
		}
		if strings.ContainsAny(arg, "|&;`$") {
			return fmt.Errorf("shell injection detected in argument: %s", arg)
		}
	}

	return nil
}
