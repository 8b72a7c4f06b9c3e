package common

import (
	"fmt"
	"os"
)

// SafeReadFile wraps os.ReadFile with consistent error handling
func SafeReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// FileExists checks if a path exists, returns false if any error occurs
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
