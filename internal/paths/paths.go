// Package paths resolves user-supplied directory arguments.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandUser replaces a leading "~" or "~/" with the current user's home
// directory. Paths without a tilde prefix are returned unchanged.
func ExpandUser(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// Resolve expands a leading tilde and makes the path absolute.
func Resolve(path string) (string, error) {
	expanded, err := ExpandUser(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}
