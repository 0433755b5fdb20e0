package filesystem

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath is returned for an empty request path.
	ErrEmptyPath = errors.New("path is required")
	// ErrOutsideRoot is returned when a path escapes the library root.
	ErrOutsideRoot = errors.New("path outside library directory")
	// ErrRelativePath is returned for a relative path when no root is configured.
	ErrRelativePath = errors.New("path must be absolute")
)

// Resolve maps a request path to a file on disk. With a root, the path is
// joined to it and must stay inside it. Without one, only absolute paths are
// accepted.
func Resolve(root, path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if root == "" {
		if !filepath.IsAbs(path) {
			return "", ErrRelativePath
		}
		return filepath.Clean(path), nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve library directory: %w", err)
	}

	full := filepath.Join(absRoot, path)
	if full != absRoot && !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}
