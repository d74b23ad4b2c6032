package templates

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WriteRendered writes rendered content to root/relativePath.
//
// The function ensures:
//   - The output path stays under root (no path traversal)
//   - Parent directories are created if needed
//   - The file is replaced atomically via a temp file and rename
//
// It returns the full path of the written file.
func WriteRendered(root, relativePath, content string, mode fs.FileMode) (string, error) {
	if root == "" {
		return "", stderrors.New("output root is required")
	}
	if relativePath == "" {
		return "", stderrors.New("output path is required")
	}

	cleanRel := filepath.Clean(relativePath)
	if filepath.IsAbs(cleanRel) || cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output path %q must be relative to %s", relativePath, root)
	}

	fullPath := filepath.Join(root, cleanRel)
	rel, err := filepath.Rel(root, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("output path %q escapes %s", relativePath, root)
	}

	if err = os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("chmod output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("replace output file: %w", err)
	}
	return fullPath, nil
}
