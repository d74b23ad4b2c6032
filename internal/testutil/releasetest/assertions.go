package releasetest

import (
	"os"
	"path/filepath"
	"testing"
)

// FileAssertions checks install root state relative to a base directory.
type FileAssertions struct {
	t       testing.TB
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t testing.TB, baseDir string) *FileAssertions {
	return &FileAssertions{t: t, baseDir: baseDir}
}

// AssertFileExists validates that a file exists.
func (fa *FileAssertions) AssertFileExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Stat(fullPath); err != nil {
		fa.t.Errorf("Expected file to exist: %s (%v)", fullPath, err)
	}
	return fa
}

// AssertFileNotExists validates that a file does not exist.
func (fa *FileAssertions) AssertFileNotExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Lstat(fullPath); err == nil {
		fa.t.Errorf("Expected file to not exist: %s", fullPath)
	}
	return fa
}

// AssertContent validates the exact content of a file.
func (fa *FileAssertions) AssertContent(relativePath, expected string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)

	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(fullPath)
	if err != nil {
		fa.t.Errorf("Failed to read file %s: %v", fullPath, err)
		return fa
	}
	if string(content) != expected {
		fa.t.Errorf("Unexpected content in %s\nwant: %q\ngot:  %q", relativePath, expected, string(content))
	}
	return fa
}

// AssertSymlink validates that relativePath is a symlink to target.
func (fa *FileAssertions) AssertSymlink(relativePath, target string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	got, err := os.Readlink(fullPath)
	if err != nil {
		fa.t.Errorf("Expected %s to be a symlink: %v", fullPath, err)
		return fa
	}
	if got != target {
		fa.t.Errorf("Symlink %s points at %s, want %s", relativePath, got, target)
	}
	return fa
}
