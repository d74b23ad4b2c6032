package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/WuLonghui/nise-bosh/internal/logfields"
)

// Manager handles the persistent working directory and its scratch dirs.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// Scratch is a single-use build directory.
type Scratch struct {
	ID  string
	Dir string
}

// Sub returns a path inside the scratch directory.
func (s Scratch) Sub(name string) string {
	return filepath.Join(s.Dir, name)
}

// NewManager creates a workspace manager rooted at dir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "nise_bosh")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger}
}

// Create ensures the working directory exists. It is idempotent.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	m.logger.Debug("Using working directory", logfields.Path(m.dir))
	return nil
}

// GetPath returns the path to the working directory.
func (m *Manager) GetPath() string {
	return m.dir
}

func (m *Manager) groupDir(group, name string) string {
	return filepath.Join(m.dir, group, name)
}

// NewScratch creates a fresh scratch directory for one build of name.
// Any dirs listed in subdirs are created inside it.
func (m *Manager) NewScratch(group, name string, subdirs ...string) (Scratch, error) {
	id := uuid.NewString()
	s := Scratch{ID: id, Dir: filepath.Join(m.groupDir(group, name), id)}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return Scratch{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(s.Sub(sub), 0o750); err != nil {
			return Scratch{}, fmt.Errorf("failed to create scratch subdirectory: %w", err)
		}
	}
	return s, nil
}

// Release removes a scratch directory.
func (m *Manager) Release(s Scratch) error {
	if s.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("failed to remove scratch directory: %w", err)
	}
	return nil
}

// SweepGarbage removes scratch directories left behind by earlier builds of name.
func (m *Manager) SweepGarbage(group, name string) (int, error) {
	dir := m.groupDir(group, name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list scratch directories: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if _, parseErr := uuid.Parse(e.Name()); parseErr != nil {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("failed to remove scratch garbage: %w", err)
		}
		m.logger.Debug("Removed stale scratch directory", logfields.Path(p))
		removed++
	}
	return removed, nil
}
