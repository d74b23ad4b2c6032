// Package monit manages monit supervisor fragments under monit/job.
package monit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/templates"
	"github.com/WuLonghui/nise-bosh/internal/util/sets"
)

const suffix = ".monitrc"

// Fragment is a rendered monit file for one template of a deployment job.
type Fragment struct {
	// Index is the template's position within the deployment job.
	Index    int
	Template string
	Content  string
}

// FragmentName returns the file name of a fragment.
func FragmentName(index int, job, template string) string {
	return fmt.Sprintf("%04d_%s.%s%s", index, job, template, suffix)
}

// Result lists the fragment files touched by WriteFragments.
type Result struct {
	Written []string
	Removed []string
}

// Manager writes and prunes fragments. It is the only component that deletes them.
type Manager struct {
	dir          string
	keepExisting bool
	templates    sets.Set[string]
	logger       *slog.Logger
}

// NewManager creates a manager for the fragment directory dir. When
// keepExisting is set, fragments of other jobs are left in place.
func NewManager(dir string, keepExisting bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, keepExisting: keepExisting, logger: logger}
}

// Dir returns the fragment directory.
func (m *Manager) Dir() string { return m.dir }

// WithTemplates sets the release job names a fragment's template part may
// take. Without it, a template part containing a dot is never owned.
func (m *Manager) WithTemplates(names ...string) *Manager {
	m.templates = sets.New(names...)
	return m
}

func ownerGlob(job string) (glob.Glob, error) {
	return glob.Compile("[0-9][0-9][0-9][0-9]_" + glob.QuoteMeta(job) + ".*" + suffix)
}

// owns reports whether name is a fragment of job. The name shape alone is
// ambiguous when job names contain dots: 0000_a.b.c.monitrc fits job "a"
// and job "a.b", so the template part must also be a known template.
func (m *Manager) owns(shape glob.Glob, job, name string) bool {
	if !shape.Match(name) {
		return false
	}
	template := strings.TrimSuffix(name[len("0000_")+len(job)+1:], suffix)
	if m.templates.Len() > 0 {
		return m.templates.Has(template)
	}
	return !strings.Contains(template, ".")
}

// WriteFragments installs the fragments of job. Stale fragments of the same
// job are removed, and unless keepExisting is set so are other jobs' fragments.
func (m *Manager) WriteFragments(job string, fragments []Fragment) (Result, error) {
	var res Result
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return res, errors.WrapError(err, errors.CategoryFileSystem, "cannot create monit directory").
			WithContext("path", m.dir).Build()
	}

	owned, err := ownerGlob(job)
	if err != nil {
		return res, errors.WrapError(err, errors.CategoryValidation, "invalid job name for monit fragments").
			WithContext("job", job).Build()
	}

	wanted := make(map[string]struct{}, len(fragments))
	for _, f := range fragments {
		wanted[FragmentName(f.Index, job, f.Template)] = struct{}{}
	}

	existing, err := m.List()
	if err != nil {
		return res, err
	}
	for _, name := range existing {
		if _, keep := wanted[name]; keep {
			continue
		}
		ownedByJob := m.owns(owned, job, name)
		if !ownedByJob && m.keepExisting {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !os.IsNotExist(err) {
			return res, errors.WrapError(err, errors.CategoryFileSystem, "cannot remove monit fragment").
				WithContext("fragment", name).Build()
		}
		m.logger.Debug("Removed monit fragment", logfields.Fragment(name))
		res.Removed = append(res.Removed, name)
	}

	for _, f := range fragments {
		name := FragmentName(f.Index, job, f.Template)
		if _, err := templates.WriteRendered(m.dir, name, f.Content, 0o644); err != nil {
			return res, errors.WrapError(err, errors.CategoryFileSystem, "cannot write monit fragment").
				WithContext("fragment", name).Build()
		}
		m.logger.Debug("Wrote monit fragment", logfields.Fragment(name))
		res.Written = append(res.Written, name)
	}
	return res, nil
}

// List returns the fragment file names in sorted order.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot list monit fragments").
			WithContext("path", m.dir).Build()
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
