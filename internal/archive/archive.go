// Package archive packs a deployment job's build artifacts and the selected
// release descriptor into a gzip-compressed tar that loads as a release
// repository on another machine.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/release"
)

// entryTime is stamped on every member so equal inputs give equal archives.
var entryTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const releaseRoot = "release"

// Source is the release repository the archive is built from.
type Source interface {
	Dir() string
	Release() *release.Release
	ReleaseFile() string
	JobRecord(name string) (release.JobRecord, error)
	Package(name string) (release.PackageSpec, error)
	IsFinal(kind release.Kind, name, version string) bool
	CheckFinalIndex(kind release.Kind, name string) error
	ArtifactRelPath(kind release.Kind, name, version string) string
	FinalIndexPath(kind release.Kind, name string) string
}

// Contents selects what goes into an archive.
type Contents struct {
	// Job is the deployment job, used for the default file name.
	Job      string
	Jobs     []string
	Packages []string
}

// Archiver builds release archives.
type Archiver struct {
	source Source
	logger *slog.Logger
}

// New creates an Archiver.
func New(source Source, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{source: source, logger: logger}
}

// DefaultName returns <release>-<job>-<version>.tar.gz.
func (a *Archiver) DefaultName(job string) string {
	rel := a.source.Release()
	return fmt.Sprintf("%s-%s-%s.tar.gz", rel.Name, job, rel.Version)
}

// OutputPath resolves where the archive of job is written. An existing
// directory gets the default file name, any other path is used verbatim.
func (a *Archiver) OutputPath(job, output string) string {
	if output == "" {
		output = "."
	}
	if st, err := os.Stat(output); err == nil && st.IsDir() {
		return filepath.Join(output, a.DefaultName(job))
	}
	return output
}

// entry is one archive member, read from a file or held in memory.
type entry struct {
	name string
	file string
	data []byte
}

// Archive writes the archive and returns its path.
func (a *Archiver) Archive(ctx context.Context, c Contents, output string) (string, error) {
	entries, err := a.collect(c)
	if err != nil {
		return "", err
	}

	target := a.OutputPath(c.Job, output)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", errors.WrapError(err, errors.CategoryArchive, "cannot create archive directory").
			WithContext("path", target).Build()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryArchive, "cannot create archive").
			WithContext("path", target).Build()
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeTarGz(ctx, tmp, entries); err != nil {
		_ = tmp.Close()
		return "", errors.WrapError(err, errors.CategoryArchive, "cannot write archive").
			WithContext("path", target).Build()
	}
	if err := tmp.Close(); err != nil {
		return "", errors.WrapError(err, errors.CategoryArchive, "cannot write archive").
			WithContext("path", target).Build()
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", errors.WrapError(err, errors.CategoryArchive, "cannot move archive into place").
			WithContext("path", target).Build()
	}

	a.logger.Info("Archive written",
		logfields.Job(c.Job),
		logfields.Path(target),
		logfields.Count(len(entries)))
	return target, nil
}

func (a *Archiver) collect(c Contents) ([]entry, error) {
	rel := a.source.Release()
	descriptor := a.source.ReleaseFile()

	index, err := yaml.Marshal(map[string]any{
		"builds": map[string]any{
			rel.Version: map[string]any{"version": rel.Version},
		},
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "cannot encode release index").Build()
	}
	devConfig, err := yaml.Marshal(map[string]any{"dev_name": rel.Name})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "cannot encode release config").Build()
	}

	entries := []entry{
		{name: "release.yml", file: descriptor},
		{name: path.Join(releaseRoot, "dev_releases", fmt.Sprintf("%s-%s.yml", rel.Name, rel.Version)), file: descriptor},
		{name: path.Join(releaseRoot, "dev_releases", "index.yml"), data: index},
		{name: path.Join(releaseRoot, "config", "dev.yml"), data: devConfig},
	}

	for _, name := range c.Jobs {
		rec, err := a.source.JobRecord(name)
		if err != nil {
			return nil, err
		}
		es, err := a.artifactEntries(release.KindJob, rec.Name, rec.Version)
		if err != nil {
			return nil, err
		}
		entries = append(entries, es...)
	}
	for _, name := range c.Packages {
		spec, err := a.source.Package(name)
		if err != nil {
			return nil, err
		}
		es, err := a.artifactEntries(release.KindPackage, spec.Name, spec.Version)
		if err != nil {
			return nil, err
		}
		entries = append(entries, es...)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return dedupe(entries), nil
}

// CheckJobs fails with an archive error when a job artifact is missing.
// Job artifacts are checked before anything reads job specs from them.
func (a *Archiver) CheckJobs(jobs []string) error {
	for _, name := range jobs {
		rec, err := a.source.JobRecord(name)
		if err != nil {
			return err
		}
		if _, err := a.artifactEntries(release.KindJob, rec.Name, rec.Version); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) artifactEntries(kind release.Kind, name, version string) ([]entry, error) {
	if err := a.source.CheckFinalIndex(kind, name); err != nil {
		return nil, errors.WrapError(err, errors.CategoryArchive, "cannot read final build index").
			WithContext("kind", string(kind)).
			WithContext("name", name).Build()
	}
	rel := a.source.ArtifactRelPath(kind, name, version)
	full := filepath.Join(a.source.Dir(), rel)
	if _, err := os.Stat(full); err != nil {
		return nil, errors.ArchiveError("build artifact missing; run `bosh create release` first").
			WithCause(err).
			WithContext("kind", string(kind)).
			WithContext("name", name).
			WithContext("version", version).Build()
	}

	out := []entry{{name: path.Join(releaseRoot, filepath.ToSlash(rel)), file: full}}
	if a.source.IsFinal(kind, name, version) {
		idx := a.source.FinalIndexPath(kind, name)
		idxRel, err := filepath.Rel(a.source.Dir(), idx)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryArchive, "cannot place final build index").Build()
		}
		out = append(out, entry{name: path.Join(releaseRoot, filepath.ToSlash(idxRel)), file: idx})
	}
	return out, nil
}

// dedupe drops repeated names from a sorted slice.
func dedupe(entries []entry) []entry {
	out := entries[:0]
	for i, e := range entries {
		if i > 0 && e.name == entries[i-1].name {
			continue
		}
		out = append(out, e)
	}
	return out
}

func writeTarGz(ctx context.Context, w io.Writer, entries []entry) (err error) {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	defer func() {
		if cErr := tw.Close(); cErr != nil && err == nil {
			err = cErr
		}
		if cErr := gz.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(tw, e); err != nil {
			return fmt.Errorf("add %s: %w", e.name, err)
		}
	}
	return nil
}

func writeEntry(tw *tar.Writer, e entry) error {
	hdr := &tar.Header{
		Name:     e.name,
		Mode:     0o644,
		ModTime:  entryTime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if e.file == "" {
		hdr.Size = int64(len(e.data))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(e.data)
		return err
	}

	f, err := os.Open(e.file) // #nosec G304 -- repository artifact
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr.Size = st.Size()
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
