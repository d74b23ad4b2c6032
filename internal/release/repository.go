package release

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/git"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
)

// MissingIndexMessage is reported when a repository was never built.
const MissingIndexMessage = "No release index found!\nTry `bosh create release` in your release repository."

const (
	devReleasesDir = "dev_releases"
	indexFile      = "index.yml"
	devBuildsDir   = ".dev_builds"
	finalBuildsDir = ".final_builds"
)

type buildIndex struct {
	Builds map[string]struct {
		Version string `yaml:"version"`
		SHA1    string `yaml:"sha1,omitempty"`
	} `yaml:"builds"`
}

func (b buildIndex) versions() []string {
	out := make([]string, 0, len(b.Builds))
	for _, build := range b.Builds {
		out = append(out, build.Version)
	}
	return out
}

func (b buildIndex) has(version string) bool {
	for _, build := range b.Builds {
		if build.Version == version {
			return true
		}
	}
	return false
}

// Repository is a loaded release repository with one selected release.
type Repository struct {
	dir         string
	releaseFile string
	release     *Release

	jobs     map[string]*JobRecord
	packages map[string]*PackageSpec

	jobSpecs    map[string]*JobSpec
	finalBuilds map[string]finalIndex

	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// Load opens the release repository at dir. When releaseFile is empty the
// release with the greatest version recorded in dev_releases/index.yml is selected.
func Load(dir, releaseFile string, opts ...Option) (*Repository, error) {
	r := &Repository{
		dir:         dir,
		jobSpecs:    make(map[string]*JobSpec),
		finalBuilds: make(map[string]finalIndex),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, errors.RepositoryError("release repository does not exist").
			WithCause(err).
			WithContext("repo_dir", dir).Build()
	}

	if releaseFile == "" {
		selected, err := r.selectLatest()
		if err != nil {
			return nil, err
		}
		releaseFile = selected
	}
	r.releaseFile = releaseFile

	rel, err := readRelease(releaseFile)
	if err != nil {
		return nil, err
	}
	r.release = rel
	r.index()

	r.logger.Debug("Release loaded",
		logfields.Release(rel.Name),
		logfields.Version(rel.Version),
		logfields.Path(releaseFile))
	return r, nil
}

func (r *Repository) selectLatest() (string, error) {
	var idx buildIndex
	if err := readYAML(filepath.Join(r.dir, devReleasesDir, indexFile), &idx); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.RepositoryError(MissingIndexMessage).
				WithContext("repo_dir", r.dir).Build()
		}
		return "", errors.WrapError(err, errors.CategoryRepository, "invalid release index").
			WithContext("repo_dir", r.dir).Build()
	}

	versions := SortVersions(idx.versions())
	if len(versions) == 0 {
		return "", errors.RepositoryError(MissingIndexMessage).
			WithContext("repo_dir", r.dir).Build()
	}
	latest := versions[len(versions)-1]

	name, err := r.releaseName(latest)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.dir, devReleasesDir, fmt.Sprintf("%s-%s.yml", name, latest)), nil
}

// releaseName reads config/dev.yml, then config/final.yml, then looks for a
// unique descriptor matching version.
func (r *Repository) releaseName(version string) (string, error) {
	var dev struct {
		Name string `yaml:"dev_name"`
	}
	if err := readYAML(filepath.Join(r.dir, "config", "dev.yml"), &dev); err == nil && dev.Name != "" {
		return dev.Name, nil
	}
	var final struct {
		Name string `yaml:"final_name"`
	}
	if err := readYAML(filepath.Join(r.dir, "config", "final.yml"), &final); err == nil && final.Name != "" {
		return final.Name, nil
	}

	suffix := "-" + version + ".yml"
	matches, _ := filepath.Glob(filepath.Join(r.dir, devReleasesDir, "*"+suffix))
	if len(matches) == 1 {
		return strings.TrimSuffix(filepath.Base(matches[0]), suffix), nil
	}
	return "", errors.RepositoryError("cannot determine release name").
		WithContext("repo_dir", r.dir).
		WithContext("version", version).
		WithContext("candidates", len(matches)).Build()
}

func readRelease(p string) (*Release, error) {
	var rel Release
	if err := readYAML(p, &rel); err != nil {
		return nil, errors.WrapError(err, errors.CategoryRepository, "cannot read release file").
			WithContext("release_file", p).Build()
	}
	if rel.Name == "" || rel.Version == "" {
		return nil, errors.RepositoryError("release file lacks name or version").
			WithContext("release_file", p).Build()
	}
	return &rel, nil
}

func (r *Repository) index() {
	r.jobs = make(map[string]*JobRecord, len(r.release.Jobs))
	for i := range r.release.Jobs {
		r.jobs[r.release.Jobs[i].Name] = &r.release.Jobs[i]
	}
	r.packages = make(map[string]*PackageSpec, len(r.release.Packages))
	for i := range r.release.Packages {
		r.packages[r.release.Packages[i].Name] = &r.release.Packages[i]
	}
}

func readYAML(p string, out any) error {
	data, err := os.ReadFile(p) // #nosec G304 -- repository layout path
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// Dir returns the repository root.
func (r *Repository) Dir() string { return r.dir }

// ReleaseFile returns the path of the selected release descriptor.
func (r *Repository) ReleaseFile() string { return r.releaseFile }

// Release returns the selected release.
func (r *Repository) Release() *Release { return r.release }

// JobExists reports whether the release contains the job.
func (r *Repository) JobExists(name string) bool {
	_, ok := r.jobs[name]
	return ok
}

// PackageExists reports whether the release contains the package.
func (r *Repository) PackageExists(name string) bool {
	_, ok := r.packages[name]
	return ok
}

// JobRecord returns the release record of a job.
func (r *Repository) JobRecord(name string) (JobRecord, error) {
	rec, ok := r.jobs[name]
	if !ok {
		return JobRecord{}, errors.NotFoundError("job not found in release").
			WithContext("job", name).
			WithContext("release", r.release.Name).Build()
	}
	return *rec, nil
}

// Package returns the spec of a package.
func (r *Repository) Package(name string) (PackageSpec, error) {
	spec, ok := r.packages[name]
	if !ok {
		return PackageSpec{}, errors.NotFoundError("package not found in release").
			WithContext("package", name).
			WithContext("release", r.release.Name).Build()
	}
	return *spec, nil
}

// Dependencies returns the declared dependencies of a package.
func (r *Repository) Dependencies(name string) ([]string, error) {
	spec, err := r.Package(name)
	if err != nil {
		return nil, err
	}
	return spec.Dependencies, nil
}

// Job returns the parsed job.MF of a release job. Specs are read from the job
// artifact on first use and cached.
func (r *Repository) Job(name string) (*JobSpec, error) {
	if spec, ok := r.jobSpecs[name]; ok {
		return spec, nil
	}
	rec, err := r.JobRecord(name)
	if err != nil {
		return nil, err
	}

	artifact, err := r.existingArtifact(KindJob, rec.Name, rec.Version, rec.SHA1)
	if err != nil {
		return nil, err
	}
	files, err := readTarGzFiles(artifact)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRepository, "cannot read job artifact").
			WithContext("job", name).
			WithContext("path", artifact).Build()
	}
	spec, err := parseJobArtifact(rec, files)
	if err != nil {
		return nil, err
	}
	r.jobSpecs[name] = spec
	return spec, nil
}

// finalIndex is a cached final build index and the error reading it.
type finalIndex struct {
	builds buildIndex
	err    error
}

func (r *Repository) finalIndex(kind Kind, name string) finalIndex {
	key := string(kind) + "/" + name
	if idx, ok := r.finalBuilds[key]; ok {
		return idx
	}
	var idx finalIndex
	p := r.FinalIndexPath(kind, name)
	if err := readYAML(p, &idx.builds); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		idx.err = errors.WrapError(err, errors.CategoryRepository, "invalid final build index").
			WithContext("kind", string(kind)).
			WithContext("name", name).
			WithContext("path", p).Build()
		r.logger.Warn("Ignoring unreadable final build index", logfields.Path(p), logfields.Error(err))
	}
	r.finalBuilds[key] = idx
	return idx
}

// CheckFinalIndex returns the error reading the final build index of an
// artifact. A missing index is not an error.
func (r *Repository) CheckFinalIndex(kind Kind, name string) error {
	return r.finalIndex(kind, name).err
}

// IsFinal reports whether the version is recorded as a final build. An
// unreadable index counts as no final builds; see CheckFinalIndex.
func (r *Repository) IsFinal(kind Kind, name, version string) bool {
	return r.finalIndex(kind, name).builds.has(version)
}

// FinalIndexPath returns the final build index of an artifact.
func (r *Repository) FinalIndexPath(kind Kind, name string) string {
	return filepath.Join(r.dir, finalBuildsDir, string(kind), name, indexFile)
}

// ArtifactPath returns the final build location when the version is final,
// otherwise the dev build location. The file may not exist.
func (r *Repository) ArtifactPath(kind Kind, name, version string) string {
	return filepath.Join(r.dir, r.ArtifactRelPath(kind, name, version))
}

// ArtifactRelPath is ArtifactPath relative to the repository root.
func (r *Repository) ArtifactRelPath(kind Kind, name, version string) string {
	base := devBuildsDir
	if r.IsFinal(kind, name, version) {
		base = finalBuildsDir
	}
	return filepath.Join(base, string(kind), name, version+".tgz")
}

func (r *Repository) existingArtifact(kind Kind, name, version, sha string) (string, error) {
	if err := r.CheckFinalIndex(kind, name); err != nil {
		return "", err
	}
	p := r.ArtifactPath(kind, name, version)
	if _, err := os.Stat(p); err != nil {
		return "", errors.RepositoryError("build artifact missing; run `bosh create release`").
			WithCause(err).
			WithContext("kind", string(kind)).
			WithContext("name", name).
			WithContext("version", version).Build()
	}
	if err := verifySHA1(p, sha); err != nil {
		return "", err
	}
	return p, nil
}

// ExtractPackage unpacks the package artifact into dest after verifying its checksum.
func (r *Repository) ExtractPackage(name, dest string) error {
	spec, err := r.Package(name)
	if err != nil {
		return err
	}
	artifact, err := r.existingArtifact(KindPackage, spec.Name, spec.Version, spec.SHA1)
	if err != nil {
		return err
	}
	if err := ExtractTarGz(artifact, dest); err != nil {
		return errors.WrapError(err, errors.CategoryRepository, "cannot extract package artifact").
			WithContext("package", name).
			WithContext("path", artifact).Build()
	}
	return nil
}

// Summary describes the selected release.
type Summary struct {
	Name        string
	Version     string
	ReleaseFile string
	Jobs        []string
	Packages    []string
	Commit      string
	Branch      string
	Dirty       bool
}

// Summary returns the release description, including git state when the
// repository is a work tree.
func (r *Repository) Summary() Summary {
	s := Summary{
		Name:        r.release.Name,
		Version:     r.release.Version,
		ReleaseFile: r.releaseFile,
		Jobs:        r.release.JobNames(),
		Packages:    r.release.PackageNames(),
		Commit:      r.release.CommitHash,
	}
	head, err := git.ReadHead(r.dir)
	switch {
	case err == nil:
		s.Commit = head.ShortCommit()
		s.Branch = head.Branch
		s.Dirty = head.Dirty
	case !stderrors.Is(err, git.ErrNotRepository):
		r.logger.Debug("Cannot read repository HEAD", logfields.Error(err))
	}
	return s
}
