package builder

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/WuLonghui/nise-bosh/internal/archive"
	"github.com/WuLonghui/nise-bosh/internal/config"
	"github.com/WuLonghui/nise-bosh/internal/eventstore"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/manifest"
	"github.com/WuLonghui/nise-bosh/internal/metrics"
	"github.com/WuLonghui/nise-bosh/internal/monit"
	"github.com/WuLonghui/nise-bosh/internal/packager"
	"github.com/WuLonghui/nise-bosh/internal/release"
	"github.com/WuLonghui/nise-bosh/internal/workspace"
)

// Builder drives installs against one release and one install root.
type Builder struct {
	opts     config.Options
	repo     *release.Repository
	manifest *manifest.Manifest

	workspace *workspace.Manager
	installer *packager.Installer
	monit     *monit.Manager
	archiver  *archive.Archiver

	runner   packager.ScriptRunner
	recorder metrics.Recorder
	journal  *eventstore.Journal
	detectIP func() string
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. Components receive loggers derived from it.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithJournal records builder events in j.
func WithJournal(j *eventstore.Journal) Option {
	return func(b *Builder) { b.journal = j }
}

// WithRunner replaces the packaging script runner.
func WithRunner(r packager.ScriptRunner) Option {
	return func(b *Builder) { b.runner = r }
}

// WithIPDetector replaces host address detection.
func WithIPDetector(detect func() string) Option {
	return func(b *Builder) {
		if detect != nil {
			b.detectIP = detect
		}
	}
}

// New loads the release and, when set, the deploy manifest named in opts.
func New(opts config.Options, options ...Option) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	b := &Builder{
		recorder: metrics.NoopRecorder{},
		detectIP: DetectIP,
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(b)
	}

	var err error
	if opts.InstallDir, err = filepath.Abs(opts.InstallDir); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid install directory").
			WithContext("path", opts.InstallDir).Build()
	}
	if opts.WorkingDir, err = filepath.Abs(opts.WorkingDir); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid working directory").
			WithContext("path", opts.WorkingDir).Build()
	}
	b.opts = opts

	b.repo, err = release.Load(opts.ReleaseDir, opts.ReleaseFile, release.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	rel := b.repo.Release()
	b.logger = b.logger.With(logfields.Release(rel.Name))
	if b.journal != nil && b.journal.Enabled() {
		b.logger = b.logger.With(logfields.RunID(b.journal.RunID()))
	}

	if opts.ManifestPath != "" {
		if b.manifest, err = manifest.Load(opts.ManifestPath); err != nil {
			return nil, err
		}
	}

	if b.runner == nil {
		if b.runner, err = packager.NewShellRunner(opts.PackagingShell); err != nil {
			return nil, err
		}
	}

	b.workspace = workspace.NewManager(opts.WorkingDir, b.logger)
	b.installer, err = packager.NewInstaller(opts.InstallDir, b.repo, b.workspace,
		packager.WithForceCompile(opts.ForceCompile),
		packager.WithRunner(b.runner),
		packager.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	b.monit = monit.NewManager(b.path("monit", "job"), opts.KeepMonitFiles, b.logger).
		WithTemplates(b.repo.Release().JobNames()...)
	b.archiver = archive.New(b.repo, b.logger)

	b.logger.Debug("Builder ready",
		logfields.Version(rel.Version),
		logfields.Path(opts.InstallDir))
	return b, nil
}

func (b *Builder) path(elem ...string) string {
	return filepath.Join(append([]string{b.opts.InstallDir}, elem...)...)
}

// Options returns the effective options, with directories made absolute.
func (b *Builder) Options() config.Options { return b.opts }

// Repository returns the loaded release repository.
func (b *Builder) Repository() *release.Repository { return b.repo }

// ReleaseFile returns the descriptor of the selected release.
func (b *Builder) ReleaseFile() string { return b.repo.ReleaseFile() }

// InitializeEnvironment creates the install root layout and the working
// directory. It is safe to call repeatedly.
func (b *Builder) InitializeEnvironment() error {
	dirs := []string{
		b.path("packages"),
		b.path("data", "packages"),
		b.path("jobs"),
		b.path("monit", "job"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "cannot create install directory").
				WithContext("path", d).Build()
		}
	}
	return b.workspace.Create()
}

// JobExists reports whether name is a deployment job of the manifest or a
// job of the release.
func (b *Builder) JobExists(name string) bool {
	_, err := b.deploymentJob(name)
	return err == nil
}

// PackageExists reports whether the release has the package.
func (b *Builder) PackageExists(name string) bool {
	return b.repo.PackageExists(name)
}

// deploymentJob returns the manifest entry for name. A release job without a
// manifest entry is treated as a deployment job with itself as sole template.
func (b *Builder) deploymentJob(name string) (manifest.Job, error) {
	if b.manifest != nil {
		if j, ok := b.manifest.Job(name); ok {
			return j, nil
		}
	}
	if b.repo.JobExists(name) {
		return manifest.Job{Name: name, Templates: manifest.TemplateList{name}}, nil
	}
	return manifest.Job{}, errors.NotFoundError("job not found").
		WithContext("job", name).Build()
}

// JobTemplates returns the release jobs that make up the deployment job.
func (b *Builder) JobTemplates(name string) ([]string, error) {
	j, err := b.deploymentJob(name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), j.Templates...), nil
}

// JobTemplatePackages returns the packages a release job declares.
func (b *Builder) JobTemplatePackages(template string) ([]string, error) {
	spec, err := b.repo.Job(template)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), spec.Packages...), nil
}

// properties returns the property tree for a deployment job.
func (b *Builder) properties(job string) map[string]any {
	if b.manifest == nil {
		return map[string]any{}
	}
	return b.manifest.JobProperties(job)
}
