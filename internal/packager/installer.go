package packager

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/release"
	"github.com/WuLonghui/nise-bosh/internal/workspace"
)

const (
	packagingScript = "packaging"
	scratchGroup    = "packages"
	maxOutputInErr  = 4096
)

// Source supplies package specs and their source artifacts.
type Source interface {
	Package(name string) (release.PackageSpec, error)
	ExtractPackage(name, dest string) error
}

// Action describes what Install did for a package.
type Action string

const (
	ActionCompiled Action = "compiled"
	ActionSkipped  Action = "skipped"
)

// Result reports the outcome of one Install call.
type Result struct {
	Package    string
	Version    string
	Action     Action
	Relinked   bool
	VersionDir string
	Duration   time.Duration
}

// Installer compiles packages into an install root.
type Installer struct {
	root         string
	source       Source
	workspace    *workspace.Manager
	runner       ScriptRunner
	forceCompile bool
	logger       *slog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithForceCompile rebuilds packages even when the version is installed.
func WithForceCompile(force bool) Option {
	return func(i *Installer) { i.forceCompile = force }
}

// WithRunner replaces the packaging script runner.
func WithRunner(r ScriptRunner) Option {
	return func(i *Installer) {
		if r != nil {
			i.runner = r
		}
	}
}

// WithLogger sets the installer logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInstaller creates an installer for the install root.
func NewInstaller(root string, source Source, ws *workspace.Manager, opts ...Option) (*Installer, error) {
	i := &Installer{
		root:      root,
		source:    source,
		workspace: ws,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.runner == nil {
		r, err := NewShellRunner(DefaultShell)
		if err != nil {
			return nil, err
		}
		i.runner = r
	}
	return i, nil
}

// PointerPath returns packages/<name> below the install root.
func (i *Installer) PointerPath(name string) string {
	return filepath.Join(i.root, "packages", name)
}

// VersionDir returns data/packages/<name>/<version> below the install root.
func (i *Installer) VersionDir(name, version string) string {
	return filepath.Join(i.root, "data", "packages", name, version)
}

// Install makes the package available at packages/<name>. A version that is
// already installed is not compiled again unless force compile is set.
func (i *Installer) Install(ctx context.Context, name string) (Result, error) {
	start := time.Now()
	spec, err := i.source.Package(name)
	if err != nil {
		return Result{}, err
	}

	logger := i.logger.With(logfields.Package(spec.Name), logfields.Version(spec.Version))
	res := Result{
		Package:    spec.Name,
		Version:    spec.Version,
		Action:     ActionSkipped,
		VersionDir: i.VersionDir(spec.Name, spec.Version),
	}

	installed := false
	if st, statErr := os.Stat(res.VersionDir); statErr == nil && st.IsDir() {
		installed = true
	}

	if installed && !i.forceCompile {
		logger.Info("Package already installed, skipping compilation")
	} else {
		logger.Info("Compiling package")
		if err := i.compile(ctx, spec, res.VersionDir, logger); err != nil {
			return res, err
		}
		res.Action = ActionCompiled
	}

	relinked, err := swapPointer(i.PointerPath(spec.Name), res.VersionDir)
	if err != nil {
		return res, errors.WrapError(err, errors.CategoryFileSystem, "cannot update package pointer").
			WithContext("package", spec.Name).
			WithContext("path", i.PointerPath(spec.Name)).Build()
	}
	res.Relinked = relinked
	res.Duration = time.Since(start)

	logger.Debug("Package ready", slog.String("action", string(res.Action)), logfields.Since(start))
	return res, nil
}

func (i *Installer) compile(ctx context.Context, spec release.PackageSpec, versionDir string, logger *slog.Logger) error {
	if n, err := i.workspace.SweepGarbage(scratchGroup, spec.Name); err != nil {
		logger.Warn("Cannot remove stale scratch directories", logfields.Error(err))
	} else if n > 0 {
		logger.Debug("Removed stale scratch directories", logfields.Count(n))
	}

	scratch, err := i.workspace.NewScratch(scratchGroup, spec.Name, "src", "install")
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot create build directory").
			WithContext("package", spec.Name).Build()
	}

	srcDir, installDir := scratch.Sub("src"), scratch.Sub("install")
	if err := i.source.ExtractPackage(spec.Name, srcDir); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(srcDir, packagingScript)); err != nil {
		return errors.PackagingError("package has no packaging script").
			WithContext("package", spec.Name).Build()
	}

	result, err := i.runner.Run(ctx, ScriptRequest{
		Dir:    srcDir,
		Script: packagingScript,
		Env: []string{
			"BOSH_COMPILE_TARGET=" + srcDir,
			"BOSH_INSTALL_TARGET=" + installDir,
			"BOSH_PACKAGE_NAME=" + spec.Name,
			"BOSH_PACKAGE_VERSION=" + spec.Version,
			"BOSH_PACKAGES_DIR=" + filepath.Join(i.root, "packages"),
		},
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryPackaging, "packaging script could not run").
			Fatal().
			WithContext("package", spec.Name).
			WithContext("scratch", scratch.Dir).Build()
	}
	if result.ExitStatus != 0 {
		logger.Error("Packaging script failed", logfields.ExitStatus(result.ExitStatus))
		return errors.PackagingError("packaging script failed").
			WithContext("package", spec.Name).
			WithContext("exit_status", result.ExitStatus).
			WithContext("output", tail(result.Output, maxOutputInErr)).
			WithContext("scratch", scratch.Dir).Build()
	}

	if err := publishDir(installDir, versionDir); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot publish package build").
			WithContext("package", spec.Name).
			WithContext("path", versionDir).Build()
	}
	if err := i.workspace.Release(scratch); err != nil {
		logger.Warn("Cannot remove scratch directory", logfields.Error(err))
	}
	return nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
