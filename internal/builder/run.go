package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/WuLonghui/nise-bosh/internal/eventstore"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/packager"
	"github.com/WuLonghui/nise-bosh/internal/release"
)

// Mode selects what Run does.
type Mode int

const (
	ModeInstallJob Mode = iota
	ModeInstallPackages
	ModeArchive
	ModeShowRelease
)

func (m Mode) String() string {
	switch m {
	case ModeInstallJob:
		return "install"
	case ModeInstallPackages:
		return "packages"
	case ModeArchive:
		return "archive"
	case ModeShowRelease:
		return "release"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Request is one invocation of the builder.
type Request struct {
	Mode Mode

	// Job is the deployment job for ModeInstallJob and ModeArchive.
	Job string

	// TemplateOnly skips package installation in ModeInstallJob.
	TemplateOnly bool

	// Packages are the packages for ModeInstallPackages.
	Packages []string

	// NoDependency installs only the named packages.
	NoDependency bool

	// Output is the archive file or directory for ModeArchive.
	Output string
}

func (r Request) targets() []string {
	switch r.Mode {
	case ModeInstallPackages:
		return r.Packages
	case ModeInstallJob, ModeArchive:
		return []string{r.Job}
	default:
		return nil
	}
}

// Result contains the outcome of Run.
type Result struct {
	Mode        Mode
	Job         JobResult
	Packages    []packager.Result
	ArchivePath string
	ReleaseFile string
	Summary     release.Summary
	Duration    time.Duration
}

type handler func(b *Builder, ctx context.Context, req Request, res *Result) error

var handlers = map[Mode]handler{
	ModeInstallJob:      (*Builder).runInstallJob,
	ModeInstallPackages: (*Builder).runInstallPackages,
	ModeArchive:         (*Builder).runArchive,
	ModeShowRelease:     (*Builder).runShowRelease,
}

// Run executes req and records its outcome in the metrics recorder and the
// journal.
func (b *Builder) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{Mode: req.Mode}

	h, ok := handlers[req.Mode]
	if !ok {
		return res, errors.ValidationError("unknown run mode").
			WithContext("mode", req.Mode.String()).Build()
	}

	mode := req.Mode.String()
	rel := b.repo.Release()
	b.journal.RunStarted(ctx, eventstore.RunStartedMeta{
		Mode:           mode,
		Release:        rel.Name,
		ReleaseVersion: rel.Version,
		Targets:        req.targets(),
		InstallDir:     b.opts.InstallDir,
	})

	err := h(b, ctx, req, res)
	res.Duration = time.Since(start)

	b.recorder.ObserveRunDuration(mode, res.Duration)
	b.recorder.IncRunOutcome(mode, resultLabel(err))
	b.journal.RunFinished(ctx, res.Duration, err)

	if err != nil {
		b.logger.Error("Run failed", logfields.Mode(mode), logfields.Error(err))
		return res, err
	}
	b.logger.Info("Run complete", logfields.Mode(mode), logfields.Since(start))
	return res, nil
}

func (b *Builder) runInstallJob(ctx context.Context, req Request, res *Result) error {
	if err := b.InitializeEnvironment(); err != nil {
		return err
	}
	job, err := b.InstallJob(ctx, req.Job, req.TemplateOnly)
	res.Job = job
	res.Packages = job.Packages
	return err
}

func (b *Builder) runInstallPackages(ctx context.Context, req Request, res *Result) error {
	if err := b.InitializeEnvironment(); err != nil {
		return err
	}
	pkgs, err := b.InstallPackages(ctx, req.Packages, req.NoDependency)
	res.Packages = pkgs
	return err
}

func (b *Builder) runArchive(ctx context.Context, req Request, res *Result) error {
	p, err := b.Archive(ctx, req.Job, req.Output)
	res.ArchivePath = p
	return err
}

func (b *Builder) runShowRelease(_ context.Context, _ Request, res *Result) error {
	res.ReleaseFile = b.ReleaseFile()
	res.Summary = b.repo.Summary()
	return nil
}
