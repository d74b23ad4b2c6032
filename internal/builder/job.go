package builder

import (
	"context"
	"path/filepath"
	"time"

	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/monit"
	"github.com/WuLonghui/nise-bosh/internal/packager"
	"github.com/WuLonghui/nise-bosh/internal/release"
	"github.com/WuLonghui/nise-bosh/internal/templates"
)

const monitTemplateName = "monit"

// JobResult reports what InstallJob did.
type JobResult struct {
	Job       string
	Packages  []packager.Result
	Rendered  []string
	Fragments monit.Result
}

// Plan is the install plan of a deployment job.
type Plan struct {
	Job       string
	Templates []TemplatePlan
}

// TemplatePlan lists the packages of one release job.
type TemplatePlan struct {
	Name     string
	Packages []string
}

// Plan returns the release jobs of job and the packages each one declares.
func (b *Builder) Plan(job string) (Plan, error) {
	names, err := b.JobTemplates(job)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Job: job}
	for _, name := range names {
		pkgs, err := b.JobTemplatePackages(name)
		if err != nil {
			return Plan{}, err
		}
		plan.Templates = append(plan.Templates, TemplatePlan{Name: name, Packages: pkgs})
	}
	return plan, nil
}

// packages returns the dependency-closed package list of a deployment job.
func (b *Builder) packages(job string) ([]string, error) {
	plan, err := b.Plan(job)
	if err != nil {
		return nil, err
	}
	var wanted []string
	for _, t := range plan.Templates {
		wanted = append(wanted, t.Packages...)
	}
	return b.ResolveDependency(wanted)
}

// InstallJob installs a deployment job: its packages (unless templateOnly),
// the rendered templates of each of its release jobs, and monit fragments.
func (b *Builder) InstallJob(ctx context.Context, name string, templateOnly bool) (JobResult, error) {
	start := time.Now()
	res := JobResult{Job: name}
	job, err := b.deploymentJob(name)
	if err != nil {
		return res, err
	}
	logger := b.logger.With(logfields.Job(name))

	if !templateOnly {
		order, err := b.packages(name)
		if err != nil {
			return res, err
		}
		if res.Packages, err = b.installAll(ctx, order); err != nil {
			return res, err
		}
	}

	bindings := templates.Bindings{
		Name:       name,
		Index:      b.opts.Index,
		IP:         b.hostIP(job.StaticIP()),
		Properties: b.properties(name),
	}

	var fragments []monit.Fragment
	for index, tpl := range job.Templates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		spec, err := b.repo.Job(tpl)
		if err != nil {
			return res, err
		}
		bindings.JobName = spec.Name
		bindings.Defaults = spec

		rendered, err := b.renderTemplates(ctx, spec, bindings)
		if err != nil {
			return res, err
		}
		res.Rendered = append(res.Rendered, rendered...)
		b.recorder.AddTemplatesRendered(name, len(rendered))

		if spec.Monit == "" {
			continue
		}
		content, err := templates.Render(spec.Name+"/"+monitTemplateName, spec.Monit, bindings)
		if err != nil {
			return res, err
		}
		fragments = append(fragments, monit.Fragment{Index: index, Template: spec.Name, Content: content})
	}

	if res.Fragments, err = b.monit.WriteFragments(name, fragments); err != nil {
		return res, err
	}
	for _, f := range res.Fragments.Written {
		b.journal.FragmentWritten(ctx, name, f)
	}
	for _, f := range res.Fragments.Removed {
		b.journal.FragmentRemoved(ctx, name, f)
	}
	b.recorder.AddFragmentsRemoved(len(res.Fragments.Removed))

	logger.Info("Job installed",
		logfields.Count(len(res.Rendered)),
		logfields.Since(start))
	return res, nil
}

// renderTemplates writes every template of a release job to jobs/<job>/.
func (b *Builder) renderTemplates(ctx context.Context, spec *release.JobSpec, bindings templates.Bindings) ([]string, error) {
	root := b.path("jobs", spec.Name)
	written := make([]string, 0, len(spec.Templates))
	for _, t := range spec.Templates {
		source, _ := spec.TemplateSource(t.Source)
		content, err := templates.Render(filepath.ToSlash(filepath.Join(spec.Name, t.Source)), source, bindings)
		if err != nil {
			return written, err
		}
		p, err := templates.WriteRendered(root, t.Destination, content, 0o644)
		if err != nil {
			return written, err
		}
		b.logger.Debug("Rendered template",
			logfields.Job(spec.Name),
			logfields.Template(t.Source),
			logfields.Path(p))
		b.journal.TemplateRendered(ctx, spec.Name, t.Source, p)
		written = append(written, p)
	}
	return written, nil
}
