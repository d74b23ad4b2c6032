package builder

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/WuLonghui/nise-bosh/internal/eventstore"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/metrics"
	"github.com/WuLonghui/nise-bosh/internal/packager"
	"github.com/WuLonghui/nise-bosh/internal/resolve"
	"github.com/WuLonghui/nise-bosh/internal/util/sets"
)

// ResolveDependency returns names and all their dependencies in install order.
func (b *Builder) ResolveDependency(names []string) ([]string, error) {
	return resolve.Resolve(b.repo, names)
}

// InstallPackages installs the named packages. Unless noDependency is set,
// their dependencies are installed first.
func (b *Builder) InstallPackages(ctx context.Context, names []string, noDependency bool) ([]packager.Result, error) {
	missing := sets.New[string]()
	for _, name := range names {
		if !b.repo.PackageExists(name) {
			missing.Add(name)
		}
	}
	if missing.Len() > 0 {
		unknown := sets.Sorted(missing)
		return nil, errors.NotFoundError("package not found: "+strings.Join(unknown, ", ")).
			WithContext("packages", unknown).Build()
	}

	order := names
	if !noDependency {
		var err error
		if order, err = b.ResolveDependency(names); err != nil {
			return nil, err
		}
	}
	return b.installAll(ctx, order)
}

func (b *Builder) installAll(ctx context.Context, order []string) ([]packager.Result, error) {
	b.logger.Info("Installing packages", logfields.Count(len(order)))
	results := make([]packager.Result, 0, len(order))
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		res, err := b.installer.Install(ctx, name)
		if err != nil {
			b.recorder.ObservePackageDuration(name, string(packager.ActionCompiled), time.Since(start))
			b.recorder.IncPackageResult(string(packager.ActionCompiled), resultLabel(err))
			return results, err
		}

		b.recorder.ObservePackageDuration(name, string(res.Action), res.Duration)
		b.recorder.IncPackageResult(string(res.Action), metrics.ResultSuccess)
		b.journal.PackageInstalled(ctx, eventstore.PackageInstalledMeta{
			Package:  res.Package,
			Version:  res.Version,
			Action:   string(res.Action),
			Relinked: res.Relinked,
			Duration: res.Duration,
		})
		results = append(results, res)
	}
	return results, nil
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
