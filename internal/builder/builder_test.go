package builder

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WuLonghui/nise-bosh/internal/config"
	"github.com/WuLonghui/nise-bosh/internal/eventstore"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/metrics"
	"github.com/WuLonghui/nise-bosh/internal/packager"
	"github.com/WuLonghui/nise-bosh/internal/release"
	"github.com/WuLonghui/nise-bosh/internal/testutil/releasetest"
)

const testIP = "10.0.0.5"

type fakeRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes map[string]metrics.ResultLabel
	packages map[string]int
	removed  int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: map[string]metrics.ResultLabel{}, packages: map[string]int{}}
}

func (f *fakeRecorder) IncRunOutcome(mode string, result metrics.ResultLabel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[mode] = result
}

func (f *fakeRecorder) IncPackageResult(action string, _ metrics.ResultLabel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packages[action]++
}

func (f *fakeRecorder) AddFragmentsRemoved(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed += n
}

type env struct {
	fx      *releasetest.Fixture
	opts    config.Options
	install *releasetest.FileAssertions
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fx := releasetest.New(t)
	root := t.TempDir()
	opts := config.Defaults()
	opts.ReleaseDir = fx.Dir
	opts.ManifestPath = fx.ManifestPath
	opts.InstallDir = filepath.Join(root, "install")
	opts.WorkingDir = filepath.Join(root, "working")
	opts.PackagingShell = "sh -e"
	return &env{fx: fx, opts: opts, install: releasetest.NewFileAssertions(t, opts.InstallDir)}
}

func (e *env) builder(t *testing.T, mutate func(*config.Options), opts ...Option) *Builder {
	t.Helper()
	o := e.opts
	if mutate != nil {
		mutate(&o)
	}
	opts = append([]Option{WithIPDetector(func() string { return testIP })}, opts...)
	b, err := New(o, opts...)
	require.NoError(t, err)
	require.NoError(t, b.InitializeEnvironment())
	return b
}

func TestNew(t *testing.T) {
	e := newEnv(t)

	t.Run("loads release and manifest", func(t *testing.T) {
		b := e.builder(t, nil)
		assert.Equal(t, e.fx.ReleaseFile, b.ReleaseFile())
		assert.True(t, filepath.IsAbs(b.Options().InstallDir))
	})

	t.Run("missing release directory", func(t *testing.T) {
		o := e.opts
		o.ReleaseDir = "/not/exist"
		_, err := New(o)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryRepository))
	})

	t.Run("no release index", func(t *testing.T) {
		o := e.opts
		o.ReleaseDir = e.fx.NoIndexDir
		_, err := New(o)
		require.Error(t, err)
		ce, ok := errors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, release.MissingIndexMessage, ce.Message())
	})

	t.Run("invalid ip", func(t *testing.T) {
		o := e.opts
		o.IP = "miku"
		_, err := New(o)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	})
}

func TestInitializeEnvironment(t *testing.T) {
	e := newEnv(t)
	b := e.builder(t, nil)
	require.NoError(t, b.InitializeEnvironment())
	for _, d := range []string{"packages", "data/packages", "jobs", "monit/job"} {
		st, err := os.Stat(filepath.Join(e.opts.InstallDir, d))
		require.NoError(t, err)
		assert.True(t, st.IsDir(), d)
	}
	_, err := os.Stat(e.opts.WorkingDir)
	require.NoError(t, err)
}

func TestExistence(t *testing.T) {
	b := newEnv(t).builder(t, nil)
	assert.True(t, b.JobExists(releasetest.SuccessJob))
	assert.True(t, b.JobExists("angel"), "release job without manifest entry")
	assert.False(t, b.JobExists("not_exist_job"))
	assert.True(t, b.PackageExists("miku"))
	assert.False(t, b.PackageExists("not_exist_package"))
}

func TestResolveDependency(t *testing.T) {
	e := newEnv(t)
	b := e.builder(t, nil)

	order, err := b.ResolveDependency([]string{"tako", "kaito"})
	require.NoError(t, err)
	assert.Equal(t, []string{"miku", "luca", "tako", "kaito"}, order)

	order, err = b.ResolveDependency([]string{"meiko"})
	require.NoError(t, err)
	assert.Equal(t, []string{"miku", "luca", "tako", "meiko"}, order)

	cyclic := e.builder(t, func(o *config.Options) { o.ReleaseFile = e.fx.CyclicReleaseFile })
	_, err = cyclic.ResolveDependency([]string{"ren"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryDependency))
}

func TestPlan(t *testing.T) {
	b := newEnv(t).builder(t, nil)
	plan, err := b.Plan(releasetest.SuccessJob)
	require.NoError(t, err)
	assert.Equal(t, Plan{
		Job: releasetest.SuccessJob,
		Templates: []TemplatePlan{
			{Name: "angel", Packages: []string{"miku", "luca"}},
			{Name: "yellows", Packages: []string{"miku"}},
		},
	}, plan)

	_, err = b.Plan("not_exist_job")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestInstallPackages(t *testing.T) {
	targets := []string{"meiko", "kaito", "tako"}

	t.Run("installs dependencies", func(t *testing.T) {
		e := newEnv(t)
		b := e.builder(t, nil)
		results, err := b.InstallPackages(t.Context(), targets, false)
		require.NoError(t, err)
		require.Len(t, results, 5)
		for _, p := range append(targets, "luca") {
			e.install.AssertContent(filepath.Join("packages", p, "dayo"), "tenshi\n")
		}
		e.install.AssertContent("packages/miku/dayo", "miku 1.1-dev\n")
	})

	t.Run("no dependency", func(t *testing.T) {
		e := newEnv(t)
		b := e.builder(t, nil)
		results, err := b.InstallPackages(t.Context(), targets, true)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, p := range targets {
			e.install.AssertContent(filepath.Join("packages", p, "dayo"), "tenshi\n")
		}
		e.install.AssertFileNotExists("packages/luca")
		e.install.AssertFileNotExists("packages/miku")
	})

	t.Run("unknown package", func(t *testing.T) {
		b := newEnv(t).builder(t, nil)
		_, err := b.InstallPackages(t.Context(), []string{"zzz", "miku", "not_exist_package"}, false)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
		assert.Contains(t, err.Error(), "not_exist_package, zzz")
	})

	t.Run("packaging failure", func(t *testing.T) {
		b := newEnv(t).builder(t, nil)
		_, err := b.InstallPackages(t.Context(), []string{releasetest.FailPackage}, false)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryPackaging))
	})
}

func TestInstallPackageIdempotence(t *testing.T) {
	e := newEnv(t)
	b := e.builder(t, nil)
	dayo := filepath.Join(e.opts.InstallDir, "packages", "miku", "dayo")
	versionDir := filepath.Join(e.opts.InstallDir, "data", "packages", "miku", "1.1-dev")

	_, err := b.InstallPackages(t.Context(), []string{"miku"}, false)
	require.NoError(t, err)
	e.install.AssertContent("packages/miku/dayo", "miku 1.1-dev\n").
		AssertSymlink("packages/miku", versionDir)

	require.NoError(t, os.Remove(dayo))
	results, err := b.InstallPackages(t.Context(), []string{"miku"}, false)
	require.NoError(t, err)
	assert.Equal(t, packager.ActionSkipped, results[0].Action)
	e.install.AssertFileNotExists("packages/miku/dayo").
		AssertSymlink("packages/miku", versionDir)

	force := e.builder(t, func(o *config.Options) { o.ForceCompile = true })
	results, err = force.InstallPackages(t.Context(), []string{"miku"}, false)
	require.NoError(t, err)
	assert.Equal(t, packager.ActionCompiled, results[0].Action)
	e.install.AssertContent("packages/miku/dayo", "miku 1.1-dev\n").
		AssertSymlink("packages/miku", versionDir)
}

func checkTemplates(t *testing.T, e *env, index, ip string) {
	t.Helper()
	e.install.AssertContent("jobs/angel/config/miku.conf", "tenshi\n"+index+"\n"+ip+"\n").
		AssertContent(filepath.Join("monit", "job", releasetest.AngelMonit), "monit mode manual")
}

func TestInstallJob(t *testing.T) {
	t.Run("installs packages and templates", func(t *testing.T) {
		e := newEnv(t)
		b := e.builder(t, nil)
		res, err := b.InstallJob(t.Context(), releasetest.SuccessJob, false)
		require.NoError(t, err)
		assert.Len(t, res.Packages, 2)
		e.install.AssertContent("packages/miku/dayo", "miku 1.1-dev\n").
			AssertContent("packages/luca/dayo", "tenshi\n").
			AssertFileExists("data/packages").
			AssertContent("monit/job/0001_legna.yellows.monitrc", "yellow_monit mode manual")
		checkTemplates(t, e, "0", testIP)
	})

	t.Run("template only", func(t *testing.T) {
		e := newEnv(t)
		b := e.builder(t, nil)
		res, err := b.InstallJob(t.Context(), releasetest.SuccessJob, true)
		require.NoError(t, err)
		assert.Empty(t, res.Packages)
		e.install.AssertFileNotExists("packages/miku/dayo").
			AssertFileNotExists("packages/luca/dayo")
		checkTemplates(t, e, "0", testIP)
	})

	t.Run("ip and index", func(t *testing.T) {
		e := newEnv(t)
		b := e.builder(t, func(o *config.Options) {
			o.IP = "39.39.39.39"
			o.Index = 39
		})
		_, err := b.InstallJob(t.Context(), releasetest.SuccessJob, true)
		require.NoError(t, err)
		e.install.AssertContent("jobs/angel/config/miku.conf", "tenshi\n39\n39.39.39.39\n")
	})

	t.Run("unknown job", func(t *testing.T) {
		b := newEnv(t).builder(t, nil)
		_, err := b.InstallJob(t.Context(), "not_exist_job", false)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	})

	t.Run("canceled", func(t *testing.T) {
		b := newEnv(t).builder(t, nil)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := b.InstallJob(ctx, releasetest.SuccessJob, false)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestInstallJobMonitFiles(t *testing.T) {
	e := newEnv(t)
	yellowMonit := filepath.Join("monit", "job", releasetest.YellowsMonit)

	_, err := e.builder(t, nil).InstallJob(t.Context(), releasetest.SuccessJob, true)
	require.NoError(t, err)

	rec := newFakeRecorder()
	_, err = e.builder(t, nil, WithRecorder(rec)).InstallJob(t.Context(), "yellows", true)
	require.NoError(t, err)
	e.install.AssertFileNotExists(filepath.Join("monit", "job", releasetest.AngelMonit)).
		AssertContent(yellowMonit, "yellow_monit mode manual")
	assert.Equal(t, 2, rec.removed)

	keep := e.builder(t, func(o *config.Options) { o.KeepMonitFiles = true })
	_, err = keep.InstallJob(t.Context(), releasetest.SuccessJob, true)
	require.NoError(t, err)
	checkTemplates(t, e, "0", testIP)
	e.install.AssertFileExists(yellowMonit)
}

func TestArchive(t *testing.T) {
	e := newEnv(t)
	b := e.builder(t, nil)
	dir := t.TempDir()

	p, err := b.Archive(t.Context(), releasetest.SuccessJob, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assets-legna-1.3-dev.tar.gz"), p)

	extracted := t.TempDir()
	require.NoError(t, release.ExtractTarGz(p, extracted))
	releasetest.NewFileAssertions(t, extracted).
		AssertFileExists("release.yml").
		AssertFileExists("release/.dev_builds/jobs/angel/1.1-dev.tgz").
		AssertFileExists("release/.dev_builds/jobs/yellows/0.1-dev.tgz").
		AssertFileExists("release/.final_builds/packages/luca/1.tgz").
		AssertFileExists("release/.dev_builds/packages/miku/1.1-dev.tgz")

	named := filepath.Join(dir, "miku.tar.gz")
	p, err = b.Archive(t.Context(), releasetest.SuccessJob, named)
	require.NoError(t, err)
	assert.Equal(t, named, p)
}

func TestArchiveMissingJobArtifact(t *testing.T) {
	e := newEnv(t)
	b := e.builder(t, nil)
	require.NoError(t, os.Remove(filepath.Join(e.fx.Dir, ".dev_builds", "jobs", "angel", "1.1-dev.tgz")))

	out := filepath.Join(t.TempDir(), "legna.tar.gz")
	_, err := b.Archive(t.Context(), releasetest.SuccessJob, out)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryArchive))
	assert.NoFileExists(t, out)
}

func TestRun(t *testing.T) {
	e := newEnv(t)
	store, err := eventstore.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	journal := eventstore.NewJournal(store, nil)
	rec := newFakeRecorder()
	b := e.builder(t, nil, WithJournal(journal), WithRecorder(rec))

	res, err := b.Run(t.Context(), Request{Mode: ModeInstallJob, Job: releasetest.SuccessJob})
	require.NoError(t, err)
	assert.Len(t, res.Packages, 2)
	assert.Equal(t, metrics.ResultSuccess, rec.outcomes["install"])
	assert.Equal(t, 2, rec.packages[string(packager.ActionCompiled)])

	events, err := store.GetByRunID(t.Context(), journal.RunID())
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type())
	}
	assert.Equal(t, eventstore.TypeRunStarted, types[0])
	assert.Equal(t, eventstore.TypeRunFinished, types[len(types)-1])
	assert.Contains(t, types, eventstore.TypePackageInstalled)
	assert.Contains(t, types, eventstore.TypeTemplateRendered)
	assert.Contains(t, types, eventstore.TypeFragmentWritten)

	res, err = b.Run(t.Context(), Request{Mode: ModeShowRelease})
	require.NoError(t, err)
	assert.Equal(t, e.fx.ReleaseFile, res.ReleaseFile)
	assert.Equal(t, releasetest.ReleaseName, res.Summary.Name)

	_, err = b.Run(t.Context(), Request{Mode: ModeInstallPackages, Packages: []string{releasetest.FailPackage}})
	require.Error(t, err)
	assert.Equal(t, metrics.ResultFailed, rec.outcomes["packages"])

	_, err = b.Run(t.Context(), Request{Mode: Mode(42)})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "install", ModeInstallJob.String())
	assert.Equal(t, "archive", ModeArchive.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}

func TestDetectIP(t *testing.T) {
	ip := DetectIP()
	if ip != "" {
		assert.True(t, config.IsDottedQuad(ip))
	}
}
