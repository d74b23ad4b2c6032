package archive

import (
	"archive/tar"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/release"
	"github.com/WuLonghui/nise-bosh/internal/testutil/releasetest"
)

var legna = Contents{
	Job:      releasetest.SuccessJob,
	Jobs:     []string{"angel", "yellows"},
	Packages: []string{"miku", "luca"},
}

func readArchive(t *testing.T, p string) (names []string, files map[string][]byte) {
	t.Helper()
	f, err := os.Open(p) // #nosec G304 -- test output
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	files = map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		names = append(names, hdr.Name)
		files[hdr.Name] = data
	}
	return names, files
}

func newArchiver(t *testing.T) (*Archiver, *releasetest.Fixture) {
	t.Helper()
	fx := releasetest.New(t)
	repo, err := release.Load(fx.Dir, "")
	require.NoError(t, err)
	return New(repo, nil), fx
}

func TestArchiveIntoDirectory(t *testing.T) {
	a, fx := newArchiver(t)
	dir := t.TempDir()

	out, err := a.Archive(context.Background(), legna, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assets-legna-1.3-dev.tar.gz"), out)

	names, files := readArchive(t, out)
	assert.IsIncreasing(t, names)
	for _, want := range []string{
		"release.yml",
		"release/dev_releases/assets-1.3-dev.yml",
		"release/dev_releases/index.yml",
		"release/config/dev.yml",
		"release/.dev_builds/jobs/angel/1.1-dev.tgz",
		"release/.dev_builds/jobs/yellows/0.1-dev.tgz",
		"release/.final_builds/packages/luca/1.tgz",
		"release/.final_builds/packages/luca/index.yml",
		"release/.dev_builds/packages/miku/1.1-dev.tgz",
	} {
		assert.Contains(t, names, want)
	}

	descriptor, err := os.ReadFile(fx.ReleaseFile)
	require.NoError(t, err)
	assert.Equal(t, descriptor, files["release.yml"])
	assert.Contains(t, string(files["release/dev_releases/index.yml"]), "version: 1.3-dev")
}

func TestArchiveToFilePath(t *testing.T) {
	a, _ := newArchiver(t)
	out := filepath.Join(t.TempDir(), "nested", "miku.tar.gz")

	got, err := a.Archive(context.Background(), legna, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.FileExists(t, out)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestArchiveIsReproducible(t *testing.T) {
	a, _ := newArchiver(t)
	dir := t.TempDir()

	first, err := a.Archive(context.Background(), legna, filepath.Join(dir, "a.tar.gz"))
	require.NoError(t, err)
	second, err := a.Archive(context.Background(), legna, filepath.Join(dir, "b.tar.gz"))
	require.NoError(t, err)

	x, err := os.ReadFile(first)
	require.NoError(t, err)
	y, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestArchiveMissingArtifact(t *testing.T) {
	a, fx := newArchiver(t)
	require.NoError(t, os.Remove(filepath.Join(fx.Dir, ".dev_builds", "packages", "miku", "1.1-dev.tgz")))

	out := filepath.Join(t.TempDir(), "x.tar.gz")
	_, err := a.Archive(context.Background(), legna, out)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryArchive))
	assert.NoFileExists(t, out)
}

func TestArchiveLoadsAsRepository(t *testing.T) {
	a, _ := newArchiver(t)
	out, err := a.Archive(context.Background(), legna, t.TempDir())
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, release.ExtractTarGz(out, dest))

	repo, err := release.Load(filepath.Join(dest, "release"), "")
	require.NoError(t, err)
	assert.Equal(t, "1.3-dev", repo.Release().Version)
	spec, err := repo.Job("angel")
	require.NoError(t, err)
	assert.Equal(t, []string{"miku", "luca"}, spec.Packages)
	assert.True(t, repo.IsFinal(release.KindPackage, "luca", "1"))
}

func TestArchiveCancelled(t *testing.T) {
	a, _ := newArchiver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Archive(ctx, legna, filepath.Join(t.TempDir(), "x.tar.gz"))
	assert.Error(t, err)
}

func TestArchiveCorruptFinalIndex(t *testing.T) {
	a, fx := newArchiver(t)
	index := filepath.Join(fx.Dir, ".final_builds", "packages", "luca", "index.yml")
	require.NoError(t, os.WriteFile(index, []byte("builds: [not, a, map"), 0o600))

	_, err := a.Archive(context.Background(), legna, filepath.Join(t.TempDir(), "x.tar.gz"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryArchive))
	assert.Contains(t, err.Error(), "invalid final build index")
}

func TestCheckJobs(t *testing.T) {
	a, fx := newArchiver(t)
	require.NoError(t, a.CheckJobs(legna.Jobs))

	require.NoError(t, os.Remove(filepath.Join(fx.Dir, ".dev_builds", "jobs", "yellows", "0.1-dev.tgz")))
	err := a.CheckJobs(legna.Jobs)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryArchive))
}
