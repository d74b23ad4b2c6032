package releasetest

import (
	"archive/tar"
	"bytes"
	"crypto/sha1" // #nosec G505 -- matches BOSH artifact checksums
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

// Canonical fixture values.
const (
	ReleaseName    = "assets"
	ReleaseVersion = "1.3-dev"
	OldVersion     = "1.2-dev"

	SuccessJob   = "legna"
	FailJob      = "fail_job"
	FailPackage  = "fail_packaging"
	AngelMonit   = "0000_legna.angel.monitrc"
	YellowsMonit = "0000_yellows.yellows.monitrc"
)

// Package describes one generated package.
type Package struct {
	Name         string
	Version      string
	Dependencies []string
	Script       string
	Final        bool
}

// Job describes one generated release job.
type Job struct {
	Name      string
	Version   string
	Manifest  map[string]any
	Templates map[string]string
	Monit     string
	Final     bool
}

func dayoScript(content string) string {
	return "printf '" + content + "' > \"${BOSH_INSTALL_TARGET}/dayo\"\n"
}

// Packages returns the package set of the fixture release.
func Packages() []Package {
	return []Package{
		{Name: "miku", Version: "1.1-dev", Script: "printf 'miku %s\\n' \"${BOSH_PACKAGE_VERSION}\" > \"${BOSH_INSTALL_TARGET}/dayo\"\n"},
		{Name: "luca", Version: "1", Script: dayoScript(`tenshi\n`), Final: true},
		{Name: "tako", Version: "0.3-dev", Dependencies: []string{"miku", "luca"}, Script: dayoScript(`tenshi\n`)},
		{Name: "kaito", Version: "2.1-dev", Dependencies: []string{"tako"}, Script: dayoScript(`tenshi\n`)},
		{Name: "meiko", Version: "0.1-dev", Dependencies: []string{"miku", "tako"}, Script: dayoScript(`tenshi\n`)},
		{Name: FailPackage, Version: "0.1-dev", Script: "echo 'compiling fail_packaging'\nexit 3\n"},
	}
}

// Jobs returns the release jobs of the fixture release.
func Jobs() []Job {
	return []Job{
		{
			Name:    "angel",
			Version: "1.1-dev",
			Manifest: map[string]any{
				"name":     "angel",
				"packages": []string{"miku", "luca"},
				"properties": map[string]any{
					"miku.name":  map[string]any{"description": "singer"},
					"angel.mode": map[string]any{"default": "manual"},
				},
			},
			Templates: map[string]string{
				"miku.conf.erb": "{{ p \"miku.name\" }}\n{{ .Index }}\n{{ .IP }}\n",
			},
			Monit: "monit mode {{ p \"angel.mode\" }}",
		},
		{
			Name:    "yellows",
			Version: "0.1-dev",
			Manifest: map[string]any{
				"name":     "yellows",
				"packages": []string{"miku"},
			},
			Monit: "yellow_monit mode manual",
		},
		{
			Name:    FailJob,
			Version: "0.1-dev",
			Manifest: map[string]any{
				"name":     FailJob,
				"packages": []string{FailPackage},
			},
		},
	}
}

// templateDestinations gives the job.MF templates mapping for a job.
var templateDestinations = map[string][][2]string{
	"angel": {{"miku.conf.erb", "config/miku.conf"}},
}

// Fixture is a generated release repository and deploy manifest.
type Fixture struct {
	Dir                string
	ManifestPath       string
	CyclicReleaseFile  string
	NoIndexDir         string
	ReleaseFile        string
	OldReleaseFile     string
	CorruptReleaseFile string
}

// New writes the fixture release repository under a fresh temp dir.
func New(t testing.TB) *Fixture {
	t.Helper()
	root := t.TempDir()
	f := &Fixture{
		Dir:          filepath.Join(root, "release"),
		ManifestPath: filepath.Join(root, "manifest.yml"),
		NoIndexDir:   filepath.Join(root, "release_noindex"),
	}

	mkdir(t, f.Dir, f.NoIndexDir)
	writeYAML(t, filepath.Join(f.Dir, "config", "dev.yml"), map[string]any{"dev_name": ReleaseName})
	writeYAML(t, filepath.Join(f.Dir, "config", "final.yml"), map[string]any{"final_name": ReleaseName})

	var pkgRecords []map[string]any
	for _, p := range Packages() {
		sha := f.writePackage(t, p)
		pkgRecords = append(pkgRecords, map[string]any{
			"name":         p.Name,
			"version":      p.Version,
			"fingerprint":  fingerprint(p.Name, p.Version),
			"sha1":         sha,
			"dependencies": p.Dependencies,
		})
	}

	var jobRecords []map[string]any
	for _, j := range Jobs() {
		sha := f.writeJob(t, j)
		jobRecords = append(jobRecords, map[string]any{
			"name":        j.Name,
			"version":     j.Version,
			"fingerprint": fingerprint(j.Name, j.Version),
			"sha1":        sha,
		})
	}

	f.ReleaseFile = filepath.Join(f.Dir, "dev_releases", ReleaseName+"-"+ReleaseVersion+".yml")
	writeYAML(t, f.ReleaseFile, map[string]any{
		"name":        ReleaseName,
		"version":     ReleaseVersion,
		"commit_hash": "3d1bc7e0",
		"jobs":        jobRecords,
		"packages":    pkgRecords,
	})

	f.OldReleaseFile = filepath.Join(f.Dir, "dev_releases", ReleaseName+"-"+OldVersion+".yml")
	writeYAML(t, f.OldReleaseFile, map[string]any{
		"name":     ReleaseName,
		"version":  OldVersion,
		"jobs":     jobRecords[:1],
		"packages": pkgRecords[:2],
	})

	writeYAML(t, filepath.Join(f.Dir, "dev_releases", "index.yml"), map[string]any{
		"builds": map[string]any{
			"8b3c5d7e": map[string]any{"version": OldVersion},
			"0a1f9c2b": map[string]any{"version": ReleaseVersion},
		},
	})

	corrupt := slices.Clone(jobRecords)
	corrupt[0] = map[string]any{"name": "angel", "version": "1.1-dev", "sha1": "0000000000000000000000000000000000000000"}
	f.CorruptReleaseFile = filepath.Join(root, "release_corrupt.yml")
	writeYAML(t, f.CorruptReleaseFile, map[string]any{
		"name": ReleaseName, "version": ReleaseVersion, "jobs": corrupt, "packages": pkgRecords,
	})

	f.CyclicReleaseFile = filepath.Join(root, "release_cyclic_dependency.yml")
	writeYAML(t, f.CyclicReleaseFile, map[string]any{
		"name":    ReleaseName,
		"version": "0.1-dev",
		"jobs":    []any{},
		"packages": []map[string]any{
			{"name": "ren", "version": "1", "dependencies": []string{"rin"}},
			{"name": "rin", "version": "1", "dependencies": []string{"len"}},
			{"name": "len", "version": "1", "dependencies": []string{"ren"}},
		},
	})

	writeYAML(t, f.ManifestPath, Manifest())
	return f
}

// Manifest returns the fixture deploy manifest.
func Manifest() map[string]any {
	return map[string]any{
		"name": "nise",
		"releases": []map[string]any{
			{"name": ReleaseName, "version": ReleaseVersion},
		},
		"jobs": []map[string]any{
			{"name": SuccessJob, "template": []string{"angel", "yellows"}, "instances": 1},
			{"name": "yellows", "template": "yellows", "instances": 1},
			{"name": FailJob, "template": FailJob, "instances": 1},
		},
		"properties": map[string]any{
			"miku": map[string]any{"name": "tenshi"},
		},
	}
}

func (f *Fixture) writePackage(t testing.TB, p Package) string {
	t.Helper()
	files := map[string]string{
		"packaging":        p.Script,
		p.Name + "/README": p.Name + " sources\n",
	}
	dest := f.buildPath("packages", p.Name, p.Version, p.Final)
	writeTarGz(t, dest, files)
	if p.Final {
		f.writeFinalIndex(t, "packages", p.Name, p.Version, dest)
	}
	return fileSHA1(t, dest)
}

func (f *Fixture) writeJob(t testing.TB, j Job) string {
	t.Helper()
	mf := map[string]any{}
	for k, v := range j.Manifest {
		mf[k] = v
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(mf); err != nil {
		t.Fatalf("encode job.MF: %v", err)
	}
	if dests := templateDestinations[j.Name]; len(dests) > 0 {
		buf.WriteString("templates:\n")
		for _, d := range dests {
			buf.WriteString("  " + d[0] + ": " + d[1] + "\n")
		}
	}

	files := map[string]string{"job.MF": buf.String()}
	if j.Monit != "" {
		files["monit"] = j.Monit
	}
	for name, src := range j.Templates {
		files["templates/"+name] = src
	}

	dest := f.buildPath("jobs", j.Name, j.Version, j.Final)
	writeTarGz(t, dest, files)
	if j.Final {
		f.writeFinalIndex(t, "jobs", j.Name, j.Version, dest)
	}
	return fileSHA1(t, dest)
}

func (f *Fixture) buildPath(kind, name, version string, final bool) string {
	base := ".dev_builds"
	if final {
		base = ".final_builds"
	}
	return filepath.Join(f.Dir, base, kind, name, version+".tgz")
}

func (f *Fixture) writeFinalIndex(t testing.TB, kind, name, version, artifact string) {
	t.Helper()
	writeYAML(t, filepath.Join(f.Dir, ".final_builds", kind, name, "index.yml"), map[string]any{
		"builds": map[string]any{
			fingerprint(name, version): map[string]any{
				"version": version,
				"sha1":    fileSHA1(t, artifact),
			},
		},
	})
}

func fingerprint(name, version string) string {
	sum := sha1.Sum([]byte(name + "/" + version)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

func mkdir(t testing.TB, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o750); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
}

func writeYAML(t testing.TB, p string, v any) {
	t.Helper()
	data, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", p, err)
	}
	mkdir(t, filepath.Dir(p))
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// fixtureTime keeps generated artifacts byte-identical across runs.
var fixtureTime = time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)

func writeTarGz(t testing.TB, p string, files map[string]string) {
	t.Helper()
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, n := range names {
		mode := int64(0o644)
		if n == "packaging" {
			mode = 0o755
		}
		hdr := &tar.Header{Name: "./" + n, Mode: mode, Size: int64(len(files[n])), ModTime: fixtureTime, Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", n, err)
		}
		if _, err := tw.Write([]byte(files[n])); err != nil {
			t.Fatalf("tar write %s: %v", n, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	mkdir(t, filepath.Dir(p))
	if err := os.WriteFile(p, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func fileSHA1(t testing.TB, p string) string {
	t.Helper()
	data, err := os.ReadFile(p) // #nosec G304 -- test fixture path
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	sum := sha1.Sum(data) // #nosec G401
	return hex.EncodeToString(sum[:])
}
