package release

import "slices"

// Kind distinguishes the two artifact families stored in a release repository.
type Kind string

const (
	KindJob     Kind = "jobs"
	KindPackage Kind = "packages"
)

// Release is the selected release descriptor (dev_releases/<name>-<version>.yml).
type Release struct {
	Name       string        `yaml:"name"`
	Version    string        `yaml:"version"`
	CommitHash string        `yaml:"commit_hash,omitempty"`
	Jobs       []JobRecord   `yaml:"jobs"`
	Packages   []PackageSpec `yaml:"packages"`
}

// JobRecord identifies one built job inside a release.
type JobRecord struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
	SHA1        string `yaml:"sha1,omitempty"`
}

// PackageSpec identifies one built package and its declared dependencies.
type PackageSpec struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Fingerprint  string   `yaml:"fingerprint,omitempty"`
	SHA1         string   `yaml:"sha1,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// JobNames returns the release job names in descriptor order.
func (r *Release) JobNames() []string {
	names := make([]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		names = append(names, j.Name)
	}
	return names
}

// PackageNames returns the package names sorted alphabetically.
func (r *Release) PackageNames() []string {
	names := make([]string, 0, len(r.Packages))
	for _, p := range r.Packages {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names
}

// TemplateSpec maps a file under templates/ to its install path below jobs/<job>/.
type TemplateSpec struct {
	Source      string
	Destination string
}

// PropertyDef is a property declaration from job.MF.
type PropertyDef struct {
	Description string `yaml:"description,omitempty"`
	Default     any    `yaml:"default,omitempty"`
}

// JobSpec is the parsed job.MF of a release job together with its template sources.
type JobSpec struct {
	Name       string
	Version    string
	Templates  []TemplateSpec
	Packages   []string
	Properties map[string]PropertyDef

	// Monit is the raw monit template, empty when the job ships none.
	Monit string

	sources map[string]string
}

// TemplateSource returns the raw contents of templates/<source>.
func (j *JobSpec) TemplateSource(source string) (string, bool) {
	s, ok := j.sources[source]
	return s, ok
}

// PropertyDefault returns the job.MF default for a dotted property path.
func (j *JobSpec) PropertyDefault(path string) (any, bool) {
	def, ok := j.Properties[path]
	if !ok || def.Default == nil {
		return nil, false
	}
	return def.Default, true
}
