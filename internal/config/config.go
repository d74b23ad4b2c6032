package config

import (
	stderrors "errors"
	"io"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/WuLonghui/nise-bosh/internal/foundation"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/packager"
)

const (
	// DefaultInstallDir is the install root of a BOSH agent.
	DefaultInstallDir = "/var/vcap"
	// DefaultWorkingDir holds scratch directories for package compilation.
	DefaultWorkingDir = "/tmp/nise_bosh"
	// EnvPrefix prefixes every environment variable read by the CLI.
	EnvPrefix = "NISE_BOSH_"
)

// Options configures a Builder.
type Options struct {
	ReleaseDir     string `yaml:"-"`
	ManifestPath   string `yaml:"-"`
	ReleaseFile    string `yaml:"release_file,omitempty"`
	InstallDir     string `yaml:"install_dir"`
	WorkingDir     string `yaml:"working_dir"`
	IP             string `yaml:"ip,omitempty"`
	Index          int    `yaml:"index"`
	ForceCompile   bool   `yaml:"force_compile"`
	KeepMonitFiles bool   `yaml:"keep_monit_files"`
	PackagingShell string `yaml:"packaging_shell"`
	JournalPath    string `yaml:"journal,omitempty"`
	MetricsFile    string `yaml:"metrics_file,omitempty"`
}

// Defaults returns the built-in option values.
func Defaults() Options {
	return Options{
		InstallDir:     DefaultInstallDir,
		WorkingDir:     DefaultWorkingDir,
		PackagingShell: packager.DefaultShell,
	}
}

// Load reads a YAML options file over the defaults. An empty path returns the
// defaults. Environment variables in the file are expanded.
func Load(path string) (Options, error) {
	opts := Defaults()
	if path == "" {
		return opts, nil
	}

	// #nosec G304 -- path is the operator-supplied --config flag
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	}

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !stderrors.Is(err, io.EOF) {
		return opts, errors.WrapError(err, errors.CategoryConfig, "failed to parse config file").
			WithContext("path", path).
			Build()
	}
	return opts, nil
}

// Overrides carries values set on the command line or in the environment.
// Empty strings and a nil Index leave the underlying value alone; the boolean
// switches can only turn a setting on.
type Overrides struct {
	ReleaseFile    string
	InstallDir     string
	WorkingDir     string
	IP             string
	Index          *int
	ForceCompile   bool
	KeepMonitFiles bool
	PackagingShell string
	JournalPath    string
	MetricsFile    string
}

// Apply layers ov over o.
func (o *Options) Apply(ov Overrides) {
	setString(&o.ReleaseFile, ov.ReleaseFile)
	setString(&o.InstallDir, ov.InstallDir)
	setString(&o.WorkingDir, ov.WorkingDir)
	setString(&o.IP, ov.IP)
	setString(&o.PackagingShell, ov.PackagingShell)
	setString(&o.JournalPath, ov.JournalPath)
	setString(&o.MetricsFile, ov.MetricsFile)
	if ov.Index != nil {
		o.Index = *ov.Index
	}
	o.ForceCompile = o.ForceCompile || ov.ForceCompile
	o.KeepMonitFiles = o.KeepMonitFiles || ov.KeepMonitFiles
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func optionsChain() *foundation.ValidatorChain[Options] {
	return foundation.NewValidatorChain(
		foundation.Check("ip", "dotted_quad", "IP address must be a dotted-quad IPv4 address",
			func(o Options) string { return o.IP },
			func(ip string) bool { return ip == "" || IsDottedQuad(ip) }),
		foundation.Check("index", "non_negative", "host index must not be negative",
			func(o Options) int { return o.Index }, foundation.NonNegative),
		foundation.Check("install_dir", "required", "install directory is required",
			func(o Options) string { return o.InstallDir }, foundation.NotBlank),
		foundation.Check("working_dir", "required", "working directory is required",
			func(o Options) string { return o.WorkingDir }, foundation.NotBlank),
		foundation.Check("packaging_shell", "required", "packaging shell is required",
			func(o Options) string { return o.PackagingShell }, foundation.NotBlank),
	)
}

// Validate checks host identity and required directories.
func (o Options) Validate() error {
	return optionsChain().Validate(o).ToError()
}

// IsDottedQuad reports whether s is an IPv4 address in a.b.c.d form.
func IsDottedQuad(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
