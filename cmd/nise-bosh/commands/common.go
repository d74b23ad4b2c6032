package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/WuLonghui/nise-bosh/internal/builder"
	"github.com/WuLonghui/nise-bosh/internal/config"
	"github.com/WuLonghui/nise-bosh/internal/eventstore"
	"github.com/WuLonghui/nise-bosh/internal/logfields"
	"github.com/WuLonghui/nise-bosh/internal/metrics"
)

// Global carries the process streams into subcommands.
type Global struct {
	Out io.Writer
	In  io.Reader
	// Interactive enables the pterm confirmation prompt.
	Interactive bool
}

// NewGlobal returns a Global bound to the process streams.
func NewGlobal() *Global {
	return &Global{
		Out:         os.Stdout,
		In:          os.Stdin,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
}

// CLI definition & global flags.
type CLI struct {
	Config         string           `name:"config" help:"YAML file with default options" type:"path" env:"NISE_BOSH_CONFIG"`
	InstallDir     string           `short:"d" name:"install-dir" help:"Install directory (default /var/vcap)" env:"NISE_BOSH_INSTALL_DIR"`
	WorkingDir     string           `name:"working-dir" help:"Temporary working directory (default /tmp/nise_bosh)" env:"NISE_BOSH_WORKING_DIR"`
	IP             string           `short:"n" name:"ip" help:"IP address for this host" env:"NISE_BOSH_IP"`
	Index          *int             `short:"i" name:"index" help:"Index number for this host" env:"NISE_BOSH_INDEX"`
	ReleaseFile    string           `short:"r" name:"release-file" help:"Release file" type:"path" env:"NISE_BOSH_RELEASE_FILE"`
	ForceCompile   bool             `short:"f" name:"force-compile" help:"Compile packages even when already installed" env:"NISE_BOSH_FORCE_COMPILE"`
	KeepMonitFiles bool             `name:"keep-monit-files" help:"Keep monit files of other jobs" env:"NISE_BOSH_KEEP_MONIT_FILES"`
	Yes            bool             `short:"y" help:"Assume yes as an answer to all prompts"`
	Verbose        bool             `short:"v" help:"Enable verbose logging"`
	PackagingShell string           `name:"packaging-shell" help:"Shell that runs packaging scripts (default \"bash -e\")" env:"NISE_BOSH_PACKAGING_SHELL"`
	Journal        string           `name:"journal" help:"SQLite file recording install events" type:"path" env:"NISE_BOSH_JOURNAL"`
	MetricsFile    string           `name:"metrics-file" help:"Write Prometheus metrics to this textfile" type:"path" env:"NISE_BOSH_METRICS_FILE"`
	Version        kong.VersionFlag `name:"version" help:"Show version and exit"`

	Install  InstallCmd  `cmd:"" help:"Install a job: packages, templates and monit files"`
	Packages PackagesCmd `cmd:"" help:"Install specific packages"`
	Archive  ArchiveCmd  `cmd:"" help:"Create an archive for a job"`
	Release  ReleaseCmd  `cmd:"" help:"Show the selected release file"`
	History  HistoryCmd  `cmd:"" help:"List journaled runs or show the events of one run"`

	logger *slog.Logger
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
	return nil
}

// Logger returns the logger configured by AfterApply.
func (c *CLI) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Options layers the config file, the environment and the flags.
func (c *CLI) Options(releaseDir, manifestPath string) (config.Options, error) {
	opts, err := config.Load(c.Config)
	if err != nil {
		return opts, err
	}
	opts.Apply(config.Overrides{
		ReleaseFile:    c.ReleaseFile,
		InstallDir:     c.InstallDir,
		WorkingDir:     c.WorkingDir,
		IP:             c.IP,
		Index:          c.Index,
		ForceCompile:   c.ForceCompile,
		KeepMonitFiles: c.KeepMonitFiles,
		PackagingShell: c.PackagingShell,
		JournalPath:    c.Journal,
		MetricsFile:    c.MetricsFile,
	})
	opts.ReleaseDir = releaseDir
	opts.ManifestPath = manifestPath
	return opts, nil
}

// session is a Builder plus the resources that outlive a single call.
type session struct {
	*builder.Builder
	opts     config.Options
	recorder *metrics.PrometheusRecorder
	store    *eventstore.SQLiteStore
	logger   *slog.Logger
}

func (c *CLI) openSession(releaseDir, manifestPath string) (*session, error) {
	opts, err := c.Options(releaseDir, manifestPath)
	if err != nil {
		return nil, err
	}

	s := &session{opts: opts, logger: c.Logger()}
	builderOpts := []builder.Option{builder.WithLogger(s.logger)}

	if opts.MetricsFile != "" {
		s.recorder = metrics.NewPrometheusRecorder(nil)
		builderOpts = append(builderOpts, builder.WithRecorder(s.recorder))
	}
	if opts.JournalPath != "" {
		if s.store, err = eventstore.NewSQLiteStore(opts.JournalPath); err != nil {
			return nil, err
		}
		builderOpts = append(builderOpts, builder.WithJournal(eventstore.NewJournal(s.store, s.logger)))
	}

	if s.Builder, err = builder.New(opts, builderOpts...); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// run executes req and flushes metrics whether or not it succeeded.
func (s *session) run(ctx context.Context, req builder.Request) (*builder.Result, error) {
	defer s.close()
	return s.Run(ctx, req)
}

func (s *session) close() {
	if s.recorder != nil && s.opts.MetricsFile != "" {
		if err := s.recorder.WriteTextfile(s.opts.MetricsFile); err != nil {
			s.logger.Warn("Cannot write metrics file", logfields.Path(s.opts.MetricsFile), logfields.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Cannot close journal", logfields.Error(err))
		}
		s.store = nil
	}
}
