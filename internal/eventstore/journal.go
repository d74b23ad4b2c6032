package eventstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WuLonghui/nise-bosh/internal/logfields"
)

// Journal appends the events of one run. A Journal without a store discards
// events. Write failures are logged and never fail the run.
type Journal struct {
	store  Store
	runID  string
	logger *slog.Logger
}

// NewJournal starts a journal for a new run with a fresh run id.
func NewJournal(store Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, runID: uuid.NewString(), logger: logger}
}

// RunID returns the id stamped on every event of this run.
func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

// Enabled reports whether events are persisted.
func (j *Journal) Enabled() bool {
	return j != nil && j.store != nil
}

// RunStarted records the start of the run.
func (j *Journal) RunStarted(ctx context.Context, meta RunStartedMeta) {
	if j.Enabled() {
		j.record(ctx)(NewRunStarted(j.runID, meta))
	}
}

// RunFinished records the end of the run. runErr is nil on success.
func (j *Journal) RunFinished(ctx context.Context, duration time.Duration, runErr error) {
	if !j.Enabled() {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	j.record(ctx)(NewRunFinished(j.runID, duration, msg))
}

// PackageInstalled records a compiled or skipped package.
func (j *Journal) PackageInstalled(ctx context.Context, meta PackageInstalledMeta) {
	if j.Enabled() {
		j.record(ctx)(NewPackageInstalled(j.runID, meta))
	}
}

// TemplateRendered records a rendered job template.
func (j *Journal) TemplateRendered(ctx context.Context, job, template, path string) {
	if j.Enabled() {
		j.record(ctx)(NewTemplateRendered(j.runID, job, template, path))
	}
}

// FragmentWritten records a written monit fragment.
func (j *Journal) FragmentWritten(ctx context.Context, job, fragment string) {
	if j.Enabled() {
		j.record(ctx)(NewFragmentEvent(j.runID, TypeFragmentWritten, job, fragment))
	}
}

// FragmentRemoved records a removed monit fragment.
func (j *Journal) FragmentRemoved(ctx context.Context, job, fragment string) {
	if j.Enabled() {
		j.record(ctx)(NewFragmentEvent(j.runID, TypeFragmentRemoved, job, fragment))
	}
}

// ArchiveWritten records a written job archive.
func (j *Journal) ArchiveWritten(ctx context.Context, job, path string, size int64) {
	if j.Enabled() {
		j.record(ctx)(NewArchiveWritten(j.runID, job, path, size))
	}
}

func (j *Journal) record(ctx context.Context) func(*Record, error) {
	return func(event *Record, err error) {
		j.append(ctx, event, err)
	}
}

func (j *Journal) append(ctx context.Context, event *Record, err error) {
	if err != nil {
		j.logger.Warn("Cannot build journal event", logfields.Error(err))
		return
	}
	if appendErr := j.store.Append(ctx, event); appendErr != nil {
		j.logger.Warn("Cannot write journal event",
			logfields.RunID(j.runID),
			slog.String("event_type", event.Type()),
			logfields.Error(appendErr))
	}
}
