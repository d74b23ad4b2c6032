package eventstore

import (
	"encoding/json"
	"time"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted       = "RunStarted"
	TypeRunFinished      = "RunFinished"
	TypePackageInstalled = "PackageInstalled"
	TypeTemplateRendered = "TemplateRendered"
	TypeFragmentWritten  = "FragmentWritten"
	TypeFragmentRemoved  = "FragmentRemoved"
	TypeArchiveWritten   = "ArchiveWritten"
)

// RunStartedMeta describes the invocation that started a run.
type RunStartedMeta struct {
	Mode           string   `json:"mode"`
	Release        string   `json:"release"`
	ReleaseVersion string   `json:"release_version"`
	Targets        []string `json:"targets"`
	InstallDir     string   `json:"install_dir"`
}

// PackageInstalledMeta describes one package install.
type PackageInstalledMeta struct {
	Package  string        `json:"package"`
	Version  string        `json:"version"`
	Action   string        `json:"action"`
	Relinked bool          `json:"relinked"`
	Duration time.Duration `json:"-"`
}

func newEvent(runID, eventType string, payload any, subject string) (*Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to marshal "+eventType+" payload").
			WithContext("run_id", runID).
			Build()
	}
	return &Record{
		Run:   runID,
		Kind:  eventType,
		About: subject,
		At:    time.Now(),
		Body:  data,
	}, nil
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID string, meta RunStartedMeta) (*Record, error) {
	return newEvent(runID, TypeRunStarted, meta, meta.Mode)
}

// NewRunFinished creates a RunFinished event. errMsg is empty on success.
func NewRunFinished(runID string, duration time.Duration, errMsg string) (*Record, error) {
	return newEvent(runID, TypeRunFinished, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"success":     errMsg == "",
		"error":       errMsg,
	}, "")
}

// NewPackageInstalled creates a PackageInstalled event.
func NewPackageInstalled(runID string, meta PackageInstalledMeta) (*Record, error) {
	return newEvent(runID, TypePackageInstalled, map[string]any{
		"package":     meta.Package,
		"version":     meta.Version,
		"action":      meta.Action,
		"relinked":    meta.Relinked,
		"duration_ms": meta.Duration.Milliseconds(),
	}, meta.Package)
}

// NewTemplateRendered creates a TemplateRendered event.
func NewTemplateRendered(runID, job, template, path string) (*Record, error) {
	return newEvent(runID, TypeTemplateRendered, map[string]any{
		"job":      job,
		"template": template,
		"path":     path,
	}, job)
}

// NewFragmentEvent creates a FragmentWritten or FragmentRemoved event.
func NewFragmentEvent(runID, eventType, job, fragment string) (*Record, error) {
	return newEvent(runID, eventType, map[string]any{
		"job":      job,
		"fragment": fragment,
	}, fragment)
}

// NewArchiveWritten creates an ArchiveWritten event.
func NewArchiveWritten(runID, job, path string, size int64) (*Record, error) {
	return newEvent(runID, TypeArchiveWritten, map[string]any{
		"job":        job,
		"path":       path,
		"size_bytes": size,
	}, job)
}
