package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRelease    = "release"
	KeyVersion    = "version"
	KeyPackage    = "package"
	KeyJob        = "job"
	KeyTemplate   = "template"
	KeyFragment   = "fragment"
	KeyPath       = "path"
	KeyMode       = "mode"
	KeyRunID      = "run_id"
	KeyExitStatus = "exit_status"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Release(name string) slog.Attr  { return slog.String(KeyRelease, name) }
func Version(v string) slog.Attr     { return slog.String(KeyVersion, v) }
func Package(name string) slog.Attr  { return slog.String(KeyPackage, name) }
func Job(name string) slog.Attr      { return slog.String(KeyJob, name) }
func Template(name string) slog.Attr { return slog.String(KeyTemplate, name) }
func Fragment(name string) slog.Attr { return slog.String(KeyFragment, name) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Mode(m string) slog.Attr        { return slog.String(KeyMode, m) }
func RunID(id string) slog.Attr      { return slog.String(KeyRunID, id) }
func ExitStatus(code int) slog.Attr  { return slog.Int(KeyExitStatus, code) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMS, ms)
}

// Since reports the elapsed time from start in milliseconds.
func Since(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
