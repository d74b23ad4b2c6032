package metrics

import "time"

// ResultLabel enumerates run and package result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for installer runs.
type Recorder interface {
	ObserveRunDuration(mode string, d time.Duration)
	IncRunOutcome(mode string, result ResultLabel)
	ObservePackageDuration(pkg, action string, d time.Duration)
	IncPackageResult(action string, result ResultLabel)
	AddTemplatesRendered(job string, n int)
	AddFragmentsRemoved(n int)
	SetArchiveBytes(n int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(string, time.Duration)             {}
func (NoopRecorder) IncRunOutcome(string, ResultLabel)                    {}
func (NoopRecorder) ObservePackageDuration(string, string, time.Duration) {}
func (NoopRecorder) IncPackageResult(string, ResultLabel)                 {}
func (NoopRecorder) AddTemplatesRendered(string, int)                     {}
func (NoopRecorder) AddFragmentsRemoved(int)                              {}
func (NoopRecorder) SetArchiveBytes(int64)                                {}
