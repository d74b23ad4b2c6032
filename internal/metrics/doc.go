// Package metrics provides observability hooks for installer runs.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default; PrometheusRecorder collects into a registry that the CLI writes
// to a node-exporter textfile after the run:
//
//	recorder := metrics.NewPrometheusRecorder(nil)
//	b, _ := builder.New(opts, builder.WithRecorder(recorder))
//	...
//	_ = recorder.WriteTextfile("/var/lib/node_exporter/nise_bosh.prom")
package metrics
