// Package metrics provides the observability hooks of docsmith builds.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so metrics never need nil checks at call sites:
//
//	rec := metrics.NewPrometheusRecorder(registry)
//	result, err := build.Run(ctx, snap, cfg, build.WithRecorder(rec))
//
// The dev server exposes the registry through HTTPHandler when
// monitoring.metrics.enabled is set.
package metrics
