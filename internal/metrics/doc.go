// Package metrics exposes the analysis counters of a build as Prometheus
// metrics.
//
// Collector implements the observer interfaces of the artifact, action and
// middleman packages so those packages stay free of Prometheus imports.
package metrics
