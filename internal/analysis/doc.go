// Package analysis composes the registry components into the environment a
// configured target is analyzed in.
//
// A Build owns the build-global pieces: the artifact identity table, the
// generating-action map, the middleman aggregator and the build-info bridge.
// A Session is the per-target scope. It owns one action registry and one event
// sink, tracks the artifacts it declares, and reports its orphans when it
// finishes.
//
// Sessions of one Build may run concurrently. A session itself is meant to be
// driven by a single goroutine.
package analysis
