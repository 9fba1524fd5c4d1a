// Package corpus defines the scenario corpus data model and loader for the
// epoch-fork conformance oracle.
//
// A corpus is an array of scenarios, each carrying an epoch graph, an event
// stream, and a declared expectations block. Corpora are authored as JSON
// (YAML is accepted and bridged to JSON) and validated against an embedded
// CUE schema before any simulation runs.
//
// Loading is the only file I/O in the engine. Everything downstream of Load
// operates on immutable in-memory values.
package corpus
