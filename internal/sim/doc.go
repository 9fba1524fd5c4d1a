// Package sim is the deterministic fork-oracle core: a pure, order-sensitive
// fold over one scenario's scheduled event stream.
//
// One Simulate call covers fork detection, hash-chain integrity checking,
// fork-choice reconciliation, and latency/drop metrics, then evaluates the
// scenario's declared expectations into the result envelope. The fold owns
// all mutable state locally; nothing survives across scenarios, so distinct
// scenarios can run in parallel.
//
// Determinism discipline: no output-affecting traversal ever walks a Go map.
// Every ordered read goes through the explicitly-maintained lists built
// during the run, and all timestamps are integer milliseconds.
package sim
