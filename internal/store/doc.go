// Package store provides the SQLite-backed archive of oracle runs.
//
// A run is one full evaluation of a corpus: a uuid run_id plus one serialized
// envelope per scenario. The archive exists for the replay command, which
// re-simulates a corpus and diffs fresh envelopes byte-for-byte against a
// recorded run to verify determinism across time and builds.
//
// The store sits deliberately outside the algorithmic core: the engine never
// reads from it, and a run without --db touches no database at all.
package store
