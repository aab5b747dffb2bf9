// Package mvcc implements the multi-versioned key-value store the query
// layer executes against.
//
// Writes follow a two-phase protocol: Prewrite places an exclusive lock on
// every mutated key (anchored to a primary key), Commit replaces the locks
// with committed versions at the commit timestamp. Reads go through a
// Snapshot fixed at a start timestamp: a snapshot observes every version
// committed at or before its timestamp, and surfaces any blocking
// uncommitted lock as an ErrKeyLocked outcome instead of data.
//
// The query-execution core only ever reads. Prewrite, Commit and Rollback
// exist for the server's write path and for building test states.
package mvcc
