// Package storage provides the store engine for kvmesh.
//
// The engine owns a fixed shard table and combines it with a persister,
// a replicator and an audit log:
//
//   - Shard table: fixed-capacity slot arrays, one mutex per shard
//   - Persister: full snapshots, as a text file or in Badger
//   - Replicator: best-effort copy of every set to a follower
//   - Audit log: one line per successful set or delete
//
// Lifecycle:
//
//  1. New builds the table and the persister
//  2. Recover replays the last snapshot through Set
//  3. Start launches the persistence loop
//  4. Close stops the loop, writes a final snapshot and releases collaborators
//
// The persistence loop wakes on a timer and after writes, and only writes
// when something changed. Snapshot I/O never happens under a shard lock.
package storage
