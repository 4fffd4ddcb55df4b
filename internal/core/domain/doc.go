// Package domain defines the core domain models for kvmesh.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Entry: one key/value slot of a shard, with its active flag
//   - Limits: key and value length bounds enforced before any shard is touched
//   - Errors: coded errors shared by the store engine and the transports
//   - API keys: generation and argon2id hashing of client credentials
package domain
