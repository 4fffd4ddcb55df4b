// Package service provides services shared by the kvmesh transports.
//
//   - Authenticator: API key verification against a plain key or an
//     argon2id hash, with a TTL-bounded LRU of recently verified keys
//   - RateLimiterRegistry: per-client token buckets
//
// Both are safe for concurrent use.
package service
