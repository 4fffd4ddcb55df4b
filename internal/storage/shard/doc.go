// Package shard implements the partitioned slot storage behind the store
// engine.
//
// A Table holds a fixed number of Shards. Each Shard is a fixed-capacity
// slot array with its own mutex, so operations on keys that route to
// different shards never wait on each other. A Router decides which shard
// owns a key.
package shard
