// Package replication forwards store writes to a follower node.
//
// Replication is fire-and-forget. Writes are queued in a bounded channel
// and sent by a fixed pool of workers as
//
//	POST <follower>/set/<key>/<value>
//
// which is the write route of another kvmesh server. A full queue drops the
// write. A failed send is logged and counted. Neither ever reaches the
// caller of the store.
package replication
