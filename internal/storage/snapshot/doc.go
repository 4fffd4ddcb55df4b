// Package snapshot provides the text snapshot file for kvmesh.
//
// A snapshot is a full dump of every active entry, one per line:
//
//	key value
//
// Keys and values are written without escaping, so values containing
// whitespace do not survive a round trip.
//
// Write protocol:
//
//  1. Write all lines to <file>.tmp
//  2. fsync and close the temp file
//  3. Rename it over <file>
//
// The rename is atomic on POSIX filesystems, so a crash leaves either the
// previous snapshot or the new one.
package snapshot
