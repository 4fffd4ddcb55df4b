// Package audit writes the append-only operation log of the store.
package audit
