package shard

import "github.com/yndnr/kvmesh-go/internal/core/domain"

// Table is the fixed set of shards a store engine routes keys across.
// It is created once and never resized.
type Table struct {
	router Router
	shards []*Shard
}

// NewTable creates router.Count() shards of capacity slots each.
func NewTable(router Router, capacity int) *Table {
	t := &Table{
		router: router,
		shards: make([]*Shard, router.Count()),
	}
	for i := range t.shards {
		t.shards[i] = NewShard(capacity)
	}
	return t
}

// Locate returns the shard owning key and its index.
func (t *Table) Locate(key string) (*Shard, int) {
	i := t.router.Route(key)
	return t.shards[i], i
}

// Shard returns the shard at index i.
func (t *Table) Shard(i int) *Shard {
	return t.shards[i]
}

// Len returns the number of shards.
func (t *Table) Len() int {
	return len(t.shards)
}

// Entries copies the active entries of every shard, shard by shard.
// Each shard is locked only while it is being copied.
func (t *Table) Entries() []domain.Entry {
	var out []domain.Entry
	for _, s := range t.shards {
		out = s.AppendActive(out)
	}
	return out
}

// Stats returns per-shard statistics in shard order.
func (t *Table) Stats() []Stats {
	out := make([]Stats, len(t.shards))
	for i, s := range t.shards {
		out[i] = s.Stats()
	}
	return out
}

// Count returns the number of active entries across all shards.
func (t *Table) Count() int {
	n := 0
	for _, s := range t.shards {
		n += s.Stats().Active
	}
	return n
}
