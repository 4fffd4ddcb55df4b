package shard

import (
	"sync"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

// Shard is a fixed-capacity array of slots guarded by one mutex.
//
// A slot is claimed by the first set of a new key and released (tombstoned)
// by delete. The slot array never grows or shrinks. index maps each active
// key to its slot and is maintained under mu.
type Shard struct {
	mu    sync.Mutex
	slots []domain.Entry
	index map[string]int
}

// Stats is a point-in-time view of one shard.
type Stats struct {
	Active   int `json:"active"`
	Capacity int `json:"capacity"`
}

// NewShard creates a shard with capacity slots.
func NewShard(capacity int) *Shard {
	return &Shard{
		slots: make([]domain.Entry, capacity),
		index: make(map[string]int, capacity),
	}
}

// Set stores value under key.
//
// An active key is overwritten in place. A new key claims the lowest
// inactive slot. When no slot is free, ErrCapacityExceeded is returned and
// the shard is left unchanged.
func (s *Shard) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		s.slots[i].Value = value
		return nil
	}

	for i := range s.slots {
		if !s.slots[i].Active {
			s.slots[i] = domain.Entry{Key: key, Value: value, Active: true}
			s.index[key] = i
			return nil
		}
	}
	return domain.ErrCapacityExceeded
}

// Get returns the value stored under key.
func (s *Shard) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	return s.slots[i].Value, true
}

// Delete tombstones key. It reports whether an active entry was removed.
func (s *Shard) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.slots[i].Active = false
	s.slots[i].Value = ""
	delete(s.index, key)
	return true
}

// AppendActive appends a copy of every active entry, in slot order, to dst.
func (s *Shard) AppendActive(dst []domain.Entry) []domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.slots {
		if e.Active {
			dst = append(dst, e)
		}
	}
	return dst
}

// Stats returns the active count and capacity.
func (s *Shard) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Active: len(s.index), Capacity: len(s.slots)}
}

// slotOf returns the slot index holding key, or -1.
func (s *Shard) slotOf(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[key]; ok {
		return i
	}
	return -1
}
