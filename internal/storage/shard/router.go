package shard

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Router names accepted by NewRouter.
const (
	RouterPoly31  = "poly31"
	RouterMurmur3 = "murmur3"
)

// Router maps a key to a shard index in [0, Count()).
//
// Implementations are pure: the same key always maps to the same index for
// the lifetime of the router.
type Router interface {
	Route(key string) int
	Count() int
}

// NewRouter returns the router registered under name for n shards.
// An empty name selects poly31.
func NewRouter(name string, n int) (Router, error) {
	if n < 1 {
		return nil, fmt.Errorf("shard count must be >= 1, got %d", n)
	}
	switch name {
	case "", RouterPoly31:
		return Poly31(n), nil
	case RouterMurmur3:
		return Murmur3(n), nil
	default:
		return nil, fmt.Errorf("unknown router %q", name)
	}
}

// Poly31 is a polynomial rolling hash router: h = (h*31 + b) mod n over the
// key bytes. The accumulator is reduced at every step so it never overflows.
type Poly31 int

// Route implements Router.
func (p Poly31) Route(key string) int {
	n := uint64(p)
	var h uint64
	for i := 0; i < len(key); i++ {
		h = (h*31 + uint64(key[i])) % n
	}
	return int(h)
}

// Count implements Router.
func (p Poly31) Count() int { return int(p) }

// Murmur3 routes by murmur3.Sum32(key) mod n.
type Murmur3 int

// Route implements Router.
func (m Murmur3) Route(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(m))
}

// Count implements Router.
func (m Murmur3) Count() int { return int(m) }
