// Package cmap provides a concurrent map keyed by strings.
//
// Keys are spread over independently locked shards with murmur3, so
// unrelated keys rarely contend:
//
//	m := cmap.New[*rate.Limiter]()
//	lim := m.GetOrCompute(ip, func() *rate.Limiter { return rate.NewLimiter(r, b) })
//
// All operations are safe for concurrent use. Range and DeleteIf visit
// one shard at a time and therefore do not observe a single snapshot.
package cmap
