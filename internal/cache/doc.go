// Package cache provides the generic LRU store that keeps texcache's
// surfaces keyed by GPU address and surface parameters.
//
//	c := cache.New[key, *Surface](4096, func(_ key, s *Surface) { s.Destroy() })
//	s, hit, err := c.GetOrCreate(k, create)
//
// # Eviction
//
// The limit is soft: exceeding it evicts the least recently used entries
// down to three quarters of the limit, oldest first, calling the eviction
// callback for each. A limit of 0 disables eviction.
//
// # Thread Safety
//
// Cache is not safe for concurrent use.
package cache
