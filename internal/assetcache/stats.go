package assetcache

// Stats is a snapshot of serving counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Forwards int64 `json:"forwards"`
}

// Stats returns the current counters. Hits are served from the cache,
// misses are lookups that fell through to the origin, and forwards count
// every origin call including requests made before install.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Forwards: c.forwards.Load(),
	}
}
