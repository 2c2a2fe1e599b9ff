package bufferpool

import "go.uber.org/atomic"

// Stats are the buffer pool's running counters, each a lock-free atomic
// so Pin/Unpin's hot path never contends on a mutex just to count itself.
type Stats struct {
	Hits           atomic.Uint64
	Misses         atomic.Uint64
	Flushes        atomic.Uint64
	Evictions      atomic.Uint64
	DirtyEvictions atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats, safe to log or export
// without holding any lock on the live counters.
type StatsSnapshot struct {
	Hits, Misses, Flushes, Evictions, DirtyEvictions uint64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Hits:           s.Hits.Load(),
		Misses:         s.Misses.Load(),
		Flushes:        s.Flushes.Load(),
		Evictions:      s.Evictions.Load(),
		DirtyEvictions: s.DirtyEvictions.Load(),
	}
}

// HitRatio returns Hits/(Hits+Misses), or 0 if there have been no lookups.
func (sn StatsSnapshot) HitRatio() float64 {
	total := sn.Hits + sn.Misses
	if total == 0 {
		return 0
	}
	return float64(sn.Hits) / float64(total)
}
