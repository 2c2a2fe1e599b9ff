package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvictPicksLeastRecentlyUsedSlot mirrors a size-4 pool touched by ids
// 1,2,3,4 in order (slots 0..3): the next eviction must take slot 0, the
// oldest access, not slot 3, the newest.
func TestEvictPicksLeastRecentlyUsedSlot(t *testing.T) {
	l := newLRUK(4, Partitions{HotPercent: 50, ColdPercent: 30, FreePercent: 20})
	for i := int32(0); i < 4; i++ {
		l.AdmitFree(i)
	}
	l.Touch(0)
	l.Touch(1)
	l.Touch(2)
	l.Touch(3)

	victim, ok := l.Evict(func(int32) bool { return true })
	require.True(t, ok)
	assert.Equal(t, int32(0), victim, "the first-touched slot should be evicted first")
}

func TestEvictSkipsPinnedSlots(t *testing.T) {
	l := newLRUK(3, Partitions{HotPercent: 50, ColdPercent: 30, FreePercent: 20})
	for i := int32(0); i < 3; i++ {
		l.AdmitFree(i)
	}
	l.Touch(0)
	l.Touch(1)
	l.Touch(2)

	pinned := map[int32]bool{0: true}
	victim, ok := l.Evict(func(s int32) bool { return !pinned[s] })
	require.True(t, ok)
	assert.Equal(t, int32(1), victim, "slot 0 is the true LRU but pinned, so slot 1 should be chosen")
}

func TestHotPromotionDemotesColdestHotSlotWhenFull(t *testing.T) {
	l := newLRUK(4, Partitions{HotPercent: 50, ColdPercent: 30, FreePercent: 20})
	for i := int32(0); i < 4; i++ {
		l.AdmitFree(i)
	}
	require.Equal(t, 2, l.hotCap)

	for _, slot := range []int32{0, 1, 2, 3} {
		l.Touch(slot)
		l.Touch(slot)
	}
	_, _, hot := l.Snapshot()
	assert.Equal(t, 2, hot, "hot partition must never exceed its configured capacity")
	assert.Equal(t, inCold, l.where[0], "the earliest-promoted slot should have been demoted back to cold")
	assert.Equal(t, inHot, l.where[3], "the most recently promoted slot should remain hot")
}
