package bufferpool

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astorelabs/astore/page"
)

type memSource struct {
	mu    sync.Mutex
	pages map[uint64][]byte
	reads, writes int
}

func newMemSource() *memSource { return &memSource{pages: make(map[uint64][]byte)} }

func (s *memSource) ReadPage(id uint64) (*page.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	buf, ok := s.pages[id]
	if !ok {
		p := page.New(id, page.TypeData)
		p.UpdateChecksum()
		return p, nil
	}
	return page.Deserialize(buf)
}

func (s *memSource) WritePage(id uint64, p *page.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	p.UpdateChecksum()
	s.pages[id] = p.Serialize()
	return nil
}

func TestPinMissThenHit(t *testing.T) {
	src := newMemSource()
	pool := New(4, src, nil)

	d1, err := pool.Pin(100)
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.EqualValues(t, 1, pool.Stats().Snapshot().Misses)

	require.NoError(t, pool.Unpin(100))

	d2, err := pool.Pin(100)
	require.NoError(t, err)
	assert.Same(t, d1, d2)
	assert.EqualValues(t, 1, pool.Stats().Snapshot().Hits)
	require.NoError(t, pool.Unpin(100))
}

func TestAllocateMarksDirtyAndFlushPersists(t *testing.T) {
	src := newMemSource()
	pool := New(2, src, nil)

	d, err := pool.Allocate(55, page.TypeLeaf)
	require.NoError(t, err)
	assert.True(t, d.IsDirty())

	require.NoError(t, pool.Flush(55))
	assert.False(t, d.IsDirty())
	assert.Equal(t, 1, src.writes)

	require.NoError(t, pool.Unpin(55))
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	src := newMemSource()
	pool := New(1, src, nil)

	d, err := pool.Allocate(1, page.TypeData)
	require.NoError(t, err)
	require.NoError(t, pool.Unpin(1))
	_ = d

	_, err = pool.Pin(2)
	require.NoError(t, err)
	require.NoError(t, pool.Unpin(2))

	assert.Equal(t, 1, src.writes, "evicting the dirty page 1 should have flushed it")
}

func TestBufferPoolFullWhenEverythingPinned(t *testing.T) {
	src := newMemSource()
	pool := New(2, src, nil)

	_, err := pool.Pin(1)
	require.NoError(t, err)
	_, err = pool.Pin(2)
	require.NoError(t, err)

	_, err = pool.Pin(3)
	require.Error(t, err)
	assert.True(t, IsBufferPoolFull(err))
}

func TestUnpinUnknownPageReturnsError(t *testing.T) {
	pool := New(2, newMemSource(), nil)
	err := pool.Unpin(999)
	require.Error(t, err)
	assert.True(t, IsPageNotResident(err))
}

func TestDoubleUnpinPanics(t *testing.T) {
	pool := New(2, newMemSource(), nil)
	_, err := pool.Pin(1)
	require.NoError(t, err)
	require.NoError(t, pool.Unpin(1))

	assert.Panics(t, func() {
		pool.descriptors[mustSlot(t, pool, 1)].Unpin()
	})
}

func mustSlot(t *testing.T, pool *BufferPool, id uint64) int32 {
	slot, ok := pool.index.Lookup(id)
	require.True(t, ok)
	return slot
}

func TestFlushAllWritesEveryDirtyPage(t *testing.T) {
	src := newMemSource()
	pool := New(8, src, nil)
	for i := uint64(1); i <= 5; i++ {
		_, err := pool.Allocate(i, page.TypeData)
		require.NoError(t, err)
	}
	require.NoError(t, pool.FlushAll())
	assert.Equal(t, 5, src.writes)
}

func TestLRUPromotionOnSecondTouch(t *testing.T) {
	pool := New(4, newMemSource(), nil)
	for i := int32(0); i < 4; i++ {
		pool.lru.Touch(i)
	}
	_, cold, hot := pool.lru.Snapshot()
	assert.Equal(t, 4, cold)
	assert.Equal(t, 0, hot)

	pool.lru.Touch(0)
	_, cold2, hot2 := pool.lru.Snapshot()
	assert.Equal(t, 3, cold2)
	assert.Equal(t, 1, hot2)
}

func TestConcurrentPinUnpinNoRace(t *testing.T) {
	src := newMemSource()
	pool := New(16, src, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := uint64(i%10) + 1
			d, err := pool.Pin(id)
			if err != nil {
				return
			}
			_ = fmt.Sprint(d.Tag())
			pool.Unpin(id)
		}(i)
	}
	wg.Wait()
}
