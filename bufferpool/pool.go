// Package bufferpool implements the fixed-slot page cache: a hash-chain
// index for O(1) lookup, an LRU-K (K=2) hot/cold/free replacement
// discipline, and per-slot pin/dirty bookkeeping packed into a single
// atomic state word, split across a pool, an LRU structure, and a
// descriptor type, built around an arena-backed index and a strict
// admission-latch ordering.
package bufferpool

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/astorelabs/astore/logger"
	"github.com/astorelabs/astore/page"
)

// PageSource is whatever backs a miss or a flush: ordinarily a tablespace
// bound to one id via storage.TablespaceManager.Bind. The pool never
// imports the storage package directly, keeping it layered strictly on
// top of the tablespace manager's public surface.
type PageSource interface {
	ReadPage(pageID uint64) (*page.Page, error)
	WritePage(pageID uint64, p *page.Page) error
}

// BufferPool is the fixed-capacity, process-wide page cache.
type BufferPool struct {
	mu sync.Mutex // admission latch: lock-ordering position 1

	descriptors []*Descriptor
	index       *hashIndex
	lru         *lruK

	source PageSource
	stats  *Stats
	log    *logrus.Logger
}

// New builds a pool of exactly capacity slots, all initially free.
func New(capacity int, source PageSource, log *logrus.Logger) *BufferPool {
	if log == nil {
		log = logger.Default()
	}
	p := &BufferPool{
		descriptors: make([]*Descriptor, capacity),
		index:       newHashIndex(capacity),
		lru:         newLRUK(capacity, Partitions{HotPercent: 50, ColdPercent: 30, FreePercent: 20}),
		source:      source,
		stats:       &Stats{},
		log:         log,
	}
	for i := range p.descriptors {
		p.descriptors[i] = newDescriptor()
		p.lru.AdmitFree(int32(i))
	}
	return p
}

// Stats returns the pool's live counters.
func (p *BufferPool) Stats() *Stats { return p.stats }

// Capacity returns the fixed slot count.
func (p *BufferPool) Capacity() int { return len(p.descriptors) }

// SetPartitions applies new hot/cold/free capacity targets, typically from
// an AutoTuner sample. It only rebounds the LRU-K partitions under the
// admission latch; it never evicts or demotes retroactively.
func (p *BufferPool) SetPartitions(parts Partitions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.SetCapacities(parts, len(p.descriptors))
}

// Pin resolves pageID to a resident, pinned Descriptor, reading it from
// the PageSource on a miss. The caller must Unpin exactly once per Pin.
func (p *BufferPool) Pin(pageID uint64) (*Descriptor, error) {
	p.mu.Lock()
	if slot, ok := p.index.Lookup(pageID); ok {
		d := p.descriptors[slot]
		d.Pin()
		p.lru.Touch(slot)
		p.mu.Unlock()
		p.stats.Hits.Inc()
		return d, nil
	}
	p.stats.Misses.Inc()

	slot, oldTag, evicted, err := p.selectVictim()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	d := p.descriptors[slot]
	d.Pin()
	p.mu.Unlock()

	if err := p.loadInto(d, slot, oldTag, evicted, pageID, nil); err != nil {
		// loadInto's failure path has already reset the slot (pin count
		// included) and returned it to the free partition.
		return nil, err
	}
	return d, nil
}

// Allocate behaves like Pin for a page id that has never been written: it
// claims a slot exactly as Pin's miss path does, but installs a freshly
// constructed page instead of reading one, and marks it dirty since its
// only copy is now in memory.
func (p *BufferPool) Allocate(pageID uint64, typ page.Type) (*Descriptor, error) {
	p.mu.Lock()
	if _, ok := p.index.Lookup(pageID); ok {
		p.mu.Unlock()
		return nil, ErrPageAlreadyResident
	}
	slot, oldTag, evicted, err := p.selectVictim()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	d := p.descriptors[slot]
	d.Pin()
	p.mu.Unlock()

	fresh := page.New(pageID, typ)
	if err := p.loadInto(d, slot, oldTag, evicted, pageID, fresh); err != nil {
		return nil, err
	}
	d.MarkDirty()
	return d, nil
}

// selectVictim picks a slot to (re)populate, removing any prior occupant
// from the index. Caller must hold p.mu.
func (p *BufferPool) selectVictim() (slot int32, oldTag uint64, evicted bool, err error) {
	s, ok := p.lru.Evict(func(c int32) bool { return p.descriptors[c].PinCount() == 0 })
	if !ok {
		return 0, 0, false, ErrBufferPoolFull
	}
	tag := p.descriptors[s].Tag()
	if tag != 0 {
		p.index.Remove(tag)
		return s, tag, true, nil
	}
	return s, 0, false, nil
}

// loadInto performs the slot's I/O under its own I/O lock, outside the
// admission latch: flush the evicted occupant if dirty, then install
// either freshPage (Allocate) or the result of source.ReadPage (Pin), then
// re-acquire the admission latch just long enough to publish the new
// index entry.
func (p *BufferPool) loadInto(d *Descriptor, slot int32, oldTag uint64, evicted bool, pageID uint64, freshPage *page.Page) error {
	d.ioLock.Lock()
	defer d.ioLock.Unlock()

	if evicted {
		d.contentLock.RLock()
		dirty, old := d.IsDirty(), d.page
		d.contentLock.RUnlock()
		if dirty && old != nil {
			if err := p.source.WritePage(oldTag, old); err != nil {
				p.log.Errorf("bufferpool: flush of evicted page %d failed: %v", oldTag, err)
				p.reclaimOnFailure(slot)
				return err
			}
			p.stats.DirtyEvictions.Inc()
		}
		p.stats.Evictions.Inc()
	}

	var newPage *page.Page
	if freshPage != nil {
		newPage = freshPage
	} else {
		np, err := p.source.ReadPage(pageID)
		if err != nil {
			p.reclaimOnFailure(slot)
			return err
		}
		newPage = np
	}

	d.contentLock.Lock()
	d.page = newPage
	d.tag.Store(pageID)
	d.contentLock.Unlock()
	d.ClearDirty()

	p.mu.Lock()
	p.index.Insert(pageID, slot)
	p.lru.Touch(slot)
	p.mu.Unlock()
	return nil
}

// reclaimOnFailure returns a slot to the free partition after a failed
// load, so the failed attempt doesn't permanently strand a slot.
func (p *BufferPool) reclaimOnFailure(slot int32) {
	p.mu.Lock()
	d := p.descriptors[slot]
	d.reset()
	p.lru.AdmitFree(slot)
	p.mu.Unlock()
}

// Unpin decrements the pin count for pageID.
func (p *BufferPool) Unpin(pageID uint64) error {
	p.mu.Lock()
	slot, ok := p.index.Lookup(pageID)
	p.mu.Unlock()
	if !ok {
		return ErrPageNotResident
	}
	p.descriptors[slot].Unpin()
	return nil
}

// MarkDirty flags pageID's slot dirty. The caller must have already
// mutated the page body under its own understanding of the content lock
// (typically by holding a pin and writing through Descriptor.Page()).
func (p *BufferPool) MarkDirty(pageID uint64) error {
	p.mu.Lock()
	slot, ok := p.index.Lookup(pageID)
	p.mu.Unlock()
	if !ok {
		return ErrPageNotResident
	}
	p.descriptors[slot].MarkDirty()
	return nil
}

// Flush writes pageID's content through the PageSource if dirty, then
// clears the dirty bit. Flush never implies fsync: callers needing
// durability must sync the underlying file themselves.
func (p *BufferPool) Flush(pageID uint64) error {
	p.mu.Lock()
	slot, ok := p.index.Lookup(pageID)
	p.mu.Unlock()
	if !ok {
		return ErrPageNotResident
	}
	return p.flushSlot(slot)
}

func (p *BufferPool) flushSlot(slot int32) error {
	d := p.descriptors[slot]
	d.ioLock.Lock()
	defer d.ioLock.Unlock()

	d.contentLock.RLock()
	dirty, tag, content := d.IsDirty(), d.Tag(), d.page
	d.contentLock.RUnlock()
	if !dirty || content == nil {
		return nil
	}
	if err := p.source.WritePage(tag, content); err != nil {
		return err
	}
	d.ClearDirty()
	p.stats.Flushes.Inc()
	return nil
}

// FlushAll writes every currently dirty resident page, continuing past
// individual failures and returning the first error encountered, if any.
func (p *BufferPool) FlushAll() error {
	var firstErr error
	for slot, d := range p.descriptors {
		if d.Tag() == 0 || !d.IsDirty() {
			continue
		}
		if err := p.flushSlot(int32(slot)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
