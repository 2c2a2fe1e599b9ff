package bufferpool

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/astorelabs/astore/page"
)

const (
	dirtyBit     uint64 = 1
	pinCountMask uint64 = ^uint64(0xFF) // bits 8-63
	pinIncrement uint64 = 1 << 8
)

// Descriptor is one fixed slot of the buffer pool: a page-id tag, a packed
// 64-bit state word (bit0 = dirty, bits8-63 = pin count) updated with a
// single CAS per transition, an I/O lock serializing disk access for this
// slot, and a content lock guarding p.page itself. Lock ordering:
// ioLock before contentLock, matching the pool-level admission-latch before
// slot-I/O-lock before slot-content-lock hierarchy.
type Descriptor struct {
	tag   atomic.Uint64
	state atomic.Uint64

	ioLock      sync.RWMutex
	contentLock sync.RWMutex
	page        *page.Page

	_ [cacheLineSize]byte
}

func newDescriptor() *Descriptor {
	return &Descriptor{}
}

// Tag returns the resident page id, or 0 if the slot is empty.
func (d *Descriptor) Tag() uint64 { return d.tag.Load() }

// PinCount returns the current pin count.
func (d *Descriptor) PinCount() int {
	return int(d.state.Load() >> 8)
}

// IsDirty reports whether the dirty bit is set.
func (d *Descriptor) IsDirty() bool {
	return d.state.Load()&dirtyBit != 0
}

// Pin increments the pin count with Acquire-ordered CAS.
func (d *Descriptor) Pin() {
	for {
		old := d.state.Load()
		if d.state.CAS(old, old+pinIncrement) {
			return
		}
	}
}

// Unpin decrements the pin count. A decrement below zero is a fatal
// invariant violation (double-unpin) and panics rather than returning a
// reported error.
func (d *Descriptor) Unpin() {
	for {
		old := d.state.Load()
		if old&pinCountMask == 0 {
			panic("bufferpool: unpin of a slot with zero pin count")
		}
		if d.state.CAS(old, old-pinIncrement) {
			return
		}
	}
}

// MarkDirty sets the dirty bit. Callers must hold contentLock (for write)
// at the point the underlying page bytes actually change; MarkDirty itself
// only records the flag and may be called under a read lock once the
// caller is done mutating.
func (d *Descriptor) MarkDirty() {
	for {
		old := d.state.Load()
		if old&dirtyBit != 0 {
			return
		}
		if d.state.CAS(old, old|dirtyBit) {
			return
		}
	}
}

// ClearDirty unsets the dirty bit, used after a successful flush.
func (d *Descriptor) ClearDirty() {
	for {
		old := d.state.Load()
		if old&dirtyBit == 0 {
			return
		}
		if d.state.CAS(old, old&^dirtyBit) {
			return
		}
	}
}

// Page returns the resident page. Callers that only read must hold
// contentLock for reading; callers mutating the body must hold it for
// writing and call MarkDirty before releasing it.
func (d *Descriptor) Page() *page.Page { return d.page }

func (d *Descriptor) reset() {
	d.tag.Store(0)
	d.state.Store(0)
	d.page = nil
}
