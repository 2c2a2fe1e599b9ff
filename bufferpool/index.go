package bufferpool

import "github.com/astorelabs/astore/hashing"

// indexNode is one arena-backed hash-chain link, addressed by its index
// into hashIndex.nodes rather than a pointer, keeping the chain GC-free
// and avoiding raw-pointer chains.
type indexNode struct {
	pageID uint64
	slot   int32
	next   int32 // -1 terminates a chain; also doubles as the freelist link
}

const nilIdx int32 = -1

// hashIndex maps page id -> slot index via FNV-1a bucketing and singly
// linked, arena-backed chains. All structural mutation (Insert/Remove) is
// only ever called while the pool's admission latch is held; Lookup is
// likewise only safe under that same latch, so hashIndex carries no lock
// of its own.
type hashIndex struct {
	buckets  []int32
	nodes    []indexNode
	freeHead int32
}

func newHashIndex(capacity int) *hashIndex {
	nbuckets := capacity
	if nbuckets < 1 {
		nbuckets = 1
	}
	h := &hashIndex{
		buckets: make([]int32, nbuckets),
		nodes:   make([]indexNode, capacity),
	}
	for i := range h.buckets {
		h.buckets[i] = nilIdx
	}
	for i := range h.nodes {
		h.nodes[i].next = int32(i) + 1
	}
	if len(h.nodes) > 0 {
		h.nodes[len(h.nodes)-1].next = nilIdx
		h.freeHead = 0
	} else {
		h.freeHead = nilIdx
	}
	return h
}

func (h *hashIndex) bucketOf(pageID uint64) int {
	return hashing.BucketFNV1a(pageID, len(h.buckets))
}

// Lookup returns the slot holding pageID, if resident.
func (h *hashIndex) Lookup(pageID uint64) (int32, bool) {
	b := h.bucketOf(pageID)
	for n := h.buckets[b]; n != nilIdx; n = h.nodes[n].next {
		if h.nodes[n].pageID == pageID {
			return h.nodes[n].slot, true
		}
	}
	return 0, false
}

// Insert records pageID -> slot. Panics if the arena is exhausted, which
// can only happen if Insert is called more times than Remove plus the
// arena's capacity allows — a fatal hash-index/slot-accounting bug.
func (h *hashIndex) Insert(pageID uint64, slot int32) {
	if h.freeHead == nilIdx {
		panic("bufferpool: hash index arena exhausted")
	}
	n := h.freeHead
	h.freeHead = h.nodes[n].next

	b := h.bucketOf(pageID)
	h.nodes[n].pageID = pageID
	h.nodes[n].slot = slot
	h.nodes[n].next = h.buckets[b]
	h.buckets[b] = n
}

// Remove deletes the entry for pageID, if present.
func (h *hashIndex) Remove(pageID uint64) {
	b := h.bucketOf(pageID)
	prev := nilIdx
	for n := h.buckets[b]; n != nilIdx; n = h.nodes[n].next {
		if h.nodes[n].pageID == pageID {
			if prev == nilIdx {
				h.buckets[b] = h.nodes[n].next
			} else {
				h.nodes[prev].next = h.nodes[n].next
			}
			h.nodes[n] = indexNode{next: h.freeHead}
			h.freeHead = n
			return
		}
		prev = n
	}
}
