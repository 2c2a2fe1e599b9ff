package bufferpool

import "container/list"

type partition int

const (
	inFree partition = iota
	inCold
	inHot
)

// lruK implements the hot/cold/free LRU-2 replacement discipline: every
// slot starts free, a first touch admits it to cold, a second touch
// promotes it to hot, and eviction prefers free, then the cold tail,
// then the hot tail — never a pinned slot. Each partition keeps the
// most-recently-used entry at its head (Front), so the tail (Back) is
// always the next eviction or demotion candidate. A strict two-touch
// (K=2) promotion rule over a young/old sublist split, with hot bounded
// by hotCap and Snapshot exposed for invariant tests.
type lruK struct {
	free, cold, hot *list.List
	loc             map[int32]*list.Element
	where           map[int32]partition
	touches         map[int32]int

	hotCap, coldCap int
}

func newLRUK(capacity int, parts Partitions) *lruK {
	l := &lruK{
		free:    list.New(),
		cold:    list.New(),
		hot:     list.New(),
		loc:     make(map[int32]*list.Element, capacity),
		where:   make(map[int32]partition, capacity),
		touches: make(map[int32]int, capacity),
	}
	l.SetCapacities(parts, capacity)
	return l
}

// SetCapacities recomputes the hot and cold capacity bounds from parts'
// percentages over total slots. It never evicts or demotes retroactively;
// a shrunk bound is only enforced the next time Touch promotes a slot.
func (l *lruK) SetCapacities(parts Partitions, total int) {
	l.hotCap = total * parts.HotPercent / 100
	l.coldCap = total * parts.ColdPercent / 100
}

func (l *lruK) listFor(p partition) *list.List {
	switch p {
	case inFree:
		return l.free
	case inCold:
		return l.cold
	default:
		return l.hot
	}
}

func (l *lruK) removeFromCurrent(slot int32) {
	if e, ok := l.loc[slot]; ok {
		l.listFor(l.where[slot]).Remove(e)
		delete(l.loc, slot)
	}
}

// AdmitFree places a brand-new, never-resident slot on the free list.
func (l *lruK) AdmitFree(slot int32) {
	l.removeFromCurrent(slot)
	l.where[slot] = inFree
	l.loc[slot] = l.free.PushBack(slot)
	delete(l.touches, slot)
}

// Touch records an access to slot: first touch (from free) moves it to
// the cold head; a second touch promotes cold -> hot; further touches
// just refresh the hot head. Promoting into a full hot partition first
// demotes hot's tail to cold's head.
func (l *lruK) Touch(slot int32) {
	l.touches[slot]++
	cur := l.where[slot]

	switch {
	case cur == inFree, cur != inHot && l.touches[slot] < 2:
		l.removeFromCurrent(slot)
		l.where[slot] = inCold
		l.loc[slot] = l.cold.PushFront(slot)
	default:
		l.removeFromCurrent(slot)
		if l.hotCap > 0 && l.hot.Len() >= l.hotCap {
			l.demoteHotTail()
		}
		l.where[slot] = inHot
		l.loc[slot] = l.hot.PushFront(slot)
	}
}

// demoteHotTail moves hot's least-recently-used entry to cold's head,
// making room for a new promotion. A no-op if hot is empty.
func (l *lruK) demoteHotTail() {
	e := l.hot.Back()
	if e == nil {
		return
	}
	s := e.Value.(int32)
	l.hot.Remove(e)
	l.where[s] = inCold
	l.loc[s] = l.cold.PushFront(s)
}

// Evict removes and returns the first slot satisfying canEvict, scanning
// free (any entry), then the cold tail, then the hot tail — skipping
// (but not reordering) slots the predicate rejects, typically because
// they are pinned. ok is false if no eligible slot exists anywhere.
func (l *lruK) Evict(canEvict func(slot int32) bool) (int32, bool) {
	if e := l.free.Front(); e != nil {
		s := e.Value.(int32)
		l.removeFromCurrent(s)
		return s, true
	}
	if s, ok := l.scanFromTail(l.cold, canEvict); ok {
		return s, true
	}
	if s, ok := l.scanFromTail(l.hot, canEvict); ok {
		return s, true
	}
	return 0, false
}

func (l *lruK) scanFromTail(lst *list.List, canEvict func(slot int32) bool) (int32, bool) {
	for e := lst.Back(); e != nil; e = e.Prev() {
		s := e.Value.(int32)
		if canEvict(s) {
			lst.Remove(e)
			delete(l.loc, s)
			delete(l.where, s)
			delete(l.touches, s)
			return s, true
		}
	}
	return 0, false
}

// Remove drops slot from whichever partition it currently occupies,
// without returning it — used when a page is explicitly freed rather
// than evicted to make room for another.
func (l *lruK) Remove(slot int32) {
	l.removeFromCurrent(slot)
	delete(l.where, slot)
	delete(l.touches, slot)
}

// Snapshot reports, for tests, how many slots currently sit in each
// partition.
func (l *lruK) Snapshot() (free, cold, hot int) {
	return l.free.Len(), l.cold.Len(), l.hot.Len()
}
