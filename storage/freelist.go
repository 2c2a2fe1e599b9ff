package storage

import "sort"

// FreeExtent is one entry in the tablespace-wide free-extent list.
type FreeExtent struct {
	FileID    uint32
	Offset    uint64
	FreePages uint32
}

// FreeExtentList is kept sorted descending by FreePages for best-fit
// allocation, with a deterministic tie-break by (FileID, Offset), so
// allocation order stays reproducible even across ties.
type FreeExtentList struct {
	entries []FreeExtent
}

func NewFreeExtentList() *FreeExtentList {
	return &FreeExtentList{}
}

func less(a, b FreeExtent) bool {
	if a.FreePages != b.FreePages {
		return a.FreePages > b.FreePages
	}
	if a.FileID != b.FileID {
		return a.FileID < b.FileID
	}
	return a.Offset < b.Offset
}

// Add inserts or replaces the entry for (fileID, offset), re-sorting to
// maintain the descending-by-free-pages / tie-break invariant.
func (l *FreeExtentList) Add(fileID uint32, offset uint64, freePages uint32) {
	for i := range l.entries {
		if l.entries[i].FileID == fileID && l.entries[i].Offset == offset {
			l.entries[i].FreePages = freePages
			l.resort()
			return
		}
	}
	l.entries = append(l.entries, FreeExtent{fileID, offset, freePages})
	l.resort()
}

// Remove deletes the entry for (fileID, offset), if present.
func (l *FreeExtentList) Remove(fileID uint32, offset uint64) {
	for i := range l.entries {
		if l.entries[i].FileID == fileID && l.entries[i].Offset == offset {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// BestFit returns the first extent (per the sort order) with at least one
// free page, or ok=false if none qualifies.
func (l *FreeExtentList) BestFit() (FreeExtent, bool) {
	for _, e := range l.entries {
		if e.FreePages > 0 {
			return e, true
		}
	}
	return FreeExtent{}, false
}

func (l *FreeExtentList) resort() {
	sort.Slice(l.entries, func(i, j int) bool { return less(l.entries[i], l.entries[j]) })
}

// Snapshot returns a copy of the current entries, for tests and invariant
// checks against the total-free-pages accounting.
func (l *FreeExtentList) Snapshot() []FreeExtent {
	out := make([]FreeExtent, len(l.entries))
	copy(out, l.entries)
	return out
}

// TotalFreePages sums FreePages across every tracked extent.
func (l *FreeExtentList) TotalFreePages() uint32 {
	var total uint32
	for _, e := range l.entries {
		total += e.FreePages
	}
	return total
}
