package storage

import (
	"github.com/astorelabs/astore/page"
)

// extentLocation describes one on-disk extent as actually laid out, which
// differs for a segment's first extent (page 0 = SegmentHeader, page 1 =
// ExtentHeader) versus every other extent (page 0 = ExtentHeader).
type extentLocation struct {
	eh         *ExtentHeader
	isFirst    bool
	seg        *SegmentHeader
	ehOffset   uint64 // byte offset of the ExtentHeader itself
	dataOffset uint64 // byte offset usable-page 0 starts at
}

// loadExtent reads the header(s) at extent byte offset off and classifies
// them, trying an ordinary ExtentHeader first and falling back to
// SegmentHeader+ExtentHeader for a segment's first extent, mirroring
// OpenTablespace's reconstruction scan.
func loadExtent(f *fileEntry, off uint64) (*extentLocation, error) {
	buf := make([]byte, ExtentHeaderSize)
	if err := f.Handle.Pread(buf, int64(off)); err != nil {
		return nil, err
	}
	if eh, err := DeserializeExtentHeader(buf); err == nil {
		return &extentLocation{eh: eh, ehOffset: off, dataOffset: off + PageSize}, nil
	}

	sbuf := make([]byte, SegmentHeaderSize)
	if err := f.Handle.Pread(sbuf, int64(off)); err != nil {
		return nil, err
	}
	sh, err := DeserializeSegmentHeader(sbuf)
	if err != nil {
		return nil, newSegErrorAt("load-extent", f.ID, off, ErrInvalidExtentHeader)
	}
	ehBuf := make([]byte, ExtentHeaderSize)
	if err := f.Handle.Pread(ehBuf, int64(off)+PageSize); err != nil {
		return nil, err
	}
	eh, err := DeserializeExtentHeader(ehBuf)
	if err != nil {
		return nil, newSegErrorAt("load-extent", f.ID, off, err)
	}
	eh.SetUsablePages(SegmentFirstExtentUsablePages)
	return &extentLocation{
		eh: eh, isFirst: true, seg: sh,
		ehOffset:   off + PageSize,
		dataOffset: off + 2*PageSize,
	}, nil
}

func saveExtentHeader(f *fileEntry, loc *extentLocation) error {
	loc.eh.UpdateChecksum()
	buf := make([]byte, PageSize)
	copy(buf, loc.eh.Serialize())
	return f.Handle.Pwrite(buf, int64(loc.ehOffset))
}

func saveSegmentHeader(f *fileEntry, offset uint64, sh *SegmentHeader) error {
	sh.UpdateChecksum()
	buf := make([]byte, PageSize)
	copy(buf, sh.Serialize())
	return f.Handle.Pwrite(buf, int64(offset))
}

// CreateSegment claims a whole fresh extent from the free-list (or grows
// the tablespace by one extent if none is free), converts it into a
// segment's first extent, and registers it in the segment directory. The
// free-list lock is taken before the directory lock, per the lock-ordering
// hierarchy.
func (m *TablespaceManager) CreateSegment(tablespaceID uint64, typ SegmentType) (uint64, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return 0, err
	}

	ts.freeListMu.Lock()
	fileID, offset, err := m.claimFreeExtent(ts)
	ts.freeListMu.Unlock()
	if err != nil {
		return 0, err
	}

	f := ts.fileByID(fileID)
	if f == nil {
		return 0, newSegError("create-segment", ErrExtentNotFound)
	}

	ts.dirMu.Lock()
	defer ts.dirMu.Unlock()

	segID := ts.nextSegID
	ts.nextSegID++

	sh := &SegmentHeader{SegmentID: segID, SegmentType: typ}
	if err := saveSegmentHeader(f, offset, sh); err != nil {
		return 0, newSegErrorAt("create-segment", fileID, offset, err)
	}
	eh := NewExtentHeader(fileID, tablespaceID, offset+PageSize, SegmentFirstExtentUsablePages)
	loc := &extentLocation{eh: eh, isFirst: true, ehOffset: offset + PageSize, dataOffset: offset + 2*PageSize}
	if err := saveExtentHeader(f, loc); err != nil {
		return 0, newSegErrorAt("create-segment", fileID, offset, err)
	}

	entry := &dirEntry{
		SegmentID:    segID,
		Type:         typ,
		TablespaceID: tablespaceID,
		headerFile:   fileID,
		headerOffset: offset,
		firstExtent:  extentRef{fileID, offset},
		lastExtent:   extentRef{fileID, offset},
	}
	ts.segments[segID] = entry
	return segID, nil
}

// claimFreeExtent removes and returns the best-fit fully-free extent from
// ts.freeList, growing the tablespace's primary file by one extent if the
// list is empty. Caller must hold ts.freeListMu.
func (m *TablespaceManager) claimFreeExtent(ts *Tablespace) (fileID uint32, offset uint64, err error) {
	if fe, ok := ts.freeList.BestFit(); ok {
		ts.freeList.Remove(fe.FileID, fe.Offset)
		return fe.FileID, fe.Offset, nil
	}
	return m.growFile(ts)
}

// growFile auto-extends the tablespace's primary file by one extent,
// writes a fresh ExtentHeader for it, and returns its location without
// adding it to the free-list (the caller is about to consume it). Callers
// that want a free, listed extent must Add it themselves.
func (m *TablespaceManager) growFile(ts *Tablespace) (fileID uint32, offset uint64, err error) {
	ts.filesMu.Lock()
	defer ts.filesMu.Unlock()
	f := ts.files[0]

	newOffset := f.Size
	newSize := f.Size + ExtentSize
	if err := f.Handle.Truncate(int64(newSize)); err != nil {
		return 0, 0, newSegErrorAt("grow-file", f.ID, newOffset, err)
	}
	eh := NewExtentHeader(f.ID, ts.ID, newOffset, ExtentUsablePages)
	eh.UpdateChecksum()
	if err := writeExtentHeader(f.Handle, newOffset, eh); err != nil {
		return 0, 0, newSegErrorAt("grow-file", f.ID, newOffset, err)
	}
	f.Size = newSize
	f.ExtentCnt++

	hdrBuf := make([]byte, FileHeaderSize)
	if err := f.Handle.Pread(hdrBuf, 0); err != nil {
		return 0, 0, newSegErrorAt("grow-file", f.ID, 0, err)
	}
	fh, err := DeserializeFileHeader(hdrBuf)
	if err != nil {
		return 0, 0, err
	}
	fh.FileSize = newSize
	fh.ExtentCount = f.ExtentCnt
	fh.FreePageCount += ExtentUsablePages
	fh.UpdateChecksum()
	pad := make([]byte, PageSize)
	copy(pad, fh.Serialize())
	if err := f.Handle.Pwrite(pad, 0); err != nil {
		return 0, 0, newSegErrorAt("grow-file", f.ID, 0, err)
	}

	return f.ID, newOffset, nil
}

// AllocatePage claims the next logical page within segmentID, extending
// its extent chain (via the free-list, or by growing the file) when the
// current last extent is full.
func (m *TablespaceManager) AllocatePage(tablespaceID, segmentID uint64) (uint64, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return 0, err
	}

	// The free-list lock (position 4) is taken before the directory lock
	// (position 5), since growing the chain may claim a free extent.
	ts.freeListMu.Lock()
	defer ts.freeListMu.Unlock()
	ts.dirMu.Lock()
	defer ts.dirMu.Unlock()

	entry, ok := ts.segments[segmentID]
	if !ok {
		return 0, newSegError("allocate-page", ErrSegmentNotFound)
	}

	f := ts.fileByID(entry.lastExtent.FileID)
	if f == nil {
		return 0, newSegError("allocate-page", ErrExtentNotFound)
	}
	loc, err := loadExtent(f, entry.lastExtent.Offset)
	if err != nil {
		return 0, err
	}

	idx, ok := loc.eh.AllocatePage()
	if !ok {
		newFileID, newOffset, ferr := m.claimFreeExtent(ts)
		if ferr != nil {
			return 0, ferr
		}

		loc.eh.NextExtentPtr = newOffset
		if err := saveExtentHeader(f, loc); err != nil {
			return 0, err
		}
		if loc.isFirst && loc.seg != nil {
			loc.seg.NextExtentPtr = newOffset
			if err := saveSegmentHeader(f, entry.headerOffset, loc.seg); err != nil {
				return 0, err
			}
		}

		newF := ts.fileByID(newFileID)
		entry.lastExtent = extentRef{newFileID, newOffset}
		loc, err = loadExtent(newF, newOffset)
		if err != nil {
			return 0, err
		}
		idx, ok = loc.eh.AllocatePage()
		if !ok {
			return 0, newSegError("allocate-page", ErrNoFreeExtent)
		}
		f = newF
	}

	if err := saveExtentHeader(f, loc); err != nil {
		return 0, err
	}

	fileIndex := (loc.dataOffset)/PageSize + uint64(idx)
	pageID := encodePageID(f.ID, fileIndex)
	entry.totalPages++
	return pageID, nil
}

// FreePage flips the bitmap bit for pageID's slot back to free. It does
// not compact or return the extent to the tablespace free-list: once an
// extent is attached to a segment it stays attached; extents are not
// individually reclaimed.
func (m *TablespaceManager) FreePage(tablespaceID uint64, pageID uint64) error {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return err
	}
	fileID, fileIndex := decodePageID(pageID)
	f := ts.fileByID(fileID)
	if f == nil {
		return newSegError("free-page", ErrExtentNotFound)
	}

	extentStartIdx := ((fileIndex - 1) / ExtentPages) * ExtentPages + 1
	extentOffset := extentStartIdx * PageSize

	ts.dirMu.Lock()
	defer ts.dirMu.Unlock()

	loc, err := loadExtent(f, extentOffset)
	if err != nil {
		return err
	}
	bitmapIdx := int(fileIndex - loc.dataOffset/PageSize)
	if bitmapIdx < 0 {
		return newSegError("free-page", ErrPageOutOfBounds)
	}
	loc.eh.FreePage(bitmapIdx)
	return saveExtentHeader(f, loc)
}

// ReadPage reads and deserializes the page at pageID.
func (m *TablespaceManager) ReadPage(tablespaceID uint64, pageID uint64) (*page.Page, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return nil, err
	}
	fileID, fileIndex := decodePageID(pageID)
	f := ts.fileByID(fileID)
	if f == nil {
		return nil, newSegError("read-page", ErrExtentNotFound)
	}
	buf := make([]byte, PageSize)
	if err := f.Handle.Pread(buf, int64(fileIndex*PageSize)); err != nil {
		return nil, newSegErrorAt("read-page", fileID, fileIndex*PageSize, err)
	}
	p, err := page.Deserialize(buf)
	if err != nil {
		return nil, newSegErrorAt("read-page", fileID, fileIndex*PageSize, err)
	}
	return p, nil
}

// WritePage serializes and writes p at pageID.
func (m *TablespaceManager) WritePage(tablespaceID uint64, pageID uint64, p *page.Page) error {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return err
	}
	fileID, fileIndex := decodePageID(pageID)
	f := ts.fileByID(fileID)
	if f == nil {
		return newSegError("write-page", ErrExtentNotFound)
	}
	p.UpdateChecksum()
	if err := f.Handle.Pwrite(p.Serialize(), int64(fileIndex*PageSize)); err != nil {
		return newSegErrorAt("write-page", fileID, fileIndex*PageSize, err)
	}
	return nil
}

// GetPage translates a segment-relative logical page index into a
// pageID by walking the segment's extent chain from its cached position,
// avoiding a walk from the first extent on every call.
func (m *TablespaceManager) GetPage(tablespaceID, segmentID uint64, logicalIndex int64) (uint64, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return 0, err
	}

	ts.dirMu.Lock()
	defer ts.dirMu.Unlock()

	entry, ok := ts.segments[segmentID]
	if !ok {
		return 0, newSegError("get-page", ErrSegmentNotFound)
	}

	ref := entry.firstExtent
	base := int64(0)
	usable := SegmentFirstExtentUsablePages
	if entry.addrCache.logicalBase != 0 || entry.addrCache.extent != (extentRef{}) {
		if logicalIndex >= entry.addrCache.logicalBase {
			ref = entry.addrCache.extent
			base = entry.addrCache.logicalBase
			usable = entry.addrCache.usable
		}
	}

	for {
		f := ts.fileByID(ref.FileID)
		if f == nil {
			return 0, newSegError("get-page", ErrExtentNotFound)
		}
		loc, err := loadExtent(f, ref.Offset)
		if err != nil {
			return 0, err
		}
		if logicalIndex < base+int64(usable) {
			idx := logicalIndex - base
			fileIndex := loc.dataOffset/PageSize + uint64(idx)
			entry.addrCache.logicalBase = base
			entry.addrCache.extent = ref
			entry.addrCache.usable = usable
			return encodePageID(f.ID, fileIndex), nil
		}
		if loc.eh.NextExtentPtr == 0 {
			return 0, newSegError("get-page", ErrPageOutOfBounds)
		}
		base += int64(usable)
		ref = extentRef{f.ID, loc.eh.NextExtentPtr}
		usable = ExtentUsablePages
	}
}
