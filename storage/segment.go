package storage

import (
	"encoding/binary"

	"github.com/astorelabs/astore/hashing"
)

// Type enumerates the kinds of object a segment can back.
type SegmentType uint8

const (
	SegmentData SegmentType = iota
	SegmentIndex
	SegmentRollback
	SegmentSystem
	SegmentTemporary
	SegmentUndo
)

// SegmentHeader is the persistent header stored at offset 0 of a segment's
// first extent's page 0 (displacing that extent's normal page-0 usage as
// the extent header — the ExtentHeader of a segment's first extent is
// written to that extent's page 1 instead, see DESIGN.md).
type SegmentHeader struct {
	SegmentID     uint64
	SegmentType   SegmentType
	NextExtentPtr uint64
	TotalPages    uint64
	Checksum      uint32
}

func (h *SegmentHeader) Serialize() []byte {
	buf := make([]byte, SegmentHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.SegmentID)
	buf[8] = byte(h.SegmentType)
	// buf[9:16] is the 7-byte pad, left zero.
	binary.LittleEndian.PutUint64(buf[16:24], h.NextExtentPtr)
	binary.LittleEndian.PutUint64(buf[24:32], h.TotalPages)
	binary.LittleEndian.PutUint32(buf[32:36], h.Checksum)
	return buf
}

func (h *SegmentHeader) computeChecksum() uint32 {
	buf := h.Serialize()
	for i := 32; i < 36; i++ {
		buf[i] = 0
	}
	return hashing.CRC32(buf)
}

func (h *SegmentHeader) UpdateChecksum() { h.Checksum = h.computeChecksum() }
func (h *SegmentHeader) VerifyChecksum() bool {
	return h.Checksum == h.computeChecksum()
}

func DeserializeSegmentHeader(buf []byte) (*SegmentHeader, error) {
	if len(buf) != SegmentHeaderSize {
		return nil, newSegError("decode-segment-header", ErrInvalidSegmentHeader)
	}
	h := &SegmentHeader{
		SegmentID:     binary.LittleEndian.Uint64(buf[0:8]),
		SegmentType:   SegmentType(buf[8]),
		NextExtentPtr: binary.LittleEndian.Uint64(buf[16:24]),
		TotalPages:    binary.LittleEndian.Uint64(buf[24:32]),
		Checksum:      binary.LittleEndian.Uint32(buf[32:36]),
	}
	if !h.VerifyChecksum() {
		return nil, newSegError("decode-segment-header", ErrChecksumMismatch)
	}
	return h, nil
}

// extentRef locates one extent inside a file.
type extentRef struct {
	FileID uint32
	Offset uint64
}

// dirEntry is the in-memory segment-directory entry: reconstructed by
// scanning headers on open, never persisted as a whole (see DESIGN.md).
type dirEntry struct {
	SegmentID    uint64
	Type         SegmentType
	TablespaceID uint64

	headerFile   uint32
	headerOffset uint64

	firstExtent extentRef
	lastExtent  extentRef

	totalPages uint64
	usedPages  uint64

	// addrCache speeds up repeated logical-index lookups by remembering
	// the last extent walked to and the usable-page count consumed to
	// reach it, avoiding a per-access chain walk from the first extent.
	addrCache struct {
		logicalBase int64 // first logical index this cached extent covers
		extent      extentRef
		usable      int // usable pages in the cached extent itself
	}
}
