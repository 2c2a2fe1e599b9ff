package storage

import (
	"encoding/binary"

	"github.com/astorelabs/astore/hashing"
)

// ExtentHeader occupies page 0 of every extent. Bit i of Bitmap is 1 iff
// usable page i (1-indexed position within the extent, 0-indexed within
// the bitmap) is free. Field order is bitmap, checksum, next-extent-ptr;
// see layout.go for how ExtentHeaderSize accounts for next-extent-ptr.
type ExtentHeader struct {
	FileID        uint32
	TablespaceID  uint64
	ExtentOffset  uint64
	PageCount     uint32
	FreePages     uint32
	Bitmap        [BitmapBytes]byte
	Checksum      uint32
	NextExtentPtr uint64 // 0 means "no next extent"

	// usable is the number of allocatable bits in Bitmap: ExtentUsablePages
	// (127) for an ordinary extent, SegmentFirstExtentUsablePages (126) for
	// a segment's first extent, whose page 0 holds the segment header
	// instead of this header and whose own header page displaces one more
	// usable page. Not part of the wire format — recomputed on construction
	// and re-set explicitly by callers that deserialize a first-extent
	// header (see loadExtent in segment_ops.go).
	usable int
}

// NewExtentHeader builds a fully-free extent header (all usable-page bits
// set to 1) for the extent at byte offset extentOffset within file fileID.
// usablePages is ExtentUsablePages for an ordinary extent or
// SegmentFirstExtentUsablePages for a segment's first extent.
func NewExtentHeader(fileID uint32, tablespaceID uint64, extentOffset uint64, usablePages int) *ExtentHeader {
	h := &ExtentHeader{
		FileID:       fileID,
		TablespaceID: tablespaceID,
		ExtentOffset: extentOffset,
		PageCount:    ExtentPages,
		FreePages:    uint32(usablePages),
		usable:       usablePages,
	}
	for i := 0; i < usablePages; i++ {
		setBit(h.Bitmap[:], i, true)
	}
	return h
}

// SetUsablePages overrides the usable-page count used by IsEmpty, for a
// header just produced by DeserializeExtentHeader that the caller knows is
// a segment's first extent.
func (h *ExtentHeader) SetUsablePages(n int) { h.usable = n }

func setBit(bitmap []byte, i int, free bool) {
	byteIdx, bit := i/8, uint(i%8)
	if free {
		bitmap[byteIdx] |= 1 << bit
	} else {
		bitmap[byteIdx] &^= 1 << bit
	}
}

func getBit(bitmap []byte, i int) bool {
	byteIdx, bit := i/8, uint(i%8)
	return bitmap[byteIdx]&(1<<bit) != 0
}

// AllocatePage claims the lowest-indexed free usable page (0-indexed
// within the extent's usable-page range) and returns it, or ok=false if
// the extent is full.
func (h *ExtentHeader) AllocatePage() (idx int, ok bool) {
	for i := 0; i < ExtentUsablePages; i++ {
		if getBit(h.Bitmap[:], i) {
			setBit(h.Bitmap[:], i, false)
			h.FreePages--
			return i, true
		}
	}
	return 0, false
}

// FreePage flips usable-page idx's bitmap bit back to free.
func (h *ExtentHeader) FreePage(idx int) {
	if !getBit(h.Bitmap[:], idx) {
		h.FreePages++
		setBit(h.Bitmap[:], idx, true)
	}
}

func (h *ExtentHeader) IsFull() bool  { return h.FreePages == 0 }
func (h *ExtentHeader) IsEmpty() bool { return int(h.FreePages) == h.usable }

// Serialize packs the header field-by-field, little-endian.
func (h *ExtentHeader) Serialize() []byte {
	buf := make([]byte, ExtentHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.FileID)
	binary.LittleEndian.PutUint64(buf[4:12], h.TablespaceID)
	binary.LittleEndian.PutUint64(buf[12:20], h.ExtentOffset)
	binary.LittleEndian.PutUint32(buf[20:24], h.PageCount)
	binary.LittleEndian.PutUint32(buf[24:28], h.FreePages)
	copy(buf[28:44], h.Bitmap[:])
	binary.LittleEndian.PutUint32(buf[44:48], h.Checksum)
	binary.LittleEndian.PutUint64(buf[48:56], h.NextExtentPtr)
	return buf
}

func (h *ExtentHeader) computeChecksum() uint32 {
	buf := h.Serialize()
	for i := 44; i < 48; i++ {
		buf[i] = 0
	}
	return hashing.CRC32(buf)
}

func (h *ExtentHeader) UpdateChecksum() {
	h.Checksum = h.computeChecksum()
}

func (h *ExtentHeader) VerifyChecksum() bool {
	return h.Checksum == h.computeChecksum()
}

// DeserializeExtentHeader parses and verifies an ExtentHeaderSize buffer.
func DeserializeExtentHeader(buf []byte) (*ExtentHeader, error) {
	if len(buf) != ExtentHeaderSize {
		return nil, newSegError("decode-extent-header", ErrInvalidExtentHeader)
	}
	h := &ExtentHeader{
		FileID:       binary.LittleEndian.Uint32(buf[0:4]),
		TablespaceID: binary.LittleEndian.Uint64(buf[4:12]),
		ExtentOffset: binary.LittleEndian.Uint64(buf[12:20]),
		PageCount:    binary.LittleEndian.Uint32(buf[20:24]),
		FreePages:    binary.LittleEndian.Uint32(buf[24:28]),
		usable:       ExtentUsablePages,
	}
	copy(h.Bitmap[:], buf[28:44])
	h.Checksum = binary.LittleEndian.Uint32(buf[44:48])
	h.NextExtentPtr = binary.LittleEndian.Uint64(buf[48:56])

	if !h.VerifyChecksum() {
		return nil, newSegError("decode-extent-header", ErrChecksumMismatch)
	}
	return h, nil
}
