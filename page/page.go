// Package page implements the engine's fixed 8 KiB storage unit: a packed,
// position-stable 48-byte header followed by a client-defined body, with
// a CRC32 checksum over every byte after the checksum field, with explicit accessor methods
// in the style of a storage/wrapper page-header wrapper rather than bare
// struct-field access.
package page

import (
	"encoding/binary"

	"github.com/astorelabs/astore/hashing"
)

const (
	// Size is the fixed on-disk and in-memory page size.
	Size = 8192
	// HeaderSize is the exact, position-stable header length.
	HeaderSize = 48
)

// Type tags the page body's interpretation: Invalid, Data, Internal,
// Leaf, or Special.
type Type uint16

const (
	TypeInvalid  Type = 0
	TypeData     Type = 1
	TypeInternal Type = 2
	TypeLeaf     Type = 3
	TypeSpecial  Type = 4
)

// Header is the 48-byte packed page header. It is never serialized via Go
// struct memory layout (which could insert padding) — see Serialize and
// Deserialize below.
type Header struct {
	Checksum    uint32 // offset 0,  CRC32 over bytes [4..8192)
	GlobalLSN   uint64 // offset 4
	PageLSN     uint64 // offset 12
	WALID       uint64 // offset 20
	SpecialOff  uint16 // offset 28, low 16 bits of "special"
	SpecialRes  uint16 // offset 30, high 16 bits of "special" (reserved)
	Flags       uint16 // offset 32
	Lower       uint16 // offset 34
	Upper       uint16 // offset 36
	Type        Type   // offset 38
	SelfID      uint64 // offset 40
}

// Page is one resident 8 KiB unit: a header plus a body slice of exactly
// Size-HeaderSize bytes.
type Page struct {
	Header Header
	Body   [Size - HeaderSize]byte
}

// New constructs a zero-filled page with its header initialized for id and
// typ. Lower/Upper start collapsed to the body boundaries (lower=header
// end, upper=page end), i.e. maximal free space.
func New(id uint64, typ Type) *Page {
	p := &Page{}
	p.Header.SelfID = id
	p.Header.Type = typ
	p.Header.Lower = HeaderSize
	p.Header.Upper = Size
	return p
}

// FreeSpace returns upper-lower, the invariant-bound free region.
func (p *Page) FreeSpace() int {
	return int(p.Header.Upper) - int(p.Header.Lower)
}

// CheckInvariant reports whether 48 <= lower <= upper <= 8192 holds.
func (p *Page) CheckInvariant() bool {
	return HeaderSize <= int(p.Header.Lower) &&
		int(p.Header.Lower) <= int(p.Header.Upper) &&
		int(p.Header.Upper) <= Size
}

// SlotArea returns the body-relative slot-array region [header_end, lower).
func (p *Page) SlotArea() []byte {
	lo := int(p.Header.Lower) - HeaderSize
	return p.Body[:lo]
}

// TupleArea returns the body-relative tuple-area region [upper, page_end).
func (p *Page) TupleArea() []byte {
	hi := int(p.Header.Upper) - HeaderSize
	return p.Body[hi:]
}

// ContentFingerprint is a non-persistent xxhash digest of the full
// serialized page, for in-memory dedup and test assertions only — never a
// substitute for the CRC32 checksum written to disk.
func (p *Page) ContentFingerprint() uint64 {
	return hashing.ContentFingerprint64(p.Serialize())
}

// computeChecksum derives the CRC32 over bytes [4..Size) of the serialized
// page with the checksum field (the first 4 bytes) conceptually zeroed.
func (p *Page) computeChecksum() uint32 {
	buf := p.Serialize()
	return hashing.CRC32(buf[4:])
}

// UpdateChecksum recomputes and stores the header checksum; callers must
// call this after any body or header mutation and before Serialize is
// handed to disk I/O.
func (p *Page) UpdateChecksum() {
	p.Header.Checksum = p.computeChecksum()
}

// Serialize packs the page into an exact Size-byte little-endian buffer,
// field by field, never relying on Go struct memory layout.
func (p *Page) Serialize() []byte {
	buf := make([]byte, Size)
	h := &p.Header
	binary.LittleEndian.PutUint32(buf[0:4], h.Checksum)
	binary.LittleEndian.PutUint64(buf[4:12], h.GlobalLSN)
	binary.LittleEndian.PutUint64(buf[12:20], h.PageLSN)
	binary.LittleEndian.PutUint64(buf[20:28], h.WALID)
	binary.LittleEndian.PutUint16(buf[28:30], h.SpecialOff)
	binary.LittleEndian.PutUint16(buf[30:32], h.SpecialRes)
	binary.LittleEndian.PutUint16(buf[32:34], h.Flags)
	binary.LittleEndian.PutUint16(buf[34:36], h.Lower)
	binary.LittleEndian.PutUint16(buf[36:38], h.Upper)
	binary.LittleEndian.PutUint16(buf[38:40], uint16(h.Type))
	binary.LittleEndian.PutUint64(buf[40:48], h.SelfID)
	copy(buf[HeaderSize:], p.Body[:])
	return buf
}

// Deserialize parses an exact Size-byte buffer into a Page and verifies its
// checksum, returning ErrChecksumMismatch (fatal to the caller — the page
// must be refused, not handed out) on mismatch.
func Deserialize(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, newError("deserialize", ErrInvalidPageType)
	}
	p := &Page{}
	h := &p.Header
	h.Checksum = binary.LittleEndian.Uint32(buf[0:4])
	h.GlobalLSN = binary.LittleEndian.Uint64(buf[4:12])
	h.PageLSN = binary.LittleEndian.Uint64(buf[12:20])
	h.WALID = binary.LittleEndian.Uint64(buf[20:28])
	h.SpecialOff = binary.LittleEndian.Uint16(buf[28:30])
	h.SpecialRes = binary.LittleEndian.Uint16(buf[30:32])
	h.Flags = binary.LittleEndian.Uint16(buf[32:34])
	h.Lower = binary.LittleEndian.Uint16(buf[34:36])
	h.Upper = binary.LittleEndian.Uint16(buf[36:38])
	h.Type = Type(binary.LittleEndian.Uint16(buf[38:40]))
	h.SelfID = binary.LittleEndian.Uint64(buf[40:48])
	copy(p.Body[:], buf[HeaderSize:])

	want := hashing.CRC32(buf[4:])
	if want != h.Checksum {
		return nil, newError("deserialize", ErrChecksumMismatch)
	}
	return p, nil
}
