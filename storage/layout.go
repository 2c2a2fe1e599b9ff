// Package storage implements the Tablespace/Segment/Extent layer: the
// on-disk file layout that groups pages into bitmap-managed extents and
// chains extents into segments, plus the tablespace manager that routes
// (segment, logical-page-index) to (file-id, byte-offset) and mediates
// growth through a global best-fit free-extent list. See DESIGN.md for
// the byte-layout decisions behind the constants below.
package storage

import "github.com/astorelabs/astore/page"

const (
	// PageSize mirrors page.Size; kept local so this package's constants
	// read standalone.
	PageSize = page.Size

	// ExtentPages is the number of pages in one extent, including its
	// header page.
	ExtentPages = 128
	// ExtentSize is one extent's footprint in bytes (1 MiB).
	ExtentSize = ExtentPages * PageSize
	// ExtentUsablePages is the number of pages available for data in an
	// ordinary extent (page 0 is the extent header).
	ExtentUsablePages = ExtentPages - 1
	// SegmentFirstExtentUsablePages is one less: a segment's first extent
	// loses its page 0 to the segment header as well.
	SegmentFirstExtentUsablePages = ExtentUsablePages - 1

	// FileMagic is "ASTR" read as a little-endian u32.
	FileMagic = 0x41535452

	// FileHeaderSize is the packed size of FileHeader: nine fields (two
	// of them u64, seven u32) sum to 44 B. See DESIGN.md for the byte-count
	// reconciliation against the originating prose description.
	FileHeaderSize = 44

	// ExtentHeaderSize is the packed size of ExtentHeader, including
	// next_extent_ptr. See DESIGN.md for the byte-count reconciliation.
	ExtentHeaderSize = 56

	// SegmentHeaderSize is the packed size of SegmentHeader.
	SegmentHeaderSize = 36

	// BitmapBytes is the extent header's free-page bitmap size; 127 bits
	// used (one per usable page), rounded up to 16 bytes.
	BitmapBytes = 16
)
