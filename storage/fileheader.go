package storage

import (
	"encoding/binary"

	"github.com/astorelabs/astore/hashing"
)

// FileHeader sits at offset 0 of every data file.
type FileHeader struct {
	Magic         uint32
	Version       uint32
	FileID        uint32
	TablespaceID  uint64
	FileSize      uint64
	ExtentCount   uint32
	FreePageCount uint32
	Flags         uint32
	Checksum      uint32
}

const fileHeaderVersion = 1

// NewFileHeader builds a header for a freshly created file of fileSize
// bytes, with zero extents yet carved.
func NewFileHeader(fileID uint32, tablespaceID uint64, fileSize uint64) *FileHeader {
	return &FileHeader{
		Magic:        FileMagic,
		Version:      fileHeaderVersion,
		FileID:       fileID,
		TablespaceID: tablespaceID,
		FileSize:     fileSize,
	}
}

// Serialize packs the header field-by-field into a FileHeaderSize buffer,
// little-endian, independent of Go struct memory layout.
func (h *FileHeader) Serialize() []byte {
	buf := make([]byte, FileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.FileID)
	binary.LittleEndian.PutUint64(buf[12:20], h.TablespaceID)
	binary.LittleEndian.PutUint64(buf[20:28], h.FileSize)
	binary.LittleEndian.PutUint32(buf[28:32], h.ExtentCount)
	binary.LittleEndian.PutUint32(buf[32:36], h.FreePageCount)
	binary.LittleEndian.PutUint32(buf[36:40], h.Flags)
	binary.LittleEndian.PutUint32(buf[40:44], h.Checksum)
	return buf
}

// computeChecksum returns the CRC32 over the header's bytes with the
// checksum field (last 4 bytes) zeroed.
func (h *FileHeader) computeChecksum() uint32 {
	buf := h.Serialize()
	for i := 40; i < 44; i++ {
		buf[i] = 0
	}
	return hashing.CRC32(buf)
}

// UpdateChecksum recomputes and stores h.Checksum.
func (h *FileHeader) UpdateChecksum() {
	h.Checksum = h.computeChecksum()
}

// VerifyChecksum reports whether the stored checksum matches the computed
// one. There is no zero-checksum escape hatch: an unset checksum on a
// nonzero header fails verification, unlike original_source's Rust
// implementation.
func (h *FileHeader) VerifyChecksum() bool {
	return h.Checksum == h.computeChecksum()
}

// DeserializeFileHeader parses a FileHeaderSize buffer and verifies magic
// and checksum, returning ErrInvalidFileHeader on either failure.
func DeserializeFileHeader(buf []byte) (*FileHeader, error) {
	if len(buf) != FileHeaderSize {
		return nil, newSegError("decode-file-header", ErrInvalidFileHeader)
	}
	h := &FileHeader{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		Version:       binary.LittleEndian.Uint32(buf[4:8]),
		FileID:        binary.LittleEndian.Uint32(buf[8:12]),
		TablespaceID:  binary.LittleEndian.Uint64(buf[12:20]),
		FileSize:      binary.LittleEndian.Uint64(buf[20:28]),
		ExtentCount:   binary.LittleEndian.Uint32(buf[28:32]),
		FreePageCount: binary.LittleEndian.Uint32(buf[32:36]),
		Flags:         binary.LittleEndian.Uint32(buf[36:40]),
		Checksum:      binary.LittleEndian.Uint32(buf[40:44]),
	}
	if h.Magic != FileMagic {
		return nil, newSegError("decode-file-header", ErrInvalidFileHeader)
	}
	if !h.VerifyChecksum() {
		return nil, newSegError("decode-file-header", ErrInvalidFileHeader)
	}
	return h, nil
}
