// Package hashing holds the engine's hashing primitives: FNV-1a for
// buffer-index bucketing, CRC32 for on-disk checksums, and an xxhash-based
// content fingerprint used only for in-memory dedup/debug assertions.
//
// No example repo in the corpus ships a third-party FNV-1a or CRC32
// implementation — both have first-class, widely used standard-library
// support (hash/fnv, hash/crc32), so this package leans on the standard
// library for those two and reserves the third-party dependency
// (OneOfOne/xxhash) for the secondary, non-persistent fingerprint.
package hashing

import (
	"encoding/binary"
	"hash/crc32"
	"hash/fnv"

	"github.com/OneOfOne/xxhash"
)

// BucketFNV1a hashes an 8-byte page identifier with FNV-1a and reduces it
// modulo nbuckets. Used exclusively by the buffer pool's hash-chain index.
func BucketFNV1a(id uint64, nbuckets int) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	h := fnv.New64a()
	h.Write(b[:])
	return int(h.Sum64() % uint64(nbuckets))
}

// CRC32 computes the checksum used for every persistent header (file,
// extent, segment, page), IEEE polynomial to match the ecosystem default.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ContentFingerprint64 is a fast, non-persistent xxhash digest of a page's
// bytes. Used for in-memory deduplication and test assertions; never
// written to disk and never a substitute for the CRC32 checksum.
func ContentFingerprint64(data []byte) uint64 {
	h := xxhash.New64()
	h.Write(data)
	return h.Sum64()
}
