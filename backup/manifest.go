// Package backup implements extent-level tablespace archival: a compressed,
// single-host, point-in-time copy of a tablespace's files for operational
// backup, restored by replaying each block and re-verifying its checksum
// before the tablespace is reopened. This is not replication — no
// streaming, no multi-node awareness. Uses plain Go structs and stdlib
// encoding, layered strictly on storage.TablespaceManager's public
// surface.
package backup

// ManifestExtent records one archived block: either a file's leading
// header page (Offset 0, Length PageSize) or one full extent.
type ManifestExtent struct {
	FileID         uint32
	Offset         uint64
	Length         uint32
	CompressedSize uint32
	CRC32          uint32
}

// BackupManifest is written once at the start of an archive stream,
// followed by each ManifestExtent's compressed bytes in the same order.
type BackupManifest struct {
	TablespaceID uint64
	Name         string
	FileCount    int
	Codec        Codec
	CreatedAt    int64
	Extents      []ManifestExtent
}
