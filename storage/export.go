package storage

// FileInfo describes one backing file of an open tablespace, for the
// backup subsystem's byte-exact export/import; it exposes nothing about
// the tablespace's in-memory free-list or segment directory.
type FileInfo struct {
	FileID uint32
	Size   uint64
}

// Files returns the backing files of tablespaceID in the order they were
// opened.
func (m *TablespaceManager) Files(tablespaceID uint64) ([]FileInfo, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return nil, err
	}
	ts.filesMu.RLock()
	defer ts.filesMu.RUnlock()
	out := make([]FileInfo, len(ts.files))
	for i, f := range ts.files {
		out[i] = FileInfo{FileID: f.ID, Size: f.Size}
	}
	return out, nil
}

// Exists reports whether a tablespace named name is already open or has a
// backing file on disk, used by Restore to fail closed on a collision.
func (m *TablespaceManager) Exists(name string) bool {
	m.mu.Lock()
	_, open := m.nameToID[name]
	m.mu.Unlock()
	if open {
		return true
	}
	return m.vfs.Exists(filePath(m.dataDir, name))
}

// Name returns tablespaceID's name.
func (m *TablespaceManager) Name(tablespaceID uint64) (string, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return "", err
	}
	return ts.Name, nil
}

// ReadRaw reads length bytes at offset from file fileID of tablespaceID,
// bypassing extent/segment interpretation — used only by the backup
// subsystem to copy a file's bytes verbatim.
func (m *TablespaceManager) ReadRaw(tablespaceID uint64, fileID uint32, offset uint64, length int) ([]byte, error) {
	ts, err := m.get(tablespaceID)
	if err != nil {
		return nil, err
	}
	f := ts.fileByID(fileID)
	if f == nil {
		return nil, newSegError("read-raw", ErrExtentNotFound)
	}
	buf := make([]byte, length)
	if err := f.Handle.Pread(buf, int64(offset)); err != nil {
		return nil, newSegErrorAt("read-raw", fileID, offset, err)
	}
	return buf, nil
}

// CreateRawFile creates tablespaceName's primary file at exactly size
// bytes with no header or extents written — used only by Restore, which
// fills the file's content itself and then opens it through the normal
// OpenTablespace validation path.
func (m *TablespaceManager) CreateRawFile(name string, size uint64) error {
	path := filePath(m.dataDir, name)
	h, err := m.vfs.Create(path, int64(size))
	if err != nil {
		return newSegError("create-raw-file", err)
	}
	return h.Close()
}

// WriteRaw writes data at offset into tablespaceName's primary file,
// reopening it for the duration of the write — used only by Restore
// before the file has been registered with OpenTablespace.
func (m *TablespaceManager) WriteRaw(name string, offset uint64, data []byte) error {
	path := filePath(m.dataDir, name)
	h, err := m.vfs.Open(path)
	if err != nil {
		return newSegError("write-raw", err)
	}
	defer h.Close()
	if err := h.Pwrite(data, int64(offset)); err != nil {
		return newSegError("write-raw", err)
	}
	return nil
}
