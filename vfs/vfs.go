// Package vfs is the engine's block-device abstraction: positional
// read/write over named files with no internal cursor, byte-exact I/O,
// short-read/short-write retry loops, and a proper error taxonomy. Purely
// positional so concurrent handles never race over a shared seek cursor.
package vfs

import (
	"io"
	"os"
	"sync"
)

// Handle is an open file usable for positional I/O.
type Handle interface {
	// Pread reads len(buf) bytes starting at offset, retrying on short
	// reads until satisfied, io.EOF, or an unrecoverable error.
	Pread(buf []byte, offset int64) error
	// Pwrite writes all of buf starting at offset, retrying on short
	// writes until satisfied or an unrecoverable error.
	Pwrite(buf []byte, offset int64) error
	// Truncate grows or shrinks the file to exactly size bytes.
	Truncate(size int64) error
	// Size reports the file's current length.
	Size() (int64, error)
	// Sync forces both data and metadata to stable storage.
	Sync() error
	// SyncDataOnly forces file data (not metadata) to stable storage
	// where the platform supports it, falling back to Sync otherwise.
	SyncDataOnly() error
	// Close releases the underlying descriptor.
	Close() error
	// Path returns the path this handle was opened against.
	Path() string
}

// VFS opens, creates, and removes named files.
type VFS interface {
	Open(path string) (Handle, error)
	Create(path string, size int64) (Handle, error)
	Exists(path string) bool
	Remove(path string) error
}

// Local is a VFS backed by the host filesystem.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (Local) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (Local) Open(path string) (Handle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, classify("open", path, err)
	}
	return &localHandle{f: f, path: path}, nil
}

func (Local) Create(path string, size int64) (Handle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, classify("create", path, err)
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, newError("create", path, err)
		}
	}
	return &localHandle{f: f, path: path}, nil
}

func (Local) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return classify("remove", path, err)
	}
	return nil
}

func classify(op, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return newError(op, path, ErrNotFound)
	case os.IsPermission(err):
		return newError(op, path, ErrPermissionDenied)
	default:
		return newError(op, path, err)
	}
}

// localHandle implements Handle over *os.File using ReadAt/WriteAt, which
// are safe under concurrent use on the same descriptor by distinct
// goroutines because they never touch the file's seek offset.
type localHandle struct {
	mu   sync.Mutex // serializes concurrent Truncate calls; Size, Pread and Pwrite do not take it
	f    *os.File
	path string
}

func (h *localHandle) Path() string { return h.path }

func (h *localHandle) Pread(buf []byte, offset int64) error {
	if offset < 0 {
		return newError("pread", h.path, ErrOutOfRange)
	}
	read := 0
	for read < len(buf) {
		n, err := h.f.ReadAt(buf[read:], offset+int64(read))
		read += n
		if err != nil {
			if err == io.EOF {
				if read == len(buf) {
					return nil
				}
				return newError("pread", h.path, ErrShortRead)
			}
			return newError("pread", h.path, err)
		}
	}
	return nil
}

func (h *localHandle) Pwrite(buf []byte, offset int64) error {
	if offset < 0 {
		return newError("pwrite", h.path, ErrOutOfRange)
	}
	written := 0
	for written < len(buf) {
		n, err := h.f.WriteAt(buf[written:], offset+int64(written))
		written += n
		if err != nil {
			return newError("pwrite", h.path, err)
		}
		if n == 0 {
			return newError("pwrite", h.path, ErrShortWrite)
		}
	}
	return nil
}

func (h *localHandle) Truncate(size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.f.Truncate(size); err != nil {
		return newError("truncate", h.path, err)
	}
	return nil
}

func (h *localHandle) Size() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, newError("stat", h.path, err)
	}
	return fi.Size(), nil
}

func (h *localHandle) Sync() error {
	if err := h.f.Sync(); err != nil {
		return newError("sync", h.path, err)
	}
	return nil
}

// SyncDataOnly forces file data to stable storage, using fdatasync where the
// platform provides it (see sync_linux.go) to skip the metadata-sync cost of
// a full fsync. Flush never implies fsync, and nothing in the buffer pool or
// storage layer calls this; it runs only when a caller invokes it.
func (h *localHandle) SyncDataOnly() error {
	if err := syncDataOnly(h.f); err != nil {
		return newError("fdatasync", h.path, err)
	}
	return nil
}

func (h *localHandle) Close() error {
	if err := h.f.Close(); err != nil {
		return newError("close", h.path, err)
	}
	return nil
}
