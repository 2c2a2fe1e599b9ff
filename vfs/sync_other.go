//go:build !linux

package vfs

import "os"

// syncDataOnly falls back to a full fsync on platforms without fdatasync.
func syncDataOnly(f *os.File) error {
	return f.Sync()
}
