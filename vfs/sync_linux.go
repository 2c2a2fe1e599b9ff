//go:build linux

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncDataOnly calls fdatasync(2), syncing file data without forcing an
// inode metadata flush.
func syncDataOnly(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
