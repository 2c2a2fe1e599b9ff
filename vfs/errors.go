package vfs

import (
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrNotFound         = stderrors.New("vfs: file not found")
	ErrPermissionDenied = stderrors.New("vfs: permission denied")
	ErrShortRead        = stderrors.New("vfs: short read")
	ErrShortWrite       = stderrors.New("vfs: short write")
	ErrOutOfRange       = stderrors.New("vfs: offset out of range")
)

// Error wraps an underlying OS error with the VFS operation that failed.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return "vfs: " + e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return "vfs: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op, path string, err error) error {
	return &Error{Op: op, Path: path, Err: err}
}

func IsNotFound(err error) bool         { return pkgerrors.Is(err, ErrNotFound) }
func IsPermissionDenied(err error) bool { return pkgerrors.Is(err, ErrPermissionDenied) }
func IsShortRead(err error) bool        { return pkgerrors.Is(err, ErrShortRead) }
func IsShortWrite(err error) bool       { return pkgerrors.Is(err, ErrShortWrite) }
func IsOutOfRange(err error) bool       { return pkgerrors.Is(err, ErrOutOfRange) }
func IsIoError(err error) bool {
	var e *Error
	return stderrors.As(err, &e)
}
