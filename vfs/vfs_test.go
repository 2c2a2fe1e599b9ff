package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_CreateWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.dat")

	local := NewLocal()
	h, err := local.Create(path, 4096)
	require.NoError(t, err)

	payload := []byte("astore-page-content")
	require.NoError(t, h.Pwrite(payload, 128))

	buf := make([]byte, len(payload))
	require.NoError(t, h.Pread(buf, 128))
	assert.Equal(t, payload, buf)

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)

	require.NoError(t, h.Sync())
	require.NoError(t, h.Close())
}

func TestLocal_OpenMissingIsNotFound(t *testing.T) {
	local := NewLocal()
	_, err := local.Open(filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLocal_PreadBeyondEOFIsShortRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.dat")
	local := NewLocal()
	h, err := local.Create(path, 16)
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 64)
	err = h.Pread(buf, 0)
	require.Error(t, err)
	assert.True(t, IsShortRead(err))
}

func TestLocal_Exists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.dat")
	local := NewLocal()
	assert.False(t, local.Exists(path))
	_, err := os.Create(path)
	require.NoError(t, err)
	assert.True(t, local.Exists(path))
}

func TestLocal_Truncate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grow.dat")
	local := NewLocal()
	h, err := local.Create(path, 0)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Truncate(8192))
	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(8192), size)
}
