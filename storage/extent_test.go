package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtentHeaderAllocateAndFree(t *testing.T) {
	h := NewExtentHeader(1, 1, PageSize, ExtentUsablePages)
	assert.EqualValues(t, ExtentUsablePages, h.FreePages)

	idx, ok := h.AllocatePage()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.EqualValues(t, ExtentUsablePages-1, h.FreePages)

	h.FreePage(idx)
	assert.EqualValues(t, ExtentUsablePages, h.FreePages)
	assert.True(t, h.IsEmpty())
}

func TestExtentHeaderFillsUp(t *testing.T) {
	h := NewExtentHeader(1, 1, PageSize, ExtentUsablePages)
	for i := 0; i < ExtentUsablePages; i++ {
		_, ok := h.AllocatePage()
		require.True(t, ok)
	}
	assert.True(t, h.IsFull())
	_, ok := h.AllocatePage()
	assert.False(t, ok)
}

func TestExtentHeaderSerializeRoundTrip(t *testing.T) {
	h := NewExtentHeader(7, 42, PageSize*3, ExtentUsablePages)
	h.NextExtentPtr = PageSize * 4
	h.UpdateChecksum()

	buf := h.Serialize()
	got, err := DeserializeExtentHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h.FileID, got.FileID)
	assert.Equal(t, h.TablespaceID, got.TablespaceID)
	assert.Equal(t, h.NextExtentPtr, got.NextExtentPtr)
}

func TestExtentHeaderChecksumMismatch(t *testing.T) {
	h := NewExtentHeader(1, 1, PageSize, ExtentUsablePages)
	h.UpdateChecksum()
	buf := h.Serialize()
	buf[30] ^= 0xFF

	_, err := DeserializeExtentHeader(buf)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))
}

func TestFileHeaderSerializeRoundTrip(t *testing.T) {
	fh := NewFileHeader(3, 9, ExtentSize*4)
	fh.ExtentCount = 4
	fh.UpdateChecksum()

	got, err := DeserializeFileHeader(fh.Serialize())
	require.NoError(t, err)
	assert.Equal(t, fh.FileID, got.FileID)
	assert.Equal(t, fh.ExtentCount, got.ExtentCount)
}

func TestFileHeaderRejectsBadMagic(t *testing.T) {
	fh := NewFileHeader(3, 9, ExtentSize)
	fh.UpdateChecksum()
	buf := fh.Serialize()
	buf[0] = 0

	_, err := DeserializeFileHeader(buf)
	require.Error(t, err)
	assert.True(t, IsInvalidFileHeader(err))
}

func TestFileHeaderRejectsBadChecksum(t *testing.T) {
	fh := NewFileHeader(3, 9, ExtentSize)
	fh.UpdateChecksum()
	buf := fh.Serialize()
	buf[30] ^= 0xFF

	_, err := DeserializeFileHeader(buf)
	require.Error(t, err)
	assert.True(t, IsInvalidFileHeader(err), "a wrong file-header checksum is InvalidFileHeader, not ChecksumMismatch")
}

func TestSegmentHeaderSerializeRoundTrip(t *testing.T) {
	sh := &SegmentHeader{SegmentID: 55, SegmentType: SegmentIndex, TotalPages: 12}
	sh.UpdateChecksum()

	got, err := DeserializeSegmentHeader(sh.Serialize())
	require.NoError(t, err)
	assert.Equal(t, sh.SegmentID, got.SegmentID)
	assert.Equal(t, sh.SegmentType, got.SegmentType)
}
