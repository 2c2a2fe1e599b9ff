package backup

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astorelabs/astore/page"
	"github.com/astorelabs/astore/storage"
	"github.com/astorelabs/astore/vfs"
)

func newManager(t *testing.T) *storage.TablespaceManager {
	dir, err := os.MkdirTemp("", "astore-backup-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return storage.NewTablespaceManager(vfs.NewLocal(), dir, nil)
}

func seedTablespace(t *testing.T, m *storage.TablespaceManager, name string) (uint64, []uint64) {
	tsID, err := m.CreateTablespace(name, storage.ExtentSize)
	require.NoError(t, err)
	segID, err := m.CreateSegment(tsID, storage.SegmentData)
	require.NoError(t, err)

	var pageIDs []uint64
	for i := 0; i < 10; i++ {
		pid, err := m.AllocatePage(tsID, segID)
		require.NoError(t, err)
		p := page.New(pid, page.TypeData)
		copy(p.Body[:], []byte("payload-for-page"))
		require.NoError(t, m.WritePage(tsID, pid, p))
		pageIDs = append(pageIDs, pid)
	}
	return tsID, pageIDs
}

func testRoundTrip(t *testing.T, codec Codec) {
	m := newManager(t)
	tsID, pageIDs := seedTablespace(t, m, "orders")

	var buf bytes.Buffer
	require.NoError(t, Archive(m, tsID, &buf, codec))

	restoredID, err := Restore(m, &buf, "orders-restored")
	require.NoError(t, err)
	assert.NotEqual(t, tsID, restoredID)

	for _, pid := range pageIDs {
		original, err := m.ReadPage(tsID, pid)
		require.NoError(t, err)
		restored, err := m.ReadPage(restoredID, pid)
		require.NoError(t, err)
		assert.Equal(t, original.Serialize(), restored.Serialize())
	}
}

func TestArchiveRestoreRoundTripSnappy(t *testing.T) {
	testRoundTrip(t, CodecSnappy)
}

func TestArchiveRestoreRoundTripLZ4(t *testing.T) {
	testRoundTrip(t, CodecLZ4)
}

func TestRestoreRejectsExistingName(t *testing.T) {
	m := newManager(t)
	tsID, _ := seedTablespace(t, m, "orders")

	var buf bytes.Buffer
	require.NoError(t, Archive(m, tsID, &buf, CodecSnappy))

	_, err := Restore(m, &buf, "orders")
	require.Error(t, err)
	assert.True(t, IsTablespaceExists(err))
}

func TestRestoreRejectsTruncatedArchive(t *testing.T) {
	m := newManager(t)
	tsID, _ := seedTablespace(t, m, "orders")

	var buf bytes.Buffer
	require.NoError(t, Archive(m, tsID, &buf, CodecSnappy))

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()/2])
	_, err := Restore(m, truncated, "orders-restored")
	require.Error(t, err)
}
