package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageInvariant(t *testing.T) {
	p := New(42, TypeData)
	assert.True(t, p.CheckInvariant())
	assert.Equal(t, Size-HeaderSize, p.FreeSpace())
}

func TestSerializeRoundTrip(t *testing.T) {
	p := New(7, TypeLeaf)
	copy(p.Body[:5], []byte("hello"))
	p.UpdateChecksum()

	buf := p.Serialize()
	require.Len(t, buf, Size)

	got, err := Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, p.Header.SelfID, got.Header.SelfID)
	assert.Equal(t, p.Header.Type, got.Header.Type)
	assert.Equal(t, p.Body, got.Body)
}

func TestDeserializeChecksumMismatch(t *testing.T) {
	p := New(1, TypeData)
	p.UpdateChecksum()
	buf := p.Serialize()
	buf[200] ^= 0xFF // corrupt body without touching the stored checksum

	_, err := Deserialize(buf)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))
}

func TestDeserializeRejectsWrongLength(t *testing.T) {
	_, err := Deserialize(make([]byte, 10))
	require.Error(t, err)
	assert.True(t, IsInvalidPageType(err))
}

func TestContentFingerprintStableForIdenticalBytes(t *testing.T) {
	p1 := New(9, TypeData)
	p2 := New(9, TypeData)
	assert.Equal(t, p1.ContentFingerprint(), p2.ContentFingerprint())

	p2.Body[0] = 1
	assert.NotEqual(t, p1.ContentFingerprint(), p2.ContentFingerprint())
}
