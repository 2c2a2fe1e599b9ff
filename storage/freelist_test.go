package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeExtentListBestFitOrdering(t *testing.T) {
	l := NewFreeExtentList()
	l.Add(2, 100, 50)
	l.Add(1, 200, 50)
	l.Add(1, 50, 127)

	fe, ok := l.BestFit()
	assert.True(t, ok)
	assert.Equal(t, FreeExtent{1, 50, 127}, fe)

	snap := l.Snapshot()
	assert.Equal(t, FreeExtent{1, 200, 50}, snap[1], "tie-break by file id then offset")
}

func TestFreeExtentListRemove(t *testing.T) {
	l := NewFreeExtentList()
	l.Add(1, 0, 10)
	l.Remove(1, 0)
	_, ok := l.BestFit()
	assert.False(t, ok)
}

func TestFreeExtentListTotalFreePages(t *testing.T) {
	l := NewFreeExtentList()
	l.Add(1, 0, 10)
	l.Add(1, ExtentSize, 20)
	assert.EqualValues(t, 30, l.TotalFreePages())
}
