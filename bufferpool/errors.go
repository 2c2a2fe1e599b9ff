package bufferpool

import "errors"

var (
	// ErrBufferPoolFull is returned when no slot is evictable: every slot
	// is pinned. The caller must retry after releasing some pins.
	ErrBufferPoolFull = errors.New("bufferpool: no evictable slot, pool full")
	// ErrPageNotResident is returned by Unpin/MarkDirty/Flush when the
	// requested page id is not currently cached.
	ErrPageNotResident = errors.New("bufferpool: page not resident")
	// ErrPageAlreadyResident is returned by Allocate when pageID is
	// already cached — allocation is for ids with no prior resident copy.
	ErrPageAlreadyResident = errors.New("bufferpool: page already resident")
)

func IsBufferPoolFull(err error) bool      { return errors.Is(err, ErrBufferPoolFull) }
func IsPageNotResident(err error) bool     { return errors.Is(err, ErrPageNotResident) }
func IsPageAlreadyResident(err error) bool { return errors.Is(err, ErrPageAlreadyResident) }
