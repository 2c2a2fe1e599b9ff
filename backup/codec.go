package backup

import (
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compressor used for each archived extent.
type Codec int

const (
	CodecSnappy Codec = iota
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecSnappy:
		return "snappy"
	case CodecLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

func compress(c Codec, src []byte) ([]byte, error) {
	switch c {
	case CodecSnappy:
		return snappy.Encode(nil, src), nil
	case CodecLZ4:
		buf := make([]byte, 1+lz4.CompressBlockBound(len(src)))
		var comp lz4.Compressor
		n, err := comp.CompressBlock(src, buf[1:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible input: lz4 reports n=0 rather than emitting a
			// literal-only block. Store it raw, tagged so decompress knows
			// not to run UncompressBlock over it.
			buf = buf[:1+len(src)]
			buf[0] = 1
			copy(buf[1:], src)
			return buf, nil
		}
		buf[0] = 0
		return buf[:1+n], nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

func decompress(c Codec, src []byte, plainLen int) ([]byte, error) {
	switch c {
	case CodecSnappy:
		return snappy.Decode(make([]byte, 0, plainLen), src)
	case CodecLZ4:
		if len(src) == 0 {
			return nil, nil
		}
		if src[0] == 1 {
			return src[1:], nil
		}
		dst := make([]byte, plainLen)
		n, err := lz4.UncompressBlock(src[1:], dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	default:
		return nil, ErrUnsupportedCodec
	}
}
