// Package codec decompresses raw container buffers.
package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ID identifies how a buffer is encoded on disk.
type ID uint8

// Supported codecs.
const (
	None ID = iota
	Zstd
	Packed10
	Packed12
	Packed14
)

// Valid reports whether id is in the supported set.
func (id ID) Valid() bool {
	return id <= Packed14
}

func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Packed10:
		return "packed10"
	case Packed12:
		return "packed12"
	case Packed14:
		return "packed14"
	}
	return fmt.Sprintf("unknown(%d)", uint8(id))
}

// Errors.
var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrMalformed        = errors.New("malformed data")
)

// The zstd decoder and encoder are stateless when used through
// DecodeAll/EncodeAll and are safe for concurrent use.
var (
	zstdDecoder *zstd.Decoder
	zstdEncoder *zstd.Encoder
)

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(err)
	}
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
}

// Decompress decodes src into dst[:0] and returns the result.
// Decoding is all-or-nothing, a malformed buffer never yields
// partial output.
func Decompress(dst []byte, src []byte, id ID) ([]byte, error) {
	switch id {
	case None:
		return append(dst[:0], src...), nil
	case Zstd:
		out, err := zstdDecoder.DecodeAll(src, dst[:0])
		if err != nil {
			return nil, fmt.Errorf("zstd: %w: %v", ErrMalformed, err)
		}
		return out, nil
	case Packed10:
		return unpack(dst[:0], src, 10)
	case Packed12:
		return unpack(dst[:0], src, 12)
	case Packed14:
		return unpack(dst[:0], src, 14)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedCodec, id)
}

// Compress encodes src into dst[:0] and returns the result.
// The capture side and the tests use this to produce buffers
// that Decompress accepts.
func Compress(dst []byte, src []byte, id ID) ([]byte, error) {
	switch id {
	case None:
		return append(dst[:0], src...), nil
	case Zstd:
		return zstdEncoder.EncodeAll(src, dst[:0]), nil
	case Packed10:
		return pack(dst[:0], src, 10)
	case Packed12:
		return pack(dst[:0], src, 12)
	case Packed14:
		return pack(dst[:0], src, 14)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedCodec, id)
}
