package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
)

// unpack expands big-endian bit-packed sensor samples into 16-bit
// big-endian samples. The packed stream is padded to a byte boundary,
// the padding is always shorter than one sample and is ignored.
func unpack(dst []byte, src []byte, bits uint8) ([]byte, error) {
	r := bitio.NewReader(bytes.NewReader(src))

	var sample [2]byte
	for {
		v, err := r.ReadBits(bits)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return dst, nil
			}
			return nil, fmt.Errorf("unpack: %w: %v", ErrMalformed, err)
		}
		binary.BigEndian.PutUint16(sample[:], uint16(v))
		dst = append(dst, sample[0], sample[1])
	}
}

// pack is the inverse of unpack. src holds 16-bit big-endian samples,
// each of which must fit in the packed sample width.
func pack(dst []byte, src []byte, bits uint8) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, fmt.Errorf("pack: %w: odd input length %d", ErrMalformed, len(src))
	}

	buf := bytes.NewBuffer(dst)
	w := bitio.NewWriter(buf)
	max := uint64(1)<<bits - 1

	for i := 0; i < len(src); i += 2 {
		v := uint64(binary.BigEndian.Uint16(src[i : i+2]))
		if v > max {
			return nil, fmt.Errorf("pack: %w: sample %d overflows %d bits", ErrMalformed, v, bits)
		}
		if err := w.WriteBits(v, bits); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
