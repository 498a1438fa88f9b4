package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecompressNone(t *testing.T) {
	out, err := Decompress(nil, []byte{1, 2, 3}, None)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, out)
}

func TestDecompressZstd(t *testing.T) {
	raw := []byte("on-disk buffers are independently compressed")

	compressed, err := Compress(nil, raw, Zstd)
	require.NoError(t, err)

	out, err := Decompress(nil, compressed, Zstd)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}

func TestDecompressZstdMalformed(t *testing.T) {
	_, err := Decompress(nil, []byte{0xff, 0xff, 0xff, 0xff}, Zstd)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecompressPacked(t *testing.T) {
	cases := []struct {
		name string
		id   ID
	}{
		{"packed10", Packed10},
		{"packed12", Packed12},
		{"packed14", Packed14},
	}

	// 16-bit big-endian samples that fit in 10 bits.
	raw := []byte{
		0x0, 0x1,
		0x2, 0x0,
		0x3, 0xff,
		0x0, 0x0,
		0x1, 0x55,
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compressed, err := Compress(nil, raw, tc.id)
			require.NoError(t, err)

			out, err := Decompress(nil, compressed, tc.id)
			require.NoError(t, err)
			require.Equal(t, raw, out)
		})
	}
}

func TestDecompressPacked10(t *testing.T) {
	// Two 10-bit samples: 0b1111111111 and 0b0000000001,
	// packed big-endian with 4 pad bits.
	packed := []byte{
		0xff, // 11111111
		0xc0, // 11 000000
		0x10, // 0001 0000
	}

	out, err := Decompress(nil, packed, Packed10)
	require.NoError(t, err)
	require.Equal(t, []byte{0x3, 0xff, 0x0, 0x1}, out)
}

func TestPackOverflow(t *testing.T) {
	_, err := Compress(nil, []byte{0xff, 0xff}, Packed10)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestUnsupportedCodec(t *testing.T) {
	_, err := Decompress(nil, []byte{1}, ID(99))
	require.ErrorIs(t, err, ErrUnsupportedCodec)
}

func TestDecompressReusesDst(t *testing.T) {
	dst := []byte{9, 9, 9, 9}
	out, err := Decompress(dst, []byte{1, 2}, None)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, out)
}
