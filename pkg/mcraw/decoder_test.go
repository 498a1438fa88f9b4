package mcraw

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mcraw/pkg/mcraw/codec"
)

// testFrame returns one frame of 16-bit big-endian samples that fit in
// 12 bits, so every codec in the container can carry it.
func testFrame(seed int) []byte {
	out := make([]byte, testFrameWidth*testFrameHeight*2)
	for i := 0; i < len(out)/2; i++ {
		v := uint16(seed*100+i*17) & 0x0fff
		binary.BigEndian.PutUint16(out[i*2:], v)
	}
	return out
}

const (
	testFrameWidth  = 4
	testFrameHeight = 2
	testMetadata    = `{"sensor":"IMX477","fps":30}`
)

var testAudio = map[int64][]int16{
	50:  {0, 1, -1, 32767},
	150: {-32768, 500, -500, 7},
	250: {12, 13, 14, 15},
}

// buildTestContainer writes the standard test container and returns
// its bytes plus the end offset of every record, in file order:
// metadata, frame 100, frame metadata 100, audio 50, frame 200,
// audio 150, frame 300, frame metadata 300, audio 250.
func buildTestContainer(t *testing.T, finalize bool) ([]byte, []int) {
	t.Helper()

	buf := &bytes.Buffer{}
	w, err := NewWriter(buf)
	require.NoError(t, err)

	var ends []int
	record := func(err error) {
		require.NoError(t, err)
		ends = append(ends, buf.Len())
	}

	record(w.WriteContainerMetadata(testMetadata))
	record(w.WriteFrame(100, codec.None, testFrame(1)))
	record(w.WriteFrameMetadata(100, `{"exposure":100}`))
	record(w.WriteAudio(50, testAudio[50]))
	record(w.WriteFrame(200, codec.Packed12, testFrame(2)))
	record(w.WriteAudio(150, testAudio[150]))
	record(w.WriteFrame(300, codec.Zstd, testFrame(3)))
	record(w.WriteFrameMetadata(300, `{"exposure":300}`))
	record(w.WriteAudio(250, testAudio[250]))

	if finalize {
		require.NoError(t, w.Finalize())
	}
	return buf.Bytes(), ends
}

func openTestContainer(t *testing.T, data []byte) *Decoder {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.mcraw")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	d, err := NewDecoder(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDecoderFastPath(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	require.False(t, d.RecoveredIndex())
	require.Equal(t, []int64{100, 200, 300}, d.Frames())
	require.Equal(t, 3, d.NumFrames())
	require.Equal(t, 3, d.NumAudioChunks())

	metadata, err := d.ContainerMetadata()
	require.NoError(t, err)
	require.Equal(t, testMetadata, metadata)
}

func TestDecoderRecovery(t *testing.T) {
	data, _ := buildTestContainer(t, false)
	d := openTestContainer(t, data)

	require.True(t, d.RecoveredIndex())
	require.Equal(t, []int64{100, 200, 300}, d.Frames())

	metadata, err := d.ContainerMetadata()
	require.NoError(t, err)
	require.Equal(t, testMetadata, metadata)
}

func TestDecoderZeroedFooter(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	for i := len(data) - footerSize; i < len(data); i++ {
		data[i] = 0
	}

	d := openTestContainer(t, data)
	require.True(t, d.RecoveredIndex())
	require.Equal(t, []int64{100, 200, 300}, d.Frames())
}

func TestDecoderTruncatedPayload(t *testing.T) {
	data, ends := buildTestContainer(t, false)

	// Cut 10 bytes into the payload of frame 300, the 7th record.
	frame300start := ends[5]
	cut := frame300start + markerSize + 10
	require.Less(t, cut, ends[6])

	d := openTestContainer(t, data[:cut])
	require.True(t, d.RecoveredIndex())
	require.Equal(t, []int64{100, 200}, d.Frames())
}

func TestDecoderTruncatedEveryBoundary(t *testing.T) {
	data, ends := buildTestContainer(t, false)

	frameEnds := map[int64]int{100: ends[1], 200: ends[4], 300: ends[6]}

	for cut := ends[0]; cut <= len(data); cut++ {
		path := filepath.Join(t.TempDir(), "cut.mcraw")
		require.NoError(t, os.WriteFile(path, data[:cut], 0o600))

		d, err := NewDecoder(path, nil)
		require.NoError(t, err, "cut=%d", cut)
		require.True(t, d.RecoveredIndex())

		want := []int64{}
		for _, ts := range []int64{100, 200, 300} {
			if frameEnds[ts] <= cut {
				want = append(want, ts)
			}
		}
		require.Equal(t, want, d.Frames(), "cut=%d", cut)
		d.Close()
	}
}

func TestDecoderRecoveryIgnoresTrailingGarbage(t *testing.T) {
	data, _ := buildTestContainer(t, false)
	data = append(data, bytes.Repeat([]byte{0xab}, 100)...)

	d := openTestContainer(t, data)
	require.True(t, d.RecoveredIndex())
	require.Equal(t, []int64{100, 200, 300}, d.Frames())
}

func TestDecoderBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mcraw")
	require.NoError(t, os.WriteFile(path, []byte("notmcraw........"), 0o600))

	_, err := NewDecoder(path, nil)
	require.ErrorIs(t, err, ErrCorruptContainer)
}

func TestDecoderEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mcraw")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := NewDecoder(path, nil)
	require.ErrorIs(t, err, ErrCorruptContainer)
}

func TestDecoderHeaderOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	_, err := NewWriter(buf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "headeronly.mcraw")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	_, err = NewDecoder(path, nil)
	require.ErrorIs(t, err, ErrCorruptContainer)
}

func TestDecoderDuplicateFrameTimestamp(t *testing.T) {
	for _, finalize := range []bool{true, false} {
		buf := &bytes.Buffer{}
		w, err := NewWriter(buf)
		require.NoError(t, err)

		require.NoError(t, w.WriteContainerMetadata(testMetadata))
		require.NoError(t, w.WriteFrame(100, codec.None, testFrame(1)))
		require.NoError(t, w.WriteFrame(100, codec.None, testFrame(2)))
		if finalize {
			require.NoError(t, w.Finalize())
		}

		path := filepath.Join(t.TempDir(), "dup.mcraw")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		_, err = NewDecoder(path, nil)
		require.ErrorIs(t, err, ErrCorruptContainer)
	}
}

func TestDecoderMissingContainerMetadata(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(100, codec.None, testFrame(1)))
	require.NoError(t, w.Finalize())

	d := openTestContainer(t, buf.Bytes())

	_, err = d.ContainerMetadata()
	require.ErrorIs(t, err, ErrMissingMetadata)
	require.ErrorIs(t, err, ErrCorruptContainer)
}

func TestLoadFrame(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	var out []byte
	for seed, ts := range []int64{100, 200, 300} {
		err := d.LoadFrame(ts, testFrameWidth, testFrameHeight, Compression12Bit, &out)
		require.NoError(t, err)
		require.Equal(t, testFrame(seed+1), out)
	}

	// Identical arguments return identical bytes.
	var again []byte
	err := d.LoadFrame(200, testFrameWidth, testFrameHeight, Compression12Bit, &again)
	require.NoError(t, err)
	err = d.LoadFrame(200, testFrameWidth, testFrameHeight, Compression12Bit, &out)
	require.NoError(t, err)
	require.Equal(t, again, out)
}

func TestLoadFrameNotFound(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	var out []byte
	err := d.LoadFrame(250, testFrameWidth, testFrameHeight, Compression12Bit, &out)
	require.ErrorIs(t, err, ErrFrameNotFound)
}

func TestLoadFrameSizeMismatch(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	var out []byte
	err := d.LoadFrame(100, testFrameWidth+1, testFrameHeight, Compression12Bit, &out)

	var sizeErr *SizeMismatchError
	require.ErrorAs(t, err, &sizeErr)
	require.Equal(t, int64(100), sizeErr.Timestamp)
	require.Equal(t, (testFrameWidth+1)*testFrameHeight*2, sizeErr.Want)
	require.Equal(t, testFrameWidth*testFrameHeight*2, sizeErr.Got)
}

func TestLoadFrameNoStaleOutput(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	out := bytes.Repeat([]byte{0xff}, 100)
	err := d.LoadFrame(100, testFrameWidth, testFrameHeight, Compression12Bit, &out)
	require.NoError(t, err)
	require.Equal(t, testFrame(1), out)
}

func TestLoadFrameMetadata(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	text, exist, err := d.LoadFrameMetadata(100)
	require.NoError(t, err)
	require.True(t, exist)
	require.Equal(t, `{"exposure":100}`, text)

	// Frame 200 has no metadata record, which is not an error.
	text, exist, err = d.LoadFrameMetadata(200)
	require.NoError(t, err)
	require.False(t, exist)
	require.Equal(t, "", text)

	_, _, err = d.LoadFrameMetadata(999)
	require.ErrorIs(t, err, ErrFrameNotFound)
}

func TestNearestFrame(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	cases := []struct {
		ts    int64
		want  int64
		found bool
	}{
		{99, 0, false},
		{100, 100, true},
		{250, 200, true},
		{300, 300, true},
		{10000, 300, true},
	}
	for _, tc := range cases {
		got, found := d.NearestFrame(tc.ts)
		require.Equal(t, tc.found, found, "ts=%d", tc.ts)
		if found {
			require.Equal(t, tc.want, got, "ts=%d", tc.ts)
		}
	}
}

func TestDecoderFromFile(t *testing.T) {
	data, _ := buildTestContainer(t, true)

	path := filepath.Join(t.TempDir(), "test.mcraw")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	file, err := os.Open(path)
	require.NoError(t, err)

	d, err := NewDecoderFromFile(file)
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, []int64{100, 200, 300}, d.Frames())
}

func TestDecoderOperationFailureDoesNotInvalidate(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	var out []byte
	err := d.LoadFrame(999, testFrameWidth, testFrameHeight, Compression12Bit, &out)
	require.ErrorIs(t, err, ErrFrameNotFound)

	err = d.LoadFrame(100, testFrameWidth, testFrameHeight, Compression12Bit, &out)
	require.NoError(t, err)
	require.Equal(t, testFrame(1), out)
}

func TestDecoderFramesIsACopy(t *testing.T) {
	data, _ := buildTestContainer(t, true)
	d := openTestContainer(t, data)

	frames := d.Frames()
	frames[0] = 42
	require.Equal(t, []int64{100, 200, 300}, d.Frames())
}
