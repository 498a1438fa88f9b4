package mcraw

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	_, err := NewWriter(buf)
	require.NoError(t, err)

	require.Equal(t, []byte{
		'M', 'C', 'R', 'W', // Magic.
		0, 1, // Version.
		0, 0, // Flags.
	}, buf.Bytes())
}

func TestWriterFooter(t *testing.T) {
	data, ends := buildTestContainer(t, true)

	lastRecordEnd := ends[len(ends)-1]
	footer := data[len(data)-footerSize:]

	require.Equal(t, []byte{'M', 'E', 'N', 'D'}, footer[12:16])

	// The footer points at the index, which starts at the end of the
	// last record.
	require.Equal(t, []byte{0, 0, 0, 0}, footer[0:4])
	require.Equal(t, byte(lastRecordEnd>>24), footer[4])
	require.Equal(t, byte(lastRecordEnd>>16), footer[5])
	require.Equal(t, byte(lastRecordEnd>>8), footer[6])
	require.Equal(t, byte(lastRecordEnd), footer[7])
}

// The finalized index and the recovery scan must describe the same
// offset table.
func TestWriterIndexMatchesMarkers(t *testing.T) {
	finalized, _ := buildTestContainer(t, true)
	unfinalized, _ := buildTestContainer(t, false)

	fast := openTestContainer(t, finalized)
	slow := openTestContainer(t, unfinalized)

	require.False(t, fast.RecoveredIndex())
	require.True(t, slow.RecoveredIndex())

	require.Equal(t, fast.Frames(), slow.Frames())

	fastAudio, err := fast.LoadAudio()
	require.NoError(t, err)
	slowAudio, err := slow.LoadAudio()
	require.NoError(t, err)
	require.Equal(t, fastAudio, slowAudio)

	var fastFrame, slowFrame []byte
	for _, ts := range fast.Frames() {
		err = fast.LoadFrame(ts, testFrameWidth, testFrameHeight, Compression12Bit, &fastFrame)
		require.NoError(t, err)
		err = slow.LoadFrame(ts, testFrameWidth, testFrameHeight, Compression12Bit, &slowFrame)
		require.NoError(t, err)
		require.Equal(t, fastFrame, slowFrame)
	}
}
