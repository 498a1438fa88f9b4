package mcraw

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"mcraw/pkg/mcraw/codec"
)

// Kind is the logical type of a buffer.
type Kind uint8

// Buffer kinds.
const (
	KindFrame Kind = iota + 1
	KindAudio
	KindFrameMetadata
	KindContainerMetadata
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindFrame && k <= KindContainerMetadata
}

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindAudio:
		return "audio"
	case KindFrameMetadata:
		return "frame metadata"
	case KindContainerMetadata:
		return "container metadata"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Entry describes where a buffer lives in the file and how it
// is encoded.
type Entry struct {
	Offset    uint64 // Payload position in the file.
	Size      uint32 // Payload length on disk.
	Kind      Kind
	Codec     codec.ID
	Timestamp int64
}

const (
	headerSize = 8
	markerSize = 20
	entrySize  = 24
	footerSize = 16
)

var (
	headerMagic = [4]byte{'M', 'C', 'R', 'W'}
	indexMagic  = [4]byte{'M', 'I', 'D', 'X'}
	footerMagic = [4]byte{'M', 'E', 'N', 'D'}
)

const formatVersion = 1

// marshalMarker writes the record marker that prefixes the
// entry's payload.
func (e Entry) marshalMarker() []byte {
	out := make([]byte, markerSize)
	out[0] = uint8(e.Kind)
	out[1] = uint8(e.Codec)
	binary.BigEndian.PutUint32(out[4:8], e.Size)
	binary.BigEndian.PutUint64(out[8:16], uint64(e.Timestamp))
	binary.BigEndian.PutUint32(out[16:20], crc32.ChecksumIEEE(out[0:16]))
	return out
}

// unmarshalMarker parses a record marker. The entry offset is not part
// of the marker, the caller derives it from the scan position.
func (e *Entry) unmarshalMarker(buf []byte) error {
	if crc32.ChecksumIEEE(buf[0:16]) != binary.BigEndian.Uint32(buf[16:20]) {
		return fmt.Errorf("marker checksum mismatch")
	}
	e.Kind = Kind(buf[0])
	e.Codec = codec.ID(buf[1])
	e.Size = binary.BigEndian.Uint32(buf[4:8])
	e.Timestamp = int64(binary.BigEndian.Uint64(buf[8:16]))
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid kind %d", buf[0])
	}
	if !e.Codec.Valid() {
		return fmt.Errorf("invalid codec %d", buf[1])
	}
	return nil
}

// marshalEntry writes the index form of the entry.
func (e Entry) marshalEntry(out []byte) {
	out[0] = uint8(e.Kind)
	out[1] = uint8(e.Codec)
	binary.BigEndian.PutUint32(out[4:8], e.Size)
	binary.BigEndian.PutUint64(out[8:16], e.Offset)
	binary.BigEndian.PutUint64(out[16:24], uint64(e.Timestamp))
}

// unmarshalEntry parses the index form of the entry.
func (e *Entry) unmarshalEntry(buf []byte) {
	e.Kind = Kind(buf[0])
	e.Codec = codec.ID(buf[1])
	e.Size = binary.BigEndian.Uint32(buf[4:8])
	e.Offset = binary.BigEndian.Uint64(buf[8:16])
	e.Timestamp = int64(binary.BigEndian.Uint64(buf[16:24]))
}

// MarshalEntries serializes an offset table in the index entry format,
// without the surrounding index framing. Used by the recovery cache.
func MarshalEntries(entries []Entry) []byte {
	out := make([]byte, len(entries)*entrySize)
	for i, e := range entries {
		e.marshalEntry(out[i*entrySize:])
	}
	return out
}

// UnmarshalEntries is the inverse of MarshalEntries.
func UnmarshalEntries(buf []byte) ([]Entry, error) {
	if len(buf)%entrySize != 0 {
		return nil, fmt.Errorf("%w: entry table length %d", ErrCorruptContainer, len(buf))
	}
	entries := make([]Entry, len(buf)/entrySize)
	for i := range entries {
		entries[i].unmarshalEntry(buf[i*entrySize:])
	}
	return entries, nil
}
