package mcraw

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"mcraw/pkg/mcraw/codec"
)

// Writer writes MCRAW containers. The capture side appends records and
// calls Finalize on clean shutdown. A crashed capture never finalizes,
// records written before the crash stay recoverable.
type Writer struct {
	out io.Writer

	pos     uint64
	entries []Entry
}

// NewWriter creates a new Writer and writes the container header.
func NewWriter(out io.Writer) (*Writer, error) {
	header := make([]byte, headerSize)
	copy(header[0:4], headerMagic[:])
	binary.BigEndian.PutUint16(header[4:6], formatVersion)

	if _, err := out.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Writer{out: out, pos: headerSize}, nil
}

// WriteRecord appends a single record. The payload must already be
// encoded with the named codec.
func (w *Writer) WriteRecord(kind Kind, id codec.ID, timestamp int64, payload []byte) error {
	entry := Entry{
		Offset:    w.pos + markerSize,
		Size:      uint32(len(payload)),
		Kind:      kind,
		Codec:     id,
		Timestamp: timestamp,
	}

	if _, err := w.out.Write(entry.marshalMarker()); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if _, err := w.out.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	w.pos += markerSize + uint64(len(payload))
	w.entries = append(w.entries, entry)
	return nil
}

// WriteContainerMetadata appends the container metadata record.
func (w *Writer) WriteContainerMetadata(text string) error {
	payload, err := codec.Compress(nil, []byte(text), codec.Zstd)
	if err != nil {
		return err
	}
	return w.WriteRecord(KindContainerMetadata, codec.Zstd, 0, payload)
}

// WriteFrame compresses and appends a frame of 16-bit big-endian
// sensor samples.
func (w *Writer) WriteFrame(timestamp int64, id codec.ID, samples []byte) error {
	payload, err := codec.Compress(nil, samples, id)
	if err != nil {
		return err
	}
	return w.WriteRecord(KindFrame, id, timestamp, payload)
}

// WriteFrameMetadata appends a metadata record for the frame with the
// same timestamp.
func (w *Writer) WriteFrameMetadata(timestamp int64, text string) error {
	payload, err := codec.Compress(nil, []byte(text), codec.Zstd)
	if err != nil {
		return err
	}
	return w.WriteRecord(KindFrameMetadata, codec.Zstd, timestamp, payload)
}

// WriteAudio compresses and appends one chunk of audio samples.
func (w *Writer) WriteAudio(timestamp int64, samples []int16) error {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(raw[i*2:], uint16(s))
	}

	payload, err := codec.Compress(nil, raw, codec.Zstd)
	if err != nil {
		return err
	}
	return w.WriteRecord(KindAudio, codec.Zstd, timestamp, payload)
}

// Finalize writes the index and footer. No records may be written
// after it.
func (w *Writer) Finalize() error {
	indexOffset := w.pos

	index := make([]byte, 8+len(w.entries)*entrySize+4)
	copy(index[0:4], indexMagic[:])
	binary.BigEndian.PutUint32(index[4:8], uint32(len(w.entries)))
	for i, e := range w.entries {
		e.marshalEntry(index[8+i*entrySize:])
	}
	crcPos := len(index) - 4
	binary.BigEndian.PutUint32(index[crcPos:], crc32.ChecksumIEEE(index[:crcPos]))

	if _, err := w.out.Write(index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	footer := make([]byte, footerSize)
	binary.BigEndian.PutUint64(footer[0:8], indexOffset)
	binary.BigEndian.PutUint32(footer[8:12], uint32(len(w.entries)))
	copy(footer[12:16], footerMagic[:])

	if _, err := w.out.Write(footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	return nil
}
