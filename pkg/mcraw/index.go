package mcraw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
)

// errNoIndex means the trailing index is missing or unusable and the
// file must be opened through the recovery scan.
var errNoIndex = errors.New("no usable index")

// readIndex parses the finalized trailing index. It runs in time
// proportional to the index, not the file.
func (d *Decoder) readIndex() ([]Entry, error) {
	if d.size < headerSize+footerSize {
		return nil, errNoIndex
	}

	footer, err := d.readAt(uint64(d.size-footerSize), footerSize)
	if err != nil {
		return nil, err
	}
	if [4]byte{footer[12], footer[13], footer[14], footer[15]} != footerMagic {
		return nil, errNoIndex
	}

	indexOffset := binary.BigEndian.Uint64(footer[0:8])
	count := binary.BigEndian.Uint32(footer[8:12])

	indexEnd := uint64(d.size - footerSize)
	if indexOffset < headerSize || indexOffset > indexEnd {
		return nil, errNoIndex
	}
	if indexEnd-indexOffset != 8+uint64(count)*entrySize+4 {
		return nil, errNoIndex
	}

	index, err := d.readAt(indexOffset, uint32(indexEnd-indexOffset))
	if err != nil {
		return nil, err
	}
	if [4]byte{index[0], index[1], index[2], index[3]} != indexMagic {
		return nil, errNoIndex
	}
	if binary.BigEndian.Uint32(index[4:8]) != count {
		return nil, errNoIndex
	}

	crcPos := len(index) - 4
	if crc32.ChecksumIEEE(index[:crcPos]) != binary.BigEndian.Uint32(index[crcPos:]) {
		return nil, errNoIndex
	}

	entries := make([]Entry, count)
	for i := range entries {
		entries[i].unmarshalEntry(index[8+i*entrySize:])
	}
	if err := d.validateEntries(entries); err != nil {
		return nil, errNoIndex
	}
	return entries, nil
}

// reindexOffsets rebuilds the offset table by scanning record markers
// from the header. The scan stops at the first short or invalid marker,
// so a crash mid-write loses at most the trailing record.
func (d *Decoder) reindexOffsets() ([]Entry, error) {
	var entries []Entry

	pos := uint64(headerSize)
	for pos+markerSize <= uint64(d.size) {
		marker, err := d.readAt(pos, markerSize)
		if err != nil {
			return nil, err
		}

		var entry Entry
		if err := entry.unmarshalMarker(marker); err != nil {
			break
		}
		entry.Offset = pos + markerSize
		if entry.Offset+uint64(entry.Size) > uint64(d.size) {
			break
		}

		entries = append(entries, entry)
		pos = entry.Offset + uint64(entry.Size)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no usable records", ErrCorruptContainer)
	}
	return entries, nil
}

// validateEntries enforces the offset table invariant, every payload
// must lie fully inside the file, behind a marker.
func (d *Decoder) validateEntries(entries []Entry) error {
	for _, e := range entries {
		if !e.Kind.Valid() {
			return fmt.Errorf("%w: invalid kind %d", ErrCorruptContainer, uint8(e.Kind))
		}
		if !e.Codec.Valid() {
			return fmt.Errorf("%w: invalid codec %d", ErrCorruptContainer, uint8(e.Codec))
		}
		if e.Offset < headerSize+markerSize || e.Offset+uint64(e.Size) > uint64(d.size) {
			return fmt.Errorf(
				"%w: entry at offset %d size %d outside file of size %d",
				ErrCorruptContainer, e.Offset, e.Size, d.size)
		}
	}
	return nil
}

// buildIndices partitions the offset table by kind and derives the
// frame list, the timestamp lookup structures and the audio order.
func (d *Decoder) buildIndices(entries []Entry) error {
	var frames []Entry
	for _, e := range entries {
		switch e.Kind {
		case KindFrame:
			frames = append(frames, e)
		case KindAudio:
			d.audio = append(d.audio, e)
		case KindFrameMetadata:
			if _, exist := d.frameMeta[e.Timestamp]; exist {
				return fmt.Errorf(
					"%w: duplicate frame metadata timestamp %d",
					ErrCorruptContainer, e.Timestamp)
			}
			d.frameMeta[e.Timestamp] = e
		case KindContainerMetadata:
			if !d.hasMetadata {
				d.metadataEntry = e
				d.hasMetadata = true
			}
		}
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Timestamp < frames[j].Timestamp
	})

	// Audio chunks with equal timestamps keep their file order.
	sort.SliceStable(d.audio, func(i, j int) bool {
		return d.audio[i].Timestamp < d.audio[j].Timestamp
	})

	d.frames = make([]int64, len(frames))
	for i, e := range frames {
		if i > 0 && e.Timestamp == frames[i-1].Timestamp {
			return fmt.Errorf(
				"%w: duplicate frame timestamp %d",
				ErrCorruptContainer, e.Timestamp)
		}
		d.frames[i] = e.Timestamp
		d.frameMap[e.Timestamp] = e
		d.frameIndex.ReplaceOrInsert(frameKey(e.Timestamp))
	}
	return nil
}
