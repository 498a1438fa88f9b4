package mcraw

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/btree"

	"mcraw/pkg/indexcache"
	"mcraw/pkg/mcraw/codec"
)

// CompressionType declares how a frame's decoded samples are laid out.
// The caller knows it from the container metadata.
type CompressionType int

// Compression types.
const (
	Compression8Bit CompressionType = iota
	Compression10Bit
	Compression12Bit
	Compression14Bit
	Compression16Bit
)

// Valid reports whether c is a known compression type.
func (c CompressionType) Valid() bool {
	return c >= Compression8Bit && c <= Compression16Bit
}

// BytesPerSample is the decoded size of one sample.
func (c CompressionType) BytesPerSample() int {
	if c == Compression8Bit {
		return 1
	}
	return 2
}

// BitsPerSample is the significant bit depth of one sample.
func (c CompressionType) BitsPerSample() int {
	switch c {
	case Compression8Bit:
		return 8
	case Compression10Bit:
		return 10
	case Compression12Bit:
		return 12
	case Compression14Bit:
		return 14
	}
	return 16
}

type frameKey int64

func (k frameKey) Less(than btree.Item) bool {
	return k < than.(frameKey)
}

// Decoder reads a single MCRAW container. It owns the file handle and
// the offset table for its lifetime. Methods must not be called from
// multiple goroutines at once, open one Decoder per goroutine instead.
type Decoder struct {
	file *os.File
	size int64

	recovered bool

	frames     []int64
	frameMap   map[int64]Entry
	frameIndex *btree.BTree
	frameMeta  map[int64]Entry
	audio      []Entry

	metadataEntry Entry
	hasMetadata   bool
	metadata      string
}

// NewDecoder opens the container at path. The cache may be nil. It is
// only consulted for unfinalized files, where it replaces the linear
// recovery scan.
// Caller must call Close() when done.
func NewDecoder(path string, cache *indexcache.Cache) (*Decoder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}

	d, err := newDecoder(file, cache)
	if err != nil {
		file.Close()
		return nil, err
	}
	return d, nil
}

// NewDecoderFromFile creates a Decoder over an already open file. The
// Decoder takes ownership of the handle.
func NewDecoderFromFile(file *os.File) (*Decoder, error) {
	d, err := newDecoder(file, nil)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newDecoder(file *os.File, cache *indexcache.Cache) (*Decoder, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}

	d := &Decoder{
		file:       file,
		size:       stat.Size(),
		frameMap:   map[int64]Entry{},
		frameIndex: btree.New(8),
		frameMeta:  map[int64]Entry{},
	}

	if err := d.checkHeader(); err != nil {
		return nil, err
	}

	entries, err := d.readIndex()
	if err != nil {
		if !errors.Is(err, errNoIndex) {
			return nil, err
		}
		entries, err = d.recoverEntries(cache, stat)
		if err != nil {
			return nil, err
		}
		d.recovered = true
	}

	if err := d.buildIndices(entries); err != nil {
		return nil, err
	}
	if err := d.readContainerMetadata(); err != nil {
		return nil, err
	}
	return d, nil
}

// recoverEntries rebuilds the offset table of an unfinalized file,
// through the cache when it has a current copy.
func (d *Decoder) recoverEntries(cache *indexcache.Cache, stat os.FileInfo) ([]Entry, error) {
	if cache != nil {
		if blob, ok := cache.Get(d.file.Name(), stat.Size(), stat.ModTime()); ok {
			entries, err := UnmarshalEntries(blob)
			if err == nil && len(entries) > 0 && d.validateEntries(entries) == nil {
				return entries, nil
			}
			// A stale or damaged cache record falls through to a rescan.
		}
	}

	entries, err := d.reindexOffsets()
	if err != nil {
		return nil, err
	}

	if cache != nil {
		// A failed cache write only costs a rescan next time.
		_ = cache.Put(d.file.Name(), stat.Size(), stat.ModTime(), MarshalEntries(entries))
	}
	return entries, nil
}

func (d *Decoder) checkHeader() error {
	header, err := d.readAt(0, headerSize)
	if err != nil {
		return fmt.Errorf("%w: file smaller than header", ErrCorruptContainer)
	}
	if [4]byte{header[0], header[1], header[2], header[3]} != headerMagic {
		return fmt.Errorf("%w: bad magic", ErrCorruptContainer)
	}
	if version := uint16(header[4])<<8 | uint16(header[5]); version != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptContainer, version)
	}
	return nil
}

func (d *Decoder) readContainerMetadata() error {
	if !d.hasMetadata {
		return nil
	}
	raw, err := d.readAt(d.metadataEntry.Offset, d.metadataEntry.Size)
	if err != nil {
		return err
	}
	decoded, err := codec.Decompress(nil, raw, d.metadataEntry.Codec)
	if err != nil {
		return fmt.Errorf("container metadata: %w", err)
	}
	d.metadata = string(decoded)
	return nil
}

// readAt reads size bytes at offset. The bounds are checked against the
// file length before the read.
func (d *Decoder) readAt(offset uint64, size uint32) ([]byte, error) {
	if offset+uint64(size) > uint64(d.size) {
		return nil, &ReadError{
			Offset: offset,
			Size:   size,
			Err:    fmt.Errorf("beyond end of file, size %d", d.size),
		}
	}

	buf := make([]byte, size)
	if _, err := d.file.ReadAt(buf, int64(offset)); err != nil {
		return nil, &ReadError{Offset: offset, Size: size, Err: err}
	}
	return buf, nil
}

// Close releases the file handle.
func (d *Decoder) Close() error {
	return d.file.Close()
}

// RecoveredIndex reports whether the file was opened through the
// recovery scan instead of the finalized index.
func (d *Decoder) RecoveredIndex() bool {
	return d.recovered
}

// ContainerMetadata returns the container's metadata text.
func (d *Decoder) ContainerMetadata() (string, error) {
	if !d.hasMetadata {
		return "", ErrMissingMetadata
	}
	return d.metadata, nil
}

// Frames returns every frame timestamp in ascending order.
func (d *Decoder) Frames() []int64 {
	frames := make([]int64, len(d.frames))
	copy(frames, d.frames)
	return frames
}

// NumFrames returns the number of frames.
func (d *Decoder) NumFrames() int {
	return len(d.frames)
}

// NumAudioChunks returns the number of audio chunks.
func (d *Decoder) NumAudioChunks() int {
	return len(d.audio)
}

// NearestFrame returns the frame timestamp at or before ts, or false
// if every frame is later.
func (d *Decoder) NearestFrame(ts int64) (int64, bool) {
	var found int64
	ok := false
	d.frameIndex.DescendLessOrEqual(frameKey(ts), func(i btree.Item) bool {
		found = int64(i.(frameKey))
		ok = true
		return false
	})
	return found, ok
}

// LoadFrame reads, decompresses and validates a single frame into out.
// The stored codec of the frame decides decompression, the caller's
// compression type only declares the expected decoded sample layout.
// Previous contents of out do not leak into the result.
func (d *Decoder) LoadFrame(
	timestamp int64,
	width int,
	height int,
	compression CompressionType,
	out *[]byte,
) error {
	if !compression.Valid() {
		return fmt.Errorf("invalid compression type %d", compression)
	}

	entry, exist := d.frameMap[timestamp]
	if !exist {
		return fmt.Errorf("%w: timestamp %d", ErrFrameNotFound, timestamp)
	}

	raw, err := d.readAt(entry.Offset, entry.Size)
	if err != nil {
		return err
	}

	decoded, err := codec.Decompress((*out)[:0], raw, entry.Codec)
	if err != nil {
		return fmt.Errorf("frame %d: %w", timestamp, err)
	}

	want := width * height * compression.BytesPerSample()
	if len(decoded) != want {
		return &SizeMismatchError{Timestamp: timestamp, Want: want, Got: len(decoded)}
	}

	*out = decoded
	return nil
}

// LoadFrameMetadata returns the metadata text of the frame at the given
// timestamp. A frame without a metadata record yields ("", false, nil).
func (d *Decoder) LoadFrameMetadata(timestamp int64) (string, bool, error) {
	if _, exist := d.frameMap[timestamp]; !exist {
		return "", false, fmt.Errorf("%w: timestamp %d", ErrFrameNotFound, timestamp)
	}

	entry, exist := d.frameMeta[timestamp]
	if !exist {
		return "", false, nil
	}

	raw, err := d.readAt(entry.Offset, entry.Size)
	if err != nil {
		return "", false, err
	}
	decoded, err := codec.Decompress(nil, raw, entry.Codec)
	if err != nil {
		return "", false, fmt.Errorf("frame metadata %d: %w", timestamp, err)
	}
	return string(decoded), true, nil
}
