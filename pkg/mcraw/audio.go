package mcraw

import (
	"encoding/binary"
	"fmt"

	"mcraw/pkg/mcraw/codec"
)

// AudioChunk is one decoded chunk of the audio track.
type AudioChunk struct {
	Timestamp int64
	Samples   []int16
}

// LoadAudio decompresses the whole audio track into memory, in
// timestamp order. Use AudioLoader to stream instead.
func (d *Decoder) LoadAudio() ([]AudioChunk, error) {
	chunks := make([]AudioChunk, len(d.audio))
	for i, entry := range d.audio {
		if err := d.loadAudioChunk(entry, &chunks[i]); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// AudioLoader returns a new loader positioned at the first audio chunk.
// Each call returns an independent cursor. The loader is only valid for
// the lifetime of the Decoder that created it.
func (d *Decoder) AudioLoader() *AudioChunkLoader {
	return &AudioChunkLoader{decoder: d}
}

// AudioChunkLoader streams the audio track one chunk at a time, in the
// same order as LoadAudio.
type AudioChunkLoader struct {
	decoder *Decoder
	next    int
}

// Next loads the next chunk into chunk and reports whether one was
// available. Once it returns false the loader is exhausted and every
// later call also returns false. A failed load keeps the cursor in
// place, so the same chunk can be retried and one bad buffer does not
// forfeit the rest of the track.
func (l *AudioChunkLoader) Next(chunk *AudioChunk) (bool, error) {
	if l.next >= len(l.decoder.audio) {
		return false, nil
	}
	if err := l.decoder.loadAudioChunk(l.decoder.audio[l.next], chunk); err != nil {
		return false, err
	}
	l.next++
	return true, nil
}

func (d *Decoder) loadAudioChunk(entry Entry, chunk *AudioChunk) error {
	raw, err := d.readAt(entry.Offset, entry.Size)
	if err != nil {
		return err
	}

	decoded, err := codec.Decompress(nil, raw, entry.Codec)
	if err != nil {
		return fmt.Errorf("audio chunk %d: %w", entry.Timestamp, err)
	}
	if len(decoded)%2 != 0 {
		return fmt.Errorf(
			"audio chunk %d: %w: odd sample data length %d",
			entry.Timestamp, codec.ErrMalformed, len(decoded))
	}

	samples := chunk.Samples[:0]
	for i := 0; i < len(decoded); i += 2 {
		samples = append(samples, int16(binary.BigEndian.Uint16(decoded[i:])))
	}

	chunk.Timestamp = entry.Timestamp
	chunk.Samples = samples
	return nil
}
