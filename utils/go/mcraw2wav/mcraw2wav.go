// Package mcraw2wav is a CLI utility that exports the audio track of
// an MCRAW container to a WAV file.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	"mcraw/pkg/mcraw"
)

const usage = `export the audio track of an MCRAW container to WAV
example: mcraw2wav -rate 48000 capture.mcraw capture.wav`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sampleRate := flag.Int("rate", 48000, "sample rate in Hz")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Println(usage)
		return nil
	}
	inPath := flag.Arg(0)
	outPath := flag.Arg(1)

	decoder, err := mcraw.NewDecoder(inPath, nil)
	if err != nil {
		return fmt.Errorf("open container: %w", err)
	}
	defer decoder.Close()

	file, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer file.Close()

	out := bufio.NewWriter(file)

	// Stream the track, the recording may be longer than memory.
	var total int
	loader := decoder.AudioLoader()
	var chunk mcraw.AudioChunk
	for {
		ok, err := loader.Next(&chunk)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		if !ok {
			break
		}
		total += len(chunk.Samples)
	}

	if err := writeWavHeader(out, *sampleRate, total); err != nil {
		return err
	}

	loader = decoder.AudioLoader()
	for {
		ok, err := loader.Next(&chunk)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		if !ok {
			break
		}
		for _, s := range chunk.Samples {
			if err := binary.Write(out, binary.LittleEndian, s); err != nil {
				return fmt.Errorf("write samples: %w", err)
			}
		}
	}

	if err := out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	fmt.Printf("wrote %v samples to %v\n", total, outPath)
	return nil
}

// writeWavHeader writes a PCM16 mono WAV header for n samples.
func writeWavHeader(out *bufio.Writer, sampleRate, n int) error {
	dataSize := uint32(n * 2)

	var header []interface{}
	header = append(header,
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36+dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),               // Chunk size.
		uint16(1),                // PCM.
		uint16(1),                // Mono.
		uint32(sampleRate),       // Sample rate.
		uint32(sampleRate*2),     // Byte rate.
		uint16(2),                // Block align.
		uint16(16),               // Bits per sample.
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	)

	for _, field := range header {
		if err := binary.Write(out, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
	}
	return nil
}
