// Package mcrawinfo is a CLI utility that prints information about
// MCRAW containers.
package main

import (
	"fmt"
	"log"
	"os"

	"mcraw/pkg/mcraw"
)

const usage = `print information about MCRAW containers
example: mcrawinfo capture.mcraw`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	args := os.Args
	if len(args) < 2 {
		fmt.Println(usage)
		return nil
	}

	for _, path := range args[1:] {
		if err := printInfo(path); err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
	}
	return nil
}

func printInfo(path string) error {
	decoder, err := mcraw.NewDecoder(path, nil)
	if err != nil {
		return err
	}
	defer decoder.Close()

	fmt.Printf("%v\n", path)
	if decoder.RecoveredIndex() {
		fmt.Println("  index: recovered by scan (file was not finalized)")
	} else {
		fmt.Println("  index: finalized")
	}

	frames := decoder.Frames()
	fmt.Printf("  frames: %v\n", len(frames))
	if len(frames) > 0 {
		fmt.Printf("  first timestamp: %v\n", frames[0])
		fmt.Printf("  last timestamp: %v\n", frames[len(frames)-1])
	}
	fmt.Printf("  audio chunks: %v\n", decoder.NumAudioChunks())

	metadata, err := decoder.ContainerMetadata()
	if err != nil {
		fmt.Printf("  metadata: unavailable: %v\n", err)
		return nil
	}
	fmt.Printf("  metadata: %v\n", metadata)
	return nil
}
