// Package mcraw2dng is a CLI utility that extracts every frame of the
// MCRAW containers in a directory and hands them to the image writer.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"mcraw/pkg/dng"
	"mcraw/pkg/indexcache"
	"mcraw/pkg/mcraw"
)

const usage = `extract frames from MCRAW containers
example: mcraw2dng -config mcraw2dng.yaml ./captures`

// Config holds the frame geometry, which lives in the container
// metadata and is interpreted by the metadata tooling, not by the
// decoder core.
type Config struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Bits       int    `yaml:"bits"`
	Output     string `yaml:"output"`
	IndexCache string `yaml:"indexCache"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "mcraw2dng.yaml", "path to config file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println(usage)
		return nil
	}

	config, err := readConfig(*configPath)
	if err != nil {
		return err
	}

	var cache *indexcache.Cache
	if config.IndexCache != "" {
		cache, err = indexcache.Open(config.IndexCache)
		if err != nil {
			return fmt.Errorf("open index cache: %w", err)
		}
		defer cache.Close()
	}

	var containers []string
	walkFunc := func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%v %w", path, err)
		}
		if info.IsDir() || !strings.HasSuffix(path, ".mcraw") {
			return nil
		}
		containers = append(containers, path)
		return nil
	}
	if err := filepath.WalkDir(flag.Arg(0), walkFunc); err != nil {
		return err
	}

	fmt.Printf("Found %v containers.\n", len(containers))

	chResults := make(chan result, len(containers))
	for _, container := range containers {
		go func(container string) {
			n, err := convert(container, config, cache)
			chResults <- result{container: container, frames: n, err: err}
		}(container)
	}

	for i := 1; i <= len(containers); i++ {
		result := <-chResults
		fmt.Printf("[%v/%v]", i, len(containers))
		if result.err != nil {
			fmt.Printf("[ERR] %v %v\n", result.container, result.err)
			continue
		}
		fmt.Printf("[OK] %v: %v frames\n", result.container, result.frames)
	}
	return nil
}

type result struct {
	container string
	frames    int
	err       error
}

func readConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := Config{Bits: 16, Output: "."}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("config must set width and height")
	}
	return &config, nil
}

func compressionType(bits int) (mcraw.CompressionType, error) {
	switch bits {
	case 8:
		return mcraw.Compression8Bit, nil
	case 10:
		return mcraw.Compression10Bit, nil
	case 12:
		return mcraw.Compression12Bit, nil
	case 14:
		return mcraw.Compression14Bit, nil
	case 16:
		return mcraw.Compression16Bit, nil
	}
	return 0, fmt.Errorf("unsupported bit depth %d", bits)
}

func convert(container string, config *Config, cache *indexcache.Cache) (int, error) {
	compression, err := compressionType(config.Bits)
	if err != nil {
		return 0, err
	}

	decoder, err := mcraw.NewDecoder(container, cache)
	if err != nil {
		return 0, fmt.Errorf("open container: %w", err)
	}
	defer decoder.Close()

	containerMetadata, err := decoder.ContainerMetadata()
	if err != nil {
		return 0, err
	}

	base := strings.TrimSuffix(filepath.Base(container), ".mcraw")

	var pixels []byte
	for _, ts := range decoder.Frames() {
		err := decoder.LoadFrame(ts, config.Width, config.Height, compression, &pixels)
		if err != nil {
			return 0, fmt.Errorf("load frame %v: %w", ts, err)
		}

		frameMetadata, _, err := decoder.LoadFrameMetadata(ts)
		if err != nil {
			return 0, fmt.Errorf("load frame metadata %v: %w", ts, err)
		}

		outPath := filepath.Join(config.Output, fmt.Sprintf("%v_%v.raw", base, ts))
		if err := writeFrame(outPath, pixels, config, compression,
			containerMetadata, frameMetadata); err != nil {
			return 0, fmt.Errorf("write frame %v: %w", ts, err)
		}
	}
	return decoder.NumFrames(), nil
}

func writeFrame(
	outPath string,
	pixels []byte,
	config *Config,
	compression mcraw.CompressionType,
	containerMetadata string,
	frameMetadata string,
) error {
	file, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := dng.RawWriter{Out: file}
	fields := dng.BuildFields(
		config.Width,
		config.Height,
		compression.BitsPerSample(),
		containerMetadata,
		frameMetadata,
	)

	_, err = writer.WriteImage(pixels, fields)
	return err
}
