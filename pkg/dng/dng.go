// Package dng is the boundary to the image file writer.
//
// The decoder side only supplies a pixel buffer and a table of named
// fields. How a writer lays those out on disk is its own concern.
package dng

import (
	"fmt"
	"io"
)

// Well-known field names.
const (
	FieldWidth             = "width"
	FieldHeight            = "height"
	FieldBitsPerSample     = "bitsPerSample"
	FieldBlackLevel        = "blackLevel"
	FieldWhiteLevel        = "whiteLevel"
	FieldOrientation       = "orientation"
	FieldColorMatrix       = "colorMatrix"
	FieldSoftware          = "software"
	FieldFrameMetadata     = "frameMetadata"
	FieldContainerMetadata = "containerMetadata"
)

// FieldMap holds the named scalar and array fields handed to a Writer.
// Values are ints, floats, strings or slices of those.
type FieldMap map[string]interface{}

// Writer accepts one decoded frame and its fields and produces an
// output file. It returns the number of bytes written.
type Writer interface {
	WriteImage(pixels []byte, fields FieldMap) (int64, error)
}

// BuildFields assembles the field table for one decoded frame.
// frameMetadata may be empty, frames without a metadata record
// are normal.
func BuildFields(width, height, bitsPerSample int, containerMetadata, frameMetadata string) FieldMap {
	fields := FieldMap{
		FieldWidth:             width,
		FieldHeight:            height,
		FieldBitsPerSample:     bitsPerSample,
		FieldContainerMetadata: containerMetadata,
	}
	if frameMetadata != "" {
		fields[FieldFrameMetadata] = frameMetadata
	}
	return fields
}

// RawWriter dumps the pixel buffer as-is. It stands in for a real
// image writer in the tools and the tests.
type RawWriter struct {
	Out io.Writer
}

// WriteImage implements Writer.
func (w *RawWriter) WriteImage(pixels []byte, fields FieldMap) (int64, error) {
	width, okW := fields[FieldWidth].(int)
	height, okH := fields[FieldHeight].(int)
	if !okW || !okH {
		return 0, fmt.Errorf("missing width or height field")
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	n, err := w.Out.Write(pixels)
	if err != nil {
		return int64(n), fmt.Errorf("write pixels: %w", err)
	}
	return int64(n), nil
}
