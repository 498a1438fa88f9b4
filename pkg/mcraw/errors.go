package mcraw

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrCorruptContainer = errors.New("corrupt container")
	ErrFrameNotFound    = errors.New("frame not found")
	ErrMissingMetadata  = fmt.Errorf("%w: missing container metadata", ErrCorruptContainer)
)

// ReadError is a failed read of a single on-disk buffer.
type ReadError struct {
	Offset uint64
	Size   uint32
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at offset %d: %v", e.Size, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// SizeMismatchError means a decompressed frame disagrees with the
// dimensions the caller declared.
type SizeMismatchError struct {
	Timestamp int64
	Want      int
	Got       int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf(
		"frame %d: decoded size %d does not match expected size %d",
		e.Timestamp, e.Got, e.Want)
}
