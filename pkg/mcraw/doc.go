// Package mcraw reads and writes MCRAW capture containers.
package mcraw

// MCRAW is an append-only container for raw sensor video, audio and
// metadata produced by a capture device. Requirements.
//   1. Buffers written before a crash must remain recoverable.
//   2. A finalized file must open without scanning the whole file.
//   3. Buffers are independently compressed and independently readable.
//
// All integers are big-endian.
//
//
// Header. 8 bytes at file start.
//   magic   [4]byte "MCRW"
//   version uint16
//   flags   uint16 // Must be zero.
//
// Records. Back to back after the header, each a 20 byte marker
// followed by the payload.
//   kind      uint8
//   codec     uint8
//   reserved  uint16
//   size      uint32 // Payload length.
//   timestamp int64
//   crc       uint32 // IEEE CRC-32 of the 16 bytes above.
//
// Index. Written on clean finalize, after the last record.
//   magic   [4]byte "MIDX"
//   count   uint32
//   entries [count]indexEntry
//   crc     uint32 // IEEE CRC-32 of magic, count and entries.
//
// indexEntry. 24 bytes.
//   kind      uint8
//   codec     uint8
//   reserved  uint16
//   size      uint32
//   offset    uint64 // Payload position in the file.
//   timestamp int64
//
// Footer. Final 16 bytes of a finalized file.
//   indexOffset uint64
//   count       uint32
//   magic       [4]byte "MEND"
//
// An unfinalized file has no index or footer. It is opened by scanning
// the records from the header and validating each marker CRC, which
// loses at most the one record that was mid-write during the crash.
