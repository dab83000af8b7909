// Package block implements the Block Decoder Adapter: CRC-gated
// validation and decoding of a single block, the smallest decode unit in
// the archive (session → channel → segment → block).
//
// The real decompression primitive this adapter would drive is named as
// an external collaborator out of scope (§1 of the spec this ports): no such
// library exists for Go, so this package also owns a compatible,
// self-contained difference/run-length codec (codec.go) good enough to
// exercise every other component (CRC gating, span location, gap
// preservation, resampling) end to end.
package block

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderBytes is the on-disk size of a block header.
const HeaderBytes = 4 + 4 + 4 + 8 // CRC, BlockBytes, NumberOfSamples, StartTime

// Header is a block header as read from disk, before decompression.
type Header struct {
	// CRC is the stored checksum over every header+payload byte after
	// this field.
	CRC uint32
	// BlockBytes is the total on-disk size of the block, header
	// included.
	BlockBytes uint32
	// NumberOfSamples is the sample count encoded in the payload.
	NumberOfSamples uint32
	// StartTime is the block's start time in µUTC, with the session's
	// recording-time offset still applied (not yet removed). See
	// render.decodeSpan for where that correction happens.
	StartTime int64
}

// ParseHeader reads a Header from the front of buf. It performs no CRC or
// size validation; callers must call Validate before trusting the result.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderBytes {
		return nil, errors.Errorf("block: buffer too short for header: %d bytes", len(buf))
	}
	h := &Header{
		CRC:             binary.LittleEndian.Uint32(buf[0:4]),
		BlockBytes:      binary.LittleEndian.Uint32(buf[4:8]),
		NumberOfSamples: binary.LittleEndian.Uint32(buf[8:12]),
		StartTime:       int64(binary.LittleEndian.Uint64(buf[12:20])),
	}
	return h, nil
}

// PutHeader writes h to the front of buf, which must be at least
// HeaderBytes long. Used by tests to build block fixtures.
func PutHeader(buf []byte, h *Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.CRC)
	binary.LittleEndian.PutUint32(buf[4:8], h.BlockBytes)
	binary.LittleEndian.PutUint32(buf[8:12], h.NumberOfSamples)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(h.StartTime))
}

// MaxCompressedBytes returns the largest plausible on-disk size of a
// block holding up to maxSamples samples: the header, plus one
// uncompressed int32 per sample, plus a fixed overhead for run-length
// framing. A block whose declared BlockBytes exceeds this is implausible
// and fails validation (§4.1).
func MaxCompressedBytes(maxSamples uint32) uint32 {
	return HeaderBytes + maxSamples*4 + 64
}
