package block

import (
	"bytes"
	"math"

	"github.com/icza/bitio"
	"github.com/pkg/errors"

	"github.com/eegserve/pageserver/internal/bits"
	"github.com/eegserve/pageserver/internal/crc"
)

// GapSample is the in-band marker a decoded payload uses for a missing
// sample (§3 Block, §4.1 decode). It is translated to a float32 NaN by
// the Channel Renderer, never exposed to callers of this package as a
// real sample value.
const GapSample int32 = math.MinInt32

// Validate reports whether the block at the front of buf may be decoded.
// buf must start at the block header and extend to the end of whatever
// compressed data remains available (§4.1): it fails if there isn't even
// room for a header, if the header's declared size overruns buf, if that
// size is implausibly large for maxSamples, or if the stored CRC (over
// everything in the block after the CRC field) doesn't match.
func Validate(buf []byte, maxSamples uint32) bool {
	if len(buf) < HeaderBytes {
		return false
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return false
	}
	if h.BlockBytes < HeaderBytes {
		return false
	}
	if uint64(h.BlockBytes) > uint64(len(buf)) {
		return false
	}
	if h.BlockBytes > MaxCompressedBytes(maxSamples) {
		return false
	}
	return crc.Valid(buf[4:h.BlockBytes], h.CRC)
}

// Decode decompresses the block at the front of buf into dest, which
// must be at least as long as the block's declared sample count, and
// returns the number of samples written and the block's start time
// (§4.1; the recording-time offset is still applied, see
// render.decodeSpan). Callers must call Validate first; Decode
// does not re-check the CRC.
func Decode(buf []byte, dest []int32) (n int, startTimeUUTC int64, err error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return 0, 0, err
	}
	if uint64(h.BlockBytes) > uint64(len(buf)) {
		return 0, 0, errors.New("block: Decode called on truncated buffer")
	}
	payload := buf[HeaderBytes:h.BlockBytes]
	r := bits.NewReader(bytes.NewReader(payload))

	prev := int32(0)
	count := 0
	want := int(h.NumberOfSamples)
	for count < want {
		isValue, err := r.Read(1)
		if err != nil {
			return count, h.StartTime, errors.Wrap(err, "block: read run marker")
		}
		runLenMinus1, err := r.ReadUnary()
		if err != nil {
			return count, h.StartTime, errors.Wrap(err, "block: read run length")
		}
		runLen := int(runLenMinus1) + 1
		if isValue == 0 {
			for k := 0; k < runLen && count < len(dest) && count < want; k++ {
				dest[count] = GapSample
				count++
			}
			continue
		}
		for k := 0; k < runLen && count < want; k++ {
			zz, err := readVarUint32(r)
			if err != nil {
				return count, h.StartTime, errors.Wrap(err, "block: read residual")
			}
			val := prev + bits.DecodeZigZag(zz)
			if count < len(dest) {
				dest[count] = val
			}
			prev = val
			count++
		}
	}
	return count, h.StartTime, nil
}

// Encode compresses samples (which may contain GapSample markers) into a
// complete block, header included, starting at startTimeUUTC. It exists
// to build test fixtures and is the inverse of Decode.
func Encode(startTimeUUTC int64, samples []int32) ([]byte, error) {
	var payload bytes.Buffer
	bw := bitio.NewWriter(&payload)

	prev := int32(0)
	i := 0
	for i < len(samples) {
		isGap := samples[i] == GapSample
		j := i + 1
		for j < len(samples) && (samples[j] == GapSample) == isGap {
			j++
		}
		runLen := j - i

		var marker uint64 = 1
		if isGap {
			marker = 0
		}
		if err := bw.WriteBits(marker, 1); err != nil {
			return nil, err
		}
		if err := bits.WriteUnary(bw, uint64(runLen-1)); err != nil {
			return nil, err
		}
		if !isGap {
			for k := i; k < j; k++ {
				diff := samples[k] - prev
				if err := writeVarUint32(bw, bits.EncodeZigZag(diff)); err != nil {
					return nil, err
				}
				prev = samples[k]
			}
		}
		i = j
	}
	if err := bw.Close(); err != nil {
		return nil, errors.Wrap(err, "block: flush payload")
	}

	total := HeaderBytes + payload.Len()
	buf := make([]byte, total)
	copy(buf[HeaderBytes:], payload.Bytes())
	h := &Header{
		BlockBytes:      uint32(total),
		NumberOfSamples: uint32(len(samples)),
		StartTime:       startTimeUUTC,
	}
	PutHeader(buf, h)
	h.CRC = crc.Checksum(buf[4:total])
	PutHeader(buf, h)
	return buf, nil
}

// writeVarUint32 writes v as a unary byte-count prefix followed by that
// many big-endian bytes, the smallest encoding that round-trips v.
func writeVarUint32(bw *bitio.Writer, v uint32) error {
	n := byteCount(v)
	if err := bits.WriteUnary(bw, uint64(n-1)); err != nil {
		return err
	}
	for shift := int(n-1) * 8; shift >= 0; shift -= 8 {
		if err := bw.WriteByte(byte(v >> uint(shift))); err != nil {
			return err
		}
	}
	return nil
}

func readVarUint32(r *bits.Reader) (uint32, error) {
	n, err := r.ReadUnary()
	if err != nil {
		return 0, err
	}
	n++
	var v uint32
	for i := uint64(0); i < n; i++ {
		b, err := r.Read(8)
		if err != nil {
			return 0, err
		}
		v = (v << 8) | uint32(b)
	}
	return v, nil
}

func byteCount(v uint32) byte {
	switch {
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	case v < 1<<24:
		return 3
	default:
		return 4
	}
}
