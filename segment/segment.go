// Package segment models a Segment: a contiguous-in-time run of blocks
// within a Channel, holding its own payload file and block index
// (§3 Segment).
package segment

// UniversalHeaderBytes is the size of the header every non-first segment
// payload file carries before its first block. Readers spanning a
// segment boundary must skip it before consuming more compressed bytes
// (§9 "Cross-segment first-block padding"). Treated as a library
// constant per the spec this package implements, since the concrete
// on-disk header layout is out of scope.
const UniversalHeaderBytes = 1024

// IndexEntry is one row of a segment's time_series_indices table: one
// entry per block (§3 Segment).
type IndexEntry struct {
	// StartTime is the block's start time in µUTC, with the session's
	// recording-time offset still applied.
	StartTime int64
	// StartSample is the block's first sample, relative to the segment
	// (i.e. channel-relative sample index is Segment.StartSample +
	// StartSample).
	StartSample int64
	// FileOffset is the byte offset of the block within the segment's
	// payload file.
	FileOffset int64
}

// Segment is a contiguous-in-time subrange of a Channel (§3 Segment).
type Segment struct {
	// StartSample is the segment's first sample, channel-relative.
	StartSample int64
	// NumberOfSamples is the total sample count covered by this segment.
	NumberOfSamples int64
	// MaximumBlockSamples bounds how many samples a single block in this
	// segment may hold; used to size decode scratch buffers and to
	// bound plausible block sizes during CRC validation.
	MaximumBlockSamples uint32
	// Index holds one entry per block, ordered by ascending start_sample
	// within the segment (§3 invariant).
	Index []IndexEntry
	// PayloadPath is the segment's opaque payload file.
	PayloadPath string
	// PayloadBytes is the total size of the payload file, used to size
	// the final block's read when it has no successor index entry.
	PayloadBytes int64
}

// EndSample is the channel-relative sample index one past this
// segment's last sample.
func (s *Segment) EndSample() int64 {
	return s.StartSample + s.NumberOfSamples
}

// BlockDataBytes returns the number of compressed bytes belonging to the
// block at Index[idx]: the gap to the next block's FileOffset, or to the
// end of the payload file for the segment's last block.
func (s *Segment) BlockDataBytes(idx int) int64 {
	if idx < len(s.Index)-1 {
		return s.Index[idx+1].FileOffset - s.Index[idx].FileOffset
	}
	return s.PayloadBytes - s.BlockFileOffset(idx)
}

// BlockChannelStartSample returns the channel-relative start sample of
// the block at Index[idx].
func (s *Segment) BlockChannelStartSample(idx int) int64 {
	return s.StartSample + s.Index[idx].StartSample
}

// BlockFileOffset returns the byte offset of the block at Index[idx]
// within the payload file, as actually seekable: index entries for any
// segment but the first are recorded net of that segment's universal
// header, so the header bytes must be added back in before seeking
// (§9 "Cross-segment first-block padding").
func (s *Segment) BlockFileOffset(idx int) int64 {
	off := s.Index[idx].FileOffset
	if s.StartSample != 0 {
		off += UniversalHeaderBytes
	}
	return off
}

// NumberOfBlocks reports how many blocks the segment's index describes.
func (s *Segment) NumberOfBlocks() int {
	return len(s.Index)
}

// RepairBlockStartSampleAnomaly normalizes a known index anomaly (§4.3,
// §9): some segments store each block's start_sample already offset by
// the segment's own StartSample, rather than segment-relative as the
// invariant in §3 requires. Detected by checking whether the first
// block's start_sample equals the segment's start_sample (which would
// otherwise imply the segment's first block starts mid-segment).
func (s *Segment) RepairBlockStartSampleAnomaly() {
	if len(s.Index) == 0 || s.StartSample == 0 {
		return
	}
	if s.Index[0].StartSample != s.StartSample {
		return
	}
	for i := range s.Index {
		s.Index[i].StartSample -= s.StartSample
	}
}
