// Package render implements the Channel Renderer: for one channel and a
// requested time interval, it locates the covering blocks, decodes them,
// writes gap-marked samples into a dense buffer, and resamples to the
// page grid (§4.2 Channel Renderer).
package render

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/eegserve/pageserver/block"
	"github.com/eegserve/pageserver/channel"
)

// scratchSlack is the minimum multiple of a segment's maximum block
// sample count used to size the scratch buffer every block of a span
// decodes into before its in-range subrange is copied to raw_buffer
// (§4.2 step 5).
const scratchSlack = 1.1

// blockRef names one block by its position in a channel's segment list,
// used to walk the channel's blocks in time order regardless of segment
// boundaries.
type blockRef struct {
	segIdx, blockIdx int
}

// Page writes samplesPerPage resampled, unit-converted float32 values
// for channel c's [startTimeUUTC, endTimeUUTC) interval into dest at
// positions j*stride + chanIdx for j in [0, samplesPerPage). Every cell
// is initialized: NaN for missing or CRC-failed data, zero only when the
// entire interval misses every segment (§4.2 edge cases).
func Page(c *channel.Channel, startTimeUUTC, endTimeUUTC int64, samplesPerPage, stride, chanIdx int, dest []float32) error {
	for j := 0; j < samplesPerPage; j++ {
		dest[j*stride+chanIdx] = float32(math.NaN())
	}

	if endTimeUUTC < c.EarliestStartTime || startTimeUUTC > c.LatestEndTime {
		for j := 0; j < samplesPerPage; j++ {
			dest[j*stride+chanIdx] = 0
		}
		return nil
	}

	refs := flattenBlocks(c)
	if len(refs) == 0 {
		for j := 0; j < samplesPerPage; j++ {
			dest[j*stride+chanIdx] = 0
		}
		return nil
	}

	startRef, startFound := locateBlock(c, refs, startTimeUUTC)
	endRef, endFound := locateBlock(c, refs, endTimeUUTC)
	if !endFound {
		for j := 0; j < samplesPerPage; j++ {
			dest[j*stride+chanIdx] = 0
		}
		return nil
	}
	if !startFound {
		startRef = refs[0]
	}

	startIdx := indexOf(refs, startRef)
	endIdx := indexOf(refs, endRef)
	if endIdx < startIdx {
		endIdx = startIdx
	}

	rawLen := roundHalfAwayFromZero(float64(endTimeUUTC-startTimeUUTC) * c.SamplingFrequencyHz / 1e6)
	if rawLen < 1 {
		rawLen = 1
	}
	raw := make([]int32, rawLen)
	for i := range raw {
		raw[i] = block.GapSample
	}

	if err := decodeSpan(c, refs, startIdx, endIdx, startTimeUUTC, endTimeUUTC, raw); err != nil {
		return err
	}

	resample(c, raw, startTimeUUTC, endTimeUUTC, samplesPerPage, stride, chanIdx, dest)
	return nil
}

// flattenBlocks lists every block of every segment in channel time
// order, the order the renderer walks the index in (§4.2 step 1-2).
func flattenBlocks(c *channel.Channel) []blockRef {
	var refs []blockRef
	for si, s := range c.Segments {
		for bi := range s.Index {
			refs = append(refs, blockRef{si, bi})
		}
	}
	return refs
}

func indexOf(refs []blockRef, r blockRef) int {
	for i, x := range refs {
		if x == r {
			return i
		}
	}
	return -1
}

// correctedStartTime returns a block's µUTC start time with the
// session's recording-time offset removed.
func correctedStartTime(c *channel.Channel, r blockRef) int64 {
	s := c.Segments[r.segIdx]
	return s.Index[r.blockIdx].StartTime - c.RecordingTimeOffset
}

// locateBlock finds the last block in refs (refs is in ascending time
// order) whose corrected start time is ≤ t (§4.2 step 1-2). found is
// false when even the first block starts after t.
func locateBlock(c *channel.Channel, refs []blockRef, t int64) (blockRef, bool) {
	best := blockRef{}
	found := false
	for _, r := range refs {
		if correctedStartTime(c, r) <= t {
			best = r
			found = true
			continue
		}
		break
	}
	return best, found
}

// SampleForTime translates t to a channel-relative sample index by
// locating the covering block and stepping by the sampling period from
// its start, clamped to the end of its segment (§4.2 step 1).
func SampleForTime(c *channel.Channel, t int64) int64 {
	refs := flattenBlocks(c)
	r, found := locateBlock(c, refs, t)
	if !found {
		return 0
	}
	s := c.Segments[r.segIdx]
	prevSample := s.BlockChannelStartSample(r.blockIdx)
	prevTime := correctedStartTime(c, r)
	delta := t - prevTime
	offset := roundHalfAwayFromZero(float64(delta) * c.SamplingFrequencyHz / 1e6)
	sample := prevSample + offset
	if last := s.EndSample() - 1; sample > last {
		sample = last
	}
	return sample
}

// roundHalfAwayFromZero implements the numeric rounding rule §4.2 step 1
// requires for sample-index translation.
func roundHalfAwayFromZero(x float64) int64 {
	if x >= 0 {
		return int64(math.Floor(x + 0.5))
	}
	return int64(math.Ceil(x - 0.5))
}

// decodeSpan reads and decodes every block from refs[startIdx..endIdx]
// into a scratch buffer, then copies each decoded sample into raw at its
// computed offset from the interval start, dropping any sample that
// falls outside [0, len(raw)). The first and last blocks of the span
// (startIdx, endIdx) are always decoded and trimmed this way. Interior
// blocks are additionally subject to the boundary policy in §4.2 step 5
// / §9: a block that starts before start_time is skipped outright (its
// samples are already covered by the previous block's tail), and a
// block whose predicted end reaches end_time is skipped entirely,
// deliberately leaving a tail gap rather than risk overwriting the tail
// of the window.
func decodeSpan(c *channel.Channel, refs []blockRef, startIdx, endIdx int, startTime, endTime int64, raw []int32) error {
	for i := startIdx; i <= endIdx; i++ {
		r := refs[i]
		s := c.Segments[r.segIdx]

		buf, err := readBlockBytes(s.PayloadPath, s.BlockFileOffset(r.blockIdx), s.BlockDataBytes(r.blockIdx))
		if err != nil {
			return err
		}
		if !block.Validate(buf, s.MaximumBlockSamples) {
			// CRC-gated stop: samples already written to raw stand; the
			// remainder of the span stays at the NaN sentinel (§4.1, §7).
			return nil
		}

		scratch := make([]int32, uint32(float64(s.MaximumBlockSamples)*scratchSlack)+1)
		n, rawStartTime, err := block.Decode(buf, scratch)
		if err != nil {
			return nil
		}
		blockTime := rawStartTime - c.RecordingTimeOffset

		if i != startIdx && i != endIdx {
			predictedEnd := blockTime + int64(float64(n)/c.SamplingFrequencyHz*1e6)
			if blockTime < startTime || predictedEnd >= endTime {
				continue
			}
		}

		blockOffset := roundHalfAwayFromZero(float64(blockTime-startTime) * c.SamplingFrequencyHz / 1e6)
		for k := 0; k < n; k++ {
			pos := blockOffset + int64(k)
			if pos < 0 || pos >= int64(len(raw)) {
				continue
			}
			raw[pos] = scratch[k]
		}
	}
	return nil
}

func readBlockBytes(path string, offset, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "render: open %s", path)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "render: seek %s", path)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, errors.Wrapf(err, "render: read %s", path)
	}
	return buf, nil
}

// resample walks raw at the output grid's step, linearly interpolating
// between bracketing raw samples and scaling by the channel's units
// conversion factor; any NaN-sentinel bracket yields a NaN output cell
// (§4.2 step 6).
func resample(c *channel.Channel, raw []int32, startTime, endTime int64, samplesPerPage, stride, chanIdx int, dest []float32) {
	totalSamps := float64(endTime-startTime) * c.SamplingFrequencyHz / 1e6
	outPeriod := totalSamps / float64(samplesPerPage)

	nextSamp := 0.0
	for j := 0; j < samplesPerPage; j++ {
		pos := nextSamp
		i0 := int(math.Floor(pos))
		i1 := i0 + 1
		frac := pos - float64(i0)

		var out float32
		if i0 < 0 || i1 >= len(raw) || raw[i0] == block.GapSample || raw[i1] == block.GapSample {
			out = float32(math.NaN())
		} else {
			v := (frac*float64(raw[i1]-raw[i0]) + float64(raw[i0])) * c.UnitsConversionFactor
			out = float32(v)
		}
		dest[j*stride+chanIdx] = out
		nextSamp += outPeriod
	}
}
