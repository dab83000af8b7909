package render_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eegserve/pageserver/block"
	"github.com/eegserve/pageserver/channel"
	"github.com/eegserve/pageserver/render"
	"github.com/eegserve/pageserver/segment"
)

// blockFixture is one block's worth of test samples and its (raw, offset
// included) start time.
type blockFixture struct {
	startTime int64
	samples   []int32
}

// segmentFixture describes one segment's blocks for buildChannel.
type segmentFixture struct {
	startSample int64
	blocks      []blockFixture
}

func buildChannel(t *testing.T, fs, unitsConv float64, recordingOffset int64, segs []segmentFixture) *channel.Channel {
	t.Helper()
	dir := t.TempDir()

	toml := `
name = "eeg1"
sampling_frequency_hz = ` + ftoa(fs) + `
earliest_start_time = 0
latest_end_time = 100000000
acquisition_channel_number = 0
units_conversion_factor = ` + ftoa(unitsConv) + `
encryption_level = 0
recording_time_offset = ` + itoa64(recordingOffset) + `
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "channel.toml"), []byte(toml), 0o644))

	for si, sf := range segs {
		segDir := filepath.Join(dir, "segment_"+pad3(si))
		var buf []byte
		if sf.startSample != 0 {
			buf = make([]byte, segment.UniversalHeaderBytes)
		}
		s := &segment.Segment{
			StartSample:         sf.startSample,
			MaximumBlockSamples: 4096,
		}
		sampleCursor := int64(0)
		for _, bf := range sf.blocks {
			enc, err := block.Encode(bf.startTime, bf.samples)
			require.NoError(t, err)
			s.Index = append(s.Index, segment.IndexEntry{
				StartTime:   bf.startTime,
				StartSample: sampleCursor,
				FileOffset:  int64(len(buf)) - boolToInt64(sf.startSample != 0)*segment.UniversalHeaderBytes,
			})
			buf = append(buf, enc...)
			sampleCursor += int64(len(bf.samples))
			s.NumberOfSamples += int64(len(bf.samples))
		}
		require.NoError(t, segment.Write(segDir, s))
		require.NoError(t, os.WriteFile(filepath.Join(segDir, "data.bin"), buf, 0o644))
	}

	c, err := channel.Load(dir, "")
	require.NoError(t, err)
	return c
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func pad3(n int) string {
	s := itoa64(int64(n))
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func ftoa(f float64) string {
	whole := int64(f)
	frac := int64((f - float64(whole)) * 1000)
	if frac < 0 {
		frac = -frac
	}
	return itoa64(whole) + "." + itoa64(frac)
}

func makeSamples(n int, start int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = start + int32(i)
	}
	return out
}

func TestPageSingleSegmentExactAlignment(t *testing.T) {
	var blocks []blockFixture
	for i := 0; i < 10; i++ {
		blocks = append(blocks, blockFixture{
			startTime: int64(i * 4096 * 1000), // fs=1000Hz -> 1000µs/sample
			samples:   makeSamples(4096, int32(i*4096)),
		})
	}
	c := buildChannel(t, 1000, 1.0, 0, []segmentFixture{{startSample: 0, blocks: blocks}})

	dest := make([]float32, 2048)
	err := render.Page(c, 0, 2_000_000, 2048, 1, 0, dest)
	require.NoError(t, err)

	for _, v := range dest {
		require.False(t, math.IsNaN(float64(v)), "unexpected NaN in aligned page")
	}
	require.InDelta(t, 0.0, dest[0], 1.0)
}

func TestPageCRCBreakTruncatesDecoding(t *testing.T) {
	var blocks []blockFixture
	for i := 0; i < 10; i++ {
		blocks = append(blocks, blockFixture{
			startTime: int64(i * 4096 * 1000),
			samples:   makeSamples(4096, int32(i*4096)),
		})
	}
	c := buildChannel(t, 1000, 1.0, 0, []segmentFixture{{startSample: 0, blocks: blocks}})

	// Corrupt block index 5's payload (flip a byte) directly on disk.
	data, err := os.ReadFile(c.Segments[0].PayloadPath)
	require.NoError(t, err)
	offset := c.Segments[0].BlockFileOffset(5)
	data[offset+block.HeaderBytes] ^= 0xFF // corrupt a payload byte, not the header
	require.NoError(t, os.WriteFile(c.Segments[0].PayloadPath, data, 0o644))

	dest := make([]float32, 2048)
	err = render.Page(c, 0, 10*4096*1000, 2048, 1, 0, dest)
	require.NoError(t, err)

	sawNaN := false
	for _, v := range dest {
		if math.IsNaN(float64(v)) {
			sawNaN = true
		}
	}
	require.True(t, sawNaN, "expected trailing NaNs after CRC break")
}

func TestPageCrossSegmentContiguous(t *testing.T) {
	seg0Blocks := []blockFixture{
		{startTime: 0, samples: makeSamples(1000, 0)},
		{startTime: 1_000_000, samples: makeSamples(1000, 1000)},
	}
	seg1Blocks := []blockFixture{
		{startTime: 2_000_000, samples: makeSamples(1000, 2000)},
		{startTime: 3_000_000, samples: makeSamples(1000, 3000)},
	}
	c := buildChannel(t, 1000, 1.0, 0, []segmentFixture{
		{startSample: 0, blocks: seg0Blocks},
		{startSample: 2000, blocks: seg1Blocks},
	})

	dest := make([]float32, 2000)
	err := render.Page(c, 500_000, 2_500_000, 2000, 1, 0, dest)
	require.NoError(t, err)

	nanCount := 0
	for _, v := range dest {
		if math.IsNaN(float64(v)) {
			nanCount++
		}
	}
	require.Less(t, nanCount, len(dest)/2, "expected mostly finite output across segment boundary")
}

func TestPageInteriorBlockReachingEndTimeIsSkipped(t *testing.T) {
	blocks := []blockFixture{
		{startTime: 0, samples: makeSamples(1000, 0)},
		{startTime: 1_000_000, samples: makeSamples(1000, 1000)},
		{startTime: 2_000_000, samples: makeSamples(1000, 2000)},
	}
	c := buildChannel(t, 1000, 1.0, 0, []segmentFixture{{startSample: 0, blocks: blocks}})

	dest := make([]float32, 2000)
	err := render.Page(c, 0, 2_000_000, 2000, 1, 0, dest)
	require.NoError(t, err)

	// Output j interpolates raw[j] and raw[j+1]; output 999 brackets
	// raw[1000], the first sample block 1 would have written, so it is NaN.
	for _, v := range dest[:999] {
		require.False(t, math.IsNaN(float64(v)), "first half should be decoded from block 0")
	}
	for _, v := range dest[999:] {
		require.True(t, math.IsNaN(float64(v)), "second half should stay gapped: block 1's predicted end reaches end_time")
	}
}

func TestPageIntervalOutsideAllSegmentsFillsZero(t *testing.T) {
	blocks := []blockFixture{{startTime: 0, samples: makeSamples(1000, 0)}}
	c := buildChannel(t, 1000, 1.0, 0, []segmentFixture{{startSample: 0, blocks: blocks}})
	c.LatestEndTime = 1_000_000 // well before the requested interval

	dest := make([]float32, 16)
	err := render.Page(c, 50_000_000, 50_002_000, 16, 1, 0, dest)
	require.NoError(t, err)
	for _, v := range dest {
		require.Equal(t, float32(0), v)
	}
}
