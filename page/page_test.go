package page_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eegserve/pageserver/block"
	"github.com/eegserve/pageserver/channel"
	"github.com/eegserve/pageserver/page"
	"github.com/eegserve/pageserver/segment"
)

func buildSimpleChannel(t *testing.T, name string, acqNum int) *channel.Channel {
	t.Helper()
	dir := t.TempDir()
	toml := `
name = "` + name + `"
sampling_frequency_hz = 1000.0
earliest_start_time = 0
latest_end_time = 10000000
acquisition_channel_number = ` + itoa(acqNum) + `
units_conversion_factor = 1.0
encryption_level = 0
recording_time_offset = 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "channel.toml"), []byte(toml), 0o644))

	samples := make([]int32, 1000)
	for i := range samples {
		samples[i] = int32(i)
	}
	enc, err := block.Encode(0, samples)
	require.NoError(t, err)

	s := &segment.Segment{MaximumBlockSamples: 4096, NumberOfSamples: 1000}
	s.Index = append(s.Index, segment.IndexEntry{StartTime: 0, StartSample: 0, FileOffset: 0})
	segDir := filepath.Join(dir, "segment_000")
	require.NoError(t, segment.Write(segDir, s))
	require.NoError(t, os.WriteFile(filepath.Join(segDir, "data.bin"), enc, 0o644))

	c, err := channel.Load(dir, "")
	require.NoError(t, err)
	return c
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRenderInterleavesChannels(t *testing.T) {
	c0 := buildSimpleChannel(t, "ch0", 0)
	c1 := buildSimpleChannel(t, "ch1", 1)

	buf, err := page.Render([]*channel.Channel{c0, c1}, 0, 1_000_000, 500)
	require.NoError(t, err)
	require.Len(t, buf, 500*2)

	for j := 0; j < 500; j++ {
		for c := 0; c < 2; c++ {
			require.False(t, math.IsNaN(float64(buf[j*2+c])), "cell (%d,%d) should be finite", j, c)
		}
	}
}
