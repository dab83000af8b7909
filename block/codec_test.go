package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eegserve/pageserver/block"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []int32{100, 101, 103, block.GapSample, block.GapSample, 90, -5, -5, -5, 42}
	buf, err := block.Encode(1_000_000, samples)
	require.NoError(t, err)

	dest := make([]int32, len(samples))
	n, startTime, err := block.Decode(buf, dest)
	require.NoError(t, err)
	require.Equal(t, len(samples), n)
	require.Equal(t, int64(1_000_000), startTime)
	require.Equal(t, samples, dest)
}

func TestEncodeDecodeAllGaps(t *testing.T) {
	samples := make([]int32, 16)
	for i := range samples {
		samples[i] = block.GapSample
	}
	buf, err := block.Encode(0, samples)
	require.NoError(t, err)

	dest := make([]int32, len(samples))
	n, _, err := block.Decode(buf, dest)
	require.NoError(t, err)
	require.Equal(t, len(samples), n)
	for _, v := range dest {
		require.Equal(t, block.GapSample, v)
	}
}

func TestValidateRejectsShortBuffer(t *testing.T) {
	require.False(t, block.Validate(make([]byte, 3), 1024))
}

func TestValidateRejectsTruncatedBlock(t *testing.T) {
	buf, err := block.Encode(0, []int32{1, 2, 3, 4})
	require.NoError(t, err)
	require.False(t, block.Validate(buf[:len(buf)-1], 1024))
}

func TestValidateRejectsCorruptCRC(t *testing.T) {
	buf, err := block.Encode(0, []int32{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.True(t, block.Validate(buf, 1024))

	// Flip a payload byte; the stored CRC no longer matches.
	buf[len(buf)-1] ^= 0xFF
	require.False(t, block.Validate(buf, 1024))
}

func TestValidateRejectsImplausibleSize(t *testing.T) {
	samples := make([]int32, 64)
	for i := range samples {
		samples[i] = int32(i * 100003)
	}
	buf, err := block.Encode(0, samples)
	require.NoError(t, err)
	// A block this large cannot plausibly hold only 1 sample.
	require.False(t, block.Validate(buf, 1))
}
