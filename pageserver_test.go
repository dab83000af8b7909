package pageserver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eegserve/pageserver"
	"github.com/eegserve/pageserver/block"
	"github.com/eegserve/pageserver/internal/config"
	"github.com/eegserve/pageserver/internal/logging"
	"github.com/eegserve/pageserver/segment"
)

func writeFixtureChannel(t *testing.T, dataPath, name string) {
	t.Helper()
	chanDir := filepath.Join(dataPath, name)
	require.NoError(t, os.MkdirAll(chanDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(chanDir, "channel.toml"), []byte(`
name = "`+name+`"
sampling_frequency_hz = 1000.0
earliest_start_time = 0
latest_end_time = 100000000
acquisition_channel_number = 0
units_conversion_factor = 1.0
encryption_level = 0
recording_time_offset = 0
`), 0o644))

	samples := make([]int32, 4096)
	for i := range samples {
		samples[i] = int32(i)
	}
	enc, err := block.Encode(0, samples)
	require.NoError(t, err)

	s := &segment.Segment{MaximumBlockSamples: 4096, NumberOfSamples: int64(len(samples))}
	s.Index = append(s.Index, segment.IndexEntry{StartTime: 0, StartSample: 0, FileOffset: 0})
	segDir := filepath.Join(chanDir, "segment_000")
	require.NoError(t, segment.Write(segDir, s))
	require.NoError(t, os.WriteFile(filepath.Join(segDir, "data.bin"), enc, 0o644))
}

func TestRunRendersPagesThenCleanShutdown(t *testing.T) {
	workDir := t.TempDir()
	dataPath := t.TempDir()
	writeFixtureChannel(t, dataPath, "ch0")

	pageSpecs := "1.0\n" + dataPath + "\n1\nch0\n512\n0.5\n(none)\nblank\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "page_specs"), []byte(pageSpecs), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "current_sec"), []byte("0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "HEARTBEAT_UI"), []byte("9999999999\n"), 0o644))

	cfg := config.Default()
	cfg.ReadFlagInterval = 5 * time.Millisecond
	cfg.BufferFullSleep = 5 * time.Millisecond
	cfg.HeartbeatPollInterval = 50 * time.Millisecond
	cfg.HeartbeatStaleAfter = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pageserver.Run(ctx, workDir, "", cfg, logging.New("error"), nil)
	}()

	require.Eventually(t, func() bool {
		info, err := os.Stat(filepath.Join(workDir, "page_data"))
		return err == nil && info.Size() > 0
	}, 2*time.Second, 10*time.Millisecond, "expected page_data to grow")

	require.FileExists(t, filepath.Join(workDir, "server_info"))

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "current_sec"), []byte("-1\n"), 0o644))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("Run did not shut down after negative current_sec")
	}
}
