package buffer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eegserve/pageserver/buffer"
)

func TestResetAndNeedsReset(t *testing.T) {
	c := buffer.New(t.TempDir())
	c.Reset(100, 2.0)
	require.Equal(t, 100.0, c.First())
	require.Equal(t, 98.0, c.Last())

	// Right after a reset last_sec_written is one page behind
	// first_sec_written, so even the viewer's own position is outside the
	// (still empty) window until the first page is appended.
	require.True(t, c.NeedsReset(100))
	c.AdvancePage(2.0)
	require.False(t, c.NeedsReset(100))
	require.True(t, c.NeedsReset(50))
	require.True(t, c.NeedsReset(200))
}

func TestShouldThrottle(t *testing.T) {
	c := buffer.New(t.TempDir())
	c.Reset(0, 2.0)
	for i := 0; i < 51; i++ {
		c.AdvancePage(2.0)
	}
	require.True(t, c.ShouldThrottle(0, 2.0, 50))
}

func TestAdvancePage(t *testing.T) {
	c := buffer.New(t.TempDir())
	c.Reset(10, 2.0)
	start := c.AdvancePage(2.0)
	require.Equal(t, 10.0, start)
	require.Equal(t, 10.0, c.Last())
}

func TestReadViewerPositionDetectsShutdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "current_sec"), []byte("-1.0\n"), 0o644))

	v, shutdown, err := buffer.ReadViewerPosition(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, shutdown)
	require.Equal(t, -1.0, v)
}

func TestWriteLimits(t *testing.T) {
	dir := t.TempDir()
	c := buffer.New(dir)
	c.Reset(5, 2.0)
	require.NoError(t, c.WriteLimits(context.Background(), 123.0))

	data, err := os.ReadFile(filepath.Join(dir, "buffer_limits"))
	require.NoError(t, err)
	require.Equal(t, "5\n3\n123\n", string(data))
}
