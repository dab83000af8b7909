// Package buffer implements the Buffer Controller: it maintains the
// first/last buffered seconds around the viewer, advances the write
// cursor, invalidates on seek, throttles when the look-ahead buffer is
// full, and publishes buffer_limits and a heartbeat (§4.6 Buffer
// Controller).
package buffer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/eegserve/pageserver/internal/ipc"
)

// Controller tracks the buffer window for one request generation. A new
// generation resets it via Reset.
type Controller struct {
	workDir string

	firstSecWritten float64
	lastSecWritten  float64
}

// New returns a Controller rooted at workDir, the IPC directory (§6).
func New(workDir string) *Controller {
	return &Controller{workDir: workDir}
}

func (c *Controller) currentSecPath() string   { return filepath.Join(c.workDir, "current_sec") }
func (c *Controller) bufferLimitsPath() string { return filepath.Join(c.workDir, "buffer_limits") }

// Reset snaps the window to currViewSec, leaving last_sec_written one
// page behind so the next appended page aligns to the viewer (§4.6
// "window is reset").
func (c *Controller) Reset(currViewSec, secondsPerPage float64) {
	c.firstSecWritten = currViewSec
	c.lastSecWritten = c.firstSecWritten - secondsPerPage
}

// First returns first_sec_written.
func (c *Controller) First() float64 { return c.firstSecWritten }

// Last returns last_sec_written.
func (c *Controller) Last() float64 { return c.lastSecWritten }

// NeedsReset reports whether currViewSec falls outside the buffered
// window and the output file must be rewound (§4.6, §8 property 5).
func (c *Controller) NeedsReset(currViewSec float64) bool {
	return currViewSec < c.firstSecWritten || currViewSec > c.lastSecWritten
}

// ShouldThrottle reports whether the controller has buffered far enough
// ahead of the viewer that the pipeline should idle (§4.6,
// N_PAGES_AHEAD).
func (c *Controller) ShouldThrottle(currViewSec, secondsPerPage float64, nPagesAhead int) bool {
	return (c.lastSecWritten - currViewSec) >= float64(nPagesAhead)*secondsPerPage
}

// AdvancePage returns the start second of the next page (last_sec_written
// + seconds_per_page) and then advances last_sec_written to that value
// (§4.4 "page_start = last_sec_written + seconds_per_page").
func (c *Controller) AdvancePage(secondsPerPage float64) float64 {
	pageStart := c.lastSecWritten + secondsPerPage
	c.lastSecWritten = pageStart
	return pageStart
}

// ReadViewerPosition reads current_sec, retrying on open failure
// (§5 suspension points). A negative value signals clean shutdown.
func ReadViewerPosition(ctx context.Context, workDir string) (viewSec float64, shutdown bool, err error) {
	f, err := ipc.OpenForRead(ctx, filepath.Join(workDir, "current_sec"))
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, false, errors.New("buffer: current_sec is empty")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "buffer: parse current_sec")
	}
	return v, v < 0, nil
}

// WriteLimits publishes buffer_limits = "first\nlast\nheartbeat\n" (§4.6,
// §6 buffer_limits).
func (c *Controller) WriteLimits(ctx context.Context, heartbeatWallClockSec float64) error {
	payload := fmt.Sprintf("%g\n%g\n%g\n", c.firstSecWritten, c.lastSecWritten, heartbeatWallClockSec)
	return ipc.WriteFile(ctx, c.bufferLimitsPath(), []byte(payload))
}

// RewindOutput truncates the page_data output file to zero length, the
// effect of a buffer reset (§4.6, §8 property 5).
func RewindOutput(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "buffer: rewind %s", path)
	}
	return f.Close()
}
