// Package liveness implements the Liveness Monitor: it polls the UI's
// heartbeat file and terminates the process if the UI goes stale
// (§4.7 Liveness Monitor).
package liveness

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zerodha/logf"

	"github.com/eegserve/pageserver/internal/ipc"
)

// Exit is called when the UI heartbeat goes stale; tests override it to
// avoid calling os.Exit.
var Exit = os.Exit

// Monitor reads workDir/HEARTBEAT_UI every pollInterval; once its
// wall-clock stamp is more than staleAfter old, it logs and calls Exit
// (§4.7, §8 scenario S6). Monitor blocks until ctx is canceled or the
// process exits.
func Monitor(ctx context.Context, workDir string, pollInterval, staleAfter time.Duration, log logf.Logger, now func() time.Time) {
	path := filepath.Join(workDir, "HEARTBEAT_UI")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stamp, err := readHeartbeat(ctx, path, pollInterval)
			if err != nil {
				log.Warn("failed to read HEARTBEAT_UI", "error", err)
				continue
			}
			age := now().Sub(time.Unix(0, int64(stamp*float64(time.Second))))
			if age > staleAfter {
				log.Error("UI heartbeat stale, exiting", "age", age)
				Exit(0)
				return
			}
		}
	}
}

// readHeartbeat reads HEARTBEAT_UI via the same retry-on-open protocol
// every other IPC file uses (§7): the open is bounded to timeout so a
// missing file at startup doesn't block past the next poll tick.
func readHeartbeat(ctx context.Context, path string, timeout time.Duration) (float64, error) {
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, err := ipc.OpenForRead(openCtx, path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, scanner.Err()
	}
	return strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
}

// WriteHeartbeat is a convenience used by tests and by the UI side of
// the protocol to stamp HEARTBEAT_UI (§6).
func WriteHeartbeat(ctx context.Context, workDir string, wallClockSec float64) error {
	payload := strconv.FormatFloat(wallClockSec, 'f', -1, 64) + "\n"
	return ipc.WriteFile(ctx, filepath.Join(workDir, "HEARTBEAT_UI"), []byte(payload))
}
