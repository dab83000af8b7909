// Package pageserver wires the Session Manager, Buffer Controller, Page
// Pipeline, and Liveness Monitor into the server's control loop (§2
// System Overview, §5 Concurrency & Resource Model).
package pageserver

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/zerodha/logf"

	"github.com/eegserve/pageserver/buffer"
	"github.com/eegserve/pageserver/internal/config"
	"github.com/eegserve/pageserver/internal/ipc"
	"github.com/eegserve/pageserver/liveness"
	"github.com/eegserve/pageserver/page"
	"github.com/eegserve/pageserver/session"
)

// Run drives the control loop until the UI signals clean shutdown
// (current_sec < 0, returns nil) or ctx is canceled. A password_needed
// condition or any unrecoverable I/O error is returned to the caller,
// which should exit with status 1 (§6 Exit codes).
func Run(ctx context.Context, workDir, passphrase string, cfg config.Tunables, log logf.Logger, events session.EventSource) error {
	ipc.OpenRetryInterval = cfg.OpenRetryInterval

	mgr := session.New(workDir, cfg, log, events, passphrase)
	ctl := buffer.New(workDir)
	outputPath := filepath.Join(workDir, "page_data")

	// read_files_flag: single-writer, single-reader atomic scalar, set by
	// the ticker below and cleared by the main loop (§9 "Global mutable
	// flags").
	var readFlag atomic.Bool
	tickerCtx, cancelTicker := context.WithCancel(ctx)
	defer cancelTicker()
	go runReadFlagTicker(tickerCtx, cfg.ReadFlagInterval, &readFlag)

	go liveness.Monitor(ctx, workDir, cfg.HeartbeatPollInterval, cfg.HeartbeatStaleAfter, log, time.Now)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if readFlag.CompareAndSwap(true, false) {
			changed, err := mgr.Tick(ctx)
			if errors.Is(err, session.ErrPasswordNeeded) {
				return err
			}
			if err != nil {
				return err
			}
			if changed {
				if err := onNewGeneration(ctx, workDir, mgr, ctl, outputPath); err != nil {
					return err
				}
			}
		}

		currViewSec, shutdown, err := buffer.ReadViewerPosition(ctx, workDir)
		if err != nil {
			return err
		}
		if shutdown {
			return nil
		}

		spec := mgr.Spec()
		if spec == nil {
			time.Sleep(cfg.BufferFullSleep)
			continue
		}

		if ctl.NeedsReset(currViewSec) {
			ctl.Reset(currViewSec, spec.SecondsPerPage)
			if err := buffer.RewindOutput(outputPath); err != nil {
				return err
			}
		}

		if ctl.ShouldThrottle(currViewSec, spec.SecondsPerPage, cfg.NPagesAhead) {
			time.Sleep(cfg.BufferFullSleep)
			if err := ctl.WriteLimits(ctx, float64(time.Now().Unix())); err != nil {
				return err
			}
			continue
		}

		if err := renderAndAppendPage(ctx, mgr, ctl, outputPath, spec.SamplesPerPage, spec.SecondsPerPage, log); err != nil {
			return err
		}
		if err := ctl.WriteLimits(ctx, float64(time.Now().Unix())); err != nil {
			return err
		}
	}
}

// onNewGeneration snaps the buffer window to the viewer's current
// position for the freshly published generation and rewinds the output
// file (§4.5 "first page of new generation", §8 property 5). When
// curr_view_sec is zero the viewer is snapped to the session start
// instead (§4.5).
func onNewGeneration(ctx context.Context, workDir string, mgr *session.Manager, ctl *buffer.Controller, outputPath string) error {
	currViewSec, shutdown, err := buffer.ReadViewerPosition(ctx, workDir)
	if err != nil {
		return err
	}
	if shutdown {
		return nil
	}
	if currViewSec == 0 {
		startUUTC, _ := mgr.Bounds()
		currViewSec = float64(startUUTC) / 1e6
	}
	ctl.Reset(currViewSec, mgr.Spec().SecondsPerPage)
	return buffer.RewindOutput(outputPath)
}

// renderAndAppendPage renders one page for every channel in the current
// generation and appends it to the output file (§4.4 Page Pipeline).
func renderAndAppendPage(ctx context.Context, mgr *session.Manager, ctl *buffer.Controller, outputPath string, samplesPerPage int, secondsPerPage float64, log logf.Logger) error {
	pageStartSec := ctl.AdvancePage(secondsPerPage)
	startUUTC := int64(pageStartSec * 1e6)
	endUUTC := int64((pageStartSec + secondsPerPage) * 1e6)

	buf, err := page.Render(mgr.Channels(), startUUTC, endUUTC, samplesPerPage)
	if err != nil {
		log.Error("page render reported channel failures", "error", err)
	}
	return appendPage(outputPath, buf)
}

// appendPage writes samples to the end of path as little-endian
// float32, the page_data wire format (§6, §8 property 1).
func appendPage(path string, samples []float32) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "pageserver: open %s", path)
	}
	defer f.Close()

	raw := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	if _, err := f.Write(raw); err != nil {
		return errors.Wrapf(err, "pageserver: write %s", path)
	}
	return nil
}

// runReadFlagTicker sets flag every interval until ctx is canceled,
// standing in for eeg_page_server3.c's periodic read-flag thread
// (§4.6, §9).
func runReadFlagTicker(ctx context.Context, interval time.Duration, flag *atomic.Bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flag.Store(true)
		}
	}
}
