// Package session implements the Session Manager: it watches the
// request-spec file, rebuilds the channel set with maximal reuse across
// generations, computes session time bounds, and emits server_info,
// discon, and events (§4.5 Session Manager).
package session

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/zerodha/logf"

	"github.com/eegserve/pageserver/channel"
	"github.com/eegserve/pageserver/internal/config"
	"github.com/eegserve/pageserver/internal/ipc"
	"github.com/eegserve/pageserver/reqspec"
)

// ErrPasswordNeeded is returned by Tick when any channel in the new
// generation needs more access than the request's passphrase grants;
// the caller must treat this as fatal (§4.3, §6, §7).
var ErrPasswordNeeded = errors.New("session: password needed")

// EventSource supplies the session-level record archive for the events
// file (§4.5); callers wire in whatever reads the real archive (out of
// scope here, see §1).
type EventSource func(spec *reqspec.Spec) ([]EventRecord, error)

// Manager owns the current request generation's channel set exclusively;
// it is the only writer of server_info, discon, events, and the
// password_needed sentinel (§5 Shared state).
type Manager struct {
	workDir string
	cfg     config.Tunables
	log     logf.Logger
	events  EventSource
	// fallbackPassphrase is the server's second command-line argument
	// (§6), used when page_specs carries no passphrase of its own.
	fallbackPassphrase string

	fingerprint float64
	haveSpec    bool
	spec        *reqspec.Spec
	channels    []*channel.Channel
}

// New builds a Manager rooted at workDir, the IPC directory named as the
// server's first command-line argument; fallbackPassphrase is its
// optional second argument (§6).
func New(workDir string, cfg config.Tunables, log logf.Logger, events EventSource, fallbackPassphrase string) *Manager {
	return &Manager{workDir: workDir, cfg: cfg, log: log, events: events, fallbackPassphrase: fallbackPassphrase}
}

func (m *Manager) pageSpecsPath() string      { return filepath.Join(m.workDir, "page_specs") }
func (m *Manager) passwordNeededPath() string { return filepath.Join(m.workDir, "password_needed") }
func (m *Manager) serverInfoPath() string     { return filepath.Join(m.workDir, "server_info") }
func (m *Manager) disconPath() string         { return filepath.Join(m.workDir, "discon") }
func (m *Manager) eventsPath() string         { return filepath.Join(m.workDir, "events") }

// Spec returns the currently active request generation, or nil before
// the first successful reload.
func (m *Manager) Spec() *reqspec.Spec { return m.spec }

// Channels returns the current generation's channel set, ordered by
// acquisition_channel_number.
func (m *Manager) Channels() []*channel.Channel { return m.channels }

// Bounds returns the session's time bounds: the min/max of
// earliest_start_time/latest_end_time across all loaded channels (§4.5).
func (m *Manager) Bounds() (startUUTC, endUUTC int64) {
	if len(m.channels) == 0 {
		return 0, 0
	}
	startUUTC = m.channels[0].EarliestStartTime
	endUUTC = m.channels[0].LatestEndTime
	for _, c := range m.channels[1:] {
		if c.EarliestStartTime < startUUTC {
			startUUTC = c.EarliestStartTime
		}
		if c.LatestEndTime > endUUTC {
			endUUTC = c.LatestEndTime
		}
	}
	return startUUTC, endUUTC
}

// Tick reads the current fingerprint from page_specs and reloads the
// channel set on change. It returns changed=true only when a new
// generation was actually published. A truncated-mid-rewrite read is
// reported as changed=false, err=nil: the caller retries on the next
// tick without crossing a generation boundary (§7, §8 scenario S5).
func (m *Manager) Tick(ctx context.Context) (changed bool, err error) {
	f, err := ipc.OpenForRead(ctx, m.pageSpecsPath())
	if err != nil {
		return false, err
	}
	spec, err := reqspec.Parse(f)
	f.Close()
	if err == reqspec.ErrTruncated {
		m.log.Warn("page_specs read mid-rewrite, retrying", "path", m.pageSpecsPath())
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "session: parse page_specs")
	}

	if m.haveSpec && spec.Fingerprint == m.fingerprint {
		return false, nil
	}
	return true, m.reload(spec)
}

// reload rebuilds the channel set for spec, reusing a channel only when
// its name exactly matches the same slot (same index) in the previous
// generation's list, and publishes the new generation only after every
// reload task has joined (§4.5 "matches by exact string the same slot
// in the old list", mirroring eeg_page_server3.c's positional
// strcmp(f_name_temp[i], thread_info[i].f_name) comparison).
func (m *Manager) reload(spec *reqspec.Spec) error {
	passphrase := spec.Passphrase
	if passphrase == "" {
		passphrase = m.fallbackPassphrase
	}

	loaded := make([]*channel.Channel, len(spec.ChannelNames))
	loadErrs := make([]error, len(spec.ChannelNames))

	var wg sync.WaitGroup
	for i, name := range spec.ChannelNames {
		if i < len(m.channels) && m.channels[i].Name == name {
			loaded[i] = m.channels[i]
			continue
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			c, err := channel.Load(filepath.Join(spec.DataPath, name), passphrase)
			if err != nil {
				loadErrs[i] = err
				return
			}
			loaded[i] = c
		}(i, name)
	}
	wg.Wait()

	for i, err := range loadErrs {
		if err != nil {
			return errors.Wrapf(err, "session: load channel %s", spec.ChannelNames[i])
		}
	}

	for _, c := range loaded {
		if c.PasswordNeeded {
			if err := ipc.Touch(context.Background(), m.passwordNeededPath()); err != nil {
				m.log.Error("failed to write password_needed sentinel", "error", err)
			}
			return ErrPasswordNeeded
		}
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].AcquisitionChannelNumber < loaded[j].AcquisitionChannelNumber
	})

	m.channels = loaded
	m.spec = spec
	m.fingerprint = spec.Fingerprint
	m.haveSpec = true

	return m.publishReports()
}

// publishReports writes server_info, discon, and (when an EventSource
// was wired) events, once per generation (§4.5).
func (m *Manager) publishReports() error {
	ctx := context.Background()
	if err := ipc.WriteFile(ctx, m.serverInfoPath(), serverInfoBytes(m.channels)); err != nil {
		return errors.Wrap(err, "session: write server_info")
	}

	var representative *channel.Channel
	if len(m.channels) > 0 {
		representative = m.channels[0]
	}
	discon, err := disconBytes(representative, m.cfg.DisconThreshold.Microseconds())
	if err != nil {
		return errors.Wrap(err, "session: compute discon")
	}
	if err := ipc.WriteFile(ctx, m.disconPath(), discon); err != nil {
		return errors.Wrap(err, "session: write discon")
	}

	if m.events == nil {
		return nil
	}
	records, err := m.events(m.spec)
	if err != nil {
		return errors.Wrap(err, "session: load event records")
	}
	if err := ipc.WriteFile(ctx, m.eventsPath(), eventsBytes(records)); err != nil {
		return errors.Wrap(err, "session: write events")
	}
	return nil
}
