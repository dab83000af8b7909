// Package config holds the operational tunables eeg_page_server3.c
// hard-codes as preprocessor constants (N_PAGES_AHEAD, READ_INTERVAL,
// HEARTBEAT_INTERVAL, the open-retry backoff, the buffer-full sleep, and
// the discontinuity threshold), exposed here as an optional TOML
// override file so an operator can tune pacing without a rebuild. The
// wire protocol in spec §6 is never config-driven, only these internal
// constants are.
package config

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Tunables are the server's operational constants. The Tunables returned
// by Default() reproduce eeg_page_server3.c's hard-coded behavior.
type Tunables struct {
	// NPagesAhead is how many pages of look-ahead the Buffer Controller
	// targets beyond the viewer. eeg_page_server3.c: N_PAGES_AHEAD = 50.
	NPagesAhead int `koanf:"n_pages_ahead"`
	// ReadFlagInterval is the period of the read-files ticker.
	// eeg_page_server3.c: READ_INTERVAL = 500000 (microseconds).
	ReadFlagInterval time.Duration `koanf:"read_flag_interval"`
	// HeartbeatStaleAfter is how old the UI heartbeat stamp may get
	// before the Liveness Monitor exits the process.
	HeartbeatStaleAfter time.Duration `koanf:"heartbeat_stale_after"`
	// HeartbeatPollInterval is how often the Liveness Monitor re-reads
	// HEARTBEAT_UI.
	HeartbeatPollInterval time.Duration `koanf:"heartbeat_poll_interval"`
	// BufferFullSleep is how long the main loop idles once the
	// look-ahead buffer is full. eeg_page_server3.c: usleep(250000).
	BufferFullSleep time.Duration `koanf:"buffer_full_sleep"`
	// DisconThreshold is the minimum inter-block gap, in channel 0,
	// reported in the discon file. eeg_page_server3.c:
	// DISCON_MAJOR_THRESHOLD = 60 * 1000000 microseconds.
	DisconThreshold time.Duration `koanf:"discon_threshold"`
	// OpenRetryInterval is the backoff between failed IPC file opens.
	OpenRetryInterval time.Duration `koanf:"open_retry_interval"`
	// LogLevel is the minimum logf level emitted ("debug", "info",
	// "warn", "error").
	LogLevel string `koanf:"log_level"`
}

// Default returns the tunables matching eeg_page_server3.c's hard-coded
// constants.
func Default() Tunables {
	return Tunables{
		NPagesAhead:           50,
		ReadFlagInterval:      500 * time.Millisecond,
		HeartbeatStaleAfter:   5 * time.Second,
		HeartbeatPollInterval: 500 * time.Millisecond,
		BufferFullSleep:       250 * time.Millisecond,
		DisconThreshold:       60 * time.Second,
		OpenRetryInterval:     100 * time.Millisecond,
		LogLevel:              "info",
	}
}

// Load returns Default(), overridden by any fields present in the TOML
// file at path. A path of "" returns Default() unmodified.
func Load(path string) (Tunables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return Tunables{}, errors.Wrapf(err, "config: load %s", path)
	}
	err := k.UnmarshalWithConf("", &t, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &t,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	})
	if err != nil {
		return Tunables{}, errors.Wrapf(err, "config: unmarshal %s", path)
	}
	return t, nil
}
