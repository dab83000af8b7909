// Package channel implements the Channel Loader: opening a channel
// directory, parsing its segment/block index, verifying access against
// the supplied passphrase, and repairing the known index anomaly (§4.3
// Channel Loader).
package channel

import (
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/eegserve/pageserver/internal/metafile"
	"github.com/eegserve/pageserver/segment"
)

// EncryptionLevel mirrors the channel's declared access tier (§4.3): a
// channel with Level2 or Level3 requires at least level-1 passphrase
// access, or the loader raises PasswordNeeded.
type EncryptionLevel int

const (
	LevelNone EncryptionLevel = 0
	Level1    EncryptionLevel = 1
	Level2    EncryptionLevel = 2
	Level3    EncryptionLevel = 3
)

// metadata is the shape of a channel's channel.toml side-file (§1: the
// on-disk header layout is out of scope, so this port owns its own
// concrete encoding, loaded the way thesaheb1-whatomate loads its own
// service config side-files).
type metadata struct {
	Name                     string          `koanf:"name"`
	SamplingFrequencyHz      float64         `koanf:"sampling_frequency_hz"`
	EarliestStartTime        int64           `koanf:"earliest_start_time"`
	LatestEndTime            int64           `koanf:"latest_end_time"`
	AcquisitionChannelNumber int             `koanf:"acquisition_channel_number"`
	UnitsConversionFactor    float64         `koanf:"units_conversion_factor"`
	EncryptionLevel          EncryptionLevel `koanf:"encryption_level"`
	RecordingTimeOffset      int64           `koanf:"recording_time_offset"`
}

// Channel is a named time-series source and its ordered Segments (§3
// Channel).
type Channel struct {
	Name                     string
	SamplingFrequencyHz      float64
	EarliestStartTime        int64
	LatestEndTime            int64
	AcquisitionChannelNumber int
	UnitsConversionFactor    float64
	EncryptionLevel          EncryptionLevel
	// RecordingTimeOffset is subtracted from every block/index start_time
	// to obtain true µUTC (§3 Block, §4.2 step 5).
	RecordingTimeOffset int64
	Segments            []*segment.Segment
	// PasswordNeeded is set when EncryptionLevel requires more access than
	// the supplied passphrase grants (§4.3, §7).
	PasswordNeeded bool
}

// accessLevel is the stand-in for the real decoder library's passphrase
// check (§1: the decompression primitive, including any passphrase
// verification it performs, is out of scope). A non-empty passphrase
// grants level-1 access; an empty one grants none.
func accessLevel(passphrase string) int {
	if passphrase == "" {
		return 0
	}
	return 1
}

// Load opens the channel directory at dir, named file, parses
// channel.toml and every segment_* subdirectory, repairs the known
// block-start-sample anomaly per segment, and checks passphrase access
// against the channel's declared encryption level.
func Load(dir, passphrase string) (*Channel, error) {
	var md metadata
	if err := metafile.Load(filepath.Join(dir, "channel.toml"), &md); err != nil {
		return nil, errors.Wrapf(err, "channel: load metadata for %s", dir)
	}

	segDirs, err := filepath.Glob(filepath.Join(dir, "segment_*"))
	if err != nil {
		return nil, errors.Wrapf(err, "channel: glob segments in %s", dir)
	}
	sort.Strings(segDirs)
	if len(segDirs) == 0 {
		return nil, errors.Errorf("channel: %s has no segments", dir)
	}

	c := &Channel{
		Name:                     md.Name,
		SamplingFrequencyHz:      md.SamplingFrequencyHz,
		EarliestStartTime:        md.EarliestStartTime,
		LatestEndTime:            md.LatestEndTime,
		AcquisitionChannelNumber: md.AcquisitionChannelNumber,
		UnitsConversionFactor:    md.UnitsConversionFactor,
		EncryptionLevel:          md.EncryptionLevel,
		RecordingTimeOffset:      md.RecordingTimeOffset,
	}

	for _, sd := range segDirs {
		s, err := segment.Open(sd)
		if err != nil {
			return nil, errors.Wrapf(err, "channel: load segment %s", sd)
		}
		c.Segments = append(c.Segments, s)
	}

	if c.EncryptionLevel >= Level2 && accessLevel(passphrase) < 1 {
		c.PasswordNeeded = true
	}
	return c, nil
}

// TotalSegments reports how many segments the channel holds.
func (c *Channel) TotalSegments() int {
	return len(c.Segments)
}
