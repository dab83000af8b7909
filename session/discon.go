package session

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/eegserve/pageserver/block"
	"github.com/eegserve/pageserver/channel"
)

// disconBytes lists every inter-block gap ≥ gapThresholdUUTC in channel
// 0, in time order, treating that channel as representative of the
// session (§4.5 "discon"). It reads only each block's header, not its
// payload.
func disconBytes(representative *channel.Channel, gapThresholdUUTC int64) ([]byte, error) {
	var buf bytes.Buffer
	if representative == nil {
		return buf.Bytes(), nil
	}

	type span struct {
		start, end int64
	}
	var spans []span
	for _, s := range representative.Segments {
		for bi := range s.Index {
			h, err := readBlockHeader(s.PayloadPath, s.BlockFileOffset(bi))
			if err != nil {
				return nil, err
			}
			start := h.StartTime - representative.RecordingTimeOffset
			durationUUTC := roundDiv(int64(h.NumberOfSamples)*1_000_000, int64(representative.SamplingFrequencyHz))
			spans = append(spans, span{start: start, end: start + durationUUTC})
		}
	}

	for i := 1; i < len(spans); i++ {
		gap := spans[i].start - spans[i-1].end
		if gap >= gapThresholdUUTC {
			fmt.Fprintf(&buf, "%d,%d\n", spans[i-1].end, spans[i].start)
		}
	}
	return buf.Bytes(), nil
}

func readBlockHeader(path string, offset int64) (*block.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "session: open %s", path)
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "session: seek %s", path)
	}
	hdr := make([]byte, block.HeaderBytes)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return nil, errors.Wrapf(err, "session: read header %s", path)
	}
	return block.ParseHeader(hdr)
}

// roundDiv divides two non-negative integers, rounding to the nearest
// whole number.
func roundDiv(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return (num + den/2) / den
}
