package segment

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/mewkiz/pkg/osutil"
	"github.com/pkg/errors"
)

// indexHeaderBytes is the fixed-size preamble of index.bin: StartSample,
// NumberOfSamples, MaximumBlockSamples.
const indexHeaderBytes = 8 + 8 + 4

const indexEntryBytes = 8 + 8 + 8 // StartTime, StartSample, FileOffset

// Open reads a segment's index and resolves its payload file from dir,
// which holds "index.bin" and "data.bin" (§3 Segment; the concrete
// encoding is this port's own, since the on-disk header layout is out of
// scope for the spec it implements — see DESIGN.md).
func Open(dir string) (*Segment, error) {
	indexPath := filepath.Join(dir, "index.bin")
	if !osutil.Exists(indexPath) {
		return nil, errors.Errorf("segment: missing index file %s", indexPath)
	}
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.Wrapf(err, "segment: open %s", indexPath)
	}
	defer f.Close()

	hdr := make([]byte, indexHeaderBytes)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return nil, errors.Wrapf(err, "segment: read index header %s", indexPath)
	}
	s := &Segment{
		StartSample:         int64(binary.LittleEndian.Uint64(hdr[0:8])),
		NumberOfSamples:     int64(binary.LittleEndian.Uint64(hdr[8:16])),
		MaximumBlockSamples: binary.LittleEndian.Uint32(hdr[16:20]),
		PayloadPath:         filepath.Join(dir, "data.bin"),
	}

	entry := make([]byte, indexEntryBytes)
	for {
		_, err := io.ReadFull(f, entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "segment: read index entry %s", indexPath)
		}
		s.Index = append(s.Index, IndexEntry{
			StartTime:   int64(binary.LittleEndian.Uint64(entry[0:8])),
			StartSample: int64(binary.LittleEndian.Uint64(entry[8:16])),
			FileOffset:  int64(binary.LittleEndian.Uint64(entry[16:24])),
		})
	}

	info, err := os.Stat(s.PayloadPath)
	if err != nil {
		return nil, errors.Wrapf(err, "segment: stat payload %s", s.PayloadPath)
	}
	s.PayloadBytes = info.Size()

	s.RepairBlockStartSampleAnomaly()
	return s, nil
}

// Write serializes the segment's index to dir/index.bin. Used by tests
// to build channel fixtures; the payload file (dir/data.bin) is written
// separately by whatever assembled the blocks.
func Write(dir string, s *Segment) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "segment: mkdir %s", dir)
	}
	f, err := os.Create(filepath.Join(dir, "index.bin"))
	if err != nil {
		return errors.Wrap(err, "segment: create index.bin")
	}
	defer f.Close()

	hdr := make([]byte, indexHeaderBytes)
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(s.StartSample))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(s.NumberOfSamples))
	binary.LittleEndian.PutUint32(hdr[16:20], s.MaximumBlockSamples)
	if _, err := f.Write(hdr); err != nil {
		return errors.Wrap(err, "segment: write index header")
	}

	entry := make([]byte, indexEntryBytes)
	for _, e := range s.Index {
		binary.LittleEndian.PutUint64(entry[0:8], uint64(e.StartTime))
		binary.LittleEndian.PutUint64(entry[8:16], uint64(e.StartSample))
		binary.LittleEndian.PutUint64(entry[16:24], uint64(e.FileOffset))
		if _, err := f.Write(entry); err != nil {
			return errors.Wrap(err, "segment: write index entry")
		}
	}
	return nil
}
