// Package reqspec parses the page_specs request file the UI writes:
// fingerprint, data root, channel list, paging parameters, and an
// optional passphrase and events file hint (§3 Request Generation, §6
// page_specs).
package reqspec

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// maxChannelNameLen bounds a channel-name line; a longer one means the
// UI is still mid-rewrite of the file (§7 "Page spec mid-rewrite").
const maxChannelNameLen = 254

// ErrTruncated indicates page_specs was read while the UI was still
// rewriting it; callers must discard whatever was parsed and retry from
// the top, never committing partial state (§7, §8 scenario S5).
var ErrTruncated = errors.New("reqspec: page_specs appears to be mid-rewrite")

// Spec is one immutable request generation (§3 Request Generation).
type Spec struct {
	Fingerprint    float64
	DataPath       string
	ChannelNames   []string
	SamplesPerPage int
	SecondsPerPage float64
	// Passphrase is empty when the file held the literal "(none)".
	Passphrase string
	// EventsFileName is empty when the file held the literal "blank".
	EventsFileName string
}

// Parse reads a complete page_specs record from r (§6).
func Parse(r io.Reader) (*Spec, error) {
	br := bufio.NewReader(r)

	fudLine, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read fingerprint")
	}
	fingerprint, err := strconv.ParseFloat(strings.TrimSpace(fudLine), 64)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: parse fingerprint")
	}

	dataPath, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read data path")
	}

	numChansLine, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read channel count")
	}
	numChans, err := strconv.Atoi(strings.TrimSpace(numChansLine))
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: parse channel count")
	}

	names := make([]string, numChans)
	for i := 0; i < numChans; i++ {
		name, err := readLine(br)
		if err != nil {
			return nil, errors.Wrap(err, "reqspec: read channel name")
		}
		if len(name) > maxChannelNameLen {
			return nil, ErrTruncated
		}
		names[i] = name
	}

	sppLine, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read samples_per_page")
	}
	samplesPerPage, err := strconv.Atoi(strings.TrimSpace(sppLine))
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: parse samples_per_page")
	}

	spsLine, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read seconds_per_page")
	}
	secondsPerPage, err := strconv.ParseFloat(strings.TrimSpace(spsLine), 64)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: parse seconds_per_page")
	}

	passLine, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read passphrase")
	}
	passphrase := strings.TrimSpace(passLine)
	if passphrase == "(none)" {
		passphrase = ""
	}

	eventsLine, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(err, "reqspec: read events file name")
	}
	events := strings.TrimSpace(eventsLine)
	if events == "blank" {
		events = ""
	}

	return &Spec{
		Fingerprint:    fingerprint,
		DataPath:       strings.TrimSpace(dataPath),
		ChannelNames:   names,
		SamplesPerPage: samplesPerPage,
		SecondsPerPage: secondsPerPage,
		Passphrase:     passphrase,
		EventsFileName: events,
	}, nil
}

// readLine reads up to and excluding the next newline. It returns io.EOF
// only when no bytes at all were read before the stream ended.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	return strings.TrimRight(line, "\n\r"), nil
}
