package reqspec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eegserve/pageserver/reqspec"
)

func TestParseWellFormedSpec(t *testing.T) {
	raw := "1.5\n" +
		"/data/session1\n" +
		"2\n" +
		"ch0\n" +
		"ch1\n" +
		"2048\n" +
		"2.0\n" +
		"(none)\n" +
		"blank\n"

	s, err := reqspec.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 1.5, s.Fingerprint)
	require.Equal(t, "/data/session1", s.DataPath)
	require.Equal(t, []string{"ch0", "ch1"}, s.ChannelNames)
	require.Equal(t, 2048, s.SamplesPerPage)
	require.Equal(t, 2.0, s.SecondsPerPage)
	require.Equal(t, "", s.Passphrase)
	require.Equal(t, "", s.EventsFileName)
}

func TestParseWithPassphraseAndEvents(t *testing.T) {
	raw := "2.0\n/data\n1\nch0\n1024\n1.0\nsecretpass\nmy_events.txt\n"
	s, err := reqspec.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "secretpass", s.Passphrase)
	require.Equal(t, "my_events.txt", s.EventsFileName)
}

func TestParseDetectsMidRewriteTruncation(t *testing.T) {
	longName := strings.Repeat("x", 300)
	raw := "1.0\n/data\n1\n" + longName + "\n1024\n1.0\n(none)\nblank\n"
	_, err := reqspec.Parse(strings.NewReader(raw))
	require.ErrorIs(t, err, reqspec.ErrTruncated)
}
