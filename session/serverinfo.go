package session

import (
	"bytes"
	"fmt"

	"github.com/eegserve/pageserver/channel"
)

// serverInfoBytes renders the server_info payload: channel count, one
// line per channel, then the count again as a trailer (§4.5, §6
// server_info, §8 property 3).
func serverInfoBytes(chans []*channel.Channel) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\n", len(chans))
	for _, c := range chans {
		fmt.Fprintf(&buf, "%s %d %d %d %g\n",
			c.Name, c.EarliestStartTime, c.LatestEndTime,
			c.AcquisitionChannelNumber, c.UnitsConversionFactor)
	}
	fmt.Fprintf(&buf, "%d\n", len(chans))
	return buf.Bytes()
}
