// Package page implements the Page Pipeline: for each page, it fans out
// one Channel Renderer task per channel and joins them before the
// completed, channel-interleaved page record is appended to the output
// file (§4.4 Page Pipeline).
package page

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/eegserve/pageserver/channel"
	"github.com/eegserve/pageserver/render"
)

// BytesPerSample is the on-disk size of one page cell (§6 page_data).
const BytesPerSample = 4

// Render builds one page record covering [startTimeUUTC, endTimeUUTC)
// for every channel in chans, channel-interleaved sample-major (§3
// Buffer Window, §4.4): cell (j, c) lands at j*len(chans)+c. Channel
// renderer failures (I/O errors reading a segment's payload file) are
// collected and returned together after every task has joined; a
// channel's stripe on error is left as whatever render.Page had written
// before the error, usually all-NaN.
func Render(chans []*channel.Channel, startTimeUUTC, endTimeUUTC int64, samplesPerPage int) ([]float32, error) {
	buf := make([]float32, samplesPerPage*len(chans))

	var wg sync.WaitGroup
	errs := make([]error, len(chans))
	for idx, c := range chans {
		wg.Add(1)
		go func(idx int, c *channel.Channel) {
			defer wg.Done()
			errs[idx] = render.Page(c, startTimeUUTC, endTimeUUTC, samplesPerPage, len(chans), idx, buf)
		}(idx, c)
	}
	wg.Wait()

	var failed []string
	for idx, err := range errs {
		if err != nil {
			failed = append(failed, chans[idx].Name)
		}
	}
	if len(failed) > 0 {
		return buf, errors.Errorf("page: render failed for channels %v", failed)
	}
	return buf, nil
}
