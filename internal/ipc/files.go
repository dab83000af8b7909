// Package ipc implements the retry-on-open file protocol the page server
// and its UI use to exchange requests and results: every IPC file is
// written by one side and read by the other, and a reader that loses the
// open-file race retries rather than fails.
//
// Grounded on eeg_page_server3.c's repeated
// `while ((fp = fopen(path, "r")) == NULL) usleep(100000);` loops.
package ipc

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
)

// OpenRetryInterval is the backoff between failed open attempts.
var OpenRetryInterval = 100 * time.Millisecond

// OpenForRead opens path for reading, retrying forever on failure until
// the file appears or ctx is canceled.
func OpenForRead(ctx context.Context, path string) (*os.File, error) {
	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "ipc: open %s canceled", path)
		case <-time.After(OpenRetryInterval):
		}
	}
}

// OpenForWrite opens path for writing (truncating any existing content),
// retrying forever on failure until ctx is canceled.
func OpenForWrite(ctx context.Context, path string) (*os.File, error) {
	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err == nil {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "ipc: open %s canceled", path)
		case <-time.After(OpenRetryInterval):
		}
	}
}

// WriteFile opens path for writing (retrying on failure) and writes data
// to it, then closes it.
func WriteFile(ctx context.Context, path string, data []byte) error {
	f, err := OpenForWrite(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "ipc: write %s", path)
	}
	return nil
}

// Touch creates an empty sentinel file at path, retrying on failure.
func Touch(ctx context.Context, path string) error {
	return WriteFile(ctx, path, nil)
}
