// Package bits provides the bit-level primitives used by the block payload
// codec: unary run-length coding and ZigZag sign mapping.
package bits

import (
	"io"

	"github.com/icza/bitio"
)

// Reader reads individual bits and bit-groups from an underlying byte
// stream. It wraps a bitio.Reader the same way the residual decoder in a
// difference-coded block payload needs: bit-at-a-time for unary prefixes,
// then a fixed bit-width pull for the signed remainder.
type Reader struct {
	br *bitio.Reader
}

// NewReader returns a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bitio.NewReader(r)}
}

// Read reads n bits (0 < n <= 64) and returns them right-aligned in a
// uint64.
func (r *Reader) Read(n byte) (uint64, error) {
	return r.br.ReadBits(n)
}
