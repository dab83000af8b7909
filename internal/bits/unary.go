package bits

import (
	"github.com/icza/bitio"
)

// ReadUnary decodes and returns a unary coded integer, represented by the
// number of leading zeros before a one. The block payload codec uses this
// for the length of each run of value or gap samples and for the byte
// count that prefixes each residual.
//
//	1       => 0
//	01      => 1
//	001     => 2
//	0001    => 3
//	00001   => 4
func (r *Reader) ReadUnary() (x uint64, err error) {
	for {
		bit, err := r.Read(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		x++
	}
	return x, nil
}

// WriteUnary encodes x as a unary coded integer.
func WriteUnary(bw *bitio.Writer, x uint64) error {
	for ; x > 8; x -= 8 {
		if err := bw.WriteByte(0x0); err != nil {
			return err
		}
	}
	if err := bw.WriteBits(1, byte(x+1)); err != nil {
		return err
	}
	return nil
}
