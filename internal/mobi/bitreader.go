package mobi

// bitReader is an MSB-first cursor over a byte slice.
// The data is followed by four zero bytes so that peek can always
// assemble a full 32-bit window near the end of the input.
type bitReader struct {
	data []byte
	pos  int // bit position
	bits int // bit length of the real data, excluding padding
}

func newBitReader(data []byte) *bitReader {
	padded := make([]byte, len(data)+4)
	copy(padded, data)
	return &bitReader{
		data: padded,
		bits: len(data) * 8,
	}
}

// peek returns the next 32 bits without consuming them.
func (r *bitReader) peek() uint32 {
	var acc uint64
	g := 0
	for g < 32 {
		idx := (r.pos + g) >> 3
		var b byte
		if idx < len(r.data) {
			b = r.data[idx]
		}
		acc = acc<<8 | uint64(b)
		g += 8 - ((r.pos + g) & 7)
	}
	return uint32(acc >> (g - 32))
}

// eat consumes n bits and reports whether the cursor is still inside the data.
func (r *bitReader) eat(n int) bool {
	r.pos += n
	return r.pos <= r.bits
}

// left returns the number of unconsumed data bits.
func (r *bitReader) left() int {
	return r.bits - r.pos
}
