package mobi

// PalmDoc token classes.
const (
	tokenLiteral  = iota // byte is copied as-is
	tokenRun             // 0x01-0x08: next N bytes are literal
	tokenSpace           // 0xC0-0xFF: space followed by byte^0x80
	tokenBackRef         // 0x80-0xBF: two-byte back reference
)

// tokenClass classifies every possible PalmDoc input byte.
var tokenClass = func() [256]byte {
	var t [256]byte
	for b := 0x01; b <= 0x08; b++ {
		t[b] = tokenRun
	}
	for b := 0x80; b <= 0xBF; b++ {
		t[b] = tokenBackRef
	}
	for b := 0xC0; b <= 0xFF; b++ {
		t[b] = tokenSpace
	}
	return t
}()

// palmDocDecompressor implements the PalmDoc (LZ77-based) codec.
// It is stateless and always valid: a truncated or malformed record
// simply ends early.
type palmDocDecompressor struct{}

func (palmDocDecompressor) Decompress(data []byte) ([]byte, error) {
	return PalmDocDecompress(data), nil
}

func (palmDocDecompressor) Valid() bool {
	return true
}

// PalmDocDecompress decompresses PalmDoc-compressed data. Decoding stops
// at the first token that would read past the input or reference bytes
// before the start of the output, and the output produced so far is
// returned.
func PalmDocDecompress(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	i := 0

	for i < len(data) {
		b := data[i]
		i++

		switch tokenClass[b] {
		case tokenLiteral:
			out = append(out, b)

		case tokenRun:
			count := int(b)
			if i+count > len(data) {
				return out
			}
			out = append(out, data[i:i+count]...)
			i += count

		case tokenSpace:
			out = append(out, ' ', b^0x80)

		case tokenBackRef:
			if i >= len(data) {
				return out
			}
			n := int(b)<<8 | int(data[i])
			i++

			length := n&0x07 + 3
			distance := (n & 0x3FFF) >> 3
			if distance == 0 || distance > len(out) {
				return out
			}

			// The source may overlap the bytes being appended.
			start := len(out) - distance
			for j := range length {
				out = append(out, out[start+j])
			}
		}
	}

	return out
}
