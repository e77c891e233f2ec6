package mobi

// stripTrailingEntries removes the extra data appended to each text record
// as announced by the record 0 extra flags. Bit 0 marks multibyte
// character overlap bytes; every higher bit marks one trailing entry whose
// size is stored backwards as a variable-length integer in the last bytes.
func stripTrailingEntries(data []byte, flags uint16) []byte {
	if flags == 0 {
		return data
	}
	size := len(data)
	for f := flags >> 1; f != 0; f >>= 1 {
		if f&1 == 0 {
			continue
		}
		n := trailingEntrySize(data[:size])
		if n <= 0 || n > size {
			return data[:0]
		}
		size -= n
	}
	if flags&1 != 0 && size > 0 {
		n := int(data[size-1]&0x03) + 1
		if n > size {
			return data[:0]
		}
		size -= n
	}
	return data[:size]
}

// trailingEntrySize decodes the backward varint at the end of data.
// The size includes the varint bytes themselves.
func trailingEntrySize(data []byte) int {
	start := max(len(data)-4, 0)
	n := 0
	for _, b := range data[start:] {
		if b&0x80 != 0 {
			n = 0
		}
		n = n<<7 | int(b&0x7F)
	}
	return n
}
