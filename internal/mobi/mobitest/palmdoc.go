// Package mobitest builds Mobipocket records and whole books in memory for
// tests: record 0 with its MOBI and EXTH headers, PalmDOC-compressed text
// records, HUFF/CDIC dictionaries and the fixed trailer records.
package mobitest

import "bytes"

// DefaultRecordSize is the uncompressed size of each text record.
const DefaultRecordSize = 4096

// PalmDOC back-reference limits.
const (
	minMatch    = 3
	maxMatch    = 10
	maxDistance = 2047
)

// CompressPalmDoc compresses data with PalmDOC's LZ77 variant. It emits
// every token kind the decoder knows: literals, literal runs, space+char
// pairs and back-references.
func CompressPalmDoc(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if n, dist := longestMatch(data, i); n > 0 {
			out = append(out, byte(0x80|dist>>5), byte(dist&0x1F<<3|(n-minMatch)))
			i += n
			continue
		}

		b := data[i]
		switch {
		case b == ' ' && i+1 < len(data) && data[i+1] >= 0x40 && data[i+1] <= 0x7F:
			out = append(out, data[i+1]^0x80)
			i += 2
		case isLiteral(b):
			out = append(out, b)
			i++
		default:
			run := i + 1
			for run < len(data) && run-i < 8 && !isLiteral(data[run]) {
				if n, _ := longestMatch(data, run); n > 0 {
					break
				}
				run++
			}
			out = append(out, byte(run-i))
			out = append(out, data[i:run]...)
			i = run
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isLiteral(b byte) bool {
	return b == 0x00 || (b >= 0x09 && b <= 0x7F)
}

// longestMatch returns the length and distance of the longest earlier
// occurrence of the bytes at pos, preferring the nearest one, or 0, 0.
// The source may overlap pos.
func longestMatch(data []byte, pos int) (int, int) {
	window := max(0, pos-maxDistance)
	for n := min(maxMatch, len(data)-pos); n >= minMatch; n-- {
		if i := bytes.LastIndex(data[window:pos+n-1], data[pos:pos+n]); i >= 0 {
			return n, pos - window - i
		}
	}
	return 0, 0
}

// SplitText cuts text into records of at most size bytes.
// A size of zero or less uses DefaultRecordSize.
func SplitText(text []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultRecordSize
	}
	var records [][]byte
	for offset := 0; offset < len(text); offset += size {
		end := min(offset+size, len(text))
		records = append(records, text[offset:end])
	}
	return records
}
