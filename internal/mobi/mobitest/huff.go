package mobitest

import (
	"bytes"
	"encoding/binary"
)

// HUFF record layout written by Dictionary.HUFF.
const (
	HUFFDict1Offset = 24
	HUFFDict2Offset = HUFFDict1Offset + 256*4
)

// DictEntry is one CDIC dictionary entry. A literal entry is copied to the
// output; any other entry is itself a HUFF/CDIC stream.
type DictEntry struct {
	Data    []byte
	Literal bool
}

// Dictionary is a HUFF/CDIC table pair.
//
// By default every code is 8 bits long and byte b of a compressed stream
// selects Entries[b], which keeps fixtures hand-writable. With
// VariableLength set the table uses codes of 1, 2, 8 and 12 bits:
//
//	symbol 0        "1"
//	symbol 1        "01"
//	symbols 2..49   8 bits, 0x41-symbol (0x10..0x3f)
//	symbols 50..305 12 bits, 0x131-symbol (0x000..0x0ff)
//
// The 8 and 12 bit codes go through the min-code table, so decoding them
// extends the code length one bit at a time from 8 to 12.
type Dictionary struct {
	Entries        []DictEntry
	VariableLength bool
}

// HUFF returns the HUFF record.
func (d Dictionary) HUFF() []byte {
	dict1, dict2 := d.tables()
	buf := &bytes.Buffer{}
	buf.WriteString("HUFF")
	_ = binary.Write(buf, binary.BigEndian, uint32(HUFFDict1Offset)) // header length
	_ = binary.Write(buf, binary.BigEndian, uint64(0))
	_ = binary.Write(buf, binary.BigEndian, uint32(HUFFDict1Offset))
	_ = binary.Write(buf, binary.BigEndian, uint32(HUFFDict2Offset))
	_ = binary.Write(buf, binary.BigEndian, dict1)
	_ = binary.Write(buf, binary.BigEndian, dict2)
	return buf.Bytes()
}

// tables builds the code table (dict1) and the per-length min/max code
// pairs (dict2). A dict1 value is symbol base<<8 | terminal flag 0x80 |
// code length; the decoded symbol is base minus the code.
func (d Dictionary) tables() ([256]uint32, [64]uint32) {
	var dict1 [256]uint32
	var dict2 [64]uint32
	if !d.VariableLength {
		for code := range uint32(256) {
			dict1[code] = (2*code)<<8 | 0x80 | 8
		}
		return dict1, dict2
	}

	for b := range 256 {
		switch {
		case b >= 0x80:
			dict1[b] = 1<<8 | 0x80 | 1
		case b >= 0x40:
			dict1[b] = 2<<8 | 0x80 | 2
		default:
			dict1[b] = 8 // resolved through dict2
		}
	}
	pair := func(length int, minCode, maxCode uint32) {
		dict2[(length-1)*2] = minCode
		dict2[(length-1)*2+1] = maxCode
	}
	pair(8, 0x10, 0x41)
	pair(9, 0x20, 0)
	pair(10, 0x40, 0)
	pair(11, 0x80, 0)
	pair(12, 0, 0x131)
	return dict1, dict2
}

// CDIC returns the single CDIC record holding every entry.
func (d Dictionary) CDIC() []byte {
	const headerSize = 16
	table := make([]byte, 2*len(d.Entries))
	var data bytes.Buffer
	for i, e := range d.Entries {
		binary.BigEndian.PutUint16(table[2*i:], uint16(len(table)+data.Len()))
		n := uint16(len(e.Data))
		if e.Literal {
			n |= 0x8000
		}
		_ = binary.Write(&data, binary.BigEndian, n)
		data.Write(e.Data)
	}

	buf := &bytes.Buffer{}
	buf.WriteString("CDIC")
	_ = binary.Write(buf, binary.BigEndian, uint32(headerSize))
	_ = binary.Write(buf, binary.BigEndian, uint32(len(d.Entries)))
	_ = binary.Write(buf, binary.BigEndian, uint32(8)) // entry bits
	buf.Write(table)
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// Encode returns the compressed stream selecting the given entries. The
// last byte of a variable-length stream is padded with zero bits.
func (d Dictionary) Encode(entries ...int) []byte {
	if !d.VariableLength {
		out := make([]byte, len(entries))
		for i, e := range entries {
			out[i] = byte(e)
		}
		return out
	}

	var w bitWriter
	for _, e := range entries {
		w.write(variableCode(e))
	}
	return w.buf
}

func variableCode(sym int) (uint32, int) {
	switch {
	case sym == 0:
		return 1, 1
	case sym == 1:
		return 1, 2
	case sym >= 2 && sym <= 49:
		return uint32(0x41 - sym), 8
	case sym >= 50 && sym <= 305:
		return uint32(0x131 - sym), 12
	default:
		panic("mobitest: symbol has no variable-length code")
	}
}

// bitWriter appends codes MSB first.
type bitWriter struct {
	buf []byte
	n   int // bits written
}

func (w *bitWriter) write(code uint32, length int) {
	for i := length - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if code>>i&1 == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> (w.n % 8)
		}
		w.n++
	}
}
