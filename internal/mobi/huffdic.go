package mobi

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

const (
	// Record 0 offsets of the first HUFF record index and the HUFF+CDIC record count.
	huffOffsetField = 0x70
	huffCountField  = 0x74

	huffMagic = "HUFF"
	cdicMagic = "CDIC"

	// HUFF record: offsets of the code table and the min/max code table.
	huffDict1Field = 16
	huffDict2Field = 20
	// CDIC record: entry_bits field and start of the entry table.
	cdicEntryBitsField = 12
	cdicHeaderSize     = 16

	dict1Len = 256
	dict2Len = 64

	// maxHuffDepth bounds nesting of compressed dictionary entries.
	maxHuffDepth = 32
)

// huffdicDecompressor decodes HUFF/CDIC compressed records.
// The tables are read-only after construction and every Decompress call
// uses its own output buffer, so concurrent calls are safe.
type huffdicDecompressor struct {
	dict1     [dict1Len]uint32
	dict2     [dict2Len]uint32
	dicts     [][]byte
	entryBits uint32
	invalid   atomic.Bool
}

func newHuffdicDecompressor(src RecordSource) (*huffdicDecompressor, error) {
	h := &huffdicDecompressor{}
	if err := h.load(src); err != nil {
		h.invalid.Store(true)
		return h, fmt.Errorf("%w: %v", ErrBadHuffTable, err)
	}
	return h, nil
}

func (h *huffdicDecompressor) load(src RecordSource) error {
	if src == nil {
		return fmt.Errorf("no record source")
	}
	header, err := src.Record(0)
	if err != nil {
		return err
	}
	huffOfs, ok := readUint32(header, huffOffsetField)
	if !ok {
		return fmt.Errorf("record 0 too short for huffman fields (%d bytes)", len(header))
	}
	huffNum, _ := readUint32(header, huffCountField)
	if huffNum < 2 {
		return fmt.Errorf("huffman record count %d, need HUFF and at least one CDIC", huffNum)
	}
	if uint64(huffOfs)+uint64(huffNum) > uint64(src.RecordCount()) {
		return fmt.Errorf("huffman records %d+%d past record count %d", huffOfs, huffNum, src.RecordCount())
	}

	huff, err := src.Record(int(huffOfs))
	if err != nil {
		return err
	}
	if !hasMagic(huff, huffMagic) {
		return fmt.Errorf("record %d is not a HUFF record", huffOfs)
	}

	off1, ok1 := readUint32(huff, huffDict1Field)
	off2, ok2 := readUint32(huff, huffDict2Field)
	if !ok1 || !ok2 {
		return fmt.Errorf("HUFF record too short")
	}
	if uint64(off1)+dict1Len*4 > uint64(len(huff)) || uint64(off2)+dict2Len*4 > uint64(len(huff)) {
		return fmt.Errorf("HUFF tables at %d/%d exceed record length %d", off1, off2, len(huff))
	}
	for i := range h.dict1 {
		h.dict1[i] = binary.BigEndian.Uint32(huff[int(off1)+i*4:])
	}
	for i := range h.dict2 {
		h.dict2[i] = binary.BigEndian.Uint32(huff[int(off2)+i*4:])
	}

	for i := uint32(1); i < huffNum; i++ {
		rec, err := src.Record(int(huffOfs + i))
		if err != nil {
			return err
		}
		if !hasMagic(rec, cdicMagic) {
			return fmt.Errorf("record %d is not a CDIC record", huffOfs+i)
		}
		h.dicts = append(h.dicts, rec)
	}

	bits, ok := readUint32(h.dicts[0], cdicEntryBitsField)
	if !ok || bits > 31 {
		return fmt.Errorf("bad CDIC entry bits")
	}
	h.entryBits = bits
	return nil
}

func (h *huffdicDecompressor) Valid() bool {
	return !h.invalid.Load()
}

func (h *huffdicDecompressor) Decompress(data []byte) ([]byte, error) {
	if h.invalid.Load() {
		return nil, ErrInvalid
	}
	out, err := h.unpack(data)
	if err != nil {
		h.invalid.Store(true)
	}
	return out, err
}

// huffFrame is one level of nested dictionary decoding.
type huffFrame struct {
	r     *bitReader
	depth int
}

// unpack decodes data, expanding compressed dictionary entries with an
// explicit stack instead of recursion.
func (h *huffdicDecompressor) unpack(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*4)
	stack := []huffFrame{{r: newBitReader(data)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.depth > maxHuffDepth {
			return out, ErrDepthExceeded
		}
		r := top.r
		if r.left() <= 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		dw := r.peek()
		v := h.dict1[dw>>24]
		codelen := v & 0x1F
		if codelen == 0 {
			return out, fmt.Errorf("%w: zero code length", ErrCorruptHuffData)
		}
		code := dw >> (32 - codelen)
		sym := v >> 8
		if v&0x80 == 0 {
			for code < h.dict2[(codelen-1)*2] {
				codelen++
				if codelen > 32 {
					return out, fmt.Errorf("%w: code length exceeds 32 bits", ErrCorruptHuffData)
				}
				code = dw >> (32 - codelen)
			}
			sym = h.dict2[(codelen-1)*2+1]
		}
		sym -= code

		if !r.eat(int(codelen)) {
			// The last code runs into the padding; this level is done.
			stack = stack[:len(stack)-1]
			continue
		}

		entry, literal, err := h.lookup(sym)
		if err != nil {
			return out, err
		}
		if literal {
			out = append(out, entry...)
		} else {
			stack = append(stack, huffFrame{r: newBitReader(entry), depth: top.depth + 1})
		}
	}

	return out, nil
}

// lookup resolves a symbol to its CDIC entry. The top bit of the entry
// length marks a literal; otherwise the entry is itself compressed.
func (h *huffdicDecompressor) lookup(sym uint32) ([]byte, bool, error) {
	dictNo := sym >> h.entryBits
	if int(dictNo) >= len(h.dicts) {
		return nil, false, fmt.Errorf("%w: dictionary %d of %d", ErrCorruptHuffData, dictNo, len(h.dicts))
	}
	dict := h.dicts[dictNo]

	idx := sym - dictNo<<h.entryBits
	off1 := cdicHeaderSize + int(idx)*2
	rel, ok := readUint16(dict, off1)
	if !ok {
		return nil, false, fmt.Errorf("%w: entry %d outside CDIC", ErrCorruptHuffData, idx)
	}
	off2 := cdicHeaderSize + int(rel)
	blen, ok := readUint16(dict, off2)
	if !ok {
		return nil, false, fmt.Errorf("%w: entry %d data outside CDIC", ErrCorruptHuffData, idx)
	}

	start := off2 + 2
	end := start + int(blen&0x7FFF)
	if end > len(dict) {
		return nil, false, fmt.Errorf("%w: entry %d length %d outside CDIC", ErrCorruptHuffData, idx, blen&0x7FFF)
	}
	return dict[start:end], blen&0x8000 != 0, nil
}

func hasMagic(data []byte, magic string) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}

// readUint32 reads a big-endian uint32 at off, reporting false when out of bounds.
func readUint32(data []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(data) {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[off:]), true
}

// readUint16 reads a big-endian uint16 at off, reporting false when out of bounds.
func readUint16(data []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(data) {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[off:]), true
}
