package mobi

import "encoding/binary"

const (
	exthMagic = "EXTH"
	// exthBase is the distance from the MOBI header length to the EXTH block:
	// the PalmDOC header precedes the MOBI header.
	exthBase = PalmDOCHeaderSize
)

// EXTH record types mapped to metadata.
const (
	EXTHAuthor      uint32 = 100
	EXTHDescription uint32 = 103
	EXTHSubject     uint32 = 105
	EXTHRights      uint32 = 109
)

// EXTHRecord represents a single EXTH metadata record.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// EXTH represents the EXTH header containing metadata records.
type EXTH struct {
	Records []EXTHRecord
}

// ParseEXTH reads the EXTH block that follows a MOBI header of the given
// length inside record 0. It returns nil when the EXTH magic is absent.
// Records are consumed in order, advancing by each record's declared
// length whether or not its type is known; a record that is shorter than
// its own header or runs past record 0 ends parsing.
func ParseEXTH(rec0 []byte, headerLength uint32) *EXTH {
	base := uint64(headerLength) + exthBase
	if base+12 > uint64(len(rec0)) {
		return nil
	}
	start := int(base)
	if string(rec0[start:start+4]) != exthMagic {
		return nil
	}

	count := binary.BigEndian.Uint32(rec0[start+8:])
	off := start + 12
	e := &EXTH{}
	for range count {
		if off+8 > len(rec0) {
			break
		}
		typ := binary.BigEndian.Uint32(rec0[off:])
		n := binary.BigEndian.Uint32(rec0[off+4:])
		if n < 8 || uint64(off)+uint64(n) > uint64(len(rec0)) {
			break
		}
		e.Records = append(e.Records, EXTHRecord{
			Type: typ,
			Data: rec0[off+8 : off+int(n)],
		})
		off += int(n)
	}
	return e
}

// Find returns the data of the last record of the given type.
func (e *EXTH) Find(typ uint32) ([]byte, bool) {
	if e == nil {
		return nil, false
	}
	var (
		data  []byte
		found bool
	)
	for _, rec := range e.Records {
		if rec.Type == typ {
			data, found = rec.Data, true
		}
	}
	return data, found
}

// Uint32 returns the value of a 4-byte numeric record.
func (e *EXTH) Uint32(typ uint32) (uint32, bool) {
	data, ok := e.Find(typ)
	if !ok || len(data) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data), true
}
