package mobitest

import (
	"bytes"
	"encoding/binary"
)

// Compression codes written to record 0.
const (
	CompressionNone     uint16 = 1
	CompressionPalmDoc  uint16 = 2
	CompressionHuffCDIC uint16 = 17480
)

const (
	// EncodingUTF8 is the MOBI encoding code for UTF-8.
	EncodingUTF8 uint32 = 65001
	// EncodingWinLatin1 is the MOBI encoding code for CP1252.
	EncodingWinLatin1 uint32 = 1252

	// DefaultHeaderLength is the MOBI header length written when none is set.
	// It is long enough to carry the extra record data flags.
	DefaultHeaderLength uint32 = 0xE8

	palmDOCHeaderSize = 16
	exthFlagPresent   = 0x40
	noIndex           = 0xFFFFFFFF
)

// Record0 describes the PalmDOC header, MOBI header, EXTH block and full
// name that make up record 0.
type Record0 struct {
	Compression     uint16
	TextLength      uint32
	TextRecordCount uint16
	RecordSize      uint16
	Encryption      uint16

	// PalmDOCOnly omits everything after the 16-byte PalmDOC header.
	PalmDOCOnly bool

	HeaderLength    uint32 // 0 means DefaultHeaderLength
	MOBIType        uint32
	Encoding        uint32
	FullName        []byte
	FirstImageIndex uint32
	HuffOffset      uint32
	HuffCount       uint32
	ExtraFlags      uint16
	EXTH            *EXTH
}

// Bytes serializes record 0.
func (r Record0) Bytes() []byte {
	buf := &bytes.Buffer{}
	recordSize := r.RecordSize
	if recordSize == 0 {
		recordSize = DefaultRecordSize
	}
	fields := []any{
		r.Compression,     // 0x00: compression type
		uint16(0),         // 0x02: unused
		r.TextLength,      // 0x04: text length
		r.TextRecordCount, // 0x08: text record count
		recordSize,        // 0x0A: record size
		r.Encryption,      // 0x0C: encryption type
		uint16(0),         // 0x0E: unused
	}
	for _, f := range fields {
		_ = binary.Write(buf, binary.BigEndian, f)
	}
	if r.PalmDOCOnly {
		return buf.Bytes()
	}

	headerLength := r.HeaderLength
	if headerLength == 0 {
		headerLength = DefaultHeaderLength
	}
	mobiType := r.MOBIType
	if mobiType == 0 {
		mobiType = 2 // Mobipocket book
	}
	encoding := r.Encoding
	if encoding == 0 {
		encoding = EncodingUTF8
	}

	var exthData []byte
	if r.EXTH != nil {
		exthData = r.EXTH.Bytes()
	}

	mobi := make([]byte, headerLength)
	copy(mobi, "MOBI")
	binary.BigEndian.PutUint32(mobi[0x04:], headerLength)
	binary.BigEndian.PutUint32(mobi[0x08:], mobiType)
	binary.BigEndian.PutUint32(mobi[0x0C:], encoding)
	binary.BigEndian.PutUint32(mobi[0x10:], 0x12345678) // unique ID
	binary.BigEndian.PutUint32(mobi[0x14:], 6)          // file version
	for off := 0x18; off < 0x40 && off+4 <= len(mobi); off += 4 {
		binary.BigEndian.PutUint32(mobi[off:], noIndex) // index records
	}

	nameOffset := palmDOCHeaderSize + int(headerLength) + len(exthData)
	put32(mobi, 0x40, noIndex) // first non-book record
	put32(mobi, 0x44, uint32(nameOffset))
	put32(mobi, 0x48, uint32(len(r.FullName)))
	put32(mobi, 0x4C, 0x09) // locale
	put32(mobi, 0x50, 0)
	put32(mobi, 0x54, 0)
	put32(mobi, 0x58, 6) // min version
	firstImage := r.FirstImageIndex
	if firstImage == 0 {
		firstImage = noIndex
	}
	put32(mobi, 0x5C, firstImage)
	put32(mobi, 0x60, r.HuffOffset)
	put32(mobi, 0x64, r.HuffCount)
	if r.EXTH != nil {
		put32(mobi, 0x70, exthFlagPresent)
	}
	if len(mobi) >= 0xE4 {
		binary.BigEndian.PutUint16(mobi[0xE2:], r.ExtraFlags)
	}

	buf.Write(mobi)
	buf.Write(exthData)
	buf.Write(r.FullName)
	// The full name must end before the record does.
	buf.Write([]byte{0, 0})
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// put32 writes v at a MOBI-header-relative offset when it fits.
func put32(b []byte, off int, v uint32) {
	if off+4 <= len(b) {
		binary.BigEndian.PutUint32(b[off:], v)
	}
}

// EXTHRecord represents a single EXTH metadata record.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// EXTH builds the extended header that follows the MOBI header.
type EXTH struct {
	Records []EXTHRecord
}

// AddString appends a string metadata record.
func (h *EXTH) AddString(recordType uint32, value string) *EXTH {
	h.Records = append(h.Records, EXTHRecord{Type: recordType, Data: []byte(value)})
	return h
}

// AddUint32 appends a 4-byte unsigned integer metadata record.
func (h *EXTH) AddUint32(recordType, value uint32) *EXTH {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, value)
	h.Records = append(h.Records, EXTHRecord{Type: recordType, Data: data})
	return h
}

// Bytes serializes the EXTH header.
// Format: "EXTH"(4) + headerLength(4) + recordCount(4) + records + padding
func (h *EXTH) Bytes() []byte {
	size := h.Size()
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteString("EXTH")
	_ = binary.Write(buf, binary.BigEndian, uint32(size))
	_ = binary.Write(buf, binary.BigEndian, uint32(len(h.Records)))
	for _, rec := range h.Records {
		_ = binary.Write(buf, binary.BigEndian, rec.Type)
		_ = binary.Write(buf, binary.BigEndian, uint32(8+len(rec.Data)))
		buf.Write(rec.Data)
	}
	for buf.Len() < size {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Size returns the total serialized size in bytes, including padding.
func (h *EXTH) Size() int {
	unpadded := 12
	for _, rec := range h.Records {
		unpadded += 8 + len(rec.Data)
	}
	return unpadded + (4-unpadded%4)%4
}
