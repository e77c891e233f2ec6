package mobi

import (
	"errors"
	"fmt"
)

const (
	// PalmDOCHeaderSize is the size of the PalmDOC header at the start of record 0.
	PalmDOCHeaderSize = 16

	// EncodingUTF8 is the MOBI encoding code for UTF-8.
	EncodingUTF8 uint32 = 65001
	// EncodingWinLatin1 is the MOBI encoding code for CP1252.
	EncodingWinLatin1 uint32 = 1252

	// EXTHCoverOffset is the EXTH type holding the cover image index.
	EXTHCoverOffset uint32 = 201
)

// Record 0 field offsets.
const (
	fieldCompression     = 0x00
	fieldTextLength      = 0x04
	fieldTextRecordCount = 0x08
	fieldRecordSize      = 0x0A
	fieldEncryption      = 0x0C
	fieldMOBIMagic       = 0x10
	fieldHeaderLength    = 0x14
	fieldMOBIType        = 0x18
	fieldEncoding        = 0x1C
	fieldFullNameOffset  = 0x54
	fieldFullNameLength  = 0x58
	fieldExtraFlags      = 0xF2

	// exthMinRecord0 is the record 0 size below which EXTH is not looked for.
	exthMinRecord0 = 176
	// extraFlagsMinHeader is the MOBI header length that carries the extra data flags.
	extraFlagsMinHeader = 0xE4
)

var ErrShortRecord0 = errors.New("mobi: record 0 shorter than PalmDOC header")

// Header holds the fields of record 0 that drive decoding.
type Header struct {
	Compression     Compression
	TextLength      uint32
	TextRecordCount int
	RecordSize      uint16
	Encryption      uint16

	// The fields below are zero for plain PalmDOC files without a MOBI header.
	HasMOBI      bool
	HeaderLength uint32
	MOBIType     uint32
	Encoding     uint32
	ExtraFlags   uint16

	fullName []byte
	exth     *EXTH
}

// ParseHeader decodes record 0. Only the 16-byte PalmDOC header is
// mandatory; every later field is read when the record is long enough.
func ParseHeader(rec0 []byte) (*Header, error) {
	if len(rec0) < PalmDOCHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortRecord0, len(rec0))
	}

	h := &Header{}
	c, _ := readUint16(rec0, fieldCompression)
	h.Compression = Compression(c)
	h.TextLength, _ = readUint32(rec0, fieldTextLength)
	n, _ := readUint16(rec0, fieldTextRecordCount)
	h.TextRecordCount = int(n)
	h.RecordSize, _ = readUint16(rec0, fieldRecordSize)
	h.Encryption, _ = readUint16(rec0, fieldEncryption)

	h.HasMOBI = len(rec0) >= fieldMOBIMagic+4 && string(rec0[fieldMOBIMagic:fieldMOBIMagic+4]) == "MOBI"
	if !h.HasMOBI {
		return h, nil
	}

	h.HeaderLength, _ = readUint32(rec0, fieldHeaderLength)
	h.MOBIType, _ = readUint32(rec0, fieldMOBIType)
	h.Encoding, _ = readUint32(rec0, fieldEncoding)
	if h.HeaderLength >= extraFlagsMinHeader {
		h.ExtraFlags, _ = readUint16(rec0, fieldExtraFlags)
	}

	h.fullName = fullName(rec0)
	if len(rec0) > exthMinRecord0 {
		h.exth = ParseEXTH(rec0, h.HeaderLength)
	}

	return h, nil
}

// fullName returns the title referenced by the full name offset/length pair.
func fullName(rec0 []byte) []byte {
	off, ok1 := readUint32(rec0, fieldFullNameOffset)
	n, ok2 := readUint32(rec0, fieldFullNameLength)
	if !ok1 || !ok2 || n == 0 {
		return nil
	}
	if uint64(off)+uint64(n) >= uint64(len(rec0)) {
		return nil
	}
	return rec0[off : off+n]
}

// IsUTF8 reports whether strings and text are UTF-8 encoded.
func (h *Header) IsUTF8() bool {
	return h.Encoding == EncodingUTF8
}

// Encrypted reports whether the text records are DRM protected.
func (h *Header) Encrypted() bool {
	return h.Encryption != 0
}

// FullName returns the raw title bytes from record 0, or nil.
func (h *Header) FullName() []byte {
	return h.fullName
}

// EXTH returns the parsed extended header, or nil when absent.
func (h *Header) EXTH() *EXTH {
	return h.exth
}
