package mobitest

import (
	"bytes"
	"encoding/binary"

	"github.com/yuanying/mobireader/internal/pdb/pdbtest"
)

// Book describes a complete Mobipocket file.
//
// Record layout: record 0, the text records, Separators, Images, then
// FLIS, FCIS and EOF. HUFF/CDIC books put their dictionary records after
// the images.
type Book struct {
	Name   string
	Type   string // PDB type tag, default BOOKMOBI
	Header Record0

	// Text is split into Header.RecordSize chunks and compressed according
	// to Header.Compression. HUFF/CDIC books provide TextRecords directly.
	Text        []byte
	TextRecords [][]byte
	Dictionary  *Dictionary

	// Trailer is appended to every stored text record after compression,
	// e.g. the trailing entries announced by Header.ExtraFlags.
	Trailer []byte

	Separators [][]byte
	Images     [][]byte
}

// Records lays out every record of the book.
func (b Book) Records() [][]byte {
	h := b.Header
	if h.Compression == 0 {
		h.Compression = CompressionNone
	}

	text := b.TextRecords
	if text == nil {
		for _, chunk := range SplitText(b.Text, int(h.RecordSize)) {
			if h.Compression == CompressionPalmDoc {
				chunk = CompressPalmDoc(chunk)
			}
			text = append(text, chunk)
		}
	}
	if len(b.Trailer) > 0 {
		withTrailer := make([][]byte, len(text))
		for i, rec := range text {
			withTrailer[i] = append(append([]byte{}, rec...), b.Trailer...)
		}
		text = withTrailer
	}

	if h.TextLength == 0 {
		h.TextLength = uint32(len(b.Text))
	}
	if h.TextRecordCount == 0 {
		h.TextRecordCount = uint16(len(text))
	}

	next := 1 + len(text) + len(b.Separators)
	if len(b.Images) > 0 && h.FirstImageIndex == 0 {
		h.FirstImageIndex = uint32(next)
	}
	next += len(b.Images)
	if b.Dictionary != nil {
		h.Compression = CompressionHuffCDIC
		h.HuffOffset = uint32(next)
		h.HuffCount = 2
	}

	records := [][]byte{h.Bytes()}
	records = append(records, text...)
	records = append(records, b.Separators...)
	records = append(records, b.Images...)
	if b.Dictionary != nil {
		records = append(records, b.Dictionary.HUFF(), b.Dictionary.CDIC())
	}
	records = append(records, FLISRecord(), FCISRecord(h.TextLength), EOFRecord())
	return records
}

// Bytes serializes the book as a PDB container.
func (b Book) Bytes() []byte {
	p := pdbtest.New(b.Name)
	if b.Type != "" {
		p.Type = b.Type
	}
	for _, rec := range b.Records() {
		p.Add(rec)
	}
	return p.MustBytes()
}

// FLISRecord generates a 36-byte FLIS record.
func FLISRecord() []byte {
	buf := &bytes.Buffer{}
	fields := []any{
		[4]byte{'F', 'L', 'I', 'S'},
		uint32(0x00000008),
		uint16(0x0041),
		uint16(0x0000),
		uint32(0x00000000),
		uint32(0xFFFFFFFF),
		uint16(0x0001),
		uint16(0x0003),
		uint32(0x00000003),
		uint32(0x00000001),
		uint32(0xFFFFFFFF),
	}
	for _, f := range fields {
		_ = binary.Write(buf, binary.BigEndian, f)
	}
	return buf.Bytes()
}

// FCISRecord generates a 44-byte FCIS record carrying the text length at offset 20.
func FCISRecord(textLength uint32) []byte {
	buf := &bytes.Buffer{}
	fields := []any{
		[4]byte{'F', 'C', 'I', 'S'},
		uint32(0x00000014),
		uint32(0x00000010),
		uint32(0x00000001),
		uint32(0x00000000),
		textLength,
		uint32(0x00000000),
		uint32(0x00000020),
		uint32(0x00000008),
		uint16(0x0001),
		uint16(0x0001),
		uint32(0x00000000),
	}
	for _, f := range fields {
		_ = binary.Write(buf, binary.BigEndian, f)
	}
	return buf.Bytes()
}

// EOFRecord generates the 4-byte end-of-file record.
func EOFRecord() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, 0xE98E0D0A)
	return buf
}
