// Package pdb reads Palm Database containers, the outer format of
// PalmDOC and Mobipocket e-books.
package pdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// HeaderSize is the size of the fixed Palm Database header.
	HeaderSize = 78

	// RecordEntrySize is the size of one record list entry: offset, attributes and unique ID.
	RecordEntrySize = 8

	nameSize       = 32
	typeOffset     = 0x3c
	typeSize       = 8
	numRecordsOffs = 0x4c
)

// Type tags recognized by IsMobipocket.
const (
	TypeMobipocket = "BOOKMOBI"
	TypePalmDoc    = "TEXtREAd"
)

var (
	ErrShortHeader      = errors.New("pdb: file shorter than PDB header")
	ErrShortRecordTable = errors.New("pdb: record table truncated")
	ErrBadRecordOffset  = errors.New("pdb: record offset out of order or past end of file")
	ErrRecordIndex      = errors.New("pdb: record index out of range")
)

// Reader gives random access to the records of a Palm Database.
// A Reader is immutable after NewReader and safe for concurrent use
// as long as the underlying io.ReaderAt is.
type Reader struct {
	r        io.ReaderAt
	size     int64
	name     string
	fileType string
	offsets  []uint32
	err      error
}

// NewReader parses the PDB header and record table from r, whose total
// length is size. It never fails outright: a container that cannot be
// parsed yields a Reader whose Valid method reports false and whose Err
// method explains why.
func NewReader(r io.ReaderAt, size int64) *Reader {
	p := &Reader{r: r, size: size}
	p.err = p.init()
	if p.err != nil {
		p.offsets = nil
	}
	return p
}

func (p *Reader) init() error {
	if p.size < HeaderSize {
		return ErrShortHeader
	}

	header := make([]byte, HeaderSize)
	if err := readAt(p.r, header, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrShortHeader, err)
	}

	p.name = trimName(header[:nameSize])
	p.fileType = string(header[typeOffset : typeOffset+typeSize])

	count := int(binary.BigEndian.Uint16(header[numRecordsOffs:]))
	tableSize := int64(count) * RecordEntrySize
	if HeaderSize+tableSize > p.size {
		return ErrShortRecordTable
	}

	table := make([]byte, tableSize)
	if err := readAt(p.r, table, HeaderSize); err != nil {
		return fmt.Errorf("%w: %v", ErrShortRecordTable, err)
	}

	p.offsets = make([]uint32, count)
	var prev uint32
	for i := range count {
		off := binary.BigEndian.Uint32(table[i*RecordEntrySize:])
		if off < prev || int64(off) > p.size {
			return fmt.Errorf("%w: record %d at %d", ErrBadRecordOffset, i, off)
		}
		p.offsets[i] = off
		prev = off
	}

	return nil
}

// trimName cuts the database name at the first NUL and drops trailing spaces.
func trimName(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " ")
}

// Name returns the database name from the header.
func (p *Reader) Name() string {
	return p.name
}

// FileType returns the 8-byte type and creator tag, e.g. "BOOKMOBI".
func (p *Reader) FileType() string {
	return p.fileType
}

// IsMobipocket reports whether the type tag names a PalmDOC or Mobipocket book.
func (p *Reader) IsMobipocket() bool {
	return p.fileType == TypeMobipocket || p.fileType == TypePalmDoc
}

// Valid reports whether the header and record table parsed cleanly.
func (p *Reader) Valid() bool {
	return p.err == nil
}

// Err returns the reason the container is invalid, or nil.
func (p *Reader) Err() error {
	return p.err
}

// RecordCount returns the number of records in the container.
func (p *Reader) RecordCount() int {
	return len(p.offsets)
}

// recordRange returns the byte range of record i.
// The last record extends to the end of the stream.
func (p *Reader) recordRange(i int) (int64, int64, error) {
	if i < 0 || i >= len(p.offsets) {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrRecordIndex, i, len(p.offsets))
	}
	start := int64(p.offsets[i])
	end := p.size
	if i+1 < len(p.offsets) {
		end = int64(p.offsets[i+1])
	}
	return start, end, nil
}

// RecordSize returns the length of record i without reading it.
func (p *Reader) RecordSize(i int) (int, error) {
	start, end, err := p.recordRange(i)
	if err != nil {
		return 0, err
	}
	return int(end - start), nil
}

// Record reads record i into a freshly allocated buffer.
func (p *Reader) Record(i int) ([]byte, error) {
	start, end, err := p.recordRange(i)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, end-start)
	if len(buf) == 0 {
		return buf, nil
	}
	if err := readAt(p.r, buf, start); err != nil {
		return nil, fmt.Errorf("pdb: failed to read record %d: %w", i, err)
	}
	return buf, nil
}

// readAt fills buf from off. An io.EOF that arrives together with a full
// buffer is not an error.
func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}
