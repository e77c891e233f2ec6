// Package pdbtest assembles Palm Database containers in memory for tests.
package pdbtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"
)

// PalmEpochOffset represents the difference in seconds between Unix epoch and Palm epoch.
// Palm epoch starts at 1904-01-01 00:00:00 UTC.
const PalmEpochOffset = 2082844800

// header mirrors the fixed 78-byte Palm Database header.
// All fields are encoded in big-endian order.
type header struct {
	Name               [32]byte // Database name (31 bytes max, NULL padded)
	Attributes         uint16
	Version            uint16
	CreationDate       uint32
	ModificationDate   uint32
	BackupDate         uint32
	ModificationNumber uint32
	AppInfoOffset      uint32
	SortInfoOffset     uint32
	Type               [8]byte // type and creator, e.g. "BOOKMOBI"
	UniqueSeed         uint32
	NextRecordList     uint32
	NumRecords         uint16
}

// Builder collects records and serializes them as a PDB container.
type Builder struct {
	Name    string
	Type    string // 8 bytes: type + creator
	Created time.Time
	Records [][]byte
}

// New returns a Builder for a BOOKMOBI container with the given database name.
func New(name string) *Builder {
	return &Builder{
		Name:    name,
		Type:    "BOOKMOBI",
		Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// Add appends a record and returns its index.
func (b *Builder) Add(record []byte) int {
	b.Records = append(b.Records, record)
	return len(b.Records) - 1
}

// Offsets returns the record offsets Bytes will write.
// Offsets follow the PalmDB rule:
//
//	first offset = 78 + (8 * record count) + 2
//	next offset = previous offset + previous record size
func (b *Builder) Offsets() []uint32 {
	offsets := make([]uint32, len(b.Records))
	offset := uint32(78 + len(b.Records)*8 + 2)
	for i, rec := range b.Records {
		offsets[i] = offset
		offset += uint32(len(rec))
	}
	return offsets
}

// Bytes encodes the header, the record list, the 2-byte gap and the records.
func (b *Builder) Bytes() ([]byte, error) {
	if len(b.Records) > 0xFFFF {
		return nil, fmt.Errorf("record count exceeds PalmDB limit: %d", len(b.Records))
	}

	h := header{
		Name:             truncateDatabaseName(b.Name),
		CreationDate:     palmEpochSeconds(b.Created),
		ModificationDate: palmEpochSeconds(b.Created),
		NumRecords:       uint16(len(b.Records)),
	}
	copy(h.Type[:], b.Type)

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, h); err != nil {
		return nil, fmt.Errorf("failed to encode PDB header: %w", err)
	}

	for i, off := range b.Offsets() {
		var entry [8]byte
		binary.BigEndian.PutUint32(entry[0:4], off)
		entry[5] = byte(i >> 16)
		entry[6] = byte(i >> 8)
		entry[7] = byte(i)
		buf.Write(entry[:])
	}
	buf.Write([]byte{0, 0})

	for _, rec := range b.Records {
		buf.Write(rec)
	}
	return buf.Bytes(), nil
}

// MustBytes is Bytes for fixtures that cannot fail.
func (b *Builder) MustBytes() []byte {
	data, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return data
}

func palmEpochSeconds(t time.Time) uint32 {
	return uint32(t.Unix()) + PalmEpochOffset
}

// truncateDatabaseName truncates the database name to 31 bytes and NULL pads to 32 bytes.
func truncateDatabaseName(name string) [32]byte {
	var result [32]byte

	var buf []byte
	for i := 0; i < len(name); {
		_, size := utf8.DecodeRuneInString(name[i:])
		if len(buf)+size > 31 {
			break
		}
		buf = append(buf, name[i:i+size]...)
		i += size
	}

	copy(result[:], buf)
	return result
}
