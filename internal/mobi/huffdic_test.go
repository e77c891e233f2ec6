package mobi

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yuanying/mobireader/internal/mobi/mobitest"
)

// recordList is an in-memory RecordSource.
type recordList [][]byte

func (l recordList) Record(i int) ([]byte, error) {
	if i < 0 || i >= len(l) {
		return nil, errors.New("record index out of range")
	}
	return l[i], nil
}

func (l recordList) RecordCount() int {
	return len(l)
}

const (
	entryHello = iota
	entryHelloTwice
	entryCycle
	entryWorld
	entryOuter
)

var testDictionary = mobitest.Dictionary{Entries: []mobitest.DictEntry{
	entryHello:      {Data: []byte("Hello"), Literal: true},
	entryHelloTwice: {Data: []byte{entryHello, entryHello}},
	entryCycle:      {Data: []byte{entryCycle}},
	entryWorld:      {Data: []byte(" world"), Literal: true},
	entryOuter:      {Data: []byte{entryHelloTwice, entryWorld}},
}}

func huffRecords(d mobitest.Dictionary) recordList {
	rec0 := mobitest.Record0{
		Compression: mobitest.CompressionHuffCDIC,
		HuffOffset:  1,
		HuffCount:   2,
	}.Bytes()
	return recordList{rec0, d.HUFF(), d.CDIC()}
}

func newTestHuffdic(t *testing.T) Decompressor {
	t.Helper()
	dec, err := NewDecompressor(CompressionHuffCDIC, huffRecords(testDictionary))
	if err != nil {
		t.Fatalf("NewDecompressor() error = %v", err)
	}
	if !dec.Valid() {
		t.Fatal("Valid() = false after construction")
	}
	return dec
}

func TestHuffdic_LiteralAndRecursiveSymbols(t *testing.T) {
	tests := []struct {
		name    string
		entries []int
		want    string
	}{
		{name: "literal", entries: []int{entryHello}, want: "Hello"},
		{name: "recursive", entries: []int{entryHelloTwice}, want: "HelloHello"},
		{name: "mixed", entries: []int{entryHello, entryHelloTwice, entryWorld}, want: "HelloHelloHello world"},
		{name: "nested twice", entries: []int{entryOuter, entryOuter}, want: "HelloHello worldHelloHello world"},
		{name: "empty", entries: nil, want: ""},
	}
	dec := newTestHuffdic(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dec.Decompress(testDictionary.Encode(tt.entries...))
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("Decompress() = %q, want %q", got, tt.want)
			}
		})
	}
	if !dec.Valid() {
		t.Fatal("Valid() = false after clean decodes")
	}
}

func TestHuffdic_CycleExceedsDepth(t *testing.T) {
	dec := newTestHuffdic(t)

	got, err := dec.Decompress(testDictionary.Encode(entryHello, entryCycle, entryWorld))
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("Decompress() error = %v, want ErrDepthExceeded", err)
	}
	if string(got) != "Hello" {
		t.Fatalf("partial output = %q, want %q", got, "Hello")
	}
	if dec.Valid() {
		t.Fatal("Valid() = true after depth overflow")
	}

	// Invalid decompressors refuse further work.
	if _, err := dec.Decompress(testDictionary.Encode(entryHello)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Decompress() after failure error = %v, want ErrInvalid", err)
	}
}

func TestHuffdic_SymbolOutsideDictionary(t *testing.T) {
	dec := newTestHuffdic(t)
	// Symbol 0xFF has no slot in the five-entry CDIC table.
	_, err := dec.Decompress([]byte{0xFF})
	if !errors.Is(err, ErrCorruptHuffData) {
		t.Fatalf("Decompress() error = %v, want ErrCorruptHuffData", err)
	}
	if dec.Valid() {
		t.Fatal("Valid() = true after corrupt data")
	}
}

// Symbols of the variable-length dictionary, one per code length plus a
// nested entry with a 12-bit code.
const (
	varThe      = 0  // 1-bit code
	varSpace    = 1  // 2-bit code
	varQuick    = 2  // 8-bit code
	varBrown    = 49 // 8-bit code
	varFox      = 50 // 12-bit code
	varTheQuick = 51 // 12-bit code, compressed entry
)

func variableDictionary() mobitest.Dictionary {
	d := mobitest.Dictionary{VariableLength: true}
	d.Entries = make([]mobitest.DictEntry, varTheQuick+1)
	for i := range d.Entries {
		d.Entries[i] = mobitest.DictEntry{Data: []byte("?"), Literal: true}
	}
	d.Entries[varThe] = mobitest.DictEntry{Data: []byte("The"), Literal: true}
	d.Entries[varSpace] = mobitest.DictEntry{Data: []byte(" "), Literal: true}
	d.Entries[varQuick] = mobitest.DictEntry{Data: []byte("quick"), Literal: true}
	d.Entries[varBrown] = mobitest.DictEntry{Data: []byte(" brown"), Literal: true}
	d.Entries[varFox] = mobitest.DictEntry{Data: []byte(" fox"), Literal: true}
	d.Entries[varTheQuick] = mobitest.DictEntry{Data: d.Encode(varThe, varSpace, varQuick)}
	return d
}

func TestHuffdic_VariableLengthCodes(t *testing.T) {
	d := variableDictionary()
	dec, err := NewDecompressor(CompressionHuffCDIC, huffRecords(d))
	if err != nil {
		t.Fatalf("NewDecompressor() error = %v", err)
	}

	tests := []struct {
		name    string
		entries []int
		want    string
	}{
		{name: "one bit", entries: []int{varThe}, want: "The"},
		{name: "all lengths", entries: []int{varThe, varSpace, varQuick, varBrown, varFox}, want: "The quick brown fox"},
		{name: "nested", entries: []int{varTheQuick, varFox, varSpace, varTheQuick}, want: "The quick fox The quick"},
		{name: "twelve bits only", entries: []int{varFox, varFox}, want: " fox fox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dec.Decompress(d.Encode(tt.entries...))
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("Decompress() = %q, want %q", got, tt.want)
			}
		})
	}
	if !dec.Valid() {
		t.Fatal("Valid() = false after clean decodes")
	}
}

func TestHuffdic_PaddingBitsAreNotDecoded(t *testing.T) {
	// Encode(varThe) is one bit followed by seven zero bits. Zero bits
	// start a 12-bit code for symbol 305, which has no CDIC entry; reading
	// it would fail, so the decoder must stop at the end of the data.
	d := variableDictionary()
	dec, err := NewDecompressor(CompressionHuffCDIC, huffRecords(d))
	if err != nil {
		t.Fatalf("NewDecompressor() error = %v", err)
	}
	got, err := dec.Decompress(d.Encode(varThe))
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if string(got) != "The" {
		t.Fatalf("Decompress() = %q, want %q", got, "The")
	}
}

func TestHuffdic_CorruptCodeTables(t *testing.T) {
	tests := []struct {
		name    string
		patch   func(huff []byte)
		wantMsg string
	}{
		{
			name: "zero code length",
			patch: func(huff []byte) {
				binary.BigEndian.PutUint32(huff[mobitest.HUFFDict1Offset:], 0)
			},
			wantMsg: "zero code length",
		},
		{
			name: "code length past 32 bits",
			patch: func(huff []byte) {
				for length := 8; length <= 32; length++ {
					off := mobitest.HUFFDict2Offset + (length-1)*2*4
					binary.BigEndian.PutUint32(huff[off:], 0xFFFFFFFF)
				}
			},
			wantMsg: "exceeds 32 bits",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := huffRecords(variableDictionary())
			tt.patch(records[1])
			dec, err := NewDecompressor(CompressionHuffCDIC, records)
			if err != nil {
				t.Fatalf("NewDecompressor() error = %v", err)
			}

			_, err = dec.Decompress([]byte{0x00, 0x00})
			if !errors.Is(err, ErrCorruptHuffData) {
				t.Fatalf("Decompress() error = %v, want ErrCorruptHuffData", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("Decompress() error = %v, want %q", err, tt.wantMsg)
			}
			if dec.Valid() {
				t.Fatal("Valid() = true after corrupt table")
			}
		})
	}
}

func TestHuffdic_ConcurrentDecompress(t *testing.T) {
	dec := newTestHuffdic(t)
	input := testDictionary.Encode(entryOuter, entryHello)
	want := "HelloHello worldHello"

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := dec.Decompress(input)
			if err != nil {
				errs <- err
				return
			}
			if string(got) != want {
				errs <- errors.New("unexpected output " + string(got))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestHuffdic_BadTables(t *testing.T) {
	good := huffRecords(testDictionary)

	badHuffMagic := append(recordList{}, good...)
	badHuffMagic[1] = append([]byte("HUFX"), good[1][4:]...)

	badCDICMagic := append(recordList{}, good...)
	badCDICMagic[2] = append([]byte("CDIX"), good[2][4:]...)

	shortHuff := append(recordList{}, good...)
	shortHuff[1] = good[1][:100]

	tooFew := recordList{mobitest.Record0{HuffOffset: 1, HuffCount: 1}.Bytes(), good[1]}
	pastEnd := recordList{mobitest.Record0{HuffOffset: 1, HuffCount: 5}.Bytes(), good[1], good[2]}
	shortRecord0 := recordList{make([]byte, 16), good[1], good[2]}

	tests := []struct {
		name string
		src  RecordSource
	}{
		{name: "HUFF magic", src: badHuffMagic},
		{name: "CDIC magic", src: badCDICMagic},
		{name: "short HUFF", src: shortHuff},
		{name: "no CDIC", src: tooFew},
		{name: "records past end", src: pastEnd},
		{name: "short record 0", src: shortRecord0},
		{name: "nil source", src: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewDecompressor(CompressionHuffCDIC, tt.src)
			if !errors.Is(err, ErrBadHuffTable) {
				t.Fatalf("NewDecompressor() error = %v, want ErrBadHuffTable", err)
			}
			if dec == nil {
				t.Fatal("NewDecompressor() = nil, want invalid decompressor")
			}
			if dec.Valid() {
				t.Fatal("Valid() = true, want false")
			}
			if _, err := dec.Decompress([]byte{0}); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Decompress() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestNewDecompressor(t *testing.T) {
	if _, err := NewDecompressor(Compression(99), nil); !errors.Is(err, ErrUnknownCompression) {
		t.Fatalf("NewDecompressor(99) error = %v, want ErrUnknownCompression", err)
	}

	dec, err := NewDecompressor(CompressionNone, nil)
	if err != nil {
		t.Fatalf("NewDecompressor(none) error = %v", err)
	}
	in := []byte("plain")
	out, err := dec.Decompress(in)
	if err != nil || string(out) != "plain" {
		t.Fatalf("Decompress() = %q, %v; want %q, nil", out, err, "plain")
	}
	out[0] = 'X'
	if string(in) != "plain" {
		t.Fatal("noop Decompress() aliases its input")
	}

	dec, err = NewDecompressor(CompressionPalmDoc, nil)
	if err != nil || !dec.Valid() {
		t.Fatalf("NewDecompressor(palmdoc) = %v, %v", dec, err)
	}
}

func TestCompressionString(t *testing.T) {
	tests := []struct {
		c    Compression
		want string
	}{
		{CompressionNone, "none"},
		{CompressionPalmDoc, "palmdoc"},
		{CompressionHuffCDIC, "huffcdic"},
		{Compression(7), "unknown(7)"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Compression(%d).String() = %q, want %q", uint16(tt.c), got, tt.want)
		}
	}
}
