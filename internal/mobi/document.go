package mobi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sync"
	"sync/atomic"

	"github.com/yuanying/mobireader/internal/markup"
	"github.com/yuanying/mobireader/internal/pdb"
)

var (
	ErrNotMobipocket = errors.New("mobi: not a Mobipocket or PalmDOC file")
	ErrEncrypted     = errors.New("mobi: text is DRM protected")
	ErrTextIndex     = errors.New("mobi: text record index out of range")
)

// Options configures how a Document is opened.
type Options struct {
	// Logger receives debug and warning messages. Nil discards them.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Document is a Mobipocket or PalmDOC book opened for reading.
//
// A Document is always returned, even for corrupt input, so that whatever
// could be read (name, title, metadata) stays inspectable. Valid and Err
// report whether anything went wrong. All methods are safe for concurrent use.
type Document struct {
	pdb    *pdb.Reader
	header *Header
	dec    Decompressor
	logger *slog.Logger

	ntext      int
	metadata   map[MetaKey]string
	coverIndex int

	invalid  atomic.Bool
	mu       sync.Mutex
	firstErr error

	textOnce sync.Once
	raw      []byte
	rawErr   error

	imageOnce  sync.Once
	firstImage int
	imageCount int
}

// Open reads the container and record 0 from r, which holds size bytes.
// r must stay readable for as long as the Document is used.
func Open(r io.ReaderAt, size int64, opts Options) *Document {
	d := &Document{
		pdb:        pdb.NewReader(r, size),
		logger:     opts.logger(),
		metadata:   make(map[MetaKey]string),
		coverIndex: -1,
		firstImage: -1,
	}
	d.init()
	return d
}

func (d *Document) init() {
	if !d.pdb.Valid() {
		d.fail(d.pdb.Err())
		return
	}
	if !d.pdb.IsMobipocket() {
		d.fail(fmt.Errorf("%w: type %q", ErrNotMobipocket, d.pdb.FileType()))
		return
	}

	rec0, err := d.pdb.Record(0)
	if err != nil {
		d.fail(fmt.Errorf("read record 0: %w", err))
		return
	}
	h, err := ParseHeader(rec0)
	if err != nil {
		d.fail(err)
		return
	}
	d.header = h
	d.ntext = min(h.TextRecordCount, d.pdb.RecordCount()-1)

	d.logger.Debug("opened book",
		"name", d.pdb.Name(),
		"type", d.pdb.FileType(),
		"compression", h.Compression,
		"textRecords", h.TextRecordCount,
		"encoding", h.Encoding,
		"extraFlags", h.ExtraFlags,
	)

	dec, err := NewDecompressor(h.Compression, d.pdb)
	if err != nil {
		d.fail(err)
	}
	d.dec = dec

	d.readMetadata(rec0)
}

// fail marks the Document invalid and remembers the first reason.
func (d *Document) fail(err error) {
	d.invalid.Store(true)
	if err == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.firstErr == nil {
		d.firstErr = err
	}
}

// readMetadata fills metadata from the header title, EXTH and, when those
// yield too little, the Dublin Core tags at the start of the text.
func (d *Document) readMetadata(rec0 []byte) {
	h := d.header
	utf8 := h.IsUTF8()

	if name := h.FullName(); len(name) > 0 {
		d.metadata[Title] = decodeString(name, utf8)
	}

	if exth := h.EXTH(); exth != nil {
		for _, rec := range exth.Records {
			if key, ok := exthMetaKeys[rec.Type]; ok {
				d.metadata[key] = decodeString(rec.Data, utf8)
			}
		}
		if cover, ok := exth.Uint32(EXTHCoverOffset); ok && cover != 0xFFFFFFFF {
			d.coverIndex = int(cover)
		}
	}

	if len(d.metadata) >= htmlHeadThreshold || h.Encrypted() || d.dec == nil || !d.dec.Valid() {
		return
	}
	if d.ntext < 1 {
		return
	}
	data, err := d.textRecord(1)
	if err != nil {
		d.logger.Warn("read first text record for metadata", "error", err)
		d.fail(fmt.Errorf("text record 1: %w", err))
		return
	}
	scanHTMLHead(d.metadata, decodeString(data, utf8))
}

// textRecord returns text record i (1-based PDB index) decompressed.
func (d *Document) textRecord(i int) ([]byte, error) {
	rec, err := d.pdb.Record(i)
	if err != nil {
		return nil, err
	}
	rec = stripTrailingEntries(rec, d.header.ExtraFlags)
	return d.dec.Decompress(rec)
}

// TextRecord returns text record n (1-based) with trailing entries removed
// and decompressed. A decoding failure invalidates the Document like Text;
// a bad index does not.
func (d *Document) TextRecord(n int) ([]byte, error) {
	if err := d.textReady(); err != nil {
		return nil, err
	}
	if n < 1 || n > d.ntext {
		return nil, fmt.Errorf("%w: %d of %d", ErrTextIndex, n, d.ntext)
	}
	data, err := d.textRecord(n)
	if err != nil {
		err = fmt.Errorf("text record %d: %w", n, err)
		d.fail(err)
	}
	return data, err
}

// textReady reports why text cannot be decoded, preferring the error that
// invalidated the decompressor over ErrInvalid.
func (d *Document) textReady() error {
	if d.header == nil || d.dec == nil || !d.dec.Valid() {
		if err := d.Err(); err != nil {
			return err
		}
		return ErrInvalid
	}
	if d.HasDRM() {
		return ErrEncrypted
	}
	return nil
}

// Valid reports whether the container, the codec and every text record
// decoded so far were readable.
func (d *Document) Valid() bool {
	return !d.invalid.Load() && (d.dec == nil || d.dec.Valid())
}

// Err returns the first error that made the Document invalid, or nil.
func (d *Document) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firstErr
}

// Name returns the PDB database name.
func (d *Document) Name() string {
	return d.pdb.Name()
}

// FileType returns the 8-byte PDB type and creator tag, e.g. "BOOKMOBI".
func (d *Document) FileType() string {
	return d.pdb.FileType()
}

// HasDRM reports whether the text is encrypted.
func (d *Document) HasDRM() bool {
	return d.header != nil && d.header.Encrypted()
}

// Compression returns the text codec, or 0 when record 0 was unreadable.
func (d *Document) Compression() Compression {
	if d.header == nil {
		return 0
	}
	return d.header.Compression
}

// TextRecordCount returns the number of text records present in the file.
func (d *Document) TextRecordCount() int {
	return d.ntext
}

// Header returns the parsed record 0, or nil when it was unreadable.
func (d *Document) Header() *Header {
	return d.header
}

// Metadata returns a copy of the known metadata fields.
func (d *Document) Metadata() map[MetaKey]string {
	return maps.Clone(d.metadata)
}

// rawText assembles the decompressed text records once. A decoding error
// ends assembly; the bytes decoded up to that point are kept.
func (d *Document) rawText() ([]byte, error) {
	d.textOnce.Do(func() {
		d.raw, d.rawErr = d.assemble(-1)
		if d.rawErr != nil {
			d.fail(d.rawErr)
		}
	})
	return d.raw, d.rawErr
}

// assemble concatenates text records until limit bytes are exceeded.
// A negative limit reads every record.
func (d *Document) assemble(limit int) ([]byte, error) {
	if err := d.textReady(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i := 1; i <= d.ntext; i++ {
		data, err := d.textRecord(i)
		buf.Write(data)
		if err != nil {
			d.logger.Warn("text record decode failed", "record", i, "error", err)
			return buf.Bytes(), fmt.Errorf("text record %d: %w", i, err)
		}
		if limit >= 0 && buf.Len() > limit {
			break
		}
	}
	return buf.Bytes(), nil
}

// Text returns the whole book text. When a record fails to decode the text
// up to that record is returned together with the error and the Document
// becomes invalid. The result is computed once.
func (d *Document) Text() (string, error) {
	raw, err := d.rawText()
	return decodeString(raw, d.isUTF8()), err
}

// TextLimit returns at least the first n bytes of text when available,
// stopping at the first record boundary past n. It decodes fewer records
// than Text for callers that only need a prefix.
func (d *Document) TextLimit(n int) (string, error) {
	if n < 0 {
		return d.Text()
	}
	raw, err := d.assemble(n)
	if err != nil && !errors.Is(err, ErrEncrypted) {
		d.fail(err)
	}
	return decodeString(raw, d.isUTF8()), err
}

// HTML returns the book text with Mobipocket markup rewritten by markup.Fix.
func (d *Document) HTML() (string, error) {
	raw, err := d.rawText()
	fixed := markup.Fix(string(raw))
	return decodeString([]byte(fixed), d.isUTF8()), err
}

func (d *Document) isUTF8() bool {
	return d.header != nil && d.header.IsUTF8()
}

// File is a Document backed by an open file.
type File struct {
	*Document
	f *os.File
}

// OpenFile opens the named book. Only failures to open the file are
// returned as errors; format problems are reported by Valid and Err.
func OpenFile(name string, opts Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Document: Open(f, fi.Size(), opts), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
