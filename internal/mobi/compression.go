package mobi

import (
	"errors"
	"fmt"
)

// Compression identifies the text record codec, stored as the first
// 16-bit field of record 0.
type Compression uint16

const (
	// CompressionNone indicates no compression.
	CompressionNone Compression = 1
	// CompressionPalmDoc indicates PalmDoc compression.
	CompressionPalmDoc Compression = 2
	// CompressionHuffCDIC indicates HUFF/CDIC dictionary compression ("DH").
	CompressionHuffCDIC Compression = 17480
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionPalmDoc:
		return "palmdoc"
	case CompressionHuffCDIC:
		return "huffcdic"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

var (
	ErrUnknownCompression = errors.New("mobi: unknown compression type")
	ErrInvalid            = errors.New("mobi: decompressor is invalid")
	ErrBadHuffTable       = errors.New("mobi: bad HUFF/CDIC records")
	ErrCorruptHuffData    = errors.New("mobi: corrupt huffman data")
	ErrDepthExceeded      = errors.New("mobi: huffman dictionary nesting too deep")
)

// RecordSource provides random access to container records.
// *pdb.Reader satisfies it.
type RecordSource interface {
	Record(i int) ([]byte, error)
	RecordCount() int
}

// Decompressor turns one compressed text record into plain bytes.
//
// Decompress returns whatever output it produced before detecting
// corruption, together with an error. Once a Decompressor reports an
// error it stays invalid: Valid returns false and later calls return
// ErrInvalid.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
	Valid() bool
}

// NewDecompressor returns the Decompressor for c. The HUFF/CDIC codec
// loads its tables from src; the others ignore it. A HUFF/CDIC
// decompressor whose tables cannot be loaded is returned together with
// the error, already invalid.
func NewDecompressor(c Compression, src RecordSource) (Decompressor, error) {
	switch c {
	case CompressionNone:
		return noopDecompressor{}, nil
	case CompressionPalmDoc:
		return palmDocDecompressor{}, nil
	case CompressionHuffCDIC:
		return newHuffdicDecompressor(src)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint16(c))
	}
}

// noopDecompressor passes uncompressed records through.
type noopDecompressor struct{}

func (noopDecompressor) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noopDecompressor) Valid() bool {
	return true
}
