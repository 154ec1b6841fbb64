package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Compressor defines the compression contract for sealed blobs.
// Decompress must accept exactly what Compress produced.
type Compressor interface {
	// Compress shrinks data. Returns ErrIncompressible when compressing
	// would not shrink the input; callers then store the data raw.
	Compress(data []byte) ([]byte, error)

	// Decompress restores data produced by Compress.
	Decompress(data []byte) ([]byte, error)

	// Name returns the compressor identifier (e.g., "lz4", "none").
	Name() string
}

// Compressor name constants.
const (
	NameLZ4  = "lz4"
	NameNone = "none"
)

// Blob markers. The first byte of every sealed blob records whether the
// body is raw or compressed, so blobs written under different settings
// can coexist in the same store.
const (
	markerRaw        byte = 0x00
	markerCompressed byte = 0x01
)

// ErrIncompressible is returned by Compress when compressing would not
// shrink the input.
var ErrIncompressible = errors.New("codec: incompressible data")

// LZ4 compresses with the LZ4 block format. Compressed bodies are
// prefixed with the uncompressed length, which the block format needs
// for decompression.
type LZ4 struct{}

func (c *LZ4) Compress(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if n == 0 || n+4 >= len(data) {
		return nil, ErrIncompressible
	}
	out := make([]byte, 0, 4+n)
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, buf[:n]...)
	return out, nil
}

func (c *LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("codec: lz4 body too short")
	}
	size := binary.BigEndian.Uint32(data[:4])
	out := make([]byte, size)
	if _, err := lz4.UncompressBlock(data[4:], out); err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return out, nil
}

func (c *LZ4) Name() string { return NameLZ4 }

// None is the identity compressor. Seal treats it like a nil compressor
// and writes raw frames.
type None struct{}

func (c *None) Compress(data []byte) ([]byte, error)   { return data, nil }
func (c *None) Decompress(data []byte) ([]byte, error) { return data, nil }
func (c *None) Name() string                           { return NameNone }

// Seal frames data for storage: a one-byte marker followed by either the
// raw bytes or the compressor's output, whichever is smaller.
func Seal(c Compressor, data []byte) ([]byte, error) {
	if c != nil && c.Name() != NameNone {
		body, err := c.Compress(data)
		switch {
		case errors.Is(err, ErrIncompressible):
			// store raw below
		case err != nil:
			return nil, err
		default:
			out := make([]byte, 0, 1+len(body))
			out = append(out, markerCompressed)
			out = append(out, body...)
			return out, nil
		}
	}
	out := make([]byte, 0, 1+len(data))
	out = append(out, markerRaw)
	out = append(out, data...)
	return out, nil
}

// Open unframes a sealed blob. Raw frames never touch the compressor;
// compressed frames fail when c is nil or None.
func Open(c Compressor, blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, errors.New("codec: empty blob")
	}
	body := blob[1:]
	switch blob[0] {
	case markerRaw:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case markerCompressed:
		if c == nil || c.Name() == NameNone {
			return nil, errors.New("codec: compressed blob but no compressor configured")
		}
		return c.Decompress(body)
	default:
		return nil, fmt.Errorf("codec: unknown blob marker 0x%02x", blob[0])
	}
}
