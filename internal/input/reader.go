// Package input opens EPF byte sources, transparently decompressing
// gzip, zstd, bzip2, and framed snappy streams. EPF exports are usually
// shipped compressed; sniffing the magic bytes lets the converter read
// them directly instead of requiring an external decompressor pipe.
package input

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format names a supported input compression format.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatNone   Format = "none"
	FormatGzip   Format = "gzip"
	FormatZstd   Format = "zstd"
	FormatBzip2  Format = "bzip2"
	FormatSnappy Format = "snappy"
)

// Magic byte prefixes for each detectable format.
var (
	magicGzip   = []byte{0x1f, 0x8b}
	magicZstd   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicBzip2  = []byte("BZh")
	magicSnappy = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}
)

// Open wraps r in the appropriate decompressor. With FormatAuto the format
// is detected from the stream's leading bytes; unrecognized content is
// passed through unchanged.
func Open(r io.Reader, format Format) (io.Reader, Format, error) {
	br := bufio.NewReader(r)

	if format == FormatAuto || format == "" {
		format = sniff(br)
	}

	switch format {
	case FormatNone:
		return br, FormatNone, nil
	case FormatGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, format, fmt.Errorf("input: opening gzip stream: %w", err)
		}
		return zr, format, nil
	case FormatZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, format, fmt.Errorf("input: opening zstd stream: %w", err)
		}
		return zr.IOReadCloser(), format, nil
	case FormatBzip2:
		return bzip2.NewReader(br), format, nil
	case FormatSnappy:
		return snappy.NewReader(br), format, nil
	default:
		return nil, format, fmt.Errorf("input: unsupported compression format %q", format)
	}
}

// sniff detects the compression format from the first bytes of the stream
// without consuming them.
func sniff(br *bufio.Reader) Format {
	head, _ := br.Peek(len(magicSnappy))

	switch {
	case bytes.HasPrefix(head, magicGzip):
		return FormatGzip
	case bytes.HasPrefix(head, magicZstd):
		return FormatZstd
	case bytes.HasPrefix(head, magicBzip2):
		return FormatBzip2
	case bytes.HasPrefix(head, magicSnappy):
		return FormatSnappy
	default:
		return FormatNone
	}
}

// ValidFormat reports whether name is a recognized Format value.
func ValidFormat(name string) bool {
	switch Format(name) {
	case FormatAuto, FormatNone, FormatGzip, FormatZstd, FormatBzip2, FormatSnappy:
		return true
	}
	return false
}
