package input

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const payload = "demo20240101/widgets#a\x01b\x02\n1\x012\x02\n"

func readAll(t *testing.T, r io.Reader, format Format) (string, Format) {
	t.Helper()
	src, detected, err := Open(r, format)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return string(data), detected
}

func TestOpen_PlainPassthrough(t *testing.T) {
	got, detected := readAll(t, strings.NewReader(payload), FormatAuto)
	if detected != FormatNone {
		t.Errorf("expected format none, got %s", detected)
	}
	if got != payload {
		t.Errorf("payload altered: %q", got)
	}
}

func TestOpen_GzipAutoDetected(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}

	got, detected := readAll(t, &buf, FormatAuto)
	if detected != FormatGzip {
		t.Errorf("expected format gzip, got %s", detected)
	}
	if got != payload {
		t.Errorf("round-trip mismatch: %q", got)
	}
}

func TestOpen_ZstdAutoDetected(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer failed: %v", err)
	}
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("zstd write failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zstd close failed: %v", err)
	}

	got, detected := readAll(t, &buf, FormatAuto)
	if detected != FormatZstd {
		t.Errorf("expected format zstd, got %s", detected)
	}
	if got != payload {
		t.Errorf("round-trip mismatch: %q", got)
	}
}

func TestOpen_SnappyAutoDetected(t *testing.T) {
	var buf bytes.Buffer
	sw := snappy.NewBufferedWriter(&buf)
	if _, err := sw.Write([]byte(payload)); err != nil {
		t.Fatalf("snappy write failed: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("snappy close failed: %v", err)
	}

	got, detected := readAll(t, &buf, FormatAuto)
	if detected != FormatSnappy {
		t.Errorf("expected format snappy, got %s", detected)
	}
	if got != payload {
		t.Errorf("round-trip mismatch: %q", got)
	}
}

func TestOpen_ExplicitFormatSkipsSniffing(t *testing.T) {
	// Gzip content opened as none must come back verbatim.
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(payload))
	zw.Close()
	compressed := buf.Bytes()

	got, detected := readAll(t, bytes.NewReader(compressed), FormatNone)
	if detected != FormatNone {
		t.Errorf("expected format none, got %s", detected)
	}
	if got != string(compressed) {
		t.Error("explicit none must not decompress")
	}
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	if _, _, err := Open(strings.NewReader(payload), Format("lz4")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestOpen_ShortStream(t *testing.T) {
	// Shorter than the longest magic prefix.
	got, detected := readAll(t, strings.NewReader("ab"), FormatAuto)
	if detected != FormatNone || got != "ab" {
		t.Errorf("expected passthrough, got format %s content %q", detected, got)
	}
}

func TestValidFormat(t *testing.T) {
	for _, name := range []string{"auto", "none", "gzip", "zstd", "bzip2", "snappy"} {
		if !ValidFormat(name) {
			t.Errorf("expected %s to be valid", name)
		}
	}
	for _, name := range []string{"lz4", "brotli", "GZIP"} {
		if ValidFormat(name) {
			t.Errorf("expected %s to be invalid", name)
		}
	}
}
