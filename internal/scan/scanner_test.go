package scan

import (
	"io"
	"strings"
	"testing"
)

func collect(t *testing.T, input string) []string {
	t.Helper()

	s := NewScanner(strings.NewReader(input))
	var lines []string
	for {
		line, err := s.Next()
		if err == io.EOF {
			return lines
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		lines = append(lines, string(line))
	}
}

func TestScanner_TerminatedLines(t *testing.T) {
	lines := collect(t, "a\x02\nbb\x02\nccc\x02\n")
	want := []string{"a", "bb", "ccc"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestScanner_BareNewlineIsContent(t *testing.T) {
	lines := collect(t, "x\ny\x02\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), lines)
	}
	if lines[0] != "x\ny" {
		t.Errorf("expected %q, got %q", "x\ny", lines[0])
	}
}

func TestScanner_TerminatorByteWithoutNewlineIsContent(t *testing.T) {
	lines := collect(t, "a\x02b\x02\n")
	if len(lines) != 1 || lines[0] != "a\x02b" {
		t.Errorf("expected [%q], got %q", "a\x02b", lines)
	}
}

func TestScanner_UnterminatedFinalLine(t *testing.T) {
	lines := collect(t, "a\x02\ntail")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if lines[1] != "tail" {
		t.Errorf("expected final partial line %q, got %q", "tail", lines[1])
	}
}

func TestScanner_EOFIsSticky(t *testing.T) {
	s := NewScanner(strings.NewReader("tail"))
	if _, err := s.Next(); err != nil {
		t.Fatalf("expected partial line, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Next(); err != io.EOF {
			t.Fatalf("call %d: expected io.EOF, got %v", i, err)
		}
	}
}

func TestScanner_EmptyInput(t *testing.T) {
	if lines := collect(t, ""); len(lines) != 0 {
		t.Errorf("expected no lines, got %q", lines)
	}
}

func TestScanner_EmptyLine(t *testing.T) {
	lines := collect(t, "\x02\na\x02\n")
	if len(lines) != 2 || lines[0] != "" || lines[1] != "a" {
		t.Errorf("expected [\"\" \"a\"], got %q", lines)
	}
}

func TestScanner_LongLine(t *testing.T) {
	// Longer than the internal read buffer.
	long := strings.Repeat("x", 300*1024)
	lines := collect(t, long+"\x02\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if len(lines[0]) != len(long) {
		t.Errorf("expected %d bytes, got %d", len(long), len(lines[0]))
	}
}

func TestScanner_Counters(t *testing.T) {
	s := NewScanner(strings.NewReader("ab\x02\ncd\x02\n"))
	for {
		if _, err := s.Next(); err == io.EOF {
			break
		}
	}
	if s.LinesRead() != 2 {
		t.Errorf("expected 2 lines read, got %d", s.LinesRead())
	}
	if s.BytesRead() != 8 {
		t.Errorf("expected 8 bytes read, got %d", s.BytesRead())
	}
}
