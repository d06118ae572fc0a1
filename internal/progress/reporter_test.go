package progress

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestReporter_RateLimited(t *testing.T) {
	r := NewReporter("widgets", time.Hour)
	var lines []string
	r.SetLogf(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	for i := int64(1); i <= 100; i++ {
		r.Observe(i, 0, i*10)
	}
	if len(lines) != 0 {
		t.Errorf("expected no progress lines inside the interval, got %d", len(lines))
	}
}

func TestReporter_EmitsAfterInterval(t *testing.T) {
	r := NewReporter("widgets", time.Nanosecond)
	var lines []string
	r.SetLogf(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	time.Sleep(time.Millisecond)
	r.Observe(10, 1, 500)

	if len(lines) != 1 {
		t.Fatalf("expected 1 progress line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "widgets") || !strings.Contains(lines[0], "10 rows") {
		t.Errorf("unexpected progress line: %s", lines[0])
	}
}

func TestReporter_Summary(t *testing.T) {
	r := NewReporter("widgets", time.Hour)
	var lines []string
	r.SetLogf(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	r.Summary(1000, 5, 2, 123456)

	if len(lines) != 1 {
		t.Fatalf("expected 1 summary line, got %d", len(lines))
	}
	for _, want := range []string{"widgets", "1000 rows", "5 skipped", "2 duplicate", "123456 bytes"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("summary missing %q: %s", want, lines[0])
		}
	}
}

func TestNewReporter_DefaultInterval(t *testing.T) {
	r := NewReporter("x", 0)
	if r.interval != DefaultInterval {
		t.Errorf("expected default interval %s, got %s", DefaultInterval, r.interval)
	}
}
