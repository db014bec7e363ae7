package commands

import (
	"strings"
	"testing"
)

func TestHexDump(t *testing.T) {
	data := []byte("hello")
	out := hexDump(data)

	if !strings.Contains(out, "68 65 6c 6c 6f") {
		t.Errorf("expected hex bytes in output, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected ASCII column in output, got %q", out)
	}
	if !strings.HasPrefix(out, "00000000") {
		t.Errorf("expected output to start with the offset, got %q", out)
	}
}

func TestHexDump_NonPrintableBytesBecomeDots(t *testing.T) {
	out := hexDump([]byte{0x00, 0x01, 0x7f})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "...") {
		t.Errorf("expected non-printable bytes rendered as dots, got %q", lines[0])
	}
}

func TestHexDump_Empty(t *testing.T) {
	if out := hexDump(nil); out != "" {
		t.Errorf("expected empty output for empty input, got %q", out)
	}
}
