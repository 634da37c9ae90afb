package tools

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateOutputRespectsLineCap(t *testing.T) {
	lines := make([]string, 5000)
	for i := range lines {
		lines[i] = "line " + strconv.Itoa(i)
	}
	content := strings.Join(lines, "\n")

	out, truncated, originalLines := truncateOutput(content)
	if !truncated {
		t.Fatalf("expected truncation flag to be set")
	}
	if originalLines != 5000 {
		t.Fatalf("expected original line count 5000, got %d", originalLines)
	}
	if got := strings.Count(out, "\n") + 1; got > maxOutputLines+1 {
		t.Fatalf("expected at most %d lines (plus marker), got %d", maxOutputLines, got)
	}
	if !strings.Contains(out, "lines truncated") {
		t.Fatalf("expected truncation marker in output")
	}
	if !strings.HasPrefix(out, "line 0\n") {
		t.Fatalf("expected first line preserved, got prefix %q", out[:20])
	}
	if !strings.HasSuffix(out, "line 4999") {
		t.Fatalf("expected last line preserved, got suffix %q", out[len(out)-20:])
	}
}

func TestTruncateOutputRespectsByteCap(t *testing.T) {
	content := strings.Repeat("x", maxOutputBytes*2)
	out, truncated, _ := truncateOutput(content)
	if !truncated {
		t.Fatalf("expected truncation flag to be set")
	}
	if len(out) > maxOutputBytes {
		t.Fatalf("expected output within the %d byte cap, got %d bytes", maxOutputBytes, len(out))
	}
}

func TestTruncateOutputByteCapDoesNotSplitMultiByteRune(t *testing.T) {
	// A multi-byte rune ("é", 2 bytes in UTF-8) repeated enough to blow
	// past the byte cap lands its natural midpoint inside a rune unless
	// the cut is rune-aware.
	content := strings.Repeat("é", maxOutputBytes)
	out, truncated, _ := truncateOutput(content)
	if !truncated {
		t.Fatalf("expected truncation flag to be set")
	}
	if len(out) > maxOutputBytes {
		t.Fatalf("expected output within the %d byte cap, got %d bytes", maxOutputBytes, len(out))
	}
	if !utf8.ValidString(out) {
		t.Fatalf("expected valid UTF-8 output, got invalid bytes in %q", out)
	}
}

func TestTruncateOutputNoopUnderLimits(t *testing.T) {
	content := "short\ncontent\n"
	out, truncated, originalLines := truncateOutput(content)
	if truncated {
		t.Fatalf("expected no truncation for small input")
	}
	if out != content {
		t.Fatalf("expected content unchanged, got %q", out)
	}
	if originalLines != 3 {
		t.Fatalf("expected 3 lines (trailing empty), got %d", originalLines)
	}
}

func TestTruncateLineCapsLength(t *testing.T) {
	long := strings.Repeat("a", maxGrepLineChars*2)
	out := truncateLine(long)
	if len(out) >= len(long) {
		t.Fatalf("expected line to be shortened")
	}
	if !strings.HasSuffix(out, "...[line truncated]") {
		t.Fatalf("expected truncation suffix, got %q", out[len(out)-30:])
	}
}

func TestTruncateLineNoopUnderLimit(t *testing.T) {
	short := "a short line"
	if out := truncateLine(short); out != short {
		t.Fatalf("expected short line unchanged, got %q", out)
	}
}
