package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxOutputLines   = 2000
	maxOutputBytes   = 50000
	maxGrepLineChars = 500
)

// truncateOutput applies the shared output-truncation policy (§4.3): cap at
// maxOutputLines lines and maxOutputBytes bytes, splicing out the middle and
// leaving a marker naming how many lines were removed. It reports whether
// truncation occurred and the content's original line count, for
// ToolResult.Metadata.
func truncateOutput(content string) (out string, truncated bool, originalLines int) {
	lines := strings.Split(content, "\n")
	originalLines = len(lines)
	out = content

	if len(lines) > maxOutputLines {
		half := maxOutputLines / 2
		head := lines[:half]
		tail := lines[len(lines)-half:]
		removed := len(lines) - len(head) - len(tail)
		marker := fmt.Sprintf("[... %d lines truncated ...]", removed)
		out = strings.Join(head, "\n") + "\n" + marker + "\n" + strings.Join(tail, "\n")
		truncated = true
	}

	if len(out) > maxOutputBytes {
		const marker = "\n[... truncated ...]\n"
		budget := maxOutputBytes - len(marker)
		if budget < 0 {
			budget = 0
		}
		half := budget / 2
		headEnd := runeFloor(out, half)
		tailStart := runeCeil(out, len(out)-half)
		out = out[:headEnd] + marker + out[tailStart:]
		truncated = true
	}

	return out, truncated, originalLines
}

// runeFloor returns the largest index <= i that does not split a UTF-8
// rune, so a byte-budget cut never produces invalid UTF-8.
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil returns the smallest index >= i that does not split a UTF-8
// rune.
func runeCeil(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// truncateLine caps a single line's length. Grep needs this independently
// of truncateOutput because one minified or generated line can blow past
// the whole-output budget on its own.
func truncateLine(line string) string {
	if len(line) <= maxGrepLineChars {
		return line
	}
	return line[:maxGrepLineChars] + "...[line truncated]"
}
