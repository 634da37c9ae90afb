package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// GrepTool searches files under a path for a regular expression, optionally
// with surrounding context lines (§4.3, §6).
type GrepTool struct{}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "Search files under a path for a regular expression, with optional context lines."
}

func (t *GrepTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regular expression to search for.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "File or directory to search. Defaults to the working directory.",
			},
			"context": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Number of lines of context to include before each match.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Maximum number of matches to return.",
			},
		},
		"required": []string{"pattern"},
	}
}

type grepMatch struct {
	path    string
	line    int
	text    string
	context []string
}

func (t *GrepTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Context *int   `json:"context"`
		Limit   *int   `json:"limit"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if payload.Pattern == "" {
		return ToolResult{IsError: true, Output: "pattern is required"}, nil
	}
	re, err := regexp.Compile(payload.Pattern)
	if err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid pattern: %v", err)}, nil
	}

	root := payload.Path
	if root == "" {
		root = cx.CWD
	}
	root, err = cx.Sandbox.ResolvePath(root, true)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	contextLines := 0
	if payload.Context != nil && *payload.Context > 0 {
		contextLines = *payload.Context
	}
	limit := 0
	if payload.Limit != nil && *payload.Limit > 0 {
		limit = *payload.Limit
	}

	var matches []grepMatch
	walkErr := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if limit > 0 && len(matches) >= limit {
			return filepath.SkipAll
		}
		info, err := entry.Info()
		if err != nil || info.Size() > maxReadBytes {
			return nil
		}
		found, err := grepFile(path, re, contextLines, limit-len(matches))
		if err != nil {
			return nil
		}
		matches = append(matches, found...)
		return nil
	})
	if walkErr != nil {
		return ToolResult{IsError: true, Output: walkErr.Error()}, nil
	}

	var b strings.Builder
	for _, m := range matches {
		for _, c := range m.context {
			fmt.Fprintln(&b, c)
		}
		fmt.Fprintf(&b, "%s:%d:%s\n", m.path, m.line, m.text)
	}
	out, truncated, originalLines := truncateOutput(b.String())
	return ToolResult{
		Output:   out,
		Metadata: map[string]any{"matches": len(matches), "truncated": truncated, "original_lines": originalLines},
	}, nil
}

// grepFile scans one file for re, returning up to limit matches (0 means
// unlimited) each annotated with up to contextLines lines before it.
func grepFile(path string, re *regexp.Regexp, contextLines, limit int) ([]grepMatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var recent []string
	var out []grepMatch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := truncateLine(scanner.Text())
		if re.MatchString(line) {
			var ctx []string
			if contextLines > 0 {
				start := 0
				if len(recent) > contextLines {
					start = len(recent) - contextLines
				}
				ctx = append(ctx, recent[start:]...)
			}
			out = append(out, grepMatch{path: path, line: lineNo, text: line, context: ctx})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		if contextLines > 0 {
			recent = append(recent, line)
			if len(recent) > contextLines {
				recent = recent[len(recent)-contextLines:]
			}
		}
	}
	return out, scanner.Err()
}
