package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// maxReadBytes caps file reads so tool output stays bounded and predictable.
const maxReadBytes = 1024 * 1024

// imageMediaTypes maps a file extension to the media type a read reports
// in its metadata for that file.
var imageMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ReadTool reads a file from disk, returning a line-numbered text window or,
// for recognized image extensions, a one-line text summary with the raw
// bytes and media type in Metadata ("image", "media_type", "bytes"). No
// image content block is produced, and images are not resized.
type ReadTool struct{}

func (t *ReadTool) Name() string { return "read" }

func (t *ReadTool) Description() string {
	return "Read a file's contents, optionally windowed by line offset/limit. For image files, returns a short summary with the raw bytes in metadata."
}

func (t *ReadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file to read.",
			},
			"offset": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "1-indexed line number to start reading from.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Maximum number of lines to return.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Path   string `json:"path"`
		Offset *int   `json:"offset"`
		Limit  *int   `json:"limit"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if payload.Path == "" {
		return ToolResult{IsError: true, Output: "path is required"}, nil
	}

	path, err := cx.Sandbox.ResolvePath(payload.Path, true)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}
	if info.IsDir() {
		return ToolResult{IsError: true, Output: fmt.Sprintf("%s is a directory", path)}, nil
	}
	if info.Size() > maxReadBytes {
		return ToolResult{IsError: true, Output: fmt.Sprintf("file too large: %d bytes", info.Size())}, nil
	}

	if mediaType, ok := imageMediaTypes[strings.ToLower(extOf(path))]; ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return ToolResult{IsError: true, Output: err.Error()}, nil
		}
		return ToolResult{
			Output:   fmt.Sprintf("read %d bytes as %s", len(data), mediaType),
			Metadata: map[string]any{"image": true, "media_type": mediaType, "bytes": data},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}
	for _, b := range data {
		if b == 0 {
			return ToolResult{IsError: true, Output: "binary file detected"}, nil
		}
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if payload.Offset != nil && *payload.Offset > 1 {
		start = *payload.Offset - 1
	}
	if start > len(lines) {
		return ToolResult{IsError: true, Output: "offset exceeds file length"}, nil
	}
	end := len(lines)
	if payload.Limit != nil && *payload.Limit >= 0 && start+*payload.Limit < end {
		end = start + *payload.Limit
	}

	var b strings.Builder
	for i, line := range lines[start:end] {
		fmt.Fprintf(&b, "%6d\t%s\n", start+i+1, line)
	}
	out, truncated, originalLines := truncateOutput(b.String())
	return ToolResult{
		Output:   out,
		Metadata: map[string]any{"truncated": truncated, "original_lines": originalLines},
	}, nil
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}
