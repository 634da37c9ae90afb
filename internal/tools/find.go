package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FindTool resolves a glob pattern (supporting `**`) to matching paths,
// newest-modified first (§4.3, §6).
type FindTool struct{}

func (t *FindTool) Name() string { return "find" }

func (t *FindTool) Description() string {
	return "Find files matching a glob pattern (`**` supported), most recently modified first."
}

func (t *FindTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern to match, relative to path. Supports ** for recursive matching.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to search under. Defaults to the working directory.",
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

type findHit struct {
	path    string
	modTime int64
}

func (t *FindTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Limit   *int   `json:"limit"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if payload.Pattern == "" {
		return ToolResult{IsError: true, Output: "pattern is required"}, nil
	}

	root := payload.Path
	if root == "" {
		root = cx.CWD
	}
	root, err := cx.Sandbox.ResolvePath(root, true)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}

	if !doublestar.ValidatePattern(payload.Pattern) {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid pattern: %s", payload.Pattern)}, nil
	}

	var hits []findHit
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, payload.Pattern)
	if err != nil {
		return ToolResult{IsError: true, Output: err.Error()}, nil
	}
	for _, m := range matches {
		full := filepath.Join(root, m)
		resolved, err := cx.Sandbox.ResolvePath(full, true)
		if err != nil {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil {
			continue
		}
		hits = append(hits, findHit{path: resolved, modTime: info.ModTime().UnixNano()})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].modTime != hits[j].modTime {
			return hits[i].modTime > hits[j].modTime
		}
		return hits[i].path < hits[j].path
	})

	if payload.Limit != nil && *payload.Limit > 0 && len(hits) > *payload.Limit {
		hits = hits[:*payload.Limit]
	}

	paths := make([]string, len(hits))
	for i, h := range hits {
		paths[i] = h.path
	}
	return ToolResult{
		Output:   strings.Join(paths, "\n"),
		Metadata: map[string]any{"count": len(paths)},
	}, nil
}
