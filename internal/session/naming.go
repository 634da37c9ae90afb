package session

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ProjectSlug turns an absolute working directory into the directory-safe
// slug §4.4 names: "/" replaced by "-", leading/trailing "-" collapsed.
func ProjectSlug(cwd string) string {
	clean := filepath.Clean(cwd)
	slug := strings.ReplaceAll(clean, string(filepath.Separator), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "root"
	}
	return slug
}

// fileTimestamp renders the creation instant into the session file's name.
// §4.4 calls this "<ISO-timestamp>"; a literal RFC3339 string contains
// colons, which several filesystems (and all of Windows) reject in file
// names, so colons are collapsed to hyphens. Lexical order of the names
// still follows creation time; ListSessionPaths and MostRecentSessionPath
// order files by modification time, not by name.
func fileTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format("2006-01-02T15-04-05.000Z"), ":", "-")
}

// ProjectDir returns <sessionsDir>/<project_slug>.
func ProjectDir(sessionsDir, cwd string) string {
	return filepath.Join(sessionsDir, ProjectSlug(cwd))
}

// NewSessionPath picks the path for a brand new session file rooted at
// cwd's project slug directory.
func NewSessionPath(sessionsDir, cwd string, created time.Time) string {
	return filepath.Join(ProjectDir(sessionsDir, cwd), fileTimestamp(created)+".jsonl")
}

// MostRecentSessionPath returns the most-recently-modified *.jsonl file in
// cwd's project slug directory, for `--continue` (§4.4).
func MostRecentSessionPath(sessionsDir, cwd string) (string, error) {
	dir := ProjectDir(sessionsDir, cwd)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(dir, e.Name())
			bestMod = info.ModTime()
		}
	}
	if best == "" {
		return "", os.ErrNotExist
	}
	return best, nil
}

// ListSessionPaths returns every session file under a project's slug
// directory, most-recently-modified first.
func ListSessionPaths(sessionsDir, cwd string) ([]string, error) {
	dir := ProjectDir(sessionsDir, cwd)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type withTime struct {
		path string
		mod  time.Time
	}
	var list []withTime
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, withTime{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].mod.After(list[j].mod) })
	out := make([]string, len(list))
	for i, w := range list {
		out[i] = w.path
	}
	return out, nil
}
