package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver expands file patterns relative to a base directory.
//
// Glob expansion is strictly sorted and deduplicated, so the artifacts of a
// files task do not depend on directory listing order.
type Resolver struct {
	BaseDir string
}

func NewResolver(baseDir string) *Resolver {
	return &Resolver{BaseDir: baseDir}
}

// Expand returns the regular files matched by patterns as slash-separated
// paths relative to BaseDir. Patterns that match nothing contribute nothing.
func (r *Resolver) Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := r.expandPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Resolver) expandPattern(pattern string) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(pattern) {
		full = filepath.Join(r.BaseDir, pattern)
	}

	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	out := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", match, err)
		}
		if info.IsDir() {
			continue
		}
		out = append(out, r.relative(match))
	}
	return out, nil
}

// relative maps an absolute match back to a BaseDir-relative slash path.
// Matches outside BaseDir keep their absolute form.
func (r *Resolver) relative(path string) string {
	rel, err := filepath.Rel(r.BaseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Abs returns the filesystem path for a location produced by Expand.
func (r *Resolver) Abs(location string) string {
	p := filepath.FromSlash(location)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.BaseDir, p)
}
