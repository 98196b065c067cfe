package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/davidrichards/ram/internal/trace"
)

// GlobResolver expands manifest patterns into file lists.
//
// Guarantees:
//   - Rooted patterns are used as given; others are relative to Root.
//   - Matches are strictly sorted, independent of directory iteration order.
//   - Directories are never returned.
//   - A pattern matching nothing is a warning (GlobEmpty), not an error.
type GlobResolver struct {
	// Root is the asset root that relative patterns are joined onto.
	Root string

	// Sink receives GlobEmpty diagnostics. May be nil.
	Sink trace.Sink
}

// NewGlobResolver creates a GlobResolver rooted at root.
func NewGlobResolver(root string, sink trace.Sink) *GlobResolver {
	return &GlobResolver{Root: root, Sink: sink}
}

// Resolve expands a single pattern using shell-glob semantics, including
// "**" for any number of directories and character classes.
//
// Returns an error only for a malformed pattern or a match that cannot be stat'ed.
func (r *GlobResolver) Resolve(pattern string) ([]string, error) {
	fullPattern := pattern
	if !filepath.IsAbs(pattern) {
		fullPattern = filepath.Join(r.Root, pattern)
	}

	if !doublestar.ValidatePattern(filepath.ToSlash(fullPattern)) {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	matches, err := doublestar.FilepathGlob(fullPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", match, err)
		}
		if info.IsDir() {
			continue
		}
		files = append(files, match)
	}

	// Must sort explicitly, do not rely on OS directory ordering.
	sort.Strings(files)

	if len(files) == 0 {
		trace.SafeRecord(r.Sink, trace.Event{Kind: trace.EventGlobEmpty, Pattern: pattern})
	}
	return files, nil
}
