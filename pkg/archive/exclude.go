package archive

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// DefaultExcludes are OS metadata, editor, bytecode and version-control
// artifacts that never belong in a packaged skill.
var DefaultExcludes = []string{
	".DS_Store",
	"Thumbs.db",
	"__pycache__",
	"*.pyc",
	"*.pyo",
	".git",
	".gitignore",
	".vscode",
	".idea",
	"*.swp",
	"*.swo",
	"*~",
}

// Excluder decides which relative paths are left out of an archive.
//
// Patterns without a slash are matched against every path segment, so
// "__pycache__" excludes the directory and everything below it. Patterns with
// a slash are matched against the whole slash-separated relative path and
// support "**".
type Excluder struct {
	segment []string
	path    []string
}

// NewExcluder validates patterns and returns an Excluder using them.
func NewExcluder(patterns ...string) (*Excluder, error) {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid exclude pattern %q", p)
		}
		if strings.Contains(p, "/") {
			e.path = append(e.path, strings.TrimPrefix(p, "/"))
		} else {
			e.segment = append(e.segment, p)
		}
	}
	return e, nil
}

// Excluded reports whether the slash-separated relative path is excluded.
func (e *Excluder) Excluded(rel string) bool {
	for _, p := range e.path {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}

	for _, segment := range strings.Split(rel, "/") {
		for _, p := range e.segment {
			if ok, _ := doublestar.Match(p, segment); ok {
				return true
			}
		}
	}
	return false
}
