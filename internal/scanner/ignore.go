package scanner

import (
	"path"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	raw      string
	negate   bool // !pattern
	dirOnly  bool // pattern/
	anchored bool // leading or inner slash: matched from the ignore file's directory only
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") {
		p.anchored = true
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

// Match reports whether the file at the slash-separated path rel matches
// the pattern, either itself or through one of its parent directories.
// Negation patterns match like any other; the caller flips the result.
func (p IgnorePattern) Match(rel string) bool {
	return p.matches(rel, false)
}

func (p IgnorePattern) matches(rel string, isDir bool) bool {
	parts := strings.Split(path.Clean(rel), "/")

	// A path is matched through any of its prefixes. For a file the last
	// prefix is the file itself, which directory patterns never match.
	limit := len(parts)
	if p.dirOnly && !isDir {
		limit--
	}
	starts := len(parts)
	if p.anchored {
		starts = 1
	}
	for start := 0; start < starts; start++ {
		for end := start + 1; end <= limit; end++ {
			if matchSegments(p.segments, parts[start:end]) {
				return true
			}
		}
	}
	return false
}

// matchSegments matches glob segments against path segments. "**" spans
// any number of segments, including none.
func matchSegments(segs, parts []string) bool {
	if len(segs) == 0 {
		return len(parts) == 0
	}
	if segs[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(segs[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(segs[0], parts[0])
	return err == nil && ok && matchSegments(segs[1:], parts[1:])
}
