package gitstore

import (
	"bufio"
	"os"
	"strings"

	"github.com/danwakefield/fnmatch"
)

// pattern is one parsed line of an exclude file.
type pattern struct {
	raw     string
	negated bool
	dirOnly bool
}

// ExcludeFilter matches paths against a gitignore-style pattern list, in
// the order the patterns were added: later patterns override earlier ones,
// and a "!"-prefixed pattern re-includes a path an earlier pattern excluded.
// Unlike the dotfile protection layered onto tree globs (see glob.go), these
// patterns follow plain .gitignore semantics: no implicit dotfile guard.
type ExcludeFilter struct {
	patterns []pattern
}

// NewExcludeFilter builds a filter from literal pattern lines.
func NewExcludeFilter(lines []string) *ExcludeFilter {
	f := &ExcludeFilter{}
	f.addPatterns(lines)
	return f
}

// NewExcludeFilterFromFile builds a filter from literal lines plus the
// contents of excludeFrom, if it exists. A missing file is not an error.
func NewExcludeFilterFromFile(lines []string, excludeFrom string) (*ExcludeFilter, error) {
	f := &ExcludeFilter{}
	f.addPatterns(lines)
	if err := f.loadFromFile(excludeFrom); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *ExcludeFilter) addPatterns(lines []string) {
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		p := pattern{raw: trimmed}
		if strings.HasPrefix(p.raw, "!") {
			p.negated = true
			p.raw = p.raw[1:]
		}
		if strings.HasSuffix(p.raw, "/") {
			p.dirOnly = true
			p.raw = strings.TrimSuffix(p.raw, "/")
		}
		f.patterns = append(f.patterns, p)
	}
}

func (f *ExcludeFilter) loadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	f.addPatterns(lines)
	return nil
}

// IsExcluded reports whether relPath should be excluded, given the last
// matching pattern (later patterns win; a negated match re-includes).
func (f *ExcludeFilter) IsExcluded(relPath string, isDir bool) bool {
	excluded := false
	for _, p := range f.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matchPattern(p.raw, relPath) {
			excluded = !p.negated
		}
	}
	return excluded
}

// Active reports whether any patterns were loaded.
func (f *ExcludeFilter) Active() bool { return len(f.patterns) > 0 }

// matchPattern matches a gitignore-style pattern against a path: a pattern
// containing "/" matches the full relative path, otherwise only the
// basename. fnmatch has no dotfile guard here, matching .gitignore, where
// "*.pyc" does match ".hidden.pyc".
func matchPattern(pat, relPath string) bool {
	if strings.Contains(pat, "/") {
		pat = strings.TrimPrefix(pat, "/")
		return fnmatch.Match(pat, relPath, fnmatch.FNM_PATHNAME)
	}
	base := relPath
	if idx := strings.LastIndexByte(relPath, '/'); idx >= 0 {
		base = relPath[idx+1:]
	}
	return fnmatch.Match(pat, base, 0)
}
