package gitstore

import (
	"fmt"
	"strings"
)

// NormalizePath strips leading/trailing slashes, collapses repeated slashes
// and "." segments, and rejects ".." segments. An empty or all-slashes input
// normalizes to "" (the tree root).
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			continue // leading/trailing/doubled slash
		case ".":
			continue // current-directory marker
		case "..":
			return "", fmt.Errorf("%w: segment %q is not allowed", ErrInvalidPath, seg)
		default:
			segments = append(segments, seg)
		}
	}

	if len(segments) == 0 {
		if isAllSlashes(p) {
			return "", nil
		}
		return "", fmt.Errorf("%w: path must not be empty", ErrInvalidPath)
	}

	return strings.Join(segments, "/"), nil
}

func isAllSlashes(p string) bool {
	for i := 0; i < len(p); i++ {
		if p[i] != '/' {
			return false
		}
	}
	return true
}

// ValidateRefName rejects ref names that violate git's check-ref-format rules
// as restricted further for this store (colons conflict with a ref:path
// syntax some callers layer on top).
func ValidateRefName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: ref name must not be empty", ErrInvalidRefName)
	}

	for _, ch := range name {
		switch ch {
		case ':', ' ', '\t', '\n', '\r', '\\', '^', '~', '?', '*', '[':
			return fmt.Errorf("%w: contains invalid character %q", ErrInvalidRefName, ch)
		}
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: must not contain '..'", ErrInvalidRefName)
	}
	if strings.Contains(name, "@{") {
		return fmt.Errorf("%w: must not contain '@{'", ErrInvalidRefName)
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: must not end with '.'", ErrInvalidRefName)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: must not end with '.lock'", ErrInvalidRefName)
	}

	return nil
}

// IsRootPath reports whether path refers to the root of the tree (empty or
// made up entirely of slashes).
func IsRootPath(path string) bool {
	if path == "" {
		return true
	}
	return isAllSlashes(path)
}

// NormalizeGlobPattern strips leading/trailing/doubled slashes from a glob
// pattern without otherwise touching its segments (which may legitimately
// contain "*", "?", "[...]", or "**").
func NormalizeGlobPattern(p string) (string, error) {
	if p == "" || isAllSlashes(p) {
		return "", nil
	}
	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return strings.Join(segments, "/"), nil
}

// isHexOID reports whether s is exactly 40 lowercase hex characters, the
// on-the-wire form of a git object hash.
func isHexOID(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// FormatCommitMessage returns message if non-nil, otherwise operation.
func FormatCommitMessage(operation string, message *string) string {
	if message != nil {
		return *message
	}
	return operation
}
