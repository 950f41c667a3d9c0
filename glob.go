package gitstore

import (
	"sort"
	"strings"

	"github.com/danwakefield/fnmatch"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// globMatchSegment matches one path segment against one glob segment, with
// dotfile protection: a name beginning with "." only matches a pattern that
// itself begins with ".". danwakefield/fnmatch has no such rule on its own,
// so it is layered on top here.
func globMatchSegment(pattern, name string) bool {
	if strings.HasPrefix(name, ".") && !strings.HasPrefix(pattern, ".") {
		return false
	}
	return fnmatch.Match(pattern, name, 0)
}

// globTree resolves pattern (split on "/") against the tree rooted at
// rootOID, returning matching leaf paths. "**" matches zero or more
// directory levels. Results are always deduplicated; sorted controls Glob
// (true, sorted) vs IGlob (false, unordered).
func globTree(s storer.EncodedObjectStorer, rootOID plumbing.Hash, pattern string, sorted bool) ([]string, error) {
	var segments []string
	if pattern != "" {
		segments = strings.Split(pattern, "/")
	}

	results := map[string]struct{}{}
	if err := globWalk(s, rootOID, "", segments, results); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(results))
	for p := range results {
		out = append(out, p)
	}
	if sorted {
		sort.Strings(out)
	}
	return out, nil
}

// globWalk recursively matches segments against the subtree at (prefix, oid).
func globWalk(s storer.EncodedObjectStorer, oid plumbing.Hash, prefix string, segments []string, results map[string]struct{}) error {
	if len(segments) == 0 {
		return nil
	}

	seg := segments[0]
	rest := segments[1:]
	isLast := len(rest) == 0

	entries, err := listTreeEntries(s, oid)
	if err != nil {
		return err
	}

	if seg == "**" {
		// Not consuming "**": try the rest of the pattern at this level.
		if err := globWalk(s, oid, prefix, rest, results); err != nil {
			return err
		}
		// Consuming one level of "**": recurse into every subtree, pattern unchanged.
		for _, e := range entries {
			if ft, ok := e.FileType(); ok && ft.IsDir() {
				if err := globWalk(s, e.OID, joinRel(prefix, e.Name), segments, results); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, e := range entries {
		if !globMatchSegment(seg, e.Name) {
			continue
		}
		rel := joinRel(prefix, e.Name)
		ft, _ := e.FileType()
		if isLast {
			if !ft.IsDir() {
				results[rel] = struct{}{}
			}
			continue
		}
		if ft.IsDir() {
			if err := globWalk(s, e.OID, rel, rest, results); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinRel(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
