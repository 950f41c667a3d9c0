package gitstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// zeroSHA is the 40-'0' sentinel used as old_sha for a ref's first entry.
const zeroSHA = "0000000000000000000000000000000000000000"

// readReflog parses <gitdir>/logs/<refname>. A missing file yields an empty,
// non-error result — git treats an absent reflog as empty history. An
// in-memory store (gitdir == "") has no reflog file at all and always
// reads as empty.
func readReflog(gitdir, refname string) ([]ReflogEntry, error) {
	if gitdir == "" {
		return nil, nil
	}
	path := filepath.Join(append([]string{gitdir, "logs"}, strings.Split(refname, "/")...)...)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog %s: %w", path, err)
	}

	var out []ReflogEntry
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		entry, err := parseReflogLine(line)
		if err != nil {
			return nil, fmt.Errorf("parse reflog %s: %w", path, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// parseReflogLine parses "<old> <new> <committer> <timestamp> <tz>\t<message>".
func parseReflogLine(line string) (ReflogEntry, error) {
	tabIdx := strings.IndexByte(line, '\t')
	if tabIdx < 0 {
		return ReflogEntry{}, fmt.Errorf("missing tab separator")
	}
	head, message := line[:tabIdx], line[tabIdx+1:]

	fields := strings.SplitN(head, " ", 3)
	if len(fields) != 3 {
		return ReflogEntry{}, fmt.Errorf("malformed header")
	}
	oldSHA, newSHA, rest := fields[0], fields[1], fields[2]

	// rest = "Name <email> timestamp +0000"; split from the right twice.
	lastSpace := strings.LastIndexByte(rest, ' ')
	if lastSpace < 0 {
		return ReflogEntry{}, fmt.Errorf("malformed committer/timestamp")
	}
	withTS := rest[:lastSpace]
	secondLastSpace := strings.LastIndexByte(withTS, ' ')
	if secondLastSpace < 0 {
		return ReflogEntry{}, fmt.Errorf("malformed committer/timestamp")
	}
	committer := withTS[:secondLastSpace]
	tsStr := withTS[secondLastSpace+1:]

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return ReflogEntry{}, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
	}

	return ReflogEntry{
		OldSHA:    oldSHA,
		NewSHA:    newSHA,
		Committer: committer,
		Timestamp: ts,
		Message:   message,
	}, nil
}

// writeReflogEntry appends one line to <gitdir>/logs/<refname>, creating
// parent directories as needed. This write is non-transactional with the ref
// update that precedes it: a crash between the two leaves a consistent ref
// and a missing reflog line, never the reverse. An in-memory store
// (gitdir == "") has nowhere to write a reflog and this is a no-op.
func writeReflogEntry(gitdir, refname string, e ReflogEntry) error {
	if gitdir == "" {
		return nil
	}
	parts := append([]string{gitdir, "logs"}, strings.Split(refname, "/")...)
	path := filepath.Join(parts...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create reflog dir for %s: %w", refname, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open reflog %s: %w", path, err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %s %d +0000\t%s\n", e.OldSHA, e.NewSHA, e.Committer, e.Timestamp, e.Message)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write reflog %s: %w", path, err)
	}
	return nil
}
