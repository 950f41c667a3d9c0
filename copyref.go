package gitstore

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// CopyRefOptions controls CopyFromRef.
type CopyRefOptions struct {
	Delete  bool    // remove dest entries absent from the source subtree
	DryRun  bool    // compute the report but skip the writes and the commit
	Message *string // commit message override
}

// CopyFromRef merges the subtree (file or directory) at srcPath in src into
// this snapshot at destPath, in a single commit. Because both snapshots
// share the same backing object store, this is a pure OID-level operation:
// no blob or tree is re-read or re-hashed, only referenced from its new
// location.
//
// The merge is additive by default: dest entries with no counterpart under
// srcPath are left untouched. Pass opts.Delete to prune them instead. src
// must belong to the same GitStore as f, or ErrCrossRepo is returned; f must
// be writable, or ErrPermission is returned. An absent srcPath is a no-op,
// not an error.
func (f *Fs) CopyFromRef(src *Fs, srcPath, destPath string, opts CopyRefOptions) (*Fs, *ChangeReport, error) {
	if !sameStore(f.store, src.store) {
		return nil, nil, fmt.Errorf("%w: src belongs to a different repository", ErrCrossRepo)
	}
	if !f.Writable() {
		return nil, nil, fmt.Errorf("%w: snapshot is not bound to a branch", ErrPermission)
	}

	srcNorm, err := NormalizePath(srcPath)
	if err != nil {
		return nil, nil, err
	}
	destNorm, err := NormalizePath(destPath)
	if err != nil {
		return nil, nil, err
	}

	srcEntries, err := entriesUnder(f.store.repo.Storer, src.treeOID, srcNorm)
	if err != nil {
		return nil, nil, err
	}
	if len(srcEntries) == 0 {
		return f, &ChangeReport{}, nil
	}
	destEntries, err := entriesUnder(f.store.repo.Storer, f.treeOID, destNorm)
	if err != nil {
		return nil, nil, err
	}

	var edits []edit
	report := &ChangeReport{}

	relTarget := func(rel string) string {
		if rel == "" {
			return destNorm
		}
		return joinRel(destNorm, rel)
	}

	for rel, se := range srcEntries {
		target := relTarget(rel)
		if de, ok := destEntries[rel]; ok && de.OID == se.OID && de.Mode == se.Mode {
			continue
		} else if ok {
			edits = append(edits, edit{Path: target, Write: &write{OID: se.OID, Mode: se.Mode}})
			report.Update = append(report.Update, target)
		} else {
			edits = append(edits, edit{Path: target, Write: &write{OID: se.OID, Mode: se.Mode}})
			report.Add = append(report.Add, target)
		}
	}
	if opts.Delete {
		for rel := range destEntries {
			if _, ok := srcEntries[rel]; !ok {
				target := relTarget(rel)
				edits = append(edits, edit{Path: target, Write: nil})
				report.Delete = append(report.Delete, target)
			}
		}
	}
	sort.Strings(report.Add)
	sort.Strings(report.Update)
	sort.Strings(report.Delete)

	if opts.DryRun || len(edits) == 0 {
		return f, report, nil
	}

	message := FormatCommitMessage(fmt.Sprintf("copy-ref %s -> %s", srcNorm, destNorm), opts.Message)
	newFs, err := commitChanges(f, edits, message)
	if err != nil {
		return nil, nil, err
	}
	return newFs, report, nil
}

// entriesUnder walks path inside the tree rooted at root and returns its
// leaf entries keyed by path relative to path, the way walkTree does for a
// whole tree. If path names a single blob or symlink, the result has one
// entry keyed by "". An absent path yields an empty, non-error result.
func entriesUnder(s storer.EncodedObjectStorer, root plumbing.Hash, path string) (map[string]WalkEntry, error) {
	oid, mode, ok, err := entryAt(s, root, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]WalkEntry{}, nil
	}
	if mode != filemode.Dir {
		return map[string]WalkEntry{"": {OID: oid, Mode: mode}}, nil
	}
	entries, err := walkTree(s, oid)
	if err != nil {
		return nil, err
	}
	out := make(map[string]WalkEntry, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Entry
	}
	return out, nil
}
