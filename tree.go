package gitstore

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// entryAt walks path segment by segment from root, requiring every
// intermediate entry to be a tree. The root path ("") resolves to (root, TREE).
// ok is false (no error) when the path simply doesn't exist.
func entryAt(s storer.EncodedObjectStorer, root plumbing.Hash, path string) (oid plumbing.Hash, mode filemode.FileMode, ok bool, err error) {
	if IsRootPath(path) {
		return root, filemode.Dir, true, nil
	}

	cur := root
	curMode := filemode.Dir
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if curMode != filemode.Dir {
			return plumbing.ZeroHash, 0, false, nil
		}
		entries, err := listTreeEntries(s, cur)
		if err != nil {
			return plumbing.ZeroHash, 0, false, err
		}
		found := false
		for _, e := range entries {
			if e.Name == seg {
				cur, curMode, found = e.OID, e.Mode, true
				break
			}
		}
		if !found {
			return plumbing.ZeroHash, 0, false, nil
		}
		if i == len(segments)-1 {
			return cur, curMode, true, nil
		}
	}
	return cur, curMode, true, nil
}

// listTreeEntries returns the immediate children of the tree at oid, sorted
// by name. oid == plumbing.ZeroHash is treated as an empty tree.
func listTreeEntries(s storer.EncodedObjectStorer, oid plumbing.Hash) ([]WalkEntry, error) {
	if oid == plumbing.ZeroHash {
		return nil, nil
	}
	tree, err := object.GetTree(s, oid)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", oid, err)
	}
	out := make([]WalkEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		out = append(out, WalkEntry{Name: e.Name, OID: e.Hash, Mode: e.Mode})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// walkTree yields every leaf (non-tree) entry under oid, as (relPath, entry)
// pairs in pre-order, sorted by path.
func walkTree(s storer.EncodedObjectStorer, oid plumbing.Hash) ([]relEntry, error) {
	var out []relEntry
	if err := walkTreeInto(s, oid, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

type relEntry struct {
	Path  string
	Entry WalkEntry
}

func walkTreeInto(s storer.EncodedObjectStorer, oid plumbing.Hash, prefix string, out *[]relEntry) error {
	entries, err := listTreeEntries(s, oid)
	if err != nil {
		return err
	}
	for _, e := range entries {
		rel := joinRel(prefix, e.Name)
		if ft, _ := e.FileType(); ft.IsDir() {
			if err := walkTreeInto(s, e.OID, rel, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, relEntry{Path: rel, Entry: e})
	}
	return nil
}

// rebuildTree applies edits to the tree at base and writes a new tree,
// bottom-up, pruning any subtree left empty. A tree left with no entries is
// not written; plumbing.ZeroHash is returned for it instead. It is the
// single mutation primitive every write path in this package funnels
// through.
func rebuildTree(s storer.EncodedObjectStorer, base plumbing.Hash, edits []edit) (plumbing.Hash, error) {
	leafPuts := map[string]write{}
	leafDels := map[string]bool{}
	sub := map[string][]edit{}

	for _, e := range edits {
		parts := strings.SplitN(e.Path, "/", 2)
		if len(parts) == 1 {
			if e.Write == nil {
				leafDels[parts[0]] = true
				delete(leafPuts, parts[0])
			} else {
				leafPuts[parts[0]] = *e.Write
				delete(leafDels, parts[0])
			}
			continue
		}
		sub[parts[0]] = append(sub[parts[0]], edit{Path: parts[1], Write: e.Write})
	}

	existing, err := listTreeEntries(s, base)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	entries := make(map[string]WalkEntry, len(existing))
	for _, e := range existing {
		entries[e.Name] = e
	}

	for name, w := range leafPuts {
		entries[name] = WalkEntry{Name: name, OID: w.OID, Mode: w.Mode}
	}
	for name := range leafDels {
		delete(entries, name)
	}

	for name, subEdits := range sub {
		existingSub := plumbing.ZeroHash
		if e, ok := entries[name]; ok {
			if ft, _ := e.FileType(); ft.IsDir() {
				existingSub = e.OID
			} else {
				// blob/link -> tree transition: drop the old leaf first.
				delete(entries, name)
			}
		}

		newSub, err := rebuildTree(s, existingSub, subEdits)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if newSub == plumbing.ZeroHash {
			delete(entries, name)
		} else {
			entries[name] = WalkEntry{Name: name, OID: newSub, Mode: filemode.Dir}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	treeEntries := make([]object.TreeEntry, 0, len(entries))
	for _, e := range entries {
		treeEntries = append(treeEntries, object.TreeEntry{Name: e.Name, Mode: e.Mode, Hash: e.OID})
	}
	return writeTree(s, treeEntries)
}

func writeTree(s storer.EncodedObjectStorer, entries []object.TreeEntry) (plumbing.Hash, error) {
	tree := &object.Tree{Entries: entries}
	o := s.NewEncodedObject()
	if err := tree.Encode(o); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	hash, err := s.SetEncodedObject(o)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store tree: %w", err)
	}
	return hash, nil
}

func writeBlob(s storer.EncodedObjectStorer, data []byte) (plumbing.Hash, error) {
	o := s.NewEncodedObject()
	o.SetType(plumbing.BlobObject)
	o.SetSize(int64(len(data)))
	w, err := o.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("blob writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("close blob writer: %w", err)
	}
	hash, err := s.SetEncodedObject(o)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// modeFromDisk classifies a file on disk the way the tree engine classifies
// tree entries: symlinks become LINK, executables become BLOB_EXEC (unix
// only), everything else BLOB.
func modeFromDisk(path string) (filemode.FileMode, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return filemode.Symlink, nil
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 != 0 {
		return filemode.Executable, nil
	}
	return filemode.Regular, nil
}
