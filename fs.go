package gitstore

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// Fs is an immutable snapshot of a tree at one commit. It is a thin value
// wrapper over a commit hash: copying it is cheap and safe to share. A
// snapshot bound to a branch is writable (mutations create a new commit and
// advance the branch ref via CAS); one bound to a tag, or produced by
// history navigation, is read-only.
type Fs struct {
	store     *GitStore
	commitOID *plumbing.Hash
	treeOID   plumbing.Hash
	binding   RefBinding
}

// CommitHash is the hex commit hash this snapshot is pinned to.
func (f *Fs) CommitHash() string { return f.commitOID.String() }

// TreeHash is the hex root tree hash of this snapshot.
func (f *Fs) TreeHash() string { return f.treeOID.String() }

// RefName is the fully qualified ref this snapshot is bound to, or "" if detached.
func (f *Fs) RefName() string { return f.binding.refName() }

// Writable reports whether mutating methods on this Fs are permitted.
func (f *Fs) Writable() bool { return f.binding.writable() }

func (f *Fs) loadCommitMeta() (*object.Commit, error) {
	c, err := object.GetCommit(f.store.repo.Storer, *f.commitOID)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", f.commitOID, err)
	}
	return c, nil
}

// Message is the commit message of the snapshot's commit.
func (f *Fs) Message() (string, error) {
	c, err := f.loadCommitMeta()
	if err != nil {
		return "", err
	}
	return c.Message, nil
}

// Time is the commit's author time, unix seconds.
func (f *Fs) Time() (int64, error) {
	c, err := f.loadCommitMeta()
	if err != nil {
		return 0, err
	}
	return c.Author.When.Unix(), nil
}

// AuthorName/AuthorEmail are the commit's author identity.
func (f *Fs) AuthorName() (string, error) {
	c, err := f.loadCommitMeta()
	if err != nil {
		return "", err
	}
	return c.Author.Name, nil
}

func (f *Fs) AuthorEmail() (string, error) {
	c, err := f.loadCommitMeta()
	if err != nil {
		return "", err
	}
	return c.Author.Email, nil
}

// Changes reports how this snapshot's tree differs from its first parent's
// (an empty tree for a root commit).
func (f *Fs) Changes() (*ChangeReport, error) {
	c, err := f.loadCommitMeta()
	if err != nil {
		return nil, err
	}
	parentTree := plumbing.ZeroHash
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("read parent commit: %w", err)
		}
		parentTree = parent.TreeHash
	}
	return diffTrees(f.store.repo.Storer, parentTree, c.TreeHash)
}

// diffTrees compares two trees leaf by leaf and reports add/update/delete.
func diffTrees(s storer.EncodedObjectStorer, before, after plumbing.Hash) (*ChangeReport, error) {
	beforeEntries, err := walkTree(s, before)
	if err != nil {
		return nil, err
	}
	afterEntries, err := walkTree(s, after)
	if err != nil {
		return nil, err
	}

	beforeMap := make(map[string]WalkEntry, len(beforeEntries))
	for _, e := range beforeEntries {
		beforeMap[e.Path] = e.Entry
	}
	afterMap := make(map[string]WalkEntry, len(afterEntries))
	for _, e := range afterEntries {
		afterMap[e.Path] = e.Entry
	}

	report := &ChangeReport{}
	for path, a := range afterMap {
		if b, ok := beforeMap[path]; !ok {
			report.Add = append(report.Add, path)
		} else if b.OID != a.OID || b.Mode != a.Mode {
			report.Update = append(report.Update, path)
		}
	}
	for path := range beforeMap {
		if _, ok := afterMap[path]; !ok {
			report.Delete = append(report.Delete, path)
		}
	}
	sort.Strings(report.Add)
	sort.Strings(report.Update)
	sort.Strings(report.Delete)
	return report, nil
}

// Exists reports whether path names any entry (file or directory).
func (f *Fs) Exists(path string) (bool, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return false, err
	}
	_, _, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	return ok, err
}

// IsDir reports whether path exists and is a directory.
func (f *Fs) IsDir(path string) (bool, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return false, err
	}
	_, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil || !ok {
		return false, err
	}
	return mode == filemode.Dir, nil
}

// FileType returns the classification of the entry at path.
func (f *Fs) FileType(path string) (FileType, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return 0, err
	}
	_, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	ft, known := fileTypeFromMode(mode)
	if !known {
		return 0, fmt.Errorf("%w: unrecognized mode for %s", ErrInvalidPath, path)
	}
	return ft, nil
}

// ObjectHash returns the hex OID of the blob or tree at path.
func (f *Fs) ObjectHash(path string) (string, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	oid, _, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return oid.String(), nil
}

// Size returns the byte size of the blob at path. Directories error with ErrIsADirectory.
func (f *Fs) Size(path string) (int64, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return 0, err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if mode == filemode.Dir {
		return 0, fmt.Errorf("%w: %s", ErrIsADirectory, path)
	}
	blob, err := object.GetBlob(f.store.repo.Storer, oid)
	if err != nil {
		return 0, fmt.Errorf("read blob %s: %w", oid, err)
	}
	return blob.Size, nil
}

// Stat returns mode/type/size/hash metadata for path.
func (f *Fs) Stat(path string) (StatResult, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return StatResult{}, err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return StatResult{}, err
	}
	if !ok {
		return StatResult{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	ft, known := fileTypeFromMode(mode)
	if !known {
		return StatResult{}, fmt.Errorf("%w: unrecognized mode for %s", ErrInvalidPath, path)
	}
	res := StatResult{Mode: mode, Type: ft, Hash: oid.String()}
	if mode == filemode.Dir {
		entries, err := listTreeEntries(f.store.repo.Storer, oid)
		if err != nil {
			return StatResult{}, err
		}
		subtrees := 0
		for _, e := range entries {
			if e.Mode == filemode.Dir {
				subtrees++
			}
		}
		res.Nlink = 2 + subtrees
	} else {
		blob, err := object.GetBlob(f.store.repo.Storer, oid)
		if err != nil {
			return StatResult{}, fmt.Errorf("read blob %s: %w", oid, err)
		}
		res.Size = blob.Size
		res.Nlink = 1
	}
	if t, err := f.Time(); err == nil {
		res.Mtime = t
	}
	return res, nil
}

// Read returns the full contents of the blob at path.
func (f *Fs) Read(path string) ([]byte, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if mode == filemode.Dir {
		return nil, fmt.Errorf("%w: %s", ErrIsADirectory, path)
	}
	return readBlob(f.store.repo.Storer, oid)
}

// ReadText reads path and returns it as a string.
func (f *Fs) ReadText(path string) (string, error) {
	data, err := f.Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadRange reads [offset, offset+length) of the blob at path.
func (f *Fs) ReadRange(path string, offset, length int64) ([]byte, error) {
	data, err := f.Read(path)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > int64(len(data)) {
		return nil, fmt.Errorf("%w: offset %d out of range for %s", ErrInvalidPath, offset, path)
	}
	end := offset + length
	if length < 0 || end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

// ReadByHash reads a blob directly by its content hash, bypassing path
// resolution. Useful once a caller already has an OID from Walk/Stat.
func (f *Fs) ReadByHash(hash string) ([]byte, error) {
	oid := plumbing.NewHash(hash)
	if oid.IsZero() && hash != plumbing.ZeroHash.String() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHash, hash)
	}
	return readBlob(f.store.repo.Storer, oid)
}

func readBlob(s storer.EncodedObjectStorer, oid plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(s, oid)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", oid, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", oid, err)
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("read blob %s: %w", oid, err)
	}
	return buf.Bytes(), nil
}

// Readlink reads the target of a symlink entry.
func (f *Fs) Readlink(path string) (string, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if mode != filemode.Symlink {
		return "", fmt.Errorf("%w: %s is not a symlink", ErrInvalidPath, path)
	}
	data, err := readBlob(f.store.repo.Storer, oid)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ls lists the immediate children of path (must be a directory, "" for root).
func (f *Fs) Ls(path string) ([]WalkEntry, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if mode != filemode.Dir {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}
	return listTreeEntries(f.store.repo.Storer, oid)
}

// Walk recursively lists every leaf (file/link) entry under path, as paths
// relative to the snapshot root, sorted.
func (f *Fs) Walk(path string) ([]string, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if mode != filemode.Dir {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}
	rels, err := walkTree(f.store.repo.Storer, oid)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rels))
	for i, r := range rels {
		if norm == "" {
			out[i] = r.Path
		} else {
			out[i] = norm + "/" + r.Path
		}
	}
	return out, nil
}

// Glob returns every leaf path under the snapshot root matching the
// "/"-separated glob pattern (fnmatch per segment, "**" for any number of
// directory levels, dotfiles matched only by a segment starting with "."),
// sorted and deduplicated.
func (f *Fs) Glob(pattern string) ([]string, error) {
	norm, err := NormalizeGlobPattern(pattern)
	if err != nil {
		return nil, err
	}
	return globTree(f.store.repo.Storer, f.treeOID, norm, true)
}

// IGlob behaves like Glob but does not sort results; they are still
// deduplicated and come back in no defined order.
func (f *Fs) IGlob(pattern string) ([]string, error) {
	norm, err := NormalizeGlobPattern(pattern)
	if err != nil {
		return nil, err
	}
	return globTree(f.store.repo.Storer, f.treeOID, norm, false)
}
