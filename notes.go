package gitstore

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
)

const defaultNotesRef = "refs/notes/commits"

// NoteDict attaches arbitrary blobs to object hashes (commits, by
// convention) via a dedicated ref, compatible with git-notes' on-disk
// layout: entries may be stored flat (the 40-hex OID as the filename) or
// fanned out two levels deep (first two hex chars as a directory, the
// remaining 38 as the filename). Reads check flat first, then fanout;
// writes always use the flat layout.
type NoteDict struct {
	store *GitStore
	ref   string
}

// Notes returns the note collection for the default namespace
// ("refs/notes/commits").
func (g *GitStore) Notes() *NoteDict { return g.NotesIn(defaultNotesRef) }

// NotesIn returns the note collection bound to a specific ref.
func (g *GitStore) NotesIn(ref string) *NoteDict { return &NoteDict{store: g, ref: ref} }

func fanoutPath(oid string) string {
	if len(oid) != 40 {
		return oid
	}
	return oid[:2] + "/" + oid[2:]
}

// resolveKey accepts either a 40-hex OID or a name resolvable as a branch or
// tag in store, and returns the 40-hex commit OID to key the note on.
// Anything else fails with ErrInvalidHash.
func resolveKey(store *GitStore, key string) (string, error) {
	if isHexOID(key) {
		return key, nil
	}
	if fs, err := store.Branches().Get(key); err == nil {
		return fs.CommitHash(), nil
	}
	if fs, err := store.Tags().Get(key); err == nil {
		return fs.CommitHash(), nil
	}
	return "", fmt.Errorf("%w: %q is neither a 40-hex hash nor a resolvable ref name", ErrInvalidHash, key)
}

func (n *NoteDict) treeHash() (plumbing.Hash, bool, error) {
	ref, err := n.store.repo.Storer.Reference(plumbing.ReferenceName(n.ref))
	if err != nil {
		return plumbing.ZeroHash, false, nil
	}
	c, err := object.GetCommit(n.store.repo.Storer, ref.Hash())
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("read notes commit: %w", err)
	}
	return c.TreeHash, true, nil
}

// Get returns the note attached to key, which may be a 40-hex OID or a
// resolvable branch/tag name.
func (n *NoteDict) Get(key string) ([]byte, bool, error) {
	oid, err := resolveKey(n.store, key)
	if err != nil {
		return nil, false, err
	}

	n.store.mu.RLock()
	defer n.store.mu.RUnlock()

	tree, ok, err := n.treeHash()
	if err != nil || !ok {
		return nil, false, err
	}
	for _, path := range []string{oid, fanoutPath(oid)} {
		blobOID, mode, found, err := entryAt(n.store.repo.Storer, tree, path)
		if err != nil {
			return nil, false, err
		}
		if found && mode != filemode.Dir {
			data, err := readBlob(n.store.repo.Storer, blobOID)
			if err != nil {
				return nil, false, err
			}
			return data, true, nil
		}
	}
	return nil, false, nil
}

// Has reports whether key has an attached note.
func (n *NoteDict) Has(key string) (bool, error) {
	_, ok, err := n.Get(key)
	return ok, err
}

// Set attaches data to key as a note, always writing the flat layout. Any
// existing note (flat or fanout) for key is replaced.
func (n *NoteDict) Set(key string, data []byte) error {
	oid, err := resolveKey(n.store, key)
	if err != nil {
		return err
	}
	return n.mutate(fmt.Sprintf("note %s", oid), func(tree plumbing.Hash) ([]edit, error) {
		return n.setEdits(tree, oid, data)
	})
}

func (n *NoteDict) setEdits(tree plumbing.Hash, oid string, data []byte) ([]edit, error) {
	blobHash, err := writeBlob(n.store.repo.Storer, data)
	if err != nil {
		return nil, err
	}
	edits := []edit{{Path: oid, Write: &write{OID: blobHash, Mode: filemode.Regular}}}
	if _, _, found, _ := entryAt(n.store.repo.Storer, tree, fanoutPath(oid)); found {
		edits = append(edits, edit{Path: fanoutPath(oid), Write: nil})
	}
	return edits, nil
}

// Remove deletes key's note (flat or fanout). Fails with ErrKeyNotFound if
// key has no attached note.
func (n *NoteDict) Remove(key string) error {
	oid, err := resolveKey(n.store, key)
	if err != nil {
		return err
	}
	return n.mutate(fmt.Sprintf("unnote %s", oid), func(tree plumbing.Hash) ([]edit, error) {
		return n.removeEdits(tree, oid)
	})
}

func (n *NoteDict) removeEdits(tree plumbing.Hash, oid string) ([]edit, error) {
	var edits []edit
	if _, _, found, _ := entryAt(n.store.repo.Storer, tree, oid); found {
		edits = append(edits, edit{Path: oid, Write: nil})
	}
	if _, _, found, _ := entryAt(n.store.repo.Storer, tree, fanoutPath(oid)); found {
		edits = append(edits, edit{Path: fanoutPath(oid), Write: nil})
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, oid)
	}
	return edits, nil
}

// GetForCurrentBranch resolves HEAD to its commit and returns that commit's
// note.
func (n *NoteDict) GetForCurrentBranch() ([]byte, bool, error) {
	fs, err := n.store.Fs(nil)
	if err != nil {
		return nil, false, err
	}
	return n.Get(fs.CommitHash())
}

// SetForCurrentBranch resolves HEAD to its commit and sets that commit's
// note to data.
func (n *NoteDict) SetForCurrentBranch(data []byte) error {
	fs, err := n.store.Fs(nil)
	if err != nil {
		return err
	}
	return n.Set(fs.CommitHash(), data)
}

// mutate rebuilds the notes tree via compute and commits it onto n.ref,
// creating the ref if it doesn't exist yet. Notes commits are rootless
// each time the ref is created, and linear (single-parent) afterward.
func (n *NoteDict) mutate(message string, compute func(tree plumbing.Hash) ([]edit, error)) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	_, err := withRepoLock(n.store.gitdir(), n.store.timeout(), func() (struct{}, error) {
		tree, parents, curRef, err := n.headState()
		if err != nil {
			return struct{}{}, err
		}

		edits, err := compute(tree)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, n.commitEdits(message, tree, parents, curRef, edits)
	})
	return err
}

// headState reads the notes ref's current tree, parent list, and reference
// (nil if the ref doesn't exist yet). Callers must hold n.store.mu.
func (n *NoteDict) headState() (tree plumbing.Hash, parents []plumbing.Hash, curRef *plumbing.Reference, err error) {
	refName := plumbing.ReferenceName(n.ref)
	curRef, _ = n.store.repo.Storer.Reference(refName)
	if curRef == nil {
		return plumbing.ZeroHash, nil, nil, nil
	}
	c, err := object.GetCommit(n.store.repo.Storer, curRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, nil, nil, fmt.Errorf("read notes commit: %w", err)
	}
	return c.TreeHash, []plumbing.Hash{curRef.Hash()}, curRef, nil
}

// commitEdits rebuilds the notes tree from edits atop tree, writes a new
// notes commit parented on parents, and CAS-updates n.ref from curRef (or
// plain-sets it if curRef is nil). A no-op edit list is a no-op commit.
// Callers must hold n.store.mu and the repo lock.
func (n *NoteDict) commitEdits(message string, tree plumbing.Hash, parents []plumbing.Hash, curRef *plumbing.Reference, edits []edit) error {
	if len(edits) == 0 {
		return nil
	}

	newTree, err := rebuildTree(n.store.repo.Storer, tree, edits)
	if err != nil {
		return err
	}

	refName := plumbing.ReferenceName(n.ref)
	now := time.Now()
	sig := object.Signature{Name: n.store.signature.Name, Email: n.store.signature.Email, When: now}
	commit := &object.Commit{
		Author: sig, Committer: sig,
		TreeHash:     newTree,
		ParentHashes: parents,
		Message:      message,
	}
	obj := n.store.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return fmt.Errorf("encode notes commit: %w", err)
	}
	newHash, err := n.store.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("store notes commit: %w", err)
	}

	old := zeroSHA
	if curRef != nil {
		old = curRef.Hash().String()
		if err := n.store.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(refName, newHash), curRef); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStaleSnapshot, refName, err)
		}
	} else {
		if err := n.store.repo.Storer.SetReference(plumbing.NewHashReference(refName, newHash)); err != nil {
			return fmt.Errorf("set notes ref %s: %w", refName, err)
		}
	}

	_ = writeReflogEntry(n.store.gitdir(), string(refName), ReflogEntry{
		OldSHA:    old,
		NewSHA:    newHash.String(),
		Committer: fmt.Sprintf("%s <%s>", n.store.signature.Name, n.store.signature.Email),
		Timestamp: now.Unix(),
		Message:   "notes: " + message,
	})
	return nil
}

// noteOp is one pending NotesBatch operation: set data non-nil means write
// that note; set data nil with remove true means delete it.
type noteOp struct {
	data   []byte
	remove bool
}

// NotesBatch accumulates sets and removals against a NoteDict and coalesces
// them into a single commit, the way Batch does for tree writes. Keys are
// resolved (and deduplicated by resolved OID) as each call is queued; the
// last queued operation for a given OID wins.
type NotesBatch struct {
	notes  *NoteDict
	ops    map[string]*noteOp
	order  []string
	closed bool
}

// Batch starts a new batch of pending note sets/removals against n.
func (n *NoteDict) Batch() *NotesBatch {
	return &NotesBatch{notes: n, ops: map[string]*noteOp{}}
}

func (b *NotesBatch) requireOpen() error {
	if b.closed {
		return ErrBatchClosed
	}
	return nil
}

func (b *NotesBatch) track(oid string) {
	if _, seen := b.ops[oid]; !seen {
		b.order = append(b.order, oid)
	}
}

// Set queues a note write for key, resolved the same way NoteDict.Get is.
func (b *NotesBatch) Set(key string, data []byte) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	oid, err := resolveKey(b.notes.store, key)
	if err != nil {
		return err
	}
	b.track(oid)
	b.ops[oid] = &noteOp{data: data}
	return nil
}

// Remove queues a note deletion for key.
func (b *NotesBatch) Remove(key string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	oid, err := resolveKey(b.notes.store, key)
	if err != nil {
		return err
	}
	b.track(oid)
	b.ops[oid] = &noteOp{remove: true}
	return nil
}

// IsClosed reports whether Commit has already been called on this batch.
func (b *NotesBatch) IsClosed() bool { return b.closed }

// Commit applies every queued set/remove in one commit. A remove for a key
// with no existing note fails the whole batch with ErrKeyNotFound, the same
// as a standalone Remove would. An empty batch is a no-op.
func (b *NotesBatch) Commit(message string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.closed = true
	if len(b.order) == 0 {
		return nil
	}

	n := b.notes
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	_, err := withRepoLock(n.store.gitdir(), n.store.timeout(), func() (struct{}, error) {
		tree, parents, curRef, err := n.headState()
		if err != nil {
			return struct{}{}, err
		}

		var edits []edit
		for _, oid := range b.order {
			op := b.ops[oid]
			var opEdits []edit
			var err error
			if op.remove {
				opEdits, err = n.removeEdits(tree, oid)
			} else {
				opEdits, err = n.setEdits(tree, oid, op.data)
			}
			if err != nil {
				return struct{}{}, err
			}
			edits = append(edits, opEdits...)
		}

		return struct{}{}, n.commitEdits(message, tree, parents, curRef, edits)
	})
	return err
}
