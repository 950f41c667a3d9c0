package gitstore

import (
	"fmt"
	"time"

	"github.com/danwakefield/fnmatch"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// Parent returns the snapshot at this commit's first parent, detached from
// any ref. Returns ErrNotFound at a root commit.
func (f *Fs) Parent() (*Fs, error) {
	c, err := f.loadCommitMeta()
	if err != nil {
		return nil, err
	}
	if c.NumParents() == 0 {
		return nil, fmt.Errorf("%w: commit has no parent", ErrNotFound)
	}
	parent, err := c.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("read parent: %w", err)
	}
	return &Fs{store: f.store, commitOID: &parent.Hash, treeOID: parent.TreeHash, binding: RefBinding{Detached: true}}, nil
}

// Back walks n generations back along first-parent history, detached.
// Insufficient history is an error.
func (f *Fs) Back(n int) (*Fs, error) {
	cur := f
	for i := 0; i < n; i++ {
		next, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// LogOptions filters the commits Log returns.
type LogOptions struct {
	Limit          int    // cap on returned entries; <= 0 means no limit
	Skip           int    // drop the first Skip matches before collecting
	Path           string // include a commit only if this path changed from its first parent
	MessagePattern string // glob pattern (fnmatch) matched against the full message
	Before         *int64 // inclusive upper bound on author time, unix seconds
}

// Log walks parents from this snapshot's commit, most recent first,
// collecting author/time/message for each commit passing every filter in
// opts. Path inclusion compares the entry at opts.Path in the commit against
// the same path in its first parent (an empty tree for a root commit):
// present in both with the same OID, or absent from both, is excluded;
// anything else (added, removed, or changed) is included.
func (f *Fs) Log(opts LogOptions) ([]CommitInfo, error) {
	var pathNorm string
	if opts.Path != "" {
		norm, err := NormalizePath(opts.Path)
		if err != nil {
			return nil, err
		}
		pathNorm = norm
	}

	var out []CommitInfo
	matched := 0
	oid := *f.commitOID
	for {
		c, err := object.GetCommit(f.store.repo.Storer, oid)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", oid, err)
		}

		include := opts.Before == nil || c.Author.When.Unix() <= *opts.Before
		if include && opts.MessagePattern != "" {
			include = fnmatch.Match(opts.MessagePattern, c.Message, 0)
		}
		if include && pathNorm != "" {
			include, err = pathChangedFromParent(f.store.repo.Storer, c, pathNorm)
			if err != nil {
				return nil, err
			}
		}

		if include {
			matched++
			if matched > opts.Skip {
				out = append(out, CommitInfo{
					Hash:        c.Hash.String(),
					Message:     c.Message,
					Time:        c.Author.When.Unix(),
					AuthorName:  c.Author.Name,
					AuthorEmail: c.Author.Email,
				})
				if opts.Limit > 0 && len(out) >= opts.Limit {
					break
				}
			}
		}

		if c.NumParents() == 0 {
			break
		}
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("read parent: %w", err)
		}
		oid = parent.Hash
	}
	return out, nil
}

// pathChangedFromParent reports whether path differs between c's tree and
// its first parent's tree (an empty tree if c is a root commit).
func pathChangedFromParent(s storer.EncodedObjectStorer, c *object.Commit, path string) (bool, error) {
	oid, _, ok, err := entryAt(s, c.TreeHash, path)
	if err != nil {
		return false, err
	}
	parentTree := plumbing.ZeroHash
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return false, fmt.Errorf("read parent: %w", err)
		}
		parentTree = parent.TreeHash
	}
	parentOID, _, parentOK, err := entryAt(s, parentTree, path)
	if err != nil {
		return false, err
	}
	if !ok && !parentOK {
		return false, nil
	}
	if ok != parentOK {
		return true, nil
	}
	return oid != parentOID, nil
}

// Undo moves this snapshot's branch back to its n-th parent, recording the
// move in the reflog. Requires a writable (branch-bound) snapshot whose
// branch still points at this commit, and at least n ancestors.
func (f *Fs) Undo(n int) (*Fs, error) {
	return f.moveBranch(fmt.Sprintf("undo: %d", n), func(c *object.Commit) (plumbing.Hash, error) {
		target := c
		for i := 0; i < n; i++ {
			if target.NumParents() == 0 {
				return plumbing.ZeroHash, fmt.Errorf("%w: commit has no %d-th parent", ErrNotFound, n)
			}
			parent, err := target.Parent(0)
			if err != nil {
				return plumbing.ZeroHash, fmt.Errorf("read parent: %w", err)
			}
			target = parent
		}
		return target.Hash, nil
	})
}

// Redo reverses the n most recent reflog entries on this branch (typically
// written by Undo), if the branch hasn't moved since. It walks the reflog
// tail backward: each step must be an entry whose new value equals the
// current moving cursor (the previous step's old value, starting from this
// snapshot's commit); Redo restores the position n entries back. It does not
// check which operation wrote those entries, so after a plain commit Redo
// moves the branch back to that commit's old value. Errors if the reflog
// doesn't contain n matching steps.
func (f *Fs) Redo(n int) (*Fs, error) {
	if !f.Writable() {
		return nil, fmt.Errorf("%w: snapshot is not bound to a branch", ErrPermission)
	}
	refName := f.binding.refName()
	entries, err := readReflog(f.store.gitdir(), refName)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no reflog history for %s", ErrNotFound, refName)
	}

	cursor := f.commitOID.String()
	idx := len(entries) - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			return nil, fmt.Errorf("%w: reflog does not contain %d step(s) of forward history for %s", ErrNotFound, n, refName)
		}
		if entries[idx].NewSHA != cursor {
			if i == 0 {
				return nil, fmt.Errorf("%w: branch moved since the last undo", ErrStaleSnapshot)
			}
			return nil, fmt.Errorf("%w: reflog does not contain %d step(s) of forward history for %s", ErrNotFound, n, refName)
		}
		cursor = entries[idx].OldSHA
		idx--
	}

	target := plumbing.NewHash(cursor)
	return f.setBranchTo(target, fmt.Sprintf("redo: %d", n))
}

// moveBranch reads this snapshot's commit, computes a target hash via
// compute, and CAS-moves the branch to it.
func (f *Fs) moveBranch(label string, compute func(*object.Commit) (plumbing.Hash, error)) (*Fs, error) {
	if !f.Writable() {
		return nil, fmt.Errorf("%w: snapshot is not bound to a branch", ErrPermission)
	}
	c, err := f.loadCommitMeta()
	if err != nil {
		return nil, err
	}
	target, err := compute(c)
	if err != nil {
		return nil, err
	}
	return f.setBranchTo(target, label)
}

func (f *Fs) setBranchTo(target plumbing.Hash, label string) (*Fs, error) {
	store := f.store
	refName := plumbing.ReferenceName(f.binding.refName())

	store.mu.Lock()
	defer store.mu.Unlock()

	result, err := withRepoLock(store.gitdir(), store.timeout(), func() (*Fs, error) {
		curRef, err := store.repo.Storer.Reference(refName)
		if err != nil {
			return nil, fmt.Errorf("read ref %s: %w", refName, err)
		}
		if curRef.Hash() != *f.commitOID {
			return nil, fmt.Errorf("%w: %s moved since snapshot was read", ErrStaleSnapshot, refName)
		}

		newRef := plumbing.NewHashReference(refName, target)
		if err := store.repo.Storer.CheckAndSetReference(newRef, curRef); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStaleSnapshot, refName, err)
		}

		_ = writeReflogEntry(store.gitdir(), string(refName), ReflogEntry{
			OldSHA:    curRef.Hash().String(),
			NewSHA:    target.String(),
			Committer: fmt.Sprintf("%s <%s>", store.signature.Name, store.signature.Email),
			Timestamp: time.Now().Unix(),
			Message:   label,
		})

		targetCommit, err := object.GetCommit(store.repo.Storer, target)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", target, err)
		}
		return &Fs{store: store, commitOID: &target, treeOID: targetCommit.TreeHash, binding: f.binding}, nil
	})
	return result, err
}
