package gitstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
)

// RefDict is a map-like view over one ref namespace (branches or tags).
// Branch entries are writable Fs snapshots; tag entries are read-only.
type RefDict struct {
	store  *GitStore
	prefix string // "refs/heads/" or "refs/tags/"
	branch bool
}

func (d *RefDict) fullName(name string) (plumbing.ReferenceName, error) {
	if err := ValidateRefName(name); err != nil {
		return "", err
	}
	return plumbing.ReferenceName(d.prefix + name), nil
}

func (d *RefDict) fsFor(name string, commitHash plumbing.Hash) (*Fs, error) {
	var branch *string
	if d.branch {
		branch = &name
	}
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	fs, err := d.store.fsFromCommit(commitHash, branch)
	if err == nil && !d.branch {
		fs.binding = RefBinding{Tag: name}
	}
	return fs, err
}

// Get resolves name to its bound snapshot. Returns ErrNotFound if absent.
func (d *RefDict) Get(name string) (*Fs, error) {
	refName, err := d.fullName(name)
	if err != nil {
		return nil, err
	}
	d.store.mu.RLock()
	ref, err := d.store.repo.Storer.Reference(refName)
	d.store.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, refName)
	}
	return d.fsFor(name, ref.Hash())
}

// Has reports whether name exists in this namespace.
func (d *RefDict) Has(name string) (bool, error) {
	refName, err := d.fullName(name)
	if err != nil {
		return false, err
	}
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	_, err = d.store.repo.Storer.Reference(refName)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Set points name at fs's commit. Branches upsert unconditionally (no
// compare-and-swap: this is a direct ref assignment, not a mutation of an
// existing branch's history); tags are insert-only and fail with
// ErrKeyExists if name is already bound. fs must belong to this store
// (checked by handle identity, falling back to canonical path equality), or
// ErrCrossRepo is returned.
func (d *RefDict) Set(name string, fs *Fs) error {
	if !sameStore(d.store, fs.store) {
		return fmt.Errorf("%w: fs belongs to a different repository", ErrCrossRepo)
	}
	refName, err := d.fullName(name)
	if err != nil {
		return err
	}
	return d.setRef(refName, *fs.commitOID, !d.branch)
}

// SetTo points name directly at a commit hash, without requiring an Fs.
// Always upserts, even within a tag namespace, since there is no source
// snapshot to apply the insert-only check to.
func (d *RefDict) SetTo(name, commitHash string) error {
	refName, err := d.fullName(name)
	if err != nil {
		return err
	}
	return d.setRef(refName, plumbing.NewHash(commitHash), false)
}

func (d *RefDict) setRef(refName plumbing.ReferenceName, oid plumbing.Hash, insertOnly bool) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	_, err := withRepoLock(d.store.gitdir(), d.store.timeout(), func() (struct{}, error) {
		prev, _ := d.store.repo.Storer.Reference(refName)
		if insertOnly && prev != nil {
			return struct{}{}, fmt.Errorf("%w: %s", ErrKeyExists, refName)
		}
		old := zeroSHA
		if prev != nil {
			old = prev.Hash().String()
		}
		if err := d.store.repo.Storer.SetReference(plumbing.NewHashReference(refName, oid)); err != nil {
			return struct{}{}, fmt.Errorf("set ref %s: %w", refName, err)
		}
		_ = writeReflogEntry(d.store.gitdir(), string(refName), ReflogEntry{
			OldSHA:    old,
			NewSHA:    oid.String(),
			Committer: fmt.Sprintf("%s <%s>", d.store.signature.Name, d.store.signature.Email),
			Timestamp: time.Now().Unix(),
			Message:   "update",
		})
		return struct{}{}, nil
	})
	return err
}

// SetAndGet sets name to fs and returns the snapshot previously bound to it,
// or nil if name didn't exist. Unlike Set, this always upserts — even in a
// tag namespace — swapping in the new value and handing back the old one
// rather than rejecting an existing tag.
func (d *RefDict) SetAndGet(name string, fs *Fs) (*Fs, error) {
	if !sameStore(d.store, fs.store) {
		return nil, fmt.Errorf("%w: fs belongs to a different repository", ErrCrossRepo)
	}
	prev, err := d.Get(name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		prev = nil
	}
	refName, err := d.fullName(name)
	if err != nil {
		return nil, err
	}
	if err := d.setRef(refName, *fs.commitOID, false); err != nil {
		return nil, err
	}
	return prev, nil
}

// Delete removes name from this namespace.
func (d *RefDict) Delete(name string) error {
	refName, err := d.fullName(name)
	if err != nil {
		return err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	_, err = withRepoLock(d.store.gitdir(), d.store.timeout(), func() (struct{}, error) {
		if err := d.store.repo.Storer.RemoveReference(refName); err != nil {
			return struct{}{}, fmt.Errorf("delete ref %s: %w", refName, err)
		}
		return struct{}{}, nil
	})
	return err
}

// List returns every name in this namespace, sorted.
func (d *RefDict) List() ([]string, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	refs, err := d.store.repo.Storer.IterReferences()
	if err != nil {
		return nil, fmt.Errorf("iterate refs: %w", err)
	}
	var names []string
	err = refs.ForEach(func(r *plumbing.Reference) error {
		if strings.HasPrefix(string(r.Name()), d.prefix) {
			names = append(names, strings.TrimPrefix(string(r.Name()), d.prefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Iter returns every (name, snapshot) pair in this namespace, sorted by name.
func (d *RefDict) Iter() ([]NamedFs, error) {
	names, err := d.List()
	if err != nil {
		return nil, err
	}
	out := make([]NamedFs, 0, len(names))
	for _, n := range names {
		fs, err := d.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedFs{Name: n, Fs: fs})
	}
	return out, nil
}

// NamedFs pairs a ref name with its bound snapshot.
type NamedFs struct {
	Name string
	Fs   *Fs
}

// GetDefault resolves HEAD within this namespace (branches only: HEAD is
// meaningless for tags).
func (d *RefDict) GetDefault() (*Fs, error) {
	if !d.branch {
		return nil, fmt.Errorf("%w: HEAD only applies to branches", ErrInvalidRefName)
	}
	return d.store.Fs(nil)
}

// SetDefault repoints HEAD at name.
func (d *RefDict) SetDefault(name string) error {
	if !d.branch {
		return fmt.Errorf("%w: HEAD only applies to branches", ErrInvalidRefName)
	}
	refName, err := d.fullName(name)
	if err != nil {
		return err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if err := d.store.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, refName)); err != nil {
		return fmt.Errorf("set HEAD to %s: %w", refName, err)
	}
	return nil
}

// Reflog returns name's reflog entries, oldest first (branches only).
func (d *RefDict) Reflog(name string) ([]ReflogEntry, error) {
	if !d.branch {
		return nil, fmt.Errorf("%w: reflog only applies to branches", ErrInvalidRefName)
	}
	refName, err := d.fullName(name)
	if err != nil {
		return nil, err
	}
	return readReflog(d.store.gitdir(), string(refName))
}
