package gitstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// commitChanges applies edits to fs's tree and, if anything actually
// changed, writes a new commit and advances fs's branch ref with a
// compare-and-swap. If the branch moved since fs was read, the CAS fails
// and ErrStaleSnapshot is returned so callers can re-read and retry. A
// no-op edit set (resulting tree identical to fs's) returns fs itself
// without writing a commit.
func commitChanges(fs *Fs, edits []edit, message string) (*Fs, error) {
	if !fs.Writable() {
		return nil, fmt.Errorf("%w: snapshot is not bound to a branch", ErrPermission)
	}
	if len(edits) == 0 {
		return fs, nil
	}

	store := fs.store
	refName := plumbing.ReferenceName(fs.binding.refName())

	store.mu.Lock()
	defer store.mu.Unlock()

	return withRepoLock(store.gitdir(), store.timeout(), func() (*Fs, error) {
		curRef, err := store.repo.Storer.Reference(refName)
		if err != nil {
			return nil, fmt.Errorf("read ref %s: %w", refName, err)
		}
		if curRef.Hash() != *fs.commitOID {
			return nil, fmt.Errorf("%w: %s moved since snapshot was read", ErrStaleSnapshot, refName)
		}

		newTreeHash, err := rebuildTree(store.repo.Storer, fs.treeOID, edits)
		if err != nil {
			return nil, err
		}
		if newTreeHash == plumbing.ZeroHash {
			// rebuildTree reports an empty root as the zero hash; store the
			// real empty tree so it compares equal to an existing empty tree.
			if newTreeHash, err = writeTree(store.repo.Storer, nil); err != nil {
				return nil, err
			}
		}
		if newTreeHash == fs.treeOID {
			return fs, nil
		}

		now := time.Now()
		sig := object.Signature{Name: store.signature.Name, Email: store.signature.Email, When: now}
		commit := &object.Commit{
			Author:       sig,
			Committer:    sig,
			TreeHash:     newTreeHash,
			ParentHashes: []plumbing.Hash{*fs.commitOID},
			Message:      message,
		}
		obj := store.repo.Storer.NewEncodedObject()
		if err := commit.Encode(obj); err != nil {
			return nil, fmt.Errorf("encode commit: %w", err)
		}
		newCommitHash, err := store.repo.Storer.SetEncodedObject(obj)
		if err != nil {
			return nil, fmt.Errorf("store commit: %w", err)
		}

		newRef := plumbing.NewHashReference(refName, newCommitHash)
		if err := store.repo.Storer.CheckAndSetReference(newRef, curRef); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStaleSnapshot, refName, err)
		}

		_ = writeReflogEntry(store.gitdir(), string(refName), ReflogEntry{
			OldSHA:    curRef.Hash().String(),
			NewSHA:    newCommitHash.String(),
			Committer: fmt.Sprintf("%s <%s>", store.signature.Name, store.signature.Email),
			Timestamp: now.Unix(),
			Message:   "commit: " + message,
		})

		return &Fs{store: store, commitOID: &newCommitHash, treeOID: newTreeHash, binding: fs.binding}, nil
	})
}

// RetryWrite re-reads branch and calls f to compute a new set of edits,
// retrying with exponential backoff (10ms, 20ms, ... capped at 200ms, 5
// attempts) whenever the commit races another writer (ErrStaleSnapshot).
// f returns the edits to apply, the commit message, and an arbitrary result
// value threaded back to the caller alongside the resulting snapshot.
func RetryWrite[T any](store *GitStore, branch string, f func(fs *Fs) ([]edit, string, T, error)) (*Fs, T, error) {
	var zero T
	backoff := 10 * time.Millisecond
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fs, err := store.Fs(&branch)
		if err != nil {
			return nil, zero, err
		}

		edits, message, result, err := f(fs)
		if err != nil {
			return nil, zero, err
		}
		if len(edits) == 0 {
			return fs, result, nil
		}

		newFs, err := commitChanges(fs, edits, message)
		if err == nil {
			return newFs, result, nil
		}
		if !errors.Is(err, ErrStaleSnapshot) {
			return nil, zero, err
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > 200*time.Millisecond {
			backoff = 200 * time.Millisecond
		}
	}

	return nil, zero, fmt.Errorf("%w: exceeded %d retry attempts", ErrStaleSnapshot, maxAttempts)
}
