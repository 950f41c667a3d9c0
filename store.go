package gitstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"

	"github.com/go-git/go-billy/v6/osfs"
)

// GitStore is a versioned filesystem backed by a bare git repository. It is
// safe to share across goroutines: object-store access is serialized by an
// in-process mutex, and ref mutation is additionally serialized across
// processes by an advisory file lock (see lock.go).
type GitStore struct {
	repo        *git.Repository
	path        string // canonical on-disk path, used for cross-repo identity checks
	mu          sync.RWMutex
	signature   Signature
	lockTimeout time.Duration
}

// Open opens a bare repository at path, creating it (and its first commit
// and branch) if opts.Create is set and nothing exists there yet.
func Open(path string, opts OpenOptions) (*GitStore, error) {
	sig := DefaultSignature
	if opts.Author != "" {
		sig.Name = opts.Author
	}
	if opts.Email != "" {
		sig.Email = opts.Email
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	var repo *git.Repository
	_, statErr := os.Stat(absPath)
	exists := statErr == nil

	if exists {
		repo, err = openBareAt(absPath)
		if err != nil {
			return nil, err
		}
	} else if opts.Create {
		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return nil, fmt.Errorf("create repo dir %s: %w", absPath, err)
		}
		repo, err = initBareAt(absPath)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("%w: repository not found at %s", ErrNotFound, absPath)
	}

	store := &GitStore{
		repo:      repo,
		path:      absPath,
		signature: sig,
	}
	if opts.LockTimeoutSeconds > 0 {
		store.lockTimeout = time.Duration(opts.LockTimeoutSeconds) * time.Second
	}

	if opts.Create && !exists && opts.Branch != "" {
		if err := store.initBranch(opts.Branch); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// OpenInMemory opens an in-memory bare repository, primarily for tests.
func OpenInMemory(opts OpenOptions) (*GitStore, error) {
	sig := DefaultSignature
	if opts.Author != "" {
		sig.Name = opts.Author
	}
	if opts.Email != "" {
		sig.Email = opts.Email
	}

	repo, err := git.Init(memory.NewStorage())
	if err != nil {
		return nil, fmt.Errorf("init in-memory repo: %w", err)
	}

	store := &GitStore{repo: repo, path: "", signature: sig}
	if opts.Branch != "" {
		if err := store.initBranch(opts.Branch); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func openBareAt(path string) (*git.Repository, error) {
	fs := osfs.New(path)
	storer := filesystem.NewStorageWithOptions(fs, cache.NewObjectLRUDefault(), filesystem.Options{ExclusiveAccess: true})
	repo, err := git.Open(storer, nil)
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", path, err)
	}
	return repo, nil
}

func initBareAt(path string) (*git.Repository, error) {
	fs := osfs.New(path)
	storer := filesystem.NewStorageWithOptions(fs, cache.NewObjectLRUDefault(), filesystem.Options{ExclusiveAccess: true})
	repo, err := git.Init(storer)
	if err != nil {
		return nil, fmt.Errorf("init repo %s: %w", path, err)
	}
	return repo, nil
}

// initBranch writes an empty tree, an initial rootless commit, points
// refs/heads/<branch> at it, sets HEAD symbolically, and seeds the reflog.
func (g *GitStore) initBranch(branch string) error {
	_, err := withRepoLock(g.gitdir(), g.timeout(), func() (struct{}, error) {
		emptyTreeHash, err := writeTree(g.repo.Storer, nil)
		if err != nil {
			return struct{}{}, err
		}

		now := time.Now()
		sig := object.Signature{Name: g.signature.Name, Email: g.signature.Email, When: now}
		commit := &object.Commit{
			Author:    sig,
			Committer: sig,
			TreeHash:  emptyTreeHash,
			Message:   fmt.Sprintf("Initialize %s", branch),
		}
		obj := g.repo.Storer.NewEncodedObject()
		if err := commit.Encode(obj); err != nil {
			return struct{}{}, fmt.Errorf("encode initial commit: %w", err)
		}
		commitHash, err := g.repo.Storer.SetEncodedObject(obj)
		if err != nil {
			return struct{}{}, fmt.Errorf("store initial commit: %w", err)
		}

		refName := plumbing.NewBranchReferenceName(branch)
		if err := g.repo.Storer.SetReference(plumbing.NewHashReference(refName, commitHash)); err != nil {
			return struct{}{}, fmt.Errorf("set branch ref %s: %w", refName, err)
		}
		if err := g.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, refName)); err != nil {
			return struct{}{}, fmt.Errorf("set HEAD: %w", err)
		}

		_ = writeReflogEntry(g.gitdir(), string(refName), ReflogEntry{
			OldSHA:    zeroSHA,
			NewSHA:    commitHash.String(),
			Committer: fmt.Sprintf("%s <%s>", g.signature.Name, g.signature.Email),
			Timestamp: now.Unix(),
			Message:   fmt.Sprintf("commit: Initialize %s", branch),
		})

		return struct{}{}, nil
	})
	return err
}

func (g *GitStore) timeout() time.Duration { return g.lockTimeout }

// gitdir returns the directory holding the repository's loose refs/logs, the
// same path backing reflog files and the advisory lock. The in-memory store
// has no on-disk gitdir; callers relying on reflogs/locking only apply to
// file-backed stores.
func (g *GitStore) gitdir() string { return g.path }

// Path returns the canonical on-disk path of this repository (empty for
// in-memory stores). Used for cross-repo identity comparisons.
func (g *GitStore) Path() string { return g.path }

// sameStore reports whether a and b are the same repository: by handle
// identity first, by canonical on-disk path as a fallback. Two in-memory
// stores (empty path) are never considered the same via the fallback.
func sameStore(a, b *GitStore) bool {
	if a == b {
		return true
	}
	return a.path != "" && a.path == b.path
}

// Signature returns the identity used for commits made through this store.
func (g *GitStore) Signature() Signature { return g.signature }

// Branches returns the branch ref collection (refs/heads/*).
func (g *GitStore) Branches() *RefDict { return &RefDict{store: g, prefix: "refs/heads/", branch: true} }

// Tags returns the tag ref collection (refs/tags/*).
func (g *GitStore) Tags() *RefDict { return &RefDict{store: g, prefix: "refs/tags/", branch: false} }

// Fs resolves the Fs for branch, or HEAD's branch if branch is nil.
func (g *GitStore) Fs(branch *string) (*Fs, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	name := ""
	if branch != nil {
		name = *branch
	} else {
		head, err := g.repo.Storer.Reference(plumbing.HEAD)
		if err != nil {
			return nil, fmt.Errorf("resolve HEAD: %w", err)
		}
		if head.Type() != plumbing.SymbolicReference {
			return nil, fmt.Errorf("%w: HEAD is not a symbolic reference", ErrNotFound)
		}
		target := head.Target()
		name = target.Short()
	}

	refName := plumbing.NewBranchReferenceName(name)
	ref, err := g.repo.Storer.Reference(refName)
	if err != nil {
		return nil, fmt.Errorf("%w: branch %q", ErrNotFound, name)
	}
	return g.fsFromCommit(ref.Hash(), &name)
}

func (g *GitStore) fsFromCommit(commitHash plumbing.Hash, branch *string) (*Fs, error) {
	commit, err := object.GetCommit(g.repo.Storer, commitHash)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", commitHash, err)
	}
	binding := RefBinding{Detached: true}
	if branch != nil {
		binding = RefBinding{Branch: *branch}
	}
	return &Fs{
		store:     g,
		commitOID: &commitHash,
		treeOID:   commit.TreeHash,
		binding:   binding,
	}, nil
}
