package gitstore

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Backup mirrors every ref in this store onto the bare repository at dest,
// creating it first if it doesn't exist. Object data reachable from any
// local ref is copied as needed; dest refs absent locally are deleted, so
// dest ends up an exact mirror.
func (g *GitStore) Backup(dest string) (*MirrorDiff, error) {
	destStore, err := Open(dest, OpenOptions{Create: true})
	if err != nil {
		return nil, fmt.Errorf("open mirror destination %s: %w", dest, err)
	}
	return mirrorRefs(g, destStore)
}

// Restore mirrors every ref from the bare repository at src onto this
// store, overwriting local refs to match and deleting local-only refs.
func (g *GitStore) Restore(src string) (*MirrorDiff, error) {
	srcStore, err := Open(src, OpenOptions{})
	if err != nil {
		return nil, fmt.Errorf("open mirror source %s: %w", src, err)
	}
	return mirrorRefs(srcStore, g)
}

// mirrorRefs copies every object reachable from src's refs into dest (skipping
// objects dest already has), then makes dest's ref set identical to src's.
func mirrorRefs(src, dest *GitStore) (*MirrorDiff, error) {
	src.mu.RLock()
	srcRefs, err := listAllRefs(src)
	src.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	dest.mu.Lock()
	defer dest.mu.Unlock()

	destRefs, err := listAllRefs(dest)
	if err != nil {
		return nil, err
	}

	diff := &MirrorDiff{}

	for name, hash := range srcRefs {
		if err := copyReachable(src, dest, hash); err != nil {
			return nil, fmt.Errorf("copy objects for %s: %w", name, err)
		}
		oldHash, existed := destRefs[name]
		if err := dest.repo.Storer.SetReference(plumbing.NewHashReference(name, hash)); err != nil {
			return nil, fmt.Errorf("set ref %s: %w", name, err)
		}
		change := RefChange{Name: string(name), NewTarget: hash.String()}
		if existed {
			if oldHash == hash {
				continue
			}
			change.OldTarget = oldHash.String()
			diff.RefsUpdated = append(diff.RefsUpdated, change)
		} else {
			diff.RefsAdded = append(diff.RefsAdded, change)
		}
	}

	for name, oldHash := range destRefs {
		if _, ok := srcRefs[name]; !ok {
			if err := dest.repo.Storer.RemoveReference(name); err != nil {
				return nil, fmt.Errorf("remove ref %s: %w", name, err)
			}
			diff.RefsDeleted = append(diff.RefsDeleted, RefChange{Name: string(name), OldTarget: oldHash.String()})
		}
	}

	return diff, nil
}

func listAllRefs(g *GitStore) (map[plumbing.ReferenceName]plumbing.Hash, error) {
	iter, err := g.repo.Storer.IterReferences()
	if err != nil {
		return nil, fmt.Errorf("iterate refs: %w", err)
	}
	out := map[plumbing.ReferenceName]plumbing.Hash{}
	err = iter.ForEach(func(r *plumbing.Reference) error {
		if r.Type() == plumbing.HashReference {
			out[r.Name()] = r.Hash()
		}
		return nil
	})
	return out, err
}

// copyReachable copies every object reachable from commitHash in src into
// dest that dest doesn't already have, walking commits, trees and blobs.
func copyReachable(src, dest *GitStore, commitHash plumbing.Hash) error {
	seen := map[plumbing.Hash]bool{}
	var walk func(h plumbing.Hash, t plumbing.ObjectType) error
	walk = func(h plumbing.Hash, t plumbing.ObjectType) error {
		if h.IsZero() || seen[h] {
			return nil
		}
		seen[h] = true

		if _, err := dest.repo.Storer.EncodedObject(t, h); err == nil {
			return nil // already present
		}

		obj, err := src.repo.Storer.EncodedObject(t, h)
		if err != nil {
			return fmt.Errorf("read object %s: %w", h, err)
		}
		if _, err := dest.repo.Storer.SetEncodedObject(obj); err != nil {
			return fmt.Errorf("write object %s: %w", h, err)
		}

		switch t {
		case plumbing.CommitObject:
			c, err := object.GetCommit(src.repo.Storer, h)
			if err != nil {
				return fmt.Errorf("read commit %s: %w", h, err)
			}
			if err := walk(c.TreeHash, plumbing.TreeObject); err != nil {
				return err
			}
			for _, p := range c.ParentHashes {
				if err := walk(p, plumbing.CommitObject); err != nil {
					return err
				}
			}
		case plumbing.TreeObject:
			tree, err := object.GetTree(src.repo.Storer, h)
			if err != nil {
				return fmt.Errorf("read tree %s: %w", h, err)
			}
			for _, e := range tree.Entries {
				childType := plumbing.BlobObject
				if e.Mode == filemode.Dir {
					childType = plumbing.TreeObject
				}
				if err := walk(e.Hash, childType); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(commitHash, plumbing.CommitObject)
}
