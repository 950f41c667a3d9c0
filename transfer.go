package gitstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
)

// CopyInOptions controls CopyIn.
type CopyInOptions struct {
	Exclude  *ExcludeFilter
	DryRun   bool
	Checksum bool // when true (default), skip writes whose content already matches
}

// DefaultCopyInOptions returns the default CopyIn behavior: checksum on.
func DefaultCopyInOptions() CopyInOptions { return CopyInOptions{Checksum: true} }

// CopyOutOptions controls CopyOut.
type CopyOutOptions struct {
	Exclude *ExcludeFilter
	DryRun  bool
}

// SyncOptions controls SyncIn/SyncOut: like Copy but also deletes
// destination entries that no longer exist at the source.
type SyncOptions struct {
	Exclude  *ExcludeFilter
	DryRun   bool
	Checksum bool
}

func DefaultSyncOptions() SyncOptions { return SyncOptions{Checksum: true} }

// CopyIn imports every file under diskDir into the snapshot under storeDir,
// additively: files present on disk are added or updated, nothing already
// in the store is removed. Returns the resulting snapshot (unchanged from f
// if opts.DryRun or nothing needed writing) and a report of what changed.
func (f *Fs) CopyIn(diskDir, storeDir string, opts CopyInOptions) (*Fs, *ChangeReport, error) {
	return f.transferIn(diskDir, storeDir, opts.Exclude, opts.DryRun, opts.Checksum, false)
}

// SyncIn behaves like CopyIn but also removes store entries under storeDir
// that no longer exist on disk.
func (f *Fs) SyncIn(diskDir, storeDir string, opts SyncOptions) (*Fs, *ChangeReport, error) {
	return f.transferIn(diskDir, storeDir, opts.Exclude, opts.DryRun, opts.Checksum, true)
}

func (f *Fs) transferIn(diskDir, storeDir string, exclude *ExcludeFilter, dryRun, checksum, deleteMissing bool) (*Fs, *ChangeReport, error) {
	storeNorm, err := NormalizePath(storeDir)
	if err != nil {
		return nil, nil, err
	}

	report := &ChangeReport{}
	var edits []edit
	seen := map[string]bool{}

	walkErr := filepath.WalkDir(diskDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			report.Errors = append(report.Errors, ChangeError{Path: path, Message: err.Error()})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(diskDir, path)
		if err != nil {
			report.Errors = append(report.Errors, ChangeError{Path: path, Message: err.Error()})
			return nil
		}
		rel = filepath.ToSlash(rel)
		isDir := false
		if exclude != nil && exclude.IsExcluded(rel, isDir) {
			return nil
		}

		storePath := rel
		if storeNorm != "" {
			storePath = storeNorm + "/" + rel
		}
		seen[storePath] = true

		mode, err := modeFromDisk(path)
		if err != nil {
			report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
			return nil
		}

		var data []byte
		if mode == filemode.Symlink {
			target, err := os.Readlink(path)
			if err != nil {
				report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
				return nil
			}
			data = []byte(target)
		} else {
			data, err = os.ReadFile(path)
			if err != nil {
				report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
				return nil
			}
		}

		existingOID, existingMode, exists, err := entryAt(f.store.repo.Storer, f.treeOID, storePath)
		if err != nil {
			report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
			return nil
		}

		newHash := plumbing.ComputeHash(plumbing.BlobObject, data)
		if checksum && exists && existingMode == mode && existingOID == newHash {
			return nil // unchanged, skip
		}

		if !dryRun {
			blobHash, err := writeBlob(f.store.repo.Storer, data)
			if err != nil {
				report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
				return nil
			}
			edits = append(edits, edit{Path: storePath, Write: &write{OID: blobHash, Mode: mode}})
		}
		if exists {
			report.Update = append(report.Update, storePath)
		} else {
			report.Add = append(report.Add, storePath)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", diskDir, walkErr)
	}

	if deleteMissing {
		existing, err := f.Walk(storeNorm)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, err
		}
		for _, p := range existing {
			if !seen[p] {
				if !dryRun {
					edits = append(edits, edit{Path: p, Write: nil})
				}
				report.Delete = append(report.Delete, p)
			}
		}
	}

	if dryRun || len(edits) == 0 {
		return f, report, nil
	}

	newFs, err := commitChanges(f, edits, FormatCommitMessage(fmt.Sprintf("copy in %s", diskDir), nil))
	if err != nil {
		return nil, nil, err
	}
	return newFs, report, nil
}

// CopyOut exports every file under storeDir in this snapshot to diskDir,
// additively: files in the store are written or overwritten on disk,
// nothing already on disk is removed.
func (f *Fs) CopyOut(storeDir, diskDir string, opts CopyOutOptions) (*ChangeReport, error) {
	return f.transferOut(storeDir, diskDir, opts.Exclude, opts.DryRun, false)
}

// SyncOut behaves like CopyOut but also removes disk entries under diskDir
// that no longer exist in the store.
func (f *Fs) SyncOut(storeDir, diskDir string, opts SyncOptions) (*ChangeReport, error) {
	return f.transferOut(storeDir, diskDir, opts.Exclude, opts.DryRun, true)
}

func (f *Fs) transferOut(storeDir, diskDir string, exclude *ExcludeFilter, dryRun, del bool) (*ChangeReport, error) {
	storeNorm, err := NormalizePath(storeDir)
	if err != nil {
		return nil, err
	}

	rels, err := f.Walk(storeNorm)
	if err != nil {
		return nil, err
	}

	report := &ChangeReport{}
	seen := map[string]bool{}

	for _, storePath := range rels {
		rel := storePath
		if storeNorm != "" {
			rel = storePath[len(storeNorm)+1:]
		}
		if exclude != nil && exclude.IsExcluded(rel, false) {
			continue
		}
		diskPath := filepath.Join(diskDir, filepath.FromSlash(rel))
		seen[diskPath] = true

		mode, err := resolveMode(f, storePath)
		if err != nil {
			report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
			continue
		}

		_, statErr := os.Lstat(diskPath)
		existed := statErr == nil

		if !dryRun {
			if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
				report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
				continue
			}
			if mode == filemode.Symlink {
				target, err := f.Readlink(storePath)
				if err != nil {
					report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
					continue
				}
				_ = os.Remove(diskPath)
				if err := os.Symlink(target, diskPath); err != nil {
					report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
					continue
				}
			} else {
				data, err := f.Read(storePath)
				if err != nil {
					report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
					continue
				}
				perm := os.FileMode(0o644)
				if mode == filemode.Executable {
					perm = 0o755
				}
				if err := os.WriteFile(diskPath, data, perm); err != nil {
					report.Errors = append(report.Errors, ChangeError{Path: rel, Message: err.Error()})
					continue
				}
			}
		}

		if existed {
			report.Update = append(report.Update, rel)
		} else {
			report.Add = append(report.Add, rel)
		}
	}

	if del {
		_ = filepath.WalkDir(diskDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if seen[path] {
				return nil
			}
			rel, _ := filepath.Rel(diskDir, path)
			rel = filepath.ToSlash(rel)
			if exclude != nil && exclude.IsExcluded(rel, false) {
				return nil
			}
			if !dryRun {
				_ = os.Remove(path)
			}
			report.Delete = append(report.Delete, rel)
			return nil
		})
		if !dryRun {
			pruneEmptyDirs(diskDir)
		}
	}

	return report, nil
}

// pruneEmptyDirs removes every directory under root left empty by a delete
// pass, bottom-up, repeating until a full sweep removes nothing (so a chain
// like a/b/c left empty by deleting its only file collapses entirely rather
// than leaving a/ and a/b/ behind). root itself is never removed.
func pruneEmptyDirs(root string) {
	for {
		var dirs []string
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || path == root || !d.IsDir() {
				return nil
			}
			dirs = append(dirs, path)
			return nil
		})
		if len(dirs) == 0 {
			return
		}
		sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

		removed := false
		for _, dir := range dirs {
			entries, err := os.ReadDir(dir)
			if err != nil || len(entries) != 0 {
				continue
			}
			if os.Remove(dir) == nil {
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

func resolveMode(f *Fs, path string) (filemode.FileMode, error) {
	_, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return mode, nil
}
