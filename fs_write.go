package gitstore

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v6/plumbing/filemode"
)

// WriteOptions controls a single-path write.
type WriteOptions struct {
	Mode filemode.FileMode // zero means filemode.Regular
}

// Write stores data at path and commits, advancing the branch this
// snapshot is bound to. Returns the new snapshot. Fails with ErrPermission
// if this snapshot isn't bound to a branch.
func (f *Fs) Write(path string, data []byte, opts WriteOptions) (*Fs, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if IsRootPath(norm) {
		return nil, fmt.Errorf("%w: cannot write to the root", ErrInvalidPath)
	}
	mode := opts.Mode
	if mode == 0 {
		mode = filemode.Regular
	}
	oid, err := writeBlob(f.store.repo.Storer, data)
	if err != nil {
		return nil, err
	}
	return commitChanges(f, []edit{{Path: norm, Write: &write{OID: oid, Mode: mode}}}, FormatCommitMessage("write "+norm, nil))
}

// WriteText is Write for a string.
func (f *Fs) WriteText(path, text string, opts WriteOptions) (*Fs, error) {
	return f.Write(path, []byte(text), opts)
}

// WriteFromFile reads srcPath off disk (preserving its executable bit on
// unix) and writes its contents to path in the store.
func (f *Fs) WriteFromFile(path, srcPath string) (*Fs, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", srcPath, err)
	}
	mode, err := modeFromDisk(srcPath)
	if err != nil {
		return nil, err
	}
	return f.Write(path, data, WriteOptions{Mode: mode})
}

// WriteSymlink writes path as a symlink pointing at target.
func (f *Fs) WriteSymlink(path, target string) (*Fs, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	oid, err := writeBlob(f.store.repo.Storer, []byte(target))
	if err != nil {
		return nil, err
	}
	return commitChanges(f, []edit{{Path: norm, Write: &write{OID: oid, Mode: filemode.Symlink}}}, FormatCommitMessage("symlink "+norm, nil))
}

// Remove deletes path (which must exist) and commits.
func (f *Fs) Remove(path string) (*Fs, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if _, _, ok, err := entryAt(f.store.repo.Storer, f.treeOID, norm); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, norm)
	}
	return commitChanges(f, []edit{{Path: norm, Write: nil}}, FormatCommitMessage("remove "+norm, nil))
}

// Rename moves the entry at oldPath to newPath in one commit.
func (f *Fs) Rename(oldPath, newPath string) (*Fs, error) {
	oldNorm, err := NormalizePath(oldPath)
	if err != nil {
		return nil, err
	}
	newNorm, err := NormalizePath(newPath)
	if err != nil {
		return nil, err
	}
	oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, oldNorm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, oldNorm)
	}
	edits := []edit{
		{Path: oldNorm, Write: nil},
		{Path: newNorm, Write: &write{OID: oid, Mode: mode}},
	}
	return commitChanges(f, edits, FormatCommitMessage(fmt.Sprintf("rename %s -> %s", oldNorm, newNorm), nil))
}

// MovePaths moves multiple sources into destDir (which must already be a
// directory, or the root) in a single commit.
func (f *Fs) MovePaths(sources []string, destDir string) (*Fs, error) {
	destNorm, err := NormalizePath(destDir)
	if err != nil {
		return nil, err
	}
	if !IsRootPath(destNorm) {
		_, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, destNorm)
		if err != nil {
			return nil, err
		}
		if !ok || mode != filemode.Dir {
			return nil, fmt.Errorf("%w: %s", ErrNotADirectory, destNorm)
		}
	}

	var edits []edit
	for _, src := range sources {
		srcNorm, err := NormalizePath(src)
		if err != nil {
			return nil, err
		}
		oid, mode, ok, err := entryAt(f.store.repo.Storer, f.treeOID, srcNorm)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, srcNorm)
		}
		base := baseName(srcNorm)
		dest := base
		if !IsRootPath(destNorm) {
			dest = destNorm + "/" + base
		}
		edits = append(edits, edit{Path: srcNorm, Write: nil})
		edits = append(edits, edit{Path: dest, Write: &write{OID: oid, Mode: mode}})
	}
	return commitChanges(f, edits, FormatCommitMessage("move paths into "+destNorm, nil))
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// Apply commits an arbitrary set of writes and removals in one commit, the
// same primitive a Batch funnels through.
func (f *Fs) Apply(writes []WriteEntry, removes []string, message string) (*Fs, *ChangeReport, error) {
	b := f.Batch()
	for _, w := range writes {
		if err := b.writeEntry(w); err != nil {
			return nil, nil, err
		}
	}
	for _, p := range removes {
		if err := b.Remove(p); err != nil {
			return nil, nil, err
		}
	}
	newFs, report, err := b.commit(message)
	return newFs, report, err
}

// WriteEntry is one write bundled into Apply or a Batch.
type WriteEntry struct {
	Path string
	Data []byte
	Mode filemode.FileMode // zero means filemode.Regular
}
