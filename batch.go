package gitstore

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v6/plumbing/filemode"
)

// Batch accumulates writes and removals against a single snapshot and
// commits them all atomically. Paths may be overwritten repeatedly before
// committing; the last write for a path wins, and removing a path clears
// any pending write for it (put-after-delete and delete-after-put both
// resolve to the most recent call).
type Batch struct {
	fs      *Fs
	writes  map[string]write
	order   []string // preserves first-seen order for deterministic edit lists
	removes map[string]bool
	closed  bool
}

// Batch starts a new batch of pending writes/removals against this snapshot.
func (f *Fs) Batch() *Batch {
	return &Batch{fs: f, writes: map[string]write{}, removes: map[string]bool{}}
}

func (b *Batch) requireOpen() error {
	if b.closed {
		return ErrBatchClosed
	}
	return nil
}

func (b *Batch) track(path string) {
	for _, p := range b.order {
		if p == path {
			return
		}
	}
	b.order = append(b.order, path)
}

// Write queues a blob write at path with the default (Regular) mode.
func (b *Batch) Write(path string, data []byte) error {
	return b.WriteWithMode(path, data, filemode.Regular)
}

// WriteWithMode queues a blob write at path with an explicit mode.
func (b *Batch) WriteWithMode(path string, data []byte, mode filemode.FileMode) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if IsRootPath(norm) {
		return fmt.Errorf("%w: cannot write to the root", ErrInvalidPath)
	}
	oid, err := writeBlob(b.fs.store.repo.Storer, data)
	if err != nil {
		return err
	}
	delete(b.removes, norm)
	b.writes[norm] = write{OID: oid, Mode: mode}
	b.track(norm)
	return nil
}

func (b *Batch) writeEntry(w WriteEntry) error {
	mode := w.Mode
	if mode == 0 {
		mode = filemode.Regular
	}
	return b.WriteWithMode(w.Path, w.Data, mode)
}

// WriteFromFile queues a write sourced from a file on disk, preserving its
// executable bit (unix only).
func (b *Batch) WriteFromFile(path, srcPath string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", srcPath, err)
	}
	mode, err := modeFromDisk(srcPath)
	if err != nil {
		return err
	}
	return b.WriteWithMode(path, data, mode)
}

// WriteSymlink queues a symlink write at path pointing at target.
func (b *Batch) WriteSymlink(path, target string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	oid, err := writeBlob(b.fs.store.repo.Storer, []byte(target))
	if err != nil {
		return err
	}
	delete(b.removes, norm)
	b.writes[norm] = write{OID: oid, Mode: filemode.Symlink}
	b.track(norm)
	return nil
}

// Remove queues path for deletion, discarding any pending write for it.
func (b *Batch) Remove(path string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	delete(b.writes, norm)
	b.removes[norm] = true
	b.track(norm)
	return nil
}

// IsClosed reports whether Commit has already been called on this batch.
func (b *Batch) IsClosed() bool { return b.closed }

// Commit applies every queued write/remove in one commit and returns the
// resulting snapshot along with a report of what changed. Calling Commit a
// second time returns ErrBatchClosed. An empty batch returns the original
// snapshot and an empty report without writing a commit.
func (b *Batch) Commit(message string) (*Fs, *ChangeReport, error) {
	return b.commit(message)
}

func (b *Batch) commit(message string) (*Fs, *ChangeReport, error) {
	if err := b.requireOpen(); err != nil {
		return nil, nil, err
	}
	b.closed = true

	if len(b.order) == 0 {
		return b.fs, &ChangeReport{}, nil
	}

	edits := make([]edit, 0, len(b.order))
	for _, path := range b.order {
		if w, ok := b.writes[path]; ok {
			wCopy := w
			edits = append(edits, edit{Path: path, Write: &wCopy})
		} else {
			edits = append(edits, edit{Path: path, Write: nil})
		}
	}

	newFs, err := commitChanges(b.fs, edits, message)
	if err != nil {
		return nil, nil, err
	}
	report, err := diffTrees(newFs.store.repo.Storer, b.fs.treeOID, newFs.treeOID)
	if err != nil {
		return nil, nil, err
	}
	return newFs, report, nil
}
