package gitstore

import (
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
)

// Signature identifies the author/committer of commits written by a GitStore.
type Signature struct {
	Name  string
	Email string
}

// DefaultSignature is used by Open when OpenOptions leaves Author/Email unset.
var DefaultSignature = Signature{Name: "gitstore", Email: "gitstore@localhost"}

// OpenOptions configures Open.
type OpenOptions struct {
	// Create the bare repository at the given path if it doesn't exist.
	Create bool
	// Branch is the default branch created (and pointed to by HEAD) when
	// Create is true and the repository is new. Ignored if the repository
	// already exists.
	Branch string
	// Author/Email override DefaultSignature for commits made through this store.
	Author string
	Email  string
	// LockTimeoutSeconds overrides the default 30s advisory-lock acquisition
	// timeout. Zero means use the default.
	LockTimeoutSeconds int
}

// WalkEntry is one entry yielded while walking or listing a tree.
type WalkEntry struct {
	Name string
	OID  plumbing.Hash
	Mode filemode.FileMode
}

// FileType classifies a tree entry's mode.
type FileType int

const (
	FileTypeBlob FileType = iota
	FileTypeExecutable
	FileTypeLink
	FileTypeTree
)

func fileTypeFromMode(mode filemode.FileMode) (FileType, bool) {
	switch mode {
	case filemode.Regular:
		return FileTypeBlob, true
	case filemode.Executable:
		return FileTypeExecutable, true
	case filemode.Symlink:
		return FileTypeLink, true
	case filemode.Dir:
		return FileTypeTree, true
	default:
		return 0, false
	}
}

func (t FileType) IsFile() bool { return t == FileTypeBlob || t == FileTypeExecutable }
func (t FileType) IsDir() bool  { return t == FileTypeTree }
func (t FileType) IsLink() bool { return t == FileTypeLink }

func (e WalkEntry) FileType() (FileType, bool) { return fileTypeFromMode(e.Mode) }

// StatResult is returned by Fs.Stat.
type StatResult struct {
	Mode  filemode.FileMode
	Type  FileType
	Size  int64
	Hash  string
	Nlink int
	Mtime int64 // commit time, unix seconds
}

// ChangeActionKind classifies a single ChangeAction.
type ChangeActionKind int

const (
	ChangeAdd ChangeActionKind = iota
	ChangeUpdate
	ChangeDelete
)

// ChangeAction is one path-level action summarized by a ChangeReport.
type ChangeAction struct {
	Kind ChangeActionKind
	Path string
}

// ChangeError records a per-path failure encountered while building a ChangeReport.
type ChangeError struct {
	Path    string
	Message string
}

// ChangeReport summarizes the outcome of a sync/copy/import/cross-ref operation.
type ChangeReport struct {
	Add      []string
	Update   []string
	Delete   []string
	Errors   []ChangeError
	Warnings []string
}

// InSync reports whether nothing changed.
func (r *ChangeReport) InSync() bool {
	return len(r.Add) == 0 && len(r.Update) == 0 && len(r.Delete) == 0
}

// Total is the number of changes (add + update + delete).
func (r *ChangeReport) Total() int {
	return len(r.Add) + len(r.Update) + len(r.Delete)
}

// Actions returns every change action, sorted by path. Entries are not
// deduplicated: a path listed in two of Add/Update/Delete appears twice.
func (r *ChangeReport) Actions() []ChangeAction {
	out := make([]ChangeAction, 0, r.Total())
	for _, p := range r.Add {
		out = append(out, ChangeAction{ChangeAdd, p})
	}
	for _, p := range r.Update {
		out = append(out, ChangeAction{ChangeUpdate, p})
	}
	for _, p := range r.Delete {
		out = append(out, ChangeAction{ChangeDelete, p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Finalize aggregates any per-path errors into a single error via multierr,
// returning the report unchanged (and a nil error) when none were recorded.
func (r *ChangeReport) Finalize() (*ChangeReport, error) {
	if len(r.Errors) == 0 {
		return r, nil
	}
	return r, newChangeReportError(r.Errors)
}

// ReflogEntry is a single parsed line from a ref's reflog file.
type ReflogEntry struct {
	OldSHA    string
	NewSHA    string
	Committer string
	Timestamp int64
	Message   string
}

// RefChange describes one reference's movement during a mirror operation.
type RefChange struct {
	Name      string
	OldTarget string // empty if the ref didn't exist before
	NewTarget string // empty if the ref was deleted
}

// MirrorDiff summarizes the differences applied by Backup/Restore.
type MirrorDiff struct {
	RefsAdded   []RefChange
	RefsUpdated []RefChange
	RefsDeleted []RefChange
}

func (d *MirrorDiff) InSync() bool {
	return len(d.RefsAdded) == 0 && len(d.RefsUpdated) == 0 && len(d.RefsDeleted) == 0
}

func (d *MirrorDiff) Total() int {
	return len(d.RefsAdded) + len(d.RefsUpdated) + len(d.RefsDeleted)
}

// CommitInfo describes one commit as returned by Fs.Log.
type CommitInfo struct {
	Hash        string
	Message     string
	Time        int64
	AuthorName  string
	AuthorEmail string
}

// RefBinding records how an Fs snapshot is anchored: to a branch (writable),
// a tag (read-only), or detached from any ref entirely (read-only).
type RefBinding struct {
	Branch   string
	Tag      string
	Detached bool
}

func (b RefBinding) writable() bool { return b.Branch != "" }

func (b RefBinding) refName() string {
	switch {
	case b.Branch != "":
		return "refs/heads/" + b.Branch
	case b.Tag != "":
		return "refs/tags/" + b.Tag
	default:
		return ""
	}
}

// write is an already-serialized blob ready to be placed into a tree.
type write struct {
	OID  plumbing.Hash
	Mode filemode.FileMode
}

// edit is one path-level change fed to rebuildTree: nil Write means delete.
type edit struct {
	Path  string
	Write *write
}
