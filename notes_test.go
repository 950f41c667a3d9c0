package gitstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v6/plumbing/object"
)

func TestNotesSetGetRemove(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}

	oid := fs.CommitHash()
	notes := store.Notes()

	if ok, err := notes.Has(oid); err != nil || ok {
		t.Fatalf("Has before Set: ok=%v err=%v", ok, err)
	}

	if err := notes.Set(oid, []byte("reviewed")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, ok, err := notes.Get(oid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || string(data) != "reviewed" {
		t.Errorf("Get = %q, %v, want %q, true", data, ok, "reviewed")
	}

	if err := notes.Remove(oid); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, err := notes.Get(oid); err != nil || ok {
		t.Errorf("Get after Remove: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestNotesRemoveAbsentKeyFails(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}

	if err := store.Notes().Remove(fs.CommitHash()); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Remove of absent note: got %v, want ErrKeyNotFound", err)
	}
}

func TestNotesRejectsInvalidKey(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	notes := store.Notes()

	if _, _, err := notes.Get("not-a-hash-or-ref"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("Get with bad key: got %v, want ErrInvalidHash", err)
	}
	if err := notes.Set("not-a-hash-or-ref", []byte("x")); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("Set with bad key: got %v, want ErrInvalidHash", err)
	}
}

func TestNotesResolveByBranchName(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	notes := store.Notes()

	if err := notes.Set("main", []byte("on the tip")); err != nil {
		t.Fatalf("Set by branch name failed: %v", err)
	}
	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	data, ok, err := notes.Get(fs.CommitHash())
	if err != nil || !ok || string(data) != "on the tip" {
		t.Errorf("Get by OID after Set by branch name = %q, %v, %v, want %q, true, nil", data, ok, err, "on the tip")
	}
}

func TestNotesGetSetForCurrentBranch(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	notes := store.Notes()

	if err := notes.SetForCurrentBranch([]byte("head note")); err != nil {
		t.Fatalf("SetForCurrentBranch failed: %v", err)
	}
	data, ok, err := notes.GetForCurrentBranch()
	if err != nil || !ok || string(data) != "head note" {
		t.Errorf("GetForCurrentBranch = %q, %v, %v, want %q, true, nil", data, ok, err, "head note")
	}
}

func TestNotesBatchCoalescesIntoOneCommit(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo.git")
	store, err := Open(repoPath, OpenOptions{Create: true, Branch: "main"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	fs2, err := fs.WriteText("a.txt", "1", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	notes := store.Notes()
	batch := notes.Batch()
	if err := batch.Set(fs.CommitHash(), []byte("root note")); err != nil {
		t.Fatalf("batch Set failed: %v", err)
	}
	if err := batch.Set(fs2.CommitHash(), []byte("second note")); err != nil {
		t.Fatalf("batch Set failed: %v", err)
	}
	if err := batch.Commit("batched notes"); err != nil {
		t.Fatalf("batch Commit failed: %v", err)
	}

	ref, err := store.repo.Storer.Reference("refs/notes/commits")
	if err != nil {
		t.Fatalf("read notes ref failed: %v", err)
	}
	c, err := object.GetCommit(store.repo.Storer, ref.Hash())
	if err != nil {
		t.Fatalf("read notes commit failed: %v", err)
	}
	if c.NumParents() != 0 {
		t.Errorf("notes commit has %d parents, want 0 (single coalesced commit)", c.NumParents())
	}

	for _, oid := range []string{fs.CommitHash(), fs2.CommitHash()} {
		if ok, err := notes.Has(oid); err != nil || !ok {
			t.Errorf("Has(%s) after batch commit = %v, %v, want true, nil", oid, ok, err)
		}
	}

	if err := batch.Commit("again"); !errors.Is(err, ErrBatchClosed) {
		t.Errorf("second Commit on closed batch: got %v, want ErrBatchClosed", err)
	}
}
