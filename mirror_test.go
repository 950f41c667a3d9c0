package gitstore

import (
	"path/filepath"
	"testing"
)

func TestBackupMirrorsRefsAndObjects(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "src.git")
	destPath := filepath.Join(t.TempDir(), "dest.git")

	src, err := Open(srcPath, OpenOptions{Create: true, Branch: "main"})
	if err != nil {
		t.Fatalf("Open(src) failed: %v", err)
	}
	fs, err := src.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	if _, err := fs.WriteText("a.txt", "hello", WriteOptions{}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	diff, err := src.Backup(destPath)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if len(diff.RefsAdded) != 1 {
		t.Fatalf("diff.RefsAdded = %v, want 1 entry", diff.RefsAdded)
	}

	dest, err := Open(destPath, OpenOptions{})
	if err != nil {
		t.Fatalf("Open(dest) failed: %v", err)
	}
	branch := "main"
	destFs, err := dest.Fs(&branch)
	if err != nil {
		t.Fatalf("Fs(dest) failed: %v", err)
	}
	text, err := destFs.ReadText("a.txt")
	if err != nil || text != "hello" {
		t.Errorf("mirrored a.txt = %q, %v, want %q", text, err, "hello")
	}
}

func TestBackupIsIdempotentWhenNothingChanged(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "src.git")
	destPath := filepath.Join(t.TempDir(), "dest.git")

	src, err := Open(srcPath, OpenOptions{Create: true, Branch: "main"})
	if err != nil {
		t.Fatalf("Open(src) failed: %v", err)
	}

	if _, err := src.Backup(destPath); err != nil {
		t.Fatalf("first Backup failed: %v", err)
	}
	diff, err := src.Backup(destPath)
	if err != nil {
		t.Fatalf("second Backup failed: %v", err)
	}
	if !diff.InSync() {
		t.Errorf("second Backup should report no ref changes, got %+v", diff)
	}
}
