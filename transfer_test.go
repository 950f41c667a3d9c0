package gitstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyInImportsDiskTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fs := newTestFs(t)
	newFs, report, err := fs.CopyIn(dir, "imported", DefaultCopyInOptions())
	if err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if report.Total() != 2 {
		t.Fatalf("report.Total() = %d, want 2: %+v", report.Total(), report)
	}
	text, err := newFs.ReadText("imported/a.txt")
	if err != nil || text != "a" {
		t.Errorf("imported/a.txt = %q, %v", text, err)
	}
}

func TestCopyInChecksumSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("same"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fs := newTestFs(t)
	fs2, _, err := fs.CopyIn(dir, "x", DefaultCopyInOptions())
	if err != nil {
		t.Fatalf("first CopyIn failed: %v", err)
	}

	fs3, report, err := fs2.CopyIn(dir, "x", DefaultCopyInOptions())
	if err != nil {
		t.Fatalf("second CopyIn failed: %v", err)
	}
	if !report.InSync() {
		t.Errorf("second CopyIn should be a no-op, got %+v", report)
	}
	if fs3.CommitHash() != fs2.CommitHash() {
		t.Error("unchanged CopyIn should not create a new commit")
	}
}

func TestSyncInDeletesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fs := newTestFs(t)
	fs2, _, err := fs.SyncIn(dir, "x", DefaultSyncOptions())
	if err != nil {
		t.Fatalf("SyncIn failed: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "b.txt")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	fs3, report, err := fs2.SyncIn(dir, "x", DefaultSyncOptions())
	if err != nil {
		t.Fatalf("second SyncIn failed: %v", err)
	}
	if len(report.Delete) != 1 || report.Delete[0] != "x/b.txt" {
		t.Errorf("report.Delete = %v, want [x/b.txt]", report.Delete)
	}
	if ok, _ := fs3.Exists("x/b.txt"); ok {
		t.Error("x/b.txt should have been deleted by SyncIn")
	}
}

func TestCopyOutWritesFilesToDisk(t *testing.T) {
	fs := newTestFs(t)
	fs2, err := fs.WriteText("out/a.txt", "hello", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	dest := t.TempDir()
	report, err := fs2.CopyOut("out", dest, CopyOutOptions{})
	if err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if report.Total() != 1 {
		t.Fatalf("report.Total() = %d, want 1", report.Total())
	}
	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("disk content = %q, want %q", data, "hello")
	}
}

// TestSyncOutPrunesEmptyDirectories covers the nested-directory orphan case:
// deleting the only file under a/b/c in the store should remove a/, a/b/,
// and a/b/c/ from disk, not just the file.
func TestSyncOutPrunesEmptyDirectories(t *testing.T) {
	fs := newTestFs(t)
	fs2, err := fs.WriteText("a/b/c/leaf.txt", "gone soon", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	fs2, err = fs2.WriteText("keep.txt", "stays", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	dest := t.TempDir()
	if _, err := fs2.SyncOut("", dest, SyncOptions{}); err != nil {
		t.Fatalf("first SyncOut failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a", "b", "c", "leaf.txt")); err != nil {
		t.Fatalf("leaf.txt missing after first SyncOut: %v", err)
	}

	fs3, err := fs2.Remove("a/b/c/leaf.txt")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	report, err := fs3.SyncOut("", dest, SyncOptions{})
	if err != nil {
		t.Fatalf("second SyncOut failed: %v", err)
	}
	if len(report.Delete) != 1 || report.Delete[0] != "a/b/c/leaf.txt" {
		t.Errorf("report.Delete = %v, want [a/b/c/leaf.txt]", report.Delete)
	}
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(dir))); !os.IsNotExist(err) {
			t.Errorf("%s still exists on disk after SyncOut orphaned it", dir)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "keep.txt")); err != nil {
		t.Errorf("keep.txt missing after SyncOut: %v", err)
	}
}
