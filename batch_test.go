package gitstore

import "testing"

func TestBatchCommitsAllWritesAtOnce(t *testing.T) {
	fs := newTestFs(t)
	b := fs.Batch()
	if err := b.Write("a.txt", []byte("1")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := b.Write("b.txt", []byte("2")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	newFs, report, err := b.Commit("add a and b")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Total() != 2 {
		t.Errorf("report.Total() = %d, want 2", report.Total())
	}
	if text, err := newFs.ReadText("a.txt"); err != nil || text != "1" {
		t.Errorf("a.txt = %q, %v", text, err)
	}
}

func TestBatchLastWriteWins(t *testing.T) {
	fs := newTestFs(t)
	b := fs.Batch()
	_ = b.Write("a.txt", []byte("first"))
	_ = b.Write("a.txt", []byte("second"))

	newFs, _, err := b.Commit("overwrite a")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	text, err := newFs.ReadText("a.txt")
	if err != nil || text != "second" {
		t.Errorf("a.txt = %q, %v, want %q", text, err, "second")
	}
}

func TestBatchRemoveAfterWriteWins(t *testing.T) {
	fs := newTestFs(t)
	b := fs.Batch()
	_ = b.Write("a.txt", []byte("x"))
	if err := b.Remove("a.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	newFs, _, err := b.Commit("write then remove")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if ok, _ := newFs.Exists("a.txt"); ok {
		t.Error("a.txt should not exist: remove after write should win")
	}
}

func TestBatchClosedAfterCommit(t *testing.T) {
	fs := newTestFs(t)
	b := fs.Batch()
	_ = b.Write("a.txt", []byte("x"))
	if _, _, err := b.Commit("first commit"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !b.IsClosed() {
		t.Error("batch should be closed after Commit")
	}
	if err := b.Write("b.txt", []byte("y")); err != ErrBatchClosed {
		t.Errorf("Write on closed batch: got %v, want ErrBatchClosed", err)
	}
	if _, _, err := b.Commit("second commit"); err != ErrBatchClosed {
		t.Errorf("second Commit: got %v, want ErrBatchClosed", err)
	}
}

func TestEmptyBatchCommitIsNoop(t *testing.T) {
	fs := newTestFs(t)
	b := fs.Batch()
	newFs, report, err := b.Commit("nothing to do")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if newFs.CommitHash() != fs.CommitHash() {
		t.Error("empty batch should return the same commit")
	}
	if !report.InSync() {
		t.Error("empty batch report should be in sync")
	}
}
