package gitstore

import (
	"testing"

	"github.com/go-git/go-git/v6/plumbing/filemode"
)

func TestRebuildTreePrunesEmptySubdirectories(t *testing.T) {
	fs := newTestFs(t)
	fs2, err := fs.WriteText("a/b/c.txt", "x", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	fs3, err := fs2.Remove("a/b/c.txt")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if ok, _ := fs3.Exists("a"); ok {
		t.Error("directory 'a' should have been pruned once its only leaf was removed")
	}
}

func TestBlobToTreeTransition(t *testing.T) {
	fs := newTestFs(t)
	fs2, err := fs.WriteText("a", "leaf", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// a currently a file; remove it, then make it a directory by writing under a/b.
	fs3, err := fs2.Remove("a")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	fs4, err := fs3.WriteText("a/b", "nested", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	isDir, err := fs4.IsDir("a")
	if err != nil {
		t.Fatalf("IsDir failed: %v", err)
	}
	if !isDir {
		t.Error("a should now be a directory")
	}
}

func TestStatReportsModeAndSize(t *testing.T) {
	fs := newTestFs(t)
	fs2, err := fs.Write("exe", []byte("#!/bin/sh\n"), WriteOptions{Mode: filemode.Executable})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	st, err := fs2.Stat("exe")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.Mode != filemode.Executable {
		t.Errorf("Stat.Mode = %v, want Executable", st.Mode)
	}
	if st.Size != 10 {
		t.Errorf("Stat.Size = %d, want 10", st.Size)
	}
}
