package gitstore

import "testing"

func TestOpenInMemoryCreatesInitialCommit(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}

	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}

	msg, err := fs.Message()
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if msg == "" {
		t.Error("expected a non-empty initial commit message")
	}

	if !fs.Writable() {
		t.Error("branch-bound snapshot should be writable")
	}
	if fs.RefName() != "refs/heads/main" {
		t.Errorf("RefName = %q, want refs/heads/main", fs.RefName())
	}
}

func TestOpenResolvesHEADBranch(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "trunk"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}

	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs(nil) failed: %v", err)
	}
	if fs.RefName() != "refs/heads/trunk" {
		t.Errorf("RefName = %q, want refs/heads/trunk", fs.RefName())
	}
}

func TestBranchesAndTagsEmptyInitially(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}

	tags, err := store.Tags().List()
	if err != nil {
		t.Fatalf("Tags().List failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("expected no tags, got %v", tags)
	}

	branches, err := store.Branches().List()
	if err != nil {
		t.Fatalf("Branches().List failed: %v", err)
	}
	if len(branches) != 1 || branches[0] != "main" {
		t.Errorf("Branches().List = %v, want [main]", branches)
	}
}
