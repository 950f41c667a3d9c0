package gitstore

import "testing"

func TestRefDictSetGetDelete(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	fs2, err := fs.WriteText("a.txt", "1", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	tags := store.Tags()
	if err := tags.Set("v1", fs2); err != nil {
		t.Fatalf("tags.Set failed: %v", err)
	}

	got, err := tags.Get("v1")
	if err != nil {
		t.Fatalf("tags.Get failed: %v", err)
	}
	if got.CommitHash() != fs2.CommitHash() {
		t.Errorf("tag v1 = %s, want %s", got.CommitHash(), fs2.CommitHash())
	}
	if got.Writable() {
		t.Error("a tag-bound snapshot should be read-only")
	}

	if err := tags.Delete("v1"); err != nil {
		t.Fatalf("tags.Delete failed: %v", err)
	}
	if ok, err := tags.Has("v1"); err != nil || ok {
		t.Errorf("Has after Delete: ok=%v err=%v", ok, err)
	}
}

func TestRefDictListSorted(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	fs, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}

	tags := store.Tags()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := tags.Set(name, fs); err != nil {
			t.Fatalf("Set(%s) failed: %v", name, err)
		}
	}

	names, err := tags.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("List() = %v, want %v", names, want)
		}
	}
}
