package gitstore

import (
	"errors"
	"testing"
)

func TestCopyFromRefWithinSameStore(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	main, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	main2, err := main.WriteText("src/data.txt", "payload", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	branchName := "feature"
	if err := store.Branches().Set(branchName, main); err != nil {
		t.Fatalf("Branches().Set failed: %v", err)
	}
	feature, err := store.Fs(&branchName)
	if err != nil {
		t.Fatalf("Fs(feature) failed: %v", err)
	}

	feature2, report, err := feature.CopyFromRef(main2, "src/data.txt", "dest/data.txt", CopyRefOptions{})
	if err != nil {
		t.Fatalf("CopyFromRef failed: %v", err)
	}
	if len(report.Add) != 1 || report.Add[0] != "dest/data.txt" {
		t.Errorf("report.Add = %v, want [dest/data.txt]", report.Add)
	}
	text, err := feature2.ReadText("dest/data.txt")
	if err != nil || text != "payload" {
		t.Errorf("dest/data.txt = %q, %v, want %q", text, err, "payload")
	}
}

// TestCopyFromRefMergeIsAdditiveByDefault exercises copying a source
// directory into a dest directory that already has unrelated content: the
// pre-existing entry must survive since Delete isn't requested.
func TestCopyFromRefMergeIsAdditiveByDefault(t *testing.T) {
	store, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	main, err := store.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	main2, err := main.WriteText("src/a.txt", "A", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	dest := main2
	dest, err = dest.WriteText("dest/existing.txt", "keep-me", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	dest, err = dest.WriteText("dest/a.txt", "stale", WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	merged, report, err := dest.CopyFromRef(main2, "src", "dest", CopyRefOptions{})
	if err != nil {
		t.Fatalf("CopyFromRef failed: %v", err)
	}

	text, err := merged.ReadText("dest/existing.txt")
	if err != nil || text != "keep-me" {
		t.Errorf("dest/existing.txt = %q, %v, want %q (must survive an additive merge)", text, err, "keep-me")
	}
	text, err = merged.ReadText("dest/a.txt")
	if err != nil || text != "A" {
		t.Errorf("dest/a.txt = %q, %v, want %q", text, err, "A")
	}
	if len(report.Update) != 1 || report.Update[0] != "dest/a.txt" {
		t.Errorf("report.Update = %v, want [dest/a.txt]", report.Update)
	}
	if len(report.Delete) != 0 {
		t.Errorf("report.Delete = %v, want none (Delete not requested)", report.Delete)
	}

	prunedDest, err := merged.Remove("dest/a.txt")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	pruned, report, err := prunedDest.CopyFromRef(main2, "src", "dest", CopyRefOptions{Delete: true})
	if err != nil {
		t.Fatalf("CopyFromRef with Delete failed: %v", err)
	}
	if exists, _ := pruned.Exists("dest/existing.txt"); exists {
		t.Error("dest/existing.txt should have been pruned when Delete is set")
	}
	if len(report.Delete) != 1 || report.Delete[0] != "dest/existing.txt" {
		t.Errorf("report.Delete = %v, want [dest/existing.txt]", report.Delete)
	}
}

func TestCopyFromRefRejectsCrossRepo(t *testing.T) {
	storeA, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	storeB, err := OpenInMemory(OpenOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	fsA, err := storeA.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}
	fsB, err := storeB.Fs(nil)
	if err != nil {
		t.Fatalf("Fs failed: %v", err)
	}

	if _, _, err := fsB.CopyFromRef(fsA, "x", "y", CopyRefOptions{}); !errors.Is(err, ErrCrossRepo) {
		t.Errorf("CopyFromRef across stores: got %v, want ErrCrossRepo", err)
	}
}
