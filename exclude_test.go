package gitstore

import "testing"

func TestExcludeFilterBasenamePattern(t *testing.T) {
	f := NewExcludeFilter([]string{"*.pyc"})
	if !f.IsExcluded("build/output.pyc", false) {
		t.Error("*.pyc should match a basename anywhere in the tree")
	}
	if f.IsExcluded("build/output.py", false) {
		t.Error("*.pyc should not match output.py")
	}
}

func TestExcludeFilterNoDotfileGuard(t *testing.T) {
	f := NewExcludeFilter([]string{"*.pyc"})
	if !f.IsExcluded(".hidden.pyc", false) {
		t.Error("exclude patterns follow plain .gitignore semantics: *.pyc should match .hidden.pyc")
	}
}

func TestExcludeFilterNegationReincludes(t *testing.T) {
	f := NewExcludeFilter([]string{"*.log", "!keep.log"})
	if !f.IsExcluded("debug.log", false) {
		t.Error("debug.log should be excluded")
	}
	if f.IsExcluded("keep.log", false) {
		t.Error("keep.log should be re-included by the negated pattern")
	}
}

func TestExcludeFilterDirOnlySkipsFiles(t *testing.T) {
	f := NewExcludeFilter([]string{"build/"})
	if f.IsExcluded("build", false) {
		t.Error("dir-only pattern should not match a file named build")
	}
	if !f.IsExcluded("build", true) {
		t.Error("dir-only pattern should match a directory named build")
	}
}

func TestExcludeFilterIgnoresBlankAndCommentLines(t *testing.T) {
	f := NewExcludeFilter([]string{"", "# a comment", "*.tmp"})
	if len(f.patterns) != 1 {
		t.Fatalf("expected exactly one parsed pattern, got %d", len(f.patterns))
	}
}
