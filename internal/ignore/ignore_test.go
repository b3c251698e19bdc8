package ignore

import (
	"strings"
	"testing"
)

func TestBareNameMatchesAnyDepth(t *testing.T) {
	e := New("node_modules")
	if !e.Excluded("node_modules", true) {
		t.Error("expected top-level node_modules to match")
	}
	if !e.Excluded("pkg/node_modules", true) {
		t.Error("expected nested node_modules to match")
	}
	if e.Excluded("node_modules_backup", true) {
		t.Error("did not expect partial name match")
	}
}

func TestDirOnlyExcludesDirAndSubtree(t *testing.T) {
	e := New("build/")
	if !e.Excluded("build", true) {
		t.Error("expected build directory itself to match")
	}
	if e.Excluded("build.txt", false) {
		t.Error("did not expect build.txt to match a directory-only rule")
	}
	if !e.Excluded("build/output.o", false) {
		t.Error("expected files under build/ to match")
	}
}

func TestGlobDoubleStar(t *testing.T) {
	e := New("**/*.log")
	if !e.Excluded("a.log", false) {
		t.Error("expected top-level *.log to match")
	}
	if !e.Excluded("nested/deep/b.log", false) {
		t.Error("expected nested *.log to match")
	}
	if e.Excluded("a.logx", false) {
		t.Error("did not expect a.logx to match *.log")
	}
}

func TestTrailingDoubleStarExcludesContentsNotDir(t *testing.T) {
	e := New("cache/**")
	if e.Excluded("cache", true) {
		t.Error("cache/** should not exclude the cache directory itself")
	}
	if !e.Excluded("cache/file.bin", false) {
		t.Error("expected cache/** to exclude files inside cache")
	}
	if !e.Excluded("cache/sub/file.bin", false) {
		t.Error("expected cache/** to exclude nested files inside cache")
	}
}

func TestNilEngineExcludesNothing(t *testing.T) {
	var e *Engine
	if e.Excluded("anything", false) {
		t.Error("nil engine should never exclude")
	}
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	src := "# comment\n\n*.tmp\n"
	e, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if !e.Excluded("a.tmp", false) {
		t.Error("expected *.tmp rule to be parsed")
	}
}
