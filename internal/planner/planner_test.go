package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rinne-snap/rinne/internal/ignore"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkSortedAndExcludesControlDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "c")
	writeFile(t, filepath.Join(root, ControlDirName, "config", "x"), "hidden")

	plan, err := Walk(root, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(plan.Files) != 3 {
		t.Fatalf("expected 3 files, got %d: %+v", len(plan.Files), plan.Files)
	}
	want := []string{"a.txt", "b.txt", "sub/c.txt"}
	for i, w := range want {
		if plan.Files[i].RelPath != w {
			t.Errorf("file %d: got %q want %q", i, plan.Files[i].RelPath, w)
		}
	}
	for _, f := range plan.Files {
		if f.RelPath == ControlDirName+"/config/x" {
			t.Fatal("control directory must never be planned")
		}
	}
}

func TestWalkRespectsIgnoreEngine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), "keep")
	writeFile(t, filepath.Join(root, "skip.log"), "skip")
	writeFile(t, filepath.Join(root, "build", "out.o"), "obj")

	eng := ignore.New("*.log", "build/")
	plan, err := Walk(root, eng)
	if err != nil {
		t.Fatal(err)
	}

	for _, f := range plan.Files {
		if f.RelPath == "skip.log" {
			t.Error("expected skip.log to be excluded")
		}
		if f.RelPath == "build/out.o" {
			t.Error("expected build/out.o to be excluded via directory rule")
		}
	}
	found := false
	for _, f := range plan.Files {
		if f.RelPath == "keep.txt" {
			found = true
		}
	}
	if !found {
		t.Error("expected keep.txt to survive")
	}
}

func TestWalkEmptyTree(t *testing.T) {
	root := t.TempDir()
	plan, err := Walk(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Files) != 0 || len(plan.Dirs) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}
