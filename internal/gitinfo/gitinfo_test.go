package gitinfo

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run(t, dir, "git", "init", "-q")
	run(t, dir, "git", "config", "user.email", "test@example.com")
	run(t, dir, "git", "config", "user.name", "test")
	writeFile(t, dir, "README.md", "hello\n")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-q", "-m", "init")
	return dir
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestHeadAndDirty(t *testing.T) {
	dir := initRepo(t)

	head, ok := Head(dir)
	if !ok || len(head) != 40 {
		t.Errorf("Head = %q ok=%v", head, ok)
	}
	dirty, ok := IsDirty(dir)
	if !ok || dirty {
		t.Errorf("fresh repo dirty=%v ok=%v", dirty, ok)
	}

	writeFile(t, dir, "README.md", "changed\n")
	dirty, ok = IsDirty(dir)
	if !ok || !dirty {
		t.Errorf("modified repo dirty=%v ok=%v", dirty, ok)
	}
}

func TestChangedFiles(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "README.md", "changed\n")
	writeFile(t, dir, "src.go", "package main\n")
	run(t, dir, "git", "add", "src.go")

	files := ChangedFiles(dir, "")
	found := map[string]bool{}
	for _, file := range files {
		found[file] = true
	}
	if !found["README.md"] || !found["src.go"] {
		t.Errorf("ChangedFiles = %v, want README.md and src.go", files)
	}
}

func TestProbesOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	if _, ok := Head(dir); ok {
		t.Error("Head should fail outside a repo")
	}
	if _, ok := IsDirty(dir); ok {
		t.Error("IsDirty should fail outside a repo")
	}
	if files := ChangedFiles(dir, ""); files != nil {
		t.Errorf("ChangedFiles = %v, want nil", files)
	}
	if HeadRef(dir) != nil || DirtyRef(dir) != nil {
		t.Error("refs should be nil outside a repo")
	}
}
