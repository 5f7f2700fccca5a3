package paths

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func newRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cmd := exec.Command("git", "init")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init: %v\n%s", err, out)
	}
	t.Chdir(dir)
	return dir
}

func TestGitDir_ResolvesDotGit(t *testing.T) {
	dir := newRepo(t)

	got, err := GitDir()
	if err != nil {
		t.Fatalf("GitDir() error = %v", err)
	}
	want := filepath.Join(dir, ".git")
	if got != want {
		t.Errorf("GitDir() = %q, want %q", got, want)
	}
}

func TestAIRoot_CreatesDirectory(t *testing.T) {
	newRepo(t)

	root, err := AIRoot()
	if err != nil {
		t.Fatalf("AIRoot() error = %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat(%s) error = %v", root, err)
	}
	if !info.IsDir() {
		t.Errorf("AIRoot() = %q, not a directory", root)
	}
}

func TestSanitizeBranch_ReplacesSlashes(t *testing.T) {
	if got := SanitizeBranch("feature/foo/bar"); got != "feature__foo__bar" {
		t.Errorf("SanitizeBranch() = %q, want feature__foo__bar", got)
	}
}

func TestLogPath_UsesSanitizedBranchName(t *testing.T) {
	newRepo(t)

	p, err := LogPath("feature/foo")
	if err != nil {
		t.Fatalf("LogPath() error = %v", err)
	}
	if filepath.Base(p) != "feature__foo" {
		t.Errorf("LogPath() base = %q, want feature__foo", filepath.Base(p))
	}
}

func TestIndexPath_IsLogPathWithSuffix(t *testing.T) {
	newRepo(t)

	logPath, err := LogPath("main")
	if err != nil {
		t.Fatalf("LogPath() error = %v", err)
	}
	idxPath, err := IndexPath("main")
	if err != nil {
		t.Fatalf("IndexPath() error = %v", err)
	}
	if idxPath != logPath+".idx" {
		t.Errorf("IndexPath() = %q, want %q", idxPath, logPath+".idx")
	}
}

func TestWriteFileAtomic_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	if err := WriteFileAtomic(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadFile() = %q, want hello", data)
	}
}

func TestWriteFileAtomic_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	if err := WriteFileAtomic(p, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(p, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "second" {
		t.Errorf("ReadFile() = %q, want second", data)
	}
}

func TestGitDir_CachePerWorkingDirectory(t *testing.T) {
	dirA := newRepo(t)
	gotA, err := GitDir()
	if err != nil {
		t.Fatalf("GitDir() error = %v", err)
	}
	if gotA != filepath.Join(dirA, ".git") {
		t.Fatalf("GitDir() in repo A = %q, want %q", gotA, filepath.Join(dirA, ".git"))
	}

	dirB := newRepo(t)
	gotB, err := GitDir()
	if err != nil {
		t.Fatalf("GitDir() error = %v", err)
	}
	if gotB != filepath.Join(dirB, ".git") {
		t.Errorf("GitDir() in repo B = %q, want %q (stale cache from repo A)", gotB, filepath.Join(dirB, ".git"))
	}
}
