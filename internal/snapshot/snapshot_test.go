package snapshot

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func newTrackedRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func TestCapture_IndexesTrackedFiles(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	snap, err := New(dir).Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	entry, ok := snap.Files["main.go"]
	if !ok {
		t.Fatal("Capture() missing main.go")
	}
	if entry.Opaque || entry.Symlink {
		t.Errorf("main.go classified as opaque/symlink, want plain text")
	}
}

func TestCapture_IncludesUntrackedNotIgnoredFiles(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	if err := os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	snap, err := New(dir).Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if _, ok := snap.Files["untracked.txt"]; !ok {
		t.Error("Capture() dropped an untracked-but-not-ignored file, want it included")
	}
}

func TestCapture_IgnoresGitignoredFiles(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{
		"main.go":    "package main\n",
		".gitignore": "ignored.txt\n",
	})
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	snap, err := New(dir).Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if _, ok := snap.Files["ignored.txt"]; ok {
		t.Error("Capture() included a gitignored file")
	}
}

func TestCapture_IDStableAcrossRepeatedCalls(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	s := New(dir)
	first, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	second, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Capture() IDs differ across calls with no changes: %q vs %q", first.ID, second.ID)
	}
}

func TestCapture_IDChangesWhenContentChanges(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	s := New(dir)
	before, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	after, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if before.ID == after.ID {
		t.Error("Capture() ID unchanged after file content changed")
	}
}

func TestStoreAndLoad_RoundTrip(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	t.Chdir(dir) // Store/Load resolve .git/ai/ relative to the working directory
	s := New(dir)
	snap, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if err := s.Store(snap); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	loaded, err := Load(snap.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Files["main.go"].Hash != snap.Files["main.go"].Hash {
		t.Errorf("Load().Files[main.go].Hash = %q, want %q", loaded.Files["main.go"].Hash, snap.Files["main.go"].Hash)
	}
}

func TestReadContent_AfterStore(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	t.Chdir(dir)
	s := New(dir)
	snap, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if err := s.Store(snap); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	data, err := ReadContent(snap.Files["main.go"].Hash)
	if err != nil {
		t.Fatalf("ReadContent() error = %v", err)
	}
	if string(data) != "package main\n" {
		t.Errorf("ReadContent() = %q, want %q", data, "package main\n")
	}
}

func TestReadContent_Missing(t *testing.T) {
	dir := newTrackedRepo(t, map[string]string{"main.go": "package main\n"})
	t.Chdir(dir)
	data, err := ReadContent("0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("ReadContent() error = %v, want nil for a miss", err)
	}
	if data != nil {
		t.Errorf("ReadContent() = %q, want nil for a miss", data)
	}
}

func TestBlobHash_MatchesGitHashObject(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init")

	content := []byte("hello world\n")
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := exec.Command("git", "hash-object", "f.txt")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git hash-object: %v", err)
	}
	want := string(out[:len(out)-1]) // trim trailing newline

	if got := BlobHash(content); got != want {
		t.Errorf("BlobHash() = %q, want %q (git hash-object)", got, want)
	}
}
