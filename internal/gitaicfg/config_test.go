package gitaicfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := &Config{GitPath: "/usr/bin/git", IgnorePrompts: true}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.GitPath != cfg.GitPath || got.IgnorePrompts != cfg.IgnorePrompts {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}
}

func TestLoad_MissingFileReturnsGitPathRequired(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load("")
	if !errors.Is(err, ErrGitPathRequired) {
		t.Errorf("Load() error = %v, want ErrGitPathRequired", err)
	}
}

func TestLoad_EmptyGitPathReturnsGitPathRequired(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := Save(&Config{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_, err := Load("")
	if !errors.Is(err, ErrGitPathRequired) {
		t.Errorf("Load() error = %v, want ErrGitPathRequired", err)
	}
}

func TestLoad_GitPathPointingAtSelfIsRejected(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	self := filepath.Join(home, "git-ai")
	if err := os.WriteFile(self, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile(self) error = %v", err)
	}
	if err := Save(&Config{GitPath: self}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_, err := Load(self)
	if !errors.Is(err, ErrGitPathIsSelf) {
		t.Errorf("Load() error = %v, want ErrGitPathIsSelf", err)
	}
}

func TestPath_JoinsHomeConfigDirAndFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := Path()
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	want := filepath.Join(home, ConfigDirName, ConfigFileName)
	if p != want {
		t.Errorf("Path() = %q, want %q", p, want)
	}
}

func TestDiscoverGitPath_FindsBinaryOnPath(t *testing.T) {
	dir := t.TempDir()
	gitBin := filepath.Join(dir, "git")
	if err := os.WriteFile(gitBin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile(git) error = %v", err)
	}
	t.Setenv("PATH", dir)

	got, err := DiscoverGitPath("")
	if err != nil {
		t.Fatalf("DiscoverGitPath() error = %v", err)
	}
	resolved, err := filepath.EvalSymlinks(gitBin)
	if err != nil {
		t.Fatalf("EvalSymlinks() error = %v", err)
	}
	if got != resolved {
		t.Errorf("DiscoverGitPath() = %q, want %q", got, resolved)
	}
}

func TestDiscoverGitPath_SkipsSelf(t *testing.T) {
	dir := t.TempDir()
	gitBin := filepath.Join(dir, "git")
	if err := os.WriteFile(gitBin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile(git) error = %v", err)
	}
	t.Setenv("PATH", dir)

	_, err := DiscoverGitPath(gitBin)
	if err == nil {
		t.Fatal("DiscoverGitPath() error = nil, want an error when the only candidate is self")
	}
}

func TestRejectSelf_DirectComparisonWhenSymlinkResolutionFails(t *testing.T) {
	missing := "/no/such/path/git"
	if err := rejectSelf(missing, missing); !errors.Is(err, ErrGitPathIsSelf) {
		t.Errorf("rejectSelf() error = %v, want ErrGitPathIsSelf for identical unresolvable paths", err)
	}
	if err := rejectSelf(missing, "/no/such/path/git-ai"); err != nil {
		t.Errorf("rejectSelf() error = %v, want nil for distinct unresolvable paths", err)
	}
}
