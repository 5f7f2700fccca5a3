// Package paths resolves repository-relative locations for git-ai's on-disk
// state under <repo>/.git/ai/, mirroring the layout in the spec's external
// interfaces section.
package paths

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// AIDir is the subdirectory of .git holding all git-ai state.
const AIDir = "ai"

const (
	LogDir        = "log"
	SnapshotsDir  = "snapshots"
	ContentDir    = "content"
	LockFileName  = "log.lock"
	NotesRefName  = "refs/notes/ai"
	NotesMagic    = "GAI\x00"
	NoteVersion   = uint16(1)
)

var (
	gitDirMu    sync.RWMutex
	gitDirCache string
	gitDirCwd   string
)

// GitDir returns the repository's .git directory (resolved via
// `git rev-parse --git-dir`, which also works for worktrees and submodules).
// The result is cached per working directory.
func GitDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	gitDirMu.RLock()
	if gitDirCache != "" && gitDirCwd == cwd {
		cached := gitDirCache
		gitDirMu.RUnlock()
		return cached, nil
	}
	gitDirMu.RUnlock()

	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--git-dir")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("resolving git dir: %w", err)
	}
	dir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}
	dir = filepath.Clean(dir)

	gitDirMu.Lock()
	gitDirCache = dir
	gitDirCwd = cwd
	gitDirMu.Unlock()

	return dir, nil
}

// ClearCache clears the cached git directory. Used by tests that chdir.
func ClearCache() {
	gitDirMu.Lock()
	gitDirCache = ""
	gitDirCwd = ""
	gitDirMu.Unlock()
}

// AIRoot returns <git-dir>/ai, creating it if necessary.
func AIRoot() (string, error) {
	gitDir, err := GitDir()
	if err != nil {
		return "", err
	}
	root := filepath.Join(gitDir, AIDir)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", root, err)
	}
	return root, nil
}

// LogPath returns the working log path for a branch, sanitized so the branch
// name (which may contain "/") can't escape the log directory.
func LogPath(branch string) (string, error) {
	root, err := AIRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, LogDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, SanitizeBranch(branch)), nil
}

// IndexPath returns the tail-index path that accompanies a working log.
func IndexPath(branch string) (string, error) {
	logPath, err := LogPath(branch)
	if err != nil {
		return "", err
	}
	return logPath + ".idx", nil
}

// SanitizeBranch replaces path separators so a branch name is safe as a
// single path component.
func SanitizeBranch(branch string) string {
	return strings.ReplaceAll(branch, "/", "__")
}

// SnapshotPath returns the path of the stored snapshot index for a given
// snapshot id.
func SnapshotPath(snapshotID string) (string, error) {
	root, err := AIRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, SnapshotsDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, snapshotID), nil
}

// ContentPath returns the path of a content-addressed blob in the dedup store.
func ContentPath(contentHash string) (string, error) {
	root, err := AIRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, ContentDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, contentHash), nil
}

// LockPath returns the path of the advisory exclusive lock file.
func LockPath() (string, error) {
	root, err := AIRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, LockFileName), nil
}

// PendingSquashFileName holds the component commits of an in-progress
// squash merge, recorded by `git merge --squash` and consumed by the
// commit that follows it.
const PendingSquashFileName = "pending_squash.json"

// PendingSquashPath returns the path recording a squash merge's component
// commits between `merge --squash` and the commit that follows it.
func PendingSquashPath() (string, error) {
	root, err := AIRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, PendingSquashFileName), nil
}

// PriorPointerPath returns the path storing the "prior snapshot for this
// branch" pointer used by the checkpoint engine.
func PriorPointerPath(branch string) (string, error) {
	root, err := AIRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "prior")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, SanitizeBranch(branch)), nil
}

// WriteFileAtomic writes data to path via a temp file + rename, matching the
// atomic-write idiom used throughout the on-disk state.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup if rename fails

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
