// Package snapshot captures the working tree's tracked-file contents into a
// content-addressed, git-compatible index. It is the Snapshotter component:
// its job is to answer "what does every tracked file look like right now",
// cheaply enough to call on every checkpoint.
package snapshot

import (
	"crypto/sha1" //nolint:gosec // matches git's own blob hashing algorithm, not used for security
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/src-d/enry/v2"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/paths"
)

// statCacheEntry lets repeated snapshots skip rehashing a file whose mtime
// and size haven't changed since the last snapshot that observed it.
type statCacheEntry struct {
	modTime int64
	size    int64
	hash    string
	opaque  bool
}

// Snapshotter captures the working tree's tracked files. It is safe for
// concurrent use only via its own internal lock; callers that need
// exclusivity across the whole checkpoint transaction use internal/worklog's
// file lock instead.
type Snapshotter struct {
	root string // repository working-tree root

	mu    sync.Mutex
	cache map[string]statCacheEntry
}

// New creates a Snapshotter rooted at the given working-tree directory.
func New(root string) *Snapshotter {
	return &Snapshotter{root: root, cache: make(map[string]statCacheEntry)}
}

// Capture walks the tracked files reported by `git ls-files`, plus any
// untracked-but-not-ignored files, and returns a content-addressed Snapshot.
// Untracked files matter here: an AI agent that writes a brand-new file
// before it's ever `git add`ed still needs a checkpoint to see it, or its
// lines are attributed entirely to Human at materialize time. Only
// gitignored files are excluded; the proxy's job is attribution of the
// working tree as the user sees it, not strictly git's index.
func (s *Snapshotter) Capture() (model.Snapshot, error) {
	trackedPaths, err := s.listTracked()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", model.ErrSnapshotIO, err)
	}

	files := make(map[string]model.FileEntry, len(trackedPaths))
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rel := range trackedPaths {
		entry, err := s.captureOne(rel)
		if err != nil {
			// A file can vanish between `git ls-files` and the stat below
			// (editor swap files, fast rebases); treat that as "no longer
			// tracked at this instant" rather than failing the snapshot.
			if os.IsNotExist(err) {
				continue
			}
			return model.Snapshot{}, fmt.Errorf("%w: %s: %v", model.ErrSnapshotIO, rel, err)
		}
		files[rel] = entry
	}

	id := snapshotID(files)
	return model.Snapshot{ID: id, Files: files}, nil
}

func (s *Snapshotter) captureOne(rel string) (model.FileEntry, error) {
	full := filepath.Join(s.root, rel)
	info, err := os.Lstat(full)
	if err != nil {
		return model.FileEntry{}, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return model.FileEntry{}, err
		}
		return model.FileEntry{
			Hash:       blobHash([]byte(target)),
			Symlink:    true,
			LinkTarget: target,
			Mode:       uint32(info.Mode().Perm()),
		}, nil
	}

	if cached, ok := s.cache[rel]; ok &&
		cached.modTime == info.ModTime().UnixNano() &&
		cached.size == info.Size() {
		return model.FileEntry{Hash: cached.hash, Opaque: cached.opaque, Mode: uint32(info.Mode().Perm())}, nil
	}

	data, err := os.ReadFile(full) //nolint:gosec // rel is sourced from `git ls-files`, scoped to repo root
	if err != nil {
		return model.FileEntry{}, err
	}

	opaque := isOpaque(rel, data)
	hash := blobHash(data)

	s.cache[rel] = statCacheEntry{
		modTime: info.ModTime().UnixNano(),
		size:    info.Size(),
		hash:    hash,
		opaque:  opaque,
	}

	return model.FileEntry{Hash: hash, Opaque: opaque, Mode: uint32(info.Mode().Perm())}, nil
}

// Contents returns the raw bytes of a tracked file as of right now. Used by
// the line differ, which needs the actual text, not just its hash.
func (s *Snapshotter) Contents(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, rel)) //nolint:gosec // repo-relative path from the snapshot index
}

// listTracked returns every path the snapshot should cover: the index's
// cached (tracked) files plus any untracked file `git` wouldn't ignore.
// Gitignored files are the only ones left out.
func (s *Snapshotter) listTracked() ([]string, error) {
	cached, err := runLsFiles(s.root, "-z")
	if err != nil {
		return nil, fmt.Errorf("listing tracked files: %w", err)
	}
	untracked, err := runLsFiles(s.root, "-z", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("listing untracked files: %w", err)
	}

	seen := make(map[string]struct{}, len(cached)+len(untracked))
	paths := make([]string, 0, len(cached)+len(untracked))
	for _, p := range cached {
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	for _, p := range untracked {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths, nil
}

func runLsFiles(root string, args ...string) ([]string, error) {
	cmd := exec.Command("git", append([]string{"-C", root, "ls-files"}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	raw := strings.Split(strings.TrimRight(string(out), "\x00"), "\x00")
	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// isOpaque classifies a file as binary/generated using enry's content and
// extension heuristics, falling back to a null-byte check for anything enry
// is unsure about. Opaque files are indexed (their hash participates in
// snapshot identity) but excluded from line-level diffing.
func isOpaque(rel string, data []byte) bool {
	if enry.IsBinary(data) {
		return true
	}
	if enry.IsGenerated(rel, data) {
		return true
	}
	if enry.IsVendor(rel) {
		return true
	}
	return gitstore.IsBinary(string(data))
}

// blobHash reproduces git's own blob object id (sha1 of "blob <len>\0<data>"),
// so a snapshot's file hashes line up with the hashes in the host repository.
func blobHash(data []byte) string {
	h := sha1.New() //nolint:gosec // git object id format, not a security boundary
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// BlobHash exposes the git-compatible blob hash for arbitrary content.
// Prompt transcripts are content-addressed into the same store as tracked
// file blobs, so checkpoint.go and the CLI's checkpoint command use this
// rather than duplicating the hashing scheme.
func BlobHash(data []byte) string { return blobHash(data) }

// snapshotID derives a stable identity for a full snapshot from the sorted
// set of (path, hash, mode, symlink) tuples it contains.
func snapshotID(files map[string]model.FileEntry) string {
	relPaths := make([]string, 0, len(files))
	for p := range files {
		relPaths = append(relPaths, p)
	}
	sort.Strings(relPaths)

	h := sha1.New() //nolint:gosec // content identity, not a security boundary
	for _, p := range relPaths {
		e := files[p]
		fmt.Fprintf(h, "%s\x00%s\x00%d\x00%v\x00", p, e.Hash, e.Mode, e.Symlink)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Store persists a snapshot's index to .git/ai/snapshots/<id>, plus a
// content-addressed copy of every non-opaque file's bytes under
// .git/ai/content/<hash> so the checkpoint engine can diff against a prior
// snapshot's text without the working tree still holding it.
func (s *Snapshotter) Store(snap model.Snapshot) error {
	relPaths := make([]string, 0, len(snap.Files))
	for rp := range snap.Files {
		relPaths = append(relPaths, rp)
	}
	sort.Strings(relPaths)

	for _, rp := range relPaths {
		e := snap.Files[rp]
		if e.Opaque || e.Symlink {
			continue
		}
		if err := s.storeContent(e.Hash, rp); err != nil {
			return err
		}
	}

	return storeIndex(snap, relPaths)
}

func (s *Snapshotter) storeContent(hash, rel string) error {
	p, err := paths.ContentPath(hash)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return nil // already deduplicated
	}
	data, err := s.Contents(rel)
	if err != nil {
		return nil //nolint:nilerr // file may have changed again since capture; best-effort cache
	}
	return paths.WriteFileAtomic(p, data, 0o644)
}

// ReadContent reads back a previously stored content-addressed blob by its
// git blob hash. A miss returns (nil, nil): callers treat it as unavailable
// rather than fatal.
func ReadContent(hash string) ([]byte, error) {
	p, err := paths.ContentPath(hash)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // content-addressed path under .git/ai
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func storeIndex(snap model.Snapshot, relPaths []string) error {
	p, err := paths.SnapshotPath(snap.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return nil // already stored under this content id
	}

	var sb strings.Builder
	for _, rp := range relPaths {
		e := snap.Files[rp]
		fmt.Fprintf(&sb, "%s\x00%s\x00%d\x00%v\x00%v\x00%s\n", rp, e.Hash, e.Mode, e.Symlink, e.Opaque, e.LinkTarget)
	}
	return paths.WriteFileAtomic(p, []byte(sb.String()), 0o644)
}

// Load reads back a previously stored snapshot index by its id.
func Load(id string) (model.Snapshot, error) {
	p, err := paths.SnapshotPath(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	f, err := os.Open(p) //nolint:gosec // content-addressed path under .git/ai
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading snapshot %s: %w", id, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading snapshot %s: %w", id, err)
	}

	files := make(map[string]model.FileEntry)
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\x00")
		if len(parts) != 6 {
			continue
		}
		var mode uint32
		fmt.Sscanf(parts[2], "%d", &mode)
		files[parts[0]] = model.FileEntry{
			Hash:       parts[1],
			Mode:       mode,
			Symlink:    parts[3] == "true",
			Opaque:     parts[4] == "true",
			LinkTarget: parts[5],
		}
	}
	return model.Snapshot{ID: id, Files: files}, nil
}
