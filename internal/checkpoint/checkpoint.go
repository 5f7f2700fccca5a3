// Package checkpoint implements the capture -> diff -> append transaction
// that records one authorship event in the working log. It is the seam
// between the CLI's checkpoint command and the lower-level
// snapshot/linediff/worklog packages; the proxy's commit handling does not
// run a checkpoint, it only folds the already-recorded log into a note.
package checkpoint

import (
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/linediff"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/paths"
	"github.com/git-ai/git-ai/internal/snapshot"
	"github.com/git-ai/git-ai/internal/worklog"
)

// Throttle is the minimum interval between two checkpoints from the same
// agent on the same branch; a checkpoint call inside the window is folded
// into a no-op rather than creating a new entry, so a burst of rapid tool
// calls doesn't fragment the log into noise.
const Throttle = 500 * time.Millisecond

// LockTimeout bounds how long a checkpoint waits to acquire the working-log
// lock before giving up.
const LockTimeout = 5 * time.Second

// Engine runs checkpoint transactions against one repository working tree.
type Engine struct {
	store *gitstore.Store
	snap  *snapshot.Snapshotter
}

// NewEngine opens the repository at root and returns an Engine for it.
func NewEngine(root string) (*Engine, error) {
	s, err := gitstore.Open()
	if err != nil {
		return nil, err
	}
	return &Engine{store: s, snap: snapshot.New(root)}, nil
}

// Request describes one checkpoint call.
type Request struct {
	Author        model.AuthorKind
	AgentID       string
	PromptRef     string
	AllowDetached bool
}

// Run captures the working tree, diffs it against the prior checkpoint
// snapshot, and appends an entry to the current branch's working log. It
// returns (nil, nil) when the checkpoint is a no-op: nothing changed since
// the prior snapshot, or the call landed inside the throttle window.
func (e *Engine) Run(req Request) (*model.CheckpointEntry, error) {
	branch, err := e.resolveBranch(req.AllowDetached)
	if err != nil {
		return nil, err
	}

	lock, err := worklog.Acquire(LockTimeout)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck // best-effort unlock; the fd close itself can't meaningfully fail here

	log, err := worklog.Load(branch)
	if err != nil {
		return nil, err
	}

	if throttled(log, req) {
		return nil, nil
	}

	prior, err := e.loadPrior(branch)
	if err != nil {
		return nil, err
	}

	cur, err := e.snap.Capture()
	if err != nil {
		return nil, err
	}

	if cur.ID == prior.ID {
		return nil, nil
	}

	perFile, err := e.diff(prior, cur, req.Author, req.AgentID)
	if err != nil {
		return nil, err
	}
	if len(perFile) == 0 {
		return nil, nil
	}

	fileHashes := make(map[string]string, len(perFile))
	for relPath := range perFile {
		fileHashes[relPath] = cur.Files[relPath].Hash
	}

	entry := model.CheckpointEntry{
		Seq:        log.NextSeq(),
		WallTime:   time.Now(),
		Author:     req.Author,
		AgentID:    req.AgentID,
		PromptRef:  req.PromptRef,
		PerFile:    perFile,
		FileHashes: fileHashes,
	}

	if err := worklog.Append(branch, entry); err != nil {
		return nil, err
	}
	if err := e.snap.Store(cur); err != nil {
		return nil, err
	}
	if err := e.storePrior(branch, cur.ID); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (e *Engine) resolveBranch(allowDetached bool) (string, error) {
	branch, err := e.store.CurrentBranch()
	if err == nil {
		return branch, nil
	}
	if !allowDetached {
		return "", model.ErrCheckpointDetached
	}
	head, headErr := e.store.Head()
	if headErr != nil {
		return "", fmt.Errorf("resolving detached HEAD: %w", headErr)
	}
	return "detached-" + head.Hash().String(), nil
}

func throttled(log model.WorkingLog, req Request) bool {
	if len(log.Entries) == 0 {
		return false
	}
	last := log.Entries[len(log.Entries)-1]
	if last.Author != req.Author || last.AgentID != req.AgentID {
		return false
	}
	return time.Since(last.WallTime) < Throttle
}

func (e *Engine) loadPrior(branch string) (model.Snapshot, error) {
	p, err := paths.PriorPointerPath(branch)
	if err != nil {
		return model.Snapshot{}, err
	}
	data, err := readFileOrEmpty(p)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(data) == 0 {
		return model.Snapshot{}, nil
	}
	return snapshot.Load(string(data))
}

func (e *Engine) storePrior(branch, snapshotID string) error {
	p, err := paths.PriorPointerPath(branch)
	if err != nil {
		return err
	}
	return paths.WriteFileAtomic(p, []byte(snapshotID), 0o644)
}

// diff compares prior and cur snapshot indexes and returns per-file changed
// intervals, attributed to req's author. Opaque (binary) files and symlinks
// are skipped: they never get intervals. When no prior snapshot has been
// recorded for the branch, a file's old content is its content in HEAD's
// tree.
func (e *Engine) diff(prior, cur model.Snapshot, author model.AuthorKind, agentID string) (model.PerFile, error) {
	perFile := model.PerFile{}

	var headTree *object.Tree
	if prior.ID == "" {
		if head, err := e.store.Head(); err == nil {
			headTree, _ = e.store.CommitTree(head.Hash().String())
		}
	}

	for relPath, curEntry := range cur.Files {
		priorEntry, existed := prior.Files[relPath]
		if existed && priorEntry.Hash == curEntry.Hash {
			continue
		}
		if curEntry.Opaque || curEntry.Symlink {
			continue
		}

		newContent, err := e.snap.Contents(relPath)
		if err != nil {
			continue // file vanished between capture and diff; treat as no delta
		}

		var oldContent []byte
		if existed && !priorEntry.Opaque && !priorEntry.Symlink {
			oldContent = e.priorContents(priorEntry)
		} else if !existed && headTree != nil {
			if content, ok, err := e.store.BlobContents(headTree, relPath); err == nil && ok {
				oldContent = []byte(content)
			}
		}

		intervals := linediff.ChangedOnly(string(oldContent), string(newContent), author, agentID)
		if len(intervals) > 0 {
			perFile[relPath] = intervals
		}
	}

	return perFile, nil
}

// priorContents best-effort reads a prior snapshot's file content from the
// content-addressed store; a miss (e.g. dedup store pruned) degrades to
// treating the file as if it were new, which only over-attributes to the
// current author rather than losing data.
func (e *Engine) priorContents(entry model.FileEntry) []byte {
	data, err := snapshot.ReadContent(entry.Hash)
	if err != nil {
		return nil
	}
	return data
}

func readFileOrEmpty(p string) ([]byte, error) {
	data, err := os.ReadFile(p) //nolint:gosec // content-addressed path under .git/ai
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
