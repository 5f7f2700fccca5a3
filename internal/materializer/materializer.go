// Package materializer folds a branch's pending working log into the
// AuthorshipNote attached to a commit. This is where checkpoint-time line
// attribution gets remapped onto the exact line numbers of the committed
// blob, so rebases, squashes, and manual edits between checkpoints never
// leave stale coordinates behind.
package materializer

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/linediff"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/note"
	"github.com/git-ai/git-ai/internal/snapshot"
	"github.com/git-ai/git-ai/internal/worklog"
)

// Materializer folds working-log entries into commit notes.
type Materializer struct {
	store *gitstore.Store
	notes *note.Manager
}

// New wraps a gitstore.Store for materialization.
func New(s *gitstore.Store) *Materializer {
	return &Materializer{store: s, notes: note.NewManager(s)}
}

// Materialize folds branch's pending working log into an AuthorshipNote for
// commitHash, attaches it under refs/notes/ai, and truncates the log. If the
// log has no entries, this is a no-op: a commit with no recorded checkpoints
// gets no note at all, and blame falls back to "unattributed" for it.
func (m *Materializer) Materialize(branch, commitHash string) error {
	log, err := worklog.Load(branch)
	if err != nil {
		return err
	}
	if len(log.Entries) == 0 {
		return nil
	}

	tree, err := m.store.CommitTree(commitHash)
	if err != nil {
		return fmt.Errorf("reading commit tree: %w", err)
	}

	baseline, parentTree, err := m.baselineNote(commitHash)
	if err != nil {
		return err
	}

	touched := touchedPaths(log)
	files := make(map[string]model.FileNote, len(touched))

	for _, path := range touched {
		fn, err := m.materializeFile(path, log.Entries, baseline, parentTree, tree)
		if err != nil {
			return fmt.Errorf("materializing %s: %w", path, err)
		}
		if fn != nil {
			files[path] = *fn
		}
	}

	aNote := model.AuthorshipNote{Version: 1, CommitID: commitHash, Files: files}
	if err := m.notes.Write(commitHash, aNote); err != nil {
		return fmt.Errorf("attaching note: %w", err)
	}

	return worklog.Truncate(branch)
}

// MaterializeSquash folds a squash merge's component commits into a single
// note for targetCommit, per the squash-merge union rule: each component's
// own note contributes its attribution remapped onto targetCommit's tree,
// and where two components' contributions overlap the later commit (later
// in components, which callers pass oldest-first) wins. Lines no component
// touched keep whatever the commit's own parent note already says for them.
// Also truncates branch's working log, since a squash-merge commit folds in
// any checkpoints recorded against it directly, just like Materialize.
func (m *Materializer) MaterializeSquash(branch string, components []string, targetCommit string) error {
	tree, err := m.store.CommitTree(targetCommit)
	if err != nil {
		return fmt.Errorf("reading commit tree: %w", err)
	}

	baseline, parentTree, err := m.baselineNote(targetCommit)
	if err != nil {
		return err
	}

	touched := map[string]struct{}{}
	for path := range baseline.Files {
		touched[path] = struct{}{}
	}
	componentNotes := make([]model.AuthorshipNote, 0, len(components))
	for _, c := range components {
		n, ok, err := m.notes.Read(c)
		if err != nil {
			return fmt.Errorf("reading component note %s: %w", c, err)
		}
		if !ok {
			continue
		}
		componentNotes = append(componentNotes, n)
		for path := range n.Files {
			touched[path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(touched))
	for p := range touched {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make(map[string]model.FileNote, len(paths))
	for _, path := range paths {
		fn, err := m.unionFile(path, componentNotes, baseline, parentTree, tree)
		if err != nil {
			return fmt.Errorf("unioning %s: %w", path, err)
		}
		if fn != nil {
			files[path] = *fn
		}
	}

	aNote := model.AuthorshipNote{Version: 1, CommitID: targetCommit, Files: files}
	if err := m.notes.Write(targetCommit, aNote); err != nil {
		return fmt.Errorf("attaching note: %w", err)
	}

	return worklog.Truncate(branch)
}

// unionFile computes one file's squash-merge tiling: the parent note's
// attribution carried forward to the target tree, then each component's own
// attribution overlaid on top in order, using linediff.RemapPartial so a
// component that never touched this file (or whose version of it no longer
// corresponds to any line in the target) contributes nothing rather than
// clobbering an earlier component's lines with a fallback author.
func (m *Materializer) unionFile(path string, componentNotes []model.AuthorshipNote, baseline model.AuthorshipNote, parentTree, tree *object.Tree) (*model.FileNote, error) {
	finalContent, ok, err := m.store.BlobContents(tree, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil // deleted by the squash; nothing to attribute
	}

	baseRunning, baseContent, err := m.baselineIntervals(path, baseline, parentTree)
	if err != nil {
		return nil, err
	}
	running := linediff.Remap(baseContent, finalContent, baseRunning, model.Human, "")

	for _, n := range componentNotes {
		fn, ok := n.Files[path]
		if !ok {
			continue
		}
		componentTree, err := m.store.CommitTree(n.CommitID)
		if err != nil {
			return nil, fmt.Errorf("reading component tree %s: %w", n.CommitID, err)
		}
		componentContent, ok, err := m.store.BlobContents(componentTree, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		partial := linediff.RemapPartial(componentContent, finalContent, IntervalsFromRuns(fn.Runs))
		running = overlay(running, partial)
	}

	return &model.FileNote{
		LineCount: countLines(finalContent),
		Runs:      RunsFromIntervals(running),
	}, nil
}

// baselineNote returns the parent commit's authorship note and tree, if any,
// so lines already attributed in history carry their attribution forward
// instead of reverting to "unattributed human". A root commit (no parent)
// returns a nil tree and an empty note.
func (m *Materializer) baselineNote(commitHash string) (model.AuthorshipNote, *object.Tree, error) {
	commit, err := m.store.Repo.CommitObject(plumbing.NewHash(commitHash))
	if err != nil {
		return model.AuthorshipNote{}, nil, fmt.Errorf("reading commit: %w", err)
	}
	if commit.NumParents() == 0 {
		return model.AuthorshipNote{}, nil, nil
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return model.AuthorshipNote{}, nil, fmt.Errorf("reading parent commit: %w", err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return model.AuthorshipNote{}, nil, fmt.Errorf("reading parent tree: %w", err)
	}
	n, ok, err := m.notes.Read(parent.Hash.String())
	if err != nil {
		return model.AuthorshipNote{}, parentTree, err
	}
	if !ok {
		return model.AuthorshipNote{}, parentTree, nil
	}
	return n, parentTree, nil
}

func touchedPaths(log model.WorkingLog) []string {
	seen := map[string]struct{}{}
	for _, e := range log.Entries {
		for path := range e.PerFile {
			seen[path] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// materializeFile walks every working-log entry that touched path, in
// sequence order, remapping the running attribution forward through each
// checkpoint's content and finally onto the commit tree's content. Returns
// nil if the path no longer exists in the commit tree (deleted before
// commit).
func (m *Materializer) materializeFile(path string, entries []model.CheckpointEntry, baseline model.AuthorshipNote, parentTree, tree *object.Tree) (*model.FileNote, error) {
	finalContent, ok, err := m.store.BlobContents(tree, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil // deleted by commit time; nothing to attribute
	}

	running, runningContent, err := m.baselineIntervals(path, baseline, parentTree)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		intervals, touched := e.PerFile[path]
		if !touched {
			continue
		}
		ckptContent := runningContent
		if hash, ok := e.FileHashes[path]; ok {
			if data, err := snapshot.ReadContent(hash); err == nil && data != nil {
				ckptContent = string(data)
			}
		}
		running = linediff.Remap(runningContent, ckptContent, running, e.Author, e.AgentID)
		running = overlay(running, intervals)
		runningContent = ckptContent
	}

	running = linediff.Remap(runningContent, finalContent, running, model.Human, "")

	return &model.FileNote{
		LineCount: countLines(finalContent),
		Runs:      RunsFromIntervals(running),
	}, nil
}

// baselineIntervals seeds a file's running attribution and content from the
// parent commit's tree and note. With no note entry for this path, the file
// starts with no attribution; its content is the parent tree's copy when
// the parent has the file, and empty only with no parent (root commit) or
// no such file in the parent tree, in which case the first checkpoint (or
// the final remap, if no checkpoint touched it) treats its entire content
// as fresh lines.
func (m *Materializer) baselineIntervals(path string, baseline model.AuthorshipNote, parentTree *object.Tree) ([]model.Interval, string, error) {
	var parentContent string
	if parentTree != nil {
		content, ok, err := m.store.BlobContents(parentTree, path)
		if err != nil {
			return nil, "", err
		}
		if ok {
			parentContent = content
		}
	}

	fn, ok := baseline.Files[path]
	if !ok {
		return nil, parentContent, nil
	}
	return IntervalsFromRuns(fn.Runs), parentContent, nil
}

// IntervalsFromRuns expands a FileNote's run-length-encoded attribution back
// into 1-based half-open intervals, the coordinate space linediff.Remap
// operates on. Exported so note-carrying callers outside this package (the
// post-rewrite hook) can reuse the same remap this package's own
// materialization uses, rather than re-deriving it.
func IntervalsFromRuns(runs []model.Run) []model.Interval {
	line := 1
	intervals := make([]model.Interval, 0, len(runs))
	for _, r := range runs {
		intervals = append(intervals, model.Interval{Start: line, End: line + r.Len, Author: r.Author, AgentID: r.AgentID})
		line += r.Len
	}
	return intervals
}

// overlay applies intervals on top of running, overwriting whatever lines
// they cover (last-writer-wins) and leaving everything outside their ranges
// untouched.
func overlay(running []model.Interval, onTop []model.Interval) []model.Interval {
	if len(onTop) == 0 {
		return running
	}
	covered := func(line int) (model.AuthorKind, string, bool) {
		for _, iv := range onTop {
			if line >= iv.Start && line < iv.End {
				return iv.Author, iv.AgentID, true
			}
		}
		return model.Human, "", false
	}

	maxEnd := 0
	for _, iv := range running {
		if iv.End > maxEnd {
			maxEnd = iv.End
		}
	}
	for _, iv := range onTop {
		if iv.End > maxEnd {
			maxEnd = iv.End
		}
	}

	var out []model.Interval
	for line := 1; line < maxEnd; line++ {
		if author, agentID, ok := covered(line); ok {
			out = appendLine(out, line, author, agentID)
			continue
		}
		author, agentID := lookupRunning(running, line)
		out = appendLine(out, line, author, agentID)
	}
	return out
}

func lookupRunning(running []model.Interval, line int) (model.AuthorKind, string) {
	for _, iv := range running {
		if line >= iv.Start && line < iv.End {
			return iv.Author, iv.AgentID
		}
	}
	return model.Human, ""
}

func appendLine(out []model.Interval, line int, author model.AuthorKind, agentID string) []model.Interval {
	if n := len(out); n > 0 && out[n-1].End == line && out[n-1].Author == author && out[n-1].AgentID == agentID {
		out[n-1].End = line + 1
		return out
	}
	return append(out, model.Interval{Start: line, End: line + 1, Author: author, AgentID: agentID})
}

// RunsFromIntervals collapses a list of intervals back into the
// run-length-encoded form a FileNote stores on disk. Exported alongside
// IntervalsFromRuns for the same reason.
func RunsFromIntervals(intervals []model.Interval) []model.Run {
	runs := make([]model.Run, 0, len(intervals))
	for _, iv := range intervals {
		runs = append(runs, model.Run{Len: iv.Len(), Author: iv.Author, AgentID: iv.AgentID})
	}
	return runs
}

func countLines(content string) int {
	return linediff.CountLines(content)
}
