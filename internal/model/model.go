// Package model defines the core data types shared across git-ai's components:
// snapshots, intervals, checkpoint entries, working logs, and authorship notes.
package model

import (
	"errors"
	"time"
)

// AuthorKind identifies who wrote a line.
type AuthorKind uint8

const (
	// Human is the default attribution for any line with no recorded agent authorship.
	Human AuthorKind = iota
	// Agent marks a line as written by an AI agent identified by AgentID.
	Agent
)

func (k AuthorKind) String() string {
	if k == Agent {
		return "agent"
	}
	return "human"
}

// Sentinel errors shared across components. Callers match with errors.Is.
var (
	ErrSnapshotIO             = errors.New("snapshot: repository unreadable or tracked path vanished")
	ErrCheckpointBusy         = errors.New("checkpoint: lock contention timed out")
	ErrCheckpointDetached     = errors.New("checkpoint: detached HEAD (use --allow-detached)")
	ErrNoteInvariantViolation = errors.New("note: run-length encoding does not tile the blob")
	ErrProxyRecursion         = errors.New("proxy: resolved git_path points back at git-ai")
)

// Interval is a half-open, 1-based line range tagged with authorship.
// Lines [Start, End) are attributed to AuthorKind (and AgentID, when Agent).
type Interval struct {
	Start   int
	End     int
	Author  AuthorKind
	AgentID string
}

// Len returns the number of lines covered by the interval.
func (iv Interval) Len() int { return iv.End - iv.Start }

// PerFile maps a repo-relative path to the ordered, non-overlapping intervals
// describing what changed in it, relative to some prior point in time.
type PerFile map[string][]Interval

// CheckpointEntry is one recorded authorship event between commits.
type CheckpointEntry struct {
	Seq        uint64
	WallTime   time.Time
	Author     AuthorKind
	AgentID    string
	PromptRef  string // content-hash of the companion prompt transcript blob, if any
	PerFile    PerFile
	FileHashes map[string]string // path -> content-addressed blob hash at this checkpoint, for paths in PerFile
}

// WorkingLog is the ordered, append-only sequence of checkpoints for one branch.
type WorkingLog struct {
	Branch  string
	Entries []CheckpointEntry
}

// NextSeq returns the sequence number the next appended entry must use.
func (l *WorkingLog) NextSeq() uint64 {
	if len(l.Entries) == 0 {
		return 1
	}
	return l.Entries[len(l.Entries)-1].Seq + 1
}

// Run is one run-length-encoded stretch of uniformly-attributed lines.
type Run struct {
	Len     int
	Author  AuthorKind
	AgentID string
}

// FileNote is the per-file RLE attribution for one commit blob. The runs
// must tile LineCount exactly (total coverage invariant).
type FileNote struct {
	LineCount int
	Runs      []Run
}

// TotalLines returns the sum of run lengths, which must equal LineCount.
func (f FileNote) TotalLines() int {
	n := 0
	for _, r := range f.Runs {
		n += r.Len
	}
	return n
}

// AuthorshipNote is the full per-commit authorship payload, keyed by path.
type AuthorshipNote struct {
	Version  uint16
	CommitID string
	Files    map[string]FileNote
}

// PromptTranscript is an opaque agent-provided companion blob referenced by
// a checkpoint's PromptRef. The core treats its Payload as opaque bytes.
type PromptTranscript struct {
	ContentHash string
	Payload     []byte
}

// Snapshot is an immutable map of repo-relative path to content hash, plus
// its own content-addressed identity.
type Snapshot struct {
	ID    string
	Files map[string]FileEntry
}

// FileEntry describes one tracked file at snapshot time.
type FileEntry struct {
	Hash       string
	Opaque     bool // binary files are indexed but excluded from interval diffing
	Symlink    bool
	LinkTarget string
	Mode       uint32
}
