// Package worklog implements the append-only, per-branch checkpoint journal
// and the advisory lock that serializes writers to it. Entries are appended
// as JSON lines; a small tail index avoids re-scanning the whole journal on
// every checkpoint.
package worklog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/paths"
)

// DefaultLockTimeout bounds how long Lock waits for contention to clear
// before giving up with model.ErrCheckpointBusy.
const DefaultLockTimeout = 5 * time.Second

const lockPollInterval = 25 * time.Millisecond

// Lock is a held advisory lock on the working log. Release it via Unlock.
type Lock struct {
	f *os.File
}

// Acquire takes the single-writer lock used around a checkpoint transaction.
// It uses flock(2), so a lock held by a process that has since died is
// released by the kernel automatically — no separate stale-lock detection
// is needed.
func Acquire(timeout time.Duration) (*Lock, error) {
	p, err := paths.LockPath()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, fmt.Errorf("flock: %w", err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, model.ErrCheckpointBusy
		}
		time.Sleep(lockPollInterval)
	}
}

// Unlock releases the lock and closes its file handle.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("unflock: %w", err)
	}
	return closeErr
}

// index is the small sidecar tracking the last appended sequence number, so
// callers don't need to replay the whole journal to compute the next one.
type index struct {
	LastSeq uint64 `json:"last_seq"`
}

// Append writes entry to the branch's journal and advances its tail index.
// Callers must hold the Lock for the duration of the read-modify-write this
// implies (NextSeq, then Append).
func Append(branch string, entry model.CheckpointEntry) error {
	logPath, err := paths.LogPath(branch)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening working log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding checkpoint entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending checkpoint entry: %w", err)
	}

	return writeIndex(branch, index{LastSeq: entry.Seq})
}

func writeIndex(branch string, idx index) error {
	p, err := paths.IndexPath(branch)
	if err != nil {
		return err
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return paths.WriteFileAtomic(p, data, 0o644)
}

// NextSeq returns the sequence number the next Append must use, consulting
// the tail index when present and falling back to a full journal scan
// otherwise (e.g. the index was lost but the journal wasn't).
func NextSeq(branch string) (uint64, error) {
	idxPath, err := paths.IndexPath(branch)
	if err != nil {
		return 0, err
	}
	if data, err := os.ReadFile(idxPath); err == nil { //nolint:gosec // fixed path under .git/ai
		var idx index
		if json.Unmarshal(data, &idx) == nil {
			return idx.LastSeq + 1, nil
		}
	}

	log, err := Load(branch)
	if err != nil {
		return 0, err
	}
	return log.NextSeq(), nil
}

// Load reads the full working log for a branch. A missing journal is not an
// error: it's an empty log.
func Load(branch string) (model.WorkingLog, error) {
	logPath, err := paths.LogPath(branch)
	if err != nil {
		return model.WorkingLog{}, err
	}

	log := model.WorkingLog{Branch: branch}

	f, err := os.Open(logPath) //nolint:gosec // fixed path under .git/ai
	if err != nil {
		if os.IsNotExist(err) {
			return log, nil
		}
		return model.WorkingLog{}, fmt.Errorf("reading working log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry model.CheckpointEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return model.WorkingLog{}, fmt.Errorf("parsing working log entry: %w", err)
		}
		log.Entries = append(log.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return model.WorkingLog{}, fmt.Errorf("scanning working log: %w", err)
	}

	return log, nil
}

// Truncate replaces the branch's journal with an empty one, used by the
// materializer after folding all pending entries into a commit's note.
func Truncate(branch string) error {
	logPath, err := paths.LogPath(branch)
	if err != nil {
		return err
	}
	if err := paths.WriteFileAtomic(logPath, nil, 0o644); err != nil {
		return err
	}
	return writeIndex(branch, index{LastSeq: 0})
}
