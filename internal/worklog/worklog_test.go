package worklog

import (
	"os/exec"
	"testing"
	"time"

	"github.com/git-ai/git-ai/internal/model"
)

func newTestRepo(t *testing.T) string {
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

func TestAcquireUnlock_RoundTrip(t *testing.T) {
	newTestRepo(t)

	l, err := Acquire(time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Errorf("Unlock() error = %v", err)
	}
}

func TestAcquire_TimesOutWhenHeld(t *testing.T) {
	newTestRepo(t)

	first, err := Acquire(time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer first.Unlock()

	_, err = Acquire(50 * time.Millisecond)
	if err == nil {
		t.Fatal("Acquire() error = nil, want ErrCheckpointBusy while lock is held")
	}
	if err != model.ErrCheckpointBusy {
		t.Errorf("Acquire() error = %v, want %v", err, model.ErrCheckpointBusy)
	}
}

func TestLoad_MissingJournalIsEmptyLog(t *testing.T) {
	newTestRepo(t)

	log, err := Load("main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(log.Entries) != 0 {
		t.Errorf("Load() entries = %d, want 0 for a missing journal", len(log.Entries))
	}
	if log.Branch != "main" {
		t.Errorf("Load().Branch = %q, want main", log.Branch)
	}
}

func TestAppendThenLoad_RoundTrip(t *testing.T) {
	newTestRepo(t)

	entry := model.CheckpointEntry{
		Seq:      1,
		WallTime: time.Unix(1700000000, 0).UTC(),
		Author:   model.Human,
		PerFile:  model.PerFile{"main.go": {{Start: 1, End: 3, Author: model.Human}}},
	}
	if err := Append("main", entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	log, err := Load("main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(log.Entries) != 1 {
		t.Fatalf("Load() entries = %d, want 1", len(log.Entries))
	}
	if log.Entries[0].Seq != 1 {
		t.Errorf("Load().Entries[0].Seq = %d, want 1", log.Entries[0].Seq)
	}
}

func TestAppend_MultipleEntriesPreserveOrder(t *testing.T) {
	newTestRepo(t)

	for seq := uint64(1); seq <= 3; seq++ {
		entry := model.CheckpointEntry{Seq: seq, WallTime: time.Unix(1700000000, 0).UTC(), Author: model.Human}
		if err := Append("main", entry); err != nil {
			t.Fatalf("Append(%d) error = %v", seq, err)
		}
	}

	log, err := Load("main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(log.Entries) != 3 {
		t.Fatalf("Load() entries = %d, want 3", len(log.Entries))
	}
	for i, e := range log.Entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("Load().Entries[%d].Seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestNextSeq_EmptyLog(t *testing.T) {
	newTestRepo(t)

	seq, err := NextSeq("main")
	if err != nil {
		t.Fatalf("NextSeq() error = %v", err)
	}
	if seq != 1 {
		t.Errorf("NextSeq() = %d, want 1 for an empty log", seq)
	}
}

func TestNextSeq_UsesIndexAfterAppend(t *testing.T) {
	newTestRepo(t)

	if err := Append("main", model.CheckpointEntry{Seq: 1, WallTime: time.Unix(1700000000, 0).UTC()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	seq, err := NextSeq("main")
	if err != nil {
		t.Fatalf("NextSeq() error = %v", err)
	}
	if seq != 2 {
		t.Errorf("NextSeq() = %d, want 2 after one appended entry", seq)
	}
}

func TestTruncate_ClearsLogAndResetsSeq(t *testing.T) {
	newTestRepo(t)

	if err := Append("main", model.CheckpointEntry{Seq: 1, WallTime: time.Unix(1700000000, 0).UTC()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := Truncate("main"); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}

	log, err := Load("main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(log.Entries) != 0 {
		t.Errorf("Load() after Truncate entries = %d, want 0", len(log.Entries))
	}

	seq, err := NextSeq("main")
	if err != nil {
		t.Fatalf("NextSeq() error = %v", err)
	}
	if seq != 1 {
		t.Errorf("NextSeq() after Truncate = %d, want 1", seq)
	}
}

func TestLogPath_SanitizesBranchSlashes(t *testing.T) {
	newTestRepo(t)

	if err := Append("feature/foo", model.CheckpointEntry{Seq: 1, WallTime: time.Unix(1700000000, 0).UTC()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	log, err := Load("feature/foo")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(log.Entries) != 1 {
		t.Errorf("Load() entries = %d, want 1 for a slash-containing branch name", len(log.Entries))
	}
}
