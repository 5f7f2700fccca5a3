package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/git-ai/git-ai/internal/checkpoint"
	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/materializer"
	"github.com/git-ai/git-ai/internal/model"
)

func commitWithCheckpoint(t *testing.T, dir string) string {
	t.Helper()
	mainGo := filepath.Join(dir, "main.go")
	if err := os.WriteFile(mainGo, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	runGit(t, dir, "commit", "-am", "base")
	engine, err := checkpoint.NewEngine(dir)
	if err != nil {
		t.Fatalf("checkpoint.NewEngine() error = %v", err)
	}
	if err := os.WriteFile(mainGo, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := engine.Run(checkpoint.Request{Author: model.Agent, AgentID: "claude"}); err != nil {
		t.Fatalf("checkpoint Run() error = %v", err)
	}
	runGit(t, dir, "commit", "-am", "add c")

	store, err := gitstore.Open()
	if err != nil {
		t.Fatalf("gitstore.Open() error = %v", err)
	}
	head, err := store.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if err := materializer.New(store).Materialize("main", head.Hash().String()); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	return head.Hash().String()
}

func TestStatsCmd_NoRecordedAttribution(t *testing.T) {
	newRepo(t)

	cmd := newStatsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); got == "" {
		t.Error("output = empty, want a no-attribution notice")
	}
}

func TestStatsCmd_JSONReportsAttribution(t *testing.T) {
	dir := newRepo(t)
	want := commitWithCheckpoint(t, dir)

	cmd := newStatsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var report statsReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v\noutput: %s", err, out.String())
	}
	if report.Commit != want {
		t.Errorf("report.Commit = %q, want %q", report.Commit, want)
	}
	if len(report.Files) != 1 || report.Files[0].Path != "main.go" {
		t.Fatalf("report.Files = %+v, want one entry for main.go", report.Files)
	}
	if report.Files[0].HumanLines != 2 || report.Files[0].AgentLines != 1 {
		t.Errorf("report.Files[0] = %+v, want HumanLines=2 AgentLines=1", report.Files[0])
	}
	if report.TotalFiles != 1 {
		t.Errorf("report.TotalFiles = %d, want 1", report.TotalFiles)
	}
}

func TestStatsCmd_PlainTextReportsPercentage(t *testing.T) {
	dir := newRepo(t)
	commitWithCheckpoint(t, dir)

	cmd := newStatsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); got == "" {
		t.Error("output = empty, want a per-file attribution report")
	}
}
