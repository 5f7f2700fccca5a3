package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestDoctorCmd_ReportsHealthyRepoAndConfig(t *testing.T) {
	configureGitPath(t)
	newRepo(t)

	cmd := newDoctorCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "✓ git_path:") {
		t.Errorf("output = %q, want a git_path check", got)
	}
	if !strings.Contains(got, "✓ repository found") {
		t.Errorf("output = %q, want a repository-found check", got)
	}
	if !strings.Contains(got, "not present yet") {
		t.Errorf("output = %q, want refs/notes/ai reported as absent in a fresh repo", got)
	}
}

func TestDoctorCmd_ReportsMissingConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	newRepo(t)

	cmd := newDoctorCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, "✗ config:") {
		t.Errorf("output = %q, want a config error reported", got)
	}
}
