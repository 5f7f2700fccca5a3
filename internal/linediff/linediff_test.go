package linediff

import (
	"testing"

	"github.com/git-ai/git-ai/internal/model"
)

func TestCountLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"no trailing newline", "a\nb\nc", 3},
		{"trailing newline", "a\nb\nc\n", 3},
		{"single line no newline", "a", 1},
		{"single newline only", "\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountLines(tt.content); got != tt.want {
				t.Errorf("CountLines(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}

func TestOps_Identical(t *testing.T) {
	ops := Ops("a\nb\nc\n", "a\nb\nc\n")
	if len(ops) != 1 || ops[0].Type != OpEqual || ops[0].Lines != 3 {
		t.Fatalf("Ops() = %+v, want single OpEqual of 3 lines", ops)
	}
}

func TestOps_EmptyOld(t *testing.T) {
	ops := Ops("", "a\nb\n")
	if len(ops) != 1 || ops[0].Type != OpInsert || ops[0].Lines != 2 {
		t.Fatalf("Ops() = %+v, want single OpInsert of 2 lines", ops)
	}
}

func TestOps_EmptyNew(t *testing.T) {
	ops := Ops("a\nb\n", "")
	if len(ops) != 1 || ops[0].Type != OpDelete || ops[0].Lines != 2 {
		t.Fatalf("Ops() = %+v, want single OpDelete of 2 lines", ops)
	}
}

func TestOps_BothEmpty(t *testing.T) {
	if ops := Ops("", ""); ops != nil {
		t.Errorf("Ops(\"\", \"\") = %+v, want nil", ops)
	}
}

func TestOps_AppendedLine(t *testing.T) {
	ops := Ops("a\nb\n", "a\nb\nc\n")
	if len(ops) != 2 {
		t.Fatalf("Ops() = %+v, want 2 ops", ops)
	}
	if ops[0].Type != OpEqual || ops[0].Lines != 2 {
		t.Errorf("ops[0] = %+v, want OpEqual of 2", ops[0])
	}
	if ops[1].Type != OpInsert || ops[1].Lines != 1 {
		t.Errorf("ops[1] = %+v, want OpInsert of 1", ops[1])
	}
}

func TestChangedOnly(t *testing.T) {
	intervals := ChangedOnly("a\nb\n", "a\nb\nc\nd\n", model.Agent, "claude")
	if len(intervals) != 1 {
		t.Fatalf("ChangedOnly() = %+v, want 1 interval", intervals)
	}
	iv := intervals[0]
	if iv.Start != 3 || iv.End != 5 {
		t.Errorf("interval = %+v, want [3,5)", iv)
	}
	if iv.Author != model.Agent || iv.AgentID != "claude" {
		t.Errorf("interval authorship = %+v, want Agent/claude", iv)
	}
}

func TestChangedOnly_NoChanges(t *testing.T) {
	intervals := ChangedOnly("a\nb\n", "a\nb\n", model.Agent, "claude")
	if intervals != nil {
		t.Errorf("ChangedOnly() = %+v, want nil for identical content", intervals)
	}
}

func TestChangedOnly_PureDeletion(t *testing.T) {
	intervals := ChangedOnly("a\nb\nc\n", "a\n", model.Agent, "claude")
	if intervals != nil {
		t.Errorf("ChangedOnly() = %+v, want nil when only lines were deleted", intervals)
	}
}

func TestAttribute(t *testing.T) {
	intervals := Attribute("a\nb\n", "a\nb\nc\n", model.Human, model.Agent, "", "claude")
	if len(intervals) != 2 {
		t.Fatalf("Attribute() = %+v, want 2 intervals", intervals)
	}
	if intervals[0].Start != 1 || intervals[0].End != 3 || intervals[0].Author != model.Human {
		t.Errorf("kept interval = %+v, want [1,3) human", intervals[0])
	}
	if intervals[1].Start != 3 || intervals[1].End != 4 || intervals[1].Author != model.Agent || intervals[1].AgentID != "claude" {
		t.Errorf("new interval = %+v, want [3,4) agent/claude", intervals[1])
	}
}

func TestRemap_CarriesPriorAttribution(t *testing.T) {
	prior := []model.Interval{
		{Start: 1, End: 2, Author: model.Human},
		{Start: 2, End: 3, Author: model.Agent, AgentID: "claude"},
	}
	// Insert a new line "x" at the top; the two prior lines shift down by one.
	// The inserted line falls back to Human and merges with the carried-forward
	// human line right after it, since adjacent same-author runs coalesce.
	out := Remap("a\nb\n", "x\na\nb\n", prior, model.Human, "")
	if len(out) != 2 {
		t.Fatalf("Remap() = %+v, want 2 intervals", out)
	}
	if out[0].Start != 1 || out[0].End != 3 || out[0].Author != model.Human {
		t.Errorf("merged human run = %+v, want [1,3) human", out[0])
	}
	if out[1].Start != 3 || out[1].End != 4 || out[1].Author != model.Agent || out[1].AgentID != "claude" {
		t.Errorf("carried line b = %+v, want [3,4) agent/claude", out[1])
	}
}

func TestRemap_MergesAdjacentIdenticalRuns(t *testing.T) {
	prior := []model.Interval{
		{Start: 1, End: 3, Author: model.Human},
	}
	out := Remap("a\nb\n", "a\nb\nc\n", prior, model.Human, "")
	if len(out) != 1 {
		t.Fatalf("Remap() = %+v, want a single merged interval", out)
	}
	if out[0].Start != 1 || out[0].End != 4 {
		t.Errorf("merged interval = %+v, want [1,4)", out[0])
	}
}

func TestRemapPartial_LeavesInsertedLinesUncovered(t *testing.T) {
	prior := []model.Interval{
		{Start: 1, End: 2, Author: model.Agent, AgentID: "claude"},
	}
	out := RemapPartial("a\n", "a\nb\n", prior)
	if len(out) != 1 {
		t.Fatalf("RemapPartial() = %+v, want 1 interval (the inserted line left uncovered)", out)
	}
	if out[0].Start != 1 || out[0].End != 2 || out[0].Author != model.Agent || out[0].AgentID != "claude" {
		t.Errorf("carried interval = %+v, want [1,2) agent/claude", out[0])
	}
}

func TestRemapPartial_NoCoverageWhenNothingCarries(t *testing.T) {
	out := RemapPartial("", "a\nb\n", nil)
	if out != nil {
		t.Errorf("RemapPartial() = %+v, want nil when prior carries no attribution", out)
	}
}
