package model

import "testing"

func TestAuthorKind_String(t *testing.T) {
	if got := Human.String(); got != "human" {
		t.Errorf("Human.String() = %q, want %q", got, "human")
	}
	if got := Agent.String(); got != "agent" {
		t.Errorf("Agent.String() = %q, want %q", got, "agent")
	}
}

func TestInterval_Len(t *testing.T) {
	iv := Interval{Start: 3, End: 7}
	if got := iv.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestWorkingLog_NextSeq(t *testing.T) {
	var l WorkingLog
	if got := l.NextSeq(); got != 1 {
		t.Errorf("NextSeq() on empty log = %d, want 1", got)
	}

	l.Entries = append(l.Entries, CheckpointEntry{Seq: 1}, CheckpointEntry{Seq: 5})
	if got := l.NextSeq(); got != 6 {
		t.Errorf("NextSeq() = %d, want 6", got)
	}
}

func TestFileNote_TotalLines(t *testing.T) {
	n := FileNote{
		LineCount: 5,
		Runs: []Run{
			{Len: 2, Author: Human},
			{Len: 3, Author: Agent, AgentID: "claude"},
		},
	}
	if got := n.TotalLines(); got != n.LineCount {
		t.Errorf("TotalLines() = %d, want %d", got, n.LineCount)
	}
}
