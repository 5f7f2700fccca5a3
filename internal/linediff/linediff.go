// Package linediff computes line-level diffs between two versions of a
// file's text and turns them into authorship intervals. It generalizes the
// line-mode diff pipeline the teacher repo uses for coarse attribution
// counts (sergi/go-diff's DiffLinesToChars/DiffMain/DiffCharsToLines) into
// full per-line interval output.
package linediff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/git-ai/git-ai/internal/model"
)

// OpType classifies one stretch of a line-level diff.
type OpType uint8

const (
	OpEqual OpType = iota
	OpInsert
	OpDelete
)

// Op is one run of consecutive lines of the same diff type.
type Op struct {
	Type  OpType
	Lines int
}

// Ops returns the line-level diff between old and new content as a sequence
// of equal/insert/delete runs, in the order they appear in new content
// (delete runs consume old-side lines only and don't advance the new-side
// cursor). An adjacent delete and insert keep diffmatchpatch's own output
// order, delete first; since a delete run doesn't advance the new-side
// cursor, that order has no effect on new-side line numbers. Two empty
// inputs yield nil.
func Ops(oldContent, newContent string) []Op {
	if oldContent == newContent {
		if newContent == "" {
			return nil
		}
		return []Op{{Type: OpEqual, Lines: countLines(newContent)}}
	}
	if oldContent == "" {
		return []Op{{Type: OpInsert, Lines: countLines(newContent)}}
	}
	if newContent == "" {
		return []Op{{Type: OpDelete, Lines: countLines(oldContent)}}
	}

	dmp := diffmatchpatch.New()
	text1, text2, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(text1, text2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	ops := make([]Op, 0, len(diffs))
	for _, d := range diffs {
		n := countLines(d.Text)
		if n == 0 {
			continue
		}
		var t OpType
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			t = OpEqual
		case diffmatchpatch.DiffInsert:
			t = OpInsert
		case diffmatchpatch.DiffDelete:
			t = OpDelete
		}
		if len(ops) > 0 && ops[len(ops)-1].Type == t {
			ops[len(ops)-1].Lines += n
			continue
		}
		ops = append(ops, Op{Type: t, Lines: n})
	}
	return ops
}

// CountLines counts lines the same way the teacher's countLinesStr does: an
// empty string has 0 lines, and a trailing newline doesn't create a phantom
// final line.
func CountLines(content string) int {
	return countLines(content)
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// ChangedOnly diffs oldContent against newContent and returns intervals for
// only the lines newContent added relative to oldContent, all attributed to
// author/agentID. Unlike Attribute, unchanged lines are omitted entirely;
// this is what the checkpoint engine uses to record a delta rather than a
// full-file attribution.
func ChangedOnly(oldContent, newContent string, author model.AuthorKind, agentID string) []model.Interval {
	ops := Ops(oldContent, newContent)
	var out []model.Interval
	line := 1
	for _, op := range ops {
		switch op.Type {
		case OpEqual:
			line += op.Lines
		case OpInsert:
			out = appendInterval(out, line, line+op.Lines, author, agentID)
			line += op.Lines
		case OpDelete:
			// consumes no new-side lines
		}
	}
	return out
}

// Attribute diffs oldContent against newContent and returns the authorship
// intervals for newContent: stretches equal to oldContent are attributed to
// keepAuthor/keepAgentID (the author of the version being diffed from,
// typically the prior checkpoint or commit), and inserted stretches are
// attributed to newAuthor/newAgentID (the author of the edit producing
// newContent). Deleted lines don't appear in newContent and emit nothing.
func Attribute(oldContent, newContent string, keepAuthor, newAuthor model.AuthorKind, keepAgentID, newAgentID string) []model.Interval {
	ops := Ops(oldContent, newContent)
	var out []model.Interval
	line := 1
	for _, op := range ops {
		switch op.Type {
		case OpEqual:
			out = appendInterval(out, line, line+op.Lines, keepAuthor, keepAgentID)
			line += op.Lines
		case OpInsert:
			out = appendInterval(out, line, line+op.Lines, newAuthor, newAgentID)
			line += op.Lines
		case OpDelete:
			// consumes no new-side lines
		}
	}
	return out
}

// Remap carries a prior line-interval attribution for oldContent forward
// onto newContent, using the line-level diff as the correspondence between
// old and new line numbers. Equal runs copy the attribution of the
// corresponding old lines; inserted runs (lines present in newContent with
// no old-side counterpart) are attributed to fallback, since they
// represent an edit the working log never captured a checkpoint for. This
// is the LCS remap the materializer uses to fold checkpoint-time
// attribution into commit-time coordinates.
func Remap(oldContent, newContent string, prior []model.Interval, fallback model.AuthorKind, fallbackAgentID string) []model.Interval {
	ops := Ops(oldContent, newContent)
	var out []model.Interval
	oldLine, newLine := 1, 1
	for _, op := range ops {
		switch op.Type {
		case OpEqual:
			for i := 0; i < op.Lines; i++ {
				author, agentID := lookup(prior, oldLine+i)
				out = appendInterval(out, newLine+i, newLine+i+1, author, agentID)
			}
			oldLine += op.Lines
			newLine += op.Lines
		case OpInsert:
			out = appendInterval(out, newLine, newLine+op.Lines, fallback, fallbackAgentID)
			newLine += op.Lines
		case OpDelete:
			oldLine += op.Lines
		}
	}
	return mergeAdjacent(out)
}

func lookup(intervals []model.Interval, line int) (model.AuthorKind, string) {
	for _, iv := range intervals {
		if line >= iv.Start && line < iv.End {
			return iv.Author, iv.AgentID
		}
	}
	return model.Human, ""
}

// RemapPartial carries prior forward like Remap, but leaves newly-inserted
// lines (present in newContent with no old-side counterpart) uncovered
// instead of attributing them to a fallback author. This is what a
// squash-merge union needs: a component commit's attribution should say
// nothing about lines it didn't contribute, so the caller can overlay
// several components' partial results and let the latest one win only
// where it actually has an opinion.
func RemapPartial(oldContent, newContent string, prior []model.Interval) []model.Interval {
	ops := Ops(oldContent, newContent)
	var out []model.Interval
	oldLine, newLine := 1, 1
	for _, op := range ops {
		switch op.Type {
		case OpEqual:
			for i := 0; i < op.Lines; i++ {
				if author, agentID, ok := lookupOK(prior, oldLine+i); ok {
					out = appendInterval(out, newLine+i, newLine+i+1, author, agentID)
				}
			}
			oldLine += op.Lines
			newLine += op.Lines
		case OpInsert:
			newLine += op.Lines
		case OpDelete:
			oldLine += op.Lines
		}
	}
	return mergeAdjacent(out)
}

func lookupOK(intervals []model.Interval, line int) (model.AuthorKind, string, bool) {
	for _, iv := range intervals {
		if line >= iv.Start && line < iv.End {
			return iv.Author, iv.AgentID, true
		}
	}
	return model.Human, "", false
}

func appendInterval(out []model.Interval, start, end int, author model.AuthorKind, agentID string) []model.Interval {
	if start >= end {
		return out
	}
	if n := len(out); n > 0 && out[n-1].End == start && out[n-1].Author == author && out[n-1].AgentID == agentID {
		out[n-1].End = end
		return out
	}
	return append(out, model.Interval{Start: start, End: end, Author: author, AgentID: agentID})
}

func mergeAdjacent(intervals []model.Interval) []model.Interval {
	if len(intervals) < 2 {
		return intervals
	}
	out := intervals[:1]
	for _, iv := range intervals[1:] {
		last := &out[len(out)-1]
		if last.End == iv.Start && last.Author == iv.Author && last.AgentID == iv.AgentID {
			last.End = iv.End
			continue
		}
		out = append(out, iv)
	}
	return out
}
