// Package refspec injects the authorship-notes refspec into fetch, pull,
// and push invocations, so refs/notes/ai travels with the commits it
// annotates by default, without the user having to configure
// remote.origin.fetch by hand.
package refspec

import "strings"

// NotesRef is the ref both sides of a transfer synchronize.
const NotesRef = "refs/notes/ai"

// NoAINotesFlag lets a user opt a single invocation out of the injection.
const NoAINotesFlag = "--no-ai-notes"

// fetchSpec is a force-update refspec: notes history can diverge (two
// machines both appending notes), and the fetch side should always take
// the remote's current notes ref rather than refusing a non-fast-forward.
func fetchSpec() string { return "+" + NotesRef + ":" + NotesRef }

func pushSpec() string { return NotesRef + ":" + NotesRef }

// InjectFetch appends the notes fetch refspec to a `git fetch` or `git
// pull` argv, unless --no-ai-notes is present (which is stripped before
// the real git sees it) or the refspec is already present.
func InjectFetch(argv []string) []string {
	return inject(argv, fetchSpec())
}

// InjectPush appends the notes push refspec to a `git push` argv, under
// the same --no-ai-notes/idempotence rules as InjectFetch.
func InjectPush(argv []string) []string {
	return inject(argv, pushSpec())
}

func inject(argv []string, spec string) []string {
	out := make([]string, 0, len(argv)+1)
	skip := false
	for _, a := range argv {
		if a == NoAINotesFlag {
			skip = true
			continue
		}
		out = append(out, a)
	}
	if skip {
		return out
	}
	for _, a := range out {
		if a == spec || strings.TrimPrefix(a, "+") == strings.TrimPrefix(spec, "+") {
			return out // already present, idempotent
		}
	}
	return append(out, spec)
}
