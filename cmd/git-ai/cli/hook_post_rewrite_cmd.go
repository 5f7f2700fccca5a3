package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/linediff"
	"github.com/git-ai/git-ai/internal/materializer"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/note"
)

// newHookPostRewriteCmd implements the receiving end of git's post-rewrite
// hook (githooks(5)): for every "<old-sha> <new-sha> [extra-info]" line on
// stdin, it carries an existing authorship note from old-sha forward to
// new-sha, so rebase/amend/filter-branch don't orphan it. Invoked by the
// hook script install-hooks writes, never called directly by users.
func newHookPostRewriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hook-post-rewrite",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHookPostRewrite(cmd.InOrStdin())
		},
	}
	return cmd
}

func runHookPostRewrite(stdin io.Reader) error {
	store, err := gitstore.Open()
	if err != nil {
		return err
	}
	notes := note.NewManager(store)

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		oldSHA, newSHA := fields[0], fields[1]
		if err := carryForward(store, notes, oldSHA, newSHA); err != nil {
			return fmt.Errorf("carrying note %s -> %s: %w", oldSHA, newSHA, err)
		}
	}
	return scanner.Err()
}

// carryForward moves the note at oldSHA to newSHA, re-materializing each
// file's attribution against newSHA's tree rather than copying it verbatim:
// a rewrite that adds or removes lines (an amend, or a rebase with manual
// conflict resolution) changes which lines a run's coordinates cover, so the
// note has to be remapped through the same LCS diff materializeFile uses, or
// its runs stop tiling the new blob.
func carryForward(store *gitstore.Store, notes *note.Manager, oldSHA, newSHA string) error {
	if oldSHA == newSHA {
		return nil
	}
	n, ok, err := notes.Read(oldSHA)
	if err != nil || !ok {
		return err
	}
	remapped, err := remapNote(store, n, oldSHA, newSHA)
	if err != nil {
		return err
	}
	if err := notes.Write(newSHA, remapped); err != nil {
		return err
	}
	return notes.Delete(oldSHA)
}

// remapNote rebuilds n's per-file attribution against newSHA's tree, carrying
// each file's runs forward through an LCS diff against oldSHA's version of
// the same path. A path missing from either tree is dropped: it was either
// deleted by the rewrite or didn't exist before it.
func remapNote(store *gitstore.Store, n model.AuthorshipNote, oldSHA, newSHA string) (model.AuthorshipNote, error) {
	oldTree, err := store.CommitTree(oldSHA)
	if err != nil {
		return model.AuthorshipNote{}, err
	}
	newTree, err := store.CommitTree(newSHA)
	if err != nil {
		return model.AuthorshipNote{}, err
	}

	files := make(map[string]model.FileNote, len(n.Files))
	for path, fn := range n.Files {
		oldContent, ok, err := store.BlobContents(oldTree, path)
		if err != nil {
			return model.AuthorshipNote{}, err
		}
		if !ok {
			continue
		}
		newContent, ok, err := store.BlobContents(newTree, path)
		if err != nil {
			return model.AuthorshipNote{}, err
		}
		if !ok {
			continue
		}

		intervals := materializer.IntervalsFromRuns(fn.Runs)
		remapped := linediff.Remap(oldContent, newContent, intervals, model.Human, "")
		files[path] = model.FileNote{
			LineCount: linediff.CountLines(newContent),
			Runs:      materializer.RunsFromIntervals(remapped),
		}
	}

	return model.AuthorshipNote{Version: n.Version, CommitID: newSHA, Files: files}, nil
}
