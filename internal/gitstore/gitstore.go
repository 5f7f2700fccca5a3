// Package gitstore is the read-mostly interface to the host git repository:
// opening it, reading blobs/trees, resolving refs, and reading/writing the
// authorship notes ref. It wraps go-git, the library the teacher repo uses
// throughout its checkpoint/strategy packages for the same purpose.
package gitstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Store wraps a go-git repository handle with the operations git-ai needs.
type Store struct {
	Repo *git.Repository
}

// Open opens the repository rooted at or above the current working
// directory, matching go-git's PlainOpenWithOptions(DetectDotGit).
func Open() (*Store, error) {
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository: %w", err)
	}
	return &Store{Repo: repo}, nil
}

// Head returns the current HEAD reference.
func (s *Store) Head() (*plumbing.Reference, error) {
	ref, err := s.Repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref, nil
}

// CurrentBranch returns the short branch name, or an error if HEAD is detached.
func (s *Store) CurrentBranch() (string, error) {
	head, err := s.Head()
	if err != nil {
		return "", err
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("detached HEAD at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

// CommitTree returns the tree object for a commit hash (given as a hex string).
func (s *Store) CommitTree(commitHash string) (*object.Tree, error) {
	hash := plumbing.NewHash(commitHash)
	commit, err := s.Repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", commitHash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree for commit %s: %w", commitHash, err)
	}
	return tree, nil
}

// BlobContents returns the text contents of path in tree, or ("", false, nil)
// if the path doesn't exist in the tree.
func (s *Store) BlobContents(tree *object.Tree, path string) (string, bool, error) {
	f, err := tree.File(path)
	if err != nil {
		if err == object.ErrFileNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s from tree: %w", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("reading contents of %s: %w", path, err)
	}
	return content, true, nil
}

// TreePaths lists every regular-file path present in tree.
func (s *Store) TreePaths(tree *object.Tree) ([]string, error) {
	var paths []string
	err := tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking tree: %w", err)
	}
	return paths, nil
}

// IsBinary reports whether content looks binary by the same null-byte
// heuristic go-git and the teacher repo both use as a fast path; callers
// needing stronger detection should prefer internal/snapshot's enry-backed
// classifier, which falls back to this check.
func IsBinary(content string) bool {
	return strings.Contains(content, "\x00")
}

// DefaultBranch attempts to resolve origin/HEAD's target branch name,
// falling back to "" if it can't be determined.
func (s *Store) DefaultBranch() string {
	ref, err := s.Repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), true)
	if err != nil {
		return ""
	}
	target := ref.Target().String()
	const prefix = "refs/remotes/origin/"
	if strings.HasPrefix(target, prefix) {
		return strings.TrimPrefix(target, prefix)
	}
	return ""
}

// ComponentCommits returns the commits unique to sourceRev relative to
// headHash, oldest first: the commits a `git merge --squash sourceRev`
// against headHash folds together. The common ancestor itself is excluded.
func (s *Store) ComponentCommits(headHash, sourceRev string) ([]string, error) {
	sourceHash, err := s.Repo.ResolveRevision(plumbing.Revision(sourceRev))
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", sourceRev, err)
	}
	headCommit, err := s.Repo.CommitObject(plumbing.NewHash(headHash))
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", headHash, err)
	}
	sourceCommit, err := s.Repo.CommitObject(*sourceHash)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceRev, err)
	}

	var baseHash plumbing.Hash
	bases, err := headCommit.MergeBase(sourceCommit)
	if err != nil {
		return nil, fmt.Errorf("finding merge base: %w", err)
	}
	if len(bases) > 0 {
		baseHash = bases[0].Hash
	}

	iter, err := s.Repo.Log(&git.LogOptions{From: *sourceHash})
	if err != nil {
		return nil, fmt.Errorf("walking %s history: %w", sourceRev, err)
	}
	defer iter.Close()

	var hashes []string
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash == baseHash {
			return storer.ErrStop
		}
		hashes = append(hashes, c.Hash.String())
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("walking %s history: %w", sourceRev, err)
	}

	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
	return hashes, nil
}

// ResolveCommit resolves a revision string (branch, tag, short/long hash,
// "HEAD", etc.) to its full commit hash.
func (s *Store) ResolveCommit(rev string) (string, error) {
	hash, err := s.Repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolving revision %q: %w", rev, err)
	}
	return hash.String(), nil
}
