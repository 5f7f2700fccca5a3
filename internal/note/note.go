// Package note implements the binary authorship-note envelope and the
// refs/notes/ai storage it's attached under. The envelope format is
// internal to git-ai: a magic/version header, a deduplicated agent-id
// string table, and a run-length-encoded attribution table per file.
package note

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/git-ai/git-ai/internal/gitstore"
	"github.com/git-ai/git-ai/internal/model"
	"github.com/git-ai/git-ai/internal/paths"
)

var magic = []byte(paths.NotesMagic)

// Encode serializes a note into the on-disk envelope format.
func Encode(n model.AuthorshipNote) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic)
	if err := binary.Write(&buf, binary.BigEndian, n.Version); err != nil {
		return nil, err
	}

	writeString(&buf, n.CommitID)

	// Build a deduplicated agent-id table up front so runs reference it by index.
	agentIndex := map[string]uint16{}
	var agents []string
	indexFor := func(id string) uint16 {
		if id == "" {
			return 0
		}
		if i, ok := agentIndex[id]; ok {
			return i
		}
		agents = append(agents, id)
		i := uint16(len(agents)) // 1-based; 0 means "no agent"
		agentIndex[id] = i
		return i
	}

	// Pre-scan so the agent table precedes the file table, even though file
	// encoding is what discovers the agent ids.
	for _, f := range n.Files {
		for _, r := range f.Runs {
			indexFor(r.AgentID)
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(agents))); err != nil {
		return nil, err
	}
	for _, a := range agents {
		writeString(&buf, a)
	}

	paths := make([]string, 0, len(n.Files))
	for p := range n.Files {
		paths = append(paths, p)
	}
	sortStrings(paths)

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(paths))); err != nil {
		return nil, err
	}
	for _, p := range paths {
		fn := n.Files[p]
		if fn.TotalLines() != fn.LineCount {
			return nil, fmt.Errorf("%w: %s has %d run lines but LineCount=%d", model.ErrNoteInvariantViolation, p, fn.TotalLines(), fn.LineCount)
		}
		writeString(&buf, p)
		if err := binary.Write(&buf, binary.BigEndian, uint32(fn.LineCount)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(fn.Runs))); err != nil {
			return nil, err
		}
		for _, r := range fn.Runs {
			if err := binary.Write(&buf, binary.BigEndian, uint32(r.Len)); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.BigEndian, uint8(r.Author)); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.BigEndian, indexFor(r.AgentID)); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

// Decode parses the envelope format back into an AuthorshipNote.
func Decode(data []byte) (model.AuthorshipNote, error) {
	r := bytes.NewReader(data)

	gotMagic := make([]byte, len(magic))
	if _, err := r.Read(gotMagic); err != nil || !bytes.Equal(gotMagic, magic) {
		return model.AuthorshipNote{}, fmt.Errorf("note: bad magic header")
	}

	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return model.AuthorshipNote{}, fmt.Errorf("note: reading version: %w", err)
	}

	commitID, err := readString(r)
	if err != nil {
		return model.AuthorshipNote{}, fmt.Errorf("note: reading commit id: %w", err)
	}

	var agentCount uint16
	if err := binary.Read(r, binary.BigEndian, &agentCount); err != nil {
		return model.AuthorshipNote{}, fmt.Errorf("note: reading agent count: %w", err)
	}
	agents := make([]string, agentCount)
	for i := range agents {
		agents[i], err = readString(r)
		if err != nil {
			return model.AuthorshipNote{}, fmt.Errorf("note: reading agent %d: %w", i, err)
		}
	}

	var fileCount uint32
	if err := binary.Read(r, binary.BigEndian, &fileCount); err != nil {
		return model.AuthorshipNote{}, fmt.Errorf("note: reading file count: %w", err)
	}

	files := make(map[string]model.FileNote, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		path, err := readString(r)
		if err != nil {
			return model.AuthorshipNote{}, fmt.Errorf("note: reading file path %d: %w", i, err)
		}
		var lineCount, runCount uint32
		if err := binary.Read(r, binary.BigEndian, &lineCount); err != nil {
			return model.AuthorshipNote{}, err
		}
		if err := binary.Read(r, binary.BigEndian, &runCount); err != nil {
			return model.AuthorshipNote{}, err
		}
		runs := make([]model.Run, runCount)
		for j := uint32(0); j < runCount; j++ {
			var length uint32
			var author uint8
			var agentIdx uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return model.AuthorshipNote{}, err
			}
			if err := binary.Read(r, binary.BigEndian, &author); err != nil {
				return model.AuthorshipNote{}, err
			}
			if err := binary.Read(r, binary.BigEndian, &agentIdx); err != nil {
				return model.AuthorshipNote{}, err
			}
			agentID := ""
			if agentIdx > 0 && int(agentIdx) <= len(agents) {
				agentID = agents[agentIdx-1]
			}
			runs[j] = model.Run{Len: int(length), Author: model.AuthorKind(author), AgentID: agentID}
		}
		fn := model.FileNote{LineCount: int(lineCount), Runs: runs}
		if fn.TotalLines() != fn.LineCount {
			return model.AuthorshipNote{}, fmt.Errorf("%w: %s", model.ErrNoteInvariantViolation, path)
		}
		files[path] = fn
	}

	return model.AuthorshipNote{Version: version, CommitID: commitID, Files: files}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Manager attaches, reads, and deletes authorship notes under refs/notes/ai.
// The notes tree is flat: one blob per commit, keyed by the commit's full
// hex hash.
type Manager struct {
	store *gitstore.Store
}

// NewManager wraps a gitstore.Store for notes access.
func NewManager(s *gitstore.Store) *Manager {
	return &Manager{store: s}
}

// Read loads the authorship note for commitHash, returning (note, true, nil)
// if present or (zero, false, nil) if there is no note for that commit.
func (m *Manager) Read(commitHash string) (model.AuthorshipNote, bool, error) {
	tree, ok, err := m.notesTree()
	if err != nil || !ok {
		return model.AuthorshipNote{}, false, err
	}
	f, err := tree.File(commitHash)
	if err != nil {
		if err == object.ErrFileNotFound {
			return model.AuthorshipNote{}, false, nil
		}
		return model.AuthorshipNote{}, false, fmt.Errorf("reading note blob: %w", err)
	}
	r, err := f.Reader()
	if err != nil {
		return model.AuthorshipNote{}, false, fmt.Errorf("opening note blob: %w", err)
	}
	defer r.Close()
	data := make([]byte, f.Size)
	if _, err := readFull(r, data); err != nil {
		return model.AuthorshipNote{}, false, fmt.Errorf("reading note blob: %w", err)
	}
	n, err := Decode(data)
	if err != nil {
		return model.AuthorshipNote{}, false, err
	}
	return n, true, nil
}

// Write attaches (or idempotently overwrites) the authorship note for a
// commit. A write that would reproduce an existing note's bytes exactly is
// a no-op: it doesn't create a new notes commit.
func (m *Manager) Write(commitHash string, n model.AuthorshipNote) error {
	data, err := Encode(n)
	if err != nil {
		return err
	}

	entries, parent, err := m.currentEntries()
	if err != nil {
		return err
	}

	if existing, ok := entries[commitHash]; ok {
		if existingData, _, err := m.blobBytes(existing); err == nil && bytes.Equal(existingData, data) {
			return nil // idempotent: identical note already attached
		}
	}

	blobHash, err := m.writeBlob(data)
	if err != nil {
		return err
	}
	entries[commitHash] = blobHash

	return m.commitNotesTree(entries, parent, fmt.Sprintf("note: %s", commitHash))
}

// Delete removes the authorship note for a commit, if any.
func (m *Manager) Delete(commitHash string) error {
	entries, parent, err := m.currentEntries()
	if err != nil {
		return err
	}
	if _, ok := entries[commitHash]; !ok {
		return nil
	}
	delete(entries, commitHash)
	return m.commitNotesTree(entries, parent, fmt.Sprintf("note: remove %s", commitHash))
}

func (m *Manager) notesTree() (*object.Tree, bool, error) {
	ref, err := m.store.Repo.Reference(plumbing.ReferenceName(paths.NotesRefName), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("resolving notes ref: %w", err)
	}
	commit, err := m.store.Repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, false, fmt.Errorf("reading notes commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, false, fmt.Errorf("reading notes tree: %w", err)
	}
	return tree, true, nil
}

func (m *Manager) currentEntries() (map[string]plumbing.Hash, *object.Commit, error) {
	entries := map[string]plumbing.Hash{}

	ref, err := m.store.Repo.Reference(plumbing.ReferenceName(paths.NotesRefName), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return entries, nil, nil
		}
		return nil, nil, fmt.Errorf("resolving notes ref: %w", err)
	}
	commit, err := m.store.Repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, nil, fmt.Errorf("reading notes commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("reading notes tree: %w", err)
	}
	err = tree.Files().ForEach(func(f *object.File) error {
		entries[f.Name] = f.Hash
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking notes tree: %w", err)
	}
	return entries, commit, nil
}

func (m *Manager) blobBytes(hash plumbing.Hash) ([]byte, int64, error) {
	blob, err := m.store.Repo.BlobObject(hash)
	if err != nil {
		return nil, 0, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()
	data := make([]byte, blob.Size)
	n, err := readFull(r, data)
	return data[:n], blob.Size, err
}

func (m *Manager) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := m.store.Repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return m.store.Repo.Storer.SetEncodedObject(obj)
}

// commitNotesTree writes a flat tree from entries, commits it with parent
// (if any) as its sole parent, and fast-forwards refs/notes/ai to it.
func (m *Manager) commitNotesTree(entries map[string]plumbing.Hash, parent *object.Commit, message string) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sortStrings(names)

	tree := &object.Tree{}
	for _, name := range names {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name,
			Mode: 0o100644,
			Hash: entries[name],
		})
	}

	treeObj := m.store.Repo.Storer.NewEncodedObject()
	treeObj.SetType(plumbing.TreeObject)
	if err := tree.Encode(treeObj); err != nil {
		return fmt.Errorf("encoding notes tree: %w", err)
	}
	treeHash, err := m.store.Repo.Storer.SetEncodedObject(treeObj)
	if err != nil {
		return fmt.Errorf("storing notes tree: %w", err)
	}

	sig := object.Signature{Name: "git-ai", Email: "git-ai@localhost", When: commitTime()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: nil,
	}
	if parent != nil {
		commit.ParentHashes = []plumbing.Hash{parent.Hash}
	}

	commitObj := m.store.Repo.Storer.NewEncodedObject()
	commitObj.SetType(plumbing.CommitObject)
	if err := commit.Encode(commitObj); err != nil {
		return fmt.Errorf("encoding notes commit: %w", err)
	}
	commitHash, err := m.store.Repo.Storer.SetEncodedObject(commitObj)
	if err != nil {
		return fmt.Errorf("storing notes commit: %w", err)
	}

	ref := plumbing.NewHashReference(plumbing.ReferenceName(paths.NotesRefName), commitHash)
	if err := m.store.Repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("updating notes ref: %w", err)
	}
	return nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

func commitTime() time.Time { return time.Now() }
