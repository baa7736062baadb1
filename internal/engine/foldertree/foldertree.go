// Package foldertree implements the hierarchical folder namespace. Folders
// own their child folders and the set of document IDs placed in them; a flat
// path→node map gives O(depth)-free lookups. Deleting a folder reparents its
// contents: documents move to the parent's set and child folders become
// direct children of the parent.
package foldertree

import (
	"iter"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/organizerlabs/smart-search-organizer/pkg/errors"
)

// RootPath is the canonical root folder path. The root is created with the
// tree and can never be deleted.
const RootPath = "/"

// Folder is one node of the tree. Parent is a non-owning back-reference used
// for reparenting and upward traversal.
type Folder struct {
	path     string
	name     string
	parent   *Folder
	children map[string]*Folder
	docs     map[string]struct{}
}

// Path returns the folder's normalized absolute path.
func (f *Folder) Path() string { return f.path }

// Name returns the folder's last path segment ("" for the root).
func (f *Folder) Name() string { return f.name }

// Parent returns the parent folder, or nil for the root.
func (f *Folder) Parent() *Folder { return f.parent }

// DocumentIDs returns a sorted copy of the folder's document ID set.
func (f *Folder) DocumentIDs() []string {
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NumDocuments returns the number of documents directly in the folder.
func (f *Folder) NumDocuments() int { return len(f.docs) }

// NumChildren returns the number of direct child folders.
func (f *Folder) NumChildren() int { return len(f.children) }

// Walk returns a lazy pre-order traversal of the subtree rooted at f,
// including f itself. Children are visited in lexicographic name order.
func (f *Folder) Walk() iter.Seq[*Folder] {
	return func(yield func(*Folder) bool) {
		stack := []*Folder{f}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(current) {
				return
			}
			names := current.childNames()
			for i := len(names) - 1; i >= 0; i-- {
				stack = append(stack, current.children[names[i]])
			}
		}
	}
}

// childNames returns child folder names in lexicographic order, for
// deterministic traversal.
func (f *Folder) childNames() []string {
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tree is the folder hierarchy. It is not goroutine-safe; the owning engine
// serialises access.
type Tree struct {
	root   *Folder
	byPath map[string]*Folder
}

// New creates a Tree containing only the root folder.
func New() *Tree {
	root := &Folder{
		path:     RootPath,
		children: make(map[string]*Folder),
		docs:     make(map[string]struct{}),
	}
	return &Tree{
		root:   root,
		byPath: map[string]*Folder{RootPath: root},
	}
}

// Normalize converts path into canonical "/a/b" form. Empty and "/" map to
// the root. Segments that are blank after trimming, ".", or ".." make the
// path malformed.
func Normalize(path string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return RootPath, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" || seg == "." || seg == ".." {
			return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"malformed folder path %q", path)
		}
	}
	return "/" + strings.Join(segments, "/"), nil
}

// Len returns the number of folders including the root.
func (t *Tree) Len() int { return len(t.byPath) }

// Root returns the root folder.
func (t *Tree) Root() *Folder { return t.root }

// Get returns the folder at path.
func (t *Tree) Get(path string) (*Folder, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	folder, ok := t.byPath[normalized]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrFolderNotFound, http.StatusNotFound,
			"folder %q does not exist", normalized)
	}
	return folder, nil
}

// Create ensures a folder exists at path, creating missing intermediate
// folders on the way down. Creating an existing path is a no-op returning
// the existing node. O(depth).
func (t *Tree) Create(path string) (*Folder, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	if folder, ok := t.byPath[normalized]; ok {
		return folder, nil
	}
	current := t.root
	currentPath := ""
	for _, name := range strings.Split(strings.TrimPrefix(normalized, "/"), "/") {
		currentPath = currentPath + "/" + name
		child, ok := current.children[name]
		if !ok {
			child = &Folder{
				path:     currentPath,
				name:     name,
				parent:   current,
				children: make(map[string]*Folder),
				docs:     make(map[string]struct{}),
			}
			current.children[name] = child
			t.byPath[currentPath] = child
		}
		current = child
	}
	return current, nil
}

// Delete removes the folder at path. Its documents are reassigned to the
// parent's document set and its child folders are reparented to become
// direct children of the parent; descendant path keys are rewritten
// accordingly. A reparented child whose name collides with an existing
// sibling is merged into it (document sets unioned, same-name grandchildren
// merged recursively) so no folder or document is ever dropped. Deleting the
// root fails with ErrRootDeletion. O(depth + descendants moved).
func (t *Tree) Delete(path string) error {
	normalized, err := Normalize(path)
	if err != nil {
		return err
	}
	if normalized == RootPath {
		return apperrors.New(apperrors.ErrRootDeletion, http.StatusConflict,
			"the root folder cannot be deleted")
	}
	folder, ok := t.byPath[normalized]
	if !ok {
		return apperrors.Newf(apperrors.ErrFolderNotFound, http.StatusNotFound,
			"folder %q does not exist", normalized)
	}
	parent := folder.parent

	for id := range folder.docs {
		parent.docs[id] = struct{}{}
	}
	delete(parent.children, folder.name)
	delete(t.byPath, normalized)
	for name, child := range folder.children {
		t.attach(parent, name, child)
	}
	folder.children = nil
	folder.docs = nil
	folder.parent = nil
	return nil
}

// attach reparents child under dst. When dst already has a child of the same
// name the two are merged instead: document sets are unioned and same-name
// grandchildren merge recursively, so a collision never replaces a live
// folder or loses its documents.
func (t *Tree) attach(dst *Folder, name string, child *Folder) {
	existing, ok := dst.children[name]
	if !ok {
		child.parent = dst
		dst.children[name] = child
		t.rewritePaths(child)
		return
	}
	delete(t.byPath, child.path)
	for id := range child.docs {
		existing.docs[id] = struct{}{}
	}
	for grandName, grand := range child.children {
		t.attach(existing, grandName, grand)
	}
	child.children = nil
	child.docs = nil
	child.parent = nil
}

// rewritePaths recomputes the path of f and all its descendants from the
// (new) parent chain and refreshes the path lookup map.
func (t *Tree) rewritePaths(f *Folder) {
	delete(t.byPath, f.path)
	if f.parent.path == RootPath {
		f.path = RootPath + f.name
	} else {
		f.path = f.parent.path + "/" + f.name
	}
	t.byPath[f.path] = f
	for _, child := range f.children {
		t.rewritePaths(child)
	}
}

// AddDocument places a document ID into the folder at path.
func (t *Tree) AddDocument(path, docID string) error {
	folder, err := t.Get(path)
	if err != nil {
		return err
	}
	folder.docs[docID] = struct{}{}
	return nil
}

// RemoveDocument removes a document ID from the folder at path.
func (t *Tree) RemoveDocument(path, docID string) error {
	folder, err := t.Get(path)
	if err != nil {
		return err
	}
	delete(folder.docs, docID)
	return nil
}

// DFS returns a lazy, restartable pre-order traversal starting at the root.
// Children are visited in lexicographic name order.
func (t *Tree) DFS() iter.Seq[*Folder] {
	return func(yield func(*Folder) bool) {
		stack := []*Folder{t.root}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(f) {
				return
			}
			names := f.childNames()
			// Push in reverse so the lexicographically first child pops
			// first.
			for i := len(names) - 1; i >= 0; i-- {
				stack = append(stack, f.children[names[i]])
			}
		}
	}
}

// BFS returns a lazy, restartable level-order traversal starting at the
// root. Children are visited in lexicographic name order.
func (t *Tree) BFS() iter.Seq[*Folder] {
	return func(yield func(*Folder) bool) {
		queue := []*Folder{t.root}
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			if !yield(f) {
				return
			}
			for _, name := range f.childNames() {
				queue = append(queue, f.children[name])
			}
		}
	}
}
