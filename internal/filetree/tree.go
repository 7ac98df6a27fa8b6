// Package filetree groups changed files into a directory tree for display.
//
// Build, Collapse and Present are pure: each returns a fresh tree and never
// modifies its input, so a caller may keep any intermediate result.
package filetree

import "strings"

// Separator splits file paths into segments. Paths are used verbatim.
const Separator = "/"

// File is a file record together with the full path it was filed under.
type File[T any] struct {
	Path   string
	Record T
}

// Node is one directory level. Files holds the files that live directly in
// this directory; Children holds subdirectories keyed by path segment (or by a
// joined multi-segment key once collapsed).
type Node[T any] struct {
	Files    []File[T]
	Children map[string]*Node[T]
}

func newNode[T any]() *Node[T] {
	return &Node[T]{Children: make(map[string]*Node[T])}
}

// Build turns a flat list of files into a path trie. A file at a/b/c.txt is
// stored in the Files of the node reached by a/b; a file without a separator
// is stored on the root.
func Build[T any](files []File[T]) *Node[T] {
	root := newNode[T]()
	for _, f := range files {
		segments := strings.Split(f.Path, Separator)
		n := root
		for _, dir := range segments[:len(segments)-1] {
			child, ok := n.Children[dir]
			if !ok {
				child = newNode[T]()
				n.Children[dir] = child
			}
			n = child
		}
		n.Files = append(n.Files, f)
	}
	return root
}

// Collapse merges every interior chain of directories that hold no files and
// exactly one subdirectory into a single child keyed by the joined path, e.g.
// a -> b -> {c.txt} becomes a/b -> {c.txt}. The root is never merged into its
// child. Collapse is idempotent.
func Collapse[T any](root *Node[T]) *Node[T] {
	out := &Node[T]{
		Files:    append([]File[T](nil), root.Files...),
		Children: make(map[string]*Node[T], len(root.Children)),
	}
	for key, child := range root.Children {
		for len(child.Files) == 0 && len(child.Children) == 1 {
			for only, grandchild := range child.Children {
				key = key + Separator + only
				child = grandchild
			}
		}
		out.Children[key] = Collapse(child)
	}
	return out
}

// Equal reports whether two trees have the same shape and the same file paths
// in the same order.
func Equal[T any](a, b *Node[T]) bool {
	if len(a.Files) != len(b.Files) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Files {
		if a.Files[i].Path != b.Files[i].Path {
			return false
		}
	}
	for k, ac := range a.Children {
		bc, ok := b.Children[k]
		if !ok || !Equal(ac, bc) {
			return false
		}
	}
	return true
}

// Count returns the number of files in the tree.
func (n *Node[T]) Count() int {
	total := len(n.Files)
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}
