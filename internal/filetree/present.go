package filetree

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

type ItemKind int

const (
	FolderItem ItemKind = iota
	FileItem
)

// Item is one displayable entry. Folders carry their (possibly collapsed) key
// in Name, the full path from the root in Path and their own entries in
// Children. Files carry their full path and record.
type Item[T any] struct {
	Kind     ItemKind
	Name     string
	Path     string
	Record   T
	Children []Item[T]
}

// Present lists the entries of root: folders first, sorted by path, then
// files, sorted by path. Every folder lists its own entries the same way.
func Present[T any](root *Node[T]) []Item[T] {
	return present(root, "")
}

func present[T any](n *Node[T], prefix string) []Item[T] {
	keys := lo.Keys(n.Children)
	slices.Sort(keys)

	items := make([]Item[T], 0, len(keys)+len(n.Files))
	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + Separator + key
		}
		items = append(items, Item[T]{
			Kind:     FolderItem,
			Name:     key,
			Path:     path,
			Children: present(n.Children[key], path),
		})
	}

	files := slices.Clone(n.Files)
	slices.SortStableFunc(files, func(a, b File[T]) int {
		return strings.Compare(a.Path, b.Path)
	})
	for _, f := range files {
		items = append(items, Item[T]{
			Kind:   FileItem,
			Name:   baseName(f.Path),
			Path:   f.Path,
			Record: f.Record,
		})
	}
	return items
}

func baseName(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Names returns the Name of each item, in order.
func Names[T any](items []Item[T]) []string {
	return lo.Map(items, func(it Item[T], _ int) string { return it.Name })
}
