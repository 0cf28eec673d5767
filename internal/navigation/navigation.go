// Package navigation builds hierarchical navigation trees from scanned documents.
package navigation

import (
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/docs"
	"git.home.luguber.info/inful/docsmith/internal/frontmatter"
)

// Kind distinguishes link and group nodes.
type Kind string

const (
	KindLink  Kind = "link"
	KindGroup Kind = "group"
)

// Node is either a link (Path set) or a group (Children set).
type Node struct {
	Kind     Kind   `json:"kind"`
	Label    string `json:"label"`
	Path     string `json:"path,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Badge    string `json:"badge,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// Link creates a link node.
func Link(label, p string) Node { return Node{Kind: KindLink, Label: label, Path: p} }

// Group creates a group node.
func Group(label string, children ...Node) Node {
	return Node{Kind: KindGroup, Label: label, Children: children}
}

type tree struct {
	index    map[string]docs.Document   // dir -> index document
	leaves   map[string][]docs.Document // dir -> non-index documents
	children map[string][]string        // dir -> immediate child dirs
}

// Build turns a section's documents into a navigation tree. Within a level,
// leaf pages come first ordered by order then route path, followed by one
// entry per child directory. The section's own root index is never listed.
func Build(documents []docs.Document) []Node {
	t := tree{
		index:    map[string]docs.Document{},
		leaves:   map[string][]docs.Document{},
		children: map[string][]string{},
	}
	known := map[string]bool{"": true}
	for _, d := range documents {
		dir := d.Dir()
		if d.IsIndex() {
			t.index[dir] = d
		} else {
			t.leaves[dir] = append(t.leaves[dir], d)
		}
		t.registerDir(dir, known)
	}
	return t.level("")
}

// registerDir records dir and all of its ancestors as children of their parents.
func (t tree) registerDir(dir string, known map[string]bool) {
	for !known[dir] {
		known[dir] = true
		parent := parentDir(dir)
		t.children[parent] = append(t.children[parent], dir)
		dir = parent
	}
}

func (t tree) level(dir string) []Node {
	leaves := append([]docs.Document(nil), t.leaves[dir]...)
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].Order != leaves[j].Order {
			return leaves[i].Order < leaves[j].Order
		}
		return leaves[i].RoutePath < leaves[j].RoutePath
	})

	nodes := make([]Node, 0, len(leaves)+len(t.children[dir]))
	for _, d := range leaves {
		nodes = append(nodes, docLink(d))
	}

	subdirs := append([]string(nil), t.children[dir]...)
	sort.SliceStable(subdirs, func(i, j int) bool {
		oi, oj := t.dirOrder(subdirs[i]), t.dirOrder(subdirs[j])
		if oi != oj {
			return oi < oj
		}
		return subdirs[i] < subdirs[j]
	})

	for _, sub := range subdirs {
		children := t.level(sub)
		idx, hasIndex := t.index[sub]
		switch {
		case len(children) > 0:
			g := Node{Kind: KindGroup, Label: config.TitleCase(path.Base(sub)), Children: children}
			if hasIndex {
				g.Label = idx.Title
				g.Icon = idx.Icon
				g.Badge = idx.Badge
			}
			nodes = append(nodes, g)
		case hasIndex:
			nodes = append(nodes, docLink(idx))
		}
	}
	return nodes
}

func (t tree) dirOrder(dir string) float64 {
	if idx, ok := t.index[dir]; ok {
		return idx.Order
	}
	return frontmatter.DefaultOrder
}

func docLink(d docs.Document) Node {
	return Node{Kind: KindLink, Label: d.Title, Path: d.RoutePath, Icon: d.Icon, Badge: d.Badge}
}

func parentDir(dir string) string {
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		return dir[:i]
	}
	return ""
}

// FirstLeaf returns the path of the first link found by a depth-first walk.
func FirstLeaf(nodes []Node) (string, bool) {
	for _, n := range nodes {
		if n.Kind == KindLink && n.Path != "" {
			return n.Path, true
		}
		if p, ok := FirstLeaf(n.Children); ok {
			return p, true
		}
	}
	return "", false
}

// Walk calls fn for every node in depth-first order.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}
