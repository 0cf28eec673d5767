// Package docs discovers content files in a section and turns them into
// document records with route paths and page metadata.
package docs

import (
	"path"
	"strings"
)

// Extensions recognized as content files.
var Extensions = []string{".md", ".mdx"}

// Document is one scanned content file.
type Document struct {
	SourcePath  string // absolute
	RelPath     string // slash separated, relative to the section content dir
	RoutePath   string
	SectionID   string
	Title       string
	Description string
	Icon        string
	Badge       string
	Order       float64
	Frontmatter map[string]any
	Body        string // content without the metadata header
	Raw         string // full file content
	Fingerprint string
}

// Stem is the file name without extension.
func (d Document) Stem() string {
	base := path.Base(d.RelPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsIndex reports whether the document is a directory landing page.
func (d Document) IsIndex() bool { return d.Stem() == "index" }

// Dir returns the slash separated directory of the document relative to the
// content dir, "" for the root.
func (d Document) Dir() string {
	dir := path.Dir(d.RelPath)
	if dir == "." {
		return ""
	}
	return dir
}

// RoutePath derives a route from a content-relative file path. The extension
// is dropped and "index" segments collapse to their parent directory. The
// section base path is prefixed unless it is the root.
func RoutePath(rel, basePath string) string {
	rel = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
	rel = strings.TrimSuffix(rel, path.Ext(rel))

	var route string
	switch {
	case rel == "index":
		route = "/"
	case strings.HasSuffix(rel, "/index"):
		route = "/" + strings.TrimSuffix(rel, "/index")
	default:
		route = "/" + rel
	}
	return JoinBase(basePath, route)
}

// JoinBase prefixes route with basePath. A root base contributes nothing.
func JoinBase(basePath, route string) string {
	if basePath == "" || basePath == "/" {
		return route
	}
	if route == "/" {
		return basePath
	}
	return basePath + route
}

func isContentFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
