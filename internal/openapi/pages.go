package openapi

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/navigation"
	"git.home.luguber.info/inful/docsmith/internal/search"
)

// OperationPath is the page path of an operation below basePath, e.g.
// "/api/users/get-users-id" for "GET /users/{id}" tagged "Users".
func OperationPath(basePath, tag string, op Operation) string {
	slug := config.Slugify(strings.ToLower(op.Method) + " " + op.Path)
	return strings.TrimRight(basePath, "/") + "/" + TagSlug(tag) + "/" + slug
}

// TagSlug is the path segment of a tag group.
func TagSlug(tag string) string {
	if s := config.Slugify(tag); s != "" {
		return s
	}
	return "default"
}

// Navigation builds one group per tag with one link per operation. The
// HTTP method is carried as the link badge.
func Navigation(basePath string, spec *Spec) []navigation.Node {
	out := make([]navigation.Node, 0, len(spec.Groups))
	for _, g := range spec.Groups {
		group := navigation.Group(g.Tag)
		for _, op := range g.Operations {
			link := navigation.Link(op.Summary, OperationPath(basePath, g.Tag, op))
			link.Badge = op.Method
			group.Children = append(group.Children, link)
		}
		out = append(out, group)
	}
	return out
}

// SearchEntries returns one entry per operation. IDs are assigned by search.Merge.
func SearchEntries(basePath string, spec *Spec, section config.Section) []search.Entry {
	var out []search.Entry
	for _, g := range spec.Groups {
		for _, op := range g.Operations {
			out = append(out, search.Entry{
				Path:         OperationPath(basePath, g.Tag, op),
				Title:        op.Summary,
				Description:  fmt.Sprintf("%s %s", op.Method, op.Path),
				Content:      search.StripMarkdown(strings.Join([]string{g.Tag, op.Description, op.OperationID}, " ")),
				SectionID:    section.ID,
				SectionLabel: section.Label,
			})
		}
	}
	return out
}
