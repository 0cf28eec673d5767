// Package routes assembles the flat route table of a site.
package routes

import (
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/docs"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/navigation"
)

// Kind classifies a route.
type Kind string

const (
	KindPage      Kind = "page"
	KindChangelog Kind = "changelog"
	KindAPI       Kind = "api"
	KindRedirect  Kind = "redirect"
)

// CatchAllSuffix marks a route that serves every path below its base.
const CatchAllSuffix = "/*"

// Entry is one route of the site.
type Entry struct {
	Path        string         `json:"path"`
	SourcePath  string         `json:"sourcePath,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	SectionID   string         `json:"sectionId"`
	RedirectTo  string         `json:"redirectTo,omitempty"`
	Kind        Kind           `json:"kind"`
}

// IsCatchAll reports whether the route serves a whole subtree.
func (e Entry) IsCatchAll() bool { return strings.HasSuffix(e.Path, CatchAllSuffix) }

// BasePath is the path a route is reachable at; catch-all routes map to their base.
func (e Entry) BasePath() string {
	if !e.IsCatchAll() {
		return e.Path
	}
	base := strings.TrimSuffix(e.Path, CatchAllSuffix)
	if base == "" {
		return "/"
	}
	return base
}

// FromDocuments maps each document of a section to a route.
func FromDocuments(section config.Section, documents []docs.Document) []Entry {
	out := make([]Entry, 0, len(documents))
	for _, d := range documents {
		out = append(out, FromDocument(section.ID, d, KindPage))
	}
	return out
}

// FromDocument builds the route of a single document.
func FromDocument(sectionID string, d docs.Document, kind Kind) Entry {
	fm := make(map[string]any, len(d.Frontmatter)+2)
	for k, v := range d.Frontmatter {
		fm[k] = v
	}
	fm["title"] = d.Title
	if d.Description != "" {
		fm["description"] = d.Description
	}
	return Entry{
		Path:        d.RoutePath,
		SourcePath:  d.SourcePath,
		Frontmatter: fm,
		SectionID:   sectionID,
		Kind:        kind,
	}
}

// APIRoute is the catch-all route serving an API description below basePath.
func APIRoute(basePath, sectionID string) Entry {
	return Entry{
		Path:      strings.TrimRight(basePath, "/") + CatchAllSuffix,
		SectionID: sectionID,
		Kind:      KindAPI,
	}
}

// SectionFor returns the section whose base path is the longest prefix of p.
func SectionFor(p string, sections []config.Section) (config.Section, bool) {
	best, found := config.Section{}, false
	for _, s := range sections {
		if !hasPathPrefix(p, s.BasePath) {
			continue
		}
		if !found || len(s.BasePath) > len(best.BasePath) {
			best, found = s, true
		}
	}
	return best, found
}

func hasPathPrefix(p, base string) bool {
	if base == "/" {
		return strings.HasPrefix(p, "/")
	}
	return p == base || strings.HasPrefix(p, base+"/")
}

// Dedupe keeps the first route for every path and reports the dropped ones.
func Dedupe(entries []Entry) (kept []Entry, dropped []Entry) {
	seen := make(map[string]bool, len(entries))
	kept = make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e.Path] {
			slog.Warn("Dropping duplicate route", logfields.Route(e.Path), logfields.Section(e.SectionID))
			dropped = append(dropped, e)
			continue
		}
		seen[e.Path] = true
		kept = append(kept, e)
	}
	return kept, dropped
}

// AddSectionRedirects appends a redirect for every section whose base path has
// no route, pointing at the first leaf of the section's navigation. Sections
// without any navigable page get no redirect.
func AddSectionRedirects(entries []Entry, sections []config.Section, nav navigation.Site) []Entry {
	have := make(map[string]bool, len(entries))
	for _, e := range entries {
		have[e.BasePath()] = true
	}
	for _, s := range sections {
		if have[s.BasePath] {
			continue
		}
		target, ok := navigation.FirstLeaf(nav.ItemsFor(s.ID))
		if !ok || target == s.BasePath {
			slog.Warn("Section has no landing page and nothing to redirect to", logfields.Section(s.ID))
			continue
		}
		entries = append(entries, Entry{
			Path:       s.BasePath,
			SectionID:  s.ID,
			RedirectTo: target,
			Kind:       KindRedirect,
		})
		have[s.BasePath] = true
	}
	return entries
}
