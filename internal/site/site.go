// Package site assembles the immutable snapshot of a docs site: sections,
// documents, navigation, routes and the search index.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/docs"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/navigation"
	"git.home.luguber.info/inful/docsmith/internal/openapi"
	"git.home.luguber.info/inful/docsmith/internal/project"
	"git.home.luguber.info/inful/docsmith/internal/routes"
	"git.home.luguber.info/inful/docsmith/internal/search"
)

// Options control snapshot assembly.
type Options struct {
	// IncludeDrafts keeps draft sections (always set in dev mode).
	IncludeDrafts bool
	// ChangelogPath overrides changelog discovery. Empty means the repository
	// root, or the project root outside a repository.
	ChangelogPath string
}

// SectionContent is one section with its scanned documents.
type SectionContent struct {
	Section   config.Section
	Documents []docs.Document
}

// API is a loaded API description mounted at BasePath.
type API struct {
	Label     string
	BasePath  string
	SectionID string
	Spec      *openapi.Spec
}

// Snapshot is the scan-derived model of a site. It is never mutated after
// Build returns; a rebuild produces a new snapshot.
type Snapshot struct {
	// Config is the configuration the snapshot was built from.
	Config     *config.Config
	Name       string
	SiteURL    string
	Sections   []SectionContent
	Navigation navigation.Site
	Routes     []routes.Entry
	Search     []search.Entry
	APIs       []API
	Warnings   []docs.ScanWarning

	byRoute     map[string]docs.Document
	fingerprint string
}

// Build scans every visible section and assembles a snapshot.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Snapshot, error) {
	all, err := config.ResolveSections(cfg)
	if err != nil {
		return nil, err
	}
	sections := config.VisibleSections(all, opts.IncludeDrafts || cfg.Build.IncludeDrafts)

	snap := &Snapshot{
		Config:  cfg,
		Name:    cfg.Name,
		SiteURL: cfg.SiteURL,
		byRoute: map[string]docs.Document{},
	}

	changelogAdded := false
	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := docs.Scan(s)
		if err != nil {
			return nil, err
		}
		snap.Warnings = append(snap.Warnings, res.Warnings...)
		documents := res.Documents

		if s.IsRoot() && !changelogAdded {
			changelogAdded = true
			if d, ok := loadChangelog(cfg.Root, s, opts, documents); ok {
				documents = append(documents, d)
			}
		}
		snap.Sections = append(snap.Sections, SectionContent{Section: s, Documents: documents})
	}

	trees := make([]navigation.SectionTree, 0, len(snap.Sections))
	var searchLists [][]search.Entry
	var entries []routes.Entry
	for _, sc := range snap.Sections {
		trees = append(trees, navigation.SectionTree{
			ID:       sc.Section.ID,
			Label:    sc.Section.Label,
			BasePath: sc.Section.BasePath,
			Items:    navigation.Build(sc.Documents),
		})
		searchLists = append(searchLists, search.Build(sc.Documents, sc.Section))
		for _, d := range sc.Documents {
			kind := routes.KindPage
			if d.RoutePath == routes.ChangelogRoute && d.RelPath == "CHANGELOG.md" && d.SectionID == sc.Section.ID {
				kind = routes.KindChangelog
			}
			entries = append(entries, routes.FromDocument(sc.Section.ID, d, kind))
			if _, dup := snap.byRoute[d.RoutePath]; !dup {
				snap.byRoute[d.RoutePath] = d
			}
		}
	}

	for _, ac := range cfg.APIs {
		api, ok := loadAPI(cfg, ac, sections)
		if !ok {
			continue
		}
		snap.APIs = append(snap.APIs, api)
		entries = append(entries, routes.APIRoute(api.BasePath, api.SectionID))
		for i := range trees {
			if trees[i].ID == api.SectionID {
				trees[i].Items = append(trees[i].Items, navigation.Group(api.Label, openapi.Navigation(api.BasePath, api.Spec)...))
			}
		}
		section, _ := routes.SectionFor(api.BasePath, sections)
		searchLists = append(searchLists, openapi.SearchEntries(api.BasePath, api.Spec, section))
	}

	mode := config.ResolveNavigation(cfg)
	if mode.Kind == config.NavigationLegacy {
		snap.Navigation = navigation.NewLegacy(mode.Manual)
	} else {
		snap.Navigation = navigation.NewSectioned(trees)
	}

	entries, _ = routes.Dedupe(entries)
	snap.Routes = routes.AddSectionRedirects(entries, sections, navigation.NewSectioned(trees))
	snap.Search = search.Merge(searchLists...)
	snap.fingerprint = computeFingerprint(snap, cfg)

	slog.Debug("Site snapshot built",
		logfields.Count(len(snap.Routes)),
		slog.Int("sections", len(snap.Sections)),
		slog.Int("warnings", len(snap.Warnings)))
	return snap, nil
}

func loadChangelog(root string, s config.Section, opts Options, existing []docs.Document) (docs.Document, bool) {
	for _, d := range existing {
		if d.RoutePath == routes.ChangelogRoute {
			return docs.Document{}, false
		}
	}
	p := opts.ChangelogPath
	if p == "" {
		p, _ = project.ChangelogPath(root)
	}
	d, ok, err := routes.ChangelogDocument(p, s.ID)
	if err != nil {
		slog.Warn("Failed to read changelog", logfields.Path(p), logfields.Error(err))
		return docs.Document{}, false
	}
	return d, ok
}

func loadAPI(cfg *config.Config, ac config.APIConfig, sections []config.Section) (API, bool) {
	spec, err := openapi.Load(cfg.Path(ac.Spec))
	if err != nil {
		slog.Warn("Skipping API description", logfields.Path(ac.Spec), logfields.Error(err))
		return API{}, false
	}
	api := API{Label: ac.Label, BasePath: ac.BasePath, Spec: spec}
	if s, ok := routes.SectionFor(ac.BasePath, sections); ok {
		api.SectionID = s.ID
	} else if len(sections) > 0 {
		api.SectionID = sections[0].ID
	}
	if api.Label == "" {
		api.Label = spec.Title
	}
	return api, true
}

// computeFingerprint covers everything a rendered page can depend on:
// documents, the resolved sections, navigation, routes, APIs and the
// presentation settings of the configuration.
func computeFingerprint(s *Snapshot, cfg *config.Config) string {
	var b strings.Builder
	for _, sc := range s.Sections {
		if data, err := json.Marshal(sc.Section); err == nil {
			b.Write(data)
			b.WriteByte('\n')
		}
		for _, d := range sc.Documents {
			fmt.Fprintf(&b, "doc %s %s\n", d.RoutePath, d.Fingerprint)
		}
	}
	resolved := struct {
		SiteURL    string                `json:"siteUrl"`
		Theme      config.ThemeConfig    `json:"theme"`
		Diagrams   config.DiagramsConfig `json:"diagrams"`
		Navigation navigation.Site       `json:"navigation"`
		Routes     []routes.Entry        `json:"routes"`
		APIs       []API                 `json:"apis"`
	}{s.SiteURL, cfg.Theme, cfg.Diagrams, s.Navigation, s.Routes, s.APIs}
	if data, err := json.Marshal(resolved); err == nil {
		b.Write(data)
	}
	return mdfp.CalculateFingerprintFromParts(s.Name, b.String())
}

// Fingerprint identifies the content of the snapshot. Two snapshots built from
// identical inputs share a fingerprint.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

// Documents returns every document across sections in section order.
func (s *Snapshot) Documents() []docs.Document {
	var out []docs.Document
	for _, sc := range s.Sections {
		out = append(out, sc.Documents...)
	}
	return out
}

// SectionList returns the visible sections in configuration order.
func (s *Snapshot) SectionList() []config.Section {
	out := make([]config.Section, 0, len(s.Sections))
	for _, sc := range s.Sections {
		out = append(out, sc.Section)
	}
	return out
}

// Document returns the document served at route.
func (s *Snapshot) Document(route string) (docs.Document, bool) {
	d, ok := s.byRoute[route]
	return d, ok
}

// Route returns the route entry matching p, falling back to catch-all routes.
func (s *Snapshot) Route(p string) (routes.Entry, bool) {
	var best routes.Entry
	found := false
	for _, r := range s.Routes {
		if r.Path == p {
			return r, true
		}
		if !r.IsCatchAll() {
			continue
		}
		base := r.BasePath()
		if (p == base || strings.HasPrefix(p, strings.TrimRight(base, "/")+"/")) && (!found || len(base) > len(best.BasePath())) {
			best, found = r, true
		}
	}
	return best, found
}

// API returns the API description mounted at basePath.
func (s *Snapshot) API(basePath string) (API, bool) {
	for _, a := range s.APIs {
		if a.BasePath == basePath {
			return a, true
		}
	}
	return API{}, false
}

// Section returns the section with id.
func (s *Snapshot) Section(id string) (config.Section, bool) {
	for _, sc := range s.Sections {
		if sc.Section.ID == id {
			return sc.Section, true
		}
	}
	return config.Section{}, false
}
