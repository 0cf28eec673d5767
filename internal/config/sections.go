package config

import (
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
)

// Section is a resolved, immutable section descriptor.
type Section struct {
	ID               string
	Label            string
	ContentDir       string // absolute
	BasePath         string
	Draft            bool
	IncludeInSitemap bool
	ExcludePatterns  []string
}

// IsRoot reports whether the section is mounted at "/".
func (s Section) IsRoot() bool { return s.BasePath == "/" }

// ResolveSections normalizes configuration into ordered section descriptors.
// Without explicit sections a single root section named after the project is
// synthesized. Two sections resolving to the same base path or id fail with a
// configuration error.
func ResolveSections(c *Config) ([]Section, error) {
	if len(c.Sections) == 0 {
		id := Slugify(c.Name)
		if id == "" {
			id = "docs"
		}
		return []Section{{
			ID:               id,
			Label:            c.Name,
			ContentDir:       c.Path(c.DocsDir),
			BasePath:         "/",
			IncludeInSitemap: true,
			ExcludePatterns:  slices.Clone(c.Exclude),
		}}, nil
	}

	out := make([]Section, 0, len(c.Sections))
	byBase := make(map[string]string, len(c.Sections))
	byID := make(map[string]string, len(c.Sections))
	for i, sc := range c.Sections {
		id := Slugify(sc.Label)
		if id == "" {
			return nil, errors.ConfigError("section label does not produce a usable id").
				WithContext("section", sc.Label).Build()
		}
		base := sc.BasePath
		switch {
		case base != "":
			base = NormalizeBasePath(base)
		case i == 0:
			base = "/"
		default:
			base = "/" + id
		}

		if other, dup := byBase[base]; dup {
			return nil, errors.ConfigError("duplicate section base path").
				WithContext("base_path", base).
				WithContext("sections", []string{other, sc.Label}).Build()
		}
		if other, dup := byID[id]; dup {
			return nil, errors.ConfigError("duplicate section id").
				WithContext("id", id).
				WithContext("sections", []string{other, sc.Label}).Build()
		}
		byBase[base] = sc.Label
		byID[id] = sc.Label

		// An explicit sitemap flag wins; otherwise drafts stay out of the sitemap.
		sitemap := !sc.Draft
		if sc.Sitemap != nil {
			sitemap = *sc.Sitemap
		}

		excludes := make([]string, 0, len(c.Exclude)+len(sc.Exclude))
		excludes = append(excludes, c.Exclude...)
		for _, e := range sc.Exclude {
			if !slices.Contains(excludes, e) {
				excludes = append(excludes, e)
			}
		}

		out = append(out, Section{
			ID:               id,
			Label:            sc.Label,
			ContentDir:       c.Path(sc.DocsDir),
			BasePath:         base,
			Draft:            sc.Draft,
			IncludeInSitemap: sitemap,
			ExcludePatterns:  excludes,
		})
	}
	return out, nil
}

// VisibleSections drops draft sections unless includeDrafts is set.
func VisibleSections(sections []Section, includeDrafts bool) []Section {
	if includeDrafts {
		return sections
	}
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.Draft {
			slog.Debug("Skipping draft section", "section", s.ID)
			continue
		}
		out = append(out, s)
	}
	return out
}

// NavigationKind tags how the site navigation is produced.
type NavigationKind string

const (
	// NavigationLegacy uses a manual tree from configuration for a single-section site.
	NavigationLegacy NavigationKind = "legacy"
	// NavigationSectioned derives one tree per section from the content.
	NavigationSectioned NavigationKind = "sectioned"
)

// NavigationMode is decided once from configuration.
type NavigationMode struct {
	Kind   NavigationKind
	Manual []NavItem
}

// ResolveNavigation picks the navigation mode. A manual tree is only honoured
// when no sections are configured.
func ResolveNavigation(c *Config) NavigationMode {
	if len(c.Navigation) == 0 {
		return NavigationMode{Kind: NavigationSectioned}
	}
	if len(c.Sections) > 0 {
		slog.Warn("Ignoring manual navigation: sections are configured", "items", len(c.Navigation))
		return NavigationMode{Kind: NavigationSectioned}
	}
	return NavigationMode{Kind: NavigationLegacy, Manual: c.Navigation}
}
