// Package manifest writes the site-level files produced after pages are
// rendered: sitemap, robots rules and the build manifest.
package manifest

import (
	"encoding/xml"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/routes"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// SitemapLocations lists the locations a sitemap would contain: routes of
// sections with IncludeInSitemap set, catch-all routes at their base path,
// redirects left out, duplicates dropped, input order kept.
func SitemapLocations(entries []routes.Entry, sections []config.Section, siteURL string) []string {
	eligible := make(map[string]bool, len(sections))
	for _, s := range sections {
		eligible[s.ID] = s.IncludeInSitemap
	}

	seen := map[string]bool{}
	var locs []string
	for _, e := range entries {
		if e.Kind == routes.KindRedirect || !eligible[e.SectionID] {
			continue
		}
		loc := Location(e.BasePath(), siteURL)
		if seen[loc] {
			continue
		}
		seen[loc] = true
		locs = append(locs, loc)
	}
	return locs
}

// Location renders a route as a sitemap location: "/" stays as is, other
// paths get a trailing slash, and the site URL is prefixed when known.
func Location(p, siteURL string) string {
	loc := "/"
	if p != "/" && p != "" {
		loc = strings.TrimSuffix(p, "/") + "/"
	}
	if siteURL == "" {
		return loc
	}
	return strings.TrimSuffix(siteURL, "/") + loc
}

// Sitemap renders sitemap.xml.
func Sitemap(entries []routes.Entry, sections []config.Section, siteURL string) ([]byte, error) {
	set := urlset{XMLNS: sitemapNS}
	for _, loc := range SitemapLocations(entries, sections, siteURL) {
		set.URLs = append(set.URLs, sitemapURL{Loc: loc})
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// Robots renders robots.txt. The sitemap line is only emitted when the
// public site URL is known, since crawlers need an absolute location.
func Robots(siteURL string) string {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	if siteURL != "" {
		fmt.Fprintf(&b, "\nSitemap: %s/sitemap.xml\n", strings.TrimSuffix(siteURL, "/"))
	}
	return b.String()
}
