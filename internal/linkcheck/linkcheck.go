// Package linkcheck finds internal links in content that do not resolve to a
// route of the site, and suggests the closest existing route.
package linkcheck

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/docs"
	"git.home.luguber.info/inful/docsmith/internal/openapi"
	"git.home.luguber.info/inful/docsmith/internal/site"
)

var (
	markdownLink = regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`)
	hrefLink     = regexp.MustCompile(`href=["']([^"']+)["']`)
	assetLink    = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|ico|pdf|zip|tar|gz)$`)
	pageExt      = regexp.MustCompile(`\.(mdx?|html?)$`)
)

var skippedPrefixes = []string{"http://", "https://", "#", "mailto:", "tel:", "//", "{", "data:"}

// BrokenLink is an internal link with no matching route.
type BrokenLink struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Link       string `json:"link"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RouteSet is the set of valid link targets. Every route is present both
// with and without a trailing slash.
type RouteSet struct {
	routes   []string
	expanded map[string]bool
	prefixes []string
}

// ValidRoutes builds a route set. "/" is always valid.
func ValidRoutes(paths ...string) *RouteSet {
	s := &RouteSet{expanded: map[string]bool{}}
	s.Add("/")
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add registers a route.
func (s *RouteSet) Add(p string) {
	if p == "" || s.expanded[p] {
		return
	}
	s.routes = append(s.routes, p)
	s.expanded[p] = true
	if trimmed := strings.TrimSuffix(p, "/"); trimmed != "" {
		s.expanded[trimmed] = true
	}
	if p != "/" && !strings.HasSuffix(p, "/") {
		s.expanded[p+"/"] = true
	}
}

// AddPrefix registers a subtree served by a single route.
func (s *RouteSet) AddPrefix(base string) {
	s.Add(base)
	s.prefixes = append(s.prefixes, strings.TrimSuffix(base, "/")+"/")
}

// Has reports whether p is a valid target.
func (s *RouteSet) Has(p string) bool {
	if s.expanded[p] {
		return true
	}
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Routes lists the registered routes in insertion order.
func (s *RouteSet) Routes() []string { return s.routes }

// FromSnapshot collects every route of a site, including each API
// operation page below its catch-all base.
func FromSnapshot(snap *site.Snapshot) *RouteSet {
	s := ValidRoutes()
	for _, r := range snap.Routes {
		if r.IsCatchAll() {
			s.AddPrefix(r.BasePath())
			continue
		}
		s.Add(r.Path)
	}
	for _, a := range snap.APIs {
		for _, g := range a.Spec.Groups {
			for _, op := range g.Operations {
				s.Add(openapi.OperationPath(a.BasePath, g.Tag, op))
			}
		}
	}
	return s
}

// Check scans every document line for markdown and href links and returns
// those that do not resolve. Lines inside fenced code blocks are skipped.
func Check(documents []docs.Document, valid *RouteSet) []BrokenLink {
	var broken []BrokenLink
	for _, d := range documents {
		inFence := false
		for i, line := range strings.Split(d.Raw, "\n") {
			if strings.HasPrefix(strings.TrimLeft(line, " \t"), "```") {
				inFence = !inFence
				continue
			}
			if inFence {
				continue
			}
			for _, re := range []*regexp.Regexp{markdownLink, hrefLink} {
				for _, m := range re.FindAllStringSubmatch(line, -1) {
					raw := rawTarget(m[1])
					if skip(raw) {
						continue
					}
					target := Normalize(raw, d)
					if valid.Has(target) || valid.Has(stripIndex(target)) {
						continue
					}
					broken = append(broken, BrokenLink{
						File:       d.SourcePath,
						Line:       i + 1,
						Link:       raw,
						Suggestion: Suggest(target, valid.Routes()),
					})
				}
			}
		}
	}
	return broken
}

// rawTarget drops a link title, fragment or query.
func rawTarget(s string) string {
	if i := strings.IndexAny(s, " \t\"'#?"); i >= 0 {
		return s[:i]
	}
	return s
}

func skip(raw string) bool {
	if raw == "" {
		return true
	}
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return assetLink.MatchString(raw)
}

// Normalize resolves a link against the document that contains it. Page
// extensions are dropped. Relative links resolve against the directory of
// the document's route, which for an index page is the route itself.
func Normalize(raw string, from docs.Document) string {
	target := pageExt.ReplaceAllString(raw, "")
	if !strings.HasPrefix(target, "/") {
		dir := from.RoutePath
		if !from.IsIndex() {
			dir = path.Dir(dir)
		}
		target = path.Join(dir, target)
	}
	target = path.Clean(target)
	if target == "." {
		return "/"
	}
	return target
}

func stripIndex(p string) string {
	if p == "/index" {
		return "/"
	}
	return strings.TrimSuffix(p, "/index")
}

// Suggest returns the closest route to target, or "" when nothing is close
// enough. Routes score by edit distance minus two per shared path segment;
// the best score must stay below 60% of the target length.
func Suggest(target string, routes []string) string {
	targetSegs := segments(target)
	best, bestScore := "", 0
	for i, r := range routes {
		shared := 0
		routeSegs := map[string]bool{}
		for _, s := range segments(r) {
			routeSegs[s] = true
		}
		for _, s := range targetSegs {
			if routeSegs[s] {
				shared++
			}
		}
		score := Levenshtein(target, r) - 2*shared
		if i == 0 || score < bestScore {
			best, bestScore = r, score
		}
	}
	if best != "" && float64(bestScore) < float64(len(target))*0.6 {
		return best
	}
	return ""
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Levenshtein is the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			cur[j] = 1 + min(prev[j], cur[j-1], prev[j-1])
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// FileReport is the broken links of one file.
type FileReport struct {
	File  string
	Links []BrokenLink
}

// Group collects broken links by file in first-seen order, with file paths
// made relative to root when possible.
func Group(links []BrokenLink, root string) []FileReport {
	var out []FileReport
	index := map[string]int{}
	for _, l := range links {
		f := relativeTo(l.File, root)
		i, ok := index[f]
		if !ok {
			i = len(out)
			index[f] = i
			out = append(out, FileReport{File: f})
		}
		out[i].Links = append(out[i].Links, l)
	}
	for i := range out {
		links := out[i].Links
		sort.SliceStable(links, func(a, b int) bool { return links[a].Line < links[b].Line })
	}
	return out
}

func relativeTo(file, root string) string {
	if root == "" {
		return file
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	return strings.TrimPrefix(file, prefix)
}
