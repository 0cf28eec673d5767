// Package search builds the plain-text search index of a site.
package search

import (
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/docs"
)

// Entry is one searchable page. IDs are dense and only valid for the index
// they were produced with.
type Entry struct {
	ID           int    `json:"id"`
	Path         string `json:"path"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Content      string `json:"content"`
	SectionID    string `json:"sectionId,omitempty"`
	SectionLabel string `json:"sectionLabel,omitempty"`
}

type replacement struct {
	re   *regexp.Regexp
	repl string
}

// Images are handled before links so the "!" does not survive as text.
var stripRules = []replacement{
	{regexp.MustCompile(`(?s)\A---.*?---\n*`), ""},
	{regexp.MustCompile("(?s)```.*?```"), ""},
	{regexp.MustCompile("`[^`]+`"), ""},
	{regexp.MustCompile(`#{1,6}\s`), ""},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`<[^>]+>`), ""},
	{regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`), "$1"},
	{regexp.MustCompile(`\s+`), " "},
}

// StripMarkdown reduces markdown to searchable plain text.
func StripMarkdown(md string) string {
	for _, r := range stripRules {
		md = r.re.ReplaceAllString(md, r.repl)
	}
	return strings.TrimSpace(md)
}

// Build produces entries for the documents of one section. IDs are local to
// the returned slice; use Merge to combine sections.
func Build(documents []docs.Document, section config.Section) []Entry {
	out := make([]Entry, 0, len(documents))
	for i, d := range documents {
		out = append(out, Entry{
			ID:           i,
			Path:         d.RoutePath,
			Title:        d.Title,
			Description:  d.Description,
			Content:      StripMarkdown(d.Body),
			SectionID:    section.ID,
			SectionLabel: section.Label,
		})
	}
	return out
}

// Merge concatenates entry lists and reassigns IDs densely from zero.
func Merge(lists ...[]Entry) []Entry {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]Entry, 0, n)
	for _, l := range lists {
		for _, e := range l {
			e.ID = len(out)
			out = append(out, e)
		}
	}
	return out
}

const (
	titleWeight       = 10
	descriptionWeight = 5
	contentWeight     = 1
)

// Result is a scored match.
type Result struct {
	Entry
	Score int `json:"score"`
}

// Query scores entries against a whitespace separated query. Every term must
// match somewhere; title hits outweigh description hits, which outweigh body
// hits. Ties keep index order.
func Query(entries []Entry, q string, limit int) []Result {
	terms := strings.Fields(strings.ToLower(q))
	if len(terms) == 0 {
		return nil
	}
	var out []Result
	for _, e := range entries {
		if score, ok := scoreEntry(e, terms); ok {
			out = append(out, Result{Entry: e, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func scoreEntry(e Entry, terms []string) (int, bool) {
	title, desc, content := strings.ToLower(e.Title), strings.ToLower(e.Description), strings.ToLower(e.Content)
	total := 0
	for _, t := range terms {
		s := 0
		if strings.Contains(title, t) {
			s += titleWeight
		}
		if strings.Contains(desc, t) {
			s += descriptionWeight
		}
		if strings.Contains(content, t) {
			s += contentWeight
		}
		if s == 0 {
			return 0, false
		}
		total += s
	}
	return total, true
}
