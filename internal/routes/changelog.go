package routes

import (
	"os"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docsmith/internal/docs"
	"git.home.luguber.info/inful/docsmith/internal/frontmatter"
)

const (
	ChangelogRoute       = "/changelog"
	changelogTitle       = "Changelog"
	changelogDescription = "Release history"
	changelogOrder       = 9999
)

// ChangelogDocument loads a changelog file as a document routed at
// /changelog. The returned bool is false when the file does not exist.
func ChangelogDocument(path string, sectionID string) (docs.Document, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return docs.Document{}, false, nil
		}
		return docs.Document{}, false, err
	}

	fields, body, err := frontmatter.Parse(data)
	if err != nil {
		fields, body = map[string]any{}, data
	}
	meta := frontmatter.ParseMeta(fields)

	d := docs.Document{
		SourcePath:  path,
		RelPath:     "CHANGELOG.md",
		RoutePath:   ChangelogRoute,
		SectionID:   sectionID,
		Title:       meta.Title,
		Description: meta.Description,
		Icon:        meta.Icon,
		Badge:       meta.Badge,
		Order:       changelogOrder,
		Frontmatter: fields,
		Body:        string(body),
		Raw:         string(data),
	}
	if d.Title == "" {
		d.Title = changelogTitle
	}
	if d.Description == "" {
		d.Description = changelogDescription
	}
	d.Fingerprint = mdfp.CalculateFingerprintFromParts("changelog", d.Body)
	return d, true, nil
}
