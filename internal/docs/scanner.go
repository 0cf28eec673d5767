package docs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/frontmatter"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
)

// ScanWarning records a recovered per-file problem.
type ScanWarning struct {
	File string
	Err  error
}

func (w ScanWarning) String() string { return fmt.Sprintf("%s: %v", w.File, w.Err) }

// ScanResult holds the documents of one section in lexical path order.
type ScanResult struct {
	Section   config.Section
	Documents []Document
	Warnings  []ScanWarning
}

// Scan walks the section content directory and returns its documents. A
// missing directory yields an empty result with a warning; per-file read and
// metadata problems are recovered and recorded. Only a failing walk is fatal.
func Scan(section config.Section) (ScanResult, error) {
	res := ScanResult{Section: section}

	fi, err := os.Stat(section.ContentDir)
	if err != nil || !fi.IsDir() {
		slog.Warn("Content directory missing", logfields.Section(section.ID), logfields.Path(section.ContentDir))
		res.Warnings = append(res.Warnings, ScanWarning{File: section.ContentDir, Err: ErrContentDirNotFound})
		return res, nil
	}

	matcher := newExcludeMatcher(section.ExcludePatterns)
	var files []string
	err = filepath.WalkDir(section.ContentDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == section.ContentDir {
			return nil
		}
		rel, relErr := filepath.Rel(section.ContentDir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if skipDir(name) || matcher.Match(strings.Split(rel, "/"), true) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, "_") || !isContentFile(name) {
			return nil
		}
		if matcher.Match(strings.Split(rel, "/"), false) {
			slog.Debug("Excluded content file", logfields.File(rel), logfields.Section(section.ID))
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrWalkFailed, section.ContentDir, err)
	}
	sort.Strings(files)

	seen := make(map[string]string, len(files))
	for _, rel := range files {
		doc, warn := readDocument(section, rel)
		if warn != nil {
			slog.Warn("Recovered content file problem", logfields.File(rel), logfields.Section(section.ID), logfields.Error(warn))
			res.Warnings = append(res.Warnings, ScanWarning{File: rel, Err: warn})
			if doc == nil {
				continue
			}
		}
		if first, dup := seen[doc.RoutePath]; dup {
			err := fmt.Errorf("%w: %s and %s both resolve to %s", ErrDuplicateRoute, first, rel, doc.RoutePath)
			slog.Warn("Dropping duplicate route", logfields.Route(doc.RoutePath), logfields.File(rel), logfields.Section(section.ID))
			res.Warnings = append(res.Warnings, ScanWarning{File: rel, Err: err})
			continue
		}
		seen[doc.RoutePath] = rel
		res.Documents = append(res.Documents, *doc)
	}

	slog.Debug("Scanned section", logfields.Section(section.ID), logfields.Count(len(res.Documents)))
	return res, nil
}

// readDocument loads one file. A metadata failure still returns a document
// built from the raw content together with the warning.
func readDocument(section config.Section, rel string) (*Document, error) {
	abs := filepath.Join(section.ContentDir, filepath.FromSlash(rel))
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileReadFailed, err)
	}

	doc := &Document{
		SourcePath: abs,
		RelPath:    rel,
		RoutePath:  RoutePath(rel, section.BasePath),
		SectionID:  section.ID,
		Raw:        string(data),
	}

	fm, body, had, parseErr := frontmatter.Split(data)
	var fields map[string]any
	if parseErr == nil && had {
		fields, parseErr = frontmatter.ParseYAML(fm)
	}
	var warn error
	if parseErr != nil {
		warn = fmt.Errorf("%w: %w", ErrFrontmatter, parseErr)
		fields, body, fm = nil, data, nil
	}
	if fields == nil {
		fields = map[string]any{}
	}

	meta := frontmatter.ParseMeta(fields)
	doc.Frontmatter = fields
	doc.Body = string(body)
	doc.Title = meta.Title
	if doc.Title == "" {
		doc.Title = TitleFromStem(doc.Stem())
	}
	doc.Description = meta.Description
	doc.Icon = meta.Icon
	doc.Badge = meta.Badge
	doc.Order = meta.Order
	doc.Fingerprint = mdfp.CalculateFingerprintFromParts(string(fm), doc.Body)
	return doc, warn
}

// TitleFromStem builds a display title from a file stem.
func TitleFromStem(stem string) string {
	return config.TitleCase(stem)
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

type excludeMatcher struct {
	m gitignore.Matcher
}

func newExcludeMatcher(patterns []string) excludeMatcher {
	if len(patterns) == 0 {
		return excludeMatcher{}
	}
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return excludeMatcher{m: gitignore.NewMatcher(ps)}
}

func (e excludeMatcher) Match(segments []string, isDir bool) bool {
	if e.m == nil {
		return false
	}
	return e.m.Match(segments, isDir)
}
