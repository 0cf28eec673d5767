package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveSectionsSingle(t *testing.T) {
	cfg := &Config{Name: "My Docs", DocsDir: "./docs", Root: "/proj", Exclude: []string{"x/**"}}

	sections, err := ResolveSections(cfg)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	s := sections[0]
	assert.Equal(t, "my-docs", s.ID)
	assert.Equal(t, "My Docs", s.Label)
	assert.Equal(t, "/", s.BasePath)
	assert.Equal(t, filepath.Join("/proj", "docs"), s.ContentDir)
	assert.True(t, s.IncludeInSitemap)
	assert.False(t, s.Draft)
	assert.Equal(t, []string{"x/**"}, s.ExcludePatterns)
}

func TestResolveSectionsDefaults(t *testing.T) {
	cfg := &Config{
		Root:    "/proj",
		Exclude: []string{"global/**"},
		Sections: []SectionConfig{
			{Label: "Guide", DocsDir: "guide"},
			{Label: "API Notes", DocsDir: "api", Exclude: []string{"old/**", "global/**"}},
			{Label: "Labs", DocsDir: "labs", Draft: true},
			{Label: "Preview", DocsDir: "preview", Draft: true, Sitemap: boolPtr(true)},
			{Label: "Hidden", DocsDir: "hidden", Sitemap: boolPtr(false)},
		},
	}

	sections, err := ResolveSections(cfg)
	require.NoError(t, err)
	require.Len(t, sections, 5)

	assert.Equal(t, "/", sections[0].BasePath)
	assert.Equal(t, "/api-notes", sections[1].BasePath)
	assert.Equal(t, []string{"global/**", "old/**"}, sections[1].ExcludePatterns)

	assert.False(t, sections[2].IncludeInSitemap, "draft implies no sitemap")
	assert.True(t, sections[3].IncludeInSitemap, "explicit sitemap wins over draft")
	assert.False(t, sections[4].IncludeInSitemap)

	visible := VisibleSections(sections, false)
	require.Len(t, visible, 3)
	assert.Len(t, VisibleSections(sections, true), 5)
}

func TestResolveSectionsDuplicateBasePath(t *testing.T) {
	cfg := &Config{
		Root: "/proj",
		Sections: []SectionConfig{
			{Label: "Guide", DocsDir: "guide"},
			{Label: "Other", DocsDir: "other", BasePath: "/"},
		},
	}
	_, err := ResolveSections(cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	cfg.Sections[1] = SectionConfig{Label: "Guide", DocsDir: "other", BasePath: "/x"}
	_, err = ResolveSections(cfg)
	require.Error(t, err, "duplicate ids fail")
}

func TestValidateRejectsDuplicateBasePath(t *testing.T) {
	cfg := &Config{
		Root: "/proj",
		Sections: []SectionConfig{
			{Label: "A", DocsDir: "a", BasePath: "/docs/"},
			{Label: "B", DocsDir: "b", BasePath: "docs"},
		},
	}
	Normalize(cfg)
	applyDefaults(cfg)
	require.Error(t, Validate(cfg))
}

func TestResolveNavigation(t *testing.T) {
	manual := []NavItem{{Label: "Intro", Path: "/intro"}}

	mode := ResolveNavigation(&Config{Navigation: manual})
	assert.Equal(t, NavigationLegacy, mode.Kind)
	assert.Equal(t, manual, mode.Manual)

	mode = ResolveNavigation(&Config{Navigation: manual, Sections: []SectionConfig{{Label: "A"}}})
	assert.Equal(t, NavigationSectioned, mode.Kind)
	assert.Nil(t, mode.Manual)

	assert.Equal(t, NavigationSectioned, ResolveNavigation(&Config{}).Kind)
}

func TestSlugifyAndTitleCase(t *testing.T) {
	assert.Equal(t, "getting-started", Slugify("Getting Started!"))
	assert.Equal(t, "creme-brulee", Slugify("Crème Brûlée"))
	assert.Equal(t, "", Slugify("  --  "))
	assert.Equal(t, "Getting Started", TitleCase("getting-started"))
	assert.Equal(t, "Api Keys", TitleCase("api_keys"))
	assert.Equal(t, "API Guide", TitleCase("API-guide"))
}
