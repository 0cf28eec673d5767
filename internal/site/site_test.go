package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/navigation"
	"git.home.luguber.info/inful/docsmith/internal/routes"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func routePaths(s *Snapshot) []string {
	out := make([]string, 0, len(s.Routes))
	for _, r := range s.Routes {
		out = append(out, r.Path)
	}
	return out
}

func newProject(t *testing.T) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"guide/index.md":        "---\ntitle: Home\n---\nWelcome",
		"guide/setup.md":        "---\ntitle: Setup\norder: 1\n---\nInstall [it](./x)",
		"labs/intro.md":         "# Intro",
		"labs/deep/page.md":     "# Page",
		"preview/index.md":      "# Preview",
		"openapi.yaml":          "info: {title: Pets}\npaths:\n  /pets:\n    get:\n      tags: [pets]\n      summary: List pets\n",
		"CHANGELOG.md":          "# Changes\n",
	})
	cfg := &config.Config{
		Name: "Handbook",
		Root: root,
		Sections: []config.SectionConfig{
			{Label: "Guide", DocsDir: "guide"},
			{Label: "Labs", DocsDir: "labs"},
			{Label: "Preview", DocsDir: "preview", Draft: true},
		},
		APIs: []config.APIConfig{{Spec: "openapi.yaml", BasePath: "/api", Label: "API Reference"}},
	}
	return cfg, root
}

func TestBuildSnapshot(t *testing.T) {
	cfg, root := newProject(t)
	snap, err := Build(context.Background(), cfg, Options{ChangelogPath: filepath.Join(root, "CHANGELOG.md")})
	require.NoError(t, err)

	require.Len(t, snap.Sections, 2, "draft section hidden in production")
	assert.ElementsMatch(t,
		[]string{"/", "/changelog", "/setup", "/labs/deep/page", "/labs/intro", "/api/*", "/labs"},
		routePaths(snap))

	r, ok := snap.Route("/labs")
	require.True(t, ok)
	assert.Equal(t, routes.KindRedirect, r.Kind)
	assert.Equal(t, "/labs/intro", r.RedirectTo)

	r, ok = snap.Route("/changelog")
	require.True(t, ok)
	assert.Equal(t, routes.KindChangelog, r.Kind)

	r, ok = snap.Route("/api/pets/get-pets")
	require.True(t, ok)
	assert.Equal(t, routes.KindAPI, r.Kind)
	assert.Equal(t, "guide", r.SectionID)

	assert.Equal(t, config.NavigationSectioned, snap.Navigation.Kind)
	guideNav := snap.Navigation.ItemsFor("guide")
	require.Len(t, guideNav, 3)
	assert.Equal(t, "Setup", guideNav[0].Label)
	assert.Equal(t, "Changelog", guideNav[1].Label)
	assert.Equal(t, navigation.KindGroup, guideNav[2].Kind)
	assert.Equal(t, "API Reference", guideNav[2].Label)

	require.Len(t, snap.Search, 6)
	for i, e := range snap.Search {
		assert.Equal(t, i, e.ID)
	}
	assert.Equal(t, "/api/pets/get-pets", snap.Search[5].Path)

	d, ok := snap.Document("/setup")
	require.True(t, ok)
	assert.Equal(t, "Setup", d.Title)
	require.Len(t, snap.APIs, 1)
	assert.Equal(t, "Pets", snap.APIs[0].Spec.Title)
}

func TestBuildIncludesDraftsInDev(t *testing.T) {
	cfg, root := newProject(t)
	snap, err := Build(context.Background(), cfg, Options{IncludeDrafts: true, ChangelogPath: filepath.Join(root, "none.md")})
	require.NoError(t, err)
	require.Len(t, snap.Sections, 3)
	_, ok := snap.Route("/preview")
	assert.True(t, ok)
	_, ok = snap.Route("/changelog")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	cfg, root := newProject(t)
	opts := Options{ChangelogPath: filepath.Join(root, "CHANGELOG.md")}
	a, err := Build(context.Background(), cfg, opts)
	require.NoError(t, err)
	b, err := Build(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, os.WriteFile(filepath.Join(root, "guide", "setup.md"), []byte("changed"), 0o600))
	c, err := Build(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestBuildDuplicateBasePathFails(t *testing.T) {
	cfg := &config.Config{
		Root: t.TempDir(),
		Sections: []config.SectionConfig{
			{Label: "A", DocsDir: "a", BasePath: "/x"},
			{Label: "B", DocsDir: "b", BasePath: "/x"},
		},
	}
	_, err := Build(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestBuildCanceled(t *testing.T) {
	cfg, _ := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, cfg, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLegacyNavigation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"docs/a.md": "# A"})
	cfg := &config.Config{
		Name:       "Solo",
		Root:       root,
		DocsDir:    "docs",
		Navigation: []config.NavItem{{Label: "Start", Path: "/a"}},
	}
	snap, err := Build(context.Background(), cfg, Options{ChangelogPath: filepath.Join(root, "none.md")})
	require.NoError(t, err)
	assert.Equal(t, config.NavigationLegacy, snap.Navigation.Kind)
	assert.Equal(t, []navigation.Node{navigation.Link("Start", "/a")}, snap.Navigation.ItemsFor("solo"))
	// The root section has no index, so it redirects to its first page.
	r, ok := snap.Route("/")
	require.True(t, ok)
	assert.Equal(t, "/a", r.RedirectTo)
}

func TestChangelogAtProjectRootOutsideRepository(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"docs/index.md": "# Home",
		"CHANGELOG.md":  "# Changes\n",
	})
	cfg := &config.Config{Name: "Plain", Root: root, DocsDir: "docs"}

	snap, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/", "/changelog"}, routePaths(snap))
	r, ok := snap.Route("/changelog")
	require.True(t, ok)
	assert.Equal(t, routes.KindChangelog, r.Kind)
}

func TestFingerprintCoversConfiguration(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"docs/a.md": "# A", "docs/b.md": "# B"})
	base := config.Config{
		Name:       "Solo",
		Root:       root,
		DocsDir:    "docs",
		Navigation: []config.NavItem{{Label: "Start", Path: "/a"}},
	}
	build := func(cfg config.Config) string {
		t.Helper()
		snap, err := Build(context.Background(), &cfg, Options{})
		require.NoError(t, err)
		return snap.Fingerprint()
	}
	want := build(base)
	assert.Equal(t, want, build(base))

	nav := base
	nav.Navigation = []config.NavItem{{Label: "Start", Path: "/a"}, {Label: "Bee", Path: "/b"}}
	assert.NotEqual(t, want, build(nav), "manual navigation")

	withURL := base
	withURL.SiteURL = "https://docs.example.com"
	assert.NotEqual(t, want, build(withURL), "site url")

	themed := base
	themed.Theme.PrimaryColor = "#ff0000"
	assert.NotEqual(t, want, build(themed), "theme")

	sectioned := base
	sectioned.Navigation = nil
	sectioned.Sections = []config.SectionConfig{{Label: "Solo", DocsDir: "docs", Draft: true}}
	drafted := sectioned
	drafted.Sections = []config.SectionConfig{{Label: "Solo", DocsDir: "docs"}}
	s1, err := Build(context.Background(), &sectioned, Options{IncludeDrafts: true})
	require.NoError(t, err)
	s2, err := Build(context.Background(), &drafted, Options{IncludeDrafts: true})
	require.NoError(t, err)
	assert.NotEqual(t, s1.Fingerprint(), s2.Fingerprint(), "draft flag")
}
