package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/diagram"
	ferrors "git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
	"git.home.luguber.info/inful/docsmith/internal/routes"
	"git.home.luguber.info/inful/docsmith/internal/site"
)

const mermaidDoc = "---\ntitle: Guide\ndescription: How it works\n---\n# Guide\n\n## Flow\n\n```mermaid\ngraph TD\n  A --> B\n```\n"

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func newProject(t *testing.T) (*config.Config, *site.Snapshot) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"docsmith.yaml":       "name: Acme\nsite_url: https://docs.example.com\napis:\n  - spec: openapi.yaml\n    base_path: /api\n",
		"docs/index.md":       "---\ntitle: Home\n---\nWelcome",
		"docs/guide.md":       mermaidDoc,
		"docs/nested/page.md": "# Nested\n\nDeep page",
		"openapi.yaml":        "info: {title: Pets}\npaths:\n  /pets:\n    get:\n      tags: [pets]\n      summary: List pets\n",
		"CHANGELOG.md":        "# Changes\n\n- first\n",
	})
	cfg, err := config.LoadProject(root, "")
	require.NoError(t, err)
	snap, err := site.Build(context.Background(), cfg, site.Options{ChangelogPath: filepath.Join(root, "CHANGELOG.md")})
	require.NoError(t, err)
	return cfg, snap
}

func readOut(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Path(cfg.OutDir), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func outExists(cfg *config.Config, rel string) bool {
	_, err := os.Stat(filepath.Join(cfg.Path(cfg.OutDir), filepath.FromSlash(rel)))
	return err == nil
}

type fakeBackend struct {
	startErr error
	calls    int
}

func (f *fakeBackend) Start(context.Context) error { return f.startErr }
func (f *fakeBackend) Close() error                { return nil }
func (f *fakeBackend) Render(_ context.Context, _ string, theme diagram.Theme, _ string) (string, error) {
	f.calls++
	return "<svg class=\"" + string(theme) + "\"></svg>", nil
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	pagesOK int
	pagesKO int
}

func (c *countingRecorder) IncPageRender(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.pagesOK++
	} else {
		c.pagesKO++
	}
}

func TestRunStaticBuild(t *testing.T) {
	cfg, snap := newProject(t)
	rec := &countingRecorder{}

	report, err := Run(context.Background(), cfg, snap, Options{Recorder: rec})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, config.DiagramsClient, report.DiagramStrategy)
	assert.NotContains(t, report.StageDurations, StagePreRenderDiagrams)
	assert.Empty(t, report.FailedRoutes)
	assert.Positive(t, rec.pagesOK)
	assert.Zero(t, rec.pagesKO)

	home := readOut(t, cfg, "index.html")
	assert.Contains(t, home, "<title>Home | Acme</title>")
	assert.Contains(t, home, "Welcome")
	assert.Contains(t, home, "import mermaid from")
	assert.NotContains(t, home, HTMLPlaceholder)

	guide := readOut(t, cfg, "guide/index.html")
	assert.Contains(t, guide, `<pre class="mermaid">`)
	assert.Contains(t, guide, `<meta name="description" content="How it works">`)
	assert.Contains(t, guide, `<a href="#flow">Flow</a>`)

	assert.Contains(t, readOut(t, cfg, "nested/page/index.html"), "Deep page")
	assert.Contains(t, readOut(t, cfg, "changelog/index.html"), "first")
	assert.Contains(t, readOut(t, cfg, "api/index.html"), "List pets")
	assert.Contains(t, readOut(t, cfg, "api/pets/get-pets/index.html"), "<code>/pets</code>")

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(readOut(t, cfg, "assets/search-index.json")), &entries))
	assert.NotEmpty(t, entries)
	assert.True(t, outExists(cfg, "assets/navigation.json"))
	assert.True(t, outExists(cfg, "assets/routes.json"))
	assert.False(t, outExists(cfg, "assets/search.db"))

	sitemap := readOut(t, cfg, "sitemap.xml")
	assert.Contains(t, sitemap, "<loc>https://docs.example.com/guide/</loc>")
	assert.Contains(t, sitemap, "<loc>https://docs.example.com/api/</loc>")
	assert.Contains(t, readOut(t, cfg, "robots.txt"), "Sitemap: https://docs.example.com/sitemap.xml")

	var bm map[string]any
	require.NoError(t, json.Unmarshal([]byte(readOut(t, cfg, "build-manifest.json")), &bm))
	assert.Equal(t, report.BuildID, bm["id"])

	assert.False(t, outExists(cfg, ServerDirName), "server output is removed by cleanup")
}

func TestKeepServerOutput(t *testing.T) {
	cfg, snap := newProject(t)
	cfg.Build.KeepServerOutput = true
	_, err := Run(context.Background(), cfg, snap, Options{})
	require.NoError(t, err)
	assert.Contains(t, readOut(t, cfg, ServerDirName+"/render-manifest.json"), `"path": "/guide"`)
}

func TestSQLiteSearchExport(t *testing.T) {
	cfg, snap := newProject(t)
	cfg.Build.SQLiteSearch = true
	_, err := Run(context.Background(), cfg, snap, Options{})
	require.NoError(t, err)
	assert.True(t, outExists(cfg, "assets/search.db"))
}

func TestBuildTimeDiagrams(t *testing.T) {
	cfg, snap := newProject(t)
	backend := &fakeBackend{}
	factory := func(config.DiagramsConfig) diagram.Backend { return backend }

	report, err := Run(context.Background(), cfg, snap, Options{Strategy: config.DiagramsBuild, NewBackend: factory})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, config.DiagramsBuild, report.DiagramStrategy)
	assert.Equal(t, 1, report.Diagrams)
	assert.Equal(t, 2, backend.calls)

	guide := readOut(t, cfg, "guide/index.html")
	assert.Contains(t, guide, `<div class="docsmith-mermaid-light"><svg class="default"></svg></div>`)
	assert.Contains(t, guide, `<div class="docsmith-mermaid-dark"><svg class="dark"></svg></div>`)
	assert.NotContains(t, guide, "import mermaid from")

	entries, err := os.ReadDir(cfg.Path(cfg.Diagrams.CacheDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// A second build is served from the cache.
	_, err = Run(context.Background(), cfg, snap, Options{Strategy: config.DiagramsBuild, NewBackend: factory})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestDiagramBackendUnavailableFallsBackToClient(t *testing.T) {
	cfg, snap := newProject(t)
	factory := func(config.DiagramsConfig) diagram.Backend {
		return &fakeBackend{startErr: errors.New("chrome not found")}
	}

	report, err := Run(context.Background(), cfg, snap, Options{Strategy: config.DiagramsBuild, NewBackend: factory})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, report.Outcome)
	assert.Equal(t, config.DiagramsClient, report.DiagramStrategy)
	assert.Equal(t, StageErrorWarning, report.StageErrorKinds[StagePreRenderDiagrams])
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, IssueDiagramBackend, report.Issues[0].Code)
	assert.Contains(t, readOut(t, cfg, "guide/index.html"), `<pre class="mermaid">`)
}

type failingBundler struct {
	StaticBundler
	clientErr error
	failRoute string
}

func (b failingBundler) BuildClient(ctx context.Context, bc *BuildContext) error {
	if b.clientErr != nil {
		return b.clientErr
	}
	return b.StaticBundler.BuildClient(ctx, bc)
}

func (b failingBundler) BuildServer(ctx context.Context, bc *BuildContext) (PageRenderer, error) {
	pages, err := b.StaticBundler.BuildServer(ctx, bc)
	if err != nil {
		return nil, err
	}
	return failingRenderer{inner: pages, route: b.failRoute}, nil
}

type failingRenderer struct {
	inner PageRenderer
	route string
}

func (r failingRenderer) Render(ctx context.Context, route routes.Entry) ([]Page, error) {
	if route.Path == r.route {
		return nil, errors.New("template exploded")
	}
	return r.inner.Render(ctx, route)
}

func TestClientBundleFailureIsFatal(t *testing.T) {
	cfg, snap := newProject(t)
	report, err := Run(context.Background(), cfg, snap, Options{Bundler: failingBundler{clientErr: errors.New("disk full")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBundle)
	assert.Equal(t, ferrors.CategoryBundle, ferrors.GetCategory(err))
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StageErrorFatal, report.StageErrorKinds[StageClientBuild])
	assert.NotContains(t, report.StageDurations, StageServerBuild)
	assert.False(t, outExists(cfg, "sitemap.xml"))
}

func TestRouteFailureIsIsolated(t *testing.T) {
	cfg, snap := newProject(t)
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := &countingRecorder{}
	report, err := Run(context.Background(), cfg, snap, Options{Bundler: failingBundler{failRoute: "/guide"}, Recorder: rec})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "level=WARN"))
	assert.Contains(t, logs.String(), "route=/guide")
	assert.Equal(t, OutcomeWarning, report.Outcome)
	require.Len(t, report.FailedRoutes, 1)
	assert.Equal(t, "/guide", report.FailedRoutes[0].Path)
	assert.Equal(t, 1, rec.pagesKO)

	assert.False(t, outExists(cfg, "guide/index.html"))
	assert.True(t, outExists(cfg, "nested/page/index.html"))
	assert.True(t, outExists(cfg, "index.html"))
	assert.True(t, outExists(cfg, "changelog/index.html"))
	assert.True(t, outExists(cfg, "api/index.html"))
	sitemap := readOut(t, cfg, "sitemap.xml")
	assert.Contains(t, sitemap, "<loc>https://docs.example.com/guide/</loc>", "failed routes stay in the sitemap")
	assert.Contains(t, sitemap, "<loc>https://docs.example.com/nested/page/</loc>")
	assert.Contains(t, readOut(t, cfg, "build-manifest.json"), `"/guide"`)
}

func TestCanceledBuild(t *testing.T) {
	cfg, snap := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, cfg, snap, Options{})
	require.Error(t, err)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Equal(t, StageClientBuild, se.Stage)
	assert.Equal(t, OutcomeCanceled, report.Outcome)
}

func TestOutDirGuard(t *testing.T) {
	cfg, snap := newProject(t)
	_, err := Run(context.Background(), cfg, snap, Options{OutDir: cfg.Root})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBundle)
	_, statErr := os.Stat(filepath.Join(cfg.Root, "docs", "index.md"))
	assert.NoError(t, statErr)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "index.html"), OutputPath("out", "/"))
	assert.Equal(t, filepath.Join("out", "guide", "index.html"), OutputPath("out", "/guide"))
	assert.Equal(t, filepath.Join("out", "a", "b", "index.html"), OutputPath("out", "/a/b/"))
	assert.Equal(t, filepath.Join("out", "etc", "index.html"), OutputPath("out", "/../../etc"))
}

func TestFillShell(t *testing.T) {
	shell := "<head>" + HeadPlaceholder + "</head><body>" + HTMLPlaceholder + "</body>"
	out := FillShell(shell, Page{Head: "<title>x</title>", HTML: "<p>y</p>"})
	assert.Equal(t, "<head><title>x</title></head><body><p>y</p></body>", out)
	assert.False(t, strings.Contains(out, "<!--"))
}
