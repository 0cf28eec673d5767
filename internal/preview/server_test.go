package preview

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
	"git.home.luguber.info/inful/docsmith/internal/search"
	"git.home.luguber.info/inful/docsmith/internal/site"
	"git.home.luguber.info/inful/docsmith/internal/watch"
)

func newProject(t *testing.T) (*config.Config, *site.Snapshot) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"docsmith.yaml":       "name: Acme\napis:\n  - spec: openapi.yaml\n    base_path: /api\n",
		"docs/index.md":       "---\ntitle: Home\n---\nWelcome",
		"docs/guide.md":       "# Guide\n\n```mermaid\ngraph TD\n  A --> B\n```\n",
		"docs/nested/page.md": "# Nested\n\nDeep page",
		"openapi.yaml":        "info: {title: Pets}\npaths:\n  /pets:\n    get:\n      tags: [pets]\n      summary: List pets\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	cfg, err := config.LoadProject(root, "")
	require.NoError(t, err)
	snap, err := site.Build(context.Background(), cfg, site.Options{IncludeDrafts: true, ChangelogPath: filepath.Join(root, "CHANGELOG.md")})
	require.NoError(t, err)
	return cfg, snap
}

func get(t *testing.T, url string) (int, http.Header, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, string(body)
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server, *site.Snapshot) {
	t.Helper()
	cfg, snap := newProject(t)
	srv := NewServer(cfg, watch.NewHolder(snap), opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts, snap
}

func TestServesPagesOnDemand(t *testing.T) {
	_, ts, _ := newTestServer(t, Options{})

	code, hdr, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/html; charset=utf-8", hdr.Get("Content-Type"))
	assert.Contains(t, body, "<title>Home | Acme</title>")
	assert.Contains(t, body, "Welcome")
	assert.Contains(t, body, ReloadPath)

	code, _, body = get(t, ts.URL+"/guide/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<pre class="mermaid">`)
	assert.Contains(t, body, "import mermaid from")

	code, _, body = get(t, ts.URL+"/nested/page/index.html")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Deep page")

	code, _, body = get(t, ts.URL+"/api")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "List pets")

	code, _, body = get(t, ts.URL+"/api/pets/get-pets")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<code>/pets</code>")
}

func TestUnknownPagesAreNotFound(t *testing.T) {
	_, ts, _ := newTestServer(t, Options{})

	code, _, body := get(t, ts.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "Page not found")
	assert.Contains(t, body, "<code>/missing</code>")

	code, _, _ = get(t, ts.URL+"/api/pets/unknown-op")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestJSONEndpoints(t *testing.T) {
	_, ts, snap := newTestServer(t, Options{})

	code, _, body := get(t, ts.URL+NavigationPath)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, json.Valid([]byte(body)))

	code, _, body = get(t, ts.URL+RoutesPath)
	require.Equal(t, http.StatusOK, code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	assert.Len(t, entries, len(snap.Routes))

	code, _, body = get(t, ts.URL+"/assets/search-index.json")
	require.Equal(t, http.StatusOK, code)
	var index []search.Entry
	require.NoError(t, json.Unmarshal([]byte(body), &index))
	assert.Len(t, index, len(snap.Search))
}

func TestSearchEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t, Options{})

	code, _, body := get(t, ts.URL+SearchPath+"?q=deep")
	require.Equal(t, http.StatusOK, code)
	var results []search.Result
	require.NoError(t, json.Unmarshal([]byte(body), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "/nested/page", results[0].Path)

	code, _, body = get(t, ts.URL+SearchPath+"?q=")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", body)

	code, _, _ = get(t, ts.URL+SearchPath+"?q=deep&limit=zero")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStaticAssets(t *testing.T) {
	_, ts, _ := newTestServer(t, Options{})

	code, hdr, body := get(t, ts.URL+"/assets/docsmith.css")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/css; charset=utf-8", hdr.Get("Content-Type"))
	assert.Contains(t, body, ".docsmith-mermaid")

	code, _, _ = get(t, ts.URL+"/assets/unknown.bin")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnavailableWithoutSnapshot(t *testing.T) {
	cfg, _ := newProject(t)
	srv := NewServer(cfg, watch.NewHolder(nil), Options{Status: func() error { return errors.New("bad front matter") }})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	code, _, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "bad front matter")

	code, _, _ = get(t, ts.URL+NavigationPath)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRebuildErrorBanner(t *testing.T) {
	_, ts, _ := newTestServer(t, Options{Status: func() error { return errors.New("broken <link>") }})

	code, _, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Rebuild failed:</strong> broken &lt;link&gt;")
	assert.Contains(t, body, "Welcome")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.ObserveRebuildDuration(20 * time.Millisecond)

	_, ts, _ := newTestServer(t, Options{Metrics: metrics.HTTPHandler(reg)})
	code, _, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "rebuild")
}

func TestRequestRoute(t *testing.T) {
	cases := map[string]string{
		"":                  "/",
		"/":                 "/",
		"/index.html":       "/",
		"/guide/":           "/guide",
		"/guide.html":       "/guide",
		"/guide/index.html": "/guide",
		"/a/../guide":       "/guide",
	}
	for in, want := range cases {
		assert.Equal(t, want, RequestRoute(in), in)
	}
}

func readEvent(t *testing.T, r *bufio.Reader, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data:") && strings.Contains(line, want) {
			return
		}
	}
	t.Fatalf("no event containing %q", want)
}

func TestReloadStreamBroadcastsFingerprints(t *testing.T) {
	srv, ts, snap := newTestServer(t, Options{})
	srv.Hub().Broadcast(snap.Fingerprint())

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+ReloadPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent(t, reader, snap.Fingerprint())

	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.Hub().Broadcast("next-fingerprint")
	readEvent(t, reader, "next-fingerprint")
}

func TestAttachBroadcastsSnapshotChanges(t *testing.T) {
	cfg, snap := newProject(t)
	holder := watch.NewHolder(nil)
	calls := 0
	loop := watch.NewLoop(func(ctx context.Context) (*site.Snapshot, error) {
		calls++
		if calls == 1 {
			return snap, nil
		}
		return site.Build(ctx, cfg, site.Options{IncludeDrafts: true})
	}, holder, nil)

	srv := NewServer(cfg, holder, Options{})
	defer func() { _ = srv.Close() }()
	detach := srv.Attach(loop)
	defer detach()

	_, err := loop.Rebuild(context.Background(), "initial")
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint(), srv.Hub().fingerprint)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "docs", "new.md"), []byte("# New"), 0o600))
	changed, err := loop.Rebuild(context.Background(), "edit")
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, holder.Current().Fingerprint(), srv.Hub().fingerprint)
	assert.NotEqual(t, snap.Fingerprint(), srv.Hub().fingerprint)
}

func TestRendersWithRebuiltConfiguration(t *testing.T) {
	cfg, snap := newProject(t)
	holder := watch.NewHolder(snap)
	srv := NewServer(cfg, holder, Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})

	_, _, body := get(t, ts.URL+"/")
	assert.Contains(t, body, "<title>Home | Acme</title>")

	renamed := *cfg
	renamed.Name = "Renamed"
	next, err := site.Build(context.Background(), &renamed, site.Options{IncludeDrafts: true})
	require.NoError(t, err)
	require.True(t, holder.Swap(next))

	_, _, body = get(t, ts.URL+"/")
	assert.Contains(t, body, "<title>Home | Renamed</title>")
}

func TestHubShutdownRejectsClients(t *testing.T) {
	hub := NewReloadHub()
	hub.Shutdown()
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ReloadPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	hub.Broadcast("ignored")
	assert.Empty(t, hub.fingerprint)
}
