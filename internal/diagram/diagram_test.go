package diagram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	starts   int
	closes   int
	calls    map[string]int
	fail     map[string]bool
	startErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeBackend) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeBackend) Render(_ context.Context, def string, theme Theme, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[def]++
	if f.fail[def] {
		return "", errors.New("syntax error")
	}
	return "<svg data-theme=\"" + string(theme) + "\" id=\"" + id + "\"></svg>", nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func newTestRenderer(t *testing.T) (*Renderer, *fakeBackend, *Cache) {
	t.Helper()
	cache, err := NewCache(filepath.Join(t.TempDir(), "diagrams"))
	require.NoError(t, err)
	backend := newFakeBackend()
	return NewRenderer(cache, backend, nil), backend, cache
}

func TestHashIgnoresSurroundingWhitespace(t *testing.T) {
	a := Hash("graph TD\n  A --> B")
	b := Hash("\n\n  graph TD\n  A --> B  \n")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, Hash("graph TD\n  A --> C"))
}

func TestRenderCachesPair(t *testing.T) {
	r, backend, cache := newTestRenderer(t)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	defer r.Close()

	def := "graph TD\n A --> B"
	first, err := r.Render(ctx, def)
	require.NoError(t, err)
	assert.Contains(t, first.LightOutput, `data-theme="default"`)
	assert.Contains(t, first.DarkOutput, `data-theme="dark"`)
	assert.Contains(t, first.LightOutput, "light-"+Hash(def))

	second, err := r.Render(ctx, "  "+def+"\n")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, backend.calls[def], "one call per theme, none on the hit")

	data, err := os.ReadFile(filepath.Join(cache.Dir(), Hash(def)+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lightOutput"`)
	assert.Contains(t, string(data), `"darkOutput"`)
}

func TestCacheSurvivesNewSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "diagrams")
	cache, err := NewCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Put(Hash("a"), Entry{LightOutput: "l", DarkOutput: "d"}))

	fresh, err := NewCache(dir)
	require.NoError(t, err)
	e, ok := fresh.Get(Hash("a"))
	require.True(t, ok)
	assert.Equal(t, "l", e.LightOutput)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestCorruptCacheFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, Hash("x")+".json"), []byte("{not json"), 0o644))
	_, ok := cache.Get(Hash("x"))
	assert.False(t, ok)
}

func TestRenderBeforeStart(t *testing.T) {
	r, backend, cache := newTestRenderer(t)
	ctx := context.Background()

	_, err := r.Render(ctx, "graph LR\n X --> Y")
	require.ErrorIs(t, err, ErrNotStarted)
	assert.Empty(t, backend.calls)

	require.NoError(t, cache.Put(Hash("cached"), Entry{LightOutput: "l", DarkOutput: "d"}))
	e, err := r.Render(ctx, "cached")
	require.NoError(t, err)
	assert.Equal(t, "d", e.DarkOutput)
}

func TestRenderBatchSkipsFailures(t *testing.T) {
	r, backend, cache := newTestRenderer(t)
	ctx := context.Background()
	require.NoError(t, cache.Put(Hash("cached"), Entry{LightOutput: "l", DarkOutput: "d"}))
	backend.fail["broken"] = true

	require.NoError(t, r.Start(ctx))
	out, err := r.RenderBatch(ctx, []string{"cached", "broken", "good", "good"})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Len(t, out, 2)
	assert.Contains(t, out, Hash("cached"))
	assert.Contains(t, out, Hash("good"))
	assert.NotContains(t, out, Hash("broken"))
	assert.Zero(t, backend.calls["cached"])
	assert.Equal(t, 2, backend.calls["good"])
	assert.Equal(t, 1, backend.starts)
	assert.Equal(t, 1, backend.closes)
}

func TestRenderBatchAllCachedNeedsNoStart(t *testing.T) {
	r, backend, cache := newTestRenderer(t)
	require.NoError(t, cache.Put(Hash("a"), Entry{LightOutput: "l"}))

	out, err := r.RenderBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Zero(t, backend.starts)

	_, err = r.RenderBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestCloseIsIdempotent(t *testing.T) {
	r, backend, _ := newTestRenderer(t)
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, backend.closes)
	assert.ErrorIs(t, r.Start(context.Background()), ErrClosed)
}

func TestStartFailure(t *testing.T) {
	r, backend, _ := newTestRenderer(t)
	backend.startErr = errors.New("no chrome")
	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chrome")
	require.NoError(t, r.Close())
	assert.Zero(t, backend.closes)
}

func TestExtract(t *testing.T) {
	body := "# Title\n\n```mermaid\ngraph TD\n  A --> B\n```\n\n```go\nfmt.Println()\n```\n\n- item\n\n  ```mermaid\n  sequenceDiagram\n  ```\n"
	defs := Extract(body)
	require.Len(t, defs, 2)
	assert.Equal(t, "graph TD\n  A --> B", defs[0])
	assert.Equal(t, "sequenceDiagram", defs[1])
	assert.Empty(t, Extract("no diagrams here"))
}

func TestInjectRenderedAndClient(t *testing.T) {
	def := "graph TD\n  A --> B"
	page := "<h1>T</h1>\n<pre><code class=\"language-mermaid\">graph TD\n  A --&gt; B\n</code></pre>\n<pre><code class=\"language-go\">x</code></pre>\n"

	out, err := Inject(page, map[string]Entry{Hash(def): {LightOutput: "<svg>L</svg>", DarkOutput: "<svg>D</svg>"}})
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="docsmith-mermaid-light"><svg>L</svg></div>`)
	assert.Contains(t, out, `<div class="docsmith-mermaid-dark"><svg>D</svg></div>`)
	assert.Contains(t, out, `class="language-go"`)
	assert.NotContains(t, out, "language-mermaid")

	client, err := Inject(page, nil)
	require.NoError(t, err)
	assert.Contains(t, client, "<pre class=\"mermaid\">graph TD\n  A --&gt; B</pre>")
}

func TestInjectWithoutDiagramsReturnsInput(t *testing.T) {
	page := "<p>plain &amp; simple</p>"
	out, err := Inject(page, nil)
	require.NoError(t, err)
	assert.Equal(t, page, out)
}
