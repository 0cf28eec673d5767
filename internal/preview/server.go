// Package preview serves a project from its in-memory snapshot. Pages render
// on demand, so an edit is visible as soon as the watch loop publishes a new
// snapshot, and connected browsers reload through a server-sent event stream.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsmith/internal/build"
	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/search"
	"git.home.luguber.info/inful/docsmith/internal/site"
	"git.home.luguber.info/inful/docsmith/internal/watch"
)

// Endpoint paths of the dev server API.
const (
	NavigationPath = "/_docsmith/navigation.json"
	RoutesPath     = "/_docsmith/routes.json"
	SearchPath     = "/_docsmith/search"
)

const defaultSearchLimit = 10

var errNoSnapshot = errors.New("site has not been built yet")

// Options configure a Server.
type Options struct {
	// Metrics is mounted at the configured metrics path when set.
	Metrics http.Handler
	// Status reports the outcome of the most recent rebuild.
	Status func() error
}

// Server renders pages from the snapshot currently held by a watch.Holder.
type Server struct {
	cfg     *config.Config
	holder  *watch.Holder
	hub     *ReloadHub
	metrics http.Handler
	status  func() error

	mu    sync.Mutex
	state *renderState
	store *search.Store
	// storeSnap is the snapshot whose entries are loaded into store.
	storeSnap *site.Snapshot
}

type renderState struct {
	snap     *site.Snapshot
	shell    string
	renderer *build.MarkdownRenderer
}

func NewServer(cfg *config.Config, holder *watch.Holder, opts Options) *Server {
	return &Server{
		cfg:     cfg,
		holder:  holder,
		hub:     NewReloadHub(),
		metrics: opts.Metrics,
		status:  opts.Status,
	}
}

// Hub returns the reload hub.
func (s *Server) Hub() *ReloadHub { return s.hub }

// Attach broadcasts every snapshot change of loop to connected browsers.
// It returns a function that detaches the server again.
func (s *Server) Attach(loop *watch.Loop) func() {
	if snap := s.holder.Current(); snap != nil {
		s.hub.Broadcast(snap.Fingerprint())
	}
	return loop.Subscribe(func(u watch.Update) {
		s.hub.Broadcast(u.Snapshot.Fingerprint())
	})
}

// Handler returns the HTTP handler of the dev server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+build.AssetsDir+"/{name}", s.handleAsset)
	mux.HandleFunc("GET "+NavigationPath, s.handleNavigation)
	mux.HandleFunc("GET "+RoutesPath, s.handleRoutes)
	mux.HandleFunc("GET "+SearchPath, s.handleSearch)
	mux.Handle("GET "+ReloadPath, s.hub)
	if s.metrics != nil {
		mux.Handle("GET "+s.cfg.Monitoring.Metrics.Path, s.metrics)
	}
	mux.HandleFunc("GET /", s.handlePage)
	return mux
}

// Run listens on addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	slog.Info("Preview server listening", logfields.URL("http://"+ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Preview server shutdown error", logfields.Error(err))
	}
	return s.Close()
}

// Close releases the search store and disconnects browsers.
func (s *Server) Close() error {
	s.hub.Shutdown()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store, s.storeSnap = nil, nil
	return err
}

func (s *Server) current() (*renderState, error) {
	snap := s.holder.Current()
	if snap == nil {
		return nil, errNoSnapshot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil && s.state.snap == snap {
		return s.state, nil
	}
	cfg := s.cfg
	if snap.Config != nil {
		cfg = snap.Config
	}
	// The dev server never starts a browser, so diagrams always render client side.
	shell, err := build.RenderShell(cfg, snap.SectionList(), true)
	if err != nil {
		return nil, err
	}
	s.state = &renderState{snap: snap, shell: shell, renderer: build.NewMarkdownRenderer(cfg, snap, nil)}
	return s.state, nil
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st, err := s.current()
	if err != nil {
		s.unavailable(w, err)
		return
	}
	p := RequestRoute(r.URL.Path)
	route, ok := st.snap.Route(p)
	if !ok {
		s.writePage(w, st, http.StatusNotFound, notFoundPage(p))
		return
	}
	pages, err := st.renderer.Render(r.Context(), route)
	if err != nil {
		slog.Warn("Page render failed", logfields.Route(p), logfields.Error(err))
		http.Error(w, "render "+p+": "+err.Error(), http.StatusInternalServerError)
		return
	}
	for _, page := range pages {
		if page.Path == p {
			s.writePage(w, st, http.StatusOK, page)
			return
		}
	}
	s.writePage(w, st, http.StatusNotFound, notFoundPage(p))
}

func (s *Server) writePage(w http.ResponseWriter, st *renderState, code int, page build.Page) {
	page.Head += template.HTML(reloadScript) //nolint:gosec // constant
	if s.status != nil {
		if err := s.status(); err != nil {
			page.HTML = template.HTML(`<div class="docsmith-error"><strong>Rebuild failed:</strong> `+
				template.HTMLEscapeString(err.Error())+`</div>`) + page.HTML //nolint:gosec // escaped
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(build.FillShell(st.shell, page)))
}

func notFoundPage(p string) build.Page {
	return build.Page{
		Path:  p,
		Title: "Not found",
		Head:  "<title>Not found</title>\n",
		HTML: template.HTML(`<main class="docsmith-content"><h1>Page not found</h1><p>No page is served at <code>` +
			template.HTMLEscapeString(p) + `</code>.</p></main>`), //nolint:gosec // escaped
	}
}

func (s *Server) unavailable(w http.ResponseWriter, err error) {
	if s.status != nil {
		if st := s.status(); st != nil {
			err = st
		}
	}
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if content, ok := build.StaticAssets()[name]; ok {
		w.Header().Set("Content-Type", contentType(name))
		_, _ = w.Write([]byte(content))
		return
	}
	snap := s.holder.Current()
	if snap == nil {
		s.unavailable(w, errNoSnapshot)
		return
	}
	switch name {
	case "search-index.json":
		writeJSON(w, snap.Search)
	case "navigation.json":
		writeJSON(w, snap.Navigation)
	case "routes.json":
		writeJSON(w, snap.Routes)
	default:
		http.NotFound(w, r)
	}
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) handleNavigation(w http.ResponseWriter, _ *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		s.unavailable(w, errNoSnapshot)
		return
	}
	writeJSON(w, snap.Navigation)
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		s.unavailable(w, errNoSnapshot)
		return
	}
	writeJSON(w, snap.Routes)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		s.unavailable(w, errNoSnapshot)
		return
	}
	q := r.URL.Query().Get("q")
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := s.search(r.Context(), snap, q, limit)
	if err != nil {
		slog.Warn("Search store query failed, using in-memory index", logfields.Error(err))
		results = search.Query(snap.Search, q, limit)
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, results)
}

// search queries an in-memory SQLite index that is reloaded whenever the snapshot changes.
func (s *Server) search(ctx context.Context, snap *site.Snapshot, q string, limit int) ([]search.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	s.mu.Lock()
	if s.store == nil {
		store, err := search.OpenStore(":memory:")
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.store = store
	}
	if s.storeSnap != snap {
		if err := s.store.Replace(ctx, snap.Search); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.storeSnap = snap
	}
	store := s.store
	s.mu.Unlock()
	return store.Query(ctx, q, limit)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("JSON response write", logfields.Error(err))
	}
}

// RequestRoute maps a request path to a route path: "/guide/", "/guide.html"
// and "/guide/index.html" all resolve to "/guide".
func RequestRoute(p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimSuffix(p, "/index.html")
	p = strings.TrimSuffix(p, ".html")
	if p == "" || p == "/index" {
		return "/"
	}
	return p
}
